package pylite

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"slices"
)

// DefaultRecursionLimit matches CPython's default.
const DefaultRecursionLimit = 1000

// firstObjectID is the first id handed to objects a program allocates; the
// ids below it belong to builtin classes shared by every interpreter.
const firstObjectID = 1 << 10

// Tracer observes execution. Statement is called before every executed
// statement, and again at a loop header each time the loop condition is
// re-tested. A non-nil error aborts the run and is returned from Run.
type Tracer interface {
	Statement(line int, f *Frame) error
}

// Options configures an interpreter.
type Options struct {
	// Stdout receives everything the program prints. Defaults to io.Discard.
	Stdout io.Writer
	// Input supplies values for input(). It returns ErrEndOfInput when
	// exhausted. A nil Input behaves as an empty input stream.
	Input func(prompt string) (string, error)
	// Tracer, if set, is called before every statement.
	Tracer Tracer
	// RecursionLimit bounds nested calls. Defaults to DefaultRecursionLimit.
	RecursionLimit int
	// Seed seeds the random module so runs are reproducible.
	Seed int64
}

// Interp executes one program. It is not safe for concurrent use.
type Interp struct {
	opts     Options
	globals  *scope
	builtins *scope
	modules  map[string]*Module
	rng      *rand.Rand
	ctx      context.Context
	nextID   uint64
	depth    int
	ticks    uint64
	frame    *Frame
	handling []*Exception
	kwOrder  []string // keyword names of the call being dispatched, in source order
}

// New returns an interpreter with a fresh global namespace.
func New(opts Options) *Interp {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.RecursionLimit <= 0 {
		opts.RecursionLimit = DefaultRecursionLimit
	}
	in := &Interp{
		opts:    opts,
		globals: newScope(nil),
		modules: map[string]*Module{},
		rng:     rand.New(rand.NewSource(opts.Seed)),
		nextID:  firstObjectID,
	}
	in.builtins = in.newBuiltins()
	in.globals.set("__name__", "__main__")
	return in
}

// Globals returns the module namespace in definition order.
func (in *Interp) Globals() []Binding { return in.globals.bindings() }

// Run parses and executes src. Program exceptions are returned as
// *Exception, parse failures as *SyntaxError, and cancellation or tracer
// failures as the underlying error.
func (in *Interp) Run(ctx context.Context, src string) error {
	prog, err := Parse(src)
	if err != nil {
		return err
	}
	return in.Exec(ctx, prog)
}

// Exec executes a parsed program in the module frame.
func (in *Interp) Exec(ctx context.Context, prog []Stmt) error {
	in.ctx = ctx
	f := &Frame{in: in}
	in.frame = f
	_, err := in.execBlock(f, prog)
	return err
}

func (in *Interp) alloc() object {
	in.nextID++
	return object{id: in.nextID}
}

type ctl int

const (
	ctlNone ctl = iota
	ctlBreak
	ctlContinue
	ctlReturn
)

func (in *Interp) execBlock(f *Frame, body []Stmt) (ctl, error) {
	for _, s := range body {
		c, err := in.exec(f, s)
		if err != nil || c != ctlNone {
			return c, err
		}
	}
	return ctlNone, nil
}

func (in *Interp) exec(f *Frame, s Stmt) (ctl, error) {
	if err := in.step(f, s.Pos()); err != nil {
		return ctlNone, err
	}
	c, err := in.execStmt(f, s)
	if err != nil {
		return ctlNone, in.located(err, s.Pos())
	}
	return c, nil
}

// step reports a statement boundary to the tracer.
func (in *Interp) step(f *Frame, line int) error {
	f.line = line
	in.ticks++
	if in.ctx != nil && in.ticks%256 == 0 {
		if err := in.ctx.Err(); err != nil {
			return err
		}
	}
	if in.opts.Tracer != nil {
		return in.opts.Tracer.Statement(line, f)
	}
	return nil
}

// located turns a pending error into an *Exception carrying the line of the
// innermost statement it escaped from. Errors that are not program
// exceptions pass through unchanged.
func (in *Interp) located(err error, line int) error {
	var pe *pyError
	if errors.As(err, &pe) {
		args := pe.args
		if args == nil && pe.msg != "" {
			args = []Value{pe.msg}
		}
		exc := in.newException(pe.class, args...)
		exc.Line = line
		exc.Cause = pe.cause
		return exc
	}
	var exc *Exception
	if errors.As(err, &exc) && exc.Line == 0 {
		exc.Line = line
	}
	return err
}

func (in *Interp) newException(class *Class, args ...Value) *Exception {
	inst := &Instance{object: in.alloc(), Class: class, attrs: newScope(nil), args: in.newTuple(args)}
	return &Exception{Value: inst}
}

func (in *Interp) execStmt(f *Frame, s Stmt) (ctl, error) {
	switch n := s.(type) {
	case *ExprStmt:
		_, err := in.eval(f, n.X)
		return ctlNone, err

	case *AssignStmt:
		v, err := in.eval(f, n.Value)
		if err != nil {
			return ctlNone, err
		}
		for _, t := range n.Targets {
			if err := in.assign(f, t, v); err != nil {
				return ctlNone, err
			}
		}
		return ctlNone, nil

	case *AugAssignStmt:
		return ctlNone, in.augAssign(f, n)

	case *IfStmt:
		ok, err := in.truthExpr(f, n.Cond)
		if err != nil {
			return ctlNone, err
		}
		if ok {
			return in.execBlock(f, n.Body)
		}
		return in.execBlock(f, n.Else)

	case *WhileStmt:
		return in.execWhile(f, n)

	case *ForStmt:
		return in.execFor(f, n)

	case *BreakStmt:
		return ctlBreak, nil
	case *ContinueStmt:
		return ctlContinue, nil
	case *PassStmt, *GlobalStmt, *NonlocalStmt:
		return ctlNone, nil

	case *ReturnStmt:
		f.ret = nil
		if n.Value != nil {
			v, err := in.eval(f, n.Value)
			if err != nil {
				return ctlNone, err
			}
			f.ret = v
		}
		return ctlReturn, nil

	case *FuncDef:
		fn, err := in.makeFunction(f, n.Name, n.Params, n.Body, nil)
		if err != nil {
			return ctlNone, err
		}
		return ctlNone, f.assign(n.Name, fn)

	case *ClassDef:
		return ctlNone, in.execClass(f, n)

	case *DelStmt:
		for _, t := range n.Targets {
			if err := in.del(f, t); err != nil {
				return ctlNone, err
			}
		}
		return ctlNone, nil

	case *AssertStmt:
		ok, err := in.truthExpr(f, n.Test)
		if err != nil || ok {
			return ctlNone, err
		}
		msg := ""
		if n.Msg != nil {
			v, err := in.eval(f, n.Msg)
			if err != nil {
				return ctlNone, err
			}
			if msg, err = in.str(v); err != nil {
				return ctlNone, err
			}
		}
		return ctlNone, newErr(AssertionErrorClass, "%s", msg)

	case *RaiseStmt:
		return ctlNone, in.raise(f, n)

	case *TryStmt:
		return in.execTry(f, n)

	case *ImportStmt:
		for _, name := range n.Names {
			mod, err := in.importModule(name.Name)
			if err != nil {
				return ctlNone, err
			}
			if err := f.assign(importBinding(name), mod); err != nil {
				return ctlNone, err
			}
		}
		return ctlNone, nil

	case *FromImportStmt:
		mod, err := in.importModule(n.Module)
		if err != nil {
			return ctlNone, err
		}
		for _, name := range n.Names {
			v, ok := mod.attrs.get(name.Name)
			if !ok {
				return ctlNone, newErr(ImportErrorClass, "cannot import name '%s' from '%s'", name.Name, n.Module)
			}
			bind := name.Name
			if name.Alias != "" {
				bind = name.Alias
			}
			if err := f.assign(bind, v); err != nil {
				return ctlNone, err
			}
		}
		return ctlNone, nil
	}
	return ctlNone, newErr(SyntaxErrorClass, "unsupported statement")
}

func (in *Interp) execWhile(f *Frame, n *WhileStmt) (ctl, error) {
	for {
		ok, err := in.truthExpr(f, n.Cond)
		if err != nil {
			return ctlNone, err
		}
		if !ok {
			return in.execBlock(f, n.Else)
		}
		c, err := in.execBlock(f, n.Body)
		if err != nil {
			return ctlNone, err
		}
		switch c {
		case ctlBreak:
			return ctlNone, nil
		case ctlReturn:
			return ctlReturn, nil
		}
		if err := in.step(f, n.Line); err != nil {
			return ctlNone, err
		}
	}
}

func (in *Interp) execFor(f *Frame, n *ForStmt) (ctl, error) {
	iterable, err := in.eval(f, n.Iter)
	if err != nil {
		return ctlNone, err
	}
	first, stopped, result := true, false, ctlNone
	err = in.iterate(iterable, func(item Value) (bool, error) {
		if !first {
			if err := in.step(f, n.Line); err != nil {
				return false, err
			}
		}
		first = false
		if err := in.assign(f, n.Target, item); err != nil {
			return false, err
		}
		c, err := in.execBlock(f, n.Body)
		if err != nil {
			return false, err
		}
		switch c {
		case ctlBreak:
			stopped = true
			return false, nil
		case ctlReturn:
			stopped, result = true, ctlReturn
			return false, nil
		}
		return true, nil
	})
	if err != nil || stopped {
		return result, err
	}
	if !first {
		if err := in.step(f, n.Line); err != nil {
			return ctlNone, err
		}
	}
	return in.execBlock(f, n.Else)
}

func (in *Interp) execClass(f *Frame, n *ClassDef) error {
	base := objectClass
	if n.Base != nil {
		v, err := in.eval(f, n.Base)
		if err != nil {
			return err
		}
		b, ok := v.(*Class)
		if !ok {
			return newErr(TypeErrorClass, "class base must be a class, not '%s'", typeName(v))
		}
		if b.ctor != nil && b != objectClass {
			return newErr(TypeErrorClass, "subclassing builtin type '%s' is not supported", b.Name)
		}
		base = b
	}
	cls := &Class{object: in.alloc(), Name: n.Name, Base: base, attrs: newScope(nil)}
	body := &Frame{in: in, locals: cls.attrs, outer: f.closureScope(), class: cls}
	c, err := in.execBlock(body, n.Body)
	if err != nil {
		return err
	}
	if c != ctlNone {
		return newErr(SyntaxErrorClass, "'break', 'continue' or 'return' outside function")
	}
	return f.assign(n.Name, cls)
}

func (in *Interp) execTry(f *Frame, n *TryStmt) (c ctl, err error) {
	c, err = in.execBlock(f, n.Body)

	var exc *Exception
	if err != nil && errors.As(err, &exc) {
		for _, h := range n.Handlers {
			match, merr := in.matches(f, h, exc)
			if merr != nil {
				err = merr
				break
			}
			if !match {
				continue
			}
			c, err = in.handle(f, h, exc)
			break
		}
	} else if err == nil && c == ctlNone {
		c, err = in.execBlock(f, n.Else)
	}

	if n.Finally != nil {
		ret := f.ret
		fc, ferr := in.execBlock(f, n.Finally)
		if ferr != nil || fc != ctlNone {
			return fc, ferr
		}
		f.ret = ret
	}
	return c, err
}

func (in *Interp) handle(f *Frame, h ExceptHandler, exc *Exception) (ctl, error) {
	if h.Name != "" {
		if err := f.assign(h.Name, exc.Value); err != nil {
			return ctlNone, err
		}
	}
	in.handling = append(in.handling, exc)
	c, err := in.execBlock(f, h.Body)
	in.handling = in.handling[:len(in.handling)-1]
	if h.Name != "" {
		_ = f.delete(h.Name)
	}
	return c, err
}

func (in *Interp) matches(f *Frame, h ExceptHandler, exc *Exception) (bool, error) {
	if h.Type == nil {
		return true, nil
	}
	t, err := in.eval(f, h.Type)
	if err != nil {
		return false, err
	}
	var classes []Value
	switch x := t.(type) {
	case *Class:
		classes = []Value{x}
	case *Tuple:
		classes = x.items
	default:
		return false, newErr(TypeErrorClass, "catching classes that do not inherit from BaseException is not allowed")
	}
	for _, c := range classes {
		cls, ok := c.(*Class)
		if !ok || !cls.isSubclass(BaseExceptionClass) {
			return false, newErr(TypeErrorClass, "catching classes that do not inherit from BaseException is not allowed")
		}
		if exc.Value.Class.isSubclass(cls) {
			return true, nil
		}
	}
	return false, nil
}

func (in *Interp) raise(f *Frame, n *RaiseStmt) error {
	if n.Exc == nil {
		if len(in.handling) == 0 {
			return newErr(RuntimeErrorClass, "No active exception to reraise")
		}
		active := in.handling[len(in.handling)-1]
		return &Exception{Value: active.Value, Cause: active.Cause}
	}
	v, err := in.eval(f, n.Exc)
	if err != nil {
		return err
	}
	if cls, ok := v.(*Class); ok {
		if v, err = in.call(cls, nil, nil); err != nil {
			return err
		}
	}
	inst, ok := v.(*Instance)
	if !ok || !inst.Class.isSubclass(BaseExceptionClass) {
		return newErr(TypeErrorClass, "exceptions must derive from BaseException")
	}
	return &Exception{Value: inst}
}

func (in *Interp) makeFunction(f *Frame, name string, params []Param, body []Stmt, expr Expr) (*Function, error) {
	defaults := make([]Value, len(params))
	for i, p := range params {
		if p.Default == nil {
			defaults[i] = noDefault{}
			continue
		}
		v, err := in.eval(f, p.Default)
		if err != nil {
			return nil, err
		}
		defaults[i] = v
	}
	fn := &Function{
		object:   in.alloc(),
		Name:     name,
		params:   params,
		defaults: defaults,
		body:     body,
		expr:     expr,
		closure:  f.closureScope(),
		globals:  in.globals,
		class:    f.class,
	}
	if expr != nil {
		fn.info = analyze(params, nil)
	} else {
		fn.info = analyze(params, body)
	}
	return fn, nil
}

type noDefault struct{}

func (in *Interp) callFunction(fn *Function, args []Value, kw map[string]Value) (Value, error) {
	if in.depth >= in.opts.RecursionLimit {
		return nil, newErr(RecursionErrorClass, "maximum recursion depth exceeded")
	}
	order := in.kwOrder
	in.kwOrder = nil
	locals, err := in.bindArgs(fn, args, kw, order)
	if err != nil {
		return nil, err
	}

	frame := &Frame{in: in, fn: fn, locals: locals, outer: fn.closure, info: fn.info}
	saved := in.frame
	in.frame = frame
	in.depth++
	defer func() {
		in.depth--
		in.frame = saved
	}()

	if fn.expr != nil {
		return in.eval(frame, fn.expr)
	}
	c, err := in.execBlock(frame, fn.body)
	if err != nil {
		return nil, err
	}
	if c == ctlReturn {
		return frame.ret, nil
	}
	if c != ctlNone {
		return nil, newErr(SyntaxErrorClass, "'break' or 'continue' outside loop")
	}
	return nil, nil
}

// bindArgs builds the local scope of a call. order lists the keyword names
// in the order the caller wrote them, for filling a **kwargs dict.
func (in *Interp) bindArgs(fn *Function, args []Value, kw map[string]Value, order []string) (*scope, error) {
	locals := newScope(fn.closure)
	positional, varArgs, kwArgs := 0, -1, -1
	for i, p := range fn.params {
		switch {
		case p.Kind == ParamVarArgs:
			varArgs = i
		case p.Kind == ParamKwArgs:
			kwArgs = i
		case !p.KwOnly:
			positional++
		}
	}
	if len(args) > positional && varArgs < 0 {
		return nil, newErr(TypeErrorClass, "%s() takes %d positional argument%s but %d %s given",
			fn.Name, positional, plural(positional), len(args), wasWere(len(args)))
	}
	used := 0
	var missing, missingKw []string
	for i, p := range fn.params {
		if p.Kind != ParamPlain {
			continue
		}
		v, inKw := kw[p.Name]
		switch {
		case !p.KwOnly && i < len(args):
			if inKw {
				return nil, newErr(TypeErrorClass, "%s() got multiple values for argument '%s'", fn.Name, p.Name)
			}
			locals.set(p.Name, args[i])
		case inKw:
			used++
			locals.set(p.Name, v)
		default:
			if _, none := fn.defaults[i].(noDefault); !none {
				locals.set(p.Name, fn.defaults[i])
			} else if p.KwOnly {
				missingKw = append(missingKw, "'"+p.Name+"'")
			} else {
				missing = append(missing, "'"+p.Name+"'")
			}
		}
	}
	if varArgs >= 0 {
		var rest []Value
		if len(args) > positional {
			rest = append(rest, args[positional:]...)
		}
		locals.set(fn.params[varArgs].Name, in.newTuple(rest))
	}
	var extra *Dict
	if kwArgs >= 0 {
		extra = in.newDict()
		locals.set(fn.params[kwArgs].Name, extra)
	}
	if used < len(kw) {
		for _, name := range orderedNames(kw, order) {
			if fn.hasParam(name) {
				continue
			}
			if extra == nil {
				return nil, newErr(TypeErrorClass, "%s() got an unexpected keyword argument '%s'", fn.Name, name)
			}
			if err := extra.set(name, kw[name]); err != nil {
				return nil, err
			}
		}
	}
	if len(missing) > 0 {
		return nil, newErr(TypeErrorClass, "%s() missing %d required positional argument%s: %s",
			fn.Name, len(missing), plural(len(missing)), joinAnd(missing))
	}
	if len(missingKw) > 0 {
		return nil, newErr(TypeErrorClass, "%s() missing %d required keyword-only argument%s: %s",
			fn.Name, len(missingKw), plural(len(missingKw)), joinAnd(missingKw))
	}
	return locals, nil
}

// orderedNames lists the keys of kw in call order, with any names order
// does not cover appended sorted.
func orderedNames(kw map[string]Value, order []string) []string {
	names := make([]string, 0, len(kw))
	seen := make(map[string]bool, len(kw))
	for _, name := range order {
		if _, ok := kw[name]; ok && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	var rest []string
	for name := range kw {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(names, rest...)
}

func (fn *Function) hasParam(name string) bool {
	for _, p := range fn.params {
		if p.Name == name && p.Kind == ParamPlain {
			return true
		}
	}
	return false
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func wasWere(n int) string {
	if n == 1 {
		return "was"
	}
	return "were"
}

func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	out := ""
	for i, s := range items[:len(items)-1] {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out + ", and " + items[len(items)-1]
}

// call invokes any callable value.
func (in *Interp) call(callee Value, args []Value, kw map[string]Value) (Value, error) {
	switch c := callee.(type) {
	case *Function:
		return in.callFunction(c, args, kw)
	case *Builtin:
		if c.self != nil {
			args = append([]Value{c.self}, args...)
		}
		return c.fn(in, args, kw)
	case *BoundMethod:
		return in.call(c.Fn, append([]Value{c.Self}, args...), kw)
	case *Class:
		return in.instantiate(c, args, kw)
	case *Instance:
		if m, ok := in.instanceMethod(c, "__call__"); ok {
			return in.call(m, args, kw)
		}
	}
	return nil, newErr(TypeErrorClass, "'%s' object is not callable", typeName(callee))
}

func (in *Interp) instantiate(c *Class, args []Value, kw map[string]Value) (Value, error) {
	if c.ctor != nil {
		return c.ctor(in, args, kw)
	}
	isExc := c.isSubclass(BaseExceptionClass)
	if c.attrs.builtin && !isExc {
		return nil, newErr(TypeErrorClass, "cannot create '%s' instances", c.Name)
	}
	inst := &Instance{object: in.alloc(), Class: c, attrs: newScope(nil)}
	if isExc {
		inst.args = in.newTuple(append([]Value(nil), args...))
	}
	init, ok := c.lookup("__init__")
	if !ok {
		if len(args) > 0 || len(kw) > 0 {
			if !isExc {
				return nil, newErr(TypeErrorClass, "%s() takes no arguments", c.Name)
			}
		}
		return inst, nil
	}
	res, err := in.call(init, append([]Value{inst}, args...), kw)
	if err != nil {
		return nil, err
	}
	if res != nil {
		return nil, newErr(TypeErrorClass, "__init__() should return None, not '%s'", typeName(res))
	}
	return inst, nil
}

// instanceMethod finds a method defined on the instance's class and binds it.
func (in *Interp) instanceMethod(inst *Instance, name string) (Value, bool) {
	v, ok := inst.Class.lookup(name)
	if !ok {
		return nil, false
	}
	switch v.(type) {
	case *Function, *Builtin:
		return &BoundMethod{Self: inst, Fn: v}, true
	}
	return v, true
}

// callDunder calls a special method when the instance's class defines it.
func (in *Interp) callDunder(v Value, name string, args ...Value) (Value, bool, error) {
	inst, ok := v.(*Instance)
	if !ok {
		return nil, false, nil
	}
	m, ok := in.instanceMethod(inst, name)
	if !ok {
		return nil, false, nil
	}
	res, err := in.call(m, args, nil)
	return res, true, err
}

// ---- assignment targets ----

func (in *Interp) assign(f *Frame, target Expr, v Value) error {
	switch t := target.(type) {
	case *Name:
		return f.assign(t.ID, v)
	case *Attribute:
		obj, err := in.eval(f, t.Value)
		if err != nil {
			return err
		}
		return in.setattr(obj, t.Attr, v)
	case *Subscript:
		obj, err := in.eval(f, t.Value)
		if err != nil {
			return err
		}
		if sl, ok := t.Index.(*Slice); ok {
			lo, hi, step, err := in.evalSlice(f, sl)
			if err != nil {
				return err
			}
			return in.setSlice(obj, lo, hi, step, v)
		}
		idx, err := in.eval(f, t.Index)
		if err != nil {
			return err
		}
		return in.setitem(obj, idx, v)
	case *TupleExpr:
		return in.unpack(f, t.Elts, v)
	case *ListExpr:
		return in.unpack(f, t.Elts, v)
	}
	return newErr(SyntaxErrorClass, "cannot assign to expression")
}

func (in *Interp) unpack(f *Frame, targets []Expr, v Value) error {
	if !in.iterable(v) {
		return newErr(TypeErrorClass, "cannot unpack non-iterable %s object", typeName(v))
	}
	items, err := in.toSlice(v)
	if err != nil {
		return err
	}
	for i, t := range targets {
		if st, ok := t.(*Starred); ok {
			return in.unpackStarred(f, targets, i, st, items)
		}
	}
	switch {
	case len(items) > len(targets):
		return newErr(ValueErrorClass, "too many values to unpack (expected %d)", len(targets))
	case len(items) < len(targets):
		return newErr(ValueErrorClass, "not enough values to unpack (expected %d, got %d)", len(targets), len(items))
	}
	for i, t := range targets {
		if err := in.assign(f, t, items[i]); err != nil {
			return err
		}
	}
	return nil
}

// unpackStarred assigns items to targets where targets[star] collects the
// surplus into a list.
func (in *Interp) unpackStarred(f *Frame, targets []Expr, star int, st *Starred, items []Value) error {
	after := len(targets) - star - 1
	if len(items) < len(targets)-1 {
		return newErr(ValueErrorClass, "not enough values to unpack (expected at least %d, got %d)", len(targets)-1, len(items))
	}
	for i := 0; i < star; i++ {
		if err := in.assign(f, targets[i], items[i]); err != nil {
			return err
		}
	}
	rest := append([]Value(nil), items[star:len(items)-after]...)
	if err := in.assign(f, st.Value, in.newList(rest)); err != nil {
		return err
	}
	for i := 0; i < after; i++ {
		if err := in.assign(f, targets[star+1+i], items[len(items)-after+i]); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interp) augAssign(f *Frame, n *AugAssignStmt) error {
	rhs, err := in.eval(f, n.Value)
	if err != nil {
		return err
	}
	switch t := n.Target.(type) {
	case *Name:
		cur, err := f.lookup(t.ID)
		if err != nil {
			return err
		}
		res, err := in.binop(n.Op, cur, rhs, true)
		if err != nil {
			return err
		}
		return f.assign(t.ID, res)
	case *Attribute:
		obj, err := in.eval(f, t.Value)
		if err != nil {
			return err
		}
		cur, err := in.getattr(obj, t.Attr)
		if err != nil {
			return err
		}
		res, err := in.binop(n.Op, cur, rhs, true)
		if err != nil {
			return err
		}
		return in.setattr(obj, t.Attr, res)
	case *Subscript:
		obj, err := in.eval(f, t.Value)
		if err != nil {
			return err
		}
		idx, err := in.eval(f, t.Index)
		if err != nil {
			return err
		}
		cur, err := in.getitem(obj, idx)
		if err != nil {
			return err
		}
		res, err := in.binop(n.Op, cur, rhs, true)
		if err != nil {
			return err
		}
		return in.setitem(obj, idx, res)
	}
	return newErr(SyntaxErrorClass, "illegal expression for augmented assignment")
}

func (in *Interp) del(f *Frame, target Expr) error {
	switch t := target.(type) {
	case *Name:
		return f.delete(t.ID)
	case *Attribute:
		obj, err := in.eval(f, t.Value)
		if err != nil {
			return err
		}
		return in.delattr(obj, t.Attr)
	case *Subscript:
		obj, err := in.eval(f, t.Value)
		if err != nil {
			return err
		}
		if sl, ok := t.Index.(*Slice); ok {
			lo, hi, step, err := in.evalSlice(f, sl)
			if err != nil {
				return err
			}
			return in.delSlice(obj, lo, hi, step)
		}
		idx, err := in.eval(f, t.Index)
		if err != nil {
			return err
		}
		return in.delitem(obj, idx)
	case *TupleExpr:
		for _, el := range t.Elts {
			if err := in.del(f, el); err != nil {
				return err
			}
		}
		return nil
	}
	return newErr(SyntaxErrorClass, "cannot delete expression")
}
