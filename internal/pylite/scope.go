package pylite

// scopeInfo is the static classification of names used in a function body.
type scopeInfo struct {
	locals    map[string]bool
	globals   map[string]bool
	nonlocals map[string]bool
}

// analyze determines which names a function body binds locally. A name
// assigned anywhere in the body is local for the whole body unless it is
// declared global or nonlocal. Nested function, class and lambda bodies are
// separate scopes and are not entered.
func analyze(params []Param, body []Stmt) *scopeInfo {
	info := &scopeInfo{
		locals:    map[string]bool{},
		globals:   map[string]bool{},
		nonlocals: map[string]bool{},
	}
	for _, p := range params {
		info.locals[p.Name] = true
	}
	info.block(body)
	for name := range info.globals {
		delete(info.locals, name)
	}
	for name := range info.nonlocals {
		delete(info.locals, name)
	}
	return info
}

func (info *scopeInfo) block(body []Stmt) {
	for _, s := range body {
		info.stmt(s)
	}
}

func (info *scopeInfo) stmt(s Stmt) {
	switch n := s.(type) {
	case *AssignStmt:
		for _, t := range n.Targets {
			info.target(t)
		}
	case *AugAssignStmt:
		info.target(n.Target)
	case *ForStmt:
		info.target(n.Target)
		info.block(n.Body)
		info.block(n.Else)
	case *WhileStmt:
		info.block(n.Body)
		info.block(n.Else)
	case *IfStmt:
		info.block(n.Body)
		info.block(n.Else)
	case *TryStmt:
		info.block(n.Body)
		for _, h := range n.Handlers {
			if h.Name != "" {
				info.locals[h.Name] = true
			}
			info.block(h.Body)
		}
		info.block(n.Else)
		info.block(n.Finally)
	case *FuncDef:
		info.locals[n.Name] = true
	case *ClassDef:
		info.locals[n.Name] = true
	case *DelStmt:
		for _, t := range n.Targets {
			info.target(t)
		}
	case *ImportStmt:
		for _, name := range n.Names {
			info.locals[importBinding(name)] = true
		}
	case *FromImportStmt:
		for _, name := range n.Names {
			if name.Alias != "" {
				info.locals[name.Alias] = true
			} else {
				info.locals[name.Name] = true
			}
		}
	case *GlobalStmt:
		for _, name := range n.Names {
			info.globals[name] = true
		}
	case *NonlocalStmt:
		for _, name := range n.Names {
			info.nonlocals[name] = true
		}
	}
}

func (info *scopeInfo) target(e Expr) {
	switch t := e.(type) {
	case *Name:
		info.locals[t.ID] = true
	case *TupleExpr:
		for _, el := range t.Elts {
			info.target(el)
		}
	case *ListExpr:
		for _, el := range t.Elts {
			info.target(el)
		}
	case *Starred:
		info.target(t.Value)
	}
}

// importBinding is the name `import a.b as c` binds: the alias, or the first
// dotted component.
func importBinding(n ImportName) string {
	if n.Alias != "" {
		return n.Alias
	}
	for i := 0; i < len(n.Name); i++ {
		if n.Name[i] == '.' {
			return n.Name[:i]
		}
	}
	return n.Name
}

// Frame is one activation: the module body, a function call, a class body or
// a comprehension. Tracers receive the frame executing the current statement.
type Frame struct {
	in     *Interp
	fn     *Function
	locals *scope // nil for the module frame
	outer  *scope // innermost enclosing function scope
	info   *scopeInfo
	class  *Class // set while executing a class body
	line   int
	ret    Value
}

// Line is the line of the statement being executed.
func (f *Frame) Line() int { return f.line }

// Function names the code the frame executes: "<module>", a function name,
// or a class name for class bodies.
func (f *Frame) Function() string {
	switch {
	case f.fn != nil:
		return f.fn.Name
	case f.class != nil:
		return f.class.Name
	case f.locals != nil:
		return "<comprehension>"
	}
	return "<module>"
}

// Globals returns module-level bindings in definition order.
func (f *Frame) Globals() []Binding { return f.in.globals.bindings() }

// Locals returns the frame's own bindings, or nil in the module frame.
func (f *Frame) Locals() []Binding {
	if f.locals == nil {
		return nil
	}
	return f.locals.bindings()
}

// Enclosing returns the bindings of enclosing function scopes, outermost
// first, so that later entries shadow earlier ones.
func (f *Frame) Enclosing() []Binding {
	var chain []*scope
	for s := f.outer; s != nil; s = s.parent {
		chain = append(chain, s)
	}
	var out []Binding
	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, chain[i].bindings()...)
	}
	return out
}

// closureScope is the scope captured by functions defined in this frame.
func (f *Frame) closureScope() *scope {
	if f.locals == nil || f.class != nil {
		return f.outer
	}
	return f.locals
}

func (f *Frame) lookup(name string) (Value, error) {
	if f.locals != nil && !(f.info != nil && f.info.globals[name]) {
		if v, ok := f.locals.get(name); ok {
			return v, nil
		}
		if f.info != nil && f.info.locals[name] {
			return nil, newErr(UnboundLocalErrorClass, "cannot access local variable '%s' where it is not associated with a value", name)
		}
		for s := f.outer; s != nil; s = s.parent {
			if v, ok := s.get(name); ok {
				return v, nil
			}
		}
	}
	if v, ok := f.in.globals.get(name); ok {
		return v, nil
	}
	if v, ok := f.in.builtins.get(name); ok {
		return v, nil
	}
	return nil, newErr(NameErrorClass, "name '%s' is not defined", name)
}

func (f *Frame) assign(name string, v Value) error {
	switch {
	case f.locals == nil || (f.info != nil && f.info.globals[name]):
		f.in.globals.set(name, v)
	case f.info != nil && f.info.nonlocals[name]:
		for s := f.outer; s != nil; s = s.parent {
			if _, ok := s.get(name); ok {
				s.set(name, v)
				return nil
			}
		}
		return newErr(SyntaxErrorClass, "no binding for nonlocal '%s' found", name)
	default:
		f.locals.set(name, v)
	}
	return nil
}

func (f *Frame) delete(name string) error {
	var ok bool
	switch {
	case f.locals == nil || (f.info != nil && f.info.globals[name]):
		ok = f.in.globals.del(name)
	case f.info != nil && f.info.nonlocals[name]:
		for s := f.outer; s != nil && !ok; s = s.parent {
			ok = s.del(name)
		}
	default:
		ok = f.locals.del(name)
	}
	if !ok {
		return newErr(NameErrorClass, "name '%s' is not defined", name)
	}
	return nil
}
