package pylite

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Value is any runtime value: nil (None), bool, int64, *big.Int, float64,
// string, or one of the heap types below.
type Value = any

// MaxCollectionLen bounds every list, tuple, dict, set, deque and string
// the program builds. Exceeding it raises MemoryError.
const MaxCollectionLen = 10_000_000

// object carries the deterministic identity shared by all heap values.
type object struct{ id uint64 }

// ObjectID is stable across identical runs of the same program.
func (o *object) ObjectID() uint64 { return o.id }

type List struct {
	object
	items []Value
}

type Tuple struct {
	object
	items []Value
}

type Deque struct {
	object
	items  []Value
	maxlen int // -1 means unbounded
}

func (l *List) Elements() []any  { return append([]any(nil), l.items...) }
func (t *Tuple) Elements() []any { return append([]any(nil), t.items...) }
func (d *Deque) Elements() []any { return append([]any(nil), d.items...) }

// Len reports the number of elements.
func (l *List) Len() int { return len(l.items) }

// Dict is an insertion-ordered hash map.
type Dict struct {
	object
	keys    []Value
	vals    []Value
	index   map[string]int
	factory Value // defaultdict default factory, nil for a plain dict
}

func newDictStorage() (map[string]int, []Value, []Value) {
	return map[string]int{}, nil, nil
}

func (d *Dict) Len() int { return len(d.keys) }

func (d *Dict) get(k Value) (Value, bool, error) {
	hk, err := hashKey(k)
	if err != nil {
		return nil, false, err
	}
	i, ok := d.index[hk]
	if !ok {
		return nil, false, nil
	}
	return d.vals[i], true, nil
}

func (d *Dict) set(k, v Value) error {
	hk, err := hashKey(k)
	if err != nil {
		return err
	}
	if i, ok := d.index[hk]; ok {
		d.vals[i] = v
		return nil
	}
	if len(d.keys) >= MaxCollectionLen {
		return errMemory
	}
	d.index[hk] = len(d.keys)
	d.keys = append(d.keys, k)
	d.vals = append(d.vals, v)
	return nil
}

func (d *Dict) del(k Value) (Value, bool, error) {
	hk, err := hashKey(k)
	if err != nil {
		return nil, false, err
	}
	i, ok := d.index[hk]
	if !ok {
		return nil, false, nil
	}
	v := d.vals[i]
	d.keys = append(d.keys[:i], d.keys[i+1:]...)
	d.vals = append(d.vals[:i], d.vals[i+1:]...)
	delete(d.index, hk)
	for j := i; j < len(d.keys); j++ {
		h, _ := hashKey(d.keys[j])
		d.index[h] = j
	}
	return v, true, nil
}

func (d *Dict) clear() {
	d.index, d.keys, d.vals = newDictStorage()
}

// RangeEntries visits entries in insertion order with keys rendered by str().
func (d *Dict) RangeEntries(fn func(key string, v any) bool) {
	for i, k := range d.keys {
		if !fn(strPlain(k), d.vals[i]) {
			return
		}
	}
}

// Set is an insertion-ordered hash set.
type Set struct {
	object
	items []Value
	index map[string]int
}

func (s *Set) Len() int { return len(s.items) }

func (s *Set) Members() []any { return append([]any(nil), s.items...) }

func (s *Set) has(v Value) (bool, error) {
	hk, err := hashKey(v)
	if err != nil {
		return false, err
	}
	_, ok := s.index[hk]
	return ok, nil
}

func (s *Set) add(v Value) error {
	hk, err := hashKey(v)
	if err != nil {
		return err
	}
	if _, ok := s.index[hk]; ok {
		return nil
	}
	if len(s.items) >= MaxCollectionLen {
		return errMemory
	}
	s.index[hk] = len(s.items)
	s.items = append(s.items, v)
	return nil
}

func (s *Set) remove(v Value) (bool, error) {
	hk, err := hashKey(v)
	if err != nil {
		return false, err
	}
	i, ok := s.index[hk]
	if !ok {
		return false, nil
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	delete(s.index, hk)
	for j := i; j < len(s.items); j++ {
		h, _ := hashKey(s.items[j])
		s.index[h] = j
	}
	return true, nil
}

func (s *Set) clear() {
	s.items = nil
	s.index = map[string]int{}
}

type Range struct {
	object
	start, stop, step int64
}

func (r *Range) Len() int64 {
	switch {
	case r.step > 0 && r.start < r.stop:
		return (r.stop - r.start + r.step - 1) / r.step
	case r.step < 0 && r.start > r.stop:
		return (r.start - r.stop - r.step - 1) / -r.step
	}
	return 0
}

func (r *Range) at(i int64) int64 { return r.start + i*r.step }

func (r *Range) Repr() string {
	if r.step == 1 {
		return fmt.Sprintf("range(%d, %d)", r.start, r.stop)
	}
	return fmt.Sprintf("range(%d, %d, %d)", r.start, r.stop, r.step)
}

// Function is a user-defined function or lambda.
type Function struct {
	object
	Name     string
	params   []Param
	defaults []Value // evaluated at definition time, aligned with params
	body     []Stmt
	expr     Expr // lambda body
	closure  *scope
	globals  *scope
	class    *Class // defining class, for zero-argument super()
	info     *scopeInfo
}

func (f *Function) Repr() string {
	return fmt.Sprintf("<function %s at 0x%x>", f.Name, f.id)
}

// BuiltinFunc implements a builtin. Bound receivers arrive as args[0].
type BuiltinFunc func(in *Interp, args []Value, kw map[string]Value) (Value, error)

type Builtin struct {
	object
	Name string
	fn   BuiltinFunc
	self Value // receiver for builtin methods such as list.append
}

func (b *Builtin) Repr() string {
	if b.self != nil {
		return fmt.Sprintf("<built-in method %s of %s object at 0x%x>", b.Name, typeName(b.self), b.id)
	}
	return fmt.Sprintf("<built-in function %s>", b.Name)
}

// BoundMethod binds a class attribute function to an instance.
type BoundMethod struct {
	object
	Self Value
	Fn   Value
}

func (m *BoundMethod) Repr() string {
	name := "?"
	switch f := m.Fn.(type) {
	case *Function:
		name = f.Name
	case *Builtin:
		name = f.Name
	}
	return fmt.Sprintf("<bound method %s.%s of %s>", typeName(m.Self), name, reprPlain(m.Self))
}

// Class is a user class or one of the builtin types.
type Class struct {
	object
	Name  string
	Base  *Class
	attrs *scope
	// ctor constructs instances of builtin types (int, list, ...).
	ctor BuiltinFunc
}

func (c *Class) lookup(name string) (Value, bool) {
	for k := c; k != nil; k = k.Base {
		if v, ok := k.attrs.get(name); ok {
			return v, true
		}
	}
	return nil, false
}

func (c *Class) isSubclass(of *Class) bool {
	for k := c; k != nil; k = k.Base {
		if k == of {
			return true
		}
	}
	return false
}

func (c *Class) Repr() string {
	if c.attrs.builtin {
		return fmt.Sprintf("<class '%s'>", c.Name)
	}
	return fmt.Sprintf("<class '__main__.%s'>", c.Name)
}

// Instance is an instance of a user class or of an exception class.
type Instance struct {
	object
	Class *Class
	attrs *scope
	args  *Tuple // exception arguments
}

// TypeName reports the instance's class name.
func (i *Instance) TypeName() string { return i.Class.Name }

// RangeFields visits attributes in assignment order.
func (i *Instance) RangeFields(fn func(name string, v any) bool) {
	for _, name := range i.attrs.order {
		if !fn(name, i.attrs.vars[name]) {
			return
		}
	}
}

func (i *Instance) Repr() string {
	if i.args != nil {
		if len(i.args.items) == 1 {
			return i.Class.Name + "(" + reprPlain(i.args.items[0]) + ")"
		}
		return i.Class.Name + reprPlain(i.args)
	}
	return fmt.Sprintf("<__main__.%s object at 0x%x>", i.Class.Name, i.id)
}

type Module struct {
	object
	Name  string
	attrs *scope
}

func (m *Module) Repr() string { return fmt.Sprintf("<module '%s' (built-in)>", m.Name) }

// Iterator is a one-shot iterator such as the result of enumerate or zip.
type Iterator struct {
	object
	kind  string
	items []Value
	pos   int
}

func (it *Iterator) Repr() string { return fmt.Sprintf("<%s object at 0x%x>", it.kind, it.id) }

// Callable reports whether v can be called. Such values are never program
// state worth displaying.
func Callable(v Value) bool {
	switch v.(type) {
	case *Function, *Builtin, *BoundMethod, *Class:
		return true
	}
	return false
}

// scope is an insertion-ordered namespace. Function scopes link to the
// enclosing function scope through parent.
type scope struct {
	vars    map[string]Value
	order   []string
	parent  *scope
	builtin bool
}

func newScope(parent *scope) *scope {
	return &scope{vars: map[string]Value{}, parent: parent}
}

func (s *scope) get(name string) (Value, bool) {
	v, ok := s.vars[name]
	return v, ok
}

func (s *scope) set(name string, v Value) {
	if _, ok := s.vars[name]; !ok {
		s.order = append(s.order, name)
	}
	s.vars[name] = v
}

func (s *scope) del(name string) bool {
	if _, ok := s.vars[name]; !ok {
		return false
	}
	delete(s.vars, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *scope) bindings() []Binding {
	out := make([]Binding, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, Binding{Name: name, Value: s.vars[name]})
	}
	return out
}

// Binding is one name bound in a scope.
type Binding struct {
	Name  string
	Value Value
}

// hashKey encodes a hashable value so that values equal under == share a key
// (True == 1 == 1.0).
func hashKey(v Value) (string, error) {
	switch x := v.(type) {
	case nil:
		return "N", nil
	case bool:
		if x {
			return "i1", nil
		}
		return "i0", nil
	case int64:
		return "i" + strconv.FormatInt(x, 10), nil
	case *big.Int:
		return "i" + x.String(), nil
	case float64:
		if x == float64(int64(x)) && x >= -9.2e18 && x <= 9.2e18 {
			return "i" + strconv.FormatInt(int64(x), 10), nil
		}
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			b, _ := big.NewFloat(x).Int(nil)
			return "i" + b.String(), nil
		}
		return "f" + strconv.FormatFloat(x, 'g', -1, 64), nil
	case string:
		return "s" + x, nil
	case *Tuple:
		var b strings.Builder
		b.WriteString("t")
		for _, el := range x.items {
			k, err := hashKey(el)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "%d:%s", len(k), k)
		}
		return b.String(), nil
	case *List, *Dict, *Set, *Deque:
		return "", errUnhashable(v)
	case interface{ ObjectID() uint64 }:
		return "o" + strconv.FormatUint(x.ObjectID(), 10), nil
	}
	return "", errUnhashable(v)
}

// typeName is the Python type name of v, as shown in error messages.
func typeName(v Value) string {
	switch x := v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case int64, *big.Int:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case *List:
		return "list"
	case *Tuple:
		return "tuple"
	case *Dict:
		if x.factory != nil {
			return "collections.defaultdict"
		}
		return "dict"
	case *Set:
		return "set"
	case *Deque:
		return "collections.deque"
	case *Range:
		return "range"
	case *Function:
		return "function"
	case *Builtin:
		return "builtin_function_or_method"
	case *BoundMethod:
		return "method"
	case *Class:
		return "type"
	case *Instance:
		return x.Class.Name
	case *Module:
		return "module"
	case *Iterator:
		return x.kind
	case *View:
		return x.kind
	case *superProxy:
		return "super"
	}
	return fmt.Sprintf("%T", v)
}
