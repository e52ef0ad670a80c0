package pylite

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

var builtinIDs uint64

// builtinClass creates a process-wide class. Such classes are immutable from
// programs.
func builtinClass(name string, base *Class) *Class {
	builtinIDs++
	attrs := newScope(nil)
	attrs.builtin = true
	return &Class{object: object{id: builtinIDs}, Name: name, Base: base, attrs: attrs}
}

var (
	objectClass      = builtinClass("object", nil)
	typeClass        = builtinClass("type", objectClass)
	noneClass        = builtinClass("NoneType", objectClass)
	intClass         = builtinClass("int", objectClass)
	boolClass        = builtinClass("bool", intClass)
	floatClass       = builtinClass("float", objectClass)
	strClass         = builtinClass("str", objectClass)
	listClass        = builtinClass("list", objectClass)
	tupleClass       = builtinClass("tuple", objectClass)
	dictClass        = builtinClass("dict", objectClass)
	setClass         = builtinClass("set", objectClass)
	rangeClass       = builtinClass("range", objectClass)
	functionClass    = builtinClass("function", objectClass)
	builtinFnClass   = builtinClass("builtin_function_or_method", objectClass)
	methodClass      = builtinClass("method", objectClass)
	moduleClass      = builtinClass("module", objectClass)
	iteratorClass    = builtinClass("iterator", objectClass)
	dictViewClass    = builtinClass("dict_view", objectClass)
	dequeClass       = builtinClass("deque", objectClass)
	defaultdictClass = builtinClass("defaultdict", dictClass)
	superClass       = builtinClass("super", objectClass)
)

func init() {
	objectClass.ctor = func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
		if len(args) > 0 || len(kw) > 0 {
			return nil, newErr(TypeErrorClass, "object() takes no arguments")
		}
		return &Instance{object: in.alloc(), Class: objectClass, attrs: newScope(nil)}, nil
	}
	objectClass.attrs.set("__init__", &Builtin{Name: "__init__", fn: func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
		if len(args) > 1 || len(kw) > 0 {
			return nil, newErr(TypeErrorClass, "object.__init__() takes exactly one argument (the instance to initialize)")
		}
		return nil, nil
	}})
	BaseExceptionClass.attrs.set("__init__", &Builtin{Name: "__init__", fn: func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
		if len(args) == 0 {
			return nil, newErr(TypeErrorClass, "descriptor '__init__' of 'BaseException' object needs an argument")
		}
		inst, ok := args[0].(*Instance)
		if !ok {
			return nil, newErr(TypeErrorClass, "descriptor '__init__' requires a 'BaseException' object")
		}
		inst.args = in.newTuple(append([]Value(nil), args[1:]...))
		return nil, nil
	}})
	BaseExceptionClass.attrs.set("__str__", &Builtin{Name: "__str__", fn: func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
		inst, ok := args[0].(*Instance)
		if !ok {
			return nil, newErr(TypeErrorClass, "descriptor '__str__' requires a 'BaseException' object")
		}
		return exceptionMessage(inst), nil
	}})

	typeClass.ctor = func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
		if len(args) != 1 {
			return nil, newErr(TypeErrorClass, "type() takes 1 argument")
		}
		return classOf(args[0]), nil
	}
	intClass.ctor = intCtor
	boolClass.ctor = func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("bool", args, 0, 1); err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return false, nil
		}
		return in.truth(args[0])
	}
	floatClass.ctor = floatCtor
	strClass.ctor = func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("str", args, 0, 1); err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return "", nil
		}
		return in.str(args[0])
	}
	listClass.ctor = func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("list", args, 0, 1); err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return in.newList(nil), nil
		}
		items, err := in.toSlice(args[0])
		if err != nil {
			return nil, err
		}
		return in.newList(items), nil
	}
	tupleClass.ctor = func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("tuple", args, 0, 1); err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return in.newTuple(nil), nil
		}
		if t, ok := args[0].(*Tuple); ok {
			return t, nil
		}
		items, err := in.toSlice(args[0])
		if err != nil {
			return nil, err
		}
		return in.newTuple(items), nil
	}
	dictClass.ctor = func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("dict", args, 0, 1); err != nil {
			return nil, err
		}
		d := in.newDict()
		if len(args) == 1 {
			if err := in.dictUpdate(d, args[0]); err != nil {
				return nil, err
			}
		}
		for _, k := range sortedKeys(kw) {
			if err := d.set(k, kw[k]); err != nil {
				return nil, err
			}
		}
		return d, nil
	}
	setClass.ctor = func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("set", args, 0, 1); err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return in.newSet(), nil
		}
		items, err := in.toSlice(args[0])
		if err != nil {
			return nil, err
		}
		return in.newSetFrom(items)
	}
	rangeClass.ctor = rangeCtor
	dequeClass.ctor = func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("deque", args, 0, 2); err != nil {
			return nil, err
		}
		var items []Value
		if len(args) > 0 {
			var err error
			if items, err = in.toSlice(args[0]); err != nil {
				return nil, err
			}
		}
		maxlen := Value(nil)
		if len(args) == 2 {
			maxlen = args[1]
		}
		if v, ok := kw["maxlen"]; ok {
			maxlen = v
		}
		n := -1
		if maxlen != nil {
			m, ok := asInt(maxlen)
			if !ok || m < 0 {
				return nil, newErr(ValueErrorClass, "maxlen must be a non-negative integer")
			}
			n = int(m)
		}
		return in.newDeque(items, n), nil
	}
	defaultdictClass.ctor = func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
		d := in.newDict()
		d.factory = noFactory{}
		if len(args) > 0 && args[0] != nil {
			if !callable(args[0]) {
				return nil, newErr(TypeErrorClass, "first argument must be callable or None")
			}
			d.factory = args[0]
		}
		if len(args) > 1 {
			if err := in.dictUpdate(d, args[1]); err != nil {
				return nil, err
			}
		}
		return d, nil
	}
}

// noFactory marks a defaultdict created without a default factory.
type noFactory struct{}

func callable(v Value) bool {
	if Callable(v) {
		return true
	}
	if inst, ok := v.(*Instance); ok {
		_, has := inst.Class.lookup("__call__")
		return has
	}
	return false
}

// classOf returns the class of any value.
func classOf(v Value) *Class {
	switch x := v.(type) {
	case nil:
		return noneClass
	case bool:
		return boolClass
	case int64, *big.Int:
		return intClass
	case float64:
		return floatClass
	case string:
		return strClass
	case *List:
		return listClass
	case *Tuple:
		return tupleClass
	case *Dict:
		if x.factory != nil {
			return defaultdictClass
		}
		return dictClass
	case *Set:
		return setClass
	case *Range:
		return rangeClass
	case *Deque:
		return dequeClass
	case *Function:
		return functionClass
	case *Builtin:
		return builtinFnClass
	case *BoundMethod:
		return methodClass
	case *Class:
		return typeClass
	case *Instance:
		return x.Class
	case *Module:
		return moduleClass
	case *Iterator:
		return iteratorClass
	case *View:
		return dictViewClass
	case *superProxy:
		return superClass
	}
	return objectClass
}

func arity(name string, args []Value, min, max int) error {
	n := len(args)
	switch {
	case n >= min && (max < 0 || n <= max):
		return nil
	case min == max && min == 1:
		return newErr(TypeErrorClass, "%s() takes exactly one argument (%d given)", name, n)
	case min == max:
		return newErr(TypeErrorClass, "%s expected %d arguments, got %d", name, min, n)
	case n < min:
		return newErr(TypeErrorClass, "%s expected at least %d argument%s, got %d", name, min, plural(min), n)
	}
	return newErr(TypeErrorClass, "%s expected at most %d argument%s, got %d", name, max, plural(max), n)
}

func intCtor(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("int", args, 0, 2); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return int64(0), nil
	}
	base := int64(10)
	if len(args) == 2 {
		b, ok := asInt(args[1])
		if !ok {
			return nil, newErr(TypeErrorClass, "'%s' object cannot be interpreted as an integer", typeName(args[1]))
		}
		base = b
	} else if b, ok := kw["base"]; ok {
		base, _ = asInt(b)
	}
	switch x := args[0].(type) {
	case int64, *big.Int:
		return x, nil
	case bool:
		i, _ := asInt(x)
		return i, nil
	case float64:
		return floatToInt(x)
	case string:
		return parseIntLiteral(x, base)
	case *Instance:
		if res, ok, err := in.callDunder(x, "__int__"); ok {
			return res, err
		}
	}
	return nil, newErr(TypeErrorClass, "int() argument must be a string, a bytes-like object or a real number, not '%s'", typeName(args[0]))
}

func floatToInt(f float64) (Value, error) {
	switch {
	case math.IsInf(f, 0):
		return nil, newErr(OverflowErrorClass, "cannot convert float infinity to integer")
	case math.IsNaN(f):
		return nil, newErr(ValueErrorClass, "cannot convert float NaN to integer")
	case f >= 9.223372036854775807e18 || f < -9.223372036854775808e18:
		b, _ := big.NewFloat(f).Int(nil)
		return normInt(b), nil
	}
	return int64(f), nil
}

func parseIntLiteral(s string, base int64) (Value, error) {
	t := strings.TrimSpace(s)
	neg := false
	switch {
	case strings.HasPrefix(t, "-"):
		neg, t = true, t[1:]
	case strings.HasPrefix(t, "+"):
		t = t[1:]
	}
	lower := strings.ToLower(t)
	for prefix, b := range map[string]int64{"0x": 16, "0o": 8, "0b": 2} {
		if strings.HasPrefix(lower, prefix) && (base == b || base == 0) {
			t, base = t[2:], b
		}
	}
	if base == 0 {
		base = 10
	}
	bad := t == "" || strings.HasPrefix(t, "_") || strings.HasSuffix(t, "_") || strings.Contains(t, "__")
	var n int64
	if !bad {
		var err error
		n, err = strconv.ParseInt(strings.ReplaceAll(t, "_", ""), int(base), 64)
		if err != nil {
			if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
				return parseBigLiteral(strings.ReplaceAll(t, "_", ""), base, neg)
			}
			bad = true
		}
	}
	if bad {
		return nil, newErr(ValueErrorClass, "invalid literal for int() with base %d: %s", base, reprPlain(s))
	}
	if neg {
		n = -n
	}
	return n, nil
}

func floatCtor(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("float", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return 0.0, nil
	}
	if f, ok := asFloat(args[0]); ok {
		return f, nil
	}
	switch x := args[0].(type) {
	case string:
		t := strings.ToLower(strings.TrimSpace(x))
		switch strings.TrimLeft(t, "+-") {
		case "inf", "infinity":
			if strings.HasPrefix(t, "-") {
				return math.Inf(-1), nil
			}
			return math.Inf(1), nil
		case "nan":
			return math.NaN(), nil
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(t, "_", ""), 64)
		if err != nil && !strings.Contains(err.Error(), "range") {
			return nil, newErr(ValueErrorClass, "could not convert string to float: %s", reprPlain(x))
		}
		return f, nil
	case *Instance:
		if res, ok, err := in.callDunder(x, "__float__"); ok {
			return res, err
		}
	}
	return nil, newErr(TypeErrorClass, "float() argument must be a string or a real number, not '%s'", typeName(args[0]))
}

func rangeCtor(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("range", args, 1, 3); err != nil {
		return nil, err
	}
	nums := make([]int64, len(args))
	for i, a := range args {
		n, ok := asInt(a)
		if !ok {
			return nil, newErr(TypeErrorClass, "'%s' object cannot be interpreted as an integer", typeName(a))
		}
		nums[i] = n
	}
	r := &Range{object: in.alloc(), step: 1}
	switch len(nums) {
	case 1:
		r.stop = nums[0]
	case 2:
		r.start, r.stop = nums[0], nums[1]
	case 3:
		r.start, r.stop, r.step = nums[0], nums[1], nums[2]
		if r.step == 0 {
			return nil, newErr(ValueErrorClass, "range() arg 3 must not be zero")
		}
	}
	return r, nil
}

// dictUpdate merges a mapping or an iterable of key/value pairs into d.
func (in *Interp) dictUpdate(d *Dict, src Value) error {
	if other, ok := src.(*Dict); ok {
		for i, k := range other.keys {
			if err := d.set(k, other.vals[i]); err != nil {
				return err
			}
		}
		return nil
	}
	items, err := in.toSlice(src)
	if err != nil {
		return err
	}
	for i, item := range items {
		pair, err := in.toSlice(item)
		if err != nil {
			return newErr(TypeErrorClass, "cannot convert dictionary update sequence element #%d to a sequence", i)
		}
		if len(pair) != 2 {
			return newErr(ValueErrorClass, "dictionary update sequence element #%d has length %d; 2 is required", i, len(pair))
		}
		if err := d.set(pair[0], pair[1]); err != nil {
			return err
		}
	}
	return nil
}

// View is a live dict_keys, dict_values or dict_items view.
type View struct {
	object
	dict *Dict
	kind string
}

func (v *View) snapshot(in *Interp) []Value {
	switch v.kind {
	case "dict_keys":
		return append([]Value(nil), v.dict.keys...)
	case "dict_values":
		return append([]Value(nil), v.dict.vals...)
	}
	out := make([]Value, len(v.dict.keys))
	for i, k := range v.dict.keys {
		out[i] = in.newTuple([]Value{k, v.dict.vals[i]})
	}
	return out
}

// Elements lists the view's current contents; items are key/value pairs.
func (v *View) Elements() []any {
	switch v.kind {
	case "dict_keys":
		return append([]any(nil), v.dict.keys...)
	case "dict_values":
		return append([]any(nil), v.dict.vals...)
	}
	out := make([]any, len(v.dict.keys))
	for i, k := range v.dict.keys {
		out[i] = []any{k, v.dict.vals[i]}
	}
	return out
}

func parseBigLiteral(digits string, base int64, neg bool) (Value, error) {
	if base == 10 && len(digits) > maxIntDigits {
		return nil, newErr(ValueErrorClass, "Exceeds the limit (%d digits) for integer string conversion: value has %d digits", maxIntDigits, len(digits))
	}
	b, ok := new(big.Int).SetString(digits, int(base))
	if !ok {
		return nil, newErr(ValueErrorClass, "invalid literal for int() with base %d: %s", base, reprPlain(digits))
	}
	if neg {
		b.Neg(b)
	}
	return checkBits(b)
}
