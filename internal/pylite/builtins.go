package pylite

import (
	"errors"
	"hash/fnv"
	"io"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
)

func (in *Interp) newBuiltins() *scope {
	s := newScope(nil)
	s.builtin = true
	fns := map[string]BuiltinFunc{
		"print":      builtinPrint,
		"input":      builtinInput,
		"len":        builtinLen,
		"abs":        builtinAbs,
		"min":        func(in *Interp, a []Value, kw map[string]Value) (Value, error) { return in.extreme("min", a, kw) },
		"max":        func(in *Interp, a []Value, kw map[string]Value) (Value, error) { return in.extreme("max", a, kw) },
		"sum":        builtinSum,
		"sorted":     builtinSorted,
		"reversed":   builtinReversed,
		"enumerate":  builtinEnumerate,
		"zip":        builtinZip,
		"map":        builtinMap,
		"filter":     builtinFilter,
		"any":        func(in *Interp, a []Value, kw map[string]Value) (Value, error) { return in.anyAll("any", a, true) },
		"all":        func(in *Interp, a []Value, kw map[string]Value) (Value, error) { return in.anyAll("all", a, false) },
		"isinstance": builtinIsinstance,
		"issubclass": builtinIssubclass,
		"ord":        builtinOrd,
		"chr":        builtinChr,
		"round":      builtinRound,
		"divmod":     builtinDivmod,
		"pow":        builtinPow,
		"repr":       builtinRepr,
		"hex":        func(in *Interp, a []Value, kw map[string]Value) (Value, error) { return radix("hex", a, 16, "0x") },
		"oct":        func(in *Interp, a []Value, kw map[string]Value) (Value, error) { return radix("oct", a, 8, "0o") },
		"bin":        func(in *Interp, a []Value, kw map[string]Value) (Value, error) { return radix("bin", a, 2, "0b") },
		"id":         builtinID,
		"hash":       builtinHash,
		"iter":       builtinIter,
		"next":       builtinNext,
		"callable":   builtinCallable,
		"hasattr":    builtinHasattr,
		"getattr":    builtinGetattr,
		"setattr":    builtinSetattr,
		"format":     builtinFormat,
		"super":      builtinSuper,
	}
	for name, fn := range fns {
		s.set(name, &Builtin{Name: name, fn: fn})
	}
	for _, c := range []*Class{
		objectClass, typeClass, intClass, boolClass, floatClass, strClass,
		listClass, tupleClass, dictClass, setClass, rangeClass,
	} {
		s.set(c.Name, c)
	}
	for _, c := range exceptionClasses {
		s.set(c.Name, c)
	}
	return s
}

func builtinPrint(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	sep, end := " ", "\n"
	for name, v := range kw {
		var s string
		switch x := v.(type) {
		case nil:
			continue
		case string:
			s = x
		default:
			return nil, newErr(TypeErrorClass, "%s must be None or a string, not %s", name, typeName(v))
		}
		switch name {
		case "sep":
			sep = s
		case "end":
			end = s
		default:
			return nil, newErr(TypeErrorClass, "'%s' is an invalid keyword argument for print()", name)
		}
	}
	parts := make([]string, len(args))
	for i, a := range args {
		s, err := in.str(a)
		if err != nil {
			return nil, err
		}
		parts[i] = s
	}
	if _, err := io.WriteString(in.opts.Stdout, strings.Join(parts, sep)+end); err != nil {
		return nil, outputError(err)
	}
	return nil, nil
}

func outputError(err error) error {
	if errors.Is(err, ErrOutputLimit) {
		return &pyError{class: OutputLimitErrorClass, msg: err.Error(), cause: err}
	}
	return err
}

func builtinInput(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("input", args, 0, 1); err != nil {
		return nil, err
	}
	prompt := ""
	if len(args) == 1 {
		s, err := in.str(args[0])
		if err != nil {
			return nil, err
		}
		prompt = s
	}
	if in.opts.Input == nil {
		return nil, newErr(EOFErrorClass, "EOF when reading a line")
	}
	line, err := in.opts.Input(prompt)
	switch {
	case errors.Is(err, ErrEndOfInput):
		return nil, &pyError{class: EOFErrorClass, msg: err.Error(), cause: err}
	case errors.Is(err, ErrOutputLimit):
		return nil, outputError(err)
	case err != nil:
		return nil, err
	}
	return line, nil
}

func (in *Interp) length(v Value) (int64, error) {
	switch x := v.(type) {
	case string:
		if isASCII(x) {
			return int64(len(x)), nil
		}
		return int64(len([]rune(x))), nil
	case *List:
		return int64(len(x.items)), nil
	case *Tuple:
		return int64(len(x.items)), nil
	case *Dict:
		return int64(len(x.keys)), nil
	case *Set:
		return int64(len(x.items)), nil
	case *Deque:
		return int64(len(x.items)), nil
	case *Range:
		return x.Len(), nil
	case *View:
		return int64(len(x.dict.keys)), nil
	case *Instance:
		if res, ok, err := in.callDunder(x, "__len__"); ok {
			if err != nil {
				return 0, err
			}
			n, isInt := asInt(res)
			if !isInt {
				return 0, newErr(TypeErrorClass, "'%s' object cannot be interpreted as an integer", typeName(res))
			}
			if n < 0 {
				return 0, newErr(ValueErrorClass, "__len__() should return >= 0")
			}
			return n, nil
		}
	}
	return 0, newErr(TypeErrorClass, "object of type '%s' has no len()", typeName(v))
}

func builtinLen(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("len", args, 1, 1); err != nil {
		return nil, err
	}
	return in.length(args[0])
}

func builtinAbs(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("abs", args, 1, 1); err != nil {
		return nil, err
	}
	switch x := args[0].(type) {
	case *big.Int:
		return normInt(new(big.Int).Abs(x)), nil
	case bool, int64:
		n, _ := asInt(x)
		if n == math.MinInt64 {
			return new(big.Int).Neg(big.NewInt(n)), nil
		}
		if n < 0 {
			n = -n
		}
		return n, nil
	case float64:
		return math.Abs(x), nil
	case *Instance:
		if res, ok, err := in.callDunder(x, "__abs__"); ok {
			return res, err
		}
	}
	return nil, newErr(TypeErrorClass, "bad operand type for abs(): '%s'", typeName(args[0]))
}

// extreme implements min and max.
func (in *Interp) extreme(name string, args []Value, kw map[string]Value) (Value, error) {
	key, hasDefault := kw["key"], false
	var def Value
	for k, v := range kw {
		switch k {
		case "key":
		case "default":
			def, hasDefault = v, true
		default:
			return nil, newErr(TypeErrorClass, "%s() got an unexpected keyword argument '%s'", name, k)
		}
	}
	if len(args) == 0 {
		return nil, newErr(TypeErrorClass, "%s expected at least 1 argument, got 0", name)
	}
	items := args
	if len(args) == 1 {
		var err error
		if items, err = in.toSlice(args[0]); err != nil {
			return nil, err
		}
	} else if hasDefault {
		return nil, newErr(TypeErrorClass, "Cannot specify a default for %s() with multiple positional arguments", name)
	}
	if len(items) == 0 {
		if hasDefault {
			return def, nil
		}
		return nil, newErr(ValueErrorClass, "%s() arg is an empty sequence", name)
	}
	best := items[0]
	bestKey, err := in.keyOf(key, best)
	if err != nil {
		return nil, err
	}
	for _, item := range items[1:] {
		k, err := in.keyOf(key, item)
		if err != nil {
			return nil, err
		}
		var better bool
		if name == "min" {
			better, err = in.less(k, bestKey)
		} else {
			better, err = in.less(bestKey, k)
		}
		if err != nil {
			return nil, err
		}
		if better {
			best, bestKey = item, k
		}
	}
	return best, nil
}

func (in *Interp) keyOf(key, v Value) (Value, error) {
	if key == nil {
		return v, nil
	}
	return in.call(key, []Value{v}, nil)
}

func builtinSum(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("sum", args, 1, 2); err != nil {
		return nil, err
	}
	total := Value(int64(0))
	if len(args) == 2 {
		total = args[1]
	} else if s, ok := kw["start"]; ok {
		total = s
	}
	if _, ok := total.(string); ok {
		return nil, newErr(TypeErrorClass, "sum() can't sum strings [use ''.join(seq) instead]")
	}
	err := in.iterate(args[0], func(item Value) (bool, error) {
		var err error
		total, err = in.binop("+", total, item, false)
		return err == nil, err
	})
	return total, err
}

// sortValues sorts items in place. The sort is stable, and a failing
// comparison leaves items unchanged.
func (in *Interp) sortValues(items []Value, key Value, reverse bool) error {
	keys := items
	if key != nil {
		keys = make([]Value, len(items))
		for i, item := range items {
			k, err := in.call(key, []Value{item}, nil)
			if err != nil {
				return err
			}
			keys[i] = k
		}
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	var cmpErr error
	sort.SliceStable(idx, func(i, j int) bool {
		if cmpErr != nil {
			return false
		}
		a, b := keys[idx[i]], keys[idx[j]]
		if reverse {
			a, b = b, a
		}
		lt, err := in.less(a, b)
		if err != nil {
			cmpErr = err
		}
		return lt
	})
	if cmpErr != nil {
		return cmpErr
	}
	copy(items, pick(items, idx))
	return nil
}

func sortOptions(in *Interp, kw map[string]Value) (key Value, reverse bool, err error) {
	for k, v := range kw {
		switch k {
		case "key":
			key = v
		case "reverse":
			if reverse, err = in.truth(v); err != nil {
				return nil, false, err
			}
		default:
			return nil, false, newErr(TypeErrorClass, "'%s' is an invalid keyword argument for sort()", k)
		}
	}
	return key, reverse, nil
}

func builtinSorted(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("sorted", args, 1, 1); err != nil {
		return nil, err
	}
	items, err := in.toSlice(args[0])
	if err != nil {
		return nil, err
	}
	key, reverse, err := sortOptions(in, kw)
	if err != nil {
		return nil, err
	}
	if err := in.sortValues(items, key, reverse); err != nil {
		return nil, err
	}
	return in.newList(items), nil
}

func (in *Interp) newIterator(kind string, items []Value) *Iterator {
	return &Iterator{object: in.alloc(), kind: kind, items: items}
}

func builtinReversed(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("reversed", args, 1, 1); err != nil {
		return nil, err
	}
	switch args[0].(type) {
	case *List, *Tuple, string, *Range, *Deque, *Dict, *View:
	case *Instance:
		if res, ok, err := in.callDunder(args[0], "__reversed__"); ok {
			return res, err
		}
		return nil, newErr(TypeErrorClass, "'%s' object is not reversible", typeName(args[0]))
	default:
		return nil, newErr(TypeErrorClass, "'%s' object is not reversible", typeName(args[0]))
	}
	items, err := in.toSlice(args[0])
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return in.newIterator("reversed", items), nil
}

func builtinEnumerate(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("enumerate", args, 1, 2); err != nil {
		return nil, err
	}
	start := int64(0)
	startArg, ok := kw["start"]
	if len(args) == 2 {
		startArg, ok = args[1], true
	}
	if ok {
		n, isInt := asInt(startArg)
		if !isInt {
			return nil, newErr(TypeErrorClass, "'%s' object cannot be interpreted as an integer", typeName(startArg))
		}
		start = n
	}
	items, err := in.toSlice(args[0])
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(items))
	for i, item := range items {
		out[i] = in.newTuple([]Value{start + int64(i), item})
	}
	return in.newIterator("enumerate", out), nil
}

func builtinZip(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	cols := make([][]Value, len(args))
	n := -1
	for i, a := range args {
		items, err := in.toSlice(a)
		if err != nil {
			if exceptionClass(err) == TypeErrorClass {
				return nil, newErr(TypeErrorClass, "zip argument #%d must support iteration", i+1)
			}
			return nil, err
		}
		cols[i] = items
		if n < 0 || len(items) < n {
			n = len(items)
		}
	}
	if n < 0 {
		n = 0
	}
	out := make([]Value, n)
	for i := range out {
		row := make([]Value, len(cols))
		for j := range cols {
			row[j] = cols[j][i]
		}
		out[i] = in.newTuple(row)
	}
	return in.newIterator("zip", out), nil
}

func builtinMap(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if len(args) < 2 {
		return nil, newErr(TypeErrorClass, "map() must have at least two arguments.")
	}
	zipped, err := builtinZip(in, args[1:], nil)
	if err != nil {
		return nil, err
	}
	rows := zipped.(*Iterator).items
	out := make([]Value, len(rows))
	for i, row := range rows {
		v, err := in.call(args[0], row.(*Tuple).items, nil)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return in.newIterator("map", out), nil
}

func builtinFilter(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("filter", args, 2, 2); err != nil {
		return nil, err
	}
	var out []Value
	err := in.iterate(args[1], func(item Value) (bool, error) {
		v := item
		if args[0] != nil {
			var err error
			if v, err = in.call(args[0], []Value{item}, nil); err != nil {
				return false, err
			}
		}
		ok, err := in.truth(v)
		if ok {
			out = append(out, item)
		}
		return err == nil, err
	})
	if err != nil {
		return nil, err
	}
	return in.newIterator("filter", out), nil
}

func (in *Interp) anyAll(name string, args []Value, want bool) (Value, error) {
	if err := arity(name, args, 1, 1); err != nil {
		return nil, err
	}
	found := false
	err := in.iterate(args[0], func(item Value) (bool, error) {
		t, err := in.truth(item)
		if err != nil {
			return false, err
		}
		if t == want {
			found = true
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return found == want, nil
}

func classArgs(name string, v Value) ([]*Class, error) {
	switch x := v.(type) {
	case *Class:
		return []*Class{x}, nil
	case *Tuple:
		var out []*Class
		for _, item := range x.items {
			cs, err := classArgs(name, item)
			if err != nil {
				return nil, err
			}
			out = append(out, cs...)
		}
		return out, nil
	}
	return nil, newErr(TypeErrorClass, "%s() arg 2 must be a type or tuple of types", name)
}

func builtinIsinstance(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("isinstance", args, 2, 2); err != nil {
		return nil, err
	}
	classes, err := classArgs("isinstance", args[1])
	if err != nil {
		return nil, err
	}
	c := classOf(args[0])
	for _, k := range classes {
		if c.isSubclass(k) {
			return true, nil
		}
	}
	return false, nil
}

func builtinIssubclass(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("issubclass", args, 2, 2); err != nil {
		return nil, err
	}
	c, ok := args[0].(*Class)
	if !ok {
		return nil, newErr(TypeErrorClass, "issubclass() arg 1 must be a class")
	}
	classes, err := classArgs("issubclass", args[1])
	if err != nil {
		return nil, err
	}
	for _, k := range classes {
		if c.isSubclass(k) {
			return true, nil
		}
	}
	return false, nil
}

func builtinOrd(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("ord", args, 1, 1); err != nil {
		return nil, err
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, newErr(TypeErrorClass, "ord() expected string of length 1, but %s found", typeName(args[0]))
	}
	rs := []rune(s)
	if len(rs) != 1 {
		return nil, newErr(TypeErrorClass, "ord() expected a character, but string of length %d found", len(rs))
	}
	return int64(rs[0]), nil
}

func builtinChr(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("chr", args, 1, 1); err != nil {
		return nil, err
	}
	n, ok := asInt(args[0])
	if !ok {
		return nil, newErr(TypeErrorClass, "'%s' object cannot be interpreted as an integer", typeName(args[0]))
	}
	if n < 0 || n > 0x10ffff {
		return nil, newErr(ValueErrorClass, "chr() arg not in range(0x110000)")
	}
	return string(rune(n)), nil
}

func builtinRound(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("round", args, 1, 2); err != nil {
		return nil, err
	}
	var nd Value
	if len(args) == 2 {
		nd = args[1]
	} else if v, ok := kw["ndigits"]; ok {
		nd = v
	}
	switch x := args[0].(type) {
	case bool, int64:
		n, _ := asInt(x)
		if nd == nil {
			return n, nil
		}
		d, ok := asInt(nd)
		if !ok {
			return nil, newErr(TypeErrorClass, "'%s' object cannot be interpreted as an integer", typeName(nd))
		}
		if d >= 0 {
			return n, nil
		}
		if d < -18 {
			return int64(0), nil
		}
		p := int64(math.Pow10(int(-d)))
		q, r := n/p, n%p
		if r < 0 {
			q, r = q-1, r+p
		}
		if 2*r > p || (2*r == p && q%2 != 0) {
			q++
		}
		return q * p, nil
	case float64:
		if nd == nil {
			return floatToInt(math.RoundToEven(x))
		}
		d, ok := asInt(nd)
		if !ok {
			return nil, newErr(TypeErrorClass, "'%s' object cannot be interpreted as an integer", typeName(nd))
		}
		if math.IsInf(x, 0) || math.IsNaN(x) || d > 300 {
			return x, nil
		}
		if d < -308 {
			return math.Copysign(0, x), nil
		}
		if d < 0 {
			p := math.Pow10(int(-d))
			return math.RoundToEven(x/p) * p, nil
		}
		f, _ := strconv.ParseFloat(strconv.FormatFloat(x, 'f', int(d), 64), 64)
		return f, nil
	case *Instance:
		if res, ok, err := in.callDunder(x, "__round__"); ok {
			return res, err
		}
	}
	return nil, newErr(TypeErrorClass, "type %s doesn't define __round__ method", typeName(args[0]))
}

func builtinDivmod(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("divmod", args, 2, 2); err != nil {
		return nil, err
	}
	q, err := in.binop("//", args[0], args[1], false)
	if err != nil {
		return nil, err
	}
	r, err := in.binop("%", args[0], args[1], false)
	if err != nil {
		return nil, err
	}
	return in.newTuple([]Value{q, r}), nil
}

func builtinPow(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("pow", args, 2, 3); err != nil {
		return nil, err
	}
	if len(args) == 2 || args[2] == nil {
		return in.binop("**", args[0], args[1], false)
	}
	if eitherBig(args[0], args[1]) || eitherBig(args[2], nil) {
		return powModBig(args[0], args[1], args[2])
	}
	base, ok1 := asInt(args[0])
	exp, ok2 := asInt(args[1])
	mod, ok3 := asInt(args[2])
	if !ok1 || !ok2 || !ok3 {
		return nil, newErr(TypeErrorClass, "pow() 3rd argument not allowed unless all arguments are integers")
	}
	if mod == 0 {
		return nil, newErr(ValueErrorClass, "pow() 3rd argument cannot be 0")
	}
	if exp < 0 {
		return nil, newErr(ValueErrorClass, "base is not invertible for the given modulus")
	}
	m := mod
	if m < 0 {
		m = -m
	}
	result, b := int64(1)%m, ((base%m)+m)%m
	for exp > 0 {
		if exp&1 == 1 {
			result = mulMod(result, b, m)
		}
		b = mulMod(b, b, m)
		exp >>= 1
	}
	if mod < 0 && result != 0 {
		result += mod
	}
	return result, nil
}

func powModBig(base, exp, mod Value) (Value, error) {
	b, ok1 := toBig(base)
	e, ok2 := toBig(exp)
	m, ok3 := toBig(mod)
	if !ok1 || !ok2 || !ok3 {
		return nil, newErr(TypeErrorClass, "pow() 3rd argument not allowed unless all arguments are integers")
	}
	if m.Sign() == 0 {
		return nil, newErr(ValueErrorClass, "pow() 3rd argument cannot be 0")
	}
	if e.Sign() < 0 {
		return nil, newErr(ValueErrorClass, "base is not invertible for the given modulus")
	}
	abs := new(big.Int).Abs(m)
	r := new(big.Int).Exp(new(big.Int).Mod(b, abs), e, abs)
	if m.Sign() < 0 && r.Sign() != 0 {
		r.Add(r, m)
	}
	return normInt(r), nil
}

// mulMod computes a*b mod m for 0 <= a, b < m without overflow.
func mulMod(a, b, m int64) int64 {
	var result int64
	a %= m
	for b > 0 {
		if b&1 == 1 {
			result = (result + a) % m
		}
		a = (a * 2) % m
		b >>= 1
	}
	return result
}

func builtinRepr(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("repr", args, 1, 1); err != nil {
		return nil, err
	}
	return in.repr(args[0])
}

func radix(name string, args []Value, base int, prefix string) (Value, error) {
	if err := arity(name, args, 1, 1); err != nil {
		return nil, err
	}
	if b, ok := args[0].(*big.Int); ok {
		if b.Sign() < 0 {
			return "-" + prefix + new(big.Int).Neg(b).Text(base), nil
		}
		return prefix + b.Text(base), nil
	}
	n, ok := asInt(args[0])
	if !ok {
		return nil, newErr(TypeErrorClass, "'%s' object cannot be interpreted as an integer", typeName(args[0]))
	}
	if n < 0 {
		return "-" + prefix + strconv.FormatUint(-uint64(n), base), nil
	}
	return prefix + strconv.FormatInt(n, base), nil
}

func builtinID(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("id", args, 1, 1); err != nil {
		return nil, err
	}
	if o, ok := args[0].(interface{ ObjectID() uint64 }); ok {
		return int64(o.ObjectID()), nil
	}
	k, _ := hashKey(args[0])
	return int64(fnvHash(k) >> 1), nil
}

func fnvHash(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func builtinHash(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("hash", args, 1, 1); err != nil {
		return nil, err
	}
	switch x := args[0].(type) {
	case bool, int64:
		n, _ := asInt(x)
		return n, nil
	case *big.Int:
		// Reduced modulo the Mersenne prime 2**61-1 like CPython.
		m := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 61), big.NewInt(1))
		r := new(big.Int).Mod(new(big.Int).Abs(x), m).Int64()
		if x.Sign() < 0 {
			r = -r
		}
		return r, nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 9e18 {
			return int64(x), nil
		}
	}
	k, err := hashKey(args[0])
	if err != nil {
		return nil, err
	}
	return int64(fnvHash(k)), nil
}

func builtinIter(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("iter", args, 1, 1); err != nil {
		return nil, err
	}
	switch x := args[0].(type) {
	case *Iterator:
		return x, nil
	case *Instance:
		if res, ok, err := in.callDunder(x, "__iter__"); ok {
			return res, err
		}
	}
	items, err := in.toSlice(args[0])
	if err != nil {
		return nil, err
	}
	return in.newIterator(typeName(args[0])+"_iterator", items), nil
}

func builtinNext(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("next", args, 1, 2); err != nil {
		return nil, err
	}
	switch x := args[0].(type) {
	case *Iterator:
		if x.pos < len(x.items) {
			x.pos++
			return x.items[x.pos-1], nil
		}
		if len(args) == 2 {
			return args[1], nil
		}
		return nil, &pyError{class: StopIterationClass}
	case *Instance:
		res, ok, err := in.callDunder(x, "__next__")
		if ok {
			if err != nil && len(args) == 2 && exceptionClass(err) != nil && exceptionClass(err).isSubclass(StopIterationClass) {
				return args[1], nil
			}
			return res, err
		}
	}
	return nil, newErr(TypeErrorClass, "'%s' object is not an iterator", typeName(args[0]))
}

func builtinCallable(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("callable", args, 1, 1); err != nil {
		return nil, err
	}
	return callable(args[0]), nil
}

func attrName(fn string, v Value) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", newErr(TypeErrorClass, "%s(): attribute name must be string", fn)
	}
	return s, nil
}

func builtinHasattr(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("hasattr", args, 2, 2); err != nil {
		return nil, err
	}
	name, err := attrName("hasattr", args[1])
	if err != nil {
		return nil, err
	}
	if _, err := in.getattr(args[0], name); err != nil {
		if exceptionClass(err) == AttributeErrorClass {
			return false, nil
		}
		return nil, err
	}
	return true, nil
}

func builtinGetattr(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("getattr", args, 2, 3); err != nil {
		return nil, err
	}
	name, err := attrName("getattr", args[1])
	if err != nil {
		return nil, err
	}
	v, err := in.getattr(args[0], name)
	if err != nil && len(args) == 3 && exceptionClass(err) == AttributeErrorClass {
		return args[2], nil
	}
	return v, err
}

func builtinSetattr(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("setattr", args, 3, 3); err != nil {
		return nil, err
	}
	name, err := attrName("setattr", args[1])
	if err != nil {
		return nil, err
	}
	return nil, in.setattr(args[0], name, args[2])
}

func builtinFormat(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if err := arity("format", args, 1, 2); err != nil {
		return nil, err
	}
	spec := ""
	if len(args) == 2 {
		s, ok := args[1].(string)
		if !ok {
			return nil, newErr(TypeErrorClass, "format() argument 2 must be str, not %s", typeName(args[1]))
		}
		spec = s
	}
	return in.applySpec(args[0], spec)
}

// builtinSuper handles the explicit two-argument form. The zero-argument
// form is resolved at the call site, where the calling frame is known.
func builtinSuper(in *Interp, args []Value, kw map[string]Value) (Value, error) {
	if len(args) == 0 {
		return nil, newErr(RuntimeErrorClass, "super(): no arguments")
	}
	if err := arity("super", args, 2, 2); err != nil {
		return nil, err
	}
	cls, ok := args[0].(*Class)
	if !ok {
		return nil, newErr(TypeErrorClass, "super() argument 1 must be a type, not %s", typeName(args[0]))
	}
	if !classOf(args[1]).isSubclass(cls) {
		return nil, newErr(TypeErrorClass, "super(type, obj): obj must be an instance or subtype of type")
	}
	return &superProxy{object: in.alloc(), class: cls, self: args[1]}, nil
}

func sortedKeys(kw map[string]Value) []string {
	keys := make([]string, 0, len(kw))
	for k := range kw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
