package pylite

import (
	"math"
	"math/big"
)

// importModule returns the named module, building it on first import.
func (in *Interp) importModule(name string) (*Module, error) {
	if m, ok := in.modules[name]; ok {
		return m, nil
	}
	build, ok := stdModules[name]
	if !ok {
		return nil, newErr(ModuleNotFoundErrorClass, "No module named '%s'", name)
	}
	m := &Module{object: in.alloc(), Name: name, attrs: newScope(nil)}
	for _, e := range build(in) {
		m.attrs.set(e.Name, e.Value)
	}
	in.modules[name] = m
	return m, nil
}

var stdModules map[string]func(in *Interp) []Binding

func init() {
	stdModules = map[string]func(in *Interp) []Binding{
		"math":        mathModule,
		"random":      randomModule,
		"collections": collectionsModule,
		"heapq":       heapqModule,
		"string":      stringModule,
	}
}

func moduleFunc(name string, f BuiltinFunc) Binding {
	return Binding{Name: name, Value: &Builtin{Name: name, fn: f}}
}

func errDomain() error { return newErr(ValueErrorClass, "math domain error") }

func realArg(name string, v Value) (float64, error) {
	f, ok := asFloat(v)
	if !ok {
		return 0, newErr(TypeErrorClass, "must be real number, not %s", typeName(v))
	}
	return f, nil
}

func intArg(v Value) (int64, error) {
	n, ok := asInt(v)
	if !ok {
		return 0, newErr(TypeErrorClass, "'%s' object cannot be interpreted as an integer", typeName(v))
	}
	return n, nil
}

// unaryMath wraps a float function, rejecting results that signal a domain
// error.
func unaryMath(name string, f func(float64) float64) Binding {
	return moduleFunc(name, func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
		if err := arity(name, args, 1, 1); err != nil {
			return nil, err
		}
		x, err := realArg(name, args[0])
		if err != nil {
			return nil, err
		}
		r := f(x)
		if math.IsNaN(r) && !math.IsNaN(x) {
			return nil, errDomain()
		}
		if math.IsInf(r, 0) && !math.IsInf(x, 0) {
			return nil, newErr(OverflowErrorClass, "math range error")
		}
		return r, nil
	})
}

func rounding(name string, f func(float64) float64) Binding {
	return moduleFunc(name, func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
		if err := arity(name, args, 1, 1); err != nil {
			return nil, err
		}
		if n, ok := asInt(args[0]); ok {
			return n, nil
		}
		x, err := realArg(name, args[0])
		if err != nil {
			return nil, err
		}
		return floatToInt(f(x))
	})
}

func mathModule(in *Interp) []Binding {
	return []Binding{
		{Name: "pi", Value: math.Pi},
		{Name: "e", Value: math.E},
		{Name: "tau", Value: 2 * math.Pi},
		{Name: "inf", Value: math.Inf(1)},
		{Name: "nan", Value: math.NaN()},
		unaryMath("sqrt", math.Sqrt),
		unaryMath("exp", math.Exp),
		unaryMath("log2", math.Log2),
		unaryMath("log10", math.Log10),
		unaryMath("sin", math.Sin),
		unaryMath("cos", math.Cos),
		unaryMath("tan", math.Tan),
		unaryMath("asin", math.Asin),
		unaryMath("acos", math.Acos),
		unaryMath("atan", math.Atan),
		unaryMath("fabs", math.Abs),
		unaryMath("degrees", func(x float64) float64 { return x * 180 / math.Pi }),
		unaryMath("radians", func(x float64) float64 { return x * math.Pi / 180 }),
		rounding("floor", math.Floor),
		rounding("ceil", math.Ceil),
		rounding("trunc", math.Trunc),
		moduleFunc("log", func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
			if err := arity("log", args, 1, 2); err != nil {
				return nil, err
			}
			x, err := realArg("log", args[0])
			if err != nil {
				return nil, err
			}
			if x <= 0 {
				return nil, errDomain()
			}
			if len(args) == 1 {
				return math.Log(x), nil
			}
			base, err := realArg("log", args[1])
			if err != nil {
				return nil, err
			}
			if base <= 0 || base == 1 {
				return nil, errDomain()
			}
			return math.Log(x) / math.Log(base), nil
		}),
		moduleFunc("pow", func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
			if err := arity("pow", args, 2, 2); err != nil {
				return nil, err
			}
			x, err := realArg("pow", args[0])
			if err != nil {
				return nil, err
			}
			y, err := realArg("pow", args[1])
			if err != nil {
				return nil, err
			}
			r := math.Pow(x, y)
			if math.IsNaN(r) {
				return nil, errDomain()
			}
			return r, nil
		}),
		moduleFunc("atan2", func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
			if err := arity("atan2", args, 2, 2); err != nil {
				return nil, err
			}
			y, err := realArg("atan2", args[0])
			if err != nil {
				return nil, err
			}
			x, err := realArg("atan2", args[1])
			if err != nil {
				return nil, err
			}
			return math.Atan2(y, x), nil
		}),
		moduleFunc("hypot", func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
			sum := 0.0
			for _, a := range args {
				x, err := realArg("hypot", a)
				if err != nil {
					return nil, err
				}
				sum = math.Hypot(sum, x)
			}
			return sum, nil
		}),
		moduleFunc("factorial", func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
			if err := arity("factorial", args, 1, 1); err != nil {
				return nil, err
			}
			n, err := intArg(args[0])
			if err != nil {
				return nil, err
			}
			if n < 0 {
				return nil, newErr(ValueErrorClass, "factorial() not defined for negative values")
			}
			if n > 20000 {
				return nil, newErr(MemoryErrorClass, "integer result too large")
			}
			return normInt(new(big.Int).MulRange(1, n)), nil
		}),
		moduleFunc("gcd", func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
			g := int64(0)
			for _, a := range args {
				n, err := intArg(a)
				if err != nil {
					return nil, err
				}
				g = gcd(g, n)
			}
			return g, nil
		}),
		moduleFunc("isqrt", func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
			if err := arity("isqrt", args, 1, 1); err != nil {
				return nil, err
			}
			n, err := intArg(args[0])
			if err != nil {
				return nil, err
			}
			if n < 0 {
				return nil, newErr(ValueErrorClass, "isqrt() argument must be nonnegative")
			}
			r := int64(math.Sqrt(float64(n)))
			for r*r > n {
				r--
			}
			for (r+1)*(r+1) <= n {
				r++
			}
			return r, nil
		}),
		moduleFunc("isinf", func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
			if err := arity("isinf", args, 1, 1); err != nil {
				return nil, err
			}
			x, err := realArg("isinf", args[0])
			return math.IsInf(x, 0), err
		}),
		moduleFunc("isnan", func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
			if err := arity("isnan", args, 1, 1); err != nil {
				return nil, err
			}
			x, err := realArg("isnan", args[0])
			return math.IsNaN(x), err
		}),
	}
}

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// randomModule draws from the interpreter's seeded source, so identical
// runs see identical values.
func randomModule(in *Interp) []Binding {
	between := func(lo, hi int64) (int64, error) {
		if hi < lo {
			return 0, newErr(ValueErrorClass, "empty range in randrange(%d, %d)", lo, hi+1)
		}
		return lo + in.rng.Int63n(hi-lo+1), nil
	}
	return []Binding{
		moduleFunc("seed", func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
			var seed int64
			if len(args) > 0 {
				if n, ok := asInt(args[0]); ok {
					seed = n
				} else if k, err := hashKey(args[0]); err == nil {
					seed = int64(fnvHash(k))
				}
			}
			in.rng.Seed(seed)
			return nil, nil
		}),
		moduleFunc("random", func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
			return in.rng.Float64(), nil
		}),
		moduleFunc("uniform", func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
			if err := arity("uniform", args, 2, 2); err != nil {
				return nil, err
			}
			a, err := realArg("uniform", args[0])
			if err != nil {
				return nil, err
			}
			b, err := realArg("uniform", args[1])
			if err != nil {
				return nil, err
			}
			return a + (b-a)*in.rng.Float64(), nil
		}),
		moduleFunc("randint", func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
			if err := arity("randint", args, 2, 2); err != nil {
				return nil, err
			}
			a, err := intArg(args[0])
			if err != nil {
				return nil, err
			}
			b, err := intArg(args[1])
			if err != nil {
				return nil, err
			}
			return between(a, b)
		}),
		moduleFunc("randrange", func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
			r, err := rangeCtor(in, args, nil)
			if err != nil {
				return nil, err
			}
			rg := r.(*Range)
			n := rg.Len()
			if n == 0 {
				return nil, newErr(ValueErrorClass, "empty range for randrange()")
			}
			return rg.at(in.rng.Int63n(n)), nil
		}),
		moduleFunc("choice", func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
			if err := arity("choice", args, 1, 1); err != nil {
				return nil, err
			}
			n, err := in.length(args[0])
			if err != nil {
				return nil, err
			}
			if n == 0 {
				return nil, newErr(IndexErrorClass, "Cannot choose from an empty sequence")
			}
			return in.getitem(args[0], in.rng.Int63n(n))
		}),
		moduleFunc("shuffle", func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
			if err := arity("shuffle", args, 1, 1); err != nil {
				return nil, err
			}
			l, ok := args[0].(*List)
			if !ok {
				return nil, newErr(TypeErrorClass, "'%s' object does not support item assignment", typeName(args[0]))
			}
			in.rng.Shuffle(len(l.items), func(i, j int) { l.items[i], l.items[j] = l.items[j], l.items[i] })
			return nil, nil
		}),
		moduleFunc("sample", func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
			if err := arity("sample", args, 2, 2); err != nil {
				return nil, err
			}
			pop, err := in.toSlice(args[0])
			if err != nil {
				return nil, err
			}
			k, err := intArg(args[1])
			if err != nil {
				return nil, err
			}
			if k < 0 || k > int64(len(pop)) {
				return nil, newErr(ValueErrorClass, "Sample larger than population or is negative")
			}
			perm := in.rng.Perm(len(pop))
			out := make([]Value, k)
			for i := range out {
				out[i] = pop[perm[i]]
			}
			return in.newList(out), nil
		}),
	}
}

func collectionsModule(in *Interp) []Binding {
	return []Binding{
		{Name: "deque", Value: dequeClass},
		{Name: "defaultdict", Value: defaultdictClass},
		{Name: "OrderedDict", Value: dictClass},
	}
}

func heapList(name string, v Value) (*List, error) {
	l, ok := v.(*List)
	if !ok {
		return nil, newErr(TypeErrorClass, "%s() argument 1 must be list, not %s", name, typeName(v))
	}
	return l, nil
}

func (in *Interp) siftDown(h []Value, start, pos int) error {
	item := h[pos]
	for pos > start {
		parent := (pos - 1) / 2
		lt, err := in.less(item, h[parent])
		if err != nil {
			return err
		}
		if !lt {
			break
		}
		h[pos] = h[parent]
		pos = parent
	}
	h[pos] = item
	return nil
}

func (in *Interp) siftUp(h []Value, pos int) error {
	end, start, item := len(h), pos, h[pos]
	child := 2*pos + 1
	for child < end {
		if right := child + 1; right < end {
			lt, err := in.less(h[child], h[right])
			if err != nil {
				return err
			}
			if !lt {
				child = right
			}
		}
		h[pos] = h[child]
		pos = child
		child = 2*pos + 1
	}
	h[pos] = item
	return in.siftDown(h, start, pos)
}

func heapqModule(in *Interp) []Binding {
	return []Binding{
		moduleFunc("heappush", func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
			if err := arity("heappush", args, 2, 2); err != nil {
				return nil, err
			}
			l, err := heapList("heappush", args[0])
			if err != nil {
				return nil, err
			}
			l.items = append(l.items, args[1])
			return nil, in.siftDown(l.items, 0, len(l.items)-1)
		}),
		moduleFunc("heappop", func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
			if err := arity("heappop", args, 1, 1); err != nil {
				return nil, err
			}
			l, err := heapList("heappop", args[0])
			if err != nil {
				return nil, err
			}
			if len(l.items) == 0 {
				return nil, newErr(IndexErrorClass, "index out of range")
			}
			last := l.items[len(l.items)-1]
			l.items = l.items[:len(l.items)-1]
			if len(l.items) == 0 {
				return last, nil
			}
			top := l.items[0]
			l.items[0] = last
			return top, in.siftUp(l.items, 0)
		}),
		moduleFunc("heapify", func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
			if err := arity("heapify", args, 1, 1); err != nil {
				return nil, err
			}
			l, err := heapList("heapify", args[0])
			if err != nil {
				return nil, err
			}
			for i := len(l.items)/2 - 1; i >= 0; i-- {
				if err := in.siftUp(l.items, i); err != nil {
					return nil, err
				}
			}
			return nil, nil
		}),
		moduleFunc("nsmallest", func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
			return in.nExtreme("nsmallest", args, kw, false)
		}),
		moduleFunc("nlargest", func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
			return in.nExtreme("nlargest", args, kw, true)
		}),
	}
}

func (in *Interp) nExtreme(name string, args []Value, kw map[string]Value, largest bool) (Value, error) {
	if err := arity(name, args, 2, 2); err != nil {
		return nil, err
	}
	n, err := intArg(args[0])
	if err != nil {
		return nil, err
	}
	items, err := in.toSlice(args[1])
	if err != nil {
		return nil, err
	}
	if err := in.sortValues(items, kw["key"], largest); err != nil {
		return nil, err
	}
	if n < 0 {
		n = 0
	}
	if n < int64(len(items)) {
		items = items[:n]
	}
	return in.newList(items), nil
}

func stringModule(in *Interp) []Binding {
	const lower, upper, digits = "abcdefghijklmnopqrstuvwxyz", "ABCDEFGHIJKLMNOPQRSTUVWXYZ", "0123456789"
	return []Binding{
		{Name: "ascii_lowercase", Value: lower},
		{Name: "ascii_uppercase", Value: upper},
		{Name: "ascii_letters", Value: lower + upper},
		{Name: "digits", Value: digits},
		{Name: "hexdigits", Value: digits + "abcdefABCDEF"},
		{Name: "punctuation", Value: "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"},
	}
}
