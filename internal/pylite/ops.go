package pylite

import (
	"math"
	"math/big"
	"strings"
	"unicode/utf8"
)

func asInt(v Value) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func asFloat(v Value) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case *big.Int:
		f, _ := new(big.Float).SetInt(x).Float64()
		return f, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// eitherBig reports whether a or b is an integer too large for int64.
func eitherBig(a, b Value) bool {
	_, aBig := a.(*big.Int)
	_, bBig := b.(*big.Int)
	return aBig || bBig
}

func isInstance(v Value) bool {
	_, ok := v.(*Instance)
	return ok
}

var binopDunders = map[string][2]string{
	"+":  {"__add__", "__radd__"},
	"-":  {"__sub__", "__rsub__"},
	"*":  {"__mul__", "__rmul__"},
	"/":  {"__truediv__", "__rtruediv__"},
	"//": {"__floordiv__", "__rfloordiv__"},
	"%":  {"__mod__", "__rmod__"},
	"**": {"__pow__", "__rpow__"},
	"&":  {"__and__", "__rand__"},
	"|":  {"__or__", "__ror__"},
	"^":  {"__xor__", "__rxor__"},
	"<<": {"__lshift__", "__rlshift__"},
	">>": {"__rshift__", "__rrshift__"},
}

func errUnsupported(op string, a, b Value) error {
	return newErr(TypeErrorClass, "unsupported operand type(s) for %s: '%s' and '%s'", op, typeName(a), typeName(b))
}

// binop applies a binary operator. inplace selects the mutating form used by
// augmented assignment on lists and sets.
func (in *Interp) binop(op string, a, b Value, inplace bool) (Value, error) {
	if isInstance(a) || isInstance(b) {
		names := binopDunders[op]
		if res, ok, err := in.callDunder(a, names[0], b); ok {
			return res, err
		}
		if res, ok, err := in.callDunder(b, names[1], a); ok {
			return res, err
		}
		return nil, errUnsupported(op, a, b)
	}

	ai, aInt := asInt(a)
	bi, bInt := asInt(b)
	if aInt && bInt {
		_, aBool := a.(bool)
		_, bBool := b.(bool)
		if aBool && bBool {
			switch op {
			case "&":
				return ai&bi == 1, nil
			case "|":
				return ai|bi == 1, nil
			case "^":
				return ai^bi == 1, nil
			}
		}
		return intOp(op, ai, bi)
	}
	if eitherBig(a, b) {
		if x, ok := toBig(a); ok {
			if y, ok := toBig(b); ok {
				return bigOp(op, x, y)
			}
		}
		if x, ok := a.(*big.Int); ok {
			if y, ok := b.(float64); ok {
				f, err := bigFloat(x)
				if err != nil {
					return nil, err
				}
				return floatOp(op, f, y)
			}
		}
		if y, ok := b.(*big.Int); ok {
			if x, ok := a.(float64); ok {
				f, err := bigFloat(y)
				if err != nil {
					return nil, err
				}
				return floatOp(op, x, f)
			}
		}
		if op == "*" {
			return nil, newErr(OverflowErrorClass, "cannot fit 'int' into an index-sized integer")
		}
	}
	af, aNum := asFloat(a)
	bf, bNum := asFloat(b)
	if aNum && bNum {
		return floatOp(op, af, bf)
	}

	switch op {
	case "+":
		return in.concat(a, b, inplace)
	case "*":
		if n, ok := asInt(b); ok {
			return in.repeat(a, n)
		}
		if n, ok := asInt(a); ok {
			return in.repeat(b, n)
		}
	case "%":
		if s, ok := a.(string); ok {
			return in.percentFormat(s, b)
		}
	case "-", "|", "&", "^":
		if sa, ok := a.(*Set); ok {
			if sb, ok := b.(*Set); ok {
				return in.setOp(op, sa, sb, inplace)
			}
		}
		if da, ok := a.(*Dict); ok && op == "|" {
			if db, ok := b.(*Dict); ok {
				out := da
				if !inplace {
					out = in.copyDict(da)
				}
				for i, k := range db.keys {
					if err := out.set(k, db.vals[i]); err != nil {
						return nil, err
					}
				}
				return out, nil
			}
		}
	}
	return nil, errUnsupported(op, a, b)
}

func (in *Interp) concat(a, b Value, inplace bool) (Value, error) {
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return nil, newErr(TypeErrorClass, "can only concatenate str (not \"%s\") to str", typeName(b))
		}
		if len(x)+len(y) > MaxCollectionLen {
			return nil, errMemory
		}
		return x + y, nil
	case *List:
		if inplace {
			items, err := in.toSlice(b)
			if err != nil {
				return nil, err
			}
			if len(x.items)+len(items) > MaxCollectionLen {
				return nil, errMemory
			}
			x.items = append(x.items, items...)
			return x, nil
		}
		y, ok := b.(*List)
		if !ok {
			return nil, newErr(TypeErrorClass, "can only concatenate list (not \"%s\") to list", typeName(b))
		}
		if len(x.items)+len(y.items) > MaxCollectionLen {
			return nil, errMemory
		}
		items := make([]Value, 0, len(x.items)+len(y.items))
		return in.newList(append(append(items, x.items...), y.items...)), nil
	case *Tuple:
		y, ok := b.(*Tuple)
		if !ok {
			return nil, newErr(TypeErrorClass, "can only concatenate tuple (not \"%s\") to tuple", typeName(b))
		}
		items := make([]Value, 0, len(x.items)+len(y.items))
		return in.newTuple(append(append(items, x.items...), y.items...)), nil
	case *Deque:
		if inplace {
			items, err := in.toSlice(b)
			if err != nil {
				return nil, err
			}
			for _, it := range items {
				x.push(it)
			}
			return x, nil
		}
	}
	return nil, errUnsupported("+", a, b)
}

func (in *Interp) repeat(seq Value, n int64) (Value, error) {
	if n < 0 {
		n = 0
	}
	switch x := seq.(type) {
	case string:
		if n > 0 && int64(len(x)) > MaxCollectionLen/n {
			return nil, errMemory
		}
		return strings.Repeat(x, int(n)), nil
	case *List:
		items, err := repeatItems(x.items, n)
		if err != nil {
			return nil, err
		}
		return in.newList(items), nil
	case *Tuple:
		items, err := repeatItems(x.items, n)
		if err != nil {
			return nil, err
		}
		return in.newTuple(items), nil
	}
	return nil, errUnsupported("*", seq, n)
}

func repeatItems(items []Value, n int64) ([]Value, error) {
	if len(items) > 0 && n > int64(MaxCollectionLen/len(items)) {
		return nil, errMemory
	}
	out := make([]Value, 0, int64(len(items))*n)
	for i := int64(0); i < n; i++ {
		out = append(out, items...)
	}
	return out, nil
}

func (in *Interp) setOp(op string, a, b *Set, inplace bool) (Value, error) {
	out := a
	if !inplace {
		out = in.newSet()
	}
	var keep []Value
	switch op {
	case "|":
		keep = append(append(keep, a.items...), b.items...)
	case "&":
		for _, v := range a.items {
			if ok, _ := b.has(v); ok {
				keep = append(keep, v)
			}
		}
	case "-":
		for _, v := range a.items {
			if ok, _ := b.has(v); !ok {
				keep = append(keep, v)
			}
		}
	case "^":
		for _, v := range a.items {
			if ok, _ := b.has(v); !ok {
				keep = append(keep, v)
			}
		}
		for _, v := range b.items {
			if ok, _ := a.has(v); !ok {
				keep = append(keep, v)
			}
		}
	}
	out.clear()
	for _, v := range keep {
		if err := out.add(v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// intOp applies op to two int64 operands, promoting to *big.Int when the
// result does not fit.
func intOp(op string, a, b int64) (Value, error) {
	switch op {
	case "+":
		if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
			return bigOp(op, big.NewInt(a), big.NewInt(b))
		}
		return a + b, nil
	case "-":
		if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
			return bigOp(op, big.NewInt(a), big.NewInt(b))
		}
		return a - b, nil
	case "*":
		if r, err := mulInt(a, b); err == nil {
			return r, nil
		}
		return bigOp(op, big.NewInt(a), big.NewInt(b))
	case "/":
		if b == 0 {
			return nil, newErr(ZeroDivisionErrorClass, "division by zero")
		}
		return float64(a) / float64(b), nil
	case "//":
		if b == 0 {
			return nil, newErr(ZeroDivisionErrorClass, "integer division or modulo by zero")
		}
		if a == math.MinInt64 && b == -1 {
			return bigOp(op, big.NewInt(a), big.NewInt(b))
		}
		q := a / b
		if (a%b != 0) && ((a < 0) != (b < 0)) {
			q--
		}
		return q, nil
	case "%":
		if b == 0 {
			return nil, newErr(ZeroDivisionErrorClass, "integer modulo by zero")
		}
		if b == -1 {
			return int64(0), nil
		}
		r := a % b
		if r != 0 && (r < 0) != (b < 0) {
			r += b
		}
		return r, nil
	case "**":
		if b < 0 {
			if a == 0 {
				return nil, newErr(ZeroDivisionErrorClass, "0.0 cannot be raised to a negative power")
			}
			return math.Pow(float64(a), float64(b)), nil
		}
		if r, err := powInt(a, b); err == nil {
			return r, nil
		}
		return bigOp(op, big.NewInt(a), big.NewInt(b))
	case "<<":
		if b < 0 {
			return nil, newErr(ValueErrorClass, "negative shift count")
		}
		if a == 0 {
			return int64(0), nil
		}
		if b >= 63 || (a<<b)>>b != a {
			return bigOp(op, big.NewInt(a), big.NewInt(b))
		}
		return a << b, nil
	case ">>":
		if b < 0 {
			return nil, newErr(ValueErrorClass, "negative shift count")
		}
		if b >= 64 {
			if a < 0 {
				return int64(-1), nil
			}
			return int64(0), nil
		}
		return a >> b, nil
	case "&":
		return a & b, nil
	case "|":
		return a | b, nil
	case "^":
		return a ^ b, nil
	}
	return nil, errUnsupported(op, a, b)
}

func mulInt(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	r := a * b
	if r/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, errOverflow()
	}
	return r, nil
}

func powInt(base, exp int64) (Value, error) {
	result := int64(1)
	for exp > 0 {
		var err error
		if exp&1 == 1 {
			if result, err = mulInt(result, base); err != nil {
				return nil, err
			}
		}
		exp >>= 1
		if exp > 0 {
			if base, err = mulInt(base, base); err != nil {
				return nil, err
			}
		}
	}
	return result, nil
}

func floatOp(op string, a, b float64) (Value, error) {
	var r float64
	switch op {
	case "+":
		r = a + b
	case "-":
		r = a - b
	case "*":
		r = a * b
	case "/":
		if b == 0 {
			return nil, newErr(ZeroDivisionErrorClass, "float division by zero")
		}
		r = a / b
	case "//":
		if b == 0 {
			return nil, newErr(ZeroDivisionErrorClass, "float floor division by zero")
		}
		r = math.Floor(a / b)
	case "%":
		if b == 0 {
			return nil, newErr(ZeroDivisionErrorClass, "float modulo by zero")
		}
		r = math.Mod(a, b)
		if r != 0 && (r < 0) != (b < 0) {
			r += b
		}
	case "**":
		if a == 0 && b < 0 {
			return nil, newErr(ZeroDivisionErrorClass, "0.0 cannot be raised to a negative power")
		}
		if a < 0 && b != math.Trunc(b) {
			return nil, newErr(ValueErrorClass, "negative number cannot be raised to a fractional power")
		}
		r = math.Pow(a, b)
		if math.IsInf(r, 0) && !math.IsInf(a, 0) && !math.IsInf(b, 0) {
			return nil, newErr(OverflowErrorClass, "(34, 'Numerical result out of range')")
		}
	default:
		return nil, errUnsupported(op, a, b)
	}
	return r, nil
}

var unaryDunders = map[string]string{"-": "__neg__", "+": "__pos__", "~": "__invert__"}

func (in *Interp) unary(op string, v Value) (Value, error) {
	if op == "not" {
		t, err := in.truth(v)
		return !t, err
	}
	if res, ok, err := in.callDunder(v, unaryDunders[op]); ok {
		return res, err
	}
	if b, ok := v.(*big.Int); ok {
		switch op {
		case "-":
			return normInt(new(big.Int).Neg(b)), nil
		case "+":
			return b, nil
		case "~":
			return normInt(new(big.Int).Not(b)), nil
		}
	}
	if i, ok := asInt(v); ok {
		switch op {
		case "-":
			if i == math.MinInt64 {
				return new(big.Int).Neg(big.NewInt(i)), nil
			}
			return -i, nil
		case "+":
			return i, nil
		case "~":
			return ^i, nil
		}
	}
	if f, ok := v.(float64); ok {
		switch op {
		case "-":
			return -f, nil
		case "+":
			return f, nil
		}
	}
	return nil, newErr(TypeErrorClass, "bad operand type for unary %s: '%s'", op, typeName(v))
}

// truth implements Python truthiness.
func (in *Interp) truth(v Value) (bool, error) {
	switch x := v.(type) {
	case nil:
		return false, nil
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case *big.Int:
		return x.Sign() != 0, nil
	case float64:
		return x != 0, nil
	case string:
		return x != "", nil
	case *List:
		return len(x.items) > 0, nil
	case *Tuple:
		return len(x.items) > 0, nil
	case *Dict:
		return len(x.keys) > 0, nil
	case *Set:
		return len(x.items) > 0, nil
	case *Deque:
		return len(x.items) > 0, nil
	case *Range:
		return x.Len() > 0, nil
	case *View:
		return len(x.dict.keys) > 0, nil
	case *Instance:
		if res, ok, err := in.callDunder(x, "__bool__"); ok {
			if err != nil {
				return false, err
			}
			b, isBool := res.(bool)
			if !isBool {
				return false, newErr(TypeErrorClass, "__bool__ should return bool, returned %s", typeName(res))
			}
			return b, nil
		}
		if res, ok, err := in.callDunder(x, "__len__"); ok {
			if err != nil {
				return false, err
			}
			n, _ := asInt(res)
			return n != 0, nil
		}
	}
	return true, nil
}

func (in *Interp) compare(op string, a, b Value) (bool, error) {
	switch op {
	case "==":
		return in.equal(a, b)
	case "!=":
		if res, ok, err := in.callDunder(a, "__ne__", b); ok {
			if err != nil {
				return false, err
			}
			return in.truth(res)
		}
		eq, err := in.equal(a, b)
		return !eq, err
	case "is":
		return a == b, nil
	case "is not":
		return a != b, nil
	case "in":
		return in.contains(b, a)
	case "not in":
		ok, err := in.contains(b, a)
		return !ok, err
	}
	return in.ordered(op, a, b)
}

// equal implements ==.
func (in *Interp) equal(a, b Value) (bool, error) {
	if res, ok, err := in.callDunder(a, "__eq__", b); ok {
		if err != nil {
			return false, err
		}
		return in.truth(res)
	}
	if res, ok, err := in.callDunder(b, "__eq__", a); ok {
		if err != nil {
			return false, err
		}
		return in.truth(res)
	}
	if ai, ok := asInt(a); ok {
		if bi, ok := asInt(b); ok {
			return ai == bi, nil
		}
	}
	if eitherBig(a, b) {
		if c, unordered, ok := compareBig(a, b); ok {
			return c == 0 && !unordered, nil
		}
		return false, nil
	}
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			return af == bf, nil
		}
		return false, nil
	}

	in.depth++
	defer func() { in.depth-- }()
	if in.depth > in.opts.RecursionLimit {
		return false, newErr(RecursionErrorClass, "maximum recursion depth exceeded in comparison")
	}

	switch x := a.(type) {
	case *List:
		if y, ok := b.(*List); ok {
			return in.equalSeq(x.items, y.items)
		}
		return false, nil
	case *Tuple:
		if y, ok := b.(*Tuple); ok {
			return in.equalSeq(x.items, y.items)
		}
		return false, nil
	case *Deque:
		if y, ok := b.(*Deque); ok {
			return in.equalSeq(x.items, y.items)
		}
		return false, nil
	case *Dict:
		y, ok := b.(*Dict)
		if !ok || len(x.keys) != len(y.keys) {
			return false, nil
		}
		for i, k := range x.keys {
			v, found, err := y.get(k)
			if err != nil || !found {
				return false, err
			}
			eq, err := in.equal(x.vals[i], v)
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	case *Set:
		y, ok := b.(*Set)
		if !ok || len(x.items) != len(y.items) {
			return false, nil
		}
		for _, v := range x.items {
			if found, _ := y.has(v); !found {
				return false, nil
			}
		}
		return true, nil
	case *Range:
		y, ok := b.(*Range)
		if !ok {
			return false, nil
		}
		n := x.Len()
		return n == y.Len() && (n == 0 || (x.start == y.start && (n == 1 || x.step == y.step))), nil
	}
	return a == b, nil
}

func (in *Interp) equalSeq(x, y []Value) (bool, error) {
	if len(x) != len(y) {
		return false, nil
	}
	for i := range x {
		eq, err := in.equal(x[i], y[i])
		if err != nil || !eq {
			return false, err
		}
	}
	return true, nil
}

var orderDunders = map[string][2]string{
	"<":  {"__lt__", "__gt__"},
	"<=": {"__le__", "__ge__"},
	">":  {"__gt__", "__lt__"},
	">=": {"__ge__", "__le__"},
}

// ordered implements <, <=, > and >=.
func (in *Interp) ordered(op string, a, b Value) (bool, error) {
	if isInstance(a) || isInstance(b) {
		names := orderDunders[op]
		if res, ok, err := in.callDunder(a, names[0], b); ok {
			if err != nil {
				return false, err
			}
			return in.truth(res)
		}
		if res, ok, err := in.callDunder(b, names[1], a); ok {
			if err != nil {
				return false, err
			}
			return in.truth(res)
		}
		return false, errNotOrderable(op, a, b)
	}
	if ai, ok := asInt(a); ok {
		if bi, ok := asInt(b); ok {
			return cmpOp(op, compareInts(ai, bi)), nil
		}
	}
	if eitherBig(a, b) {
		if c, unordered, ok := compareBig(a, b); ok {
			return !unordered && cmpOp(op, c), nil
		}
		return false, errNotOrderable(op, a, b)
	}
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			switch op {
			case "<":
				return af < bf, nil
			case "<=":
				return af <= bf, nil
			case ">":
				return af > bf, nil
			}
			return af >= bf, nil
		}
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return cmpOp(op, strings.Compare(x, y)), nil
		}
	case *List:
		if y, ok := b.(*List); ok {
			return in.orderedSeq(op, x.items, y.items)
		}
	case *Tuple:
		if y, ok := b.(*Tuple); ok {
			return in.orderedSeq(op, x.items, y.items)
		}
	case *Set:
		if y, ok := b.(*Set); ok {
			sub := func(p, q *Set) bool {
				for _, v := range p.items {
					if found, _ := q.has(v); !found {
						return false
					}
				}
				return true
			}
			switch op {
			case "<=":
				return sub(x, y), nil
			case "<":
				return len(x.items) < len(y.items) && sub(x, y), nil
			case ">=":
				return sub(y, x), nil
			}
			return len(y.items) < len(x.items) && sub(y, x), nil
		}
	}
	return false, errNotOrderable(op, a, b)
}

func errNotOrderable(op string, a, b Value) error {
	return newErr(TypeErrorClass, "'%s' not supported between instances of '%s' and '%s'", op, typeName(a), typeName(b))
}

func compareInts(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpOp(op string, c int) bool {
	switch op {
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	}
	return c >= 0
}

func (in *Interp) orderedSeq(op string, x, y []Value) (bool, error) {
	for i := 0; i < len(x) && i < len(y); i++ {
		eq, err := in.equal(x[i], y[i])
		if err != nil {
			return false, err
		}
		if !eq {
			return in.ordered(op, x[i], y[i])
		}
	}
	return cmpOp(op, compareInts(int64(len(x)), int64(len(y)))), nil
}

func (in *Interp) less(a, b Value) (bool, error) { return in.ordered("<", a, b) }

func (in *Interp) contains(container, item Value) (bool, error) {
	switch c := container.(type) {
	case string:
		s, ok := item.(string)
		if !ok {
			return false, newErr(TypeErrorClass, "'in <string>' requires string as left operand, not %s", typeName(item))
		}
		return strings.Contains(c, s), nil
	case *List:
		return in.containsSeq(c.items, item)
	case *Tuple:
		return in.containsSeq(c.items, item)
	case *Deque:
		return in.containsSeq(c.items, item)
	case *Iterator:
		return in.containsSeq(c.items[c.pos:], item)
	case *View:
		if c.kind == "dict_keys" {
			_, found, err := c.dict.get(item)
			return found, err
		}
		return in.containsSeq(c.snapshot(in), item)
	case *Dict:
		_, found, err := c.get(item)
		return found, err
	case *Set:
		return c.has(item)
	case *Range:
		n, ok := asInt(item)
		if !ok {
			if f, isFloat := item.(float64); isFloat && f == math.Trunc(f) {
				n, ok = int64(f), true
			}
		}
		if !ok || c.Len() == 0 || (n-c.start)%c.step != 0 {
			return false, nil
		}
		if c.step > 0 {
			return n >= c.start && n < c.stop, nil
		}
		return n <= c.start && n > c.stop, nil
	case *Instance:
		if res, ok, err := in.callDunder(c, "__contains__", item); ok {
			if err != nil {
				return false, err
			}
			return in.truth(res)
		}
		if _, ok := c.Class.lookup("__iter__"); ok {
			items, err := in.toSlice(c)
			if err != nil {
				return false, err
			}
			return in.containsSeq(items, item)
		}
	}
	return false, newErr(TypeErrorClass, "argument of type '%s' is not iterable", typeName(container))
}

func (in *Interp) containsSeq(items []Value, item Value) (bool, error) {
	for _, v := range items {
		if v == item {
			return true, nil
		}
		eq, err := in.equal(v, item)
		if err != nil || eq {
			return eq, err
		}
	}
	return false, nil
}

// ---- attributes ----

type superProxy struct {
	object
	class *Class
	self  Value
}

func (p *superProxy) Repr() string {
	return "<super: <class '" + p.class.Name + "'>, <" + typeName(p.self) + " object>>"
}

func (in *Interp) super(f *Frame) (Value, error) {
	if f.fn == nil || f.fn.class == nil || len(f.fn.params) == 0 {
		return nil, newErr(RuntimeErrorClass, "super(): no arguments")
	}
	self, ok := f.locals.get(f.fn.params[0].Name)
	if !ok {
		return nil, newErr(RuntimeErrorClass, "super(): arg[0] deleted")
	}
	return &superProxy{object: in.alloc(), class: f.fn.class, self: self}, nil
}

func bindTo(self, v Value) Value {
	switch v.(type) {
	case *Function, *Builtin:
		return &BoundMethod{Self: self, Fn: v}
	}
	return v
}

func (in *Interp) getattr(obj Value, name string) (Value, error) {
	switch o := obj.(type) {
	case *Instance:
		switch name {
		case "__class__":
			return o.Class, nil
		case "args":
			if o.args != nil {
				return o.args, nil
			}
		}
		if v, ok := o.attrs.get(name); ok {
			return v, nil
		}
		if v, ok := o.Class.lookup(name); ok {
			return bindTo(o, v), nil
		}
		return nil, newErr(AttributeErrorClass, "'%s' object has no attribute '%s'", o.Class.Name, name)
	case *Class:
		if name == "__name__" {
			return o.Name, nil
		}
		if v, ok := o.lookup(name); ok {
			return v, nil
		}
		if m, ok := unboundMethod(o, name); ok {
			return m, nil
		}
		return nil, newErr(AttributeErrorClass, "type object '%s' has no attribute '%s'", o.Name, name)
	case *Module:
		if name == "__name__" {
			return o.Name, nil
		}
		if v, ok := o.attrs.get(name); ok {
			return v, nil
		}
		return nil, newErr(AttributeErrorClass, "module '%s' has no attribute '%s'", o.Name, name)
	case *superProxy:
		if o.class.Base != nil {
			if v, ok := o.class.Base.lookup(name); ok {
				return bindTo(o.self, v), nil
			}
		}
		return nil, newErr(AttributeErrorClass, "'super' object has no attribute '%s'", name)
	case *Function:
		if name == "__name__" {
			return o.Name, nil
		}
	case *Builtin:
		if name == "__name__" {
			return o.Name, nil
		}
	}
	if m, ok := boundMethod(obj, name); ok {
		return m, nil
	}
	return nil, newErr(AttributeErrorClass, "'%s' object has no attribute '%s'", typeName(obj), name)
}

func (in *Interp) setattr(obj Value, name string, v Value) error {
	switch o := obj.(type) {
	case *Instance:
		o.attrs.set(name, v)
		return nil
	case *Class:
		if o.attrs.builtin {
			return newErr(TypeErrorClass, "cannot set '%s' attribute of immutable type '%s'", name, o.Name)
		}
		o.attrs.set(name, v)
		return nil
	}
	return newErr(AttributeErrorClass, "'%s' object has no attribute '%s'", typeName(obj), name)
}

func (in *Interp) delattr(obj Value, name string) error {
	switch o := obj.(type) {
	case *Instance:
		if o.attrs.del(name) {
			return nil
		}
		return newErr(AttributeErrorClass, "'%s' object has no attribute '%s'", o.Class.Name, name)
	case *Class:
		if !o.attrs.builtin && o.attrs.del(name) {
			return nil
		}
		return newErr(AttributeErrorClass, "type object '%s' has no attribute '%s'", o.Name, name)
	}
	return newErr(AttributeErrorClass, "'%s' object has no attribute '%s'", typeName(obj), name)
}

// ---- items ----

func index(idx Value, n int, what string) (int, error) {
	i, ok := asInt(idx)
	if !ok {
		return 0, newErr(TypeErrorClass, "%s indices must be integers or slices, not %s", what, typeName(idx))
	}
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, newErr(IndexErrorClass, "%s index out of range", what)
	}
	return int(i), nil
}

func (in *Interp) getitem(obj, idx Value) (Value, error) {
	switch o := obj.(type) {
	case *List:
		i, err := index(idx, len(o.items), "list")
		if err != nil {
			return nil, err
		}
		return o.items[i], nil
	case *Tuple:
		i, err := index(idx, len(o.items), "tuple")
		if err != nil {
			return nil, err
		}
		return o.items[i], nil
	case *Deque:
		i, err := index(idx, len(o.items), "deque")
		if err != nil {
			return nil, err
		}
		return o.items[i], nil
	case string:
		if isASCII(o) {
			i, err := index(idx, len(o), "string")
			if err != nil {
				return nil, err
			}
			return o[i : i+1], nil
		}
		runes := []rune(o)
		i, err := index(idx, len(runes), "string")
		if err != nil {
			return nil, err
		}
		return string(runes[i]), nil
	case *Range:
		i, err := index(idx, int(o.Len()), "range object")
		if err != nil {
			return nil, err
		}
		return o.at(int64(i)), nil
	case *Dict:
		v, found, err := o.get(idx)
		if err != nil {
			return nil, err
		}
		if found {
			return v, nil
		}
		if _, none := o.factory.(noFactory); o.factory != nil && !none {
			v, err := in.call(o.factory, nil, nil)
			if err != nil {
				return nil, err
			}
			return v, o.set(idx, v)
		}
		return nil, errKey(idx)
	case *Instance:
		if res, ok, err := in.callDunder(o, "__getitem__", idx); ok {
			return res, err
		}
	}
	return nil, newErr(TypeErrorClass, "'%s' object is not subscriptable", typeName(obj))
}

func (in *Interp) setitem(obj, idx, v Value) error {
	switch o := obj.(type) {
	case *List:
		i, err := index(idx, len(o.items), "list assignment")
		if err != nil {
			return err
		}
		o.items[i] = v
		return nil
	case *Deque:
		i, err := index(idx, len(o.items), "deque")
		if err != nil {
			return err
		}
		o.items[i] = v
		return nil
	case *Dict:
		return o.set(idx, v)
	case *Instance:
		if _, ok, err := in.callDunder(o, "__setitem__", idx, v); ok {
			return err
		}
	}
	return newErr(TypeErrorClass, "'%s' object does not support item assignment", typeName(obj))
}

func (in *Interp) delitem(obj, idx Value) error {
	switch o := obj.(type) {
	case *List:
		i, err := index(idx, len(o.items), "list assignment")
		if err != nil {
			return err
		}
		o.items = append(o.items[:i], o.items[i+1:]...)
		return nil
	case *Deque:
		i, err := index(idx, len(o.items), "deque")
		if err != nil {
			return err
		}
		o.items = append(o.items[:i], o.items[i+1:]...)
		return nil
	case *Dict:
		_, found, err := o.del(idx)
		if err != nil {
			return err
		}
		if !found {
			return errKey(idx)
		}
		return nil
	case *Instance:
		if _, ok, err := in.callDunder(o, "__delitem__", idx); ok {
			return err
		}
	}
	return newErr(TypeErrorClass, "'%s' object doesn't support item deletion", typeName(obj))
}

// sliceIndices resolves slice bounds against a sequence of length n the way
// CPython's PySlice_AdjustIndices does and returns the selected positions.
func sliceIndices(lo, hi, stepV Value, n int) ([]int, int, error) {
	step := int64(1)
	if stepV != nil {
		s, ok := asInt(stepV)
		if !ok {
			return nil, 0, errSliceIndex()
		}
		if s == 0 {
			return nil, 0, newErr(ValueErrorClass, "slice step cannot be zero")
		}
		step = s
	}
	length := int64(n)
	bound := func(v Value, def int64) (int64, error) {
		if v == nil {
			return def, nil
		}
		i, ok := asInt(v)
		if !ok {
			return 0, errSliceIndex()
		}
		if i < 0 {
			i += length
			if i < 0 {
				if step < 0 {
					return -1, nil
				}
				return 0, nil
			}
		}
		if i >= length {
			if step < 0 {
				return length - 1, nil
			}
			return length, nil
		}
		return i, nil
	}
	var start, stop int64
	var err error
	if step > 0 {
		if start, err = bound(lo, 0); err != nil {
			return nil, 0, err
		}
		if stop, err = bound(hi, length); err != nil {
			return nil, 0, err
		}
	} else {
		if start, err = bound(lo, length-1); err != nil {
			return nil, 0, err
		}
		if stop, err = bound(hi, -1); err != nil {
			return nil, 0, err
		}
	}
	var out []int
	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		out = append(out, int(i))
	}
	return out, int(step), nil
}

func errSliceIndex() error {
	return newErr(TypeErrorClass, "slice indices must be integers or None or have an __index__ method")
}

func pick(items []Value, idx []int) []Value {
	out := make([]Value, len(idx))
	for i, j := range idx {
		out[i] = items[j]
	}
	return out
}

func (in *Interp) getSlice(obj, lo, hi, step Value) (Value, error) {
	switch o := obj.(type) {
	case *List:
		idx, _, err := sliceIndices(lo, hi, step, len(o.items))
		if err != nil {
			return nil, err
		}
		return in.newList(pick(o.items, idx)), nil
	case *Tuple:
		idx, _, err := sliceIndices(lo, hi, step, len(o.items))
		if err != nil {
			return nil, err
		}
		return in.newTuple(pick(o.items, idx)), nil
	case string:
		runes := []rune(o)
		idx, _, err := sliceIndices(lo, hi, step, len(runes))
		if err != nil {
			return nil, err
		}
		out := make([]rune, len(idx))
		for i, j := range idx {
			out[i] = runes[j]
		}
		return string(out), nil
	case *Range:
		idx, _, err := sliceIndices(lo, hi, step, int(o.Len()))
		if err != nil {
			return nil, err
		}
		items := make([]Value, len(idx))
		for i, j := range idx {
			items[i] = o.at(int64(j))
		}
		return in.newList(items), nil
	}
	return nil, newErr(TypeErrorClass, "'%s' object is not subscriptable", typeName(obj))
}

func (in *Interp) setSlice(obj, lo, hi, step, v Value) error {
	l, ok := obj.(*List)
	if !ok {
		return newErr(TypeErrorClass, "'%s' object does not support slice assignment", typeName(obj))
	}
	items, err := in.toSlice(v)
	if err != nil {
		return err
	}
	idx, st, err := sliceIndices(lo, hi, step, len(l.items))
	if err != nil {
		return err
	}
	if st == 1 {
		start, _, _ := sliceIndices(lo, nil, nil, len(l.items))
		at := len(l.items)
		if len(start) > 0 {
			at = start[0]
		}
		end := at + len(idx)
		out := make([]Value, 0, len(l.items)-len(idx)+len(items))
		out = append(out, l.items[:at]...)
		out = append(out, items...)
		l.items = append(out, l.items[end:]...)
		return nil
	}
	if len(items) != len(idx) {
		return newErr(ValueErrorClass, "attempt to assign sequence of size %d to extended slice of size %d", len(items), len(idx))
	}
	for i, j := range idx {
		l.items[j] = items[i]
	}
	return nil
}

func (in *Interp) delSlice(obj, lo, hi, step Value) error {
	l, ok := obj.(*List)
	if !ok {
		return newErr(TypeErrorClass, "'%s' object does not support item deletion", typeName(obj))
	}
	idx, _, err := sliceIndices(lo, hi, step, len(l.items))
	if err != nil {
		return err
	}
	drop := make(map[int]bool, len(idx))
	for _, j := range idx {
		drop[j] = true
	}
	out := l.items[:0]
	for j, v := range l.items {
		if !drop[j] {
			out = append(out, v)
		}
	}
	l.items = out
	return nil
}

func isASCII(s string) bool { return utf8.RuneCountInString(s) == len(s) }

// ---- iteration ----

func (in *Interp) iterable(v Value) bool {
	switch x := v.(type) {
	case string, *List, *Tuple, *Dict, *Set, *Deque, *Range, *Iterator, *View:
		return true
	case *Instance:
		_, ok := x.Class.lookup("__iter__")
		return ok
	}
	return false
}

// iterate calls fn for each element of v until fn returns false or an error.
func (in *Interp) iterate(v Value, fn func(Value) (bool, error)) error {
	each := func(items []Value) error {
		for _, item := range items {
			more, err := fn(item)
			if err != nil || !more {
				return err
			}
		}
		return nil
	}
	switch x := v.(type) {
	case *List:
		// Index-based so that appends during iteration are seen.
		for i := 0; i < len(x.items); i++ {
			more, err := fn(x.items[i])
			if err != nil || !more {
				return err
			}
		}
		return nil
	case *Tuple:
		return each(x.items)
	case string:
		for _, r := range x {
			more, err := fn(string(r))
			if err != nil || !more {
				return err
			}
		}
		return nil
	case *Dict:
		keys := append([]Value(nil), x.keys...)
		for _, k := range keys {
			more, err := fn(k)
			if err != nil || !more {
				return err
			}
			if len(x.keys) != len(keys) {
				return newErr(RuntimeErrorClass, "dictionary changed size during iteration")
			}
		}
		return nil
	case *Set:
		items := append([]Value(nil), x.items...)
		for _, item := range items {
			more, err := fn(item)
			if err != nil || !more {
				return err
			}
			if len(x.items) != len(items) {
				return newErr(RuntimeErrorClass, "Set changed size during iteration")
			}
		}
		return nil
	case *Deque:
		items := append([]Value(nil), x.items...)
		for _, item := range items {
			more, err := fn(item)
			if err != nil || !more {
				return err
			}
			if len(x.items) != len(items) {
				return newErr(RuntimeErrorClass, "deque mutated during iteration")
			}
		}
		return nil
	case *Range:
		n := x.Len()
		for i := int64(0); i < n; i++ {
			more, err := fn(x.at(i))
			if err != nil || !more {
				return err
			}
		}
		return nil
	case *View:
		items := x.snapshot(in)
		for _, item := range items {
			more, err := fn(item)
			if err != nil || !more {
				return err
			}
			if len(x.dict.keys) != len(items) {
				return newErr(RuntimeErrorClass, "dictionary changed size during iteration")
			}
		}
		return nil
	case *Iterator:
		for x.pos < len(x.items) {
			item := x.items[x.pos]
			x.pos++
			more, err := fn(item)
			if err != nil || !more {
				return err
			}
		}
		return nil
	case *Instance:
		if res, ok, err := in.callDunder(x, "__iter__"); ok {
			if err != nil {
				return err
			}
			if it, ok := res.(*Instance); ok {
				return in.iterateProtocol(it, fn)
			}
			return in.iterate(res, fn)
		}
	}
	return newErr(TypeErrorClass, "'%s' object is not iterable", typeName(v))
}

// iterateProtocol drives an object implementing __next__ until it raises
// StopIteration.
func (in *Interp) iterateProtocol(it *Instance, fn func(Value) (bool, error)) error {
	if _, ok := it.Class.lookup("__next__"); !ok {
		return newErr(TypeErrorClass, "iter() returned non-iterator of type '%s'", it.Class.Name)
	}
	for {
		item, _, err := in.callDunder(it, "__next__")
		if err != nil {
			if exceptionClass(err) != nil && exceptionClass(err).isSubclass(StopIterationClass) {
				return nil
			}
			return err
		}
		more, err := fn(item)
		if err != nil || !more {
			return err
		}
	}
}

// exceptionClass reports the program exception class carried by err, or nil
// when err is not a program exception.
func exceptionClass(err error) *Class {
	switch e := err.(type) {
	case *pyError:
		return e.class
	case *Exception:
		return e.Value.Class
	}
	return nil
}

// toSlice materializes any iterable.
func (in *Interp) toSlice(v Value) ([]Value, error) {
	switch x := v.(type) {
	case *List:
		return append([]Value(nil), x.items...), nil
	case *Tuple:
		return append([]Value(nil), x.items...), nil
	case *Range:
		if x.Len() > MaxCollectionLen {
			return nil, errMemory
		}
	}
	var out []Value
	err := in.iterate(v, func(item Value) (bool, error) {
		if len(out) >= MaxCollectionLen {
			return false, errMemory
		}
		out = append(out, item)
		return true, nil
	})
	return out, err
}

// ---- constructors ----

func (in *Interp) newList(items []Value) *List {
	return &List{object: in.alloc(), items: items}
}

func (in *Interp) newTuple(items []Value) *Tuple {
	return &Tuple{object: in.alloc(), items: items}
}

func (in *Interp) newDict() *Dict {
	return &Dict{object: in.alloc(), index: map[string]int{}}
}

func (in *Interp) copyDict(d *Dict) *Dict {
	out := in.newDict()
	out.factory = d.factory
	for i, k := range d.keys {
		_ = out.set(k, d.vals[i])
	}
	return out
}

func (in *Interp) newSet() *Set {
	return &Set{object: in.alloc(), index: map[string]int{}}
}

func (in *Interp) newSetFrom(items []Value) (*Set, error) {
	s := in.newSet()
	for _, v := range items {
		if err := s.add(v); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (in *Interp) newDeque(items []Value, maxlen int) *Deque {
	d := &Deque{object: in.alloc(), maxlen: maxlen}
	for _, v := range items {
		d.push(v)
	}
	return d
}

func (d *Deque) push(v Value) {
	d.items = append(d.items, v)
	if d.maxlen >= 0 && len(d.items) > d.maxlen {
		d.items = d.items[1:]
	}
}

func (d *Deque) pushLeft(v Value) {
	d.items = append([]Value{v}, d.items...)
	if d.maxlen >= 0 && len(d.items) > d.maxlen {
		d.items = d.items[:d.maxlen]
	}
}
