package pylite

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

type method[T any] func(in *Interp, recv T, args []Value, kw map[string]Value) (Value, error)

// table adapts typed methods to builtins that take their receiver as args[0].
func table[T any](typ string, methods map[string]method[T]) map[string]BuiltinFunc {
	out := make(map[string]BuiltinFunc, len(methods))
	for name, m := range methods {
		name, m := name, m
		out[name] = func(in *Interp, args []Value, kw map[string]Value) (Value, error) {
			if len(args) == 0 {
				return nil, newErr(TypeErrorClass, "unbound method %s.%s() needs an argument", typ, name)
			}
			recv, ok := args[0].(T)
			if !ok {
				return nil, newErr(TypeErrorClass, "descriptor '%s' for '%s' objects doesn't apply to a '%s' object", name, typ, typeName(args[0]))
			}
			return m(in, recv, args[1:], kw)
		}
	}
	return out
}

var methodTables map[*Class]map[string]BuiltinFunc

func init() {
	methodTables = map[*Class]map[string]BuiltinFunc{
		listClass:  table("list", listMethods),
		tupleClass: table("tuple", tupleMethods),
		dictClass:  table("dict", dictMethods),
		setClass:   table("set", setMethods),
		strClass:   table("str", strMethods),
		dequeClass: table("collections.deque", dequeMethods),
		floatClass: table("float", floatMethods),
		intClass:   table("int", intMethods),
	}
}

// boundMethod looks up a builtin method for obj's type.
func boundMethod(obj Value, name string) (Value, bool) {
	for c := classOf(obj); c != nil; c = c.Base {
		if fn, ok := methodTables[c][name]; ok {
			return &Builtin{Name: name, fn: fn, self: obj}, true
		}
	}
	return nil, false
}

// unboundMethod serves expressions such as str.upper.
func unboundMethod(c *Class, name string) (Value, bool) {
	for k := c; k != nil; k = k.Base {
		if fn, ok := methodTables[k][name]; ok {
			return &Builtin{Name: name, fn: fn}, true
		}
	}
	return nil, false
}

// ---- list ----

var listMethods = map[string]method[*List]{
	"append": func(in *Interp, l *List, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("append", args, 1, 1); err != nil {
			return nil, err
		}
		if len(l.items) >= MaxCollectionLen {
			return nil, errMemory
		}
		l.items = append(l.items, args[0])
		return nil, nil
	},
	"extend": func(in *Interp, l *List, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("extend", args, 1, 1); err != nil {
			return nil, err
		}
		items, err := in.toSlice(args[0])
		if err != nil {
			return nil, err
		}
		if len(l.items)+len(items) > MaxCollectionLen {
			return nil, errMemory
		}
		l.items = append(l.items, items...)
		return nil, nil
	},
	"insert": func(in *Interp, l *List, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("insert", args, 2, 2); err != nil {
			return nil, err
		}
		i, ok := asInt(args[0])
		if !ok {
			return nil, newErr(TypeErrorClass, "'%s' object cannot be interpreted as an integer", typeName(args[0]))
		}
		n := int64(len(l.items))
		if i < 0 {
			i += n
		}
		i = max(0, min(i, n))
		l.items = append(l.items, nil)
		copy(l.items[i+1:], l.items[i:])
		l.items[i] = args[1]
		return nil, nil
	},
	"pop": func(in *Interp, l *List, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("pop", args, 0, 1); err != nil {
			return nil, err
		}
		if len(l.items) == 0 {
			return nil, newErr(IndexErrorClass, "pop from empty list")
		}
		i := len(l.items) - 1
		if len(args) == 1 {
			var err error
			if i, err = index(args[0], len(l.items), "pop"); err != nil {
				return nil, err
			}
		}
		v := l.items[i]
		l.items = append(l.items[:i], l.items[i+1:]...)
		return v, nil
	},
	"remove": func(in *Interp, l *List, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("remove", args, 1, 1); err != nil {
			return nil, err
		}
		for i, item := range l.items {
			eq, err := in.equal(item, args[0])
			if err != nil {
				return nil, err
			}
			if eq {
				l.items = append(l.items[:i], l.items[i+1:]...)
				return nil, nil
			}
		}
		return nil, newErr(ValueErrorClass, "list.remove(x): x not in list")
	},
	"index": func(in *Interp, l *List, args []Value, kw map[string]Value) (Value, error) {
		return in.seqIndex("list", l.items, args)
	},
	"count": func(in *Interp, l *List, args []Value, kw map[string]Value) (Value, error) {
		return in.seqCount(l.items, args)
	},
	"sort": func(in *Interp, l *List, args []Value, kw map[string]Value) (Value, error) {
		if len(args) > 0 {
			return nil, newErr(TypeErrorClass, "sort() takes no positional arguments")
		}
		key, reverse, err := sortOptions(in, kw)
		if err != nil {
			return nil, err
		}
		return nil, in.sortValues(l.items, key, reverse)
	},
	"reverse": func(in *Interp, l *List, args []Value, kw map[string]Value) (Value, error) {
		for i, j := 0, len(l.items)-1; i < j; i, j = i+1, j-1 {
			l.items[i], l.items[j] = l.items[j], l.items[i]
		}
		return nil, nil
	},
	"copy": func(in *Interp, l *List, args []Value, kw map[string]Value) (Value, error) {
		return in.newList(append([]Value(nil), l.items...)), nil
	},
	"clear": func(in *Interp, l *List, args []Value, kw map[string]Value) (Value, error) {
		l.items = nil
		return nil, nil
	},
}

func (in *Interp) seqIndex(typ string, items []Value, args []Value) (Value, error) {
	if err := arity("index", args, 1, 3); err != nil {
		return nil, err
	}
	start, stop := 0, len(items)
	if len(args) > 1 {
		idx, _, err := sliceIndices(args[1], nil, nil, len(items))
		if err != nil {
			return nil, err
		}
		start = len(items) - len(idx)
	}
	if len(args) > 2 {
		idx, _, err := sliceIndices(nil, args[2], nil, len(items))
		if err != nil {
			return nil, err
		}
		stop = len(idx)
	}
	for i := start; i < stop; i++ {
		eq, err := in.equal(items[i], args[0])
		if err != nil {
			return nil, err
		}
		if eq {
			return int64(i), nil
		}
	}
	if typ == "tuple" {
		return nil, newErr(ValueErrorClass, "tuple.index(x): x not in tuple")
	}
	return nil, newErr(ValueErrorClass, "%s is not in %s", reprPlain(args[0]), typ)
}

func (in *Interp) seqCount(items []Value, args []Value) (Value, error) {
	if err := arity("count", args, 1, 1); err != nil {
		return nil, err
	}
	n := int64(0)
	for _, item := range items {
		eq, err := in.equal(item, args[0])
		if err != nil {
			return nil, err
		}
		if eq {
			n++
		}
	}
	return n, nil
}

var tupleMethods = map[string]method[*Tuple]{
	"index": func(in *Interp, t *Tuple, args []Value, kw map[string]Value) (Value, error) {
		return in.seqIndex("tuple", t.items, args)
	},
	"count": func(in *Interp, t *Tuple, args []Value, kw map[string]Value) (Value, error) {
		return in.seqCount(t.items, args)
	},
}

// ---- dict ----

var dictMethods = map[string]method[*Dict]{
	"get": func(in *Interp, d *Dict, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("get", args, 1, 2); err != nil {
			return nil, err
		}
		v, found, err := d.get(args[0])
		if err != nil || found {
			return v, err
		}
		if len(args) == 2 {
			return args[1], nil
		}
		return nil, nil
	},
	"keys": func(in *Interp, d *Dict, args []Value, kw map[string]Value) (Value, error) {
		return &View{object: in.alloc(), dict: d, kind: "dict_keys"}, nil
	},
	"values": func(in *Interp, d *Dict, args []Value, kw map[string]Value) (Value, error) {
		return &View{object: in.alloc(), dict: d, kind: "dict_values"}, nil
	},
	"items": func(in *Interp, d *Dict, args []Value, kw map[string]Value) (Value, error) {
		return &View{object: in.alloc(), dict: d, kind: "dict_items"}, nil
	},
	"pop": func(in *Interp, d *Dict, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("pop", args, 1, 2); err != nil {
			return nil, err
		}
		v, found, err := d.del(args[0])
		if err != nil || found {
			return v, err
		}
		if len(args) == 2 {
			return args[1], nil
		}
		return nil, errKey(args[0])
	},
	"popitem": func(in *Interp, d *Dict, args []Value, kw map[string]Value) (Value, error) {
		if len(d.keys) == 0 {
			return nil, &pyError{class: KeyErrorClass, args: []Value{"popitem(): dictionary is empty"}}
		}
		k := d.keys[len(d.keys)-1]
		v, _, err := d.del(k)
		if err != nil {
			return nil, err
		}
		return in.newTuple([]Value{k, v}), nil
	},
	"setdefault": func(in *Interp, d *Dict, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("setdefault", args, 1, 2); err != nil {
			return nil, err
		}
		v, found, err := d.get(args[0])
		if err != nil || found {
			return v, err
		}
		var def Value
		if len(args) == 2 {
			def = args[1]
		}
		return def, d.set(args[0], def)
	},
	"update": func(in *Interp, d *Dict, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("update", args, 0, 1); err != nil {
			return nil, err
		}
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
		return nil, nil
	},
	"copy": func(in *Interp, d *Dict, args []Value, kw map[string]Value) (Value, error) {
		return in.copyDict(d), nil
	},
	"clear": func(in *Interp, d *Dict, args []Value, kw map[string]Value) (Value, error) {
		d.clear()
		return nil, nil
	},
}

// ---- set ----

func (in *Interp) setArgs(args []Value) ([]*Set, error) {
	out := make([]*Set, len(args))
	for i, a := range args {
		if s, ok := a.(*Set); ok {
			out[i] = s
			continue
		}
		items, err := in.toSlice(a)
		if err != nil {
			return nil, err
		}
		if out[i], err = in.newSetFrom(items); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func setFold(op string) method[*Set] {
	return func(in *Interp, s *Set, args []Value, kw map[string]Value) (Value, error) {
		others, err := in.setArgs(args)
		if err != nil {
			return nil, err
		}
		var acc Value = s
		for _, o := range others {
			if acc, err = in.setOp(op, acc.(*Set), o, false); err != nil {
				return nil, err
			}
		}
		if acc == Value(s) {
			return in.newSetFrom(s.items)
		}
		return acc, nil
	}
}

func setPredicate(name string, test func(a, b *Set) (bool, error)) method[*Set] {
	return func(in *Interp, s *Set, args []Value, kw map[string]Value) (Value, error) {
		if err := arity(name, args, 1, 1); err != nil {
			return nil, err
		}
		others, err := in.setArgs(args)
		if err != nil {
			return nil, err
		}
		return test(s, others[0])
	}
}

func subset(a, b *Set) (bool, error) {
	for _, item := range a.items {
		ok, err := b.has(item)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

var setMethods = map[string]method[*Set]{
	"add": func(in *Interp, s *Set, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("add", args, 1, 1); err != nil {
			return nil, err
		}
		return nil, s.add(args[0])
	},
	"remove": func(in *Interp, s *Set, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("remove", args, 1, 1); err != nil {
			return nil, err
		}
		found, err := s.remove(args[0])
		if err == nil && !found {
			err = errKey(args[0])
		}
		return nil, err
	},
	"discard": func(in *Interp, s *Set, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("discard", args, 1, 1); err != nil {
			return nil, err
		}
		_, err := s.remove(args[0])
		return nil, err
	},
	"pop": func(in *Interp, s *Set, args []Value, kw map[string]Value) (Value, error) {
		if len(s.items) == 0 {
			return nil, &pyError{class: KeyErrorClass, args: []Value{"pop from an empty set"}}
		}
		v := s.items[0]
		_, err := s.remove(v)
		return v, err
	},
	"union":                setFold("|"),
	"intersection":         setFold("&"),
	"difference":           setFold("-"),
	"symmetric_difference": setFold("^"),
	"issubset":             setPredicate("issubset", subset),
	"issuperset": setPredicate("issuperset", func(a, b *Set) (bool, error) {
		return subset(b, a)
	}),
	"isdisjoint": setPredicate("isdisjoint", func(a, b *Set) (bool, error) {
		for _, item := range a.items {
			ok, err := b.has(item)
			if err != nil || ok {
				return false, err
			}
		}
		return true, nil
	}),
	"update": func(in *Interp, s *Set, args []Value, kw map[string]Value) (Value, error) {
		for _, a := range args {
			items, err := in.toSlice(a)
			if err != nil {
				return nil, err
			}
			for _, item := range items {
				if err := s.add(item); err != nil {
					return nil, err
				}
			}
		}
		return nil, nil
	},
	"copy": func(in *Interp, s *Set, args []Value, kw map[string]Value) (Value, error) {
		return in.newSetFrom(s.items)
	},
	"clear": func(in *Interp, s *Set, args []Value, kw map[string]Value) (Value, error) {
		s.clear()
		return nil, nil
	},
}

// ---- str ----

func strArg(method string, v Value) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", newErr(TypeErrorClass, "%s arg must be None or str", method)
	}
	return s, nil
}

func optionalChars(method string, args []Value) (string, bool, error) {
	if err := arity(method, args, 0, 1); err != nil {
		return "", false, err
	}
	if len(args) == 0 || args[0] == nil {
		return "", false, nil
	}
	s, err := strArg(method, args[0])
	return s, true, err
}

func stripper(name string, trim func(s, cutset string) string, space func(string) string) method[string] {
	return func(in *Interp, s string, args []Value, kw map[string]Value) (Value, error) {
		chars, ok, err := optionalChars(name, args)
		if err != nil {
			return nil, err
		}
		if !ok {
			return space(s), nil
		}
		return trim(s, chars), nil
	}
}

// runeIndex converts a byte offset into a character offset.
func runeIndex(s string, i int) int64 {
	if i < 0 {
		return -1
	}
	return int64(utf8.RuneCountInString(s[:i]))
}

// window applies optional start/end arguments and returns the searched
// substring with its character offset.
func window(s string, args []Value) (string, int, error) {
	if len(args) == 0 {
		return s, 0, nil
	}
	rs := []rune(s)
	var lo, hi Value = args[0], nil
	if len(args) > 1 {
		hi = args[1]
	}
	idx, _, err := sliceIndices(lo, hi, nil, len(rs))
	if err != nil {
		return "", 0, err
	}
	if len(idx) == 0 {
		start, _, _ := sliceIndices(lo, nil, nil, len(rs))
		return "", len(rs) - len(start), nil
	}
	return string(rs[idx[0] : idx[len(idx)-1]+1]), idx[0], nil
}

func finder(name string, last, raise bool) method[string] {
	return func(in *Interp, s string, args []Value, kw map[string]Value) (Value, error) {
		if err := arity(name, args, 1, 3); err != nil {
			return nil, err
		}
		sub, ok := args[0].(string)
		if !ok {
			return nil, newErr(TypeErrorClass, "must be str, not %s", typeName(args[0]))
		}
		hay, off, err := window(s, args[1:])
		if err != nil {
			return nil, err
		}
		var i int
		if last {
			i = strings.LastIndex(hay, sub)
		} else {
			i = strings.Index(hay, sub)
		}
		if i < 0 {
			if raise {
				return nil, newErr(ValueErrorClass, "substring not found")
			}
			return int64(-1), nil
		}
		return runeIndex(hay, i) + int64(off), nil
	}
}

func affix(name string, test func(s, fix string) bool) method[string] {
	return func(in *Interp, s string, args []Value, kw map[string]Value) (Value, error) {
		if err := arity(name, args, 1, 3); err != nil {
			return nil, err
		}
		hay, _, err := window(s, args[1:])
		if err != nil {
			return nil, err
		}
		var fixes []Value
		switch x := args[0].(type) {
		case string:
			fixes = []Value{x}
		case *Tuple:
			fixes = x.items
		default:
			return nil, newErr(TypeErrorClass, "%s first arg must be str or a tuple of str, not %s", name, typeName(args[0]))
		}
		for _, f := range fixes {
			fs, ok := f.(string)
			if !ok {
				return nil, newErr(TypeErrorClass, "tuple for %s must only contain str, not %s", name, typeName(f))
			}
			if test(hay, fs) {
				return true, nil
			}
		}
		return false, nil
	}
}

func classify(test func(rune) bool) method[string] {
	return func(in *Interp, s string, args []Value, kw map[string]Value) (Value, error) {
		if s == "" {
			return false, nil
		}
		for _, r := range s {
			if !test(r) {
				return false, nil
			}
		}
		return true, nil
	}
}

func casePredicate(want func(rune) bool, other func(rune) bool) method[string] {
	return func(in *Interp, s string, args []Value, kw map[string]Value) (Value, error) {
		cased := false
		for _, r := range s {
			if other(r) {
				return false, nil
			}
			if want(r) {
				cased = true
			}
		}
		return cased, nil
	}
}

func justify(name string, align byte) method[string] {
	return func(in *Interp, s string, args []Value, kw map[string]Value) (Value, error) {
		if err := arity(name, args, 1, 2); err != nil {
			return nil, err
		}
		width, ok := asInt(args[0])
		if !ok {
			return nil, newErr(TypeErrorClass, "'%s' object cannot be interpreted as an integer", typeName(args[0]))
		}
		fill := ' '
		if len(args) == 2 {
			f, ok := args[1].(string)
			if !ok || utf8.RuneCountInString(f) != 1 {
				return nil, newErr(TypeErrorClass, "The fill character must be exactly one character long")
			}
			fill, _ = utf8.DecodeRuneInString(f)
		}
		if width > MaxCollectionLen {
			return nil, errMemory
		}
		n := int(width) - utf8.RuneCountInString(s)
		if n <= 0 {
			return s, nil
		}
		pad := func(k int) string { return strings.Repeat(string(fill), k) }
		switch align {
		case '<':
			return s + pad(n), nil
		case '>':
			return pad(n) + s, nil
		}
		// str.center puts the extra character on the left when the string
		// length and padding are both odd.
		left := n / 2
		if n%2 == 1 && utf8.RuneCountInString(s)%2 == 1 {
			left++
		}
		return pad(left) + s + pad(n-left), nil
	}
}

func splitWhitespace(s string, maxsplit int) []string {
	if maxsplit < 0 {
		return strings.Fields(s)
	}
	var out []string
	rest := strings.TrimLeftFunc(s, unicode.IsSpace)
	for len(out) < maxsplit && rest != "" {
		i := strings.IndexFunc(rest, unicode.IsSpace)
		if i < 0 {
			break
		}
		out = append(out, rest[:i])
		rest = strings.TrimLeftFunc(rest[i:], unicode.IsSpace)
	}
	if rest != "" {
		out = append(out, rest)
	}
	return out
}

func strList(in *Interp, parts []string) *List {
	items := make([]Value, len(parts))
	for i, p := range parts {
		items[i] = p
	}
	return in.newList(items)
}

func titleCase(s string) string {
	var b strings.Builder
	prevCased := false
	for _, r := range s {
		if prevCased {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(unicode.ToTitle(r))
		}
		prevCased = unicode.IsLetter(r)
	}
	return b.String()
}

var strMethods = map[string]method[string]{
	"split": func(in *Interp, s string, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("split", args, 0, 2); err != nil {
			return nil, err
		}
		var sep Value
		maxsplit := int64(-1)
		if len(args) > 0 {
			sep = args[0]
		} else if v, ok := kw["sep"]; ok {
			sep = v
		}
		mv, ok := kw["maxsplit"]
		if len(args) > 1 {
			mv, ok = args[1], true
		}
		if ok {
			if maxsplit, ok = asInt(mv); !ok {
				return nil, newErr(TypeErrorClass, "'%s' object cannot be interpreted as an integer", typeName(mv))
			}
		}
		if sep == nil {
			return strList(in, splitWhitespace(s, int(maxsplit))), nil
		}
		sepStr, err := strArg("split", sep)
		if err != nil {
			return nil, err
		}
		if sepStr == "" {
			return nil, newErr(ValueErrorClass, "empty separator")
		}
		n := -1
		if maxsplit >= 0 {
			n = int(maxsplit) + 1
		}
		return strList(in, strings.SplitN(s, sepStr, n)), nil
	},
	"splitlines": func(in *Interp, s string, args []Value, kw map[string]Value) (Value, error) {
		lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
		return strList(in, lines), nil
	},
	"strip":  stripper("strip", strings.Trim, strings.TrimSpace),
	"lstrip": stripper("lstrip", strings.TrimLeft, func(s string) string { return strings.TrimLeftFunc(s, unicode.IsSpace) }),
	"rstrip": stripper("rstrip", strings.TrimRight, func(s string) string { return strings.TrimRightFunc(s, unicode.IsSpace) }),
	"upper": func(in *Interp, s string, args []Value, kw map[string]Value) (Value, error) {
		return strings.ToUpper(s), nil
	},
	"lower": func(in *Interp, s string, args []Value, kw map[string]Value) (Value, error) {
		return strings.ToLower(s), nil
	},
	"swapcase": func(in *Interp, s string, args []Value, kw map[string]Value) (Value, error) {
		return strings.Map(func(r rune) rune {
			if unicode.IsUpper(r) {
				return unicode.ToLower(r)
			}
			return unicode.ToUpper(r)
		}, s), nil
	},
	"title": func(in *Interp, s string, args []Value, kw map[string]Value) (Value, error) {
		return titleCase(s), nil
	},
	"capitalize": func(in *Interp, s string, args []Value, kw map[string]Value) (Value, error) {
		if s == "" {
			return s, nil
		}
		r, n := utf8.DecodeRuneInString(s)
		return string(unicode.ToTitle(r)) + strings.ToLower(s[n:]), nil
	},
	"join": func(in *Interp, s string, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("join", args, 1, 1); err != nil {
			return nil, err
		}
		items, err := in.toSlice(args[0])
		if err != nil {
			return nil, err
		}
		parts := make([]string, len(items))
		total := 0
		for i, item := range items {
			p, ok := item.(string)
			if !ok {
				return nil, newErr(TypeErrorClass, "sequence item %d: expected str instance, %s found", i, typeName(item))
			}
			parts[i] = p
			total += len(p) + len(s)
		}
		if total > MaxCollectionLen {
			return nil, errMemory
		}
		return strings.Join(parts, s), nil
	},
	"replace": func(in *Interp, s string, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("replace", args, 2, 3); err != nil {
			return nil, err
		}
		old, ok1 := args[0].(string)
		repl, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return nil, newErr(TypeErrorClass, "replace() argument must be str")
		}
		n := int64(-1)
		if len(args) == 3 {
			n, _ = asInt(args[2])
		}
		if old != "" && int64(len(repl)-len(old))*int64(strings.Count(s, old)) > MaxCollectionLen {
			return nil, errMemory
		}
		return strings.Replace(s, old, repl, int(n)), nil
	},
	"find":  finder("find", false, false),
	"rfind": finder("rfind", true, false),
	"index": finder("index", false, true),
	"rindex": finder("rindex", true, true),
	"count": func(in *Interp, s string, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("count", args, 1, 3); err != nil {
			return nil, err
		}
		sub, ok := args[0].(string)
		if !ok {
			return nil, newErr(TypeErrorClass, "must be str, not %s", typeName(args[0]))
		}
		hay, _, err := window(s, args[1:])
		if err != nil {
			return nil, err
		}
		if sub == "" {
			return int64(utf8.RuneCountInString(hay) + 1), nil
		}
		return int64(strings.Count(hay, sub)), nil
	},
	"startswith": affix("startswith", strings.HasPrefix),
	"endswith":   affix("endswith", strings.HasSuffix),
	"isdigit":    classify(unicode.IsDigit),
	"isnumeric":  classify(unicode.IsNumber),
	"isdecimal":  classify(unicode.IsDigit),
	"isalpha":    classify(unicode.IsLetter),
	"isalnum": classify(func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsNumber(r)
	}),
	"isspace": classify(unicode.IsSpace),
	"isupper": casePredicate(unicode.IsUpper, unicode.IsLower),
	"islower": casePredicate(unicode.IsLower, unicode.IsUpper),
	"format": func(in *Interp, s string, args []Value, kw map[string]Value) (Value, error) {
		return in.strFormat(s, args, kw)
	},
	"zfill": func(in *Interp, s string, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("zfill", args, 1, 1); err != nil {
			return nil, err
		}
		width, ok := asInt(args[0])
		if !ok {
			return nil, newErr(TypeErrorClass, "'%s' object cannot be interpreted as an integer", typeName(args[0]))
		}
		n := int(width) - utf8.RuneCountInString(s)
		if n <= 0 {
			return s, nil
		}
		sign := ""
		if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
			sign, s = s[:1], s[1:]
		}
		return sign + strings.Repeat("0", n) + s, nil
	},
	"center": justify("center", '^'),
	"ljust":  justify("ljust", '<'),
	"rjust":  justify("rjust", '>'),
	"partition": func(in *Interp, s string, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("partition", args, 1, 1); err != nil {
			return nil, err
		}
		sep, err := strArg("partition", args[0])
		if err != nil {
			return nil, err
		}
		if sep == "" {
			return nil, newErr(ValueErrorClass, "empty separator")
		}
		before, after, found := strings.Cut(s, sep)
		if !found {
			return in.newTuple([]Value{s, "", ""}), nil
		}
		return in.newTuple([]Value{before, sep, after}), nil
	},
}

// ---- deque ----

var dequeMethods = map[string]method[*Deque]{
	"append": func(in *Interp, d *Deque, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("append", args, 1, 1); err != nil {
			return nil, err
		}
		if len(d.items) >= MaxCollectionLen {
			return nil, errMemory
		}
		d.push(args[0])
		return nil, nil
	},
	"appendleft": func(in *Interp, d *Deque, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("appendleft", args, 1, 1); err != nil {
			return nil, err
		}
		if len(d.items) >= MaxCollectionLen {
			return nil, errMemory
		}
		d.pushLeft(args[0])
		return nil, nil
	},
	"pop": func(in *Interp, d *Deque, args []Value, kw map[string]Value) (Value, error) {
		if len(d.items) == 0 {
			return nil, newErr(IndexErrorClass, "pop from an empty deque")
		}
		v := d.items[len(d.items)-1]
		d.items = d.items[:len(d.items)-1]
		return v, nil
	},
	"popleft": func(in *Interp, d *Deque, args []Value, kw map[string]Value) (Value, error) {
		if len(d.items) == 0 {
			return nil, newErr(IndexErrorClass, "pop from an empty deque")
		}
		v := d.items[0]
		d.items = d.items[1:]
		return v, nil
	},
	"extend": func(in *Interp, d *Deque, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("extend", args, 1, 1); err != nil {
			return nil, err
		}
		items, err := in.toSlice(args[0])
		if err != nil {
			return nil, err
		}
		if len(d.items)+len(items) > MaxCollectionLen {
			return nil, errMemory
		}
		for _, item := range items {
			d.push(item)
		}
		return nil, nil
	},
	"extendleft": func(in *Interp, d *Deque, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("extendleft", args, 1, 1); err != nil {
			return nil, err
		}
		items, err := in.toSlice(args[0])
		if err != nil {
			return nil, err
		}
		if len(d.items)+len(items) > MaxCollectionLen {
			return nil, errMemory
		}
		for _, item := range items {
			d.pushLeft(item)
		}
		return nil, nil
	},
	"rotate": func(in *Interp, d *Deque, args []Value, kw map[string]Value) (Value, error) {
		if err := arity("rotate", args, 0, 1); err != nil {
			return nil, err
		}
		n := int64(1)
		if len(args) == 1 {
			var ok bool
			if n, ok = asInt(args[0]); !ok {
				return nil, newErr(TypeErrorClass, "'%s' object cannot be interpreted as an integer", typeName(args[0]))
			}
		}
		if len(d.items) == 0 {
			return nil, nil
		}
		k := int(((n % int64(len(d.items))) + int64(len(d.items))) % int64(len(d.items)))
		d.items = append(append([]Value(nil), d.items[len(d.items)-k:]...), d.items[:len(d.items)-k]...)
		return nil, nil
	},
	"count": func(in *Interp, d *Deque, args []Value, kw map[string]Value) (Value, error) {
		return in.seqCount(d.items, args)
	},
	"index": func(in *Interp, d *Deque, args []Value, kw map[string]Value) (Value, error) {
		return in.seqIndex("deque", d.items, args)
	},
	"copy": func(in *Interp, d *Deque, args []Value, kw map[string]Value) (Value, error) {
		return in.newDeque(d.items, d.maxlen), nil
	},
	"clear": func(in *Interp, d *Deque, args []Value, kw map[string]Value) (Value, error) {
		d.items = nil
		return nil, nil
	},
}

// ---- numbers ----

var floatMethods = map[string]method[float64]{
	"is_integer": func(in *Interp, f float64, args []Value, kw map[string]Value) (Value, error) {
		return !math.IsInf(f, 0) && f == math.Trunc(f), nil
	},
}

var intMethods = map[string]method[Value]{
	"bit_length": func(in *Interp, n Value, args []Value, kw map[string]Value) (Value, error) {
		b, ok := toBig(n)
		if !ok {
			return nil, newErr(TypeErrorClass, "descriptor 'bit_length' for 'int' objects doesn't apply to a '%s' object", typeName(n))
		}
		return int64(b.BitLen()), nil
	},
}
