package pylite

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// renderer implements str() and repr(). With a nil interpreter it never
// calls program code, so user __str__ and __repr__ are ignored.
type renderer struct {
	in   *Interp
	seen map[uint64]bool
}

func (in *Interp) str(v Value) (string, error)  { return (&renderer{in: in}).str(v) }
func (in *Interp) repr(v Value) (string, error) { return (&renderer{in: in}).repr(v) }

// strPlain renders str(v) without running program code.
func strPlain(v Value) string {
	s, _ := (&renderer{}).str(v)
	return s
}

// reprPlain renders repr(v) without running program code.
func reprPlain(v Value) string {
	s, _ := (&renderer{}).repr(v)
	return s
}

func (r *renderer) str(v Value) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case *Instance:
		if r.in != nil {
			if res, ok, err := r.in.callDunder(x, "__str__"); ok {
				return dunderString("__str__", res, err)
			}
		} else if x.args != nil && x.Class.isSubclass(BaseExceptionClass) {
			return exceptionMessage(x), nil
		}
	}
	return r.repr(v)
}

func dunderString(name string, res Value, err error) (string, error) {
	if err != nil {
		return "", err
	}
	s, ok := res.(string)
	if !ok {
		return "", newErr(TypeErrorClass, "%s returned non-string (type %s)", name, typeName(res))
	}
	return s, nil
}

// enter marks a container as being rendered and reports whether it already
// was, which means the value is cyclic.
func (r *renderer) enter(id uint64) bool {
	if r.seen == nil {
		r.seen = map[uint64]bool{}
	}
	if r.seen[id] {
		return true
	}
	r.seen[id] = true
	return false
}

func (r *renderer) join(items []Value, sep string) (string, error) {
	parts := make([]string, len(items))
	for i, item := range items {
		s, err := r.repr(item)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return strings.Join(parts, sep), nil
}

func (r *renderer) repr(v Value) (string, error) {
	switch x := v.(type) {
	case nil:
		return "None", nil
	case bool:
		if x {
			return "True", nil
		}
		return "False", nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case *big.Int:
		return formatBig(x)
	case float64:
		return formatFloat(x), nil
	case string:
		return quote(x), nil
	case *List:
		if r.enter(x.id) {
			return "[...]", nil
		}
		defer delete(r.seen, x.id)
		s, err := r.join(x.items, ", ")
		return "[" + s + "]", err
	case *Tuple:
		if r.enter(x.id) {
			return "(...)", nil
		}
		defer delete(r.seen, x.id)
		s, err := r.join(x.items, ", ")
		if len(x.items) == 1 {
			s += ","
		}
		return "(" + s + ")", err
	case *Dict:
		if r.enter(x.id) {
			return "{...}", nil
		}
		defer delete(r.seen, x.id)
		s, err := r.dictBody(x)
		if err != nil || x.factory == nil {
			return s, err
		}
		factory := "None"
		if _, none := x.factory.(noFactory); !none {
			if factory, err = r.repr(x.factory); err != nil {
				return "", err
			}
		}
		return "defaultdict(" + factory + ", " + s + ")", nil
	case *Set:
		if len(x.items) == 0 {
			return "set()", nil
		}
		if r.enter(x.id) {
			return "{...}", nil
		}
		defer delete(r.seen, x.id)
		s, err := r.join(x.items, ", ")
		return "{" + s + "}", err
	case *Deque:
		if r.enter(x.id) {
			return "[...]", nil
		}
		defer delete(r.seen, x.id)
		s, err := r.join(x.items, ", ")
		if x.maxlen >= 0 {
			return "deque([" + s + "], maxlen=" + strconv.Itoa(x.maxlen) + ")", err
		}
		return "deque([" + s + "])", err
	case *View:
		if r.enter(x.dict.id) {
			return x.kind + "(...)", nil
		}
		defer delete(r.seen, x.dict.id)
		s, err := r.join(x.snapshot(r.in), ", ")
		return x.kind + "([" + s + "])", err
	case *Instance:
		if r.in != nil {
			if res, ok, err := r.in.callDunder(x, "__repr__"); ok {
				return dunderString("__repr__", res, err)
			}
		}
		return x.Repr(), nil
	case interface{ Repr() string }:
		return x.Repr(), nil
	}
	return "<object>", nil
}

func (r *renderer) dictBody(d *Dict) (string, error) {
	parts := make([]string, len(d.keys))
	for i, k := range d.keys {
		ks, err := r.repr(k)
		if err != nil {
			return "", err
		}
		vs, err := r.repr(d.vals[i])
		if err != nil {
			return "", err
		}
		parts[i] = ks + ": " + vs
	}
	return "{" + strings.Join(parts, ", ") + "}", nil
}

// formatFloat renders a float the way Python's repr does: the shortest
// round-tripping digits, with exponent notation outside [1e-4, 1e16).
func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	e := strconv.FormatFloat(f, 'e', -1, 64)
	mant, exp, _ := strings.Cut(e, "e")
	n, _ := strconv.Atoi(exp)
	if n < -4 || n >= 16 {
		return mant + "e" + exp
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

// quote renders a string literal, preferring single quotes.
func quote(s string) string {
	q := byte('\'')
	if strings.IndexByte(s, '\'') >= 0 && strings.IndexByte(s, '"') < 0 {
		q = '"'
	}
	var b strings.Builder
	b.WriteByte(q)
	for _, c := range s {
		switch {
		case c == rune(q) || c == '\\':
			b.WriteByte('\\')
			b.WriteRune(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20 || c == 0x7f:
			b.WriteString(`\x` + pad2(strconv.FormatInt(int64(c), 16)))
		case !unicode.IsPrint(c) && c > 0x7f:
			if c <= 0xffff {
				b.WriteString(`\u` + leftPad(strconv.FormatInt(int64(c), 16), 4))
			} else {
				b.WriteString(`\U` + leftPad(strconv.FormatInt(int64(c), 16), 8))
			}
		default:
			b.WriteRune(c)
		}
	}
	b.WriteByte(q)
	return b.String()
}

func pad2(s string) string { return leftPad(s, 2) }

func leftPad(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat("0", n-len(s)) + s
}

// ---- format specs ----

type fmtSpec struct {
	fill  rune
	align byte
	sign  byte
	alt   bool
	zero  bool
	width int
	group byte
	prec  int
	typ   byte
}

func parseSpec(spec string) (fmtSpec, bool) {
	fs := fmtSpec{prec: -1}
	rs := []rune(spec)
	i := 0
	isAlign := func(r rune) bool { return r == '<' || r == '>' || r == '=' || r == '^' }
	switch {
	case len(rs) >= 2 && isAlign(rs[1]):
		fs.fill, fs.align, i = rs[0], byte(rs[1]), 2
	case len(rs) >= 1 && isAlign(rs[0]):
		fs.align, i = byte(rs[0]), 1
	}
	if i < len(rs) && (rs[i] == '+' || rs[i] == '-' || rs[i] == ' ') {
		fs.sign = byte(rs[i])
		i++
	}
	if i < len(rs) && rs[i] == '#' {
		fs.alt = true
		i++
	}
	if i < len(rs) && rs[i] == '0' {
		fs.zero = true
		i++
	}
	start := i
	for i < len(rs) && rs[i] >= '0' && rs[i] <= '9' {
		i++
	}
	if i > start {
		fs.width, _ = strconv.Atoi(string(rs[start:i]))
	}
	if i < len(rs) && (rs[i] == ',' || rs[i] == '_') {
		fs.group = byte(rs[i])
		i++
	}
	if i < len(rs) && rs[i] == '.' {
		i++
		start = i
		for i < len(rs) && rs[i] >= '0' && rs[i] <= '9' {
			i++
		}
		if i == start {
			return fs, false
		}
		fs.prec, _ = strconv.Atoi(string(rs[start:i]))
	}
	if i < len(rs) {
		if rs[i] > unicode.MaxASCII {
			return fs, false
		}
		fs.typ = byte(rs[i])
		i++
	}
	return fs, i == len(rs)
}

// formatField renders one f-string or str.format replacement field.
func (in *Interp) formatField(v Value, conv byte, spec string) (string, error) {
	switch conv {
	case 'r', 'a':
		s, err := in.repr(v)
		if err != nil {
			return "", err
		}
		v = s
	case 's':
		s, err := in.str(v)
		if err != nil {
			return "", err
		}
		v = s
	}
	return in.applySpec(v, spec)
}

// applySpec implements format(v, spec).
func (in *Interp) applySpec(v Value, spec string) (string, error) {
	if spec == "" {
		return in.str(v)
	}
	fs, ok := parseSpec(spec)
	if !ok {
		return "", newErr(ValueErrorClass, "Invalid format specifier '%s' for object of type '%s'", spec, typeName(v))
	}
	switch x := v.(type) {
	case bool:
		n, _ := asInt(x)
		return formatIntSpec(n, fs)
	case int64:
		return formatIntSpec(x, fs)
	case *big.Int:
		return formatBigSpec(x, fs)
	case float64:
		return formatFloatSpec(x, fs)
	case string:
		return formatStrSpec(x, fs)
	case *Instance:
		if res, ok, err := in.callDunder(x, "__format__", spec); ok {
			return dunderString("__format__", res, err)
		}
	}
	return "", newErr(TypeErrorClass, "unsupported format string passed to %s.__format__", typeName(v))
}

func errFormatCode(typ byte, v string) error {
	return newErr(ValueErrorClass, "Unknown format code '%c' for object of type '%s'", typ, v)
}

func (fs fmtSpec) pad(prefix, body string, def byte) string {
	fill, align := fs.fill, fs.align
	if fs.zero && align == 0 {
		fill, align = '0', '='
	}
	if fill == 0 {
		fill = ' '
	}
	if align == 0 {
		align = def
	}
	n := fs.width - utf8.RuneCountInString(prefix) - utf8.RuneCountInString(body)
	if n <= 0 {
		return prefix + body
	}
	rep := func(k int) string { return strings.Repeat(string(fill), k) }
	switch align {
	case '<':
		return prefix + body + rep(n)
	case '^':
		return rep(n/2) + prefix + body + rep(n-n/2)
	case '=':
		return prefix + rep(n) + body
	}
	return rep(n) + prefix + body
}

func (fs fmtSpec) signOf(neg bool) string {
	switch {
	case neg:
		return "-"
	case fs.sign == '+':
		return "+"
	case fs.sign == ' ':
		return " "
	}
	return ""
}

func group(digits string, sep byte, every int) string {
	if sep == 0 || len(digits) <= every {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % every
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += every {
		if b.Len() > 0 {
			b.WriteByte(sep)
		}
		b.WriteString(digits[i : i+every])
	}
	return b.String()
}

func formatIntSpec(n int64, fs fmtSpec) (string, error) {
	switch fs.typ {
	case 'e', 'E', 'f', 'F', 'g', 'G', '%':
		return formatFloatSpec(float64(n), fs)
	case 'c':
		if n < 0 || n > unicode.MaxRune {
			return "", newErr(OverflowErrorClass, "%%c arg not in range(0x110000)")
		}
		return fs.pad("", string(rune(n)), '<'), nil
	case 0, 'd', 'n', 'x', 'X', 'o', 'b':
	default:
		return "", errFormatCode(fs.typ, "int")
	}
	if fs.prec >= 0 {
		return "", newErr(ValueErrorClass, "Precision not allowed in integer format specifier")
	}
	neg := n < 0
	mag := uint64(n)
	if neg {
		mag = -mag
	}
	return fs.padInt(neg, func(base int) string { return strconv.FormatUint(mag, base) }), nil
}

func formatBigSpec(n *big.Int, fs fmtSpec) (string, error) {
	switch fs.typ {
	case 'e', 'E', 'f', 'F', 'g', 'G', '%':
		f, err := bigFloat(n)
		if err != nil {
			return "", err
		}
		return formatFloatSpec(f, fs)
	case 'c':
		return "", newErr(OverflowErrorClass, "%%c arg not in range(0x110000)")
	case 0, 'd', 'n':
		if _, err := formatBig(n); err != nil {
			return "", err
		}
	case 'x', 'X', 'o', 'b':
	default:
		return "", errFormatCode(fs.typ, "int")
	}
	if fs.prec >= 0 {
		return "", newErr(ValueErrorClass, "Precision not allowed in integer format specifier")
	}
	mag := new(big.Int).Abs(n)
	return fs.padInt(n.Sign() < 0, mag.Text), nil
}

// padInt lays out an integer magnitude rendered by digits in the base the
// spec asks for.
func (fs fmtSpec) padInt(neg bool, digitsIn func(base int) string) string {
	base, prefix, every := 10, "", 3
	switch fs.typ {
	case 'x', 'X':
		base, prefix, every = 16, "0x", 4
	case 'o':
		base, prefix, every = 8, "0o", 4
	case 'b':
		base, prefix, every = 2, "0b", 4
	}
	digits := digitsIn(base)
	if fs.typ == 'X' {
		digits, prefix = strings.ToUpper(digits), "0X"
	}
	if !fs.alt {
		prefix = ""
	}
	return fs.pad(fs.signOf(neg)+prefix, group(digits, fs.group, every), '>')
}

func formatFloatSpec(f float64, fs fmtSpec) (string, error) {
	neg := math.Signbit(f) && !math.IsNaN(f)
	a := math.Abs(f)
	prec := fs.prec
	var body string
	switch fs.typ {
	case 0:
		if prec < 0 {
			body = formatFloat(a)
			break
		}
		if prec == 0 {
			prec = 1
		}
		body = strconv.FormatFloat(a, 'g', prec, 64)
		if !strings.ContainsAny(body, ".eIN") {
			body += ".0"
		}
	case 'f', 'F', '%':
		if prec < 0 {
			prec = 6
		}
		if fs.typ == '%' {
			a *= 100
		}
		body = strconv.FormatFloat(a, 'f', prec, 64)
		if fs.alt && prec == 0 {
			body += "."
		}
		if fs.typ == '%' {
			body += "%"
		}
	case 'e', 'E':
		if prec < 0 {
			prec = 6
		}
		body = strconv.FormatFloat(a, 'e', prec, 64)
	case 'g', 'G', 'n':
		if prec < 0 {
			prec = 6
		}
		if prec == 0 {
			prec = 1
		}
		body = strconv.FormatFloat(a, 'g', prec, 64)
	default:
		return "", errFormatCode(fs.typ, "float")
	}
	switch {
	case math.IsInf(a, 0):
		body = "inf"
		if fs.typ == '%' {
			body += "%"
		}
	case math.IsNaN(a):
		body = "nan"
	}
	if fs.typ == 'F' || fs.typ == 'E' || fs.typ == 'G' {
		body = strings.ToUpper(body)
	}
	if fs.group != 0 {
		intPart, rest := body, ""
		if i := strings.IndexAny(body, ".e%"); i >= 0 {
			intPart, rest = body[:i], body[i:]
		}
		if _, err := strconv.Atoi(intPart); err == nil {
			body = group(intPart, fs.group, 3) + rest
		}
	}
	return fs.pad(fs.signOf(neg), body, '>'), nil
}

func formatStrSpec(s string, fs fmtSpec) (string, error) {
	if fs.typ != 0 && fs.typ != 's' {
		return "", errFormatCode(fs.typ, "str")
	}
	if fs.sign != 0 {
		return "", newErr(ValueErrorClass, "Sign not allowed in string format specifier")
	}
	if fs.align == '=' {
		return "", newErr(ValueErrorClass, "'=' alignment not allowed in string format specifier")
	}
	if fs.prec >= 0 && utf8.RuneCountInString(s) > fs.prec {
		s = string([]rune(s)[:fs.prec])
	}
	if fs.zero && fs.align == 0 {
		fs.fill, fs.zero = '0', false
	}
	return fs.pad("", s, '<'), nil
}

// ---- printf-style formatting ----

// percentFormat implements format % args.
func (in *Interp) percentFormat(format string, args Value) (Value, error) {
	var positional []Value
	mapping, _ := args.(*Dict)
	if t, ok := args.(*Tuple); ok {
		positional = t.items
	} else {
		positional = []Value{args}
	}
	next := 0
	take := func() (Value, error) {
		if next >= len(positional) {
			return nil, newErr(TypeErrorClass, "not enough arguments for format string")
		}
		next++
		return positional[next-1], nil
	}
	usedMapping := false

	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(format) {
			return nil, newErr(ValueErrorClass, "incomplete format")
		}
		var arg Value
		haveArg := false
		if format[i] == '(' {
			end := strings.IndexByte(format[i:], ')')
			if end < 0 {
				return nil, newErr(ValueErrorClass, "incomplete format key")
			}
			if mapping == nil {
				return nil, newErr(TypeErrorClass, "format requires a mapping")
			}
			key := format[i+1 : i+end]
			v, found, err := mapping.get(key)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, errKey(key)
			}
			arg, haveArg, usedMapping = v, true, true
			i += end + 1
		}
		fs := fmtSpec{prec: -1}
	flags:
		for ; i < len(format); i++ {
			switch format[i] {
			case '-':
				fs.align = '<'
			case '+':
				fs.sign = '+'
			case ' ':
				if fs.sign == 0 {
					fs.sign = ' '
				}
			case '#':
				fs.alt = true
			case '0':
				fs.zero = true
			default:
				break flags
			}
		}
		if fs.align == '<' {
			fs.zero = false
		}
		start := i
		for i < len(format) && format[i] >= '0' && format[i] <= '9' {
			i++
		}
		fs.width, _ = strconv.Atoi(format[start:i])
		if i < len(format) && format[i] == '.' {
			i++
			start = i
			for i < len(format) && format[i] >= '0' && format[i] <= '9' {
				i++
			}
			fs.prec, _ = strconv.Atoi(format[start:i])
		}
		if i >= len(format) {
			return nil, newErr(ValueErrorClass, "incomplete format")
		}
		verb := format[i]
		if verb == '%' {
			b.WriteByte('%')
			continue
		}
		if !haveArg {
			var err error
			if arg, err = take(); err != nil {
				return nil, err
			}
		}
		s, err := in.percentVerb(verb, arg, fs)
		if err != nil {
			return nil, err
		}
		b.WriteString(s)
	}
	if next < len(positional) && !usedMapping && mapping == nil {
		return nil, newErr(TypeErrorClass, "not all arguments converted during string formatting")
	}
	return b.String(), nil
}

func (in *Interp) percentVerb(verb byte, arg Value, fs fmtSpec) (string, error) {
	switch verb {
	case 's', 'r', 'a':
		var s string
		var err error
		if verb == 's' {
			s, err = in.str(arg)
		} else {
			s, err = in.repr(arg)
		}
		if err != nil {
			return "", err
		}
		fs.zero = false
		return formatStrSpec(s, fs)
	case 'd', 'i', 'u', 'x', 'X', 'o':
		typ := verb
		if verb == 'i' || verb == 'u' {
			typ = 'd'
		}
		digitsOnly := fs
		digitsOnly.typ, digitsOnly.prec = typ, -1
		if b, ok := arg.(*big.Int); ok {
			return formatBigSpec(b, digitsOnly)
		}
		n, ok := asInt(arg)
		if !ok {
			f, isFloat := arg.(float64)
			if !isFloat {
				return "", newErr(TypeErrorClass, "%%%c format: a real number is required, not %s", verb, typeName(arg))
			}
			v, err := floatToInt(f)
			if err != nil {
				return "", err
			}
			if b, ok := v.(*big.Int); ok {
				return formatBigSpec(b, digitsOnly)
			}
			n = v.(int64)
		}
		return formatIntSpec(n, digitsOnly)
	case 'f', 'F', 'e', 'E', 'g', 'G':
		f, ok := asFloat(arg)
		if !ok {
			return "", newErr(TypeErrorClass, "must be real number, not %s", typeName(arg))
		}
		fs.typ = verb
		return formatFloatSpec(f, fs)
	case 'c':
		switch x := arg.(type) {
		case string:
			if utf8.RuneCountInString(x) != 1 {
				return "", newErr(TypeErrorClass, "%%c requires int or char")
			}
			return formatStrSpec(x, fs)
		case int64:
			fs.typ = 'c'
			return formatIntSpec(x, fs)
		}
		return "", newErr(TypeErrorClass, "%%c requires int or char")
	}
	return "", newErr(ValueErrorClass, "unsupported format character '%c' (0x%x)", verb, verb)
}

// ---- str.format ----

func (in *Interp) strFormat(format string, args []Value, kw map[string]Value) (string, error) {
	var b strings.Builder
	auto := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		switch {
		case c == '{' && i+1 < len(format) && format[i+1] == '{':
			b.WriteByte('{')
			i++
			continue
		case c == '}' && i+1 < len(format) && format[i+1] == '}':
			b.WriteByte('}')
			i++
			continue
		case c == '}':
			return "", newErr(ValueErrorClass, "Single '}' encountered in format string")
		case c != '{':
			b.WriteByte(c)
			continue
		}
		end := strings.IndexByte(format[i:], '}')
		if end < 0 {
			return "", newErr(ValueErrorClass, "Single '{' encountered in format string")
		}
		field := format[i+1 : i+end]
		i += end

		field, spec, _ := strings.Cut(field, ":")
		var conv byte
		if name, cv, ok := strings.Cut(field, "!"); ok {
			if len(cv) != 1 || !strings.Contains("rsa", cv) {
				return "", newErr(ValueErrorClass, "Unknown conversion specifier %s", cv)
			}
			field, conv = name, cv[0]
		}
		v, err := in.lookupField(field, &auto, args, kw)
		if err != nil {
			return "", err
		}
		s, err := in.formatField(v, conv, spec)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

// lookupField resolves "name", "0", "" (automatic numbering) and trailing
// .attr or [key] accessors.
func (in *Interp) lookupField(field string, auto *int, args []Value, kw map[string]Value) (Value, error) {
	head := field
	if i := strings.IndexAny(field, ".["); i >= 0 {
		head, field = field[:i], field[i:]
	} else {
		field = ""
	}
	var v Value
	switch n, err := strconv.Atoi(head); {
	case head == "":
		n = *auto
		*auto++
		fallthrough
	case err == nil:
		if n >= len(args) {
			return nil, newErr(IndexErrorClass, "Replacement index %d out of range for positional args tuple", n)
		}
		v = args[n]
	default:
		val, ok := kw[head]
		if !ok {
			return nil, errKey(head)
		}
		v = val
	}
	for field != "" {
		var err error
		if field[0] == '.' {
			name := field[1:]
			if i := strings.IndexAny(name, ".["); i >= 0 {
				name, field = name[:i], name[i:]
			} else {
				field = ""
			}
			v, err = in.getattr(v, name)
		} else {
			end := strings.IndexByte(field, ']')
			if end < 0 {
				return nil, newErr(ValueErrorClass, "Missing ']' in format string")
			}
			key := Value(field[1:end])
			if n, convErr := strconv.ParseInt(field[1:end], 10, 64); convErr == nil {
				key = n
			}
			field = field[end+1:]
			v, err = in.getitem(v, key)
		}
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}
