package pylite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func run(t *testing.T, src string, opts Options) (string, error) {
	t.Helper()
	var out bytes.Buffer
	opts.Stdout = &out
	err := New(opts).Run(context.Background(), src)
	return out.String(), err
}

func TestPrograms(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "integer arithmetic",
			src:  "print(7 // 2, -7 // 2, 7 % -3, 2 ** 10, 7 / 2)",
			want: "3 -4 -2 1024 3.5\n",
		},
		{
			name: "big integers",
			src: `import math
x = 9223372036854775807
def fact(n):
    if n <= 1:
        return 1
    return n * fact(n - 1)
print(10 ** 20, 2 ** 64 - 1, -2 ** 63 - 1)
print(2 ** 100 // 3, 2 ** 100 % 7, -(2 ** 70) // 3, (2 ** 70) // -3, (2 ** 70) % -3)
print(2 ** 64 == 2.0 ** 64, 2 ** 64 > 1e300, hex(2 ** 64), f"{2 ** 64:,}", {2 ** 64: 'a'}[2 ** 64])
print(x + 1 - 1 == x, isinstance(x + 1, int), -(-x - 1), abs(-x - 1), (x + 1).bit_length())
print(math.factorial(25), int('1' * 30), int(1e20), pow(2 ** 70, 3, 10 ** 20), '%d' % 2 ** 64)
print(1 << 70, (1 << 70) >> 68, ~(2 ** 64), 2 ** 64 / 2 ** 62, sum([2 ** 62] * 4), max(2 ** 64, 3))
print(fact(25))`,
			want: "100000000000000000000 18446744073709551615 -9223372036854775809\n" +
				"422550200076076467165567735125 2 -393530540239137101142 -393530540239137101142 -2\n" +
				"True False 0x10000000000000000 18,446,744,073,709,551,616 a\n" +
				"True True 9223372036854775808 9223372036854775808 64\n" +
				"15511210043330985984000000 111111111111111111111111111111 100000000000000000000 65633579863348609024 18446744073709551616\n" +
				"1180591620717411303424 4 -18446744073709551617 4.0 18446744073709551616 18446744073709551616\n" +
				"15511210043330985984000000\n",
		},
		{
			name: "float repr",
			src:  "print(1 / 2, 3.0, 1e20, 0.1 + 0.2, 1e-05)",
			want: "0.5 3.0 1e+20 0.30000000000000004 1e-05\n",
		},
		{
			name: "strings",
			src:  "s = \"Hello, World\"\nprint(s.lower(), s.split(\", \"), s[::-1], len(s))",
			want: "hello, world ['Hello', 'World'] dlroW ,olleH 12\n",
		},
		{
			name: "f-strings",
			src:  "x = 3.14159\nprint(f\"{x:.2f}|{42:>5}|{'ab':<4}|{7:^5}|{x!r}|{1234567:,}\")",
			want: "3.14|   42|ab  |  7  |3.14159|1,234,567\n",
		},
		{
			name: "list methods",
			src:  "a = [3, 1, 2]\na.append(5)\na.sort()\nprint(a.pop(), a, a.index(2), sorted(a, reverse=True))",
			want: "5 [1, 2, 3] 1 [3, 2, 1]\n",
		},
		{
			name: "dict iteration",
			src:  "d = {\"a\": 1}\nd[\"b\"] = 2\nfor k, v in d.items():\n    print(k, v)\nprint(d.get(\"z\", 0), list(d.keys()), d)",
			want: "a 1\nb 2\n0 ['a', 'b'] {'a': 1, 'b': 2}\n",
		},
		{
			name: "inheritance and super",
			src: `class Animal:
    def __init__(self, name):
        self.name = name
    def speak(self):
        return self.name + " makes a sound"

class Dog(Animal):
    def speak(self):
        return super().speak() + " (woof)"

print(Dog("Rex").speak())`,
			want: "Rex makes a sound (woof)\n",
		},
		{
			name: "str and repr hooks",
			src: `class P:
    def __init__(self, x):
        self.x = x
    def __repr__(self):
        return "P(" + str(self.x) + ")"
print(P(1), [P(2)])`,
			want: "P(1) [P(2)]\n",
		},
		{
			name: "closures",
			src: `def counter():
    n = 0
    def inc():
        nonlocal n
        n += 1
        return n
    return inc
c = counter()
c()
print(c(), c())`,
			want: "2 3\n",
		},
		{
			name: "try except finally",
			src: `try:
    1 / 0
except ZeroDivisionError as e:
    print("caught", e)
finally:
    print("done")`,
			want: "caught division by zero\ndone\n",
		},
		{
			name: "user exception",
			src: `class Oops(Exception):
    pass
try:
    raise Oops("bad")
except Exception as e:
    print(type(e).__name__, e)`,
			want: "Oops bad\n",
		},
		{
			name: "comprehensions",
			src:  "print([x * x for x in range(5) if x % 2 == 0], {x: x + 1 for x in range(2)}, {c for c in 'aa'})",
			want: "[0, 4, 16] {0: 1, 1: 2} {'a'}\n",
		},
		{
			name: "deque",
			src:  "from collections import deque\nq = deque([1, 2])\nq.appendleft(0)\nq.append(3)\nprint(q.popleft(), q, len(q))",
			want: "0 deque([1, 2, 3]) 3\n",
		},
		{
			name: "defaultdict",
			src:  "from collections import defaultdict\nd = defaultdict(list)\nd['a'].append(1)\nprint(dict(d), d['a'])",
			want: "{'a': [1]} [1]\n",
		},
		{
			name: "heapq",
			src:  "import heapq\nh = []\nfor x in [5, 1, 3]:\n    heapq.heappush(h, x)\nprint(heapq.heappop(h), h)",
			want: "1 [3, 5]\n",
		},
		{
			name: "percent and format",
			src:  "print(\"%d-%s-%.2f\" % (3, \"x\", 3.14159))\nprint(\"{} + {} = {total}\".format(1, 2, total=3))",
			want: "3-x-3.14\n1 + 2 = 3\n",
		},
		{
			name: "swap and unpack",
			src:  "a, b = 1, 2\na, b = b, a\nprint(a, b)",
			want: "2 1\n",
		},
		{
			name: "while else and break",
			src: `n = 0
while n < 10:
    n += 1
    if n == 3:
        break
else:
    print("never")
for i in range(2):
    pass
else:
    print("loop done", n)`,
			want: "loop done 3\n",
		},
		{
			name: "builtins",
			src:  "print(max([3, 7, 2]), min(4, 1, key=lambda v: -v), sum(range(5)), abs(-2), round(2.5), round(3.14159, 2))\nprint(list(zip('ab', [1, 2])), list(enumerate('xy', 1)), any([0, 1]), all([]))",
			want: "7 4 10 2 2 3.14\n[('a', 1), ('b', 2)] [(1, 'x'), (2, 'y')] True True\n",
		},
		{
			name: "argument and target unpacking",
			src: `a = [1, 2, 3]
print(*a, sep=", ")
x, *rest = a
first, *mid, last = 'hello'
*init, tail = (4,)
print(x, rest, first, mid, last, init, tail)
def f(p, q, r=0, **kw):
    return p + q + r + sum(kw.values())
opts = {'r': 10, 's': 100}
print(f(*[1, 2]), f(*a), f(1, *[2], **opts), [*a, *'ab'], (*a, 0), {*a, 3})
for i, *xs in [(1, 2, 3), (4,)]:
    print(i, xs)`,
			want: "1, 2, 3\n1 [2, 3] h ['e', 'l', 'l'] o [] 4\n" +
				"3 6 113 [1, 2, 3, 'a', 'b'] (1, 2, 3, 0) {1, 2, 3}\n1 [2, 3]\n4 []\n",
		},
		{
			name: "variadic parameters",
			src: `def total(*nums, scale=1):
    return sum(nums) * scale
def describe(name, *tags, sep='/', **info):
    return name + ':' + sep.join(tags) + ' ' + str(info)
print(total(), total(1, 2, 3), total(*range(4), scale=2))
print(describe('x', 'a', 'b', z=1, y=2), describe('y', sep='-', **{'k': 'v'}))
f = lambda *a, **k: (a, k)
print(f(1, b=2))`,
			want: "0 6 12\nx:a/b {'z': 1, 'y': 2} y: {'k': 'v'}\n((1,), {'b': 2})\n",
		},
		{
			name: "print sep and end",
			src:  "print(1, 2, sep='-', end='!')\nprint()",
			want: "1-2!\n",
		},
		{
			name: "chained comparison and membership",
			src:  "x = 5\nprint(1 < x <= 5, 3 in [1, 2], 'b' not in 'abc', None is None)",
			want: "True False False True\n",
		},
		{
			name: "cyclic list",
			src:  "a = [1]\na.append(a)\nprint(a)",
			want: "[1, [...]]\n",
		},
		{
			name: "slices",
			src:  "a = list(range(10))\nprint(a[2:5], a[-2:], a[::3])\na[1:3] = ['x']\nprint(a[:3])",
			want: "[2, 3, 4] [8, 9] [0, 3, 6, 9]\n[0, 'x', 3]\n",
		},
		{
			name: "seeded random is reproducible",
			src:  "import random\nrandom.seed(7)\na = random.randint(1, 100)\nrandom.seed(7)\nprint(a == random.randint(1, 100))",
			want: "True\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := run(t, tt.src, Options{})
			if err != nil {
				t.Fatalf("run: %v (output %q)", err, got)
			}
			if got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExceptions(t *testing.T) {
	tests := []struct {
		name string
		src  string
		typ  string
		msg  string
		line int
	}{
		{"name error", "x = 1\nprint(y)", "NameError", "name 'y' is not defined", 2},
		{"index error", "a = [1, 2]\na[5]", "IndexError", "list index out of range", 2},
		{"key error", "d = {}\nd['k']", "KeyError", "'k'", 2},
		{"value error", "int('abc')", "ValueError", "invalid literal for int() with base 10: 'abc'", 1},
		{"type error", "'a' + 1", "TypeError", `can only concatenate str (not "int") to str`, 1},
		{"int too large for float", "x = 10 ** 400\nx / 1.0", "OverflowError", "int too large to convert to float", 2},
		{"int string limit", "x = 10 ** 5000\nstr(x)", "ValueError", "", 2},
		{"starred target too short", "a, *b, c = [1]", "ValueError", "not enough values to unpack (expected at least 2, got 1)", 1},
		{"star of non-iterable", "print(*5)", "TypeError", "", 1},
		{"double star of non-mapping", "def f(**k):\n    pass\nf(**[1])", "TypeError", "argument after ** must be a mapping, not list", 3},
		{"duplicate keyword from mapping", "def f(**k):\n    pass\nf(a=1, **{'a': 2})", "TypeError", "got multiple values for keyword argument 'a'", 3},
		{"missing keyword-only argument", "def f(*, k):\n    pass\nf()", "TypeError", "f() missing 1 required keyword-only argument: 'k'", 3},
		{"keyword-only passed positionally", "def f(a, *, k):\n    pass\nf(1, 2, k=3)", "TypeError", "", 3},
		{"raise in function", "def f():\n    raise ValueError('bad')\n\nf()", "ValueError", "bad", 2},
		{"attribute error", "x = 1\nx.foo", "AttributeError", "'int' object has no attribute 'foo'", 2},
		{"unbound local", "x = 1\ndef f():\n    print(x)\n    x = 2\nf()", "UnboundLocalError", "", 3},
		{"assertion", "assert 1 == 2, 'nope'", "AssertionError", "nope", 1},
		{"import", "import os", "ModuleNotFoundError", "No module named 'os'", 1},
		{"recursion", "def f(n):\n    return f(n + 1)\nf(0)", "RecursionError", "maximum recursion depth exceeded", 2},
		{"input without source", "input()", "EOFError", "EOF when reading a line", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.src, Options{})
			var exc *Exception
			if !errors.As(err, &exc) {
				t.Fatalf("err = %v, want *Exception", err)
			}
			if exc.TypeName() != tt.typ {
				t.Errorf("type = %s, want %s", exc.TypeName(), tt.typ)
			}
			if tt.msg != "" && exc.Message() != tt.msg {
				t.Errorf("message = %q, want %q", exc.Message(), tt.msg)
			}
			if exc.Line != tt.line {
				t.Errorf("line = %d, want %d", exc.Line, tt.line)
			}
		})
	}
}

func TestExceptionNotCaughtByWrongHandler(t *testing.T) {
	src := `try:
    [][0]
except KeyError:
    print("wrong")`
	out, err := run(t, src, Options{})
	var exc *Exception
	if !errors.As(err, &exc) || exc.TypeName() != "IndexError" {
		t.Fatalf("err = %v, want IndexError", err)
	}
	if out != "" {
		t.Errorf("output = %q, want empty", out)
	}
}

func TestSyntaxErrorBeforeExecution(t *testing.T) {
	out, err := run(t, "print('hi')\nx = (1,\n", Options{})
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SyntaxError", err)
	}
	if out != "" {
		t.Errorf("program ran before the syntax error was reported: %q", out)
	}
}

func TestInput(t *testing.T) {
	inputs := []string{"Ada", "36"}
	read := func(prompt string) (string, error) {
		if len(inputs) == 0 {
			return "", ErrEndOfInput
		}
		v := inputs[0]
		inputs = inputs[1:]
		return v, nil
	}
	out, err := run(t, "name = input('name? ')\nage = int(input())\nprint(name, age + 1)\ninput()", Options{Input: read})
	if out != "Ada 37\n" {
		t.Errorf("output = %q", out)
	}
	var exc *Exception
	if !errors.As(err, &exc) || exc.TypeName() != "EOFError" {
		t.Fatalf("err = %v, want EOFError", err)
	}
	if !errors.Is(err, ErrEndOfInput) {
		t.Error("EOFError should wrap ErrEndOfInput")
	}
	if exc.Line != 4 {
		t.Errorf("line = %d, want 4", exc.Line)
	}
}

type limitWriter struct {
	buf   bytes.Buffer
	limit int
}

func (w *limitWriter) Write(p []byte) (int, error) {
	if w.buf.Len()+len(p) > w.limit {
		return 0, ErrOutputLimit
	}
	return w.buf.Write(p)
}

func TestOutputLimitIsNotCatchable(t *testing.T) {
	w := &limitWriter{limit: 10}
	src := `try:
    while True:
        print("spam")
except Exception:
    print("swallowed")`
	err := New(Options{Stdout: w}).Run(context.Background(), src)
	var exc *Exception
	if !errors.As(err, &exc) || exc.TypeName() != "OutputLimitError" {
		t.Fatalf("err = %v, want OutputLimitError", err)
	}
	if !errors.Is(err, ErrOutputLimit) {
		t.Error("OutputLimitError should wrap ErrOutputLimit")
	}
	if strings.Contains(w.buf.String(), "swallowed") {
		t.Error("except Exception caught the output limit")
	}
}

type recorder struct {
	lines []string
	stop  int
}

func (r *recorder) Statement(line int, f *Frame) error {
	r.lines = append(r.lines, fmt.Sprintf("%s:%d", f.Function(), line))
	if r.stop > 0 && len(r.lines) >= r.stop {
		return errors.New("stop")
	}
	return nil
}

func TestTracerLineEvents(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "for loop header re-fires",
			src:  "x = 0\nfor i in range(2):\n    x += i\nprint(x)",
			want: []string{"<module>:1", "<module>:2", "<module>:3", "<module>:2", "<module>:3", "<module>:2", "<module>:4"},
		},
		{
			name: "while loop",
			src:  "n = 0\nwhile n < 2:\n    n += 1",
			want: []string{"<module>:1", "<module>:2", "<module>:3", "<module>:2", "<module>:3", "<module>:2"},
		},
		{
			name: "function call",
			src:  "def f(a):\n    return a + 1\ny = f(1)",
			want: []string{"<module>:1", "<module>:3", "f:2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			if _, err := run(t, tt.src, Options{Tracer: rec}); err != nil {
				t.Fatalf("run: %v", err)
			}
			if strings.Join(rec.lines, " ") != strings.Join(tt.want, " ") {
				t.Errorf("events = %v, want %v", rec.lines, tt.want)
			}
		})
	}
}

func TestTracerErrorAbortsRun(t *testing.T) {
	rec := &recorder{stop: 3}
	_, err := run(t, "while True:\n    pass", Options{Tracer: rec})
	if err == nil || err.Error() != "stop" {
		t.Fatalf("err = %v, want tracer error", err)
	}
	var exc *Exception
	if errors.As(err, &exc) {
		t.Error("tracer errors must not become program exceptions")
	}
}

type localsCapture struct {
	line   int
	locals []Binding
}

func (p *localsCapture) Statement(line int, f *Frame) error {
	if line == p.line {
		p.locals = f.Locals()
	}
	return nil
}

func TestFrameLocals(t *testing.T) {
	capture := &localsCapture{line: 3}
	src := "def f(a, b):\n    c = a + b\n    return c\nf(1, 2)"
	if _, err := run(t, src, Options{Tracer: capture}); err != nil {
		t.Fatalf("run: %v", err)
	}
	var names []string
	for _, b := range capture.locals {
		names = append(names, b.Name)
	}
	if strings.Join(names, ",") != "a,b,c" {
		t.Errorf("locals = %v, want a,b,c", names)
	}
}

func TestObjectIDsAreDeterministic(t *testing.T) {
	src := "a = [1]\nb = {'k': a}\nclass C:\n    pass\nc = C()\nprint(id(a), id(b), id(c))"
	first, err := run(t, src, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	second, err := run(t, src, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if first != second {
		t.Errorf("ids differ across runs: %q vs %q", first, second)
	}
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(Options{}).Run(ctx, "while True:\n    pass")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestMemoryLimit(t *testing.T) {
	_, err := run(t, "x = [0] * 20000000", Options{})
	var exc *Exception
	if !errors.As(err, &exc) || exc.TypeName() != "MemoryError" {
		t.Fatalf("err = %v, want MemoryError", err)
	}
}
