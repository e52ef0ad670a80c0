package pylite

import (
	"errors"
	"testing"
)

func TestParseStatements(t *testing.T) {
	prog, err := Parse(`
def add(a, b=2):
    return a + b

class Point:
    def __init__(self, x):
        self.x = x

for i in range(3):
    if i % 2 == 0:
        continue
    else:
        pass
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(prog) != 3 {
		t.Fatalf("got %d top-level statements, want 3", len(prog))
	}
	fn, ok := prog[0].(*FuncDef)
	if !ok {
		t.Fatalf("stmt 0 is %T, want *FuncDef", prog[0])
	}
	if fn.Name != "add" || len(fn.Params) != 2 || fn.Params[1].Default == nil {
		t.Errorf("unexpected function def: %+v", fn)
	}
	if fn.Pos() != 2 {
		t.Errorf("def line = %d, want 2", fn.Pos())
	}
	if _, ok := prog[1].(*ClassDef); !ok {
		t.Errorf("stmt 1 is %T, want *ClassDef", prog[1])
	}
	loop, ok := prog[2].(*ForStmt)
	if !ok {
		t.Fatalf("stmt 2 is %T, want *ForStmt", prog[2])
	}
	if loop.Pos() != 9 || len(loop.Body) != 1 {
		t.Errorf("for loop line %d with %d body statements", loop.Pos(), len(loop.Body))
	}
}

func TestParsePrecedence(t *testing.T) {
	prog, err := Parse("x = 1 + 2 * 3 ** 2\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	assign := prog[0].(*AssignStmt)
	add, ok := assign.Value.(*BinOp)
	if !ok || add.Op != "+" {
		t.Fatalf("top operator = %#v, want +", assign.Value)
	}
	mul, ok := add.Right.(*BinOp)
	if !ok || mul.Op != "*" {
		t.Fatalf("right operand = %#v, want *", add.Right)
	}
	if pow, ok := mul.Right.(*BinOp); !ok || pow.Op != "**" {
		t.Fatalf("innermost operand = %#v, want **", mul.Right)
	}
}

func TestParseStarred(t *testing.T) {
	prog, err := Parse("head, *tail = f(*args, key=1, **opts)\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	assign := prog[0].(*AssignStmt)
	target, ok := assign.Targets[0].(*TupleExpr)
	if !ok || len(target.Elts) != 2 {
		t.Fatalf("target = %#v, want two-element tuple", assign.Targets[0])
	}
	if _, ok := target.Elts[1].(*Starred); !ok {
		t.Errorf("second target is %T, want *Starred", target.Elts[1])
	}
	call := assign.Value.(*Call)
	if _, ok := call.Args[0].(*Starred); !ok || len(call.Args) != 1 {
		t.Errorf("call args = %#v, want one starred argument", call.Args)
	}
	if len(call.Keywords) != 2 || call.Keywords[0].Name != "key" || call.Keywords[1].Name != "" {
		t.Errorf("call keywords = %+v, want key then **opts", call.Keywords)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind string
		line int
	}{
		{"missing colon", "x = 1\nif x\n    pass\n", "SyntaxError", 2},
		{"missing block", "if True:\npass\n", "IndentationError", 2},
		{"unexpected indent", "x = 1\n    y = 2\n", "IndentationError", 2},
		{"break outside loop", "break\n", "SyntaxError", 1},
		{"bad assignment target", "1 = x\n", "SyntaxError", 1},
		{"return outside function", "return 1\n", "SyntaxError", 1},
		{"two starred targets", "a, *b, *c = x\n", "SyntaxError", 1},
		{"bare starred target", "x = 1\n*a = [1]\n", "SyntaxError", 2},
		{"starred in expression", "print((*a))\n", "SyntaxError", 1},
		{"delete starred", "del a, *b\n", "SyntaxError", 1},
		{"positional after unpacked keywords", "f(**k, 1)\n", "SyntaxError", 1},
		{"bare star without names", "def f(a, *):\n    pass\n", "SyntaxError", 1},
		{"parameter after kwargs", "def f(**k, a):\n    pass\n", "SyntaxError", 1},
		{"default on varargs", "def f(*a=1):\n    pass\n", "SyntaxError", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want *SyntaxError", err)
			}
			if se.Kind != tt.kind || se.Line != tt.line {
				t.Errorf("got %s at line %d (%s), want %s at line %d", se.Kind, se.Line, se.Msg, tt.kind, tt.line)
			}
		})
	}
}
