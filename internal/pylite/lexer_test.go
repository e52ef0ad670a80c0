package pylite

import (
	"errors"
	"math/big"
	"testing"
)

func tokenTypes(t *testing.T, src string) []TokenType {
	t.Helper()
	toks, err := Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize(%q): %v", src, err)
	}
	out := make([]TokenType, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func TestTokenizeIndentation(t *testing.T) {
	got := tokenTypes(t, "if x:\n    y = 1\nz\n")
	want := []TokenType{
		IF, NAME, COLON, NEWLINE,
		INDENT, NAME, ASSIGN, INT, NEWLINE,
		DEDENT, NAME, NEWLINE,
		EOF,
	}
	if len(got) != len(want) {
		t.Fatalf("got %d tokens %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTokenizeBracketContinuation(t *testing.T) {
	got := tokenTypes(t, "x = [1,\n     2]\n")
	for _, tt := range got[:len(got)-2] {
		if tt == NEWLINE || tt == INDENT {
			t.Fatalf("unexpected layout token inside brackets: %v", got)
		}
	}
}

func TestTokenizeLiterals(t *testing.T) {
	toks, err := Tokenize(`a = 'it\'s' + "tab\t" + 0x1F + 1_000 + 2.5e3`)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	var lits []any
	for _, tok := range toks {
		if tok.Type == STRING || tok.Type == INT || tok.Type == FLOAT {
			lits = append(lits, tok.Literal)
		}
	}
	want := []any{"it's", "tab\t", int64(31), int64(1000), 2500.0}
	if len(lits) != len(want) {
		t.Fatalf("literals = %v, want %v", lits, want)
	}
	for i := range want {
		if lits[i] != want[i] {
			t.Errorf("literal %d = %#v, want %#v", i, lits[i], want[i])
		}
	}
}

func TestTokenizeIntLiteralWidth(t *testing.T) {
	tests := []struct {
		src  string
		want string
		big  bool
	}{
		{"9223372036854775807", "9223372036854775807", false},
		{"9223372036854775808", "9223372036854775808", true},
		{"0xFFFF_FFFF_FFFF_FFFF_FF", "4722366482869645213695", true},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			toks, err := Tokenize(tt.src)
			if err != nil {
				t.Fatalf("Tokenize: %v", err)
			}
			switch v := toks[0].Literal.(type) {
			case int64:
				if tt.big || big.NewInt(v).String() != tt.want {
					t.Errorf("literal = int64 %d, want %s (big %v)", v, tt.want, tt.big)
				}
			case *big.Int:
				if !tt.big || v.String() != tt.want {
					t.Errorf("literal = big %s, want %s (big %v)", v, tt.want, tt.big)
				}
			default:
				t.Fatalf("literal is %T", v)
			}
		})
	}
}

func TestTokenizeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind string
		line int
	}{
		{"unterminated string", "x = 1\ny = 'abc\n", "SyntaxError", 2},
		{"bad dedent", "if x:\n        a\n    b\n", "IndentationError", 3},
		{"unmatched bracket", "x = 1)\n", "SyntaxError", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.src)
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want *SyntaxError", err)
			}
			if se.Kind != tt.kind || se.Line != tt.line {
				t.Errorf("got %s at line %d, want %s at line %d", se.Kind, se.Line, tt.kind, tt.line)
			}
		})
	}
}
