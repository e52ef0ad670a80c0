package pylite

import "fmt"

// TokenType identifies the lexical class of a token.
type TokenType int

const (
	EOF TokenType = iota
	NEWLINE
	INDENT
	DEDENT

	NAME
	INT
	FLOAT
	STRING
	FSTRING

	// Operators and punctuation
	PLUS      // +
	MINUS     // -
	STAR      // *
	DSTAR     // **
	SLASH     // /
	DSLASH    // //
	PERCENT   // %
	AMP       // &
	PIPE      // |
	CARET     // ^
	TILDE     // ~
	LSHIFT    // <<
	RSHIFT    // >>
	ASSIGN    // =
	EQ        // ==
	NE        // !=
	LT        // <
	LE        // <=
	GT        // >
	GE        // >=
	AUGASSIGN // +=, -=, *=, /=, //=, %=, **=, &=, |=, ^=, <<=, >>=
	LPAREN
	RPAREN
	LBRACK
	RBRACK
	LBRACE
	RBRACE
	COMMA
	COLON
	DOT
	SEMI
	ARROW

	// Keywords
	AND
	AS
	ASSERT
	BREAK
	CLASS
	CONTINUE
	DEF
	DEL
	ELIF
	ELSE
	EXCEPT
	FALSE
	FINALLY
	FOR
	FROM
	GLOBAL
	IF
	IMPORT
	IN
	IS
	LAMBDA
	NONE
	NONLOCAL
	NOT
	OR
	PASS
	RAISE
	RETURN
	TRUE
	TRY
	WHILE
)

var keywords = map[string]TokenType{
	"and":      AND,
	"as":       AS,
	"assert":   ASSERT,
	"break":    BREAK,
	"class":    CLASS,
	"continue": CONTINUE,
	"def":      DEF,
	"del":      DEL,
	"elif":     ELIF,
	"else":     ELSE,
	"except":   EXCEPT,
	"False":    FALSE,
	"finally":  FINALLY,
	"for":      FOR,
	"from":     FROM,
	"global":   GLOBAL,
	"if":       IF,
	"import":   IMPORT,
	"in":       IN,
	"is":       IS,
	"lambda":   LAMBDA,
	"None":     NONE,
	"nonlocal": NONLOCAL,
	"not":      NOT,
	"or":       OR,
	"pass":     PASS,
	"raise":    RAISE,
	"return":   RETURN,
	"True":     TRUE,
	"try":      TRY,
	"while":    WHILE,
}

// Keywords the evaluator does not support. They are rejected with a
// SyntaxError naming the construct.
var unsupportedKeywords = map[string]bool{
	"async": true,
	"await": true,
	"with":  true,
	"yield": true,
}

// Token is a lexical token with its decoded literal and 1-based position.
type Token struct {
	Type    TokenType
	Lexeme  string
	Literal any
	Line    int
	Col     int
}

func (t Token) String() string {
	switch t.Type {
	case EOF:
		return "end of input"
	case NEWLINE:
		return "newline"
	case INDENT:
		return "indent"
	case DEDENT:
		return "dedent"
	}
	return fmt.Sprintf("%q", t.Lexeme)
}
