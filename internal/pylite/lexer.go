package pylite

import (
	"math/big"
	"strconv"
	"strings"
	"unicode"
)

const tabSize = 8

// Lexer turns source text into tokens, synthesizing NEWLINE, INDENT and DEDENT
// from the physical layout the way Python's tokenizer does.
type Lexer struct {
	src    []rune
	pos    int
	line   int
	col    int
	depth  int // open (, [ and { brackets
	indent []int
	tokens []Token
	atBOL  bool
}

// Tokenize scans the whole source. The returned slice always ends in EOF.
func Tokenize(src string) ([]Token, error) {
	lx := &Lexer{
		src:    []rune(strings.ReplaceAll(src, "\r\n", "\n")),
		line:   1,
		col:    1,
		indent: []int{0},
		atBOL:  true,
	}
	if err := lx.run(); err != nil {
		return nil, err
	}
	return lx.tokens, nil
}

func (lx *Lexer) run() error {
	for {
		if lx.atBOL && lx.depth == 0 {
			done, err := lx.lineStart()
			if err != nil {
				return err
			}
			if done {
				break
			}
		}
		if lx.pos >= len(lx.src) {
			break
		}
		r := lx.src[lx.pos]
		switch {
		case r == '\n':
			lx.advance()
			if lx.depth == 0 {
				lx.emit(NEWLINE, "\n", nil, lx.line-1, lx.col)
				lx.atBOL = true
			}
		case r == ' ' || r == '\t' || r == '\f':
			lx.advance()
		case r == '#':
			lx.skipComment()
		case r == '\\' && lx.peekAt(1) == '\n':
			lx.advance()
			lx.advance()
		case isIdentStart(r):
			if err := lx.name(); err != nil {
				return err
			}
		case unicode.IsDigit(r) || (r == '.' && unicode.IsDigit(lx.peekAt(1))):
			if err := lx.number(); err != nil {
				return err
			}
		case r == '"' || r == '\'':
			if err := lx.str(false, false); err != nil {
				return err
			}
		default:
			if err := lx.operator(); err != nil {
				return err
			}
		}
	}
	if n := len(lx.tokens); n > 0 && lx.tokens[n-1].Type != NEWLINE && lx.tokens[n-1].Type != DEDENT {
		lx.emit(NEWLINE, "", nil, lx.line, lx.col)
	}
	for len(lx.indent) > 1 {
		lx.indent = lx.indent[:len(lx.indent)-1]
		lx.emit(DEDENT, "", nil, lx.line, 1)
	}
	lx.emit(EOF, "", nil, lx.line, lx.col)
	return nil
}

// lineStart measures indentation at the beginning of a logical line and
// emits INDENT/DEDENT. Blank and comment-only lines are skipped entirely.
// It reports done when the end of input has been reached.
func (lx *Lexer) lineStart() (bool, error) {
	for {
		width := 0
	scan:
		for lx.pos < len(lx.src) {
			switch lx.src[lx.pos] {
			case ' ':
				width++
			case '\t':
				width = (width/tabSize + 1) * tabSize
			case '\f':
				width = 0
			default:
				break scan
			}
			lx.advance()
		}
		if lx.pos >= len(lx.src) {
			return true, nil
		}
		switch lx.src[lx.pos] {
		case '\n':
			lx.advance()
			continue
		case '#':
			lx.skipComment()
			continue
		}
		lx.atBOL = false
		cur := lx.indent[len(lx.indent)-1]
		switch {
		case width > cur:
			lx.indent = append(lx.indent, width)
			lx.emit(INDENT, "", nil, lx.line, 1)
		case width < cur:
			for width < lx.indent[len(lx.indent)-1] {
				lx.indent = lx.indent[:len(lx.indent)-1]
				lx.emit(DEDENT, "", nil, lx.line, 1)
			}
			if width != lx.indent[len(lx.indent)-1] {
				return false, &SyntaxError{Kind: "IndentationError", Line: lx.line, Col: lx.col,
					Msg: "unindent does not match any outer indentation level"}
			}
		}
		return false, nil
	}
}

func (lx *Lexer) skipComment() {
	for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
		lx.advance()
	}
}

func (lx *Lexer) name() error {
	line, col, start := lx.line, lx.col, lx.pos
	for lx.pos < len(lx.src) && isIdentPart(lx.src[lx.pos]) {
		lx.advance()
	}
	word := string(lx.src[start:lx.pos])

	// String prefixes: f"", r"", rf"", fr"" (case-insensitive). Bytes are rejected.
	if lx.pos < len(lx.src) && (lx.src[lx.pos] == '"' || lx.src[lx.pos] == '\'') {
		lower := strings.ToLower(word)
		switch lower {
		case "f", "r", "rf", "fr":
			return lx.str(strings.Contains(lower, "f"), strings.Contains(lower, "r"))
		case "b", "rb", "br", "u":
			if lower != "u" {
				return &SyntaxError{Kind: "SyntaxError", Line: line, Col: col, Msg: "bytes literals are not supported"}
			}
			return lx.str(false, false)
		}
	}

	if unsupportedKeywords[word] {
		return &SyntaxError{Kind: "SyntaxError", Line: line, Col: col, Msg: "'" + word + "' is not supported"}
	}
	if kw, ok := keywords[word]; ok {
		lx.emit(kw, word, nil, line, col)
		return nil
	}
	lx.emit(NAME, word, word, line, col)
	return nil
}

func (lx *Lexer) number() error {
	line, col, start := lx.line, lx.col, lx.pos
	isFloat := false

	if lx.src[lx.pos] == '0' && lx.pos+1 < len(lx.src) && strings.ContainsRune("xXoObB", lx.src[lx.pos+1]) {
		lx.advance()
		lx.advance()
		for lx.pos < len(lx.src) && (isHexDigit(lx.src[lx.pos]) || lx.src[lx.pos] == '_') {
			lx.advance()
		}
	} else {
		for lx.pos < len(lx.src) && (unicode.IsDigit(lx.src[lx.pos]) || lx.src[lx.pos] == '_') {
			lx.advance()
		}
		if lx.pos < len(lx.src) && lx.src[lx.pos] == '.' {
			isFloat = true
			lx.advance()
			for lx.pos < len(lx.src) && (unicode.IsDigit(lx.src[lx.pos]) || lx.src[lx.pos] == '_') {
				lx.advance()
			}
		}
		if lx.pos < len(lx.src) && (lx.src[lx.pos] == 'e' || lx.src[lx.pos] == 'E') {
			next := lx.peekAt(1)
			if unicode.IsDigit(next) || ((next == '+' || next == '-') && unicode.IsDigit(lx.peekAt(2))) {
				isFloat = true
				lx.advance()
				if next == '+' || next == '-' {
					lx.advance()
				}
				for lx.pos < len(lx.src) && unicode.IsDigit(lx.src[lx.pos]) {
					lx.advance()
				}
			}
		}
	}
	if lx.pos < len(lx.src) && (lx.src[lx.pos] == 'j' || lx.src[lx.pos] == 'J') {
		return &SyntaxError{Kind: "SyntaxError", Line: line, Col: col, Msg: "complex numbers are not supported"}
	}

	text := string(lx.src[start:lx.pos])
	clean := strings.ReplaceAll(text, "_", "")
	if isFloat {
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			return &SyntaxError{Kind: "SyntaxError", Line: line, Col: col, Msg: "invalid float literal " + text}
		}
		lx.emit(FLOAT, text, f, line, col)
		return nil
	}
	n, err := strconv.ParseInt(clean, 0, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			b, ok := new(big.Int).SetString(clean, 0)
			if !ok || b.BitLen() > maxIntBits {
				return &SyntaxError{Kind: "SyntaxError", Line: line, Col: col, Msg: "integer literal too large: " + text}
			}
			lx.emit(INT, text, b, line, col)
			return nil
		}
		return &SyntaxError{Kind: "SyntaxError", Line: line, Col: col, Msg: "invalid integer literal " + text}
	}
	lx.emit(INT, text, n, line, col)
	return nil
}

// str scans a quoted literal. For f-strings the raw body is kept as the
// literal; the parser splits it into text and expression parts.
func (lx *Lexer) str(fmtString, raw bool) error {
	line, col := lx.line, lx.col
	quote := lx.src[lx.pos]
	triple := lx.peekAt(1) == quote && lx.peekAt(2) == quote
	if triple {
		lx.advance()
		lx.advance()
	}
	lx.advance()

	var b strings.Builder
	for {
		if lx.pos >= len(lx.src) {
			return &SyntaxError{Kind: "SyntaxError", Line: line, Col: col, Msg: "unterminated string literal"}
		}
		r := lx.src[lx.pos]
		if r == quote {
			if !triple {
				lx.advance()
				break
			}
			if lx.peekAt(1) == quote && lx.peekAt(2) == quote {
				lx.advance()
				lx.advance()
				lx.advance()
				break
			}
		}
		if r == '\n' && !triple {
			return &SyntaxError{Kind: "SyntaxError", Line: line, Col: col, Msg: "unterminated string literal"}
		}
		if r == '\\' && lx.pos+1 < len(lx.src) {
			if raw || fmtString {
				// f-strings decode escapes after splitting so braces stay intact.
				b.WriteRune(r)
				lx.advance()
				b.WriteRune(lx.src[lx.pos])
				lx.advance()
				continue
			}
			lx.advance()
			esc := lx.src[lx.pos]
			lx.advance()
			decoded, err := decodeEscape(esc, lx)
			if err != nil {
				return &SyntaxError{Kind: "SyntaxError", Line: lx.line, Col: lx.col, Msg: err.Error()}
			}
			b.WriteString(decoded)
			continue
		}
		b.WriteRune(r)
		lx.advance()
	}

	if fmtString {
		lx.emit(FSTRING, b.String(), fstringBody{text: b.String(), raw: raw}, line, col)
		return nil
	}
	lx.emit(STRING, b.String(), b.String(), line, col)
	return nil
}

type fstringBody struct {
	text string
	raw  bool
}

type escapeError string

func (e escapeError) Error() string { return string(e) }

func decodeEscape(esc rune, lx *Lexer) (string, error) {
	switch esc {
	case 'n':
		return "\n", nil
	case 't':
		return "\t", nil
	case 'r':
		return "\r", nil
	case '0':
		return "\x00", nil
	case 'a':
		return "\a", nil
	case 'b':
		return "\b", nil
	case 'f':
		return "\f", nil
	case 'v':
		return "\v", nil
	case '\\', '\'', '"':
		return string(esc), nil
	case '\n':
		return "", nil
	case 'x', 'u':
		width := 2
		if esc == 'u' {
			width = 4
		}
		if lx.pos+width > len(lx.src) {
			return "", escapeError("truncated \\" + string(esc) + " escape")
		}
		code, err := strconv.ParseUint(string(lx.src[lx.pos:lx.pos+width]), 16, 32)
		if err != nil {
			return "", escapeError("invalid \\" + string(esc) + " escape")
		}
		for i := 0; i < width; i++ {
			lx.advance()
		}
		return string(rune(code)), nil
	}
	return "\\" + string(esc), nil
}

// unescape decodes backslash escapes in text that was scanned raw.
func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	lx := &Lexer{src: []rune(s)}
	var b strings.Builder
	for lx.pos < len(lx.src) {
		r := lx.src[lx.pos]
		lx.pos++
		if r != '\\' || lx.pos >= len(lx.src) {
			b.WriteRune(r)
			continue
		}
		esc := lx.src[lx.pos]
		lx.pos++
		decoded, err := decodeEscape(esc, lx)
		if err != nil {
			b.WriteRune('\\')
			b.WriteRune(esc)
			continue
		}
		b.WriteString(decoded)
	}
	return b.String()
}

var threeCharOps = map[string]TokenType{
	"**=": AUGASSIGN, "//=": AUGASSIGN, "<<=": AUGASSIGN, ">>=": AUGASSIGN,
}

var twoCharOps = map[string]TokenType{
	"**": DSTAR, "//": DSLASH, "==": EQ, "!=": NE, "<=": LE, ">=": GE,
	"<<": LSHIFT, ">>": RSHIFT, "->": ARROW,
	"+=": AUGASSIGN, "-=": AUGASSIGN, "*=": AUGASSIGN, "/=": AUGASSIGN,
	"%=": AUGASSIGN, "&=": AUGASSIGN, "|=": AUGASSIGN, "^=": AUGASSIGN,
}

var oneCharOps = map[rune]TokenType{
	'+': PLUS, '-': MINUS, '*': STAR, '/': SLASH, '%': PERCENT,
	'&': AMP, '|': PIPE, '^': CARET, '~': TILDE,
	'=': ASSIGN, '<': LT, '>': GT,
	'(': LPAREN, ')': RPAREN, '[': LBRACK, ']': RBRACK, '{': LBRACE, '}': RBRACE,
	',': COMMA, ':': COLON, '.': DOT, ';': SEMI,
}

func (lx *Lexer) operator() error {
	line, col := lx.line, lx.col
	if lx.pos+3 <= len(lx.src) {
		if tt, ok := threeCharOps[string(lx.src[lx.pos:lx.pos+3])]; ok {
			op := string(lx.src[lx.pos : lx.pos+3])
			lx.advance()
			lx.advance()
			lx.advance()
			lx.emit(tt, op, nil, line, col)
			return nil
		}
	}
	if lx.pos+2 <= len(lx.src) {
		if tt, ok := twoCharOps[string(lx.src[lx.pos:lx.pos+2])]; ok {
			op := string(lx.src[lx.pos : lx.pos+2])
			lx.advance()
			lx.advance()
			lx.emit(tt, op, nil, line, col)
			return nil
		}
	}
	r := lx.src[lx.pos]
	tt, ok := oneCharOps[r]
	if !ok {
		return &SyntaxError{Kind: "SyntaxError", Line: line, Col: col, Msg: "invalid character " + strconv.QuoteRune(r)}
	}
	switch tt {
	case LPAREN, LBRACK, LBRACE:
		lx.depth++
	case RPAREN, RBRACK, RBRACE:
		if lx.depth == 0 {
			return &SyntaxError{Kind: "SyntaxError", Line: line, Col: col, Msg: "unmatched '" + string(r) + "'"}
		}
		lx.depth--
	}
	lx.advance()
	lx.emit(tt, string(r), nil, line, col)
	return nil
}

func (lx *Lexer) emit(tt TokenType, lexeme string, lit any, line, col int) {
	lx.tokens = append(lx.tokens, Token{Type: tt, Lexeme: lexeme, Literal: lit, Line: line, Col: col})
}

func (lx *Lexer) advance() {
	if lx.src[lx.pos] == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	lx.pos++
}

func (lx *Lexer) peekAt(off int) rune {
	if lx.pos+off < len(lx.src) {
		return lx.src[lx.pos+off]
	}
	return 0
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }
func isIdentPart(r rune) bool  { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }

func isHexDigit(r rune) bool {
	return unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
