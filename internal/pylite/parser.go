package pylite

import (
	"fmt"
	"strings"
)

// Parser is a recursive-descent parser over the token stream produced by
// Tokenize. Errors abort parsing through a private panic that Parse recovers
// into a *SyntaxError.
type Parser struct {
	toks  []Token
	i     int
	loops int // enclosing loops in the current function
	funcs int
}

type bailout struct{ err *SyntaxError }

// Parse tokenizes and parses a whole program.
func Parse(src string) (prog []Stmt, err error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			prog, err = nil, b.err
		}
	}()
	return p.file(), nil
}

func (p *Parser) file() []Stmt {
	var out []Stmt
	for !p.at(EOF) {
		if p.accept(NEWLINE) {
			continue
		}
		out = append(out, p.statement()...)
	}
	return out
}

// ---- token helpers ----

func (p *Parser) peek() Token { return p.toks[p.i] }

func (p *Parser) peekAt(n int) Token {
	if p.i+n < len(p.toks) {
		return p.toks[p.i+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) next() Token {
	t := p.toks[p.i]
	if t.Type != EOF {
		p.i++
	}
	return t
}

func (p *Parser) at(tt TokenType) bool { return p.toks[p.i].Type == tt }

func (p *Parser) accept(tt TokenType) bool {
	if p.at(tt) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) expect(tt TokenType, what string) Token {
	if !p.at(tt) {
		p.fail(p.peek(), "expected %s, found %s", what, p.peek())
	}
	return p.next()
}

func (p *Parser) fail(t Token, format string, args ...any) {
	panic(bailout{&SyntaxError{Kind: "SyntaxError", Line: t.Line, Col: t.Col, Msg: fmt.Sprintf(format, args...)}})
}

func at(line int) pos { return pos{Line: line} }

// ---- statements ----

func (p *Parser) statement() []Stmt {
	switch p.peek().Type {
	case IF:
		return []Stmt{p.ifStmt()}
	case WHILE:
		return []Stmt{p.whileStmt()}
	case FOR:
		return []Stmt{p.forStmt()}
	case DEF:
		return []Stmt{p.funcDef()}
	case CLASS:
		return []Stmt{p.classDef()}
	case TRY:
		return []Stmt{p.tryStmt()}
	case INDENT:
		t := p.peek()
		panic(bailout{&SyntaxError{Kind: "IndentationError", Line: t.Line, Col: t.Col, Msg: "unexpected indent"}})
	}
	return p.simpleStmts()
}

func (p *Parser) simpleStmts() []Stmt {
	var out []Stmt
	for {
		out = append(out, p.simpleStmt())
		if !p.accept(SEMI) || p.at(NEWLINE) || p.at(EOF) {
			break
		}
	}
	if !p.accept(NEWLINE) && !p.at(EOF) {
		p.fail(p.peek(), "invalid syntax near %s", p.peek())
	}
	return out
}

func (p *Parser) simpleStmt() Stmt {
	t := p.peek()
	switch t.Type {
	case PASS:
		p.next()
		return &PassStmt{at(t.Line)}
	case BREAK:
		p.next()
		if p.loops == 0 {
			p.fail(t, "'break' outside loop")
		}
		return &BreakStmt{at(t.Line)}
	case CONTINUE:
		p.next()
		if p.loops == 0 {
			p.fail(t, "'continue' not properly in loop")
		}
		return &ContinueStmt{at(t.Line)}
	case RETURN:
		p.next()
		if p.funcs == 0 {
			p.fail(t, "'return' outside function")
		}
		var val Expr
		if !p.atStmtEnd() {
			val = p.testList()
		}
		return &ReturnStmt{pos: at(t.Line), Value: val}
	case GLOBAL, NONLOCAL:
		p.next()
		names := []string{p.expect(NAME, "name").Lexeme}
		for p.accept(COMMA) {
			names = append(names, p.expect(NAME, "name").Lexeme)
		}
		if t.Type == GLOBAL {
			return &GlobalStmt{pos: at(t.Line), Names: names}
		}
		return &NonlocalStmt{pos: at(t.Line), Names: names}
	case DEL:
		p.next()
		targets := []Expr{p.bitOr()}
		for p.accept(COMMA) {
			if p.atStmtEnd() {
				break
			}
			targets = append(targets, p.bitOr())
		}
		for _, tg := range targets {
			p.checkTarget(tg, t, "delete")
		}
		return &DelStmt{pos: at(t.Line), Targets: targets}
	case ASSERT:
		p.next()
		s := &AssertStmt{pos: at(t.Line), Test: p.test()}
		if p.accept(COMMA) {
			s.Msg = p.test()
		}
		return s
	case RAISE:
		p.next()
		s := &RaiseStmt{pos: at(t.Line)}
		if !p.atStmtEnd() {
			s.Exc = p.test()
			if p.accept(FROM) {
				p.test() // the cause is accepted but not tracked
			}
		}
		return s
	case IMPORT:
		p.next()
		s := &ImportStmt{pos: at(t.Line)}
		for {
			name := ImportName{Name: p.dottedName()}
			if p.accept(AS) {
				name.Alias = p.expect(NAME, "name").Lexeme
			}
			s.Names = append(s.Names, name)
			if !p.accept(COMMA) {
				break
			}
		}
		return s
	case FROM:
		p.next()
		s := &FromImportStmt{pos: at(t.Line), Module: p.dottedName()}
		p.expect(IMPORT, "'import'")
		if p.at(STAR) {
			p.fail(p.peek(), "'from %s import *' is not supported", s.Module)
		}
		paren := p.accept(LPAREN)
		for {
			name := ImportName{Name: p.expect(NAME, "name").Lexeme}
			if p.accept(AS) {
				name.Alias = p.expect(NAME, "name").Lexeme
			}
			s.Names = append(s.Names, name)
			if !p.accept(COMMA) || (paren && p.at(RPAREN)) {
				break
			}
		}
		if paren {
			p.expect(RPAREN, "')'")
		}
		return s
	}
	return p.exprOrAssign()
}

func (p *Parser) atStmtEnd() bool {
	return p.at(NEWLINE) || p.at(SEMI) || p.at(EOF)
}

func (p *Parser) dottedName() string {
	parts := []string{p.expect(NAME, "module name").Lexeme}
	for p.accept(DOT) {
		parts = append(parts, p.expect(NAME, "name").Lexeme)
	}
	return strings.Join(parts, ".")
}

func (p *Parser) exprOrAssign() Stmt {
	start := p.peek()
	first := p.testList()

	switch p.peek().Type {
	case ASSIGN:
		targets := []Expr{first}
		var value Expr
		for p.accept(ASSIGN) {
			value = p.testList()
			if p.at(ASSIGN) {
				targets = append(targets, value)
			}
		}
		for _, tg := range targets {
			p.checkTarget(tg, start, "assign to")
		}
		return &AssignStmt{pos: at(start.Line), Targets: targets, Value: value}
	case AUGASSIGN:
		op := p.next()
		switch first.(type) {
		case *Name, *Attribute, *Subscript:
		default:
			p.fail(start, "illegal expression for augmented assignment")
		}
		return &AugAssignStmt{pos: at(start.Line), Target: first, Op: strings.TrimSuffix(op.Lexeme, "="), Value: p.testList()}
	case COLON:
		// Annotated assignment: the annotation is parsed and discarded.
		p.next()
		p.test()
		p.checkTarget(first, start, "annotate")
		if p.accept(ASSIGN) {
			return &AssignStmt{pos: at(start.Line), Targets: []Expr{first}, Value: p.testList()}
		}
		return &PassStmt{at(start.Line)}
	}
	return &ExprStmt{pos: at(start.Line), X: first}
}

func (p *Parser) checkTarget(e Expr, t Token, verb string) {
	switch x := e.(type) {
	case *Name, *Attribute, *Subscript:
		return
	case *TupleExpr:
		p.checkTargets(x.Elts, t, verb)
		return
	case *ListExpr:
		p.checkTargets(x.Elts, t, verb)
		return
	case *Starred:
		p.fail(t, "starred assignment target must be in a list or tuple")
	case *Call:
		p.fail(t, "cannot %s function call", verb)
	case *Constant:
		p.fail(t, "cannot %s literal", verb)
	}
	p.fail(t, "cannot %s expression", verb)
}

// checkTargets validates the elements of a tuple or list target, where one
// of them may be starred.
func (p *Parser) checkTargets(elts []Expr, t Token, verb string) {
	starred := false
	for _, el := range elts {
		st, ok := el.(*Starred)
		if !ok {
			p.checkTarget(el, t, verb)
			continue
		}
		if verb == "delete" {
			p.fail(t, "cannot delete starred")
		}
		if starred {
			p.fail(t, "multiple starred expressions in assignment")
		}
		starred = true
		p.checkTarget(st.Value, t, verb)
	}
}

func (p *Parser) block() []Stmt {
	p.expect(COLON, "':'")
	if !p.accept(NEWLINE) {
		return p.simpleStmts()
	}
	if !p.at(INDENT) {
		t := p.peek()
		panic(bailout{&SyntaxError{Kind: "IndentationError", Line: t.Line, Col: t.Col, Msg: "expected an indented block"}})
	}
	p.next()
	var body []Stmt
	for !p.accept(DEDENT) {
		if p.at(EOF) {
			break
		}
		if p.accept(NEWLINE) {
			continue
		}
		body = append(body, p.statement()...)
	}
	return body
}

func (p *Parser) ifStmt() Stmt {
	t := p.next() // IF or ELIF
	s := &IfStmt{pos: at(t.Line), Cond: p.test()}
	s.Body = p.block()
	switch {
	case p.at(ELIF):
		s.Else = []Stmt{p.ifStmt()}
	case p.accept(ELSE):
		s.Else = p.block()
	}
	return s
}

func (p *Parser) whileStmt() Stmt {
	t := p.next()
	s := &WhileStmt{pos: at(t.Line), Cond: p.test()}
	s.Body = p.loopBody()
	if p.accept(ELSE) {
		s.Else = p.block()
	}
	return s
}

func (p *Parser) forStmt() Stmt {
	t := p.next()
	target := p.targetList()
	p.checkTarget(target, t, "assign to")
	p.expect(IN, "'in'")
	s := &ForStmt{pos: at(t.Line), Target: target, Iter: p.testList()}
	s.Body = p.loopBody()
	if p.accept(ELSE) {
		s.Else = p.block()
	}
	return s
}

func (p *Parser) loopBody() []Stmt {
	p.loops++
	defer func() { p.loops-- }()
	return p.block()
}

// scopeBody parses a function or class body, which starts outside any loop.
func (p *Parser) scopeBody(isFunc bool) []Stmt {
	loops, funcs := p.loops, p.funcs
	p.loops = 0
	if isFunc {
		p.funcs++
	} else {
		p.funcs = 0
	}
	defer func() { p.loops, p.funcs = loops, funcs }()
	return p.block()
}

func (p *Parser) funcDef() Stmt {
	t := p.next()
	name := p.expect(NAME, "function name").Lexeme
	p.expect(LPAREN, "'('")
	params := p.params(RPAREN)
	p.expect(RPAREN, "')'")
	if p.accept(ARROW) {
		p.test()
	}
	return &FuncDef{pos: at(t.Line), Name: name, Params: params, Body: p.scopeBody(true)}
}

// params parses a parameter list up to (not including) the closing token.
func (p *Parser) params(closing TokenType) []Param {
	var out []Param
	seenDefault, kwOnly, seenKwArgs := false, false, false
	for !p.at(closing) {
		if seenKwArgs {
			p.fail(p.peek(), "arguments cannot follow var-keyword argument")
		}
		if p.at(SLASH) {
			p.fail(p.peek(), "positional-only parameters are not supported")
		}
		kind := ParamPlain
		switch star := p.peek(); {
		case p.accept(STAR):
			if kwOnly {
				p.fail(star, "* argument may appear only once")
			}
			kwOnly = true
			if !p.at(NAME) {
				if p.at(closing) || !p.accept(COMMA) || p.at(closing) || p.at(DSTAR) {
					p.fail(star, "named arguments must follow bare *")
				}
				continue
			}
			kind = ParamVarArgs
		case p.accept(DSTAR):
			kind = ParamKwArgs
			seenKwArgs = true
		}
		nameTok := p.expect(NAME, "parameter name")
		param := Param{Name: nameTok.Lexeme, Kind: kind, KwOnly: kwOnly && kind == ParamPlain}
		for _, prev := range out {
			if prev.Name == param.Name {
				p.fail(nameTok, "duplicate argument '%s' in function definition", param.Name)
			}
		}
		if closing == RPAREN && p.accept(COLON) {
			p.test()
		}
		switch {
		case kind != ParamPlain:
			if p.at(ASSIGN) {
				p.fail(p.peek(), "var-positional and var-keyword parameters cannot have default values")
			}
		case p.accept(ASSIGN):
			param.Default = p.test()
			if !param.KwOnly {
				seenDefault = true
			}
		case seenDefault && !param.KwOnly:
			p.fail(nameTok, "non-default argument follows default argument")
		}
		out = append(out, param)
		if !p.accept(COMMA) {
			break
		}
	}
	return out
}

func (p *Parser) classDef() Stmt {
	t := p.next()
	s := &ClassDef{pos: at(t.Line), Name: p.expect(NAME, "class name").Lexeme}
	if p.accept(LPAREN) {
		if !p.at(RPAREN) {
			s.Base = p.test()
			if p.accept(COMMA) && !p.at(RPAREN) {
				p.fail(p.peek(), "multiple inheritance is not supported")
			}
		}
		p.expect(RPAREN, "')'")
	}
	s.Body = p.scopeBody(false)
	return s
}

func (p *Parser) tryStmt() Stmt {
	t := p.next()
	s := &TryStmt{pos: at(t.Line), Body: p.block()}
	for p.at(EXCEPT) {
		et := p.next()
		h := ExceptHandler{Line: et.Line}
		if !p.at(COLON) {
			h.Type = p.test()
			if p.accept(AS) {
				h.Name = p.expect(NAME, "name").Lexeme
			}
		}
		h.Body = p.block()
		s.Handlers = append(s.Handlers, h)
	}
	if p.accept(ELSE) {
		if len(s.Handlers) == 0 {
			p.fail(t, "'else' requires an 'except' clause")
		}
		s.Else = p.block()
	}
	if p.accept(FINALLY) {
		s.Finally = p.block()
	}
	if len(s.Handlers) == 0 && s.Finally == nil {
		p.fail(p.peek(), "expected 'except' or 'finally' block")
	}
	return s
}

// ---- expressions ----

// testList parses `a, b, c` into a tuple, or a single expression.
func (p *Parser) testList() Expr {
	t := p.peek()
	first := p.starOrTest()
	if !p.at(COMMA) {
		p.noBareStar(first, t)
		return first
	}
	elts := []Expr{first}
	for p.accept(COMMA) {
		if p.atTupleEnd() {
			break
		}
		elts = append(elts, p.starOrTest())
	}
	return &TupleExpr{pos: at(t.Line), Elts: elts}
}

// starOrTest parses one element of a display or target list, which may be
// `*expr`.
func (p *Parser) starOrTest() Expr {
	if t := p.peek(); p.accept(STAR) {
		return &Starred{pos: at(t.Line), Value: p.bitOr()}
	}
	return p.test()
}

func (p *Parser) noBareStar(e Expr, t Token) {
	if _, ok := e.(*Starred); ok {
		p.fail(t, "can't use starred expression here")
	}
}

// targetList parses for-loop and comprehension targets, which stop before 'in'.
func (p *Parser) targetList() Expr {
	t := p.peek()
	first := p.starOrBitOr()
	if !p.at(COMMA) {
		return first
	}
	elts := []Expr{first}
	for p.accept(COMMA) {
		if p.at(IN) {
			break
		}
		elts = append(elts, p.starOrBitOr())
	}
	return &TupleExpr{pos: at(t.Line), Elts: elts}
}

func (p *Parser) starOrBitOr() Expr {
	if t := p.peek(); p.accept(STAR) {
		return &Starred{pos: at(t.Line), Value: p.bitOr()}
	}
	return p.bitOr()
}

func (p *Parser) atTupleEnd() bool {
	switch p.peek().Type {
	case NEWLINE, SEMI, EOF, ASSIGN, AUGASSIGN, RPAREN, RBRACK, RBRACE, COLON:
		return true
	}
	return false
}

func (p *Parser) test() Expr {
	if p.at(LAMBDA) {
		return p.lambda()
	}
	t := p.peek()
	e := p.orTest()
	if p.accept(IF) {
		cond := p.orTest()
		p.expect(ELSE, "'else' in conditional expression")
		return &IfExp{pos: at(t.Line), Cond: cond, Then: e, Else: p.test()}
	}
	return e
}

func (p *Parser) lambda() Expr {
	t := p.next()
	params := p.params(COLON)
	p.expect(COLON, "':'")
	return &Lambda{pos: at(t.Line), Params: params, Body: p.test()}
}

func (p *Parser) orTest() Expr {
	t := p.peek()
	e := p.andTest()
	if !p.at(OR) {
		return e
	}
	vals := []Expr{e}
	for p.accept(OR) {
		vals = append(vals, p.andTest())
	}
	return &BoolOp{pos: at(t.Line), Op: "or", Values: vals}
}

func (p *Parser) andTest() Expr {
	t := p.peek()
	e := p.notTest()
	if !p.at(AND) {
		return e
	}
	vals := []Expr{e}
	for p.accept(AND) {
		vals = append(vals, p.notTest())
	}
	return &BoolOp{pos: at(t.Line), Op: "and", Values: vals}
}

func (p *Parser) notTest() Expr {
	if p.at(NOT) {
		t := p.next()
		return &UnaryOp{pos: at(t.Line), Op: "not", Operand: p.notTest()}
	}
	return p.comparison()
}

func (p *Parser) comparison() Expr {
	t := p.peek()
	left := p.bitOr()
	var ops []string
	var rights []Expr
	for {
		op := ""
		switch p.peek().Type {
		case LT, GT, EQ, NE, LE, GE:
			op = p.next().Lexeme
		case IN:
			p.next()
			op = "in"
		case NOT:
			if p.peekAt(1).Type != IN {
				break
			}
			p.next()
			p.next()
			op = "not in"
		case IS:
			p.next()
			op = "is"
			if p.accept(NOT) {
				op = "is not"
			}
		}
		if op == "" {
			break
		}
		ops = append(ops, op)
		rights = append(rights, p.bitOr())
	}
	if len(ops) == 0 {
		return left
	}
	return &Compare{pos: at(t.Line), Left: left, Ops: ops, Comparators: rights}
}

func (p *Parser) binary(ops map[TokenType]bool, next func(*Parser) Expr) Expr {
	t := p.peek()
	left := next(p)
	for ops[p.peek().Type] {
		op := p.next().Lexeme
		left = &BinOp{pos: at(t.Line), Op: op, Left: left, Right: next(p)}
	}
	return left
}

var (
	bitOrOps  = map[TokenType]bool{PIPE: true}
	bitXorOps = map[TokenType]bool{CARET: true}
	bitAndOps = map[TokenType]bool{AMP: true}
	shiftOps  = map[TokenType]bool{LSHIFT: true, RSHIFT: true}
	arithOps  = map[TokenType]bool{PLUS: true, MINUS: true}
	termOps   = map[TokenType]bool{STAR: true, SLASH: true, DSLASH: true, PERCENT: true}
)

func (p *Parser) bitOr() Expr  { return p.binary(bitOrOps, (*Parser).bitXor) }
func (p *Parser) bitXor() Expr { return p.binary(bitXorOps, (*Parser).bitAnd) }
func (p *Parser) bitAnd() Expr { return p.binary(bitAndOps, (*Parser).shift) }
func (p *Parser) shift() Expr  { return p.binary(shiftOps, (*Parser).arith) }
func (p *Parser) arith() Expr  { return p.binary(arithOps, (*Parser).term) }
func (p *Parser) term() Expr   { return p.binary(termOps, (*Parser).factor) }

func (p *Parser) factor() Expr {
	switch p.peek().Type {
	case MINUS, PLUS, TILDE:
		t := p.next()
		return &UnaryOp{pos: at(t.Line), Op: t.Lexeme, Operand: p.factor()}
	}
	return p.power()
}

func (p *Parser) power() Expr {
	t := p.peek()
	base := p.primary()
	if p.accept(DSTAR) {
		return &BinOp{pos: at(t.Line), Op: "**", Left: base, Right: p.factor()}
	}
	return base
}

func (p *Parser) primary() Expr {
	e := p.atom()
	for {
		t := p.peek()
		switch t.Type {
		case LPAREN:
			p.next()
			e = p.callArgs(e, t)
		case LBRACK:
			p.next()
			idx := p.subscript()
			p.expect(RBRACK, "']'")
			e = &Subscript{pos: at(t.Line), Value: e, Index: idx}
		case DOT:
			p.next()
			name := p.expect(NAME, "attribute name")
			e = &Attribute{pos: at(t.Line), Value: e, Attr: name.Lexeme}
		default:
			return e
		}
	}
}

func (p *Parser) callArgs(fn Expr, open Token) Expr {
	call := &Call{pos: at(open.Line), Func: fn}
	unpackedKw := false
	for !p.at(RPAREN) {
		if t := p.peek(); p.accept(STAR) {
			if unpackedKw {
				p.fail(t, "iterable argument unpacking follows keyword argument unpacking")
			}
			call.Args = append(call.Args, &Starred{pos: at(t.Line), Value: p.test()})
		} else if p.accept(DSTAR) {
			unpackedKw = true
			call.Keywords = append(call.Keywords, Keyword{Value: p.test()})
		} else if p.at(NAME) && p.peekAt(1).Type == ASSIGN {
			name := p.next().Lexeme
			p.next()
			call.Keywords = append(call.Keywords, Keyword{Name: name, Value: p.test()})
		} else {
			if unpackedKw {
				p.fail(p.peek(), "positional argument follows keyword argument unpacking")
			}
			if len(call.Keywords) > 0 {
				p.fail(p.peek(), "positional argument follows keyword argument")
			}
			arg := p.test()
			if p.at(FOR) {
				arg = p.comprehension("gen", arg, nil, open)
			}
			call.Args = append(call.Args, arg)
		}
		if !p.accept(COMMA) {
			break
		}
	}
	p.expect(RPAREN, "')'")
	return call
}

func (p *Parser) subscript() Expr {
	t := p.peek()
	first := p.sliceItem()
	if !p.at(COMMA) {
		return first
	}
	elts := []Expr{first}
	for p.accept(COMMA) {
		if p.at(RBRACK) {
			break
		}
		elts = append(elts, p.sliceItem())
	}
	return &TupleExpr{pos: at(t.Line), Elts: elts}
}

func (p *Parser) sliceItem() Expr {
	t := p.peek()
	var lo Expr
	if !p.at(COLON) {
		lo = p.test()
		if !p.at(COLON) {
			return lo
		}
	}
	s := &Slice{pos: at(t.Line), Lo: lo}
	p.expect(COLON, "':'")
	if !p.at(COLON) && !p.at(RBRACK) && !p.at(COMMA) {
		s.Hi = p.test()
	}
	if p.accept(COLON) && !p.at(RBRACK) && !p.at(COMMA) {
		s.Step = p.test()
	}
	return s
}

func (p *Parser) atom() Expr {
	t := p.peek()
	switch t.Type {
	case NAME:
		p.next()
		return &Name{pos: at(t.Line), ID: t.Lexeme}
	case INT, FLOAT:
		p.next()
		return &Constant{pos: at(t.Line), Value: t.Literal}
	case STRING, FSTRING:
		return p.strings()
	case NONE:
		p.next()
		return &Constant{pos: at(t.Line), Value: nil}
	case TRUE, FALSE:
		p.next()
		return &Constant{pos: at(t.Line), Value: t.Type == TRUE}
	case LPAREN:
		p.next()
		if p.accept(RPAREN) {
			return &TupleExpr{pos: at(t.Line)}
		}
		first := p.starOrTest()
		if p.at(FOR) {
			p.noBareStar(first, t)
			e := p.comprehension("gen", first, nil, t)
			p.expect(RPAREN, "')'")
			return e
		}
		if !p.at(COMMA) {
			p.noBareStar(first, t)
			p.expect(RPAREN, "')'")
			return first
		}
		elts := []Expr{first}
		for p.accept(COMMA) {
			if p.at(RPAREN) {
				break
			}
			elts = append(elts, p.starOrTest())
		}
		p.expect(RPAREN, "')'")
		return &TupleExpr{pos: at(t.Line), Elts: elts}
	case LBRACK:
		p.next()
		if p.accept(RBRACK) {
			return &ListExpr{pos: at(t.Line)}
		}
		first := p.starOrTest()
		if p.at(FOR) {
			p.noBareStar(first, t)
			e := p.comprehension("list", first, nil, t)
			p.expect(RBRACK, "']'")
			return e
		}
		elts := []Expr{first}
		for p.accept(COMMA) {
			if p.at(RBRACK) {
				break
			}
			elts = append(elts, p.starOrTest())
		}
		p.expect(RBRACK, "']'")
		return &ListExpr{pos: at(t.Line), Elts: elts}
	case LBRACE:
		return p.braces()
	}
	p.fail(t, "invalid syntax near %s", t)
	return nil
}

func (p *Parser) braces() Expr {
	t := p.next()
	if p.accept(RBRACE) {
		return &DictExpr{pos: at(t.Line)}
	}
	if p.at(DSTAR) {
		p.fail(p.peek(), "dict unpacking is not supported")
	}
	first := p.starOrTest()
	if _, star := first.(*Starred); !star && p.accept(COLON) {
		val := p.test()
		if p.at(FOR) {
			e := p.comprehension("dict", first, val, t)
			p.expect(RBRACE, "'}'")
			return e
		}
		d := &DictExpr{pos: at(t.Line), Keys: []Expr{first}, Values: []Expr{val}}
		for p.accept(COMMA) {
			if p.at(RBRACE) {
				break
			}
			d.Keys = append(d.Keys, p.test())
			p.expect(COLON, "':'")
			d.Values = append(d.Values, p.test())
		}
		p.expect(RBRACE, "'}'")
		return d
	}
	if p.at(FOR) {
		p.noBareStar(first, t)
		e := p.comprehension("set", first, nil, t)
		p.expect(RBRACE, "'}'")
		return e
	}
	s := &SetExpr{pos: at(t.Line), Elts: []Expr{first}}
	for p.accept(COMMA) {
		if p.at(RBRACE) {
			break
		}
		s.Elts = append(s.Elts, p.starOrTest())
	}
	p.expect(RBRACE, "'}'")
	return s
}

func (p *Parser) comprehension(kind string, elt, value Expr, open Token) Expr {
	c := &Comprehension{pos: at(open.Line), Kind: kind, Elt: elt, Value: value}
	for p.at(FOR) {
		ft := p.next()
		gen := CompFor{Target: p.targetList()}
		p.checkTarget(gen.Target, ft, "assign to")
		p.expect(IN, "'in'")
		gen.Iter = p.orTest()
		for p.accept(IF) {
			gen.Ifs = append(gen.Ifs, p.orTest())
		}
		c.Generators = append(c.Generators, gen)
	}
	return c
}

// strings merges adjacent string and f-string literals into one node.
func (p *Parser) strings() Expr {
	t := p.peek()
	var parts []FStringPart
	formatted := false
	for p.at(STRING) || p.at(FSTRING) {
		tok := p.next()
		if tok.Type == STRING {
			parts = append(parts, FStringPart{Text: tok.Literal.(string)})
			continue
		}
		formatted = true
		parts = append(parts, p.fstringParts(tok)...)
	}
	if !formatted {
		var b strings.Builder
		for _, part := range parts {
			b.WriteString(part.Text)
		}
		return &Constant{pos: at(t.Line), Value: b.String()}
	}
	return &FString{pos: at(t.Line), Parts: parts}
}

func (p *Parser) fstringParts(tok Token) []FStringPart {
	body := tok.Literal.(fstringBody)
	src := []rune(body.text)
	var parts []FStringPart
	var text strings.Builder

	flush := func() {
		if text.Len() == 0 {
			return
		}
		s := text.String()
		if !body.raw {
			s = unescape(s)
		}
		parts = append(parts, FStringPart{Text: s})
		text.Reset()
	}

	for i := 0; i < len(src); i++ {
		r := src[i]
		switch {
		case r == '{' && i+1 < len(src) && src[i+1] == '{':
			text.WriteRune('{')
			i++
		case r == '}' && i+1 < len(src) && src[i+1] == '}':
			text.WriteRune('}')
			i++
		case r == '}':
			p.fail(tok, "f-string: single '}' is not allowed")
		case r == '{':
			flush()
			end, part := p.fstringField(tok, src, i+1)
			parts = append(parts, part)
			i = end
		default:
			text.WriteRune(r)
		}
	}
	flush()
	return parts
}

// fstringField parses one replacement field starting after '{' and returns
// the index of the closing '}'.
func (p *Parser) fstringField(tok Token, src []rune, start int) (int, FStringPart) {
	depth := 0
	var quote rune
	convAt, specAt, end := -1, -1, -1
	for i := start; i < len(src) && end < 0; i++ {
		r := src[i]
		if quote != 0 {
			if r == quote {
				quote = 0
			}
			continue
		}
		if specAt >= 0 {
			if r == '}' {
				end = i
			}
			continue
		}
		switch r {
		case '\'', '"':
			quote = r
		case '(', '[', '{':
			depth++
		case ')', ']':
			depth--
		case '}':
			if depth == 0 {
				end = i
			} else {
				depth--
			}
		case '!':
			if depth == 0 && convAt < 0 && i+1 < len(src) && src[i+1] != '=' {
				convAt = i
			}
		case ':':
			if depth == 0 {
				specAt = i
			}
		}
	}
	if end < 0 {
		p.fail(tok, "f-string: expecting '}'")
	}

	exprEnd := end
	if specAt >= 0 {
		exprEnd = specAt
	}
	var part FStringPart
	if convAt >= 0 {
		conv := strings.TrimSpace(string(src[convAt+1 : exprEnd]))
		if conv != "r" && conv != "s" {
			p.fail(tok, "f-string: invalid conversion character %q", conv)
		}
		part.Conversion = conv[0]
		exprEnd = convAt
	}
	if specAt >= 0 {
		part.Spec = string(src[specAt+1 : end])
	}
	exprSrc := strings.TrimSpace(string(src[start:exprEnd]))
	if exprSrc == "" {
		p.fail(tok, "f-string: empty expression not allowed")
	}
	part.Expr = p.subExpr(tok, exprSrc)
	return end, part
}

func (p *Parser) subExpr(tok Token, src string) Expr {
	toks, err := Tokenize(src)
	if err != nil {
		p.fail(tok, "f-string: %v", err)
	}
	for i := range toks {
		toks[i].Line += tok.Line - 1
	}
	sub := &Parser{toks: toks}
	e := sub.testList()
	sub.accept(NEWLINE)
	if !sub.at(EOF) {
		p.fail(tok, "f-string: invalid expression %q", src)
	}
	return e
}
