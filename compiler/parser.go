package compiler

import (
	"strconv"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent with precedence climbing for operators
// ---------------------------------------------------------------------------

// Parser parses a flattened token stream into an AST. Nested blocks are
// parsed by a fresh Parser over the block token's sub-stream.
type Parser struct {
	tokens []Token
	pos    int

	// inArgs is set while parsing a call's argument list, where a comma
	// separates arguments rather than function literal parameters.
	inArgs bool
}

// NewParser creates a parser over an EOF-terminated token stream.
func NewParser(tokens []Token) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != TokenEOF {
		tokens = append(tokens, Token{Type: TokenEOF})
	}
	return &Parser{tokens: tokens}
}

// Parse tokenizes and parses a whole source text.
func Parse(source string) (*Block, error) {
	tokens, err := Tokenize(source)
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).Parse()
}

func (p *Parser) cur() Token {
	return p.tokens[p.pos]
}

func (p *Parser) peek() Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) nextToken() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.cur().Type == t
}

func (p *Parser) curIs(t TokenType, literal string) bool {
	return p.cur().Is(t, literal)
}

// lastPos is the position of the most recently consumed token.
func (p *Parser) lastPos() Position {
	if p.pos == 0 {
		return p.cur().Pos
	}
	return p.tokens[p.pos-1].Pos
}

func (p *Parser) span(start Position) Span {
	return Span{Start: start, End: p.lastPos()}
}

func (p *Parser) errorf(format string, args ...interface{}) *ParseError {
	err := parseErrorf(p.cur().Pos, format, args...)
	err.Incomplete = p.atInputEnd()
	return err
}

// atInputEnd reports whether only line ends remain.
func (p *Parser) atInputEnd() bool {
	for _, tok := range p.tokens[p.pos:] {
		if tok.Type != TokenEOL && tok.Type != TokenEOF {
			return false
		}
	}
	return true
}

func (p *Parser) unexpected() *ParseError {
	if p.curTokenIs(TokenEOF) {
		return p.errorf("unexpected end of input")
	}
	return p.errorf("unexpected %s", p.cur())
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// Parse parses statements until EOF and returns them as the program block.
func (p *Parser) Parse() (*Block, error) {
	start := p.cur().Pos
	var stmts []Stmt
	for !p.curTokenIs(TokenEOF) {
		stmt, err := p.ParseStatement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	return &Block{SpanVal: p.span(start), Statements: stmts}, nil
}

// ParseStatement parses one statement. Empty lines yield a nil statement.
func (p *Parser) ParseStatement() (Stmt, error) {
	tok := p.cur()
	switch {
	case tok.Type == TokenEOL:
		p.nextToken()
		return nil, nil
	case tok.Type == TokenEOF:
		return nil, nil
	case tok.Type == TokenIdentifier && p.peek().Is(TokenSymbol, ":="):
		return p.parseDefinition()
	case tok.Type == TokenKeyword:
		return p.parseKeywordStatement()
	case tok.Type == TokenBlock:
		return nil, p.errorf("unexpected indented block")
	}

	expr, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	if p.curIs(TokenSymbol, "=") {
		p.nextToken()
		value, err := p.parseRHS()
		if err != nil {
			return nil, err
		}
		stmt := &Assignment{SpanVal: p.span(tok.Pos), Target: expr, Value: value}
		return stmt, p.expectEnd()
	}
	stmt := &ExprStmt{SpanVal: p.span(tok.Pos), Expr: expr}
	return stmt, p.expectEnd()
}

// expectEnd consumes the EOL ending a statement. EOF also ends one.
func (p *Parser) expectEnd() error {
	switch p.cur().Type {
	case TokenEOL:
		p.nextToken()
		return nil
	case TokenEOF:
		return nil
	}
	return p.unexpected()
}

func (p *Parser) parseDefinition() (Stmt, error) {
	start := p.cur().Pos
	name := p.cur().Literal
	p.nextToken() // name
	p.nextToken() // :=

	def := &Definition{Name: name}
	if !p.atLineEnd() {
		value, err := p.parseRHS()
		if err != nil {
			return nil, err
		}
		def.Value = value
	}
	def.SpanVal = p.span(start)
	return def, p.expectEnd()
}

// atLineEnd reports whether the current line has no more tokens. EOL
// followed by a block is the start of a block expression, not a line end.
func (p *Parser) atLineEnd() bool {
	switch p.cur().Type {
	case TokenEOF:
		return true
	case TokenEOL:
		return p.peek().Type != TokenBlock
	}
	return false
}

// parseRHS parses the right-hand side of a definition or assignment.
func (p *Parser) parseRHS() (Expr, error) {
	if p.curTokenIs(TokenEOF) {
		return nil, p.errorf("expected expression")
	}
	expr, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	if _, ok := expr.(*EndOfInput); ok {
		return nil, p.errorf("expected expression")
	}
	return expr, nil
}

func (p *Parser) parseKeywordStatement() (Stmt, error) {
	tok := p.cur()
	switch tok.Literal {
	case "if":
		return p.parseIf()
	case "while":
		return p.parseWhile()
	case "break":
		p.nextToken()
		return &Break{SpanVal: p.span(tok.Pos)}, p.expectEnd()
	case "continue":
		p.nextToken()
		return &Continue{SpanVal: p.span(tok.Pos)}, p.expectEnd()
	case "return":
		p.nextToken()
		ret := &Return{}
		if !p.atLineEnd() {
			value, err := p.ParseExpression()
			if err != nil {
				return nil, err
			}
			ret.Value = value
		}
		ret.SpanVal = p.span(tok.Pos)
		return ret, p.expectEnd()
	case "else":
		return nil, p.errorf("else without if")
	}
	return nil, p.unexpected()
}

func (p *Parser) parseIf() (Stmt, error) {
	start := p.cur().Pos
	p.nextToken() // if

	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	stmt := &If{Cond: cond, Then: then}

	if p.curIs(TokenKeyword, "else") {
		elseStart := p.cur().Pos
		p.nextToken()
		if p.curIs(TokenKeyword, "if") {
			nested, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			stmt.Else = &Block{SpanVal: p.span(elseStart), Statements: []Stmt{nested}}
		} else {
			if err := p.expectLineEnd(); err != nil {
				return nil, err
			}
			if stmt.Else, err = p.parseBody(); err != nil {
				return nil, err
			}
		}
	}
	stmt.SpanVal = p.span(start)
	return stmt, nil
}

func (p *Parser) parseWhile() (Stmt, error) {
	start := p.cur().Pos
	p.nextToken() // while

	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	return &While{SpanVal: p.span(start), Cond: cond, Body: body}, nil
}

func (p *Parser) parseCondition() (Expr, error) {
	cond, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	if _, ok := cond.(*EndOfInput); ok {
		return nil, p.errorf("expected condition")
	}
	return cond, p.expectLineEnd()
}

func (p *Parser) expectLineEnd() error {
	if p.curTokenIs(TokenEOL) {
		p.nextToken()
		return nil
	}
	if p.curTokenIs(TokenEOF) {
		return p.errorf("expected indented block")
	}
	return p.unexpected()
}

// parseBody parses BLOCK EOL, the body of a control statement.
func (p *Parser) parseBody() (*Block, error) {
	if !p.curTokenIs(TokenBlock) {
		return nil, p.errorf("expected indented block")
	}
	block, err := p.parseBlockToken()
	if err != nil {
		return nil, err
	}
	return block, p.expectEnd()
}

// parseBlockToken parses the current block token with a fresh parser.
func (p *Parser) parseBlockToken() (*Block, error) {
	tok := p.cur()
	p.nextToken()
	block, err := NewParser(tok.Block).Parse()
	if err != nil {
		return nil, err
	}
	block.SpanVal.Start = tok.Pos
	return block, nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// ParseExpression parses a binary expression by precedence climbing.
func (p *Parser) ParseExpression() (Expr, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	exprs := []Expr{first}
	var ops []Operand

	reduce := func() {
		n := len(exprs)
		left, right := exprs[n-2], exprs[n-1]
		op := ops[len(ops)-1]
		ops = ops[:len(ops)-1]
		exprs = append(exprs[:n-2], &BinaryOp{
			SpanVal: Span{Start: left.Span().Start, End: right.Span().End},
			Left:    left,
			Op:      op,
			Right:   right,
		})
	}

	for {
		tok := p.cur()
		if tok.Type != TokenOperator {
			break
		}
		op, ok := LookupOperand(tok.Literal)
		if !ok {
			return nil, p.errorf("%q is not a binary operator", tok.Literal)
		}
		p.nextToken()
		// An operator at the end of a line continues onto the next.
		if p.curTokenIs(TokenEOL) && p.peek().Type != TokenBlock {
			p.nextToken()
		}

		for len(ops) > 0 && op.Precedence() >= ops[len(ops)-1].Precedence() {
			reduce()
		}
		ops = append(ops, op)

		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if _, ok := operand.(*EndOfInput); ok {
			return nil, p.errorf("expected operand after %q", op)
		}
		exprs = append(exprs, operand)
	}
	for len(ops) > 0 {
		reduce()
	}
	return exprs[0], nil
}

func (p *Parser) parseUnary() (Expr, error) {
	tok := p.cur()
	if tok.Is(TokenOperator, "-") || tok.Is(TokenOperator, "!") {
		p.nextToken()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if _, ok := operand.(*EndOfInput); ok {
			return nil, p.errorf("expected operand after %q", tok.Literal)
		}
		return &Call{
			SpanVal: Span{Start: tok.Pos, End: operand.Span().End},
			Callee:  &Identifier{SpanVal: Span{Start: tok.Pos, End: tok.Pos}, Name: tok.Literal},
			Args:    []Expr{operand},
		}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (Expr, error) {
	expr, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.curIs(TokenSymbol, "(") {
		if expr, err = p.parseCall(expr); err != nil {
			return nil, err
		}
	}
	return expr, nil
}

// parseCall parses "(" args ")" after callee. The list may also end at EOL.
func (p *Parser) parseCall(callee Expr) (Expr, error) {
	p.nextToken() // (
	saved := p.inArgs
	p.inArgs = true
	defer func() { p.inArgs = saved }()

	call := &Call{Callee: callee}
	for {
		if p.curIs(TokenSymbol, ")") {
			p.nextToken()
			break
		}
		if p.curTokenIs(TokenEOL) {
			if p.peek().Is(TokenSymbol, ")") {
				p.nextToken()
				p.nextToken()
			}
			break
		}
		if p.curTokenIs(TokenEOF) {
			return nil, p.errorf("unterminated argument list")
		}
		if len(call.Args) > 0 {
			if !p.curIs(TokenSymbol, ",") {
				return nil, p.unexpected()
			}
			p.nextToken()
		}
		arg, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		if _, ok := arg.(*EndOfInput); ok {
			return nil, p.errorf("unterminated argument list")
		}
		call.Args = append(call.Args, arg)
		// A block argument leaves its line's EOL before the next , or ).
		if p.curTokenIs(TokenEOL) && (p.peek().Is(TokenSymbol, ")") || p.peek().Is(TokenSymbol, ",")) {
			p.nextToken()
		}
	}
	call.SpanVal = Span{Start: callee.Span().Start, End: p.lastPos()}
	return call, nil
}

func (p *Parser) parseTerm() (Expr, error) {
	tok := p.cur()
	sp := Span{Start: tok.Pos, End: tok.Pos}

	switch tok.Type {
	case TokenInteger:
		p.nextToken()
		v, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			return nil, parseErrorf(tok.Pos, "invalid integer %q", tok.Literal)
		}
		return &IntLiteral{SpanVal: sp, Value: v}, nil

	case TokenFloat:
		p.nextToken()
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return nil, parseErrorf(tok.Pos, "invalid float %q", tok.Literal)
		}
		return &FloatLiteral{SpanVal: sp, Value: v}, nil

	case TokenString:
		p.nextToken()
		return &StringLiteral{SpanVal: sp, Value: tok.Literal}, nil

	case TokenBool:
		p.nextToken()
		return &BoolLiteral{SpanVal: sp, Value: tok.Literal == "true"}, nil

	case TokenIdentifier:
		next := p.peek()
		if next.Is(TokenSymbol, "->") || (next.Is(TokenSymbol, ",") && !p.inArgs) {
			return p.parseFuncLit()
		}
		p.nextToken()
		return &Identifier{SpanVal: sp, Name: tok.Literal}, nil

	case TokenSymbol:
		switch tok.Literal {
		case "(":
			p.nextToken()
			saved := p.inArgs
			p.inArgs = false
			expr, err := p.ParseExpression()
			p.inArgs = saved
			if err != nil {
				return nil, err
			}
			if !p.curIs(TokenSymbol, ")") {
				if p.curTokenIs(TokenEOF) {
					return nil, p.errorf("expected )")
				}
				return nil, p.errorf("expected ), got %s", p.cur())
			}
			p.nextToken()
			return expr, nil
		case "->":
			return p.parseFuncLit()
		}

	case TokenEOL:
		if p.peek().Type == TokenBlock {
			p.nextToken()
			return p.parseBlockToken()
		}

	case TokenEOF:
		return &EndOfInput{SpanVal: sp}, nil
	}
	return nil, p.unexpected()
}

// parseFuncLit parses [IDENT {"," IDENT}] "->" EOL BLOCK.
func (p *Parser) parseFuncLit() (Expr, error) {
	start := p.cur().Pos
	var params []string
	for !p.curIs(TokenSymbol, "->") {
		if !p.curTokenIs(TokenIdentifier) {
			return nil, p.errorf("expected parameter name, got %s", p.cur())
		}
		params = append(params, p.cur().Literal)
		p.nextToken()
		if p.curIs(TokenSymbol, ",") {
			p.nextToken()
		} else if !p.curIs(TokenSymbol, "->") {
			return nil, p.errorf("expected -> after parameters, got %s", p.cur())
		}
	}
	p.nextToken() // ->

	seen := make(map[string]bool, len(params))
	for _, name := range params {
		if seen[name] {
			return nil, parseErrorf(start, "duplicate parameter %q", name)
		}
		seen[name] = true
	}

	if err := p.expectLineEnd(); err != nil {
		return nil, err
	}
	if !p.curTokenIs(TokenBlock) {
		return nil, p.errorf("expected function body")
	}
	saved := p.inArgs
	p.inArgs = false
	body, err := p.parseBlockToken()
	p.inArgs = saved
	if err != nil {
		return nil, err
	}
	return &FuncLit{SpanVal: p.span(start), Params: params, Body: body}, nil
}
