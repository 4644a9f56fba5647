// Package parser builds the syntax tree of an instrument script.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zurustar/instrscript/pkg/compiler/ast"
	"github.com/zurustar/instrscript/pkg/compiler/lexer"
	"github.com/zurustar/instrscript/pkg/compiler/token"
)

// ParseError is a syntax error. The parser stops at the first one.
type ParseError struct {
	Message string
	Pos     token.Pos
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d (offset %d): %s",
		e.Pos.Line, e.Pos.Column, e.Pos.Offset, e.Message)
}

// Precedence levels for operators.
const (
	_ int = iota
	LOWEST
	OR          // or
	AND         // and
	LESSGREATER // == != < > <= >=
	CONCAT      // &
	SUM         // + -
	PRODUCT     // * / mod
	PREFIX      // -X or not X
	INDEX       // array[index]
)

var precedences = map[token.TokenType]int{
	token.OR:        OR,
	token.AND:       AND,
	token.EQ:        LESSGREATER,
	token.NOT_EQ:    LESSGREATER,
	token.LT:        LESSGREATER,
	token.LTE:       LESSGREATER,
	token.GT:        LESSGREATER,
	token.GTE:       LESSGREATER,
	token.AMPERSAND: CONCAT,
	token.PLUS:      SUM,
	token.MINUS:     SUM,
	token.ASTERISK:  PRODUCT,
	token.SLASH:     PRODUCT,
	token.MOD:       PRODUCT,
	token.LBRACKET:  INDEX,
}

// Parser parses instrument script source into an AST.
type Parser struct {
	l   *lexer.Lexer
	err error

	curToken  token.Token
	peekToken token.Token

	handlers  map[string]bool
	functions map[string]bool

	prefixParseFns map[token.TokenType]prefixParseFn
	infixParseFns  map[token.TokenType]infixParseFn
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// New creates a new Parser.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{
		l:         l,
		handlers:  make(map[string]bool),
		functions: make(map[string]bool),
	}

	p.prefixParseFns = make(map[token.TokenType]prefixParseFn)
	p.registerPrefix(token.VAR, p.parseVariable)
	p.registerPrefix(token.IDENT, p.parseCallExpression)
	p.registerPrefix(token.INT, p.parseIntegerLiteral)
	p.registerPrefix(token.REAL, p.parseRealLiteral)
	p.registerPrefix(token.STRING, p.parseStringLiteral)
	p.registerPrefix(token.MINUS, p.parsePrefixExpression)
	p.registerPrefix(token.NOT, p.parsePrefixExpression)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpression)

	p.infixParseFns = make(map[token.TokenType]infixParseFn)
	for tt := range precedences {
		if tt != token.LBRACKET {
			p.registerInfix(tt, p.parseInfixExpression)
		}
	}
	p.registerInfix(token.LBRACKET, p.parseIndexExpression)

	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()

	return p
}

// Parse is a convenience wrapper that parses input in one call.
func Parse(input string) (*ast.Program, error) {
	p := New(lexer.New(input))
	prog := p.ParseProgram()
	if p.err != nil {
		return nil, p.err
	}
	return prog, nil
}

// Err returns the first error, either a *lexer.LexError or a *ParseError.
func (p *Parser) Err() error {
	return p.err
}

// ParseProgram parses the entire program. It returns nil if an error was found.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{}

	for !p.curTokenIs(token.EOF) {
		switch p.curToken.Type {
		case token.DECLARE:
			if d := p.parseDeclaration(); d != nil {
				program.Declarations = append(program.Declarations, d)
			}
		case token.ON:
			if h := p.parseEventHandler(); h != nil {
				program.Handlers = append(program.Handlers, h)
			}
		case token.FUNCTION:
			if f := p.parseFunctionDeclaration(); f != nil {
				program.Functions = append(program.Functions, f)
			}
		default:
			p.fail(p.curToken.Pos, fmt.Sprintf("expected declaration, event handler or function, got %s", describe(p.curToken)))
		}
		if p.err != nil {
			return nil
		}
		p.nextToken()
	}

	program.Range = token.Pos{Line: 1, Column: 1, Length: p.curToken.Pos.Offset}
	return program
}

func (p *Parser) parseEventHandler() *ast.EventHandler {
	h := &ast.EventHandler{Token: p.curToken}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	h.Event = p.curToken.Literal
	if !ast.IsEvent(h.Event) {
		p.fail(p.curToken.Pos, fmt.Sprintf("unknown event type %q (expected one of %s)", h.Event, strings.Join(ast.Events, ", ")))
		return nil
	}
	if p.handlers[h.Event] {
		p.fail(token.Span(h.Token.Pos, p.curToken.Pos), fmt.Sprintf("duplicate handler for event %q", h.Event))
		return nil
	}
	p.handlers[h.Event] = true

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	h.Body = p.parseBlockStatement()
	if h.Body == nil {
		return nil
	}
	h.Range = token.Span(h.Token.Pos, h.Body.Range)
	return h
}

func (p *Parser) parseFunctionDeclaration() *ast.FunctionDecl {
	f := &ast.FunctionDecl{Token: p.curToken}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	f.Name = p.curToken.Literal
	if p.functions[f.Name] {
		p.fail(token.Span(f.Token.Pos, p.curToken.Pos), fmt.Sprintf("duplicate function %q", f.Name))
		return nil
	}
	p.functions[f.Name] = true

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	f.Body = p.parseBlockStatement()
	if f.Body == nil {
		return nil
	}
	f.Range = token.Span(f.Token.Pos, f.Body.Range)
	return f
}

func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{Token: p.curToken}
	block.Statements = []ast.Statement{}

	p.nextToken()

	for !p.curTokenIs(token.RBRACE) {
		if p.curTokenIs(token.EOF) {
			p.fail(p.curToken.Pos, "unexpected end of input, expected }")
			return nil
		}
		stmt := p.parseStatement()
		if stmt == nil {
			return nil
		}
		block.Statements = append(block.Statements, stmt)
		p.nextToken()
	}

	block.Range = token.Span(block.Token.Pos, p.curToken.Pos)
	return block
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.DECLARE:
		if d := p.parseDeclaration(); d != nil {
			return d
		}
	case token.VAR:
		return p.parseAssignStatement()
	case token.IDENT:
		return p.parseExpressionStatement()
	case token.IF:
		return p.parseIfStatement()
	case token.SELECT:
		return p.parseSelectStatement()
	case token.WHILE:
		return p.parseWhileStatement()
	case token.FOR:
		return p.parseForStatement()
	case token.BREAK:
		stmt := &ast.BreakStatement{Token: p.curToken}
		if !p.expectPeek(token.SEMICOLON) {
			return nil
		}
		stmt.Range = token.Span(stmt.Token.Pos, p.curToken.Pos)
		return stmt
	case token.CONTINUE:
		stmt := &ast.ContinueStatement{Token: p.curToken}
		if !p.expectPeek(token.SEMICOLON) {
			return nil
		}
		stmt.Range = token.Span(stmt.Token.Pos, p.curToken.Pos)
		return stmt
	case token.WAIT:
		return p.parseWaitStatement()
	case token.SYNC:
		return p.parseSyncStatement()
	case token.CALL:
		return p.parseCallStatement()
	case token.LBRACE:
		if b := p.parseBlockStatement(); b != nil {
			return b
		}
	default:
		p.fail(p.curToken.Pos, fmt.Sprintf("unexpected %s at start of statement", describe(p.curToken)))
	}
	return nil
}

func (p *Parser) parseDeclaration() *ast.Declaration {
	decl := &ast.Declaration{Token: p.curToken}
	p.nextToken()

qualifiers:
	for {
		var q ast.Qualifier
		switch p.curToken.Type {
		case token.CONST:
			q = ast.QualConst
		case token.POLYPHONIC:
			q = ast.QualPolyphonic
		case token.PATCH:
			q = ast.QualPatch
		default:
			break qualifiers
		}
		if decl.Has(q) {
			p.fail(p.curToken.Pos, fmt.Sprintf("duplicate qualifier %s", q))
			return nil
		}
		decl.Qualifiers = append(decl.Qualifiers, q)
		p.nextToken()
	}

	if !p.curTokenIs(token.VAR) {
		p.fail(p.curToken.Pos, fmt.Sprintf("expected variable name, got %s", describe(p.curToken)))
		return nil
	}
	decl.Name = &ast.Variable{Token: p.curToken, Name: p.curToken.Literal}

	if p.peekTokenIs(token.LBRACKET) {
		p.nextToken()
		if !p.peekTokenIs(token.RBRACKET) {
			p.nextToken()
			decl.Size = p.parseExpression(LOWEST)
			if decl.Size == nil {
				return nil
			}
		}
		if !p.expectPeek(token.RBRACKET) {
			return nil
		}
	}

	if p.peekTokenIs(token.ASSIGN) {
		p.nextToken()
		if isArraySigil(decl.Name.Sigil()) && p.peekTokenIs(token.LPAREN) {
			p.nextToken()
			decl.InitList = p.parseExpressionList(token.RPAREN)
			if decl.InitList == nil {
				return nil
			}
		} else {
			p.nextToken()
			decl.Init = p.parseExpression(LOWEST)
			if decl.Init == nil {
				return nil
			}
		}
	}

	if !p.expectPeek(token.SEMICOLON) {
		return nil
	}
	decl.Range = token.Span(decl.Token.Pos, p.curToken.Pos)
	return decl
}

func (p *Parser) parseAssignStatement() ast.Statement {
	stmt := &ast.AssignStatement{
		Target: &ast.Variable{Token: p.curToken, Name: p.curToken.Literal},
	}

	if p.peekTokenIs(token.LBRACKET) {
		p.nextToken()
		p.nextToken()
		stmt.Index = p.parseExpression(LOWEST)
		if stmt.Index == nil || !p.expectPeek(token.RBRACKET) {
			return nil
		}
	}

	if !p.expectPeek(token.ASSIGN) {
		return nil
	}
	stmt.Token = p.curToken

	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	if stmt.Value == nil || !p.expectPeek(token.SEMICOLON) {
		return nil
	}
	stmt.Range = token.Span(stmt.Target.Pos(), p.curToken.Pos)
	return stmt
}

func (p *Parser) parseExpressionStatement() ast.Statement {
	stmt := &ast.ExpressionStatement{Token: p.curToken}

	expr := p.parseExpression(LOWEST)
	if expr == nil {
		return nil
	}
	call, ok := expr.(*ast.CallExpression)
	if !ok {
		p.fail(expr.Pos(), "only function calls can be used as statements")
		return nil
	}
	stmt.Call = call

	if !p.expectPeek(token.SEMICOLON) {
		return nil
	}
	stmt.Range = token.Span(stmt.Token.Pos, p.curToken.Pos)
	return stmt
}

func (p *Parser) parseIfStatement() ast.Statement {
	stmt := &ast.IfStatement{Token: p.curToken}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}

	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)
	if stmt.Condition == nil {
		return nil
	}

	if !p.expectPeek(token.RPAREN) || !p.expectPeek(token.LBRACE) {
		return nil
	}

	stmt.Consequence = p.parseBlockStatement()
	if stmt.Consequence == nil {
		return nil
	}

	if p.peekTokenIs(token.ELSE) {
		p.nextToken()

		if p.peekTokenIs(token.IF) {
			p.nextToken()
			nested := p.parseIfStatement()
			if nested == nil {
				return nil
			}
			stmt.Alternative = nested
		} else if p.expectPeek(token.LBRACE) {
			alt := p.parseBlockStatement()
			if alt == nil {
				return nil
			}
			stmt.Alternative = alt
		} else {
			return nil
		}
	}

	stmt.Range = token.Span(stmt.Token.Pos, p.curToken.Pos)
	return stmt
}

func (p *Parser) parseSelectStatement() ast.Statement {
	stmt := &ast.SelectStatement{Token: p.curToken}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Subject = p.parseExpression(LOWEST)
	if stmt.Subject == nil {
		return nil
	}
	if !p.expectPeek(token.RPAREN) || !p.expectPeek(token.LBRACE) {
		return nil
	}
	p.nextToken()

	for !p.curTokenIs(token.RBRACE) {
		switch p.curToken.Type {
		case token.CASE:
			if stmt.Default != nil {
				p.fail(p.curToken.Pos, "case after default")
				return nil
			}
			branch := p.parseCaseBranch()
			if branch == nil {
				return nil
			}
			stmt.Cases = append(stmt.Cases, branch)
		case token.DEFAULT:
			if stmt.Default != nil {
				p.fail(p.curToken.Pos, "duplicate default branch")
				return nil
			}
			if !p.expectPeek(token.LBRACE) {
				return nil
			}
			stmt.Default = p.parseBlockStatement()
			if stmt.Default == nil {
				return nil
			}
		case token.EOF:
			p.fail(p.curToken.Pos, "unexpected end of input, expected }")
			return nil
		default:
			p.fail(p.curToken.Pos, fmt.Sprintf("expected case or default, got %s", describe(p.curToken)))
			return nil
		}
		p.nextToken()
	}

	stmt.Range = token.Span(stmt.Token.Pos, p.curToken.Pos)
	return stmt
}

func (p *Parser) parseCaseBranch() *ast.CaseBranch {
	branch := &ast.CaseBranch{Token: p.curToken}

	p.nextToken()
	branch.Low = p.parseExpression(LOWEST)
	if branch.Low == nil {
		return nil
	}
	if p.peekTokenIs(token.TO) {
		p.nextToken()
		p.nextToken()
		branch.High = p.parseExpression(LOWEST)
		if branch.High == nil {
			return nil
		}
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	branch.Body = p.parseBlockStatement()
	if branch.Body == nil {
		return nil
	}
	branch.Range = token.Span(branch.Token.Pos, branch.Body.Range)
	return branch
}

func (p *Parser) parseWhileStatement() ast.Statement {
	stmt := &ast.WhileStatement{Token: p.curToken}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)
	if stmt.Condition == nil {
		return nil
	}
	if !p.expectPeek(token.RPAREN) || !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()
	if stmt.Body == nil {
		return nil
	}
	stmt.Range = token.Span(stmt.Token.Pos, stmt.Body.Range)
	return stmt
}

func (p *Parser) parseForStatement() ast.Statement {
	stmt := &ast.ForStatement{Token: p.curToken}

	if !p.expectPeek(token.VAR) {
		return nil
	}
	stmt.Counter = &ast.Variable{Token: p.curToken, Name: p.curToken.Literal}

	if !p.expectPeek(token.ASSIGN) {
		return nil
	}
	p.nextToken()
	stmt.From = p.parseExpression(LOWEST)
	if stmt.From == nil || !p.expectPeek(token.TO) {
		return nil
	}
	p.nextToken()
	stmt.To = p.parseExpression(LOWEST)
	if stmt.To == nil || !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()
	if stmt.Body == nil {
		return nil
	}
	stmt.Range = token.Span(stmt.Token.Pos, stmt.Body.Range)
	return stmt
}

func (p *Parser) parseWaitStatement() ast.Statement {
	stmt := &ast.WaitStatement{Token: p.curToken}

	p.nextToken()
	stmt.Duration = p.parseExpression(LOWEST)
	if stmt.Duration == nil || !p.expectPeek(token.SEMICOLON) {
		return nil
	}
	stmt.Range = token.Span(stmt.Token.Pos, p.curToken.Pos)
	return stmt
}

func (p *Parser) parseSyncStatement() ast.Statement {
	stmt := &ast.SyncStatement{Token: p.curToken}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Name = p.curToken.Literal
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()
	if stmt.Body == nil {
		return nil
	}
	stmt.Range = token.Span(stmt.Token.Pos, stmt.Body.Range)
	return stmt
}

func (p *Parser) parseCallStatement() ast.Statement {
	stmt := &ast.CallStatement{Token: p.curToken}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Function = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
	if !p.expectPeek(token.SEMICOLON) {
		return nil
	}
	stmt.Range = token.Span(stmt.Token.Pos, p.curToken.Pos)
	return stmt
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.noPrefixParseFnError(p.curToken)
		return nil
	}
	leftExp := prefix()
	if leftExp == nil {
		return nil
	}

	for !p.peekTokenIs(token.SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}

		p.nextToken()
		leftExp = infix(leftExp)
		if leftExp == nil {
			return nil
		}
	}

	return leftExp
}

func (p *Parser) parseVariable() ast.Expression {
	return &ast.Variable{Token: p.curToken, Name: p.curToken.Literal}
}

func (p *Parser) parseIntegerLiteral() ast.Expression {
	lit := &ast.IntegerLiteral{Token: p.curToken, Unit: p.curToken.Unit}

	var value int64
	var err error
	literal := p.curToken.Literal
	if strings.HasPrefix(literal, "0x") || strings.HasPrefix(literal, "0X") {
		var u uint64
		u, err = strconv.ParseUint(literal[2:], 16, 63)
		value = int64(u)
	} else {
		value, err = strconv.ParseInt(literal, 10, 64)
	}
	if err != nil {
		p.fail(p.curToken.Pos, fmt.Sprintf("integer literal %s out of range", literal))
		return nil
	}

	lit.Value = value
	return lit
}

func (p *Parser) parseRealLiteral() ast.Expression {
	value, err := strconv.ParseFloat(p.curToken.Literal, 64)
	if err != nil {
		p.fail(p.curToken.Pos, fmt.Sprintf("could not parse %q as real", p.curToken.Literal))
		return nil
	}
	return &ast.RealLiteral{Token: p.curToken, Value: value, Unit: p.curToken.Unit}
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Token: p.curToken, Segments: p.curToken.Segments}
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	expression := &ast.PrefixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Literal,
	}

	p.nextToken()
	expression.Right = p.parseExpression(PREFIX)
	if expression.Right == nil {
		return nil
	}
	expression.Range = token.Span(expression.Token.Pos, expression.Right.Pos())
	return expression
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expression := &ast.InfixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Literal,
		Left:     left,
	}

	precedence := p.curPrecedence()
	p.nextToken()
	expression.Right = p.parseExpression(precedence)
	if expression.Right == nil {
		return nil
	}
	expression.Range = token.Span(left.Pos(), expression.Right.Pos())
	return expression
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()

	exp := p.parseExpression(LOWEST)
	if exp == nil || !p.expectPeek(token.RPAREN) {
		return nil
	}
	return exp
}

// parseCallExpression parses name(args). A plain identifier is only valid as a callee.
func (p *Parser) parseCallExpression() ast.Expression {
	fn := &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
	if !p.peekTokenIs(token.LPAREN) {
		p.fail(p.curToken.Pos, fmt.Sprintf("unexpected identifier %q; functions are called as %s(...)", fn.Value, fn.Value))
		return nil
	}
	p.nextToken()

	call := &ast.CallExpression{Token: p.curToken, Function: fn}
	call.Arguments = p.parseExpressionList(token.RPAREN)
	if call.Arguments == nil {
		return nil
	}
	call.Range = token.Span(fn.Pos(), p.curToken.Pos)
	return call
}

func (p *Parser) parseIndexExpression(left ast.Expression) ast.Expression {
	v, ok := left.(*ast.Variable)
	if !ok {
		p.fail(p.curToken.Pos, "only array variables can be indexed")
		return nil
	}
	exp := &ast.IndexExpression{Token: p.curToken, Left: v}

	p.nextToken()
	exp.Index = p.parseExpression(LOWEST)
	if exp.Index == nil || !p.expectPeek(token.RBRACKET) {
		return nil
	}
	exp.Range = token.Span(v.Pos(), p.curToken.Pos)
	return exp
}

// parseExpressionList parses a comma separated list; curToken is the opening
// delimiter. It returns nil on error and an empty slice for an empty list.
func (p *Parser) parseExpressionList(end token.TokenType) []ast.Expression {
	list := []ast.Expression{}

	if p.peekTokenIs(end) {
		p.nextToken()
		return list
	}

	p.nextToken()
	e := p.parseExpression(LOWEST)
	if e == nil {
		return nil
	}
	list = append(list, e)

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		e := p.parseExpression(LOWEST)
		if e == nil {
			return nil
		}
		list = append(list, e)
	}

	if !p.expectPeek(end) {
		return nil
	}

	return list
}

func (p *Parser) curTokenIs(t token.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t token.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expectPeek(t token.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) peekPrecedence() int {
	if p, ok := precedences[p.peekToken.Type]; ok {
		return p
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if p, ok := precedences[p.curToken.Type]; ok {
		return p
	}
	return LOWEST
}

func (p *Parser) peekError(t token.TokenType) {
	p.fail(p.peekToken.Pos, fmt.Sprintf("expected %s, got %s", t, describe(p.peekToken)))
}

func (p *Parser) noPrefixParseFnError(tok token.Token) {
	p.fail(tok.Pos, fmt.Sprintf("expected expression, got %s", describe(tok)))
}

// fail records the first error. A pending lexer error at or before pos wins,
// since the ILLEGAL token it produced is what the parser tripped over.
func (p *Parser) fail(pos token.Pos, msg string) {
	if p.err != nil {
		return
	}
	if le := p.l.Err(); le != nil && le.Pos.Offset <= pos.Offset {
		p.err = le
		return
	}
	p.err = &ParseError{Message: msg, Pos: pos}
}

func (p *Parser) registerPrefix(tokenType token.TokenType, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

func (p *Parser) registerInfix(tokenType token.TokenType, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}

func describe(tok token.Token) string {
	switch tok.Type {
	case token.EOF:
		return "end of input"
	case token.IDENT, token.VAR, token.INT, token.REAL:
		return fmt.Sprintf("%s %q", strings.ToLower(string(tok.Type)), tok.Literal+tok.Unit)
	case token.STRING:
		return "string literal"
	}
	if token.IsKeyword(tok.Type) {
		return fmt.Sprintf("keyword %q", tok.Literal)
	}
	return fmt.Sprintf("%q", tok.Literal)
}

func isArraySigil(c byte) bool {
	return c == '%' || c == '?' || c == '!'
}
