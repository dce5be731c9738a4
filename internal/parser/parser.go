package parser

import (
	"bzr/internal/ast"
	"bzr/internal/lexer"
	"bzr/internal/token"
	"fmt"
	"log/slog"
	"strconv"
)

const (
	_            int = iota
	LOWEST           //
	ASSIGN           // x = y
	AND_OR           // && or ||
	EQUALS           // ==
	LESS_GREATER     // > or <
	SUM              // +
	PRODUCT          // *
	PREFIX           // -X or !X
	CALL             // myFunction(X)
	INDEX            // array[index]
)

var precedences = map[token.TokenType]int{
	token.ASSIGN:      ASSIGN,
	token.LOGICAL_AND: AND_OR,
	token.LOGICAL_OR:  AND_OR,
	token.EQ:          EQUALS,
	token.NOT_EQ:      EQUALS,
	token.LT:          LESS_GREATER,
	token.LT_EQ:       LESS_GREATER,
	token.GT:          LESS_GREATER,
	token.GT_EQ:       LESS_GREATER,
	token.PLUS:        SUM,
	token.MINUS:       SUM,
	token.SLASH:       PRODUCT,
	token.ASTERISK:    PRODUCT,
	token.LPAREN:      CALL,
	token.LBRACKET:    INDEX,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// Diagnostic is one parse error and where it was found.
type Diagnostic struct {
	Location token.Location
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Location, d.Message)
}

type Parser struct {
	tokenizer   lexer.Tokenizer
	diagnostics []Diagnostic

	curToken  token.Token
	peekToken token.Token

	prefixParseFns map[token.TokenType]prefixParseFn
	infixParseFns  map[token.TokenType]infixParseFn
}

func New(l lexer.Tokenizer) *Parser {
	p := &Parser{tokenizer: l}

	p.prefixParseFns = map[token.TokenType]prefixParseFn{
		token.IDENT:    p.parseIdentifier,
		token.NUMBER:   p.parseIntegerLiteral,
		token.STRING:   p.parseStringLiteral,
		token.TRUE:     p.parseBoolean,
		token.FALSE:    p.parseBoolean,
		token.BANG:     p.parsePrefixExpression,
		token.MINUS:    p.parsePrefixExpression,
		token.LPAREN:   p.parseGroupedExpression,
		token.LBRACKET: p.parseArrayLiteral,
		token.IF:       p.parseIfExpression,
		token.WHILE:    p.parseWhileExpression,
		token.FUNCTION: p.parseFunctionLiteral,
	}

	p.infixParseFns = map[token.TokenType]infixParseFn{
		token.PLUS:        p.parseInfixExpression,
		token.MINUS:       p.parseInfixExpression,
		token.SLASH:       p.parseInfixExpression,
		token.ASTERISK:    p.parseInfixExpression,
		token.EQ:          p.parseInfixExpression,
		token.NOT_EQ:      p.parseInfixExpression,
		token.LT:          p.parseInfixExpression,
		token.LT_EQ:       p.parseInfixExpression,
		token.GT:          p.parseInfixExpression,
		token.GT_EQ:       p.parseInfixExpression,
		token.LOGICAL_AND: p.parseInfixExpression,
		token.LOGICAL_OR:  p.parseInfixExpression,
		token.ASSIGN:      p.parseAssignExpression,
		token.LPAREN:      p.parseCallExpression,
		token.LBRACKET:    p.parseIndexExpression,
	}

	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()

	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.tokenizer.NextToken()
}

func (p *Parser) curTokenIs(t token.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t token.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) addErrorAt(loc token.Location, message string, args ...interface{}) {
	p.diagnostics = append(p.diagnostics, Diagnostic{
		Location: loc,
		Message:  fmt.Sprintf(message, args...),
	})
}

func (p *Parser) addError(message string, args ...interface{}) {
	p.addErrorAt(p.curToken.Location, message, args...)
}

func (p *Parser) peekError(t token.TokenType) {
	p.addErrorAt(p.peekToken.Location, "expected %s, got %s instead", describe(t), p.peekToken)
}

func (p *Parser) noPrefixParseFnError(tok token.Token) {
	if tok.Type == token.ILLEGAL {
		p.addError("illegal token %s", tok)
		return
	}
	p.addError("unexpected %s", tok)
}

func (p *Parser) expectPeek(t token.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

// Errors returns the diagnostics rendered as "file:line:col: message".
func (p *Parser) Errors() []string {
	errors := make([]string, 0, len(p.diagnostics))
	for _, d := range p.diagnostics {
		errors = append(errors, d.String())
	}
	return errors
}

func (p *Parser) Diagnostics() []Diagnostic {
	return p.diagnostics
}

// ParseProgram consumes the whole token stream. A statement that fails to parse
// is dropped, the parser steps over one token and starts a new statement.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{Statements: []ast.Statement{}}

	for !p.curTokenIs(token.EOF) {
		if p.curTokenIs(token.SEMICOLON) {
			p.nextToken()
			continue
		}

		seen := len(p.diagnostics)
		stmt := p.parseStatement()
		if len(p.diagnostics) == seen && stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		p.nextToken()
	}

	program.Errors = p.Errors()
	slog.Debug("parsed program",
		slog.Int("statements", len(program.Statements)),
		slog.Int("errors", len(program.Errors)))

	return program
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.LET:
		if stmt := p.parseLetStatement(); stmt != nil {
			return stmt
		}
	case token.VAR:
		if stmt := p.parseVarStatement(); stmt != nil {
			return stmt
		}
	case token.RETURN:
		if stmt := p.parseReturnStatement(); stmt != nil {
			return stmt
		}
	case token.LBRACE:
		if block := p.parseBlockStatement(); block != nil {
			return block
		}
	default:
		if stmt := p.parseExpressionStatement(); stmt != nil {
			return stmt
		}
	}
	return nil
}

func (p *Parser) parseLetStatement() *ast.LetStatement {
	tok := p.curToken
	name, declared, value := p.parseBinding()
	if value == nil {
		return nil
	}
	return &ast.LetStatement{Token: tok, Name: name, DeclaredType: declared, Value: value}
}

func (p *Parser) parseVarStatement() *ast.VarStatement {
	tok := p.curToken
	name, declared, value := p.parseBinding()
	if value == nil {
		return nil
	}
	return &ast.VarStatement{Token: tok, Name: name, DeclaredType: declared, Value: value}
}

// parseBinding reads `NAME [TYPE] = EXPR [;]` after let or var. A nil value means
// the binding failed and a diagnostic was recorded.
func (p *Parser) parseBinding() (*ast.Identifier, ast.Type, ast.Expression) {
	keyword := p.curToken.Literal

	if !p.expectPeek(token.IDENT) {
		return nil, ast.Unknown, nil
	}
	name := &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	declared := ast.Unknown
	if token.IsTypeKeyword(p.peekToken.Type) {
		p.nextToken()
		declared, _ = ast.TypeFromToken(p.curToken.Type)
	}

	if !p.expectPeek(token.ASSIGN) {
		return nil, ast.Unknown, nil
	}
	p.nextToken()

	valueLoc := p.curToken.Location
	value := p.parseExpression(LOWEST)
	if value == nil {
		return nil, ast.Unknown, nil
	}

	if !declared.Compatible(value.ResolvedType()) {
		p.addErrorAt(valueLoc, "cannot use %s value as %s in %s %s",
			value.ResolvedType(), declared, keyword, name.Value)
		return nil, ast.Unknown, nil
	}

	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}

	return name, declared, value
}

func (p *Parser) parseReturnStatement() *ast.ReturnStatement {
	stmt := &ast.ReturnStatement{Token: p.curToken}

	p.nextToken()

	stmt.ReturnValue = p.parseExpression(LOWEST)
	if stmt.ReturnValue == nil {
		return nil
	}

	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}

	return stmt
}

func (p *Parser) parseExpressionStatement() *ast.ExpressionStatement {
	stmt := &ast.ExpressionStatement{Token: p.curToken}

	stmt.Expression = p.parseExpression(LOWEST)
	if stmt.Expression == nil {
		return nil
	}

	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}

	return stmt
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.noPrefixParseFnError(p.curToken)
		return nil
	}
	leftExp := prefix()

	for leftExp != nil && !p.peekTokenIs(token.SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}

		p.nextToken()

		leftExp = infix(leftExp)
	}

	return leftExp
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

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseIntegerLiteral() ast.Expression {
	value, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
	if err != nil {
		p.addError("could not parse %s as integer", p.curToken)
		return nil
	}
	return &ast.IntegerLiteral{Token: p.curToken, Value: value}
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseBoolean() ast.Expression {
	return &ast.BooleanLiteral{Token: p.curToken, Value: p.curTokenIs(token.TRUE)}
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
	expression.Type = prefixType(expression.Operator)

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
	expression.Type = infixType(expression.Operator, left.ResolvedType(), expression.Right.ResolvedType())

	return expression
}

// parseAssignExpression is right-associative: a = b = 1 assigns b first.
func (p *Parser) parseAssignExpression(target ast.Expression) ast.Expression {
	switch target.(type) {
	case *ast.Identifier, *ast.IndexExpression:
	default:
		p.addError("cannot assign to %s", target.String())
		return nil
	}

	expression := &ast.AssignExpression{Token: p.curToken, Target: target}

	p.nextToken()

	expression.Value = p.parseExpression(ASSIGN - 1)
	if expression.Value == nil {
		return nil
	}

	return expression
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()

	exp := p.parseExpression(LOWEST)
	if exp == nil {
		return nil
	}

	if !p.expectPeek(token.RPAREN) {
		return nil
	}

	return exp
}

func (p *Parser) parseArrayLiteral() ast.Expression {
	array := &ast.ArrayLiteral{Token: p.curToken}

	elements, ok := p.parseExpressionList(token.RBRACKET)
	if !ok {
		return nil
	}
	array.Elements = elements

	return array
}

func (p *Parser) parseExpressionList(end token.TokenType) ([]ast.Expression, bool) {
	list := []ast.Expression{}

	if p.peekTokenIs(end) {
		p.nextToken()
		return list, true
	}

	p.nextToken()
	exp := p.parseExpression(LOWEST)
	if exp == nil {
		return nil, false
	}
	list = append(list, exp)

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		exp := p.parseExpression(LOWEST)
		if exp == nil {
			return nil, false
		}
		list = append(list, exp)
	}

	if !p.expectPeek(end) {
		return nil, false
	}

	return list, true
}

func (p *Parser) parseIfExpression() ast.Expression {
	if expression := p.parseIf(); expression != nil {
		return expression
	}
	return nil
}

func (p *Parser) parseIf() *ast.IfExpression {
	expression := &ast.IfExpression{Token: p.curToken}

	p.nextToken()
	expression.Condition = p.parseExpression(LOWEST)
	if expression.Condition == nil {
		return nil
	}

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	expression.Consequence = p.parseBlockStatement()
	if expression.Consequence == nil {
		return nil
	}

	if !p.peekTokenIs(token.ELSE) {
		return expression
	}
	p.nextToken()

	if p.peekTokenIs(token.IF) {
		p.nextToken()
		expression.ElseIf = p.parseIf()
		if expression.ElseIf == nil {
			return nil
		}
		return expression
	}

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	expression.Alternative = p.parseBlockStatement()
	if expression.Alternative == nil {
		return nil
	}

	return expression
}

func (p *Parser) parseWhileExpression() ast.Expression {
	expression := &ast.WhileExpression{Token: p.curToken}

	p.nextToken()
	expression.Condition = p.parseExpression(LOWEST)
	if expression.Condition == nil {
		return nil
	}

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	expression.Body = p.parseBlockStatement()
	if expression.Body == nil {
		return nil
	}

	return expression
}

// parseBlockStatement is entered on '{' and leaves curToken on the matching '}'.
// Statements that fail inside the block get the same skip-one-token recovery as
// top-level ones.
func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{Token: p.curToken}
	block.Statements = []ast.Statement{}

	p.nextToken()

	for !p.curTokenIs(token.RBRACE) {
		if p.curTokenIs(token.EOF) {
			p.addErrorAt(block.Token.Location, "block is never closed, expected '}'")
			return nil
		}
		if p.curTokenIs(token.SEMICOLON) {
			p.nextToken()
			continue
		}

		stmt := p.parseStatement()
		if stmt == nil {
			// the failed statement stopped on this block's '}'
			if p.curTokenIs(token.RBRACE) {
				break
			}
		} else {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}

	return block
}

func (p *Parser) parseFunctionLiteral() ast.Expression {
	lit := &ast.FunctionLiteral{Token: p.curToken}

	if p.peekTokenIs(token.IDENT) {
		p.nextToken()
		lit.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
	}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}

	params, ok := p.parseFunctionParameters()
	if !ok {
		return nil
	}
	lit.Parameters = params

	if token.IsTypeKeyword(p.peekToken.Type) {
		p.nextToken()
		lit.ReturnType, _ = ast.TypeFromToken(p.curToken.Type)
	}

	if !p.expectPeek(token.LBRACE) {
		return nil
	}

	lit.Body = p.parseBlockStatement()
	if lit.Body == nil {
		return nil
	}

	return lit
}

func (p *Parser) parseFunctionParameters() ([]*ast.Parameter, bool) {
	params := []*ast.Parameter{}

	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		return params, true
	}

	for {
		if !p.expectPeek(token.IDENT) {
			return nil, false
		}
		param := &ast.Parameter{
			Name: &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal},
		}
		if token.IsTypeKeyword(p.peekToken.Type) {
			p.nextToken()
			param.Type, _ = ast.TypeFromToken(p.curToken.Type)
		}
		for _, seen := range params {
			if seen.Name.Value == param.Name.Value {
				p.addErrorAt(param.Name.Token.Location, "duplicate parameter %s", param.Name.Value)
				return nil, false
			}
		}
		params = append(params, param)

		if !p.peekTokenIs(token.COMMA) {
			break
		}
		p.nextToken()
	}

	if !p.expectPeek(token.RPAREN) {
		return nil, false
	}

	return params, true
}

func (p *Parser) parseCallExpression(function ast.Expression) ast.Expression {
	exp := &ast.CallExpression{Token: p.curToken, Function: function}

	args, ok := p.parseExpressionList(token.RPAREN)
	if !ok {
		return nil
	}
	exp.Arguments = args

	return exp
}

func (p *Parser) parseIndexExpression(left ast.Expression) ast.Expression {
	exp := &ast.IndexExpression{Token: p.curToken, Left: left}

	p.nextToken()
	exp.Index = p.parseExpression(LOWEST)
	if exp.Index == nil {
		return nil
	}

	if !p.expectPeek(token.RBRACKET) {
		return nil
	}

	return exp
}

func describe(t token.TokenType) string {
	switch t {
	case token.IDENT:
		return "identifier"
	case token.EOF:
		return "end of input"
	}
	return "'" + string(t) + "'"
}
