package ast

import (
	"bytes"
	"bzr/internal/token"
	"strings"
)

// The base Node interface
type Node interface {
	TokenLiteral() string
	String() string
}

// Statement is sealed: only the statement kinds in this file implement it.
type Statement interface {
	Node
	statementNode()
}

// Expression is sealed: only the expression kinds in this file implement it.
type Expression interface {
	Node
	expressionNode()
	ResolvedType() Type
}

// Program is the root of every parse. A program with Errors must not be evaluated.
type Program struct {
	Statements []Statement
	Errors     []string
}

func (p *Program) TokenLiteral() string {
	if len(p.Statements) > 0 {
		return p.Statements[0].TokenLiteral()
	}
	return ""
}

func (p *Program) String() string {
	return joinStatements(p.Statements, "\n")
}

// joinStatements separates statements so the output parses back into the same
// sequence: an expression statement has no trailing ';' of its own.
func joinStatements(stmts []Statement, sep string) string {
	var out bytes.Buffer

	for i, s := range stmts {
		if i > 0 {
			if _, ok := stmts[i-1].(*ExpressionStatement); ok {
				out.WriteString(";")
			}
			out.WriteString(sep)
		}
		out.WriteString(s.String())
	}

	return out.String()
}

type LetStatement struct {
	Token        token.Token // the token.LET token
	Name         *Identifier
	DeclaredType Type // Unknown when no type was written
	Value        Expression
}

func (ls *LetStatement) statementNode()       {}
func (ls *LetStatement) TokenLiteral() string { return ls.Token.Literal }
func (ls *LetStatement) String() string {
	return bindingString("let", ls.Name, ls.DeclaredType, ls.Value)
}

type VarStatement struct {
	Token        token.Token // the token.VAR token
	Name         *Identifier
	DeclaredType Type
	Value        Expression
}

func (vs *VarStatement) statementNode()       {}
func (vs *VarStatement) TokenLiteral() string { return vs.Token.Literal }
func (vs *VarStatement) String() string {
	return bindingString("var", vs.Name, vs.DeclaredType, vs.Value)
}

func bindingString(keyword string, name *Identifier, typ Type, value Expression) string {
	var out bytes.Buffer

	out.WriteString(keyword + " ")
	out.WriteString(name.String())
	if typ != Unknown {
		out.WriteString(" " + typ.String())
	}
	out.WriteString(" = ")
	if value != nil {
		out.WriteString(value.String())
	}
	out.WriteString(";")

	return out.String()
}

type ReturnStatement struct {
	Token       token.Token // the 'ret' token
	ReturnValue Expression
}

func (rs *ReturnStatement) statementNode()       {}
func (rs *ReturnStatement) TokenLiteral() string { return rs.Token.Literal }
func (rs *ReturnStatement) String() string {
	var out bytes.Buffer

	out.WriteString(rs.TokenLiteral() + " ")
	if rs.ReturnValue != nil {
		out.WriteString(rs.ReturnValue.String())
	}
	out.WriteString(";")

	return out.String()
}

type ExpressionStatement struct {
	Token      token.Token // the first token of the expression
	Expression Expression
}

func (es *ExpressionStatement) statementNode()       {}
func (es *ExpressionStatement) TokenLiteral() string { return es.Token.Literal }
func (es *ExpressionStatement) String() string {
	if es.Expression != nil {
		return es.Expression.String()
	}
	return ""
}

type BlockStatement struct {
	Token      token.Token // the { token
	Statements []Statement
}

func (bs *BlockStatement) statementNode()       {}
func (bs *BlockStatement) TokenLiteral() string { return bs.Token.Literal }
func (bs *BlockStatement) String() string {
	if len(bs.Statements) == 0 {
		return "{ }"
	}
	return "{ " + joinStatements(bs.Statements, " ") + " }"
}

// Expressions
type Identifier struct {
	Token token.Token // the token.IDENT token
	Value string
}

func (i *Identifier) expressionNode()      {}
func (i *Identifier) TokenLiteral() string { return i.Token.Literal }
func (i *Identifier) String() string       { return i.Value }
func (i *Identifier) ResolvedType() Type   { return Unknown }

type IntegerLiteral struct {
	Token token.Token
	Value int64
}

func (il *IntegerLiteral) expressionNode()      {}
func (il *IntegerLiteral) TokenLiteral() string { return il.Token.Literal }
func (il *IntegerLiteral) String() string       { return il.Token.Literal }
func (il *IntegerLiteral) ResolvedType() Type   { return Int }

type BooleanLiteral struct {
	Token token.Token
	Value bool
}

func (b *BooleanLiteral) expressionNode()      {}
func (b *BooleanLiteral) TokenLiteral() string { return b.Token.Literal }
func (b *BooleanLiteral) String() string       { return b.Token.Literal }
func (b *BooleanLiteral) ResolvedType() Type   { return Bool }

type StringLiteral struct {
	Token token.Token
	Value string
}

func (sl *StringLiteral) expressionNode()      {}
func (sl *StringLiteral) TokenLiteral() string { return sl.Token.Literal }
func (sl *StringLiteral) String() string       { return QuoteString(sl.Value) }
func (sl *StringLiteral) ResolvedType() Type   { return String }

// QuoteString renders s as a string literal the lexer reads back unchanged.
func QuoteString(s string) string {
	var out strings.Builder
	out.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\n':
			out.WriteString(`\n`)
		case '\t':
			out.WriteString(`\t`)
		case '\r':
			out.WriteString(`\r`)
		case '\\':
			out.WriteString(`\\`)
		case '"':
			out.WriteString(`\"`)
		default:
			out.WriteRune(r)
		}
	}
	out.WriteByte('"')
	return out.String()
}

type ArrayLiteral struct {
	Token    token.Token // the '[' token
	Elements []Expression
}

func (al *ArrayLiteral) expressionNode()      {}
func (al *ArrayLiteral) TokenLiteral() string { return al.Token.Literal }
func (al *ArrayLiteral) String() string {
	return "[" + joinExpressions(al.Elements) + "]"
}
func (al *ArrayLiteral) ResolvedType() Type { return Array }

type PrefixExpression struct {
	Token    token.Token // The prefix token, e.g. !
	Operator string
	Right    Expression
	Type     Type
}

func (pe *PrefixExpression) expressionNode()      {}
func (pe *PrefixExpression) TokenLiteral() string { return pe.Token.Literal }
func (pe *PrefixExpression) String() string {
	var out bytes.Buffer

	out.WriteString("(")
	out.WriteString(pe.Operator)
	out.WriteString(pe.Right.String())
	out.WriteString(")")

	return out.String()
}
func (pe *PrefixExpression) ResolvedType() Type { return pe.Type }

type InfixExpression struct {
	Token    token.Token // The operator token, e.g. +
	Left     Expression
	Operator string
	Right    Expression
	Type     Type
}

func (ie *InfixExpression) expressionNode()      {}
func (ie *InfixExpression) TokenLiteral() string { return ie.Token.Literal }
func (ie *InfixExpression) String() string {
	var out bytes.Buffer

	out.WriteString("(")
	out.WriteString(ie.Left.String())
	out.WriteString(" " + ie.Operator + " ")
	out.WriteString(ie.Right.String())
	out.WriteString(")")

	return out.String()
}
func (ie *InfixExpression) ResolvedType() Type { return ie.Type }

// AssignExpression stores Value into Target, an *Identifier or an *IndexExpression.
type AssignExpression struct {
	Token  token.Token // the = token
	Target Expression
	Value  Expression
}

func (ae *AssignExpression) expressionNode()      {}
func (ae *AssignExpression) TokenLiteral() string { return ae.Token.Literal }
func (ae *AssignExpression) String() string {
	return "(" + ae.Target.String() + " = " + ae.Value.String() + ")"
}
func (ae *AssignExpression) ResolvedType() Type { return ae.Value.ResolvedType() }

// IfExpression holds either an Alternative block or a chained ElseIf, never both.
type IfExpression struct {
	Token       token.Token // The 'if' token
	Condition   Expression
	Consequence *BlockStatement
	Alternative *BlockStatement
	ElseIf      *IfExpression
}

func (ie *IfExpression) expressionNode()      {}
func (ie *IfExpression) TokenLiteral() string { return ie.Token.Literal }
func (ie *IfExpression) String() string {
	var out bytes.Buffer

	out.WriteString("if ")
	out.WriteString(ie.Condition.String())
	out.WriteString(" ")
	out.WriteString(ie.Consequence.String())

	if ie.ElseIf != nil {
		out.WriteString(" else ")
		out.WriteString(ie.ElseIf.String())
	} else if ie.Alternative != nil {
		out.WriteString(" else ")
		out.WriteString(ie.Alternative.String())
	}

	return out.String()
}
func (ie *IfExpression) ResolvedType() Type { return Unknown }

type WhileExpression struct {
	Token     token.Token // The 'while' token
	Condition Expression
	Body      *BlockStatement
}

func (we *WhileExpression) expressionNode()      {}
func (we *WhileExpression) TokenLiteral() string { return we.Token.Literal }
func (we *WhileExpression) String() string {
	return "while " + we.Condition.String() + " " + we.Body.String()
}
func (we *WhileExpression) ResolvedType() Type { return Unknown }

type Parameter struct {
	Name *Identifier
	Type Type // Unknown when no type was written
}

func (p *Parameter) String() string {
	if p.Type == Unknown {
		return p.Name.String()
	}
	return p.Name.String() + " " + p.Type.String()
}

type FunctionLiteral struct {
	Token      token.Token // The 'fn' token
	Name       *Identifier // nil for anonymous functions
	Parameters []*Parameter
	ReturnType Type
	Body       *BlockStatement
}

func (fl *FunctionLiteral) expressionNode()      {}
func (fl *FunctionLiteral) TokenLiteral() string { return fl.Token.Literal }
func (fl *FunctionLiteral) String() string {
	var out bytes.Buffer

	params := []string{}
	for _, p := range fl.Parameters {
		params = append(params, p.String())
	}

	out.WriteString(fl.TokenLiteral())
	if fl.Name != nil {
		out.WriteString(" " + fl.Name.String())
	}
	out.WriteString("(")
	out.WriteString(strings.Join(params, ", "))
	out.WriteString(") ")
	if fl.ReturnType != Unknown {
		out.WriteString(fl.ReturnType.String() + " ")
	}
	out.WriteString(fl.Body.String())

	return out.String()
}
func (fl *FunctionLiteral) ResolvedType() Type { return Function }

type CallExpression struct {
	Token     token.Token // The '(' token
	Function  Expression  // Identifier or FunctionLiteral
	Arguments []Expression
}

func (ce *CallExpression) expressionNode()      {}
func (ce *CallExpression) TokenLiteral() string { return ce.Token.Literal }
func (ce *CallExpression) String() string {
	return ce.Function.String() + "(" + joinExpressions(ce.Arguments) + ")"
}
func (ce *CallExpression) ResolvedType() Type { return Unknown }

type IndexExpression struct {
	Token token.Token // The [ token
	Left  Expression
	Index Expression
}

func (ie *IndexExpression) expressionNode()      {}
func (ie *IndexExpression) TokenLiteral() string { return ie.Token.Literal }
func (ie *IndexExpression) String() string {
	var out bytes.Buffer

	out.WriteString("(")
	out.WriteString(ie.Left.String())
	out.WriteString("[")
	out.WriteString(ie.Index.String())
	out.WriteString("])")

	return out.String()
}
func (ie *IndexExpression) ResolvedType() Type { return Unknown }

func joinExpressions(exps []Expression) string {
	parts := make([]string, 0, len(exps))
	for _, e := range exps {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, ", ")
}
