package parser

import "bzr/internal/ast"

// operatorTypes is the result type of each binary operator. Operands are not
// checked here; the evaluator rejects mismatched operands at run time.
var operatorTypes = map[string]ast.Type{
	"+":  ast.Int,
	"-":  ast.Int,
	"*":  ast.Int,
	"/":  ast.Int,
	"==": ast.Bool,
	"!=": ast.Bool,
	"<":  ast.Bool,
	"<=": ast.Bool,
	">":  ast.Bool,
	">=": ast.Bool,
	"&&": ast.Bool,
	"||": ast.Bool,
}

func prefixType(operator string) ast.Type {
	switch operator {
	case "-":
		return ast.Int
	case "!":
		return ast.Bool
	}
	return ast.Unknown
}

// infixType looks the operator up in operatorTypes, except for '+' which is
// string concatenation when an operand is a string and the other one is a string
// or not known yet. Two unknown operands of '+' stay unknown.
func infixType(operator string, left, right ast.Type) ast.Type {
	if operator == "+" {
		switch {
		case left == ast.String && right.Compatible(ast.String),
			right == ast.String && left.Compatible(ast.String):
			return ast.String
		case left == ast.Unknown && right == ast.Unknown:
			return ast.Unknown
		}
	}
	if t, ok := operatorTypes[operator]; ok {
		return t
	}
	return ast.Unknown
}
