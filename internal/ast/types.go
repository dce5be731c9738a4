package ast

import "bzr/internal/token"

// Type is the semantic type the parser attaches to every expression.
type Type int

const (
	Unknown Type = iota
	Int
	Bool
	String
	Array
	Function
	Error
)

var typeNames = [...]string{
	Unknown:  "unknown",
	Int:      "int",
	Bool:     "bool",
	String:   "str",
	Array:    "array",
	Function: "fn",
	Error:    "error",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// Compatible reports whether a value resolved as other may be stored where t is declared.
// Unknown is compatible with everything: the parser cannot tell and the evaluator decides.
func (t Type) Compatible(other Type) bool {
	return t == Unknown || other == Unknown || t == other
}

// TypeFromToken maps a type keyword to its Type.
func TypeFromToken(t token.TokenType) (Type, bool) {
	switch t {
	case token.INT:
		return Int, true
	case token.STR:
		return String, true
	case token.BOOL:
		return Bool, true
	case token.ARRAY:
		return Array, true
	}
	return Unknown, false
}
