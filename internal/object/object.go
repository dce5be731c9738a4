package object

import (
	"bytes"
	"bzr/internal/ast"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Type names double as the user-facing names returned by type() and quoted in
// runtime errors.
const (
	INTEGER_OBJ      = "int"
	BOOLEAN_OBJ      = "bool"
	STRING_OBJ       = "str"
	ARRAY_OBJ        = "array"
	NULL_OBJ         = "null"
	ERROR_OBJ        = "error"
	RETURN_VALUE_OBJ = "ret"
	FUNCTION_OBJ     = "fn"
	BUILTIN_OBJ      = "builtin"
)

var (
	NULL  = &Null{}
	TRUE  = &Boolean{Value: true}
	FALSE = &Boolean{Value: false}
)

// EvaluatorContext is what a builtin sees of the evaluator that calls it.
type EvaluatorContext interface {
	NewError(message string, a ...interface{}) *Error
	Null() *Null
	NativeBoolToBooleanObject(input bool) *Boolean
	Stdout() io.Writer
	Stderr() io.Writer
	// ReadLine returns the next line of input without its line ending.
	ReadLine() (string, error)
}

type BuiltinFunction func(ctx EvaluatorContext, args ...Object) Object

type ObjectType string

type Object interface {
	Type() ObjectType
	Inspect() string
}

// Scalars are values: operators always build a new object and never write to
// an operand.

type Integer struct {
	Value int64
}

func (i *Integer) Type() ObjectType { return INTEGER_OBJ }
func (i *Integer) Inspect() string  { return strconv.FormatInt(i.Value, 10) }

type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ObjectType { return BOOLEAN_OBJ }
func (b *Boolean) Inspect() string  { return strconv.FormatBool(b.Value) }

type String struct {
	Value string
}

func (s *String) Type() ObjectType { return STRING_OBJ }
func (s *String) Inspect() string  { return s.Value }

// Array is the one mutable value: every alias sees writes to Elements.
type Array struct {
	Elements []Object
}

func (a *Array) Type() ObjectType { return ARRAY_OBJ }
func (a *Array) Inspect() string {
	var out bytes.Buffer

	elements := []string{}
	for _, e := range a.Elements {
		elements = append(elements, e.Inspect())
	}

	out.WriteString("[")
	out.WriteString(strings.Join(elements, ", "))
	out.WriteString("]")

	return out.String()
}

type Null struct{}

func (n *Null) Type() ObjectType { return NULL_OBJ }
func (n *Null) Inspect() string  { return "null" }

type ReturnValue struct {
	Value Object
}

func (rv *ReturnValue) Type() ObjectType { return RETURN_VALUE_OBJ }
func (rv *ReturnValue) Inspect() string  { return rv.Value.Inspect() }

type Error struct {
	Message string
}

func (e *Error) Type() ObjectType { return ERROR_OBJ }
func (e *Error) Inspect() string  { return e.Message }

// Error lets a runtime error cross into Go code as a plain error.
func (e *Error) Error() string { return e.Message }

type Function struct {
	Name       string // empty for anonymous functions
	Parameters []*ast.Parameter
	ReturnType ast.Type
	Body       *ast.BlockStatement
	Env        *Environment
}

func (f *Function) Type() ObjectType { return FUNCTION_OBJ }
func (f *Function) Inspect() string {
	var out bytes.Buffer

	params := []string{}
	for _, p := range f.Parameters {
		params = append(params, p.String())
	}

	out.WriteString("fn")
	if f.Name != "" {
		out.WriteString(" " + f.Name)
	}
	out.WriteString("(")
	out.WriteString(strings.Join(params, ", "))
	out.WriteString(") ")
	if f.ReturnType != ast.Unknown {
		out.WriteString(f.ReturnType.String() + " ")
	}
	out.WriteString(f.Body.String())

	return out.String()
}

type Builtin struct {
	Name string
	Fn   BuiltinFunction
	// AcceptsErrors lets Error arguments through instead of short-circuiting
	// the call on the first one.
	AcceptsErrors bool
}

func (b *Builtin) Type() ObjectType { return BUILTIN_OBJ }
func (b *Builtin) Inspect() string  { return fmt.Sprintf("builtin %s() { <native fn> }", b.Name) }

// IsError reports whether obj is a runtime error. A nil obj is not.
func IsError(obj Object) bool {
	if obj != nil {
		return obj.Type() == ERROR_OBJ
	}
	return false
}

// TypeMatches reports whether obj is a value of the declared type t.
func TypeMatches(t ast.Type, obj Object) bool {
	switch t {
	case ast.Unknown:
		return true
	case ast.Int:
		return obj.Type() == INTEGER_OBJ
	case ast.Bool:
		return obj.Type() == BOOLEAN_OBJ
	case ast.String:
		return obj.Type() == STRING_OBJ
	case ast.Array:
		return obj.Type() == ARRAY_OBJ
	case ast.Function:
		return obj.Type() == FUNCTION_OBJ || obj.Type() == BUILTIN_OBJ
	}
	return false
}
