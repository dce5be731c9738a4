package evaluator

import (
	"bufio"
	"bzr/internal/ast"
	"bzr/internal/foreign"
	"bzr/internal/object"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
)

var (
	NULL  = object.NULL
	TRUE  = object.TRUE
	FALSE = object.FALSE
)

var (
	// ErrParseErrors is returned by Run for a program that carries diagnostics.
	ErrParseErrors = errors.New("program has parse errors")
	// ErrNoValue is returned by Run when the program finished without producing
	// a value, e.g. an empty program or one that ends in a let.
	ErrNoValue = errors.New("program produced no value")
)

type Evaluator struct {
	stdout   io.Writer
	stderr   io.Writer
	stdin    *bufio.Reader
	maxDepth int
	depth    int

	db       *foreign.DB
	builtins map[string]*object.Builtin
}

type Option func(*Evaluator)

func WithStdout(w io.Writer) Option {
	return func(e *Evaluator) { e.stdout = w }
}

func WithStderr(w io.Writer) Option {
	return func(e *Evaluator) { e.stderr = w }
}

func WithStdin(r io.Reader) Option {
	return func(e *Evaluator) { e.stdin = bufio.NewReader(r) }
}

// WithMaxDepth turns calls nested deeper than n into an error. Zero means no limit.
func WithMaxDepth(n int) Option {
	return func(e *Evaluator) { e.maxDepth = n }
}

func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		stdout: os.Stdout,
		stderr: os.Stderr,
		stdin:  bufio.NewReader(os.Stdin),
		db:     foreign.NewDB(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.builtins = make(map[string]*object.Builtin, len(builtins))
	for name, fn := range builtins {
		e.builtins[name] = fn
	}
	for name, fn := range e.db.Builtins() {
		e.builtins[name] = fn
	}

	return e
}

// Close releases the database handles opened by the program.
func (e *Evaluator) Close() error {
	return e.db.Close()
}

// Run evaluates a whole program. A runtime error comes back both as the result
// object and as the returned error.
func (e *Evaluator) Run(program *ast.Program, env *object.Environment) (object.Object, error) {
	if len(program.Errors) > 0 {
		return nil, fmt.Errorf("%w: %d diagnostic(s)", ErrParseErrors, len(program.Errors))
	}

	slog.Debug("evaluating program", slog.Int("statements", len(program.Statements)))

	result := e.Eval(program, env)
	if result == nil {
		return nil, ErrNoValue
	}
	if errObj, ok := result.(*object.Error); ok {
		return errObj, errObj
	}

	slog.Debug("program finished", slog.Any("type", result.Type()))
	return result, nil
}

// Eval evaluates node in env. It returns nil only for statements that produce
// no value, such as let and var.
func (e *Evaluator) Eval(node ast.Node, env *object.Environment) object.Object {
	switch node := node.(type) {

	// Statements
	case *ast.Program:
		return e.evalProgram(node, env)

	case *ast.BlockStatement:
		return e.evalBlockStatement(node, object.NewEnclosedEnvironment(env))

	case *ast.ExpressionStatement:
		return e.Eval(node.Expression, env)

	case *ast.LetStatement:
		return e.evalBinding(node.Name, node.DeclaredType, node.Value, env)

	case *ast.VarStatement:
		return e.evalBinding(node.Name, node.DeclaredType, node.Value, env)

	case *ast.ReturnStatement:
		val := e.Eval(node.ReturnValue, env)
		if isUnwinding(val) {
			return val
		}
		return &object.ReturnValue{Value: val}

	// Expressions
	case *ast.IntegerLiteral:
		return &object.Integer{Value: node.Value}

	case *ast.StringLiteral:
		return &object.String{Value: node.Value}

	case *ast.BooleanLiteral:
		return nativeBoolToBooleanObject(node.Value)

	case *ast.ArrayLiteral:
		elements, errObj := e.evalExpressions(env, node.Elements...)
		if errObj != nil {
			return errObj
		}
		return &object.Array{Elements: elements}

	case *ast.Identifier:
		return e.evalIdentifier(node, env)

	case *ast.PrefixExpression:
		operands, errObj := e.evalExpressions(env, node.Right)
		if errObj != nil {
			return errObj
		}
		return e.evalPrefixExpression(node.Operator, operands[0])

	case *ast.InfixExpression:
		operands, errObj := e.evalExpressions(env, node.Left, node.Right)
		if errObj != nil {
			return errObj
		}
		return e.evalInfixExpression(node.Operator, operands[0], operands[1])

	case *ast.AssignExpression:
		return e.evalAssignExpression(node, env)

	case *ast.IfExpression:
		return e.evalIfExpression(node, env)

	case *ast.WhileExpression:
		return e.evalWhileExpression(node, env)

	case *ast.FunctionLiteral:
		fn := &object.Function{
			Parameters: node.Parameters,
			ReturnType: node.ReturnType,
			Body:       node.Body,
			Env:        env,
		}
		if node.Name != nil {
			fn.Name = node.Name.Value
			env.Define(fn.Name, fn)
		}
		return fn

	case *ast.CallExpression:
		return e.evalCallExpression(node, env)

	case *ast.IndexExpression:
		operands, errObj := e.evalExpressions(env, node.Left, node.Index)
		if errObj != nil {
			return errObj
		}
		return e.evalIndexExpression(operands[0], operands[1])
	}

	return newError("cannot evaluate %T", node)
}

func (e *Evaluator) evalProgram(program *ast.Program, env *object.Environment) object.Object {
	var result object.Object

	for _, statement := range program.Statements {
		result = e.Eval(statement, env)

		switch result := result.(type) {
		case *object.ReturnValue:
			return result.Value
		case *object.Error:
			return result
		}
	}

	return result
}

// evalBlockStatement runs block in env, which the caller has already scoped.
// A ReturnValue is handed back still wrapped so enclosing blocks stop too.
func (e *Evaluator) evalBlockStatement(block *ast.BlockStatement, env *object.Environment) object.Object {
	var result object.Object

	for _, statement := range block.Statements {
		result = e.Eval(statement, env)

		if result != nil {
			rt := result.Type()
			if rt == object.RETURN_VALUE_OBJ || rt == object.ERROR_OBJ {
				return result
			}
		}
	}

	return result
}

func (e *Evaluator) evalBinding(name *ast.Identifier, declared ast.Type, value ast.Expression, env *object.Environment) object.Object {
	val := e.Eval(value, env)
	if isUnwinding(val) {
		return val
	}
	if !object.TypeMatches(declared, val) {
		return newError("cannot use %s value as %s in declaration of '%s'", val.Type(), declared, name.Value)
	}
	env.Define(name.Value, val)
	return nil
}

func (e *Evaluator) evalIdentifier(node *ast.Identifier, env *object.Environment) object.Object {
	if val, ok := env.Get(node.Value); ok {
		return val
	}

	if builtin, ok := e.builtins[node.Value]; ok {
		return builtin
	}

	return newError("unknown word '%s'", node.Value)
}

func (e *Evaluator) evalAssignExpression(node *ast.AssignExpression, env *object.Environment) object.Object {
	switch target := node.Target.(type) {
	case *ast.Identifier:
		val := e.Eval(node.Value, env)
		if isUnwinding(val) {
			return val
		}
		return env.Assign(target.Value, val)

	case *ast.IndexExpression:
		operands, errObj := e.evalExpressions(env, target.Left, target.Index, node.Value)
		if errObj != nil {
			return errObj
		}
		return e.evalIndexAssignment(operands[0], operands[1], operands[2])
	}

	return newError("cannot assign to %s", node.Target.String())
}

func (e *Evaluator) evalIfExpression(ie *ast.IfExpression, env *object.Environment) object.Object {
	condition := e.Eval(ie.Condition, env)
	if isUnwinding(condition) {
		return condition
	}

	ok, errObj := conditionValue("if", condition)
	if errObj != nil {
		return errObj
	}

	var result object.Object
	switch {
	case ok:
		result = e.evalBlockStatement(ie.Consequence, object.NewEnclosedEnvironment(env))
	case ie.ElseIf != nil:
		return e.evalIfExpression(ie.ElseIf, env)
	case ie.Alternative != nil:
		result = e.evalBlockStatement(ie.Alternative, object.NewEnclosedEnvironment(env))
	}

	if result == nil {
		return NULL
	}
	return result
}

func (e *Evaluator) evalWhileExpression(we *ast.WhileExpression, env *object.Environment) object.Object {
	var result object.Object = NULL

	for {
		condition := e.Eval(we.Condition, env)
		if isUnwinding(condition) {
			return condition
		}

		ok, errObj := conditionValue("while", condition)
		if errObj != nil {
			return errObj
		}
		if !ok {
			return result
		}

		body := e.evalBlockStatement(we.Body, object.NewEnclosedEnvironment(env))
		if body == nil {
			result = NULL
			continue
		}
		if rt := body.Type(); rt == object.RETURN_VALUE_OBJ || rt == object.ERROR_OBJ {
			return body
		}
		result = body
	}
}

func conditionValue(keyword string, condition object.Object) (bool, *object.Error) {
	b, ok := condition.(*object.Boolean)
	if !ok {
		return false, newError("%s condition must be bool, got %s", keyword, condition.Type())
	}
	return b.Value, nil
}

func (e *Evaluator) evalCallExpression(node *ast.CallExpression, env *object.Environment) object.Object {
	function := e.Eval(node.Function, env)
	if isUnwinding(function) {
		return function
	}

	if builtin, ok := function.(*object.Builtin); ok && builtin.AcceptsErrors {
		args := make([]object.Object, 0, len(node.Arguments))
		for _, arg := range node.Arguments {
			evaluated := e.Eval(arg, env)
			if _, ok := evaluated.(*object.ReturnValue); ok {
				return evaluated
			}
			args = append(args, evaluated)
		}
		return e.applyFunction(function, args)
	}

	args, errObj := e.evalExpressions(env, node.Arguments...)
	if errObj != nil {
		return errObj
	}

	return e.applyFunction(function, args)
}

// evalExpressions evaluates exps left to right and stops at the first Error or
// ret, which it returns unchanged as the second result.
func (e *Evaluator) evalExpressions(env *object.Environment, exps ...ast.Expression) ([]object.Object, object.Object) {
	result := make([]object.Object, 0, len(exps))

	for _, exp := range exps {
		evaluated := e.Eval(exp, env)
		if isUnwinding(evaluated) {
			return nil, evaluated
		}
		result = append(result, evaluated)
	}

	return result, nil
}

func (e *Evaluator) applyFunction(fnObj object.Object, args []object.Object) object.Object {
	switch fn := fnObj.(type) {
	case *object.Function:
		if e.maxDepth > 0 && e.depth >= e.maxDepth {
			return newError("maximum call depth of %d exceeded in %s", e.maxDepth, functionName(fn))
		}

		env, errObj := e.extendFunctionEnv(fn, args)
		if errObj != nil {
			return errObj
		}

		e.depth++
		result := unwrapReturnValue(e.evalBlockStatement(fn.Body, env))
		e.depth--

		if result == nil {
			result = NULL
		}
		if !isError(result) && !object.TypeMatches(fn.ReturnType, result) {
			return newError("%s must return %s, got %s", functionName(fn), fn.ReturnType, result.Type())
		}
		return result

	case *object.Builtin:
		return fn.Fn(e, args...)

	default:
		return newError("not a function: %s", fnObj.Type())
	}
}

func (e *Evaluator) extendFunctionEnv(fn *object.Function, args []object.Object) (*object.Environment, *object.Error) {
	if len(args) != len(fn.Parameters) {
		return nil, newError("wrong number of arguments to %s. got=%d, want=%d",
			functionName(fn), len(args), len(fn.Parameters))
	}

	env := object.NewEnclosedEnvironment(fn.Env)
	for i, param := range fn.Parameters {
		if !object.TypeMatches(param.Type, args[i]) {
			return nil, newError("argument %s of %s must be %s, got %s",
				param.Name.Value, functionName(fn), param.Type, args[i].Type())
		}
		env.Define(param.Name.Value, args[i])
	}

	return env, nil
}

func functionName(fn *object.Function) string {
	if fn.Name == "" {
		return "anonymous fn"
	}
	return "'" + fn.Name + "'"
}

func unwrapReturnValue(obj object.Object) object.Object {
	if returnValue, ok := obj.(*object.ReturnValue); ok {
		return returnValue.Value
	}

	return obj
}

func (e *Evaluator) evalPrefixExpression(operator string, right object.Object) object.Object {
	switch operator {
	case "!":
		b, ok := right.(*object.Boolean)
		if !ok {
			return newError("unknown operator: !%s", right.Type())
		}
		return nativeBoolToBooleanObject(!b.Value)
	case "-":
		i, ok := right.(*object.Integer)
		if !ok {
			return newError("unknown operator: -%s", right.Type())
		}
		if i.Value == math.MinInt64 {
			return newError("integer overflow: -(%d)", i.Value)
		}
		return &object.Integer{Value: -i.Value}
	default:
		return newError("unknown operator: %s%s", operator, right.Type())
	}
}

func (e *Evaluator) evalInfixExpression(operator string, left, right object.Object) object.Object {
	switch {
	case left.Type() != right.Type():
		return newError("incompatible types %s and %s", right.Type(), left.Type())
	case left.Type() == object.INTEGER_OBJ:
		return e.evalIntegerInfixExpression(operator, left, right)
	case left.Type() == object.BOOLEAN_OBJ:
		return e.evalBooleanInfixExpression(operator, left, right)
	case left.Type() == object.STRING_OBJ:
		return e.evalStringInfixExpression(operator, left, right)
	default:
		return newError("unknown operator: %s %s %s",
			left.Type(), operator, right.Type())
	}
}

func (e *Evaluator) evalIntegerInfixExpression(operator string, left, right object.Object) object.Object {
	leftVal := left.(*object.Integer).Value
	rightVal := right.(*object.Integer).Value

	switch operator {
	case "+":
		sum := leftVal + rightVal
		if (leftVal > 0 && rightVal > 0 && sum < 0) || (leftVal < 0 && rightVal < 0 && sum >= 0) {
			return overflowError(leftVal, operator, rightVal)
		}
		return &object.Integer{Value: sum}
	case "-":
		diff := leftVal - rightVal
		if (rightVal > 0 && diff > leftVal) || (rightVal < 0 && diff < leftVal) {
			return overflowError(leftVal, operator, rightVal)
		}
		return &object.Integer{Value: diff}
	case "*":
		product := leftVal * rightVal
		if leftVal != 0 && (product/leftVal != rightVal || (leftVal == -1 && rightVal == math.MinInt64)) {
			return overflowError(leftVal, operator, rightVal)
		}
		return &object.Integer{Value: product}
	case "/":
		if rightVal == 0 {
			return newError("division by zero")
		}
		if leftVal == math.MinInt64 && rightVal == -1 {
			return overflowError(leftVal, operator, rightVal)
		}
		return &object.Integer{Value: leftVal / rightVal}
	case "<":
		return nativeBoolToBooleanObject(leftVal < rightVal)
	case "<=":
		return nativeBoolToBooleanObject(leftVal <= rightVal)
	case ">":
		return nativeBoolToBooleanObject(leftVal > rightVal)
	case ">=":
		return nativeBoolToBooleanObject(leftVal >= rightVal)
	case "==":
		return nativeBoolToBooleanObject(leftVal == rightVal)
	case "!=":
		return nativeBoolToBooleanObject(leftVal != rightVal)
	default:
		return newError("unknown operator: %s %s %s",
			left.Type(), operator, right.Type())
	}
}

// evalBooleanInfixExpression orders false before true. Both operands of && and
// || have already been evaluated.
func (e *Evaluator) evalBooleanInfixExpression(operator string, left, right object.Object) object.Object {
	leftVal := left.(*object.Boolean).Value
	rightVal := right.(*object.Boolean).Value

	switch operator {
	case "&&":
		return nativeBoolToBooleanObject(leftVal && rightVal)
	case "||":
		return nativeBoolToBooleanObject(leftVal || rightVal)
	case "==":
		return nativeBoolToBooleanObject(leftVal == rightVal)
	case "!=":
		return nativeBoolToBooleanObject(leftVal != rightVal)
	case "<":
		return nativeBoolToBooleanObject(!leftVal && rightVal)
	case "<=":
		return nativeBoolToBooleanObject(!leftVal || rightVal)
	case ">":
		return nativeBoolToBooleanObject(leftVal && !rightVal)
	case ">=":
		return nativeBoolToBooleanObject(leftVal || !rightVal)
	default:
		return newError("unknown operator: %s %s %s",
			left.Type(), operator, right.Type())
	}
}

func (e *Evaluator) evalStringInfixExpression(operator string, left, right object.Object) object.Object {
	if operator != "+" {
		return newError("unknown operator: %s %s %s",
			left.Type(), operator, right.Type())
	}

	var out strings.Builder
	out.WriteString(left.(*object.String).Value)
	out.WriteString(right.(*object.String).Value)
	return &object.String{Value: out.String()}
}

func (e *Evaluator) evalIndexExpression(left, index object.Object) object.Object {
	idx, ok := index.(*object.Integer)
	if !ok {
		return newError("index must be int, got %s", index.Type())
	}

	switch left := left.(type) {
	case *object.Array:
		if idx.Value < 0 || idx.Value >= int64(len(left.Elements)) {
			return newError("index out of range [%d] with length %d", idx.Value, len(left.Elements))
		}
		return left.Elements[idx.Value]

	case *object.String:
		runes := []rune(left.Value)
		if idx.Value < 0 || idx.Value >= int64(len(runes)) {
			return newError("index out of range [%d] with length %d", idx.Value, len(runes))
		}
		return &object.String{Value: string(runes[idx.Value])}

	default:
		return newError("index operator not supported: %s", left.Type())
	}
}

func (e *Evaluator) evalIndexAssignment(left, index, value object.Object) object.Object {
	array, ok := left.(*object.Array)
	if !ok {
		return newError("index assignment not supported: %s", left.Type())
	}
	idx, ok := index.(*object.Integer)
	if !ok {
		return newError("index must be int, got %s", index.Type())
	}
	if idx.Value < 0 || idx.Value >= int64(len(array.Elements)) {
		return newError("index out of range [%d] with length %d", idx.Value, len(array.Elements))
	}

	array.Elements[idx.Value] = value
	return value
}

func nativeBoolToBooleanObject(input bool) *object.Boolean {
	if input {
		return TRUE
	}
	return FALSE
}

func newError(format string, a ...interface{}) *object.Error {
	return &object.Error{Message: fmt.Sprintf(format, a...)}
}

func overflowError(left int64, operator string, right int64) *object.Error {
	return newError("integer overflow: %d %s %d", left, operator, right)
}

func isError(obj object.Object) bool {
	return object.IsError(obj)
}

// isUnwinding reports whether obj has to be passed up untouched: an Error, or
// the wrapper of a ret still on its way to the enclosing call.
func isUnwinding(obj object.Object) bool {
	if obj == nil {
		return false
	}
	rt := obj.Type()
	return rt == object.ERROR_OBJ || rt == object.RETURN_VALUE_OBJ
}

// EvaluatorContext

func (e *Evaluator) NewError(message string, a ...interface{}) *object.Error {
	return newError(message, a...)
}

func (e *Evaluator) Null() *object.Null {
	return NULL
}

func (e *Evaluator) NativeBoolToBooleanObject(input bool) *object.Boolean {
	return nativeBoolToBooleanObject(input)
}

func (e *Evaluator) Stdout() io.Writer {
	return e.stdout
}

func (e *Evaluator) Stderr() io.Writer {
	return e.stderr
}

func (e *Evaluator) ReadLine() (string, error) {
	line, err := e.stdin.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}
