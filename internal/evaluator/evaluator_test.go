package evaluator

import (
	"bytes"
	"bzr/internal/lexer"
	"bzr/internal/object"
	"bzr/internal/parser"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

func testEval(t *testing.T, input string, opts ...Option) object.Object {
	t.Helper()
	return testEvalWith(t, New(opts...), input)
}

func testEvalWith(t *testing.T, e *Evaluator, input string) object.Object {
	t.Helper()
	p := parser.New(lexer.New(input, "test"))
	program := p.ParseProgram()
	if len(program.Errors) != 0 {
		t.Fatalf("parser errors for %q: %v", input, program.Errors)
	}
	return e.Eval(program, object.NewEnvironment())
}

func testIntegerObject(t *testing.T, input string, obj object.Object, expected int64) {
	t.Helper()
	result, ok := obj.(*object.Integer)
	if !ok {
		t.Errorf("%q: object is not Integer. got=%T (%+v)", input, obj, obj)
		return
	}
	if result.Value != expected {
		t.Errorf("%q: wrong value. expected=%d, got=%d", input, expected, result.Value)
	}
}

func testBooleanObject(t *testing.T, input string, obj object.Object, expected bool) {
	t.Helper()
	result, ok := obj.(*object.Boolean)
	if !ok {
		t.Errorf("%q: object is not Boolean. got=%T (%+v)", input, obj, obj)
		return
	}
	if result.Value != expected {
		t.Errorf("%q: wrong value. expected=%t, got=%t", input, expected, result.Value)
	}
}

func testErrorObject(t *testing.T, input string, obj object.Object, expected string) {
	t.Helper()
	errObj, ok := obj.(*object.Error)
	if !ok {
		t.Errorf("%q: no error object returned. got=%T (%+v)", input, obj, obj)
		return
	}
	if errObj.Message != expected {
		t.Errorf("%q: wrong error message. expected=%q, got=%q", input, expected, errObj.Message)
	}
}

func TestEvalIntegerExpression(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"5", 5},
		{"-5", -5},
		{"10 + 10", 20},
		{"5 + 5 + 5 + 5 - 10", 10},
		{"2 * (5 + 10)", 30},
		{"-50 + 100 + -50", 0},
		{"20 / 3", 6},
		{"3 * (3 * 3) + 10", 37},
		{"(5 + 10 * 2 + 15 / 3) * 2 + -10", 50},
	}

	for _, tt := range tests {
		testIntegerObject(t, tt.input, testEval(t, tt.input), tt.expected)
	}
}

func TestEvalBooleanExpression(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"true", true},
		{"!true", false},
		{"!!false", false},
		{"1 < 2", true},
		{"1 > 2", false},
		{"1 <= 1", true},
		{"2 >= 3", false},
		{"1 == 1", true},
		{"1 != 1", false},
		{"true == true", true},
		{"true != false", true},
		{"false < true", true},
		{"true <= true", true},
		{"false > true", false},
		{"true >= false", true},
		{"true && false", false},
		{"false || true", true},
		{"(1 < 2) == true", true},
		{"1 < 2 && 2 < 3", true},
	}

	for _, tt := range tests {
		testBooleanObject(t, tt.input, testEval(t, tt.input), tt.expected)
	}
}

func TestStringConcatenation(t *testing.T) {
	input := `"Paulo" + " " + "Gabriel"`
	str, ok := testEval(t, input).(*object.String)
	if !ok {
		t.Fatalf("object is not String")
	}
	if str.Value != "Paulo Gabriel" {
		t.Errorf("String has wrong value. got=%q", str.Value)
	}
}

func TestIfElseExpressions(t *testing.T) {
	tests := []struct {
		input    string
		expected interface{}
	}{
		{"if true { 10 }", 10},
		{"if false { 10 }", nil},
		{"if 1 < 2 { 10 }", 10},
		{"if 1 > 2 { 10 } else { 100 }", 100},
		{"if 1 > 2 { 10 } else if 2 > 1 { 20 } else { 30 }", 20},
		{"if false { 10 } else if false { 20 } else { 30 }", 30},
		{"if false { 10 } else if false { 20 }", nil},
		{"if true { let x = 1; }", nil},
	}

	for _, tt := range tests {
		evaluated := testEval(t, tt.input)
		if expected, ok := tt.expected.(int); ok {
			testIntegerObject(t, tt.input, evaluated, int64(expected))
		} else if evaluated != NULL {
			t.Errorf("%q: object is not NULL. got=%T (%+v)", tt.input, evaluated, evaluated)
		}
	}
}

func TestReturnStatements(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"ret 10;", 10},
		{"ret 10; 9;", 10},
		{"ret 2 * 5; 9;", 10},
		{"9; ret 2 * 5; 9;", 10},
		{"if 10 > 1 { if 10 > 1 { ret 10; } ret 1; }", 10},
		{"fn f() { while true { ret 3; } } f()", 3},
		{"fn f() { { ret 4; } 5 } f()", 4},
		{"fn f(c) { let x = if c { ret 5; } else { 2 }; x + 1 } f(true)", 5},
		{"fn f(c) { let x = if c { ret 5; } else { 2 }; x + 1 } f(false)", 3},
		{"fn f() { var n = 0; n = if true { ret 6; } else { 1 }; 99 } f()", 6},
		{`fn f() { len(if true { ret 3; } else { "ab" }); 99 } f()`, 3},
		{"fn f() { is_error(if true { ret 9; } else { 0 }); 99 } f()", 9},
		{"fn f() { [if true { ret 3; } else { 0 }]; 99 } f()", 3},
		{"fn f() { -(if true { ret 4; } else { 0 }) } f()", 4},
		{"fn f() { [1, 2][if true { ret 11; } else { 0 }] } f()", 11},
		{"fn f() { while if true { ret 7; } else { false } { 1 } 99 } f()", 7},
		{"fn f() { ret if true { ret 2; } else { 0 }; } f()", 2},
		{"fn f() { while true { let x = if true { ret 8; } else { 0 }; } } f() + 1", 9},
		{"let x = if true { ret 12; } else { 0 }; 99", 12},
	}

	for _, tt := range tests {
		testIntegerObject(t, tt.input, testEval(t, tt.input), tt.expected)
	}
}

func TestErrorHandling(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"5 + true;", "incompatible types bool and int"},
		{"5 + true; 5;", "incompatible types bool and int"},
		{`"a" + 1`, "incompatible types int and str"},
		{"-true", "unknown operator: -bool"},
		{"!5", "unknown operator: !int"},
		{`"a" - "b"`, "unknown operator: str - str"},
		{`"a" == "a"`, "unknown operator: str == str"},
		{"true + false;", "unknown operator: bool + bool"},
		{"[1] + [2]", "unknown operator: array + array"},
		{"if 10 > 1 { true + false; }", "unknown operator: bool + bool"},
		{"foobar", "unknown word 'foobar'"},
		{"10 / 0", "division by zero"},
		{"if 1 { 2 }", "if condition must be bool, got int"},
		{"while 0 { 1 }", "while condition must be bool, got int"},
		{"[1, 2][5]", "index out of range [5] with length 2"},
		{"[1, 2][-1]", "index out of range [-1] with length 2"},
		{`"ab"[2]`, "index out of range [2] with length 2"},
		{"[1][true]", "index must be int, got bool"},
		{"1[0]", "index operator not supported: int"},
		{"let a = 1; a[0] = 2", "index assignment not supported: int"},
		{"let a = [1]; a[3] = 2", "index out of range [3] with length 1"},
		{"5(1)", "not a function: int"},
		{"let f = fn(a) { a }; f(1, 2)", "wrong number of arguments to anonymous fn. got=2, want=1"},
		{"fn f(a, b) { a } f(1)", "wrong number of arguments to 'f'. got=1, want=2"},
		{`fn f(a int) { a } f("x")`, "argument a of 'f' must be int, got str"},
		{`fn f() int { "x" } f()`, "'f' must return int, got str"},
		{`fn f() { "x" } let n int = f();`, "cannot use str value as int in declaration of 'n'"},
		{"[1, foobar, 3]", "unknown word 'foobar'"},
		{"len(foobar)", "unknown word 'foobar'"},
		{"foobar(1)", "unknown word 'foobar'"},
		{"let x = 1; { y = 3; } y", "unknown word 'y'"},
		{"-foobar", "unknown word 'foobar'"},
		{"!foobar", "unknown word 'foobar'"},
		{"foobar[0]", "unknown word 'foobar'"},
		{"[1][foobar]", "unknown word 'foobar'"},
		{"if foobar { 1 }", "unknown word 'foobar'"},
		{"while foobar { 1 }", "unknown word 'foobar'"},
		{"let a = foobar; 1", "unknown word 'foobar'"},
		{"var a = foobar; 1", "unknown word 'foobar'"},
		{"ret foobar;", "unknown word 'foobar'"},
		{"fn f() { ret foobar; } f(); 1", "unknown word 'foobar'"},
		{"var a = [1]; a[foobar] = 2", "unknown word 'foobar'"},
		{"9223372036854775807 + 1", "integer overflow: 9223372036854775807 + 1"},
		{"-9223372036854775807 - 2", "integer overflow: -9223372036854775807 - 2"},
		{"4611686018427387904 * 2", "integer overflow: 4611686018427387904 * 2"},
		{"let min = -9223372036854775807 - 1; min / -1", "integer overflow: -9223372036854775808 / -1"},
		{"let min = -9223372036854775807 - 1; min * -1", "integer overflow: -9223372036854775808 * -1"},
		{"let min = -9223372036854775807 - 1; -1 * min", "integer overflow: -1 * -9223372036854775808"},
		{"let min = -9223372036854775807 - 1; -min", "integer overflow: -(-9223372036854775808)"},
	}

	for _, tt := range tests {
		testErrorObject(t, tt.input, testEval(t, tt.input), tt.expected)
	}
}

func TestErrorStopsLaterOperands(t *testing.T) {
	tests := []string{
		"var n = 0; foobar + (n = 1)",
		"var n = 0; [foobar, n = 1]",
		"var n = 0; len(foobar, n = 1)",
		"var n = 0; foobar[n = 1]",
	}

	for _, input := range tests {
		env := object.NewEnvironment()
		program := parser.New(lexer.New(input, "test")).ParseProgram()
		if len(program.Errors) != 0 {
			t.Fatalf("parser errors for %q: %v", input, program.Errors)
		}

		testErrorObject(t, input, New().Eval(program, env), "unknown word 'foobar'")
		n, ok := env.Get("n")
		if !ok {
			t.Fatalf("%q: n is not defined", input)
		}
		testIntegerObject(t, input+" (n)", n, 0)
	}
}

func TestIntegerArithmeticAtTheLimits(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"9223372036854775807 - 1 + 1", 9223372036854775807},
		{"-9223372036854775807 - 1 + 1", -9223372036854775807},
		{"let min = -9223372036854775807 - 1; min / 1 + 1", -9223372036854775807},
		{"-4611686018427387904 * 2 + 1", -9223372036854775807},
		{"-1 * 9223372036854775807", -9223372036854775807},
	}

	for _, tt := range tests {
		testIntegerObject(t, tt.input, testEval(t, tt.input), tt.expected)
	}
}

func TestBindings(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"let a = 5; a;", 5},
		{"let a = 5 * 5; a;", 25},
		{"let a = 5; let b = a; b;", 5},
		{"let a = 5; let b = a; let c = a + b + 5; c;", 15},
		{"var a int = 1; a = a + 1; a", 2},
		{"let len = 5; len", 5},
		{"var x = 0; var y = 0; x = y = 5; x + y", 10},
	}

	for _, tt := range tests {
		testIntegerObject(t, tt.input, testEval(t, tt.input), tt.expected)
	}
}

func TestLetShadowsAndAssignMutates(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"let x = 1; { let x = 2; } x", 1},
		{"let x = 1; { x = 2; } x", 2},
		{"let x = 1; if true { let x = 5; } x", 1},
		{"let x = 1; if true { x = 5; } x", 5},
		{"let x = 1; fn f() { x = 7 } f(); x", 7},
		{"let x = 1; fn f() { let x = 7 } f(); x", 1},
		{"let x = 1; { let x = 2; { x = 3; } } x", 1},
		{"let x = 1; let x = 2; x", 2},
	}

	for _, tt := range tests {
		testIntegerObject(t, tt.input, testEval(t, tt.input), tt.expected)
	}
}

func TestScalarsAreValues(t *testing.T) {
	testIntegerObject(t, "copy", testEval(t, "let a = 1; let b = a; a = 2; b"), 1)
}

func TestArraysAreShared(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"let a = [1, 2 * 2, 3]; a", "[1, 4, 3]"},
		{"let a = [1, 2]; a[1] = 5; a", "[1, 5]"},
		{"let a = [1, 2]; let b = a; b[0] = 9; a", "[9, 2]"},
		{"let a = [1]; fn push(arr) { append(arr, 2) } push(a); a", "[1, 2]"},
		{"let a = [1, 2, 3]; let b = slice(a, 0, 2); b[0] = 7; a", "[1, 2, 3]"},
		{"[]", "[]"},
	}

	for _, tt := range tests {
		if got := testEval(t, tt.input).Inspect(); got != tt.expected {
			t.Errorf("%q: wrong result. expected=%q, got=%q", tt.input, tt.expected, got)
		}
	}
}

func TestArrayIndexExpressions(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"[1, 2, 3][0]", 1},
		{"let a = [1, 4, 9]; a[1]", 4},
		{"let i = 0; [1][i]", 1},
		{"let a = [1, 2, 3]; a[0] + a[1] + a[2];", 6},
		{"let a = [[1, 2], [3, 4]]; a[1][0]", 3},
	}

	for _, tt := range tests {
		testIntegerObject(t, tt.input, testEval(t, tt.input), tt.expected)
	}
}

func TestStringIndexIsByRune(t *testing.T) {
	str, ok := testEval(t, `"héllo"[1]`).(*object.String)
	if !ok || str.Value != "é" {
		t.Errorf("expected é, got=%+v", str)
	}
}

func TestFunctionObject(t *testing.T) {
	input := "fn(x int) int { x + 2; };"

	fn, ok := testEval(t, input).(*object.Function)
	if !ok {
		t.Fatalf("object is not Function")
	}
	if len(fn.Parameters) != 1 || fn.Parameters[0].Name.String() != "x" {
		t.Fatalf("function has wrong parameters. Parameters=%+v", fn.Parameters)
	}
	if fn.Body.String() != "{ (x + 2) }" {
		t.Errorf("body is not %q. got=%q", "{ (x + 2) }", fn.Body.String())
	}
}

func TestFunctionApplication(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"let identity = fn(x) { x; }; identity(5);", 5},
		{"let identity = fn(x) { ret x; }; identity(5);", 5},
		{"let double = fn(x) { x * 2; }; double(5);", 10},
		{"let add = fn(x, y) { x + y; }; add(5, 5);", 10},
		{"let add = fn(x, y) { x + y; }; add(5 + 5, add(5, 5));", 20},
		{"fn(x) { x; }(5)", 5},
		{"fn add(a int, b int) int { a + b }; add(1, 2)", 3},
		{"fn fact(n int) int { if n <= 1 { ret 1 } ret n * fact(n - 1) } fact(4)", 24},
		{"fn fib(n) { if n < 2 { n } else { fib(n - 1) + fib(n - 2) } } fib(10)", 55},
	}

	for _, tt := range tests {
		testIntegerObject(t, tt.input, testEval(t, tt.input), tt.expected)
	}
}

func TestClosures(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"let newAdder = fn(x) { fn(y) { x + y } }; let addTwo = newAdder(2); addTwo(3);", 5},
		{"fn counter() { var n = 0; fn() { n = n + 1; n } } let c = counter(); c(); c(); c()", 3},
		{"fn counter() { var n = 0; fn() { n = n + 1; n } } let a = counter(); let b = counter(); a(); a(); b()", 1},
		{"let x = 10; let f = fn() { x }; { let x = 20; } f()", 10},
		{"let x = 10; let f = fn() { x }; x = 20; f()", 20},
	}

	for _, tt := range tests {
		testIntegerObject(t, tt.input, testEval(t, tt.input), tt.expected)
	}
}

func TestWhileExpressions(t *testing.T) {
	tests := []struct {
		input    string
		expected interface{}
	}{
		{"var i = 0; var sum = 0; while i < 5 { sum = sum + i; i = i + 1 } sum", 10},
		{"var i = 0; while i < 3 { i = i + 1 }", 3},
		{"while false { 1 }", nil},
		{"var i = 0; while i < 3 { let tmp = i; i = tmp + 1 } i", 3},
	}

	for _, tt := range tests {
		evaluated := testEval(t, tt.input)
		if expected, ok := tt.expected.(int); ok {
			testIntegerObject(t, tt.input, evaluated, int64(expected))
		} else if evaluated != NULL {
			t.Errorf("%q: object is not NULL. got=%T (%+v)", tt.input, evaluated, evaluated)
		}
	}
}

func TestBuiltinFunctions(t *testing.T) {
	tests := []struct {
		input    string
		expected interface{}
	}{
		{`len("")`, 0},
		{`len("four")`, 4},
		{`len("héllo")`, 5},
		{`len([1, 2, 3])`, 3},
		{`len(1)`, "argument to `len` not supported, got int"},
		{`len("one", "two")`, "wrong number of arguments. got=2, want=1"},
		{`append([1], 2, 3)`, "[1, 2, 3]"},
		{`append("ab", 1, true)`, "ab1true"},
		{`append(1, 2)`, "first argument to `append` must be array or str, got int"},
		{`slice([1, 2, 3, 4], 1, 3)`, "[2, 3]"},
		{`slice("hello", 1, 3)`, "el"},
		{`slice([1], 0, 2)`, "slice bounds out of range [0:2] with length 1"},
		{`slice([1], "a", 1)`, "invalid start a"},
		{`to_str(1, "a", true)`, "1atrue"},
		{`to_str([1, 2])`, "[1, 2]"},
		{`to_int("42")`, 42},
		{`to_int(" 7 ")`, 7},
		{`to_int(-3)`, -3},
		{`to_int("x")`, "invalid value to parse int: x"},
		{`is_error(to_int("x"))`, true},
		{`is_error(1)`, false},
		{`type(1)`, "int"},
		{`type("s")`, "str"},
		{`type(true)`, "bool"},
		{`type([])`, "array"},
		{`type(len)`, "builtin"},
		{`type(fn() { 1 })`, "fn"},
		{`type(if false { 1 })`, "null"},
	}

	for _, tt := range tests {
		evaluated := testEval(t, tt.input)

		switch expected := tt.expected.(type) {
		case int:
			testIntegerObject(t, tt.input, evaluated, int64(expected))
		case bool:
			testBooleanObject(t, tt.input, evaluated, expected)
		case string:
			if errObj, ok := evaluated.(*object.Error); ok {
				if errObj.Message != expected {
					t.Errorf("%q: wrong error message. expected=%q, got=%q", tt.input, expected, errObj.Message)
				}
				continue
			}
			if evaluated.Inspect() != expected {
				t.Errorf("%q: wrong result. expected=%q, got=%q", tt.input, expected, evaluated.Inspect())
			}
		}
	}
}

func TestOutputBuiltins(t *testing.T) {
	var stdout, stderr bytes.Buffer
	e := New(WithStdout(&stdout), WithStderr(&stderr))

	result := testEvalWith(t, e, `puts("a", 1); putsln(" b"); eputs("c"); eputsln("d", true)`)

	if stdout.String() != "a1 b\n" {
		t.Errorf("stdout wrong. got=%q", stdout.String())
	}
	if stderr.String() != "cdtrue\n" {
		t.Errorf("stderr wrong. got=%q", stderr.String())
	}
	if result.Inspect() != "dtrue" {
		t.Errorf("eputsln should return what it printed without the newline. got=%q", result.Inspect())
	}
}

func TestInput(t *testing.T) {
	e := New(WithStdin(strings.NewReader("first\r\nsecond")))

	tests := []struct {
		expected string
		err      bool
	}{
		{"first", false},
		{"second", false},
		{"input: EOF", true},
	}

	for _, tt := range tests {
		result := testEvalWith(t, e, "input()")
		if tt.err {
			testErrorObject(t, "input()", result, tt.expected)
			continue
		}
		if result.Inspect() != tt.expected {
			t.Errorf("input() wrong. expected=%q, got=%q", tt.expected, result.Inspect())
		}
	}
}

func TestMaxDepth(t *testing.T) {
	e := New(WithMaxDepth(10))

	input := "fn loop(n) { loop(n + 1) } loop(0)"
	for i := 0; i < 2; i++ {
		testErrorObject(t, input, testEvalWith(t, e, input), "maximum call depth of 10 exceeded in 'loop'")
	}

	testIntegerObject(t, "shallow", testEvalWith(t, e, "fn down(n) { if n == 0 { ret 0 } down(n - 1) } down(9)"), 0)
}

func TestRun(t *testing.T) {
	e := New()

	run := func(input string) (object.Object, error) {
		return e.Run(parser.New(lexer.New(input, "test")).ParseProgram(), object.NewEnvironment())
	}

	result, err := run("1 + 2")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	testIntegerObject(t, "1 + 2", result, 3)

	if _, err := run("let x = 1;"); !errors.Is(err, ErrNoValue) {
		t.Errorf("expected ErrNoValue, got=%v", err)
	}
	if _, err := run(""); !errors.Is(err, ErrNoValue) {
		t.Errorf("expected ErrNoValue for empty program, got=%v", err)
	}
	if _, err := run("let = 1"); !errors.Is(err, ErrParseErrors) {
		t.Errorf("expected ErrParseErrors, got=%v", err)
	}

	result, err = run("1 / 0")
	var errObj *object.Error
	if !errors.As(err, &errObj) || errObj.Message != "division by zero" {
		t.Errorf("expected a runtime error, got=%v", err)
	}
	if result != errObj {
		t.Errorf("runtime error should also be the result object")
	}
}

func TestDatabaseBuiltins(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "test.db")
	e := New()
	defer e.Close()

	input := fmt.Sprintf(`
let h = db_connect(%q, "sqlite3");
db_exec(h, "CREATE TABLE people (name TEXT, age INTEGER)");
db_begin(h);
db_exec(h, "INSERT INTO people VALUES (?, ?)", "ana", 30);
db_exec(h, "INSERT INTO people VALUES (?, ?)", "rui", 41);
db_commit(h);
let rows = db_query(h, "SELECT name, age FROM people WHERE age > ? ORDER BY age", 18);
db_close(h);
rows
`, dsn)

	if got := testEvalWith(t, e, input).Inspect(); got != "[[ana, 30], [rui, 41]]" {
		t.Errorf("wrong rows. got=%q", got)
	}
}

func TestDatabaseHandlesReleasedOnClose(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "test.db")
	e := New()

	testEvalWith(t, e, fmt.Sprintf(`db_connect(%q, "sqlite3")`, dsn))
	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	testErrorObject(t, "db_query", testEvalWith(t, e, `db_query(1, "SELECT 1")`), "invalid connection handle 1")
}
