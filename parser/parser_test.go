package parser

import (
	"testing"

	"rpnjit/ast"
	"rpnjit/lexer"
)

func parseProgram(t *testing.T, input string) *ast.Program {
	t.Helper()
	l := lexer.New(input)
	p := New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) != 0 {
		t.Fatalf("parser errors: %v", errs)
	}
	return program
}

func TestStaticDeclarations(t *testing.T) {
	program := parseProgram(t, `
static x = 5
static atomic total = 0
`)

	if len(program.Items) != 2 {
		t.Fatalf("program.Items does not contain 2 items. got=%d", len(program.Items))
	}

	first, ok := program.Items[0].(*ast.StaticDeclaration)
	if !ok {
		t.Fatalf("Items[0] is not *ast.StaticDeclaration. got=%T", program.Items[0])
	}
	if first.Name.Value != "x" || first.Atomic {
		t.Errorf("first static wrong: name=%q atomic=%v", first.Name.Value, first.Atomic)
	}

	second, ok := program.Items[1].(*ast.StaticDeclaration)
	if !ok {
		t.Fatalf("Items[1] is not *ast.StaticDeclaration. got=%T", program.Items[1])
	}
	if second.Name.Value != "total" || !second.Atomic {
		t.Errorf("second static wrong: name=%q atomic=%v", second.Name.Value, second.Atomic)
	}
}

func TestFunctionDeclaration(t *testing.T) {
	program := parseProgram(t, `
fn add(x, y) {
  return x + y
}
`)

	if len(program.Items) != 1 {
		t.Fatalf("program.Items does not contain 1 item. got=%d", len(program.Items))
	}

	fn, ok := program.Items[0].(*ast.FunctionDeclaration)
	if !ok {
		t.Fatalf("Items[0] is not *ast.FunctionDeclaration. got=%T", program.Items[0])
	}
	if fn.Name.Value != "add" {
		t.Errorf("fn.Name.Value = %q, want add", fn.Name.Value)
	}
	if len(fn.Parameters) != 2 || fn.Parameters[0].Value != "x" || fn.Parameters[1].Value != "y" {
		t.Errorf("fn.Parameters wrong: %v", fn.Parameters)
	}
	if len(fn.Body.Statements) != 1 {
		t.Fatalf("fn.Body.Statements wrong length. got=%d", len(fn.Body.Statements))
	}
	ret, ok := fn.Body.Statements[0].(*ast.ReturnStatement)
	if !ok {
		t.Fatalf("body statement is not *ast.ReturnStatement. got=%T", fn.Body.Statements[0])
	}
	if ret.ReturnValue.String() != "(x + y)" {
		t.Errorf("return value = %q, want (x + y)", ret.ReturnValue.String())
	}
}

func TestArithmeticExpressions(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a = 1 + 2", "(1 + 2)"},
		{"a = 1 - 2 - 3", "((1 - 2) - 3)"},
		{"a = 1 + 2 - 3", "((1 + 2) - 3)"},
	}

	for _, tt := range tests {
		program := parseProgram(t, "fn f() { "+tt.input+" }")
		fn := program.Items[0].(*ast.FunctionDeclaration)
		stmt := fn.Body.Statements[0].(*ast.AssignmentStatement)
		if stmt.Value.String() != tt.expected {
			t.Errorf("input %q: got=%q, want=%q", tt.input, stmt.Value.String(), tt.expected)
		}
	}
}

func TestComparisonAndLogicalExpressions(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a = 1 < 2", "(1 < 2)"},
		{"a = 1 == 2", "(1 == 2)"},
		{"a = 1 < 2 && 3 > 4", "((1 < 2) && (3 > 4))"},
		{"a = 1 < 2 || 3 > 4", "((1 < 2) || (3 > 4))"},
	}

	for _, tt := range tests {
		program := parseProgram(t, "fn f() { "+tt.input+" }")
		fn := program.Items[0].(*ast.FunctionDeclaration)
		stmt := fn.Body.Statements[0].(*ast.AssignmentStatement)
		if stmt.Value.String() != tt.expected {
			t.Errorf("input %q: got=%q, want=%q", tt.input, stmt.Value.String(), tt.expected)
		}
	}
}

func TestCallExpression(t *testing.T) {
	program := parseProgram(t, `fn f() { a = add(1, 2) }`)
	fn := program.Items[0].(*ast.FunctionDeclaration)
	stmt := fn.Body.Statements[0].(*ast.AssignmentStatement)
	call, ok := stmt.Value.(*ast.CallExpression)
	if !ok {
		t.Fatalf("value is not *ast.CallExpression. got=%T", stmt.Value)
	}
	if call.Function.Value != "add" {
		t.Errorf("call.Function.Value = %q, want add", call.Function.Value)
	}
	if len(call.Arguments) != 2 {
		t.Fatalf("call.Arguments wrong length. got=%d", len(call.Arguments))
	}
}

func TestWhileStatement(t *testing.T) {
	program := parseProgram(t, `
fn f() {
  while (a < 10) {
    a = a + 1
  }
}
`)

	fn := program.Items[0].(*ast.FunctionDeclaration)
	stmt, ok := fn.Body.Statements[0].(*ast.WhileStatement)
	if !ok {
		t.Fatalf("statement is not *ast.WhileStatement. got=%T", fn.Body.Statements[0])
	}
	if stmt.Condition.String() != "(a < 10)" {
		t.Errorf("condition = %q, want (a < 10)", stmt.Condition.String())
	}
	if len(stmt.Body.Statements) != 1 {
		t.Fatalf("body statements wrong length. got=%d", len(stmt.Body.Statements))
	}
}

func TestReturnStatement(t *testing.T) {
	program := parseProgram(t, `fn f() { return 1 + 2 }`)
	fn := program.Items[0].(*ast.FunctionDeclaration)
	stmt, ok := fn.Body.Statements[0].(*ast.ReturnStatement)
	if !ok {
		t.Fatalf("statement is not *ast.ReturnStatement. got=%T", fn.Body.Statements[0])
	}
	if stmt.ReturnValue.String() != "(1 + 2)" {
		t.Errorf("return value = %q, want (1 + 2)", stmt.ReturnValue.String())
	}
}

func TestGroupedExpression(t *testing.T) {
	program := parseProgram(t, `fn f() { a = (1 + 2) - 3 }`)
	fn := program.Items[0].(*ast.FunctionDeclaration)
	stmt := fn.Body.Statements[0].(*ast.AssignmentStatement)
	if stmt.Value.String() != "((1 + 2) - 3)" {
		t.Errorf("value = %q, want ((1 + 2) - 3)", stmt.Value.String())
	}
}
