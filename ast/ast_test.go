package ast

import (
	"testing"

	"rpnjit/lexer"
)

func TestAssignmentStatementString(t *testing.T) {
	stmt := &AssignmentStatement{
		Token: lexer.Token{Type: lexer.IDENT, Literal: "x"},
		Name:  &Identifier{Token: lexer.Token{Type: lexer.IDENT, Literal: "x"}, Value: "x"},
		Value: &IntegerLiteral{Token: lexer.Token{Type: lexer.INT, Literal: "5"}, Value: 5},
	}

	expected := "x = 5"
	if stmt.String() != expected {
		t.Errorf("stmt.String() wrong. got=%q, want=%q", stmt.String(), expected)
	}

	if stmt.TokenLiteral() != "x" {
		t.Errorf("stmt.TokenLiteral() wrong. got=%q, want=%q", stmt.TokenLiteral(), "x")
	}
}

func TestIdentifierString(t *testing.T) {
	ident := &Identifier{
		Token: lexer.Token{Type: lexer.IDENT, Literal: "foobar"},
		Value: "foobar",
	}

	if ident.String() != "foobar" {
		t.Errorf("ident.String() wrong. got=%q, want=%q", ident.String(), "foobar")
	}

	if ident.TokenLiteral() != "foobar" {
		t.Errorf("ident.TokenLiteral() wrong. got=%q, want=%q", ident.TokenLiteral(), "foobar")
	}
}

func TestIntegerLiteralString(t *testing.T) {
	intLit := &IntegerLiteral{
		Token: lexer.Token{Type: lexer.INT, Literal: "42"},
		Value: 42,
	}

	if intLit.String() != "42" {
		t.Errorf("intLit.String() wrong. got=%q, want=%q", intLit.String(), "42")
	}

	if intLit.TokenLiteral() != "42" {
		t.Errorf("intLit.TokenLiteral() wrong. got=%q, want=%q", intLit.TokenLiteral(), "42")
	}
}

func TestBooleanLiteralString(t *testing.T) {
	tests := []struct {
		input    bool
		expected string
	}{
		{true, "true"},
		{false, "false"},
	}

	for _, tt := range tests {
		boolLit := &BooleanLiteral{
			Token: lexer.Token{Type: lexer.TRUE, Literal: tt.expected},
			Value: tt.input,
		}

		if boolLit.String() != tt.expected {
			t.Errorf("boolLit.String() wrong. got=%q, want=%q", boolLit.String(), tt.expected)
		}
	}
}

func TestInfixExpressionString(t *testing.T) {
	infixExp := &InfixExpression{
		Token:    lexer.Token{Type: lexer.PLUS, Literal: "+"},
		Left:     &IntegerLiteral{Token: lexer.Token{Type: lexer.INT, Literal: "5"}, Value: 5},
		Operator: "+",
		Right:    &IntegerLiteral{Token: lexer.Token{Type: lexer.INT, Literal: "10"}, Value: 10},
	}

	expected := "(5 + 10)"
	if infixExp.String() != expected {
		t.Errorf("infixExp.String() wrong. got=%q, want=%q", infixExp.String(), expected)
	}

	if infixExp.TokenLiteral() != "+" {
		t.Errorf("infixExp.TokenLiteral() wrong. got=%q, want=%q", infixExp.TokenLiteral(), "+")
	}
}

func TestExpressionStatementString(t *testing.T) {
	exprStmt := &ExpressionStatement{
		Token:      lexer.Token{Type: lexer.INT, Literal: "5"},
		Expression: &IntegerLiteral{Token: lexer.Token{Type: lexer.INT, Literal: "5"}, Value: 5},
	}

	expected := "5"
	if exprStmt.String() != expected {
		t.Errorf("exprStmt.String() wrong. got=%q, want=%q", exprStmt.String(), expected)
	}
}

func TestNilExpressionStatementString(t *testing.T) {
	exprStmt := &ExpressionStatement{
		Token:      lexer.Token{Type: lexer.SEMICOLON, Literal: ";"},
		Expression: nil,
	}

	if exprStmt.String() != "" {
		t.Errorf("nil expression statement.String() should be empty. got=%q", exprStmt.String())
	}
}

func TestBlockStatementString(t *testing.T) {
	blockStmt := &BlockStatement{
		Token: lexer.Token{Type: lexer.LBRACE, Literal: "{"},
		Statements: []Statement{
			&ExpressionStatement{
				Token:      lexer.Token{Type: lexer.INT, Literal: "5"},
				Expression: &IntegerLiteral{Token: lexer.Token{Type: lexer.INT, Literal: "5"}, Value: 5},
			},
			&ExpressionStatement{
				Token:      lexer.Token{Type: lexer.INT, Literal: "10"},
				Expression: &IntegerLiteral{Token: lexer.Token{Type: lexer.INT, Literal: "10"}, Value: 10},
			},
		},
	}

	expected := "{510}"
	if blockStmt.String() != expected {
		t.Errorf("blockStmt.String() wrong. got=%q, want=%q", blockStmt.String(), expected)
	}

	if blockStmt.TokenLiteral() != "{" {
		t.Errorf("blockStmt.TokenLiteral() wrong. got=%q, want=%q", blockStmt.TokenLiteral(), "{")
	}
}

func TestFunctionDeclarationString(t *testing.T) {
	fnDecl := &FunctionDeclaration{
		Token: lexer.Token{Type: lexer.FN, Literal: "fn"},
		Name:  &Identifier{Token: lexer.Token{Type: lexer.IDENT, Literal: "add"}, Value: "add"},
		Parameters: []*Identifier{
			{Token: lexer.Token{Type: lexer.IDENT, Literal: "x"}, Value: "x"},
			{Token: lexer.Token{Type: lexer.IDENT, Literal: "y"}, Value: "y"},
		},
		Body: &BlockStatement{
			Token: lexer.Token{Type: lexer.LBRACE, Literal: "{"},
			Statements: []Statement{
				&ExpressionStatement{
					Token: lexer.Token{Type: lexer.IDENT, Literal: "x"},
					Expression: &InfixExpression{
						Token:    lexer.Token{Type: lexer.PLUS, Literal: "+"},
						Left:     &Identifier{Token: lexer.Token{Type: lexer.IDENT, Literal: "x"}, Value: "x"},
						Operator: "+",
						Right:    &Identifier{Token: lexer.Token{Type: lexer.IDENT, Literal: "y"}, Value: "y"},
					},
				},
			},
		},
	}

	expected := "fn add(x, y) {(x + y)}"
	if fnDecl.String() != expected {
		t.Errorf("fnDecl.String() wrong. got=%q, want=%q", fnDecl.String(), expected)
	}

	if fnDecl.TokenLiteral() != "fn" {
		t.Errorf("fnDecl.TokenLiteral() wrong. got=%q, want=%q", fnDecl.TokenLiteral(), "fn")
	}
}

func TestStaticDeclarationString(t *testing.T) {
	staticDecl := &StaticDeclaration{
		Token:  lexer.Token{Type: lexer.STATIC, Literal: "static"},
		Name:   &Identifier{Token: lexer.Token{Type: lexer.IDENT, Literal: "counter"}, Value: "counter"},
		Atomic: true,
		Value:  &IntegerLiteral{Token: lexer.Token{Type: lexer.INT, Literal: "0"}, Value: 0},
	}

	expected := "static atomic counter = 0"
	if staticDecl.String() != expected {
		t.Errorf("staticDecl.String() wrong. got=%q, want=%q", staticDecl.String(), expected)
	}
}

func TestCallExpressionString(t *testing.T) {
	callExpr := &CallExpression{
		Token:    lexer.Token{Type: lexer.LPAREN, Literal: "("},
		Function: &Identifier{Token: lexer.Token{Type: lexer.IDENT, Literal: "add"}, Value: "add"},
		Arguments: []Expression{
			&IntegerLiteral{Token: lexer.Token{Type: lexer.INT, Literal: "1"}, Value: 1},
			&IntegerLiteral{Token: lexer.Token{Type: lexer.INT, Literal: "2"}, Value: 2},
		},
	}

	expected := "add(1, 2)"
	if callExpr.String() != expected {
		t.Errorf("callExpr.String() wrong. got=%q, want=%q", callExpr.String(), expected)
	}

	if callExpr.TokenLiteral() != "(" {
		t.Errorf("callExpr.TokenLiteral() wrong. got=%q, want=%q", callExpr.TokenLiteral(), "(")
	}
}

func TestReturnStatementString(t *testing.T) {
	returnStmt := &ReturnStatement{
		Token:       lexer.Token{Type: lexer.RETURN, Literal: "return"},
		ReturnValue: &IntegerLiteral{Token: lexer.Token{Type: lexer.INT, Literal: "42"}, Value: 42},
	}

	expected := "return 42;"
	if returnStmt.String() != expected {
		t.Errorf("returnStmt.String() wrong. got=%q, want=%q", returnStmt.String(), expected)
	}

	if returnStmt.TokenLiteral() != "return" {
		t.Errorf("returnStmt.TokenLiteral() wrong. got=%q, want=%q", returnStmt.TokenLiteral(), "return")
	}
}

func TestWhileStatementString(t *testing.T) {
	whileStmt := &WhileStatement{
		Token:     lexer.Token{Type: lexer.WHILE, Literal: "while"},
		Condition: &BooleanLiteral{Token: lexer.Token{Type: lexer.TRUE, Literal: "true"}, Value: true},
		Body: &BlockStatement{
			Token: lexer.Token{Type: lexer.LBRACE, Literal: "{"},
			Statements: []Statement{
				&ExpressionStatement{
					Token:      lexer.Token{Type: lexer.INT, Literal: "1"},
					Expression: &IntegerLiteral{Token: lexer.Token{Type: lexer.INT, Literal: "1"}, Value: 1},
				},
			},
		},
	}

	expected := "whiletrue {1}"
	if whileStmt.String() != expected {
		t.Errorf("whileStmt.String() wrong. got=%q, want=%q", whileStmt.String(), expected)
	}

	if whileStmt.TokenLiteral() != "while" {
		t.Errorf("whileStmt.TokenLiteral() wrong. got=%q, want=%q", whileStmt.TokenLiteral(), "while")
	}
}

func TestEmptyProgramString(t *testing.T) {
	program := &Program{Items: []Item{}}

	if program.String() != "" {
		t.Errorf("empty program.String() should be empty. got=%q", program.String())
	}

	if program.TokenLiteral() != "" {
		t.Errorf("empty program.TokenLiteral() should be empty. got=%q", program.TokenLiteral())
	}
}

func TestProgramString(t *testing.T) {
	program := &Program{
		Items: []Item{
			&StaticDeclaration{
				Token: lexer.Token{Type: lexer.STATIC, Literal: "static"},
				Name:  &Identifier{Token: lexer.Token{Type: lexer.IDENT, Literal: "x"}, Value: "x"},
				Value: &IntegerLiteral{Token: lexer.Token{Type: lexer.INT, Literal: "5"}, Value: 5},
			},
		},
	}

	expected := "static x = 5"
	if program.String() != expected {
		t.Errorf("program.String() wrong. got=%q, want=%q", program.String(), expected)
	}
}
