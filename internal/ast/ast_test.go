package ast

import (
	"bzr/internal/token"
	"testing"
)

func TestString(t *testing.T) {
	program := &Program{
		Statements: []Statement{
			&LetStatement{
				Token: token.Token{Type: token.LET, Literal: "let"},
				Name: &Identifier{
					Token: token.Token{Type: token.IDENT, Literal: "my_var"},
					Value: "my_var",
				},
				DeclaredType: Int,
				Value: &IntegerLiteral{
					Token: token.Token{Type: token.NUMBER, Literal: "10"},
					Value: 10,
				},
			},
		},
	}

	if program.String() != "let my_var int = 10;" {
		t.Errorf("program.String() wrong. got=%q", program.String())
	}
}

func TestStatementsAreSeparated(t *testing.T) {
	ident := func(name string) *Identifier {
		return &Identifier{Token: token.Token{Type: token.IDENT, Literal: name}, Value: name}
	}

	program := &Program{
		Statements: []Statement{
			&ExpressionStatement{Expression: ident("a")},
			&ExpressionStatement{Expression: ident("b")},
			&ReturnStatement{Token: token.Token{Type: token.RETURN, Literal: "ret"}, ReturnValue: ident("c")},
			&ExpressionStatement{Expression: ident("d")},
		},
	}

	expected := "a;\nb;\nret c;\nd"
	if program.String() != expected {
		t.Errorf("program.String() wrong. expected=%q, got=%q", expected, program.String())
	}

	block := &BlockStatement{Statements: program.Statements}
	if block.String() != "{ a; b; ret c; d }" {
		t.Errorf("block.String() wrong. got=%q", block.String())
	}
	if (&BlockStatement{}).String() != "{ }" {
		t.Errorf("empty block.String() wrong. got=%q", (&BlockStatement{}).String())
	}
}

func TestQuoteString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", `""`},
		{"plain", `"plain"`},
		{"a\nb\tc", `"a\nb\tc"`},
		{`say "hi"`, `"say \"hi\""`},
		{`back\slash`, `"back\\slash"`},
	}

	for _, tt := range tests {
		if got := QuoteString(tt.input); got != tt.expected {
			t.Errorf("QuoteString(%q) wrong. expected=%s, got=%s", tt.input, tt.expected, got)
		}
	}
}

func TestTypeCompatible(t *testing.T) {
	tests := []struct {
		declared Type
		resolved Type
		expected bool
	}{
		{Int, Int, true},
		{Int, String, false},
		{Bool, Unknown, true},
		{Array, Array, true},
		{String, Error, false},
	}

	for _, tt := range tests {
		if got := tt.declared.Compatible(tt.resolved); got != tt.expected {
			t.Errorf("%s.Compatible(%s) wrong. expected=%t, got=%t", tt.declared, tt.resolved, tt.expected, got)
		}
	}
}

func TestTypeFromToken(t *testing.T) {
	tests := map[token.TokenType]Type{
		token.INT:   Int,
		token.STR:   String,
		token.BOOL:  Bool,
		token.ARRAY: Array,
	}
	for tok, expected := range tests {
		got, ok := TypeFromToken(tok)
		if !ok || got != expected {
			t.Errorf("TypeFromToken(%s) wrong. expected=%s, got=%s (%t)", tok, expected, got, ok)
		}
	}
	if _, ok := TypeFromToken(token.IDENT); ok {
		t.Errorf("TypeFromToken(IDENT) should not resolve")
	}
}
