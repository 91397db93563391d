// pkg/sql/lexer/lexer_test.go
package lexer

import "testing"

func collect(input string) []Token {
	l := New(input)
	var toks []Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == EOF {
			return toks
		}
	}
}

func TestSelectTokens(t *testing.T) {
	toks := collect("SELECT * FROM p WHERE id >= 2;")
	want := []TokenType{SELECT, STAR, FROM, IDENT, WHERE, IDENT, GTE, INT, SEMICOLON, EOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(want))
	}
	for i, typ := range want {
		if toks[i].Type != typ {
			t.Errorf("token %d: got %v (%q), want %v", i, toks[i].Type, toks[i].Literal, typ)
		}
	}
}

func TestKeywordsCaseInsensitive(t *testing.T) {
	toks := collect("select From wHeRe")
	want := []TokenType{SELECT, FROM, WHERE, EOF}
	for i, typ := range want {
		if toks[i].Type != typ {
			t.Errorf("token %d: got %v, want %v", i, toks[i].Type, typ)
		}
	}
}

func TestStringLiteral(t *testing.T) {
	toks := collect("'it''s'")
	if toks[0].Type != STRING || toks[0].Literal != "it's" {
		t.Errorf("got %v %q", toks[0].Type, toks[0].Literal)
	}
}

func TestNumbers(t *testing.T) {
	toks := collect("12 3.5 -7")
	if toks[0].Type != INT || toks[0].Literal != "12" {
		t.Errorf("int: %v %q", toks[0].Type, toks[0].Literal)
	}
	if toks[1].Type != FLOAT || toks[1].Literal != "3.5" {
		t.Errorf("float: %v %q", toks[1].Type, toks[1].Literal)
	}
	if toks[2].Type != INT || toks[2].Literal != "-7" {
		t.Errorf("negative: %v %q", toks[2].Type, toks[2].Literal)
	}
}

func TestScopedIdentifier(t *testing.T) {
	toks := collect("l.id = r.id")
	want := []TokenType{IDENT, DOT, IDENT, EQ, IDENT, DOT, IDENT, EOF}
	for i, typ := range want {
		if toks[i].Type != typ {
			t.Errorf("token %d: got %v, want %v", i, toks[i].Type, typ)
		}
	}
}

func TestOperators(t *testing.T) {
	toks := collect("= <> != < <= > >=")
	want := []TokenType{EQ, NEQ, NEQ, LT, LTE, GT, GTE, EOF}
	for i, typ := range want {
		if toks[i].Type != typ {
			t.Errorf("token %d: got %v, want %v", i, toks[i].Type, typ)
		}
	}
}
