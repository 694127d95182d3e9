package lexer

import (
	"testing"

	"github.com/rplus-lang/rplus/internal/token"
)

func TestLexerBasicTokens(t *testing.T) {
	input := `
function add(a, b) {
  var c = a + b
  if (c >= 10 && a != b) {
    return c
  }
}
`

	tests := []token.Token{
		{Type: token.Function, Literal: "function"},
		{Type: token.Ident, Literal: "add"},
		{Type: token.LParen, Literal: "("},
		{Type: token.Ident, Literal: "a"},
		{Type: token.Comma, Literal: ","},
		{Type: token.Ident, Literal: "b"},
		{Type: token.RParen, Literal: ")"},
		{Type: token.LBrace, Literal: "{"},
		{Type: token.Var, Literal: "var"},
		{Type: token.Ident, Literal: "c"},
		{Type: token.Assign, Literal: "="},
		{Type: token.Ident, Literal: "a"},
		{Type: token.Plus, Literal: "+"},
		{Type: token.Ident, Literal: "b"},
		{Type: token.Newline},
		{Type: token.If, Literal: "if"},
		{Type: token.LParen, Literal: "("},
		{Type: token.Ident, Literal: "c"},
		{Type: token.GreaterEqual, Literal: ">="},
		{Type: token.Number, Literal: "10"},
		{Type: token.AndAnd, Literal: "&&"},
		{Type: token.Ident, Literal: "a"},
		{Type: token.NotEqual, Literal: "!="},
		{Type: token.Ident, Literal: "b"},
		{Type: token.RParen, Literal: ")"},
		{Type: token.LBrace, Literal: "{"},
		{Type: token.Return, Literal: "return"},
		{Type: token.Ident, Literal: "c"},
		{Type: token.Newline},
		{Type: token.RBrace, Literal: "}"},
		{Type: token.Newline},
		{Type: token.RBrace, Literal: "}"},
		{Type: token.Newline},
		{Type: token.EOF},
	}

	l := New(input)
	for i, expected := range tests {
		tok := l.NextToken()
		if tok.Type != expected.Type || tok.Literal != expected.Literal {
			t.Fatalf("token %d: expected %v %q, got %v %q", i, expected.Type, expected.Literal, tok.Type, tok.Literal)
		}
	}
}

func TestLexerRangeAndIndexing(t *testing.T) {
	input := `[0 .. 3]
arr[0] = indexRead(obj, "missing", "fallback")`

	expectedTypes := []token.Type{
		token.LBracket, token.Number, token.Range, token.Number, token.RBracket, token.Newline,
		token.Ident, token.LBracket, token.Number, token.RBracket, token.Assign,
		token.Ident, token.LParen, token.Ident, token.Comma, token.String, token.Comma, token.String, token.RParen,
		token.EOF,
	}

	l := New(input)
	for i, typ := range expectedTypes {
		tok := l.NextToken()
		if tok.Type != typ {
			t.Fatalf("token %d: expected %v, got %v (%q)", i, typ, tok.Type, tok.Literal)
		}
	}
}

func TestLexerNewlineSuppression(t *testing.T) {
	input := `var a = (
  1 +
  2)
var b = [1,
 2]
valueExist(b, 2)
`

	expected := []token.Type{
		token.Var, token.Ident, token.Assign, token.LParen, token.Number, token.Plus, token.Number, token.RParen, token.Newline,
		token.Var, token.Ident, token.Assign, token.LBracket, token.Number, token.Comma, token.Number, token.RBracket, token.Newline,
		token.Ident, token.LParen, token.Ident, token.Comma, token.Number, token.RParen, token.Newline,
		token.EOF,
	}

	l := New(input)
	for i, typ := range expected {
		tok := l.NextToken()
		if tok.Type != typ {
			t.Fatalf("token %d: expected %v, got %v (%q)", i, typ, tok.Type, tok.Literal)
		}
	}
}

func TestLexerComments(t *testing.T) {
	input := `// line comment
var a = 1
/* block
comment */
var b = 2`

	expected := []token.Type{
		token.Var, token.Ident, token.Assign, token.Number, token.Newline,
		token.Var, token.Ident, token.Assign, token.Number, token.EOF,
	}

	l := New(input)
	for i, typ := range expected {
		tok := l.NextToken()
		if tok.Type != typ {
			t.Fatalf("token %d: expected %v, got %v (%q)", i, typ, tok.Type, tok.Literal)
		}
	}
}

func TestLexerUnknownCharIsError(t *testing.T) {
	l := New(`@`)
	tok := l.NextToken()
	if tok.Type != token.Error {
		t.Fatalf("expected ERROR token for unrecognized char, got %v", tok.Type)
	}
}

func TestLexerHexNumber(t *testing.T) {
	l := New(`0xFF`)
	tok := l.NextToken()
	if tok.Type != token.Number || tok.Literal != "0xFF" {
		t.Fatalf("expected hex number 0xFF, got %v %q", tok.Type, tok.Literal)
	}
}
