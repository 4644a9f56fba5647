package lexer

import (
	"errors"
	"testing"

	"github.com/zurustar/instrscript/pkg/compiler/token"
)

func TestNextToken(t *testing.T) {
	input := `
	declare polyphonic $vel = 0;
	on note {
		$vel = $EVENT_VELOCITY;
		wait(10ms);
		message("v={$vel}");
	}
	`

	tests := []struct {
		expectedType    token.TokenType
		expectedLiteral string
	}{
		{token.DECLARE, "declare"},
		{token.POLYPHONIC, "polyphonic"},
		{token.VAR, "$vel"},
		{token.ASSIGN, "="},
		{token.INT, "0"},
		{token.SEMICOLON, ";"},

		{token.ON, "on"},
		{token.IDENT, "note"},
		{token.LBRACE, "{"},

		{token.VAR, "$vel"},
		{token.ASSIGN, "="},
		{token.VAR, "$EVENT_VELOCITY"},
		{token.SEMICOLON, ";"},

		{token.WAIT, "wait"},
		{token.LPAREN, "("},
		{token.INT, "10"},
		{token.RPAREN, ")"},
		{token.SEMICOLON, ";"},

		{token.IDENT, "message"},
		{token.LPAREN, "("},
		{token.STRING, "v={$vel}"},
		{token.RPAREN, ")"},
		{token.SEMICOLON, ";"},

		{token.RBRACE, "}"},
		{token.EOF, ""},
	}

	l := New(input)

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q",
				i, tt.expectedType, tok.Type)
		}

		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q",
				i, tt.expectedLiteral, tok.Literal)
		}
	}
	if l.Err() != nil {
		t.Fatalf("unexpected error: %v", l.Err())
	}
}

func TestOperators(t *testing.T) {
	input := `== != <= >= < > = + - * / & mod and or not !labels ~gain @name %tbl ?lv`
	expected := []token.TokenType{
		token.EQ, token.NOT_EQ, token.LTE, token.GTE, token.LT, token.GT, token.ASSIGN,
		token.PLUS, token.MINUS, token.ASTERISK, token.SLASH, token.AMPERSAND,
		token.MOD, token.AND, token.OR, token.NOT,
		token.VAR, token.VAR, token.VAR, token.VAR, token.VAR,
		token.EOF,
	}

	toks, err := Tokenize(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(toks) != len(expected) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(expected))
	}
	for i, want := range expected {
		if toks[i].Type != want {
			t.Errorf("token[%d] = %s, want %s", i, toks[i].Type, want)
		}
	}
}

func TestNumberLiterals(t *testing.T) {
	tests := []struct {
		input   string
		typ     token.TokenType
		literal string
		unit    string
	}{
		{"42", token.INT, "42", ""},
		{"0xff", token.INT, "0xff", ""},
		{"1.25", token.REAL, "1.25", ""},
		{"10ms", token.INT, "10", "ms"},
		{"2.5kHz", token.REAL, "2.5", "kHz"},
		{"-6", token.MINUS, "-", ""},
		{"3mdB", token.INT, "3", "mdB"},
		{"1s", token.INT, "1", "s"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			l := New(tt.input)
			tok := l.NextToken()
			if tok.Type != tt.typ || tok.Literal != tt.literal || tok.Unit != tt.unit {
				t.Errorf("got (%s %q %q), want (%s %q %q)", tok.Type, tok.Literal, tok.Unit, tt.typ, tt.literal, tt.unit)
			}
		})
	}
}

func TestPositions(t *testing.T) {
	input := "on note {\n  $x = 10ms;\n}"
	toks, err := Tokenize(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// $x on the second line
	x := toks[3]
	if x.Literal != "$x" {
		t.Fatalf("toks[3] = %q, want $x", x.Literal)
	}
	if x.Pos.Offset != 12 || x.Pos.Length != 2 || x.Pos.Line != 2 || x.Pos.Column != 3 {
		t.Errorf("$x pos = %+v", x.Pos)
	}

	// 10ms covers the suffix too
	num := toks[5]
	if input[num.Pos.Offset:num.Pos.End()] != "10ms" {
		t.Errorf("number range = %q, want 10ms", input[num.Pos.Offset:num.Pos.End()])
	}

	eof := toks[len(toks)-1]
	if eof.Type != token.EOF || eof.Pos.Offset != len(input) {
		t.Errorf("EOF at %d, want %d", eof.Pos.Offset, len(input))
	}
}

func TestStringSegments(t *testing.T) {
	l := New(`"a\tb {$n} \{x\}"`)
	tok := l.NextToken()
	if tok.Type != token.STRING {
		t.Fatalf("got %s", tok.Type)
	}
	if len(tok.Segments) != 3 {
		t.Fatalf("got %d segments, want 3: %+v", len(tok.Segments), tok.Segments)
	}
	if tok.Segments[0].Text != "a\tb " {
		t.Errorf("segment 0 = %q", tok.Segments[0].Text)
	}
	if tok.Segments[1].Var != "$n" {
		t.Errorf("segment 1 = %+v", tok.Segments[1])
	}
	if tok.Segments[2].Text != " {x}" {
		t.Errorf("segment 2 = %q", tok.Segments[2].Text)
	}
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		offset int
	}{
		{"unterminated string", `message("abc`, 8},
		{"newline in string", "message(\"ab\ncd\")", 8},
		{"invalid escape", `"ab\q"`, 3},
		{"bad unit", `wait(10xs)`, 7},
		{"lonely sigil", `$ = 1`, 0},
		{"unterminated comment", "on init { } /* never closed", 12},
		{"unexpected char", "on init { # }", 10},
		{"bad interpolation", `"{x}"`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.input)
			if err == nil {
				t.Fatal("expected error")
			}
			var le *LexError
			if !errors.As(err, &le) {
				t.Fatalf("error is %T, want *LexError", err)
			}
			if le.Pos.Offset != tt.offset {
				t.Errorf("offset = %d, want %d (%s)", le.Pos.Offset, tt.offset, le.Message)
			}
		})
	}
}

func TestNoTokensAfterError(t *testing.T) {
	l := New(`"abc`)
	l.NextToken()
	if l.Err() == nil {
		t.Fatal("expected error")
	}
	for i := 0; i < 3; i++ {
		if tok := l.NextToken(); tok.Type != token.ILLEGAL {
			t.Errorf("token after error = %s, want ILLEGAL", tok.Type)
		}
	}
}
