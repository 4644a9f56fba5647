// Package token defines the lexical tokens of the instrument script language.
package token

type TokenType string

// Pos is the source range of a token or AST node.
// Offset and Length are in bytes; Line and Column are 1-indexed.
type Pos struct {
	Offset int
	Length int
	Line   int
	Column int
}

// End returns the byte offset just past the range.
func (p Pos) End() int { return p.Offset + p.Length }

// Span returns a range covering p through q.
func Span(p, q Pos) Pos {
	r := p
	if q.End() > p.End() {
		r.Length = q.End() - p.Offset
	}
	return r
}

// Segment is one piece of a string literal: either literal text or a
// {$var} interpolation.
type Segment struct {
	Text string
	Var  string // non-empty for interpolation
	Pos  Pos
}

type Token struct {
	Type    TokenType
	Literal string
	Pos     Pos

	// Unit is the raw unit suffix of a numeric literal ("ms", "kHz"), empty if none.
	Unit string
	// Segments holds the decoded pieces of a STRING token.
	Segments []Segment
}

const (
	ILLEGAL = "ILLEGAL"
	EOF     = "EOF"

	// Identifiers + Literals
	IDENT  = "IDENT"  // wait, play_note, note
	VAR    = "VAR"    // $x, ~gain, @name, %table, ?levels, !labels
	INT    = "INT"    // 123, 0xff, 10ms
	REAL   = "REAL"   // 1.5, 2.5kHz
	STRING = "STRING" // "abc {$x}"

	// Operators and Delimiters
	ASSIGN    = "="
	PLUS      = "+"
	MINUS     = "-"
	ASTERISK  = "*"
	SLASH     = "/"
	AMPERSAND = "&"
	COMMA     = ","
	SEMICOLON = ";"
	LPAREN    = "("
	RPAREN    = ")"
	LBRACE    = "{"
	RBRACE    = "}"
	LBRACKET  = "["
	RBRACKET  = "]"

	EQ     = "=="
	NOT_EQ = "!="
	LT     = "<"
	GT     = ">"
	LTE    = "<="
	GTE    = ">="

	// Keywords
	ON         = "ON"
	IF         = "IF"
	ELSE       = "ELSE"
	SELECT     = "SELECT"
	CASE       = "CASE"
	TO         = "TO"
	DEFAULT    = "DEFAULT"
	WHILE      = "WHILE"
	FOR        = "FOR"
	BREAK      = "BREAK"
	CONTINUE   = "CONTINUE"
	DECLARE    = "DECLARE"
	CONST      = "CONST"
	POLYPHONIC = "POLYPHONIC"
	PATCH      = "PATCH"
	WAIT       = "WAIT"
	SYNC       = "SYNC"
	FUNCTION   = "FUNCTION"
	CALL       = "CALL"
	AND        = "AND"
	OR         = "OR"
	NOT        = "NOT"
	MOD        = "MOD"
)

var keywords = map[string]TokenType{
	"on":         ON,
	"if":         IF,
	"else":       ELSE,
	"select":     SELECT,
	"case":       CASE,
	"to":         TO,
	"default":    DEFAULT,
	"while":      WHILE,
	"for":        FOR,
	"break":      BREAK,
	"continue":   CONTINUE,
	"declare":    DECLARE,
	"const":      CONST,
	"polyphonic": POLYPHONIC,
	"patch":      PATCH,
	"wait":       WAIT,
	"sync":       SYNC,
	"function":   FUNCTION,
	"call":       CALL,
	"and":        AND,
	"or":         OR,
	"not":        NOT,
	"mod":        MOD,
}

// LookupIdent returns the keyword token type for ident, or IDENT.
// Keywords are case-sensitive.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword reports whether t is a keyword token type.
func IsKeyword(t TokenType) bool {
	for _, k := range keywords {
		if k == t {
			return true
		}
	}
	return false
}

// Sigils maps each variable sigil to a short description of its type.
var Sigils = map[byte]string{
	'$': "int",
	'~': "real",
	'@': "string",
	'%': "int array",
	'?': "real array",
	'!': "string array",
}
