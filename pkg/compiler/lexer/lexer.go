package lexer

import (
	"fmt"
	"strings"

	"github.com/zurustar/instrscript/pkg/compiler/token"
	"github.com/zurustar/instrscript/pkg/value"
)

// LexError is a malformed token. Offset is the byte offset of the offending
// input; lexing stops at the first LexError.
type LexError struct {
	Message string
	Pos     token.Pos
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lexer error at line %d, column %d (offset %d): %s",
		e.Pos.Line, e.Pos.Column, e.Pos.Offset, e.Message)
}

// Lexer tokenizes instrument script source code.
type Lexer struct {
	input        string
	position     int  // current position in input
	readPosition int  // current reading position (after current char)
	ch           byte // current char
	line         int  // line of the current char
	lineStart    int  // offset of the first byte of the current line

	err *LexError
}

// New creates a new Lexer.
func New(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// Err returns the first lexical error, or nil.
func (l *Lexer) Err() *LexError {
	return l.err
}

// Source returns the source being tokenized.
func (l *Lexer) Source() string {
	return l.input
}

// Tokenize reads the whole input. It stops at the first LexError.
func Tokenize(input string) ([]token.Token, error) {
	l := New(input)
	var toks []token.Token
	for {
		tok := l.NextToken()
		if l.err != nil {
			return toks, l.err
		}
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks, nil
		}
	}
}

// NextToken returns the next token. After an error it keeps returning ILLEGAL.
func (l *Lexer) NextToken() token.Token {
	if l.err != nil {
		return token.Token{Type: token.ILLEGAL, Literal: l.err.Message, Pos: l.err.Pos}
	}

	if !l.skipWhitespaceAndComments() {
		return token.Token{Type: token.ILLEGAL, Literal: l.err.Message, Pos: l.err.Pos}
	}

	start := l.here()

	switch l.ch {
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			return l.finish(token.EQ, start)
		}
		return l.finish(token.ASSIGN, start)
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			return l.finish(token.NOT_EQ, start)
		}
		return l.readVariable(start)
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			return l.finish(token.LTE, start)
		}
		return l.finish(token.LT, start)
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			return l.finish(token.GTE, start)
		}
		return l.finish(token.GT, start)
	case '+':
		return l.finish(token.PLUS, start)
	case '-':
		return l.finish(token.MINUS, start)
	case '*':
		return l.finish(token.ASTERISK, start)
	case '/':
		return l.finish(token.SLASH, start)
	case '&':
		return l.finish(token.AMPERSAND, start)
	case '(':
		return l.finish(token.LPAREN, start)
	case ')':
		return l.finish(token.RPAREN, start)
	case '{':
		return l.finish(token.LBRACE, start)
	case '}':
		return l.finish(token.RBRACE, start)
	case '[':
		return l.finish(token.LBRACKET, start)
	case ']':
		return l.finish(token.RBRACKET, start)
	case ',':
		return l.finish(token.COMMA, start)
	case ';':
		return l.finish(token.SEMICOLON, start)
	case '$', '~', '@', '%', '?':
		return l.readVariable(start)
	case '"':
		return l.readString(start)
	case 0:
		if l.position >= len(l.input) {
			start.Length = 0
			return token.Token{Type: token.EOF, Pos: start}
		}
	}

	if isLetter(l.ch) {
		ident := l.readIdentifier()
		start.Length = l.position - start.Offset
		return token.Token{Type: token.LookupIdent(ident), Literal: ident, Pos: start}
	}
	if isDigit(l.ch) {
		return l.readNumber(start)
	}
	return l.fail(start, fmt.Sprintf("unexpected character %q", l.ch))
}

// finish consumes the current char and returns a token spanning from start.
func (l *Lexer) finish(t token.TokenType, start token.Pos) token.Token {
	l.readChar()
	start.Length = l.position - start.Offset
	return token.Token{Type: t, Literal: l.input[start.Offset:l.position], Pos: start}
}

func (l *Lexer) fail(pos token.Pos, msg string) token.Token {
	if pos.Length == 0 && pos.Offset < len(l.input) {
		pos.Length = 1
	}
	l.err = &LexError{Message: msg, Pos: pos}
	return token.Token{Type: token.ILLEGAL, Literal: msg, Pos: pos}
}

// here returns the position of the current char.
func (l *Lexer) here() token.Pos {
	return token.Pos{
		Offset: l.position,
		Line:   l.line,
		Column: l.position - l.lineStart + 1,
	}
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.lineStart = l.readPosition
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = len(l.input)
		l.readPosition = len(l.input) + 1
		return
	}
	l.ch = l.input[l.readPosition]
	l.position = l.readPosition
	l.readPosition++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) atEOF() bool {
	return l.position >= len(l.input)
}

// readIdentifier reads an identifier.
func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

// readVariable reads a sigil followed by an identifier.
func (l *Lexer) readVariable(start token.Pos) token.Token {
	sigil := l.ch
	if !isLetter(l.peekChar()) {
		return l.fail(start, fmt.Sprintf("sigil %q must be followed by a variable name", sigil))
	}
	l.readChar()
	l.readIdentifier()
	start.Length = l.position - start.Offset
	return token.Token{Type: token.VAR, Literal: l.input[start.Offset:l.position], Pos: start}
}

// readNumber reads an integer, hexadecimal or real literal with an optional unit suffix.
func (l *Lexer) readNumber(start token.Pos) token.Token {
	position := l.position
	tokType := token.TokenType(token.INT)

	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar() // consume '0'
		l.readChar() // consume 'x' or 'X'
		if !isHexDigit(l.ch) {
			return l.fail(start, "hexadecimal literal has no digits")
		}
		for isHexDigit(l.ch) {
			l.readChar()
		}
	} else {
		for isDigit(l.ch) {
			l.readChar()
		}
		if l.ch == '.' && isDigit(l.peekChar()) {
			tokType = token.REAL
			l.readChar() // consume '.'
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	literal := l.input[position:l.position]

	var unit string
	if isLetter(l.ch) {
		suffixPos := l.here()
		suffix := l.readIdentifier()
		suffixPos.Length = len(suffix)
		if _, err := value.ParseSuffix(suffix); err != nil {
			return l.fail(suffixPos, fmt.Sprintf("invalid unit suffix %q", suffix))
		}
		unit = suffix
	}

	start.Length = l.position - start.Offset
	return token.Token{Type: tokType, Literal: literal, Unit: unit, Pos: start}
}

// readString reads a string literal, decoding escapes and {$var} interpolations.
func (l *Lexer) readString(start token.Pos) token.Token {
	var segments []token.Segment
	var text strings.Builder
	textPos := token.Pos{}
	flush := func() {
		if text.Len() > 0 {
			segments = append(segments, token.Segment{Text: text.String(), Pos: textPos})
			text.Reset()
		}
	}

	l.readChar() // consume opening quote
	for {
		if l.atEOF() || l.ch == '\n' {
			return l.fail(start, "unterminated string literal")
		}
		if l.ch == '"' {
			break
		}
		if text.Len() == 0 {
			textPos = l.here()
		}
		switch l.ch {
		case '\\':
			escPos := l.here()
			escPos.Length = 2
			l.readChar()
			switch l.ch {
			case 'n':
				text.WriteByte('\n')
			case 't':
				text.WriteByte('\t')
			case 'r':
				text.WriteByte('\r')
			case '"', '\\', '{', '}':
				text.WriteByte(l.ch)
			default:
				if l.atEOF() {
					return l.fail(start, "unterminated string literal")
				}
				escPos.Length = 1
				return l.fail(escPos, fmt.Sprintf("invalid escape sequence \\%c", l.ch))
			}
			l.readChar()
		case '{':
			flush()
			varPos := l.here()
			l.readChar()
			if _, ok := token.Sigils[l.ch]; !ok || !isLetter(l.peekChar()) {
				varPos.Length = 1
				return l.fail(varPos, "string interpolation must name a variable, as in {$x}")
			}
			nameStart := l.position
			l.readChar()
			l.readIdentifier()
			name := l.input[nameStart:l.position]
			if l.ch != '}' {
				varPos.Length = l.position - varPos.Offset
				return l.fail(varPos, "unterminated string interpolation")
			}
			l.readChar()
			varPos.Length = l.position - varPos.Offset
			segments = append(segments, token.Segment{Var: name, Pos: varPos})
		default:
			text.WriteByte(l.ch)
			l.readChar()
		}
		if text.Len() > 0 {
			textPos.Length = l.position - textPos.Offset
		}
	}
	flush()
	l.readChar() // consume closing quote

	start.Length = l.position - start.Offset
	literal := ""
	for _, s := range segments {
		if s.Var == "" {
			literal += s.Text
		} else {
			literal += "{" + s.Var + "}"
		}
	}
	return token.Token{Type: token.STRING, Literal: literal, Segments: segments, Pos: start}
}

// skipWhitespaceAndComments skips blanks and comments. It returns false
// if an unterminated block comment was found.
func (l *Lexer) skipWhitespaceAndComments() bool {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r':
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			for l.ch != '\n' && !l.atEOF() {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			start := l.here()
			start.Length = 2
			l.readChar() // consume /
			l.readChar() // consume *
			for {
				if l.atEOF() {
					l.fail(start, "unterminated block comment")
					return false
				}
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar() // consume *
					l.readChar() // consume /
					break
				}
				l.readChar()
			}
		default:
			return true
		}
	}
}

// isLetter checks if a character can start an identifier.
func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

// isDigit checks if a character is a digit.
func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

// isHexDigit checks if a character is a hexadecimal digit.
func isHexDigit(ch byte) bool {
	return ('0' <= ch && ch <= '9') || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
}
