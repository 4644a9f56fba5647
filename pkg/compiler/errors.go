package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zurustar/instrscript/pkg/compiler/binder"
	"github.com/zurustar/instrscript/pkg/compiler/lexer"
	"github.com/zurustar/instrscript/pkg/compiler/parser"
	"github.com/zurustar/instrscript/pkg/compiler/token"
)

// Kind identifies the front-end phase that rejected a script.
type Kind int

const (
	KindLex Kind = iota
	KindParse
	KindBind
	// KindIO is reported by ParseFile when the source cannot be read or decoded.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindLex:
		return "lexer"
	case KindParse:
		return "parser"
	case KindBind:
		return "bind"
	case KindIO:
		return "io"
	}
	return "unknown"
}

// Diagnostic is a compile-time error with its source location.
// Offset and Length are in bytes; Line and Column are 1-indexed.
type Diagnostic struct {
	Kind    Kind
	Message string
	Offset  int
	Length  int
	Line    int
	Column  int

	// Context shows the lines around the error with a marker under the
	// offending range.
	Context string
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	if d.Context != "" {
		return fmt.Sprintf("%s error at line %d, column %d: %s\n%s",
			d.Kind, d.Line, d.Column, d.Message, d.Context)
	}
	return fmt.Sprintf("%s error at line %d, column %d: %s",
		d.Kind, d.Line, d.Column, d.Message)
}

func newDiagnostic(kind Kind, message string, pos token.Pos, source string) Diagnostic {
	return Diagnostic{
		Kind:    kind,
		Message: message,
		Offset:  pos.Offset,
		Length:  pos.Length,
		Line:    pos.Line,
		Column:  pos.Column,
		Context: GenerateErrorContext(source, pos.Line, pos.Column, pos.Length),
	}
}

// fromParseError converts the error returned by parser.Parse.
func fromParseError(err error, source string) Diagnostic {
	var le *lexer.LexError
	if errors.As(err, &le) {
		return newDiagnostic(KindLex, le.Message, le.Pos, source)
	}
	var pe *parser.ParseError
	if errors.As(err, &pe) {
		return newDiagnostic(KindParse, pe.Message, pe.Pos, source)
	}
	return Diagnostic{Kind: KindParse, Message: err.Error(), Line: 1, Column: 1}
}

func fromBindErrors(errs []*binder.BindError, source string) []Diagnostic {
	out := make([]Diagnostic, len(errs))
	for i, e := range errs {
		out[i] = newDiagnostic(KindBind, e.Message, e.Pos, source)
	}
	return out
}

// GenerateErrorContext renders up to 2 lines before and after the error line
// with line numbers, a > on the error line and a marker under the range.
//
// Example output:
//
//	  2 | on note {
//	> 3 |   $x = 1 + ;
//	    |            ^
//	  4 | }
func GenerateErrorContext(source string, line, column, length int) string {
	if source == "" || line <= 0 {
		return ""
	}

	lines := strings.Split(source, "\n")
	if line > len(lines) {
		return ""
	}

	start := max(line-3, 0)
	end := min(line+2, len(lines))
	width := len(fmt.Sprintf("%d", end))

	var buf strings.Builder
	for i := start; i < end; i++ {
		n := i + 1
		content := strings.TrimRight(lines[i], "\r")
		if n != line {
			fmt.Fprintf(&buf, "  %*d | %s\n", width, n, content)
			continue
		}
		fmt.Fprintf(&buf, "> %*d | %s\n", width, n, content)

		col := max(column, 1)
		// the marker never runs past the end of the line
		marks := 1
		if length > 1 {
			marks = min(length, len(content)-col+1)
			marks = max(marks, 1)
		}
		fmt.Fprintf(&buf, "  %*s | %s%s\n", width, "", strings.Repeat(" ", col-1), strings.Repeat("^", marks))
	}
	return buf.String()
}
