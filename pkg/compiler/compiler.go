// Package compiler is the front end of the instrument script engine.
// It turns source text into a bound, immutable program.Program through three
// phases:
//  1. Lexer: tokenization
//  2. Parser: syntax tree
//  3. Binder: name resolution, type and unit checking, constant folding
//
// The first lexer or parser error stops the pipeline; bind errors are
// collected and reported together in source order.
package compiler

import (
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/zurustar/instrscript/pkg/bridge"
	"github.com/zurustar/instrscript/pkg/compiler/binder"
	"github.com/zurustar/instrscript/pkg/compiler/parser"
	"github.com/zurustar/instrscript/pkg/fileutil"
	"github.com/zurustar/instrscript/pkg/program"
)

// Options configures ParseFile.
type Options struct {
	// Encoding of the source file. EncodingAuto treats invalid UTF-8 as Shift-JIS.
	Encoding fileutil.Encoding

	// Logger receives one record per diagnostic. Nil disables logging.
	Logger *slog.Logger
}

// Parse compiles source against the functions and variables in reg.
// On success the diagnostics are nil.
func Parse(source string, reg *bridge.Registry) (*program.Program, []Diagnostic) {
	tree, err := parser.Parse(source)
	if err != nil {
		return nil, []Diagnostic{fromParseError(err, source)}
	}

	prog, errs := binder.Bind(tree, reg, source)
	if len(errs) > 0 {
		return nil, fromBindErrors(errs, source)
	}
	return prog, nil
}

// ParseFile reads path from fsys, decodes it and compiles it. The lookup
// falls back to a case-insensitive match.
func ParseFile(fsys fs.FS, path string, reg *bridge.Registry, opts Options) (*program.Program, []Diagnostic) {
	data, err := fileutil.ReadFile(fsys, path)
	if err != nil {
		return nil, []Diagnostic{{Kind: KindIO, Message: fmt.Sprintf("failed to read %s: %v", path, err)}}
	}
	source, err := fileutil.Decode(data, opts.Encoding)
	if err != nil {
		return nil, []Diagnostic{{Kind: KindIO, Message: fmt.Sprintf("failed to decode %s: %v", path, err)}}
	}

	prog, diags := Parse(source, reg)
	if opts.Logger != nil {
		for _, d := range diags {
			opts.Logger.Error("script rejected",
				"file", path,
				"kind", d.Kind.String(),
				"line", d.Line,
				"column", d.Column,
				"message", d.Message)
		}
		if prog != nil {
			opts.Logger.Debug("script compiled",
				"file", path,
				"encoding", opts.Encoding.String(),
				"globals", len(prog.Globals),
				"functions", len(prog.Functions))
		}
	}
	return prog, diags
}

// Errors converts diagnostics to a slice of errors.
func Errors(diags []Diagnostic) []error {
	out := make([]error, len(diags))
	for i := range diags {
		out[i] = &diags[i]
	}
	return out
}
