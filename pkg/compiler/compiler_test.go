package compiler

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/zurustar/instrscript/pkg/bridge"
	"github.com/zurustar/instrscript/pkg/fileutil"
	"github.com/zurustar/instrscript/pkg/program"
)

func TestParse(t *testing.T) {
	src := `
declare polyphonic $count;
on note {
	$count = $count + 1;
	play_note($EVENT_NOTE + 12, $EVENT_VELOCITY, 0, 500ms);
	wait 10ms;
	message("note {$EVENT_NOTE}");
}
`
	prog, diags := Parse(src, bridge.NewDefaultRegistry())
	if len(diags) > 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if !prog.HasHandler(program.EventNote) {
		t.Error("note handler missing")
	}
	if prog.HasHandler(program.EventRelease) {
		t.Error("release handler should be absent")
	}
	if prog.Source != src {
		t.Error("program does not keep its source")
	}
}

func TestParseDiagnostics(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		kind   Kind
		offset int
		count  int
	}{
		{"unterminated handler", "on note { ", KindParse, 10, 1},
		{"lexer error", "on note { message(\"a\\q\"); }", KindLex, 20, 1},
		{"illegal character", "on note { # }", KindLex, 10, 1},
		{"bind errors collected", "on note { $a = 1; $b = 2; }", KindBind, 10, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, diags := Parse(tt.input, bridge.NewDefaultRegistry())
			if prog != nil {
				t.Fatal("expected rejection")
			}
			if len(diags) != tt.count {
				t.Fatalf("got %d diagnostics, want %d: %v", len(diags), tt.count, diags)
			}
			d := diags[0]
			if d.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", d.Kind, tt.kind)
			}
			if d.Offset != tt.offset {
				t.Errorf("offset = %d, want %d (%s)", d.Offset, tt.offset, d.Message)
			}
			if d.Line != 1 || d.Context == "" {
				t.Errorf("line = %d, context = %q", d.Line, d.Context)
			}
		})
	}
}

func TestDiagnosticError(t *testing.T) {
	d := &Diagnostic{Kind: KindParse, Message: "expected ;", Line: 3, Column: 5}
	for _, want := range []string{"parser error", "line 3", "column 5", "expected ;"} {
		if !strings.Contains(d.Error(), want) {
			t.Errorf("Error() = %q, want to contain %q", d.Error(), want)
		}
	}

	errs := Errors([]Diagnostic{*d, {Kind: KindBind, Message: "x"}})
	if len(errs) != 2 || !strings.Contains(errs[1].Error(), "bind error") {
		t.Errorf("Errors() = %v", errs)
	}
}

func TestGenerateErrorContext(t *testing.T) {
	source := "on note {\n  $x = 1 + ;\n}"
	got := GenerateErrorContext(source, 2, 12, 1)
	want := "  1 | on note {\n" +
		"> 2 |   $x = 1 + ;\n" +
		"    |            ^\n" +
		"  3 | }\n"
	if got != want {
		t.Errorf("context =\n%s\nwant\n%s", got, want)
	}

	ranged := GenerateErrorContext("$abc = 1;", 1, 1, 4)
	if !strings.Contains(ranged, "| ^^^^\n") {
		t.Errorf("range marker missing:\n%s", ranged)
	}

	if GenerateErrorContext("", 1, 1, 1) != "" || GenerateErrorContext("x", 5, 1, 1) != "" {
		t.Error("out of range context should be empty")
	}
}

func TestParseFile(t *testing.T) {
	// "あ" in Shift-JIS
	sjis := []byte("on init { message(\"\x82\xa0\"); }")
	fsys := fstest.MapFS{
		"Patches/Lead.TXT": {Data: sjis},
		"broken.txt":       {Data: []byte("on note {")},
	}

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	prog, diags := ParseFile(fsys, "Patches/lead.txt", bridge.NewDefaultRegistry(),
		Options{Encoding: fileutil.EncodingShiftJIS, Logger: logger})
	if len(diags) > 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if !strings.Contains(prog.Source, "あ") {
		t.Errorf("source not decoded: %q", prog.Source)
	}
	if !strings.Contains(logs.String(), "script compiled") {
		t.Errorf("missing compile log: %s", logs.String())
	}

	logs.Reset()
	_, diags = ParseFile(fsys, "broken.txt", bridge.NewDefaultRegistry(), Options{Logger: logger})
	if len(diags) != 1 || diags[0].Kind != KindParse {
		t.Fatalf("diagnostics = %v", diags)
	}
	if !strings.Contains(logs.String(), "script rejected") {
		t.Errorf("missing rejection log: %s", logs.String())
	}

	_, diags = ParseFile(fsys, "missing.txt", bridge.NewDefaultRegistry(), Options{})
	if len(diags) != 1 || diags[0].Kind != KindIO {
		t.Errorf("missing file diagnostics = %v", diags)
	}
}
