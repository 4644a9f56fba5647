package fileutil

import (
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"
)

func TestFindFile(t *testing.T) {
	fsys := fstest.MapFS{
		"Lead.txt":          {Data: []byte("lead")},
		"UPPERCASE.SF2":     {Data: []byte("sf")},
		"patches/pad.txt":   {Data: []byte("pad")},
		"patches/Bass.TXT":  {Data: []byte("bass")},
		"patches/sub/x.txt": {Data: []byte("x")},
	}

	tests := []struct {
		name     string
		dir      string
		search   string
		expected string
		found    bool
	}{
		{"exact match", ".", "Lead.txt", "Lead.txt", true},
		{"lowercase search", ".", "lead.txt", "Lead.txt", true},
		{"uppercase search", ".", "LEAD.TXT", "Lead.txt", true},
		{"mixed case search for uppercase file", ".", "Uppercase.sf2", "UPPERCASE.SF2", true},
		{"subdirectory", "patches", "bass.txt", "patches/Bass.TXT", true},
		{"directories are skipped", "patches", "SUB", "", false},
		{"missing file", ".", "none.txt", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindFile(fsys, tt.dir, tt.search)
			if !tt.found {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				if !errors.Is(err, fs.ErrNotExist) {
					t.Errorf("error %v is not fs.ErrNotExist", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("FindFile() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestReadFile(t *testing.T) {
	fsys := fstest.MapFS{
		"patches/Bass.TXT": {Data: []byte("bass")},
	}
	for _, name := range []string{"patches/Bass.TXT", "patches/bass.txt", "/patches/BASS.txt", "patches\\bass.txt"} {
		data, err := ReadFile(fsys, name)
		if err != nil {
			t.Errorf("ReadFile(%q): %v", name, err)
			continue
		}
		if string(data) != "bass" {
			t.Errorf("ReadFile(%q) = %q", name, data)
		}
	}
	if _, err := ReadFile(fsys, "patches/none.txt"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing file error = %v", err)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		enc  Encoding
		want string
	}{
		{"utf-8", []byte("on note {}"), EncodingUTF8, "on note {}"},
		{"utf-8 bom", append([]byte{0xEF, 0xBB, 0xBF}, "x"...), EncodingUTF8, "x"},
		{"shift-jis", []byte{'"', 0x82, 0xA0, '"'}, EncodingShiftJIS, "\"あ\""},
		{"windows-1252", []byte{'"', 'c', 0xE9, '"'}, EncodingWindows1252, "\"cé\""},
		{"auto utf-8", []byte("\"あ\""), EncodingAuto, "\"あ\""},
		{"auto shift-jis", []byte{'"', 0x82, 0xA0, '"'}, EncodingAuto, "\"あ\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.data, tt.enc)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode() = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := Decode([]byte{0xFF, 0xFE}, EncodingUTF8); err == nil {
		t.Error("invalid UTF-8 accepted")
	}
}

func TestParseEncoding(t *testing.T) {
	tests := map[string]Encoding{
		"":             EncodingAuto,
		"UTF-8":        EncodingUTF8,
		"sjis":         EncodingShiftJIS,
		"Shift_JIS":    EncodingShiftJIS,
		"windows-1252": EncodingWindows1252,
	}
	for in, want := range tests {
		got, err := ParseEncoding(in)
		if err != nil || got != want {
			t.Errorf("ParseEncoding(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseEncoding("ebcdic"); err == nil {
		t.Error("ParseEncoding accepted an unknown encoding")
	}
}
