package fileutil

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// Encoding はスクリプトファイルの文字コード
type Encoding int

const (
	// EncodingAuto は UTF-8 として妥当ならそのまま、そうでなければ Shift-JIS とみなす
	EncodingAuto Encoding = iota
	EncodingUTF8
	EncodingShiftJIS
	EncodingWindows1252
)

func (e Encoding) String() string {
	switch e {
	case EncodingAuto:
		return "auto"
	case EncodingUTF8:
		return "utf-8"
	case EncodingShiftJIS:
		return "shift-jis"
	case EncodingWindows1252:
		return "windows-1252"
	}
	return "unknown"
}

// ParseEncoding はコマンドライン等で指定された文字コード名を解釈する
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "", "auto":
		return EncodingAuto, nil
	case "utf-8", "utf8":
		return EncodingUTF8, nil
	case "shift-jis", "sjis", "shiftjis", "cp932":
		return EncodingShiftJIS, nil
	case "windows-1252", "cp1252", "latin1":
		return EncodingWindows1252, nil
	}
	return EncodingAuto, fmt.Errorf("unknown encoding %q", name)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode はバイト列を UTF-8 文字列に変換する
func Decode(data []byte, enc Encoding) (string, error) {
	if enc == EncodingAuto {
		if utf8.Valid(data) {
			enc = EncodingUTF8
		} else {
			enc = EncodingShiftJIS
		}
	}

	var decoder *encoding.Decoder
	switch enc {
	case EncodingUTF8:
		data = bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(data) {
			return "", fmt.Errorf("source is not valid UTF-8")
		}
		return string(data), nil
	case EncodingShiftJIS:
		decoder = japanese.ShiftJIS.NewDecoder()
	case EncodingWindows1252:
		decoder = charmap.Windows1252.NewDecoder()
	default:
		return "", fmt.Errorf("unsupported encoding %s", enc)
	}

	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), decoder))
	if err != nil {
		return "", fmt.Errorf("failed to decode %s source: %w", enc, err)
	}
	return string(out), nil
}
