package value

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestParseSuffix(t *testing.T) {
	tests := []struct {
		input string
		unit  Unit
		exp   int
	}{
		{"s", UnitTime, 0},
		{"ms", UnitTime, -3},
		{"us", UnitTime, -6},
		{"Hz", UnitFrequency, 0},
		{"kHz", UnitFrequency, 3},
		{"B", UnitVolume, 0},
		{"dB", UnitVolume, -1},
		{"mdB", UnitVolume, -4},
		{"daB", UnitVolume, 1},
		{"hs", UnitTime, 2},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s, err := ParseSuffix(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Unit != tt.unit || s.Exp() != tt.exp {
				t.Errorf("got (%s, %d), want (%s, %d)", s.Unit, s.Exp(), tt.unit, tt.exp)
			}
		})
	}
}

func TestParseSuffixErrors(t *testing.T) {
	for _, input := range []string{"", "x", "m", "kkkHz", "Hzz", "MHz", "ks s"} {
		if _, err := ParseSuffix(input); !errors.Is(err, ErrUnknownUnit) {
			t.Errorf("ParseSuffix(%q) error = %v, want ErrUnknownUnit", input, err)
		}
	}
}

func TestNormalizeInt(t *testing.T) {
	tests := []struct {
		v      int64
		suffix string
		want   int64
		err    error
	}{
		{10, "ms", 10000, nil},
		{1, "s", 1000000, nil},
		{5, "us", 5, nil},
		{2, "kHz", 2000, nil},
		{440, "Hz", 440, nil},
		{-6, "dB", -6000, nil},
		{3, "mdB", 3, nil},
		{1, "mHz", 0, ErrNotIntegral},
		{10, "mHz", 0, ErrNotIntegral},
		{1000, "mHz", 1, nil},
		{1 << 62, "s", 0, ErrOverflow},
	}

	for _, tt := range tests {
		s, err := ParseSuffix(tt.suffix)
		if err != nil {
			t.Fatalf("ParseSuffix(%q): %v", tt.suffix, err)
		}
		got, err := NormalizeInt(tt.v, s)
		if !errors.Is(err, tt.err) {
			t.Errorf("NormalizeInt(%d, %s) error = %v, want %v", tt.v, tt.suffix, err, tt.err)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("NormalizeInt(%d, %s) = %d, want %d", tt.v, tt.suffix, got, tt.want)
		}
	}
}

func TestNormalizeReal(t *testing.T) {
	s, _ := ParseSuffix("kHz")
	if got := NormalizeReal(2.5, s); got != 2500 {
		t.Errorf("2.5kHz = %v, want 2500", got)
	}
	s, _ = ParseSuffix("ms")
	if got := NormalizeReal(1.5, s); got != 1500 {
		t.Errorf("1.5ms = %v, want 1500", got)
	}
}

// TestProperty_TimePrefixesAgree checks that the same duration written with
// different prefixes normalizes to the same microsecond count.
func TestProperty_TimePrefixesAgree(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	sec, _ := ParseSuffix("s")
	ms, _ := ParseSuffix("ms")
	us, _ := ParseSuffix("us")

	properties.Property("n s == 1000n ms == 1000000n us", prop.ForAll(
		func(n int64) bool {
			a, err1 := NormalizeInt(n, sec)
			b, err2 := NormalizeInt(n*1000, ms)
			c, err3 := NormalizeInt(n*1000000, us)
			return err1 == nil && err2 == nil && err3 == nil && a == b && b == c
		},
		gen.Int64Range(-1000000, 1000000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
