package value

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Unit is the standard unit an expression is measured in. Values carrying a
// unit are always stored in the unit's canonical scale (see CanonicalName).
type Unit uint8

const (
	UnitNone Unit = iota
	UnitTime
	UnitFrequency
	UnitVolume
)

var unitSymbols = map[string]Unit{
	"s":  UnitTime,
	"Hz": UnitFrequency,
	"B":  UnitVolume,
}

// canonicalExp is the power of ten between the base unit and its canonical
// scale: seconds are stored as microseconds, bels as millidecibels.
var canonicalExp = map[Unit]int{
	UnitTime:      6,
	UnitFrequency: 0,
	UnitVolume:    4,
}

func (u Unit) String() string {
	switch u {
	case UnitNone:
		return "none"
	case UnitTime:
		return "time"
	case UnitFrequency:
		return "frequency"
	case UnitVolume:
		return "volume"
	}
	return "unknown"
}

// CanonicalName returns the symbol of the canonical scale, used in diagnostics.
func (u Unit) CanonicalName() string {
	switch u {
	case UnitTime:
		return "us"
	case UnitFrequency:
		return "Hz"
	case UnitVolume:
		return "mdB"
	}
	return ""
}

// MetricPrefix is one of the supported decimal prefixes.
type MetricPrefix struct {
	Symbol string
	Exp    int
}

// prefixes is ordered so that "da" is tried before "d".
var prefixes = []MetricPrefix{
	{"da", 1},
	{"k", 3},
	{"h", 2},
	{"d", -1},
	{"c", -2},
	{"m", -3},
	{"u", -6},
}

// MaxPrefixes is the number of prefixes a unit suffix may stack (as in "mdB").
const MaxPrefixes = 2

// Suffix is a parsed unit suffix of a numeric literal.
type Suffix struct {
	Prefixes []MetricPrefix
	Unit     Unit
}

// Exp returns the sum of the prefix exponents.
func (s Suffix) Exp() int {
	e := 0
	for _, p := range s.Prefixes {
		e += p.Exp
	}
	return e
}

func (s Suffix) String() string {
	var b strings.Builder
	for _, p := range s.Prefixes {
		b.WriteString(p.Symbol)
	}
	for sym, u := range unitSymbols {
		if u == s.Unit {
			b.WriteString(sym)
		}
	}
	return b.String()
}

// ErrUnknownUnit is returned by ParseSuffix for suffixes outside the unit table.
var ErrUnknownUnit = errors.New("unknown unit suffix")

// ParseSuffix parses a literal suffix such as "ms", "kHz" or "mdB".
func ParseSuffix(s string) (Suffix, error) {
	rest := s
	var out Suffix
	for {
		if u, ok := unitSymbols[rest]; ok {
			out.Unit = u
			return out, nil
		}
		if len(out.Prefixes) == MaxPrefixes {
			break
		}
		matched := false
		for _, p := range prefixes {
			if strings.HasPrefix(rest, p.Symbol) && len(rest) > len(p.Symbol) {
				out.Prefixes = append(out.Prefixes, p)
				rest = rest[len(p.Symbol):]
				matched = true
				break
			}
		}
		if !matched {
			break
		}
	}
	return Suffix{}, fmt.Errorf("%w: %q", ErrUnknownUnit, s)
}

// ErrNotIntegral is returned when an integer literal cannot be represented
// exactly in the canonical scale of its unit.
var ErrNotIntegral = errors.New("value is not integral in canonical scale")

// ErrOverflow is returned when scaling overflows int64.
var ErrOverflow = errors.New("value overflows after scaling")

// NormalizeInt scales an integer literal with suffix into the canonical scale.
func NormalizeInt(v int64, s Suffix) (int64, error) {
	e := s.Exp() + canonicalExp[s.Unit]
	for ; e > 0; e-- {
		if v > math.MaxInt64/10 || v < math.MinInt64/10 {
			return 0, ErrOverflow
		}
		v *= 10
	}
	for ; e < 0; e++ {
		if v%10 != 0 {
			return 0, ErrNotIntegral
		}
		v /= 10
	}
	return v, nil
}

// NormalizeReal scales a real literal with suffix into the canonical scale.
func NormalizeReal(v float64, s Suffix) float64 {
	e := s.Exp() + canonicalExp[s.Unit]
	return v * math.Pow10(e)
}
