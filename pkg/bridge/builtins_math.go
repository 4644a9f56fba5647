package bridge

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/zurustar/instrscript/pkg/value"
)

func anyUnitInt(name string) Param {
	return Param{Name: name, Type: value.TypeInt, AnyUnit: true}
}

func anyUnitReal(name string) Param {
	return Param{Name: name, Type: value.TypeReal, AnyUnit: true}
}

// mathBuiltins registers the arithmetic helpers. Unit-carrying arguments keep
// their unit through abs/min/max and the int/real conversions.
func mathBuiltins(rng *rand.Rand) []*Function {
	return []*Function{
		{
			Name:       "abs",
			Params:     []Param{anyUnitInt("x")},
			Return:     value.TypeInt,
			ReturnUnit: firstUnit,
			Impl: func(c *Call) (value.Value, error) {
				x := c.Args[0].Int
				if x < 0 {
					x = -x
				}
				return value.Int(x), nil
			},
		},
		{
			Name:       "min",
			Params:     []Param{anyUnitInt("a"), anyUnitInt("b")},
			Return:     value.TypeInt,
			ReturnUnit: sameUnit,
			Impl: func(c *Call) (value.Value, error) {
				return value.Int(min(c.Args[0].Int, c.Args[1].Int)), nil
			},
		},
		{
			Name:       "max",
			Params:     []Param{anyUnitInt("a"), anyUnitInt("b")},
			Return:     value.TypeInt,
			ReturnUnit: sameUnit,
			Impl: func(c *Call) (value.Value, error) {
				return value.Int(max(c.Args[0].Int, c.Args[1].Int)), nil
			},
		},
		{
			// random(min, max) returns an int in [min, max]
			Name:       "random",
			Params:     []Param{anyUnitInt("min"), anyUnitInt("max")},
			Return:     value.TypeInt,
			ReturnUnit: sameUnit,
			Impl: func(c *Call) (value.Value, error) {
				lo, hi := c.Args[0].Int, c.Args[1].Int
				if hi < lo {
					lo, hi = hi, lo
				}
				span := uint64(hi - lo)
				if span == math.MaxUint64 {
					return value.Int(int64(rng.Uint64())), nil
				}
				return value.Int(lo + int64(rng.Uint64N(span+1))), nil
			},
		},
		{
			Name:       "int_to_real",
			Params:     []Param{anyUnitInt("x")},
			Return:     value.TypeReal,
			ReturnUnit: firstUnit,
			Impl: func(c *Call) (value.Value, error) {
				return value.Real(float64(c.Args[0].Int)), nil
			},
		},
		{
			// real_to_int truncates toward zero
			Name:       "real_to_int",
			Params:     []Param{anyUnitReal("x")},
			Return:     value.TypeInt,
			ReturnUnit: firstUnit,
			Impl: func(c *Call) (value.Value, error) {
				return realToInt(c.Args[0].Real, math.Trunc)
			},
		},
		{
			Name:       "round",
			Params:     []Param{anyUnitReal("x")},
			Return:     value.TypeInt,
			ReturnUnit: firstUnit,
			Impl: func(c *Call) (value.Value, error) {
				return realToInt(c.Args[0].Real, math.Round)
			},
		},
		{
			Name:   "sqrt",
			Params: []Param{{Name: "x", Type: value.TypeReal}},
			Return: value.TypeReal,
			Impl: func(c *Call) (value.Value, error) {
				x := c.Args[0].Real
				if x < 0 {
					return void, fmt.Errorf("%w: sqrt of negative number %g", ErrInvalidArgument, x)
				}
				return value.Real(math.Sqrt(x)), nil
			},
		},
		{
			// in_range(x, a, b) is 1 when x lies between a and b inclusive
			Name:   "in_range",
			Params: []Param{anyUnitInt("x"), anyUnitInt("a"), anyUnitInt("b")},
			Return: value.TypeInt,
			ReturnUnit: func(args []value.Unit) (value.Unit, error) {
				if _, err := sameUnit(args); err != nil {
					return value.UnitNone, err
				}
				return value.UnitNone, nil
			},
			Impl: func(c *Call) (value.Value, error) {
				x, lo, hi := c.Args[0].Int, c.Args[1].Int, c.Args[2].Int
				if hi < lo {
					lo, hi = hi, lo
				}
				return value.Bool(x >= lo && x <= hi), nil
			},
		},
	}
}

func realToInt(f float64, conv func(float64) float64) (value.Value, error) {
	if math.IsNaN(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return void, fmt.Errorf("%w: %g cannot be converted to int", ErrInvalidArgument, f)
	}
	return value.Int(int64(conv(f))), nil
}
