package bridge

import (
	"fmt"
	"math/rand/v2"

	"github.com/zurustar/instrscript/pkg/value"
)

// Option configures the default registry.
type Option func(*defaults)

type defaults struct {
	rng *rand.Rand
}

// WithSeed makes random() deterministic.
func WithSeed(seed uint64) Option {
	return func(d *defaults) {
		d.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// NewDefaultRegistry creates a registry holding every built-in function and
// variable.
func NewDefaultRegistry(opts ...Option) *Registry {
	d := &defaults{}
	for _, opt := range opts {
		opt(d)
	}
	if d.rng == nil {
		d.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	r := NewRegistry()
	r.mustRegister(timingBuiltins()...)
	r.mustRegister(messageBuiltins()...)
	r.mustRegister(mathBuiltins(d.rng)...)
	r.mustRegister(arrayBuiltins()...)
	r.mustRegister(eventBuiltins()...)
	r.mustRegister(parameterBuiltins()...)
	r.mustRegister(lfoBuiltins()...)
	for _, v := range builtinVariables() {
		if err := r.RegisterVariable(v); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) mustRegister(fns ...*Function) {
	for _, fn := range fns {
		if err := r.Register(fn); err != nil {
			panic(err)
		}
	}
}

var void = value.Value{Type: value.TypeVoid}

func intParam(name string, units ...value.Unit) Param {
	return Param{Name: name, Type: value.TypeInt, Units: units}
}

func optionalInt(name string, def int64, units ...value.Unit) Param {
	return Param{Name: name, Type: value.TypeInt, Units: units, Optional: true, Default: value.Int(def)}
}

// sameUnit is a ReturnUnit that requires every argument to share one unit.
func sameUnit(args []value.Unit) (value.Unit, error) {
	if len(args) == 0 {
		return value.UnitNone, nil
	}
	for _, u := range args[1:] {
		if u != args[0] {
			return value.UnitNone, fmt.Errorf("arguments have different units (%s and %s)", args[0], u)
		}
	}
	return args[0], nil
}

// firstUnit is a ReturnUnit that passes the first argument's unit through.
func firstUnit(args []value.Unit) (value.Unit, error) {
	if len(args) == 0 {
		return value.UnitNone, nil
	}
	return args[0], nil
}

func timingBuiltins() []*Function {
	return []*Function{
		{
			// wait(ticks) or wait(duration); zero continues immediately
			Name:       "wait",
			Params:     []Param{intParam("duration", value.UnitTime)},
			Return:     value.TypeVoid,
			MaySuspend: true,
			Impl: func(c *Call) (value.Value, error) {
				d := c.Args[0].Int
				if d < 0 {
					return void, fmt.Errorf("%w: negative wait duration %d", ErrInvalidArgument, d)
				}
				ticks := d
				if c.Units[0] == value.UnitTime {
					ticks = c.MicrosToTicks(d)
				}
				if ticks > 0 {
					c.Suspend(ticks)
				}
				return void, nil
			},
		},
	}
}

func messageBuiltins() []*Function {
	return []*Function{
		{
			Name:   "message",
			Params: []Param{{Name: "text", Type: value.TypeString, AnyScalar: true, AnyUnit: true}},
			Return: value.TypeVoid,
			Impl: func(c *Call) (value.Value, error) {
				c.Host.Print(c.Args[0].Str)
				return void, nil
			},
		},
		{
			Name:   "log",
			Params: []Param{{Name: "text", Type: value.TypeString, AnyScalar: true, AnyUnit: true}},
			Return: value.TypeVoid,
			Impl: func(c *Call) (value.Value, error) {
				if c.Log != nil {
					c.Log.Info("script log", "message", c.Args[0].Str, "instance", c.Instance, "tick", c.Tick)
				}
				return void, nil
			},
		},
	}
}

func arrayBuiltins() []*Function {
	return []*Function{
		{
			Name:   "num_elements",
			Params: []Param{{Name: "array", Type: value.TypeIntArray, AnyArray: true}},
			Return: value.TypeInt,
			Impl: func(c *Call) (value.Value, error) {
				return value.Int(int64(c.Args[0].Arr.Len())), nil
			},
		},
	}
}

func eventBuiltins() []*Function {
	return []*Function{
		{
			// play_note(note, velocity, offset, duration); duration 0 plays the
			// whole sample, -1 holds until the triggering note is released
			Name: "play_note",
			Params: []Param{
				intParam("note"),
				intParam("velocity"),
				optionalInt("offset", 0, value.UnitTime),
				optionalInt("duration", 0, value.UnitTime),
			},
			Return: value.TypeInt,
			Impl: func(c *Call) (value.Value, error) {
				note, vel := c.Args[0].Int, c.Args[1].Int
				if note < 0 || note > 127 {
					return void, fmt.Errorf("%w: note %d out of range 0..127", ErrInvalidArgument, note)
				}
				if vel < 0 || vel > 127 {
					return void, fmt.Errorf("%w: velocity %d out of range 0..127", ErrInvalidArgument, vel)
				}
				id := c.Host.PlayNote(c.Trigger.Voice, note, vel, c.Args[2].Int, c.Args[3].Int)
				return value.Int(id), nil
			},
		},
		{
			Name:   "note_off",
			Params: []Param{intParam("event"), optionalInt("velocity", 127)},
			Return: value.TypeVoid,
			Impl: func(c *Call) (value.Value, error) {
				c.Host.NoteOff(c.Args[0].Int, c.Args[1].Int)
				return void, nil
			},
		},
		{
			Name:   "ignore_event",
			Params: []Param{intParam("event")},
			Return: value.TypeVoid,
			Impl: func(c *Call) (value.Value, error) {
				c.Host.IgnoreEvent(c.Args[0].Int)
				return void, nil
			},
		},
		{
			Name:   "exit",
			Return: value.TypeVoid,
			Impl: func(c *Call) (value.Value, error) {
				c.Exit()
				return void, nil
			},
		},
	}
}

func checkControl(v int64) (Control, error) {
	c := Control(v)
	if _, ok := controlNames[c]; !ok {
		return 0, fmt.Errorf("%w: unknown parameter %d", ErrInvalidArgument, v)
	}
	return c, nil
}

// changeParam builds change_vol, change_tune and friends.
func changeParam(name string, ctl Control, units ...value.Unit) *Function {
	return &Function{
		Name:   name,
		Params: []Param{intParam("event"), intParam("value", units...), optionalInt("relative", 0)},
		Return: value.TypeVoid,
		Impl: func(c *Call) (value.Value, error) {
			c.Host.SetParam(c.Args[0].Int, ctl, c.Args[1].Int, c.Args[2].Int != 0)
			return void, nil
		},
	}
}

func parameterBuiltins() []*Function {
	return []*Function{
		{
			Name:   "get_event_par",
			Params: []Param{intParam("event"), intParam("param")},
			Return: value.TypeInt,
			Impl: func(c *Call) (value.Value, error) {
				ctl, err := checkControl(c.Args[1].Int)
				if err != nil {
					return void, err
				}
				return value.Int(c.Host.GetParam(c.Args[0].Int, ctl)), nil
			},
		},
		{
			Name:   "set_event_par",
			Params: []Param{intParam("event"), intParam("param"), intParam("value")},
			Return: value.TypeVoid,
			Impl: func(c *Call) (value.Value, error) {
				ctl, err := checkControl(c.Args[1].Int)
				if err != nil {
					return void, err
				}
				c.Host.SetParam(c.Args[0].Int, ctl, c.Args[2].Int, false)
				return void, nil
			},
		},
		changeParam("change_vol", ControlVolume, value.UnitVolume),
		changeParam("change_tune", ControlTune),
		changeParam("change_pan", ControlPan),
		changeParam("change_cutoff", ControlCutoff, value.UnitFrequency),
		changeParam("change_reso", ControlResonance),
		{
			Name:   "get_engine_par",
			Params: []Param{intParam("param")},
			Return: value.TypeInt,
			Impl: func(c *Call) (value.Value, error) {
				ctl, err := checkControl(c.Args[0].Int)
				if err != nil {
					return void, err
				}
				return value.Int(c.Host.GetParam(0, ctl)), nil
			},
		},
		{
			Name:   "set_engine_par",
			Params: []Param{intParam("param"), intParam("value")},
			Return: value.TypeVoid,
			Impl: func(c *Call) (value.Value, error) {
				ctl, err := checkControl(c.Args[0].Int)
				if err != nil {
					return void, err
				}
				c.Host.SetParam(0, ctl, c.Args[1].Int, false)
				return void, nil
			},
		},
	}
}

func lfoBuiltins() []*Function {
	return []*Function{
		{
			Name:   "change_lfo_freq",
			Params: []Param{intParam("event"), {Name: "frequency", Type: value.TypeInt, Units: []value.Unit{value.UnitFrequency}}},
			Return: value.TypeVoid,
			Impl: func(c *Call) (value.Value, error) {
				if c.Args[1].Int < 0 {
					return void, fmt.Errorf("%w: negative LFO frequency", ErrInvalidArgument)
				}
				c.Host.SetLFO(c.Args[0].Int, LFOFrequency, c.Args[1].Int)
				return void, nil
			},
		},
		{
			Name:   "change_lfo_depth",
			Params: []Param{intParam("event"), intParam("depth")},
			Return: value.TypeVoid,
			Impl: func(c *Call) (value.Value, error) {
				c.Host.SetLFO(c.Args[0].Int, LFODepth, c.Args[1].Int)
				return void, nil
			},
		},
	}
}
