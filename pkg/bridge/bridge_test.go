package bridge

import (
	"errors"
	"testing"

	"github.com/zurustar/instrscript/pkg/value"
)

func call(t *testing.T, r *Registry, name string, args []value.Value, units []value.Unit) (*Call, value.Value, error) {
	t.Helper()
	fn, ok := r.Function(name)
	if !ok {
		t.Fatalf("function %s not registered", name)
	}
	if units == nil {
		units = make([]value.Unit, len(args))
	}
	c := &Call{
		Function:      fn,
		Args:          args,
		Units:         units,
		MicrosPerTick: 1000,
		Host:          NewRecordingHost(),
	}
	v, err := fn.Impl(c)
	return c, v, err
}

func TestRegistryDuplicates(t *testing.T) {
	r := NewRegistry()
	fn := &Function{Name: "f", Impl: func(*Call) (value.Value, error) { return void, nil }}
	if err := r.Register(fn); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(fn); !errors.Is(err, ErrDuplicate) {
		t.Errorf("second register error = %v, want ErrDuplicate", err)
	}
	if err := r.RegisterVariable(&Variable{Name: "$X", Const: true, Value: value.Int(1)}); err != nil {
		t.Fatal(err)
	}
	if err := r.RegisterVariable(&Variable{Name: "$Y"}); err == nil {
		t.Error("variable without Get should be rejected")
	}
}

func TestRegisterRejectsRequiredAfterOptional(t *testing.T) {
	r := NewRegistry()
	err := r.Register(&Function{
		Name:   "bad",
		Params: []Param{optionalInt("a", 0), intParam("b")},
		Impl:   func(*Call) (value.Value, error) { return void, nil },
	})
	if err == nil {
		t.Error("expected error")
	}
}

func TestDefaultRegistryContents(t *testing.T) {
	r := NewDefaultRegistry(WithSeed(1))
	names := []string{
		"wait", "message", "log", "abs", "min", "max", "random", "int_to_real",
		"real_to_int", "round", "sqrt", "in_range", "num_elements", "play_note",
		"note_off", "ignore_event", "exit", "get_event_par", "set_event_par",
		"change_vol", "change_tune", "change_pan", "change_cutoff", "change_reso",
		"get_engine_par", "set_engine_par", "change_lfo_freq", "change_lfo_depth",
	}
	for _, n := range names {
		if _, ok := r.Function(n); !ok {
			t.Errorf("missing function %s", n)
		}
	}
	for _, n := range []string{"$EVENT_ID", "$EVENT_NOTE", "$EVENT_VELOCITY", "$CC_NUM", "$CC_VALUE",
		"$RPN_ADDRESS", "$RPN_VALUE", "$ENGINE_UPTIME", "$NI_CALLBACK_TYPE", "$NI_CB_TYPE_NOTE"} {
		if _, ok := r.Variable(n); !ok {
			t.Errorf("missing variable %s", n)
		}
	}
	if w, _ := r.Function("wait"); !w.MaySuspend {
		t.Error("wait must be marked MaySuspend")
	}
}

func TestWait(t *testing.T) {
	r := NewDefaultRegistry()
	tests := []struct {
		name    string
		arg     int64
		unit    value.Unit
		ticks   int64
		suspend bool
	}{
		{"ticks", 10, value.UnitNone, 10, true},
		{"zero", 0, value.UnitNone, 0, false},
		{"exact micros", 5000, value.UnitTime, 5, true},
		{"rounds up", 5001, value.UnitTime, 6, true},
		{"sub tick", 1, value.UnitTime, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, err := call(t, r, "wait", []value.Value{value.Int(tt.arg)}, []value.Unit{tt.unit})
			if err != nil {
				t.Fatal(err)
			}
			ticks, ok := c.Suspended()
			if ok != tt.suspend || ticks != tt.ticks {
				t.Errorf("Suspended() = (%d, %v), want (%d, %v)", ticks, ok, tt.ticks, tt.suspend)
			}
		})
	}

	if _, _, err := call(t, r, "wait", []value.Value{value.Int(-1)}, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("negative wait error = %v", err)
	}
}

func TestMathBuiltins(t *testing.T) {
	r := NewDefaultRegistry()
	tests := []struct {
		fn   string
		args []value.Value
		want value.Value
	}{
		{"abs", []value.Value{value.Int(-5)}, value.Int(5)},
		{"min", []value.Value{value.Int(3), value.Int(-2)}, value.Int(-2)},
		{"max", []value.Value{value.Int(3), value.Int(-2)}, value.Int(3)},
		{"int_to_real", []value.Value{value.Int(3)}, value.Real(3)},
		{"real_to_int", []value.Value{value.Real(-2.7)}, value.Int(-2)},
		{"round", []value.Value{value.Real(2.5)}, value.Int(3)},
		{"sqrt", []value.Value{value.Real(16)}, value.Real(4)},
		{"in_range", []value.Value{value.Int(5), value.Int(10), value.Int(1)}, value.Int(1)},
		{"in_range", []value.Value{value.Int(11), value.Int(1), value.Int(10)}, value.Int(0)},
	}
	for _, tt := range tests {
		_, got, err := call(t, r, tt.fn, tt.args, nil)
		if err != nil {
			t.Errorf("%s: %v", tt.fn, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("%s(%v) = %v, want %v", tt.fn, tt.args, got.Format(), tt.want.Format())
		}
	}

	if _, _, err := call(t, r, "sqrt", []value.Value{value.Real(-1)}, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("sqrt(-1) error = %v", err)
	}
}

func TestReturnUnits(t *testing.T) {
	r := NewDefaultRegistry()
	minFn, _ := r.Function("min")
	if _, err := minFn.ReturnUnit([]value.Unit{value.UnitTime, value.UnitVolume}); err == nil {
		t.Error("min of mixed units should fail")
	}
	u, err := minFn.ReturnUnit([]value.Unit{value.UnitTime, value.UnitTime})
	if err != nil || u != value.UnitTime {
		t.Errorf("min unit = %s, %v", u, err)
	}

	wait, _ := r.Function("wait")
	if !wait.Params[0].Accepts(value.UnitTime) || wait.Params[0].Accepts(value.UnitFrequency) {
		t.Error("wait accepts wrong units")
	}
}

func TestPlayNoteAndParams(t *testing.T) {
	r := NewDefaultRegistry()
	host := NewRecordingHost()
	c := &Call{Host: host, Trigger: Trigger{Voice: 3}}

	play, _ := r.Function("play_note")
	c.Args = []value.Value{value.Int(60), value.Int(100), value.Int(0), value.Int(-1)}
	id, err := play.Impl(c)
	if err != nil {
		t.Fatal(err)
	}
	if id.Int != FirstEventID {
		t.Errorf("event id = %d, want %d", id.Int, FirstEventID)
	}

	vol, _ := r.Function("change_vol")
	c.Args = []value.Value{id, value.Int(-6000), value.Int(0)}
	if _, err := vol.Impl(c); err != nil {
		t.Fatal(err)
	}
	get, _ := r.Function("get_event_par")
	c.Args = []value.Value{id, value.Int(int64(ControlVolume))}
	v, err := get.Impl(c)
	if err != nil || v.Int != -6000 {
		t.Errorf("get_event_par = %d, %v", v.Int, err)
	}

	c.Args = []value.Value{id, value.Int(99)}
	if _, err := get.Impl(c); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("unknown parameter error = %v", err)
	}

	c.Args = []value.Value{value.Int(200), value.Int(100), value.Int(0), value.Int(0)}
	if _, err := play.Impl(c); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("note 200 error = %v", err)
	}

	calls := host.Calls()
	if len(calls) != 2 || calls[0].Method != "PlayNote" || calls[1].Method != "SetParam" {
		t.Errorf("calls = %+v", calls)
	}
	if calls[0].Voice != 3 {
		t.Errorf("play_note voice = %d, want 3", calls[0].Voice)
	}
}

func TestExit(t *testing.T) {
	c, _, err := call(t, NewDefaultRegistry(), "exit", nil, nil)
	if err != nil || !c.Exited() {
		t.Errorf("exit: exited=%v err=%v", c.Exited(), err)
	}
	c.Reset()
	if c.Exited() {
		t.Error("Reset did not clear exit")
	}
}
