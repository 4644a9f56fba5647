package vm

import (
	"bytes"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/zurustar/instrscript/pkg/bridge"
	"github.com/zurustar/instrscript/pkg/compiler"
	"github.com/zurustar/instrscript/pkg/program"
	"github.com/zurustar/instrscript/pkg/value"
)

func compile(t *testing.T, src string) *program.Program {
	t.Helper()
	prog, diags := compiler.Parse(src, bridge.NewDefaultRegistry())
	if len(diags) > 0 {
		t.Fatalf("compile failed: %v", compiler.Errors(diags))
	}
	return prog
}

type fixture struct {
	patch *Patch
	host  *bridge.RecordingHost
	logs  *bytes.Buffer
	next  uint64
}

func newFixture(t *testing.T, src string, opts ...Option) *fixture {
	t.Helper()
	host := bridge.NewRecordingHost()
	logs := &bytes.Buffer{}
	log := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	opts = append([]Option{WithHost(host), WithLogger(log)}, opts...)
	return &fixture{patch: NewPatch(compile(t, src), nil, opts...), host: host, logs: logs}
}

func (fx *fixture) start(t *testing.T, event program.EventType, trig Trigger) *Instance {
	t.Helper()
	fx.next++
	in := NewInstance()
	if !in.Reset(fx.patch, fx.next, event, trig) {
		t.Fatalf("no %s handler", event)
	}
	return in
}

func (fx *fixture) global(t *testing.T, name string) value.Value {
	t.Helper()
	v, ok := fx.patch.Global(name)
	if !ok {
		t.Fatalf("no global %s", name)
	}
	return v
}

func TestCompletesWithoutSuspension(t *testing.T) {
	fx := newFixture(t, `
declare $sum;
on note {
	declare $i;
	for $i = 1 to 10 {
		if ($i mod 2 == 0) { continue; }
		$sum = $sum + $i;
		if ($i >= 7) { break; }
	}
	while ($i < 100) {
		$i = $i * 2;
	}
	select ($i) {
		case 0 to 99 { $sum = -1; }
		case 100 to 200 { $sum = $sum + 1000; }
		default { $sum = -2; }
	}
}
`)
	in := fx.start(t, program.EventNote, Trigger{Voice: 1})
	res := in.Advance(0)
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s (%v), want completed", res.Status, res.Fault)
	}
	// 1 + 3 + 5 + 7, then $i = 7 doubles to 112
	if got := fx.global(t, "$sum").Int; got != 1016 {
		t.Errorf("$sum = %d, want 1016", got)
	}
}

func TestWaitSuspendsAndResumes(t *testing.T) {
	fx := newFixture(t, `
on note {
	wait(10);
	log("after wait");
}
`)
	in := fx.start(t, program.EventNote, Trigger{Voice: 1})

	res := in.Advance(5)
	if res.Status != StatusSuspended || res.ResumeTick != 15 {
		t.Fatalf("result = %+v, want suspended until 15", res)
	}
	if strings.Contains(fx.logs.String(), "after wait") {
		t.Fatal("log ran before the wait elapsed")
	}

	if res := in.Advance(14); res.Status != StatusSuspended {
		t.Fatalf("early advance changed status to %s", res.Status)
	}
	if res := in.Advance(15); res.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", res.Status)
	}
	if n := strings.Count(fx.logs.String(), "after wait"); n != 1 {
		t.Errorf("logged %d times, want 1", n)
	}
}

func TestHugeWaitSaturates(t *testing.T) {
	fx := newFixture(t, `
on note {
	declare $d = 9223372036854775807;
	wait($d);
	message("woke");
}
`)
	in := fx.start(t, program.EventNote, Trigger{Voice: 1})

	res := in.Advance(100)
	if res.Status != StatusSuspended || res.ResumeTick != math.MaxInt64 {
		t.Fatalf("result = %+v, want suspended until MaxInt64", res)
	}
	if res := in.Advance(1 << 62); res.Status != StatusSuspended {
		t.Fatalf("status = %s, want suspended", res.Status)
	}
	in.Cancel()
	if in.Status() != StatusCancelled {
		t.Errorf("status = %s after Cancel", in.Status())
	}
	if p := fx.host.Printed(); len(p) != 0 {
		t.Errorf("printed = %v", p)
	}
}

func TestWaitUnits(t *testing.T) {
	tests := []struct {
		wait string
		want int64
	}{
		{"10ms", 10},
		{"1500us", 2},
		{"1s", 1000},
		{"0", 0},
		{"1us", 1},
		{"9223372036854775807us", 9223372036854776},
	}
	for _, tt := range tests {
		t.Run(tt.wait, func(t *testing.T) {
			fx := newFixture(t, "on note { wait "+tt.wait+"; message(\"done\"); }", WithMicrosPerTick(1000))
			in := fx.start(t, program.EventNote, Trigger{})
			res := in.Advance(100)
			if tt.want == 0 {
				if res.Status != StatusCompleted {
					t.Fatalf("status = %s, want completed", res.Status)
				}
				return
			}
			if res.Status != StatusSuspended || res.ResumeTick != 100+tt.want {
				t.Errorf("result = %+v, want resume at %d", res, 100+tt.want)
			}
		})
	}
}

func TestFaults(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind FaultKind
		at   string
	}{
		{"division", "on note { declare $x = 5 / 0; }", FaultDivisionByZero, "5 / 0"},
		{"modulo", "on note { declare $z; declare $x = 5 mod $z; }", FaultDivisionByZero, "5 mod $z"},
		{"real division", "on note { declare ~x = 1.0 / 0.0; }", FaultDivisionByZero, "1.0 / 0.0"},
		{"read bounds", "declare %a[2]; on note { declare $i = 2; declare $x = %a[$i]; }", FaultArrayIndexOutOfBounds, "$i]"},
		{"write bounds", "declare %a[2]; on note { declare $i = -1; %a[$i] = 1; }", FaultArrayIndexOutOfBounds, "$i]"},
		{"negative wait", "on note { declare $d = -5; wait($d); }", FaultBridgeCall, "wait($d)"},
		{"sqrt", "on note { declare ~x = sqrt(-1.0); }", FaultBridgeCall, "sqrt"},
		{"budget", "on note { while (1) { } }", FaultBudgetExceeded, "while"},
		{"recursion", "function f { call f; }\non note { call f; }", FaultRecursionDepthExceeded, "call f"},
		{"reentry", "function f { sync a { } }\non note { sync a { call f; } }", FaultSyncReentry, "sync a { }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, tt.src, WithStepBudget(500))
			in := fx.start(t, program.EventNote, Trigger{Voice: 1})
			res := in.Advance(0)
			if res.Status != StatusFaulted || res.Fault == nil {
				t.Fatalf("result = %+v, want faulted", res)
			}
			if res.Fault.Kind != tt.kind {
				t.Errorf("fault = %v, want %s", res.Fault, tt.kind)
			}
			src := fx.patch.Program.Source
			if !strings.HasPrefix(src[res.Fault.Offset:], tt.at) {
				t.Errorf("fault at %q, want %q", src[res.Fault.Offset:], tt.at)
			}
			for _, name := range fx.patch.Program.Locks {
				if fx.patch.Lock(name).Holder() != nil {
					t.Errorf("lock %s still held after fault", name)
				}
			}
		})
	}
}

func TestFaultDoesNotAffectSibling(t *testing.T) {
	fx := newFixture(t, `
declare $count;
on note {
	$count = $count + 1;
	if ($EVENT_NOTE == 1) {
		declare $x = 5 / 0;
	}
}
`)
	bad := fx.start(t, program.EventNote, Trigger{Voice: 1, Note: 1})
	good := fx.start(t, program.EventNote, Trigger{Voice: 2, Note: 2})
	if res := bad.Advance(0); res.Status != StatusFaulted {
		t.Fatalf("bad = %s", res.Status)
	}
	if res := good.Advance(0); res.Status != StatusCompleted {
		t.Fatalf("good = %s", res.Status)
	}
	if got := fx.global(t, "$count").Int; got != 2 {
		t.Errorf("$count = %d, want 2", got)
	}
}

func TestShortCircuit(t *testing.T) {
	fx := newFixture(t, `
declare $r;
on note {
	declare $zero;
	if ($zero == 0 or 1 / $zero == 1) { $r = 1; }
	if ($zero == 1 and 1 / $zero == 1) { $r = 2; }
}
`)
	if res := fx.start(t, program.EventNote, Trigger{}).Advance(0); res.Status != StatusCompleted {
		t.Fatalf("result = %+v", res)
	}
	if got := fx.global(t, "$r").Int; got != 1 {
		t.Errorf("$r = %d, want 1", got)
	}
}

func TestPolyphonicIsolation(t *testing.T) {
	fx := newFixture(t, `
declare polyphonic $n = 100;
declare %seen[2];
on note {
	$n = $n + $EVENT_NOTE;
	wait(1);
	%seen[$EVENT_NOTE - 1] = $n;
}
`)
	a := fx.start(t, program.EventNote, Trigger{Voice: 1, Note: 1})
	b := fx.start(t, program.EventNote, Trigger{Voice: 2, Note: 2})
	a.Advance(0)
	b.Advance(0)

	va, _ := fx.patch.Polyphonic(1, "$n")
	vb, _ := fx.patch.Polyphonic(2, "$n")
	if va.Int != 101 || vb.Int != 102 {
		t.Errorf("polyphonic values = %d, %d; want 101, 102", va.Int, vb.Int)
	}

	a.Advance(1)
	b.Advance(1)
	seen := fx.global(t, "%seen").Arr
	s0, _ := seen.Get(0)
	s1, _ := seen.Get(1)
	if s0.Int != 101 || s1.Int != 102 {
		t.Errorf("%%seen = %d, %d", s0.Int, s1.Int)
	}

	// a release for voice 1 sees voice 1's state
	fx.patch.EndVoice(2)
	if fx.patch.Voices() != 1 {
		t.Errorf("voices = %d, want 1 after ending voice 2", fx.patch.Voices())
	}
	if _, ok := fx.patch.Polyphonic(2, "$n"); ok {
		t.Error("voice 2 state survived EndVoice")
	}
}

func TestPatchPersistence(t *testing.T) {
	src := `
declare patch $hits = 10;
declare patch %hist[3];
on note {
	$hits = $hits + 1;
	%hist[$hits mod 3] = $hits;
}
`
	store := NewPatchStore()
	prog := compile(t, src)
	p1 := NewPatch(prog, store)
	for i := 0; i < 3; i++ {
		in := NewInstance()
		in.Reset(p1, uint64(i+1), program.EventNote, Trigger{Voice: int64(i + 1)})
		in.Advance(0)
	}
	if v, _ := p1.PatchValue("$hits"); v.Int != 13 {
		t.Fatalf("$hits = %d, want 13", v.Int)
	}

	// reloading the same patch keeps the values
	p2 := NewPatch(compile(t, src), store)
	if v, _ := p2.PatchValue("$hits"); v.Int != 13 {
		t.Errorf("reloaded $hits = %d, want 13", v.Int)
	}
	hist, _ := p2.PatchValue("%hist")
	if v, _ := hist.Arr.Get(1); v.Int != 13 {
		t.Errorf("reloaded %%hist[1] = %d, want 13", v.Int)
	}

	// a changed declaration starts fresh
	p3 := NewPatch(compile(t, "declare patch ~hits = 0.5;\non note {}"), store)
	if v, _ := p3.PatchValue("~hits"); v.Real != 0.5 {
		t.Errorf("~hits = %v", v.Real)
	}

	snap := store.Snapshot()
	snap["$hits"] = value.Int(99)
	short := value.NewArray(value.TypeInt, 2)
	short.Set(1, value.Int(7))
	snap["%hist"] = value.ArrayValue(short)
	if skipped := store.Restore(snap); len(skipped) != 1 || skipped[0] != "%hist" {
		t.Errorf("skipped = %v, want [%%hist]", skipped)
	}
	if v, _ := p2.PatchValue("$hits"); v.Int != 99 {
		t.Errorf("restored $hits = %d, want 99", v.Int)
	}
	hist, _ = p2.PatchValue("%hist")
	if hist.Arr.Len() != 3 {
		t.Errorf("%%hist length = %d after a mismatched restore", hist.Arr.Len())
	}
	if v, _ := hist.Arr.Get(1); v.Int != 13 {
		t.Errorf("%%hist[1] = %d after a mismatched restore, want 13", v.Int)
	}
}

func TestSyncExclusion(t *testing.T) {
	fx := newFixture(t, `
declare $inside;
declare $max;
on note {
	sync lock {
		$inside = $inside + 1;
		if ($inside > $max) { $max = $inside; }
		wait(5);
		$inside = $inside - 1;
	}
}
`)
	a := fx.start(t, program.EventNote, Trigger{Voice: 1})
	b := fx.start(t, program.EventNote, Trigger{Voice: 2})

	if res := a.Advance(0); res.Status != StatusSuspended || res.Blocked() {
		t.Fatalf("a = %+v, want waiting on tick", res)
	}
	res := b.Advance(0)
	if !res.Blocked() || res.Lock != "lock" {
		t.Fatalf("b = %+v, want blocked on lock", res)
	}
	if res := b.Advance(3); !res.Blocked() {
		t.Fatal("b ran while the lock was held")
	}

	if res := a.Advance(5); res.Status != StatusCompleted {
		t.Fatalf("a = %+v", res)
	}
	woken := fx.patch.Woken(nil)
	if len(woken) != 1 || woken[0] != b {
		t.Fatalf("woken = %v, want b", woken)
	}
	if fx.patch.Lock("lock").Holder() != b {
		t.Fatal("lock was not handed to b")
	}
	if res := b.Advance(5); res.Status != StatusSuspended || res.Blocked() {
		t.Fatalf("b = %+v", res)
	}
	b.Advance(10)
	if got := fx.global(t, "$max").Int; got != 1 {
		t.Errorf("$max = %d, want 1", got)
	}
	if fx.patch.Lock("lock").Holder() != nil {
		t.Error("lock still held")
	}
}

func TestCancel(t *testing.T) {
	fx := newFixture(t, `
on note {
	sync lock { wait(100); }
}
`)
	a := fx.start(t, program.EventNote, Trigger{Voice: 1})
	b := fx.start(t, program.EventNote, Trigger{Voice: 2})
	c := fx.start(t, program.EventNote, Trigger{Voice: 3})
	a.Advance(0)
	b.Advance(0)
	c.Advance(0)

	// cancelling a queued waiter removes it from the queue
	b.Cancel()
	if b.Status() != StatusCancelled {
		t.Fatalf("b = %s", b.Status())
	}
	if fx.patch.Lock("lock").Waiting() != 1 {
		t.Errorf("waiting = %d, want 1", fx.patch.Lock("lock").Waiting())
	}

	// cancelling the holder hands the lock on
	a.Cancel()
	a.Cancel()
	if fx.patch.Lock("lock").Holder() != c {
		t.Fatal("lock not handed to c")
	}
	if res := c.Advance(1); res.Status != StatusSuspended || res.ResumeTick != 101 {
		t.Errorf("c = %+v", res)
	}
	if res := a.Advance(200); res.Status != StatusCancelled {
		t.Errorf("advancing a cancelled instance gave %s", res.Status)
	}
}

func TestExitAndHostCalls(t *testing.T) {
	fx := newFixture(t, `
on note {
	declare $id = play_note($EVENT_NOTE + 12, $EVENT_VELOCITY, 0, 500ms);
	change_vol($id, -6dB, 0);
	message("id {$id}");
	exit();
	message("unreachable");
}
`)
	in := fx.start(t, program.EventNote, Trigger{Voice: 1, Note: 60, Velocity: 100})
	if res := in.Advance(0); res.Status != StatusCompleted {
		t.Fatalf("result = %+v", res)
	}
	calls := fx.host.Calls()
	if len(calls) != 3 {
		t.Fatalf("host calls = %+v", calls)
	}
	if calls[0].Method != "PlayNote" || calls[0].Args[0] != 72 || calls[0].Args[3] != 500000 {
		t.Errorf("play_note = %+v", calls[0])
	}
	if calls[1].Method != "SetParam" || calls[1].Args[1] != -6000 {
		t.Errorf("change_vol = %+v", calls[1])
	}
	printed := fx.host.Printed()
	if len(printed) != 1 || printed[0] != "id 1000" {
		t.Errorf("printed = %v", printed)
	}
}

func TestLocalArraysAreReused(t *testing.T) {
	fx := newFixture(t, `
declare $total;
function fill {
	declare %buf[4] = (1, 2, 3);
	%buf[3] = %buf[3] + 10;
	$total = $total + %buf[3];
}
on note {
	declare $i;
	for $i = 1 to 3 {
		call fill;
	}
}
`)
	in := fx.start(t, program.EventNote, Trigger{})
	if res := in.Advance(0); res.Status != StatusCompleted {
		t.Fatalf("result = %+v", res)
	}
	// the array is reset on every declaration
	if got := fx.global(t, "$total").Int; got != 30 {
		t.Errorf("$total = %d, want 30", got)
	}
}

func TestInitDeclaresGlobals(t *testing.T) {
	fx := newFixture(t, `
on init {
	declare $base = 40 + 2;
	declare !names[2] = ("a", "b");
}
on note {
	message(!names[1] & $base);
}
`)
	init := NewInstance()
	if !init.Reset(fx.patch, 1, program.EventInit, Trigger{}) {
		t.Fatal("no init handler")
	}
	if res := init.Advance(0); res.Status != StatusCompleted {
		t.Fatalf("init = %+v", res)
	}
	fx.start(t, program.EventNote, Trigger{Voice: 1}).Advance(0)
	if p := fx.host.Printed(); len(p) != 1 || p[0] != "b42" {
		t.Errorf("printed = %v", p)
	}
	if NewInstance().Reset(fx.patch, 9, program.EventRelease, Trigger{}) {
		t.Error("Reset succeeded for a missing handler")
	}
}
