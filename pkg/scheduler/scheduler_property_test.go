package scheduler

import (
	"slices"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/zurustar/instrscript/pkg/bridge"
	"github.com/zurustar/instrscript/pkg/compiler"
	"github.com/zurustar/instrscript/pkg/program"
	"github.com/zurustar/instrscript/pkg/vm"
)

// TestProperty_ResumeOrder checks that instances resume in (resume tick,
// creation order) regardless of how the waits are distributed.
func TestProperty_ResumeOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	prog, diags := compiler.Parse(`
on note {
	wait($EVENT_NOTE);
	message($EVENT_VELOCITY);
}`, bridge.NewDefaultRegistry())
	if len(diags) > 0 {
		t.Fatalf("compile failed: %v", compiler.Errors(diags))
	}

	properties.Property("messages follow (due tick, creation order)", prop.ForAll(
		func(waits []int64, step int64) bool {
			host := bridge.NewRecordingHost()
			s := New(WithHost(host), WithPoolSize(4))
			p := s.Load(prog, nil)
			for i, w := range waits {
				s.CreateInstance(p, program.EventNote, vm.Trigger{Voice: int64(i + 1), Note: w, Velocity: int64(i)})
			}
			for tick := int64(0); tick <= 40; tick += step {
				s.Cycle(tick)
			}

			idx := make([]int, len(waits))
			for i := range idx {
				idx[i] = i
			}
			// cycles only happen every step ticks
			due := func(i int) int64 { return (waits[i] + step - 1) / step * step }
			slices.SortStableFunc(idx, func(a, b int) int {
				switch {
				case due(a) < due(b):
					return -1
				case due(a) > due(b):
					return 1
				}
				switch {
				case waits[a] < waits[b]:
					return -1
				case waits[a] > waits[b]:
					return 1
				}
				return a - b
			})
			printed := host.Printed()
			if len(printed) != len(waits) || s.Len() != 0 {
				return false
			}
			for i, j := range idx {
				if printed[i] != strconv.Itoa(j) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(8, gen.Int64Range(0, 20)),
		gen.Int64Range(1, 5),
	))

	properties.Property("cancelling a voice never leaks a lock", prop.ForAll(
		func(voices []int64, victim int64) bool {
			prog, diags := compiler.Parse(`
declare $inside;
on note {
	sync region {
		$inside = $inside + 1;
		wait(3);
		$inside = $inside - 1;
	}
}`, bridge.NewDefaultRegistry())
			if len(diags) > 0 {
				return false
			}
			s := New()
			p := s.Load(prog, nil)
			for _, v := range voices {
				s.CreateInstance(p, program.EventNote, vm.Trigger{Voice: v})
			}
			s.Cycle(0)
			cancelled := s.CancelVoice(victim)
			for tick := int64(1); tick < 100; tick++ {
				s.Cycle(tick)
			}
			inside, _ := p.Global("$inside")
			want := 0
			if cancelled > 0 && slices.Index(voices, victim) == 0 {
				// the holder was cancelled inside the region
				want = 1
			}
			return s.Len() == 0 && p.Lock("region").Holder() == nil && inside.Int == int64(want)
		},
		gen.SliceOfN(5, gen.Int64Range(1, 3)),
		gen.Int64Range(1, 3),
	))

	properties.TestingRun(t)
}
