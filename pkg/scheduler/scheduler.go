// Package scheduler owns the live script instances of a sampling engine and
// advances them once per audio processing cycle.
//
// A Scheduler is not safe for concurrent use. The output driver calls Cycle
// from its audio callback and serializes event delivery with it.
package scheduler

import (
	"container/heap"
	"log/slog"
	"slices"

	"github.com/zurustar/instrscript/pkg/program"
	"github.com/zurustar/instrscript/pkg/vm"
)

// Handle identifies an instance created by CreateInstance. Handles are never
// reused.
type Handle uint64

// FaultReport describes an instance that faulted during a cycle.
type FaultReport struct {
	Handle Handle
	Event  program.EventType
	Voice  int64
	Fault  *vm.Fault
}

// CycleReport summarizes one Cycle call. Faults is only valid until the next
// call to Cycle.
type CycleReport struct {
	Tick      int64
	Advanced  int
	Completed int
	Suspended int
	Blocked   int
	Faulted   int
	Cancelled int
	Faults    []FaultReport
}

// Scheduler drives script instances across all loaded patches.
type Scheduler struct {
	cfg config
	log *slog.Logger

	tick    int64
	nextID  uint64
	patches []*vm.Patch

	live    map[Handle]*entry
	ready   readyQueue
	free    []*entry
	running *entry

	woken   []*vm.Instance
	scratch []*entry
	faults  []FaultReport
	// cancelled counts instances cancelled outside settle since the last
	// cycle report.
	cancelled int
}

// New creates a Scheduler with a pre-sized instance pool.
func New(opts ...Option) *Scheduler {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Scheduler{
		cfg:   cfg,
		log:   cfg.log,
		live:  make(map[Handle]*entry, cfg.poolSize),
		ready: make(readyQueue, 0, cfg.poolSize),
		free:  make([]*entry, 0, cfg.poolSize),
	}
	for range cfg.poolSize {
		s.free = append(s.free, &entry{in: vm.NewInstance(), index: -1})
	}
	return s
}

// Load prepares prog for execution. Patch variables are bound to store; a
// nil store gives the patch a private one.
func (s *Scheduler) Load(prog *program.Program, store *vm.PatchStore) *vm.Patch {
	p := vm.NewPatch(prog, store, s.cfg.vmOpts...)
	s.patches = append(s.patches, p)
	s.log.Info("patch loaded",
		"patch", p.ID.String(),
		"handlers", handlerCount(prog),
		"patches", len(s.patches))
	return p
}

func handlerCount(prog *program.Program) int {
	n := 0
	for _, h := range prog.Handlers {
		if h != nil {
			n++
		}
	}
	return n
}

// Unload cancels every instance running on p and forgets the patch.
func (s *Scheduler) Unload(p *vm.Patch) {
	n := s.cancelWhere(func(in *vm.Instance) bool { return in.Patch() == p })
	s.patches = slices.DeleteFunc(s.patches, func(q *vm.Patch) bool { return q == p })
	s.log.Info("patch unloaded", "patch", p.ID.String(), "cancelled", n)
}

// Patches returns the loaded patches.
func (s *Scheduler) Patches() []*vm.Patch {
	return s.patches
}

// Tick returns the tick of the most recent cycle.
func (s *Scheduler) Tick() int64 {
	return s.tick
}

// Len returns the number of live instances.
func (s *Scheduler) Len() int {
	return len(s.live)
}

// CreateInstance creates an instance of the handler for event and queues it
// at the current tick. It returns false, and does nothing, when the program
// has no handler for event.
func (s *Scheduler) CreateInstance(p *vm.Patch, event program.EventType, trig vm.Trigger) (Handle, bool) {
	if !p.Program.HasHandler(event) {
		return 0, false
	}
	e := s.alloc()
	s.nextID++
	e.h = Handle(s.nextID)
	e.seq = s.nextID
	e.in.Reset(p, s.nextID, event, trig)
	s.live[e.h] = e
	s.push(e, s.tick)
	return e.h, true
}

// Instance returns the instance behind h while it is live.
func (s *Scheduler) Instance(h Handle) (*vm.Instance, bool) {
	e, ok := s.live[h]
	if !ok {
		return nil, false
	}
	return e.in, true
}

// Advance drives one instance at tick outside of a cycle. A handle that is
// unknown or already retired reports StatusCancelled.
func (s *Scheduler) Advance(h Handle, tick int64) vm.Result {
	e, ok := s.live[h]
	if !ok {
		return vm.Result{Status: vm.StatusCancelled}
	}
	if e.index >= 0 {
		heap.Remove(&s.ready, e.index)
	}
	var rep CycleReport
	res := s.step(e, tick, &rep)
	s.wake(tick)
	return res
}

// Cancel terminates the instance immediately and releases its locks.
// Cancelling a retired handle does nothing.
func (s *Scheduler) Cancel(h Handle) {
	if e, ok := s.live[h]; ok {
		s.cancel(e)
	}
}

// CancelVoice cancels every instance acting for voice, in creation order,
// and returns how many were cancelled.
func (s *Scheduler) CancelVoice(voice int64) int {
	return s.cancelWhere(func(in *vm.Instance) bool {
		return in.Voice() == voice && in.Event().HasVoice()
	})
}

// EndVoice tells every patch that voice has stopped sounding. Polyphonic
// state is released once no instance acts for it.
func (s *Scheduler) EndVoice(voice int64) {
	for _, p := range s.patches {
		p.EndVoice(voice)
	}
}

// Cycle runs every instance due at tick, in (resume tick, creation) order.
// Instances handed a sync lock during the cycle run in the same cycle.
func (s *Scheduler) Cycle(tick int64) CycleReport {
	s.tick = tick
	clear(s.faults)
	s.faults = s.faults[:0]
	rep := CycleReport{Tick: tick}

	s.wake(tick)
	for {
		e := s.ready.peek()
		if e == nil || e.due > tick {
			break
		}
		heap.Pop(&s.ready)
		s.step(e, tick, &rep)
		s.wake(tick)
	}

	rep.Cancelled += s.cancelled
	s.cancelled = 0
	rep.Faults = s.faults
	return rep
}

func (s *Scheduler) step(e *entry, tick int64, rep *CycleReport) vm.Result {
	s.running = e
	res := e.in.Advance(tick)
	s.running = nil
	rep.Advanced++
	s.settle(e, res, rep)
	return res
}

// settle files an advanced instance according to its new state.
func (s *Scheduler) settle(e *entry, res vm.Result, rep *CycleReport) {
	switch res.Status {
	case vm.StatusSuspended:
		if res.Blocked() {
			rep.Blocked++
			return
		}
		rep.Suspended++
		s.push(e, res.ResumeTick)
		return
	case vm.StatusCompleted:
		rep.Completed++
	case vm.StatusFaulted:
		rep.Faulted++
		s.reportFault(e, res.Fault)
	case vm.StatusCancelled:
		rep.Cancelled++
	default:
		return
	}
	s.retire(e)
}

func (s *Scheduler) reportFault(e *entry, f *vm.Fault) {
	s.faults = append(s.faults, FaultReport{
		Handle: e.h,
		Event:  e.in.Event(),
		Voice:  e.in.Voice(),
		Fault:  f,
	})
	s.log.Warn("instance faulted",
		"instance", uint64(e.h),
		"event", e.in.Event().String(),
		"voice", e.in.Voice(),
		"kind", string(f.Kind),
		"line", f.Line,
		"column", f.Column,
		"message", f.Message)
}

// wake queues instances that were handed a lock.
func (s *Scheduler) wake(tick int64) {
	for _, p := range s.patches {
		s.woken = p.Woken(s.woken[:0])
		for _, in := range s.woken {
			e, ok := s.live[Handle(in.ID())]
			if !ok || e.index >= 0 || e == s.running || in.Status().Terminal() {
				continue
			}
			s.push(e, tick)
		}
	}
	clear(s.woken)
	s.woken = s.woken[:0]
}

func (s *Scheduler) cancel(e *entry) {
	e.in.Cancel()
	if e == s.running {
		// takes effect when the current Bridge call returns
		return
	}
	s.cancelled++
	s.retire(e)
	s.wake(s.tick)
}

func (s *Scheduler) cancelWhere(match func(*vm.Instance) bool) int {
	s.scratch = s.scratch[:0]
	for _, e := range s.live {
		if match(e.in) {
			s.scratch = append(s.scratch, e)
		}
	}
	slices.SortFunc(s.scratch, func(a, b *entry) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	n := len(s.scratch)
	for _, e := range s.scratch {
		s.cancel(e)
	}
	clear(s.scratch)
	s.scratch = s.scratch[:0]
	return n
}

func (s *Scheduler) push(e *entry, due int64) {
	e.due = due
	heap.Push(&s.ready, e)
}

func (s *Scheduler) retire(e *entry) {
	if e.index >= 0 {
		heap.Remove(&s.ready, e.index)
	}
	delete(s.live, e.h)
	e.h = 0
	s.free = append(s.free, e)
}

func (s *Scheduler) alloc() *entry {
	if n := len(s.free); n > 0 {
		e := s.free[n-1]
		s.free[n-1] = nil
		s.free = s.free[:n-1]
		return e
	}
	s.log.Debug("instance pool exhausted", "live", len(s.live))
	return &entry{in: vm.NewInstance(), index: -1}
}
