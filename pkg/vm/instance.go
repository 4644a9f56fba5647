package vm

import (
	"math"

	"github.com/zurustar/instrscript/pkg/bridge"
	"github.com/zurustar/instrscript/pkg/program"
	"github.com/zurustar/instrscript/pkg/value"
)

// Trigger is the event context an instance was created for.
type Trigger = bridge.Trigger

type frameKind uint8

const (
	frameBlock frameKind = iota
	frameWhile
	frameFor
	frameSync
	frameCall
)

// frame is one entry of an instance's explicit execution stack. Block, sync
// and call frames walk block.Stmts with pc; loop frames re-check their
// condition each time they reach the top of the stack.
type frame struct {
	kind  frameKind
	block *program.Block
	pc    int

	while *program.While
	loop  *program.For
	to    int64
	first bool

	lock int

	// caller's local base and stack height, for call frames
	base int
	top  int
}

// Instance is one execution of an event handler. It keeps its whole
// execution state in explicit stacks, so a suspended instance resumes at
// exactly the statement after its suspension point.
type Instance struct {
	id      uint64
	patch   *Patch
	event   program.EventType
	trigger Trigger

	status     Status
	resumeTick int64
	fault      *Fault
	// waiting is the lock index the instance is queued on, or -1.
	waiting    int
	cancelWant bool

	frames []frame
	locals []value.Value
	base   int
	depth  int

	voice *voiceState

	calls   []bridge.Call
	callTop int
	tick    int64

	// steps counts the statements run at stepTick, across Advance calls.
	steps    int
	stepTick int64
}

// NewInstance allocates an instance with room for typical scripts. Instances
// are meant to be pooled and reused through Reset.
func NewInstance() *Instance {
	return &Instance{
		waiting: -1,
		frames:  make([]frame, 0, 16),
		locals:  make([]value.Value, 0, 32),
		calls:   make([]bridge.Call, 4),
	}
}

// Reset prepares the instance to run the handler for event on p. It returns
// false, leaving the instance untouched, when the program has no handler
// for event.
func (in *Instance) Reset(p *Patch, id uint64, event program.EventType, trig Trigger) bool {
	h := p.Program.Handler(event)
	if h == nil {
		return false
	}
	in.id = id
	in.patch = p
	in.event = event
	in.trigger = trig
	in.status = StatusCreated
	in.resumeTick = 0
	in.fault = nil
	in.waiting = -1
	in.cancelWant = false
	in.base = 0
	in.depth = 0
	in.callTop = 0
	in.tick = 0
	in.steps = 0
	in.stepTick = math.MinInt64

	clear(in.frames)
	in.frames = in.frames[:0]
	in.locals = in.locals[:0]
	in.growLocals(len(h.Locals))
	in.pushBlock(h.Body)

	in.voice = nil
	if event != program.EventInit {
		in.voice = p.acquireVoice(trig.Voice)
	}
	return true
}

func (in *Instance) ID() uint64               { return in.id }
func (in *Instance) Patch() *Patch            { return in.patch }
func (in *Instance) Event() program.EventType { return in.event }
func (in *Instance) Trigger() Trigger         { return in.trigger }
func (in *Instance) Status() Status           { return in.status }
func (in *Instance) ResumeTick() int64        { return in.resumeTick }
func (in *Instance) Fault() *Fault            { return in.fault }

// Voice returns the voice the instance acts for.
func (in *Instance) Voice() int64 { return in.trigger.Voice }

// Result reports the current state.
func (in *Instance) Result() Result {
	r := Result{Status: in.status, ResumeTick: in.resumeTick, Fault: in.fault}
	if in.waiting >= 0 && in.status == StatusSuspended {
		r.Lock = in.patch.locks[in.waiting].Name
	}
	return r
}

// Cancel terminates the instance immediately and releases its locks. It is
// idempotent. While the instance is executing the cancellation takes effect
// when the current Bridge call returns.
func (in *Instance) Cancel() {
	if in.patch == nil || in.status.Terminal() {
		return
	}
	if in.status == StatusRunning {
		in.cancelWant = true
		return
	}
	in.cancel()
}

func (in *Instance) cancel() {
	if in.waiting >= 0 {
		l := &in.patch.locks[in.waiting]
		if l.holder == in {
			in.releaseLock(in.waiting)
		} else {
			l.remove(in)
		}
		in.waiting = -1
	}
	in.status = StatusCancelled
	in.finish()
}

func (in *Instance) complete() {
	in.status = StatusCompleted
	in.finish()
}

func (in *Instance) fail(f *Fault) {
	if f == errCancelled {
		in.cancel()
		return
	}
	in.status = StatusFaulted
	in.fault = f
	in.finish()
}

// finish unwinds every frame, releasing held locks, and drops the voice.
func (in *Instance) finish() {
	for len(in.frames) > 0 {
		in.popFrame()
	}
	in.callTop = 0
	if in.voice != nil {
		in.patch.releaseVoice(in.trigger.Voice, in.voice)
		in.voice = nil
	}
}

func (in *Instance) pushFrame(f frame) {
	in.frames = append(in.frames, f)
}

func (in *Instance) pushBlock(b *program.Block) {
	in.frames = append(in.frames, frame{kind: frameBlock, block: b})
}

func (in *Instance) popFrame() {
	n := len(in.frames) - 1
	f := in.frames[n]
	in.frames[n] = frame{}
	in.frames = in.frames[:n]
	switch f.kind {
	case frameSync:
		in.releaseLock(f.lock)
	case frameCall:
		in.base = f.base
		in.locals = in.locals[:f.top]
		in.depth--
	}
}

func (in *Instance) releaseLock(lock int) {
	if next := in.patch.locks[lock].release(in); next != nil {
		in.patch.woken = append(in.patch.woken, next)
	}
}

// growLocals extends the local stack to n slots. Slots past the old height
// keep their previous contents so local arrays can be reused.
func (in *Instance) growLocals(n int) {
	if n <= cap(in.locals) {
		in.locals = in.locals[:n]
		return
	}
	in.locals = append(in.locals[:cap(in.locals)], make([]value.Value, n-cap(in.locals))...)
}

// slot returns the storage of a variable symbol.
func (in *Instance) slot(sym *program.Symbol) *value.Value {
	switch sym.Storage {
	case program.StorageLocal:
		return &in.locals[in.base+sym.Slot]
	case program.StorageGlobal:
		return &in.patch.globals[sym.Slot]
	case program.StoragePolyphonic:
		return &in.voice.vals[sym.Slot]
	case program.StoragePatch:
		return in.patch.patchVals[sym.Slot]
	}
	return nil
}
