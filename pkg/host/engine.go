package host

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/zurustar/instrscript/pkg/logger"
	"github.com/zurustar/instrscript/pkg/program"
	"github.com/zurustar/instrscript/pkg/scheduler"
	"github.com/zurustar/instrscript/pkg/vm"
)

// DefaultMaxVoices is the polyphony limit before voices are stolen.
const DefaultMaxVoices = 64

type inputKind uint8

const (
	inputNoteOn inputKind = iota
	inputNoteOff
	inputController
)

type input struct {
	kind inputKind
	a, b int64
}

// Stats counts what the engine did.
type Stats struct {
	Ticks     int64
	Notes     int64
	Stolen    int64
	Completed int64
	Faulted   int64
	Cancelled int64
}

// Engine turns incoming note and controller events into script instances
// and runs the scheduler once per tick. Events may be sent from any
// goroutine; they are delivered at the start of the next tick.
type Engine struct {
	mu  sync.Mutex
	log *slog.Logger

	sched *scheduler.Scheduler
	synth *SynthHost
	patch *vm.Patch

	pending   []input
	delivered []input
	// voices maps a sounding key to its voice; active lists voices oldest
	// first.
	voices    map[int64]int64
	active    []int64
	nextVoice int64
	maxVoices int
	started   bool

	stats Stats
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the engine logger.
func WithEngineLogger(log *slog.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithMaxVoices sets the polyphony limit.
func WithMaxVoices(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxVoices = n
		}
	}
}

// NewEngine runs patch on sched, with synth playing the triggering notes.
// A nil patch plays notes without a script.
func NewEngine(sched *scheduler.Scheduler, synth *SynthHost, patch *vm.Patch, opts ...EngineOption) *Engine {
	e := &Engine{
		log:       logger.GetLogger(),
		sched:     sched,
		synth:     synth,
		patch:     patch,
		pending:   make([]input, 0, 64),
		delivered: make([]input, 0, 64),
		voices:    make(map[int64]int64, DefaultMaxVoices),
		maxVoices: DefaultMaxVoices,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NoteOn queues a note-on for the next tick.
func (e *Engine) NoteOn(key, velocity int64) {
	e.send(input{kind: inputNoteOn, a: key, b: velocity})
}

// NoteOff queues a note-off for the next tick.
func (e *Engine) NoteOff(key, velocity int64) {
	e.send(input{kind: inputNoteOff, a: key, b: velocity})
}

// Controller queues a controller change for the next tick.
func (e *Engine) Controller(number, val int64) {
	e.send(input{kind: inputController, a: number, b: val})
}

func (e *Engine) send(in input) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, in)
}

// Stats returns a copy of the counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Tick delivers queued events and runs one scheduler cycle. The first tick
// also runs the init handler.
func (e *Engine) Tick(tick int64) {
	e.mu.Lock()
	e.delivered, e.pending = e.pending, e.delivered[:0]
	e.mu.Unlock()

	if !e.started {
		e.started = true
		if e.patch != nil {
			e.sched.CreateInstance(e.patch, program.EventInit, vm.Trigger{})
		}
	}
	for _, in := range e.delivered {
		switch in.kind {
		case inputNoteOn:
			e.noteOn(in.a, in.b)
		case inputNoteOff:
			e.noteOff(in.a, in.b)
		case inputController:
			e.create(program.EventController, vm.Trigger{Controller: in.a, ControllerValue: in.b})
		}
	}
	clear(e.delivered)
	e.delivered = e.delivered[:0]

	rep := e.sched.Cycle(tick)

	e.mu.Lock()
	e.stats.Ticks++
	e.stats.Completed += int64(rep.Completed)
	e.stats.Faulted += int64(rep.Faulted)
	e.stats.Cancelled += int64(rep.Cancelled)
	e.mu.Unlock()
}

func (e *Engine) noteOn(key, velocity int64) {
	if old, ok := e.voices[key]; ok {
		e.release(key, old, 0)
	}
	if len(e.active) >= e.maxVoices {
		e.steal()
	}
	e.nextVoice++
	voice := e.nextVoice
	e.voices[key] = voice
	e.active = append(e.active, voice)

	id := e.synth.PlayNote(voice, key, velocity, 0, -1)
	e.create(program.EventNote, vm.Trigger{Voice: voice, EventID: id, Note: key, Velocity: velocity})

	e.mu.Lock()
	e.stats.Notes++
	e.mu.Unlock()
}

func (e *Engine) noteOff(key, velocity int64) {
	voice, ok := e.voices[key]
	if !ok {
		return
	}
	e.release(key, voice, velocity)
}

// release runs the release handler for voice and lets its notes go.
func (e *Engine) release(key, voice, velocity int64) {
	delete(e.voices, key)
	e.active = slices.DeleteFunc(e.active, func(v int64) bool { return v == voice })
	e.create(program.EventRelease, vm.Trigger{Voice: voice, Note: key, Velocity: velocity})
	e.synth.ReleaseVoice(voice)
	e.sched.EndVoice(voice)
}

// steal cancels the oldest voice outright.
func (e *Engine) steal() {
	voice := e.active[0]
	e.active = e.active[1:]
	for k, v := range e.voices {
		if v == voice {
			delete(e.voices, k)
		}
	}
	n := e.sched.CancelVoice(voice)
	e.synth.ReleaseVoice(voice)
	e.sched.EndVoice(voice)
	e.log.Debug("voice stolen", "voice", voice, "cancelled", n)

	e.mu.Lock()
	e.stats.Stolen++
	e.mu.Unlock()
}

func (e *Engine) create(event program.EventType, trig vm.Trigger) {
	if e.patch == nil {
		return
	}
	e.sched.CreateInstance(e.patch, event, trig)
}
