package bridge

import (
	"fmt"
	"sync"
)

// Control names a per-event or engine-wide parameter.
type Control int64

const (
	ControlNote Control = iota
	ControlVelocity
	ControlVolume    // mdB
	ControlTune      // cents
	ControlPan       // -1000 (left) .. 1000 (right)
	ControlCutoff    // Hz
	ControlResonance // 0 .. 1000
)

var controlNames = map[Control]string{
	ControlNote:      "note",
	ControlVelocity:  "velocity",
	ControlVolume:    "volume",
	ControlTune:      "tune",
	ControlPan:       "pan",
	ControlCutoff:    "cutoff",
	ControlResonance: "resonance",
}

func (c Control) String() string {
	if n, ok := controlNames[c]; ok {
		return n
	}
	return fmt.Sprintf("control(%d)", int64(c))
}

// LFOParam names a signal-generator parameter.
type LFOParam int64

const (
	LFOFrequency LFOParam = iota // Hz
	LFODepth                     // 0 .. 1000
)

func (p LFOParam) String() string {
	switch p {
	case LFOFrequency:
		return "frequency"
	case LFODepth:
		return "depth"
	}
	return fmt.Sprintf("lfo(%d)", int64(p))
}

// Host is the sampling engine as seen by built-in functions. Event id 0
// addresses the engine as a whole.
type Host interface {
	// PlayNote starts a new note for voice and returns its event id. A
	// negative duration holds the note until the voice is released.
	PlayNote(voice, note, velocity, offsetMicros, durationMicros int64) int64
	NoteOff(eventID, velocity int64)
	IgnoreEvent(eventID int64)
	SetParam(eventID int64, c Control, v int64, relative bool)
	GetParam(eventID int64, c Control) int64
	SetLFO(eventID int64, p LFOParam, v int64)
	Print(msg string)
}

// NopHost ignores every call. PlayNote returns 0.
type NopHost struct{}

func (NopHost) PlayNote(voice, note, velocity, offsetMicros, durationMicros int64) int64 { return 0 }
func (NopHost) NoteOff(eventID, velocity int64)                                          {}
func (NopHost) IgnoreEvent(eventID int64)                                                {}
func (NopHost) SetParam(eventID int64, c Control, v int64, relative bool)                {}
func (NopHost) GetParam(eventID int64, c Control) int64                                  { return 0 }
func (NopHost) SetLFO(eventID int64, p LFOParam, v int64)                                {}
func (NopHost) Print(msg string)                                                         {}

// HostCall is one recorded Host invocation.
type HostCall struct {
	Method   string
	Voice    int64
	EventID  int64
	Args     []int64
	Relative bool
	Text     string
}

// RecordingHost is a Host that records every call. Event ids handed out by
// PlayNote start at FirstEventID.
type RecordingHost struct {
	mu     sync.Mutex
	calls  []HostCall
	params map[int64]map[Control]int64
	nextID int64
}

// FirstEventID is the first id RecordingHost.PlayNote returns.
const FirstEventID = 1000

// NewRecordingHost creates an empty RecordingHost.
func NewRecordingHost() *RecordingHost {
	return &RecordingHost{
		params: make(map[int64]map[Control]int64),
		nextID: FirstEventID,
	}
}

func (h *RecordingHost) record(c HostCall) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, c)
}

// Calls returns a copy of the recorded calls.
func (h *RecordingHost) Calls() []HostCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]HostCall, len(h.calls))
	copy(out, h.calls)
	return out
}

// Printed returns the messages passed to Print, in order.
func (h *RecordingHost) Printed() []string {
	var out []string
	for _, c := range h.Calls() {
		if c.Method == "Print" {
			out = append(out, c.Text)
		}
	}
	return out
}

// Reset forgets all recorded calls.
func (h *RecordingHost) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = nil
}

func (h *RecordingHost) PlayNote(voice, note, velocity, offsetMicros, durationMicros int64) int64 {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.mu.Unlock()
	h.record(HostCall{Method: "PlayNote", Voice: voice, EventID: id, Args: []int64{note, velocity, offsetMicros, durationMicros}})
	h.setParam(id, ControlNote, note)
	h.setParam(id, ControlVelocity, velocity)
	return id
}

func (h *RecordingHost) NoteOff(eventID, velocity int64) {
	h.record(HostCall{Method: "NoteOff", EventID: eventID, Args: []int64{velocity}})
}

func (h *RecordingHost) IgnoreEvent(eventID int64) {
	h.record(HostCall{Method: "IgnoreEvent", EventID: eventID})
}

func (h *RecordingHost) SetParam(eventID int64, c Control, v int64, relative bool) {
	h.record(HostCall{Method: "SetParam", EventID: eventID, Args: []int64{int64(c), v}, Relative: relative})
	if relative {
		v += h.GetParam(eventID, c)
	}
	h.setParam(eventID, c, v)
}

func (h *RecordingHost) GetParam(eventID int64, c Control) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.params[eventID][c]
}

func (h *RecordingHost) setParam(eventID int64, c Control, v int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.params[eventID]
	if !ok {
		m = make(map[Control]int64)
		h.params[eventID] = m
	}
	m[c] = v
}

func (h *RecordingHost) SetLFO(eventID int64, p LFOParam, v int64) {
	h.record(HostCall{Method: "SetLFO", EventID: eventID, Args: []int64{int64(p), v}})
}

func (h *RecordingHost) Print(msg string) {
	h.record(HostCall{Method: "Print", Text: msg})
}
