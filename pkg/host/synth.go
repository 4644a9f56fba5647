// Package host is the reference sampling engine behind the Bridge: a
// SoundFont synthesizer that plays the notes scripts start, and the output
// drivers that pull audio from it while driving the scheduler.
package host

import (
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/zurustar/instrscript/pkg/bridge"
	"github.com/zurustar/instrscript/pkg/fileutil"
	"github.com/zurustar/instrscript/pkg/logger"
)

// SampleRate is the output sample rate.
const SampleRate = 44100

// synthesizer is the part of *meltysynth.Synthesizer the host uses.
type synthesizer interface {
	NoteOn(channel, key, velocity int32)
	NoteOff(channel, key int32)
	ProcessMidiMessage(channel, command, data1, data2 int32)
	Render(left, right []float32)
}

// silentSynth stands in when no SoundFont is loaded.
type silentSynth struct{}

func (silentSynth) NoteOn(channel, key, velocity int32)                     {}
func (silentSynth) NoteOff(channel, key int32)                              {}
func (silentSynth) ProcessMidiMessage(channel, command, data1, data2 int32) {}
func (silentSynth) Render(left, right []float32) {
	clear(left)
	clear(right)
}

const (
	midiControlChange = 0xB0
	midiPitchBend     = 0xE0

	ccModulation = 1
	ccVolume     = 7
	ccPan        = 10
	ccResonance  = 71
	ccBrightness = 74

	drumChannel = 9
	numChannels = 16

	// pitchBendRange is the synthesizer's default bend range in cents.
	pitchBendRange = 200
)

// LoadSoundFont reads and parses a SoundFont file.
func LoadSoundFont(fsys fs.FS, path string) (*meltysynth.SoundFont, error) {
	data, err := fileutil.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read SoundFont: %w", err)
	}
	sf, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SoundFont: %w", err)
	}
	return sf, nil
}

// note is one event the host plays.
type note struct {
	id       int64
	voice    int64
	key      int32
	velocity int32
	channel  int32
	params   map[bridge.Control]int64
	// start and end are sample positions; end < 0 holds the note.
	start   int64
	end     int64
	playing bool
	done    bool
}

// SynthHost implements bridge.Host on top of a meltysynth synthesizer. Each
// note gets its own MIDI channel, so per-event volume, pan, tune, cutoff and
// resonance map onto channel controllers. Event id 0 addresses the engine.
type SynthHost struct {
	mu    sync.Mutex
	log   *slog.Logger
	synth synthesizer

	pos    int64
	nextID int64
	notes  map[int64]*note
	// order holds live notes by start position.
	order   []*note
	channel int32

	engine map[bridge.Control]int64
	lfo    map[bridge.LFOParam]int64
	gain   float32
}

// SynthOption configures a SynthHost.
type SynthOption func(*SynthHost)

// WithSynthLogger sets the logger used for script messages and note events.
func WithSynthLogger(log *slog.Logger) SynthOption {
	return func(h *SynthHost) {
		if log != nil {
			h.log = log
		}
	}
}

// NewSynthHost creates a host rendering with sf. A nil sf renders silence
// but keeps all event bookkeeping.
func NewSynthHost(sf *meltysynth.SoundFont, opts ...SynthOption) (*SynthHost, error) {
	h := &SynthHost{
		log:    logger.GetLogger(),
		synth:  silentSynth{},
		nextID: 1,
		notes:  make(map[int64]*note, 128),
		order:  make([]*note, 0, 128),
		engine: map[bridge.Control]int64{bridge.ControlVolume: 0},
		lfo:    make(map[bridge.LFOParam]int64),
		gain:   1,
	}
	for _, opt := range opts {
		opt(h)
	}
	if sf != nil {
		settings := meltysynth.NewSynthesizerSettings(SampleRate)
		synth, err := meltysynth.NewSynthesizer(sf, settings)
		if err != nil {
			return nil, fmt.Errorf("failed to create synthesizer: %w", err)
		}
		h.synth = synth
	}
	return h, nil
}

func microsToSamples(us int64) int64 {
	return us * SampleRate / 1_000_000
}

// PlayNote schedules a note offsetMicros from now. A zero duration lets the
// note ring until note_off; a negative one holds it until ReleaseVoice.
func (h *SynthHost) PlayNote(voice, key, velocity, offsetMicros, durationMicros int64) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := &note{
		id:       h.nextID,
		voice:    voice,
		key:      int32(key),
		velocity: int32(velocity),
		channel:  h.allocChannel(),
		params:   map[bridge.Control]int64{bridge.ControlNote: key, bridge.ControlVelocity: velocity},
		start:    h.pos + microsToSamples(max(offsetMicros, 0)),
		end:      -1,
	}
	h.nextID++
	if durationMicros > 0 {
		n.end = n.start + max(microsToSamples(durationMicros), 1)
	}
	h.notes[n.id] = n
	// after every note starting at or before n
	i, _ := slices.BinarySearchFunc(h.order, n.start, func(a *note, start int64) int {
		if a.start <= start {
			return -1
		}
		return 1
	})
	h.order = slices.Insert(h.order, i, n)
	h.log.Debug("note scheduled", "event", n.id, "voice", voice, "note", key, "velocity", velocity, "start", n.start)
	return n.id
}

// allocChannel picks channels round-robin, skipping the drum channel.
func (h *SynthHost) allocChannel() int32 {
	ch := h.channel
	h.channel = (h.channel + 1) % numChannels
	if h.channel == drumChannel {
		h.channel++
	}
	return ch
}

// NoteOff releases a note. A note that has not started yet is dropped.
func (h *SynthHost) NoteOff(eventID, velocity int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n, ok := h.notes[eventID]; ok {
		h.stop(n)
	}
}

// IgnoreEvent drops a note without it ever sounding if it has not started.
func (h *SynthHost) IgnoreEvent(eventID int64) {
	h.NoteOff(eventID, 0)
}

// ReleaseVoice stops the held notes started for voice.
func (h *SynthHost) ReleaseVoice(voice int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, n := range h.order {
		if n.voice == voice && n.end < 0 {
			h.stop(n)
		}
	}
}

func (h *SynthHost) stop(n *note) {
	if n.playing {
		h.synth.NoteOff(n.channel, n.key)
		n.playing = false
	}
	n.done = true
}

func (h *SynthHost) SetParam(eventID int64, c bridge.Control, v int64, relative bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	params := h.engine
	var n *note
	if eventID != 0 {
		var ok bool
		if n, ok = h.notes[eventID]; !ok {
			return
		}
		params = n.params
	}
	if relative {
		v += params[c]
	}
	params[c] = v

	if n == nil {
		if c == bridge.ControlVolume {
			h.gain = float32(mdBToGain(v))
		}
		return
	}
	if n.playing {
		h.applyParam(n, c, v)
	}
}

func (h *SynthHost) GetParam(eventID int64, c bridge.Control) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if eventID == 0 {
		return h.engine[c]
	}
	if n, ok := h.notes[eventID]; ok {
		return n.params[c]
	}
	return 0
}

// SetLFO maps the LFO depth onto the modulation wheel of every channel.
func (h *SynthHost) SetLFO(eventID int64, p bridge.LFOParam, v int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lfo[p] = v
	if p != bridge.LFODepth {
		return
	}
	depth := int32(clampInt(v*127/1000, 0, 127))
	for ch := int32(0); ch < numChannels; ch++ {
		if ch != drumChannel {
			h.synth.ProcessMidiMessage(ch, midiControlChange, ccModulation, depth)
		}
	}
}

func (h *SynthHost) Print(msg string) {
	h.log.Info("script message", "message", msg)
}

// applyParam sends a parameter of a sounding note to its channel.
func (h *SynthHost) applyParam(n *note, c bridge.Control, v int64) {
	switch c {
	case bridge.ControlVolume:
		cc := int32(clampInt(int64(math.Round(mdBToGain(v)*100)), 0, 127))
		h.synth.ProcessMidiMessage(n.channel, midiControlChange, ccVolume, cc)
	case bridge.ControlPan:
		cc := int32(clampInt(64+v*64/1000, 0, 127))
		h.synth.ProcessMidiMessage(n.channel, midiControlChange, ccPan, cc)
	case bridge.ControlTune:
		bend := clampInt(8192+v*8192/pitchBendRange, 0, 16383)
		h.synth.ProcessMidiMessage(n.channel, midiPitchBend, int32(bend&0x7f), int32(bend>>7))
	case bridge.ControlCutoff:
		// 20 Hz .. 20 kHz on a log scale
		hz := math.Max(float64(v)/1000, 20)
		cc := int32(clampInt(int64(math.Log10(hz/20)/3*127), 0, 127))
		h.synth.ProcessMidiMessage(n.channel, midiControlChange, ccBrightness, cc)
	case bridge.ControlResonance:
		cc := int32(clampInt(v*127/1000, 0, 127))
		h.synth.ProcessMidiMessage(n.channel, midiControlChange, ccResonance, cc)
	}
}

// Render renders len(left) samples, starting and stopping notes at their
// sample positions.
func (h *SynthHost) Render(left, right []float32) {
	h.mu.Lock()
	defer h.mu.Unlock()

	total := int64(len(left))
	var done int64
	for done < total {
		h.fire()
		chunk := total - done
		if next, ok := h.nextChange(); ok && next-h.pos < chunk {
			chunk = max(next-h.pos, 1)
		}
		l, r := left[done:done+chunk], right[done:done+chunk]
		h.synth.Render(l, r)
		if h.gain != 1 {
			for i := range l {
				l[i] *= h.gain
				r[i] *= h.gain
			}
		}
		h.pos += chunk
		done += chunk
	}
	h.fire()
}

// fire starts and stops the notes due at the current position and forgets
// finished ones.
func (h *SynthHost) fire() {
	for _, n := range h.order {
		if n.start > h.pos {
			break
		}
		if !n.done && !n.playing {
			n.playing = true
			h.synth.ProcessMidiMessage(n.channel, midiControlChange, ccVolume, 100)
			for c, v := range n.params {
				if c != bridge.ControlNote && c != bridge.ControlVelocity {
					h.applyParam(n, c, v)
				}
			}
			h.synth.NoteOn(n.channel, n.key, n.velocity)
		}
		if n.playing && n.end >= 0 && n.end <= h.pos {
			h.stop(n)
		}
	}
	h.order = slices.DeleteFunc(h.order, func(n *note) bool {
		if n.done {
			delete(h.notes, n.id)
			return true
		}
		return false
	})
}

// nextChange returns the next sample position where a note starts or ends.
func (h *SynthHost) nextChange() (int64, bool) {
	next, ok := int64(math.MaxInt64), false
	for _, n := range h.order {
		switch {
		case !n.playing && n.start > h.pos:
			next, ok = min(next, n.start), true
		case n.playing && n.end > h.pos:
			next, ok = min(next, n.end), true
		}
	}
	return next, ok
}

// Position returns the number of samples rendered so far.
func (h *SynthHost) Position() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pos
}

// Sounding returns the number of notes currently playing.
func (h *SynthHost) Sounding() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, nt := range h.order {
		if nt.playing {
			n++
		}
	}
	return n
}

func mdBToGain(mdB int64) float64 {
	return math.Pow(10, float64(mdB)/20000)
}

func clampInt(v, lo, hi int64) int64 {
	return min(max(v, lo), hi)
}
