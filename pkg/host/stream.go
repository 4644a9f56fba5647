package host

import (
	"encoding/binary"
	"sync"
)

// Ticker is advanced once per engine tick, before the tick's audio is
// rendered.
type Ticker interface {
	Tick(tick int64)
}

// Renderer produces stereo audio.
type Renderer interface {
	Render(left, right []float32)
}

// Stream pulls audio from a Renderer in tick-sized slices and advances the
// Ticker at every tick boundary, so script timing follows the audio clock.
type Stream struct {
	mu sync.Mutex

	ticker        Ticker
	out           Renderer
	microsPerTick int64

	tick      int64
	remaining int64
	muted     bool

	left, right []float32
}

// NewStream creates a stream that ticks every microsPerTick microseconds of
// rendered audio.
func NewStream(ticker Ticker, out Renderer, microsPerTick int64) *Stream {
	if microsPerTick <= 0 {
		microsPerTick = 1000
	}
	return &Stream{
		ticker:        ticker,
		out:           out,
		microsPerTick: microsPerTick,
		left:          make([]float32, 0, 4096),
		right:         make([]float32, 0, 4096),
	}
}

// boundary is the first sample of tick.
func (s *Stream) boundary(tick int64) int64 {
	return tick * s.microsPerTick * SampleRate / 1_000_000
}

// Process renders len(left) samples into left and right.
func (s *Stream) Process(left, right []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.process(left, right)
}

func (s *Stream) process(left, right []float32) {
	n := int64(len(left))
	var done int64
	for done < n {
		if s.remaining == 0 {
			s.ticker.Tick(s.tick)
			s.remaining = s.boundary(s.tick+1) - s.boundary(s.tick)
			s.tick++
			continue
		}
		chunk := min(s.remaining, n-done)
		s.out.Render(left[done:done+chunk], right[done:done+chunk])
		s.remaining -= chunk
		done += chunk
	}
	if s.muted {
		clear(left)
		clear(right)
	}
}

// Read renders 16-bit little-endian interleaved stereo. It implements
// io.Reader for audio players.
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	samples := len(p) / 4
	if samples == 0 {
		return 0, nil
	}
	if cap(s.left) < samples {
		s.left = make([]float32, samples)
		s.right = make([]float32, samples)
	}
	left, right := s.left[:samples], s.right[:samples]
	s.process(left, right)

	for i := range samples {
		l := int16(clamp(left[i], -1, 1) * 32767)
		r := int16(clamp(right[i], -1, 1) * 32767)
		binary.LittleEndian.PutUint16(p[i*4:], uint16(l))
		binary.LittleEndian.PutUint16(p[i*4+2:], uint16(r))
	}
	return samples * 4, nil
}

// SetMuted silences the output. Ticks keep running.
func (s *Stream) SetMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = muted
}

// Ticks returns the number of ticks started so far.
func (s *Stream) Ticks() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

func clamp(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}
