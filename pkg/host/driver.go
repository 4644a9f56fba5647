package host

import (
	"errors"
	"fmt"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
)

// ErrPortAudioUnavailable is returned when the binary was built without the
// portaudio tag.
var ErrPortAudioUnavailable = errors.New("portaudio support not compiled in (build with -tags portaudio)")

// Driver pulls audio from a Stream and sends it to an output device.
type Driver interface {
	Start() error
	Close() error
}

// EbitenDriver plays a Stream through an Ebitengine audio player.
type EbitenDriver struct {
	player *audio.Player
	stream *Stream
}

// NewEbitenDriver creates a player for s on ctx. The context must run at
// SampleRate.
func NewEbitenDriver(ctx *audio.Context, s *Stream, buffer time.Duration) (*EbitenDriver, error) {
	if ctx.SampleRate() != SampleRate {
		return nil, fmt.Errorf("audio context runs at %d Hz, want %d", ctx.SampleRate(), SampleRate)
	}
	player, err := ctx.NewPlayer(s)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio player: %w", err)
	}
	if buffer > 0 {
		player.SetBufferSize(buffer)
	}
	return &EbitenDriver{player: player, stream: s}, nil
}

// Start begins playback.
func (d *EbitenDriver) Start() error {
	d.player.Play()
	return nil
}

// Close stops playback and releases the player.
func (d *EbitenDriver) Close() error {
	d.player.Pause()
	return d.player.Close()
}
