//go:build portaudio

package host

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// PortAudioDriver renders a Stream from the PortAudio callback.
type PortAudioDriver struct {
	stream *portaudio.Stream
}

// NewPortAudioDriver opens the default output device.
func NewPortAudioDriver(s *Stream, framesPerBuffer int) (Driver, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("unable to set up portaudio: %w", err)
	}
	stream, err := portaudio.OpenDefaultStream(0, 2, SampleRate, framesPerBuffer, func(out [][]float32) {
		s.Process(out[0], out[1])
	})
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("error opening default output via portaudio: %w", err)
	}
	return &PortAudioDriver{stream: stream}, nil
}

// Start starts the device callback.
func (d *PortAudioDriver) Start() error {
	return d.stream.Start()
}

// Close stops the stream and shuts PortAudio down.
func (d *PortAudioDriver) Close() error {
	if err := d.stream.Stop(); err != nil {
		return err
	}
	if err := d.stream.Close(); err != nil {
		return err
	}
	return portaudio.Terminate()
}
