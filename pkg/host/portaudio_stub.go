//go:build !portaudio

package host

// NewPortAudioDriver reports that PortAudio support is not compiled in.
func NewPortAudioDriver(s *Stream, framesPerBuffer int) (Driver, error) {
	return nil, ErrPortAudioUnavailable
}
