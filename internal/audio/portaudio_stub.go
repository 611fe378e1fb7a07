//go:build !portaudio

package audio

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"voicebridge/internal/ports"
)

// ErrPortAudioUnavailable is returned when the binary was built without the
// portaudio tag.
var ErrPortAudioUnavailable = errors.New("portaudio capture requires building with -tags portaudio")

type PortAudioCapture struct{}

func NewPortAudioCapture(zerolog.Logger) (*PortAudioCapture, error) {
	return nil, ErrPortAudioUnavailable
}

func (*PortAudioCapture) Start(context.Context, ports.AudioConfig) (ports.AudioSession, error) {
	return nil, ErrPortAudioUnavailable
}
