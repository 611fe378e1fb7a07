//go:build portaudio

package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"voicebridge/internal/ports"
)

const framesPerBuffer = 1024

// PortAudioCapture records the default input device through PortAudio.
type PortAudioCapture struct {
	log zerolog.Logger
}

func NewPortAudioCapture(log zerolog.Logger) (*PortAudioCapture, error) {
	return &PortAudioCapture{log: log}, nil
}

func (c *PortAudioCapture) Start(_ context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cfg = withAudioDefaults(cfg)

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initialize portaudio: %v", ports.ErrAudioStream, err)
	}

	buffer := make([]int16, framesPerBuffer*cfg.Channels)
	stream, err := portaudio.OpenDefaultStream(cfg.Channels, 0, float64(cfg.SampleRate), framesPerBuffer, buffer)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("%w: open input stream: %v", ports.ErrAudioStream, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("%w: start input stream: %v", ports.ErrAudioStream, err)
	}

	c.log.Debug().Int("sample_rate", cfg.SampleRate).Int("channels", cfg.Channels).Msg("portaudio capture started")
	return &portAudioSession{stream: stream, samples: buffer, log: c.log}, nil
}

type portAudioSession struct {
	stream  *portaudio.Stream
	samples []int16
	log     zerolog.Logger

	mu      sync.Mutex
	pending []byte
	stopped bool
	stopErr error
}

// Read serves little-endian PCM, reading one buffer from the device when
// nothing is pending.
func (s *portAudioSession) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return 0, io.EOF
	}
	if len(s.pending) == 0 {
		if err := s.stream.Read(); err != nil {
			return 0, fmt.Errorf("%w: read input stream: %v", ports.ErrAudioStream, err)
		}
		s.pending = encodePCM(s.samples)
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *portAudioSession) Close() error {
	return s.Stop()
}

// Stop waits for an in-progress Read, which returns within one buffer.
func (s *portAudioSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return s.stopErr
	}
	s.stopped = true

	if err := s.stream.Stop(); err != nil {
		s.stopErr = err
	}
	if err := s.stream.Close(); err != nil && s.stopErr == nil {
		s.stopErr = err
	}
	if err := portaudio.Terminate(); err != nil && s.stopErr == nil {
		s.stopErr = err
	}
	s.log.Debug().Err(s.stopErr).Msg("portaudio capture stopped")
	return s.stopErr
}

func encodePCM(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}
