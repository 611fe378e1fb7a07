package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"voicebridge/internal/domain"
	"voicebridge/internal/ports"
)

// StreamingRecognizerConfig controls audio-fed recognition.
type StreamingRecognizerConfig struct {
	Audio       ports.AudioConfig
	Streaming   ports.StreamingConfig
	ChunkSize   int
	WaitTimeout time.Duration
}

// StreamingRecognizer implements ports.Recognizer by pumping microphone audio
// into a streaming transcription provider.
type StreamingRecognizer struct {
	audio    ports.AudioCapture
	provider ports.TranscriptionProvider
	cfg      StreamingRecognizerConfig
}

func NewStreamingRecognizer(audio ports.AudioCapture, provider ports.TranscriptionProvider, cfg StreamingRecognizerConfig) *StreamingRecognizer {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 4 * time.Second
	}
	return &StreamingRecognizer{audio: audio, provider: provider, cfg: cfg}
}

func (r *StreamingRecognizer) Start(ctx context.Context, locale string) (ports.RecognitionSession, error) {
	sessionCtx, cancel := context.WithCancel(ctx)

	streamCfg := r.cfg.Streaming
	streamCfg.Language = locale
	stream, err := r.provider.StartStreaming(sessionCtx, streamCfg)
	if err != nil {
		cancel()
		return nil, err
	}

	audioSession, err := r.audio.Start(sessionCtx, r.cfg.Audio)
	if err != nil {
		_ = stream.Close()
		cancel()
		return nil, fmt.Errorf("failed to start audio capture: %w", err)
	}

	session := &streamingRecognition{
		cancel:   cancel,
		audio:    audioSession,
		stream:   stream,
		timeout:  r.cfg.WaitTimeout,
		pumpDone: make(chan struct{}),
	}
	go session.pump(r.cfg.ChunkSize)
	return session, nil
}

type streamingRecognition struct {
	cancel  context.CancelFunc
	audio   ports.AudioSession
	stream  ports.StreamingSession
	timeout time.Duration

	pumpDone chan struct{}
	pumpErr  error

	stopOnce sync.Once
	stopErr  error
	stopped  atomic.Bool
}

func (s *streamingRecognition) pump(chunkSize int) {
	defer close(s.pumpDone)
	s.pumpErr = pumpAudioChunks(s.audio, s.stream, chunkSize)
}

func (s *streamingRecognition) Events() <-chan domain.TranscriptEvent {
	return s.stream.Events()
}

// Wait returns nil when the stream ended by itself or was stopped.
func (s *streamingRecognition) Wait() error {
	streamErr := waitForStream(s.stream, s.timeout)

	_ = s.audio.Stop()
	s.cancel()
	<-s.pumpDone

	if s.stopped.Load() {
		return nil
	}
	if s.pumpErr != nil {
		return &domain.RecognizerError{Kind: domain.RecognizerErrorOther, Err: s.pumpErr}
	}
	return streamErr
}

func (s *streamingRecognition) Stop() error {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		s.cancel()
		s.stopErr = s.audio.Stop()
		_ = s.stream.Close()
	})
	return s.stopErr
}
