// Package google streams microphone audio to Google Cloud Speech-to-Text.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"voicebridge/internal/domain"
	"voicebridge/internal/ports"
)

// Config controls the Google streaming recognizer.
type Config struct {
	CredentialsFile string
	Endpoint        string
	Model           string
	Punctuation     bool
}

// streamingRecognizeClient is the part of
// speechpb.Speech_StreamingRecognizeClient the session uses.
type streamingRecognizeClient interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

type streamOpener func(ctx context.Context) (streamingRecognizeClient, error)

// Provider implements ports.TranscriptionProvider for Google Speech.
type Provider struct {
	open   streamOpener
	cfg    Config
	client *speech.Client
}

// NewClient dials the Speech API with the configured credentials.
func NewClient(ctx context.Context, cfg Config) (*speech.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: google speech client: %v", ports.ErrRecognizerUnsupported, err)
	}
	return client, nil
}

// NewProvider wraps a Speech client. A nil client makes every start fail
// as unsupported.
func NewProvider(client *speech.Client, cfg Config) *Provider {
	p := &Provider{cfg: cfg, client: client}
	if client != nil {
		p.open = func(ctx context.Context) (streamingRecognizeClient, error) {
			return client.StreamingRecognize(ctx)
		}
	}
	return p
}

// Close releases the underlying client.
func (p *Provider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *Provider) StartStreaming(ctx context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	if p.open == nil {
		return nil, fmt.Errorf("%w: google speech client is not configured", ports.ErrRecognizerUnsupported)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := p.open(streamCtx)
	if err != nil {
		cancel()
		return nil, classify(ctx, fmt.Errorf("failed to open google speech stream: %w", err))
	}

	if err := stream.Send(configRequest(p.cfg, cfg)); err != nil {
		_ = stream.CloseSend()
		cancel()
		return nil, classify(ctx, fmt.Errorf("failed to send streaming config: %w", err))
	}

	session := &streamingSession{
		ctx:       ctx,
		streamCtx: streamCtx,
		cancel:    cancel,
		stream:    stream,
		events:    make(chan domain.TranscriptEvent, 64),
		audio:     make(chan []byte, 32),
		done:      make(chan struct{}),
	}

	session.wg.Add(2)
	go session.readLoop()
	go session.writeLoop()
	go func() {
		session.wg.Wait()
		close(session.events)
		close(session.done)
		cancel()
	}()

	return session, nil
}

func configRequest(providerCfg Config, streamCfg ports.StreamingConfig) *speechpb.StreamingRecognizeRequest {
	if streamCfg.SampleRate <= 0 {
		streamCfg.SampleRate = 16000
	}
	if streamCfg.Channels <= 0 {
		streamCfg.Channels = 1
	}
	language := streamCfg.Language
	if language == "" {
		language = "en-US"
	}

	return &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz:            int32(streamCfg.SampleRate),
					AudioChannelCount:          int32(streamCfg.Channels),
					LanguageCode:               language,
					Model:                      providerCfg.Model,
					EnableAutomaticPunctuation: providerCfg.Punctuation,
				},
				InterimResults: streamCfg.InterimResults,
			},
		},
	}
}

type streamingSession struct {
	ctx       context.Context
	streamCtx context.Context
	cancel    context.CancelFunc
	stream    streamingRecognizeClient

	events chan domain.TranscriptEvent
	audio  chan []byte
	done   chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
	closing       atomic.Bool
	sendMu        sync.RWMutex
	sendClosed    bool
}

func (s *streamingSession) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return errors.New("audio stream is already closed")
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errors.New("session closed")
	}
}

func (s *streamingSession) CloseSend() error {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
	return nil
}

func (s *streamingSession) Events() <-chan domain.TranscriptEvent {
	return s.events
}

func (s *streamingSession) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *streamingSession) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		_ = s.CloseSend()
		s.cancel()
	})
	<-s.done
	return s.waitErr()
}

func (s *streamingSession) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *streamingSession) setErr(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *streamingSession) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case chunk, ok := <-s.audio:
			if !ok {
				_ = s.stream.CloseSend()
				return
			}
			req := &speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: chunk},
			}
			if err := s.stream.Send(req); err != nil {
				if !errors.Is(err, io.EOF) && !s.closing.Load() {
					s.setErr(classify(s.ctx, fmt.Errorf("failed to send audio: %w", err)))
				}
				s.cancel()
				return
			}
		case <-s.streamCtx.Done():
			return
		}
	}
}

func (s *streamingSession) readLoop() {
	defer s.wg.Done()
	// Unblock writeLoop once the server side is finished.
	defer s.cancel()

	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			if status.Code(err) == codes.Canceled && s.closing.Load() {
				return
			}
			s.setErr(classify(s.ctx, fmt.Errorf("failed to read recognition result: %w", err)))
			return
		}
		if resp.GetError() != nil && resp.GetError().GetCode() != int32(codes.OK) {
			s.setErr(classify(s.ctx, status.ErrorProto(resp.GetError())))
			return
		}

		for _, result := range resp.GetResults() {
			alternatives := result.GetAlternatives()
			if len(alternatives) == 0 {
				continue
			}
			text := strings.TrimSpace(alternatives[0].GetTranscript())
			if text == "" {
				continue
			}
			kind := domain.TranscriptKindPartial
			if result.GetIsFinal() {
				kind = domain.TranscriptKindFinal
			}
			s.emit(domain.TranscriptEvent{Kind: kind, Text: text})
		}
	}
}

// emit drops interim results the consumer has no room for; finals wait
// until the stream is torn down.
func (s *streamingSession) emit(event domain.TranscriptEvent) {
	if event.IsFinal() {
		select {
		case s.events <- event:
		case <-s.streamCtx.Done():
		}
		return
	}
	select {
	case s.events <- event:
	default:
	}
}

// classify maps grpc status codes onto recognizer error kinds.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	kind := domain.RecognizerErrorOther
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated:
		kind = domain.RecognizerErrorPermissionDenied
	case codes.Unavailable:
		kind = domain.RecognizerErrorNetwork
	case codes.Canceled:
		kind = domain.RecognizerErrorAborted
	case codes.OutOfRange, codes.DeadlineExceeded:
		kind = domain.RecognizerErrorNoSpeech
	}
	if ctx != nil && ctx.Err() != nil {
		kind = domain.RecognizerErrorAborted
	}
	return &domain.RecognizerError{Kind: kind, Err: err}
}
