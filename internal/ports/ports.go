package ports

import (
	"context"
	"errors"
	"io"

	"voicebridge/internal/domain"
)

// ErrRecognizerUnsupported means recognition cannot start at all in this
// runtime, e.g. a provider without credentials or a webview without speech
// recognition.
var ErrRecognizerUnsupported = errors.New("speech recognition is not supported")

// ErrAudioStream marks recognition failures caused by microphone capture or
// by feeding audio to a provider.
var ErrAudioStream = errors.New("audio stream failed")

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
	Language       string
}

// StreamingSession is an active audio-fed provider session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions from raw audio.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// RecognitionSession is a continuous recognition stream in one locale.
//
// Events is closed when the stream ends. Wait then returns nil for a
// self-ended stream or a *domain.RecognizerError. No events are delivered
// after Stop returns. Stop must not wait for the Events consumer.
type RecognitionSession interface {
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Stop() error
}

// Recognizer starts recognition streams.
type Recognizer interface {
	Start(ctx context.Context, locale string) (RecognitionSession, error)
}

// Translator converts text from source to target language.
type Translator interface {
	Translate(ctx context.Context, text string, sourceLang string, targetLang string) (string, error)
}

// Speaker voices text. Implementations must return without waiting for playback.
type Speaker interface {
	Speak(text string, locale string)
}

// RulesEngine rewrites an utterance in the given source language using
// deterministic rules.
type RulesEngine interface {
	Apply(text string, lang string) (string, error)
}

// TranscriptSink receives every appended transcript entry.
type TranscriptSink interface {
	Publish(ctx context.Context, entry domain.TranscriptEntry) error
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(status domain.Status, reason domain.SessionStateReason)
	LiveTranscript(text string)
	TranslationReady(text string)
	TranscriptAvailability(available bool)
	SessionError(code domain.ErrorCode, detail string)
}
