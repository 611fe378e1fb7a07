package domain

import (
	"fmt"
	"time"
)

// SessionState models the listening lifecycle.
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateListening SessionState = "listening"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady             SessionStateReason = "ready"
	SessionReasonListeningStarted  SessionStateReason = "listening_started"
	SessionReasonListeningStopped  SessionStateReason = "listening_stopped"
	SessionReasonDirectionToggled  SessionStateReason = "direction_toggled"
	SessionReasonRecognitionEnded  SessionStateReason = "recognition_ended"
	SessionReasonRecognitionFailed SessionStateReason = "recognition_failed"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup               ErrorCode = "startup"
	ErrorCodeRecognizerUnsupported ErrorCode = "recognizer_unsupported"
	ErrorCodeRecognizer            ErrorCode = "recognizer"
	ErrorCodeAudioStream           ErrorCode = "audio_stream"
	ErrorCodeTranslation           ErrorCode = "translation"
	ErrorCodeRules                 ErrorCode = "rules"
	ErrorCodeExport                ErrorCode = "export"
	ErrorCodePublish               ErrorCode = "publish"
)

// TranscriptKind identifies whether a stream event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent represents incremental recognition output from a provider.
type TranscriptEvent struct {
	Kind TranscriptKind `json:"kind"`
	Text string         `json:"text"`
}

// IsFinal reports whether the event carries finalized text.
func (e TranscriptEvent) IsFinal() bool {
	return e.Kind == TranscriptKindFinal
}

// RecognizerErrorKind is the coarse classification a recognizer reports.
type RecognizerErrorKind string

const (
	RecognizerErrorNoSpeech         RecognizerErrorKind = "no-speech"
	RecognizerErrorPermissionDenied RecognizerErrorKind = "permission-denied"
	RecognizerErrorNetwork          RecognizerErrorKind = "network"
	RecognizerErrorAborted          RecognizerErrorKind = "aborted"
	RecognizerErrorOther            RecognizerErrorKind = "other"
)

// ParseRecognizerErrorKind maps provider error names onto the known kinds.
// Web Speech reports "not-allowed" and "service-not-allowed" for permission problems.
func ParseRecognizerErrorKind(raw string) RecognizerErrorKind {
	switch raw {
	case string(RecognizerErrorNoSpeech):
		return RecognizerErrorNoSpeech
	case string(RecognizerErrorPermissionDenied), "not-allowed", "service-not-allowed":
		return RecognizerErrorPermissionDenied
	case string(RecognizerErrorNetwork):
		return RecognizerErrorNetwork
	case string(RecognizerErrorAborted):
		return RecognizerErrorAborted
	default:
		return RecognizerErrorOther
	}
}

// RecognizerError is returned by recognition sessions that end abnormally.
type RecognizerError struct {
	Kind RecognizerErrorKind
	Err  error
}

func (e *RecognizerError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RecognizerError) Unwrap() error {
	return e.Err
}

// TranscriptEntry is one translated sentence in the transcript log.
type TranscriptEntry struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	SourceText string    `json:"sourceText"`
	Text       string    `json:"text"`
	SourceLang string    `json:"sourceLang"`
	TargetLang string    `json:"targetLang"`
	Failed     bool      `json:"failed"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Status summarizes the current runtime status.
type Status struct {
	State               SessionState `json:"state"`
	Listening           bool         `json:"listening"`
	StartEnabled        bool         `json:"startEnabled"`
	StopEnabled         bool         `json:"stopEnabled"`
	Direction           Direction    `json:"direction"`
	ToggleLabel         string       `json:"toggleLabel"`
	LiveTranscript      string       `json:"liveTranscript"`
	Translation         string       `json:"translation"`
	TranscriptAvailable bool         `json:"transcriptAvailable"`
	Message             string       `json:"message,omitempty"`
}
