// Package webspeech drives the webview's SpeechRecognition from Go. The
// frontend runs the recognizer and reports back through the app bindings.
package webspeech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"voicebridge/internal/domain"
	"voicebridge/internal/ports"
)

// Commander tells the webview to start or stop its recognizer.
type Commander interface {
	StartRecognition(sessionID string, locale string)
	StopRecognition(sessionID string)
}

// Recognizer implements ports.Recognizer on top of the webview bridge.
// Only one session is current; reports arriving while none is current are
// dropped.
type Recognizer struct {
	commander Commander

	mu          sync.Mutex
	unsupported bool
	current     *session
}

func NewRecognizer(commander Commander) *Recognizer {
	return &Recognizer{commander: commander}
}

func (r *Recognizer) Start(_ context.Context, locale string) (ports.RecognitionSession, error) {
	r.mu.Lock()
	if r.unsupported {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: webview has no SpeechRecognition", ports.ErrRecognizerUnsupported)
	}
	previous := r.current
	s := newSession(uuid.NewString(), locale, r)
	r.current = s
	r.mu.Unlock()

	if previous != nil {
		_ = previous.Stop()
	}

	go s.forward()
	r.commander.StartRecognition(s.id, locale)
	return s, nil
}

// Supported reports whether the webview announced speech recognition support.
func (r *Recognizer) Supported() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.unsupported
}

// MarkUnsupported records that the webview cannot recognize speech and
// fails the current session, if any.
func (r *Recognizer) MarkUnsupported() {
	r.mu.Lock()
	r.unsupported = true
	current := r.current
	r.mu.Unlock()

	if current != nil {
		current.finish(&domain.RecognizerError{Kind: domain.RecognizerErrorOther, Err: ports.ErrRecognizerUnsupported})
	}
}

// Push delivers one recognition result. It returns false when no session
// is listening.
func (r *Recognizer) Push(text string, isFinal bool) bool {
	current := r.active()
	if current == nil {
		return false
	}
	kind := domain.TranscriptKindPartial
	if isFinal {
		kind = domain.TranscriptKindFinal
	}
	return current.push(domain.TranscriptEvent{Kind: kind, Text: text})
}

// End reports that the webview recognizer stopped by itself.
func (r *Recognizer) End() bool {
	current := r.active()
	if current == nil {
		return false
	}
	current.finish(nil)
	return true
}

// Fail reports a webview recognizer error such as "not-allowed".
func (r *Recognizer) Fail(kind string, message string) bool {
	current := r.active()
	if current == nil {
		return false
	}
	parsed := domain.ParseRecognizerErrorKind(strings.TrimSpace(kind))
	var err error
	if message = strings.TrimSpace(message); message != "" {
		err = errors.New(message)
	}
	current.finish(&domain.RecognizerError{Kind: parsed, Err: err})
	return true
}

func (r *Recognizer) active() *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Recognizer) release(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == s {
		r.current = nil
	}
}

// session queues reports from the webview and forwards them in order on an
// unbuffered channel so nothing is delivered once Stop returns.
type session struct {
	id     string
	locale string
	owner  *Recognizer

	mu      sync.Mutex
	queue   []domain.TranscriptEvent
	ended   bool
	stopped bool
	err     error

	wake     chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	events   chan domain.TranscriptEvent
	done     chan struct{}
}

func newSession(id string, locale string, owner *Recognizer) *session {
	return &session{
		id:     id,
		locale: locale,
		owner:  owner,
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		events: make(chan domain.TranscriptEvent),
		done:   make(chan struct{}),
	}
}

func (s *session) Events() <-chan domain.TranscriptEvent {
	return s.events
}

func (s *session) Wait() error {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	return s.err
}

func (s *session) Stop() error {
	s.mu.Lock()
	alreadyEnded := s.ended
	s.stopped = true
	s.queue = nil
	s.mu.Unlock()

	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.done

	s.owner.release(s)
	if !alreadyEnded {
		s.owner.commander.StopRecognition(s.id)
	}
	return nil
}

func (s *session) push(ev domain.TranscriptEvent) bool {
	s.mu.Lock()
	if s.ended || s.stopped {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	s.signal()
	return true
}

func (s *session) finish(err error) {
	s.mu.Lock()
	if s.ended || s.stopped {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.err = err
	s.mu.Unlock()

	s.owner.release(s)
	s.signal()
}

func (s *session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *session) forward() {
	defer close(s.done)
	defer close(s.events)

	for {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case s.events <- ev:
			case <-s.stopCh:
				return
			}
			continue
		}
		ended := s.ended
		s.mu.Unlock()
		if ended {
			return
		}

		select {
		case <-s.wake:
		case <-s.stopCh:
			return
		}
	}
}
