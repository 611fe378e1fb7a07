package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voicebridge/internal/domain"
)

var (
	closeStreamMessage = []byte(`{"type":"CloseStream"}`)
	keepAliveMessage   = []byte(`{"type":"KeepAlive"}`)
)

// session is one live listen socket. writeLoop is the only writer and
// readLoop the only reader of conn.
type session struct {
	conn      *websocket.Conn
	keepAlive time.Duration

	events chan domain.TranscriptEvent
	audio  chan []byte
	stop   chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup

	errMu sync.Mutex
	err   error

	sendMu     sync.Mutex
	sendClosed bool
	stopOnce   sync.Once
}

func startSession(ctx context.Context, conn *websocket.Conn, keepAlive time.Duration) *session {
	s := newSession(conn, keepAlive)

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
	go func() {
		s.wg.Wait()
		close(s.events)
		close(s.done)
		_ = conn.Close()
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
	return s
}

func newSession(conn *websocket.Conn, keepAlive time.Duration) *session {
	return &session{
		conn:      conn,
		keepAlive: keepAlive,
		events:    make(chan domain.TranscriptEvent, 64),
		audio:     make(chan []byte, 32),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (s *session) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.sendClosed {
		return errors.New("audio stream is already closed")
	}

	select {
	case s.audio <- append([]byte(nil), chunk...):
		return nil
	case <-s.stop:
	case <-s.done:
	}
	if err := s.waitErr(); err != nil {
		return err
	}
	return errors.New("session closed")
}

// CloseSend flushes queued audio and asks Deepgram to finish the stream.
func (s *session) CloseSend() error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if !s.sendClosed {
		s.sendClosed = true
		close(s.audio)
	}
	return nil
}

func (s *session) Events() <-chan domain.TranscriptEvent {
	return s.events
}

func (s *session) Wait() error {
	<-s.done
	return s.waitErr()
}

// Close drops the socket without waiting for pending results.
func (s *session) Close() error {
	s.halt()
	_ = s.conn.Close()
	<-s.done
	return s.waitErr()
}

func (s *session) halt() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *session) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *session) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func normalClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}

func (s *session) setErr(err error) {
	if err == nil || normalClose(err) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *session) fail(kind domain.RecognizerErrorKind, err error) {
	s.setErr(&domain.RecognizerError{Kind: kind, Err: err})
}

func (s *session) writeLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()
	lastWrite := time.Now()

	for {
		select {
		case chunk, ok := <-s.audio:
			if !ok {
				if err := s.conn.WriteMessage(websocket.TextMessage, closeStreamMessage); err != nil && !s.stopped() {
					s.fail(domain.RecognizerErrorNetwork, fmt.Errorf("failed to close stream: %w", err))
				}
				return
			}
			if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				if !s.stopped() {
					s.fail(domain.RecognizerErrorNetwork, fmt.Errorf("failed to send audio: %w", err))
				}
				return
			}
			lastWrite = time.Now()
		case <-ticker.C:
			if time.Since(lastWrite) < s.keepAlive {
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, keepAliveMessage); err != nil {
				if !s.stopped() {
					s.fail(domain.RecognizerErrorNetwork, fmt.Errorf("failed to send keepalive: %w", err))
				}
				return
			}
			lastWrite = time.Now()
		case <-s.stop:
			return
		}
	}
}

func (s *session) readLoop() {
	defer s.wg.Done()
	defer s.halt()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !s.stopped() && !normalClose(err) {
				s.fail(domain.RecognizerErrorNetwork, fmt.Errorf("failed to read provider event: %w", err))
			}
			return
		}

		var msg listenMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}

		if msg.isError() {
			detail := msg.errorDetail()
			s.fail(classifyErrorMessage(detail), errors.New(detail))
			return
		}

		if event, ok := msg.event(); ok {
			s.emit(event)
		}
	}
}

// emit may drop interim text under backpressure but never a final.
func (s *session) emit(event domain.TranscriptEvent) {
	if event.IsFinal() {
		select {
		case s.events <- event:
		case <-s.stop:
		}
		return
	}
	select {
	case s.events <- event:
	default:
	}
}

// listenMessage is one server message on the listen socket. Results,
// Metadata, SpeechStarted and UtteranceEnd share the envelope.
type listenMessage struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Description string `json:"description"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (m listenMessage) isError() bool {
	return strings.EqualFold(m.Type, "Error")
}

func (m listenMessage) errorDetail() string {
	for _, detail := range []string{m.Description, m.Message} {
		if trimmed := strings.TrimSpace(detail); trimmed != "" {
			return trimmed
		}
	}
	return "deepgram returned an unknown error"
}

func (m listenMessage) transcript() string {
	if len(m.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(m.Channel.Alternatives[0].Transcript)
}

func (m listenMessage) event() (domain.TranscriptEvent, bool) {
	if m.Type != "" && !strings.EqualFold(m.Type, "Results") {
		return domain.TranscriptEvent{}, false
	}
	text := m.transcript()
	if text == "" {
		return domain.TranscriptEvent{}, false
	}
	kind := domain.TranscriptKindPartial
	if m.IsFinal || m.SpeechFinal {
		kind = domain.TranscriptKindFinal
	}
	return domain.TranscriptEvent{Kind: kind, Text: text}, true
}
