package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"voicebridge/internal/domain"
	"voicebridge/internal/metrics"
	"voicebridge/internal/ports"
)

var (
	ErrAlreadyListening = errors.New("already listening")
	ErrTranscriptEmpty  = errors.New("there is no translated text to export")

	ErrRecognizerUnsupported = ports.ErrRecognizerUnsupported
)

// Config controls the session controller.
type Config struct {
	Direction domain.Direction
	SessionID string
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
	Sinks     []ports.TranscriptSink
	Now       func() time.Time
}

// SessionController turns recognition fragments into single-flight
// translations, speaks the results and keeps the transcript log.
//
// Every operation goes through handle, which runs the state machine and its
// effects under mu. Effects never wait on work that needs mu.
type SessionController struct {
	recognizer ports.Recognizer
	speaker    ports.Speaker
	events     ports.EventSink
	finalizer  translationFinalizer
	transcript *TranscriptLog
	sinks      []ports.TranscriptSink
	metrics    *metrics.Metrics
	log        zerolog.Logger
	sessionID  string
	now        func() time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup

	mu     sync.Mutex
	state  machineState
	active *activeRecognition
}

func NewSessionController(
	recognizer ports.Recognizer,
	translator ports.Translator,
	speaker ports.Speaker,
	rules ports.RulesEngine,
	events ports.EventSink,
	cfg Config,
) *SessionController {
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &SessionController{
		recognizer: recognizer,
		speaker:    speaker,
		events:     events,
		finalizer:  newTranslationFinalizer(rules, translator, events, cfg.Logger),
		transcript: NewTranscriptLog(),
		sinks:      cfg.Sinks,
		metrics:    cfg.Metrics,
		log:        cfg.Logger,
		sessionID:  cfg.SessionID,
		now:        cfg.Now,
		ctx:        ctx,
		cancel:     cancel,
		state:      newMachineState(cfg.Direction),
	}
}

// Start begins listening in the active direction's source locale.
func (c *SessionController) Start(_ context.Context) error {
	return c.handle(startEvent{})
}

// Stop ends listening. It is a no-op while idle and never waits for an
// in-flight translation.
func (c *SessionController) Stop() {
	_ = c.handle(stopEvent{reason: domain.SessionReasonListeningStopped})
}

// ToggleDirection stops the session and flips the direction.
func (c *SessionController) ToggleDirection() domain.Direction {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.apply(toggleEvent{})
	return c.state.direction
}

// OnFragment feeds a recognition fragment for the current session.
func (c *SessionController) OnFragment(text string, isFinal bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.RecordFragment(isFinal)
	_ = c.apply(fragmentEvent{generation: c.state.generation, text: text, final: isFinal})
}

// OnRecognitionEnd reports that the current recognizer stream ended by itself.
func (c *SessionController) OnRecognitionEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.apply(recognitionEndEvent{generation: c.state.generation})
}

// OnRecognitionError reports a recognizer failure for the current session.
func (c *SessionController) OnRecognitionError(kind domain.RecognizerErrorKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.RecordRecognizerError(string(kind))
	_ = c.apply(recognitionErrorEvent{generation: c.state.generation, kind: kind})
}

// Status returns the current backend status.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked("")
}

// Direction returns the active direction.
func (c *SessionController) Direction() domain.Direction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.direction
}

// Transcript returns a copy of the transcript log.
func (c *SessionController) Transcript() []domain.TranscriptEntry {
	return c.transcript.Entries()
}

// ExportTranscript renders the transcript log for download.
func (c *SessionController) ExportTranscript() (string, error) {
	content := c.transcript.Export()
	if content == "" {
		return "", ErrTranscriptEmpty
	}
	c.metrics.RecordExport()
	return content, nil
}

// ClearTranscript empties the transcript log.
func (c *SessionController) ClearTranscript() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transcript.Clear()
	c.metrics.RecordTranscriptSize(0)
	c.events.TranscriptAvailability(false)
}

// Close stops listening and waits for background work to finish.
func (c *SessionController) Close() {
	c.Stop()
	c.cancel()
	c.inflight.Wait()
}

func (c *SessionController) handle(ev event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apply(ev)
}

// apply must be called with mu held.
func (c *SessionController) apply(ev event) error {
	next, effects, err := transition(c.state, ev)
	c.state = next

	for _, eff := range effects {
		followup, runErr := c.run(eff)
		if followup != nil {
			_ = c.apply(followup)
			return runErr
		}
	}
	return err
}

func (c *SessionController) run(eff effect) (event, error) {
	switch eff := eff.(type) {
	case startRecognizerEffect:
		return c.startRecognizer(eff)
	case stopRecognizerEffect:
		c.stopRecognizer()
	case dispatchEffect:
		c.dispatch(eff)
	case speakEffect:
		c.speaker.Speak(eff.text, eff.locale)
	case appendTranscriptEffect:
		c.appendTranscript(eff)
	case liveEffect:
		c.events.LiveTranscript(eff.text)
	case translationEffect:
		c.events.TranslationReady(eff.text)
	case stateEffect:
		if c.state.listening() {
			c.metrics.RecordSessionStart()
		} else {
			c.metrics.RecordSessionIdle()
		}
		c.events.SessionStateChanged(c.statusLocked(statusMessage(eff.reason, c.state.direction)), eff.reason)
	case errorEffect:
		c.events.SessionError(eff.code, eff.detail)
	case noticeEffect:
		c.notice(eff)
	}
	return nil, nil
}

func (c *SessionController) startRecognizer(eff startRecognizerEffect) (event, error) {
	session, err := c.recognizer.Start(c.ctx, eff.locale)
	if err != nil {
		c.log.Error().Err(err).Str("locale", eff.locale).Msg("recognizer failed to start")
		return recognizerStartFailedEvent{generation: eff.generation, err: err}, err
	}

	active := &activeRecognition{generation: eff.generation, locale: eff.locale, session: session}
	c.active = active
	c.log.Info().Str("locale", eff.locale).Uint64("generation", eff.generation).Msg("listening")

	c.inflight.Add(1)
	go c.consume(active)
	return nil, nil
}

func (c *SessionController) stopRecognizer() {
	active := c.active
	c.active = nil
	if active == nil {
		return
	}
	if err := active.session.Stop(); err != nil {
		c.log.Warn().Err(err).Uint64("generation", active.generation).Msg("recognizer did not stop cleanly")
	}
}

// consume forwards one recognition stream into the controller. Events from a
// superseded generation are dropped by the state machine.
func (c *SessionController) consume(active *activeRecognition) {
	defer c.inflight.Done()

	for ev := range active.session.Events() {
		c.metrics.RecordFragment(ev.IsFinal())
		_ = c.handle(fragmentEvent{generation: active.generation, text: ev.Text, final: ev.IsFinal()})
	}

	err := active.session.Wait()
	if err == nil {
		_ = c.handle(recognitionEndEvent{generation: active.generation})
		return
	}

	kind := domain.RecognizerErrorOther
	var recErr *domain.RecognizerError
	if errors.As(err, &recErr) {
		kind = recErr.Kind
	}
	code := domain.ErrorCodeRecognizer
	switch {
	case errors.Is(err, ports.ErrAudioStream):
		code = domain.ErrorCodeAudioStream
	case errors.Is(err, ports.ErrRecognizerUnsupported):
		code = domain.ErrorCodeRecognizerUnsupported
	}
	c.metrics.RecordRecognizerError(string(kind))
	c.log.Warn().Err(err).Str("kind", string(kind)).Uint64("generation", active.generation).Msg("recognition failed")
	_ = c.handle(recognitionErrorEvent{generation: active.generation, kind: kind, code: code, detail: err.Error()})
}

func (c *SessionController) dispatch(eff dispatchEffect) {
	c.metrics.RecordSettled()
	c.log.Debug().
		Str("source", eff.direction.SourceLang()).
		Str("target", eff.direction.TargetLang()).
		Msg("dispatching translation")

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		started := c.now()
		result := c.finalizer.Finalize(c.ctx, eff.text, eff.direction)
		c.metrics.RecordTranslation(result.failed, c.now().Sub(started).Seconds())

		_ = c.handle(translationDoneEvent{
			direction: eff.direction,
			source:    result.source,
			text:      result.text,
			failed:    result.failed,
		})
	}()
}

func (c *SessionController) appendTranscript(eff appendTranscriptEffect) {
	entry, ok := c.transcript.Append(domain.TranscriptEntry{
		ID:         uuid.NewString(),
		SessionID:  c.sessionID,
		SourceText: eff.source,
		Text:       eff.text,
		SourceLang: eff.direction.SourceLang(),
		TargetLang: eff.direction.TargetLang(),
		Failed:     eff.failed,
		CreatedAt:  c.now().UTC(),
	})
	if !ok {
		return
	}

	c.metrics.RecordTranscriptSize(c.transcript.Len())
	c.events.TranscriptAvailability(true)
	c.publish(entry)
}

func (c *SessionController) publish(entry domain.TranscriptEntry) {
	for _, sink := range c.sinks {
		c.inflight.Add(1)
		go func(sink ports.TranscriptSink) {
			defer c.inflight.Done()
			if err := sink.Publish(c.ctx, entry); err != nil {
				c.metrics.RecordPublishError()
				c.log.Warn().Err(err).Str("entry_id", entry.ID).Msg("failed to publish transcript entry")
				c.events.SessionError(domain.ErrorCodePublish, err.Error())
			}
		}(sink)
	}
}

func (c *SessionController) notice(eff noticeEffect) {
	switch eff.kind {
	case noticeSuperseded:
		c.metrics.RecordDropped(string(noticeSuperseded))
		c.log.Info().Str("text", eff.text).Msg("utterance superseded before dispatch")
	case noticeDiscarded:
		c.metrics.RecordDropped(string(noticeDiscarded))
		c.log.Info().Str("text", eff.text).Msg("pending utterance discarded")
	case noticeStale:
		c.metrics.RecordStale()
		c.log.Info().Str("text", eff.text).Msg("discarding translation for previous direction")
	case noticeToggleInFlight:
		c.log.Warn().Msg("direction toggled while a translation is in flight")
	case noticeAlreadyStarted:
		c.log.Debug().Msg("start ignored, already listening")
	case noticeIgnoredFragment:
		c.log.Debug().Str("text", eff.text).Msg("fragment ignored")
	case noticeSettled:
		c.log.Debug().Str("text", eff.text).Msg("utterance settled")
	}
}

func (c *SessionController) statusLocked(message string) domain.Status {
	s := c.state
	listening := s.listening()
	return domain.Status{
		State:               s.session,
		Listening:           listening,
		StartEnabled:        !listening,
		StopEnabled:         listening,
		Direction:           s.direction,
		ToggleLabel:         s.direction.Opposite().Label(),
		LiveTranscript:      s.live,
		Translation:         s.translation,
		TranscriptAvailable: c.transcript.Len() > 0,
		Message:             message,
	}
}

func statusMessage(reason domain.SessionStateReason, direction domain.Direction) string {
	switch reason {
	case domain.SessionReasonListeningStarted:
		return "Listening: " + direction.Label()
	case domain.SessionReasonListeningStopped:
		return "Stopped"
	case domain.SessionReasonDirectionToggled:
		return "Direction: " + direction.Label()
	case domain.SessionReasonRecognitionEnded:
		return "Recognition ended"
	case domain.SessionReasonRecognitionFailed:
		return "Recognition failed"
	default:
		return ""
	}
}
