package usecase

import (
	"errors"
	"strings"

	"voicebridge/internal/domain"
	"voicebridge/internal/ports"
)

// TranslationErrorText replaces the result of a failed translation.
const TranslationErrorText = "Translation Error"

// machineState is everything the controller decides on. It is only
// mutated by transition.
type machineState struct {
	session    domain.SessionState
	direction  domain.Direction
	generation uint64

	interim  string
	pending  string
	inFlight bool

	live        string
	translation string
}

func newMachineState(direction domain.Direction) machineState {
	return machineState{session: domain.SessionStateIdle, direction: direction}
}

func (s machineState) listening() bool {
	return s.session == domain.SessionStateListening
}

type event interface{ isEvent() }

type startEvent struct{}

type stopEvent struct {
	reason domain.SessionStateReason
}

type toggleEvent struct{}

type fragmentEvent struct {
	generation uint64
	text       string
	final      bool
}

type recognitionEndEvent struct {
	generation uint64
}

type recognitionErrorEvent struct {
	generation uint64
	kind       domain.RecognizerErrorKind
	code       domain.ErrorCode
	detail     string
}

type recognizerStartFailedEvent struct {
	generation uint64
	err        error
}

type translationDoneEvent struct {
	direction domain.Direction
	source    string
	text      string
	failed    bool
}

func (startEvent) isEvent()                 {}
func (stopEvent) isEvent()                  {}
func (toggleEvent) isEvent()                {}
func (fragmentEvent) isEvent()              {}
func (recognitionEndEvent) isEvent()        {}
func (recognitionErrorEvent) isEvent()      {}
func (recognizerStartFailedEvent) isEvent() {}
func (translationDoneEvent) isEvent()       {}

type effect interface{ isEffect() }

type startRecognizerEffect struct {
	locale     string
	generation uint64
}

type stopRecognizerEffect struct{}

type dispatchEffect struct {
	text      string
	direction domain.Direction
}

type speakEffect struct {
	text   string
	locale string
}

type appendTranscriptEffect struct {
	source    string
	text      string
	direction domain.Direction
	failed    bool
}

type liveEffect struct{ text string }

type translationEffect struct{ text string }

type stateEffect struct {
	reason domain.SessionStateReason
}

type errorEffect struct {
	code   domain.ErrorCode
	detail string
}

type noticeKind string

const (
	noticeSettled         noticeKind = "settled"
	noticeSuperseded      noticeKind = "superseded"
	noticeDiscarded       noticeKind = "discarded"
	noticeStale           noticeKind = "stale"
	noticeToggleInFlight  noticeKind = "toggle_in_flight"
	noticeAlreadyStarted  noticeKind = "already_listening"
	noticeIgnoredFragment noticeKind = "ignored_fragment"
)

type noticeEffect struct {
	kind noticeKind
	text string
}

func (startRecognizerEffect) isEffect()  {}
func (stopRecognizerEffect) isEffect()   {}
func (dispatchEffect) isEffect()         {}
func (speakEffect) isEffect()            {}
func (appendTranscriptEffect) isEffect() {}
func (liveEffect) isEffect()             {}
func (translationEffect) isEffect()      {}
func (stateEffect) isEffect()            {}
func (errorEffect) isEffect()            {}
func (noticeEffect) isEffect()           {}

// transition is the session state machine. It never performs I/O; the
// returned effects are executed in order by the controller.
func transition(s machineState, ev event) (machineState, []effect, error) {
	switch ev := ev.(type) {
	case startEvent:
		return onStart(s)
	case stopEvent:
		next, effects := onStop(s, ev.reason)
		return next, effects, nil
	case toggleEvent:
		next, effects := onToggle(s)
		return next, effects, nil
	case fragmentEvent:
		next, effects := onFragment(s, ev)
		return next, effects, nil
	case recognitionEndEvent:
		next, effects := onRecognitionEnd(s, ev)
		return next, effects, nil
	case recognitionErrorEvent:
		next, effects := onRecognitionError(s, ev)
		return next, effects, nil
	case recognizerStartFailedEvent:
		next, effects := onRecognizerStartFailed(s, ev)
		return next, effects, nil
	case translationDoneEvent:
		next, effects := onTranslationDone(s, ev)
		return next, effects, nil
	default:
		return s, nil, errors.New("unknown session event")
	}
}

func onStart(s machineState) (machineState, []effect, error) {
	if s.listening() {
		return s, []effect{noticeEffect{kind: noticeAlreadyStarted}}, ErrAlreadyListening
	}

	s.session = domain.SessionStateListening
	s.generation++
	s.interim = ""
	s.live = ""

	return s, []effect{
		startRecognizerEffect{locale: s.direction.SourceLocale(), generation: s.generation},
		liveEffect{text: ""},
		stateEffect{reason: domain.SessionReasonListeningStarted},
	}, nil
}

func onStop(s machineState, reason domain.SessionStateReason) (machineState, []effect) {
	if !s.listening() {
		return s, nil
	}
	if reason == "" {
		reason = domain.SessionReasonListeningStopped
	}

	s, effects := halt(s)
	return s, append(effects, stateEffect{reason: reason})
}

// halt is the shared part of stop, toggle and recognizer failure: the
// recognizer is released, undispatched work and both surfaces are cleared.
func halt(s machineState) (machineState, []effect) {
	var effects []effect
	if s.listening() {
		effects = append(effects, stopRecognizerEffect{})
	}
	if s.pending != "" {
		effects = append(effects, noticeEffect{kind: noticeDiscarded, text: s.pending})
	}

	s.session = domain.SessionStateIdle
	s.interim = ""
	s.pending = ""
	s.live = ""
	s.translation = ""

	return s, append(effects, liveEffect{text: ""}, translationEffect{text: ""})
}

func onToggle(s machineState) (machineState, []effect) {
	var effects []effect
	if s.inFlight {
		effects = append(effects, noticeEffect{kind: noticeToggleInFlight})
	}

	s, halted := halt(s)
	s.direction = s.direction.Opposite()

	effects = append(effects, halted...)
	return s, append(effects, stateEffect{reason: domain.SessionReasonDirectionToggled})
}

func onFragment(s machineState, ev fragmentEvent) (machineState, []effect) {
	if !s.listening() || ev.generation != s.generation {
		return s, []effect{noticeEffect{kind: noticeIgnoredFragment, text: ev.text}}
	}

	var effects []effect
	text := strings.TrimSpace(ev.text)
	if !ev.final {
		s.interim = text
		s.live = text
		return s, []effect{liveEffect{text: text}}
	}

	s.interim = ""
	if text == "" {
		return s, nil
	}
	if s.pending != "" {
		effects = append(effects, noticeEffect{kind: noticeSuperseded, text: s.pending})
	}
	s.pending = text
	s.live = text
	effects = append(effects, liveEffect{text: text})

	if !s.inFlight {
		var dispatched []effect
		s, dispatched = dispatchPending(s)
		effects = append(effects, dispatched...)
	}
	return s, effects
}

func dispatchPending(s machineState) (machineState, []effect) {
	if s.pending == "" || s.inFlight {
		return s, nil
	}
	text := s.pending
	s.pending = ""
	s.inFlight = true
	return s, []effect{
		noticeEffect{kind: noticeSettled, text: text},
		dispatchEffect{text: text, direction: s.direction},
	}
}

func onRecognitionEnd(s machineState, ev recognitionEndEvent) (machineState, []effect) {
	if !s.listening() || ev.generation != s.generation {
		return s, nil
	}
	s.session = domain.SessionStateIdle
	s.interim = ""
	return s, []effect{stateEffect{reason: domain.SessionReasonRecognitionEnded}}
}

func onRecognitionError(s machineState, ev recognitionErrorEvent) (machineState, []effect) {
	if !s.listening() || ev.generation != s.generation {
		return s, nil
	}

	kind := ev.kind
	if kind == "" {
		kind = domain.RecognizerErrorOther
	}
	detail := ev.detail
	if detail == "" {
		detail = string(kind)
	}
	code := ev.code
	if code == "" {
		code = domain.ErrorCodeRecognizer
	}

	s, effects := halt(s)
	s.live = "Error: " + string(kind)
	return s, append(effects,
		liveEffect{text: s.live},
		errorEffect{code: code, detail: detail},
		stateEffect{reason: domain.SessionReasonRecognitionFailed},
	)
}

func onRecognizerStartFailed(s machineState, ev recognizerStartFailedEvent) (machineState, []effect) {
	if !s.listening() || ev.generation != s.generation {
		return s, nil
	}

	code := domain.ErrorCodeRecognizer
	switch {
	case errors.Is(ev.err, ports.ErrRecognizerUnsupported):
		code = domain.ErrorCodeRecognizerUnsupported
	case errors.Is(ev.err, ports.ErrAudioStream):
		code = domain.ErrorCodeAudioStream
	}
	detail := "speech recognition failed to start"
	if ev.err != nil {
		detail = ev.err.Error()
	}

	s.session = domain.SessionStateIdle
	return s, []effect{
		errorEffect{code: code, detail: detail},
		stateEffect{reason: domain.SessionReasonRecognitionFailed},
	}
}

func onTranslationDone(s machineState, ev translationDoneEvent) (machineState, []effect) {
	s.inFlight = false

	var effects []effect
	if ev.direction.Equal(s.direction) {
		s.translation = ev.text
		effects = append(effects,
			translationEffect{text: ev.text},
			speakEffect{text: ev.text, locale: ev.direction.SpeechLocale()},
			appendTranscriptEffect{source: ev.source, text: ev.text, direction: ev.direction, failed: ev.failed},
		)
	} else {
		effects = append(effects, noticeEffect{kind: noticeStale, text: ev.text})
	}

	s, dispatched := dispatchPending(s)
	return s, append(effects, dispatched...)
}
