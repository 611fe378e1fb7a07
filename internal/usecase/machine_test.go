package usecase

import (
	"errors"
	"fmt"
	"testing"

	"voicebridge/internal/domain"
	"voicebridge/internal/ports"
)

func testDirection() domain.Direction {
	return domain.Direction{
		Source: domain.Language{Locale: "en-US", Name: "English", Voice: "en-GB"},
		Target: domain.Language{Locale: "tr-TR", Name: "Turkish", Voice: "tr-TR"},
	}
}

func step(t *testing.T, s machineState, ev event) (machineState, []effect) {
	t.Helper()
	next, effects, err := transition(s, ev)
	if err != nil {
		t.Fatalf("transition %T failed: %v", ev, err)
	}
	return next, effects
}

func listeningState(t *testing.T) machineState {
	t.Helper()
	s, _ := step(t, newMachineState(testDirection()), startEvent{})
	return s
}

func final(s machineState, text string) fragmentEvent {
	return fragmentEvent{generation: s.generation, text: text, final: true}
}

func interim(s machineState, text string) fragmentEvent {
	return fragmentEvent{generation: s.generation, text: text}
}

func effectsOf[T effect](effects []effect) []T {
	var out []T
	for _, eff := range effects {
		if typed, ok := eff.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

func TestTransitionStartFromIdle(t *testing.T) {
	t.Parallel()

	s, effects := step(t, newMachineState(testDirection()), startEvent{})
	if !s.listening() || s.generation != 1 {
		t.Fatalf("unexpected state: %+v", s)
	}

	starts := effectsOf[startRecognizerEffect](effects)
	if len(starts) != 1 || starts[0].locale != "en-US" || starts[0].generation != 1 {
		t.Fatalf("unexpected start effects: %+v", starts)
	}
	states := effectsOf[stateEffect](effects)
	if len(states) != 1 || states[0].reason != domain.SessionReasonListeningStarted {
		t.Fatalf("unexpected state effects: %+v", states)
	}
}

func TestTransitionStartWhileListening(t *testing.T) {
	t.Parallel()

	s := listeningState(t)
	next, effects, err := transition(s, startEvent{})
	if !errors.Is(err, ErrAlreadyListening) {
		t.Fatalf("expected ErrAlreadyListening, got %v", err)
	}
	if next.generation != s.generation {
		t.Fatalf("expected generation to be unchanged")
	}
	if len(effectsOf[startRecognizerEffect](effects)) != 0 {
		t.Fatalf("expected no recognizer start")
	}
}

func TestTransitionSingleInFlight(t *testing.T) {
	t.Parallel()

	s := listeningState(t)
	s, effects := step(t, s, final(s, "hello"))
	if len(effectsOf[dispatchEffect](effects)) != 1 || !s.inFlight {
		t.Fatalf("expected first utterance to dispatch")
	}

	s, effects = step(t, s, final(s, "world"))
	if len(effectsOf[dispatchEffect](effects)) != 0 {
		t.Fatalf("expected no second dispatch while in flight")
	}
	if s.pending != "world" {
		t.Fatalf("expected world to wait in the buffer, got %q", s.pending)
	}
}

func TestTransitionQueueDepthOne(t *testing.T) {
	t.Parallel()

	s := listeningState(t)
	s, _ = step(t, s, final(s, "U1"))
	s, _ = step(t, s, final(s, "U2"))
	s, effects := step(t, s, final(s, "U3"))

	superseded := effectsOf[noticeEffect](effects)
	if len(superseded) != 1 || superseded[0].kind != noticeSuperseded || superseded[0].text != "U2" {
		t.Fatalf("expected U2 to be dropped, got %+v", superseded)
	}

	s, effects = step(t, s, translationDoneEvent{direction: testDirection(), source: "U1", text: "T1"})
	dispatches := effectsOf[dispatchEffect](effects)
	if len(dispatches) != 1 || dispatches[0].text != "U3" {
		t.Fatalf("expected U3 to dispatch next, got %+v", dispatches)
	}
	if s.pending != "" || !s.inFlight {
		t.Fatalf("unexpected state after drain: %+v", s)
	}
}

func TestTransitionStaleResultAfterToggle(t *testing.T) {
	t.Parallel()

	s := listeningState(t)
	s, effects := step(t, s, final(s, "hello"))
	stamp := effectsOf[dispatchEffect](effects)[0].direction

	s, effects = step(t, s, toggleEvent{})
	notices := effectsOf[noticeEffect](effects)
	if len(notices) == 0 || notices[0].kind != noticeToggleInFlight {
		t.Fatalf("expected toggle warning, got %+v", notices)
	}

	s, effects = step(t, s, translationDoneEvent{direction: stamp, source: "hello", text: "merhaba"})
	if len(effectsOf[translationEffect](effects)) != 0 ||
		len(effectsOf[speakEffect](effects)) != 0 ||
		len(effectsOf[appendTranscriptEffect](effects)) != 0 {
		t.Fatalf("expected stale result to be discarded, got %+v", effects)
	}
	if s.translation != "" || s.inFlight {
		t.Fatalf("unexpected state: %+v", s)
	}
}

func TestTransitionStopFromIdleIsNoop(t *testing.T) {
	t.Parallel()

	s := newMachineState(testDirection())
	next, effects := step(t, s, stopEvent{})
	if len(effects) != 0 {
		t.Fatalf("expected no effects, got %+v", effects)
	}
	if next != s {
		t.Fatalf("expected unchanged state")
	}
}

func TestTransitionStopClearsSurfacesButKeepsInFlight(t *testing.T) {
	t.Parallel()

	s := listeningState(t)
	s, _ = step(t, s, final(s, "hello"))
	s, _ = step(t, s, final(s, "again"))

	s, effects := step(t, s, stopEvent{})
	if s.listening() || s.pending != "" || s.live != "" {
		t.Fatalf("unexpected state after stop: %+v", s)
	}
	if len(effectsOf[stopRecognizerEffect](effects)) != 1 {
		t.Fatalf("expected recognizer stop")
	}
	notices := effectsOf[noticeEffect](effects)
	if len(notices) != 1 || notices[0].kind != noticeDiscarded || notices[0].text != "again" {
		t.Fatalf("expected pending utterance to be discarded, got %+v", notices)
	}

	s, effects = step(t, s, translationDoneEvent{direction: testDirection(), source: "hello", text: "merhaba"})
	if len(effectsOf[appendTranscriptEffect](effects)) != 1 {
		t.Fatalf("expected result for same direction to be kept after stop")
	}
	if len(effectsOf[dispatchEffect](effects)) != 0 {
		t.Fatalf("expected no dispatch after stop")
	}
}

func TestTransitionToggleResetsSurfaces(t *testing.T) {
	t.Parallel()

	s := listeningState(t)
	s, _ = step(t, s, final(s, "hello"))
	s, _ = step(t, s, translationDoneEvent{direction: testDirection(), source: "hello", text: "merhaba"})
	s, _ = step(t, s, interim(s, "how are"))

	s, effects := step(t, s, toggleEvent{})
	if s.listening() {
		t.Fatalf("expected idle after toggle")
	}
	if s.live != "" || s.translation != "" || s.interim != "" {
		t.Fatalf("expected cleared surfaces: %+v", s)
	}
	if s.direction.SourceLocale() != "tr-TR" || s.direction.TargetLang() != "en" {
		t.Fatalf("unexpected direction: %+v", s.direction)
	}

	lives := effectsOf[liveEffect](effects)
	translations := effectsOf[translationEffect](effects)
	if len(lives) == 0 || lives[len(lives)-1].text != "" {
		t.Fatalf("expected live preview cleared")
	}
	if len(translations) == 0 || translations[len(translations)-1].text != "" {
		t.Fatalf("expected translation cleared")
	}
	states := effectsOf[stateEffect](effects)
	if len(states) != 1 || states[0].reason != domain.SessionReasonDirectionToggled {
		t.Fatalf("unexpected state effects: %+v", states)
	}
}

func TestTransitionToggleFromIdleDoesNotStopRecognizer(t *testing.T) {
	t.Parallel()

	s, effects := step(t, newMachineState(testDirection()), toggleEvent{})
	if len(effectsOf[stopRecognizerEffect](effects)) != 0 {
		t.Fatalf("expected no recognizer stop from idle")
	}
	if s.direction.SourceLocale() != "tr-TR" {
		t.Fatalf("expected flipped direction")
	}
}

func TestTransitionFailureSentinelReachesSpeakerAndTranscript(t *testing.T) {
	t.Parallel()

	s := listeningState(t)
	s, _ = step(t, s, final(s, "hello"))

	result := failedTranslation("hello")
	s, effects := step(t, s, translationDoneEvent{direction: testDirection(), source: result.source, text: result.text, failed: result.failed})

	speaks := effectsOf[speakEffect](effects)
	if len(speaks) != 1 || speaks[0].text != TranslationErrorText || speaks[0].locale != "tr-TR" {
		t.Fatalf("unexpected speak effects: %+v", speaks)
	}
	appends := effectsOf[appendTranscriptEffect](effects)
	if len(appends) != 1 || appends[0].text != TranslationErrorText || !appends[0].failed {
		t.Fatalf("unexpected append effects: %+v", appends)
	}
	if s.translation != TranslationErrorText {
		t.Fatalf("unexpected translation surface: %q", s.translation)
	}
}

func TestTransitionInterimUpdatesLiveOnly(t *testing.T) {
	t.Parallel()

	s := listeningState(t)
	s, effects := step(t, s, interim(s, " hel "))
	if s.live != "hel" || s.interim != "hel" {
		t.Fatalf("unexpected state: %+v", s)
	}
	if len(effectsOf[dispatchEffect](effects)) != 0 {
		t.Fatalf("expected no dispatch for interim text")
	}
}

func TestTransitionEmptyFinalIgnored(t *testing.T) {
	t.Parallel()

	s := listeningState(t)
	s, _ = step(t, s, interim(s, "hel"))
	s, effects := step(t, s, final(s, "   "))
	if len(effects) != 0 || s.pending != "" || s.inFlight {
		t.Fatalf("expected blank final to be ignored: %+v %+v", s, effects)
	}
	if s.interim != "" {
		t.Fatalf("expected final to clear interim")
	}
}

func TestTransitionMidSentencePauseSettlesTwice(t *testing.T) {
	t.Parallel()

	s := listeningState(t)
	s, first := step(t, s, final(s, "I would like"))
	s, _ = step(t, s, translationDoneEvent{direction: testDirection(), source: "I would like", text: "istiyorum"})
	_, second := step(t, s, final(s, "a coffee"))

	if len(effectsOf[dispatchEffect](first)) != 1 || len(effectsOf[dispatchEffect](second)) != 1 {
		t.Fatalf("expected two settlements for a paused sentence")
	}
}

func TestTransitionIgnoresStaleGeneration(t *testing.T) {
	t.Parallel()

	s := listeningState(t)
	old := s.generation
	s, _ = step(t, s, stopEvent{})
	s, _ = step(t, s, startEvent{})

	s, effects := step(t, s, fragmentEvent{generation: old, text: "late", final: true})
	if s.pending != "" || s.inFlight || len(effectsOf[dispatchEffect](effects)) != 0 {
		t.Fatalf("expected fragment from previous generation to be ignored")
	}
	s, effects = step(t, s, recognitionEndEvent{generation: old})
	if !s.listening() || len(effects) != 0 {
		t.Fatalf("expected end from previous generation to be ignored")
	}
}

func TestTransitionIgnoresFragmentsWhileIdle(t *testing.T) {
	t.Parallel()

	s := newMachineState(testDirection())
	s, effects := step(t, s, fragmentEvent{text: "hello", final: true})
	if s.pending != "" || s.live != "" {
		t.Fatalf("expected idle state to be untouched")
	}
	notices := effectsOf[noticeEffect](effects)
	if len(notices) != 1 || notices[0].kind != noticeIgnoredFragment {
		t.Fatalf("expected ignored notice, got %+v", notices)
	}
}

func TestTransitionRecognitionEndGoesIdle(t *testing.T) {
	t.Parallel()

	s := listeningState(t)
	s, effects := step(t, s, recognitionEndEvent{generation: s.generation})
	if s.listening() {
		t.Fatalf("expected idle after end")
	}
	if len(effectsOf[startRecognizerEffect](effects)) != 0 {
		t.Fatalf("expected no restart")
	}
	states := effectsOf[stateEffect](effects)
	if len(states) != 1 || states[0].reason != domain.SessionReasonRecognitionEnded {
		t.Fatalf("unexpected state effects: %+v", states)
	}
}

func TestTransitionRecognitionErrorShowsKind(t *testing.T) {
	t.Parallel()

	s := listeningState(t)
	s, effects := step(t, s, recognitionErrorEvent{generation: s.generation, kind: domain.RecognizerErrorNoSpeech})
	if s.listening() {
		t.Fatalf("expected idle after error")
	}
	if s.live != "Error: no-speech" {
		t.Fatalf("unexpected live preview: %q", s.live)
	}
	errs := effectsOf[errorEffect](effects)
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeRecognizer || errs[0].detail != "no-speech" {
		t.Fatalf("unexpected error effects: %+v", errs)
	}
	lives := effectsOf[liveEffect](effects)
	if lives[len(lives)-1].text != "Error: no-speech" {
		t.Fatalf("expected error preview to be emitted last")
	}
}

func TestTransitionRecognizerStartFailed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		code domain.ErrorCode
	}{
		{err: fmt.Errorf("deepgram: %w", ports.ErrRecognizerUnsupported), code: domain.ErrorCodeRecognizerUnsupported},
		{err: fmt.Errorf("%w: no microphone", ports.ErrAudioStream), code: domain.ErrorCodeAudioStream},
		{err: errors.New("dial failed"), code: domain.ErrorCodeRecognizer},
	}

	for _, tc := range cases {
		s := listeningState(t)
		s, effects := step(t, s, recognizerStartFailedEvent{generation: s.generation, err: tc.err})
		if s.listening() {
			t.Fatalf("expected idle after failed start")
		}
		errs := effectsOf[errorEffect](effects)
		if len(errs) != 1 || errs[0].code != tc.code {
			t.Fatalf("unexpected error effects for %v: %+v", tc.err, errs)
		}
	}
}
