// Package speech implements the fire-and-forget speakers.
package speech

import (
	"context"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// PrepareText spaces out zeros so voices read "100" digit by digit instead
// of swallowing the trailing zeros.
func PrepareText(text string) string {
	return strings.ReplaceAll(strings.TrimSpace(text), "0", " 0")
}

// Emitter hands an utterance to something that plays it, e.g. the webview.
type Emitter func(text string, locale string)

// EventSpeaker forwards utterances to the webview's speechSynthesis.
type EventSpeaker struct {
	emit Emitter
}

func NewEventSpeaker(emit Emitter) *EventSpeaker {
	return &EventSpeaker{emit: emit}
}

func (s *EventSpeaker) Speak(text string, locale string) {
	text = PrepareText(text)
	if text == "" || s.emit == nil {
		return
	}
	s.emit(text, locale)
}

// CommandSpeaker runs an external TTS program such as espeak-ng once per
// utterance. Calls may overlap.
type CommandSpeaker struct {
	command string
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCommandSpeaker(command string, log zerolog.Logger) *CommandSpeaker {
	if strings.TrimSpace(command) == "" {
		command = "espeak-ng"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &CommandSpeaker{command: command, log: log, ctx: ctx, cancel: cancel}
}

func (s *CommandSpeaker) Speak(text string, locale string) {
	text = PrepareText(text)
	if text == "" {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		cmd := exec.CommandContext(s.ctx, s.command, commandArgs(text, locale)...)
		if out, err := cmd.CombinedOutput(); err != nil && s.ctx.Err() == nil {
			s.log.Warn().Err(err).
				Str("command", s.command).
				Str("locale", locale).
				Str("output", strings.TrimSpace(string(out))).
				Msg("tts command failed")
		}
	}()
}

// Close kills running utterances and waits for them.
func (s *CommandSpeaker) Close() {
	s.cancel()
	s.wg.Wait()
}

// Wait blocks until every started utterance finished.
func (s *CommandSpeaker) Wait() {
	s.wg.Wait()
}

// commandArgs builds espeak-style arguments. The voice is the lowercase
// locale, e.g. "tr-tr".
func commandArgs(text string, locale string) []string {
	var args []string
	if voice := strings.ToLower(strings.TrimSpace(locale)); voice != "" {
		args = append(args, "-v", voice)
	}
	return append(args, "--", text)
}
