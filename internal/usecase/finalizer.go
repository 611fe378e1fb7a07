package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"voicebridge/internal/domain"
	"voicebridge/internal/ports"
)

// translationFinalizer turns one settled utterance into its translation.
// It runs outside the controller lock.
type translationFinalizer struct {
	rules      ports.RulesEngine
	translator ports.Translator
	events     ports.EventSink
	log        zerolog.Logger
}

func newTranslationFinalizer(rules ports.RulesEngine, translator ports.Translator, events ports.EventSink, log zerolog.Logger) translationFinalizer {
	return translationFinalizer{rules: rules, translator: translator, events: events, log: log}
}

func (f translationFinalizer) Finalize(ctx context.Context, utterance string, direction domain.Direction) translationResult {
	source := utterance
	if f.rules != nil {
		rewritten, err := f.rules.Apply(utterance, direction.SourceLang())
		if err != nil {
			f.log.Warn().Err(err).Msg("rules failed, translating raw utterance")
			f.events.SessionError(domain.ErrorCodeRules, err.Error())
		} else if strings.TrimSpace(rewritten) != "" {
			source = strings.TrimSpace(rewritten)
		}
	}

	translated, err := f.translator.Translate(ctx, source, direction.SourceLang(), direction.TargetLang())
	if err != nil {
		f.log.Error().Err(err).
			Str("source", direction.SourceLang()).
			Str("target", direction.TargetLang()).
			Msg("translation failed")
		f.events.SessionError(domain.ErrorCodeTranslation, fmt.Sprintf("translation failed: %v", err))
		return failedTranslation(source)
	}

	return translationResult{source: source, text: translated}
}
