package usecase

import "voicebridge/internal/ports"

// activeRecognition is the recognizer stream of one generation.
type activeRecognition struct {
	generation uint64
	locale     string
	session    ports.RecognitionSession
}

// translationResult is what a dispatched utterance produced.
type translationResult struct {
	source string
	text   string
	failed bool
}

func failedTranslation(source string) translationResult {
	return translationResult{source: source, text: TranslationErrorText, failed: true}
}
