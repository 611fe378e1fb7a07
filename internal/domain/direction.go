package domain

import "strings"

// Language is one side of the bidirectional pair.
type Language struct {
	// Locale is the recognition locale, e.g. "en-US".
	Locale string `json:"locale"`
	// Name is the human readable label shown on the toggle.
	Name string `json:"name"`
	// Voice is the speech locale used when this language is spoken.
	Voice string `json:"voice"`
}

// Code returns the primary language subtag used by translation endpoints.
func (l Language) Code() string {
	code, _, _ := strings.Cut(l.Locale, "-")
	return strings.ToLower(code)
}

// Direction is an ordered (source, target) language pair.
type Direction struct {
	Source Language `json:"source"`
	Target Language `json:"target"`
}

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	return Direction{Source: d.Target, Target: d.Source}
}

// SourceLocale is the locale the recognizer must be configured with.
func (d Direction) SourceLocale() string {
	return d.Source.Locale
}

// SourceLang is the translation source code.
func (d Direction) SourceLang() string {
	return d.Source.Code()
}

// TargetLang is the translation target code.
func (d Direction) TargetLang() string {
	return d.Target.Code()
}

// SpeechLocale is the locale translated text is spoken in.
func (d Direction) SpeechLocale() string {
	if d.Target.Voice != "" {
		return d.Target.Voice
	}
	return d.Target.Locale
}

// Label renders the direction as "Source ⇄ Target".
func (d Direction) Label() string {
	return nameOrLocale(d.Source) + " ⇄ " + nameOrLocale(d.Target)
}

// Equal compares directions by locale.
func (d Direction) Equal(other Direction) bool {
	return d.Source.Locale == other.Source.Locale && d.Target.Locale == other.Target.Locale
}

func nameOrLocale(l Language) string {
	if l.Name != "" {
		return l.Name
	}
	return l.Locale
}
