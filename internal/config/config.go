package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	RecognizerDeepgram  = "deepgram"
	RecognizerGoogle    = "google"
	RecognizerWebSpeech = "webspeech"

	AudioBackendFFMPEG    = "ffmpeg"
	AudioBackendPortAudio = "portaudio"

	TranslatorGoogle = "google"
	TranslatorLibre  = "libre"

	SpeakerWebview = "webview"
	SpeakerCommand = "command"
)

// Config stores runtime configuration for the translation widget.
type Config struct {
	Languages     LanguagesConfig
	Recognizer    RecognizerConfig
	Deepgram      DeepgramConfig
	Google        GoogleConfig
	Audio         AudioConfig
	Rules         RulesConfig
	Translator    TranslatorConfig
	Speaker       SpeakerConfig
	Transcript    TranscriptConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
	Logging       LoggingConfig
	Session       SessionConfig
}

// LanguagesConfig is the bidirectional pair. A is the initial source.
type LanguagesConfig struct {
	ALocale string
	AName   string
	AVoice  string
	BLocale string
	BName   string
	BVoice  string
}

type RecognizerConfig struct {
	Backend string
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	SmartFormat bool
	KeepAlive   time.Duration
}

type GoogleConfig struct {
	CredentialsFile string
	Endpoint        string
	Model           string
	Punctuation     bool
}

type AudioConfig struct {
	Backend         string
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type RulesConfig struct {
	Path           string
	IterationLimit int
}

type TranslatorConfig struct {
	Backend       string
	GoogleBaseURL string
	LibreBaseURL  string
	LibreAPIKey   string
	Timeout       time.Duration
}

type SpeakerConfig struct {
	Backend string
	Command string
}

type TranscriptConfig struct {
	FilePrefix string
}

type KafkaConfig struct {
	Enabled   bool
	Brokers   []string
	Topic     string
	Principal string
}

type ObservabilityConfig struct {
	Addr string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type SessionConfig struct {
	ChunkSize  int
	StreamWait time.Duration
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	rulesPath := strings.TrimSpace(os.Getenv("VOICEBRIDGE_RULES_FILE"))
	if rulesPath == "" {
		rulesPath = filepath.Join(home, ".config", "voicebridge", "substitutions.rules")
	}

	cfg := Config{
		Languages: LanguagesConfig{
			ALocale: envOrDefault("VOICEBRIDGE_LANG_A", "en-US"),
			AName:   envOrDefault("VOICEBRIDGE_LANG_A_NAME", "English"),
			AVoice:  envOrDefault("VOICEBRIDGE_LANG_A_VOICE", "en-GB"),
			BLocale: envOrDefault("VOICEBRIDGE_LANG_B", "tr-TR"),
			BName:   envOrDefault("VOICEBRIDGE_LANG_B_NAME", "Turkish"),
			BVoice:  envOrDefault("VOICEBRIDGE_LANG_B_VOICE", "tr-TR"),
		},
		Recognizer: RecognizerConfig{
			Backend: strings.ToLower(envOrDefault("VOICEBRIDGE_RECOGNIZER", RecognizerWebSpeech)),
		},
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
			KeepAlive:   time.Duration(nonNegativeInt("DEEPGRAM_KEEPALIVE_SEC", 5)) * time.Second,
		},
		Google: GoogleConfig{
			CredentialsFile: strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
			Endpoint:        strings.TrimSpace(os.Getenv("VOICEBRIDGE_GOOGLE_SPEECH_ENDPOINT")),
			Model:           strings.TrimSpace(os.Getenv("VOICEBRIDGE_GOOGLE_SPEECH_MODEL")),
			Punctuation:     envOrDefaultBool("VOICEBRIDGE_GOOGLE_PUNCTUATION", true),
		},
		Audio: AudioConfig{
			Backend:         strings.ToLower(envOrDefault("VOICEBRIDGE_AUDIO_BACKEND", AudioBackendFFMPEG)),
			RecorderCommand: envOrDefault("VOICEBRIDGE_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("VOICEBRIDGE_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     firstNonEmpty(os.Getenv("VOICEBRIDGE_AUDIO_INPUT_DEVICE"), "default"),
			SampleRate:      envOrDefaultInt("VOICEBRIDGE_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("VOICEBRIDGE_CHANNELS", 1),
		},
		Rules: RulesConfig{
			Path:           rulesPath,
			IterationLimit: envOrDefaultInt("VOICEBRIDGE_RULE_ITERATION_LIMIT", 30),
		},
		Translator: TranslatorConfig{
			Backend:       strings.ToLower(envOrDefault("VOICEBRIDGE_TRANSLATOR", TranslatorGoogle)),
			GoogleBaseURL: envOrDefault("VOICEBRIDGE_GOOGLE_TRANSLATE_BASE", "https://translate.googleapis.com"),
			LibreBaseURL:  envOrDefault("VOICEBRIDGE_LIBRE_BASE", "http://localhost:5000"),
			LibreAPIKey:   strings.TrimSpace(os.Getenv("VOICEBRIDGE_LIBRE_API_KEY")),
			Timeout:       time.Duration(nonNegativeInt("VOICEBRIDGE_TRANSLATE_TIMEOUT_SEC", 0)) * time.Second,
		},
		Speaker: SpeakerConfig{
			Backend: strings.ToLower(envOrDefault("VOICEBRIDGE_SPEAKER", SpeakerWebview)),
			Command: envOrDefault("VOICEBRIDGE_TTS_COMMAND", "espeak-ng"),
		},
		Transcript: TranscriptConfig{
			FilePrefix: envOrDefault("VOICEBRIDGE_TRANSCRIPT_PREFIX", "AIandAIOT_translated_text"),
		},
		Kafka: KafkaConfig{
			Enabled:   envOrDefaultBool("VOICEBRIDGE_KAFKA_ENABLED", false),
			Brokers:   splitList(os.Getenv("VOICEBRIDGE_KAFKA_BROKERS")),
			Topic:     envOrDefault("VOICEBRIDGE_KAFKA_TOPIC", "voicebridge.transcript"),
			Principal: envOrDefault("VOICEBRIDGE_KAFKA_PRINCIPAL", "voicebridge"),
		},
		Observability: ObservabilityConfig{
			Addr: strings.TrimSpace(os.Getenv("VOICEBRIDGE_HTTP_ADDR")),
		},
		Logging: LoggingConfig{
			Level:  envOrDefault("VOICEBRIDGE_LOG_LEVEL", "info"),
			Format: envOrDefault("VOICEBRIDGE_LOG_FORMAT", "console"),
		},
		Session: SessionConfig{
			ChunkSize:  envOrDefaultInt("VOICEBRIDGE_AUDIO_CHUNK_SIZE", 4096),
			StreamWait: time.Duration(nonNegativeInt("VOICEBRIDGE_STREAM_WAIT_MS", 4000)) * time.Millisecond,
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = 4096
	}
	if cfg.Session.StreamWait <= 0 {
		cfg.Session.StreamWait = 4 * time.Second
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	checks := []struct {
		key     string
		value   string
		allowed []string
	}{
		{"VOICEBRIDGE_RECOGNIZER", c.Recognizer.Backend, []string{RecognizerDeepgram, RecognizerGoogle, RecognizerWebSpeech}},
		{"VOICEBRIDGE_AUDIO_BACKEND", c.Audio.Backend, []string{AudioBackendFFMPEG, AudioBackendPortAudio}},
		{"VOICEBRIDGE_TRANSLATOR", c.Translator.Backend, []string{TranslatorGoogle, TranslatorLibre}},
		{"VOICEBRIDGE_SPEAKER", c.Speaker.Backend, []string{SpeakerWebview, SpeakerCommand}},
	}
	for _, check := range checks {
		if !contains(check.allowed, check.value) {
			return fmt.Errorf("%s must be one of %s, got %q", check.key, strings.Join(check.allowed, ", "), check.value)
		}
	}
	if c.Languages.ALocale == c.Languages.BLocale {
		return fmt.Errorf("VOICEBRIDGE_LANG_A and VOICEBRIDGE_LANG_B must differ, both are %q", c.Languages.ALocale)
	}
	return nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func nonNegativeInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
