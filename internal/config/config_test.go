package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("VOICEBRIDGE_RULES_FILE", "")
	t.Setenv("VOICEBRIDGE_RECOGNIZER", "")
	t.Setenv("VOICEBRIDGE_TRANSLATOR", "")
	t.Setenv("VOICEBRIDGE_SPEAKER", "")
	t.Setenv("VOICEBRIDGE_AUDIO_BACKEND", "")
	t.Setenv("VOICEBRIDGE_TRANSLATE_TIMEOUT_SEC", "")
	t.Setenv("DEEPGRAM_KEEPALIVE_SEC", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Languages.ALocale != "en-US" || cfg.Languages.BLocale != "tr-TR" {
		t.Fatalf("unexpected languages: %+v", cfg.Languages)
	}
	if cfg.Languages.AVoice != "en-GB" || cfg.Languages.BVoice != "tr-TR" {
		t.Fatalf("unexpected voices: %+v", cfg.Languages)
	}
	if cfg.Recognizer.Backend != RecognizerWebSpeech {
		t.Fatalf("expected webspeech recognizer, got %q", cfg.Recognizer.Backend)
	}
	if cfg.Translator.Backend != TranslatorGoogle || cfg.Translator.Timeout != 0 {
		t.Fatalf("unexpected translator config: %+v", cfg.Translator)
	}
	if cfg.Speaker.Backend != SpeakerWebview {
		t.Fatalf("expected webview speaker, got %q", cfg.Speaker.Backend)
	}
	if cfg.Transcript.FilePrefix != "AIandAIOT_translated_text" {
		t.Fatalf("unexpected transcript prefix: %q", cfg.Transcript.FilePrefix)
	}
	if want := filepath.Join(home, ".config", "voicebridge", "substitutions.rules"); cfg.Rules.Path != want {
		t.Fatalf("unexpected rules path: %q", cfg.Rules.Path)
	}
	if cfg.Session.StreamWait != 4*time.Second {
		t.Fatalf("unexpected stream wait: %s", cfg.Session.StreamWait)
	}
	if cfg.Deepgram.KeepAlive != 5*time.Second {
		t.Fatalf("unexpected deepgram keepalive: %s", cfg.Deepgram.KeepAlive)
	}
}

func TestLoadRespectsOverrides(t *testing.T) {
	home := t.TempDir()
	rules := filepath.Join(home, "my.rules")

	t.Setenv("HOME", home)
	t.Setenv("VOICEBRIDGE_LANG_A", "de-DE")
	t.Setenv("VOICEBRIDGE_LANG_A_NAME", "German")
	t.Setenv("VOICEBRIDGE_LANG_B", "fr-FR")
	t.Setenv("VOICEBRIDGE_RECOGNIZER", "Deepgram")
	t.Setenv("DEEPGRAM_API_KEY", "test-key")
	t.Setenv("DEEPGRAM_MODEL", "nova-3")
	t.Setenv("DEEPGRAM_SMART_FORMAT", "false")
	t.Setenv("VOICEBRIDGE_AUDIO_BACKEND", "portaudio")
	t.Setenv("VOICEBRIDGE_SAMPLE_RATE", "22050")
	t.Setenv("VOICEBRIDGE_CHANNELS", "2")
	t.Setenv("VOICEBRIDGE_RULES_FILE", rules)
	t.Setenv("VOICEBRIDGE_RULE_ITERATION_LIMIT", "42")
	t.Setenv("VOICEBRIDGE_TRANSLATOR", "libre")
	t.Setenv("VOICEBRIDGE_LIBRE_BASE", "http://libre:5000")
	t.Setenv("VOICEBRIDGE_TRANSLATE_TIMEOUT_SEC", "8")
	t.Setenv("VOICEBRIDGE_SPEAKER", "command")
	t.Setenv("VOICEBRIDGE_TTS_COMMAND", "say")
	t.Setenv("VOICEBRIDGE_KAFKA_ENABLED", "true")
	t.Setenv("VOICEBRIDGE_KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("VOICEBRIDGE_HTTP_ADDR", "127.0.0.1:9100")
	t.Setenv("VOICEBRIDGE_AUDIO_CHUNK_SIZE", "512")
	t.Setenv("VOICEBRIDGE_STREAM_WAIT_MS", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Languages.ALocale != "de-DE" || cfg.Languages.AName != "German" || cfg.Languages.BLocale != "fr-FR" {
		t.Fatalf("unexpected languages: %+v", cfg.Languages)
	}
	if cfg.Recognizer.Backend != RecognizerDeepgram {
		t.Fatalf("expected lower-cased recognizer, got %q", cfg.Recognizer.Backend)
	}
	if cfg.Deepgram.APIKey != "test-key" || cfg.Deepgram.Model != "nova-3" || cfg.Deepgram.SmartFormat {
		t.Fatalf("unexpected deepgram config: %+v", cfg.Deepgram)
	}
	if cfg.Audio.Backend != AudioBackendPortAudio || cfg.Audio.SampleRate != 22050 || cfg.Audio.Channels != 2 {
		t.Fatalf("unexpected audio config: %+v", cfg.Audio)
	}
	if cfg.Rules.Path != rules || cfg.Rules.IterationLimit != 42 {
		t.Fatalf("unexpected rules config: %+v", cfg.Rules)
	}
	if cfg.Translator.Backend != TranslatorLibre || cfg.Translator.LibreBaseURL != "http://libre:5000" || cfg.Translator.Timeout != 8*time.Second {
		t.Fatalf("unexpected translator config: %+v", cfg.Translator)
	}
	if cfg.Speaker.Backend != SpeakerCommand || cfg.Speaker.Command != "say" {
		t.Fatalf("unexpected speaker config: %+v", cfg.Speaker)
	}
	if !cfg.Kafka.Enabled || strings.Join(cfg.Kafka.Brokers, "|") != "k1:9092|k2:9092" {
		t.Fatalf("unexpected kafka config: %+v", cfg.Kafka)
	}
	if cfg.Observability.Addr != "127.0.0.1:9100" {
		t.Fatalf("unexpected observability addr: %q", cfg.Observability.Addr)
	}
	if cfg.Session.ChunkSize != 512 || cfg.Session.StreamWait != 25*time.Millisecond {
		t.Fatalf("unexpected session config: %+v", cfg.Session)
	}
}

func TestLoadInvalidNumericValuesFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("VOICEBRIDGE_SAMPLE_RATE", "bad")
	t.Setenv("VOICEBRIDGE_CHANNELS", "-1")
	t.Setenv("VOICEBRIDGE_RULE_ITERATION_LIMIT", "0")
	t.Setenv("VOICEBRIDGE_AUDIO_CHUNK_SIZE", "5")
	t.Setenv("VOICEBRIDGE_STREAM_WAIT_MS", "bad")
	t.Setenv("VOICEBRIDGE_TRANSLATE_TIMEOUT_SEC", "-3")
	t.Setenv("DEEPGRAM_SMART_FORMAT", "not-bool")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Audio.SampleRate != 16000 {
		t.Fatalf("expected default sample rate, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Channels != 1 {
		t.Fatalf("expected default channels, got %d", cfg.Audio.Channels)
	}
	if cfg.Rules.IterationLimit != 30 {
		t.Fatalf("expected default iteration limit, got %d", cfg.Rules.IterationLimit)
	}
	if cfg.Session.ChunkSize != 4096 {
		t.Fatalf("expected chunk size fallback, got %d", cfg.Session.ChunkSize)
	}
	if cfg.Session.StreamWait != 4*time.Second {
		t.Fatalf("expected default stream wait, got %s", cfg.Session.StreamWait)
	}
	if cfg.Translator.Timeout != 0 {
		t.Fatalf("expected no translate timeout, got %s", cfg.Translator.Timeout)
	}
	if !cfg.Deepgram.SmartFormat {
		t.Fatalf("expected default smart format true")
	}
}

func TestLoadRejectsUnknownBackends(t *testing.T) {
	cases := map[string]string{
		"VOICEBRIDGE_RECOGNIZER":    "whisper",
		"VOICEBRIDGE_AUDIO_BACKEND": "jack",
		"VOICEBRIDGE_TRANSLATOR":    "deepl",
		"VOICEBRIDGE_SPEAKER":       "radio",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			t.Setenv(key, value)

			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), key) {
				t.Fatalf("expected %s validation error, got %v", key, err)
			}
		})
	}
}

func TestLoadRejectsIdenticalLanguages(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("VOICEBRIDGE_LANG_A", "en-US")
	t.Setenv("VOICEBRIDGE_LANG_B", "en-US")

	if _, err := Load(); err == nil {
		t.Fatalf("expected identical languages to be rejected")
	}
}
