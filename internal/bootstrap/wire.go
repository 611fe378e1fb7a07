package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"voicebridge/internal/audio"
	"voicebridge/internal/config"
	"voicebridge/internal/domain"
	"voicebridge/internal/events"
	"voicebridge/internal/logging"
	"voicebridge/internal/metrics"
	"voicebridge/internal/observability"
	"voicebridge/internal/ports"
	"voicebridge/internal/providers/deepgram"
	"voicebridge/internal/providers/google"
	"voicebridge/internal/providers/webspeech"
	"voicebridge/internal/rules"
	"voicebridge/internal/speech"
	"voicebridge/internal/translate"
	"voicebridge/internal/usecase"
)

// Shell is what the desktop shell lends the backend: UI events, the webview
// recognizer and webview speech.
type Shell interface {
	ports.EventSink
	webspeech.Commander
	EmitSpeech(text string, locale string)
}

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Config     config.Config
	Metrics    *metrics.Metrics
	// WebSpeech is set when the webview runs recognition.
	WebSpeech *webspeech.Recognizer
	// Server is nil when VOICEBRIDGE_HTTP_ADDR is empty.
	Server *observability.Server

	closers []func() error
}

// Build wires all backend dependencies for the current runtime.
func Build(shell Shell) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	return BuildWithConfig(cfg, shell)
}

// BuildWithConfig wires the graph from an already loaded configuration.
func BuildWithConfig(cfg config.Config, shell Shell) (Services, error) {
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	log := logging.WithComponent("bootstrap")

	rulesEngine, err := rules.NewEngine(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return Services{}, err
	}
	log.Info().Str("path", cfg.Rules.Path).Int("rules", rulesEngine.Len()).Msg("substitution rules loaded")

	services := Services{Config: cfg, Metrics: metrics.NewMetrics()}

	recognizer, err := services.buildRecognizer(cfg, shell)
	if err != nil {
		services.Close(context.Background())
		return Services{}, err
	}

	publisher := events.New(events.Config{
		Brokers:   cfg.Kafka.Brokers,
		Topic:     cfg.Kafka.Topic,
		Principal: cfg.Kafka.Principal,
		Enabled:   cfg.Kafka.Enabled,
	}, services.Metrics, logging.WithComponent("events"))
	services.closers = append(services.closers, publisher.Close)

	direction := domain.Direction{
		Source: domain.Language{Locale: cfg.Languages.ALocale, Name: cfg.Languages.AName, Voice: cfg.Languages.AVoice},
		Target: domain.Language{Locale: cfg.Languages.BLocale, Name: cfg.Languages.BName, Voice: cfg.Languages.BVoice},
	}
	services.Controller = usecase.NewSessionController(
		recognizer,
		buildTranslator(cfg),
		services.buildSpeaker(cfg, shell),
		rulesEngine,
		shell,
		usecase.Config{
			Direction: direction,
			Logger:    logging.WithComponent("controller"),
			Metrics:   services.Metrics,
			Sinks:     []ports.TranscriptSink{publisher},
		},
	)

	if cfg.Observability.Addr != "" {
		services.Server = observability.NewServer(
			cfg.Observability.Addr,
			services.Controller,
			services.Metrics.Registry(),
			cfg.Transcript.FilePrefix,
			logging.WithComponent("observability"),
		)
	}

	log.Info().
		Str("recognizer", cfg.Recognizer.Backend).
		Str("translator", cfg.Translator.Backend).
		Str("speaker", cfg.Speaker.Backend).
		Str("direction", direction.Label()).
		Msg("services ready")
	return services, nil
}

func (s *Services) buildRecognizer(cfg config.Config, shell Shell) (ports.Recognizer, error) {
	if cfg.Recognizer.Backend == config.RecognizerWebSpeech {
		s.WebSpeech = webspeech.NewRecognizer(shell)
		return s.WebSpeech, nil
	}

	capture, err := buildCapture(cfg)
	if err != nil {
		return nil, err
	}

	var provider ports.TranscriptionProvider
	switch cfg.Recognizer.Backend {
	case config.RecognizerGoogle:
		googleCfg := google.Config{
			CredentialsFile: cfg.Google.CredentialsFile,
			Endpoint:        cfg.Google.Endpoint,
			Model:           cfg.Google.Model,
			Punctuation:     cfg.Google.Punctuation,
		}
		client, err := google.NewClient(context.Background(), googleCfg)
		if err != nil {
			// Surfaced on Start as recognizer_unsupported.
			log := logging.WithComponent("bootstrap")
			log.Warn().Err(err).Msg("google speech unavailable")
			return unavailableRecognizer{err: err}, nil
		}
		googleProvider := google.NewProvider(client, googleCfg)
		s.closers = append(s.closers, googleProvider.Close)
		provider = googleProvider
	default:
		provider = deepgram.NewProvider(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Languages.ALocale,
			SmartFormat: cfg.Deepgram.SmartFormat,
			KeepAlive:   cfg.Deepgram.KeepAlive,
		})
	}

	return usecase.NewStreamingRecognizer(capture, provider, usecase.StreamingRecognizerConfig{
		Audio: ports.AudioConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		},
		Streaming: ports.StreamingConfig{
			SampleRate:     cfg.Audio.SampleRate,
			Channels:       cfg.Audio.Channels,
			Encoding:       "linear16",
			InterimResults: true,
		},
		ChunkSize:   cfg.Session.ChunkSize,
		WaitTimeout: cfg.Session.StreamWait,
	}), nil
}

func buildCapture(cfg config.Config) (ports.AudioCapture, error) {
	log := logging.WithComponent("audio")
	if cfg.Audio.Backend == config.AudioBackendPortAudio {
		capture, err := audio.NewPortAudioCapture(log)
		if err != nil {
			return nil, fmt.Errorf("VOICEBRIDGE_AUDIO_BACKEND=portaudio: %w", err)
		}
		return capture, nil
	}
	return audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand, log), nil
}

func buildTranslator(cfg config.Config) ports.Translator {
	if cfg.Translator.Backend == config.TranslatorLibre {
		return translate.NewLibreClient(cfg.Translator.LibreBaseURL, cfg.Translator.LibreAPIKey, cfg.Translator.Timeout)
	}
	return translate.NewGoogleClient(cfg.Translator.GoogleBaseURL, cfg.Translator.Timeout)
}

func (s *Services) buildSpeaker(cfg config.Config, shell Shell) ports.Speaker {
	if cfg.Speaker.Backend == config.SpeakerCommand {
		speaker := speech.NewCommandSpeaker(cfg.Speaker.Command, logging.WithComponent("speaker"))
		s.closers = append(s.closers, func() error {
			speaker.Close()
			return nil
		})
		return speaker
	}
	return speech.NewEventSpeaker(shell.EmitSpeech)
}

// StartServer starts the observability server when one is configured.
func (s *Services) StartServer() error {
	if s.Server == nil {
		return nil
	}
	return s.Server.Start()
}

// Close stops the session, the server and every backend client.
func (s *Services) Close(ctx context.Context) error {
	var errs []error
	if s.Controller != nil {
		s.Controller.Close()
	}
	if s.Server != nil {
		errs = append(errs, s.Server.Shutdown(ctx))
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// unavailableRecognizer reports a recognizer that could not be constructed.
type unavailableRecognizer struct {
	err error
}

func (r unavailableRecognizer) Start(context.Context, string) (ports.RecognitionSession, error) {
	return nil, r.err
}
