package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"voicebridge/internal/bootstrap"
	"voicebridge/internal/config"
	"voicebridge/internal/domain"
	"voicebridge/internal/logging"
	"voicebridge/internal/usecase"
)

const (
	eventSession     = "voicebridge:session"
	eventLive        = "voicebridge:live"
	eventTranslation = "voicebridge:translation"
	eventTranscript  = "voicebridge:transcript"
	eventError       = "voicebridge:error"
	eventSpeak       = "voicebridge:speak"
	eventRecognizer  = "voicebridge:recognizer"
)

// App is the Wails application root. It is also the backend's event sink and
// the bridge to the webview's speech APIs.
type App struct {
	ctx context.Context

	services   bootstrap.Services
	controller *usecase.SessionController
	cfg        config.Config
	bootErr    error
	log        zerolog.Logger

	emit          func(ctx context.Context, name string, data ...interface{})
	saveDialog    func(ctx context.Context, opts runtime.SaveDialogOptions) (string, error)
	messageDialog func(ctx context.Context, opts runtime.MessageDialogOptions) (string, error)
}

func NewApp() *App {
	return &App{
		log:           zerolog.Nop(),
		emit:          runtime.EventsEmit,
		saveDialog:    runtime.SaveFileDialog,
		messageDialog: runtime.MessageDialog,
	}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.cfg = services.Config
	a.controller = services.Controller
	a.log = logging.WithComponent("app")

	if err := a.services.StartServer(); err != nil {
		a.log.Warn().Err(err).Str("addr", a.cfg.Observability.Addr).Msg("observability server disabled")
	}
	a.SessionStateChanged(a.controller.Status(), domain.SessionReasonReady)
}

func (a *App) shutdown(ctx context.Context) {
	if a.controller == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.services.Close(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("shutdown finished with errors")
	}
}

// Start begins listening in the active direction.
func (a *App) Start() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Start(a.ctx); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// Stop ends listening.
func (a *App) Stop() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	a.controller.Stop()
	return a.controller.Status(), nil
}

// ToggleDirection stops listening and swaps the languages.
func (a *App) ToggleDirection() (domain.Direction, error) {
	if err := a.requireReady(); err != nil {
		return domain.Direction{}, err
	}
	return a.controller.ToggleDirection(), nil
}

// Export asks where to save the transcript and writes it. An empty log shows
// a warning instead. A cancelled dialog returns an empty path.
func (a *App) Export() (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}

	content, err := a.controller.ExportTranscript()
	if errors.Is(err, usecase.ErrTranscriptEmpty) {
		_, _ = a.messageDialog(a.ctx, runtime.MessageDialogOptions{
			Type:    runtime.WarningDialog,
			Title:   "Nothing to export",
			Message: "There is no translated text to export yet.",
		})
		return "", err
	}
	if err != nil {
		a.SessionError(domain.ErrorCodeExport, err.Error())
		return "", err
	}

	path, err := a.saveDialog(a.ctx, runtime.SaveDialogOptions{
		Title:           "Export transcript",
		DefaultFilename: a.cfg.Transcript.FilePrefix + ".txt",
		Filters:         []runtime.FileFilter{{DisplayName: "Text files (*.txt)", Pattern: "*.txt"}},
	})
	if err != nil {
		a.SessionError(domain.ErrorCodeExport, err.Error())
		return "", err
	}
	if path == "" {
		return "", nil
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		err = fmt.Errorf("failed to write transcript: %w", err)
		a.SessionError(domain.ErrorCodeExport, err.Error())
		return "", err
	}
	a.log.Info().Str("path", path).Msg("transcript exported")
	return path, nil
}

// ClearTranscript empties the transcript log.
func (a *App) ClearTranscript() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.ClearTranscript()
	return nil
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		status := domain.Status{State: domain.SessionStateIdle}
		if a.bootErr != nil {
			status.Message = a.bootErr.Error()
		}
		return status
	}
	return a.controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"recognizer":       a.cfg.Recognizer.Backend,
		"translator":       a.cfg.Translator.Backend,
		"speaker":          a.cfg.Speaker.Backend,
		"languageA":        a.cfg.Languages.ALocale,
		"languageB":        a.cfg.Languages.BLocale,
		"rulesFile":        a.cfg.Rules.Path,
		"audioBackend":     a.cfg.Audio.Backend,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"httpAddr":         a.cfg.Observability.Addr,
		"kafka":            strconv.FormatBool(a.cfg.Kafka.Enabled),
		"transcriptFile":   a.cfg.Transcript.FilePrefix + ".txt",
	}
}

// PushFragment is called by the webview recognizer for every result.
func (a *App) PushFragment(text string, isFinal bool) {
	if a.services.WebSpeech == nil {
		return
	}
	a.services.WebSpeech.Push(text, isFinal)
}

// RecognitionEnded is called when the webview recognizer stops by itself.
func (a *App) RecognitionEnded() {
	if a.services.WebSpeech == nil {
		return
	}
	a.services.WebSpeech.End()
}

// RecognitionFailed is called with the webview recognizer's error name.
func (a *App) RecognitionFailed(kind string, message string) {
	if a.services.WebSpeech == nil {
		return
	}
	a.services.WebSpeech.Fail(kind, message)
}

// RecognitionUnsupported is called when the webview has no SpeechRecognition.
func (a *App) RecognitionUnsupported() {
	if a.services.WebSpeech == nil {
		return
	}
	a.services.WebSpeech.MarkUnsupported()
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) send(name string, data interface{}) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, data)
}

// StartRecognition asks the webview to listen in locale.
func (a *App) StartRecognition(sessionID string, locale string) {
	a.send(eventRecognizer, map[string]string{
		"action":    "start",
		"sessionId": sessionID,
		"locale":    locale,
	})
}

// StopRecognition asks the webview to stop listening.
func (a *App) StopRecognition(sessionID string) {
	a.send(eventRecognizer, map[string]string{
		"action":    "stop",
		"sessionId": sessionID,
	})
}

// EmitSpeech voices text through the webview's speechSynthesis.
func (a *App) EmitSpeech(text string, locale string) {
	a.send(eventSpeak, map[string]string{"text": text, "locale": locale})
}

type sessionEvent struct {
	domain.Status
	Reason domain.SessionStateReason `json:"reason"`
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(status domain.Status, reason domain.SessionStateReason) {
	a.send(eventSession, sessionEvent{Status: status, Reason: reason})
}

// LiveTranscript emits the live recognition preview.
func (a *App) LiveTranscript(text string) {
	a.send(eventLive, map[string]string{"text": text})
}

// TranslationReady emits the latest translation.
func (a *App) TranslationReady(text string) {
	a.send(eventTranslation, map[string]string{"text": text})
}

// TranscriptAvailability tells the UI whether export has anything to save.
func (a *App) TranscriptAvailability(available bool) {
	a.send(eventTranscript, map[string]bool{"available": available})
}

// SessionError emits backend errors to the UI. Fatal errors are shown as an
// alert by the frontend.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.send(eventError, map[string]interface{}{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
		"fatal":   code == domain.ErrorCodeStartup || code == domain.ErrorCodeRecognizerUnsupported,
	})
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeRecognizerUnsupported:
		return "Speech recognition is not supported here"
	case domain.ErrorCodeRecognizer:
		return "Speech recognition error"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeTranslation:
		return "Translation failed"
	case domain.ErrorCodeRules:
		return "Rules processing failed"
	case domain.ErrorCodeExport:
		return "Export failed"
	case domain.ErrorCodePublish:
		return "Transcript publish failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
