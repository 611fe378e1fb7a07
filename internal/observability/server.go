// Package observability serves metrics, health and transcript download over HTTP.
package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"voicebridge/internal/domain"
	"voicebridge/internal/usecase"
)

// Session is the part of the session controller the server reads.
type Session interface {
	Status() domain.Status
	ExportTranscript() (string, error)
	ClearTranscript()
}

// Server provides HTTP endpoints next to the desktop UI.
type Server struct {
	server *http.Server
	addr   string
	log    zerolog.Logger
}

// NewServer builds the server. A nil registry serves the default gatherer.
func NewServer(addr string, session Session, registry *prometheus.Registry, filePrefix string, log zerolog.Logger) *Server {
	return &Server{
		addr: addr,
		log:  log,
		server: &http.Server{
			Addr:         addr,
			Handler:      NewRouter(session, registry, filePrefix),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// NewRouter constructs the HTTP routes.
func NewRouter(session Session, registry *prometheus.Registry, filePrefix string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	metricsHandler := promhttp.Handler()
	if registry != nil {
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	}
	r.Handle("/metrics", metricsHandler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, session.Status())
		})
		r.Get("/transcript", func(w http.ResponseWriter, _ *http.Request) {
			content, err := session.ExportTranscript()
			if errors.Is(err, usecase.ErrTranscriptEmpty) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
				return
			}
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Content-Disposition", `attachment; filename="`+filePrefix+`.txt"`)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(content))
		})
		r.Delete("/transcript", func(w http.ResponseWriter, _ *http.Request) {
			session.ClearTranscript()
			w.WriteHeader(http.StatusNoContent)
		})
	})

	return r
}

// Start listens on addr and serves in a goroutine. It returns once the
// listener is bound so a busy port is reported to the caller.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.log.Info().Str("addr", ln.Addr().String()).Msg("observability server listening")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("observability server error")
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down observability server")
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
