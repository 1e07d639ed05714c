// Package server provides the HTTP server for the signbridge translator.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ayusman/signbridge/internal/observability"
	"github.com/ayusman/signbridge/internal/server/api"
	"github.com/ayusman/signbridge/internal/speech"
	"github.com/ayusman/signbridge/internal/store"
)

// Config holds the server configuration. Nil dependencies leave their routes unregistered.
type Config struct {
	StaticDir string
	Version   string
	Metrics   bool

	Translator   api.Translator
	Artifacts    api.ArtifactSource
	Store        *store.Store
	Preview      PreviewSource
	Transcriber  speech.Transcriber
	Synthesizer  speech.Synthesizer
	HealthChecks map[string]observability.HealthCheckFunc
}

// Server represents the HTTP server for the translator.
type Server struct {
	config Config
	mux    *http.ServeMux
	logger zerolog.Logger

	mu   sync.Mutex
	http *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		logger: observability.Component("server"),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	health := observability.HealthHandler("signbridge", s.config.Version, s.config.HealthChecks)
	s.mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		health(w, r)
	})

	if s.config.Metrics {
		s.mux.Handle("/metrics", promhttp.Handler())
	}

	if t := s.config.Translator; t != nil {
		modeHandler := api.NewModeHandler(t)
		s.mux.Handle("/api/state", modeHandler)
		s.mux.Handle("/api/mode/", modeHandler)
		s.mux.Handle("/api/input", modeHandler)
		s.mux.Handle("/api/camera/retry", modeHandler)
		s.mux.Handle("/api/events", NewEventsHandler(t, s.config.Preview))

		if s.config.Synthesizer != nil {
			s.mux.Handle("/api/speak", api.NewSpeakHandler(t, s.config.Synthesizer))
		}
		if s.config.Transcriber != nil {
			s.mux.Handle("/api/dictation", NewDictationHandler(t, s.config.Transcriber))
		}
	}

	if s.config.Artifacts != nil {
		s.mux.Handle("/api/artifacts/", api.NewArtifactHandler(s.config.Artifacts))
	}

	if s.config.Store != nil {
		s.mux.Handle("/api/history", api.NewHistoryHandler(s.config.Store))
	}

	if s.config.Preview != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Preview))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server on the given address.
// It returns nil once Shutdown has been called.
func (s *Server) ListenAndServe(addr string) error {
	s.mu.Lock()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.http
	s.mu.Unlock()

	s.logger.Info().Str("addr", addr).Msg("http server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
