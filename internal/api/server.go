// Package api exposes the analysis pipeline over HTTP: upload a batch of
// audio files, get the summary table back.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snarg/turngap/internal/batch"
	"github.com/snarg/turngap/internal/config"
	"github.com/snarg/turngap/internal/database"
	"github.com/snarg/turngap/internal/metrics"
)

// Server wires the HTTP surface: health, metrics, and the authenticated
// analysis endpoints.
type Server struct {
	cfg  *config.Config
	http *http.Server
	log  zerolog.Logger
}

// NewServer builds the router and HTTP server. uploadRunner serves the
// analyze endpoint; watchRunner and watcher feed the health endpoint and may
// be nil, as may db.
func NewServer(cfg *config.Config, db *database.DB, uploadRunner *batch.Runner, watchRunner *batch.Runner, watcher *batch.Watcher, version string, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer)
	r.Use(CORS)
	r.Use(metrics.InstrumentHandler)

	health := NewHealthHandler(cfg, db, watchRunner, watcher, version, time.Now())
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(cfg.AuthToken))

		r.Post("/api/v1/analyze", NewAnalyzeHandler(cfg, uploadRunner).ServeHTTP)

		if db != nil {
			r.Get("/api/v1/summaries", NewSummariesHandler(db).ServeHTTP)
		} else {
			r.Get("/api/v1/summaries", func(w http.ResponseWriter, _ *http.Request) {
				WriteError(w, http.StatusNotImplemented, "summary persistence is not configured, set DATABASE_URL")
			})
		}
	})

	return &Server{
		cfg: cfg,
		log: log.With().Str("component", "http").Logger(),
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Handler returns the underlying handler, for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// ListenAndServe blocks serving HTTP until Shutdown.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server listening")
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
