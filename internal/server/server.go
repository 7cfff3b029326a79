// Package server exposes the inventory over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/yairfalse/nimbus/internal/auth"
	"github.com/yairfalse/nimbus/internal/daemon"
	"github.com/yairfalse/nimbus/internal/storage"
	"github.com/yairfalse/nimbus/pkg/resource"
)

// Inventory is the published inventory and its import path.
type Inventory interface {
	Current() *resource.Snapshot
	Import(ctx context.Context, data []byte) (*resource.Snapshot, error)
}

// Syncer triggers refreshes and reports sync health.
type Syncer interface {
	Sync(ctx context.Context, trigger string) (*resource.Snapshot, error)
	Health() daemon.HealthStatus
}

// History reads the snapshot journal.
type History interface {
	History(limit int) []storage.Entry
	Get(seq uint64) (storage.Record, error)
}

// Analyzer answers advisor questions.
type Analyzer interface {
	Analyze(ctx context.Context, resources []resource.Resource, question string) string
}

// Dependencies are the services behind the handlers. Inventory is required;
// the rest may be nil, which disables the routes that need them.
type Dependencies struct {
	Inventory Inventory
	Syncer    Syncer
	History   History
	Advisor   Analyzer
	Metrics   http.Handler
}

// Config holds server settings.
type Config struct {
	Addr            string
	DefaultUser     string
	ShutdownTimeout time.Duration
	Dependencies    Dependencies
}

// WebAPI is the HTTP front of the inventory.
type WebAPI struct {
	router *chi.Mux
	logger *zerolog.Logger
	server *http.Server
	deps   Dependencies
}

// New builds the router and the underlying http.Server.
func New(logger zerolog.Logger, cfg Config) *WebAPI {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.DefaultUser == "" {
		cfg.DefaultUser = auth.Users[0].ID
	}

	w := &WebAPI{
		router: chi.NewRouter(),
		logger: &logger,
		deps:   cfg.Dependencies,
	}

	w.router.Use(middleware.RequestID)
	w.router.Use(Logger(&logger))
	w.router.Use(middleware.Recoverer)

	w.router.Get("/health", w.health)
	if cfg.Dependencies.Metrics != nil {
		w.router.Method(http.MethodGet, "/metrics", cfg.Dependencies.Metrics)
	}

	w.router.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(cfg.DefaultUser))

		r.Get("/me", w.me)
		r.Get("/resources", w.listResources)
		r.With(auth.Require(auth.ViewDetails)).Get("/resources/{id}", w.getResource)
		r.With(auth.Require(auth.ViewDetails)).Get("/resources/{id}/export", w.exportResource)
		r.Get("/stats", w.stats)
		r.Get("/compliance", w.compliance)
		r.Get("/topology", w.topology)
		r.With(auth.Require(auth.ManageConnections)).Post("/sync", w.sync)
		r.With(auth.Require(auth.ImportData)).Post("/import", w.importData)
		r.Post("/advisor", w.advise)
		r.Get("/history", w.history)
		r.Get("/history/{seq}", w.historyRecord)
	})

	w.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           w.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return w
}

// Handler returns the root handler.
func (w *WebAPI) Handler() http.Handler {
	return w.router
}

// Addr returns the configured listen address.
func (w *WebAPI) Addr() string {
	return w.server.Addr
}

// ListenAndServe serves until Shutdown is called.
func (w *WebAPI) ListenAndServe() error {
	w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
	if err := w.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gives outstanding requests a deadline for completion, then closes.
func (w *WebAPI) Shutdown(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	w.logger.Info().Msg("shutdown initiated")
	if err := w.server.Shutdown(ctx); err != nil {
		w.logger.Error().Err(err).Msg("graceful shutdown failed")
		return w.server.Close()
	}
	return nil
}
