// Package httpapi serves the player switch HTTP API.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/edumarques81/stellar-playerswitch/internal/domain/players"
	"github.com/edumarques81/stellar-playerswitch/internal/domain/status"
	"github.com/edumarques81/stellar-playerswitch/internal/domain/switcher"
)

// Switcher performs player switches.
type Switcher interface {
	Switch(ctx context.Context, key string) (*switcher.Result, error)
}

// StatusProvider reports the current device status.
type StatusProvider interface {
	Current(ctx context.Context) status.Snapshot
}

// HistoryReader lists past switch attempts.
type HistoryReader interface {
	Recent(ctx context.Context, service string, limit int) ([]switcher.Record, error)
}

// ServerOption configures the API server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	history        HistoryReader
	metrics        http.Handler
	socket         http.Handler
}

// WithMiddlewares adds middleware to the server.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithRequestTimeout bounds API requests. The Socket.IO endpoint is exempt.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(cfg *serverConfig) {
		cfg.requestTimeout = d
	}
}

// WithHistory enables GET /switch-history.
func WithHistory(h HistoryReader) ServerOption {
	return func(cfg *serverConfig) {
		cfg.history = h
	}
}

// WithMetrics mounts a Prometheus handler on /metrics.
func WithMetrics(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metrics = h
	}
}

// WithSocketIO mounts the Socket.IO handler on /socket.io/.
func WithSocketIO(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.socket = h
	}
}

// NewServer creates the HTTP router.
func NewServer(sw Switcher, st StatusProvider, registry *players.Registry, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	h := &handlers{
		switcher: sw,
		status:   st,
		registry: registry,
		history:  cfg.history,
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Group(func(r chi.Router) {
		if cfg.requestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.requestTimeout))
		}

		// Method checking happens in the handler so wrong methods get the
		// JSON error body the UI expects.
		r.HandleFunc("/switch-service", h.switchService)

		r.Get("/status", h.getStatus)
		r.Get("/services", h.listServices)
		r.Get("/health", h.health)
		r.Get("/api/v1/version", h.version)

		if cfg.history != nil {
			r.Get("/switch-history", h.switchHistory)
		}
	})

	if cfg.metrics != nil {
		r.Handle("/metrics", cfg.metrics)
	}
	if cfg.socket != nil {
		r.Handle("/socket.io/*", cfg.socket)
	}

	return r
}
