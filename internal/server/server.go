// Package server provides the HTTP API over the unified search store.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/matome/internal/config"
	"github.com/hyperjump/matome/internal/ingest"
	"github.com/hyperjump/matome/internal/metrics"
	"github.com/hyperjump/matome/internal/search"
	"github.com/hyperjump/matome/internal/stats"
	"github.com/hyperjump/matome/internal/store"
)

// Server is the HTTP server for the matome API.
type Server struct {
	engine      *search.Engine
	aggregator  *stats.Aggregator
	coordinator *ingest.Coordinator
	store       store.Store
	config      *config.ServerConfig
	logger      *zap.Logger
	metrics     *metrics.Metrics
	server      *http.Server
}

// NewServer creates a server with the given dependencies. metrics may be nil,
// in which case the /metrics endpoint is not mounted.
func NewServer(
	engine *search.Engine,
	aggregator *stats.Aggregator,
	coordinator *ingest.Coordinator,
	st store.Store,
	cfg *config.ServerConfig,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Server {
	return &Server{
		engine:      engine,
		aggregator:  aggregator,
		coordinator: coordinator,
		store:       st,
		config:      cfg,
		logger:      logger,
		metrics:     m,
	}
}

// Router builds the chi router with all API routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	if s.metrics != nil {
		r.Use(metrics.Middleware(s.metrics))
	}

	r.Get("/api/search", s.handleSearch)
	r.Get("/api/stats", s.handleStats)
	r.Get("/api/sync/status", s.handleSyncStatus)
	r.Post("/api/sync", s.handleSync)
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
