// Package search provides the query engine over the unified message store.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/matome/internal/config"
	"github.com/hyperjump/matome/internal/metrics"
	"github.com/hyperjump/matome/internal/models"
	"github.com/hyperjump/matome/internal/platform"
	"github.com/hyperjump/matome/internal/store"
	"github.com/hyperjump/matome/pkg/errors"
)

// Engine executes search requests: validation, pagination, and the
// search-stat side effect. Messages are never written here.
type Engine struct {
	store   store.Store
	config  *config.SearchConfig
	logger  *zap.Logger
	metrics *metrics.Metrics // optional
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(st store.Store, cfg *config.SearchConfig, logger *zap.Logger, opts ...EngineOption) *Engine {
	e := &Engine{store: st, config: cfg, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search runs one search. An empty or whitespace-only query short-circuits
// with an empty result set without touching the store. Successful non-empty
// searches append one search stat row; a failed stat write is logged, not
// surfaced, since the results themselves are valid.
func (e *Engine) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	start := time.Now()

	if strings.TrimSpace(req.Query) == "" {
		e.countSearch("empty_query")
		return &models.SearchResponse{
			Items:   []*models.Message{},
			Page:    1,
			PerPage: e.config.DefaultPerPage,
		}, nil
	}

	if err := e.validate(req); err != nil {
		e.countSearch("error")
		return nil, err
	}

	filter := store.SearchFilter{
		Text:     req.Query,
		Platform: req.Platform,
		Limit:    req.PerPage,
		Offset:   (req.Page - 1) * req.PerPage,
	}
	items, total, err := e.store.SearchMessages(ctx, filter)
	if err != nil {
		e.countSearch("error")
		return nil, err
	}

	elapsed := time.Since(start)
	resultType := "hit"
	if total == 0 {
		resultType = "zero_result"
	}
	e.countSearch(resultType)
	if e.metrics != nil {
		e.metrics.SearchLatency.Observe(elapsed.Seconds())
	}

	stat := &models.SearchStat{
		Query:        req.Query,
		ResultsCount: total,
		SearchTimeMs: float64(elapsed.Microseconds()) / 1000.0,
	}
	if err := e.store.InsertSearchStat(ctx, stat); err != nil {
		e.logger.Warn("failed to record search stat", zap.String("query", req.Query), zap.Error(err))
	}

	return &models.SearchResponse{
		Items:        items,
		Total:        total,
		Page:         req.Page,
		PerPage:      req.PerPage,
		TotalPages:   totalPages(total, req.PerPage),
		SearchTimeMs: stat.SearchTimeMs,
	}, nil
}

// validate checks pagination and the platform filter, filling defaults and
// clamping per_page to the configured maximum.
func (e *Engine) validate(req *models.SearchRequest) error {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.Page < 1 {
		return errors.Validation("page must be >= 1")
	}
	if req.PerPage == 0 {
		req.PerPage = e.config.DefaultPerPage
	}
	if req.PerPage < 0 {
		return errors.Validation("per_page must be positive")
	}
	if req.PerPage > e.config.MaxPerPage {
		req.PerPage = e.config.MaxPerPage
	}
	if req.Platform != "" && !platform.Known(req.Platform) {
		return errors.Validation(fmt.Sprintf("unknown platform %q", req.Platform))
	}
	return nil
}

func (e *Engine) countSearch(resultType string) {
	if e.metrics != nil {
		e.metrics.SearchesTotal.WithLabelValues(resultType).Inc()
	}
}

func totalPages(total, perPage int) int {
	if total == 0 || perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}
