// Package stats computes corpus-wide aggregates over the unified store.
package stats

import (
	"context"

	"github.com/hyperjump/matome/internal/config"
	"github.com/hyperjump/matome/internal/models"
	"github.com/hyperjump/matome/internal/store"
)

// Aggregator serves read-only statistics; it never mutates the store.
type Aggregator struct {
	store  store.Store
	config *config.SearchConfig
}

// NewAggregator creates an aggregator with the given dependencies.
func NewAggregator(st store.Store, cfg *config.SearchConfig) *Aggregator {
	return &Aggregator{store: st, config: cfg}
}

// Stats returns total and per-platform message counts, the most recent sync
// time, and the most popular search queries. All counts exclude soft-deleted
// rows.
func (a *Aggregator) Stats(ctx context.Context) (*models.Stats, error) {
	total, err := a.store.CountMessages(ctx)
	if err != nil {
		return nil, err
	}
	platforms, err := a.store.PlatformCounts(ctx)
	if err != nil {
		return nil, err
	}
	lastSync, err := a.store.LastSyncTime(ctx)
	if err != nil {
		return nil, err
	}
	popular, err := a.store.TopQueries(ctx, a.config.TopQueries)
	if err != nil {
		return nil, err
	}

	return &models.Stats{
		TotalMessages:   total,
		PlatformStats:   platforms,
		LastSync:        lastSync,
		PopularSearches: popular,
	}, nil
}
