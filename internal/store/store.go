// Package store defines the persistence interface for the unified message
// store, the sync ledger, and search statistics.
package store

import (
	"context"
	"time"

	"github.com/hyperjump/matome/internal/models"
)

// SearchFilter selects messages by case-insensitive substring over content
// and author_name, optionally restricted to one platform. Soft-deleted rows
// never match.
type SearchFilter struct {
	Text     string
	Platform string
	Limit    int
	Offset   int
}

// Store defines message, sync ledger, and search stat persistence.
type Store interface {
	// Message operations. Upsert is keyed by (platform, platform_id) and is
	// atomic per row: re-ingesting a source record updates the existing row.
	UpsertMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, platform, platformID string) (*models.Message, error)
	SearchMessages(ctx context.Context, filter SearchFilter) ([]*models.Message, int, error)

	// Aggregates (all exclude soft-deleted rows)
	CountMessages(ctx context.Context) (int64, error)
	PlatformCounts(ctx context.Context) ([]models.PlatformCount, error)
	LastSyncTime(ctx context.Context) (*time.Time, error)

	// Sync ledger
	CreateSyncRun(ctx context.Context, run *models.SyncRun) error
	FinalizeSyncRun(ctx context.Context, run *models.SyncRun) error
	LatestSyncRuns(ctx context.Context) ([]*models.SyncRun, error)

	// Search statistics
	InsertSearchStat(ctx context.Context, stat *models.SearchStat) error
	TopQueries(ctx context.Context, n int) ([]models.QueryCount, error)

	Close() error
}
