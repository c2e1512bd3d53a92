package models

import "time"

// Sync run statuses. A run is created as in_progress and finalized exactly
// once; finalized rows are never mutated again.
const (
	SyncStatusInProgress = "in_progress"
	SyncStatusSuccess    = "success"
	SyncStatusPartial    = "partial"
	SyncStatusError      = "error"
)

// SyncRun is one row of the sync ledger: a single fetch-normalize-upsert
// cycle for one platform.
type SyncRun struct {
	ID              int64      `json:"id" db:"id"`
	RunID           string     `json:"run_id" db:"run_id"`
	Platform        string     `json:"platform" db:"platform"`
	Status          string     `json:"status" db:"status"`
	MessagesCount   int        `json:"messages_count" db:"messages_count"`
	SkippedCount    int        `json:"skipped_count" db:"skipped_count"`
	ErrorMessage    string     `json:"error_message,omitempty" db:"error_message"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	CompletedAt     *time.Time `json:"completed_at" db:"completed_at"`
	DurationSeconds float64    `json:"duration_seconds" db:"duration_seconds"`
}

// SearchStat records one executed search. Write-once.
type SearchStat struct {
	ID           int64     `json:"id" db:"id"`
	Query        string    `json:"query" db:"search_query"`
	ResultsCount int       `json:"results_count" db:"results_count"`
	SearchTimeMs float64   `json:"search_time_ms" db:"search_time_ms"`
	SearchedAt   time.Time `json:"searched_at" db:"searched_at"`
}
