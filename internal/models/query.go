package models

import "time"

// SearchRequest is a search over the unified store with optional platform filter.
// Page is 1-based.
type SearchRequest struct {
	Query    string `json:"query"`
	Platform string `json:"platform,omitempty"`
	Page     int    `json:"page,omitempty"`
	PerPage  int    `json:"per_page,omitempty"`
}

// SearchResponse is one page of results plus pagination metadata.
// Total counts every matching row, not just this page.
type SearchResponse struct {
	Items        []*Message `json:"data"`
	Total        int        `json:"total"`
	Page         int        `json:"page"`
	PerPage      int        `json:"per_page"`
	TotalPages   int        `json:"total_pages"`
	SearchTimeMs float64    `json:"search_time_ms"`
}

// PlatformCount is the number of live messages for one platform.
type PlatformCount struct {
	Platform string `json:"platform"`
	Count    int64  `json:"count"`
}

// QueryCount is one entry of the popular-searches ranking.
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Stats are corpus-wide aggregates. Soft-deleted rows are excluded from
// every count.
type Stats struct {
	TotalMessages   int64           `json:"total_messages"`
	PlatformStats   []PlatformCount `json:"platform_stats"`
	LastSync        *time.Time      `json:"last_sync"`
	PopularSearches []QueryCount    `json:"popular_searches"`
}
