// Package models defines core data structures for messages, sync runs, and search.
package models

import "time"

// Message is the unit of search: one chat message or wiki page normalized
// into the unified schema. (Platform, PlatformID) is unique across the store.
type Message struct {
	ID             int64                  `json:"id" db:"id"`
	Platform       string                 `json:"platform" db:"platform"`
	PlatformID     string                 `json:"platform_id" db:"platform_id"`
	Title          string                 `json:"title" db:"title"`
	Content        string                 `json:"content" db:"content"`
	AuthorName     string                 `json:"author_name" db:"author_name"`
	AuthorID       string                 `json:"author_id" db:"author_id"`
	ChannelName    string                 `json:"channel_name" db:"channel_name"`
	ChannelID      string                 `json:"channel_id" db:"channel_id"`
	CreatedAt      *time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt      *time.Time             `json:"updated_at" db:"updated_at"`
	SynchronizedAt time.Time              `json:"synchronized_at" db:"synchronized_at"`
	IsDeleted      bool                   `json:"-" db:"is_deleted"`
	Metadata       map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
}
