// Package platform defines the supported source platforms, their native
// record shapes, and the client contract for fetching recent records.
package platform

import "context"

// Platform identifies a source system.
type Platform string

const (
	Chatwork Platform = "chatwork"
	Notion   Platform = "notion"
)

// All returns every supported platform in stable order.
func All() []Platform {
	return []Platform{Chatwork, Notion}
}

// Known reports whether name is a supported platform.
func Known(name string) bool {
	for _, p := range All() {
		if string(p) == name {
			return true
		}
	}
	return false
}

// Record is a platform-native payload, tagged with its source.
// Each platform contributes its own concrete variant.
type Record interface {
	Source() Platform
}

// Client fetches recent native records from one platform. Implementations own
// authentication, pagination, and rate limiting; callers only consume the
// returned batch, capped at max records.
type Client interface {
	Source() Platform
	FetchRecent(ctx context.Context, max int) ([]Record, error)
}
