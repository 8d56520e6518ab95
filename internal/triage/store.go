package triage

import (
	"context"
	"time"
)

// Store is the persistence contract for triage sessions. Implementations
// must hand out copies: a Session returned by Get (or passed to Put) is
// never aliased by the store afterwards. Per-session write serialization
// is the Service's job, not the store's.
type Store interface {
	// Get returns the session for id, or ok=false when unknown.
	Get(ctx context.Context, id string) (*Session, bool, error)

	// Put inserts or replaces the session.
	Put(ctx context.Context, sess *Session) error

	// Delete removes the session. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	// ListExpired returns ids of sessions whose UpdatedAt is before olderThan.
	ListExpired(ctx context.Context, olderThan time.Time) ([]string, error)
}
