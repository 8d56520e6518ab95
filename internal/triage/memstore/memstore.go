// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/linnemanlabs/intake/internal/triage"
)

// Store holds triage sessions in memory. Suitable for dev and for
// deployments that accept losing in-flight conversations on restart.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*triage.Session // session ID -> session
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{sessions: make(map[string]*triage.Session)}
}

// Get retrieves a session by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*triage.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false, nil
	}
	return sess.Clone(), true, nil
}

// Put stores a copy of the session.
func (s *Store) Put(_ context.Context, sess *triage.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// Delete removes the session. Unknown ids are a no-op.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// ListExpired returns ids of sessions last touched before olderThan.
func (s *Store) ListExpired(_ context.Context, olderThan time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(olderThan) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
