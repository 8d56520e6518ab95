package redistore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/linnemanlabs/intake/internal/triage"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewFromClient(client, opts...)
}

func newSession(id string, updated time.Time) *triage.Session {
	return &triage.Session{
		ID:        id,
		State:     triage.StateCollecting,
		Urgency:   triage.UrgencyAttention,
		Symptoms:  []string{"headache", "nausea"},
		History: []triage.Turn{
			{Role: triage.RoleAssistant, Content: "hi", Timestamp: updated},
			{Role: triage.RoleUser, Content: "my head hurts", Timestamp: updated},
		},
		QuestionsAsked: 1,
		CreatedAt:      updated,
		UpdatedAt:      updated,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second).UTC()

	if err := s.Put(ctx, newSession("a", now)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("Get returned ok=false, want true")
	}
	if got.ID != "a" || got.State != triage.StateCollecting || got.Urgency != triage.UrgencyAttention {
		t.Errorf("got = %+v", got)
	}
	if len(got.Symptoms) != 2 || got.Symptoms[1] != "nausea" {
		t.Errorf("symptoms = %v", got.Symptoms)
	}
	if len(got.History) != 2 || got.History[1].Content != "my head hurts" {
		t.Errorf("history = %+v", got.History)
	}
	if !got.UpdatedAt.Equal(now) {
		t.Errorf("updated_at = %v, want %v", got.UpdatedAt, now)
	}
}

func TestGetMissing(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	if _, ok, err := s.Get(context.Background(), "nope"); ok || err != nil {
		t.Fatalf("Get(missing) = ok=%v err=%v", ok, err)
	}
}

func TestDeleteRemovesSessionAndIndex(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.Put(ctx, newSession("a", now.Add(-time.Hour))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "a"); ok {
		t.Error("session survived delete")
	}

	ids, err := s.ListExpired(ctx, now)
	if err != nil {
		t.Fatalf("ListExpired: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("index entry survived delete: %v", ids)
	}
}

func TestListExpired(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second).UTC()

	if err := s.Put(ctx, newSession("old", now.Add(-time.Hour))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, newSession("boundary", now)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, newSession("fresh", now.Add(time.Hour))); err != nil {
		t.Fatalf("Put: %v", err)
	}

	ids, err := s.ListExpired(ctx, now)
	if err != nil {
		t.Fatalf("ListExpired: %v", err)
	}
	// cutoff is exclusive: the boundary session is not yet expired
	if len(ids) != 1 || ids[0] != "old" {
		t.Errorf("expired = %v, want [old]", ids)
	}
}

func TestPutRefreshesIndexScore(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second).UTC()

	sess := newSession("a", now.Add(-time.Hour))
	if err := s.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// A new turn refreshes UpdatedAt and must spare the session.
	sess.UpdatedAt = now
	if err := s.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}

	ids, err := s.ListExpired(ctx, now.Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("ListExpired: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("refreshed session still listed as expired: %v", ids)
	}
}

func TestWithPrefix(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := NewFromClient(client, WithPrefix("other:"))
	ctx := context.Background()

	if err := s.Put(ctx, newSession("a", time.Now().UTC())); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !mr.Exists("other:a") {
		t.Error("session not stored under the configured prefix")
	}
}
