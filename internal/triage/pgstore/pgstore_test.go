package pgstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/intake/internal/triage"
	"github.com/linnemanlabs/intake/internal/triage/pgstore"
)

func openStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("INTAKE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("INTAKE_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(pool.Close)
	s, err := pgstore.New(ctx, pool)
	if err != nil {
		t.Fatalf("pgstore.New: %v", err)
	}
	return s
}

func newSession(id string, updated time.Time) *triage.Session {
	return &triage.Session{
		ID:      id,
		State:   triage.StateCollecting,
		Urgency: triage.UrgencyUrgent,
		Symptoms: []string{
			"chest tightness",
			"shortness of breath",
		},
		History: []triage.Turn{
			{Role: triage.RoleAssistant, Content: "hello", Timestamp: updated},
			{Role: triage.RoleUser, Content: "my chest feels tight", Timestamp: updated},
		},
		QuestionsAsked:         1,
		RecommendedDepartments: nil,
		CreatedAt:              updated,
		UpdatedAt:              updated,
	}
}

func TestPutAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Microsecond).UTC()
	sess := newSession("test-put-get-001", now)
	t.Cleanup(func() { _ = s.Delete(ctx, sess.ID) })

	if err := s.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("Get returned ok=false, want true")
	}

	if got.State != sess.State {
		t.Errorf("State = %s, want %s", got.State, sess.State)
	}
	if got.Urgency != sess.Urgency {
		t.Errorf("Urgency = %v, want %v", got.Urgency, sess.Urgency)
	}
	if len(got.Symptoms) != 2 || got.Symptoms[0] != "chest tightness" {
		t.Errorf("Symptoms = %v", got.Symptoms)
	}
	if len(got.History) != 2 || got.History[1].Content != "my chest feels tight" {
		t.Errorf("History = %+v", got.History)
	}
	if got.QuestionsAsked != 1 {
		t.Errorf("QuestionsAsked = %d", got.QuestionsAsked)
	}
	if !got.UpdatedAt.Equal(sess.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, sess.UpdatedAt)
	}
}

func TestPutUpsert(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Microsecond).UTC()
	sess := newSession("test-upsert-001", now)
	t.Cleanup(func() { _ = s.Delete(ctx, sess.ID) })

	if err := s.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}

	sess.State = triage.StateComplete
	sess.RecommendedDepartments = []string{"cardiology", "emergency-medicine"}
	sess.UpdatedAt = now.Add(time.Minute)
	if err := s.Put(ctx, sess); err != nil {
		t.Fatalf("Put (update): %v", err)
	}

	got, ok, err := s.Get(ctx, sess.ID)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.State != triage.StateComplete {
		t.Errorf("State = %s, want complete", got.State)
	}
	if len(got.RecommendedDepartments) != 2 || got.RecommendedDepartments[0] != "cardiology" {
		t.Errorf("RecommendedDepartments = %v", got.RecommendedDepartments)
	}
}

func TestGetMissing(t *testing.T) {
	s := openStore(t)

	_, ok, err := s.Get(context.Background(), "no-such-session")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("Get returned ok=true for missing session")
	}
}

func TestDeleteAndListExpired(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Microsecond).UTC()
	old := newSession("test-expired-old", now.Add(-2*time.Hour))
	fresh := newSession("test-expired-fresh", now)
	t.Cleanup(func() {
		_ = s.Delete(ctx, old.ID)
		_ = s.Delete(ctx, fresh.ID)
	})

	if err := s.Put(ctx, old); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, fresh); err != nil {
		t.Fatalf("Put: %v", err)
	}

	ids, err := s.ListExpired(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListExpired: %v", err)
	}
	foundOld, foundFresh := false, false
	for _, id := range ids {
		if id == old.ID {
			foundOld = true
		}
		if id == fresh.ID {
			foundFresh = true
		}
	}
	if !foundOld {
		t.Error("idle session missing from ListExpired")
	}
	if foundFresh {
		t.Error("fresh session listed as expired")
	}

	if err := s.Delete(ctx, old.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, old.ID); ok {
		t.Error("session survived delete")
	}
}
