package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/intake/internal/triage"
)

func emergencySession() *triage.Session {
	return &triage.Session{
		ID:                     "01JN123",
		State:                  triage.StateComplete,
		Urgency:                triage.UrgencyEmergency,
		Symptoms:               []string{"chest pain", "shortness of breath"},
		RecommendedDepartments: []string{"emergency-medicine", "cardiology"},
		History: []triage.Turn{
			{Role: triage.RoleAssistant, Content: "hello"},
			{Role: triage.RoleUser, Content: "chest pain"},
		},
		UpdatedAt: time.Date(2026, 2, 26, 14, 23, 0, 0, time.UTC),
	}
}

func TestSend_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL)
	if err := n.Send(context.Background(), emergencySession()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in payload")
	}

	// header, divider, fields, divider, symptoms, divider, context = 7 blocks
	if len(blocks) != 7 {
		t.Errorf("blocks count = %d, want 7", len(blocks))
	}

	header := blocks[0].(map[string]any)
	headerText := header["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headerText, "Emergency") {
		t.Errorf("header text = %q, want to mention Emergency", headerText)
	}
	if !strings.Contains(headerText, "\U0001f534") {
		t.Errorf("header should contain red circle for emergency urgency")
	}

	symptoms := blocks[4].(map[string]any)
	symptomsText := symptoms["text"].(map[string]any)["text"].(string)
	if !strings.Contains(symptomsText, "chest pain") {
		t.Errorf("symptoms text = %q, want to contain chest pain", symptomsText)
	}

	ctxBlock := blocks[6].(map[string]any)
	ctxText := ctxBlock["elements"].([]any)[0].(map[string]any)["text"].(string)
	if !strings.Contains(ctxText, "01JN123") {
		t.Errorf("context text = %q, want to contain session id", ctxText)
	}
}

func TestSend_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	n := New("")
	if err := n.Send(context.Background(), emergencySession()); err != nil {
		t.Fatalf("Send with empty URL should be no-op, got: %v", err)
	}
}

func TestSend_WebhookError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid_payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	n := New(srv.URL)
	err := n.Send(context.Background(), emergencySession())
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("err = %v, want to mention status 400", err)
	}
}

func TestSend_TruncatesLongSymptomList(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sess := emergencySession()
	sess.Symptoms = []string{strings.Repeat("very long symptom description ", 200)}

	n := New(srv.URL)
	if err := n.Send(context.Background(), sess); err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks := got["blocks"].([]any)
	symptomsText := blocks[4].(map[string]any)["text"].(map[string]any)["text"].(string)
	if len(symptomsText) > maxSymptomsLen+64 {
		t.Errorf("symptoms text length = %d, want truncated near %d", len(symptomsText), maxSymptomsLen)
	}
	if !strings.Contains(symptomsText, "...") {
		t.Error("truncated text should end with ellipsis")
	}
}
