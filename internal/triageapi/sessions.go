package triageapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/intake/internal/triage"
)

// startSessionResponse is the payload for POST /sessions.
type startSessionResponse struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Message   string `json:"message"`
}

// sendMessageRequest is the payload for POST /sessions/{id}/messages.
type sendMessageRequest struct {
	Message string `json:"message"`
}

// sendMessageResponse is one outbound triage turn.
type sendMessageResponse struct {
	SessionID              string   `json:"session_id"`
	State                  string   `json:"state"`
	Urgency                string   `json:"urgency"`
	Message                string   `json:"message"`
	IsComplete             bool     `json:"is_complete"`
	RecommendedDepartments []string `json:"recommended_departments,omitempty"`
	Symptoms               []string `json:"symptoms,omitempty"`
}

// statusResponse is the payload for GET /sessions/{id}.
type statusResponse struct {
	SessionID              string   `json:"session_id"`
	State                  string   `json:"state"`
	Urgency                string   `json:"urgency"`
	Symptoms               []string `json:"symptoms"`
	RecommendedDepartments []string `json:"recommended_departments,omitempty"`
	QuestionsAsked         int      `json:"questions_asked"`
	IsComplete             bool     `json:"is_complete"`
}

// historyEntry is one transcript turn in GET /sessions/{id}/history.
type historyEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (a *API) handleStartSession(w http.ResponseWriter, r *http.Request) {
	sess, err := a.svc.StartSession(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	sessionSpanAttrs(r, sess.ID)

	writeJSON(w, http.StatusCreated, startSessionResponse{
		SessionID: sess.ID,
		State:     string(sess.State),
		Message:   sess.History[0].Content,
	})
}

func (a *API) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sessionSpanAttrs(r, id)

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, `{"error":"message is required"}`, http.StatusBadRequest)
		return
	}

	res, err := a.svc.SendMessage(r.Context(), id, req.Message)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	sess := res.Session
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("intake.session.state", string(sess.State)),
		attribute.String("intake.session.urgency", sess.Urgency.String()),
	)

	writeJSON(w, http.StatusOK, sendMessageResponse{
		SessionID:              sess.ID,
		State:                  string(sess.State),
		Urgency:                sess.Urgency.String(),
		Message:                res.Message,
		IsComplete:             sess.State == triage.StateComplete,
		RecommendedDepartments: sess.RecommendedDepartments,
		Symptoms:               sess.Symptoms,
	})
}

func (a *API) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sessionSpanAttrs(r, id)

	sess, err := a.svc.GetStatus(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		SessionID:              sess.ID,
		State:                  string(sess.State),
		Urgency:                sess.Urgency.String(),
		Symptoms:               sess.Symptoms,
		RecommendedDepartments: sess.RecommendedDepartments,
		QuestionsAsked:         sess.QuestionsAsked,
		IsComplete:             sess.State == triage.StateComplete,
	})
}

func (a *API) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sessionSpanAttrs(r, id)

	turns, err := a.svc.GetHistory(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	out := make([]historyEntry, 0, len(turns))
	for _, t := range turns {
		out = append(out, historyEntry{Role: t.Role, Content: t.Content})
	}
	writeJSON(w, http.StatusOK, out)
}
