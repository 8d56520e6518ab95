// Package triageapi exposes the triage service over HTTP.
package triageapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/linnemanlabs/intake/internal/triage"
)

// TriageService defines the business operations triageapi needs.
type TriageService interface {
	StartSession(ctx context.Context) (*triage.Session, error)
	SendMessage(ctx context.Context, id, message string) (*triage.StepResult, error)
	GetStatus(ctx context.Context, id string) (*triage.Session, error)
	GetHistory(ctx context.Context, id string) ([]triage.Turn, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    TriageService
}

// New creates a new API handler.
func New(logger log.Logger, svc TriageService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", a.handleStartSession)
		r.Post("/sessions/{id}/messages", a.handleSendMessage)
		r.Get("/sessions/{id}", a.handleGetStatus)
		r.Get("/sessions/{id}/history", a.handleGetHistory)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeServiceError maps the triage error taxonomy to HTTP statuses.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, triage.ErrSessionNotFound):
		http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
	case errors.Is(err, triage.ErrSessionComplete):
		http.Error(w, `{"error":"session already complete"}`, http.StatusConflict)
	case errors.Is(err, triage.ErrUpstreamUnavailable):
		a.logger.Warn(r.Context(), "upstream unavailable, turn is retryable", "error", err)
		http.Error(w, `{"error":"service temporarily unavailable, please retry"}`, http.StatusServiceUnavailable)
	default:
		a.logger.Error(r.Context(), err, "request failed")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

func sessionSpanAttrs(r *http.Request, id string) {
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("intake.session.id", id))
}
