package triage

import "context"

// Extraction is what the language-understanding backend distills from
// one patient utterance in the context of the running conversation.
type Extraction struct {
	// Symptoms are normalized symptom phrases found in the utterance.
	Symptoms []string

	// SuggestedUrgency is the backend's urgency signal. The engine folds it
	// into the monotonic escalation, it never lowers the session urgency.
	SuggestedUrgency Urgency

	// FollowUpQuestion is the next clarification question to ask, if the
	// backend proposed one. The engine falls back to a canned question
	// when empty.
	FollowUpQuestion string
}

// Extractor translates a raw utterance plus conversation history into an
// Extraction. Implementations are external and may fail or time out; the
// engine bounds every call with a timeout and treats any error as
// retryable without mutating session state.
type Extractor interface {
	Extract(ctx context.Context, history []Turn, latest string) (*Extraction, error)
}
