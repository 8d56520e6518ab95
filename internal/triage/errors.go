package triage

import "errors"

var (
	// ErrSessionNotFound means the session id is unknown or already expired.
	// Not retryable with the same id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionComplete means a mutation was attempted on a terminal session.
	ErrSessionComplete = errors.New("session already complete")

	// ErrUpstreamUnavailable means the language-understanding backend failed
	// or timed out. No session state was mutated, so resubmitting the
	// identical turn is safe.
	ErrUpstreamUnavailable = errors.New("language understanding backend unavailable")

	// ErrInvalidTransition is an internal invariant violation. It indicates
	// a bug and is never a normal user-facing path.
	ErrInvalidTransition = errors.New("invalid state transition")
)
