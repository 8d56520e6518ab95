// Package triage provides the business boundary for the conversational
// patient triage system. It defines the Service (session lifecycle,
// per-session serialization, idle expiry), Engine (the dialogue state
// machine), the Extractor contract for the language-understanding
// backend, the Store interface (persistence), and domain models.
package triage
