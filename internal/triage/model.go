package triage

import (
	"encoding/json"
	"fmt"
	"time"
)

// State tracks where a triage conversation is in its lifecycle.
// Transitions only ever move forward: greeting -> collecting ->
// analyzing -> recommending -> complete.
type State string

const (
	// StateGreeting means the session exists but no patient message has arrived.
	StateGreeting State = "greeting"

	// StateCollecting means the machine is gathering symptoms via clarification questions.
	StateCollecting State = "collecting"

	// StateAnalyzing means the symptom set is frozen and being categorized.
	StateAnalyzing State = "analyzing"

	// StateRecommending means departments have been computed.
	StateRecommending State = "recommending"

	// StateComplete means the session is terminal and immutable.
	StateComplete State = "complete"
)

// stateOrder defines the forward-only transition graph. A transition is
// valid only to the immediately following state.
var stateOrder = map[State]int{
	StateGreeting:     0,
	StateCollecting:   1,
	StateAnalyzing:    2,
	StateRecommending: 3,
	StateComplete:     4,
}

// canAdvance reports whether moving from -> to is a single forward step.
func canAdvance(from, to State) bool {
	a, okA := stateOrder[from]
	b, okB := stateOrder[to]
	return okA && okB && b == a+1
}

// Urgency is the ordered severity classification guiding whether to keep
// questioning or escalate immediately. The total order is
// normal < attention < urgent < emergency, and within a session urgency
// is monotonically non-decreasing.
type Urgency int

const (
	UrgencyNormal Urgency = iota
	UrgencyAttention
	UrgencyUrgent
	UrgencyEmergency
)

var urgencyNames = [...]string{"normal", "attention", "urgent", "emergency"}

func (u Urgency) String() string {
	if u < UrgencyNormal || u > UrgencyEmergency {
		return fmt.Sprintf("urgency(%d)", int(u))
	}
	return urgencyNames[u]
}

// ParseUrgency maps a wire name back to an Urgency.
func ParseUrgency(s string) (Urgency, error) {
	for i, name := range urgencyNames {
		if s == name {
			return Urgency(i), nil
		}
	}
	return UrgencyNormal, fmt.Errorf("unknown urgency %q", s)
}

// MarshalJSON encodes the urgency as its wire name.
func (u Urgency) MarshalJSON() ([]byte, error) {
	if u < UrgencyNormal || u > UrgencyEmergency {
		return nil, fmt.Errorf("cannot marshal urgency %d", int(u))
	}
	return json.Marshal(u.String())
}

// UnmarshalJSON decodes the wire name into an Urgency.
func (u *Urgency) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseUrgency(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one entry in the session transcript.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one triage conversation instance. It is mutated exclusively
// by the Engine in response to inbound messages and becomes immutable
// once State == StateComplete.
type Session struct {
	ID                     string    `json:"id"`
	State                  State     `json:"state"`
	Urgency                Urgency   `json:"urgency"`
	Symptoms               []string  `json:"symptoms"`
	QuestionsAsked         int       `json:"questions_asked"`
	RecommendedDepartments []string  `json:"recommended_departments,omitempty"`
	History                []Turn    `json:"history"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Clone returns a deep copy. The Engine steps a clone so a failed turn
// never leaves partial mutations behind, and stores hand out clones so
// callers cannot alias internal state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Symptoms = append([]string(nil), s.Symptoms...)
	cp.RecommendedDepartments = append([]string(nil), s.RecommendedDepartments...)
	cp.History = append([]Turn(nil), s.History...)
	return &cp
}

// mergeSymptoms appends new symptoms not already present, preserving
// insertion order. Comparison is case-insensitive on trimmed values.
func mergeSymptoms(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		seen[normalizeSymptom(s)] = struct{}{}
	}
	for _, s := range incoming {
		key := normalizeSymptom(s)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		existing = append(existing, s)
	}
	return existing
}
