package triage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/linnemanlabs/go-core/log"
)

var tracer = otel.Tracer("github.com/linnemanlabs/intake/internal/triage")

// GreetingMessage opens every new session.
const GreetingMessage = "Hello, I can help figure out which hospital department you should visit. Please describe your symptoms."

// EmergencyDirective is included verbatim in the outbound message of any
// turn that escalates to emergency, in place of further questions.
const EmergencyDirective = "Based on what you have described, this may be a medical emergency. Call your local emergency number (such as 911) or go to the nearest emergency room immediately. Do not wait for further questions."

// fallbackQuestion is asked when the extractor did not propose one.
const fallbackQuestion = "Can you tell me more? For example, how long have you had these symptoms and how severe are they?"

// Policy holds the tunable thresholds of the collection phase. The exact
// sufficiency cut-off is configuration, not a constant.
type Policy struct {
	// MaxQuestions bounds clarification turns; reaching it forces the
	// transition out of collecting regardless of completeness.
	MaxQuestions int

	// MinCategories is how many primary-complaint categories the symptom
	// set must cover before collection may stop early.
	MinCategories int

	// RequireQualifier additionally demands a duration/severity qualifier
	// somewhere in the patient's messages before stopping early.
	RequireQualifier bool
}

// DefaultPolicy mirrors the documented sufficiency rule: one primary
// complaint plus one qualifier, capped at five questions.
func DefaultPolicy() Policy {
	return Policy{MaxQuestions: 5, MinCategories: 1, RequireQualifier: true}
}

// CompleteEvent describes a session that reached its terminal state.
type CompleteEvent struct {
	Urgency        Urgency
	QuestionsAsked int
	Departments    int
	Turns          int
}

// EngineHooks lets callers observe engine activity (wired to Prometheus
// by Metrics.EngineHooks). Nil fields are skipped.
type EngineHooks struct {
	OnExtract  func(seconds float64, failed bool)
	OnEscalate func(from, to Urgency)
	OnComplete func(e *CompleteEvent)
}

// Engine is the triage state machine. It is stateless across calls: all
// conversation state lives in the Session, so one Engine serves every
// session concurrently.
type Engine struct {
	extractor      Extractor
	departments    *DepartmentTable
	policy         Policy
	extractTimeout time.Duration
	logger         log.Logger
	hooks          EngineHooks
}

// NewEngine creates a triage engine with the given dependencies.
func NewEngine(extractor Extractor, departments *DepartmentTable, policy Policy, extractTimeout time.Duration, logger log.Logger, hooks EngineHooks) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	if departments == nil {
		departments = NewDepartmentTable()
	}
	if policy.MaxQuestions <= 0 {
		policy.MaxQuestions = DefaultPolicy().MaxQuestions
	}
	if extractTimeout <= 0 {
		extractTimeout = 30 * time.Second
	}
	return &Engine{
		extractor:      extractor,
		departments:    departments,
		policy:         policy,
		extractTimeout: extractTimeout,
		logger:         logger,
		hooks:          hooks,
	}
}

// StepResult is the outcome of one successfully processed turn.
type StepResult struct {
	// Session is the updated deep copy; the input session is untouched.
	Session *Session

	// Message is the outbound reply for this turn.
	Message string
}

// Step processes exactly one inbound message and produces exactly one
// outbound message. It never mutates sess: all changes are applied to a
// clone that is returned only when the whole turn succeeded, so a failed
// turn (extractor timeout, malformed output) leaves the stored session
// byte-identical and safely retryable.
func (e *Engine) Step(ctx context.Context, sess *Session, message string) (*StepResult, error) {
	ctx, span := tracer.Start(ctx, "triage.step")
	defer span.End()
	span.SetAttributes(
		attribute.String("intake.session.id", sess.ID),
		attribute.String("intake.session.state", string(sess.State)),
	)

	if sess.State == StateComplete {
		return nil, ErrSessionComplete
	}
	if sess.State != StateGreeting && sess.State != StateCollecting {
		// Analyzing and recommending are synchronous pass-through states; a
		// stored session should never be parked in one.
		return nil, fmt.Errorf("%w: inbound message in state %q", ErrInvalidTransition, sess.State)
	}

	ext, err := e.extract(ctx, sess.History, message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := time.Now().UTC()
	next := sess.Clone()
	next.History = append(next.History, Turn{Role: RoleUser, Content: message, Timestamp: now})
	next.Symptoms = mergeSymptoms(next.Symptoms, ext.Symptoms)

	urgency := EscalateUrgency(next.Urgency, ext.Symptoms, message)
	if ext.SuggestedUrgency > urgency {
		urgency = ext.SuggestedUrgency
	}
	if urgency != next.Urgency && e.hooks.OnEscalate != nil {
		e.hooks.OnEscalate(next.Urgency, urgency)
	}
	next.Urgency = urgency
	span.SetAttributes(attribute.String("intake.session.urgency", urgency.String()))

	reply, err := e.transition(next, ext)
	if err != nil {
		e.logger.Error(ctx, err, "state machine invariant violated",
			"session_id", sess.ID,
			"state", string(sess.State),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	next.History = append(next.History, Turn{Role: RoleAssistant, Content: reply, Timestamp: now})
	next.UpdatedAt = now

	e.logger.Info(ctx, "triage turn",
		"session_id", next.ID,
		"state", string(next.State),
		"urgency", next.Urgency.String(),
		"symptoms", len(next.Symptoms),
		"questions_asked", next.QuestionsAsked,
	)

	if next.State == StateComplete && e.hooks.OnComplete != nil {
		e.hooks.OnComplete(&CompleteEvent{
			Urgency:        next.Urgency,
			QuestionsAsked: next.QuestionsAsked,
			Departments:    len(next.RecommendedDepartments),
			Turns:          len(next.History),
		})
	}

	return &StepResult{Session: next, Message: reply}, nil
}

// extract calls the language-understanding backend, bounded by the
// configured timeout. Any failure is surfaced as ErrUpstreamUnavailable.
func (e *Engine) extract(ctx context.Context, history []Turn, latest string) (*Extraction, error) {
	ctx, cancel := context.WithTimeout(ctx, e.extractTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "extract.call")
	defer span.End()

	start := time.Now()
	ext, err := e.extractor.Extract(ctx, history, latest)
	elapsed := time.Since(start).Seconds()
	if e.hooks.OnExtract != nil {
		e.hooks.OnExtract(elapsed, err != nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if ext == nil {
		return nil, fmt.Errorf("%w: extractor returned no result", ErrUpstreamUnavailable)
	}
	span.SetAttributes(
		attribute.Int("intake.extract.symptoms", len(ext.Symptoms)),
		attribute.String("intake.extract.urgency", ext.SuggestedUrgency.String()),
	)
	return ext, nil
}

// transition applies the state table for one turn and returns the
// outbound message. next already carries the merged symptoms, the
// escalated urgency and the inbound turn.
func (e *Engine) transition(next *Session, ext *Extraction) (string, error) {
	emergency := next.Urgency == UrgencyEmergency

	switch next.State {
	case StateGreeting:
		if err := advance(next, StateCollecting); err != nil {
			return "", err
		}
		if emergency {
			return e.recommend(next)
		}
		next.QuestionsAsked++
		return e.question(ext), nil

	case StateCollecting:
		if emergency || next.QuestionsAsked >= e.policy.MaxQuestions || e.sufficient(next) {
			return e.recommend(next)
		}
		next.QuestionsAsked++
		return e.question(ext), nil

	default:
		return "", fmt.Errorf("%w: transition from %q", ErrInvalidTransition, next.State)
	}
}

// recommend drives collecting -> analyzing -> recommending -> complete
// within the current turn: analysis is synchronous and the
// recommendation response is delivered as this turn's reply.
func (e *Engine) recommend(next *Session) (string, error) {
	if err := advance(next, StateAnalyzing); err != nil {
		return "", err
	}
	// Symptom set is frozen from here on.
	categories := e.departments.Categorize(next.Symptoms)
	departments := e.departments.DepartmentsFor(categories)
	if next.Urgency == UrgencyEmergency {
		departments = frontload(departments, EmergencyMedicine)
	}

	if err := advance(next, StateRecommending); err != nil {
		return "", err
	}
	next.RecommendedDepartments = departments

	reply := e.composeRecommendation(next)

	if err := advance(next, StateComplete); err != nil {
		return "", err
	}
	return reply, nil
}

func (e *Engine) composeRecommendation(next *Session) string {
	var b strings.Builder
	if next.Urgency == UrgencyEmergency {
		b.WriteString(EmergencyDirective)
		b.WriteString(" ")
	}
	b.WriteString("Based on your symptoms")
	if len(next.Symptoms) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(next.Symptoms, ", "))
		b.WriteString(")")
	}
	b.WriteString(", the recommended department")
	if len(next.RecommendedDepartments) > 1 {
		b.WriteString("s are: ")
	} else {
		b.WriteString(" is: ")
	}
	b.WriteString(strings.Join(next.RecommendedDepartments, ", "))
	b.WriteString(".")
	return b.String()
}

func (e *Engine) question(ext *Extraction) string {
	if ext.FollowUpQuestion != "" {
		return ext.FollowUpQuestion
	}
	return fallbackQuestion
}

// sufficient implements the collection stop rule: the symptom set covers
// at least MinCategories primary-complaint categories and, when
// required, the patient has supplied a duration/severity qualifier.
func (e *Engine) sufficient(next *Session) bool {
	categories := e.departments.Categorize(next.Symptoms)
	if !hasPrimaryComplaint(categories) {
		return false
	}
	primary := 0
	for _, c := range categories {
		if c != "general" {
			primary++
		}
	}
	if primary < e.policy.MinCategories {
		return false
	}
	if e.policy.RequireQualifier && !hasQualifier(next.History) {
		return false
	}
	return true
}

// qualifierMarkers flag duration or severity information in patient
// messages ("since yesterday", "for two days", "mild", "sharp").
var qualifierMarkers = []string{
	"since ",
	"yesterday",
	"today",
	"this morning",
	"last night",
	" day",
	" days",
	" week",
	" month",
	" hour",
	"mild",
	"moderate",
	"severe",
	"sharp",
	"dull",
	"constant",
	"intermittent",
	"comes and goes",
	"getting worse",
	"started",
}

func hasQualifier(history []Turn) bool {
	for _, t := range history {
		if t.Role != RoleUser {
			continue
		}
		low := strings.ToLower(t.Content)
		for _, m := range qualifierMarkers {
			if strings.Contains(low, m) {
				return true
			}
		}
	}
	return false
}

// frontload moves dept to the head of the list, inserting it if absent.
func frontload(departments []string, dept string) []string {
	out := make([]string, 0, len(departments)+1)
	out = append(out, dept)
	for _, d := range departments {
		if d != dept {
			out = append(out, d)
		}
	}
	return out
}

// advance performs one forward step through the state graph and fails
// with ErrInvalidTransition on anything else. Backward or skipping moves
// indicate a bug.
func advance(sess *Session, to State) error {
	if !canAdvance(sess.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sess.State, to)
	}
	sess.State = to
	return nil
}
