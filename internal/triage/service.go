package triage

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
)

// Notifier is called when a session escalates to emergency, so operators
// can be paged out-of-band. Implementations must be safe for concurrent
// use; failures are logged, never surfaced to the patient.
type Notifier interface {
	Send(ctx context.Context, sess *Session) error
}

// ServiceHooks lets callers observe service activity (wired to
// Prometheus by Metrics.ServiceHooks). Nil fields are skipped.
type ServiceHooks struct {
	OnStart func()
	OnTurn  func(outcome string)
	OnSweep func(deleted int)
}

// Turn outcomes reported through ServiceHooks.OnTurn.
const (
	OutcomeOK            = "ok"
	OutcomeNotFound      = "not_found"
	OutcomeComplete      = "complete"
	OutcomeUpstreamError = "upstream_error"
	OutcomeInternalError = "internal_error"
)

// Service is the business boundary for triage sessions. It owns session
// creation, per-session mutual exclusion, persistence, and idle expiry;
// the Engine owns the dialogue semantics.
type Service struct {
	store    Store
	engine   *Engine
	logger   log.Logger
	hooks    ServiceHooks
	notifier Notifier
	locks    *keyedMutex
}

// NewService creates a triage service.
func NewService(store Store, engine *Engine, logger log.Logger, hooks ServiceHooks, notifier Notifier) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    store,
		engine:   engine,
		logger:   logger,
		hooks:    hooks,
		notifier: notifier,
		locks:    newKeyedMutex(),
	}
}

// StartSession creates a session in the greeting state and returns it
// with the opening message already on the transcript.
func (s *Service) StartSession(ctx context.Context) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:        ulid.Make().String(),
		State:     StateGreeting,
		Urgency:   UrgencyNormal,
		History:   []Turn{{Role: RoleAssistant, Content: GreetingMessage, Timestamp: now}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, err
	}
	if s.hooks.OnStart != nil {
		s.hooks.OnStart()
	}
	s.logger.Info(ctx, "session started", "session_id", sess.ID)
	return sess, nil
}

// SendMessage processes one patient turn. Turns for the same session are
// serialized: the read-modify-write below runs under the per-session
// lock, so N concurrent turns behave as some serial ordering of those N
// turns and replies leave in acceptance order.
func (s *Service) SendMessage(ctx context.Context, id, message string) (*StepResult, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, ok, err := s.store.Get(ctx, id)
	if err != nil {
		s.turnOutcome(OutcomeInternalError)
		return nil, err
	}
	if !ok {
		// Possibly swept mid-flight; never silently recreate state.
		s.turnOutcome(OutcomeNotFound)
		return nil, ErrSessionNotFound
	}
	if sess.State == StateComplete {
		s.turnOutcome(OutcomeComplete)
		return nil, ErrSessionComplete
	}

	res, err := s.engine.Step(ctx, sess, message)
	if err != nil {
		// Nothing was persisted: the caller may resubmit the same turn.
		s.turnOutcome(OutcomeUpstreamError)
		return nil, err
	}

	if err := s.store.Put(ctx, res.Session); err != nil {
		s.turnOutcome(OutcomeInternalError)
		return nil, err
	}
	s.turnOutcome(OutcomeOK)

	if res.Session.Urgency == UrgencyEmergency && sess.Urgency != UrgencyEmergency {
		s.notifyEmergency(ctx, res.Session)
	}

	return res, nil
}

// GetStatus returns a copy of the session, or ErrSessionNotFound.
func (s *Service) GetStatus(ctx context.Context, id string) (*Session, error) {
	sess, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// GetHistory returns the ordered transcript, or ErrSessionNotFound.
func (s *Service) GetHistory(ctx context.Context, id string) ([]Turn, error) {
	sess, err := s.GetStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.History, nil
}

// Sweep deletes sessions idle for longer than idleTTL and returns how
// many were removed. Each deletion holds the per-session lock and
// re-reads the session, so a turn racing the sweep either commits first
// (refreshing UpdatedAt, sparing the session) or observes
// ErrSessionNotFound afterwards. Best-effort reclamation: a failed
// delete is logged and skipped.
func (s *Service) Sweep(ctx context.Context, idleTTL time.Duration) (int, error) {
	ids, err := s.store.ListExpired(ctx, time.Now().UTC().Add(-idleTTL))
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range ids {
		unlock := s.locks.Lock(id)

		sess, ok, err := s.store.Get(ctx, id)
		if err != nil {
			s.logger.Error(ctx, err, "sweep: get failed", "session_id", id)
			unlock()
			continue
		}
		if !ok || time.Since(sess.UpdatedAt) < idleTTL {
			unlock()
			continue
		}
		if err := s.store.Delete(ctx, id); err != nil {
			s.logger.Error(ctx, err, "sweep: delete failed", "session_id", id)
			unlock()
			continue
		}
		deleted++
		unlock()
	}

	if deleted > 0 {
		s.logger.Info(ctx, "swept idle sessions", "deleted", deleted, "idle_ttl", idleTTL.String())
	}
	if s.hooks.OnSweep != nil {
		s.hooks.OnSweep(deleted)
	}
	return deleted, nil
}

// RunSweeper periodically sweeps until ctx is cancelled. Run it in its
// own goroutine; it is independent of request handling.
func (s *Service) RunSweeper(ctx context.Context, interval, idleTTL time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, idleTTL); err != nil {
				s.logger.Error(ctx, err, "sweep failed")
			}
		}
	}
}

func (s *Service) turnOutcome(outcome string) {
	if s.hooks.OnTurn != nil {
		s.hooks.OnTurn(outcome)
	}
}

func (s *Service) notifyEmergency(ctx context.Context, sess *Session) {
	if s.notifier == nil {
		return
	}
	// Detached from the request so a slow webhook cannot delay the reply.
	go func(sess *Session) {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if err := s.notifier.Send(nctx, sess); err != nil {
			s.logger.Error(nctx, err, "emergency notification failed", "session_id", sess.ID)
		}
	}(sess.Clone())
}
