// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/intake/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/intake/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists triage sessions in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store.
// The pool stays owned by the caller.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const sessionColumns = `id, state, urgency, symptoms, questions_asked,
	recommended_departments, history, created_at, updated_at`

// Get retrieves a session by ID.
func (s *Store) Get(ctx context.Context, id string) (*triage.Session, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + sessionColumns + ` FROM triage_sessions WHERE id = $1`
	sess, err := scanSessionRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if sess == nil {
		return nil, false, nil
	}
	return sess, true, nil
}

// Put inserts or updates a session (upsert on id).
func (s *Store) Put(ctx context.Context, sess *triage.Session) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	symptomsJSON, err := json.Marshal(sess.Symptoms)
	if err != nil {
		return fmt.Errorf("marshal symptoms: %w", err)
	}
	departmentsJSON, err := json.Marshal(sess.RecommendedDepartments)
	if err != nil {
		return fmt.Errorf("marshal departments: %w", err)
	}
	historyJSON, err := json.Marshal(sess.History)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	query := `INSERT INTO triage_sessions (
		id, state, urgency, symptoms, questions_asked,
		recommended_departments, history, created_at, updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	ON CONFLICT (id) DO UPDATE SET
		state                   = EXCLUDED.state,
		urgency                 = EXCLUDED.urgency,
		symptoms                = EXCLUDED.symptoms,
		questions_asked         = EXCLUDED.questions_asked,
		recommended_departments = EXCLUDED.recommended_departments,
		history                 = EXCLUDED.history,
		updated_at              = EXCLUDED.updated_at`

	_, err = s.pool.Exec(ctx, query,
		sess.ID, string(sess.State), sess.Urgency.String(), symptomsJSON,
		sess.QuestionsAsked, departmentsJSON, historyJSON,
		sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Delete removes the session. Unknown ids are a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "pgstore.Delete", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "DELETE"),
	))
	defer span.End()

	if _, err := s.pool.Exec(ctx, `DELETE FROM triage_sessions WHERE id = $1`, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ListExpired returns ids of sessions last touched before olderThan.
func (s *Store) ListExpired(ctx context.Context, olderThan time.Time) ([]string, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListExpired", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id FROM triage_sessions WHERE updated_at < $1`, olderThan)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query expired: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired: %w", err)
	}
	return ids, nil
}

// scanSessionRow scans a single row into a Session. Returns (nil, nil)
// when no row is found.
func scanSessionRow(row pgx.Row) (*triage.Session, error) {
	var (
		sess            triage.Session
		state           string
		urgency         string
		symptomsJSON    []byte
		departmentsJSON []byte
		historyJSON     []byte
	)

	err := row.Scan(
		&sess.ID, &state, &urgency, &symptomsJSON, &sess.QuestionsAsked,
		&departmentsJSON, &historyJSON, &sess.CreatedAt, &sess.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	sess.State = triage.State(state)
	u, err := triage.ParseUrgency(urgency)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sess.ID, err)
	}
	sess.Urgency = u

	if err := json.Unmarshal(symptomsJSON, &sess.Symptoms); err != nil {
		return nil, fmt.Errorf("unmarshal symptoms: %w", err)
	}
	if err := json.Unmarshal(departmentsJSON, &sess.RecommendedDepartments); err != nil {
		return nil, fmt.Errorf("unmarshal departments: %w", err)
	}
	if err := json.Unmarshal(historyJSON, &sess.History); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}

	return &sess, nil
}
