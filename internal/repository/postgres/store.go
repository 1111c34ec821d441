package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stillpoint/drip/internal/domain"
)

// ProcessorStore implements sequence.Store against PostgreSQL.
type ProcessorStore struct{ db *sql.DB }

// NewProcessorStore creates the Postgres-backed processor store.
func NewProcessorStore(db *sql.DB) *ProcessorStore { return &ProcessorStore{db: db} }

func (s *ProcessorStore) ReapExpiredClaims(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE drip_enrollments
		SET status = 'active', claimed_at = NULL, updated_at = NOW()
		WHERE status = 'processing' AND claimed_at < $1
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("reap expired claims: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ClaimDue flips due rows to processing and returns them in one
// statement. SKIP LOCKED keeps concurrent instances from blocking on
// each other; the status flip keeps them from double-claiming rows that
// were already returned to a previous caller.
func (s *ProcessorStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.Enrollment, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH due AS (
			SELECT id FROM drip_enrollments
			WHERE status = 'active' AND due_at <= $1
			ORDER BY due_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE drip_enrollments e
		SET status = 'processing', claimed_at = $1, updated_at = NOW()
		FROM due
		WHERE e.id = due.id
		RETURNING e.id, e.subscriber_id, e.sequence_id, e.current_step, e.due_at,
		          e.status, e.claimed_at, e.completed_at, e.created_at, e.updated_at
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due enrollments: %w", err)
	}
	defer rows.Close()

	var out []domain.Enrollment
	for rows.Next() {
		var e domain.Enrollment
		if err := rows.Scan(&e.ID, &e.SubscriberID, &e.SequenceID, &e.CurrentStep, &e.DueAt,
			&e.Status, &e.ClaimedAt, &e.CompletedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan claimed enrollment: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *ProcessorStore) GetSequence(ctx context.Context, id string) (*domain.Sequence, error) {
	return fetchSequence(ctx, s.db, "WHERE id = $1", id)
}

func (s *ProcessorStore) GetSubscriber(ctx context.Context, id string) (*domain.Subscriber, error) {
	return scanSubscriber(s.db.QueryRowContext(ctx, `
		SELECT `+subscriberCols+`
		FROM drip_subscribers
		WHERE id = $1
	`, id))
}

// RecordSent inserts the sent entry. The partial unique index on
// (enrollment_id, step_position) WHERE outcome = 'sent' rejects a second
// entry; ON CONFLICT DO NOTHING turns that into rows-affected = 0, which
// the processor reads as "already sent".
func (s *ProcessorStore) RecordSent(ctx context.Context, enrollmentID string, step int, messageID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO drip_send_log (id, enrollment_id, step_position, outcome, message_id, created_at)
		VALUES ($1, $2, $3, 'sent', $4, NOW())
		ON CONFLICT (enrollment_id, step_position) WHERE outcome = 'sent'
		DO NOTHING
	`, uuid.New().String(), enrollmentID, step, messageID)
	if err != nil {
		return false, fmt.Errorf("record sent: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *ProcessorStore) RecordFailed(ctx context.Context, enrollmentID string, step int, sendErr string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drip_send_log (id, enrollment_id, step_position, outcome, error, created_at)
		VALUES ($1, $2, $3, 'failed', $4, NOW())
	`, uuid.New().String(), enrollmentID, step, sendErr)
	if err != nil {
		return fmt.Errorf("record failed: %w", err)
	}
	return nil
}

func (s *ProcessorStore) Advance(ctx context.Context, enrollmentID string, nextStep int, dueAt time.Time) error {
	return s.resolveClaim(ctx, enrollmentID, `
		UPDATE drip_enrollments
		SET current_step = $2, due_at = $3, status = 'active', claimed_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`, nextStep, dueAt)
}

func (s *ProcessorStore) Complete(ctx context.Context, enrollmentID string) error {
	return s.resolveClaim(ctx, enrollmentID, `
		UPDATE drip_enrollments
		SET status = 'completed', completed_at = NOW(), claimed_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`)
}

func (s *ProcessorStore) MarkErrored(ctx context.Context, enrollmentID string) error {
	return s.resolveClaim(ctx, enrollmentID, `
		UPDATE drip_enrollments
		SET status = 'errored', claimed_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`)
}

func (s *ProcessorStore) MarkCancelled(ctx context.Context, enrollmentID string) error {
	return s.resolveClaim(ctx, enrollmentID, `
		UPDATE drip_enrollments
		SET status = 'cancelled', claimed_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`)
}

func (s *ProcessorStore) ReleaseClaim(ctx context.Context, enrollmentID string) error {
	return s.resolveClaim(ctx, enrollmentID, `
		UPDATE drip_enrollments
		SET status = 'active', claimed_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`)
}

// resolveClaim runs a status transition that only applies to rows this
// run still holds. Zero rows means the claim was reaped or the row was
// cancelled underneath us; both are safe to ignore at this layer, but we
// surface it so the processor can log.
func (s *ProcessorStore) resolveClaim(ctx context.Context, enrollmentID, query string, extra ...interface{}) error {
	args := append([]interface{}{enrollmentID}, extra...)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("resolve claim: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("enrollment %s no longer claimed", enrollmentID)
	}
	return nil
}
