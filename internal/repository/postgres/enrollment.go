package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stillpoint/drip/internal/domain"
	"github.com/stillpoint/drip/internal/service/enrollment"
	"github.com/stillpoint/drip/internal/service/sequencedef"
)

// EnrollmentRepo implements enrollment.Repository against PostgreSQL.
type EnrollmentRepo struct{ db *sql.DB }

// NewEnrollmentRepo creates a Postgres-backed enrollment repository.
func NewEnrollmentRepo(db *sql.DB) *EnrollmentRepo { return &EnrollmentRepo{db: db} }

const enrollmentCols = `id, subscriber_id, sequence_id, current_step, due_at, status,
	       claimed_at, completed_at, created_at, updated_at`

func scanEnrollment(row *sql.Row) (*domain.Enrollment, error) {
	e := &domain.Enrollment{}
	err := row.Scan(&e.ID, &e.SubscriberID, &e.SequenceID, &e.CurrentStep, &e.DueAt,
		&e.Status, &e.ClaimedAt, &e.CompletedAt, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, enrollment.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan enrollment: %w", err)
	}
	return e, nil
}

func (r *EnrollmentRepo) FindActiveSequenceByTrigger(ctx context.Context, triggerKey string) (*domain.Sequence, error) {
	seq, err := fetchSequence(ctx, r.db,
		"WHERE trigger_key = $1 AND status = 'active'", triggerKey)
	if err == sequencedef.ErrNotFound {
		return nil, enrollment.ErrSequenceNotFound
	}
	return seq, err
}

// CreateActive inserts the enrollment, letting the partial unique index
// on (subscriber_id, sequence_id) WHERE status IN ('active','processing')
// absorb the race: on conflict nothing is inserted and the existing row
// is returned with created = false.
func (r *EnrollmentRepo) CreateActive(ctx context.Context, e *domain.Enrollment) (bool, *domain.Enrollment, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO drip_enrollments
			(id, subscriber_id, sequence_id, current_step, due_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'active', NOW(), NOW())
		ON CONFLICT (subscriber_id, sequence_id)
			WHERE status IN ('active','processing')
		DO NOTHING
	`, e.ID, e.SubscriberID, e.SequenceID, e.CurrentStep, e.DueAt)
	if err != nil {
		return false, nil, fmt.Errorf("insert enrollment: %w", err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil, nil
	}

	existing, err := scanEnrollment(r.db.QueryRowContext(ctx, `
		SELECT `+enrollmentCols+`
		FROM drip_enrollments
		WHERE subscriber_id = $1 AND sequence_id = $2
		  AND status IN ('active','processing')
	`, e.SubscriberID, e.SequenceID))
	if err != nil {
		// Lost a race with a cancel between insert and re-select. Treat
		// as already-enrolled with no row; callers only read the outcome.
		if err == enrollment.ErrNotFound {
			return false, nil, nil
		}
		return false, nil, err
	}
	return false, existing, nil
}

func (r *EnrollmentRepo) Get(ctx context.Context, id string) (*domain.Enrollment, error) {
	return scanEnrollment(r.db.QueryRowContext(ctx, `
		SELECT `+enrollmentCols+`
		FROM drip_enrollments
		WHERE id = $1
	`, id))
}

func (r *EnrollmentRepo) Cancel(ctx context.Context, subscriberID, sequenceID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE drip_enrollments
		SET status = 'cancelled', claimed_at = NULL, updated_at = NOW()
		WHERE subscriber_id = $1 AND sequence_id = $2
		  AND status IN ('active','processing')
	`, subscriberID, sequenceID)
	if err != nil {
		return 0, fmt.Errorf("cancel enrollment: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *EnrollmentRepo) CancelAllForSubscriber(ctx context.Context, subscriberID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE drip_enrollments
		SET status = 'cancelled', claimed_at = NULL, updated_at = NOW()
		WHERE subscriber_id = $1 AND status IN ('active','processing')
	`, subscriberID)
	if err != nil {
		return 0, fmt.Errorf("cancel enrollments: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *EnrollmentRepo) List(ctx context.Context, f enrollment.ListFilter) ([]domain.Enrollment, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := "WHERE 1=1"
	args := []interface{}{}
	idx := 1
	add := func(cond string, val interface{}) {
		where += fmt.Sprintf(" AND %s = $%d", cond, idx)
		args = append(args, val)
		idx++
	}
	if f.SubscriberID != "" {
		add("subscriber_id", f.SubscriberID)
	}
	if f.SequenceID != "" {
		add("sequence_id", f.SequenceID)
	}
	if f.Status != "" {
		add("status", f.Status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM drip_enrollments `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}

	q := `SELECT ` + enrollmentCols + ` FROM drip_enrollments ` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var out []domain.Enrollment
	for rows.Next() {
		var e domain.Enrollment
		if err := rows.Scan(&e.ID, &e.SubscriberID, &e.SequenceID, &e.CurrentStep, &e.DueAt,
			&e.Status, &e.ClaimedAt, &e.CompletedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan enrollment: %w", err)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *EnrollmentRepo) ListSendLog(ctx context.Context, enrollmentID string) ([]domain.SendLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, enrollment_id, step_position, outcome, COALESCE(error,''),
		       COALESCE(message_id,''), created_at
		FROM drip_send_log
		WHERE enrollment_id = $1
		ORDER BY step_position, created_at
	`, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("list send log: %w", err)
	}
	defer rows.Close()

	var out []domain.SendLogEntry
	for rows.Next() {
		var l domain.SendLogEntry
		if err := rows.Scan(&l.ID, &l.EnrollmentID, &l.StepPosition, &l.Outcome,
			&l.Error, &l.MessageID, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan send log entry: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
