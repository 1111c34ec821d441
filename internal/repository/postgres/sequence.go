package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stillpoint/drip/internal/domain"
	"github.com/stillpoint/drip/internal/service/sequencedef"
)

// SequenceRepo implements sequencedef.Repository against PostgreSQL.
type SequenceRepo struct{ db *sql.DB }

// NewSequenceRepo creates a Postgres-backed sequence repository.
func NewSequenceRepo(db *sql.DB) *SequenceRepo { return &SequenceRepo{db: db} }

const sequenceCols = `id, name, COALESCE(description,''), trigger_key, status, created_at, updated_at`

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func fetchSequence(ctx context.Context, q querier, where string, arg interface{}) (*domain.Sequence, error) {
	s := &domain.Sequence{}
	err := q.QueryRowContext(ctx,
		`SELECT `+sequenceCols+` FROM drip_sequences `+where, arg,
	).Scan(&s.ID, &s.Name, &s.Description, &s.TriggerKey, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, sequencedef.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sequence: %w", err)
	}

	steps, err := fetchSteps(ctx, q, s.ID)
	if err != nil {
		return nil, err
	}
	s.Steps = steps
	return s, nil
}

func fetchSteps(ctx context.Context, q querier, sequenceID string) ([]domain.SequenceStep, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, sequence_id, position, delay_days, subject, COALESCE(body_html,''),
		       created_at, updated_at
		FROM drip_sequence_steps
		WHERE sequence_id = $1
		ORDER BY position
	`, sequenceID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var out []domain.SequenceStep
	for rows.Next() {
		var st domain.SequenceStep
		if err := rows.Scan(&st.ID, &st.SequenceID, &st.Position, &st.DelayDays,
			&st.Subject, &st.BodyHTML, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func insertSteps(ctx context.Context, q querier, steps []domain.SequenceStep) error {
	for _, st := range steps {
		_, err := q.ExecContext(ctx, `
			INSERT INTO drip_sequence_steps
				(id, sequence_id, position, delay_days, subject, body_html, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		`, st.ID, st.SequenceID, st.Position, st.DelayDays, st.Subject, st.BodyHTML)
		if err != nil {
			return fmt.Errorf("insert step %d: %w", st.Position, err)
		}
	}
	return nil
}

func (r *SequenceRepo) Get(ctx context.Context, id string) (*domain.Sequence, error) {
	return fetchSequence(ctx, r.db, "WHERE id = $1", id)
}

func (r *SequenceRepo) List(ctx context.Context, f sequencedef.ListFilter) ([]domain.Sequence, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := "WHERE 1=1"
	args := []interface{}{}
	idx := 1
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM drip_sequences `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sequences: %w", err)
	}

	q := `SELECT ` + sequenceCols + ` FROM drip_sequences ` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list sequences: %w", err)
	}
	defer rows.Close()

	var out []domain.Sequence
	for rows.Next() {
		var s domain.Sequence
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.TriggerKey,
			&s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan sequence: %w", err)
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *SequenceRepo) Create(ctx context.Context, seq *domain.Sequence) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO drip_sequences (id, name, description, trigger_key, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	`, seq.ID, seq.Name, seq.Description, seq.TriggerKey, seq.Status)
	if err != nil {
		return fmt.Errorf("insert sequence: %w", err)
	}
	if err := insertSteps(ctx, tx, seq.Steps); err != nil {
		return err
	}
	return tx.Commit()
}

// Update rewrites the definition and replaces the step set in one
// transaction. Enrollments reference steps by position, not step ID, so
// a replace does not orphan running enrollments.
func (r *SequenceRepo) Update(ctx context.Context, seq *domain.Sequence) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE drip_sequences
		SET name = $2, description = $3, trigger_key = $4, status = $5, updated_at = NOW()
		WHERE id = $1
	`, seq.ID, seq.Name, seq.Description, seq.TriggerKey, seq.Status)
	if err != nil {
		return fmt.Errorf("update sequence: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sequencedef.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM drip_sequence_steps WHERE sequence_id = $1`, seq.ID); err != nil {
		return fmt.Errorf("clear steps: %w", err)
	}
	if err := insertSteps(ctx, tx, seq.Steps); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SequenceRepo) SetStatus(ctx context.Context, id string, status domain.SequenceStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE drip_sequences SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("set sequence status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sequencedef.ErrNotFound
	}
	return nil
}

func (r *SequenceRepo) ActiveTriggerExists(ctx context.Context, triggerKey, excludeID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM drip_sequences
			WHERE trigger_key = $1 AND status = 'active' AND id <> $2
		)
	`, triggerKey, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check trigger key: %w", err)
	}
	return exists, nil
}
