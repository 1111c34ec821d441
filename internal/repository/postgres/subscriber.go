package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stillpoint/drip/internal/domain"
	"github.com/stillpoint/drip/internal/service/subscriber"
)

// SubscriberRepo implements subscriber.Repository against PostgreSQL.
type SubscriberRepo struct{ db *sql.DB }

// NewSubscriberRepo creates a Postgres-backed subscriber repository.
func NewSubscriberRepo(db *sql.DB) *SubscriberRepo { return &SubscriberRepo{db: db} }

const subscriberCols = `id, email, status, COALESCE(source,''), COALESCE(first_name,''),
	       created_at, updated_at, unsubscribed_at`

func scanSubscriber(row *sql.Row) (*domain.Subscriber, error) {
	s := &domain.Subscriber{}
	err := row.Scan(&s.ID, &s.Email, &s.Status, &s.Source, &s.FirstName,
		&s.CreatedAt, &s.UpdatedAt, &s.UnsubscribedAt)
	if err == sql.ErrNoRows {
		return nil, subscriber.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscriber: %w", err)
	}
	return s, nil
}

func (r *SubscriberRepo) GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	return scanSubscriber(r.db.QueryRowContext(ctx, `
		SELECT `+subscriberCols+`
		FROM drip_subscribers
		WHERE lower(email) = lower($1)
	`, email))
}

func (r *SubscriberRepo) GetByID(ctx context.Context, id string) (*domain.Subscriber, error) {
	return scanSubscriber(r.db.QueryRowContext(ctx, `
		SELECT `+subscriberCols+`
		FROM drip_subscribers
		WHERE id = $1
	`, id))
}

// Upsert inserts or reactivates in one statement keyed on the normalized
// email, so two concurrent subscribes for the same address cannot race
// into duplicate rows. The persisted row is written back into s.
func (r *SubscriberRepo) Upsert(ctx context.Context, s *domain.Subscriber) error {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO drip_subscribers (id, email, status, source, first_name, created_at, updated_at)
		VALUES ($1, lower($2), $3, $4, $5, NOW(), NOW())
		ON CONFLICT (lower(email)) DO UPDATE SET
			status = EXCLUDED.status,
			source = EXCLUDED.source,
			first_name = CASE WHEN EXCLUDED.first_name <> ''
				THEN EXCLUDED.first_name ELSE drip_subscribers.first_name END,
			unsubscribed_at = NULL,
			updated_at = NOW()
		RETURNING `+subscriberCols+`
	`, s.ID, s.Email, s.Status, s.Source, s.FirstName)

	saved, err := scanSubscriber(row)
	if err != nil {
		return fmt.Errorf("upsert subscriber: %w", err)
	}
	*s = *saved
	return nil
}

func (r *SubscriberRepo) UpdateStatus(ctx context.Context, id string, status domain.SubscriberStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE drip_subscribers
		SET status = $2,
		    unsubscribed_at = CASE WHEN $2 = 'unsubscribed' THEN NOW() ELSE NULL END,
		    updated_at = NOW()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("update subscriber status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return subscriber.ErrNotFound
	}
	return nil
}

func (r *SubscriberRepo) List(ctx context.Context, f subscriber.ListFilter) ([]domain.Subscriber, int, error) {
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
	if f.Source != "" {
		where += fmt.Sprintf(" AND source = $%d", idx)
		args = append(args, f.Source)
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM drip_subscribers `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count subscribers: %w", err)
	}

	q := `SELECT ` + subscriberCols + ` FROM drip_subscribers ` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscriber
	for rows.Next() {
		var s domain.Subscriber
		if err := rows.Scan(&s.ID, &s.Email, &s.Status, &s.Source, &s.FirstName,
			&s.CreatedAt, &s.UpdatedAt, &s.UnsubscribedAt); err != nil {
			return nil, 0, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}
