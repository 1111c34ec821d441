package sequence

import (
	"context"
	"time"

	"github.com/stillpoint/drip/internal/domain"
)

// Store is the persistence contract for the processor. The Postgres
// implementation lives in repository/postgres; tests use an in-memory fake.
//
// Claim discipline: ClaimDue atomically moves due rows from active to
// processing before they are returned, so two overlapping processor runs
// can never hold the same enrollment. Every claimed row must end the run
// in exactly one of: Advance, Complete, MarkErrored, MarkCancelled, or
// ReleaseClaim.
type Store interface {
	// ReapExpiredClaims returns enrollments stuck in processing (a crashed
	// run) back to active. Claims older than olderThan are reaped.
	ReapExpiredClaims(ctx context.Context, olderThan time.Time) (int, error)

	// ClaimDue atomically claims up to limit enrollments that are active
	// with due_at <= now, marking them processing.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.Enrollment, error)

	// GetSequence returns a sequence with its steps, any status.
	GetSequence(ctx context.Context, id string) (*domain.Sequence, error)

	// GetSubscriber returns the enrolled subscriber.
	GetSubscriber(ctx context.Context, id string) (*domain.Subscriber, error)

	// RecordSent writes a sent log entry. Returns false when an entry for
	// (enrollment, step) already exists — the duplicate-send guard.
	RecordSent(ctx context.Context, enrollmentID string, step int, messageID string) (bool, error)

	// RecordFailed writes a failed log entry with the delivery error.
	RecordFailed(ctx context.Context, enrollmentID string, step int, sendErr string) error

	// Advance moves a claimed enrollment to the next step and back to
	// active with the new due time.
	Advance(ctx context.Context, enrollmentID string, nextStep int, dueAt time.Time) error

	// Complete marks a claimed enrollment completed (terminal).
	Complete(ctx context.Context, enrollmentID string) error

	// MarkErrored marks a claimed enrollment errored (terminal), used for
	// sequence/step data inconsistencies.
	MarkErrored(ctx context.Context, enrollmentID string) error

	// MarkCancelled marks a claimed enrollment cancelled (terminal), used
	// when the subscriber unsubscribed between enrollment and send.
	MarkCancelled(ctx context.Context, enrollmentID string) error

	// ReleaseClaim returns a claimed enrollment to active with its due
	// time untouched, so a failed send is retried on the next run.
	ReleaseClaim(ctx context.Context, enrollmentID string) error
}
