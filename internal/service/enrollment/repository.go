package enrollment

import (
	"context"

	"github.com/stillpoint/drip/internal/domain"
)

// Repository defines the data access contract for enrollments.
// Implementations must be safe for concurrent use.
type Repository interface {
	// FindActiveSequenceByTrigger returns the active sequence (with steps)
	// matching the trigger key. Returns ErrSequenceNotFound when no active
	// sequence carries the key.
	FindActiveSequenceByTrigger(ctx context.Context, triggerKey string) (*domain.Sequence, error)

	// CreateActive atomically inserts an active enrollment at step 1.
	// When an active (or processing) enrollment already exists for the
	// (subscriber, sequence) pair, nothing is inserted and the existing
	// row is returned with created = false. The conflict check and the
	// insert must be one statement (ON CONFLICT DO NOTHING against the
	// partial unique index), never a check-then-insert.
	CreateActive(ctx context.Context, e *domain.Enrollment) (created bool, existing *domain.Enrollment, err error)

	// Get returns a single enrollment. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Enrollment, error)

	// Cancel marks any active/processing enrollment for the pair as
	// cancelled. Returns the number of rows cancelled (0 is not an error).
	Cancel(ctx context.Context, subscriberID, sequenceID string) (int, error)

	// CancelAllForSubscriber cancels every active/processing enrollment of
	// a subscriber. Used by the unsubscribe hook.
	CancelAllForSubscriber(ctx context.Context, subscriberID string) (int, error)

	// List returns enrollments matching the filter, newest first.
	List(ctx context.Context, f ListFilter) ([]domain.Enrollment, int, error)

	// ListSendLog returns the immutable delivery log for one enrollment,
	// in step order.
	ListSendLog(ctx context.Context, enrollmentID string) ([]domain.SendLogEntry, error)
}

// ListFilter controls pagination and filtering for enrollment lists.
type ListFilter struct {
	SubscriberID string
	SequenceID   string
	Status       string
	Limit        int
	Offset       int
}
