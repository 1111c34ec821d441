package sequencedef

import (
	"context"

	"github.com/stillpoint/drip/internal/domain"
)

// Repository defines the data access contract for sequence definitions.
type Repository interface {
	// Get returns a sequence with its steps in position order. Returns
	// ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Sequence, error)

	// List returns all sequences without their steps, newest first.
	List(ctx context.Context, f ListFilter) ([]domain.Sequence, int, error)

	// Create inserts the sequence and its steps in one transaction.
	Create(ctx context.Context, seq *domain.Sequence) error

	// Update rewrites name/description/trigger_key/status and replaces
	// the step set in one transaction. Running enrollments keep their
	// current position; edits take effect on the next due step.
	Update(ctx context.Context, seq *domain.Sequence) error

	// SetStatus transitions only the sequence status.
	SetStatus(ctx context.Context, id string, status domain.SequenceStatus) error

	// ActiveTriggerExists reports whether an active sequence other than
	// excludeID carries the trigger key.
	ActiveTriggerExists(ctx context.Context, triggerKey, excludeID string) (bool, error)
}

// ListFilter controls pagination and filtering for sequence lists.
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}
