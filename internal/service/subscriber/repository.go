package subscriber

import (
	"context"

	"github.com/stillpoint/drip/internal/domain"
)

// Repository defines the data access contract for subscribers.
// Implementations must be safe for concurrent use.
type Repository interface {
	// GetByEmail returns the subscriber with the given normalized email.
	// Returns ErrNotFound if it doesn't exist.
	GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error)

	// GetByID returns a single subscriber. Returns ErrNotFound if it
	// doesn't exist.
	GetByID(ctx context.Context, id string) (*domain.Subscriber, error)

	// Upsert inserts the subscriber or, when the email already exists,
	// updates status/source/first_name in place. The insert-or-update must
	// be a single atomic statement keyed on the normalized email. The
	// persisted row (with ID and timestamps) is written back into s.
	Upsert(ctx context.Context, s *domain.Subscriber) error

	// UpdateStatus transitions a subscriber's status.
	UpdateStatus(ctx context.Context, id string, status domain.SubscriberStatus) error

	// List returns subscribers matching the filter, newest first.
	List(ctx context.Context, f ListFilter) ([]domain.Subscriber, int, error)
}

// ListFilter controls pagination and filtering for subscriber lists.
type ListFilter struct {
	Status string
	Source string
	Limit  int
	Offset int
}

// EnrollmentCanceller is the slice of the enrollment service the
// unsubscribe hook needs. Satisfied by enrollment.Service.
type EnrollmentCanceller interface {
	CancelAll(ctx context.Context, subscriberID string) (int, error)
}
