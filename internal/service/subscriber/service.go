package subscriber

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/stillpoint/drip/internal/domain"
	"github.com/stillpoint/drip/internal/pkg/logger"
)

// Service implements subscriber business logic. All public methods are
// safe for concurrent use if the underlying repository is concurrency-safe.
type Service struct {
	repo      Repository
	canceller EnrollmentCanceller
}

// NewService creates a subscriber service backed by the given repository.
// canceller may be nil when enrollment cancellation on unsubscribe is not
// wired (tests).
func NewService(repo Repository, canceller EnrollmentCanceller) *Service {
	return &Service{repo: repo, canceller: canceller}
}

// Subscribe creates or reactivates a subscriber. Calling it for an
// address that already exists flips the status back to active and
// refreshes the source tag; subscribers are never duplicated.
func (s *Service) Subscribe(ctx context.Context, email, source, firstName string) (*domain.Subscriber, error) {
	if !domain.ValidateEmail(email) {
		return nil, ErrInvalidEmail
	}

	sub := &domain.Subscriber{
		ID:        uuid.New().String(),
		Email:     domain.NormalizeEmail(email),
		Status:    domain.SubscriberActive,
		Source:    source,
		FirstName: firstName,
	}
	if err := s.repo.Upsert(ctx, sub); err != nil {
		return nil, fmt.Errorf("upsert subscriber: %w", err)
	}

	logger.Info("subscriber: subscribed", "email", sub.Email, "source", source)
	return sub, nil
}

// Unsubscribe flips the subscriber to unsubscribed and cancels every
// active enrollment. Safe to call for unknown addresses (no-op) and for
// addresses that are already unsubscribed.
func (s *Service) Unsubscribe(ctx context.Context, email string) error {
	sub, err := s.repo.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup subscriber: %w", err)
	}

	if sub.Status != domain.SubscriberUnsubscribed {
		if err := s.repo.UpdateStatus(ctx, sub.ID, domain.SubscriberUnsubscribed); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
	}

	if s.canceller != nil {
		n, err := s.canceller.CancelAll(ctx, sub.ID)
		if err != nil {
			// The status flip already happened; the processor also skips
			// unsubscribed recipients, so log and move on.
			logger.Error("subscriber: cancel enrollments failed", "subscriber_id", sub.ID, "error", err)
		} else if n > 0 {
			logger.Info("subscriber: cancelled enrollments", "subscriber_id", sub.ID, "count", n)
		}
	}

	logger.Info("subscriber: unsubscribed", "email", sub.Email)
	return nil
}

// Get returns a single subscriber by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.Subscriber, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByEmail returns a single subscriber by normalized email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	return s.repo.GetByEmail(ctx, domain.NormalizeEmail(email))
}

// List returns subscribers matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Subscriber, int, error) {
	return s.repo.List(ctx, f)
}
