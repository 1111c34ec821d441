package enrollment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stillpoint/drip/internal/domain"
	"github.com/stillpoint/drip/internal/pkg/logger"
)

// Outcome describes what Enroll did.
type Outcome string

const (
	OutcomeEnrolled        Outcome = "enrolled"
	OutcomeAlreadyEnrolled Outcome = "already_enrolled"
	OutcomeNoSequence      Outcome = "no_sequence"
)

// EnrollResult is returned by Enroll. A skipped trigger (no active
// sequence for the key) is an outcome, not an error — callers must not
// fail the surrounding request over it.
type EnrollResult struct {
	Outcome    Outcome            `json:"outcome"`
	Enrollment *domain.Enrollment `json:"enrollment,omitempty"`
}

// Service implements enrollment business logic.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates an enrollment service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// SetClock overrides the time source. Used by tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Enroll places a subscriber into the active sequence matching triggerKey.
// The new enrollment points at step 1 and is due immediately, so a step-1
// delay of zero means "send on the next processor run". Enroll is
// idempotent: a concurrent or repeated call while an enrollment is active
// returns the existing row unchanged.
func (s *Service) Enroll(ctx context.Context, subscriberID, triggerKey string) (*EnrollResult, error) {
	seq, err := s.repo.FindActiveSequenceByTrigger(ctx, triggerKey)
	if err == ErrSequenceNotFound {
		logger.Debug("enrollment: no active sequence for trigger", "trigger_key", triggerKey)
		return &EnrollResult{Outcome: OutcomeNoSequence}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve sequence for trigger %q: %w", triggerKey, err)
	}

	e := &domain.Enrollment{
		ID:           uuid.New().String(),
		SubscriberID: subscriberID,
		SequenceID:   seq.ID,
		CurrentStep:  1,
		DueAt:        s.now(),
		Status:       domain.EnrollmentActive,
	}

	created, existing, err := s.repo.CreateActive(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("create enrollment: %w", err)
	}
	if !created {
		return &EnrollResult{Outcome: OutcomeAlreadyEnrolled, Enrollment: existing}, nil
	}

	logger.Info("enrollment: enrolled",
		"enrollment_id", e.ID, "sequence", seq.Name, "trigger_key", triggerKey)
	return &EnrollResult{Outcome: OutcomeEnrolled, Enrollment: e}, nil
}

// Cancel marks any active enrollment for the pair as cancelled. Safe to
// call when no enrollment exists.
func (s *Service) Cancel(ctx context.Context, subscriberID, sequenceID string) error {
	n, err := s.repo.Cancel(ctx, subscriberID, sequenceID)
	if err != nil {
		return fmt.Errorf("cancel enrollment: %w", err)
	}
	if n > 0 {
		logger.Info("enrollment: cancelled", "subscriber_id", subscriberID, "sequence_id", sequenceID)
	}
	return nil
}

// CancelAll cancels every active enrollment of a subscriber and returns
// the number cancelled. Called from the unsubscribe hook.
func (s *Service) CancelAll(ctx context.Context, subscriberID string) (int, error) {
	n, err := s.repo.CancelAllForSubscriber(ctx, subscriberID)
	if err != nil {
		return 0, fmt.Errorf("cancel enrollments: %w", err)
	}
	return n, nil
}

// Get returns a single enrollment.
func (s *Service) Get(ctx context.Context, id string) (*domain.Enrollment, error) {
	return s.repo.Get(ctx, id)
}

// List returns enrollments matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Enrollment, int, error) {
	return s.repo.List(ctx, f)
}

// SendLog returns the delivery log for one enrollment.
func (s *Service) SendLog(ctx context.Context, enrollmentID string) ([]domain.SendLogEntry, error) {
	return s.repo.ListSendLog(ctx, enrollmentID)
}
