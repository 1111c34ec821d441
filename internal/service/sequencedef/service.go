package sequencedef

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/stillpoint/drip/internal/domain"
	"github.com/stillpoint/drip/internal/pkg/logger"
)

// Service implements sequence definition management.
type Service struct {
	repo Repository
}

// NewService creates a sequence definition service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// StepInput is one step as supplied by the admin API. Positions are
// assigned from slice order, so callers never send them.
type StepInput struct {
	DelayDays int    `json:"delay_days"`
	Subject   string `json:"subject"`
	BodyHTML  string `json:"body_html"`
}

// SequenceInput is the create/update payload.
type SequenceInput struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	TriggerKey  string      `json:"trigger_key"`
	Status      string      `json:"status"`
	Steps       []StepInput `json:"steps"`
}

// Create validates and stores a new sequence definition.
func (s *Service) Create(ctx context.Context, in SequenceInput) (*domain.Sequence, error) {
	seq, err := s.build(uuid.New().String(), in)
	if err != nil {
		return nil, err
	}
	if err := s.checkTrigger(ctx, seq, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, seq); err != nil {
		return nil, fmt.Errorf("create sequence: %w", err)
	}
	logger.Info("sequencedef: created", "sequence_id", seq.ID, "trigger_key", seq.TriggerKey)
	return seq, nil
}

// Update validates and replaces an existing definition. The step set is
// rewritten wholesale; active enrollments keep their current position.
func (s *Service) Update(ctx context.Context, id string, in SequenceInput) (*domain.Sequence, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	seq, err := s.build(id, in)
	if err != nil {
		return nil, err
	}
	if err := s.checkTrigger(ctx, seq, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, seq); err != nil {
		return nil, fmt.Errorf("update sequence: %w", err)
	}
	logger.Info("sequencedef: updated", "sequence_id", id)
	return seq, nil
}

// SetStatus activates, pauses, or retires a sequence. Draft and inactive
// sequences never accept new enrollments; existing enrollments continue.
func (s *Service) SetStatus(ctx context.Context, id string, status domain.SequenceStatus) error {
	switch status {
	case domain.SequenceActive, domain.SequenceDraft, domain.SequenceInactive:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidSequence, status)
	}
	seq, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if status == domain.SequenceActive {
		if err := s.checkTrigger(ctx, seq, id); err != nil {
			return err
		}
	}
	return s.repo.SetStatus(ctx, id, status)
}

// Get returns one sequence with its steps.
func (s *Service) Get(ctx context.Context, id string) (*domain.Sequence, error) {
	return s.repo.Get(ctx, id)
}

// List returns sequences matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Sequence, int, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) build(id string, in SequenceInput) (*domain.Sequence, error) {
	name := strings.TrimSpace(in.Name)
	trigger := strings.TrimSpace(strings.ToLower(in.TriggerKey))
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidSequence)
	}
	if trigger == "" {
		return nil, fmt.Errorf("%w: trigger_key is required", ErrInvalidSequence)
	}
	if len(in.Steps) == 0 {
		return nil, fmt.Errorf("%w: at least one step is required", ErrInvalidSequence)
	}

	status := domain.SequenceStatus(in.Status)
	if in.Status == "" {
		status = domain.SequenceDraft
	}
	switch status {
	case domain.SequenceActive, domain.SequenceDraft, domain.SequenceInactive:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidSequence, in.Status)
	}

	seq := &domain.Sequence{
		ID:          id,
		Name:        name,
		Description: in.Description,
		TriggerKey:  trigger,
		Status:      status,
	}
	for i, st := range in.Steps {
		if st.DelayDays < 0 {
			return nil, fmt.Errorf("%w: step %d has negative delay", ErrInvalidSequence, i+1)
		}
		if strings.TrimSpace(st.Subject) == "" {
			return nil, fmt.Errorf("%w: step %d has no subject", ErrInvalidSequence, i+1)
		}
		seq.Steps = append(seq.Steps, domain.SequenceStep{
			ID:         uuid.New().String(),
			SequenceID: id,
			Position:   i + 1,
			DelayDays:  st.DelayDays,
			Subject:    st.Subject,
			BodyHTML:   st.BodyHTML,
		})
	}
	return seq, nil
}

func (s *Service) checkTrigger(ctx context.Context, seq *domain.Sequence, excludeID string) error {
	if seq.Status != domain.SequenceActive {
		return nil
	}
	exists, err := s.repo.ActiveTriggerExists(ctx, seq.TriggerKey, excludeID)
	if err != nil {
		return fmt.Errorf("check trigger key: %w", err)
	}
	if exists {
		return ErrDuplicateTrigger
	}
	return nil
}
