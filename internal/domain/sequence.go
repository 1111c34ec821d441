package domain

import "time"

// SequenceStatus enumerates lifecycle states of a sequence definition.
// Only active sequences accept new enrollments.
type SequenceStatus string

const (
	SequenceActive   SequenceStatus = "active"
	SequenceDraft    SequenceStatus = "draft"
	SequenceInactive SequenceStatus = "inactive"
)

// Sequence is a named, ordered template of timed email steps, matched to
// external events by trigger key (e.g. "newsletter_signup").
type Sequence struct {
	ID          string         `json:"id" db:"id"`
	Name        string         `json:"name" db:"name"`
	Description string         `json:"description" db:"description"`
	TriggerKey  string         `json:"trigger_key" db:"trigger_key"`
	Status      SequenceStatus `json:"status" db:"status"`
	Steps       []SequenceStep `json:"steps,omitempty"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SequenceStep is one email within a sequence. Position is 1-based and
// contiguous within a sequence. DelayDays counts from the previous step's
// send (or from enrollment for step 1).
type SequenceStep struct {
	ID         string    `json:"id" db:"id"`
	SequenceID string    `json:"sequence_id" db:"sequence_id"`
	Position   int       `json:"position" db:"position"`
	DelayDays  int       `json:"delay_days" db:"delay_days"`
	Subject    string    `json:"subject" db:"subject"`
	BodyHTML   string    `json:"body_html" db:"body_html"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// StepAt returns the step with the given 1-based position, or nil when the
// position is past the end of the sequence.
func (s *Sequence) StepAt(position int) *SequenceStep {
	for i := range s.Steps {
		if s.Steps[i].Position == position {
			return &s.Steps[i]
		}
	}
	return nil
}

// LastPosition returns the highest step position, 0 for an empty sequence.
func (s *Sequence) LastPosition() int {
	max := 0
	for i := range s.Steps {
		if s.Steps[i].Position > max {
			max = s.Steps[i].Position
		}
	}
	return max
}
