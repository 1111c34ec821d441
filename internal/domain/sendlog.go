package domain

import "time"

// SendOutcome is the result of one delivery attempt.
type SendOutcome string

const (
	SendOutcomeSent   SendOutcome = "sent"
	SendOutcomeFailed SendOutcome = "failed"
)

// SendLogEntry is one record per attempted delivery. Written exclusively by
// the processor and immutable afterwards. A partial unique index on
// (enrollment_id, step_position) WHERE outcome = 'sent' is the hard
// guarantee that a step is delivered at most once per enrollment.
type SendLogEntry struct {
	ID           string      `json:"id" db:"id"`
	EnrollmentID string      `json:"enrollment_id" db:"enrollment_id"`
	StepPosition int         `json:"step_position" db:"step_position"`
	Outcome      SendOutcome `json:"outcome" db:"outcome"`
	Error        string      `json:"error,omitempty" db:"error"`
	MessageID    string      `json:"message_id,omitempty" db:"message_id"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
}
