package domain

import "time"

// EnrollmentStatus enumerates the states of a subscriber's progress
// through one sequence.
type EnrollmentStatus string

const (
	EnrollmentActive     EnrollmentStatus = "active"
	EnrollmentProcessing EnrollmentStatus = "processing"
	EnrollmentCompleted  EnrollmentStatus = "completed"
	EnrollmentCancelled  EnrollmentStatus = "cancelled"
	EnrollmentErrored    EnrollmentStatus = "errored"
)

// Enrollment links one subscriber to one sequence and tracks which step is
// due next. At most one active enrollment exists per (subscriber, sequence)
// pair; the database enforces this with a partial unique index covering the
// active and processing states.
//
// "processing" is a transient claim state set by the processor before the
// external send call so that overlapping batch runs cannot pick up the same
// row. Claims older than the configured TTL are reaped back to active.
type Enrollment struct {
	ID           string           `json:"id" db:"id"`
	SubscriberID string           `json:"subscriber_id" db:"subscriber_id"`
	SequenceID   string           `json:"sequence_id" db:"sequence_id"`
	CurrentStep  int              `json:"current_step" db:"current_step"`
	DueAt        time.Time        `json:"due_at" db:"due_at"`
	Status       EnrollmentStatus `json:"status" db:"status"`

	ClaimedAt   *time.Time `json:"claimed_at,omitempty" db:"claimed_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}
