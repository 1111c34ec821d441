// Package worker contains the outbound email sender adapters.
//
// Adapters are split into individual files:
//   - ses.go:       AWS SES v2
//   - sparkpost.go: SparkPost Transmissions API
//   - noop.go:      local development / test sender
//
// Adapters carry no business logic. Provider errors are surfaced inside
// SendResult so the processor's per-item failure isolation works; a non-nil
// error return is reserved for adapter misconfiguration.
package worker

import (
	"context"
	"time"
)

// Sender delivers a single rendered email through an external provider.
type Sender interface {
	Send(ctx context.Context, msg *EmailMessage) (*SendResult, error)
}

// EmailMessage represents one rendered email to be sent.
type EmailMessage struct {
	EnrollmentID string
	SubscriberID string
	Email        string
	FromName     string
	FromEmail    string
	ReplyTo      string
	Subject      string
	HTMLContent  string
	TextContent  string
	Headers      map[string]string // Custom SMTP headers (List-Unsubscribe etc.)
}

// SendResult reports the outcome of a delivery attempt.
type SendResult struct {
	Success   bool
	MessageID string
	Error     error
	Provider  string
	SentAt    time.Time
}
