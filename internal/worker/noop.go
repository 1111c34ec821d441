package worker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stillpoint/drip/internal/pkg/logger"
)

// NoopSender accepts every message without touching the network. Used for
// local development and as the default when no provider is configured.
type NoopSender struct{}

// NewNoopSender creates a no-op sender.
func NewNoopSender() *NoopSender { return &NoopSender{} }

// Send logs the message and reports success.
func (s *NoopSender) Send(ctx context.Context, msg *EmailMessage) (*SendResult, error) {
	logger.Info("noop: would send", "email", msg.Email, "subject", msg.Subject)
	return &SendResult{
		Success:   true,
		MessageID: "noop-" + uuid.New().String(),
		Provider:  "noop",
		SentAt:    time.Now(),
	}, nil
}
