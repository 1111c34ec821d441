package worker

import (
	"context"
	"fmt"

	"github.com/stillpoint/drip/internal/config"
	"github.com/stillpoint/drip/internal/pkg/logger"
)

// NewSenderFromConfig builds the configured delivery adapter.
// Unknown providers are an error; an empty provider falls back to noop so
// a fresh checkout runs without any ESP credentials.
func NewSenderFromConfig(ctx context.Context, cfg *config.Config) (Sender, error) {
	switch cfg.Delivery.Provider {
	case "ses":
		sender, err := NewSESSender(ctx, cfg.SES.AccessKey, cfg.SES.SecretKey, cfg.SES.Region)
		if err != nil {
			return nil, fmt.Errorf("init ses sender: %w", err)
		}
		return sender, nil
	case "sparkpost":
		if cfg.SparkPost.APIKey == "" {
			return nil, fmt.Errorf("sparkpost provider selected but no API key configured")
		}
		return NewSparkPostSender(cfg.SparkPost.APIKey, cfg.SparkPost.BaseURL, cfg.SparkPost.Timeout()), nil
	case "noop", "":
		logger.Warn("delivery: using noop sender, emails will not be delivered")
		return NewNoopSender(), nil
	default:
		return nil, fmt.Errorf("unknown delivery provider %q", cfg.Delivery.Provider)
	}
}
