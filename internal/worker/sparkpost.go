package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stillpoint/drip/internal/pkg/httpretry"
	"github.com/stillpoint/drip/internal/pkg/logger"
)

// SparkPostSender sends emails via the SparkPost Transmissions API.
type SparkPostSender struct {
	apiKey  string
	baseURL string
	client  httpretry.HTTPDoer
}

// NewSparkPostSender creates a sender targeting the SparkPost v1 API.
// Requests are retried on transient provider errors; the processor treats
// a failure after retries like any other delivery failure.
func NewSparkPostSender(apiKey, baseURL string, timeout time.Duration) *SparkPostSender {
	if baseURL == "" {
		baseURL = "https://api.sparkpost.com/api/v1"
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &SparkPostSender{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  httpretry.NewRetryClient(&http.Client{Timeout: timeout}, 2),
	}
}

// Send delivers a single email through SparkPost.
func (s *SparkPostSender) Send(ctx context.Context, msg *EmailMessage) (*SendResult, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("SparkPost API key not configured")
	}

	headerTo := map[string]string{}
	for name, value := range msg.Headers {
		headerTo[name] = value
	}

	transmission := map[string]interface{}{
		"recipients": []map[string]interface{}{
			{"address": map[string]string{"email": msg.Email}},
		},
		"content": map[string]interface{}{
			"from":    map[string]string{"email": msg.FromEmail, "name": msg.FromName},
			"subject": msg.Subject,
			"html":    msg.HTMLContent,
			"text":    msg.TextContent,
			"headers": headerTo,
		},
		"metadata": map[string]interface{}{
			"enrollment_id": msg.EnrollmentID,
			"subscriber_id": msg.SubscriberID,
		},
	}
	if msg.ReplyTo != "" {
		transmission["content"].(map[string]interface{})["reply_to"] = msg.ReplyTo
	}

	jsonData, err := json.Marshal(transmission)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/transmissions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &SendResult{Success: false, Error: err, Provider: "sparkpost"}, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		return &SendResult{
			Success:  false,
			Error:    fmt.Errorf("SparkPost error %d: %s", resp.StatusCode, string(body)),
			Provider: "sparkpost",
		}, nil
	}

	var result struct {
		Results struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	json.Unmarshal(body, &result)

	logger.Info("sparkpost: sent", "email", msg.Email, "transmission_id", result.Results.ID)

	return &SendResult{
		Success:   true,
		MessageID: result.Results.ID,
		Provider:  "sparkpost",
		SentAt:    time.Now(),
	}, nil
}
