package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSparkPostSenderSuccess(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transmissions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "key-123" {
			t.Errorf("missing API key header")
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"results":{"id":"tx-42"}}`))
	}))
	defer server.Close()

	sender := NewSparkPostSender("key-123", server.URL, 5*time.Second)
	result, err := sender.Send(context.Background(), &EmailMessage{
		EnrollmentID: "enr-1",
		Email:        "a@x.com",
		FromName:     "Stillpoint",
		FromEmail:    "hello@stillpoint.example",
		Subject:      "Welcome",
		HTMLContent:  "<p>Hi</p>",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.MessageID != "tx-42" {
		t.Errorf("MessageID = %q, want tx-42", result.MessageID)
	}
	if result.Provider != "sparkpost" {
		t.Errorf("Provider = %q", result.Provider)
	}

	content := got["content"].(map[string]interface{})
	if content["subject"] != "Welcome" {
		t.Errorf("subject not forwarded: %v", content["subject"])
	}
}

func TestSparkPostSenderProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"message":"invalid recipient"}]}`))
	}))
	defer server.Close()

	sender := NewSparkPostSender("key-123", server.URL, 5*time.Second)
	result, err := sender.Send(context.Background(), &EmailMessage{Email: "bad@x.com"})
	if err != nil {
		t.Fatalf("provider errors must be typed, not returned: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure result")
	}
	if result.Error == nil {
		t.Fatal("expected result.Error to carry the provider error")
	}
}

func TestSparkPostSenderNoKey(t *testing.T) {
	sender := NewSparkPostSender("", "", time.Second)
	if _, err := sender.Send(context.Background(), &EmailMessage{Email: "a@x.com"}); err == nil {
		t.Fatal("expected configuration error with no API key")
	}
}

func TestNoopSender(t *testing.T) {
	sender := NewNoopSender()
	result, err := sender.Send(context.Background(), &EmailMessage{Email: "a@x.com"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !result.Success || result.MessageID == "" {
		t.Errorf("unexpected result %+v", result)
	}
}
