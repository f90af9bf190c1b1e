// Package webhook delivers signed comparison events to caller-supplied URLs.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/pricecompare/models"
)

// EventCompareCompleted is sent when a comparison run finishes.
const EventCompareCompleted = "compare.completed"

// Signature and event headers set on every delivery.
const (
	HeaderSignature = "X-PriceCompare-Signature"
	HeaderEvent     = "X-PriceCompare-Event"
	HeaderEventID   = "X-PriceCompare-Delivery"
)

// Event is the payload sent to webhook endpoints.
type Event struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	RunID     string `json:"run_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// CompareCompleted builds the event for a finished run.
func CompareCompleted(resp *models.CompareResponse) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      EventCompareCompleted,
		RunID:     resp.RunID,
		Timestamp: time.Now().Unix(),
		Data:      resp,
	}
}

// Sender posts events. The zero value is not usable; call New.
type Sender struct {
	client *http.Client
	secret string
	delays []time.Duration
	sleep  func(time.Duration)
}

// New creates a Sender. Payloads are signed with HMAC-SHA256 when secret
// is non-empty. client may be nil.
func New(secret string, timeout time.Duration, client *http.Client) *Sender {
	if client == nil {
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Sender{
		client: client,
		secret: secret,
		delays: []time.Duration{0, time.Second, 5 * time.Second, 30 * time.Second},
		sleep:  time.Sleep,
	}
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends one event synchronously.
func (s *Sender) Deliver(ctx context.Context, url string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "PriceCompare-Webhook/1.0")
	req.Header.Set(HeaderEvent, event.Type)
	req.Header.Set(HeaderEventID, event.ID)
	if s.secret != "" {
		req.Header.Set(HeaderSignature, Sign(s.secret, body))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverWithRetry tries up to four times (immediately, then after 1s, 5s
// and 30s) and reports whether any attempt succeeded.
func (s *Sender) DeliverWithRetry(ctx context.Context, url string, event *Event) bool {
	for attempt, delay := range s.delays {
		if delay > 0 {
			s.sleep(delay)
		}
		if ctx.Err() != nil {
			return false
		}
		err := s.Deliver(ctx, url, event)
		if err == nil {
			slog.Info("webhook delivered", "url", url, "event", event.Type, "run_id", event.RunID, "attempt", attempt+1)
			return true
		}
		slog.Warn("webhook delivery failed", "url", url, "event", event.Type, "run_id", event.RunID,
			"attempt", attempt+1, "error", err)
	}
	slog.Error("webhook delivery exhausted all retries", "url", url, "event", event.Type, "run_id", event.RunID)
	return false
}

// DeliverAsync runs DeliverWithRetry in the background.
func (s *Sender) DeliverAsync(url string, event *Event) {
	go s.DeliverWithRetry(context.Background(), url, event)
}
