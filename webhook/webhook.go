// Package webhook posts task lifecycle events to caller-supplied
// callback URLs. Payloads are signed with HMAC-SHA256 so receivers
// can verify the origin.
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
)

// Event types carried in the "type" field.
const (
	EventSearchCompleted = "search.completed"
	EventSearchFailed    = "search.failed"
)

// Event is the callback payload.
type Event struct {
	Type      string `json:"type"`
	TaskID    string `json:"task_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// Notifier delivers events to callback endpoints. Safe for
// concurrent use.
type Notifier struct {
	log      *slog.Logger
	secret   []byte
	client   *http.Client
	schedule []time.Duration
}

// NewNotifier builds a Notifier. An empty secret disables signing.
func NewNotifier(log *slog.Logger, secret string) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	var key []byte
	if secret != "" {
		key = []byte(secret)
	}
	return &Notifier{
		log:      log,
		secret:   key,
		client:   &http.Client{Timeout: 10 * time.Second},
		schedule: []time.Duration{0, time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// Notify posts the event in the background, retrying failed
// deliveries at increasing intervals. It never blocks the caller.
func (n *Notifier) Notify(url string, event Event) {
	if url == "" {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	go n.deliverWithRetry(url, event)
}

func (n *Notifier) deliverWithRetry(url string, event Event) {
	attrs := []any{"url", url, "event", event.Type, "task_id", event.TaskID}
	for attempt, delay := range n.schedule {
		if delay > 0 {
			time.Sleep(delay)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := n.Post(ctx, url, event)
		cancel()
		if err == nil {
			n.log.Info("callback delivered", append(attrs, "attempt", attempt+1)...)
			return
		}
		n.log.Warn("callback delivery failed", append(attrs, "attempt", attempt+1, "error", err)...)
	}
	n.log.Error("callback abandoned after retries", attrs...)
}

// Post makes one synchronous delivery attempt.
func (n *Notifier) Post(ctx context.Context, url string, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "BossCrawl-Webhook/1.0")
	if n.secret != nil {
		req.Header.Set("X-BossCrawl-Signature", "sha256="+Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Sign computes the hex HMAC-SHA256 of body under key. Exposed so
// receivers in tests can verify signatures the same way.
func Sign(key, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
