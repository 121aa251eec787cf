// Package notify pushes trade notifications to a Discord webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Discord posts messages to a webhook URL with a per-key cooldown so a
// flapping market cannot spam the channel. A nil or empty-URL notifier is
// a no-op, which keeps the engine wiring unconditional.
type Discord struct {
	webhookURL string
	cooldown   time.Duration
	http       *http.Client
	now        func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewDiscord creates a notifier. An empty webhookURL disables sending.
func NewDiscord(webhookURL string, cooldown time.Duration) *Discord {
	return &Discord{
		webhookURL: webhookURL,
		cooldown:   cooldown,
		http:       &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
		lastSent:   make(map[string]time.Time),
	}
}

// Notify sends a message, rate-limited per key. Failures are logged and
// swallowed; notification delivery never affects trading.
func (d *Discord) Notify(ctx context.Context, key, message string) {
	if d == nil || d.webhookURL == "" {
		return
	}

	if !d.allow(key) {
		slog.Debug("notification_suppressed", "key", key)
		return
	}

	if err := d.post(ctx, message); err != nil {
		slog.Warn("notification_failed", "key", key, "error", err)
	}
}

// allow checks and advances the cooldown window for a key.
func (d *Discord) allow(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, ok := d.lastSent[key]; ok && now.Sub(last) < d.cooldown {
		return false
	}
	d.lastSent[key] = now
	return true
}

func (d *Discord) post(ctx context.Context, message string) error {
	payload, err := json.Marshal(map[string]string{"content": message})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, raw)
	}
	return nil
}
