// Package notify posts operator alerts to an ntfy-compatible endpoint.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a notification is suppressed.
var ErrRateLimited = errors.New("notification rate limited")

// Notifier sends text notifications, at most one per Interval.
type Notifier struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

// DefaultInterval is the minimum spacing between notifications.
const DefaultInterval = time.Minute

// New returns a Notifier for endpoint. An empty endpoint yields nil,
// and a nil Notifier drops every message.
func New(endpoint string, client *http.Client, interval time.Duration) *Notifier {
	if endpoint == "" {
		return nil
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Notifier{
		endpoint: endpoint,
		client:   client,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Notify sends message unless the limiter rejects it.
func (n *Notifier) Notify(ctx context.Context, message string) error {
	if n == nil {
		return nil
	}
	if !n.limiter.Allow() {
		return ErrRateLimited
	}
	return Send(ctx, n.client, n.endpoint, message)
}

// DisconnectStreak reports that the agent link has failed attempts times
// in a row.
func (n *Notifier) DisconnectStreak(ctx context.Context, attempts int) error {
	return n.Notify(ctx, fmt.Sprintf("pulse: agent unreachable after %d connection attempts", attempts))
}

// Send sends a message to the requested endpoint using HTTP POST.
func Send(ctx context.Context, client *http.Client, endpoint, message string) error {
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
