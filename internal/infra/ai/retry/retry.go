package retry

import (
	"context"
	"log"
	"time"

	"github.com/bryanwahyu/pawspeak/internal/domain/interpretation"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxDelay    = 4 * time.Second
)

// Policy bounds the retries of transient upstream failures.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Delay returns the backoff before attempt n+1, for n >= 1.
func (p Policy) Delay(n int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Client wraps a ModelClient and retries only upstream_unavailable failures.
type Client struct {
	next   interpretation.ModelClient
	policy Policy
	// OnRetry is called before each backoff, e.g. for metrics.
	OnRetry func(attempt int, err error)
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewClient(next interpretation.ModelClient, policy Policy) *Client {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultMaxAttempts
	}
	if policy.BaseDelay < 0 {
		policy.BaseDelay = 0
	}
	return &Client{next: next, policy: policy, sleep: sleepCtx}
}

func (c *Client) Invoke(ctx context.Context, img interpretation.Image, p interpretation.Prompt) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		text, err := c.next.Invoke(ctx, img, p)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !interpretation.Retryable(err) || ctx.Err() != nil || attempt == c.policy.MaxAttempts {
			break
		}

		delay := c.policy.Delay(attempt)
		log.Printf("model call failed attempt=%d/%d kind=%s retry_in=%s err=%v",
			attempt, c.policy.MaxAttempts, interpretation.KindOf(err), delay, err)
		if c.OnRetry != nil {
			c.OnRetry(attempt, err)
		}
		if err := c.sleep(ctx, delay); err != nil {
			return "", interpretation.NewError(interpretation.KindUpstreamUnavailable, "cancelled during backoff", err)
		}
	}
	return "", lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
