package retry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bryanwahyu/pawspeak/internal/domain/interpretation"
)

// scriptedClient returns errs[i] on call i, then text once errs is exhausted.
type scriptedClient struct {
	mu    sync.Mutex
	errs  []error
	text  string
	calls int
}

func (s *scriptedClient) Invoke(ctx context.Context, img interpretation.Image, p interpretation.Prompt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) {
		return "", s.errs[i]
	}
	return s.text, nil
}

func unavailable() error {
	return interpretation.NewError(interpretation.KindUpstreamUnavailable, "connection reset", nil)
}

func newTestClient(next interpretation.ModelClient, attempts int) (*Client, *[]time.Duration) {
	c := NewClient(next, Policy{MaxAttempts: attempts, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second})
	var slept []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return c, &slept
}

func TestClient_Invoke_SucceedsOnThirdAttempt(t *testing.T) {
	t.Parallel()

	inner := &scriptedClient{errs: []error{unavailable(), unavailable()}, text: "ok"}
	c, slept := newTestClient(inner, 3)
	retries := 0
	c.OnRetry = func(int, error) { retries++ }

	text, err := c.Invoke(context.Background(), interpretation.Image{}, interpretation.Prompt{})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if text != "ok" {
		t.Errorf("expected 'ok', got %q", text)
	}
	if inner.calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", inner.calls)
	}
	if retries != 2 {
		t.Errorf("expected OnRetry twice, got %d", retries)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(*slept) != len(want) || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
		t.Errorf("expected exponential backoff %v, got %v", want, *slept)
	}
}

func TestClient_Invoke_GivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	inner := &scriptedClient{errs: []error{unavailable(), unavailable(), unavailable(), unavailable()}}
	c, _ := newTestClient(inner, 3)

	_, err := c.Invoke(context.Background(), interpretation.Image{}, interpretation.Prompt{})
	if !errors.Is(err, interpretation.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", inner.calls)
	}
}

func TestClient_Invoke_NonRetryableKindsStopImmediately(t *testing.T) {
	t.Parallel()

	for _, kind := range []interpretation.Kind{
		interpretation.KindUpstreamAuthError,
		interpretation.KindInvalidInput,
		interpretation.KindUpstreamTimeout,
		interpretation.KindUpstreamMalformedResponse,
	} {
		inner := &scriptedClient{errs: []error{interpretation.NewError(kind, "", nil)}, text: "unreachable"}
		c, slept := newTestClient(inner, 3)

		_, err := c.Invoke(context.Background(), interpretation.Image{}, interpretation.Prompt{})
		if interpretation.KindOf(err) != kind {
			t.Errorf("%s: expected error to propagate unchanged, got %v", kind, err)
		}
		if inner.calls != 1 {
			t.Errorf("%s: expected exactly one attempt, got %d", kind, inner.calls)
		}
		if len(*slept) != 0 {
			t.Errorf("%s: expected no backoff, got %v", kind, *slept)
		}
	}
}

func TestClient_Invoke_StopsWhenContextCancelled(t *testing.T) {
	t.Parallel()

	inner := &scriptedClient{errs: []error{unavailable(), unavailable()}, text: "ok"}
	c, _ := newTestClient(inner, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Invoke(ctx, interpretation.Image{}, interpretation.Prompt{})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if inner.calls != 1 {
		t.Errorf("expected no retry after cancellation, got %d attempts", inner.calls)
	}
}

func TestPolicy_Delay_Capped(t *testing.T) {
	t.Parallel()

	p := Policy{BaseDelay: 500 * time.Millisecond, MaxDelay: 2 * time.Second}
	cases := map[int]time.Duration{
		1: 500 * time.Millisecond,
		2: time.Second,
		3: 2 * time.Second,
		4: 2 * time.Second,
	}
	for n, want := range cases {
		if got := p.Delay(n); got != want {
			t.Errorf("Delay(%d) = %s, want %s", n, got, want)
		}
	}
}

func TestSleepCtx_ReturnsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := sleepCtx(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("sleepCtx did not return promptly")
	}
}
