package retry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func TestDoExhaustsExactlyMaxAttempts(t *testing.T) {
	var delays []time.Duration
	calls := 0
	policy := Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Retryable:   RetryServerErrors,
		Sleep:       recordingSleep(&delays),
	}

	out := Do(context.Background(), policy, nil, "generate", func(ctx context.Context, attempt int) (string, error) {
		if attempt != calls {
			t.Fatalf("attempt index %d, want %d", attempt, calls)
		}
		calls++
		return "", &StatusError{StatusCode: http.StatusServiceUnavailable}
	})

	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if out.OK() {
		t.Fatal("expected terminal failure")
	}
	if out.Attempts != 3 {
		t.Fatalf("expected Attempts=3, got %d", out.Attempts)
	}
	var exhausted *ExhaustedError
	if !errors.As(out.Err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %T: %v", out.Err, out.Err)
	}
	var statusErr *StatusError
	if !errors.As(out.Err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected wrapped 503, got %v", out.Err)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("expected %d waits, got %v", len(want), delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("wait %d: got %v want %v", i, delays[i], want[i])
		}
	}
}

func TestDoReturnsValueAfterRetry(t *testing.T) {
	var delays []time.Duration
	policy := Policy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, Sleep: recordingSleep(&delays)}

	out := Do(context.Background(), policy, nil, "chat", func(ctx context.Context, attempt int) (int, error) {
		if attempt == 0 {
			return 0, errors.New("boom")
		}
		return 42, nil
	})
	if !out.OK() {
		t.Fatalf("unexpected failure: %v", out.Err)
	}
	if out.Value != 42 || out.Attempts != 2 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if len(delays) != 1 || delays[0] != 10*time.Millisecond {
		t.Fatalf("unexpected delays %v", delays)
	}
}

func TestDoStopsOnNonRetryableStatus(t *testing.T) {
	calls := 0
	policy := Policy{MaxAttempts: 5, Retryable: RetryServerErrors, Sleep: func(context.Context, time.Duration) error { return nil }}

	out := Do(context.Background(), policy, nil, "generate", func(ctx context.Context, attempt int) (string, error) {
		calls++
		return "", &StatusError{StatusCode: http.StatusNotFound, Body: "model not found"}
	})
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
	if out.OK() {
		t.Fatal("expected failure")
	}
	var exhausted *ExhaustedError
	if errors.As(out.Err, &exhausted) {
		t.Fatal("non-retryable failure should not report exhaustion")
	}
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	policy := Policy{MaxAttempts: 5, BaseDelay: time.Hour}

	out := Do(ctx, policy, nil, "chat", func(ctx context.Context, attempt int) (string, error) {
		calls++
		cancel()
		return "", errors.New("transport down")
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if out.OK() {
		t.Fatal("expected cancellation to end in failure")
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	policy := Policy{BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	cases := map[int]time.Duration{
		0: time.Second,
		1: 2 * time.Second,
		2: 4 * time.Second,
		3: 5 * time.Second,
		9: 5 * time.Second,
	}
	for idx, want := range cases {
		if got := policy.Backoff(idx, errors.New("x")); got != want {
			t.Fatalf("Backoff(%d) = %v, want %v", idx, got, want)
		}
	}
	withHeader := &StatusError{StatusCode: http.StatusServiceUnavailable, RetryAfter: 3 * time.Second}
	if got := policy.Backoff(0, withHeader); got != 3*time.Second {
		t.Fatalf("expected Retry-After to win, got %v", got)
	}
}

func TestRetryServerErrors(t *testing.T) {
	for _, code := range []int{500, 502, 503, 504} {
		if !RetryServerErrors(&StatusError{StatusCode: code}) {
			t.Fatalf("expected %d to be retryable", code)
		}
	}
	for _, code := range []int{400, 401, 404, 429, 501} {
		if RetryServerErrors(&StatusError{StatusCode: code}) {
			t.Fatalf("expected %d to be terminal", code)
		}
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()
	_, err := http.Get(url)
	if err == nil {
		t.Fatal("expected connection error")
	}
	if !RetryServerErrors(err) {
		t.Fatalf("expected transport error to be retryable: %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := ParseRetryAfter("7"); !ok || d != 7*time.Second {
		t.Fatalf("unexpected parse result %v %v", d, ok)
	}
	if _, ok := ParseRetryAfter("soon"); ok {
		t.Fatal("expected invalid value to be rejected")
	}
	if _, ok := ParseRetryAfter(""); ok {
		t.Fatal("expected empty value to be rejected")
	}
}
