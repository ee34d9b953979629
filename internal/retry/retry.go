package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 1 * time.Second
	defaultMaxDelay    = 30 * time.Second
)

// Policy controls how many attempts Do makes and how long it waits between them.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Retryable reports whether a failed attempt should be tried again.
	// A nil Retryable retries every error.
	Retryable func(error) bool
	// Sleep overrides how backoff waits are performed (useful for tests).
	Sleep func(context.Context, time.Duration) error
}

// DefaultPolicy returns three attempts with a one second base delay.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: defaultMaxAttempts,
		BaseDelay:   defaultBaseDelay,
		MaxDelay:    defaultMaxDelay,
	}
}

// Outcome is the definite result of a retried operation: either Value is valid
// (Err == nil) or Err describes the terminal failure.
type Outcome[T any] struct {
	Value    T
	Err      error
	Attempts int
}

// OK reports whether the operation produced a value.
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// Func is a single attempt. attempt is zero-based.
type Func[T any] func(ctx context.Context, attempt int) (T, error)

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// policy's attempts are exhausted. It never panics on a failed attempt and
// always returns an Outcome.
func Do[T any](ctx context.Context, policy Policy, logger *slog.Logger, op string, fn Func[T]) Outcome[T] {
	var out Outcome[T]
	if ctx == nil {
		ctx = context.Background()
	}
	attempts := policy.attempts()

	for attempt := 0; attempt < attempts; attempt++ {
		out.Attempts = attempt + 1
		value, err := fn(ctx, attempt)
		if err == nil {
			out.Value = value
			out.Err = nil
			if attempt > 0 && logger != nil {
				logger.Info("request succeeded after retry",
					slog.String("op", op),
					slog.Int("attempt", attempt+1),
					slog.Int("max_attempts", attempts),
				)
			}
			return out
		}
		out.Err = err

		if logger != nil {
			logger.Warn("request attempt failed",
				slog.String("op", op),
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", attempts),
				slog.Any("error", err),
			)
		}

		if ctx.Err() != nil {
			out.Err = fmt.Errorf("%s: aborted after %d attempts: %w", op, out.Attempts, err)
			return out
		}
		if !policy.retryable(err) {
			out.Err = fmt.Errorf("%s: %w", op, err)
			return out
		}
		if attempt == attempts-1 {
			break
		}

		delay := policy.Backoff(attempt, err)
		if logger != nil {
			logger.Debug("waiting before retry",
				slog.String("op", op),
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
			)
		}
		if sleepErr := policy.sleep(ctx, delay); sleepErr != nil {
			out.Err = fmt.Errorf("%s: aborted after %d attempts: %w", op, out.Attempts, sleepErr)
			return out
		}
	}

	out.Err = &ExhaustedError{Op: op, Attempts: out.Attempts, Last: out.Err}
	return out
}

// Backoff returns the wait before the attempt following attemptIndex:
// BaseDelay * 2^attemptIndex, capped at MaxDelay. A Retry-After carried by a
// StatusError takes precedence.
func (p Policy) Backoff(attemptIndex int, err error) time.Duration {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
		return p.capDelay(statusErr.RetryAfter)
	}
	base := p.BaseDelay
	if base <= 0 {
		return 0
	}
	if attemptIndex < 0 {
		attemptIndex = 0
	}
	delay := base
	for i := 0; i < attemptIndex; i++ {
		if limit := p.maxDelay(); limit > 0 && delay > limit/2 {
			return limit
		}
		delay *= 2
	}
	return p.capDelay(delay)
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) retryable(err error) bool {
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

func (p Policy) maxDelay() time.Duration {
	if p.MaxDelay > 0 {
		return p.MaxDelay
	}
	return defaultMaxDelay
}

func (p Policy) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if limit := p.maxDelay(); delay > limit {
		return limit
	}
	return delay
}

func (p Policy) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if p.Sleep != nil {
		return p.Sleep(ctx, delay)
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ExhaustedError is the terminal failure returned once every attempt failed.
type ExhaustedError struct {
	Op       string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: failed after %d attempts: %v", e.Op, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}
