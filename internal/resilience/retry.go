package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy bounds retries of a flaky call with exponential backoff, jitter and
// a per-attempt timeout.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps a single delay.
	MaxBackoff time.Duration

	// Multiplier scales the delay after each attempt.
	Multiplier float64

	// Jitter is the ± fraction of random spread applied to each delay.
	Jitter float64

	// AttemptTimeout bounds each attempt. Zero disables it.
	AttemptTimeout time.Duration

	// Retryable overrides IsRetryable.
	Retryable func(err error) bool

	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy returns the policy used for reasoning calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.25,
		AttemptTimeout: 30 * time.Second,
	}
}

// NewPolicy builds a policy from config values. Non-positive values keep
// the defaults.
func NewPolicy(maxAttempts, initialBackoffMs, maxBackoffMs, timeoutSecs int) Policy {
	p := DefaultPolicy()
	if maxAttempts > 0 {
		p.MaxAttempts = maxAttempts
	}
	if initialBackoffMs > 0 {
		p.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		p.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	if timeoutSecs > 0 {
		p.AttemptTimeout = time.Duration(timeoutSecs) * time.Second
	}
	return p
}

// Do runs fn under the policy.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal runs fn under the policy and returns the value of the first
// successful attempt. Cancellation of ctx stops retrying immediately; an
// attempt that only hit its own timeout is retried.
func DoVal[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	var (
		zero    T
		lastErr error
	)
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		val, err := runAttempt(ctx, p.AttemptTimeout, fn)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(err) {
			return zero, lastErr
		}
		if attempt == p.MaxAttempts-1 {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err)
		}

		timer := time.NewTimer(p.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

// runAttempt marks an error caused only by the attempt deadline as transient.
func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	val, err := fn(actx)
	if err != nil && errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = NewTransientError(err, 0)
	}
	return val, err
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = d.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	if p.Multiplier <= 0 {
		p.Multiplier = d.Multiplier
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return p
}

// Backoff returns the delay after the given zero-based attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.withDefaults()
	delay := float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(attempt))
	if delay > float64(p.MaxBackoff) {
		delay = float64(p.MaxBackoff)
	}
	if p.Jitter > 0 {
		delay += (rand.Float64()*2 - 1) * delay * p.Jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// RetryLogger returns an OnRetry callback that logs each retry.
func RetryLogger(operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("resilience: retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
