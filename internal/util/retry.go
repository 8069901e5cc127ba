package util

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy holds configuration for retry with exponential backoff.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first
	// (1 = no retries).
	MaxAttempts int
	// BaseDelay is the initial delay between attempts.
	BaseDelay time.Duration
	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration
	// Multiplier is the factor by which the delay grows (default 2.0).
	Multiplier float64
	// Jitter adds randomness to delays to avoid synchronized retries (0.0 - 1.0).
	Jitter float64
	// RetryIf decides whether an error is worth retrying. Nil retries
	// everything except errors marked non-retryable.
	RetryIf func(error) bool
}

// DefaultRetryPolicy returns the policy used when none is supplied.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   300 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.1,
	}
}

// ErrRetriesExhausted is joined onto the last error when all attempts fail.
var ErrRetriesExhausted = errors.New("retries exhausted")

func (p *RetryPolicy) shouldRetry(err error) bool {
	if p.RetryIf != nil {
		return p.RetryIf(err)
	}
	return !IsNonRetryable(err)
}

// Retry runs fn until it succeeds, the policy gives up, or ctx is cancelled.
func Retry(ctx context.Context, policy *RetryPolicy, fn func() error) error {
	_, err := RetryWithValue(ctx, policy, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithValue runs fn until it succeeds, the policy gives up, or ctx is
// cancelled, returning fn's value on success.
func RetryWithValue[T any](ctx context.Context, policy *RetryPolicy, fn func() (T, error)) (T, error) {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}

	var zero T
	for attempt := 1; ; attempt++ {
		val, err := fn()
		if err == nil {
			return val, nil
		}

		if !policy.shouldRetry(err) {
			return zero, err
		}
		if policy.MaxAttempts > 0 && attempt >= policy.MaxAttempts {
			return zero, errors.Join(ErrRetriesExhausted, err)
		}

		select {
		case <-ctx.Done():
			return zero, errors.Join(ctx.Err(), err)
		case <-time.After(policy.delay(attempt)):
		}
	}
}

// delay computes the backoff for a given attempt number (1-based).
func (p *RetryPolicy) delay(attempt int) time.Duration {
	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	d := float64(p.BaseDelay) * math.Pow(multiplier, float64(attempt-1))
	if p.Jitter > 0 {
		spread := d * p.Jitter
		d = d - spread + rand.Float64()*2*spread
	}
	if p.MaxDelay > 0 && time.Duration(d) > p.MaxDelay {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// NonRetryableError wraps an error and marks it as not worth retrying.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return e.Err.Error()
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// MarkNonRetryable marks an error as non-retryable.
func MarkNonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable reports whether an error was marked non-retryable.
func IsNonRetryable(err error) bool {
	var nr *NonRetryableError
	return errors.As(err, &nr)
}
