// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

// Package resilience wraps calls to remote collaborators (embedding models,
// vector stores) with retry and circuit breaking.
package resilience

import (
	"context"
	stderrors "errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/jllopis/scribe/pkg/errors"
)

// Backoff controls retries with exponential delay.
type Backoff struct {
	// Attempts is the total number of calls, including the first (>= 1).
	Attempts int
	// Initial is the delay before the first retry.
	Initial time.Duration
	// Max caps the delay.
	Max time.Duration
	// Multiplier grows the delay between retries (default 2).
	Multiplier float64
	// Jitter spreads delays by ±Jitter of their value, between 0 and 1.
	Jitter float64
	// Retryable decides whether err is worth another attempt.
	// Nil means Retryable.
	Retryable func(error) bool
	// OnRetry is called before sleeping for attempt (1-based retry number).
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultBackoff retries three times in total, starting at 100ms.
func DefaultBackoff() Backoff {
	return Backoff{
		Attempts:   3,
		Initial:    100 * time.Millisecond,
		Max:        5 * time.Second,
		Multiplier: 2,
		Jitter:     0.1,
	}
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// are exhausted or ctx is done. The last error from fn is returned.
func (b Backoff) Do(ctx context.Context, fn func(context.Context) error) error {
	_, err := Retry(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Retry is Do for calls that produce a value.
func Retry[T any](ctx context.Context, b Backoff, fn func(context.Context) (T, error)) (T, error) {
	attempts := max(b.Attempts, 1)
	retryable := b.Retryable
	if retryable == nil {
		retryable = Retryable
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := b.delay(attempt)
			if b.OnRetry != nil {
				b.OnRetry(attempt, lastErr, delay)
			}
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, errors.New(errors.CodeCanceled, "canceled while waiting to retry", ctx.Err()).
					WithContext("attempt", attempt).
					WithContext("last_error", lastErr.Error())
			case <-timer.C:
			}
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !retryable(err) {
			return zero, err
		}
	}
	return zero, lastErr
}

func (b Backoff) delay(attempt int) time.Duration {
	mult := b.Multiplier
	if mult <= 0 {
		mult = 2
	}
	d := float64(b.Initial) * math.Pow(mult, float64(attempt-1))
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		d += d * b.Jitter * (2*rand.Float64() - 1)
	}
	return time.Duration(max(d, 0))
}

// Retryable is the default policy: context errors are final, scribe errors
// follow their Recoverable flag and anything else is retried.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *errors.ScribeError
	if stderrors.As(err, &se) {
		return se.Recoverable
	}
	return true
}
