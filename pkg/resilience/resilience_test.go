// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/jllopis/scribe/pkg/errors"
)

func fastBackoff(attempts int) Backoff {
	b := DefaultBackoff()
	b.Attempts = attempts
	b.Initial = time.Millisecond
	b.Jitter = 0
	return b
}

func TestRetryEventuallySucceeds(t *testing.T) {
	attempts := 0
	var retries []int
	b := fastBackoff(3)
	b.OnRetry = func(attempt int, _ error, _ time.Duration) { retries = append(retries, attempt) }

	got, err := Retry(context.Background(), b, func(context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", stderrors.New("connection reset")
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("expected ok, got %q, %v", got, err)
	}
	if attempts != 3 || len(retries) != 2 {
		t.Fatalf("expected 3 attempts and 2 retries, got %d and %v", attempts, retries)
	}
}

func TestRetryExhausted(t *testing.T) {
	attempts := 0
	last := stderrors.New("still down")
	err := fastBackoff(2).Do(context.Background(), func(context.Context) error {
		attempts++
		return last
	})
	if err != last {
		t.Fatalf("expected last error, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "unrecoverable scribe error", err: errors.New(errors.CodeInternal, "bad request", nil)},
		{name: "context canceled", err: context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			_ = fastBackoff(5).Do(context.Background(), func(context.Context) error {
				attempts++
				return tt.err
			})
			if attempts != 1 {
				t.Fatalf("expected 1 attempt, got %d", attempts)
			}
		})
	}
}

func TestRetryRecoverableScribeError(t *testing.T) {
	attempts := 0
	err := fastBackoff(3).Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts == 1 {
			return errors.New(errors.CodeUnavailable, "busy", nil)
		}
		return nil
	})
	if err != nil || attempts != 2 {
		t.Fatalf("expected success on second attempt, got %v after %d", err, attempts)
	}
}

func TestRetryContextCanceledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := fastBackoff(3)
	b.Initial = time.Hour
	b.OnRetry = func(int, error, time.Duration) { cancel() }

	err := b.Do(ctx, func(context.Context) error { return stderrors.New("transient") })
	if errors.CodeOf(err) != errors.CodeCanceled {
		t.Fatalf("expected CANCELED, got %v", err)
	}
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: 300 * time.Millisecond, Multiplier: 2}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}
	for i, w := range want {
		if got := b.delay(i + 1); got != w {
			t.Fatalf("retry %d: expected %v, got %v", i+1, w, got)
		}
	}
}

func TestBreakerOpensAndRecovers(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{Name: "qdrant", FailureThreshold: 2, Cooldown: time.Minute})
	b.now = func() time.Time { return now }
	fail := func(context.Context) error { return stderrors.New("dial tcp: refused") }
	ok := func(context.Context) error { return nil }

	_ = b.Execute(context.Background(), fail)
	if b.State() != BreakerClosed {
		t.Fatal("breaker opened before threshold")
	}
	_ = b.Execute(context.Background(), fail)
	if b.State() != BreakerOpen {
		t.Fatal("expected breaker to open")
	}

	called := false
	err := b.Execute(context.Background(), func(context.Context) error { called = true; return nil })
	if called {
		t.Fatal("open breaker let the call through")
	}
	se := errors.AsScribeError(err)
	if se.Code != errors.CodeUnavailable || !se.Recoverable {
		t.Fatalf("expected recoverable UNAVAILABLE, got %v", err)
	}

	now = now.Add(2 * time.Minute)
	if err := b.Execute(context.Background(), ok); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if b.State() != BreakerClosed {
		t.Fatalf("expected closed after successful probe, got %s", b.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, Cooldown: time.Second})
	b.now = func() time.Time { return now }
	fail := func(context.Context) error { return stderrors.New("boom") }

	_ = b.Execute(context.Background(), fail)
	now = now.Add(2 * time.Second)
	_ = b.Execute(context.Background(), fail)
	if b.State() != BreakerOpen {
		t.Fatalf("expected open after failed probe, got %s", b.State())
	}
	b.Reset()
	if b.State() != BreakerClosed {
		t.Fatal("reset did not close the breaker")
	}
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1})
	_ = b.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	if b.State() != BreakerClosed {
		t.Fatal("cancellation counted as failure")
	}
}
