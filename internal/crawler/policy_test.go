package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nao1215/catalogscan/internal/fetcher"
)

func TestRetryPolicy_Backoff(t *testing.T) {
	t.Parallel()

	policy := DefaultRetryPolicy()
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 0},
		{attempt: 1, want: 1 * time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 4 * time.Second},
		{attempt: 5, want: 16 * time.Second},
		{attempt: 6, want: 30 * time.Second},
		{attempt: 100, want: 30 * time.Second},
	}

	for _, tt := range tests {
		if got := policy.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryPolicy_BackoffUncapped(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{MaxAttempts: 5, Base: time.Millisecond}
	if got := p.Backoff(4); got != 8*time.Millisecond {
		t.Errorf("Backoff(4) = %v, want 8ms", got)
	}
	if got := p.Backoff(200); got <= 0 {
		t.Errorf("Backoff(200) = %v, must not overflow", got)
	}
	if got := (RetryPolicy{}).Backoff(3); got != 0 {
		t.Errorf("zero base Backoff = %v, want 0", got)
	}
}

func TestRetryPolicy_Attempts(t *testing.T) {
	t.Parallel()

	if got := (RetryPolicy{}).Attempts(); got != 1 {
		t.Errorf("zero policy Attempts() = %d, want 1", got)
	}
	if got := NoRetry().Attempts(); got != 1 {
		t.Errorf("NoRetry().Attempts() = %d, want 1", got)
	}
	if got := DefaultRetryPolicy().Attempts(); got != DefaultMaxAttempts {
		t.Errorf("DefaultRetryPolicy().Attempts() = %d, want %d", got, DefaultMaxAttempts)
	}
}

func TestTimerSleeper(t *testing.T) {
	t.Parallel()

	t.Run("waits for the duration", func(t *testing.T) {
		t.Parallel()

		start := time.Now()
		if err := (TimerSleeper{}).Sleep(context.Background(), 20*time.Millisecond); err != nil {
			t.Fatalf("Sleep() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
			t.Errorf("Sleep returned after %v", elapsed)
		}
	})

	t.Run("returns early on cancel", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		start := time.Now()
		err := (TimerSleeper{}).Sleep(ctx, time.Minute)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Sleep() error = %v, want context.Canceled", err)
		}
		if time.Since(start) > time.Second {
			t.Error("Sleep did not return early")
		}
	})

	t.Run("zero duration", func(t *testing.T) {
		t.Parallel()

		if err := (TimerSleeper{}).Sleep(context.Background(), 0); err != nil {
			t.Errorf("Sleep(0) error = %v", err)
		}
	})
}

func TestNoDelay(t *testing.T) {
	t.Parallel()

	if err := (NoDelay{}).Sleep(context.Background(), time.Hour); err != nil {
		t.Errorf("Sleep() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (NoDelay{}).Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep() on cancelled ctx = %v, want context.Canceled", err)
	}
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	if !retryable(context.Background(), errors.New("connection reset")) {
		t.Error("network error should be retryable")
	}
	if retryable(context.Background(), context.Canceled) {
		t.Error("cancellation should not be retryable")
	}
	if !retryable(context.Background(), &fetcher.FetchError{URL: "https://a.example", StatusCode: 503, Err: fetcher.ErrUnexpectedStatus}) {
		t.Error("a 503 should be retryable")
	}
	if retryable(context.Background(), &fetcher.FetchError{URL: "https://a.example", Err: context.Canceled}) {
		t.Error("a cancelled fetch should not be retryable")
	}
	if retryable(context.Background(), &fetcher.FetchError{URL: "https://a.example", StatusCode: 200, Err: fetcher.ErrBodyTooLarge}) {
		t.Error("an oversized body should not be retryable")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if retryable(ctx, errors.New("boom")) {
		t.Error("nothing is retryable once the context is done")
	}
}
