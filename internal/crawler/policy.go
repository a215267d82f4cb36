package crawler

import (
	"context"
	"errors"
	"time"

	"github.com/nao1215/catalogscan/internal/fetcher"
)

// Sleeper pauses the crawl between pages and between retry attempts.
// Sleep returns early with the context's error when ctx is cancelled.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to the Sleeper interface.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls fn(ctx, d).
func (fn SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return fn(ctx, d)
}

// TimerSleeper waits on the wall clock.
type TimerSleeper struct{}

// Sleep waits for d or until ctx is done.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NoDelay never waits. It still reports cancellation.
type NoDelay struct{}

// Sleep returns ctx.Err() immediately.
func (NoDelay) Sleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// Retry defaults.
const (
	DefaultMaxAttempts = 3
	DefaultRetryBase   = 1 * time.Second
	DefaultRetryMax    = 30 * time.Second
)

// RetryPolicy controls how often a failed page fetch is attempted.
// The wait after failed attempt n is Base*2^(n-1), capped at Max.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts per page. Values below
	// one mean a single attempt.
	MaxAttempts int

	// Base is the wait after the first failed attempt.
	Base time.Duration

	// Max caps the wait. Zero means uncapped.
	Max time.Duration
}

// DefaultRetryPolicy returns the default policy: three attempts, 1s base, 30s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Base:        DefaultRetryBase,
		Max:         DefaultRetryMax,
	}
}

// NoRetry is a policy with a single attempt per page.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// Attempts returns the effective number of attempts, at least one.
func (p RetryPolicy) Attempts() int {
	return max(1, p.MaxAttempts)
}

// Backoff returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 || p.Base <= 0 {
		return 0
	}

	d := p.Base
	for i := 1; i < attempt; i++ {
		if p.Max > 0 && d >= p.Max {
			break
		}
		if d >= time.Duration(1<<62) {
			break
		}
		d *= 2
	}
	if p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}

// retryable reports whether another attempt makes sense after err.
// Fetch errors that cannot change on a repeat, such as an oversized
// body, end the source at once.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var fe *fetcher.FetchError
	if errors.As(err, &fe) {
		return !fe.Permanent()
	}
	return !errors.Is(err, context.Canceled)
}
