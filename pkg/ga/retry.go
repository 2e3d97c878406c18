package ga

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/ajitpratap0/tap-google-analytics/pkg/metrics"
)

// RetryPolicy defines retry behavior for API calls.
type RetryPolicy struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RandomizeFactor float64
}

// DefaultRetryPolicy returns the retry policy used for report queries:
// up to 10 attempts with exponential backoff and jitter.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:     10,
		InitialDelay:    1 * time.Second,
		MaxDelay:        2 * time.Minute,
		Multiplier:      2.0,
		RandomizeFactor: 0.25,
	}
}

// ExecuteWithCondition runs fn, retrying while shouldRetry reports the
// returned error as transient. Backoff sleeps respect ctx cancellation.
func (rp *RetryPolicy) ExecuteWithCondition(ctx context.Context, fn func() error, shouldRetry func(error) bool) error {
	var lastErr error

	for attempt := 0; attempt < rp.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !shouldRetry(err) {
			return err
		}

		if attempt == rp.MaxAttempts-1 {
			break
		}

		metrics.APIRetries.Inc()
		timer := time.NewTimer(rp.calculateDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", rp.MaxAttempts, lastErr)
}

// calculateDelay computes the backoff delay for a given attempt.
func (rp *RetryPolicy) calculateDelay(attempt int) time.Duration {
	delay := float64(rp.InitialDelay) * math.Pow(rp.Multiplier, float64(attempt))

	if delay > float64(rp.MaxDelay) {
		delay = float64(rp.MaxDelay)
	}

	if rp.RandomizeFactor > 0 {
		delta := delay * rp.RandomizeFactor
		delay = delay - delta + rand.Float64()*2*delta
	}

	return time.Duration(delay)
}
