package fetch

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryableError wraps an error to indicate it should trigger a retry.
// Wrap transient failures (network timeouts, 5xx responses, rate limits)
// with this type so that [Retry] knows to attempt the operation again.
type RetryableError struct {
	Err error
	// After is a server-requested minimum wait (Retry-After). Zero means
	// use the policy's backoff delay.
	After time.Duration
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps an error as a RetryableError.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// RetryPolicy controls retry behavior for transient fetch failures.
// Every probe in a resolution run shares one policy, so backoff behavior
// is uniform across detectors.
type RetryPolicy struct {
	Attempts  int           // maximum attempts, including the first (min 1)
	BaseDelay time.Duration // delay before the second attempt, doubles after
	Jitter    float64       // fraction of the delay randomized, e.g. 0.2 for ±20%
}

// DefaultRetryPolicy matches the defaults used across registry clients:
// 3 attempts with a 1 second initial delay, doubling each retry, ±20% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: time.Second, Jitter: 0.2}
}

// Retry executes fn until it succeeds or the policy is exhausted.
// Only errors wrapped with [RetryableError] are retried; other errors are
// returned immediately. A server-provided Retry-After overrides the
// computed backoff delay when it is longer. Returns ctx.Err() if the
// context is cancelled while waiting.
func (p RetryPolicy) Retry(ctx context.Context, fn func() error) error {
	attempts := max(p.Attempts, 1)
	delay := p.BaseDelay
	var lastErr error

	for i := 0; i < attempts; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var re *RetryableError
		if !errors.As(err, &re) {
			return err
		}

		if i < attempts-1 {
			wait := p.jittered(delay)
			if re.After > wait {
				wait = re.After
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				delay *= 2
			}
		}
	}
	return lastErr
}

func (p RetryPolicy) jittered(d time.Duration) time.Duration {
	if p.Jitter <= 0 || d <= 0 {
		return d
	}
	spread := float64(d) * p.Jitter
	return d + time.Duration((rand.Float64()*2-1)*spread)
}
