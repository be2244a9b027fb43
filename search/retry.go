package search

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/kochetovM/aimuzon/client"
	"github.com/rs/zerolog/log"
)

// RetryPolicy bounds how transient upstream failures are retried.
type RetryPolicy struct {
	MaxRetries  int
	InitialWait time.Duration
	MaxWait     time.Duration
}

// DefaultRetryPolicy is a short exponential backoff; quota exhaustion and
// rejected parameters are never retried, so this only smooths over upstream
// blips.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  2,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     5 * time.Second,
	}
}

// retryDo runs fn up to policy.MaxRetries+1 times, backing off exponentially
// with jitter between attempts. Only transient upstream failures are retried;
// any other error returns immediately.
func retryDo[T any](ctx context.Context, policy RetryPolicy, op string, fn func() (T, error)) (T, error) {
	var zero T

	wait := policy.InitialWait
	if wait <= 0 {
		wait = 500 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			// Half fixed, half jitter, so synchronized callers spread out.
			sleep := wait/2 + time.Duration(rand.Int63n(int64(wait/2)+1))
			log.Debug().
				Str("op", op).
				Int("attempt", attempt).
				Dur("wait", sleep).
				Msg("Retrying upstream call")

			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(sleep):
			}

			wait *= 2
			if policy.MaxWait > 0 && wait > policy.MaxWait {
				wait = policy.MaxWait
			}
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !client.IsTransient(err) {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", op, policy.MaxRetries+1, lastErr)
}
