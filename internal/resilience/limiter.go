package resilience

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter caps calls per time window. Excess calls block up to the acquire
// timeout, then fail with ErrRateLimited.
type Limiter struct {
	bucket         *rate.Limiter
	acquireTimeout time.Duration
}

func NewLimiter(callsPerSecond float64, burst int, acquireTimeout time.Duration) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	if acquireTimeout <= 0 {
		acquireTimeout = 10 * time.Second
	}
	return &Limiter{
		bucket:         rate.NewLimiter(rate.Limit(callsPerSecond), burst),
		acquireTimeout: acquireTimeout,
	}
}

// Acquire blocks until a token is available or the acquire timeout expires.
func (l *Limiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.acquireTimeout)
	defer cancel()

	if err := l.bucket.Wait(waitCtx); err != nil {
		// Distinguish our timeout from the caller's cancellation.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrRateLimited
	}
	return nil
}
