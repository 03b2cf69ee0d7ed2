// Package resilience wraps outbound calls to unreliable dependencies with a
// rate limiter, a circuit breaker and transient-only retry. The three
// compose in that order: the limiter gates entry, the breaker decides whether
// an attempt may be made, and retry governs repeated attempts within one
// logical call.
package resilience

import (
	"context"

	"github.com/nikhilbhutani/docpipeline/internal/config"
)

// Envelope holds the resilience state for one named external dependency.
// State is scoped per dependency, never per message, so failures against the
// same backend accumulate across documents.
type Envelope struct {
	name    string
	limiter *Limiter
	breaker *Breaker
	retry   RetryConfig
}

func NewEnvelope(name string, cfg config.ResilienceConfig) *Envelope {
	return &Envelope{
		name:    name,
		limiter: NewLimiter(cfg.RateLimit, cfg.RateBurst, cfg.RateAcquireTimeout),
		breaker: NewBreaker(BreakerConfig{
			WindowSize:  cfg.BreakerWindowSize,
			MinSamples:  cfg.BreakerMinSamples,
			Threshold:   cfg.BreakerThreshold,
			Cooldown:    cfg.BreakerCooldown,
			HalfOpenMax: cfg.BreakerHalfOpenMax,
		}),
		retry: RetryConfig{
			MaxAttempts:  cfg.RetryMaxAttempts,
			InitialDelay: cfg.RetryInitialDelay,
			MaxDelay:     cfg.RetryMaxDelay,
		},
	}
}

func (e *Envelope) Name() string { return e.name }

// Execute runs op through the envelope. Each retry attempt consults the
// breaker individually, so a circuit opening mid-call cuts the remaining
// attempts short. Permanent errors are never retried; they count as
// successful probes of the dependency, since a 4xx-equivalent answer means
// the backend is reachable and responding.
func (e *Envelope) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := e.limiter.Acquire(ctx); err != nil {
		return err
	}

	return retry(ctx, e.name, e.retry, func(ctx context.Context) error {
		if err := e.breaker.Allow(); err != nil {
			// Fail fast; the breaker error is not retryable.
			return Permanent(err)
		}
		err := op(ctx)
		if err == nil || IsPermanent(err) {
			e.breaker.Record(false)
			return err
		}
		e.breaker.Record(true)
		return err
	})
}

// Do is Execute for calls that produce a value.
func Do[T any](ctx context.Context, e *Envelope, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := e.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
