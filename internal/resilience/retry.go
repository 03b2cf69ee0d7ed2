package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryConfig governs repeated attempts within one logical call.
// MaxAttempts is the total attempt cap, including the first call.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
	}
}

// backoffDelay is InitialDelay doubled per prior attempt, capped at MaxDelay.
func (c RetryConfig) backoffDelay(attempt int) time.Duration {
	delay := c.InitialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if delay > c.MaxDelay {
		return c.MaxDelay
	}
	return delay
}

// retry runs op until it succeeds, fails permanently, or the attempt cap is
// reached. Permanent errors are surfaced immediately without further
// attempts.
func retry(ctx context.Context, name string, cfg RetryConfig, op func(context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := cfg.backoffDelay(attempt - 1)
			slog.Debug("retrying call", "dependency", name, "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("retries exhausted for %s: %w", name, lastErr)
}
