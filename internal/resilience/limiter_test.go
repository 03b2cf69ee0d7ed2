package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_BurstAcquiresImmediately(t *testing.T) {
	l := NewLimiter(1, 3, 50*time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(ctx))
	}
}

func TestLimiter_ExhaustedBucketTimesOut(t *testing.T) {
	// Refill far slower than the acquire timeout so the fourth call cannot
	// obtain a token in time.
	l := NewLimiter(0.01, 3, 20*time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(ctx))
	}

	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestLimiter_CallerCancellationPreferred(t *testing.T) {
	l := NewLimiter(0.01, 1, time.Second)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled, "caller cancellation must not be masked as rate limiting")
}

func TestLimiter_RefillAllowsLaterCalls(t *testing.T) {
	l := NewLimiter(100, 1, 200*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))
	// At 100/s the next token arrives within 10ms, inside the timeout.
	assert.NoError(t, l.Acquire(ctx))
}
