package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "idempotency:"

// RedisGuard claims keys with a single SET NX, so the check and the insert
// are one atomic operation. Redis key expiry replaces a sweep loop.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisGuard{client: client, ttl: ttl}
}

func (g *RedisGuard) TryClaim(ctx context.Context, messageID string) (bool, error) {
	claimed, err := g.client.SetNX(ctx, keyPrefix+messageID, time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", messageID, err)
	}
	return claimed, nil
}

func (g *RedisGuard) Release(ctx context.Context, messageID string) error {
	if err := g.client.Del(ctx, keyPrefix+messageID).Err(); err != nil {
		return fmt.Errorf("release %s: %w", messageID, err)
	}
	return nil
}
