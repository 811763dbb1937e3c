package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyPrefix = "payment:idem:"

// IdempotencyStore is the Redis-backed idempotency key cache. Retention is
// enforced by key TTL, so expired entries purge themselves without a sweep
// job on our side.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore creates a store with the given retention window.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

func (s *IdempotencyStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, idempotencyPrefix+key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	return val, true, nil
}

func (s *IdempotencyStore) Remember(ctx context.Context, key, checkoutRequestID string) (string, bool, error) {
	redisKey := idempotencyPrefix + key

	// SETNX decides the race between duplicate submissions atomically.
	stored, err := s.client.SetNX(ctx, redisKey, checkoutRequestID, s.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to store idempotency key: %w", err)
	}
	if stored {
		return checkoutRequestID, true, nil
	}

	existing, err := s.client.Get(ctx, redisKey).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to read winning idempotency key: %w", err)
	}
	return existing, false, nil
}
