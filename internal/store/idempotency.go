package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"stock-reservation-engine/internal/cache"
)

// MemoryIdempotencyStore deduplicates request keys with an in-process
// TTL cache. The default backend for single-instance deployments.
type MemoryIdempotencyStore struct {
	cache *cache.TTLCache
}

func NewMemoryIdempotencyStore(ttl, cleanupInterval time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		cache: cache.NewTTLCache(ttl, cleanupInterval),
	}
}

func (s *MemoryIdempotencyStore) SetIdempotency(ctx context.Context, key string) (bool, error) {
	return s.cache.SetIfAbsent(key, struct{}{}), nil
}

func (s *MemoryIdempotencyStore) ReleaseIdempotency(ctx context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

func (s *MemoryIdempotencyStore) Close() error {
	s.cache.Stop()
	return nil
}

// RedisIdempotencyStore deduplicates request keys across instances via
// SET NX with an expiry.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

func (s *RedisIdempotencyStore) SetIdempotency(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, key, 1, s.ttl).Result()
}

func (s *RedisIdempotencyStore) ReleaseIdempotency(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}
