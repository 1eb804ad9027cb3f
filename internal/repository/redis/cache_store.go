package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"toolAdvisor/pkg/cache"
)

const defaultKeyPrefix = "toolAdvisor:"

// CacheStore is the redis cache level.
type CacheStore struct {
	client *redis.Client
	prefix string
}

var _ cache.Tier = (*CacheStore)(nil)

func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{
		client: client,
		prefix: defaultKeyPrefix,
	}
}

func (s *CacheStore) Name() string { return "l2" }

func (s *CacheStore) key(k string) string {
	// key format: "toolAdvisor:{cache key}"
	return s.prefix + k
}

func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get cache entry from Redis: %w", err)
	}

	return val, true, nil
}

// Set stores value with ttl; zero keeps it until evicted by redis.
func (s *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cache entry in Redis: %w", err)
	}

	return nil
}

func (s *CacheStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entries from Redis: %w", err)
	}

	return nil
}

