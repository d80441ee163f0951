package quotecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/marketdesk/tickstream/internal/config"
)

// redisKeyPrefix namespaces cache entries so the instance can share a Redis
// with other services.
const redisKeyPrefix = "ltp:"

// RedisStore persists quotes as JSON values in Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects and verifies the Redis backend.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// UpsertBatch writes the batch in one pipeline round trip.
func (s *RedisStore) UpsertBatch(ctx context.Context, quotes []Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, q := range quotes {
		data, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("marshal quote %s: %w", q.Alias, err)
		}
		pipe.Set(ctx, redisKeyPrefix+q.Alias, data, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert quote batch: %w", err)
	}
	return nil
}

// Get returns the cached quote for alias, or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, alias string) (Quote, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+alias).Bytes()
	if errors.Is(err, redis.Nil) {
		return Quote{}, ErrNotFound
	}
	if err != nil {
		return Quote{}, fmt.Errorf("get quote: %w", err)
	}
	var q Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return Quote{}, fmt.Errorf("decode quote %s: %w", alias, err)
	}
	return q, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() {
	_ = s.client.Close()
}
