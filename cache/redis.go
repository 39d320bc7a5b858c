package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "mutation_layer:cache:"

// RedisStore is a Redis-backed Store for hosts that share the read cache
// across processes. Entries are stored as JSON; per-key atomicity holds
// because the coherence adapter serializes writers per key.
type RedisStore struct {
	client *redis.Client
}

// RedisConfig holds Redis store configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore creates a Redis-backed store and verifies connectivity.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error { return s.client.Close() }

// Get returns the entry for a key.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return &entry, nil
}

// Set stores a fresh value.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := Entry{Value: value, UpdatedAt: time.Now()}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Invalidate marks the entry stale, preserving its remaining TTL.
func (s *RedisStore) Invalidate(ctx context.Context, key string) error {
	full := redisKeyPrefix + key

	data, err := s.client.Get(ctx, full).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	entry.Stale = true
	entry.UpdatedAt = time.Now()

	updated, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}

	ttl, err := s.client.TTL(ctx, full).Result()
	if err != nil || ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, full, updated, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes the entry.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
