package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mstgnz/idpay/infra/config"
)

// DefaultRedisPrefix namespaces session keys in a shared Redis
const DefaultRedisPrefix = "idpay:session:"

// RedisBackend stores sessions in Redis so every instance behind a load balancer
// sees the same values.
type RedisBackend struct {
	client *redis.Client
	prefix string // Key prefix, e.g., "idpay:session:"
}

// NewRedisClient creates a Redis client from the application config
func NewRedisClient(cfg *config.AppConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// NewRedisBackend creates a Redis session backend; an empty prefix uses DefaultRedisPrefix
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisBackend{
		client: client,
		prefix: prefix,
	}
}

// Set stores a value with TTL
func (b *RedisBackend) Set(ctx context.Context, sessionID, key, value string, ttl time.Duration) error {
	if sessionID == "" {
		return errors.New("session id cannot be empty")
	}

	if err := b.client.Set(ctx, b.buildKey(sessionID, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session value in redis: %w", err)
	}
	return nil
}

// Get returns a value; expired and missing keys are not an error
func (b *RedisBackend) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	if sessionID == "" {
		return "", false, nil
	}

	value, err := b.client.Get(ctx, b.buildKey(sessionID, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read session value from redis: %w", err)
	}
	return value, true, nil
}

// Delete removes a value
func (b *RedisBackend) Delete(ctx context.Context, sessionID, key string) error {
	if sessionID == "" {
		return nil
	}

	if err := b.client.Del(ctx, b.buildKey(sessionID, key)).Err(); err != nil {
		return fmt.Errorf("failed to delete session value from redis: %w", err)
	}
	return nil
}

// Ping checks the Redis connection
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// buildKey constructs the full Redis key with prefix
func (b *RedisBackend) buildKey(sessionID, key string) string {
	return b.prefix + sessionID + ":" + key
}
