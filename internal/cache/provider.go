package cache

// Package cache backs idempotency guards on money-moving endpoints.

import (
	"context"
	"fmt"
	"time"
)

// Provider is a small TTL'd key-value store.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Config struct {
	Provider              string
	RedisConnectionString string
}

func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "memory", "":
		return NewMemoryProvider()
	case "redis":
		return NewRedisProvider(cfg.RedisConnectionString)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Provider)
	}
}

// IdempotencyKey scopes a client-supplied Idempotency-Key header to one
// operation on one resource, so a reused header value on a different endpoint
// cannot replay the wrong response.
func IdempotencyKey(operation, resourceID, clientKey string) string {
	return fmt.Sprintf("idem:%s:%s:%s", operation, resourceID, clientKey)
}
