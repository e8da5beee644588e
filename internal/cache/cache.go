package cache

import (
	"context"
	"errors"
	"time"
)

// Cache is the small key-value contract the application depends on.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns ErrMiss when key is absent.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value with ttl; ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

var ErrMiss = errors.New("cache: miss")
