package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get and GetDel when the key does not exist.
var ErrNotFound = errors.New("cache: key not found")

type Cache interface {
	Set(ctx context.Context, key, val string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	// GetDel atomically reads and removes the key.
	GetDel(ctx context.Context, key string) (string, error)
	// SetNX writes the key only if it is absent, reporting whether it won.
	SetNX(ctx context.Context, key, val string, ttl time.Duration) (bool, error)
	// Incr atomically increments the integer stored at key, creating it at 1.
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}
