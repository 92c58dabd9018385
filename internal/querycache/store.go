// Package querycache is the console's read cache for backend queries. Entries
// are JSON documents; writes invalidate them by key prefix.
package querycache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Store.Get when the key is absent or expired
var ErrCacheMiss = errors.New("cache miss")

// Store is the key/value backend of the cache
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// DeleteByPrefix removes every key starting with prefix and returns how many were removed
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
	Close() error
}
