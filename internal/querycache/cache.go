package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Cache stores JSON-encoded query results under a namespace. A nil *Cache
// or one without a store is a no-op, so callers never branch on whether
// caching is enabled.
type Cache struct {
	store     Store
	ttl       time.Duration
	namespace string
	logger    *zap.Logger
}

// New creates a Cache. namespace is prepended to every key.
func New(store Store, ttl time.Duration, namespace string, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: store, ttl: ttl, namespace: namespace, logger: logger}
}

func (c *Cache) enabled() bool { return c != nil && c.store != nil }

// GetJSON decodes the entry at key into dest. It reports false on a miss.
// Store failures are logged and treated as misses.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) bool {
	if !c.enabled() {
		return false
	}
	raw, err := c.store.Get(ctx, c.namespace+key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		c.logger.Warn("cache entry undecodable", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// SetJSON stores v at key with the cache TTL
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if !c.enabled() {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	if err := c.store.Set(ctx, c.namespace+key, string(data), c.ttl); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Invalidate drops every entry under each prefix. It keeps going after a
// failure and returns the first error.
func (c *Cache) Invalidate(ctx context.Context, prefixes ...string) error {
	if !c.enabled() {
		return nil
	}
	var first error
	for _, p := range prefixes {
		n, err := c.store.DeleteByPrefix(ctx, c.namespace+p)
		if err != nil {
			c.logger.Warn("cache invalidation failed", zap.String("prefix", p), zap.Error(err))
			if first == nil {
				first = err
			}
			continue
		}
		c.logger.Debug("cache invalidated", zap.String("prefix", p), zap.Int("keys", n))
	}
	return first
}

// Close releases the underlying store
func (c *Cache) Close() error {
	if !c.enabled() {
		return nil
	}
	return c.store.Close()
}
