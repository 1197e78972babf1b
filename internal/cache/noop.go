package cache

import (
	"context"
	"time"
)

// NoOpCache is a cache implementation that does nothing.
// Used as a fallback when Redis is unavailable - all operations succeed
// but no actual caching occurs (always cache miss).
type NoOpCache struct{}

// NewNoOpCache creates a new no-op cache instance
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// GetInsight always returns nil (cache miss)
func (c *NoOpCache) GetInsight(ctx context.Context, key string) (*InsightResult, error) {
	return nil, nil
}

// SetInsight does nothing and always succeeds
func (c *NoOpCache) SetInsight(ctx context.Context, key string, result *InsightResult, ttl time.Duration) error {
	return nil
}

// InvalidateAll does nothing and always succeeds
func (c *NoOpCache) InvalidateAll(ctx context.Context) error {
	return nil
}

// Close does nothing and always succeeds
func (c *NoOpCache) Close() error {
	return nil
}
