package cache

import (
	"context"
	"time"
)

// Cache provides insight response caching
type Cache interface {
	// GetInsight retrieves a cached insight by key.
	// Returns nil if not found
	GetInsight(ctx context.Context, key string) (*InsightResult, error)

	// SetInsight stores an insight with TTL
	SetInsight(ctx context.Context, key string, result *InsightResult, ttl time.Duration) error

	// InvalidateAll removes every cached insight; called after ingestion
	// changes the underlying data
	InvalidateAll(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

// InsightResult is a cached insight response
type InsightResult struct {
	Insight   string    `json:"insight"`
	CreatedAt time.Time `json:"created_at"`
}
