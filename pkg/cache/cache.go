package cache

import (
	"context"
	"time"
)

// Cache is a read-through cache with per-entry TTL and explicit
// invalidation. Implementations must be safe for concurrent use.
type Cache[V any] interface {
	// Get returns the cached value and true if present and not expired.
	Get(ctx context.Context, key string) (V, bool)

	// Set stores a value under the key for at most ttl.
	// A non-positive ttl stores nothing.
	Set(ctx context.Context, key string, value V, ttl time.Duration)

	// Invalidate removes the key immediately. Missing keys are a no-op.
	Invalidate(ctx context.Context, key string)
}
