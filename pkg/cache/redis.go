package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Cache backed by a Redis server, for deployments where
// several request handlers share one cache. Values are JSON-encoded.
//
// Redis errors degrade to cache misses: the caller falls through to the
// source of truth instead of failing the request.
type Redis[V any] struct {
	client *redis.Client
	prefix string
}

// NewRedis creates a Redis-backed cache. The prefix namespaces keys so
// several caches can share one database.
func NewRedis[V any](client *redis.Client, prefix string) *Redis[V] {
	if client == nil {
		panic("cache: redis client is required")
	}
	return &Redis[V]{client: client, prefix: prefix}
}

func (r *Redis[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V

	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		return zero, false
	}

	var value V
	if err := json.Unmarshal(data, &value); err != nil {
		// Undecodable entries are stale schema leftovers; drop them.
		r.client.Del(ctx, r.prefix+key)
		return zero, false
	}

	return value, true
}

func (r *Redis[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		return
	}

	r.client.Set(ctx, r.prefix+key, data, ttl)
}

func (r *Redis[V]) Invalidate(ctx context.Context, key string) {
	r.client.Del(ctx, r.prefix+key)
}
