package cache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planodeaula/entitlements/pkg/cache"
)

func TestMemoryCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("get after set", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[int]()
		c.Set(ctx, "a", 42, time.Minute)

		got, ok := c.Get(ctx, "a")
		require.True(t, ok)
		assert.Equal(t, 42, got)
	})

	t.Run("miss on unknown key", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[int]()

		_, ok := c.Get(ctx, "missing")
		assert.False(t, ok)
	})

	t.Run("entry expires after ttl", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string]()
		c.Set(ctx, "a", "value", 10*time.Millisecond)

		_, ok := c.Get(ctx, "a")
		require.True(t, ok)

		time.Sleep(20 * time.Millisecond)

		_, ok = c.Get(ctx, "a")
		assert.False(t, ok)
	})

	t.Run("invalidate removes entry immediately", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string]()
		c.Set(ctx, "a", "value", time.Minute)
		c.Invalidate(ctx, "a")

		_, ok := c.Get(ctx, "a")
		assert.False(t, ok)
	})

	t.Run("invalidate unknown key is a no-op", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string]()
		c.Invalidate(ctx, "missing")
	})

	t.Run("non-positive ttl stores nothing", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string]()
		c.Set(ctx, "a", "value", 0)

		_, ok := c.Get(ctx, "a")
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("concurrent access", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[int]()

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				c.Set(ctx, "shared", n, time.Minute)
				c.Get(ctx, "shared")
				c.Invalidate(ctx, "shared")
			}(i)
		}
		wg.Wait()
	})
}
