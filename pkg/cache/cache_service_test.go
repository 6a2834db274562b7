package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("Set then Get", func(t *testing.T) {
		c := NewMemoryCache()
		require.NoError(t, c.Set(ctx, "profile:1", profile{ID: "1", Name: "Ann"}, time.Minute))

		var got profile
		require.NoError(t, c.Get(ctx, "profile:1", &got))
		assert.Equal(t, "Ann", got.Name)
	})

	t.Run("Expired entries miss", func(t *testing.T) {
		c := NewMemoryCache().(*MemoryCache)
		now := time.Now()
		c.now = func() time.Time { return now }
		require.NoError(t, c.Set(ctx, "k", 1, time.Second))

		c.now = func() time.Time { return now.Add(2 * time.Second) }
		var v int
		assert.ErrorIs(t, c.Get(ctx, "k", &v), ErrCacheMiss)
	})

	t.Run("Invalidate by pattern", func(t *testing.T) {
		c := NewMemoryCache()
		require.NoError(t, c.Set(ctx, "profile:1", 1, time.Minute))
		require.NoError(t, c.Set(ctx, "profile:2", 2, time.Minute))
		require.NoError(t, c.Set(ctx, "handle:ann", 3, time.Minute))

		require.NoError(t, c.InvalidatePattern(ctx, "profile:*"))

		var v int
		assert.ErrorIs(t, c.Get(ctx, "profile:1", &v), ErrCacheMiss)
		assert.ErrorIs(t, c.Get(ctx, "profile:2", &v), ErrCacheMiss)
		assert.NoError(t, c.Get(ctx, "handle:ann", &v))
		assert.Equal(t, 3, v)
	})

	t.Run("Delete many", func(t *testing.T) {
		c := NewMemoryCache()
		require.NoError(t, c.Set(ctx, "a", 1, time.Minute))
		require.NoError(t, c.Set(ctx, "b", 2, time.Minute))
		require.NoError(t, c.Delete(ctx, "a", "b"))

		var v int
		assert.ErrorIs(t, c.Get(ctx, "a", &v), ErrCacheMiss)
	})
}
