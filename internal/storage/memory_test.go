package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		store := NewMemoryStore()

		require.NoError(t, store.Set(ctx, "k", "v", 0))
		value, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v", value)
	})

	t.Run("missing key", func(t *testing.T) {
		store := NewMemoryStore()

		_, err := store.Get(ctx, "absent")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		store := NewMemoryStore()

		require.NoError(t, store.Set(ctx, "k", "v", 0))
		require.NoError(t, store.Delete(ctx, "k"))
		_, err := store.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrNotFound)

		// deleting again is a no-op
		assert.NoError(t, store.Delete(ctx, "k"))
	})

	t.Run("entry expires after TTL", func(t *testing.T) {
		store := NewMemoryStore()
		now := time.Now()
		store.SetClock(func() time.Time { return now })

		require.NoError(t, store.Set(ctx, "k", "v", 10*time.Minute))

		value, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v", value)

		now = now.Add(10*time.Minute + time.Second)
		_, err = store.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("zero TTL never expires", func(t *testing.T) {
		store := NewMemoryStore()
		now := time.Now()
		store.SetClock(func() time.Time { return now })

		require.NoError(t, store.Set(ctx, "k", "v", 0))

		now = now.Add(1000 * time.Hour)
		value, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v", value)
	})

	t.Run("overwrite resets TTL", func(t *testing.T) {
		store := NewMemoryStore()
		now := time.Now()
		store.SetClock(func() time.Time { return now })

		require.NoError(t, store.Set(ctx, "k", "v1", time.Minute))
		now = now.Add(50 * time.Second)
		require.NoError(t, store.Set(ctx, "k", "v2", time.Minute))
		now = now.Add(50 * time.Second)

		value, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v2", value)
	})

	t.Run("cleanup removes only expired entries", func(t *testing.T) {
		store := NewMemoryStore()
		now := time.Now()
		store.SetClock(func() time.Time { return now })

		require.NoError(t, store.Set(ctx, "expired-1", "v", time.Minute))
		require.NoError(t, store.Set(ctx, "expired-2", "v", time.Minute))
		require.NoError(t, store.Set(ctx, "live", "v", time.Hour))
		require.NoError(t, store.Set(ctx, "forever", "v", 0))

		now = now.Add(30 * time.Minute)
		count, err := store.CleanupExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		_, err = store.Get(ctx, "live")
		assert.NoError(t, err)
		_, err = store.Get(ctx, "forever")
		assert.NoError(t, err)
	})
}

func TestCleanupManager(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	store.SetClock(func() time.Time { return now })

	require.NoError(t, store.Set(ctx, "stale", "v", time.Minute))
	now = now.Add(time.Hour)

	// Long interval: only the immediate run on Start and the final run
	// on Stop fire.
	manager := NewCleanupManager(store, time.Hour)
	manager.Start(ctx)
	manager.Stop()

	_, err := store.Get(ctx, "stale")
	assert.ErrorIs(t, err, ErrNotFound)
}
