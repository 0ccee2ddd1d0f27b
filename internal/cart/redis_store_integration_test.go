//go:build integration

package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/testutil/containers"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStoreAgainstRedis(t *testing.T) {
	client := containers.Redis(t)
	store, err := NewRedisStore(client, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	a, b := uuid.New(), uuid.New()
	for _, id := range []uuid.UUID{a, b, a} {
		_, err := store.Increment(ctx, "sess", id)
		require.NoError(t, err)
	}

	entries, err := store.Entries(ctx, "sess")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{ProductID: a, Quantity: 2}, entries[0])
	assert.Equal(t, Entry{ProductID: b, Quantity: 1}, entries[1])

	require.NoError(t, store.Remove(ctx, "sess", a))
	require.NoError(t, store.Remove(ctx, "sess", a))
	entries, err = store.Entries(ctx, "sess")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{ProductID: b, Quantity: 1}}, entries)

	other, err := store.Entries(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, store.Clear(ctx, "sess"))
	entries, err = store.Entries(ctx, "sess")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRedisStoreConcurrentIncrements(t *testing.T) {
	client := containers.Redis(t)
	store, err := NewRedisStore(client, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	id := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Increment(ctx, "sess", id)
		}()
	}
	wg.Wait()

	entries, err := store.Entries(ctx, "sess")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 25, entries[0].Quantity)
}
