package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("bundle"), 0))

	value, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("bundle"), value)
	assert.Equal(t, 1, store.Size())
}

func TestMemoryStore_Miss(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsCacheMiss(err))
}

func TestMemoryStore_ExpiryAndPrune(t *testing.T) {
	store := NewMemoryStoreWithConfig(StoreConfig{DefaultTTL: time.Minute})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", []byte("a"), 0))
	require.NoError(t, store.Set(ctx, "forever", []byte("b"), -1))

	now = now.Add(2 * time.Minute)

	_, err := store.Get(ctx, "short")
	assert.True(t, IsCacheMiss(err))
	_, err = store.Get(ctx, "forever")
	assert.NoError(t, err)

	assert.Equal(t, 1, store.Prune())
	assert.Equal(t, 1, store.Size())
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, store.Delete(ctx, "k"))

	_, err := store.Get(ctx, "k")
	assert.True(t, IsCacheMiss(err))
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Set(ctx, "k", nil, 0), context.Canceled)
	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNoopStore(t *testing.T) {
	var store Store = NoopStore{}
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
	_, err := store.Get(ctx, "k")
	assert.True(t, IsCacheMiss(err))
}

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreWithClient(client, DefaultStoreConfig())
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStore_SetAndGet(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "abc", []byte("bundle"), time.Minute))

	value, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("bundle"), value)
	assert.True(t, mr.Exists("neuron:bundle:abc"))
}

func TestRedisStore_MissAndExpiry(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.True(t, IsCacheMiss(err))

	require.NoError(t, store.Set(ctx, "abc", []byte("bundle"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err = store.Get(ctx, "abc")
	assert.True(t, IsCacheMiss(err))
}

func TestRedisStore_Delete(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "abc", []byte("bundle"), 0))
	require.NoError(t, store.Delete(ctx, "abc"))

	_, err := store.Get(ctx, "abc")
	assert.True(t, IsCacheMiss(err))
}

func TestNewRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(context.Background(), "redis://"+mr.Addr()+"/0", DefaultStoreConfig())
	require.NoError(t, err)
	defer store.Close()

	_, err = NewRedisStore(context.Background(), "not a url", DefaultStoreConfig())
	assert.Error(t, err)
}
