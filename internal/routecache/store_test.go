package routecache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, "ed:test:"), mr, client
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"freecache": func(*testing.T) Store { return NewFreeCacheStore(4) },
		"redis": func(t *testing.T) Store {
			s, _, _ := newRedisStore(t)
			return s
		},
	}

	for name, build := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := build(t)

			_, err := store.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Set(ctx, "tenant:a:pacs.008.001.10", []byte(`{"cfg":"1"}`), 0))
			require.NoError(t, store.Set(ctx, "pacs.002.001.12", []byte(`{"cfg":"2"}`), time.Minute))

			got, err := store.Get(ctx, "tenant:a:pacs.008.001.10")
			require.NoError(t, err)
			assert.Equal(t, `{"cfg":"1"}`, string(got))

			keys, err := store.Keys(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"tenant:a:pacs.008.001.10", "pacs.002.001.12"}, keys)

			require.NoError(t, store.Flush(ctx))
			keys, err = store.Keys(ctx)
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestExpireSeconds(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want int
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Millisecond, 1},
		{500 * time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{5 * time.Minute, 300},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expireSeconds(tt.ttl), tt.ttl.String())
	}
}

func TestFreeCacheStore_SubSecondTTLExpires(t *testing.T) {
	store := NewFreeCacheStore(4)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", []byte("v"), 200*time.Millisecond))
	require.NoError(t, store.Set(ctx, "forever", []byte("v"), 0))

	ttl, err := store.cache.TTL([]byte("short"))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), ttl)

	ttl, err = store.cache.TTL([]byte("forever"))
	require.NoError(t, err)
	assert.Zero(t, ttl)
}

func TestRedisStore_TTL(t *testing.T) {
	store, mr, _ := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "expiring", []byte("v"), 2*time.Second))
	require.NoError(t, store.Set(ctx, "forever", []byte("v"), 0))

	mr.FastForward(3 * time.Second)

	_, err := store.Get(ctx, "expiring")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestRedisStore_FlushKeepsForeignKeys(t *testing.T) {
	store, _, client := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "dedup:abc", "1", 0).Err())
	for i := 0; i < 250; i++ {
		require.NoError(t, store.Set(ctx, fmt.Sprintf("tenant:t%d:pacs.008.001.10", i), []byte("v"), 0))
	}

	require.NoError(t, store.Flush(ctx))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Equal(t, "1", client.Get(ctx, "dedup:abc").Val())
}
