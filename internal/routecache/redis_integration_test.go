//go:build integration

package routecache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if os.Getenv("TESTCONTAINERS_RYUK_DISABLED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	}

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(ctx)
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisStoreIntegration(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	t.Run("entries expire after ttl", func(t *testing.T) {
		store := NewRedisStore(client, "ed:ttl:")
		require.NoError(t, store.Set(ctx, "tenant:tenant-a:pacs.002.001.12", []byte(`{}`), time.Second))

		got, err := store.Get(ctx, "tenant:tenant-a:pacs.002.001.12")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{}`), got)

		assert.Eventually(t, func() bool {
			_, err := store.Get(ctx, "tenant:tenant-a:pacs.002.001.12")
			return err == ErrNotFound
		}, 5*time.Second, 100*time.Millisecond)
	})

	t.Run("flush is scoped to the prefix", func(t *testing.T) {
		store := NewRedisStore(client, "ed:flush:")
		require.NoError(t, client.Set(ctx, "other:service:key", "keep", 0).Err())
		for _, key := range []string{"pacs.008.001.10", "tenant:DEFAULT:pacs.008.001.10", "tenant:tenant-a:pain.001.001.11"} {
			require.NoError(t, store.Set(ctx, key, []byte(`{}`), 0))
		}

		keys, err := store.Keys(ctx)
		require.NoError(t, err)
		assert.Len(t, keys, 3)

		require.NoError(t, store.Flush(ctx))

		keys, err = store.Keys(ctx)
		require.NoError(t, err)
		assert.Empty(t, keys)

		foreign, err := client.Get(ctx, "other:service:key").Result()
		require.NoError(t, err)
		assert.Equal(t, "keep", foreign)
	})
}
