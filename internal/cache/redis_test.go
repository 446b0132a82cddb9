package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/munichweekly/internal/config"
	"github.com/stretchr/testify/require"
)

// 需要可用的 Redis，未设置 REDIS_ADDR 时跳过。
func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r, err := NewRedis(ctx, addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRedisSetGetDelete(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	_, err := r.Get(ctx, key)
	require.ErrorIs(t, err, ErrMiss)

	require.NoError(t, r.Set(ctx, key, []byte("layout"), time.Minute))
	got, err := r.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "layout", string(got))

	require.NoError(t, r.Delete(ctx, key))
	_, err = r.Get(ctx, key)
	require.ErrorIs(t, err, ErrMiss)
	require.NoError(t, r.Delete(ctx))
}

func TestRedisDeletePrefixAcrossScanBatches(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	ns := "test:" + uuid.NewString()
	prefix := ns + ":layout:masonry:7:"
	other := ns + ":layout:masonry:70"

	// 超过单批 100 个键，覆盖分批删除与尾批删除。
	const total = 250
	for i := 0; i < total; i++ {
		require.NoError(t, r.Set(ctx, fmt.Sprintf("%s%d", prefix, i), []byte("x"), time.Minute))
	}
	require.NoError(t, r.Set(ctx, other, []byte("keep"), time.Minute))
	t.Cleanup(func() { _ = r.Delete(context.Background(), other) })

	require.NoError(t, r.DeletePrefix(ctx, prefix))

	for i := 0; i < total; i++ {
		_, err := r.Get(ctx, fmt.Sprintf("%s%d", prefix, i))
		require.ErrorIs(t, err, ErrMiss)
	}
	got, err := r.Get(ctx, other)
	require.NoError(t, err)
	require.Equal(t, "keep", string(got))
}

func TestNewSelectsRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	c, err := New(context.Background(), config.CacheSettings{Provider: "redis", RedisAddr: addr})
	require.NoError(t, err)
	r, ok := c.(*Redis)
	require.True(t, ok)
	require.NoError(t, r.Close())
}

func TestNewRedisFailsWhenUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := NewRedis(ctx, "127.0.0.1:1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "ping redis 127.0.0.1:1")
}
