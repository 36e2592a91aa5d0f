package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestHitFixedWindow(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, ttl, err := c.Hit(ctx, "login:1.2.3.4", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
		assert.LessOrEqual(t, ttl, time.Minute)
		assert.Greater(t, ttl, time.Duration(0))
	}

	mr.FastForward(time.Minute + time.Second)
	n, _, err := c.Hit(ctx, "login:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "window resets after expiry")
}

func TestGetOrLoadJSON(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	var calls int32
	load := func(context.Context) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		return []string{"Product", "User"}, nil
	}

	v, err := GetOrLoadJSON(c, ctx, "rbac:modules", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, []string{"Product", "User"}, v)

	v, err = GetOrLoadJSON(c, ctx, "rbac:modules", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, []string{"Product", "User"}, v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	require.NoError(t, c.Invalidate(ctx, "rbac:modules"))
	_, err = GetOrLoadJSON(c, ctx, "rbac:modules", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetOrLoadJSONLoadError(t *testing.T) {
	c, mr := newTestCache(t)
	boom := errors.New("boom")
	_, err := GetOrLoadJSON(c, context.Background(), "k", time.Minute, func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("k"))
}

func TestInvalidateDuringLoadSkipsStaleWrite(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	// 回源读到旧数据期间，写操作提交并失效了缓存
	v, err := GetOrLoadJSON(c, ctx, "rbac:modules", time.Minute, func(ctx context.Context) ([]string, error) {
		require.NoError(t, c.Invalidate(ctx, "rbac:modules"))
		return []string{"Product"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Product"}, v)
	assert.False(t, mr.Exists("rbac:modules"), "stale value must not be written back")

	var calls int32
	v, err = GetOrLoadJSON(c, ctx, "rbac:modules", time.Minute, func(context.Context) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		return []string{"Product", "Supplier"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Product", "Supplier"}, v)
	assert.True(t, mr.Exists("rbac:modules"))
	assert.Equal(t, int32(1), calls)
}
