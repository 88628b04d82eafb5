package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"paypal-gateway/internal/redis"
)

func exerciseCache(t *testing.T, c Cache) {
	ctx := context.Background()

	_, found, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "token", `{"token":"abc"}`, time.Hour))
	value, found, err := c.Get(ctx, "token")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"token":"abc"}`, value)

	require.NoError(t, c.Set(ctx, "token", "replaced", 0))
	value, _, err = c.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "replaced", value)

	require.NoError(t, c.Delete(ctx, "token"))
	_, found, err = c.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, c.Delete(ctx, "never-set"))
}

func TestLocalCache(t *testing.T) {
	exerciseCache(t, NewLocalCache(time.Minute))
}

func TestLocalCache_Expiry(t *testing.T) {
	c := NewLocalCache(time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", "v", 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)

	_, found, err := c.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, found)
}

func setupRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisCache(client, "gateway:"), mr
}

func TestRedisCache(t *testing.T) {
	c, _ := setupRedisCache(t)
	exerciseCache(t, c)
}

func TestRedisCache_PrefixAndTTL(t *testing.T) {
	c, mr := setupRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "paypal_bearer_token", "blob", 30*time.Second))
	assert.True(t, mr.Exists("gateway:paypal_bearer_token"))
	assert.Equal(t, 30*time.Second, mr.TTL("gateway:paypal_bearer_token"))

	mr.FastForward(31 * time.Second)
	_, found, err := c.Get(ctx, "paypal_bearer_token")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCache_ServerDown(t *testing.T) {
	c, mr := setupRedisCache(t)
	mr.Close()

	_, _, err := c.Get(context.Background(), "any")
	assert.Error(t, err)
}
