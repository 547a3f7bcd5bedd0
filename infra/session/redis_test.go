package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstgnz/idpay/infra/config"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return mr, client
}

func TestRedisBackend_SetGetDelete(t *testing.T) {
	mr, client := setupTestRedis(t)
	backend := NewRedisBackend(client, "")
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "sid", "abc1", "https://shop.example/return", 20*time.Minute))
	assert.True(t, mr.Exists("idpay:session:sid:abc1"))

	value, ok, err := backend.Get(ctx, "sid", "abc1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://shop.example/return", value)

	require.NoError(t, backend.Delete(ctx, "sid", "abc1"))
	_, ok, err = backend.Get(ctx, "sid", "abc1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisBackend_TTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	backend := NewRedisBackend(client, "test:")
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "sid", "key", "value", 1200*time.Second))
	assert.Equal(t, 1200*time.Second, mr.TTL("test:sid:key"))

	mr.FastForward(1201 * time.Second)

	_, ok, err := backend.Get(ctx, "sid", "key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisBackend_EmptySession(t *testing.T) {
	_, client := setupTestRedis(t)
	backend := NewRedisBackend(client, "")
	ctx := context.Background()

	assert.Error(t, backend.Set(ctx, "", "key", "value", time.Minute))

	_, ok, err := backend.Get(ctx, "", "key")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, backend.Delete(ctx, "", "key"))
}

func TestRedisBackend_Unavailable(t *testing.T) {
	mr, client := setupTestRedis(t)
	backend := NewRedisBackend(client, "")
	ctx := context.Background()

	require.NoError(t, backend.Ping(ctx))
	mr.Close()

	assert.Error(t, backend.Ping(ctx))
	_, ok, err := backend.Get(ctx, "sid", "key")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNewRedisClient(t *testing.T) {
	mr, _ := setupTestRedis(t)

	client := NewRedisClient(&config.AppConfig{RedisAddr: mr.Addr()})
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()).Err())
}
