package artifacts

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	e, err := c.Get(ctx, "x")
	require.NoError(t, err)
	assert.Nil(t, e)

	at := time.Now()
	require.NoError(t, c.Set(ctx, "x", Entry{Content: []byte("hi"), CachedAt: at}))

	e, err = c.Get(ctx, "x")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "hi", string(e.Content))
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available at %s: %v", addr, err)
	}

	c := NewRedisCache(client)
	name := "test-" + time.Now().Format("150405.000000000")

	e, err := c.Get(ctx, name)
	require.NoError(t, err)
	assert.Nil(t, e)

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, c.Set(ctx, name, Entry{Content: []byte{0x1f, 0x8b, 0x00}, CachedAt: at}))

	e, err = c.Get(ctx, name)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, []byte{0x1f, 0x8b, 0x00}, e.Content)
	assert.True(t, at.Equal(e.CachedAt))

	client.Del(ctx, redisKeyPrefix+name)
}
