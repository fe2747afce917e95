package query

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRecentCache_AddIfAbsent(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryRecentCache(2)
	require.NoError(t, err)

	added, err := c.AddIfAbsent(ctx, "a")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = c.AddIfAbsent(ctx, "a")
	require.NoError(t, err)
	assert.False(t, added)

	// Bounded: a third hash evicts the oldest.
	_, _ = c.AddIfAbsent(ctx, "b")
	_, _ = c.AddIfAbsent(ctx, "c")
	n, _ := c.Len(ctx)
	assert.Equal(t, 2, n)
	ok, _ := c.Contains(ctx, "a")
	assert.False(t, ok)
}

func TestRedisRecentCache(t *testing.T) {
	addr := os.Getenv("REELVIBE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("REELVIBE_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = client.Close() }()

	c := NewRedisRecentCache(client, time.Minute)
	hash := Hash("redis test " + time.Now().String())
	defer client.Del(ctx, c.prefix+hash)

	added, err := c.AddIfAbsent(ctx, hash)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = c.AddIfAbsent(ctx, hash)
	require.NoError(t, err)
	assert.False(t, added)

	ok, err := c.Contains(ctx, hash)
	require.NoError(t, err)
	assert.True(t, ok)
}
