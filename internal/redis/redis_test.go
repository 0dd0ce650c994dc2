package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/config"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, config.RedisConfig) {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return mr, config.RedisConfig{Host: mr.Host(), Port: port, DialTimeout: time.Second}
}

func TestNewClient(t *testing.T) {
	_, cfg := setupTestRedis(t)

	client, err := NewClient(context.Background(), cfg)
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, Health(context.Background(), client))
}

func TestNewClient_Unreachable(t *testing.T) {
	mr, cfg := setupTestRedis(t)
	mr.Close()

	_, err := NewClient(context.Background(), cfg)
	assert.Error(t, err)
}

func TestHealth_NilClient(t *testing.T) {
	assert.Error(t, Health(context.Background(), nil))
}

func TestSlidingWindowLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewSlidingWindowLimiter(client, "rl:", time.Second, 3)
	l.now = func() time.Time { return now }

	ctx := context.Background()
	for want := 2; want >= 0; want-- {
		ok, remaining, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, want, remaining)
	}

	ok, remaining, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, remaining)

	// other keys are independent
	ok, _, err = l.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok)

	// the window slides
	now = now.Add(1500 * time.Millisecond)
	ok, remaining, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, remaining)
}
