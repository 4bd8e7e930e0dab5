package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, RateLimiter) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	limiter, err := NewRedisRateLimiter("redis://"+mr.Addr(), 5, time.Minute, false)
	require.NoError(t, err)

	return mr, limiter
}

func TestNoOpRateLimiter(t *testing.T) {
	limiter := &NoOpRateLimiter{}
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		allowed, err := limiter.Allow(ctx, "stripe")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	assert.NoError(t, limiter.Close())
}

func TestNewRedisRateLimiter_Disabled(t *testing.T) {
	limiter, err := NewRedisRateLimiter("", 5, time.Minute, true)
	require.NoError(t, err)

	allowed, err := limiter.Allow(context.Background(), "stripe")
	require.NoError(t, err)
	assert.True(t, allowed, "disabled limiter should allow all")

	assert.NoError(t, limiter.Close())
}

func TestNewRedisRateLimiter_InvalidURL(t *testing.T) {
	_, err := NewRedisRateLimiter("not-a-valid-url", 5, time.Minute, false)
	assert.Error(t, err)
}

func TestRedisRateLimiter_EnforcesLimit(t *testing.T) {
	mr, limiter := setupTestRedis(t)
	defer mr.Close()
	defer limiter.Close()

	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(ctx, "stripe")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d within limit should pass", i+1)
	}

	allowed, err := limiter.Allow(ctx, "stripe")
	require.NoError(t, err)
	assert.False(t, allowed, "request over limit should be rejected")
}

func TestRedisRateLimiter_KeyTTLCoversWindow(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	limiter, err := NewRedisRateLimiter("redis://"+mr.Addr(), 5, 2*time.Hour, false)
	require.NoError(t, err)
	defer limiter.Close()

	allowed, err := limiter.Allow(context.Background(), "stripe")
	require.NoError(t, err)
	require.True(t, allowed)

	// The zset must not expire mid-window or idle keys forget their history.
	assert.GreaterOrEqual(t, mr.TTL("ratelimit:stripe"), 2*time.Hour)
}

func TestRedisRateLimiter_KeysAreIndependent(t *testing.T) {
	mr, limiter := setupTestRedis(t)
	defer mr.Close()
	defer limiter.Close()

	ctx := context.Background()

	// Exhaust one provider's budget.
	for i := 0; i < 6; i++ {
		_, err := limiter.Allow(ctx, "stripe")
		require.NoError(t, err)
	}

	allowed, err := limiter.Allow(ctx, "hotmart")
	require.NoError(t, err)
	assert.True(t, allowed, "other providers keep their own budget")
}

func TestRedisRateLimiter_WindowSlides(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	limiter, err := NewRedisRateLimiter("redis://"+mr.Addr(), 2, 50*time.Millisecond, false)
	require.NoError(t, err)
	defer limiter.Close()

	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, "cartpanda")
		require.NoError(t, err)
		require.True(t, allowed)
	}

	allowed, err := limiter.Allow(ctx, "cartpanda")
	require.NoError(t, err)
	require.False(t, allowed)

	// Entries are scored by real wall-clock nanoseconds, so waiting out the
	// window expires them regardless of miniredis's frozen clock.
	time.Sleep(60 * time.Millisecond)

	allowed, err = limiter.Allow(ctx, "cartpanda")
	require.NoError(t, err)
	assert.True(t, allowed, "window should slide past old entries")
}
