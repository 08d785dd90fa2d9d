package ratelimit

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/escolar/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockerWithoutRedisGrantsEverything(t *testing.T) {
	l := NewLocker(nil)
	assert.False(t, l.Enabled())

	release, err := l.Obtain(context.Background(), "escolar:billing:run", time.Minute)
	require.NoError(t, err)
	require.NoError(t, release(context.Background()))

	var nilLocker *Locker
	release, err = nilLocker.Obtain(context.Background(), "", 0)
	require.NoError(t, err)
	require.NoError(t, release(context.Background()))
}

func TestAdminLimiterWithoutRedisAllows(t *testing.T) {
	l := NewAdminLimiter(config.Config{RateLimit: config.RateLimitConfig{AdminRate: 1, AdminBurst: 1}}, nil)
	assert.False(t, l.Enabled())

	for i := 0; i < 3; i++ {
		ok, wait, err := l.Allow(context.Background(), "billing.run")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Zero(t, wait)
	}
}

func TestDefaultBucketTTL(t *testing.T) {
	assert.Equal(t, time.Second, defaultBucketTTL(0, 1))
	assert.Equal(t, 20*time.Second, defaultBucketTTL(0.5, 5))
	assert.Equal(t, time.Second, defaultBucketTTL(100, 1))
}

func TestAdminLimiterNeedsPositiveLimits(t *testing.T) {
	// no command is sent, so the address is never dialed
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	l := NewAdminLimiter(config.Config{RateLimit: config.RateLimitConfig{AdminRate: 0, AdminBurst: 3}}, client)
	assert.False(t, l.Enabled())

	l = NewAdminLimiter(config.Config{RateLimit: config.RateLimitConfig{AdminRate: 1, AdminBurst: 3}}, client)
	assert.True(t, l.Enabled())
}
