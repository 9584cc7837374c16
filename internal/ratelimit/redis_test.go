package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisLimiter(t *testing.T) *RedisLimiter {
	t.Helper()

	mr := miniredis.RunT(t)
	limiter, err := NewRedisLimiter(mr.Addr(), "", 0, DefaultMaxAttempts, DefaultWindow)
	require.NoError(t, err)
	t.Cleanup(func() { limiter.Close() })

	return limiter
}

func TestRedisLimiter_AllowsThenDenies(t *testing.T) {
	limiter := setupRedisLimiter(t)
	ctx := context.Background()
	referrer := uuid.New().String()

	for i := 0; i < DefaultMaxAttempts; i++ {
		decision, err := limiter.CanMakeReferral(ctx, referrer)
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "attempt %d should be allowed", i+1)
		require.NoError(t, limiter.RecordReferral(ctx, referrer))
	}

	decision, err := limiter.CanMakeReferral(ctx, referrer)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Greater(t, decision.RetryAfter, 0)
}

func TestRedisLimiter_WindowSlides(t *testing.T) {
	limiter := setupRedisLimiter(t)
	ctx := context.Background()
	referrer := uuid.New().String()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter.SetClock(func() time.Time { return now })

	for i := 0; i < DefaultMaxAttempts; i++ {
		require.NoError(t, limiter.RecordReferral(ctx, referrer))
	}

	decision, err := limiter.CanMakeReferral(ctx, referrer)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	now = now.Add(61 * time.Minute)
	decision, err = limiter.CanMakeReferral(ctx, referrer)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestRedisLimiter_ClearAll(t *testing.T) {
	limiter := setupRedisLimiter(t)
	ctx := context.Background()
	referrer := uuid.New().String()

	for i := 0; i < DefaultMaxAttempts; i++ {
		require.NoError(t, limiter.RecordReferral(ctx, referrer))
	}

	require.NoError(t, limiter.ClearAll(ctx))

	decision, err := limiter.CanMakeReferral(ctx, referrer)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestRedisLimiter_ReferrersAreIndependent(t *testing.T) {
	limiter := setupRedisLimiter(t)
	ctx := context.Background()

	busy := uuid.New().String()
	idle := uuid.New().String()

	for i := 0; i < DefaultMaxAttempts; i++ {
		require.NoError(t, limiter.RecordReferral(ctx, busy))
	}

	decision, err := limiter.CanMakeReferral(ctx, idle)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}
