package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterStore_PerKey(t *testing.T) {
	store := PerMinute(2)

	assert.True(t, store.Allow("ou_a"))
	assert.True(t, store.Allow("ou_a"))
	assert.False(t, store.Allow("ou_a"))

	assert.True(t, store.Allow("ou_b"))
	assert.Equal(t, 2, store.Len())
}

func TestLimiterStore_Cleanup(t *testing.T) {
	store := PerMinute(1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.GetLimiter("old")
	now = now.Add(10 * time.Minute)
	store.GetLimiter("fresh")

	assert.Equal(t, 1, store.Cleanup(5*time.Minute))
	assert.Equal(t, 1, store.Len())
}

func TestLimiterStore_Unlimited(t *testing.T) {
	store := PerMinute(0)
	for i := 0; i < 100; i++ {
		require.True(t, store.Allow("k"))
	}
}

func TestTokenLimiter(t *testing.T) {
	l := NewTokenLimiterWithPeriod(2, time.Hour)

	require.NoError(t, l.Wait(context.Background(), 1))
	require.NoError(t, l.Wait(context.Background(), 1))
	assert.Equal(t, 0, l.GetRemaining())
	assert.False(t, l.TryAcquire(1))

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx, 1), context.DeadlineExceeded)
}

func TestTokenLimiter_Refill(t *testing.T) {
	l := NewTokenLimiterWithPeriod(1, 20*time.Millisecond)
	l.pollInterval = 5 * time.Millisecond

	require.True(t, l.TryAcquire(1))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, l.Wait(ctx, 1))
}
