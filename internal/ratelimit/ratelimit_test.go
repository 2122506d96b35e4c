package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRateLimitUnit(t *testing.T) {
	d, err := parseRateLimitUnit("1min")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)

	_, err = parseRateLimitUnit("fortnight")
	assert.Error(t, err)
}

func TestInMemoryBucketRefills(t *testing.T) {
	storage := NewInMemoryRateLimiterStorage()
	defer storage.Stop()

	now := time.Now()
	storage.now = func() time.Time { return now }
	limit := RateLimit{Limit: 2, Unit: "1min"}

	for i := 0; i < 2; i++ {
		ok, err := storage.Allow(context.Background(), "login:1.2.3.4", limit)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := storage.Allow(context.Background(), "login:1.2.3.4", limit)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = storage.Allow(context.Background(), "login:5.6.7.8", limit)
	require.NoError(t, err)
	assert.True(t, ok, "keys have independent buckets")

	now = now.Add(45 * time.Second)
	ok, err = storage.Allow(context.Background(), "login:1.2.3.4", limit)
	require.NoError(t, err)
	assert.True(t, ok, "refilled after most of a window")
}

func TestInMemoryEvictsIdleBuckets(t *testing.T) {
	storage := NewInMemoryRateLimiterStorage()
	defer storage.Stop()

	now := time.Now()
	storage.now = func() time.Time { return now }
	_, err := storage.Allow(context.Background(), "k", RateLimit{Limit: 1, Unit: "1s"})
	require.NoError(t, err)

	storage.evict(now.Add(time.Second))
	assert.Len(t, storage.buckets, 1)

	storage.evict(now.Add(3 * time.Second))
	assert.Empty(t, storage.buckets)
}

type failingStorage struct{}

func (failingStorage) Allow(context.Context, string, RateLimit) (bool, error) {
	return false, errors.New("redis down")
}

func TestLimiter(t *testing.T) {
	storage := NewInMemoryRateLimiterStorage()
	defer storage.Stop()

	limiter, err := NewLimiter(storage, RateLimit{Limit: 1, Unit: "1h"})
	require.NoError(t, err)

	assert.NoError(t, limiter.Check(context.Background(), "a"))
	assert.ErrorIs(t, limiter.Check(context.Background(), "a"), ErrRateLimited)

	open, err := NewLimiter(failingStorage{}, RateLimit{Limit: 1, Unit: "1h"})
	require.NoError(t, err)
	assert.NoError(t, open.Check(context.Background(), "a"))

	_, err = NewLimiter(storage, RateLimit{Limit: 0, Unit: "1h"})
	assert.Error(t, err)
	_, err = NewLimiter(storage, RateLimit{Limit: 1, Unit: "forever"})
	assert.Error(t, err)
}
