package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InMemoryRateLimiterStorage keeps token buckets in process memory. Limits are
// per instance.
type InMemoryRateLimiterStorage struct {
	mu          sync.Mutex
	buckets     map[string]*tokenBucket
	now         func() time.Time
	cleanup     *time.Ticker
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewInMemoryRateLimiterStorage creates a new in-memory rate limiter storage.
// It includes a background cleanup goroutine to remove unused buckets.
func NewInMemoryRateLimiterStorage() *InMemoryRateLimiterStorage {
	storage := &InMemoryRateLimiterStorage{
		buckets:     make(map[string]*tokenBucket),
		now:         time.Now,
		cleanup:     time.NewTicker(5 * time.Minute),
		stopCleanup: make(chan struct{}),
	}

	go storage.cleanupUnusedBuckets()

	return storage
}

// Stop stops the background cleanup goroutine. Call this when shutting down.
func (s *InMemoryRateLimiterStorage) Stop() {
	s.stopOnce.Do(func() {
		s.cleanup.Stop()
		close(s.stopCleanup)
	})
}

func (s *InMemoryRateLimiterStorage) Allow(ctx context.Context, key string, rateLimit RateLimit) (bool, error) {
	duration, err := parseRateLimitUnit(rateLimit.Unit)
	if err != nil {
		return false, fmt.Errorf("invalid rate limit unit: %w", err)
	}

	now := s.now()
	bucketKey := key + ":" + rateLimit.Unit

	s.mu.Lock()
	bucket, exists := s.buckets[bucketKey]
	if !exists {
		bucket = newTokenBucket(float64(rateLimit.Limit), duration, now)
		s.buckets[bucketKey] = bucket
	}
	s.mu.Unlock()

	return bucket.consume(1, now), nil
}

func (s *InMemoryRateLimiterStorage) cleanupUnusedBuckets() {
	for {
		select {
		case <-s.cleanup.C:
			s.evict(s.now())
		case <-s.stopCleanup:
			return
		}
	}
}

// evict drops buckets that have been idle for twice their window.
func (s *InMemoryRateLimiterStorage) evict(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, bucket := range s.buckets {
		bucket.mu.Lock()
		idle := now.Sub(bucket.lastRefill)
		bucket.mu.Unlock()
		if idle > bucket.windowDuration*2 {
			delete(s.buckets, key)
		}
	}
}
