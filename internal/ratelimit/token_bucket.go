package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// tokenBucket represents a single token bucket for rate limiting.
type tokenBucket struct {
	mu             sync.Mutex
	tokens         float64
	lastRefill     time.Time
	capacity       float64
	refillRate     float64 // tokens per second
	windowDuration time.Duration
}

func newTokenBucket(capacity float64, windowDuration time.Duration, now time.Time) *tokenBucket {
	return &tokenBucket{
		tokens:         capacity,
		lastRefill:     now,
		capacity:       capacity,
		refillRate:     capacity / windowDuration.Seconds(),
		windowDuration: windowDuration,
	}
}

// consume refills the bucket up to now and then tries to take tokens.
func (tb *tokenBucket) consume(tokens float64, now time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+elapsed*tb.refillRate)
		tb.lastRefill = now
	}

	if tb.tokens >= tokens {
		tb.tokens -= tokens
		return true
	}

	return false
}

// parseRateLimitUnit converts a rate limit unit string to a time.Duration.
// Supported units: 1s, 1min, 1h, 6h, 12h, 1d
func parseRateLimitUnit(unit string) (time.Duration, error) {
	switch unit {
	case "1s":
		return time.Second, nil
	case "1min":
		return time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "6h":
		return 6 * time.Hour, nil
	case "12h":
		return 12 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported rate limit unit: %s", unit)
	}
}
