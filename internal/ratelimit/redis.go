package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills and consumes one bucket atomically. Buckets are
// hashes that expire shortly after their window.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local capacity = tonumber(ARGV[1])
	local refillRate = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local windowSeconds = tonumber(ARGV[4])

	local bucket = redis.call('HMGET', key, 'tokens', 'lastRefill')
	local tokens = tonumber(bucket[1])
	local lastRefill = tonumber(bucket[2])
	if tokens == nil then
		tokens = capacity
	end
	if lastRefill == nil then
		lastRefill = now
	end

	local elapsed = (now - lastRefill) / 1000000000
	if elapsed > 0 then
		tokens = math.min(capacity, tokens + elapsed * refillRate)
	end

	local allowed = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	end

	redis.call('HSET', key, 'tokens', tostring(tokens), 'lastRefill', tostring(now))
	redis.call('EXPIRE', key, math.ceil(windowSeconds * 1.1))

	return allowed
`)

// RedisRateLimiterStorage shares token buckets between server instances.
type RedisRateLimiterStorage struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRateLimiterStorage creates a new Redis-based rate limiter storage.
// keyPrefix defaults to "rate_limit:" if empty.
func NewRedisRateLimiterStorage(client *redis.Client, keyPrefix string) *RedisRateLimiterStorage {
	if keyPrefix == "" {
		keyPrefix = "rate_limit:"
	}

	return &RedisRateLimiterStorage{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (r *RedisRateLimiterStorage) Allow(ctx context.Context, key string, rateLimit RateLimit) (bool, error) {
	duration, err := parseRateLimitUnit(rateLimit.Unit)
	if err != nil {
		return false, fmt.Errorf("invalid rate limit unit: %w", err)
	}

	capacity := float64(rateLimit.Limit)
	result, err := tokenBucketScript.Run(ctx, r.client, []string{r.bucketKey(key, rateLimit.Unit)},
		capacity,
		capacity/duration.Seconds(),
		time.Now().UnixNano(),
		duration.Seconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	return result == 1, nil
}

func (r *RedisRateLimiterStorage) bucketKey(key string, unit string) string {
	return fmt.Sprintf("%s%s:%s", r.keyPrefix, key, unit)
}

// Ping checks if the Redis connection is healthy.
func (r *RedisRateLimiterStorage) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (r *RedisRateLimiterStorage) Close() error {
	return r.client.Close()
}
