// Package ratelimit throttles unauthenticated endpoints such as login and
// registration with per-key token buckets.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/curaious/synergy/internal/config"
	"github.com/redis/go-redis/v9"
)

var ErrRateLimited = errors.New("too many requests")

// RateLimit allows Limit requests per Unit (see parseRateLimitUnit).
type RateLimit struct {
	Limit int
	Unit  string
}

// Storage keeps token bucket state.
type Storage interface {
	Allow(ctx context.Context, key string, rateLimit RateLimit) (allowed bool, err error)
}

// Limiter applies one RateLimit to any number of keys.
type Limiter struct {
	storage   Storage
	rateLimit RateLimit
}

func NewLimiter(storage Storage, rateLimit RateLimit) (*Limiter, error) {
	if rateLimit.Limit <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", rateLimit.Limit)
	}
	if _, err := parseRateLimitUnit(rateLimit.Unit); err != nil {
		return nil, err
	}
	return &Limiter{storage: storage, rateLimit: rateLimit}, nil
}

// Check consumes a token for key, or returns ErrRateLimited. Storage failures
// let the request through.
func (l *Limiter) Check(ctx context.Context, key string) error {
	allowed, err := l.storage.Allow(ctx, key, l.rateLimit)
	if err != nil {
		slog.WarnContext(ctx, "Rate limiter unavailable, allowing request", slog.String("key", key), slog.Any("error", err))
		return nil
	}
	if !allowed {
		return ErrRateLimited
	}
	return nil
}

// NewStorage returns Redis-backed storage when REDIS_HOST is configured and
// in-memory storage otherwise.
func NewStorage(ctx context.Context, conf *config.Config) Storage {
	if conf.REDIS_HOST == "" {
		slog.Info("Using in-memory rate limiter")
		return NewInMemoryRateLimiterStorage()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     conf.REDIS_HOST + ":" + conf.REDIS_PORT,
		Username: conf.REDIS_USERNAME,
		Password: conf.REDIS_PASSWORD,
		DB:       conf.REDIS_DB,
	})

	storage := NewRedisRateLimiterStorage(client, "synergy:rate_limit:")
	if err := storage.Ping(ctx); err != nil {
		slog.Warn("Unable to reach redis, falling back to in-memory rate limiter", slog.Any("error", err))
		_ = storage.Close()
		return NewInMemoryRateLimiterStorage()
	}

	slog.Info("Using redis rate limiter", slog.String("addr", client.Options().Addr))
	return storage
}
