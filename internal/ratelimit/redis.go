package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"referral-service/internal/models"
)

// RedisLimiter implements Limiter over a Redis sorted set per referrer,
// scored by attempt time. It lets multiple service instances share one
// window.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	max    int
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter creates a Redis-backed limiter. It pings the server
// so misconfiguration fails at startup rather than on the first
// referral.
func NewRedisLimiter(addr, password string, db, max int, window time.Duration) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisLimiter{
		client: client,
		prefix: "ratelimit:referral:",
		max:    max,
		window: window,
		now:    time.Now,
	}, nil
}

// SetClock replaces the limiter's time source for tests.
func (l *RedisLimiter) SetClock(now func() time.Time) {
	l.now = now
}

func (l *RedisLimiter) key(referrerID string) string {
	return l.prefix + referrerID
}

func (l *RedisLimiter) CanMakeReferral(ctx context.Context, referrerID string) (models.RateLimitDecision, error) {
	now := l.now()
	cutoff := now.Add(-l.window)
	key := l.key(referrerID)

	if err := l.client.ZRemRangeByScore(ctx, key, "0", formatScore(cutoff)).Err(); err != nil {
		return models.RateLimitDecision{}, fmt.Errorf("pruning rate limit window: %w", err)
	}

	count, err := l.client.ZCard(ctx, key).Result()
	if err != nil {
		return models.RateLimitDecision{}, fmt.Errorf("counting rate limit window: %w", err)
	}
	if count < int64(l.max) {
		return models.RateLimitDecision{Allowed: true}, nil
	}

	oldest, err := l.client.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil {
		return models.RateLimitDecision{}, fmt.Errorf("reading oldest attempt: %w", err)
	}
	if len(oldest) == 0 {
		return models.RateLimitDecision{Allowed: true}, nil
	}

	oldestAt := time.UnixMilli(int64(oldest[0].Score))
	return denied(oldestAt, now, l.window, l.max), nil
}

func (l *RedisLimiter) RecordReferral(ctx context.Context, referrerID string) error {
	now := l.now()
	key := l.key(referrerID)

	pipe := l.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: uuid.New().String(), // unique per attempt
	})
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording referral attempt: %w", err)
	}
	return nil
}

func (l *RedisLimiter) ClearAll(ctx context.Context) error {
	iter := l.client.Scan(ctx, 0, l.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := l.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("clearing rate limit key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning rate limit keys: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

func formatScore(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
