package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"referral-service/internal/models"
)

const (
	// DefaultMaxAttempts is how many referrals one referrer may start
	// per window.
	DefaultMaxAttempts = 5
	// DefaultWindow is the sliding-window length.
	DefaultWindow = time.Hour
)

// Limiter gates referral attempts per referrer over a sliding window.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// CanMakeReferral is consulted before any remote work is attempted.
	CanMakeReferral(ctx context.Context, referrerID string) (models.RateLimitDecision, error)
	// RecordReferral records an accepted attempt. It is called once the
	// attempt is accepted for processing, regardless of downstream
	// outcome.
	RecordReferral(ctx context.Context, referrerID string) error
	// ClearAll resets every referrer window.
	ClearAll(ctx context.Context) error
}

// MemoryLimiter keeps per-referrer attempt timestamps in process
// memory. One instance per process; it does not coordinate across
// instances.
type MemoryLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	max      int
	window   time.Duration
	now      func() time.Time
}

// NewMemoryLimiter creates an in-memory limiter allowing max attempts
// per window.
func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		attempts: make(map[string][]time.Time),
		max:      max,
		window:   window,
		now:      time.Now,
	}
}

// SetClock replaces the limiter's time source. Tests use this to move
// the window without sleeping.
func (l *MemoryLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *MemoryLimiter) CanMakeReferral(ctx context.Context, referrerID string) (models.RateLimitDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := pruneOld(l.attempts[referrerID], now.Add(-l.window))
	l.attempts[referrerID] = recent

	if len(recent) < l.max {
		return models.RateLimitDecision{Allowed: true}, nil
	}

	return denied(recent[0], now, l.window, l.max), nil
}

func (l *MemoryLimiter) RecordReferral(ctx context.Context, referrerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.attempts[referrerID] = append(l.attempts[referrerID], l.now())
	return nil
}

func (l *MemoryLimiter) ClearAll(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.attempts = make(map[string][]time.Time)
	return nil
}

// pruneOld drops timestamps at or before cutoff. Input is in insertion
// order, so the first surviving entry is the oldest in the window.
func pruneOld(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	return stamps[i:]
}

// denied builds the decision for an exhausted window. retryAfter is the
// number of minutes until the oldest in-window attempt slides out,
// never reported as less than one.
func denied(oldest, now time.Time, window time.Duration, max int) models.RateLimitDecision {
	wait := oldest.Add(window).Sub(now)
	minutes := int(wait.Minutes())
	if wait > 0 && wait%time.Minute != 0 {
		minutes++
	}
	if minutes < 1 {
		minutes = 1
	}

	return models.RateLimitDecision{
		Allowed:    false,
		Reason:     fmt.Sprintf("Referral limit reached (%d per hour)", max),
		RetryAfter: minutes,
	}
}
