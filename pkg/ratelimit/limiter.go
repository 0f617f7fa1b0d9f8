package ratelimit

import (
	"context"
	"sync"
	"time"

	"moodlescraper/pkg/config"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request or ctx is done
	Wait(ctx context.Context) error
	// Reset resets the rate limiter state
	Reset()
}

// TokenBucket implements a token bucket that refills continuously at
// capacity tokens per refillPeriod.
type TokenBucket struct {
	capacity     float64
	tokens       float64
	refillPeriod time.Duration
	lastRefill   time.Time
	now          func() time.Time
	mu           sync.Mutex
}

// NewTokenBucket creates a new token bucket rate limiter
func NewTokenBucket(capacity int, refillPeriod time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:     float64(capacity),
		tokens:       float64(capacity),
		refillPeriod: refillPeriod,
		lastRefill:   time.Now(),
		now:          time.Now,
	}
}

// FromSettings builds a limiter allowing RequestsPerMinute with BurstSize
// requests available up front
func FromSettings(s config.RateLimitConfig) *TokenBucket {
	tb := NewTokenBucket(s.RequestsPerMinute, time.Minute)
	if s.BurstSize > 0 && s.BurstSize < s.RequestsPerMinute {
		tb.tokens = float64(s.BurstSize)
	}
	return tb
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for !tb.Allow() {
		timer := time.NewTimer(tb.untilNextToken())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// Reset resets the token bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = tb.now()
}

func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill)
	if elapsed <= 0 || tb.refillPeriod <= 0 {
		return
	}
	tb.tokens += tb.capacity * float64(elapsed) / float64(tb.refillPeriod)
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}

func (tb *TokenBucket) untilNextToken() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.capacity <= 0 {
		return tb.refillPeriod
	}
	missing := 1 - tb.tokens
	if missing <= 0 {
		return time.Millisecond
	}
	wait := time.Duration(missing * float64(tb.refillPeriod) / tb.capacity)
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}
