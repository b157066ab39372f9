package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenLimiter is a fixed window quota, refilled in full once per period.
// Tushare enforces its per-minute quota this way.
type TokenLimiter struct {
	sync.Mutex
	capacity     int
	remaining    int
	refillPeriod time.Duration
	lastRefill   time.Time
	pollInterval time.Duration
}

func NewTokenLimiter(tokensPerMinute int) *TokenLimiter {
	return NewTokenLimiterWithPeriod(tokensPerMinute, time.Minute)
}

func NewTokenLimiterWithPeriod(capacity int, period time.Duration) *TokenLimiter {
	return &TokenLimiter{
		capacity:     capacity,
		remaining:    capacity,
		refillPeriod: period,
		lastRefill:   time.Now(),
		pollInterval: 100 * time.Millisecond,
	}
}

func (l *TokenLimiter) Wait(ctx context.Context, tokens int) error {
	for {
		if l.TryAcquire(tokens) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.pollInterval):
		}
	}
}

func (l *TokenLimiter) TryAcquire(tokens int) bool {
	l.Lock()
	defer l.Unlock()

	l.refillLocked()
	if l.remaining >= tokens {
		l.remaining -= tokens
		return true
	}
	return false
}

func (l *TokenLimiter) refillLocked() {
	now := time.Now()
	if now.Sub(l.lastRefill) >= l.refillPeriod {
		l.remaining = l.capacity
		l.lastRefill = now
	}
}

func (l *TokenLimiter) GetRemaining() int {
	l.Lock()
	defer l.Unlock()
	return l.remaining
}
