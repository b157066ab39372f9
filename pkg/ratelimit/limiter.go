package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LimiterStore hands out one token bucket per key, e.g. per Feishu operator.
type LimiterStore struct {
	limiters map[string]*keyedLimiter
	mu       sync.Mutex
	r        rate.Limit
	burst    int
	now      func() time.Time
}

func NewLimiterStore(r rate.Limit, burst int) *LimiterStore {
	return &LimiterStore{
		limiters: make(map[string]*keyedLimiter),
		r:        r,
		burst:    burst,
		now:      time.Now,
	}
}

// PerMinute builds a store allowing n events per minute with a burst of n.
func PerMinute(n int) *LimiterStore {
	if n <= 0 {
		return NewLimiterStore(rate.Inf, 1)
	}
	return NewLimiterStore(rate.Every(time.Minute/time.Duration(n)), n)
}

func (s *LimiterStore) GetLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, exists := s.limiters[key]; exists {
		entry.lastSeen = s.now()
		return entry.limiter
	}
	limiter := rate.NewLimiter(s.r, s.burst)
	s.limiters[key] = &keyedLimiter{limiter: limiter, lastSeen: s.now()}
	return limiter
}

func (s *LimiterStore) Allow(key string) bool {
	return s.GetLimiter(key).Allow()
}

// Cleanup drops limiters idle for longer than maxIdle and returns how many
// were removed.
func (s *LimiterStore) Cleanup(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	cutoff := s.now().Add(-maxIdle)
	for key, entry := range s.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(s.limiters, key)
			removed++
		}
	}
	return removed
}

func (s *LimiterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}
