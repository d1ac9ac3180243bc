package memory

import (
	"context"
	"math"
	"sync"
	"time"

	"wallet-ledger/internal/core/ports"

	"golang.org/x/time/rate"
)

// RateLimitStore implements ports.RateLimitStore with a token bucket per key.
// It is the single-instance fallback used when Redis is disabled: a rule of
// limit requests per window becomes a bucket of size limit refilled at
// limit/window.
type RateLimitStore struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimitStore creates an empty in-process rate limit store.
func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{limiters: make(map[string]*rate.Limiter)}
}

// Allow takes one token from key's bucket.
func (s *RateLimitStore) Allow(_ context.Context, key string, limit int64, window time.Duration) (*ports.RateLimitResult, error) {
	lim := s.limiter(key, limit, window)

	now := time.Now()
	allowed := lim.AllowN(now, 1)

	remaining := int64(math.Floor(lim.TokensAt(now)))
	if remaining < 0 {
		remaining = 0
	}

	// time until the next whole token is available
	perToken := time.Duration(float64(time.Second) / float64(lim.Limit()))
	resetAt := now.Add(perToken).Unix()

	return &ports.RateLimitResult{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

func (s *RateLimitStore) limiter(key string, limit int64, window time.Duration) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lim, ok := s.limiters[key]; ok {
		return lim
	}
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	lim := rate.NewLimiter(rate.Limit(float64(limit)/window.Seconds()), int(limit))
	s.limiters[key] = lim
	return lim
}
