package ratelimit

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter is the single-instance fallback used when Redis is disabled.
type MemoryLimiter struct {
	counters *gocache.Cache
	max      int64
	window   time.Duration
	now      func() time.Time
}

// NewMemoryLimiter builds a limiter allowing max hits per window.
func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		counters: gocache.New(window, 2*window),
		max:      int64(max),
		window:   window,
		now:      time.Now,
	}
}

// Allow counts one hit for key in the current window.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now().UTC()
	winStart := now.Truncate(l.window)
	counterKey := fmt.Sprintf("%s:%d", key, winStart.Unix())

	hits, err := l.hit(counterKey)
	if err != nil {
		return Result{}, err
	}
	return result(hits, l.max, winStart.Add(l.window).Sub(now)), nil
}

func (l *MemoryLimiter) hit(key string) (int64, error) {
	for attempt := 0; attempt < 2; attempt++ {
		if err := l.counters.Add(key, int64(1), l.window); err == nil {
			return 1, nil
		}
		hits, err := l.counters.IncrementInt64(key, 1)
		if err == nil {
			return hits, nil
		}
	}
	return 0, fmt.Errorf("rate limit counter %s unavailable", key)
}
