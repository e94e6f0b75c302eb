package handlers

import (
	"strings"
	"sync"
	"time"
)

// orderRateLimiter throttles order creation per buyer. It is process local; replicas
// each keep their own window.
type orderRateLimiter interface {
	Allow(key string) (bool, time.Duration)
}

type windowRateLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	buckets map[string]window
}

type window struct {
	count int
	reset time.Time
}

// newWindowRateLimiter returns nil when limiting is disabled.
func newWindowRateLimiter(limit int, period time.Duration, clock func() time.Time) orderRateLimiter {
	if limit <= 0 || period <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &windowRateLimiter{
		limit:   limit,
		window:  period,
		clock:   clock,
		buckets: make(map[string]window),
	}
}

// Allow consumes one slot for key and reports how long to wait when the window is full.
func (l *windowRateLimiter) Allow(key string) (bool, time.Duration) {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[key]
	if !ok || !now.Before(bucket.reset) {
		l.buckets[key] = window{count: 1, reset: now.Add(l.window)}
		l.pruneLocked(now)
		return true, 0
	}
	if bucket.count >= l.limit {
		return false, bucket.reset.Sub(now)
	}
	bucket.count++
	l.buckets[key] = bucket
	return true, 0
}

func (l *windowRateLimiter) pruneLocked(now time.Time) {
	for key, bucket := range l.buckets {
		if !now.Before(bucket.reset) {
			delete(l.buckets, key)
		}
	}
}
