package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/member-portal/internal/clock"
)

// MemoryLimiter keeps a log of admitted attempt times per key in process
// memory. It is used when Redis is not configured and in tests.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	clock  clock.Clock

	mu   sync.Mutex
	hits map[string][]time.Time
}

func NewMemoryLimiter(limit int, window time.Duration, clk clock.Clock) *MemoryLimiter {
	if clk == nil {
		clk = clock.Real()
	}
	return &MemoryLimiter{limit: limit, window: window, clock: clk, hits: map[string][]time.Time{}}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.clock.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	log := l.hits[key]
	i := 0
	for i < len(log) && !log[i].After(cutoff) {
		i++
	}
	log = log[i:]

	if len(log) >= l.limit {
		l.hits[key] = log
		return Result{
			Allowed:    false,
			Limit:      l.limit,
			Remaining:  0,
			RetryAfter: log[0].Add(l.window).Sub(now),
		}, nil
	}
	log = append(log, now)
	l.hits[key] = log
	return Result{Allowed: true, Limit: l.limit, Remaining: l.limit - len(log)}, nil
}

// Prune drops keys whose whole log has aged out of the window.
func (l *MemoryLimiter) Prune() {
	cutoff := l.clock.Now().Add(-l.window)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, log := range l.hits {
		if len(log) == 0 || !log[len(log)-1].After(cutoff) {
			delete(l.hits, k)
		}
	}
}
