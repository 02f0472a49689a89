// Package ratelimit implements per-key sliding-window counters used to throttle
// the authentication endpoints. A key is admitted at most Limit times within
// any Window; rejected attempts do not count against the window.
package ratelimit

import (
	"context"
	"time"
)

// Result describes one admission decision.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // zero when Allowed
}

// Limiter admits or rejects an attempt for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}
