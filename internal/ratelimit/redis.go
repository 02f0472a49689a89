package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/member-portal/internal/clock"
)

// slidingWindow keeps one sorted-set member per admitted attempt, scored by
// its time in milliseconds. It returns {allowed, remaining, retry_after_ms}.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now_ms - window_ms)
	local count = redis.call('ZCARD', key)

	if count >= limit then
		local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
		local retry_ms = window_ms
		if oldest[2] then
			retry_ms = tonumber(oldest[2]) + window_ms - now_ms
			if retry_ms < 0 then retry_ms = 0 end
		end
		return { 0, 0, retry_ms }
	end

	redis.call('ZADD', key, now_ms, member)
	redis.call('PEXPIRE', key, window_ms)
	return { 1, limit - count - 1, 0 }
`)

// RedisLimiter shares the window across every server instance that talks
// to the same Redis.
type RedisLimiter struct {
	rdb    redis.Scripter
	limit  int
	window time.Duration
	clock  clock.Clock
}

func NewRedisLimiter(rdb redis.Scripter, limit int, window time.Duration, clk clock.Clock) *RedisLimiter {
	if clk == nil {
		clk = clock.Real()
	}
	return &RedisLimiter{rdb: rdb, limit: limit, window: window, clock: clk}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	args := []interface{}{
		l.clock.Now().UnixMilli(),
		l.window.Milliseconds(),
		l.limit,
		uuid.NewString(),
	}
	vals, err := slidingWindow.Run(ctx, l.rdb, []string{key}, args...).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script: %w", err)
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 3 {
		return Result{}, fmt.Errorf("rate limit script: unexpected result %#v", vals)
	}
	res := Result{
		Allowed:   asInt64(arr[0]) == 1,
		Limit:     l.limit,
		Remaining: int(asInt64(arr[1])),
	}
	if !res.Allowed {
		res.RetryAfter = time.Duration(asInt64(arr[2])) * time.Millisecond
	}
	return res, nil
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
