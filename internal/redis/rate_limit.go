package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript keeps one sorted-set member per accepted request,
// scored by its time in milliseconds
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local window = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

local current = redis.call('ZCARD', key)
if current < limit then
	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, window)
	return {1, limit - current - 1}
end
return {0, 0}
`)

// SlidingWindowLimiter limits requests per key across every replica sharing
// the redis instance
type SlidingWindowLimiter struct {
	client redis.Scripter
	prefix string
	window time.Duration
	limit  int
	now    func() time.Time
}

// NewSlidingWindowLimiter allows limit requests per key within window
func NewSlidingWindowLimiter(client redis.Scripter, prefix string, window time.Duration, limit int) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		client: client,
		prefix: prefix,
		window: window,
		limit:  limit,
		now:    time.Now,
	}
}

// Allow records a request for key and reports whether it fits in the window
// and how many requests remain
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	res, err := slidingWindowScript.Run(ctx, l.client, []string{l.prefix + key},
		l.window.Milliseconds(), l.limit, l.now().UnixMilli(), uuid.NewString()).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}
	return res[0] == 1, int(res[1]), nil
}
