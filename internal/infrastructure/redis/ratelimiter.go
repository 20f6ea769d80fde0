package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// hitScript counts one request and starts the window on the first hit.
// Returns {count, pttl}.
var hitScript = goredis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

// Window is the state of one fixed-window counter after a hit.
type Window struct {
	Count int
	Limit int
	TTL   time.Duration
}

func (w Window) Allowed() bool { return w.Limit <= 0 || w.Count <= w.Limit }

func (w Window) Remaining() int { return max(0, w.Limit-w.Count) }

// RetryAfter is zero while the window still has room.
func (w Window) RetryAfter(window time.Duration) time.Duration {
	if w.Allowed() {
		return 0
	}
	if w.TTL > 0 {
		return w.TTL
	}
	return window
}

// FixedWindowLimiter counts requests per key in Redis. Keys are built by the
// HTTP middleware from route, caller and window bucket.
type FixedWindowLimiter struct {
	rdb *goredis.Client
}

func NewFixedWindowLimiter(c *Client) *FixedWindowLimiter {
	if c == nil {
		return &FixedWindowLimiter{}
	}
	return &FixedWindowLimiter{rdb: c.rdb}
}

// Hit records one request against key. Without Redis every hit is allowed.
func (l *FixedWindowLimiter) Hit(ctx context.Context, key string, limit int, window time.Duration) (Window, error) {
	if limit <= 0 || l.rdb == nil {
		return Window{Limit: limit}, nil
	}
	if window < time.Millisecond {
		window = time.Minute
	}

	res, err := hitScript.Run(ctx, l.rdb, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Window{}, fmt.Errorf("ratelimit script: %w", err)
	}
	if len(res) != 2 {
		return Window{}, fmt.Errorf("ratelimit script: unexpected reply %v", res)
	}
	return Window{
		Count: int(res[0]),
		Limit: limit,
		TTL:   time.Duration(res[1]) * time.Millisecond,
	}, nil
}

// Allow is the form the HTTP middleware uses. On Redis errors it allows the
// request and returns the error for logging.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	w, err := l.Hit(ctx, key, limit, window)
	if err != nil {
		return true, 0, err
	}
	return w.Allowed(), w.RetryAfter(window), nil
}
