package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowHit counts one hit in KEYS[1] and starts the window (ARGV[1] ms)
// on the first hit. It returns {count, remaining window ms}.
var fixedWindowHit = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// Window is the state of a rate-limit window right after a hit was counted.
type Window struct {
	Allowed bool
	Count   int64
	Limit   int64
	ResetIn time.Duration
}

func (w Window) Remaining() int64 {
	return max(w.Limit-w.Count, 0)
}

// FixedWindowAllow counts a hit against scope and reports whether it is
// within limit for the current window.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (Window, error) {
	if c.store == nil {
		return Window{}, errNotInitialized
	}
	if window <= 0 {
		return Window{}, errors.New("rate limit window must be positive")
	}

	key := c.RateLimitKey(scope)
	res, err := fixedWindowHit.Run(ctx, c.store, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Window{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(res) != 2 {
		return Window{}, fmt.Errorf("rate limit %s: unexpected reply %v", key, res)
	}
	return Window{
		Allowed: res[0] <= limit,
		Count:   res[0],
		Limit:   limit,
		ResetIn: time.Duration(res[1]) * time.Millisecond,
	}, nil
}
