package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// INCR and the first-hit EXPIRE run as one step so a crash between them
// cannot leave a counter without a TTL.
var incrWithTTLScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 and tonumber(ARGV[1]) > 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

var deleteIfEqualsScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// IncrWithTTL increments key and starts its TTL on the first increment.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if c.cmd == nil {
		return 0, errNotInitialized
	}
	return incrWithTTLScript.Run(ctx, c.cmd, []string{key}, ttl.Milliseconds()).Int64()
}

// DeleteIfEquals removes key only while it still holds value. It reports
// whether the key was deleted.
func (c *Client) DeleteIfEquals(ctx context.Context, key, value string) (bool, error) {
	if c.cmd == nil {
		return false, errNotInitialized
	}
	n, err := deleteIfEqualsScript.Run(ctx, c.cmd, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
