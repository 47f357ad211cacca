package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var incrWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// IncrWindow 在固定窗口内原子自增计数，首次写入时设置过期
func IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	if !Enabled() {
		return 0, nil
	}
	if window <= 0 {
		window = time.Minute
	}
	return incrWindowScript.Run(ctx, redisClient, []string{buildKey("rl:" + key)}, window.Milliseconds()).Int64()
}
