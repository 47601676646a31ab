package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type limiterClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisRateLimiter allows limit hits per key in each fixed window of length period.
type RedisRateLimiter struct {
	rdb    limiterClient
	limit  int
	period time.Duration
	now    func() time.Time
}

func NewRedisRateLimiter(rdb limiterClient, limit int, period time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{rdb: rdb, limit: limit, period: period, now: time.Now}
}

func (l *RedisRateLimiter) windowKey(key string) string {
	window := l.now().UnixNano() / int64(l.period)
	return "ratelimit:" + key + ":" + strconv.FormatInt(window, 10)
}

// Allow reports true alongside any Redis error so callers can choose to fail open.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.windowKey(key)
	n, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		return true, err
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, k, l.period).Err(); err != nil {
			return true, err
		}
	}
	return n <= int64(l.limit), nil
}
