package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter keeps fixed-window counts in Redis using INCR with an expiry
// slightly longer than the window so stale keys clean themselves up.
type RedisCounter struct {
	rdb    *redis.Client
	window time.Duration
}

func NewRedisCounter(rdb *redis.Client, window time.Duration) *RedisCounter {
	return &RedisCounter{rdb: rdb, window: window}
}

func (c *RedisCounter) Incr(ctx context.Context, clientID, class string, now time.Time) (int64, error) {
	windowIdx := now.Unix() / int64(c.window.Seconds())
	key := fmt.Sprintf("rl:%s:%s:%d", clientID, class, windowIdx)

	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if err := c.rdb.Expire(ctx, key, c.window+time.Second).Err(); err != nil {
		return 0, fmt.Errorf("expire %s: %w", key, err)
	}
	return count, nil
}
