// Package ratelimit implements fixed-window request limiting keyed by
// client identity and endpoint class. Counts live in Redis when a client
// is reachable at startup; otherwise an in-process counter is used. The
// in-process fallback keeps no history across restarts and is not a
// precise distributed limiter.
package ratelimit

import (
	"context"
	"time"

	"github.com/ragnotes/notebook-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Counter increments the request count for one (client, class) pair in the
// window containing now and reports the post-increment count.
type Counter interface {
	Incr(ctx context.Context, clientID, class string, now time.Time) (int64, error)
}

type Limiter struct {
	window  time.Duration
	limits  map[string]int
	counter Counter

	// fallback absorbs runtime failures of the primary counter without
	// flipping the configured backend per request.
	fallback Counter
}

type Options struct {
	Window time.Duration
	// Limits maps an endpoint class ("upload", "ask") to its per-window cap.
	Limits map[string]int
}

// New selects the counter backend once at construction time: Redis when the
// given client answers a ping, the in-process counter otherwise.
func New(ctx context.Context, rdb *redis.Client, opts Options) *Limiter {
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}
	mem := NewMemoryCounter(opts.Window)
	l := &Limiter{
		window:   opts.Window,
		limits:   opts.Limits,
		counter:  mem,
		fallback: mem,
	}
	if rdb != nil {
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("Redis unreachable, rate limiter using in-process counters")
		} else {
			l.counter = NewRedisCounter(rdb, opts.Window)
			logger.Info("Rate limiter using Redis counters")
		}
	}
	return l
}

// Limit reports the configured cap for an endpoint class, zero meaning the
// class is not limited.
func (l *Limiter) Limit(class string) int {
	return l.limits[class]
}

// Allow counts one request and reports whether it stays within the class
// limit. Unlimited classes are always allowed and not counted.
func (l *Limiter) Allow(ctx context.Context, clientID, class string) bool {
	limit := l.limits[class]
	if limit <= 0 {
		return true
	}

	now := time.Now()
	count, err := l.counter.Incr(ctx, clientID, class, now)
	if err != nil {
		logger.WithError(err).Warn("rate limit counter failed, falling back to in-process counter")
		count, err = l.fallback.Incr(ctx, clientID, class, now)
		if err != nil {
			// Both backends failing means we cannot count at all; let the
			// request through rather than hard-failing the endpoint.
			return true
		}
	}
	return count <= int64(limit)
}
