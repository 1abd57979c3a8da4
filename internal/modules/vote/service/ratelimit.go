package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter keyed by actor. The count is
// moved with a single INCR so concurrent requests cannot race a
// read-then-write on the shared counter; the window key expires on its
// own, no sweeper needed.
type RateLimiter struct {
	rdb    *redis.Client
	window time.Duration
	max    int
}

func NewRateLimiter(rdb *redis.Client, window time.Duration, max int) *RateLimiter {
	return &RateLimiter{rdb: rdb, window: window, max: max}
}

// Allow reports whether the actor may perform the action in the
// current window. Without redis it always allows.
func (l *RateLimiter) Allow(ctx context.Context, userID uuid.UUID, action string) (bool, error) {
	if l.rdb == nil || l.max <= 0 {
		return true, nil
	}

	windowID := time.Now().UnixMilli() / l.window.Milliseconds()
	key := fmt.Sprintf("rate_limit:%s:%s:%d", action, userID.String(), windowID)

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to bump rate limit counter: %w", err)
	}
	if count == 1 {
		// First hit owns the expiry; stale windows clean themselves up.
		l.rdb.Expire(ctx, key, l.window)
	}

	return count <= int64(l.max), nil
}
