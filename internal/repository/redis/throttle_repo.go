package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ThrottleRepo implements repository.ThrottleRepository with a fixed window
// counter (INCR + EXPIRE on first hit).
type ThrottleRepo struct {
	client redis.UniversalClient
}

func NewThrottleRepo(client redis.UniversalClient) (*ThrottleRepo, error) {
	if client == nil {
		return nil, fmt.Errorf("Redis client cannot be nil for ThrottleRepo")
	}
	return &ThrottleRepo{client: client}, nil
}

// Allow increments the window counter for key and reports whether it is still
// within limit. The first increment in a window sets its TTL.
func (r *ThrottleRepo) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment throttle counter: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set throttle window TTL: %w", err)
		}
	}
	return count <= int64(limit), nil
}
