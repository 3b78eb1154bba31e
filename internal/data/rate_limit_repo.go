package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dialcoach/partner-api/internal/domain/model"
)

// RedisRateLimitRepo enforces per-key request quotas with a fixed
// one-minute window in Redis.
type RedisRateLimitRepo struct {
	client       redis.UniversalClient
	timeProvider TimeProvider
}

// NewRedisRateLimitRepo creates a new RedisRateLimitRepo.
func NewRedisRateLimitRepo(client redis.UniversalClient, tp TimeProvider) *RedisRateLimitRepo {
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &RedisRateLimitRepo{client: client, timeProvider: tp}
}

// incrWindowScript increments the window counter and sets its expiry in a
// single round trip so the window cannot be left without a TTL.
var incrWindowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Allow counts one request against keyID's current window and reports
// whether it fits under limit. The window boundary is the top of the
// minute, so ResetAt is the same for every caller in a given window.
func (r *RedisRateLimitRepo) Allow(ctx context.Context, keyID string, limit int) (*model.RateLimitResult, error) {
	if keyID == "" {
		return nil, errors.New("key id cannot be empty")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}

	now := r.timeProvider.Now().UTC()
	windowStart := now.Truncate(time.Minute)
	resetAt := windowStart.Add(time.Minute)
	redisKey := fmt.Sprintf("ratelimit:%s:%d", keyID, windowStart.Unix())

	// Expiry is padded past the window edge so a clock skewed INCR never
	// resurrects an already-reset counter.
	ttlSeconds := int(resetAt.Sub(now)/time.Second) + 5

	count, err := incrWindowScript.Run(ctx, r.client, []string{redisKey}, ttlSeconds).Int64()
	if err != nil {
		return nil, fmt.Errorf("rate limit incr: %w", err)
	}

	remaining := int64(limit) - count
	if remaining < 0 {
		remaining = 0
	}

	return &model.RateLimitResult{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: int(remaining),
		ResetAt:   resetAt,
	}, nil
}
