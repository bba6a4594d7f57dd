package data

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// RateLimitRepo implements biz.RateLimitRepo over Redis.
// Interfaces are defined in the biz layer following the Kratos v2 DDD layout.
type RateLimitRepo struct {
	rdb    *redis.Client
	logger *log.Helper
}

// NewRateLimitRepo creates a new rate limit repository.
func NewRateLimitRepo(rdb *redis.Client, logger log.Logger) *RateLimitRepo {
	return &RateLimitRepo{
		rdb:    rdb,
		logger: log.NewHelper(logger),
	}
}

// GetCount retrieves the current window count for a client.
// Returns 0 if no window is open for the key.
func (r *RateLimitRepo) GetCount(ctx context.Context, clientID string) (int64, error) {
	if r.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	count, err := r.rdb.Get(ctx, rateLimitKey(clientID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get rate limit count: %w", err)
	}

	return count, nil
}

// IncrementWindow atomically increments the client's counter and re-arms its
// TTL in a single pipelined round trip, so a counter can never survive past
// its window. Returns the post-increment count.
func (r *RateLimitRepo) IncrementWindow(ctx context.Context, clientID string, window time.Duration) (int64, error) {
	if r.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	key := rateLimitKey(clientID)

	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.PExpire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment rate limit window: %w", err)
	}

	return incr.Val(), nil
}

// rateLimitKey generates the Redis key for a client's window counter.
// Format: ratelimit:{clientId}
func rateLimitKey(clientID string) string {
	return fmt.Sprintf("%s:%s", CacheKeyRateLimit, clientID)
}
