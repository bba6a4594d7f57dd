package biz

import (
	"context"
	"fmt"
	"time"

	"farmlokal/internal/conf"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// Default rate limiter configuration: 100 requests per minute.
const (
	defaultRateLimitWindow = time.Minute
	defaultMaxRequests     = 100
)

// RateLimitDecision is the outcome of an admission check. Limit and Remaining
// feed the response metadata headers; Remaining is -1 when the store was
// unreachable and no quota information is available.
type RateLimitDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// NewRateLimitExceededError builds the typed 429 outcome for a rejected
// request, carrying the retry-after hint in seconds.
func NewRateLimitExceededError(retryAfter time.Duration) error {
	return errors.New(
		429,
		"RATE_LIMIT_EXCEEDED",
		fmt.Sprintf("too many requests, retry after %ds", int(retryAfter.Seconds())),
	)
}

// RateLimiterUseCase implements fixed-window request counting per client.
// All window state lives in the coordination store, so the limit holds across
// process instances.
type RateLimiterUseCase struct {
	repo        RateLimitRepo
	window      time.Duration
	maxRequests int
	logger      *log.Helper
}

// NewRateLimiterUseCase creates a new rate limiter use case.
func NewRateLimiterUseCase(repo RateLimitRepo, c *conf.RateLimit, logger log.Logger) *RateLimiterUseCase {
	uc := &RateLimiterUseCase{
		repo:        repo,
		window:      defaultRateLimitWindow,
		maxRequests: defaultMaxRequests,
		logger:      log.NewHelper(logger),
	}

	if c != nil {
		if c.Window > 0 {
			uc.window = c.Window
		}
		if c.MaxRequests > 0 {
			uc.maxRequests = c.MaxRequests
		}
	}

	return uc
}

// Allow decides whether to admit a request from the given client.
//
// Fixed-window algorithm: read the current count; at or above the limit the
// request is rejected with a retry-after hint of one window. Otherwise the
// counter is atomically incremented with its TTL re-armed, and the request is
// admitted with remaining quota computed from the pre-increment count.
//
// The store being unreachable means fail-open: the request is admitted and
// the error goes to the log only, never to the caller. Availability of the
// protected service takes priority over strict quota enforcement.
func (uc *RateLimiterUseCase) Allow(ctx context.Context, clientID string) (*RateLimitDecision, error) {
	count, err := uc.repo.GetCount(ctx, clientID)
	if err != nil {
		uc.logger.Warnf("rate limit check failed for %s: %v (request allowed)", clientID, err)
		return &RateLimitDecision{Allowed: true, Limit: uc.maxRequests, Remaining: -1}, nil
	}

	if count >= int64(uc.maxRequests) {
		uc.logger.Warnw("rate limit exceeded",
			"client_id", clientID,
			"current", count,
			"limit", uc.maxRequests)
		return &RateLimitDecision{
			Allowed:    false,
			Limit:      uc.maxRequests,
			Remaining:  0,
			RetryAfter: uc.window,
		}, nil
	}

	if _, err := uc.repo.IncrementWindow(ctx, clientID, uc.window); err != nil {
		uc.logger.Warnf("rate limit increment failed for %s: %v (request allowed)", clientID, err)
		return &RateLimitDecision{Allowed: true, Limit: uc.maxRequests, Remaining: -1}, nil
	}

	return &RateLimitDecision{
		Allowed:   true,
		Limit:     uc.maxRequests,
		Remaining: uc.maxRequests - int(count) - 1,
	}, nil
}

// Window returns the configured window duration.
func (uc *RateLimiterUseCase) Window() time.Duration {
	return uc.window
}
