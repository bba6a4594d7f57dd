package biz

import (
	"context"
	"encoding/json"
	"time"

	"farmlokal/internal/conf"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// Retry defaults for upstream fetches.
const (
	defaultMaxRetries = 3
	retryBackoffBase  = 100 * time.Millisecond
)

// ErrUpstreamUnavailable is the terminal outcome after retries are exhausted
// or the breaker rejects the call.
var ErrUpstreamUnavailable = errors.New(503, "UPSTREAM_UNAVAILABLE", "upstream data provider is unavailable")

// UpstreamClient performs a single fetch against the upstream data provider.
type UpstreamClient interface {
	FetchProduct(ctx context.Context, productID int64, bearer string) (json.RawMessage, error)
}

// UpstreamUsecase fetches product data from the external provider with the
// full resilience chain: bearer credential from the token coordinator, bounded
// retries with exponential backoff, all inside the circuit breaker. The
// breaker observes the whole retried sequence as one call, so a request that
// eventually succeeds counts as one success.
type UpstreamUsecase struct {
	client     UpstreamClient
	tokens     *TokenUsecase
	breaker    *CircuitBreaker
	maxRetries int
	logger     *log.Helper
}

// NewUpstreamUsecase creates a new upstream fetch use case.
func NewUpstreamUsecase(client UpstreamClient, tokens *TokenUsecase, breaker *CircuitBreaker, c *conf.Upstream, logger log.Logger) *UpstreamUsecase {
	maxRetries := defaultMaxRetries
	if c != nil && c.API != nil && c.API.MaxRetries > 0 {
		maxRetries = c.API.MaxRetries
	}

	return &UpstreamUsecase{
		client:     client,
		tokens:     tokens,
		breaker:    breaker,
		maxRetries: maxRetries,
		logger:     log.NewHelper(logger),
	}
}

// NewUpstreamBreaker builds the breaker instance guarding the upstream data
// provider.
func NewUpstreamBreaker(c *conf.Breaker, logger log.Logger) *CircuitBreaker {
	return NewCircuitBreaker("api-a", c, logger)
}

// FetchProduct returns the provider's raw response for one product.
//
// A missing credential does not block the fetch: the provider is called
// without a bearer and decides for itself. Breaker rejections and exhausted
// retries both surface as ErrUpstreamUnavailable.
func (uc *UpstreamUsecase) FetchProduct(ctx context.Context, productID int64) (json.RawMessage, error) {
	bearer, err := uc.tokens.GetAccessToken(ctx)
	if err != nil {
		uc.logger.Warnf("proceeding without bearer token: %v", err)
		bearer = ""
	}

	var payload json.RawMessage
	err = uc.breaker.Do(ctx, func(ctx context.Context) error {
		var fetchErr error
		payload, fetchErr = uc.fetchWithRetry(ctx, productID, bearer)
		return fetchErr
	})
	if err != nil {
		if errors.Is(err, ErrBreakerOpen) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrUpstreamUnavailable.WithCause(err)
	}

	return payload, nil
}

// fetchWithRetry attempts the fetch up to maxRetries times with exponential
// backoff (base 100ms: 100ms, 200ms, 400ms, ...). The last error is returned
// when all attempts fail.
func (uc *UpstreamUsecase) fetchWithRetry(ctx context.Context, productID int64, bearer string) (json.RawMessage, error) {
	var lastErr error

	for attempt := 1; attempt <= uc.maxRetries; attempt++ {
		payload, err := uc.client.FetchProduct(ctx, productID, bearer)
		if err == nil {
			return payload, nil
		}
		lastErr = err

		uc.logger.Warnw("upstream fetch attempt failed",
			"product_id", productID,
			"attempt", attempt,
			"max_retries", uc.maxRetries,
			"error", err)

		if attempt == uc.maxRetries {
			break
		}

		backoff := retryBackoffBase << (attempt - 1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, lastErr
}

// BreakerState exposes the breaker state for the status endpoint.
func (uc *UpstreamUsecase) BreakerState() CircuitState {
	return uc.breaker.State()
}
