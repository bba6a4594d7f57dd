package biz

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"farmlokal/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyClient fails the first failures calls, then succeeds.
type flakyClient struct {
	failures int
	calls    int
}

func (c *flakyClient) FetchProduct(_ context.Context, productID int64, _ string) (json.RawMessage, error) {
	c.calls++
	if c.calls <= c.failures {
		return nil, errors.New("connection reset")
	}
	return json.RawMessage(`{"id":1}`), nil
}

func newTestUpstream(client UpstreamClient, breakerTimeout time.Duration) *UpstreamUsecase {
	logger := log.NewStdLogger(os.Stdout)

	// Cached token so the fetch path never blocks on the provider.
	tokens := newTestTokenUsecase(&fakeTokenRepo{token: "bearer-token"}, &countingProvider{})

	breaker := NewCircuitBreaker("api-a", &conf.Breaker{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          breakerTimeout,
	}, logger)

	return NewUpstreamUsecase(client, tokens, breaker, &conf.Upstream{
		API: &conf.API{MaxRetries: 3},
	}, logger)
}

// Test the happy path.
func TestFetchProduct_Success(t *testing.T) {
	client := &flakyClient{}
	uc := newTestUpstream(client, time.Minute)

	payload, err := uc.FetchProduct(context.Background(), 1)
	assert.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(payload))
	assert.Equal(t, 1, client.calls)
}

// Test that transient failures are retried and an eventual success counts as
// one breaker success.
func TestFetchProduct_RetriesThenSucceeds(t *testing.T) {
	client := &flakyClient{failures: 2}
	uc := newTestUpstream(client, time.Minute)

	payload, err := uc.FetchProduct(context.Background(), 1)
	assert.NoError(t, err)
	assert.NotNil(t, payload)
	assert.Equal(t, 3, client.calls)
	assert.Equal(t, StateClosed, uc.BreakerState())
}

// Test that exhausted retries surface the typed terminal error.
func TestFetchProduct_RetriesExhausted(t *testing.T) {
	client := &flakyClient{failures: 100}
	uc := newTestUpstream(client, time.Minute)

	_, err := uc.FetchProduct(context.Background(), 1)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "UPSTREAM_UNAVAILABLE")
	assert.Equal(t, 3, client.calls, "three attempts, then stop")
}

// Test that repeated exhausted sequences open the breaker, which then rejects
// without calling the client.
func TestFetchProduct_BreakerOpens(t *testing.T) {
	client := &flakyClient{failures: 100}
	uc := newTestUpstream(client, time.Minute)

	_, err := uc.FetchProduct(context.Background(), 1)
	require.Error(t, err)
	_, err = uc.FetchProduct(context.Background(), 1)
	require.Error(t, err)

	require.Equal(t, StateOpen, uc.BreakerState())
	callsBefore := client.calls

	_, err = uc.FetchProduct(context.Background(), 1)
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.Equal(t, callsBefore, client.calls, "open breaker must not invoke the client")
}

// Test recovery through HALF_OPEN once the upstream heals.
func TestFetchProduct_BreakerRecovers(t *testing.T) {
	client := &flakyClient{failures: 6}
	uc := newTestUpstream(client, 20*time.Millisecond)

	_, err := uc.FetchProduct(context.Background(), 1)
	require.Error(t, err)
	_, err = uc.FetchProduct(context.Background(), 1)
	require.Error(t, err)
	require.Equal(t, StateOpen, uc.BreakerState())

	time.Sleep(30 * time.Millisecond)

	payload, err := uc.FetchProduct(context.Background(), 1)
	assert.NoError(t, err)
	assert.NotNil(t, payload)
	assert.Equal(t, StateClosed, uc.BreakerState())
}
