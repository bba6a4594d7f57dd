package biz

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"farmlokal/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTokenRepo is an in-memory TokenRepo with real SETNX-style lock
// semantics, good enough to exercise the coordination paths concurrently.
type fakeTokenRepo struct {
	mu     sync.Mutex
	token  string
	locked bool

	failReads bool
}

func (f *fakeTokenRepo) GetToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return "", errors.New("store unreachable")
	}
	return f.token, nil
}

func (f *fakeTokenRepo) SaveToken(_ context.Context, token string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
	return nil
}

func (f *fakeTokenRepo) DeleteToken(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	return nil
}

func (f *fakeTokenRepo) TokenExists(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token != "", nil
}

func (f *fakeTokenRepo) AcquireRefreshLock(context.Context, time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locked {
		return false, nil
	}
	f.locked = true
	return true, nil
}

func (f *fakeTokenRepo) ReleaseRefreshLock(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked = false
	return nil
}

// countingProvider counts how many times the upstream provider is hit.
type countingProvider struct {
	calls atomic.Int64
	err   error
	delay time.Duration
}

func (p *countingProvider) FetchToken(context.Context) (*Credential, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.err != nil {
		return nil, p.err
	}
	return &Credential{AccessToken: "token-abc", ExpiresIn: time.Hour}, nil
}

func newTestTokenUsecase(repo TokenRepo, provider TokenProvider) *TokenUsecase {
	logger := log.NewStdLogger(os.Stdout)
	return NewTokenUsecase(repo, provider, &conf.Upstream{
		OAuth: &conf.OAuth{
			LockTTL:      time.Second,
			RetryDelay:   10 * time.Millisecond,
			SafetyMargin: time.Minute,
		},
	}, logger)
}

// Test the fast path: a cached token is returned without touching the provider.
func TestGetAccessToken_CacheHit(t *testing.T) {
	repo := &fakeTokenRepo{token: "cached-token"}
	provider := &countingProvider{}
	uc := newTestTokenUsecase(repo, provider)

	token, err := uc.GetAccessToken(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "cached-token", token)
	assert.Equal(t, int64(0), provider.calls.Load())
}

// Test a cold cache: the token is fetched and stored.
func TestGetAccessToken_CacheMissFetches(t *testing.T) {
	repo := &fakeTokenRepo{}
	provider := &countingProvider{}
	uc := newTestTokenUsecase(repo, provider)

	token, err := uc.GetAccessToken(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "token-abc", token)
	assert.Equal(t, int64(1), provider.calls.Load())
	assert.Equal(t, "token-abc", repo.token)
	assert.False(t, repo.locked, "lock must be released after refresh")
}

// Test that concurrent cold-cache callers trigger exactly one provider fetch.
func TestGetAccessToken_SingleFlight(t *testing.T) {
	repo := &fakeTokenRepo{}
	provider := &countingProvider{delay: 50 * time.Millisecond}
	uc := newTestTokenUsecase(repo, provider)

	const workers = 10
	var wg sync.WaitGroup
	tokens := make([]string, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = uc.GetAccessToken(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "token-abc", tokens[i])
	}
	assert.Equal(t, int64(1), provider.calls.Load(), "only the lock holder should hit the provider")
}

// Test the fail-through: an unreachable store means a direct provider fetch.
func TestGetAccessToken_StoreDownFailsThrough(t *testing.T) {
	repo := &fakeTokenRepo{failReads: true}
	provider := &countingProvider{}
	uc := newTestTokenUsecase(repo, provider)

	token, err := uc.GetAccessToken(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "token-abc", token)
	assert.Equal(t, int64(1), provider.calls.Load())
}

// Test that a provider failure surfaces as the typed terminal error.
func TestGetAccessToken_ProviderFailure(t *testing.T) {
	repo := &fakeTokenRepo{}
	provider := &countingProvider{err: errors.New("provider 500")}
	uc := newTestTokenUsecase(repo, provider)

	_, err := uc.GetAccessToken(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "TOKEN_FETCH_FAILED")
}

// Test RefreshToken - evicts the cached entry before fetching.
func TestRefreshToken_ForcesFetch(t *testing.T) {
	repo := &fakeTokenRepo{token: "stale-token"}
	provider := &countingProvider{}
	uc := newTestTokenUsecase(repo, provider)

	token, err := uc.RefreshToken(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "token-abc", token)
	assert.Equal(t, int64(1), provider.calls.Load())
}

// Test IsTokenValid.
func TestIsTokenValid(t *testing.T) {
	repo := &fakeTokenRepo{}
	uc := newTestTokenUsecase(repo, &countingProvider{})

	assert.False(t, uc.IsTokenValid(context.Background()))

	repo.token = "present"
	assert.True(t, uc.IsTokenValid(context.Background()))
}
