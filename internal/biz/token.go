package biz

import (
	"context"
	"time"

	"farmlokal/internal/conf"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// Default coordination parameters for the token refresh path.
const (
	defaultLockTTL      = 5 * time.Second
	defaultRetryDelay   = 100 * time.Millisecond
	defaultSafetyMargin = 60 * time.Second
)

// ErrTokenFetchFailed is the terminal outcome when the credential provider
// cannot deliver a token. It is not retried here; retry policy belongs to the
// caller.
var ErrTokenFetchFailed = errors.New(502, "TOKEN_FETCH_FAILED", "failed to fetch access token from provider")

// Credential is a short-lived token returned by the provider together with
// its lifetime.
type Credential struct {
	AccessToken string
	ExpiresIn   time.Duration
}

// TokenProvider is the upstream credential provider collaborator.
type TokenProvider interface {
	FetchToken(ctx context.Context) (*Credential, error)
}

// TokenRepo defines the coordination store operations for the shared token
// entry and its refresh lock.
type TokenRepo interface {
	GetToken(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string, ttl time.Duration) error
	DeleteToken(ctx context.Context) error
	TokenExists(ctx context.Context) (bool, error)
	AcquireRefreshLock(ctx context.Context, ttl time.Duration) (bool, error)
	ReleaseRefreshLock(ctx context.Context) error
}

// TokenUsecase coordinates single-flight fetching of the shared upstream
// credential. At most one refresh runs at a time across all process instances
// sharing the coordination store; other callers wait on the advisory lock and
// pick up the freshly cached entry.
//
// The lock is TTL-bounded and advisory: under clock skew or store failover it
// does not guarantee strict mutual exclusion, it only bounds the staleness
// window to the lock lifetime. An occasional duplicate fetch is harmless.
type TokenUsecase struct {
	repo         TokenRepo
	provider     TokenProvider
	lockTTL      time.Duration
	retryDelay   time.Duration
	safetyMargin time.Duration
	logger       *log.Helper
}

// NewTokenUsecase creates a new token coordinator.
func NewTokenUsecase(repo TokenRepo, provider TokenProvider, c *conf.Upstream, logger log.Logger) *TokenUsecase {
	uc := &TokenUsecase{
		repo:         repo,
		provider:     provider,
		lockTTL:      defaultLockTTL,
		retryDelay:   defaultRetryDelay,
		safetyMargin: defaultSafetyMargin,
		logger:       log.NewHelper(logger),
	}

	if c != nil && c.OAuth != nil {
		if c.OAuth.LockTTL > 0 {
			uc.lockTTL = c.OAuth.LockTTL
		}
		if c.OAuth.RetryDelay > 0 {
			uc.retryDelay = c.OAuth.RetryDelay
		}
		if c.OAuth.SafetyMargin > 0 {
			uc.safetyMargin = c.OAuth.SafetyMargin
		}
	}

	return uc
}

// GetAccessToken returns a valid credential, fetching a fresh one when
// necessary. The fast path is a single cache read with no lock. On a miss the
// caller races for the refresh lock; losers sleep retryDelay and restart from
// the cache read, bounded by the lock's own TTL so waiting can never be
// indefinite.
func (uc *TokenUsecase) GetAccessToken(ctx context.Context) (string, error) {
	// The lock holder finishes (or its lock expires) within lockTTL, so
	// lockTTL/retryDelay attempts are enough for any waiter.
	maxAttempts := int(uc.lockTTL/uc.retryDelay) + 1

	for attempt := 0; attempt < maxAttempts; attempt++ {
		token, err := uc.repo.GetToken(ctx)
		if err != nil {
			// Store unreachable: fail through to the provider directly.
			uc.logger.Warnf("token cache unavailable: %v (fetching directly)", err)
			return uc.fetchAndCache(ctx)
		}
		if token != "" {
			uc.logger.Debug("using cached access token")
			return token, nil
		}

		acquired, err := uc.repo.AcquireRefreshLock(ctx, uc.lockTTL)
		if err != nil {
			uc.logger.Warnf("refresh lock unavailable: %v (fetching directly)", err)
			return uc.fetchAndCache(ctx)
		}

		if !acquired {
			// Another holder is refreshing; wait briefly and re-read.
			uc.logger.Debugw("token refresh lock contended, waiting",
				"attempt", attempt+1,
				"delay", uc.retryDelay)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(uc.retryDelay):
			}
			continue
		}

		return uc.refreshLocked(ctx)
	}

	// The lock TTL elapsed without a usable token appearing.
	return "", ErrTokenFetchFailed
}

// refreshLocked runs the locked section of the refresh. The lock is released
// unconditionally on the way out, success or failure.
func (uc *TokenUsecase) refreshLocked(ctx context.Context) (string, error) {
	defer func() {
		if err := uc.repo.ReleaseRefreshLock(ctx); err != nil {
			// The lock self-expires after lockTTL, so this only delays
			// the next refresh.
			uc.logger.Warnf("failed to release refresh lock: %v", err)
		}
	}()

	// Another holder may have finished between our miss and the acquire.
	token, err := uc.repo.GetToken(ctx)
	if err == nil && token != "" {
		uc.logger.Debug("token refreshed by another holder")
		return token, nil
	}

	return uc.fetchAndCache(ctx)
}

// fetchAndCache calls the provider and stores the credential with a TTL of
// its lifetime minus the safety margin. A failed cache write does not fail
// the call; the token is still handed to the caller.
func (uc *TokenUsecase) fetchAndCache(ctx context.Context) (string, error) {
	uc.logger.Info("fetching fresh access token from provider")

	cred, err := uc.provider.FetchToken(ctx)
	if err != nil {
		uc.logger.Errorw("token fetch failed", "error", err)
		return "", ErrTokenFetchFailed.WithCause(err)
	}

	ttl := cred.ExpiresIn - uc.safetyMargin
	if ttl <= 0 {
		ttl = cred.ExpiresIn
	}

	if err := uc.repo.SaveToken(ctx, cred.AccessToken, ttl); err != nil {
		uc.logger.Warnf("failed to cache access token: %v", err)
	} else {
		uc.logger.Infow("access token cached", "ttl", ttl)
	}

	return cred.AccessToken, nil
}

// RefreshToken forces eviction of the current entry and fetches a fresh
// credential through the normal path.
func (uc *TokenUsecase) RefreshToken(ctx context.Context) (string, error) {
	if err := uc.repo.DeleteToken(ctx); err != nil {
		uc.logger.Warnf("failed to evict token before refresh: %v", err)
	}
	return uc.GetAccessToken(ctx)
}

// IsTokenValid reports whether a cached credential is present, without
// forcing a fetch.
func (uc *TokenUsecase) IsTokenValid(ctx context.Context) bool {
	exists, err := uc.repo.TokenExists(ctx)
	if err != nil {
		uc.logger.Warnf("token validity check failed: %v", err)
		return false
	}
	return exists
}
