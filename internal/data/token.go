package data

import (
	"context"
	"fmt"
	"time"

	"farmlokal/pkg/crypto"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// TokenRepo implements biz.TokenRepo over Redis.
// The token value is AES-256-GCM encrypted at rest when a crypto service is
// configured; the refresh lock is an advisory SETNX marker with a TTL so a
// crashed holder can never wedge refreshes for longer than the lock lifetime.
type TokenRepo struct {
	rdb    *redis.Client
	aes    *crypto.AESCrypto
	logger *log.Helper
}

// NewTokenRepo creates a new token repository. aes may be nil, in which case
// the token is stored in plaintext.
func NewTokenRepo(rdb *redis.Client, aes *crypto.AESCrypto, logger log.Logger) *TokenRepo {
	return &TokenRepo{
		rdb:    rdb,
		aes:    aes,
		logger: log.NewHelper(logger),
	}
}

// GetToken retrieves the shared access token.
// Returns ("", nil) when no valid token entry exists.
func (r *TokenRepo) GetToken(ctx context.Context) (string, error) {
	if r.rdb == nil {
		return "", fmt.Errorf("redis client is nil")
	}

	val, err := r.rdb.Get(ctx, CacheKeyToken).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}

	if r.aes != nil {
		plain, err := r.aes.Decrypt(val)
		if err != nil {
			// An undecryptable entry is as good as a miss; drop it so the
			// next refresh overwrites it.
			r.logger.Warnw("failed to decrypt cached token, evicting", "error", err)
			_ = r.rdb.Del(ctx, CacheKeyToken).Err()
			return "", nil
		}
		return plain, nil
	}

	return val, nil
}

// SaveToken stores the access token with the given TTL.
func (r *TokenRepo) SaveToken(ctx context.Context, token string, ttl time.Duration) error {
	if r.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	val := token
	if r.aes != nil {
		encrypted, err := r.aes.Encrypt(token)
		if err != nil {
			return fmt.Errorf("failed to encrypt token: %w", err)
		}
		val = encrypted
	}

	if err := r.rdb.Set(ctx, CacheKeyToken, val, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	return nil
}

// DeleteToken evicts the token entry, forcing the next read to refresh.
func (r *TokenRepo) DeleteToken(ctx context.Context) error {
	if r.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	if err := r.rdb.Del(ctx, CacheKeyToken).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	return nil
}

// TokenExists reports whether a valid token entry is present.
func (r *TokenRepo) TokenExists(ctx context.Context) (bool, error) {
	if r.rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	count, err := r.rdb.Exists(ctx, CacheKeyToken).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token existence: %w", err)
	}

	return count > 0, nil
}

// AcquireRefreshLock attempts to take the refresh lock with SETNX.
// Returns true when this caller holds the lock.
func (r *TokenRepo) AcquireRefreshLock(ctx context.Context, ttl time.Duration) (bool, error) {
	if r.rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	acquired, err := r.rdb.SetNX(ctx, CacheKeyTokenLock, "locked", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire refresh lock: %w", err)
	}

	return acquired, nil
}

// ReleaseRefreshLock releases the refresh lock.
// Best-effort: the lock self-expires if this fails.
func (r *TokenRepo) ReleaseRefreshLock(ctx context.Context) error {
	if r.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	if err := r.rdb.Del(ctx, CacheKeyTokenLock).Err(); err != nil {
		return fmt.Errorf("failed to release refresh lock: %w", err)
	}

	return nil
}
