package data

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis instance for testing.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return rdb, mr
}

// Test IncrementWindow - first increment opens the window with a TTL.
func TestIncrementWindow_FirstIncrement(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	defer rdb.Close()

	logger := log.NewStdLogger(os.Stdout)
	repo := NewRateLimitRepo(rdb, logger)

	ctx := context.Background()

	count, err := repo.IncrementWindow(ctx, "client-1", time.Minute)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)

	ttl := rdb.PTTL(ctx, rateLimitKey("client-1")).Val()
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

// Test IncrementWindow - subsequent increments count up.
func TestIncrementWindow_Counts(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	defer rdb.Close()

	logger := log.NewStdLogger(os.Stdout)
	repo := NewRateLimitRepo(rdb, logger)

	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		count, err := repo.IncrementWindow(ctx, "client-1", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}
}

// Test GetCount - missing key reads as zero.
func TestGetCount_NoWindow(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	defer rdb.Close()

	logger := log.NewStdLogger(os.Stdout)
	repo := NewRateLimitRepo(rdb, logger)

	count, err := repo.GetCount(context.Background(), "nobody")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

// Test that the counter resets once the window elapses.
func TestIncrementWindow_WindowExpires(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	defer rdb.Close()

	logger := log.NewStdLogger(os.Stdout)
	repo := NewRateLimitRepo(rdb, logger)

	ctx := context.Background()

	_, err := repo.IncrementWindow(ctx, "client-1", time.Minute)
	require.NoError(t, err)
	_, err = repo.IncrementWindow(ctx, "client-1", time.Minute)
	require.NoError(t, err)

	mr.FastForward(61 * time.Second)

	count, err := repo.GetCount(ctx, "client-1")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// The next increment opens a fresh window.
	count, err = repo.IncrementWindow(ctx, "client-1", time.Minute)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

// Test per-client key isolation.
func TestIncrementWindow_ClientIsolation(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	defer rdb.Close()

	logger := log.NewStdLogger(os.Stdout)
	repo := NewRateLimitRepo(rdb, logger)

	ctx := context.Background()

	_, err := repo.IncrementWindow(ctx, "client-a", time.Minute)
	require.NoError(t, err)

	count, err := repo.GetCount(ctx, "client-b")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

// Test nil client guard.
func TestRateLimitRepo_NilClient(t *testing.T) {
	logger := log.NewStdLogger(os.Stdout)
	repo := NewRateLimitRepo(nil, logger)

	_, err := repo.GetCount(context.Background(), "x")
	assert.Error(t, err)

	_, err = repo.IncrementWindow(context.Background(), "x", time.Minute)
	assert.Error(t, err)
}
