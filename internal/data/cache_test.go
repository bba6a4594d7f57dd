package data

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedValue struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Test Set / Get round-trip with JSON serialization.
func TestCache_SetGet(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	defer rdb.Close()

	cache := NewCacheClient(rdb)
	ctx := context.Background()

	in := cachedValue{Name: "paneer", Count: 3}
	require.NoError(t, cache.Set(ctx, "test:key", in, time.Minute))

	var out cachedValue
	require.NoError(t, cache.Get(ctx, "test:key", &out))
	assert.Equal(t, in, out)
}

// Test Get - missing key returns the sentinel.
func TestCache_GetMiss(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	defer rdb.Close()

	cache := NewCacheClient(rdb)

	var out cachedValue
	err := cache.Get(context.Background(), "missing", &out)
	assert.ErrorIs(t, err, ErrCacheNotFound)
}

// Test that entries expire with their TTL.
func TestCache_TTL(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	defer rdb.Close()

	cache := NewCacheClient(rdb)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "test:key", cachedValue{}, 30*time.Second))

	mr.FastForward(31 * time.Second)

	var out cachedValue
	err := cache.Get(ctx, "test:key", &out)
	assert.ErrorIs(t, err, ErrCacheNotFound)
}

// Test Delete and Exists.
func TestCache_DeleteExists(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	defer rdb.Close()

	cache := NewCacheClient(rdb)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "test:key", cachedValue{}, time.Minute))

	exists, err := cache.Exists(ctx, "test:key")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, cache.Delete(ctx, "test:key"))

	exists, err = cache.Exists(ctx, "test:key")
	require.NoError(t, err)
	assert.False(t, exists)
}

// Test DeletePrefix - sweeps the whole namespace, more keys than one SCAN
// batch, and leaves other namespaces alone.
func TestCache_DeletePrefix(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	defer rdb.Close()

	cache := NewCacheClient(rdb)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		key := fmt.Sprintf("%s:%d", CacheKeyProductList, i)
		require.NoError(t, cache.Set(ctx, key, cachedValue{Count: i}, time.Minute))
	}
	require.NoError(t, cache.Set(ctx, CacheKeyProductItem+":1", cachedValue{}, time.Minute))

	require.NoError(t, cache.DeletePrefix(ctx, CacheKeyProductList+":"))

	for i := 0; i < 250; i++ {
		exists, err := cache.Exists(ctx, fmt.Sprintf("%s:%d", CacheKeyProductList, i))
		require.NoError(t, err)
		require.False(t, exists)
	}

	// The item namespace survives the sweep.
	exists, err := cache.Exists(ctx, CacheKeyProductItem+":1")
	require.NoError(t, err)
	assert.True(t, exists)
}

// Test nil client guard.
func TestCache_NilClient(t *testing.T) {
	cache := NewCacheClient(nil)
	ctx := context.Background()

	var out cachedValue
	assert.Error(t, cache.Get(ctx, "k", &out))
	assert.Error(t, cache.Set(ctx, "k", out, time.Minute))
	assert.Error(t, cache.Delete(ctx, "k"))
	assert.Error(t, cache.DeletePrefix(ctx, "k"))
	_, err := cache.Exists(ctx, "k")
	assert.Error(t, err)
}

// Test BuildCacheKey.
func TestBuildCacheKey(t *testing.T) {
	assert.Equal(t, "products:item:123", BuildCacheKey(CacheKeyProductItem, "123"))
	assert.Equal(t, "ratelimit:10.0.0.1", BuildCacheKey(CacheKeyRateLimit, "10.0.0.1"))
	assert.Equal(t, "ratelimit", BuildCacheKey(CacheKeyRateLimit))
}
