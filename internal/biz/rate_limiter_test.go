package biz

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"farmlokal/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockRateLimitRepo is a mock implementation of RateLimitRepo for testing.
type MockRateLimitRepo struct {
	mock.Mock
}

func (m *MockRateLimitRepo) GetCount(ctx context.Context, clientID string) (int64, error) {
	args := m.Called(ctx, clientID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRateLimitRepo) IncrementWindow(ctx context.Context, clientID string, window time.Duration) (int64, error) {
	args := m.Called(ctx, clientID, window)
	return args.Get(0).(int64), args.Error(1)
}

func newTestRateLimiter(repo *MockRateLimitRepo) *RateLimiterUseCase {
	logger := log.NewStdLogger(os.Stdout)
	return NewRateLimiterUseCase(repo, &conf.RateLimit{
		Window:      time.Minute,
		MaxRequests: 100,
	}, logger)
}

// Test Allow - request within the limit is admitted.
func TestAllow_WithinLimit(t *testing.T) {
	mockRepo := new(MockRateLimitRepo)
	uc := newTestRateLimiter(mockRepo)

	ctx := context.Background()
	mockRepo.On("GetCount", ctx, "client-1").Return(int64(42), nil)
	mockRepo.On("IncrementWindow", ctx, "client-1", time.Minute).Return(int64(43), nil)

	decision, err := uc.Allow(ctx, "client-1")
	assert.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 100, decision.Limit)
	assert.Equal(t, 57, decision.Remaining)
	mockRepo.AssertExpectations(t)
}

// Test Allow - the 100th request is still admitted (pre-increment count 99).
func TestAllow_LastSlotAdmitted(t *testing.T) {
	mockRepo := new(MockRateLimitRepo)
	uc := newTestRateLimiter(mockRepo)

	ctx := context.Background()
	mockRepo.On("GetCount", ctx, "client-1").Return(int64(99), nil)
	mockRepo.On("IncrementWindow", ctx, "client-1", time.Minute).Return(int64(100), nil)

	decision, err := uc.Allow(ctx, "client-1")
	assert.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 0, decision.Remaining)
	mockRepo.AssertExpectations(t)
}

// Test Allow - at the limit the request is rejected without incrementing.
func TestAllow_LimitExceeded(t *testing.T) {
	mockRepo := new(MockRateLimitRepo)
	uc := newTestRateLimiter(mockRepo)

	ctx := context.Background()
	mockRepo.On("GetCount", ctx, "client-1").Return(int64(100), nil)

	decision, err := uc.Allow(ctx, "client-1")
	assert.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, 0, decision.Remaining)
	assert.Equal(t, time.Minute, decision.RetryAfter)
	mockRepo.AssertNotCalled(t, "IncrementWindow", mock.Anything, mock.Anything, mock.Anything)
}

// Test Allow - store unreachable on read means fail-open.
func TestAllow_StoreDownFailOpen(t *testing.T) {
	mockRepo := new(MockRateLimitRepo)
	uc := newTestRateLimiter(mockRepo)

	ctx := context.Background()
	mockRepo.On("GetCount", ctx, "client-1").Return(int64(0), errors.New("redis connection refused"))

	decision, err := uc.Allow(ctx, "client-1")
	assert.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, -1, decision.Remaining)
}

// Test Allow - store unreachable on increment also means fail-open.
func TestAllow_IncrementFailsFailOpen(t *testing.T) {
	mockRepo := new(MockRateLimitRepo)
	uc := newTestRateLimiter(mockRepo)

	ctx := context.Background()
	mockRepo.On("GetCount", ctx, "client-1").Return(int64(5), nil)
	mockRepo.On("IncrementWindow", ctx, "client-1", time.Minute).Return(int64(0), errors.New("redis connection refused"))

	decision, err := uc.Allow(ctx, "client-1")
	assert.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, -1, decision.Remaining)
}

// Test that clients are limited independently.
func TestAllow_PerClientIsolation(t *testing.T) {
	mockRepo := new(MockRateLimitRepo)
	uc := newTestRateLimiter(mockRepo)

	ctx := context.Background()
	mockRepo.On("GetCount", ctx, "saturated").Return(int64(100), nil)
	mockRepo.On("GetCount", ctx, "fresh").Return(int64(0), nil)
	mockRepo.On("IncrementWindow", ctx, "fresh", time.Minute).Return(int64(1), nil)

	rejected, err := uc.Allow(ctx, "saturated")
	assert.NoError(t, err)
	assert.False(t, rejected.Allowed)

	admitted, err := uc.Allow(ctx, "fresh")
	assert.NoError(t, err)
	assert.True(t, admitted.Allowed)
	assert.Equal(t, 99, admitted.Remaining)
}

// Test the 429 error shape.
func TestNewRateLimitExceededError(t *testing.T) {
	err := NewRateLimitExceededError(time.Minute)
	assert.Contains(t, err.Error(), "RATE_LIMIT_EXCEEDED")
	assert.Contains(t, err.Error(), "60s")
}
