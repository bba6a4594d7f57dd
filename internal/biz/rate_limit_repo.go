package biz

import (
	"context"
	"time"
)

// RateLimitRepo defines the coordination store operations for rate limiting.
// Following the Kratos v2 DDD architecture, interfaces are defined in the biz
// layer; the implementation lives in the data layer.
type RateLimitRepo interface {
	// GetCount returns the current window count for a client, 0 when no
	// window is open.
	GetCount(ctx context.Context, clientID string) (int64, error)

	// IncrementWindow atomically increments the client's counter and
	// (re)sets its TTL to the window duration in a single operation.
	IncrementWindow(ctx context.Context, clientID string, window time.Duration) (int64, error)
}
