package biz

import (
	"context"
	"sync"
	"time"

	"farmlokal/internal/conf"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// CircuitState is the breaker's admission state.
type CircuitState string

const (
	// StateClosed admits all calls.
	StateClosed CircuitState = "CLOSED"
	// StateOpen rejects all calls until the cool-down elapses.
	StateOpen CircuitState = "OPEN"
	// StateHalfOpen admits trial calls after the cool-down.
	StateHalfOpen CircuitState = "HALF_OPEN"
)

// Default breaker thresholds, used when configuration leaves them unset.
const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 2
	defaultBreakerTimeout   = 30 * time.Second
)

// ErrBreakerOpen is returned without invoking the operation while the breaker
// is open. Callers must not retry against the same breaker before its
// cool-down elapses.
var ErrBreakerOpen = errors.New(503, "BREAKER_OPEN", "circuit breaker is open")

// CircuitBreaker guards calls to one upstream with a CLOSED/OPEN/HALF_OPEN
// state machine. State is shared across all concurrent callers of the same
// instance; every read-modify-write happens under the mutex.
//
// HALF_OPEN does not gate trials to a single call: every caller arriving
// after the cool-down is admitted until enough successes close the breaker or
// one failure reopens it, so a concurrent burst can send several trials at a
// still-recovering upstream.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	successThreshold int
	timeout          time.Duration

	mu              sync.Mutex
	state           CircuitState
	failures        int
	successes       int
	lastFailureTime time.Time

	logger *log.Helper
}

// NewCircuitBreaker creates a breaker for the named upstream.
// Unset configuration fields fall back to the defaults
// (failureThreshold=5, successThreshold=2, timeout=30s).
func NewCircuitBreaker(name string, c *conf.Breaker, logger log.Logger) *CircuitBreaker {
	b := &CircuitBreaker{
		name:             name,
		failureThreshold: defaultFailureThreshold,
		successThreshold: defaultSuccessThreshold,
		timeout:          defaultBreakerTimeout,
		state:            StateClosed,
		logger:           log.NewHelper(logger),
	}

	if c != nil {
		if c.FailureThreshold > 0 {
			b.failureThreshold = c.FailureThreshold
		}
		if c.SuccessThreshold > 0 {
			b.successThreshold = c.SuccessThreshold
		}
		if c.Timeout > 0 {
			b.timeout = c.Timeout
		}
	}

	return b
}

// Do runs fn under the breaker. While the breaker is open the operation is
// not invoked and ErrBreakerOpen is returned immediately; after the cool-down
// a single trial admission moves the breaker to HALF_OPEN before deciding.
func (b *CircuitBreaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	if err := fn(ctx); err != nil {
		b.onFailure()
		return err
	}

	b.onSuccess()
	return nil
}

// State returns the current breaker state.
func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// admit decides whether a call may proceed, performing the OPEN -> HALF_OPEN
// transition when the cool-down has elapsed.
func (b *CircuitBreaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}

	if time.Since(b.lastFailureTime) >= b.timeout {
		b.state = StateHalfOpen
		b.logger.Infow("circuit breaker state changed",
			"breaker", b.name,
			"state", StateHalfOpen)
		return nil
	}

	return ErrBreakerOpen
}

// onSuccess records a successful call. Any success resets the failure
// counter; in HALF_OPEN, successThreshold consecutive successes close the
// breaker and reset both counters.
func (b *CircuitBreaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0

	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = StateClosed
			b.successes = 0
			b.logger.Infow("circuit breaker state changed",
				"breaker", b.name,
				"state", StateClosed)
		}
	}
}

// onFailure records a failed call. In HALF_OPEN any failure reopens the
// breaker immediately; in CLOSED the breaker opens once the failure count
// reaches the threshold.
func (b *CircuitBreaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.successes = 0
	b.lastFailureTime = time.Now()

	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.logger.Warnw("circuit breaker state changed",
			"breaker", b.name,
			"state", StateOpen,
			"reason", "trial call failed")
		return
	}

	if b.state == StateClosed && b.failures >= b.failureThreshold {
		b.state = StateOpen
		b.logger.Warnw("circuit breaker state changed",
			"breaker", b.name,
			"state", StateOpen,
			"consecutive_failures", b.failures)
	}
}
