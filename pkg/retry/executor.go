package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/hackquest/hackquest/pkg/logging"
)

const (
	// DefaultMaxAttempts is the number of tries given to a throttled operation
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the backoff unit; attempt n waits 2^n units
	DefaultBaseDelay = time.Second
	// DefaultTimeout bounds a single attempt against the remote store
	DefaultTimeout = 10 * time.Second
)

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Config configures an Executor. Zero fields take the defaults.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Timeout     time.Duration
}

// Executor runs remote-store operations, retrying throttled ones with
// exponential backoff and surfacing everything else immediately.
type Executor struct {
	maxAttempts int
	baseDelay   time.Duration
	timeout     time.Duration
	sleep       Sleeper
}

// NewExecutor creates an Executor from config
func NewExecutor(config Config) *Executor {
	e := &Executor{
		maxAttempts: config.MaxAttempts,
		baseDelay:   config.BaseDelay,
		timeout:     config.Timeout,
		sleep:       sleepContext,
	}
	if e.maxAttempts <= 0 {
		e.maxAttempts = DefaultMaxAttempts
	}
	if e.baseDelay <= 0 {
		e.baseDelay = DefaultBaseDelay
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	return e
}

// WithSleeper replaces the wall-clock sleep, used by tests
func (e *Executor) WithSleeper(s Sleeper) *Executor {
	e.sleep = s
	return e
}

// MaxAttempts returns the configured attempt count
func (e *Executor) MaxAttempts() int {
	return e.maxAttempts
}

// Do runs op until it succeeds, fails with a non-throttling error, or
// exhausts the attempt budget. Each attempt gets its own timeout.
func (e *Executor) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		err := e.attempt(ctx, op)
		if err == nil {
			if attempt > 0 {
				logging.App.Info("Store operation recovered after throttling", "attempts", attempt+1)
			}
			return nil
		}
		lastErr = err

		if !IsThrottling(err) {
			logging.App.Debug("Store operation failed", "attempt", attempt+1, "error", err)
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}

		if attempt == e.maxAttempts-1 {
			break
		}

		delay := e.baseDelay << attempt
		logging.App.Warn("Store throttled, backing off", "attempt", attempt+1, "max_attempts", e.maxAttempts, "delay", delay, "error", err)
		if err := e.sleep(ctx, delay); err != nil {
			return fmt.Errorf("%w: backoff interrupted: %w", ErrPersistence, err)
		}
	}

	logging.App.Error("Store throttling retries exhausted", "attempts", e.maxAttempts, "error", lastErr)
	return fmt.Errorf("%w after %d attempts: %w", ErrRateLimitExceeded, e.maxAttempts, lastErr)
}

func (e *Executor) attempt(ctx context.Context, op func(ctx context.Context) error) error {
	attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return op(attemptCtx)
}

// Value runs op through e and returns its result
func Value[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := e.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
