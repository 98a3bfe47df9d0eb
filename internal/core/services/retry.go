package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/logger"
)

// Retrier runs a reasoning call with a bounded number of attempts and a
// per-attempt timeout. A timeout counts as a retryable failure. Parent
// context cancellation aborts immediately with ErrRunCancelled.
type Retrier struct {
	attempts int
	timeout  time.Duration
}

// NewRetrier creates a Retrier. Attempts below 1 are treated as 1;
// a zero timeout disables the per-attempt deadline.
func NewRetrier(attempts int, timeout time.Duration) *Retrier {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrier{attempts: attempts, timeout: timeout}
}

// Attempts returns the total number of attempts per call.
func (r *Retrier) Attempts() int {
	return r.attempts
}

// Do runs op until it succeeds, returns a non-retryable error, or the
// attempts run out. The last error is returned.
func (r *Retrier) Do(ctx context.Context, label string, op func(ctx context.Context) error) error {
	_, err := Retry(ctx, r, label, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Retry is Do for operations that produce a value. Only the value of the
// attempt that Retry returns on is ever observed; a result an abandoned
// attempt sends later is discarded.
func Retry[T any](ctx context.Context, r *Retrier, label string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%w: %w", domain.ErrRunCancelled, err)
		}

		var value T
		value, lastErr = once(ctx, r.timeout, op)
		if lastErr == nil {
			return value, nil
		}
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%w: %w", domain.ErrRunCancelled, ctx.Err())
		}
		if !domain.IsRetryable(lastErr) {
			return zero, lastErr
		}
		if attempt < r.attempts {
			logger.Debug("%s: attempt %d/%d failed, retrying: %v", label, attempt, r.attempts, lastErr)
		}
	}
	return zero, lastErr
}

type attemptResult[T any] struct {
	value T
	err   error
}

// once runs op in its own goroutine so that a call which ignores its
// context is abandoned at the timeout instead of blocking the stage.
// The buffered channel lets an abandoned goroutine finish without a reader.
func once[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	callCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan attemptResult[T], 1)
	go func() {
		value, err := op(callCtx)
		done <- attemptResult[T]{value: value, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, fmt.Errorf("%w after %s: %w", domain.ErrCallTimeout, timeout, res.err)
		}
		return res.value, res.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, fmt.Errorf("%w after %s", domain.ErrCallTimeout, timeout)
	}
}
