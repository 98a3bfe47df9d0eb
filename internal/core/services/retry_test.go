package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
)

func TestNewRetrier_ClampsAttempts(t *testing.T) {
	assert.Equal(t, 1, NewRetrier(0, time.Second).Attempts())
	assert.Equal(t, 3, NewRetrier(3, time.Second).Attempts())
}

func TestRetrier_Do(t *testing.T) {
	providerErr := domain.NewProviderError("stub", 500, errors.New("boom"))

	tests := []struct {
		name      string
		attempts  int
		errs      []error
		wantCalls int32
		wantErr   error
	}{
		{name: "first try", attempts: 3, errs: []error{nil}, wantCalls: 1},
		{name: "retry then succeed", attempts: 3, errs: []error{providerErr, nil}, wantCalls: 2},
		{name: "malformed is retried", attempts: 2, errs: []error{domain.ErrMalformedResponse, domain.ErrMalformedResponse}, wantCalls: 2, wantErr: domain.ErrMalformedResponse},
		{name: "non-retryable stops", attempts: 3, errs: []error{domain.ErrInvalidInput}, wantCalls: 1, wantErr: domain.ErrInvalidInput},
		{name: "attempts exhausted", attempts: 2, errs: []error{providerErr, providerErr, nil}, wantCalls: 2, wantErr: domain.ErrProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			r := NewRetrier(tt.attempts, time.Second)

			err := r.Do(context.Background(), "test", func(context.Context) error {
				n := calls.Add(1)
				return tt.errs[n-1]
			})

			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestRetrier_TimeoutIsRetryable(t *testing.T) {
	var calls atomic.Int32
	r := NewRetrier(2, 20*time.Millisecond)

	err := r.Do(context.Background(), "slow", func(ctx context.Context) error {
		calls.Add(1)
		<-ctx.Done()
		return ctx.Err()
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCallTimeout)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetrier_AbandonsCallIgnoringContext(t *testing.T) {
	r := NewRetrier(1, 20*time.Millisecond)
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	err := r.Do(context.Background(), "stuck", func(context.Context) error {
		<-release
		return nil
	})

	assert.ErrorIs(t, err, domain.ErrCallTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetrier_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	r := NewRetrier(3, time.Second)

	err := r.Do(ctx, "cancelled", func(context.Context) error {
		calls.Add(1)
		cancel()
		return domain.NewProviderError("stub", 503, errors.New("unavailable"))
	})

	assert.ErrorIs(t, err, domain.ErrRunCancelled)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetrier_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewRetrier(2, time.Second).Do(ctx, "never", func(context.Context) error {
		t.Fatal("op must not run")
		return nil
	})

	assert.ErrorIs(t, err, domain.ErrRunCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetry_LateAttemptDoesNotOverwriteResult(t *testing.T) {
	r := NewRetrier(2, 10*time.Millisecond)
	var calls atomic.Int32
	staleDone := make(chan struct{})

	got, err := Retry(context.Background(), r, "late", func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			defer close(staleDone)
			time.Sleep(30 * time.Millisecond)
			return "stale", nil
		}
		return "fresh", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "fresh", got)
	<-staleDone
	assert.Equal(t, "fresh", got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetry_ReturnsZeroValueOnFailure(t *testing.T) {
	got, err := Retry(context.Background(), NewRetrier(1, time.Second), "fails", func(context.Context) ([]string, error) {
		return []string{"partial"}, domain.ErrInvalidInput
	})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, got)
}
