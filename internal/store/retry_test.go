package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprinklerops/internal/types"
)

func transientErr() error {
	return types.NewAppError(types.ErrCodeDBConnection, "connection reset", nil)
}

func TestRetrierSucceedsFirstTry(t *testing.T) {
	r := NewRetrier(testLogger(), 3, time.Millisecond)

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetrierRetriesTransientFailures(t *testing.T) {
	r := NewRetrier(testLogger(), 3, time.Millisecond)

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return transientErr()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrierDoesNotRetryQueryErrors(t *testing.T) {
	r := NewRetrier(testLogger(), 3, time.Millisecond)

	calls := 0
	queryErr := types.NewAppError(types.ErrCodeDBQuery, "syntax error", nil)
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return queryErr
	})
	require.ErrorIs(t, err, queryErr)
	assert.Equal(t, 1, calls)
}

func TestRetrierExhaustsBudget(t *testing.T) {
	r := NewRetrier(testLogger(), 3, time.Millisecond)

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return transientErr()
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeDBConnection, appErr.Code)
}

func TestRetrierBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	r := NewRetrier(testLogger(), 1, time.Millisecond)

	// Trip the breaker: five consecutive failures.
	for i := 0; i < 5; i++ {
		err := r.Do(context.Background(), func(ctx context.Context) error {
			return transientErr()
		})
		require.Error(t, err)
	}

	// The breaker is now open; the callback must not run.
	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 0, calls)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeDBUnavailable, appErr.Code)
}

func TestRetrierHonorsContextCancellation(t *testing.T) {
	r := NewRetrier(testLogger(), 10, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- r.Do(ctx, func(ctx context.Context) error {
			calls++
			return transientErr()
		})
	}()
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
}

func TestRetrierMinimumOneAttempt(t *testing.T) {
	r := NewRetrier(testLogger(), 0, time.Millisecond)

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
