package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"sprinklerops/internal/types"
)

// Retrier re-runs read-only operations that failed with a transient
// connection error, behind a circuit breaker so a database that is down
// fails callers fast instead of queueing retries against it.
//
// Only errors the taxonomy marks retryable are retried. Query errors are
// not: a statement that failed on SQL grounds will fail again, and a
// mutation retried blindly may apply twice. Callers are expected to route
// only idempotent work through Do.
type Retrier struct {
	breaker  *gobreaker.CircuitBreaker[struct{}]
	logger   *slog.Logger
	attempts int
	backoff  time.Duration
}

// NewRetrier creates a Retrier with the given retry budget. The breaker
// opens after consecutive connection failures and half-opens after a
// cooldown, mirroring its behavior on the path to recovery.
func NewRetrier(logger *slog.Logger, attempts int, backoff time.Duration) *Retrier {
	if attempts < 1 {
		attempts = 1
	}
	settings := gobreaker.Settings{
		Name:    "database",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("database circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &Retrier{
		breaker:  gobreaker.NewCircuitBreaker[struct{}](settings),
		logger:   logger,
		attempts: attempts,
		backoff:  backoff,
	}
}

// Do runs fn, retrying transient connection failures with linear backoff
// up to the configured attempt budget. The final error is returned
// unchanged so the caller sees the real taxonomy code.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		_, err := r.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, fn(ctx)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return types.NewAppError(types.ErrCodeDBUnavailable,
				"database circuit breaker is open", err)
		}
		lastErr = err
		if !isRetryable(err) || attempt == r.attempts {
			return lastErr
		}

		r.logger.Warn("retrying transient database failure",
			"attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(time.Duration(attempt) * r.backoff):
		}
	}
	return lastErr
}

func isRetryable(err error) bool {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable()
	}
	return false
}
