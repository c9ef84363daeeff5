package store

import (
	"context"
	"errors"
	"net"

	"sprinklerops/internal/types"
)

// classifyErr assigns a taxonomy code to a driver-level failure shared by
// both backends. Timeouts are surfaced distinctly so callers can apply
// different handling; cancellation means the caller gave up and is never
// retryable; network-shaped failures are connection errors (retryable with
// backoff); everything else is a query error (never retried: the statement
// may not be idempotent).
func classifyErr(err error) types.ErrorCode {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return types.ErrCodeDBTimeout
	case errors.Is(err, context.Canceled):
		return types.ErrCodeDBCanceled
	case isNetErr(err):
		return types.ErrCodeDBConnection
	default:
		return types.ErrCodeDBQuery
	}
}

func isNetErr(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}

// queryError wraps a driver failure as an AppError carrying the truncated
// SQL and parameter count. Parameter values stay out: they are user data.
func queryError(err error, sql string, argCount int) *types.AppError {
	return types.NewAppErrorWithDetails(
		classifyErr(err),
		"statement execution failed",
		err,
		map[string]any{
			"sql":    truncateSQL(sql),
			"params": argCount,
		},
	)
}

// connError wraps a connection acquisition or establishment failure.
func connError(err error, msg string) *types.AppError {
	code := classifyErr(err)
	if code == types.ErrCodeDBQuery {
		// Acquisition never fails on SQL grounds.
		code = types.ErrCodeDBConnection
	}
	return types.NewAppError(code, msg, err)
}
