// Package store implements the multi-tenant data-access layer shared by
// every repository and route handler: parameterized reads and mutations,
// transaction coordination, per-request company scoping, and pool health
// monitoring, over pluggable SQLite and PostgreSQL backends.
//
// The backend is chosen once at startup from configuration (see Open).
// Callers never know which backend is active: both expose the same
// Query/Get/Run/Transaction contract.
//
// Tenant scoping is carried by WithCompany. On PostgreSQL it is injected as
// a transaction-local session variable so row-level security policies apply
// automatically; the injector carries the signal but does not by itself
// enforce isolation, so repositories keep explicit company_id predicates as
// defense in depth. On SQLite (no row-level security) those predicates are
// the sole isolation mechanism.
package store

import (
	"context"
	"fmt"
	"time"
)

// Row is a single result row, mapping column name to driver value.
type Row map[string]any

// String returns the named column as a string, or "" when absent or NULL.
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// Int64 returns the named column as an int64, coercing the integer and
// float shapes the two drivers produce. Returns 0 when absent or NULL.
func (r Row) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// NullInt64 returns the named column as *int64, nil when absent or NULL.
func (r Row) NullInt64(col string) *int64 {
	if v, ok := r[col]; !ok || v == nil {
		return nil
	}
	n := r.Int64(col)
	return &n
}

// Bool returns the named column as a bool. SQLite stores booleans as
// integers, so 1/0 are accepted alongside native booleans.
func (r Row) Bool(col string) bool {
	switch v := r[col].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	default:
		return false
	}
}

// Time returns the named column as a time.Time, parsing the text formats
// SQLite emits. Returns the zero time when absent, NULL, or unparseable.
func (r Row) Time(col string) time.Time {
	switch v := r[col].(type) {
	case time.Time:
		return v
	case string:
		return parseSQLiteTime(v)
	case []byte:
		return parseSQLiteTime(string(v))
	default:
		return time.Time{}
	}
}

// NullTime returns the named column as *time.Time, nil when absent or NULL.
func (r Row) NullTime(col string) *time.Time {
	if v, ok := r[col]; !ok || v == nil {
		return nil
	}
	t := r.Time(col)
	if t.IsZero() {
		return nil
	}
	return &t
}

// parseSQLiteTime tries the timestamp layouts SQLite produces for
// CURRENT_TIMESTAMP and datetime() values.
func parseSQLiteTime(s string) time.Time {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// RunResult reports the outcome of a mutation.
type RunResult struct {
	// InsertedID is the generated identifier for inserts into tables with
	// an auto-increment key: last-insert-rowid on SQLite, the RETURNING id
	// value on PostgreSQL. Zero for statements that generate none.
	InsertedID int64

	// RowsAffected is the number of rows the statement changed.
	RowsAffected int64
}

// Options carries per-call execution options.
type Options struct {
	// CompanyID scopes the call to one tenant. Zero means unscoped
	// (cross-tenant admin and bootstrap paths only).
	CompanyID int64
}

// Option mutates Options.
type Option func(*Options)

// WithCompany scopes the call to the given tenant.
func WithCompany(companyID int64) Option {
	return func(o *Options) { o.CompanyID = companyID }
}

func buildOptions(opts []Option) Options {
	var o Options
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Executor is the uniform query contract. It is implemented by the Store
// itself and by the transaction-scoped executor passed to Transaction
// callbacks, so repository code works identically inside and outside a
// transaction.
//
// SQL uses '?' placeholders on both backends; the PostgreSQL backend
// rewrites them to positional '$n' form. Inserts that need the generated
// identifier back append RETURNING id, which both backends honor.
type Executor interface {
	// Query runs a parameterized read and returns all rows in statement
	// order. Read-only by contract; never retried on SQL errors.
	Query(ctx context.Context, sql string, args []any, opts ...Option) ([]Row, error)

	// Get runs a parameterized read and returns the first row, or nil when
	// the result set is empty.
	Get(ctx context.Context, sql string, args []any, opts ...Option) (Row, error)

	// Run executes a single parameterized mutation. No implicit transaction
	// wrapping: multi-statement atomicity requires Transaction.
	Run(ctx context.Context, sql string, args []any, opts ...Option) (RunResult, error)
}

// Store is the full data-access contract handed to the application.
type Store interface {
	Executor

	// Transaction runs fn atomically on a single connection. If a company
	// scope is supplied it is applied to the connection before any other
	// statement, confined to the transaction. On error from fn or COMMIT
	// the transaction is rolled back and the original error propagates;
	// a rollback failure is logged, never surfaced in place of the cause.
	//
	// Nested calls reuse the surrounding transaction: the context passed to
	// fn carries the transaction, and a Transaction call with that context
	// runs fn against the same connection instead of opening a second one.
	Transaction(ctx context.Context, fn func(ctx context.Context, ex Executor) error, opts ...Option) error

	// HealthCheck runs a trivial query and reports status and latency.
	// It never panics and never returns an error: failure is data.
	HealthCheck(ctx context.Context) HealthResult

	// Stats returns a point-in-time snapshot of pool and query counters.
	Stats() PoolStats

	// Backend returns the active backend name ("postgres" or "sqlite").
	Backend() string

	// Close drains in-flight work and releases all connections.
	Close(ctx context.Context) error
}

// HealthResult is the structured outcome of a health check.
type HealthResult struct {
	Status       string `json:"status"` // "healthy" or "unhealthy"
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Healthy reports whether the check passed.
func (h HealthResult) Healthy() bool { return h.Status == StatusHealthy }

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// PoolStats is a snapshot of connection-pool gauges and cumulative query
// counters. Gauges come from the backend (zero for SQLite's single shared
// handle beyond TotalConnections=1); counters accumulate for process
// lifetime.
type PoolStats struct {
	TotalConnections  int64 `json:"total_connections"`
	ActiveConnections int64 `json:"active_connections"`
	IdleConnections   int64 `json:"idle_connections"`
	WaitingClients    int64 `json:"waiting_clients"`

	Queries          int64         `json:"queries"`
	SlowQueries      int64         `json:"slow_queries"`
	Errors           int64         `json:"errors"`
	AverageQueryTime time.Duration `json:"average_query_time"`
}

// txContextKey marks a context as carrying an active transaction executor.
type txContextKey struct{}

// withTx stores the active transaction executor in the context.
func withTx(ctx context.Context, ex Executor) context.Context {
	return context.WithValue(ctx, txContextKey{}, ex)
}

// txFromContext retrieves the active transaction executor, if any.
func txFromContext(ctx context.Context) (Executor, bool) {
	ex, ok := ctx.Value(txContextKey{}).(Executor)
	return ex, ok
}

// truncateSQL shortens SQL text for error messages and logs. Parameter
// values never appear here; only the statement shape.
func truncateSQL(sql string) string {
	const max = 120
	if len(sql) <= max {
		return sql
	}
	return fmt.Sprintf("%s... (%d bytes)", sql[:max], len(sql))
}
