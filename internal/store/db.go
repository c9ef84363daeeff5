package store

import (
	"context"
	"log/slog"
	"time"

	"sprinklerops/internal/types"
)

// backend is the narrow contract each storage engine implements. All error
// returns are already translated to *types.AppError by the backend.
type backend interface {
	name() string

	// query and run execute directly against the pool (or shared handle).
	query(ctx context.Context, sql string, args []any) ([]Row, error)
	run(ctx context.Context, sql string, args []any) (RunResult, error)

	// begin acquires one connection and opens a transaction on it. The
	// returned backendTx owns the connection until commit or rollback,
	// either of which releases it.
	begin(ctx context.Context) (backendTx, error)

	// supportsTenantScope reports whether the engine can confine a session
	// variable to a transaction for row-level security (PostgreSQL only).
	supportsTenantScope() bool

	ping(ctx context.Context) error
	poolGauges() PoolStats
	close(ctx context.Context) error
}

// backendTx is a transaction bound to a single connection.
type backendTx interface {
	query(ctx context.Context, sql string, args []any) ([]Row, error)
	run(ctx context.Context, sql string, args []any) (RunResult, error)
	commit(ctx context.Context) error
	rollback(ctx context.Context) error
}

// DB implements Store over a backend, adding the cross-cutting pieces the
// engines share: per-statement timeouts, query timing and slow-query
// accounting, tenant-scope validation, and transaction coordination with
// release-on-all-paths semantics.
type DB struct {
	backend      backend
	monitor      *Monitor
	logger       *slog.Logger
	queryTimeout time.Duration

	// retrier guards the read path only. Mutations are never retried: the
	// taxonomy cannot tell whether a failed Run applied before the
	// connection died. Nil means reads run exactly once (backend tests).
	retrier *Retrier
}

var _ Store = (*DB)(nil)

// newDB wires a backend into a Store. Used by Open and by backend tests.
func newDB(b backend, monitor *Monitor, logger *slog.Logger, queryTimeout time.Duration) *DB {
	return &DB{
		backend:      b,
		monitor:      monitor,
		logger:       logger,
		queryTimeout: queryTimeout,
	}
}

// Backend returns the active backend name.
func (d *DB) Backend() string { return d.backend.name() }

// opContext applies the client-side statement timeout.
func (d *DB) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.queryTimeout)
}

// Query implements Executor. A call inside an active Transaction is routed
// to the transaction's connection; a tenant-scoped call outside one runs in
// an implicit transaction on engines where scoping is transaction-local,
// because a transaction-local setting applied outside a transaction would
// expire with the set_config statement itself and leave the actual query
// unscoped. Reads outside a transaction go through the retrier: they are
// idempotent, so a transient connection failure gets a second chance.
func (d *DB) Query(ctx context.Context, sql string, args []any, opts ...Option) ([]Row, error) {
	if ex, ok := txFromContext(ctx); ok {
		return ex.Query(ctx, sql, args, opts...)
	}
	o := buildOptions(opts)
	if o.CompanyID != 0 {
		if err := validateCompanyID(o.CompanyID); err != nil {
			return nil, err
		}
	}

	var rows []Row
	err := d.retryRead(ctx, func(ctx context.Context) error {
		var err error
		rows, err = d.queryOnce(ctx, sql, args, o)
		return err
	})
	return rows, err
}

// queryOnce is a single read attempt: the implicit-transaction scoped path
// on engines with transaction-local scoping, the direct pool path otherwise.
func (d *DB) queryOnce(ctx context.Context, sql string, args []any, o Options) ([]Row, error) {
	if o.CompanyID != 0 && d.backend.supportsTenantScope() {
		var rows []Row
		err := d.Transaction(ctx, func(txCtx context.Context, ex Executor) error {
			var err error
			rows, err = ex.Query(txCtx, sql, args)
			return err
		}, WithCompany(o.CompanyID))
		return rows, err
	}
	opCtx, cancel := d.opContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := d.backend.query(opCtx, sql, args)
	d.monitor.observe(sql, time.Since(start), err)
	return rows, err
}

// retryRead routes an idempotent read through the retrier when one is
// configured. Each attempt gets its own statement timeout via queryOnce.
func (d *DB) retryRead(ctx context.Context, fn func(ctx context.Context) error) error {
	if d.retrier == nil {
		return fn(ctx)
	}
	return d.retrier.Do(ctx, fn)
}

// Get implements Executor: first row of the result, or nil when empty.
func (d *DB) Get(ctx context.Context, sql string, args []any, opts ...Option) (Row, error) {
	rows, err := d.Query(ctx, sql, args, opts...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Run implements Executor. Exactly the side effects of the one statement;
// no implicit transaction wrapping beyond what tenant scoping requires.
func (d *DB) Run(ctx context.Context, sql string, args []any, opts ...Option) (RunResult, error) {
	if ex, ok := txFromContext(ctx); ok {
		return ex.Run(ctx, sql, args, opts...)
	}
	o := buildOptions(opts)
	if o.CompanyID != 0 {
		if err := validateCompanyID(o.CompanyID); err != nil {
			return RunResult{}, err
		}
		if d.backend.supportsTenantScope() {
			var res RunResult
			err := d.Transaction(ctx, func(txCtx context.Context, ex Executor) error {
				var err error
				res, err = ex.Run(txCtx, sql, args)
				return err
			}, WithCompany(o.CompanyID))
			return res, err
		}
	}
	opCtx, cancel := d.opContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := d.backend.run(opCtx, sql, args)
	d.monitor.observe(sql, time.Since(start), err)
	return res, err
}

// Transaction implements Store. See the interface doc for the protocol;
// the deferred rollback covers every exit path that did not commit,
// including panics inside fn, so the connection is always released.
func (d *DB) Transaction(ctx context.Context, fn func(ctx context.Context, ex Executor) error, opts ...Option) error {
	o := buildOptions(opts)
	if o.CompanyID != 0 {
		if err := validateCompanyID(o.CompanyID); err != nil {
			return err
		}
	}

	// Reuse a surrounding transaction rather than silently opening a
	// second, independent one on another connection.
	if ex, ok := txFromContext(ctx); ok {
		if tex, ok := ex.(*txExecutor); ok && o.CompanyID != 0 && tex.companyID != o.CompanyID {
			return types.NewAppErrorWithDetails(
				types.ErrCodeDBTransaction,
				"nested transaction requested a different company scope",
				nil,
				map[string]any{"active": tex.companyID, "requested": o.CompanyID},
			)
		}
		return fn(ctx, ex)
	}

	btx, err := d.backend.begin(ctx)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// Roll back with a context that survives cancellation of the
		// caller's: the connection must be returned clean even when the
		// request that owned it is already gone.
		if rbErr := btx.rollback(context.WithoutCancel(ctx)); rbErr != nil {
			d.logger.Error("transaction rollback failed",
				"backend", d.backend.name(),
				"error", rbErr,
			)
		}
	}()

	// Tenant scope goes in before any other statement on this connection.
	if o.CompanyID != 0 && d.backend.supportsTenantScope() {
		if _, err := btx.run(ctx, setTenantSQL, []any{tenantSettingValue(o.CompanyID)}); err != nil {
			return types.NewAppError(types.ErrCodeDBTransaction,
				"failed to apply company scope to transaction", err)
		}
	}

	tex := &txExecutor{db: d, tx: btx, companyID: o.CompanyID}
	if err := fn(withTx(ctx, tex), tex); err != nil {
		return err
	}

	if err := btx.commit(ctx); err != nil {
		return types.NewAppError(types.ErrCodeDBTransaction, "commit failed", err)
	}
	committed = true
	return nil
}

// HealthCheck implements Store. Failure is returned as data, never as an
// error or panic: monitoring pollers must not crash on an unhealthy store.
func (d *DB) HealthCheck(ctx context.Context) (result HealthResult) {
	defer func() {
		if r := recover(); r != nil {
			result = HealthResult{
				Status: StatusUnhealthy,
				Error:  "health check panicked",
			}
		}
	}()

	start := time.Now()
	if err := d.backend.ping(ctx); err != nil {
		return HealthResult{
			Status:       StatusUnhealthy,
			ResponseTime: time.Since(start).String(),
			Error:        err.Error(),
		}
	}
	return HealthResult{
		Status:       StatusHealthy,
		ResponseTime: time.Since(start).String(),
	}
}

// Stats implements Store: backend pool gauges merged with the monitor's
// cumulative counters.
func (d *DB) Stats() PoolStats {
	stats := d.backend.poolGauges()
	d.monitor.fill(&stats)
	return stats
}

// Close implements Store.
func (d *DB) Close(ctx context.Context) error {
	d.monitor.stop()
	return d.backend.close(ctx)
}

// txExecutor is the Executor handed to Transaction callbacks. All calls run
// on the transaction's single connection, in issued order.
type txExecutor struct {
	db        *DB
	tx        backendTx
	companyID int64
}

var _ Executor = (*txExecutor)(nil)

// checkScope rejects per-call scopes that disagree with the transaction's.
// A statement scoped to tenant B inside tenant A's transaction is a
// correctness bug, not a request to switch tenants. Scoped statements
// inside an unscoped transaction are allowed: bootstrap flows open the
// transaction before the tenant row exists, and isolation still rests on
// the statements' own predicates.
func (t *txExecutor) checkScope(opts []Option) error {
	o := buildOptions(opts)
	if o.CompanyID == 0 {
		return nil
	}
	if err := validateCompanyID(o.CompanyID); err != nil {
		return err
	}
	if t.companyID != 0 && o.CompanyID != t.companyID {
		return types.NewAppErrorWithDetails(
			types.ErrCodeDBTransaction,
			"statement scope conflicts with transaction scope",
			nil,
			map[string]any{"active": t.companyID, "requested": o.CompanyID},
		)
	}
	return nil
}

func (t *txExecutor) Query(ctx context.Context, sql string, args []any, opts ...Option) ([]Row, error) {
	if err := t.checkScope(opts); err != nil {
		return nil, err
	}
	opCtx, cancel := t.db.opContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := t.tx.query(opCtx, sql, args)
	t.db.monitor.observe(sql, time.Since(start), err)
	return rows, err
}

func (t *txExecutor) Get(ctx context.Context, sql string, args []any, opts ...Option) (Row, error) {
	rows, err := t.Query(ctx, sql, args, opts...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (t *txExecutor) Run(ctx context.Context, sql string, args []any, opts ...Option) (RunResult, error) {
	if err := t.checkScope(opts); err != nil {
		return RunResult{}, err
	}
	opCtx, cancel := t.db.opContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := t.tx.run(opCtx, sql, args)
	t.db.monitor.observe(sql, time.Since(start), err)
	return res, err
}
