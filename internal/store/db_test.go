package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprinklerops/internal/types"
)

// fakeBackend records the statements the coordinator issues so the
// transaction protocol can be asserted without a live PostgreSQL server.
type fakeBackend struct {
	tenantScope bool
	beginErr    error
	txRunErr    error // injected into every transaction it begins
	begun       []*fakeTx

	directSQL []string

	// Consumed one entry per call before the happy path; a nil entry means
	// that call succeeds. Lets tests fail the first attempt and pass the
	// second.
	queryErrs []error
	runErrs   []error
	beginErrs []error
}

func (f *fakeBackend) name() string              { return "fake" }
func (f *fakeBackend) supportsTenantScope() bool { return f.tenantScope }

func (f *fakeBackend) query(_ context.Context, sql string, _ []any) ([]Row, error) {
	f.directSQL = append(f.directSQL, sql)
	if err := popErr(&f.queryErrs); err != nil {
		return nil, err
	}
	return []Row{{"ok": int64(1)}}, nil
}

func (f *fakeBackend) run(_ context.Context, sql string, _ []any) (RunResult, error) {
	f.directSQL = append(f.directSQL, sql)
	if err := popErr(&f.runErrs); err != nil {
		return RunResult{}, err
	}
	return RunResult{RowsAffected: 1}, nil
}

func (f *fakeBackend) begin(_ context.Context) (backendTx, error) {
	if err := popErr(&f.beginErrs); err != nil {
		return nil, err
	}
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	tx := &fakeTx{runErr: f.txRunErr}
	f.begun = append(f.begun, tx)
	return tx, nil
}

func popErr(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (f *fakeBackend) ping(_ context.Context) error { return nil }
func (f *fakeBackend) poolGauges() PoolStats        { return PoolStats{} }
func (f *fakeBackend) close(_ context.Context) error {
	return nil
}

type fakeTx struct {
	sql         []string
	args        [][]any
	runErr      error
	commitErr   error
	rollbackErr error

	committed  bool
	rolledBack bool
}

func (t *fakeTx) query(_ context.Context, sql string, args []any) ([]Row, error) {
	t.sql = append(t.sql, sql)
	t.args = append(t.args, args)
	return []Row{{"ok": int64(1)}}, nil
}

func (t *fakeTx) run(_ context.Context, sql string, args []any) (RunResult, error) {
	t.sql = append(t.sql, sql)
	t.args = append(t.args, args)
	if t.runErr != nil {
		return RunResult{}, t.runErr
	}
	return RunResult{RowsAffected: 1}, nil
}

func (t *fakeTx) commit(_ context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) rollback(_ context.Context) error {
	t.rolledBack = true
	return t.rollbackErr
}

func newFakeDB(b *fakeBackend) *DB {
	logger := testLogger()
	return newDB(b, NewMonitor(logger, time.Second, 0, nil), logger, 5*time.Second)
}

func newRetryingFakeDB(b *fakeBackend, attempts int) *DB {
	d := newFakeDB(b)
	d.retrier = NewRetrier(testLogger(), attempts, time.Millisecond)
	return d
}

func TestQueryRetriesTransientConnectionFailure(t *testing.T) {
	connErr := types.NewAppError(types.ErrCodeDBConnection, "connection reset", nil)
	b := &fakeBackend{queryErrs: []error{connErr}}
	d := newRetryingFakeDB(b, 3)

	rows, err := d.Query(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	// First attempt failed, second succeeded.
	assert.Equal(t, []string{"SELECT 1", "SELECT 1"}, b.directSQL)
}

func TestQueryDoesNotRetryStatementFailures(t *testing.T) {
	qErr := types.NewAppError(types.ErrCodeDBQuery, "syntax error", nil)
	b := &fakeBackend{queryErrs: []error{qErr, qErr}}
	d := newRetryingFakeDB(b, 3)

	_, err := d.Query(context.Background(), "SELEC 1", nil)
	require.ErrorIs(t, err, qErr)
	assert.Equal(t, []string{"SELEC 1"}, b.directSQL)
}

func TestRunIsNeverRetried(t *testing.T) {
	connErr := types.NewAppError(types.ErrCodeDBConnection, "connection reset", nil)
	b := &fakeBackend{runErrs: []error{connErr}}
	d := newRetryingFakeDB(b, 3)

	// Even a retryable failure runs a mutation exactly once: the store
	// cannot tell whether the statement applied before the connection died.
	_, err := d.Run(context.Background(), "DELETE FROM clients", nil)
	require.ErrorIs(t, err, connErr)
	assert.Equal(t, []string{"DELETE FROM clients"}, b.directSQL)
}

func TestScopedQueryRetriesImplicitTransaction(t *testing.T) {
	connErr := types.NewAppError(types.ErrCodeDBConnection, "pool checkout failed", nil)
	b := &fakeBackend{tenantScope: true, beginErrs: []error{connErr}}
	d := newRetryingFakeDB(b, 3)

	rows, err := d.Query(context.Background(), "SELECT * FROM clients", nil, WithCompany(7))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// The failed begin never produced a transaction; the retry did, scoped.
	require.Len(t, b.begun, 1)
	assert.Equal(t, setTenantSQL, b.begun[0].sql[0])
	assert.True(t, b.begun[0].committed)
}

func TestTransactionAppliesTenantScopeFirst(t *testing.T) {
	b := &fakeBackend{tenantScope: true}
	d := newFakeDB(b)

	err := d.Transaction(context.Background(), func(ctx context.Context, ex Executor) error {
		_, err := ex.Run(ctx, "UPDATE clients SET name = ?", []any{"x"})
		return err
	}, WithCompany(42))
	require.NoError(t, err)

	require.Len(t, b.begun, 1)
	tx := b.begun[0]
	require.GreaterOrEqual(t, len(tx.sql), 2)
	assert.Equal(t, setTenantSQL, tx.sql[0])
	// The company id travels as a bound parameter, never in the SQL text.
	require.Len(t, tx.args[0], 1)
	assert.Equal(t, "42", tx.args[0][0])
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
}

func TestTransactionSkipsTenantScopeWhenUnsupported(t *testing.T) {
	b := &fakeBackend{tenantScope: false}
	d := newFakeDB(b)

	err := d.Transaction(context.Background(), func(ctx context.Context, ex Executor) error {
		_, err := ex.Run(ctx, "UPDATE clients SET name = ?", []any{"x"})
		return err
	}, WithCompany(42))
	require.NoError(t, err)

	require.Len(t, b.begun, 1)
	require.Len(t, b.begun[0].sql, 1)
	assert.NotEqual(t, setTenantSQL, b.begun[0].sql[0])
}

func TestScopedSingleShotWrapsInTransaction(t *testing.T) {
	// On an engine with transaction-local scoping, a scoped Query outside a
	// transaction must not run bare: the scope would expire with the
	// set_config statement itself.
	b := &fakeBackend{tenantScope: true}
	d := newFakeDB(b)

	rows, err := d.Query(context.Background(), "SELECT * FROM clients", nil, WithCompany(7))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Empty(t, b.directSQL)
	require.Len(t, b.begun, 1)
	tx := b.begun[0]
	require.Len(t, tx.sql, 2)
	assert.Equal(t, setTenantSQL, tx.sql[0])
	assert.Equal(t, "SELECT * FROM clients", tx.sql[1])
	assert.True(t, tx.committed)
}

func TestScopedRunWrapsInTransaction(t *testing.T) {
	b := &fakeBackend{tenantScope: true}
	d := newFakeDB(b)

	res, err := d.Run(context.Background(), "DELETE FROM clients WHERE id = ?", []any{int64(1)}, WithCompany(7))
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.RowsAffected)

	assert.Empty(t, b.directSQL)
	require.Len(t, b.begun, 1)
	assert.Equal(t, setTenantSQL, b.begun[0].sql[0])
	assert.True(t, b.begun[0].committed)
}

func TestUnscopedSingleShotRunsDirect(t *testing.T) {
	b := &fakeBackend{tenantScope: true}
	d := newFakeDB(b)

	_, err := d.Query(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)
	assert.Empty(t, b.begun)
	assert.Equal(t, []string{"SELECT 1"}, b.directSQL)
}

func TestTransactionRollsBackWhenScopeApplicationFails(t *testing.T) {
	b := &fakeBackend{tenantScope: true, txRunErr: errors.New("set_config failed")}
	d := newFakeDB(b)

	err := d.Transaction(context.Background(), func(ctx context.Context, ex Executor) error {
		t.Fatal("callback must not run when scoping fails")
		return nil
	}, WithCompany(42))
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeDBTransaction, appErr.Code)

	require.Len(t, b.begun, 1)
	assert.True(t, b.begun[0].rolledBack)
	assert.False(t, b.begun[0].committed)
}

func TestTransactionReturnsOriginalErrorWhenRollbackAlsoFails(t *testing.T) {
	b := &fakeBackend{tenantScope: false}
	d := newFakeDB(b)
	boom := errors.New("boom")

	// Poison the rollback after begin by reaching into the recorded tx.
	err := d.Transaction(context.Background(), func(ctx context.Context, ex Executor) error {
		b.begun[0].rollbackErr = errors.New("rollback failed too")
		return boom
	})

	// The callback's error wins; the rollback failure is logged, not
	// surfaced.
	require.ErrorIs(t, err, boom)
	assert.True(t, b.begun[0].rolledBack)
}

func TestTransactionCommitFailureIsTransactionError(t *testing.T) {
	b := &fakeBackend{tenantScope: false}
	d := newFakeDB(b)

	err := d.Transaction(context.Background(), func(ctx context.Context, ex Executor) error {
		b.begun[0].commitErr = errors.New("serialization failure")
		return nil
	})
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeDBTransaction, appErr.Code)
	// Commit failed, so the deferred cleanup must still roll back to
	// release the connection.
	assert.True(t, b.begun[0].rolledBack)
}

func TestTransactionBeginFailurePropagates(t *testing.T) {
	beginErr := types.NewAppError(types.ErrCodeDBConnection, "pool exhausted", nil)
	b := &fakeBackend{beginErr: beginErr}
	d := newFakeDB(b)

	err := d.Transaction(context.Background(), func(ctx context.Context, ex Executor) error {
		t.Fatal("callback must not run when begin fails")
		return nil
	})
	require.ErrorIs(t, err, beginErr)
}

func TestTransactionReleasesExactlyOncePerPath(t *testing.T) {
	// Success path: committed, not rolled back.
	b := &fakeBackend{}
	d := newFakeDB(b)
	require.NoError(t, d.Transaction(context.Background(), func(ctx context.Context, ex Executor) error {
		return nil
	}))
	assert.True(t, b.begun[0].committed)
	assert.False(t, b.begun[0].rolledBack)

	// Failure path: rolled back, not committed.
	require.Error(t, d.Transaction(context.Background(), func(ctx context.Context, ex Executor) error {
		return errors.New("nope")
	}))
	assert.False(t, b.begun[1].committed)
	assert.True(t, b.begun[1].rolledBack)
}

func TestQueriesInsideTransactionUseItsConnection(t *testing.T) {
	b := &fakeBackend{}
	d := newFakeDB(b)

	err := d.Transaction(context.Background(), func(ctx context.Context, ex Executor) error {
		// Both the executor and the store (via the transaction-carrying
		// context) must route to the same connection.
		if _, err := ex.Query(ctx, "SELECT a", nil); err != nil {
			return err
		}
		if _, err := d.Query(ctx, "SELECT b", nil); err != nil {
			return err
		}
		_, err := d.Run(ctx, "UPDATE c", nil)
		return err
	})
	require.NoError(t, err)

	assert.Empty(t, b.directSQL)
	require.Len(t, b.begun, 1)
	assert.Equal(t, []string{"SELECT a", "SELECT b", "UPDATE c"}, b.begun[0].sql)
}
