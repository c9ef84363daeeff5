package store

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"

	"sprinklerops/internal/config"
	"sprinklerops/internal/types"
)

// sqliteBackend executes against a single shared database/sql handle. The
// driver serializes writes; WAL mode allows one writer alongside readers.
// There is no row-level security here, so supportsTenantScope is false and
// tenant isolation rests entirely on the company_id predicates every
// repository query carries.
type sqliteBackend struct {
	db *sql.DB
}

func (s *sqliteBackend) name() string              { return "sqlite" }
func (s *sqliteBackend) supportsTenantScope() bool { return false }

// newSQLiteBackend opens the database file (or ":memory:") with WAL
// journaling, a busy timeout, and enforced foreign keys, then verifies the
// handle with a ping.
func newSQLiteBackend(ctx context.Context, cfg config.DatabaseConfig) (*sqliteBackend, error) {
	dsn := cfg.SQLitePath
	if dsn != ":memory:" {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_journal_mode=WAL&_busy_timeout=10000&_foreign_keys=1"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeDBConfiguration,
			"failed to open SQLite database", err)
	}

	// A single connection sidesteps SQLITE_BUSY contention between the
	// pool's handles; the driver multiplexes concurrent callers onto it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Some driver versions ignore pragma DSN parameters; set them explicitly.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, types.NewAppError(types.ErrCodeDBConfiguration,
				"failed to apply SQLite pragma", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, connError(err, "failed to reach SQLite database")
	}

	return &sqliteBackend{db: db}, nil
}

func (s *sqliteBackend) query(ctx context.Context, sqlText string, args []any) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, queryError(err, sqlText, len(args))
	}
	out, err := collectSQLRows(rows)
	if err != nil {
		return nil, queryError(err, sqlText, len(args))
	}
	return out, nil
}

func (s *sqliteBackend) run(ctx context.Context, sqlText string, args []any) (RunResult, error) {
	if returningRe.MatchString(sqlText) {
		return sqlRunReturning(ctx, s.db.QueryContext, sqlText, args)
	}
	res, err := s.db.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return RunResult{}, queryError(err, sqlText, len(args))
	}
	return sqlRunResult(res)
}

func (s *sqliteBackend) begin(ctx context.Context) (backendTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, connError(err, "failed to begin transaction")
	}
	return &sqliteTx{tx: tx}, nil
}

func (s *sqliteBackend) ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return connError(err, "ping failed")
	}
	return nil
}

func (s *sqliteBackend) poolGauges() PoolStats {
	st := s.db.Stats()
	return PoolStats{
		TotalConnections:  int64(st.OpenConnections),
		ActiveConnections: int64(st.InUse),
		IdleConnections:   int64(st.Idle),
		WaitingClients:    st.WaitCount,
	}
}

func (s *sqliteBackend) close(_ context.Context) error {
	if err := s.db.Close(); err != nil {
		return types.NewAppError(types.ErrCodeDBConnection, "failed to close database", err)
	}
	return nil
}

// sqliteTx wraps a database/sql transaction. Commit and Rollback both
// return the underlying connection to the handle.
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) query(ctx context.Context, sqlText string, args []any) ([]Row, error) {
	rows, err := t.tx.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, queryError(err, sqlText, len(args))
	}
	out, err := collectSQLRows(rows)
	if err != nil {
		return nil, queryError(err, sqlText, len(args))
	}
	return out, nil
}

func (t *sqliteTx) run(ctx context.Context, sqlText string, args []any) (RunResult, error) {
	if returningRe.MatchString(sqlText) {
		return sqlRunReturning(ctx, t.tx.QueryContext, sqlText, args)
	}
	res, err := t.tx.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return RunResult{}, queryError(err, sqlText, len(args))
	}
	return sqlRunResult(res)
}

func (t *sqliteTx) commit(_ context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return queryError(err, "COMMIT", 0)
	}
	return nil
}

func (t *sqliteTx) rollback(_ context.Context) error {
	if err := t.tx.Rollback(); err != nil {
		return queryError(err, "ROLLBACK", 0)
	}
	return nil
}

// sqlRunReturning executes a mutation with a RETURNING clause through the
// query path, so the generated identifier is read from the first returned
// column exactly as on PostgreSQL.
func sqlRunReturning(ctx context.Context, queryFn func(context.Context, string, ...any) (*sql.Rows, error), sqlText string, args []any) (RunResult, error) {
	rows, err := queryFn(ctx, sqlText, args...)
	if err != nil {
		return RunResult{}, queryError(err, sqlText, len(args))
	}
	collected, err := collectSQLRows(rows)
	if err != nil {
		return RunResult{}, queryError(err, sqlText, len(args))
	}
	res := RunResult{RowsAffected: int64(len(collected))}
	if len(collected) > 0 {
		res.InsertedID = firstInt64(collected[0])
	}
	return res, nil
}

// sqlRunResult converts a database/sql result. SQLite always supports
// LastInsertId; it reports the rowid of the most recent insert.
func sqlRunResult(res sql.Result) (RunResult, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return RunResult{}, types.NewAppError(types.ErrCodeDBQuery, "failed to read affected rows", err)
	}
	insertedID, err := res.LastInsertId()
	if err != nil {
		insertedID = 0
	}
	return RunResult{InsertedID: insertedID, RowsAffected: affected}, nil
}

// collectSQLRows drains a database/sql result set into Row maps and closes it.
func collectSQLRows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []Row{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		r := make(Row, len(cols))
		for i, col := range cols {
			r[col] = vals[i]
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
