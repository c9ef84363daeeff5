package store

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"sprinklerops/internal/config"
	"sprinklerops/internal/types"
)

// postgresBackend executes against a bounded pgxpool. Connections are
// acquired per transaction and released on commit and rollback alike; plain
// queries go through the pool's own checkout, which bounds the wait via the
// acquire timeout.
type postgresBackend struct {
	pool *pgxpool.Pool
	cfg  config.DatabaseConfig
}

func (p *postgresBackend) name() string              { return "postgres" }
func (p *postgresBackend) supportsTenantScope() bool { return true }

// newPostgresBackend parses the connection string, applies pool tuning,
// and verifies connectivity with a ping so misconfiguration fails at
// startup, not on the first request.
func newPostgresBackend(ctx context.Context, cfg config.DatabaseConfig) (*postgresBackend, error) {
	url := cfg.URL.Unmask()
	if cfg.SSLMode != "" && !strings.Contains(url, "sslmode=") {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url += sep + "sslmode=" + cfg.SSLMode
	}

	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeDBConfiguration,
			"invalid PostgreSQL connection string", err)
	}

	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeDBConfiguration,
			"failed to create connection pool", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, connError(err, "failed to reach PostgreSQL")
	}

	return &postgresBackend{pool: pool, cfg: cfg}, nil
}

func (p *postgresBackend) query(ctx context.Context, sql string, args []any) ([]Row, error) {
	rows, err := p.pool.Query(ctx, rebind(sql), args...)
	if err != nil {
		return nil, queryError(err, sql, len(args))
	}
	out, err := collectPgxRows(rows)
	if err != nil {
		return nil, queryError(err, sql, len(args))
	}
	return out, nil
}

func (p *postgresBackend) run(ctx context.Context, sql string, args []any) (RunResult, error) {
	return pgxRun(ctx, p.pool, sql, args)
}

func (p *postgresBackend) begin(ctx context.Context) (backendTx, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	conn, err := p.pool.Acquire(acquireCtx)
	if err != nil {
		return nil, connError(err, "failed to acquire connection from pool")
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		conn.Release()
		return nil, connError(err, "failed to begin transaction")
	}

	return &postgresTx{conn: conn, tx: tx}, nil
}

func (p *postgresBackend) ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return connError(err, "ping failed")
	}
	return nil
}

func (p *postgresBackend) poolGauges() PoolStats {
	s := p.pool.Stat()
	return PoolStats{
		TotalConnections:  int64(s.TotalConns()),
		ActiveConnections: int64(s.AcquiredConns()),
		IdleConnections:   int64(s.IdleConns()),
		WaitingClients:    s.EmptyAcquireCount(),
	}
}

func (p *postgresBackend) close(_ context.Context) error {
	// pgxpool.Close waits for acquired connections to be released.
	p.pool.Close()
	return nil
}

// postgresTx owns one pooled connection for the duration of a transaction.
// Both commit and rollback release the connection; the release must happen
// on every path or the pool leaks dry.
type postgresTx struct {
	conn *pgxpool.Conn
	tx   pgx.Tx
}

func (t *postgresTx) query(ctx context.Context, sql string, args []any) ([]Row, error) {
	rows, err := t.tx.Query(ctx, rebind(sql), args...)
	if err != nil {
		return nil, queryError(err, sql, len(args))
	}
	out, err := collectPgxRows(rows)
	if err != nil {
		return nil, queryError(err, sql, len(args))
	}
	return out, nil
}

func (t *postgresTx) run(ctx context.Context, sql string, args []any) (RunResult, error) {
	return pgxRun(ctx, t.tx, sql, args)
}

func (t *postgresTx) commit(ctx context.Context) error {
	defer t.conn.Release()
	if err := t.tx.Commit(ctx); err != nil {
		return queryError(err, "COMMIT", 0)
	}
	return nil
}

func (t *postgresTx) rollback(ctx context.Context) error {
	defer t.conn.Release()
	if err := t.tx.Rollback(ctx); err != nil {
		return queryError(err, "ROLLBACK", 0)
	}
	return nil
}

// pgxQuerier is the minimal interface shared by *pgxpool.Pool and pgx.Tx,
// so the same mutation path works inside and outside a transaction.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// rebind translates '?' placeholders to PostgreSQL's positional '$n' form,
// skipping single-quoted literals. A doubled quote inside a literal is the
// SQL escape for a literal quote, not a terminator. Repository SQL is
// written once in the '?' dialect and works on both backends.
func rebind(sql string) string {
	if !strings.Contains(sql, "?") {
		return sql
	}
	var b strings.Builder
	b.Grow(len(sql) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\'':
			if inQuote && i+1 < len(sql) && sql[i+1] == '\'' {
				b.WriteString("''")
				i++
				continue
			}
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// returningRe detects a RETURNING clause, which changes how the generated
// identifier is read back.
var returningRe = regexp.MustCompile(`(?i)\breturning\b`)

// pgxRun executes a mutation on a pool or transaction. Statements with a
// RETURNING clause are executed as queries so the generated identifier can
// be read from the first returned column; everything else goes through
// Exec and reports the command tag's affected-row count.
func pgxRun(ctx context.Context, q pgxQuerier, sql string, args []any) (RunResult, error) {
	sql = rebind(sql)
	if returningRe.MatchString(sql) {
		rows, err := q.Query(ctx, sql, args...)
		if err != nil {
			return RunResult{}, queryError(err, sql, len(args))
		}
		collected, err := collectPgxRows(rows)
		if err != nil {
			return RunResult{}, queryError(err, sql, len(args))
		}
		res := RunResult{RowsAffected: int64(len(collected))}
		if len(collected) > 0 {
			res.InsertedID = firstInt64(collected[0])
		}
		return res, nil
	}

	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return RunResult{}, queryError(err, sql, len(args))
	}
	return RunResult{RowsAffected: tag.RowsAffected()}, nil
}

// firstInt64 pulls the single RETURNING column out of a row regardless of
// its column name.
func firstInt64(row Row) int64 {
	for col := range row {
		if id := row.Int64(col); id != 0 {
			return id
		}
	}
	return 0
}

// collectPgxRows drains a pgx result set into Row maps and closes it.
func collectPgxRows(rows pgx.Rows) ([]Row, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := []Row{}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		r := make(Row, len(fields))
		for i, f := range fields {
			r[f.Name] = vals[i]
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
