package store

import (
	"context"
	"log/slog"

	"sprinklerops/internal/config"
)

// Open selects and constructs the storage backend from configuration. The
// choice is deterministic and happens exactly once at startup: a non-empty
// DATABASE_URL selects PostgreSQL, otherwise SQLITE_PATH selects SQLite,
// otherwise Open fails with a configuration error. Mixing backends within
// one process is not possible through this constructor.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		b   backend
		err error
	)
	switch {
	case cfg.HasPostgres():
		b, err = newPostgresBackend(ctx, cfg)
	default:
		b, err = newSQLiteBackend(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}

	monitor := NewMonitor(logger, cfg.SlowQueryThreshold, cfg.StatsLogInterval, b.poolGauges)
	db := newDB(b, monitor, logger, cfg.QueryTimeout)
	db.retrier = NewRetrier(logger, cfg.RetryAttempts, cfg.RetryBackoff)

	logger.Info("storage backend ready",
		"backend", b.name(),
		"max_conns", cfg.MaxConns,
		"slow_query_threshold", cfg.SlowQueryThreshold,
	)
	return db, nil
}
