package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprinklerops/internal/types"
)

func validDBConfig() DatabaseConfig {
	return DatabaseConfig{
		SQLitePath:         ":memory:",
		MaxConns:           10,
		MinConns:           2,
		AcquireTimeout:     2 * time.Second,
		QueryTimeout:       30 * time.Second,
		SlowQueryThreshold: time.Second,
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("SQLITE_PATH", ":memory:")
	t.Setenv("DB_MAX_CONNS", "5")
	t.Setenv("DB_SLOW_QUERY_THRESHOLD", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, 5, cfg.Database.MaxConns)
	assert.Equal(t, 250*time.Millisecond, cfg.Database.SlowQueryThreshold)
	assert.Equal(t, 3, cfg.Database.RetryAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Database.RetryBackoff)
	assert.True(t, cfg.Database.HasSQLite())
	assert.False(t, cfg.Database.HasPostgres())
}

func TestDatabaseConfig_BackendSelection(t *testing.T) {
	cfg := validDBConfig()
	cfg.URL = "postgres://app:secret@db:5432/sprinklerops"

	// PostgreSQL wins when both are configured.
	assert.True(t, cfg.HasPostgres())
	assert.False(t, cfg.HasSQLite())
}

func TestDatabaseConfig_Validate_NoBackend(t *testing.T) {
	cfg := validDBConfig()
	cfg.SQLitePath = ""

	err := cfg.Validate()
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeDBConfiguration, appErr.Code)
}

func TestDatabaseConfig_Validate_PoolBounds(t *testing.T) {
	cfg := validDBConfig()
	cfg.MinConns = 20 // exceeds MaxConns
	require.Error(t, cfg.Validate())

	cfg = validDBConfig()
	cfg.MaxConns = 0
	require.Error(t, cfg.Validate())

	cfg = validDBConfig()
	cfg.AcquireTimeout = 0
	require.Error(t, cfg.Validate())

	require.NoError(t, validDBConfig().Validate())
}

func TestLoad_RedactsConnectionString(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("DATABASE_URL", "postgres://app:hunter2@db:5432/prod")

	cfg, err := Load()
	require.NoError(t, err)

	assert.NotContains(t, cfg.Database.URL.String(), "hunter2")
	assert.Contains(t, cfg.Database.URL.Unmask(), "hunter2")
}
