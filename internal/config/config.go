// Package config defines the global configuration for the SprinklerOps
// backend. Configuration is loaded once at process initialization and is
// immutable thereafter, following 12-Factor principles: values come from the
// OS environment, supplemented by a .env file for local development.
//
// Any missing required value or invalid format causes startup to fail
// immediately rather than surfacing on the first query.
package config

import (
	"time"

	"sprinklerops/internal/types"
)

// SecretString is an alias for types.SecretString, used for values that must
// never appear in logs (connection strings, session keys).
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the specific subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"sprinklerops-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string   `envconfig:"PORT" default:"8080"`
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds backend selection and pool tuning parameters.
//
// Backend selection is deterministic: a non-empty URL selects PostgreSQL;
// otherwise SQLitePath selects SQLite. If neither is set, startup fails.
type DatabaseConfig struct {
	// URL selects the PostgreSQL backend when non-empty.
	URL SecretString `envconfig:"DATABASE_URL"`

	// SQLitePath selects the SQLite backend when URL is empty.
	// Use ":memory:" for an in-process throwaway database.
	SQLitePath string `envconfig:"SQLITE_PATH"`

	// Pool tuning (PostgreSQL path only; SQLite uses a single shared handle).
	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	MaxConnIdleTime time.Duration `envconfig:"DB_IDLE_TIMEOUT" default:"5m"`

	// AcquireTimeout bounds the wait for a pooled connection when the pool
	// is exhausted. Fail fast rather than queueing indefinitely.
	AcquireTimeout time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`

	// ConnectTimeout bounds establishment of a new physical connection.
	ConnectTimeout time.Duration `envconfig:"DB_CONNECTION_TIMEOUT" default:"5s"`

	// QueryTimeout is the client-side cap on a single statement.
	QueryTimeout time.Duration `envconfig:"DB_QUERY_TIMEOUT" default:"30s"`

	// SlowQueryThreshold is the duration past which a query is counted and
	// logged as slow (without failing it).
	SlowQueryThreshold time.Duration `envconfig:"DB_SLOW_QUERY_THRESHOLD" default:"1s"`

	// RetryAttempts caps read attempts on transient connection failures.
	// Mutations run exactly once regardless.
	RetryAttempts int `envconfig:"DB_RETRY_ATTEMPTS" default:"3"`

	// RetryBackoff is the base delay between read retries; the delay grows
	// linearly with the attempt number.
	RetryBackoff time.Duration `envconfig:"DB_RETRY_BACKOFF" default:"100ms"`

	// StatsLogInterval is how often the pool monitor logs a stats snapshot.
	// Zero disables the periodic logger.
	StatsLogInterval time.Duration `envconfig:"DB_STATS_LOG_INTERVAL" default:"1m"`

	// SSLMode is appended to the PostgreSQL connection string when the URL
	// does not already carry an sslmode parameter. "require" in production,
	// "disable" for local development.
	SSLMode string `envconfig:"DB_SSL_MODE" default:"" validate:"omitempty,oneof=disable require verify-ca verify-full"`
}

// AuthConfig holds session management settings.
type AuthConfig struct {
	SessionTTL     time.Duration `envconfig:"SESSION_TTL" default:"168h"`
	MinPasswordLen int           `envconfig:"MIN_PASSWORD_LENGTH" default:"10"`
}

// HasPostgres reports whether the PostgreSQL backend is selected.
func (c DatabaseConfig) HasPostgres() bool {
	return c.URL.Unmask() != ""
}

// HasSQLite reports whether the SQLite backend is selected.
func (c DatabaseConfig) HasSQLite() bool {
	return !c.HasPostgres() && c.SQLitePath != ""
}
