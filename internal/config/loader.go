// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs.
//  2. Load .env file via godotenv (non-fatal if absent; never overrides
//     variables already present in the OS environment).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Validate the struct using go-playground/validator.
//  5. Check backend selection: exactly one storage backend must be
//     configured, and its required settings must be present.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"sprinklerops/internal/types"
)

// Load loads and validates the process configuration. A nil error guarantees
// the selected storage backend has everything it needs to open.
func Load() (*Config, error) {
	time.Local = time.UTC

	// Non-fatal if no .env file exists in the working directory.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, types.NewAppError(types.ErrCodeDBConfiguration,
			"failed to process environment configuration", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, types.NewAppError(types.ErrCodeDBConfiguration,
			"configuration validation failed", err)
	}

	if err := cfg.Database.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate enforces the backend-selection contract: exactly one backend,
// with sane pool bounds. Called at startup so misconfiguration fails the
// process before the first query.
func (c DatabaseConfig) Validate() error {
	if !c.HasPostgres() && !c.HasSQLite() {
		return types.NewAppError(types.ErrCodeDBConfiguration,
			"no storage backend configured: set DATABASE_URL or SQLITE_PATH", nil)
	}
	if c.MaxConns < 1 {
		return types.NewAppError(types.ErrCodeDBConfiguration,
			fmt.Sprintf("DB_MAX_CONNS must be at least 1, got %d", c.MaxConns), nil)
	}
	if c.MinConns < 0 || c.MinConns > c.MaxConns {
		return types.NewAppError(types.ErrCodeDBConfiguration,
			fmt.Sprintf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS, got %d", c.MinConns), nil)
	}
	if c.AcquireTimeout <= 0 || c.QueryTimeout <= 0 {
		return types.NewAppError(types.ErrCodeDBConfiguration,
			"DB_ACQUIRE_TIMEOUT and DB_QUERY_TIMEOUT must be positive", nil)
	}
	return nil
}
