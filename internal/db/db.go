// Package db provides repository implementations for the SprinklerOps CRM.
// All repositories accept a store.Executor, satisfied by the Store itself
// and by the executor passed to Transaction callbacks, so the same
// repository code works inside and outside a transaction and on either
// storage backend.
//
// Every tenant-scoped query carries an explicit company_id predicate in
// addition to the store-level company scope. On PostgreSQL the scope also
// activates row-level security; on SQLite the predicates are the isolation
// mechanism.
package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// isUniqueViolation reports whether err is a unique-constraint failure on
// either backend.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
