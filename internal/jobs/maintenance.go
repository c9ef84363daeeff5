// Package jobs implements the offline maintenance tasks run by the ops
// binary: pruning expired sessions and purging soft-deleted records once
// their retention window has passed.
//
// Services accept a `now` parameter so runs are deterministic in tests and
// manual backfills can replay a reference time. Batch limits keep a single
// run bounded; whatever is left over is picked up by the next run.
//
// Tenant-table deletes run inside a transaction scoped to the owning
// company, so they pass row-level security on PostgreSQL. The one
// cross-tenant read, listing purge candidates across all companies, needs a
// connection role with BYPASSRLS there; on SQLite no such role exists and
// the read runs as-is.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sprinklerops/internal/store"
)

// DefaultClientRetention is how long a soft-deleted client is kept before
// hard deletion.
const DefaultClientRetention = 90 * 24 * time.Hour

// DefaultPurgeBatchLimit bounds how many soft-deleted clients one run
// removes.
const DefaultPurgeBatchLimit = 100

// SoftDeletedClient identifies a purge candidate together with its owning
// company, so the delete can run under that company's scope.
type SoftDeletedClient struct {
	ID        int64
	CompanyID int64
}

// MaintenanceDB defines the database operations the maintenance service
// needs. The store-backed implementation is NewMaintenanceDB.
type MaintenanceDB interface {
	// DeleteExpiredSessions removes sessions past their expiry and reports
	// how many were removed.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// ListSoftDeletedClients returns clients soft-deleted before cutoff,
	// across all companies.
	ListSoftDeletedClients(ctx context.Context, cutoff time.Time, limit int) ([]SoftDeletedClient, error)

	// HardDeleteClient permanently removes a client and its dependent rows
	// within the given company's scope.
	HardDeleteClient(ctx context.Context, clientID, companyID int64) error
}

// MaintenanceService runs the cleanup tasks.
type MaintenanceService struct {
	db     MaintenanceDB
	logger *slog.Logger
}

// NewMaintenanceService creates a MaintenanceService.
func NewMaintenanceService(db MaintenanceDB, logger *slog.Logger) *MaintenanceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MaintenanceService{db: db, logger: logger}
}

// PruneSessions removes expired sessions. Returns the count removed.
func (s *MaintenanceService) PruneSessions(ctx context.Context, now time.Time) (int64, error) {
	count, err := s.db.DeleteExpiredSessions(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	if count > 0 {
		s.logger.InfoContext(ctx, "pruned expired sessions", "count", count)
	}
	return count, nil
}

// PurgeSoftDeletedClients permanently removes clients that were soft-deleted
// more than retention ago. A failed delete is logged and skipped; that
// client is retried on the next run. Returns the count removed.
func (s *MaintenanceService) PurgeSoftDeletedClients(ctx context.Context, now time.Time, retention time.Duration, limit int) (int, error) {
	cutoff := now.Add(-retention)

	clients, err := s.db.ListSoftDeletedClients(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("listing soft-deleted clients: %w", err)
	}
	if len(clients) == 0 {
		s.logger.InfoContext(ctx, "no soft-deleted clients to purge")
		return 0, nil
	}

	deleted := 0
	for _, c := range clients {
		if err := s.db.HardDeleteClient(ctx, c.ID, c.CompanyID); err != nil {
			s.logger.ErrorContext(ctx, "failed to hard delete client",
				"client_id", c.ID,
				"company_id", c.CompanyID,
				"error", err,
			)
			continue
		}
		deleted++
	}

	s.logger.InfoContext(ctx, "soft-deleted client purge complete",
		"deleted", deleted,
		"cutoff", cutoff.Format(time.RFC3339),
	)
	return deleted, nil
}

// RunAll executes every maintenance task once, continuing past individual
// failures so one broken task does not starve the others. The first error
// encountered is returned after all tasks have run.
func (s *MaintenanceService) RunAll(ctx context.Context, now time.Time) error {
	var firstErr error

	if _, err := s.PruneSessions(ctx, now); err != nil {
		s.logger.ErrorContext(ctx, "session prune failed", "error", err)
		firstErr = err
	}
	if _, err := s.PurgeSoftDeletedClients(ctx, now, DefaultClientRetention, DefaultPurgeBatchLimit); err != nil {
		s.logger.ErrorContext(ctx, "client purge failed", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// maintenanceDB is the store-backed MaintenanceDB. Session pruning touches
// only the sessions table, which carries no row-level security. Client
// purging lists candidates across tenants (BYPASSRLS territory on
// PostgreSQL) and then deletes each one under its own company's scope.
type maintenanceDB struct {
	st store.Store
}

// NewMaintenanceDB creates a store-backed MaintenanceDB.
func NewMaintenanceDB(st store.Store) MaintenanceDB {
	return &maintenanceDB{st: st}
}

func (m *maintenanceDB) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := m.st.Run(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, []any{now})
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

func (m *maintenanceDB) ListSoftDeletedClients(ctx context.Context, cutoff time.Time, limit int) ([]SoftDeletedClient, error) {
	rows, err := m.st.Query(ctx,
		`SELECT id, company_id FROM clients WHERE deleted_at IS NOT NULL AND deleted_at < ? ORDER BY id LIMIT ?`,
		[]any{cutoff, limit})
	if err != nil {
		return nil, err
	}
	clients := make([]SoftDeletedClient, 0, len(rows))
	for _, row := range rows {
		clients = append(clients, SoftDeletedClient{
			ID:        row.Int64("id"),
			CompanyID: row.Int64("company_id"),
		})
	}
	return clients, nil
}

// HardDeleteClient removes the client and everything hanging off it in one
// transaction scoped to the owning company, child tables first.
func (m *maintenanceDB) HardDeleteClient(ctx context.Context, clientID, companyID int64) error {
	return m.st.Transaction(ctx, func(ctx context.Context, ex store.Executor) error {
		statements := []string{
			`DELETE FROM schedule_events WHERE reference_id IN (
				SELECT id FROM work_orders WHERE client_id = ?
			) AND type = 'work_order'`,
			`DELETE FROM schedule_events WHERE reference_id IN (
				SELECT i.id FROM inspections i
				JOIN sites s ON s.id = i.site_id WHERE s.client_id = ?
			) AND type = 'inspection'`,
			`DELETE FROM work_orders WHERE client_id = ?`,
			`DELETE FROM estimate_lines WHERE estimate_id IN (
				SELECT id FROM estimates WHERE client_id = ?
			)`,
			`DELETE FROM estimates WHERE client_id = ?`,
			`DELETE FROM inspection_items WHERE inspection_id IN (
				SELECT i.id FROM inspections i
				JOIN sites s ON s.id = i.site_id WHERE s.client_id = ?
			)`,
			`DELETE FROM inspections WHERE site_id IN (
				SELECT id FROM sites WHERE client_id = ?
			)`,
			`DELETE FROM sites WHERE client_id = ?`,
			`DELETE FROM clients WHERE id = ?`,
		}
		for _, sql := range statements {
			if _, err := ex.Run(ctx, sql, []any{clientID}); err != nil {
				return err
			}
		}
		return nil
	}, store.WithCompany(companyID))
}
