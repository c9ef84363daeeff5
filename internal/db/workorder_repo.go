package db

import (
	"context"
	"time"

	"sprinklerops/internal/store"
	"sprinklerops/internal/types"
)

// WorkOrderRepository provides data access for the work_orders table.
type WorkOrderRepository struct {
	ex store.Executor
}

func NewWorkOrderRepository(ex store.Executor) *WorkOrderRepository {
	return &WorkOrderRepository{ex: ex}
}

const workOrderColumns = `id, company_id, client_id, site_id, estimate_id, technician_id,
	status, description, scheduled_for, completed_at, created_at, updated_at`

func rowToWorkOrder(r store.Row) *types.WorkOrder {
	return &types.WorkOrder{
		ID:           r.Int64("id"),
		CompanyID:    r.Int64("company_id"),
		ClientID:     r.Int64("client_id"),
		SiteID:       r.Int64("site_id"),
		EstimateID:   r.NullInt64("estimate_id"),
		TechnicianID: r.NullInt64("technician_id"),
		Status:       types.WorkOrderStatus(r.String("status")),
		Description:  r.String("description"),
		ScheduledFor: r.NullTime("scheduled_for"),
		CompletedAt:  r.NullTime("completed_at"),
		CreatedAt:    r.Time("created_at"),
		UpdatedAt:    r.Time("updated_at"),
	}
}

// Create inserts a new work order and returns the generated id.
func (r *WorkOrderRepository) Create(ctx context.Context, w *types.WorkOrder) (int64, error) {
	res, err := r.ex.Run(ctx,
		`INSERT INTO work_orders (company_id, client_id, site_id, estimate_id, technician_id, status, description, scheduled_for)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		[]any{w.CompanyID, w.ClientID, w.SiteID, w.EstimateID, w.TechnicianID, w.Status, w.Description, w.ScheduledFor},
		store.WithCompany(w.CompanyID))
	if err != nil {
		return 0, err
	}
	return res.InsertedID, nil
}

// GetByID retrieves a work order within a company.
func (r *WorkOrderRepository) GetByID(ctx context.Context, id, companyID int64) (*types.WorkOrder, error) {
	row, err := r.ex.Get(ctx,
		`SELECT `+workOrderColumns+` FROM work_orders WHERE id = ? AND company_id = ?`,
		[]any{id, companyID},
		store.WithCompany(companyID))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundWorkOrder, "work order not found", nil)
	}
	return rowToWorkOrder(row), nil
}

// List returns work orders for a company, newest first. status and
// technicianID filter when set.
func (r *WorkOrderRepository) List(ctx context.Context, companyID int64, status types.WorkOrderStatus, technicianID int64, limit, offset int) ([]*types.WorkOrder, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	sql := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE company_id = ?`
	args := []any{companyID}
	if status != "" {
		sql += ` AND status = ?`
		args = append(args, status)
	}
	if technicianID != 0 {
		sql += ` AND technician_id = ?`
		args = append(args, technicianID)
	}
	sql += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.ex.Query(ctx, sql, args, store.WithCompany(companyID))
	if err != nil {
		return nil, err
	}
	out := make([]*types.WorkOrder, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowToWorkOrder(row))
	}
	return out, nil
}

// UpdateStatus transitions a work order. The from guard in the WHERE clause
// makes concurrent transitions race-safe; legality of the transition itself
// is checked by the caller against the workflow rules.
func (r *WorkOrderRepository) UpdateStatus(ctx context.Context, id, companyID int64, from, to types.WorkOrderStatus, completedAt *time.Time) error {
	res, err := r.ex.Run(ctx,
		`UPDATE work_orders SET status = ?, completed_at = COALESCE(?, completed_at),
		 updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND company_id = ? AND status = ?`,
		[]any{to, completedAt, id, companyID, from},
		store.WithCompany(companyID))
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return types.NewAppError(types.ErrCodeConflictStatus, "work order is not in the expected status", nil)
	}
	return nil
}

// Assign sets the technician and the scheduled time.
func (r *WorkOrderRepository) Assign(ctx context.Context, id, companyID, technicianID int64, scheduledFor time.Time) error {
	res, err := r.ex.Run(ctx,
		`UPDATE work_orders SET technician_id = ?, scheduled_for = ?,
		 updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND company_id = ?`,
		[]any{technicianID, scheduledFor, id, companyID},
		store.WithCompany(companyID))
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return types.NewAppError(types.ErrCodeNotFoundWorkOrder, "work order not found", nil)
	}
	return nil
}
