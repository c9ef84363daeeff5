package db

import (
	"context"
	"time"

	"sprinklerops/internal/store"
	"sprinklerops/internal/types"
)

// EstimateRepository provides data access for estimates and their lines.
// Estimate totals are derived from lines; callers recalculate inside the
// same transaction as any line mutation.
type EstimateRepository struct {
	ex store.Executor
}

func NewEstimateRepository(ex store.Executor) *EstimateRepository {
	return &EstimateRepository{ex: ex}
}

const estimateColumns = `id, company_id, client_id, site_id, inspection_id, status,
	total_cents, notes, approved_at, created_at, updated_at`

func rowToEstimate(r store.Row) *types.Estimate {
	return &types.Estimate{
		ID:           r.Int64("id"),
		CompanyID:    r.Int64("company_id"),
		ClientID:     r.Int64("client_id"),
		SiteID:       r.Int64("site_id"),
		InspectionID: r.NullInt64("inspection_id"),
		Status:       types.EstimateStatus(r.String("status")),
		TotalCents:   r.Int64("total_cents"),
		Notes:        r.String("notes"),
		ApprovedAt:   r.NullTime("approved_at"),
		CreatedAt:    r.Time("created_at"),
		UpdatedAt:    r.Time("updated_at"),
	}
}

func rowToEstimateLine(r store.Row) *types.EstimateLine {
	return &types.EstimateLine{
		ID:          r.Int64("id"),
		EstimateID:  r.Int64("estimate_id"),
		Description: r.String("description"),
		Quantity:    int(r.Int64("quantity")),
		UnitCents:   r.Int64("unit_cents"),
	}
}

// Create inserts a new estimate and returns the generated id.
func (r *EstimateRepository) Create(ctx context.Context, e *types.Estimate) (int64, error) {
	res, err := r.ex.Run(ctx,
		`INSERT INTO estimates (company_id, client_id, site_id, inspection_id, status, total_cents, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		[]any{e.CompanyID, e.ClientID, e.SiteID, e.InspectionID, e.Status, e.TotalCents, e.Notes},
		store.WithCompany(e.CompanyID))
	if err != nil {
		return 0, err
	}
	return res.InsertedID, nil
}

// GetByID retrieves an estimate within a company.
func (r *EstimateRepository) GetByID(ctx context.Context, id, companyID int64) (*types.Estimate, error) {
	row, err := r.ex.Get(ctx,
		`SELECT `+estimateColumns+` FROM estimates WHERE id = ? AND company_id = ?`,
		[]any{id, companyID},
		store.WithCompany(companyID))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundEstimate, "estimate not found", nil)
	}
	return rowToEstimate(row), nil
}

// List returns estimates for a company, newest first, optionally filtered
// by status.
func (r *EstimateRepository) List(ctx context.Context, companyID int64, status types.EstimateStatus, limit, offset int) ([]*types.Estimate, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	sql := `SELECT ` + estimateColumns + ` FROM estimates WHERE company_id = ?`
	args := []any{companyID}
	if status != "" {
		sql += ` AND status = ?`
		args = append(args, status)
	}
	sql += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.ex.Query(ctx, sql, args, store.WithCompany(companyID))
	if err != nil {
		return nil, err
	}
	out := make([]*types.Estimate, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowToEstimate(row))
	}
	return out, nil
}

// AddLine appends a priced line to an estimate, guarded by the company
// check on the parent row.
func (r *EstimateRepository) AddLine(ctx context.Context, companyID int64, line *types.EstimateLine) (int64, error) {
	res, err := r.ex.Run(ctx,
		`INSERT INTO estimate_lines (estimate_id, description, quantity, unit_cents)
		 SELECT id, ?, ?, ? FROM estimates WHERE id = ? AND company_id = ?`,
		[]any{line.Description, line.Quantity, line.UnitCents, line.EstimateID, companyID},
		store.WithCompany(companyID))
	if err != nil {
		return 0, err
	}
	if res.RowsAffected == 0 {
		return 0, types.NewAppError(types.ErrCodeNotFoundEstimate, "estimate not found", nil)
	}
	return res.InsertedID, nil
}

// ListLines returns the lines of an estimate in insertion order.
func (r *EstimateRepository) ListLines(ctx context.Context, estimateID, companyID int64) ([]*types.EstimateLine, error) {
	rows, err := r.ex.Query(ctx,
		`SELECT l.id, l.estimate_id, l.description, l.quantity, l.unit_cents
		 FROM estimate_lines l
		 JOIN estimates e ON e.id = l.estimate_id
		 WHERE l.estimate_id = ? AND e.company_id = ?
		 ORDER BY l.id`,
		[]any{estimateID, companyID},
		store.WithCompany(companyID))
	if err != nil {
		return nil, err
	}
	lines := make([]*types.EstimateLine, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, rowToEstimateLine(row))
	}
	return lines, nil
}

// RecalculateTotal recomputes total_cents from the estimate's lines.
func (r *EstimateRepository) RecalculateTotal(ctx context.Context, estimateID, companyID int64) error {
	res, err := r.ex.Run(ctx,
		`UPDATE estimates SET total_cents = (
			SELECT COALESCE(SUM(quantity * unit_cents), 0)
			FROM estimate_lines WHERE estimate_id = ?
		 ), updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND company_id = ?`,
		[]any{estimateID, estimateID, companyID},
		store.WithCompany(companyID))
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return types.NewAppError(types.ErrCodeNotFoundEstimate, "estimate not found", nil)
	}
	return nil
}

// UpdateStatus moves an estimate to a new status. The fromStatus guard makes
// the transition atomic: concurrent approvals cannot both succeed.
func (r *EstimateRepository) UpdateStatus(ctx context.Context, id, companyID int64, from, to types.EstimateStatus, approvedAt *time.Time) error {
	res, err := r.ex.Run(ctx,
		`UPDATE estimates SET status = ?, approved_at = COALESCE(?, approved_at),
		 updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND company_id = ? AND status = ?`,
		[]any{to, approvedAt, id, companyID, from},
		store.WithCompany(companyID))
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return types.NewAppError(types.ErrCodeConflictStatus, "estimate is not in the expected status", nil)
	}
	return nil
}
