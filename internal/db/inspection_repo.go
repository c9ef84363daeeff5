package db

import (
	"context"
	"time"

	"sprinklerops/internal/store"
	"sprinklerops/internal/types"
)

// InspectionRepository provides data access for inspections and their line
// items.
type InspectionRepository struct {
	ex store.Executor
}

func NewInspectionRepository(ex store.Executor) *InspectionRepository {
	return &InspectionRepository{ex: ex}
}

const inspectionColumns = `id, company_id, site_id, technician_id, status, scheduled_for,
	completed_at, summary, created_at, updated_at`

func rowToInspection(r store.Row) *types.Inspection {
	return &types.Inspection{
		ID:           r.Int64("id"),
		CompanyID:    r.Int64("company_id"),
		SiteID:       r.Int64("site_id"),
		TechnicianID: r.Int64("technician_id"),
		Status:       types.InspectionStatus(r.String("status")),
		ScheduledFor: r.NullTime("scheduled_for"),
		CompletedAt:  r.NullTime("completed_at"),
		Summary:      r.String("summary"),
		CreatedAt:    r.Time("created_at"),
		UpdatedAt:    r.Time("updated_at"),
	}
}

func rowToInspectionItem(r store.Row) *types.InspectionItem {
	return &types.InspectionItem{
		ID:           r.Int64("id"),
		InspectionID: r.Int64("inspection_id"),
		Zone:         int(r.Int64("zone")),
		Finding:      r.String("finding"),
		Severity:     r.String("severity"),
		PhotoURL:     r.String("photo_url"),
	}
}

// Create inserts a new inspection and returns the generated id.
func (r *InspectionRepository) Create(ctx context.Context, ins *types.Inspection) (int64, error) {
	res, err := r.ex.Run(ctx,
		`INSERT INTO inspections (company_id, site_id, technician_id, status, scheduled_for, summary)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		[]any{ins.CompanyID, ins.SiteID, ins.TechnicianID, ins.Status, ins.ScheduledFor, ins.Summary},
		store.WithCompany(ins.CompanyID))
	if err != nil {
		return 0, err
	}
	return res.InsertedID, nil
}

// GetByID retrieves an inspection within a company.
func (r *InspectionRepository) GetByID(ctx context.Context, id, companyID int64) (*types.Inspection, error) {
	row, err := r.ex.Get(ctx,
		`SELECT `+inspectionColumns+` FROM inspections WHERE id = ? AND company_id = ?`,
		[]any{id, companyID},
		store.WithCompany(companyID))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundInspection, "inspection not found", nil)
	}
	return rowToInspection(row), nil
}

// List returns inspections for a company, newest first. status filters when
// non-empty.
func (r *InspectionRepository) List(ctx context.Context, companyID int64, status types.InspectionStatus, limit, offset int) ([]*types.Inspection, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	sql := `SELECT ` + inspectionColumns + ` FROM inspections WHERE company_id = ?`
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
	out := make([]*types.Inspection, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowToInspection(row))
	}
	return out, nil
}

// UpdateStatus moves an inspection through its workflow.
func (r *InspectionRepository) UpdateStatus(ctx context.Context, id, companyID int64, status types.InspectionStatus) error {
	res, err := r.ex.Run(ctx,
		`UPDATE inspections SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND company_id = ?`,
		[]any{status, id, companyID},
		store.WithCompany(companyID))
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return types.NewAppError(types.ErrCodeNotFoundInspection, "inspection not found", nil)
	}
	return nil
}

// Complete marks an inspection finished with its summary.
func (r *InspectionRepository) Complete(ctx context.Context, id, companyID int64, summary string, completedAt time.Time) error {
	res, err := r.ex.Run(ctx,
		`UPDATE inspections SET status = ?, summary = ?, completed_at = ?,
		 updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND company_id = ?`,
		[]any{types.InspectionCompleted, summary, completedAt, id, companyID},
		store.WithCompany(companyID))
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return types.NewAppError(types.ErrCodeNotFoundInspection, "inspection not found", nil)
	}
	return nil
}

// AddItem records one finding on an inspection.
func (r *InspectionRepository) AddItem(ctx context.Context, companyID int64, item *types.InspectionItem) (int64, error) {
	res, err := r.ex.Run(ctx,
		`INSERT INTO inspection_items (inspection_id, zone, finding, severity, photo_url)
		 SELECT id, ?, ?, ?, ? FROM inspections WHERE id = ? AND company_id = ?`,
		[]any{item.Zone, item.Finding, item.Severity, item.PhotoURL, item.InspectionID, companyID},
		store.WithCompany(companyID))
	if err != nil {
		return 0, err
	}
	if res.RowsAffected == 0 {
		return 0, types.NewAppError(types.ErrCodeNotFoundInspection, "inspection not found", nil)
	}
	return res.InsertedID, nil
}

// ListItems returns the findings of an inspection in zone order.
func (r *InspectionRepository) ListItems(ctx context.Context, inspectionID, companyID int64) ([]*types.InspectionItem, error) {
	rows, err := r.ex.Query(ctx,
		`SELECT it.id, it.inspection_id, it.zone, it.finding, it.severity, it.photo_url
		 FROM inspection_items it
		 JOIN inspections i ON i.id = it.inspection_id
		 WHERE it.inspection_id = ? AND i.company_id = ?
		 ORDER BY it.zone, it.id`,
		[]any{inspectionID, companyID},
		store.WithCompany(companyID))
	if err != nil {
		return nil, err
	}
	items := make([]*types.InspectionItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, rowToInspectionItem(row))
	}
	return items, nil
}
