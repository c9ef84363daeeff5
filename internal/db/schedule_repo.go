package db

import (
	"context"
	"time"

	"sprinklerops/internal/store"
	"sprinklerops/internal/types"
)

// ScheduleRepository provides data access for the schedule_events table.
type ScheduleRepository struct {
	ex store.Executor
}

func NewScheduleRepository(ex store.Executor) *ScheduleRepository {
	return &ScheduleRepository{ex: ex}
}

const eventColumns = `id, company_id, technician_id, type, reference_id, title, starts_at, ends_at, created_at`

func rowToEvent(r store.Row) *types.ScheduleEvent {
	return &types.ScheduleEvent{
		ID:           r.Int64("id"),
		CompanyID:    r.Int64("company_id"),
		TechnicianID: r.Int64("technician_id"),
		Type:         types.EventType(r.String("type")),
		ReferenceID:  r.NullInt64("reference_id"),
		Title:        r.String("title"),
		StartsAt:     r.Time("starts_at"),
		EndsAt:       r.Time("ends_at"),
		CreatedAt:    r.Time("created_at"),
	}
}

// Create inserts a calendar entry and returns the generated id.
func (r *ScheduleRepository) Create(ctx context.Context, e *types.ScheduleEvent) (int64, error) {
	res, err := r.ex.Run(ctx,
		`INSERT INTO schedule_events (company_id, technician_id, type, reference_id, title, starts_at, ends_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		[]any{e.CompanyID, e.TechnicianID, e.Type, e.ReferenceID, e.Title, e.StartsAt, e.EndsAt},
		store.WithCompany(e.CompanyID))
	if err != nil {
		return 0, err
	}
	return res.InsertedID, nil
}

// ListRange returns a company's events overlapping [from, to), earliest
// first. technicianID filters to one technician's calendar when set.
func (r *ScheduleRepository) ListRange(ctx context.Context, companyID, technicianID int64, from, to time.Time) ([]*types.ScheduleEvent, error) {
	sql := `SELECT ` + eventColumns + ` FROM schedule_events
		 WHERE company_id = ? AND starts_at < ? AND ends_at > ?`
	args := []any{companyID, to, from}
	if technicianID != 0 {
		sql += ` AND technician_id = ?`
		args = append(args, technicianID)
	}
	sql += ` ORDER BY starts_at, id`

	rows, err := r.ex.Query(ctx, sql, args, store.WithCompany(companyID))
	if err != nil {
		return nil, err
	}
	events := make([]*types.ScheduleEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, rowToEvent(row))
	}
	return events, nil
}

// Delete removes a calendar entry.
func (r *ScheduleRepository) Delete(ctx context.Context, id, companyID int64) error {
	res, err := r.ex.Run(ctx,
		`DELETE FROM schedule_events WHERE id = ? AND company_id = ?`,
		[]any{id, companyID},
		store.WithCompany(companyID))
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return types.NewAppError(types.ErrCodeNotFoundEvent, "schedule event not found", nil)
	}
	return nil
}
