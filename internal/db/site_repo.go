package db

import (
	"context"

	"sprinklerops/internal/store"
	"sprinklerops/internal/types"
)

// SiteRepository provides data access for the sites table.
type SiteRepository struct {
	ex store.Executor
}

func NewSiteRepository(ex store.Executor) *SiteRepository {
	return &SiteRepository{ex: ex}
}

const siteColumns = `id, company_id, client_id, label, address, zone_count, notes, created_at, updated_at`

func rowToSite(r store.Row) *types.Site {
	return &types.Site{
		ID:        r.Int64("id"),
		CompanyID: r.Int64("company_id"),
		ClientID:  r.Int64("client_id"),
		Label:     r.String("label"),
		Address:   r.String("address"),
		ZoneCount: int(r.Int64("zone_count")),
		Notes:     r.String("notes"),
		CreatedAt: r.Time("created_at"),
		UpdatedAt: r.Time("updated_at"),
	}
}

// Create inserts a new site and returns the generated id.
func (r *SiteRepository) Create(ctx context.Context, s *types.Site) (int64, error) {
	res, err := r.ex.Run(ctx,
		`INSERT INTO sites (company_id, client_id, label, address, zone_count, notes)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		[]any{s.CompanyID, s.ClientID, s.Label, s.Address, s.ZoneCount, s.Notes},
		store.WithCompany(s.CompanyID))
	if err != nil {
		return 0, err
	}
	return res.InsertedID, nil
}

// GetByID retrieves a site within a company.
func (r *SiteRepository) GetByID(ctx context.Context, id, companyID int64) (*types.Site, error) {
	row, err := r.ex.Get(ctx,
		`SELECT `+siteColumns+` FROM sites WHERE id = ? AND company_id = ?`,
		[]any{id, companyID},
		store.WithCompany(companyID))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundSite, "site not found", nil)
	}
	return rowToSite(row), nil
}

// ListByClient returns all sites belonging to one client.
func (r *SiteRepository) ListByClient(ctx context.Context, clientID, companyID int64) ([]*types.Site, error) {
	rows, err := r.ex.Query(ctx,
		`SELECT `+siteColumns+` FROM sites
		 WHERE client_id = ? AND company_id = ? ORDER BY label`,
		[]any{clientID, companyID},
		store.WithCompany(companyID))
	if err != nil {
		return nil, err
	}
	sites := make([]*types.Site, 0, len(rows))
	for _, row := range rows {
		sites = append(sites, rowToSite(row))
	}
	return sites, nil
}

// Update applies changes to a site record.
func (r *SiteRepository) Update(ctx context.Context, s *types.Site) error {
	res, err := r.ex.Run(ctx,
		`UPDATE sites SET label = ?, address = ?, zone_count = ?, notes = ?,
		 updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND company_id = ?`,
		[]any{s.Label, s.Address, s.ZoneCount, s.Notes, s.ID, s.CompanyID},
		store.WithCompany(s.CompanyID))
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSite, "site not found", nil)
	}
	return nil
}
