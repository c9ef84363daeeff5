package db

import (
	"context"

	"sprinklerops/internal/store"
	"sprinklerops/internal/types"
)

// ClientRepository provides data access for the clients table.
type ClientRepository struct {
	ex store.Executor
}

func NewClientRepository(ex store.Executor) *ClientRepository {
	return &ClientRepository{ex: ex}
}

const clientColumns = `id, company_id, name, email, phone, address, notes, created_at, updated_at, deleted_at`

func rowToClient(r store.Row) *types.Client {
	return &types.Client{
		ID:        r.Int64("id"),
		CompanyID: r.Int64("company_id"),
		Name:      r.String("name"),
		Email:     r.String("email"),
		Phone:     r.String("phone"),
		Address:   r.String("address"),
		Notes:     r.String("notes"),
		CreatedAt: r.Time("created_at"),
		UpdatedAt: r.Time("updated_at"),
		DeletedAt: r.NullTime("deleted_at"),
	}
}

// Create inserts a new client and returns the generated id.
func (r *ClientRepository) Create(ctx context.Context, c *types.Client) (int64, error) {
	res, err := r.ex.Run(ctx,
		`INSERT INTO clients (company_id, name, email, phone, address, notes)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		[]any{c.CompanyID, c.Name, c.Email, c.Phone, c.Address, c.Notes},
		store.WithCompany(c.CompanyID))
	if err != nil {
		return 0, err
	}
	return res.InsertedID, nil
}

// GetByID retrieves an active client within a company.
func (r *ClientRepository) GetByID(ctx context.Context, id, companyID int64) (*types.Client, error) {
	row, err := r.ex.Get(ctx,
		`SELECT `+clientColumns+` FROM clients
		 WHERE id = ? AND company_id = ? AND deleted_at IS NULL`,
		[]any{id, companyID},
		store.WithCompany(companyID))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundClient, "client not found", nil)
	}
	return rowToClient(row), nil
}

// List returns a page of active clients ordered by name. search, when
// non-empty, filters on name and address substrings.
func (r *ClientRepository) List(ctx context.Context, companyID int64, search string, limit, offset int) ([]*types.Client, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	sql := `SELECT ` + clientColumns + ` FROM clients
		 WHERE company_id = ? AND deleted_at IS NULL`
	args := []any{companyID}
	if search != "" {
		sql += ` AND (name LIKE ? OR address LIKE ?)`
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern)
	}
	sql += ` ORDER BY name LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.ex.Query(ctx, sql, args, store.WithCompany(companyID))
	if err != nil {
		return nil, err
	}
	clients := make([]*types.Client, 0, len(rows))
	for _, row := range rows {
		clients = append(clients, rowToClient(row))
	}
	return clients, nil
}

// Update applies changes to a client record.
func (r *ClientRepository) Update(ctx context.Context, c *types.Client) error {
	res, err := r.ex.Run(ctx,
		`UPDATE clients SET name = ?, email = ?, phone = ?, address = ?, notes = ?,
		 updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND company_id = ? AND deleted_at IS NULL`,
		[]any{c.Name, c.Email, c.Phone, c.Address, c.Notes, c.ID, c.CompanyID},
		store.WithCompany(c.CompanyID))
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return types.NewAppError(types.ErrCodeNotFoundClient, "client not found", nil)
	}
	return nil
}

// SoftDelete marks a client deleted. Sites and history stay behind for
// reporting; listings and lookups stop returning the client.
func (r *ClientRepository) SoftDelete(ctx context.Context, id, companyID int64) error {
	res, err := r.ex.Run(ctx,
		`UPDATE clients SET deleted_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND company_id = ? AND deleted_at IS NULL`,
		[]any{id, companyID},
		store.WithCompany(companyID))
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return types.NewAppError(types.ErrCodeNotFoundClient, "client not found", nil)
	}
	return nil
}
