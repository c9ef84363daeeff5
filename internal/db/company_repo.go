package db

import (
	"context"

	"sprinklerops/internal/store"
	"sprinklerops/internal/types"
)

// CompanyRepository provides data access for the companies table. Companies
// are the tenants themselves, so these methods are unscoped: they serve
// registration and platform administration, not per-tenant request paths.
type CompanyRepository struct {
	ex store.Executor
}

func NewCompanyRepository(ex store.Executor) *CompanyRepository {
	return &CompanyRepository{ex: ex}
}

func rowToCompany(r store.Row) *types.Company {
	return &types.Company{
		ID:        r.Int64("id"),
		Name:      r.String("name"),
		Email:     r.String("email"),
		Phone:     r.String("phone"),
		Address:   r.String("address"),
		CreatedAt: r.Time("created_at"),
		UpdatedAt: r.Time("updated_at"),
		DeletedAt: r.NullTime("deleted_at"),
	}
}

// Create inserts a new company and returns its generated id.
// Returns ErrConflictEmail if the company email is already registered.
func (r *CompanyRepository) Create(ctx context.Context, c *types.Company) (int64, error) {
	res, err := r.ex.Run(ctx,
		`INSERT INTO companies (name, email, phone, address)
		 VALUES (?, ?, ?, ?) RETURNING id`,
		[]any{c.Name, c.Email, c.Phone, c.Address})
	if err != nil {
		if isUniqueViolation(err) {
			return 0, types.NewAppError(types.ErrCodeConflictEmail, "company email already registered", err)
		}
		return 0, err
	}
	return res.InsertedID, nil
}

// GetByID retrieves an active company. Returns ErrNotFoundCompany when the
// company does not exist or has been soft-deleted.
func (r *CompanyRepository) GetByID(ctx context.Context, id int64) (*types.Company, error) {
	row, err := r.ex.Get(ctx,
		`SELECT id, name, email, phone, address, created_at, updated_at, deleted_at
		 FROM companies WHERE id = ? AND deleted_at IS NULL`,
		[]any{id})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundCompany, "company not found", nil)
	}
	return rowToCompany(row), nil
}

// Update applies changes to the company profile.
func (r *CompanyRepository) Update(ctx context.Context, c *types.Company) error {
	res, err := r.ex.Run(ctx,
		`UPDATE companies SET name = ?, phone = ?, address = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		[]any{c.Name, c.Phone, c.Address, c.ID})
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return types.NewAppError(types.ErrCodeNotFoundCompany, "company not found", nil)
	}
	return nil
}

// SoftDelete marks the company deleted. Dependent rows are retained for
// audit; request paths stop resolving the tenant once deleted_at is set.
func (r *CompanyRepository) SoftDelete(ctx context.Context, id int64) error {
	res, err := r.ex.Run(ctx,
		`UPDATE companies SET deleted_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		[]any{id})
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return types.NewAppError(types.ErrCodeNotFoundCompany, "company not found", nil)
	}
	return nil
}
