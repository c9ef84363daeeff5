package db

import (
	"context"

	"sprinklerops/internal/store"
	"sprinklerops/internal/types"
)

// UserRepository provides data access for the users table.
type UserRepository struct {
	ex store.Executor
}

func NewUserRepository(ex store.Executor) *UserRepository {
	return &UserRepository{ex: ex}
}

const userColumns = `id, company_id, email, name, role, password_hash, active, created_at, updated_at`

func rowToUser(r store.Row) *types.User {
	return &types.User{
		ID:           r.Int64("id"),
		CompanyID:    r.Int64("company_id"),
		Email:        r.String("email"),
		Name:         r.String("name"),
		Role:         types.UserRole(r.String("role")),
		PasswordHash: r.String("password_hash"),
		Active:       r.Bool("active"),
		CreatedAt:    r.Time("created_at"),
		UpdatedAt:    r.Time("updated_at"),
	}
}

// Create inserts a new user and returns the generated id.
// Returns ErrConflictEmail when the email is already taken.
func (r *UserRepository) Create(ctx context.Context, u *types.User) (int64, error) {
	res, err := r.ex.Run(ctx,
		`INSERT INTO users (company_id, email, name, role, password_hash, active)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		[]any{u.CompanyID, u.Email, u.Name, u.Role, u.PasswordHash, u.Active},
		store.WithCompany(u.CompanyID))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, types.NewAppError(types.ErrCodeConflictEmail, "email already in use", err)
		}
		return 0, err
	}
	return res.InsertedID, nil
}

// GetByID retrieves a user within a company.
func (r *UserRepository) GetByID(ctx context.Context, id, companyID int64) (*types.User, error) {
	row, err := r.ex.Get(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ? AND company_id = ?`,
		[]any{id, companyID},
		store.WithCompany(companyID))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	return rowToUser(row), nil
}

// GetByEmail retrieves a user by email for login. Emails are globally
// unique, so this lookup runs unscoped: the caller does not yet know which
// company the user belongs to.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	row, err := r.ex.Get(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`,
		[]any{email})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	return rowToUser(row), nil
}

// List returns all users of a company, owners first.
func (r *UserRepository) List(ctx context.Context, companyID int64) ([]*types.User, error) {
	rows, err := r.ex.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE company_id = ?
		 ORDER BY CASE role WHEN 'owner' THEN 0 WHEN 'admin' THEN 1 ELSE 2 END, name`,
		[]any{companyID},
		store.WithCompany(companyID))
	if err != nil {
		return nil, err
	}
	users := make([]*types.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, rowToUser(row))
	}
	return users, nil
}

// Update applies changes to the mutable profile fields.
func (r *UserRepository) Update(ctx context.Context, u *types.User) error {
	res, err := r.ex.Run(ctx,
		`UPDATE users SET name = ?, role = ?, active = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND company_id = ?`,
		[]any{u.Name, u.Role, u.Active, u.ID, u.CompanyID},
		store.WithCompany(u.CompanyID))
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, userID, companyID int64, newHash string) error {
	res, err := r.ex.Run(ctx,
		`UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND company_id = ?`,
		[]any{newHash, userID, companyID},
		store.WithCompany(companyID))
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	return nil
}

// CountOwners counts active owner-role users for a company. Callers enforce
// the last-owner constraint inside a transaction.
func (r *UserRepository) CountOwners(ctx context.Context, companyID int64) (int64, error) {
	row, err := r.ex.Get(ctx,
		`SELECT COUNT(*) AS n FROM users
		 WHERE company_id = ? AND role = 'owner' AND active = ?`,
		[]any{companyID, true},
		store.WithCompany(companyID))
	if err != nil {
		return 0, err
	}
	return row.Int64("n"), nil
}
