package db

import (
	"context"
	"time"

	"sprinklerops/internal/store"
	"sprinklerops/internal/types"
)

// SessionRepository provides data access for the sessions table. Sessions
// are looked up by token hash before the tenant is known, so reads here run
// unscoped; the resolved session itself carries the company scope used for
// everything that follows.
type SessionRepository struct {
	ex store.Executor
}

func NewSessionRepository(ex store.Executor) *SessionRepository {
	return &SessionRepository{ex: ex}
}

func rowToSession(r store.Row) *types.Session {
	return &types.Session{
		ID:        r.String("id"),
		UserID:    r.Int64("user_id"),
		CompanyID: r.Int64("company_id"),
		TokenHash: r.String("token_hash"),
		ExpiresAt: r.Time("expires_at"),
		CreatedAt: r.Time("created_at"),
	}
}

// Create persists a new session.
func (r *SessionRepository) Create(ctx context.Context, s *types.Session) error {
	_, err := r.ex.Run(ctx,
		`INSERT INTO sessions (id, user_id, company_id, token_hash, expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		[]any{s.ID, s.UserID, s.CompanyID, s.TokenHash, s.ExpiresAt})
	return err
}

// GetByTokenHash resolves a live session from a token hash. Expired
// sessions are treated as absent.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*types.Session, error) {
	row, err := r.ex.Get(ctx,
		`SELECT id, user_id, company_id, token_hash, expires_at, created_at
		 FROM sessions WHERE token_hash = ? AND expires_at > ?`,
		[]any{tokenHash, now})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid or expired session", nil)
	}
	return rowToSession(row), nil
}

// Delete removes a session (logout).
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.ex.Run(ctx, `DELETE FROM sessions WHERE id = ?`, []any{id})
	return err
}

// DeleteForUser removes every session of one user, e.g. after a password
// change or deactivation.
func (r *SessionRepository) DeleteForUser(ctx context.Context, userID int64) error {
	_, err := r.ex.Run(ctx, `DELETE FROM sessions WHERE user_id = ?`, []any{userID})
	return err
}

// DeleteExpired prunes expired sessions and reports how many were removed.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.ex.Run(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, []any{now})
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}
