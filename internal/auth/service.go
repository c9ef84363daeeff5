package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"sprinklerops/internal/config"
	"sprinklerops/internal/db"
	"sprinklerops/internal/store"
	"sprinklerops/internal/types"
)

// Service implements registration, login, session validation, and logout.
// Multi-step flows run inside a single store transaction so partial writes
// never survive a failure.
type Service struct {
	st     store.Store
	cfg    config.AuthConfig
	clock  types.Clock
	logger *slog.Logger
}

// NewService creates an auth Service.
func NewService(st store.Store, cfg config.AuthConfig, clock types.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{st: st, cfg: cfg, clock: clock, logger: logger}
}

// RegisterCompany creates a new tenant with its owner account. Company and
// owner are inserted atomically: a failure on either leaves no trace.
func (s *Service) RegisterCompany(ctx context.Context, companyName, email, ownerName, password string) (*types.Company, *types.User, error) {
	email = CanonicalizeEmail(email)
	if len(password) < s.cfg.MinPasswordLen {
		return nil, nil, types.NewAppError(types.ErrCodeValidationInvalidField,
			fmt.Sprintf("password must be at least %d characters", s.cfg.MinPasswordLen), nil)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, nil, err
	}

	var (
		company types.Company
		owner   types.User
	)
	err = s.st.Transaction(ctx, func(txCtx context.Context, ex store.Executor) error {
		companyID, err := db.NewCompanyRepository(ex).Create(txCtx, &types.Company{
			Name:  companyName,
			Email: email,
		})
		if err != nil {
			return err
		}

		ownerID, err := db.NewUserRepository(ex).Create(txCtx, &types.User{
			CompanyID:    companyID,
			Email:        email,
			Name:         ownerName,
			Role:         types.RoleOwner,
			PasswordHash: hash,
			Active:       true,
		})
		if err != nil {
			return err
		}

		company = types.Company{ID: companyID, Name: companyName, Email: email}
		owner = types.User{ID: ownerID, CompanyID: companyID, Email: email, Name: ownerName, Role: types.RoleOwner, Active: true}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("company registered", "company_id", company.ID, "owner_id", owner.ID)
	return &company, &owner, nil
}

// Login authenticates a user by email and password and opens a session.
// It returns the session and the raw token for the client; only the
// token's hash is stored. Unknown emails, wrong passwords, and deactivated
// accounts all fail with the same credential error so the endpoint does
// not leak which accounts exist.
func (s *Service) Login(ctx context.Context, email, password string) (*types.Session, string, error) {
	email = CanonicalizeEmail(email)

	user, err := db.NewUserRepository(s.st).GetByEmail(ctx, email)
	if err != nil {
		return nil, "", types.NewAppError(types.ErrCodeAuthInvalidCreds, "invalid email or password", nil)
	}
	if !user.Active || !VerifyPassword(user.PasswordHash, password) {
		return nil, "", types.NewAppError(types.ErrCodeAuthInvalidCreds, "invalid email or password", nil)
	}

	rawToken, err := GenerateToken()
	if err != nil {
		return nil, "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to generate session token", err)
	}

	now := s.clock.Now()
	session := &types.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CompanyID: user.CompanyID,
		TokenHash: HashToken(rawToken),
		ExpiresAt: now.Add(s.cfg.SessionTTL),
		CreatedAt: now,
	}

	err = s.st.Transaction(ctx, func(txCtx context.Context, ex store.Executor) error {
		sessions := db.NewSessionRepository(ex)
		// Lazy cleanup: login is a natural moment to prune expired
		// sessions.
		if _, err := sessions.DeleteExpired(txCtx, now); err != nil {
			return err
		}
		return sessions.Create(txCtx, session)
	})
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("login succeeded", "user_id", user.ID, "company_id", user.CompanyID)
	return session, rawToken, nil
}

// Authenticate resolves a raw session token to the acting user. It is the
// request-path hot spot: one indexed lookup by token hash, one user fetch.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (types.Actor, error) {
	if rawToken == "" {
		return types.Actor{}, types.NewAppError(types.ErrCodeAuthTokenMissing, "missing session token", nil)
	}

	session, err := db.NewSessionRepository(s.st).GetByTokenHash(ctx, HashToken(rawToken), s.clock.Now())
	if err != nil {
		return types.Actor{}, err
	}

	user, err := db.NewUserRepository(s.st).GetByID(ctx, session.UserID, session.CompanyID)
	if err != nil {
		return types.Actor{}, types.NewAppError(types.ErrCodeAuthTokenInvalid, "session user no longer exists", err)
	}
	if !user.Active {
		return types.Actor{}, types.NewAppError(types.ErrCodeAuthTokenInvalid, "account is deactivated", nil)
	}

	return types.Actor{
		UserID:    user.ID,
		Type:      types.ActorTypeUser,
		CompanyID: user.CompanyID,
		Role:      user.Role,
	}, nil
}

// Logout invalidates one session immediately.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	session, err := db.NewSessionRepository(s.st).GetByTokenHash(ctx, HashToken(rawToken), s.clock.Now())
	if err != nil {
		// Already invalid; logout is idempotent.
		return nil
	}
	return db.NewSessionRepository(s.st).Delete(ctx, session.ID)
}

// ChangePassword verifies the current password, stores the new hash, and
// revokes every session of the user, all in one transaction.
func (s *Service) ChangePassword(ctx context.Context, actor types.Actor, current, next string) error {
	if len(next) < s.cfg.MinPasswordLen {
		return types.NewAppError(types.ErrCodeValidationInvalidField,
			fmt.Sprintf("password must be at least %d characters", s.cfg.MinPasswordLen), nil)
	}

	user, err := db.NewUserRepository(s.st).GetByID(ctx, actor.UserID, actor.CompanyID)
	if err != nil {
		return err
	}
	if !VerifyPassword(user.PasswordHash, current) {
		return types.NewAppError(types.ErrCodeAuthInvalidCreds, "current password is incorrect", nil)
	}

	hash, err := HashPassword(next)
	if err != nil {
		return err
	}

	return s.st.Transaction(ctx, func(txCtx context.Context, ex store.Executor) error {
		if err := db.NewUserRepository(ex).UpdatePassword(txCtx, user.ID, user.CompanyID, hash); err != nil {
			return err
		}
		return db.NewSessionRepository(ex).DeleteForUser(txCtx, user.ID)
	})
}
