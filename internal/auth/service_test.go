package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprinklerops/internal/config"
	"sprinklerops/internal/db"
	"sprinklerops/internal/store"
	"sprinklerops/internal/types"
)

// fixedClock pins time for expiry tests.
type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func newTestService(t *testing.T) (*Service, store.Store, *fixedClock) {
	t.Helper()

	cfg := config.DatabaseConfig{
		SQLitePath:         ":memory:",
		MaxConns:           1,
		AcquireTimeout:     2 * time.Second,
		QueryTimeout:       5 * time.Second,
		SlowQueryThreshold: time.Second,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.Open(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	require.NoError(t, store.Migrate(context.Background(), st))

	clock := &fixedClock{now: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(st, config.AuthConfig{
		SessionTTL:     7 * 24 * time.Hour,
		MinPasswordLen: 10,
	}, clock, logger)
	return svc, st, clock
}

func register(t *testing.T, svc *Service, email string) (*types.Company, *types.User) {
	t.Helper()
	company, owner, err := svc.RegisterCompany(context.Background(),
		"Desert Springs Irrigation", email, "Olive Owner", "correct-horse-battery")
	require.NoError(t, err)
	return company, owner
}

func TestRegisterCompanyCreatesOwner(t *testing.T) {
	svc, st, _ := newTestService(t)

	company, owner := register(t, svc, "owner@desertsprings.test")
	assert.NotZero(t, company.ID)
	assert.Equal(t, company.ID, owner.CompanyID)
	assert.Equal(t, types.RoleOwner, owner.Role)

	u, err := db.NewUserRepository(st).GetByEmail(context.Background(), "owner@desertsprings.test")
	require.NoError(t, err)
	assert.True(t, VerifyPassword(u.PasswordHash, "correct-horse-battery"))
}

func TestRegisterCompanyRejectsShortPassword(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, _, err := svc.RegisterCompany(context.Background(),
		"Shortpass Co", "short@example.com", "S", "tiny")
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidField, appErr.Code)
}

func TestRegisterCompanyIsAtomic(t *testing.T) {
	svc, st, _ := newTestService(t)
	company, _ := register(t, svc, "first@example.com")

	// Occupy the user email under the existing tenant without touching the
	// companies table.
	_, err := db.NewUserRepository(st).Create(context.Background(), &types.User{
		CompanyID:    company.ID,
		Email:        "taken@example.com",
		Name:         "Existing",
		Role:         types.RoleOffice,
		PasswordHash: "x",
		Active:       true,
	})
	require.NoError(t, err)

	// Registration inserts the company first, then the owner. The owner
	// insert conflicts on email, so the company insert must roll back too.
	_, _, err = svc.RegisterCompany(context.Background(),
		"Duplicate Co", "taken@example.com", "D", "long-enough-password")
	require.Error(t, err)

	rows, err := st.Query(context.Background(),
		"SELECT id FROM companies WHERE name = ?", []any{"Duplicate Co"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, _, _ := newTestService(t)
	company, owner := register(t, svc, "login@example.com")

	session, rawToken, err := svc.Login(context.Background(), "Login@Example.com ", "correct-horse-battery")
	require.NoError(t, err)
	assert.NotEmpty(t, rawToken)
	assert.Equal(t, owner.ID, session.UserID)
	// Only the hash is stored; the raw token never matches it directly.
	assert.NotEqual(t, rawToken, session.TokenHash)
	assert.Equal(t, HashToken(rawToken), session.TokenHash)

	actor, err := svc.Authenticate(context.Background(), rawToken)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, actor.UserID)
	assert.Equal(t, company.ID, actor.CompanyID)
	assert.Equal(t, types.RoleOwner, actor.Role)
	assert.Equal(t, types.ActorTypeUser, actor.Type)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newTestService(t)
	register(t, svc, "wrongpw@example.com")

	_, _, err := svc.Login(context.Background(), "wrongpw@example.com", "not-the-password")
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeAuthInvalidCreds, appErr.Code)
}

func TestLoginUnknownEmailSameError(t *testing.T) {
	svc, _, _ := newTestService(t)
	register(t, svc, "known@example.com")

	_, _, wrongPw := svc.Login(context.Background(), "known@example.com", "bad-password-here")
	_, _, unknown := svc.Login(context.Background(), "nobody@example.com", "bad-password-here")

	var a, b *types.AppError
	require.ErrorAs(t, wrongPw, &a)
	require.ErrorAs(t, unknown, &b)
	// Identical code and message: the endpoint must not reveal which
	// accounts exist.
	assert.Equal(t, a.Code, b.Code)
	assert.Equal(t, a.Message, b.Message)
}

func TestAuthenticateExpiredSession(t *testing.T) {
	svc, _, clock := newTestService(t)
	register(t, svc, "expire@example.com")

	_, rawToken, err := svc.Login(context.Background(), "expire@example.com", "correct-horse-battery")
	require.NoError(t, err)

	clock.now = clock.now.Add(8 * 24 * time.Hour)

	_, err = svc.Authenticate(context.Background(), rawToken)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeAuthTokenInvalid, appErr.Code)
}

func TestAuthenticateMissingToken(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Authenticate(context.Background(), "")
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeAuthTokenMissing, appErr.Code)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	svc, _, _ := newTestService(t)
	register(t, svc, "logout@example.com")

	_, rawToken, err := svc.Login(context.Background(), "logout@example.com", "correct-horse-battery")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), rawToken))

	_, err = svc.Authenticate(context.Background(), rawToken)
	require.Error(t, err)

	// Logging out again is a no-op, not an error.
	require.NoError(t, svc.Logout(context.Background(), rawToken))
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, owner := register(t, svc, "rotate@example.com")

	_, rawToken, err := svc.Login(context.Background(), "rotate@example.com", "correct-horse-battery")
	require.NoError(t, err)

	actor := types.Actor{UserID: owner.ID, Type: types.ActorTypeUser, CompanyID: owner.CompanyID, Role: owner.Role}
	require.NoError(t, svc.ChangePassword(context.Background(), actor,
		"correct-horse-battery", "brand-new-password-42"))

	// Old session is gone; old password no longer works; new one does.
	_, err = svc.Authenticate(context.Background(), rawToken)
	require.Error(t, err)

	_, _, err = svc.Login(context.Background(), "rotate@example.com", "correct-horse-battery")
	require.Error(t, err)

	_, _, err = svc.Login(context.Background(), "rotate@example.com", "brand-new-password-42")
	require.NoError(t, err)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, owner := register(t, svc, "wrongcur@example.com")

	actor := types.Actor{UserID: owner.ID, Type: types.ActorTypeUser, CompanyID: owner.CompanyID, Role: owner.Role}
	err := svc.ChangePassword(context.Background(), actor, "not-it", "another-long-password")
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeAuthInvalidCreds, appErr.Code)
}
