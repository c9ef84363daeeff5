package db

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sprinklerops/internal/config"
	"sprinklerops/internal/store"
	"sprinklerops/internal/types"
)

// newTestStore opens an in-memory store with the schema applied. Repository
// tests run against real SQL so predicates and joins are exercised, not
// mocked away.
func newTestStore(t *testing.T) store.Store {
	t.Helper()

	cfg := config.DatabaseConfig{
		SQLitePath:         ":memory:",
		MaxConns:           1,
		AcquireTimeout:     2 * time.Second,
		QueryTimeout:       5 * time.Second,
		SlowQueryThreshold: time.Second,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := store.Open(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	require.NoError(t, store.Migrate(context.Background(), s))
	return s
}

func seedCompany(t *testing.T, s store.Store, name string) int64 {
	t.Helper()
	id, err := NewCompanyRepository(s).Create(context.Background(), &types.Company{
		Name:  name,
		Email: name + "@example.com",
	})
	require.NoError(t, err)
	return id
}

func seedUser(t *testing.T, s store.Store, companyID int64, email string, role types.UserRole) int64 {
	t.Helper()
	id, err := NewUserRepository(s).Create(context.Background(), &types.User{
		CompanyID:    companyID,
		Email:        email,
		Name:         "Test User",
		Role:         role,
		PasswordHash: "x",
		Active:       true,
	})
	require.NoError(t, err)
	return id
}

func seedClient(t *testing.T, s store.Store, companyID int64, name string) int64 {
	t.Helper()
	id, err := NewClientRepository(s).Create(context.Background(), &types.Client{
		CompanyID: companyID,
		Name:      name,
	})
	require.NoError(t, err)
	return id
}

func seedSite(t *testing.T, s store.Store, companyID, clientID int64, label string) int64 {
	t.Helper()
	id, err := NewSiteRepository(s).Create(context.Background(), &types.Site{
		CompanyID: companyID,
		ClientID:  clientID,
		Label:     label,
		Address:   "123 Main St",
		ZoneCount: 6,
	})
	require.NoError(t, err)
	return id
}
