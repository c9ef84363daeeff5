package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sprinklerops/internal/auth"
	"sprinklerops/internal/config"
	"sprinklerops/internal/core"
	"sprinklerops/internal/store"
)

// testEnv is a fully wired API over an in-memory store with one registered
// tenant and an open owner session.
type testEnv struct {
	t       *testing.T
	srv     *core.Server
	handler http.Handler
	token   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Environment: "local",
		Server: config.ServerConfig{
			Port:               "0",
			CorsAllowedOrigins: []string{"*"},
		},
		Database: config.DatabaseConfig{
			SQLitePath:         ":memory:",
			MaxConns:           1,
			AcquireTimeout:     2 * time.Second,
			QueryTimeout:       5 * time.Second,
			SlowQueryThreshold: time.Second,
		},
		Auth: config.AuthConfig{
			SessionTTL:     7 * 24 * time.Hour,
			MinPasswordLen: 10,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.Open(context.Background(), cfg.Database, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	require.NoError(t, store.Migrate(context.Background(), st))

	authSvc := auth.NewService(st, cfg.Auth, nil, logger)

	srv, err := core.NewServer(cfg, st, authSvc, logger)
	require.NoError(t, err)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, RegisterV1(srv))
	srv.MountRoutes()

	env := &testEnv{t: t, srv: srv, handler: srv.Handler()}
	env.token = env.register("Cascade Sprinkler Service", "owner@cascade.test")
	return env
}

// register creates a tenant through the public API and returns its session
// token.
func (e *testEnv) register(company, email string) string {
	e.t.Helper()

	rec := e.do(http.MethodPost, "/v1/auth/register", map[string]any{
		"company_name": company,
		"owner_name":   "Olive Owner",
		"email":        email,
		"password":     "correct-horse-battery",
	}, "")
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(e.t, resp.Data.Token)
	return resp.Data.Token
}

// do performs a request against the mounted router. An empty token leaves
// the request unauthenticated.
func (e *testEnv) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// decodeData unmarshals the data envelope of a successful response.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NoError(t, json.Unmarshal(resp.Data, dst))
}

// errorCode extracts the error code of a failed response.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Code
}

// createClient seeds a client through the API and returns its ID.
func (e *testEnv) createClient(name string) int64 {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/v1/clients", map[string]any{
		"name":    name,
		"email":   "",
		"address": "14 Canal Rd",
	}, e.token)
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())

	var client struct {
		ID int64 `json:"id"`
	}
	decodeData(e.t, rec, &client)
	return client.ID
}

// createSite seeds a site under a client and returns its ID.
func (e *testEnv) createSite(clientID int64, label string) int64 {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/v1/clients/"+itoa(clientID)+"/sites", map[string]any{
		"label":      label,
		"address":    "14 Canal Rd",
		"zone_count": 8,
	}, e.token)
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())

	var site struct {
		ID int64 `json:"id"`
	}
	decodeData(e.t, rec, &site)
	return site.ID
}

// createTechnician adds a technician-role team member and returns their ID.
func (e *testEnv) createTechnician(email string) int64 {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/v1/users", map[string]any{
		"email":    email,
		"name":     "Terry Tech",
		"role":     "technician",
		"password": "a-long-enough-password",
	}, e.token)
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())

	var user struct {
		ID int64 `json:"id"`
	}
	decodeData(e.t, rec, &user)
	return user.ID
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
