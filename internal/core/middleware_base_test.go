package core

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprinklerops/internal/types"
)

func TestRequestIDMiddlewareGeneratesID(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-Id"))
}

func TestRequestIDMiddlewarePropagatesIncomingID(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "client-supplied-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "client-supplied-id", seen)
	assert.Equal(t, "client-supplied-id", rec.Header().Get("X-Request-Id"))
}

func TestRecovererWrites500OnPanic(t *testing.T) {
	srv, _, _ := newTestServer(t)

	handler := srv.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeErrorBody(t, rec)
	assert.Equal(t, string(types.ErrCodeInternalUnexpected), resp.Error.Code)
	assert.NotContains(t, rec.Body.String(), "handler exploded")
}

func TestRequestLoggerInjectsContextLogger(t *testing.T) {
	logger := testLogger()
	var gotFallback bool
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The context logger must be set; LoggerFromContext should not
		// fall back.
		ctxLogger := types.LoggerFromContext(r.Context(), nil)
		gotFallback = ctxLogger == nil
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, gotFallback)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	srv, _, _ := newTestServer(t)

	handler := srv.SecurityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestCORSPreflight(t *testing.T) {
	handler := NewCORSMiddleware([]string{"https://app.example.com"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("preflight must not reach the handler")
		}))

	req := httptest.NewRequest(http.MethodOptions, "/v1/clients", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func TestCORSDeniesUnlistedOrigin(t *testing.T) {
	handler := NewCORSMiddleware([]string{"https://app.example.com"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/v1/clients", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcard(t *testing.T) {
	handler := NewCORSMiddleware([]string{"*"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/v1/clients", nil)
	req.Header.Set("Origin", "https://anything.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestResponseCaptureDefaultsTo200(t *testing.T) {
	rec := httptest.NewRecorder()
	rc := &responseCapture{ResponseWriter: rec}

	_, err := rc.Write([]byte("ok"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rc.statusCode)

	// A later WriteHeader must not overwrite the captured status.
	rc.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusOK, rc.statusCode)
}
