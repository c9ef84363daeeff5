package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprinklerops/internal/types"
)

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) APIErrorResponse {
	t.Helper()
	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestJSONWritesEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	JSON(rec, req, http.StatusCreated, APIResponse{Data: map[string]int64{"id": 7}})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"id":7}}`, rec.Body.String())
}

func TestJSONMarshalFailureFallsBack(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	// Channels cannot be marshalled.
	JSON(rec, req, http.StatusOK, map[string]any{"ch": make(chan int)})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeErrorBody(t, rec)
	assert.Equal(t, string(types.ErrCodeInternalUnexpected), resp.Error.Code)
}

func TestErrorMapsAppErrorToStatus(t *testing.T) {
	tests := []struct {
		name   string
		code   types.ErrorCode
		status int
	}{
		{"validation", types.ErrCodeValidationInvalidField, http.StatusBadRequest},
		{"auth", types.ErrCodeAuthTokenInvalid, http.StatusUnauthorized},
		{"permission", types.ErrCodePermissionRole, http.StatusForbidden},
		{"not found", types.ErrCodeNotFoundClient, http.StatusNotFound},
		{"conflict", types.ErrCodeConflictStatus, http.StatusConflict},
		{"db timeout", types.ErrCodeDBTimeout, http.StatusGatewayTimeout},
		{"db unavailable", types.ErrCodeDBUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(types.WithRequestID(req.Context(), "req-123"))

			Error(rec, req, types.NewAppError(tt.code, "boom", nil))

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeErrorBody(t, rec)
			assert.Equal(t, string(tt.code), resp.Error.Code)
			assert.Equal(t, "req-123", resp.Error.RequestID)
		})
	}
}

func TestErrorHidesGenericErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Error(rec, req, errors.New("pq: secret connection string leaked"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeErrorBody(t, rec)
	assert.Equal(t, string(types.ErrCodeInternalUnexpected), resp.Error.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestErrorUnwrapsNestedAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	inner := types.NewAppError(types.ErrCodeNotFoundSite, "site not found", nil)
	Error(rec, req, errors.Join(errors.New("outer"), inner))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type decodeTarget struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestDecodeJSONAcceptsValidBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"backflow","count":3}`))
	rec := httptest.NewRecorder()

	var dst decodeTarget
	require.NoError(t, DecodeJSON(rec, req, &dst))
	assert.Equal(t, "backflow", dst.Name)
	assert.Equal(t, 3, dst.Count)
}

func TestDecodeJSONRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"name":`},
		{"unknown field", `{"name":"x","bogus":true}`},
		{"wrong type", `{"name":"x","count":"three"}`},
		{"empty body", ``},
		{"multiple values", `{"name":"x"}{"name":"y"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			var dst decodeTarget
			err := DecodeJSON(rec, req, &dst)
			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, errCodeValidationInvalidJSON, appErr.Code)
			assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus())
		})
	}
}

func TestDecodeJSONEnforcesBodyLimit(t *testing.T) {
	huge := `{"name":"` + strings.Repeat("a", maxRequestBodySize) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(huge))
	rec := httptest.NewRecorder()

	var dst decodeTarget
	err := DecodeJSON(rec, req, &dst)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errCodeValidationInvalidJSON, appErr.Code)
}
