// Package handlers contains the HTTP handler implementations for the
// SprinklerOps API. Each handler owns one resource family, builds its
// repositories over the shared store, and scopes every query to the
// authenticated actor's company.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"sprinklerops/internal/core"
	"sprinklerops/internal/types"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// requireActor extracts the authenticated Actor or writes a 401 response.
// The auth middleware guarantees presence on protected routes; this is the
// defense for a handler accidentally mounted outside the group.
func requireActor(w http.ResponseWriter, r *http.Request) (types.Actor, bool) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"Authentication required",
			nil,
		))
		return types.Actor{}, false
	}
	return actor, true
}

// urlID parses the named chi URL parameter as a positive int64, writing a
// 400 response when it is absent or malformed.
func urlID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidField,
			name+" must be a positive integer",
			nil,
			map[string]any{name: raw},
		))
		return 0, false
	}
	return id, true
}

// parsePage reads limit/offset query parameters with defaults and bounds.
func parsePage(r *http.Request) (limit, offset int, err error) {
	limit = defaultPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxPageLimit {
			return 0, 0, types.NewAppError(
				types.ErrCodeValidationInvalidField,
				"limit must be a number between 1 and 200",
				nil,
			)
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, types.NewAppError(
				types.ErrCodeValidationInvalidField,
				"offset must be a non-negative number",
				nil,
			)
		}
	}
	return limit, offset, nil
}

// pageInfo builds pagination metadata from a returned page. HasMore is a
// full-page heuristic: a page shorter than the limit is definitely the last.
func pageInfo(limit, offset, count int) *types.PageInfo {
	return &types.PageInfo{
		Limit:   limit,
		Offset:  offset,
		Count:   count,
		HasMore: count == limit,
	}
}

// parsePositiveInt parses a decimal string that must be a positive int64.
func parsePositiveInt(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, strconv.ErrRange
	}
	return id, nil
}

// parseTimeParam parses an RFC 3339 query parameter, returning a zero time
// when the parameter is absent.
func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidField,
			name+" must be an RFC 3339 timestamp",
			err,
			map[string]any{name: raw},
		)
	}
	return t.UTC(), nil
}
