package core

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"sprinklerops/internal/types"
)

// AuthMiddleware wraps handlers requiring authentication.
//
//  1. Extracts the Bearer token from the Authorization header.
//  2. Resolves the token to an Actor via the auth service.
//  3. Injects the Actor into the request context via types.WithActor and
//     enriches the request-scoped logger with user and company fields.
//  4. Returns 401 Unauthorized on failure.
//
// If the Auth field on Server is nil (tests that don't inject it), the
// middleware passes through without authentication.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Auth == nil {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Authorization header is required")
			return
		}

		token := extractBearerToken(authHeader)
		if token == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Bearer token is required")
			return
		}

		actor, err := s.Auth.Authenticate(r.Context(), token)
		if err != nil {
			s.handleAuthError(w, r, err)
			return
		}

		ctx := types.WithActor(r.Context(), actor)

		reqLogger := types.LoggerFromContext(ctx, s.Logger).With(
			slog.Int64("user_id", actor.UserID),
			slog.Int64("company_id", actor.CompanyID),
		)
		ctx = types.WithLogger(ctx, reqLogger)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractBearerToken parses the Authorization header value and returns the
// token string. It expects "Bearer <token>" with a case-insensitive scheme
// per RFC 7235; returns empty string on an invalid format.
func extractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) {
		return ""
	}
	if !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}

// handleAuthError inspects the error from token resolution and writes the
// appropriate 401 response with the correct error code.
func (s *Server) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case types.ErrCodeAuthSessionExpired:
			s.Logger.Warn("authentication failed: session expired",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			s.writeAuthError(w, r, types.ErrCodeAuthSessionExpired, "Session has expired")
			return
		case types.ErrCodeAuthTokenInvalid, types.ErrCodeAuthTokenMissing:
			s.Logger.Warn("authentication failed: token invalid",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("error_code", string(appErr.Code)),
			)
			s.writeAuthError(w, r, appErr.Code, "Invalid authentication token")
			return
		}
	}

	// Generic error: log it but don't leak internal details.
	s.Logger.Error("authentication failed: unexpected error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "Authentication failed")
}

// writeAuthError writes a 401 Unauthorized JSON response with the given code.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	resp := APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(code),
			Message:   message,
			RequestID: types.GetRequestID(r.Context()),
		},
	}
	JSON(w, r, http.StatusUnauthorized, resp)
}

// RequireRole returns middleware that admits only actors whose role is in
// the given set. Company roles are not a strict hierarchy -- office staff
// manage clients and estimates, technicians run inspections -- so routes
// name the roles they accept instead of a minimum tier.
//
// If no Actor is in context (unauthenticated), returns 401. If the Actor's
// role is not in the set, returns 403. System actors bypass role checks.
func (s *Server) RequireRole(roles ...types.UserRole) func(http.Handler) http.Handler {
	allowed := make(map[types.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := types.GetActor(r.Context())
			if !ok {
				s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Authentication required")
				return
			}

			if actor.Type == types.ActorTypeSystem {
				next.ServeHTTP(w, r)
				return
			}

			if _, ok := allowed[actor.Role]; !ok {
				resp := APIErrorResponse{
					Error: ErrorDetail{
						Code:      string(types.ErrCodePermissionRole),
						Message:   "Insufficient role for this operation",
						RequestID: types.GetRequestID(r.Context()),
					},
				}
				JSON(w, r, http.StatusForbidden, resp)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
