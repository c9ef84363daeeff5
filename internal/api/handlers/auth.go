package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"sprinklerops/internal/auth"
	"sprinklerops/internal/core"
	"sprinklerops/internal/db"
	"sprinklerops/internal/store"
	"sprinklerops/internal/types"
)

// AuthHandler exposes registration, login, and session management.
type AuthHandler struct {
	authSvc   *auth.Service
	st        store.Store
	validator *core.Validator
	logger    *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(authSvc *auth.Service, st store.Store, v *core.Validator, l *slog.Logger) *AuthHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AuthHandler{authSvc: authSvc, st: st, validator: v, logger: l}
}

// PublicRoutes mounts the endpoints reachable without a session.
func (h *AuthHandler) PublicRoutes(r chi.Router) {
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
}

// Routes mounts the endpoints that require an authenticated actor.
func (h *AuthHandler) Routes(r chi.Router) {
	r.Post("/auth/logout", h.Logout)
	r.Get("/auth/me", h.Me)
	r.Post("/auth/change-password", h.ChangePassword)
}

// RegisterRequest is the body for POST /v1/auth/register.
type RegisterRequest struct {
	CompanyName string `json:"company_name" validate:"required,max=200"`
	OwnerName   string `json:"owner_name" validate:"required,max=200"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,max=128"`
}

// LoginRequest is the body for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest is the body for POST /v1/auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,max=128"`
}

// sessionResponse pairs the raw token with its session metadata. The raw
// token appears only here; it is never persisted or logged.
type sessionResponse struct {
	Token     string         `json:"token"`
	ExpiresAt string         `json:"expires_at"`
	User      *types.User    `json:"user,omitempty"`
	Company   *types.Company `json:"company,omitempty"`
}

// Register handles POST /v1/auth/register: a new tenant with its owner.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	company, owner, err := h.authSvc.RegisterCompany(r.Context(),
		req.CompanyName, req.Email, req.OwnerName, req.Password)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	// Open a session right away so the client does not need a second
	// round trip to log in.
	session, rawToken, err := h.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: sessionResponse{
		Token:     rawToken,
		ExpiresAt: session.ExpiresAt.Format(timeFormat),
		User:      owner,
		Company:   company,
	}})
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	session, rawToken, err := h.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: sessionResponse{
		Token:     rawToken,
		ExpiresAt: session.ExpiresAt.Format(timeFormat),
	}})
}

// Logout handles POST /v1/auth/logout. Idempotent: logging out an already
// dead session still succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if err := h.authSvc.Logout(r.Context(), token); err != nil {
		core.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /v1/auth/me: the acting user's profile and company.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	user, err := db.NewUserRepository(h.st).GetByID(r.Context(), actor.UserID, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	company, err := db.NewCompanyRepository(h.st).GetByID(r.Context(), actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]any{
		"user":    user,
		"company": company,
	}})
}

// ChangePassword handles POST /v1/auth/change-password. All other sessions
// of the user are revoked on success, including the current one.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.authSvc.ChangePassword(r.Context(), actor, req.CurrentPassword, req.NewPassword); err != nil {
		core.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// bearerToken pulls the raw token out of the Authorization header. The auth
// middleware already validated it; logout just needs the raw value back.
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// timeFormat is the wire format for timestamps in handler responses.
const timeFormat = "2006-01-02T15:04:05Z07:00"
