package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sprinklerops/internal/auth"
	"sprinklerops/internal/core"
	"sprinklerops/internal/db"
	"sprinklerops/internal/store"
	"sprinklerops/internal/types"
)

// UserHandler manages the company's team: technicians, office staff, and
// additional admins.
type UserHandler struct {
	st        store.Store
	validator *core.Validator
	logger    *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(st store.Store, v *core.Validator, l *slog.Logger) *UserHandler {
	if l == nil {
		l = slog.Default()
	}
	return &UserHandler{st: st, validator: v, logger: l}
}

// Routes mounts the user endpoints on an authenticated router group. The
// route group itself is role-gated to owner/admin by the registrar.
func (h *UserHandler) Routes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
	})
}

// CreateUserRequest is the body for POST /v1/users. The creating admin
// sets an initial password the new member changes on first login.
type CreateUserRequest struct {
	Email    string         `json:"email" validate:"required,email"`
	Name     string         `json:"name" validate:"required,max=200"`
	Role     types.UserRole `json:"role" validate:"required,oneof=owner admin technician office"`
	Password string         `json:"password" validate:"required,min=10,max=128"`
}

// UpdateUserRequest is the body for PUT /v1/users/{id}.
type UpdateUserRequest struct {
	Name   string         `json:"name" validate:"required,max=200"`
	Role   types.UserRole `json:"role" validate:"required,oneof=owner admin technician office"`
	Active bool           `json:"active"`
}

// List handles GET /v1/users: the whole roster, owners first.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	users, err := db.NewUserRepository(h.st).List(r.Context(), actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: users})
}

// Create handles POST /v1/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req CreateUserRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	repo := db.NewUserRepository(h.st)
	id, err := repo.Create(r.Context(), &types.User{
		CompanyID:    actor.CompanyID,
		Email:        auth.CanonicalizeEmail(req.Email),
		Name:         req.Name,
		Role:         req.Role,
		PasswordHash: hash,
		Active:       true,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	user, err := repo.GetByID(r.Context(), id, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: user})
}

// Update handles PUT /v1/users/{id}: name, role, and active flag. Demoting
// or deactivating the last owner is refused so the tenant can never lock
// itself out.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	repo := db.NewUserRepository(h.st)
	user, err := repo.GetByID(r.Context(), id, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	losesOwner := user.Role == types.RoleOwner && user.Active &&
		(req.Role != types.RoleOwner || !req.Active)
	if losesOwner {
		owners, err := repo.CountOwners(r.Context(), actor.CompanyID)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		if owners <= 1 {
			core.Error(w, r, types.NewAppError(
				types.ErrCodePermissionRole,
				"cannot demote or deactivate the last owner",
				nil,
			))
			return
		}
	}

	user.Name = req.Name
	user.Role = req.Role
	user.Active = req.Active
	if err := repo.Update(r.Context(), user); err != nil {
		core.Error(w, r, err)
		return
	}

	// Deactivation revokes the member's sessions immediately.
	if !req.Active {
		if err := db.NewSessionRepository(h.st).DeleteForUser(r.Context(), id); err != nil {
			h.logger.WarnContext(r.Context(), "failed to revoke sessions for deactivated user",
				"user_id", id,
				"error", err,
			)
		}
	}

	updated, err := repo.GetByID(r.Context(), id, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: updated})
}
