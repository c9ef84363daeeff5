package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sprinklerops/internal/core"
	"sprinklerops/internal/db"
	"sprinklerops/internal/store"
	"sprinklerops/internal/types"
)

// ClientHandler manages the customer roster and each client's sites.
type ClientHandler struct {
	st        store.Store
	validator *core.Validator
	logger    *slog.Logger
}

// NewClientHandler creates a ClientHandler.
func NewClientHandler(st store.Store, v *core.Validator, l *slog.Logger) *ClientHandler {
	if l == nil {
		l = slog.Default()
	}
	return &ClientHandler{st: st, validator: v, logger: l}
}

// Routes mounts the client endpoints on an authenticated router group.
func (h *ClientHandler) Routes(r chi.Router) {
	r.Route("/clients", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Get("/{id}/sites", h.ListSites)
		r.Post("/{id}/sites", h.CreateSite)
	})
}

// CreateClientRequest is the body for POST /v1/clients.
type CreateClientRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone" validate:"omitempty,max=40"`
	Address string `json:"address" validate:"omitempty,max=500"`
	Notes   string `json:"notes" validate:"omitempty,max=2000"`
}

// UpdateClientRequest is the body for PUT /v1/clients/{id}. Full-record
// update; the client sends every field back.
type UpdateClientRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone" validate:"omitempty,max=40"`
	Address string `json:"address" validate:"omitempty,max=500"`
	Notes   string `json:"notes" validate:"omitempty,max=2000"`
}

// CreateSiteRequest is the body for POST /v1/clients/{id}/sites.
type CreateSiteRequest struct {
	Label     string `json:"label" validate:"required,max=200"`
	Address   string `json:"address" validate:"required,max=500"`
	ZoneCount int    `json:"zone_count" validate:"gte=0,max=500"`
	Notes     string `json:"notes" validate:"omitempty,max=2000"`
}

// List handles GET /v1/clients with optional search and pagination.
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	limit, offset, err := parsePage(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	search := r.URL.Query().Get("q")

	clients, err := db.NewClientRepository(h.st).List(r.Context(), actor.CompanyID, search, limit, offset)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: clients,
		Page: pageInfo(limit, offset, len(clients)),
	})
}

// Create handles POST /v1/clients.
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req CreateClientRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	repo := db.NewClientRepository(h.st)
	id, err := repo.Create(r.Context(), &types.Client{
		CompanyID: actor.CompanyID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		Notes:     req.Notes,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	client, err := repo.GetByID(r.Context(), id, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: client})
}

// Get handles GET /v1/clients/{id}.
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	client, err := db.NewClientRepository(h.st).GetByID(r.Context(), id, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: client})
}

// Update handles PUT /v1/clients/{id}.
func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateClientRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	repo := db.NewClientRepository(h.st)
	err := repo.Update(r.Context(), &types.Client{
		ID:        id,
		CompanyID: actor.CompanyID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		Notes:     req.Notes,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	client, err := repo.GetByID(r.Context(), id, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: client})
}

// Delete handles DELETE /v1/clients/{id}. Soft delete: history stays for
// reporting, the client disappears from rosters and lookups.
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	if err := db.NewClientRepository(h.st).SoftDelete(r.Context(), id, actor.CompanyID); err != nil {
		core.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListSites handles GET /v1/clients/{id}/sites.
func (h *ClientHandler) ListSites(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	clientID, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	// Resolve the client first so a cross-tenant ID yields 404, not an
	// empty list.
	if _, err := db.NewClientRepository(h.st).GetByID(r.Context(), clientID, actor.CompanyID); err != nil {
		core.Error(w, r, err)
		return
	}

	sites, err := db.NewSiteRepository(h.st).ListByClient(r.Context(), clientID, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: sites})
}

// CreateSite handles POST /v1/clients/{id}/sites.
func (h *ClientHandler) CreateSite(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	clientID, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	var req CreateSiteRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	if _, err := db.NewClientRepository(h.st).GetByID(r.Context(), clientID, actor.CompanyID); err != nil {
		core.Error(w, r, err)
		return
	}

	repo := db.NewSiteRepository(h.st)
	id, err := repo.Create(r.Context(), &types.Site{
		CompanyID: actor.CompanyID,
		ClientID:  clientID,
		Label:     req.Label,
		Address:   req.Address,
		ZoneCount: req.ZoneCount,
		Notes:     req.Notes,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	site, err := repo.GetByID(r.Context(), id, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: site})
}
