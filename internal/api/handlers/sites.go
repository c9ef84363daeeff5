package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sprinklerops/internal/core"
	"sprinklerops/internal/db"
	"sprinklerops/internal/store"
)

// SiteHandler serves individual site reads and updates. Creation and
// listing live under the owning client's routes.
type SiteHandler struct {
	st        store.Store
	validator *core.Validator
	logger    *slog.Logger
}

// NewSiteHandler creates a SiteHandler.
func NewSiteHandler(st store.Store, v *core.Validator, l *slog.Logger) *SiteHandler {
	if l == nil {
		l = slog.Default()
	}
	return &SiteHandler{st: st, validator: v, logger: l}
}

// Routes mounts the site endpoints on an authenticated router group.
func (h *SiteHandler) Routes(r chi.Router) {
	r.Route("/sites", func(r chi.Router) {
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
	})
}

// UpdateSiteRequest is the body for PUT /v1/sites/{id}.
type UpdateSiteRequest struct {
	Label     string `json:"label" validate:"required,max=200"`
	Address   string `json:"address" validate:"required,max=500"`
	ZoneCount int    `json:"zone_count" validate:"gte=0,max=500"`
	Notes     string `json:"notes" validate:"omitempty,max=2000"`
}

// Get handles GET /v1/sites/{id}.
func (h *SiteHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	site, err := db.NewSiteRepository(h.st).GetByID(r.Context(), id, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: site})
}

// Update handles PUT /v1/sites/{id}.
func (h *SiteHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateSiteRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	repo := db.NewSiteRepository(h.st)

	// Fetch first: Update does not change client ownership, so the
	// existing ClientID is carried over.
	site, err := repo.GetByID(r.Context(), id, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	site.Label = req.Label
	site.Address = req.Address
	site.ZoneCount = req.ZoneCount
	site.Notes = req.Notes
	if err := repo.Update(r.Context(), site); err != nil {
		core.Error(w, r, err)
		return
	}

	updated, err := repo.GetByID(r.Context(), id, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: updated})
}
