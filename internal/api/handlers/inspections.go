package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sprinklerops/internal/core"
	"sprinklerops/internal/db"
	"sprinklerops/internal/store"
	"sprinklerops/internal/types"
)

// InspectionHandler manages system walk-throughs and their per-zone
// findings.
type InspectionHandler struct {
	st        store.Store
	validator *core.Validator
	clock     types.Clock
	logger    *slog.Logger
}

// NewInspectionHandler creates an InspectionHandler.
func NewInspectionHandler(st store.Store, v *core.Validator, clock types.Clock, l *slog.Logger) *InspectionHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if l == nil {
		l = slog.Default()
	}
	return &InspectionHandler{st: st, validator: v, clock: clock, logger: l}
}

// Routes mounts the inspection endpoints on an authenticated router group.
func (h *InspectionHandler) Routes(r chi.Router) {
	r.Route("/inspections", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/start", h.Start)
		r.Post("/{id}/complete", h.Complete)
		r.Get("/{id}/items", h.ListItems)
		r.Post("/{id}/items", h.AddItem)
	})
}

// CreateInspectionRequest is the body for POST /v1/inspections.
type CreateInspectionRequest struct {
	SiteID       int64      `json:"site_id" validate:"required,gt=0"`
	TechnicianID int64      `json:"technician_id" validate:"required,gt=0"`
	ScheduledFor *time.Time `json:"scheduled_for"`
}

// CompleteInspectionRequest is the body for POST /v1/inspections/{id}/complete.
type CompleteInspectionRequest struct {
	Summary string `json:"summary" validate:"required,max=4000"`
}

// AddInspectionItemRequest is the body for POST /v1/inspections/{id}/items.
type AddInspectionItemRequest struct {
	Zone     int    `json:"zone" validate:"gte=0,max=500"`
	Finding  string `json:"finding" validate:"required,max=1000"`
	Severity string `json:"severity" validate:"required,oneof=low medium high"`
	PhotoURL string `json:"photo_url" validate:"omitempty,url,max=1000"`
}

// inspectionDetail bundles an inspection with its findings for GET.
type inspectionDetail struct {
	*types.Inspection
	Items []*types.InspectionItem `json:"items"`
}

// List handles GET /v1/inspections with optional status filter.
func (h *InspectionHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	limit, offset, err := parsePage(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var status types.InspectionStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status = types.InspectionStatus(raw)
		switch status {
		case types.InspectionDraft, types.InspectionScheduled, types.InspectionInProgress, types.InspectionCompleted:
		default:
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidField,
				"status must be one of: draft, scheduled, in_progress, completed",
				nil,
			))
			return
		}
	}

	inspections, err := db.NewInspectionRepository(h.st).List(r.Context(), actor.CompanyID, status, limit, offset)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: inspections,
		Page: pageInfo(limit, offset, len(inspections)),
	})
}

// Create handles POST /v1/inspections. A scheduled_for timestamp creates
// the inspection directly in scheduled state with a calendar entry for the
// technician; otherwise it starts as a draft.
func (h *InspectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req CreateInspectionRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	// The site must exist in this tenant before anything is written.
	site, err := db.NewSiteRepository(h.st).GetByID(r.Context(), req.SiteID, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	status := types.InspectionDraft
	if req.ScheduledFor != nil {
		status = types.InspectionScheduled
	}

	var id int64
	err = h.st.Transaction(r.Context(), func(txCtx context.Context, ex store.Executor) error {
		var err error
		id, err = db.NewInspectionRepository(ex).Create(txCtx, &types.Inspection{
			CompanyID:    actor.CompanyID,
			SiteID:       req.SiteID,
			TechnicianID: req.TechnicianID,
			Status:       status,
			ScheduledFor: req.ScheduledFor,
		})
		if err != nil {
			return err
		}

		if req.ScheduledFor != nil {
			start := req.ScheduledFor.UTC()
			_, err = db.NewScheduleRepository(ex).Create(txCtx, &types.ScheduleEvent{
				CompanyID:    actor.CompanyID,
				TechnicianID: req.TechnicianID,
				Type:         types.EventInspection,
				ReferenceID:  &id,
				Title:        "Inspection: " + site.Label,
				StartsAt:     start,
				EndsAt:       start.Add(time.Hour),
			})
		}
		return err
	}, store.WithCompany(actor.CompanyID))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	inspection, err := db.NewInspectionRepository(h.st).GetByID(r.Context(), id, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: inspection})
}

// Get handles GET /v1/inspections/{id}, returning the inspection with its
// findings.
func (h *InspectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	repo := db.NewInspectionRepository(h.st)
	inspection, err := repo.GetByID(r.Context(), id, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	items, err := repo.ListItems(r.Context(), id, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: inspectionDetail{
		Inspection: inspection,
		Items:      items,
	}})
}

// Start handles POST /v1/inspections/{id}/start: the technician is on site.
func (h *InspectionHandler) Start(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	repo := db.NewInspectionRepository(h.st)
	inspection, err := repo.GetByID(r.Context(), id, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	switch inspection.Status {
	case types.InspectionDraft, types.InspectionScheduled:
	default:
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeConflictStatus,
			"inspection cannot be started from its current status",
			nil,
			map[string]any{"status": string(inspection.Status)},
		))
		return
	}

	if err := repo.UpdateStatus(r.Context(), id, actor.CompanyID, types.InspectionInProgress); err != nil {
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

// Complete handles POST /v1/inspections/{id}/complete.
func (h *InspectionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	var req CompleteInspectionRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	repo := db.NewInspectionRepository(h.st)
	inspection, err := repo.GetByID(r.Context(), id, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if inspection.Status == types.InspectionCompleted {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeConflictStatus,
			"inspection is already completed",
			nil,
		))
		return
	}

	if err := repo.Complete(r.Context(), id, actor.CompanyID, req.Summary, h.clock.Now()); err != nil {
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

// ListItems handles GET /v1/inspections/{id}/items.
func (h *InspectionHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	repo := db.NewInspectionRepository(h.st)
	if _, err := repo.GetByID(r.Context(), id, actor.CompanyID); err != nil {
		core.Error(w, r, err)
		return
	}

	items, err := repo.ListItems(r.Context(), id, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: items})
}

// AddItem handles POST /v1/inspections/{id}/items. Findings can only be
// recorded while the inspection is open.
func (h *InspectionHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	var req AddInspectionItemRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	repo := db.NewInspectionRepository(h.st)
	inspection, err := repo.GetByID(r.Context(), id, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if inspection.Status == types.InspectionCompleted {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeConflictStatus,
			"cannot add findings to a completed inspection",
			nil,
		))
		return
	}

	item := &types.InspectionItem{
		InspectionID: id,
		Zone:         req.Zone,
		Finding:      req.Finding,
		Severity:     req.Severity,
		PhotoURL:     req.PhotoURL,
	}
	itemID, err := repo.AddItem(r.Context(), actor.CompanyID, item)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	item.ID = itemID

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: item})
}
