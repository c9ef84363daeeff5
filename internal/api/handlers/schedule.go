package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sprinklerops/internal/core"
	"sprinklerops/internal/db"
	"sprinklerops/internal/store"
	"sprinklerops/internal/types"
)

// ScheduleHandler serves the technician calendar.
type ScheduleHandler struct {
	st        store.Store
	validator *core.Validator
	logger    *slog.Logger
}

// NewScheduleHandler creates a ScheduleHandler.
func NewScheduleHandler(st store.Store, v *core.Validator, l *slog.Logger) *ScheduleHandler {
	if l == nil {
		l = slog.Default()
	}
	return &ScheduleHandler{st: st, validator: v, logger: l}
}

// Routes mounts the schedule endpoints on an authenticated router group.
func (h *ScheduleHandler) Routes(r chi.Router) {
	r.Route("/schedule", func(r chi.Router) {
		r.Get("/", h.ListRange)
		r.Post("/", h.Create)
		r.Delete("/{id}", h.Delete)
	})
}

// CreateScheduleEventRequest is the body for POST /v1/schedule. Inspection
// and work order entries are created by their own flows; this endpoint
// covers ad-hoc blocks (time off, supply runs, warranty callbacks).
type CreateScheduleEventRequest struct {
	TechnicianID int64     `json:"technician_id" validate:"required,gt=0"`
	Title        string    `json:"title" validate:"required,max=200"`
	StartsAt     time.Time `json:"starts_at" validate:"required"`
	EndsAt       time.Time `json:"ends_at" validate:"required"`
}

// ListRange handles GET /v1/schedule?from=&to=&technician_id=. Events that
// merely straddle the window boundaries are included.
func (h *ScheduleHandler) ListRange(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	from, err := parseTimeParam(r, "from")
	if err != nil {
		core.Error(w, r, err)
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if from.IsZero() || to.IsZero() || !to.After(from) {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidField,
			"from and to are required and to must be after from",
			nil,
		))
		return
	}

	var technicianID int64
	if raw := r.URL.Query().Get("technician_id"); raw != "" {
		technicianID, err = parsePositiveInt(raw)
		if err != nil {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidField,
				"technician_id must be a positive integer",
				nil,
			))
			return
		}
	}

	events, err := db.NewScheduleRepository(h.st).ListRange(r.Context(), actor.CompanyID, technicianID, from, to)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: events})
}

// Create handles POST /v1/schedule.
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req CreateScheduleEventRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	if !req.EndsAt.After(req.StartsAt) {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidField,
			"ends_at must be after starts_at",
			nil,
		))
		return
	}

	event := &types.ScheduleEvent{
		CompanyID:    actor.CompanyID,
		TechnicianID: req.TechnicianID,
		Type:         types.EventOther,
		Title:        req.Title,
		StartsAt:     req.StartsAt.UTC(),
		EndsAt:       req.EndsAt.UTC(),
	}
	id, err := db.NewScheduleRepository(h.st).Create(r.Context(), event)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	event.ID = id

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: event})
}

// Delete handles DELETE /v1/schedule/{id}.
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	if err := db.NewScheduleRepository(h.st).Delete(r.Context(), id, actor.CompanyID); err != nil {
		core.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
