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

// WorkOrderHandler manages approved jobs through scheduling and execution.
type WorkOrderHandler struct {
	st        store.Store
	validator *core.Validator
	clock     types.Clock
	logger    *slog.Logger
}

// NewWorkOrderHandler creates a WorkOrderHandler.
func NewWorkOrderHandler(st store.Store, v *core.Validator, clock types.Clock, l *slog.Logger) *WorkOrderHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if l == nil {
		l = slog.Default()
	}
	return &WorkOrderHandler{st: st, validator: v, clock: clock, logger: l}
}

// Routes mounts the work order endpoints on an authenticated router group.
func (h *WorkOrderHandler) Routes(r chi.Router) {
	r.Route("/work-orders", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/assign", h.Assign)
		r.Post("/{id}/status", h.UpdateStatus)
	})
}

// CreateWorkOrderRequest is the body for POST /v1/work-orders. Most work
// orders are created by estimate approval; this endpoint covers ad-hoc
// jobs that never went through an estimate.
type CreateWorkOrderRequest struct {
	ClientID    int64  `json:"client_id" validate:"required,gt=0"`
	SiteID      int64  `json:"site_id" validate:"required,gt=0"`
	Description string `json:"description" validate:"required,max=4000"`
}

// AssignWorkOrderRequest is the body for POST /v1/work-orders/{id}/assign.
type AssignWorkOrderRequest struct {
	TechnicianID int64     `json:"technician_id" validate:"required,gt=0"`
	ScheduledFor time.Time `json:"scheduled_for" validate:"required"`
}

// UpdateWorkOrderStatusRequest is the body for POST /v1/work-orders/{id}/status.
type UpdateWorkOrderStatusRequest struct {
	Status types.WorkOrderStatus `json:"status" validate:"required,oneof=pending scheduled in_progress completed cancelled"`
}

// List handles GET /v1/work-orders with optional status and technician
// filters.
func (h *WorkOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	limit, offset, err := parsePage(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var status types.WorkOrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status = types.WorkOrderStatus(raw)
		switch status {
		case types.WorkOrderPending, types.WorkOrderScheduled, types.WorkOrderInProgress,
			types.WorkOrderCompleted, types.WorkOrderCancelled:
		default:
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidField,
				"status must be one of: pending, scheduled, in_progress, completed, cancelled",
				nil,
			))
			return
		}
	}

	var technicianID int64
	if raw := r.URL.Query().Get("technician_id"); raw != "" {
		id, err := parsePositiveInt(raw)
		if err != nil {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidField,
				"technician_id must be a positive integer",
				nil,
			))
			return
		}
		technicianID = id
	}

	orders, err := db.NewWorkOrderRepository(h.st).List(r.Context(), actor.CompanyID, status, technicianID, limit, offset)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: orders,
		Page: pageInfo(limit, offset, len(orders)),
	})
}

// Create handles POST /v1/work-orders.
func (h *WorkOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req CreateWorkOrderRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	if _, err := db.NewClientRepository(h.st).GetByID(r.Context(), req.ClientID, actor.CompanyID); err != nil {
		core.Error(w, r, err)
		return
	}
	if _, err := db.NewSiteRepository(h.st).GetByID(r.Context(), req.SiteID, actor.CompanyID); err != nil {
		core.Error(w, r, err)
		return
	}

	repo := db.NewWorkOrderRepository(h.st)
	id, err := repo.Create(r.Context(), &types.WorkOrder{
		CompanyID:   actor.CompanyID,
		ClientID:    req.ClientID,
		SiteID:      req.SiteID,
		Status:      types.WorkOrderPending,
		Description: req.Description,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	order, err := repo.GetByID(r.Context(), id, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: order})
}

// Get handles GET /v1/work-orders/{id}.
func (h *WorkOrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	order, err := db.NewWorkOrderRepository(h.st).GetByID(r.Context(), id, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: order})
}

// Assign handles POST /v1/work-orders/{id}/assign: the job moves to
// scheduled and the technician gets a calendar entry, atomically.
func (h *WorkOrderHandler) Assign(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	var req AssignWorkOrderRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	repo := db.NewWorkOrderRepository(h.st)
	order, err := repo.GetByID(r.Context(), id, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if !order.Status.CanTransitionTo(types.WorkOrderScheduled) {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeConflictStatus,
			"work order cannot be scheduled from its current status",
			nil,
			map[string]any{"status": string(order.Status)},
		))
		return
	}

	scheduledFor := req.ScheduledFor.UTC()
	err = h.st.Transaction(r.Context(), func(txCtx context.Context, ex store.Executor) error {
		if err := db.NewWorkOrderRepository(ex).Assign(txCtx, id, actor.CompanyID, req.TechnicianID, scheduledFor); err != nil {
			return err
		}
		_, err := db.NewScheduleRepository(ex).Create(txCtx, &types.ScheduleEvent{
			CompanyID:    actor.CompanyID,
			TechnicianID: req.TechnicianID,
			Type:         types.EventWorkOrder,
			ReferenceID:  &id,
			Title:        order.Description,
			StartsAt:     scheduledFor,
			EndsAt:       scheduledFor.Add(2 * time.Hour),
		})
		return err
	}, store.WithCompany(actor.CompanyID))
	if err != nil {
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

// UpdateStatus handles POST /v1/work-orders/{id}/status. The transition
// table in types gates the move; the repository re-checks the from-status
// in the UPDATE itself so concurrent transitions cannot both win.
func (h *WorkOrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateWorkOrderStatusRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	repo := db.NewWorkOrderRepository(h.st)
	order, err := repo.GetByID(r.Context(), id, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if !order.Status.CanTransitionTo(req.Status) {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeConflictStatus,
			"illegal work order status transition",
			nil,
			map[string]any{"from": string(order.Status), "to": string(req.Status)},
		))
		return
	}

	var completedAt *time.Time
	if req.Status == types.WorkOrderCompleted {
		now := h.clock.Now()
		completedAt = &now
	}

	if err := repo.UpdateStatus(r.Context(), id, actor.CompanyID, order.Status, req.Status, completedAt); err != nil {
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
