package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sprinklerops/internal/core"
	"sprinklerops/internal/db"
	"sprinklerops/internal/store"
	"sprinklerops/internal/types"
)

// EstimateHandler manages priced repair proposals and their approval flow.
type EstimateHandler struct {
	st        store.Store
	validator *core.Validator
	clock     types.Clock
	logger    *slog.Logger
}

// NewEstimateHandler creates an EstimateHandler.
func NewEstimateHandler(st store.Store, v *core.Validator, clock types.Clock, l *slog.Logger) *EstimateHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if l == nil {
		l = slog.Default()
	}
	return &EstimateHandler{st: st, validator: v, clock: clock, logger: l}
}

// Routes mounts the estimate endpoints on an authenticated router group.
func (h *EstimateHandler) Routes(r chi.Router) {
	r.Route("/estimates", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/lines", h.AddLine)
		r.Post("/{id}/send", h.Send)
		r.Post("/{id}/approve", h.Approve)
		r.Post("/{id}/decline", h.Decline)
	})
}

// CreateEstimateRequest is the body for POST /v1/estimates. An inspection
// reference seeds the estimate with one line per finding.
type CreateEstimateRequest struct {
	ClientID     int64  `json:"client_id" validate:"required,gt=0"`
	SiteID       int64  `json:"site_id" validate:"required,gt=0"`
	InspectionID *int64 `json:"inspection_id" validate:"omitempty,gt=0"`
	Notes        string `json:"notes" validate:"omitempty,max=4000"`
}

// AddEstimateLineRequest is the body for POST /v1/estimates/{id}/lines.
type AddEstimateLineRequest struct {
	Description string `json:"description" validate:"required,max=1000"`
	Quantity    int    `json:"quantity" validate:"required,gt=0,lte=10000"`
	UnitCents   int64  `json:"unit_cents" validate:"gte=0"`
}

// estimateDetail bundles an estimate with its lines for GET.
type estimateDetail struct {
	*types.Estimate
	Lines []*types.EstimateLine `json:"lines"`
}

// List handles GET /v1/estimates with optional status filter.
func (h *EstimateHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	limit, offset, err := parsePage(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var status types.EstimateStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status = types.EstimateStatus(raw)
		switch status {
		case types.EstimateDraft, types.EstimateSent, types.EstimateApproved, types.EstimateDeclined:
		default:
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidField,
				"status must be one of: draft, sent, approved, declined",
				nil,
			))
			return
		}
	}

	estimates, err := db.NewEstimateRepository(h.st).List(r.Context(), actor.CompanyID, status, limit, offset)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: estimates,
		Page: pageInfo(limit, offset, len(estimates)),
	})
}

// Create handles POST /v1/estimates. When an inspection is referenced, its
// findings are copied in as unpriced lines so the office starts from the
// technician's walk-through instead of a blank sheet.
func (h *EstimateHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req CreateEstimateRequest
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

	var seedItems []*types.InspectionItem
	if req.InspectionID != nil {
		inspRepo := db.NewInspectionRepository(h.st)
		if _, err := inspRepo.GetByID(r.Context(), *req.InspectionID, actor.CompanyID); err != nil {
			core.Error(w, r, err)
			return
		}
		items, err := inspRepo.ListItems(r.Context(), *req.InspectionID, actor.CompanyID)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		seedItems = items
	}

	var id int64
	err := h.st.Transaction(r.Context(), func(txCtx context.Context, ex store.Executor) error {
		repo := db.NewEstimateRepository(ex)
		var err error
		id, err = repo.Create(txCtx, &types.Estimate{
			CompanyID:    actor.CompanyID,
			ClientID:     req.ClientID,
			SiteID:       req.SiteID,
			InspectionID: req.InspectionID,
			Status:       types.EstimateDraft,
			Notes:        req.Notes,
		})
		if err != nil {
			return err
		}

		for _, item := range seedItems {
			line := &types.EstimateLine{
				EstimateID:  id,
				Description: fmt.Sprintf("Zone %d: %s", item.Zone, item.Finding),
				Quantity:    1,
			}
			if _, err := repo.AddLine(txCtx, actor.CompanyID, line); err != nil {
				return err
			}
		}
		return nil
	}, store.WithCompany(actor.CompanyID))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.writeDetail(w, r, id, actor.CompanyID, http.StatusCreated)
}

// Get handles GET /v1/estimates/{id}, returning the estimate with lines.
func (h *EstimateHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	h.writeDetail(w, r, id, actor.CompanyID, http.StatusOK)
}

// AddLine handles POST /v1/estimates/{id}/lines. Lines can only be added
// to drafts; the stored total is recalculated in the same transaction.
func (h *EstimateHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	var req AddEstimateLineRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	estimate, err := db.NewEstimateRepository(h.st).GetByID(r.Context(), id, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if estimate.Status != types.EstimateDraft {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeConflictStatus,
			"lines can only be added to draft estimates",
			nil,
			map[string]any{"status": string(estimate.Status)},
		))
		return
	}

	err = h.st.Transaction(r.Context(), func(txCtx context.Context, ex store.Executor) error {
		repo := db.NewEstimateRepository(ex)
		if _, err := repo.AddLine(txCtx, actor.CompanyID, &types.EstimateLine{
			EstimateID:  id,
			Description: req.Description,
			Quantity:    req.Quantity,
			UnitCents:   req.UnitCents,
		}); err != nil {
			return err
		}
		return repo.RecalculateTotal(txCtx, id, actor.CompanyID)
	}, store.WithCompany(actor.CompanyID))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.writeDetail(w, r, id, actor.CompanyID, http.StatusCreated)
}

// Send handles POST /v1/estimates/{id}/send: draft goes out to the client.
func (h *EstimateHandler) Send(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, types.EstimateDraft, types.EstimateSent)
}

// Decline handles POST /v1/estimates/{id}/decline.
func (h *EstimateHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, types.EstimateSent, types.EstimateDeclined)
}

// Approve handles POST /v1/estimates/{id}/approve. Approval and work order
// creation are one transaction: an approved estimate without its job, or a
// job without the approval, must never exist.
func (h *EstimateHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	estimate, err := db.NewEstimateRepository(h.st).GetByID(r.Context(), id, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	now := h.clock.Now()
	var workOrderID int64
	err = h.st.Transaction(r.Context(), func(txCtx context.Context, ex store.Executor) error {
		if err := db.NewEstimateRepository(ex).UpdateStatus(txCtx, id, actor.CompanyID,
			types.EstimateSent, types.EstimateApproved, &now); err != nil {
			return err
		}

		var err error
		workOrderID, err = db.NewWorkOrderRepository(ex).Create(txCtx, &types.WorkOrder{
			CompanyID:   actor.CompanyID,
			ClientID:    estimate.ClientID,
			SiteID:      estimate.SiteID,
			EstimateID:  &id,
			Status:      types.WorkOrderPending,
			Description: fmt.Sprintf("Repairs per estimate #%d", id),
		})
		return err
	}, store.WithCompany(actor.CompanyID))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	updated, err := db.NewEstimateRepository(h.st).GetByID(r.Context(), id, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	workOrder, err := db.NewWorkOrderRepository(h.st).GetByID(r.Context(), workOrderID, actor.CompanyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]any{
		"estimate":   updated,
		"work_order": workOrder,
	}})
}

// transition applies a guarded status change and writes the updated record.
func (h *EstimateHandler) transition(w http.ResponseWriter, r *http.Request, from, to types.EstimateStatus) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	repo := db.NewEstimateRepository(h.st)
	if err := repo.UpdateStatus(r.Context(), id, actor.CompanyID, from, to, nil); err != nil {
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

// writeDetail fetches the estimate and its lines and writes them.
func (h *EstimateHandler) writeDetail(w http.ResponseWriter, r *http.Request, id, companyID int64, status int) {
	repo := db.NewEstimateRepository(h.st)
	estimate, err := repo.GetByID(r.Context(), id, companyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	lines, err := repo.ListLines(r.Context(), id, companyID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, status, core.APIResponse{Data: estimateDetail{
		Estimate: estimate,
		Lines:    lines,
	}})
}
