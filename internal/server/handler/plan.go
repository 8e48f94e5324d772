package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// PlanHandler serves plan read endpoints.
type PlanHandler struct {
	plans  domain.PlanStore
	logger *slog.Logger
}

// NewPlanHandler creates a PlanHandler.
func NewPlanHandler(plans domain.PlanStore, logger *slog.Logger) *PlanHandler {
	return &PlanHandler{plans: plans, logger: logger}
}

// listPlansResponse wraps the list response.
type listPlansResponse struct {
	Plans []domain.Plan `json:"plans"`
}

// ListActive returns plans currently approved or executing.
// GET /api/plans/active?limit=50&offset=0
func (h *PlanHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.ListActive(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list active plans failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list plans")
		return
	}
	if plans == nil {
		plans = []domain.Plan{}
	}

	writeJSON(w, http.StatusOK, listPlansResponse{Plans: plans})
}

// ListRecent returns the most recently created plans, any status.
// GET /api/plans?limit=50
func (h *PlanHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.ListRecent(r.Context(), parseLimit(r, 50, 500))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list plans failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list plans")
		return
	}
	if plans == nil {
		plans = []domain.Plan{}
	}

	writeJSON(w, http.StatusOK, listPlansResponse{Plans: plans})
}

// Get returns a single plan by ID, including its stored validation decision.
// GET /api/plans/{id}
func (h *PlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	plan, err := h.plans.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "plan not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get plan failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get plan")
		return
	}

	writeJSON(w, http.StatusOK, plan)
}
