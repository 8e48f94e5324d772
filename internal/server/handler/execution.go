package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// ExecutionHandler serves execution history endpoints.
type ExecutionHandler struct {
	execs  domain.ExecutionStore
	logger *slog.Logger
}

// NewExecutionHandler creates an ExecutionHandler.
func NewExecutionHandler(execs domain.ExecutionStore, logger *slog.Logger) *ExecutionHandler {
	return &ExecutionHandler{execs: execs, logger: logger}
}

// listExecutionsResponse wraps the list response.
type listExecutionsResponse struct {
	Executions []domain.Execution `json:"executions"`
}

// ListRecent returns the most recent executions.
// GET /api/executions?limit=50
func (h *ExecutionHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	execs, err := h.execs.ListRecent(r.Context(), parseLimit(r, 50, 500))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list executions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}
	if execs == nil {
		execs = []domain.Execution{}
	}

	writeJSON(w, http.StatusOK, listExecutionsResponse{Executions: execs})
}

// GetByPlan returns the execution row for a plan, if the plan reached a
// terminal execution outcome.
// GET /api/plans/{id}/execution
func (h *ExecutionHandler) GetByPlan(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("id")

	exec, err := h.execs.GetByPlanID(r.Context(), planID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no execution for plan")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get execution failed",
			slog.String("plan_id", planID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get execution")
		return
	}

	writeJSON(w, http.StatusOK, exec)
}
