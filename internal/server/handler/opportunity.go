package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// OpportunityHandler serves opportunity read endpoints.
type OpportunityHandler struct {
	opps   domain.OpportunityStore
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler.
func NewOpportunityHandler(opps domain.OpportunityStore, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{opps: opps, logger: logger}
}

// listOpportunitiesResponse wraps the list response.
type listOpportunitiesResponse struct {
	Opportunities []domain.Opportunity `json:"opportunities"`
}

// ListRecent returns the most recently detected opportunities, any status.
// GET /api/opportunities?limit=50
func (h *OpportunityHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 500)

	opps, err := h.opps.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list opportunities failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if opps == nil {
		opps = []domain.Opportunity{}
	}

	writeJSON(w, http.StatusOK, listOpportunitiesResponse{Opportunities: opps})
}

// Get returns a single opportunity by ID.
// GET /api/opportunities/{id}
func (h *OpportunityHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	opp, err := h.opps.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "opportunity not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get opportunity failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get opportunity")
		return
	}

	writeJSON(w, http.StatusOK, opp)
}
