package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/crossarb/internal/service"
)

// defaultStatsWindow is used when the request carries no window parameter.
const defaultStatsWindow = 24 * time.Hour

// maxStatsWindow caps the requested window so a single request cannot scan
// unbounded history.
const maxStatsWindow = 30 * 24 * time.Hour

// StatsHandler serves the rolling pipeline statistics endpoint.
type StatsHandler struct {
	stats  *service.StatsService
	logger *slog.Logger
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(stats *service.StatsService, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, logger: logger}
}

// Get returns aggregate pipeline statistics over a trailing window.
// GET /api/stats?window=24h
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	window := defaultStatsWindow
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "invalid window duration")
			return
		}
		window = d
	}
	if window > maxStatsWindow {
		window = maxStatsWindow
	}

	stats, err := h.stats.Window(r.Context(), window)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: stats failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
