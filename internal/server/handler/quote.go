package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// QuoteHandler serves the latest cached quotes. The cache is optional; when
// it is disabled the endpoint reports 501.
type QuoteHandler struct {
	quotes domain.QuoteCache
	logger *slog.Logger
}

// NewQuoteHandler creates a QuoteHandler. quotes may be nil.
func NewQuoteHandler(quotes domain.QuoteCache, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{quotes: quotes, logger: logger}
}

// Get returns the latest cached quote for a (venue, token) pair.
// GET /api/quotes/{venue}/{token}
func (h *QuoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.quotes == nil {
		writeError(w, http.StatusNotImplemented, "quote cache is not enabled")
		return
	}

	venue := r.PathValue("venue")
	token := r.PathValue("token")

	quote, err := h.quotes.GetQuote(r.Context(), venue, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no cached quote")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get quote failed",
			slog.String("venue", venue),
			slog.String("token", token),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get quote")
		return
	}

	writeJSON(w, http.StatusOK, quote)
}
