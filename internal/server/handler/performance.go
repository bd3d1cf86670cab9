package handler

import (
	"context"
	"log/slog"
	"net/http"

	"stockradar/internal/domain"
)

// PerformanceSource computes realized trade statistics.
type PerformanceSource interface {
	Performance(ctx context.Context) (domain.PerformanceReport, error)
}

// PerformanceHandler serves the realized performance report.
type PerformanceHandler struct {
	source PerformanceSource
	logger *slog.Logger
}

// NewPerformanceHandler creates a PerformanceHandler.
func NewPerformanceHandler(source PerformanceSource, logger *slog.Logger) *PerformanceHandler {
	return &PerformanceHandler{source: source, logger: logger}
}

// GetReport returns win rate, profit factor and R-multiple stats over the
// closed book.
// GET /api/performance
func (h *PerformanceHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.source.Performance(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: performance report failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute performance")
		return
	}
	writeJSON(w, http.StatusOK, toPerformanceJSON(rep))
}
