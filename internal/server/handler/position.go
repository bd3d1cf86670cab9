package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"stockradar/internal/domain"
)

// LedgerReader is the read slice of the ledger the position endpoints
// need. domain.Ledger satisfies it.
type LedgerReader interface {
	Get(ctx context.Context, id string) (domain.Position, error)
	ListOpen(ctx context.Context) ([]domain.Position, error)
	ListClosed(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error)
}

// Exiter closes a position at a caller-supplied price.
type Exiter interface {
	ExitManually(ctx context.Context, positionID string, exitPrice float64) (domain.Position, error)
}

// PositionHandler serves the position endpoints.
type PositionHandler struct {
	ledger LedgerReader
	exiter Exiter
	logger *slog.Logger
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(ledger LedgerReader, exiter Exiter, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		ledger: ledger,
		exiter: exiter,
		logger: logger,
	}
}

type listPositionsResponse struct {
	Positions []positionJSON `json:"positions"`
}

// ListOpen returns the open positions, oldest entry first.
// GET /api/positions
func (h *PositionHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	positions, err := h.ledger.ListOpen(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list open positions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: toPositionsJSON(positions)})
}

// ListClosed returns closed positions, most recent exit first.
// GET /api/positions/closed?limit=50&offset=0
func (h *PositionHandler) ListClosed(w http.ResponseWriter, r *http.Request) {
	positions, err := h.ledger.ListClosed(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list closed positions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: toPositionsJSON(positions)})
}

// Get returns one position by ID.
// GET /api/positions/{id}
func (h *PositionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing position id")
		return
	}

	pos, err := h.ledger.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "position not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get position failed",
			slog.String("position_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get position")
		return
	}
	writeJSON(w, http.StatusOK, toPositionJSON(pos))
}

type exitRequest struct {
	Price float64 `json:"price"`
}

// Exit closes an open position at the given price.
// POST /api/positions/{id}/exit
func (h *PositionHandler) Exit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing position id")
		return
	}

	var req exitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	pos, err := h.exiter.ExitManually(r.Context(), id, req.Price)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "position not found")
		case errors.Is(err, domain.ErrPositionClosed):
			writeError(w, http.StatusConflict, "position already closed")
		case errors.Is(err, domain.ErrInvalidParameter):
			writeError(w, http.StatusBadRequest, "price must be positive")
		default:
			h.logger.ErrorContext(r.Context(), "handler: exit position failed",
				slog.String("position_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to exit position")
		}
		return
	}
	writeJSON(w, http.StatusOK, toPositionJSON(pos))
}
