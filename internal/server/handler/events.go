package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"stockradar/internal/domain"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 500
)

// EventsHandler replays the durable lifecycle event stream.
type EventsHandler struct {
	bus    domain.EventBus
	logger *slog.Logger
}

// NewEventsHandler creates an EventsHandler.
func NewEventsHandler(bus domain.EventBus, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{bus: bus, logger: logger}
}

type eventJSON struct {
	StreamID  string    `json:"stream_id"`
	Type      string    `json:"type"`
	Ticker    string    `json:"ticker,omitempty"`
	Price     float64   `json:"price,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type listEventsResponse struct {
	Events []eventJSON `json:"events"`
	// LastID is the cursor for the next poll; pass it back as since.
	LastID string `json:"last_id"`
}

// ListEvents returns stream entries recorded after the since cursor.
// GET /api/events?since=<stream-id>&limit=100
func (h *EventsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	since := q.Get("since")
	if since == "" {
		since = "0"
	}

	limit := defaultEventLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if n > maxEventLimit {
			n = maxEventLimit
		}
		limit = n
	}

	msgs, err := h.bus.StreamRead(r.Context(), domain.EventStream, since, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: event stream read failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}

	out := make([]eventJSON, 0, len(msgs))
	lastID := since
	for _, msg := range msgs {
		lastID = msg.ID

		var evt domain.Event
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			h.logger.WarnContext(r.Context(), "handler: skipping malformed event",
				slog.String("stream_id", msg.ID),
			)
			continue
		}
		out = append(out, eventJSON{
			StreamID:  msg.ID,
			Type:      string(evt.Type),
			Ticker:    evt.Ticker,
			Price:     evt.Price,
			Reason:    evt.Reason,
			Timestamp: evt.Timestamp,
		})
	}

	writeJSON(w, http.StatusOK, listEventsResponse{Events: out, LastID: lastID})
}
