package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"stockradar/internal/domain"
)

// fakeStreamBus serves canned stream messages and records the cursor it was
// asked for.
type fakeStreamBus struct {
	noopBus
	msgs   []domain.StreamMessage
	lastID string
	count  int
}

func (f *fakeStreamBus) StreamRead(_ context.Context, _ string, lastID string, count int) ([]domain.StreamMessage, error) {
	f.lastID = lastID
	f.count = count
	return f.msgs, nil
}

func newEventsMux(bus domain.EventBus) *http.ServeMux {
	h := NewEventsHandler(bus, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/events", h.ListEvents)
	return mux
}

func mustMarshalEvent(t *testing.T, evt domain.Event) []byte {
	t.Helper()
	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return data
}

func TestListEvents(t *testing.T) {
	now := time.Now().UTC()
	bus := &fakeStreamBus{msgs: []domain.StreamMessage{
		{ID: "1-0", Payload: mustMarshalEvent(t, domain.Event{
			Type: domain.EventPositionOpened, Ticker: "AAPL", Price: 100, Timestamp: now,
		})},
		{ID: "2-0", Payload: []byte("{{")},
		{ID: "3-0", Payload: mustMarshalEvent(t, domain.Event{
			Type: domain.EventPositionClosed, Ticker: "NVDA", Price: 92, Reason: "STOP", Timestamp: now,
		})},
	}}
	mux := newEventsMux(bus)

	rec := doRequest(mux, http.MethodGet, "/api/events", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if bus.lastID != "0" {
		t.Errorf("default cursor = %q, want 0", bus.lastID)
	}
	if bus.count != 100 {
		t.Errorf("default count = %d, want 100", bus.count)
	}

	var resp struct {
		Events []struct {
			StreamID string  `json:"stream_id"`
			Type     string  `json:"type"`
			Ticker   string  `json:"ticker"`
			Price    float64 `json:"price"`
		} `json:"events"`
		LastID string `json:"last_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Events) != 2 {
		t.Fatalf("len(events) = %d, want 2 (malformed entry skipped)", len(resp.Events))
	}
	if resp.Events[0].StreamID != "1-0" || resp.Events[0].Type != "position_opened" {
		t.Errorf("events[0] = %+v, want stream_id=1-0 type=position_opened", resp.Events[0])
	}
	if resp.Events[1].Ticker != "NVDA" || resp.Events[1].Price != 92 {
		t.Errorf("events[1] = %+v, want NVDA at 92", resp.Events[1])
	}
	// The cursor advances past skipped entries too.
	if resp.LastID != "3-0" {
		t.Errorf("last_id = %q, want 3-0", resp.LastID)
	}
}

func TestListEventsCursor(t *testing.T) {
	bus := &fakeStreamBus{}
	mux := newEventsMux(bus)

	rec := doRequest(mux, http.MethodGet, "/api/events?since=5-0&limit=7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if bus.lastID != "5-0" || bus.count != 7 {
		t.Errorf("read cursor = %q count = %d, want 5-0 and 7", bus.lastID, bus.count)
	}

	var resp struct {
		Events []json.RawMessage `json:"events"`
		LastID string            `json:"last_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Events) != 0 {
		t.Errorf("len(events) = %d, want 0", len(resp.Events))
	}
	if resp.LastID != "5-0" {
		t.Errorf("last_id = %q, want the cursor echoed back", resp.LastID)
	}
}

func TestListEventsLimitValidation(t *testing.T) {
	bus := &fakeStreamBus{}
	mux := newEventsMux(bus)

	for _, target := range []string{"/api/events?limit=abc", "/api/events?limit=0"} {
		rec := doRequest(mux, http.MethodGet, target, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", target, rec.Code)
		}
	}

	rec := doRequest(mux, http.MethodGet, "/api/events?limit=9999", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if bus.count != 500 {
		t.Errorf("count = %d, want clamp to 500", bus.count)
	}
}
