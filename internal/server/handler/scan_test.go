package handler

import (
	"net/http"
	"testing"
)

func TestTriggerScan(t *testing.T) {
	ch := make(chan struct{}, 1)
	h := NewScanHandler(discardLogger()).WithTriggerChannel(ch)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/scan/trigger", h.TriggerScan)

	rec := doRequest(mux, http.MethodPost, "/api/scan/trigger", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", rec.Code, rec.Body.String())
	}
	select {
	case <-ch:
	default:
		t.Fatal("no trigger queued on the channel")
	}

	// Fill the buffer and leave it undrained; the next trigger conflicts.
	ch <- struct{}{}
	rec = doRequest(mux, http.MethodPost, "/api/scan/trigger", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("pending scan status = %d, want 409", rec.Code)
	}
}

func TestTriggerScanNoLoop(t *testing.T) {
	h := NewScanHandler(discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/scan/trigger", h.TriggerScan)

	rec := doRequest(mux, http.MethodPost, "/api/scan/trigger", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
