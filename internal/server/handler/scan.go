package handler

import (
	"log/slog"
	"net/http"
)

// ScanHandler queues on-demand screening runs for the scan loop.
type ScanHandler struct {
	logger    *slog.Logger
	triggerCh chan<- struct{}
}

// NewScanHandler creates a ScanHandler. Without a trigger channel the
// endpoint reports that no scan loop is running.
func NewScanHandler(logger *slog.Logger) *ScanHandler {
	return &ScanHandler{logger: logger}
}

// WithTriggerChannel connects the handler to the scan loop.
func (h *ScanHandler) WithTriggerChannel(ch chan<- struct{}) *ScanHandler {
	h.triggerCh = ch
	return h
}

// TriggerScan queues a screening run.
// POST /api/scan/trigger
func (h *ScanHandler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	if h.triggerCh == nil {
		writeError(w, http.StatusServiceUnavailable, "scan loop is not running")
		return
	}

	select {
	case h.triggerCh <- struct{}{}:
		h.logger.InfoContext(r.Context(), "handler: scan triggered")
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "scan queued"})
	default:
		writeError(w, http.StatusConflict, "a scan is already pending")
	}
}
