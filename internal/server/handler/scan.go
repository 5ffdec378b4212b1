package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// ScanHandler serves the manual scan-trigger endpoint.
type ScanHandler struct {
	logger    *slog.Logger
	triggerCh chan<- struct{} // when non-nil, sending requests one scan cycle
}

// NewScanHandler creates a ScanHandler with the given logger.
func NewScanHandler(logger *slog.Logger) *ScanHandler {
	return &ScanHandler{logger: logger}
}

// WithTriggerChannel sets the channel to send on when a scan is requested.
// The scan loop must receive from this channel to run one cycle.
func (h *ScanHandler) WithTriggerChannel(ch chan<- struct{}) *ScanHandler {
	h.triggerCh = ch
	return h
}

// TriggerScan enqueues one scan cycle. If a trigger channel is configured, a
// non-blocking send is performed so the scan loop runs one extra cycle.
// POST /api/scan/trigger
func (h *ScanHandler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "handler: scan trigger requested")
	if h.triggerCh != nil {
		select {
		case h.triggerCh <- struct{}{}:
		default:
			// already triggered and not yet consumed
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"message":      "scan cycle enqueued",
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}
