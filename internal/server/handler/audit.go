package handler

import (
	"log/slog"
	"net/http"

	"github.com/flipscout/flipscout/internal/domain"
)

// AuditHandler serves the deal audit trail.
type AuditHandler struct {
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(audit domain.AuditStore, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{
		audit:  audit,
		logger: logger,
	}
}

// ListAudit returns audit entries across all deals, newest first.
// GET /api/audit?limit=50&since=...
func (h *AuditHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	entries, err := h.audit.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list audit failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}

// ListDealAudit returns one deal's audit trail in sequence order.
// GET /api/deals/{id}/audit
func (h *AuditHandler) ListDealAudit(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing deal id")
		return
	}

	entries, err := h.audit.ListByDeal(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list deal audit failed",
			slog.String("deal_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"deal_id": id,
		"entries": entries,
	})
}
