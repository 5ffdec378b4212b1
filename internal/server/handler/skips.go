package handler

import (
	"log/slog"
	"net/http"

	"github.com/flipscout/flipscout/internal/domain"
)

// SkipHandler serves the skip log: candidates that were evaluated but never
// committed, with the reason they were parked.
type SkipHandler struct {
	skips  domain.SkipStore
	logger *slog.Logger
}

// NewSkipHandler creates a SkipHandler.
func NewSkipHandler(skips domain.SkipStore, logger *slog.Logger) *SkipHandler {
	return &SkipHandler{
		skips:  skips,
		logger: logger,
	}
}

// ListSkips returns skipped candidates, newest first.
// GET /api/skips?limit=50
func (h *SkipHandler) ListSkips(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	skips, err := h.skips.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list skips failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list skips")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"skips":  skips,
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})
}

// ListResurfaceable returns the conflict-skip queue, best score first.
// GET /api/skips/resurfaceable?limit=10
func (h *SkipHandler) ListResurfaceable(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	skips, err := h.skips.ListResurfaceable(r.Context(), opts.Limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list resurfaceable failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list resurfaceable skips")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"skips": skips,
	})
}
