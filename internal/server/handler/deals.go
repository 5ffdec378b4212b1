package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/flipscout/flipscout/internal/domain"
)

// DealService defines what the deal handlers need from the lifecycle manager
// and the stores. It is declared locally so the handler package does not
// depend on the concrete implementations.
type DealService interface {
	List(ctx context.Context, opts domain.ListOpts) ([]domain.Deal, error)
	GetByID(ctx context.Context, id string) (domain.Deal, error)
	Active(ctx context.Context) (domain.Deal, error)
	CountNonTerminal(ctx context.Context) (int64, error)
	OnDecision(ctx context.Context, dealID string, decision domain.Decision, investment float64) (domain.Deal, error)
	Complete(ctx context.Context, dealID, reason string) (domain.Deal, error)
}

// DealHandler serves deal-related HTTP endpoints, including the decision
// channel ingress.
type DealHandler struct {
	deals  DealService
	logger *slog.Logger
}

// NewDealHandler creates a DealHandler.
func NewDealHandler(deals DealService, logger *slog.Logger) *DealHandler {
	return &DealHandler{
		deals:  deals,
		logger: logger,
	}
}

type listDealsResponse struct {
	Deals  []domain.Deal `json:"deals"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// ListDeals returns deals newest first with pagination and optional state and
// time filters.
// GET /api/deals?limit=50&offset=0&state=approved,completed
func (h *DealHandler) ListDeals(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	deals, err := h.deals.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list deals failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list deals")
		return
	}

	writeJSON(w, http.StatusOK, listDealsResponse{
		Deals:  deals,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// GetDeal returns a single deal by its ID.
// GET /api/deals/{id}
func (h *DealHandler) GetDeal(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing deal id")
		return
	}

	d, err := h.deals.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "deal not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get deal failed",
			slog.String("deal_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get deal")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// GetActiveDeal returns the deal currently holding the active slot.
// GET /api/deals/active
func (h *DealHandler) GetActiveDeal(w http.ResponseWriter, r *http.Request) {
	d, err := h.deals.Active(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no active deal")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get active deal failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get active deal")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// Status exposes the single-active-slot invariant as a queryable value.
// GET /api/status
func (h *DealHandler) Status(w http.ResponseWriter, r *http.Request) {
	count, err := h.deals.CountNonTerminal(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: status failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute status")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"non_terminal_deals": count,
		"slot_free":          count == 0,
	})
}

type decisionRequest struct {
	Decision   string  `json:"decision"` // "approve" or "reject"
	Investment float64 `json:"investment,omitempty"`
}

// Decide applies an operator decision to a pending deal. Decisions are
// idempotent: replaying an identical decision returns 200 with the unchanged
// deal.
// POST /api/deals/{id}/decision
func (h *DealHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing deal id")
		return
	}

	var req decisionRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	decision := domain.Decision(req.Decision)
	if decision != domain.DecisionApprove && decision != domain.DecisionReject {
		writeError(w, http.StatusBadRequest, "decision must be approve or reject")
		return
	}

	d, err := h.deals.OnDecision(r.Context(), id, decision, req.Investment)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "deal not found")
		case errors.Is(err, domain.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "deal cannot accept this decision")
		default:
			h.logger.ErrorContext(r.Context(), "handler: decision failed",
				slog.String("deal_id", id),
				slog.String("decision", req.Decision),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to apply decision")
		}
		return
	}

	writeJSON(w, http.StatusOK, d)
}

type completeRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CompleteDeal moves an approved deal to its terminal completed state.
// POST /api/deals/{id}/complete
func (h *DealHandler) CompleteDeal(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing deal id")
		return
	}

	var req completeRequest
	if r.ContentLength > 0 {
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	d, err := h.deals.Complete(r.Context(), id, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "deal not found")
		case errors.Is(err, domain.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "deal is not approved")
		default:
			h.logger.ErrorContext(r.Context(), "handler: complete failed",
				slog.String("deal_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to complete deal")
		}
		return
	}

	writeJSON(w, http.StatusOK, d)
}
