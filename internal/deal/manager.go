// Package deal implements the deal lifecycle manager: the persisted state
// machine that enforces single-active-deal capital discipline and resolves
// external human decisions. Every state-changing call is serialised behind
// one mutex; the store's atomic check-and-set backs the same invariant at the
// persistence layer, so the in-process lock and the database agree.
package deal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/flipscout/flipscout/internal/domain"
)

// Config holds the admission thresholds a scored opportunity must clear
// before any capital is committed to it.
type Config struct {
	// MinTotalScore is the minimum opportunity score for a deal.
	MinTotalScore float64

	// MinProfit is the minimum expected net profit in USD.
	MinProfit float64

	// MaxInvestment caps the committed amount per deal; zero disables the
	// cap.
	MaxInvestment float64
}

// DefaultConfig returns the standard admission thresholds: a 60-point score
// floor, $400 minimum profit, and a $600 per-deal ceiling.
func DefaultConfig() Config {
	return Config{
		MinTotalScore: 60,
		MinProfit:     400,
		MaxInvestment: 600,
	}
}

// EventSink receives deal lifecycle events after each committed transition.
// Implementations must not block; delivery is best-effort.
type EventSink interface {
	DealTransition(deal domain.Deal, from, to domain.DealState)
}

// MultiSink fans lifecycle events out to every non-nil sink. It returns nil
// when nothing remains, so callers can pass the result straight to
// NewManager.
func MultiSink(sinks ...EventSink) EventSink {
	var out multiSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

type multiSink []EventSink

func (m multiSink) DealTransition(d domain.Deal, from, to domain.DealState) {
	for _, s := range m {
		s.DealTransition(d, from, to)
	}
}

// Manager owns every state-changing operation on deals.
type Manager struct {
	mu     sync.Mutex
	deals  domain.DealStore
	skips  domain.SkipStore
	sink   EventSink
	cfg    Config
	logger *slog.Logger
}

// NewManager creates a Manager. The sink may be nil.
func NewManager(deals domain.DealStore, skips domain.SkipStore, sink EventSink, cfg Config, logger *slog.Logger) *Manager {
	if cfg.MinTotalScore <= 0 {
		cfg.MinTotalScore = DefaultConfig().MinTotalScore
	}
	if cfg.MinProfit <= 0 {
		cfg.MinProfit = DefaultConfig().MinProfit
	}
	return &Manager{
		deals:  deals,
		skips:  skips,
		sink:   sink,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "deal_manager")),
	}
}

// Submit attempts to turn a scored opportunity into a pending deal. The full
// Found → Scored → PendingApproval walk happens inside one serialised call, so
// observers only ever see at most one deal holding the active slot.
//
// Candidates that fail the safety gate or the admission thresholds are
// recorded in the skip log and reported as ErrSafetyRejected or
// ErrQualityRejected. When another deal already holds the slot the candidate
// is recorded as a conflict skip (retained, not lost) and ErrConflict is
// returned so the caller can resurface it later.
func (m *Manager) Submit(ctx context.Context, score domain.OpportunityScore) (domain.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !score.Eligible || !score.Safety.Safe {
		m.recordSkip(ctx, score, domain.SkipSafetyRejected,
			fmt.Sprintf("worst-case value %.2f below threshold %.2f", score.Safety.WorstCaseValue, score.Safety.Threshold))
		return domain.Deal{}, domain.ErrSafetyRejected
	}
	if score.TotalScore < m.cfg.MinTotalScore || score.ProfitPotential < m.cfg.MinProfit {
		m.recordSkip(ctx, score, domain.SkipQualityRejected,
			fmt.Sprintf("score %.1f (min %.1f), profit %.2f (min %.2f)",
				score.TotalScore, m.cfg.MinTotalScore, score.ProfitPotential, m.cfg.MinProfit))
		return domain.Deal{}, domain.ErrQualityRejected
	}

	d := domain.Deal{
		ID:       uuid.New().String(),
		Identity: score.Listing.Identity,
		Listing:  score.Listing,
		Score:    score,
	}

	err := m.deals.Create(ctx, d, "listing cleared the vault safety gate and scoring thresholds")
	if errors.Is(err, domain.ErrConflict) {
		m.recordSkip(ctx, score, domain.SkipConflict, "active deal slot occupied")
		m.logger.InfoContext(ctx, "candidate skipped, slot occupied",
			slog.String("item", score.Listing.Identity.Name),
			slog.Float64("score", score.TotalScore),
		)
		return domain.Deal{}, domain.ErrConflict
	}
	if err != nil {
		return domain.Deal{}, fmt.Errorf("deal: create: %w", err)
	}
	m.emit(ctx, d.ID, "", domain.StateFound)

	if err := m.advance(ctx, d.ID, domain.StateFound, domain.StateScored, "opportunity score attached"); err != nil {
		return domain.Deal{}, err
	}
	if err := m.advance(ctx, d.ID, domain.StateScored, domain.StatePendingApproval, "awaiting operator decision"); err != nil {
		return domain.Deal{}, err
	}

	out, err := m.deals.GetByID(ctx, d.ID)
	if err != nil {
		return domain.Deal{}, fmt.Errorf("deal: reload %s: %w", d.ID, err)
	}

	m.logger.InfoContext(ctx, "deal pending approval",
		slog.String("deal_id", out.ID),
		slog.String("item", out.Identity.Name),
		slog.Float64("score", out.Score.TotalScore),
		slog.Float64("profit_potential", out.Score.ProfitPotential),
	)
	return out, nil
}

// OnDecision applies an external human decision to a pending deal. The
// decision channel is at-least-once, so duplicates of an identical decision
// are no-ops: a second Approve for an already-approved deal returns the deal
// unchanged without appending a second audit entry.
func (m *Manager) OnDecision(ctx context.Context, dealID string, decision domain.Decision, investment float64) (domain.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.deals.GetByID(ctx, dealID)
	if err != nil {
		return domain.Deal{}, fmt.Errorf("deal: decision for %s: %w", dealID, err)
	}

	// Idempotent replays.
	if decision == domain.DecisionApprove && d.State == domain.StateApproved {
		return d, nil
	}
	if decision == domain.DecisionReject && d.State == domain.StateRejectedManual {
		return d, nil
	}

	if d.State != domain.StatePendingApproval {
		return domain.Deal{}, fmt.Errorf("deal: %s is %s, not pending: %w", dealID, d.State, domain.ErrInvalidTransition)
	}

	switch decision {
	case domain.DecisionApprove:
		if investment <= 0 {
			investment = d.Listing.TotalCost()
		}
		if m.cfg.MaxInvestment > 0 && investment > m.cfg.MaxInvestment {
			return domain.Deal{}, fmt.Errorf("deal: investment %.2f exceeds cap %.2f: %w",
				investment, m.cfg.MaxInvestment, domain.ErrInvalidTransition)
		}
		if err := m.deals.Approve(ctx, dealID, investment, "approved by operator"); err != nil {
			return domain.Deal{}, fmt.Errorf("deal: approve %s: %w", dealID, err)
		}
		m.emit(ctx, dealID, domain.StatePendingApproval, domain.StateApproved)
		m.logger.InfoContext(ctx, "deal approved",
			slog.String("deal_id", dealID),
			slog.Float64("investment", investment),
		)

	case domain.DecisionReject:
		if err := m.advance(ctx, dealID, domain.StatePendingApproval, domain.StateRejectedManual, "rejected by operator"); err != nil {
			return domain.Deal{}, err
		}
		m.logger.InfoContext(ctx, "deal rejected", slog.String("deal_id", dealID))

	default:
		return domain.Deal{}, fmt.Errorf("deal: unknown decision %q: %w", decision, domain.ErrInvalidTransition)
	}

	out, err := m.deals.GetByID(ctx, dealID)
	if err != nil {
		return domain.Deal{}, fmt.Errorf("deal: reload %s: %w", dealID, err)
	}
	return out, nil
}

// Complete moves an approved deal to its terminal state, releasing the
// active slot. Approved deals cannot be cancelled, only completed.
func (m *Manager) Complete(ctx context.Context, dealID, reason string) (domain.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if reason == "" {
		reason = "completion signal received"
	}
	if err := m.advance(ctx, dealID, domain.StateApproved, domain.StateCompleted, reason); err != nil {
		return domain.Deal{}, err
	}

	out, err := m.deals.GetByID(ctx, dealID)
	if err != nil {
		return domain.Deal{}, fmt.Errorf("deal: reload %s: %w", dealID, err)
	}
	m.logger.InfoContext(ctx, "deal completed", slog.String("deal_id", dealID))
	return out, nil
}

// Active returns the deal currently holding the active slot, or
// domain.ErrNotFound when the slot is free. Read-only; takes no lock.
func (m *Manager) Active(ctx context.Context) (domain.Deal, error) {
	return m.deals.GetActive(ctx)
}

// SlotFree reports whether a new deal could claim the active slot.
func (m *Manager) SlotFree(ctx context.Context) (bool, error) {
	n, err := m.deals.CountNonTerminal(ctx)
	if err != nil {
		return false, fmt.Errorf("deal: count non-terminal: %w", err)
	}
	return n == 0, nil
}

func (m *Manager) advance(ctx context.Context, id string, from, to domain.DealState, reason string) error {
	if err := m.deals.Transition(ctx, id, from, to, reason); err != nil {
		return fmt.Errorf("deal: %s %s -> %s: %w", id, from, to, err)
	}
	m.emit(ctx, id, from, to)
	return nil
}

func (m *Manager) emit(ctx context.Context, id string, from, to domain.DealState) {
	if m.sink == nil {
		return
	}
	d, err := m.deals.GetByID(ctx, id)
	if err != nil {
		return
	}
	m.sink.DealTransition(d, from, to)
}

func (m *Manager) recordSkip(ctx context.Context, score domain.OpportunityScore, reason domain.SkipReason, detail string) {
	if m.skips == nil {
		return
	}
	scoreCopy := score
	skip := domain.SkippedListing{
		ID:         uuid.New().String(),
		Listing:    score.Listing,
		Score:      &scoreCopy,
		Reason:     reason,
		Detail:     detail,
		TotalScore: score.TotalScore,
	}
	if err := m.skips.Record(ctx, skip); err != nil {
		m.logger.WarnContext(ctx, "failed to record skip",
			slog.String("item", score.Listing.Identity.Name),
			slog.String("reason", string(reason)),
			slog.String("error", err.Error()),
		)
	}
}
