// Package memory provides in-process implementations of the domain store
// interfaces, used as the store fixtures for lifecycle and pipeline tests.
// Semantics mirror the postgres package: the single-active-deal
// invariant, audit-before-flip ordering, and per-deal sequence numbers are all
// enforced here too.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flipscout/flipscout/internal/domain"
)

// DealStore is an in-memory domain.DealStore with its audit log attached.
type DealStore struct {
	mu     sync.Mutex
	deals  map[string]domain.Deal
	audit  map[string][]domain.AuditLogEntry
	serial []string // deal IDs in creation order
}

// NewDealStore creates an empty DealStore.
func NewDealStore() *DealStore {
	return &DealStore{
		deals: make(map[string]domain.Deal),
		audit: make(map[string][]domain.AuditLogEntry),
	}
}

// Create inserts a deal in StateFound, appending the creating audit entry
// before the deal becomes visible. Returns domain.ErrConflict when another
// deal holds the active slot.
func (s *DealStore) Create(ctx context.Context, deal domain.Deal, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.deals[deal.ID]; ok {
		return domain.ErrAlreadyExists
	}
	for _, d := range s.deals {
		if d.State.Active() {
			return domain.ErrConflict
		}
	}

	now := time.Now().UTC()
	deal.State = domain.StateFound
	deal.CreatedAt = now
	deal.UpdatedAt = now

	// Audit first, then flip: the entry exists before the deal is readable.
	s.audit[deal.ID] = append(s.audit[deal.ID], domain.AuditLogEntry{
		DealID:     deal.ID,
		SequenceNo: 1,
		OldState:   "",
		NewState:   domain.StateFound,
		Reason:     reason,
		CreatedAt:  now,
	})
	s.deals[deal.ID] = deal
	s.serial = append(s.serial, deal.ID)
	return nil
}

// Transition atomically moves a deal between states with an audit entry.
func (s *DealStore) Transition(ctx context.Context, id string, from, to domain.DealState, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(id, from, to, reason, nil)
}

// Approve moves a pending deal to StateApproved and records the investment.
func (s *DealStore) Approve(ctx context.Context, id string, investment float64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(id, domain.StatePendingApproval, domain.StateApproved, reason, func(d *domain.Deal) {
		d.InvestmentAmount = investment
		now := d.UpdatedAt
		d.ApprovedAt = &now
	})
}

func (s *DealStore) transitionLocked(id string, from, to domain.DealState, reason string, mutate func(*domain.Deal)) error {
	d, ok := s.deals[id]
	if !ok {
		return domain.ErrNotFound
	}
	if d.State != from || !from.CanTransitionTo(to) {
		return domain.ErrInvalidTransition
	}

	now := time.Now().UTC()
	entries := s.audit[id]
	s.audit[id] = append(entries, domain.AuditLogEntry{
		DealID:     id,
		SequenceNo: int64(len(entries)) + 1,
		OldState:   from,
		NewState:   to,
		Reason:     reason,
		CreatedAt:  now,
	})

	d.State = to
	d.UpdatedAt = now
	if to == domain.StateCompleted {
		d.CompletedAt = &now
	}
	if mutate != nil {
		mutate(&d)
	}
	s.deals[id] = d
	return nil
}

// GetByID returns a deal by ID.
func (s *DealStore) GetByID(ctx context.Context, id string) (domain.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deals[id]
	if !ok {
		return domain.Deal{}, domain.ErrNotFound
	}
	return d, nil
}

// GetActive returns the deal holding the active slot, or domain.ErrNotFound.
func (s *DealStore) GetActive(ctx context.Context) (domain.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.deals {
		if d.State.Active() {
			return d, nil
		}
	}
	return domain.Deal{}, domain.ErrNotFound
}

// CountNonTerminal counts deals in non-terminal states.
func (s *DealStore) CountNonTerminal(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, d := range s.deals {
		if !d.State.Terminal() {
			n++
		}
	}
	return n, nil
}

// List returns deals in creation order, filtered by opts.
func (s *DealStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Deal
	for _, id := range s.serial {
		d := s.deals[id]
		if len(opts.States) > 0 && !containsState(opts.States, d.State) {
			continue
		}
		if opts.Since != nil && d.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && d.CreatedAt.After(*opts.Until) {
			continue
		}
		out = append(out, d)
	}
	out = paginate(out, opts)
	return out, nil
}

// ListByDeal returns a deal's audit entries in sequence order.
func (s *DealStore) ListByDeal(ctx context.Context, dealID string) ([]domain.AuditLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.audit[dealID]
	out := make([]domain.AuditLogEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// List returns audit entries across all deals, newest first.
func (s *DealStore) ListAudit(ctx context.Context, opts domain.ListOpts) ([]domain.AuditLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.AuditLogEntry
	for _, entries := range s.audit {
		out = append(out, entries...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	out = paginate(out, opts)
	return out, nil
}

// Audit exposes the store as a domain.AuditStore.
func (s *DealStore) Audit() domain.AuditStore {
	return auditView{s}
}

type auditView struct{ s *DealStore }

func (v auditView) ListByDeal(ctx context.Context, dealID string) ([]domain.AuditLogEntry, error) {
	return v.s.ListByDeal(ctx, dealID)
}

func (v auditView) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditLogEntry, error) {
	return v.s.ListAudit(ctx, opts)
}

func containsState(states []domain.DealState, st domain.DealState) bool {
	for _, s := range states {
		if s == st {
			return true
		}
	}
	return false
}

func paginate[T any](in []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(in) {
			return nil
		}
		in = in[opts.Offset:]
	}
	if opts.Limit > 0 && len(in) > opts.Limit {
		in = in[:opts.Limit]
	}
	return in
}

// Compile-time interface checks.
var (
	_ domain.DealStore  = (*DealStore)(nil)
	_ domain.AuditStore = auditView{}
)
