package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flipscout/flipscout/internal/domain"
)

// SkipStore is an in-memory domain.SkipStore.
type SkipStore struct {
	mu    sync.Mutex
	skips map[string]domain.SkippedListing
	order []string
}

// NewSkipStore creates an empty SkipStore.
func NewSkipStore() *SkipStore {
	return &SkipStore{skips: make(map[string]domain.SkippedListing)}
}

// Record stores a skipped candidate.
func (s *SkipStore) Record(ctx context.Context, skip domain.SkippedListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.skips[skip.ID]; ok {
		return domain.ErrAlreadyExists
	}
	if skip.CreatedAt.IsZero() {
		skip.CreatedAt = time.Now().UTC()
	}
	s.skips[skip.ID] = skip
	s.order = append(s.order, skip.ID)
	return nil
}

// ListResurfaceable returns conflict skips that have not resurfaced yet,
// best score first.
func (s *SkipStore) ListResurfaceable(ctx context.Context, limit int) ([]domain.SkippedListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.SkippedListing
	for _, id := range s.order {
		sk := s.skips[id]
		if sk.ResurfacedAt == nil && sk.Reason == domain.SkipConflict {
			out = append(out, sk)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalScore > out[j].TotalScore })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkResurfaced stamps a skip as re-evaluated so it is not picked up again.
func (s *SkipStore) MarkResurfaced(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sk, ok := s.skips[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	sk.ResurfacedAt = &now
	s.skips[id] = sk
	return nil
}

// List returns skips in recording order.
func (s *SkipStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.SkippedListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.SkippedListing
	for _, id := range s.order {
		out = append(out, s.skips[id])
	}
	out = paginate(out, opts)
	return out, nil
}

// ObservationStore is an in-memory domain.ObservationStore keyed by identity.
type ObservationStore struct {
	mu  sync.Mutex
	obs map[string][]domain.PriceObservation
}

// NewObservationStore creates an empty ObservationStore.
func NewObservationStore() *ObservationStore {
	return &ObservationStore{obs: make(map[string][]domain.PriceObservation)}
}

// GetObservations returns the recorded observations for an identity.
func (s *ObservationStore) GetObservations(ctx context.Context, id domain.Identity) ([]domain.PriceObservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.obs[id.Key()]
	out := make([]domain.PriceObservation, len(stored))
	copy(out, stored)
	return out, nil
}

// Record appends observations for an identity.
func (s *ObservationStore) Record(ctx context.Context, id domain.Identity, obs []domain.PriceObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obs[id.Key()] = append(s.obs[id.Key()], obs...)
	return nil
}

// Compile-time interface checks.
var (
	_ domain.SkipStore        = (*SkipStore)(nil)
	_ domain.ObservationStore = (*ObservationStore)(nil)
)
