package marketplace

import (
	"context"
	"sync"

	"github.com/flipscout/flipscout/internal/domain"
)

// Fake is an in-memory listing source for tests. It returns the
// seeded listings filtered by the requested price range, the way the real
// client's server-side filter would.
type Fake struct {
	mu       sync.Mutex
	listings []domain.Listing
	err      error
	queries  []string
}

// NewFake creates a Fake seeded with the given listings.
func NewFake(listings ...domain.Listing) *Fake {
	return &Fake{listings: listings}
}

// Seed replaces the fake's listings.
func (f *Fake) Seed(listings ...domain.Listing) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listings = listings
}

// FailWith makes subsequent Search calls return err.
func (f *Fake) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Queries returns every query string Search has received.
func (f *Fake) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.queries))
	copy(out, f.queries)
	return out
}

// Search implements domain.ListingSource.
func (f *Fake) Search(ctx context.Context, query string, pr domain.PriceRange, limit int) ([]domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}

	var out []domain.Listing
	for _, l := range f.listings {
		if pr.Min > 0 && l.Price < pr.Min {
			continue
		}
		if pr.Max > 0 && l.Price > pr.Max {
			continue
		}
		out = append(out, l)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

var _ domain.ListingSource = (*Fake)(nil)
