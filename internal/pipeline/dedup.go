package pipeline

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/flipscout/flipscout/internal/domain"
)

// Dedup suppresses re-evaluation of listings already scored recently. A
// listing counts as unchanged while its URL and asking price stay the same;
// a price drop produces a new key and goes straight back through the
// pipeline. Safe for concurrent use.
type Dedup struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
}

// NewDedup creates a Dedup that treats a listing as already handled when an
// identical snapshot was seen within ttl.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// Seen reports whether an identical listing snapshot was handled within the
// TTL window. Unseen (or expired) snapshots are recorded and reported false.
func (d *Dedup) Seen(l domain.Listing) bool {
	key := listingKey(l)

	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if last, ok := d.seen[key]; ok && now.Sub(last) < d.ttl {
		return true
	}
	d.seen[key] = now
	return false
}

// Forget drops the record for a listing so its next appearance is evaluated
// again regardless of the TTL. Used when a parked candidate resurfaces.
func (d *Dedup) Forget(l domain.Listing) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, listingKey(l))
}

// Cleanup removes expired entries. Called once per scan cycle to keep the
// map from growing without bound.
func (d *Dedup) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for key, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, key)
		}
	}
}

func listingKey(l domain.Listing) string {
	base := strings.ToLower(strings.TrimSpace(l.URL))
	if base == "" {
		base = l.Identity.Key()
	}
	return fmt.Sprintf("%s|%.2f", base, l.Price)
}
