package domain

import (
	"context"
	"io"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
	States []DealState // deal lists only; empty means all states
}

// DealStore persists deals and their audit trail. Implementations must
// guarantee two invariants: at most one deal is in a non-terminal state at any
// time (Create returns ErrConflict otherwise), and every state change appends
// exactly one audit entry before the new state becomes visible to readers.
type DealStore interface {
	// Create inserts a new deal in StateFound together with its creating
	// audit entry. Returns ErrConflict if another deal holds the active slot.
	Create(ctx context.Context, deal Deal, reason string) error

	// Transition atomically moves a deal from one state to another,
	// appending the audit entry first. Returns ErrNotFound for an unknown
	// deal, ErrInvalidTransition when the deal is not in from or the edge is
	// not legal.
	Transition(ctx context.Context, id string, from, to DealState, reason string) error

	// Approve moves a pending deal to StateApproved and records the
	// committed investment amount in the same atomic step.
	Approve(ctx context.Context, id string, investment float64, reason string) error

	GetByID(ctx context.Context, id string) (Deal, error)

	// GetActive returns the deal currently holding the active slot, or
	// ErrNotFound when the slot is free.
	GetActive(ctx context.Context) (Deal, error)

	// CountNonTerminal exposes the single-active-deal invariant as a
	// queryable value; it must never exceed 1.
	CountNonTerminal(ctx context.Context) (int64, error)

	List(ctx context.Context, opts ListOpts) ([]Deal, error)
}

// AuditStore reads the append-only deal audit log. Writing happens only
// through DealStore transitions.
type AuditStore interface {
	// ListByDeal returns a deal's entries in ascending sequence order.
	ListByDeal(ctx context.Context, dealID string) ([]AuditLogEntry, error)
	List(ctx context.Context, opts ListOpts) ([]AuditLogEntry, error)
}

// SkipStore records candidates that were evaluated but not committed.
type SkipStore interface {
	Record(ctx context.Context, skip SkippedListing) error

	// ListResurfaceable returns skips that have not resurfaced yet, best
	// score first, limited to limit entries.
	ListResurfaceable(ctx context.Context, limit int) ([]SkippedListing, error)

	MarkResurfaced(ctx context.Context, id string) error
	List(ctx context.Context, opts ListOpts) ([]SkippedListing, error)
}

// ObservationStore is the persistent price history store.
type ObservationStore interface {
	GetObservations(ctx context.Context, id Identity) ([]PriceObservation, error)
	Record(ctx context.Context, id Identity, obs []PriceObservation) error
}

// ConsensusCache is an advisory cache for computed consensus prices. Cache
// failures are logged, never fatal: staleness is the cache's problem, not the
// aggregator's.
type ConsensusCache interface {
	RecordConsensus(ctx context.Context, id Identity, c PriceConsensus) error
	// GetConsensus returns ErrNotFound on a cache miss.
	GetConsensus(ctx context.Context, id Identity) (PriceConsensus, error)
}

// ListingSource is the marketplace search client. Results are untrusted;
// callers discard entries that fail Listing.Valid without surfacing an error.
type ListingSource interface {
	Search(ctx context.Context, query string, pr PriceRange, limit int) ([]Listing, error)
}

// LockManager provides distributed mutual exclusion for the scan cycle, so
// only one scanner instance evaluates the market at a time.
type LockManager interface {
	// Acquire returns an unlock function on success and ErrLockHeld when
	// another party holds the lock.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// BlobWriter uploads cold-storage artifacts such as scan-cycle reports and
// completed-deal audit exports.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobInfo describes a stored blob.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobReader reads back cold-storage artifacts.
type BlobReader interface {
	// Get returns ErrNotFound when no object exists at path. The caller
	// closes the returned reader.
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// RateLimiter bounds request rates per key using a sliding window.
type RateLimiter interface {
	// Allow reports whether one more request fits in the window, counting it
	// when it does.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
