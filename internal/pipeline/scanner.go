package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flipscout/flipscout/internal/domain"
)

// ScannerConfig controls marketplace search behaviour.
type ScannerConfig struct {
	Queries    []string
	PriceRange domain.PriceRange
	PageSize   int
}

// Scanner pulls candidate listings from the marketplace and records their
// asking prices as live-ask observations so they feed future consensus
// computations.
type Scanner struct {
	source       domain.ListingSource
	observations domain.ObservationStore
	cfg          ScannerConfig
	logger       *slog.Logger
}

// NewScanner creates a Scanner. A non-positive page size defaults to 50.
func NewScanner(source domain.ListingSource, observations domain.ObservationStore, cfg ScannerConfig, logger *slog.Logger) *Scanner {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	return &Scanner{
		source:       source,
		observations: observations,
		cfg:          cfg,
		logger:       logger.With(slog.String("component", "scanner")),
	}
}

// Scan runs every configured query and returns the valid listings found.
// Malformed listings are dropped silently; the count of discards is returned
// for cycle reporting. A failing query logs and moves on so one bad search
// does not starve the rest.
func (s *Scanner) Scan(ctx context.Context) (listings []domain.Listing, discarded int, err error) {
	for _, query := range s.cfg.Queries {
		found, searchErr := s.source.Search(ctx, query, s.cfg.PriceRange, s.cfg.PageSize)
		if searchErr != nil {
			if ctx.Err() != nil {
				return nil, discarded, fmt.Errorf("pipeline: scan: %w", ctx.Err())
			}
			s.logger.WarnContext(ctx, "search failed",
				slog.String("query", query),
				slog.String("error", searchErr.Error()),
			)
			continue
		}

		for _, l := range found {
			if !l.Valid() {
				discarded++
				continue
			}
			listings = append(listings, l)
			s.recordAsk(ctx, l)
		}

		s.logger.InfoContext(ctx, "query scanned",
			slog.String("query", query),
			slog.Int("found", len(found)),
		)
	}
	return listings, discarded, nil
}

// recordAsk stores the listing's asking price as a live-ask observation.
// History writes are best-effort; a failure costs future consensus quality,
// not this cycle.
func (s *Scanner) recordAsk(ctx context.Context, l domain.Listing) {
	obs := domain.PriceObservation{
		SourceID:   l.URL,
		Class:      domain.SourceLiveAsk,
		Price:      l.Price,
		ObservedAt: l.ObservedAt,
	}
	if err := s.observations.Record(ctx, l.Identity, []domain.PriceObservation{obs}); err != nil {
		s.logger.WarnContext(ctx, "observation record failed",
			slog.String("item", l.Identity.Name),
			slog.String("error", err.Error()),
		)
	}
}
