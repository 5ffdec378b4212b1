// Package pipeline runs the scan/evaluate/submit loop: marketplace search,
// per-listing evaluation through the four pricing stages, candidate selection,
// and deal submission, coordinated by an orchestrator on a ticker.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flipscout/flipscout/internal/domain"
	"github.com/flipscout/flipscout/internal/grading"
	"github.com/flipscout/flipscout/internal/pricetruth"
	"github.com/flipscout/flipscout/internal/scoring"
	"github.com/flipscout/flipscout/internal/vault"
)

// Evaluator runs one listing through the full evaluation pipeline: consensus
// pricing, grading-outcome prediction, the vault safety gate, and opportunity
// scoring. It is stateless apart from its stores and safe for concurrent use.
type Evaluator struct {
	observations domain.ObservationStore
	cache        domain.ConsensusCache
	aggregator   *pricetruth.Aggregator
	model        *grading.Model
	gate         *vault.Gate
	scorer       *scoring.Scorer
	trendWindow  time.Duration
	logger       *slog.Logger
}

// NewEvaluator wires the four pipeline stages together. The cache may be nil;
// a non-positive trendWindow defaults to 7 days.
func NewEvaluator(
	observations domain.ObservationStore,
	cache domain.ConsensusCache,
	aggregator *pricetruth.Aggregator,
	model *grading.Model,
	gate *vault.Gate,
	scorer *scoring.Scorer,
	trendWindow time.Duration,
	logger *slog.Logger,
) *Evaluator {
	if trendWindow <= 0 {
		trendWindow = 7 * 24 * time.Hour
	}
	return &Evaluator{
		observations: observations,
		cache:        cache,
		aggregator:   aggregator,
		model:        model,
		gate:         gate,
		scorer:       scorer,
		trendWindow:  trendWindow,
		logger:       logger.With(slog.String("component", "evaluator")),
	}
}

// Evaluate scores one listing. It returns domain.ErrInsufficientData when the
// price history cannot support a consensus; in that case no deal may be
// created from the listing. The returned score carries the safety verdict:
// an Unsafe verdict yields an ineligible zero score, not an error.
func (e *Evaluator) Evaluate(ctx context.Context, listing domain.Listing) (domain.OpportunityScore, error) {
	obs, err := e.observations.GetObservations(ctx, listing.Identity)
	if err != nil {
		return domain.OpportunityScore{}, fmt.Errorf("pipeline: observations for %s: %w", listing.Identity.Key(), err)
	}

	consensus, err := e.aggregator.Aggregate(listing.Identity, obs)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientData) {
			e.logger.DebugContext(ctx, "insufficient price history",
				slog.String("item", listing.Identity.Name),
				slog.Int("observations", len(obs)),
			)
		}
		return domain.OpportunityScore{}, err
	}

	// The cache is advisory: record failures are logged and never block
	// evaluation.
	if e.cache != nil {
		if err := e.cache.RecordConsensus(ctx, listing.Identity, consensus); err != nil {
			e.logger.WarnContext(ctx, "consensus cache write failed",
				slog.String("item", listing.Identity.Name),
				slog.String("error", err.Error()),
			)
		}
	}

	condition := grading.AnalyzeCondition(listing.Condition)
	outcomes := e.model.PredictOutcomes(consensus, condition.Signal)

	verdict := e.gate.Check(outcomes.WorstCaseValue(consensus.Price), listing.TotalCost())
	trend := pricetruth.TrendScore(obs, time.Now().UTC(), e.trendWindow)

	score := e.scorer.Score(scoring.Inputs{
		Listing:         listing,
		Consensus:       consensus,
		Outcomes:        outcomes,
		Safety:          verdict,
		ConditionSignal: condition.Signal,
		Adverse:         condition.Adverse,
		TrendScore:      trend,
	})

	e.logger.DebugContext(ctx, "listing evaluated",
		slog.String("item", listing.Identity.Name),
		slog.Float64("consensus", consensus.Price),
		slog.Float64("score", score.TotalScore),
		slog.Bool("safe", verdict.Safe),
		slog.Bool("eligible", score.Eligible),
	)
	return score, nil
}

// EvaluateAll fans listings out across workers and collects the scores that
// evaluated cleanly. Listings with insufficient price history are counted and
// dropped; any other error aborts the batch.
func (e *Evaluator) EvaluateAll(ctx context.Context, listings []domain.Listing, workers int) ([]domain.OpportunityScore, int, error) {
	if workers <= 0 {
		workers = 4
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	scores := make([]*domain.OpportunityScore, len(listings))
	insufficient := make([]bool, len(listings))

	for i, listing := range listings {
		g.Go(func() error {
			score, err := e.Evaluate(ctx, listing)
			if err != nil {
				if errors.Is(err, domain.ErrInsufficientData) {
					insufficient[i] = true
					return nil
				}
				return err
			}
			scores[i] = &score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	out := make([]domain.OpportunityScore, 0, len(listings))
	var skipped int
	for i := range listings {
		if insufficient[i] {
			skipped++
			continue
		}
		if scores[i] != nil {
			out = append(out, *scores[i])
		}
	}
	return out, skipped, nil
}
