package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flipscout/flipscout/internal/domain"
	"github.com/flipscout/flipscout/internal/grading"
	"github.com/flipscout/flipscout/internal/pipeline"
	"github.com/flipscout/flipscout/internal/pricetruth"
	"github.com/flipscout/flipscout/internal/scoring"
	"github.com/flipscout/flipscout/internal/store/memory"
	"github.com/flipscout/flipscout/internal/vault"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildEvaluator(observations domain.ObservationStore) *pipeline.Evaluator {
	return pipeline.NewEvaluator(
		observations,
		nil,
		pricetruth.NewAggregator(pricetruth.DefaultConfig()),
		grading.NewModel(),
		vault.NewGate(vault.DefaultConfig()),
		scoring.NewScorer(scoring.Config{}),
		7*24*time.Hour,
		discardLogger(),
	)
}

func seedObservations(t *testing.T, store domain.ObservationStore, id domain.Identity, prices ...float64) {
	t.Helper()
	now := time.Now().UTC()
	obs := make([]domain.PriceObservation, len(prices))
	for i, p := range prices {
		obs[i] = domain.PriceObservation{
			SourceID:   "sale",
			Class:      domain.SourceConfirmedSale,
			Price:      p,
			ObservedAt: now.Add(-time.Duration(i) * time.Hour),
		}
	}
	require.NoError(t, store.Record(context.Background(), id, obs))
}

func testListing(condition string, price float64) domain.Listing {
	return domain.Listing{
		Identity:     domain.Identity{Name: "Charizard Base Set Holo", Category: "trading_card"},
		Condition:    condition,
		Price:        price,
		ShippingCost: 5,
		SellerRating: 99.2,
		URL:          "https://example.com/item/1",
		ObservedAt:   time.Now().UTC(),
	}
}

// A marginal item near the safety floor: consensus ~$300 leaves the worst
// grading band at $180, under the $300 custodial floor, so the verdict must
// be unsafe and the score ineligible no matter how good the ask looks.
func TestEvaluateWorstCaseBelowFloorIsIneligible(t *testing.T) {
	rq := require.New(t)
	store := memory.NewObservationStore()
	listing := testListing("heavy crease and torn corner", 120)
	seedObservations(t, store, listing.Identity, 290, 300, 310)

	ev := buildEvaluator(store)
	score, err := ev.Evaluate(context.Background(), listing)
	rq.NoError(err)

	rq.False(score.Safety.Safe)
	rq.False(score.Eligible)
	rq.Zero(score.TotalScore)
	rq.Less(score.Safety.WorstCaseValue, score.Safety.Threshold)
}

// A single price source can never produce a consensus.
func TestEvaluateSingleSourceIsInsufficient(t *testing.T) {
	rq := require.New(t)
	store := memory.NewObservationStore()
	listing := testListing("near mint", 280)
	seedObservations(t, store, listing.Identity, 300)

	ev := buildEvaluator(store)
	_, err := ev.Evaluate(context.Background(), listing)
	rq.ErrorIs(err, domain.ErrInsufficientData)
}

func TestEvaluateHealthyCandidate(t *testing.T) {
	rq := require.New(t)
	store := memory.NewObservationStore()
	listing := testListing("near mint, pack fresh", 280)
	seedObservations(t, store, listing.Identity, 590, 600, 610)

	ev := buildEvaluator(store)
	score, err := ev.Evaluate(context.Background(), listing)
	rq.NoError(err)

	rq.True(score.Safety.Safe)
	rq.True(score.Eligible)
	rq.Greater(score.TotalScore, 0.0)
	rq.Greater(score.ProfitPotential, 0.0)
	rq.InDelta(600, score.Consensus.Price, 20)
}

func TestEvaluateAllCountsInsufficientData(t *testing.T) {
	rq := require.New(t)
	store := memory.NewObservationStore()

	known := testListing("near mint, pack fresh", 280)
	seedObservations(t, store, known.Identity, 590, 600, 610)

	unknown := testListing("near mint", 150)
	unknown.Identity = domain.Identity{Name: "Obscure Promo", Category: "trading_card"}

	ev := buildEvaluator(store)
	scores, noData, err := ev.EvaluateAll(context.Background(), []domain.Listing{known, unknown}, 2)
	rq.NoError(err)
	rq.Len(scores, 1)
	rq.Equal(1, noData)
}
