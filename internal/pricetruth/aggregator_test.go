package pricetruth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flipscout/flipscout/internal/domain"
	"github.com/flipscout/flipscout/internal/pricetruth"
)

var testIdentity = domain.Identity{Name: "Charizard VMAX", Category: "pokemon"}

func obs(class domain.SourceClass, prices ...float64) []domain.PriceObservation {
	out := make([]domain.PriceObservation, 0, len(prices))
	for i, p := range prices {
		out = append(out, domain.PriceObservation{
			SourceID:   "src",
			Class:      class,
			Price:      p,
			ObservedAt: time.Date(2025, 6, 1, 0, i, 0, 0, time.UTC),
		})
	}
	return out
}

func TestAggregateInsufficientData(t *testing.T) {
	rq := require.New(t)
	agg := pricetruth.NewAggregator(pricetruth.DefaultConfig())

	_, err := agg.Aggregate(testIdentity, nil)
	rq.ErrorIs(err, domain.ErrInsufficientData)

	_, err = agg.Aggregate(testIdentity, obs(domain.SourceLiveAsk, 600))
	rq.ErrorIs(err, domain.ErrInsufficientData)

	// Non-positive prices are excluded individually, which can push the set
	// below the minimum.
	_, err = agg.Aggregate(testIdentity, obs(domain.SourceLiveAsk, 600, -5, 0))
	rq.ErrorIs(err, domain.ErrInsufficientData)
}

func TestAggregateConsensusWithinRange(t *testing.T) {
	rq := require.New(t)
	agg := pricetruth.NewAggregator(pricetruth.DefaultConfig())

	c, err := agg.Aggregate(testIdentity, obs(domain.SourceConfirmedSale, 280, 300, 320))
	rq.NoError(err)
	rq.Equal(300.0, c.Price)
	rq.Equal(3, c.SourcesUsed)
	rq.Zero(c.OutliersRemoved)
	rq.GreaterOrEqual(c.Confidence, 0.0)
	rq.LessOrEqual(c.Confidence, 0.95)
	rq.GreaterOrEqual(c.Price, 280.0)
	rq.LessOrEqual(c.Price, 320.0)
}

func TestAggregateRemovesOutliers(t *testing.T) {
	rq := require.New(t)
	agg := pricetruth.NewAggregator(pricetruth.DefaultConfig())

	points := obs(domain.SourceConfirmedSale, 290, 295, 300, 305, 310, 2500)
	c, err := agg.Aggregate(testIdentity, points)
	rq.NoError(err)
	rq.Equal(1, c.OutliersRemoved)
	rq.Equal(5, c.SourcesUsed)
	rq.GreaterOrEqual(c.Price, 290.0)
	rq.LessOrEqual(c.Price, 310.0)
}

func TestAggregateWeightedMedianPrefersConfirmedSales(t *testing.T) {
	rq := require.New(t)
	agg := pricetruth.NewAggregator(pricetruth.DefaultConfig())

	points := []domain.PriceObservation{
		{SourceID: "sold-log", Class: domain.SourceConfirmedSale, Price: 250, ObservedAt: time.Now()},
		{SourceID: "sold-log", Class: domain.SourceConfirmedSale, Price: 260, ObservedAt: time.Now()},
		{SourceID: "asks", Class: domain.SourceLiveAsk, Price: 340, ObservedAt: time.Now()},
		{SourceID: "cache", Class: domain.SourceCachedEstimate, Price: 400, ObservedAt: time.Now()},
	}
	c, err := agg.Aggregate(testIdentity, points)
	rq.NoError(err)
	// Confirmed sales carry weight 3.0 each; their cumulative weight crosses
	// half the total before the live ask does.
	rq.Equal(260.0, c.Price)
}

func TestAggregateConfidenceRisesWithSources(t *testing.T) {
	rq := require.New(t)
	agg := pricetruth.NewAggregator(pricetruth.DefaultConfig())

	small, err := agg.Aggregate(testIdentity, obs(domain.SourceLiveAsk, 300, 302))
	rq.NoError(err)
	large, err := agg.Aggregate(testIdentity, obs(domain.SourceLiveAsk, 298, 299, 300, 301, 302))
	rq.NoError(err)
	rq.Greater(large.Confidence, small.Confidence)
}

func TestAggregateConfidenceFallsWithVariance(t *testing.T) {
	rq := require.New(t)
	agg := pricetruth.NewAggregator(pricetruth.DefaultConfig())

	tight, err := agg.Aggregate(testIdentity, obs(domain.SourceLiveAsk, 299, 300, 301))
	rq.NoError(err)
	loose, err := agg.Aggregate(testIdentity, obs(domain.SourceLiveAsk, 240, 300, 360))
	rq.NoError(err)
	rq.Less(loose.Confidence, tight.Confidence)
}

func TestAggregateConfidenceNeverCertain(t *testing.T) {
	rq := require.New(t)
	agg := pricetruth.NewAggregator(pricetruth.DefaultConfig())

	// Many identical confirmed sales: the most favorable possible input.
	points := obs(domain.SourceConfirmedSale, 300, 300, 300, 300, 300, 300, 300, 300)
	c, err := agg.Aggregate(testIdentity, points)
	rq.NoError(err)
	rq.LessOrEqual(c.Confidence, 0.95)
	rq.Less(c.Confidence, 1.0)
}

func TestAggregateFallsBackWhenFenceRemovesEverything(t *testing.T) {
	rq := require.New(t)
	// An aggressive fence cannot yield an empty consensus.
	agg := pricetruth.NewAggregator(pricetruth.Config{IQRMultiplier: 0.0001})

	c, err := agg.Aggregate(testIdentity, obs(domain.SourceLiveAsk, 100, 200, 300, 400))
	rq.NoError(err)
	rq.Positive(c.Price)
	rq.Positive(c.SourcesUsed)
}

func TestTrendScore(t *testing.T) {
	rq := require.New(t)
	now := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	window := 30 * 24 * time.Hour

	mk := func(daysAgo int, price float64) domain.PriceObservation {
		return domain.PriceObservation{
			Class:      domain.SourceConfirmedSale,
			Price:      price,
			ObservedAt: now.Add(-time.Duration(daysAgo) * 24 * time.Hour),
		}
	}

	// Not enough history: neutral.
	rq.Equal(50.0, pricetruth.TrendScore([]domain.PriceObservation{mk(1, 300)}, now, window))

	rising := []domain.PriceObservation{
		mk(45, 250), mk(40, 250), mk(10, 300), mk(5, 300),
	}
	rq.Greater(pricetruth.TrendScore(rising, now, window), 50.0)

	falling := []domain.PriceObservation{
		mk(45, 300), mk(40, 300), mk(10, 250), mk(5, 250),
	}
	rq.Less(pricetruth.TrendScore(falling, now, window), 50.0)
}
