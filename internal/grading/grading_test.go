package grading_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flipscout/flipscout/internal/domain"
	"github.com/flipscout/flipscout/internal/grading"
)

func TestAnalyzeConditionPositiveLanguage(t *testing.T) {
	rq := require.New(t)

	a := grading.AnalyzeCondition("Charizard VMAX near mint, pack fresh")
	rq.InDelta(0.85, a.Signal, 1e-9)
	rq.False(a.Adverse)

	a = grading.AnalyzeCondition("near mint card")
	rq.InDelta(0.70, a.Signal, 1e-9)

	a = grading.AnalyzeCondition("vintage base set card")
	rq.InDelta(0.50, a.Signal, 1e-9)
}

func TestAnalyzeConditionNegativeDominates(t *testing.T) {
	rq := require.New(t)

	// Heavy damage caps low even with glowing positive language around it.
	a := grading.AnalyzeCondition("gem mint pack fresh beauty, slight crease on corner")
	rq.True(a.Adverse)
	rq.LessOrEqual(a.Signal, 0.25)

	a = grading.AnalyzeCondition("near mint, light whitening on back")
	rq.True(a.Adverse)
	rq.LessOrEqual(a.Signal, 0.45)

	a = grading.AnalyzeCondition("mint condition, minor wear only")
	rq.True(a.Adverse)
	rq.LessOrEqual(a.Signal, 0.60)
}

func TestAnalyzeConditionPositivePhraseNotMisreadAsDamage(t *testing.T) {
	rq := require.New(t)

	// "played" must not match inside the strong-positive "never played".
	a := grading.AnalyzeCondition("never played, straight into a sleeve")
	rq.False(a.Adverse)
	rq.InDelta(0.85, a.Signal, 1e-9)
	rq.NotContains(a.Matched, "played")

	// Genuine damage language outside the phrase still dominates.
	a = grading.AnalyzeCondition("never played but has edge wear")
	rq.True(a.Adverse)
	rq.LessOrEqual(a.Signal, 0.45)

	// Standalone "played" still registers as wear.
	a = grading.AnalyzeCondition("played copy, decent shape")
	rq.True(a.Adverse)
	rq.LessOrEqual(a.Signal, 0.45)
}

func TestAnalyzeConditionSignalBounds(t *testing.T) {
	rq := require.New(t)
	for _, text := range []string{
		"", "pack fresh gem mint sealed never played",
		"torn creased water damage", "played with scratches",
	} {
		a := grading.AnalyzeCondition(text)
		rq.GreaterOrEqual(a.Signal, 0.0, "text %q", text)
		rq.LessOrEqual(a.Signal, 0.95, "text %q", text)
	}
}

func TestPredictOutcomesProbabilitiesSumToOne(t *testing.T) {
	rq := require.New(t)
	model := grading.NewModel()
	consensus := domain.PriceConsensus{Price: 300}

	for _, signal := range []float64{0, 0.25, 0.5, 0.7, 0.85, 1.0} {
		dist := model.PredictOutcomes(consensus, signal)
		var sum float64
		for _, b := range dist.Bands {
			sum += b.Probability
		}
		rq.InDelta(1.0, sum, 1e-6, "signal %.2f", signal)
	}
}

func TestPredictOutcomesWorstBandNeverZero(t *testing.T) {
	rq := require.New(t)
	model := grading.NewModel()
	consensus := domain.PriceConsensus{Price: 300}

	// Even a maximally favorable signal keeps the worst band alive.
	dist := model.PredictOutcomes(consensus, 1.0)
	rq.Positive(dist.WorstBand().Probability)
}

func TestPredictOutcomesMultipliersMonotone(t *testing.T) {
	rq := require.New(t)
	model := grading.NewModel()
	dist := model.PredictOutcomes(domain.PriceConsensus{Price: 300}, 0.5)

	for i := 1; i < len(dist.Bands); i++ {
		rq.Greater(dist.Bands[i-1].Multiplier, dist.Bands[i].Multiplier)
	}
	// The lowest bands are worth less than the raw price.
	rq.Less(dist.WorstBand().Multiplier, 1.0)
}

func TestPredictOutcomesShiftsWithSignal(t *testing.T) {
	rq := require.New(t)
	model := grading.NewModel()
	consensus := domain.PriceConsensus{Price: 300}

	good := model.PredictOutcomes(consensus, 0.85)
	bad := model.PredictOutcomes(consensus, 0.20)

	rq.Greater(good.ExpectedValue(300), bad.ExpectedValue(300))
	rq.Greater(good.Bands[0].Probability, bad.Bands[0].Probability)
	rq.Less(good.WorstBand().Probability, bad.WorstBand().Probability)
}

func TestExpectedAndWorstCaseValues(t *testing.T) {
	rq := require.New(t)
	model := grading.NewModel()
	consensus := domain.PriceConsensus{Price: 300}

	dist := model.PredictOutcomes(consensus, 0.85)
	ev := dist.ExpectedValue(consensus.Price)
	wc := dist.WorstCaseValue(consensus.Price)

	rq.Positive(ev)
	rq.Greater(ev, wc)
	// Worst case uses the played_6 multiplier of 0.6.
	rq.InDelta(180.0, wc, 1e-9)
}
