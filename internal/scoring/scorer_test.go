package scoring_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flipscout/flipscout/internal/domain"
	"github.com/flipscout/flipscout/internal/grading"
	"github.com/flipscout/flipscout/internal/scoring"
	"github.com/flipscout/flipscout/internal/vault"
)

func scoringInputs(t *testing.T) scoring.Inputs {
	t.Helper()

	listing := domain.Listing{
		Identity:     domain.Identity{Name: "Charizard VMAX", Category: "pokemon"},
		Condition:    "near mint, pack fresh",
		Price:        280,
		ShippingCost: 5,
		SellerRating: 99.2,
		URL:          "https://market.example/listing/1",
		ObservedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	// Consensus well above ask: a strong arbitrage candidate whose worst-case
	// graded value still clears the vault threshold.
	consensus := domain.PriceConsensus{
		Identity:    listing.Identity,
		Price:       600,
		Confidence:  0.8,
		SourcesUsed: 3,
	}
	assessment := grading.AnalyzeCondition(listing.Condition)
	outcomes := grading.NewModel().PredictOutcomes(consensus, assessment.Signal)
	gate := vault.NewGate(vault.DefaultConfig())
	verdict := gate.Check(outcomes.WorstCaseValue(consensus.Price), listing.TotalCost())

	return scoring.Inputs{
		Listing:         listing,
		Consensus:       consensus,
		Outcomes:        outcomes,
		Safety:          verdict,
		ConditionSignal: assessment.Signal,
		Adverse:         assessment.Adverse,
		TrendScore:      50,
	}
}

func TestWeightsSumToOne(t *testing.T) {
	require.InDelta(t, 1.0, scoring.DefaultWeights().Sum(), 1e-9)
}

func TestScoreUnsafeVerdictIsAbsolute(t *testing.T) {
	rq := require.New(t)
	scorer := scoring.NewScorer(scoring.DefaultConfig())

	in := scoringInputs(t)
	in.Safety = domain.SafetyVerdict{Safe: false, WorstCaseValue: 120, Threshold: 300, Margin: -180}

	score := scorer.Score(in)
	rq.Zero(score.TotalScore)
	rq.False(score.Eligible)
	rq.Zero(score.ProfitPotential)
}

func TestScoreSubScoresWithinRange(t *testing.T) {
	rq := require.New(t)
	scorer := scoring.NewScorer(scoring.DefaultConfig())

	score := scorer.Score(scoringInputs(t))
	rq.True(score.Eligible)
	for name, v := range map[string]float64{
		"total":     score.TotalScore,
		"profit":    score.ProfitScore,
		"return":    score.ReturnRatioScore,
		"trust":     score.TrustScore,
		"condition": score.ConditionScore,
		"trend":     score.TrendScore,
		"risk":      score.RiskScore,
	} {
		rq.GreaterOrEqual(v, 0.0, name)
		rq.LessOrEqual(v, 100.0, name)
	}
}

func TestScoreDeterministic(t *testing.T) {
	rq := require.New(t)
	scorer := scoring.NewScorer(scoring.DefaultConfig())

	in := scoringInputs(t)
	first := scorer.Score(in)
	for i := 0; i < 10; i++ {
		rq.Equal(first, scorer.Score(in))
	}
}

func TestScoreRiskFlags(t *testing.T) {
	rq := require.New(t)
	scorer := scoring.NewScorer(scoring.DefaultConfig())

	in := scoringInputs(t)
	in.Listing.SellerRating = 94 // below trust threshold
	in.Adverse = true

	score := scorer.Score(in)
	rq.Contains(score.RiskFlags, domain.RiskLowTrust)
	rq.Contains(score.RiskFlags, domain.RiskAdverseCondition)
	rq.Equal(50.0, score.TrustScore)
	rq.Less(score.RiskScore, 100.0)
}

func TestScoreThinMarginFlag(t *testing.T) {
	rq := require.New(t)
	scorer := scoring.NewScorer(scoring.DefaultConfig())

	in := scoringInputs(t)
	in.Safety.Margin = 10 // under the buffer

	score := scorer.Score(in)
	rq.Contains(score.RiskFlags, domain.RiskThinSafetyMargin)
}

func TestScoreTieBreaking(t *testing.T) {
	rq := require.New(t)

	a := domain.OpportunityScore{TotalScore: 80, ProfitScore: 70, TrustScore: 90}
	b := domain.OpportunityScore{TotalScore: 80, ProfitScore: 60, TrustScore: 99}
	rq.True(a.Better(b))
	rq.False(b.Better(a))

	c := domain.OpportunityScore{TotalScore: 80, ProfitScore: 70, TrustScore: 95}
	rq.True(c.Better(a))
}

func TestFeeSchedule(t *testing.T) {
	rq := require.New(t)
	fees := scoring.DefaultFees()

	// $285 on card: 285 + (285*0.0235 + 0.30) = 291.9975 → 292.00.
	rq.InDelta(292.0, fees.AcquisitionCost(285, scoring.PaymentCard, false), 0.01)

	// PayPal international adds the cross-border surcharge.
	domestic := fees.AcquisitionCost(285, scoring.PaymentPayPal, false)
	international := fees.AcquisitionCost(285, scoring.PaymentPayPal, true)
	rq.Greater(international, domestic)

	// 13% platform cut.
	rq.InDelta(870.0, fees.NetProceeds(1000), 0.01)
	rq.Equal(25.0, fees.Processing())
}
