// Package scoring combines the consensus, grade outcomes and safety verdict
// produced upstream into a single ranked opportunity score. Scoring
// is a pure derivation: identical inputs always produce identical output, and
// nothing here touches storage or the network.
package scoring

import (
	"github.com/flipscout/flipscout/internal/domain"
)

// Weights are the fixed weights of the total score. They must sum to 1.0.
type Weights struct {
	Profit      float64
	ReturnRatio float64
	Trust       float64
	Condition   float64
	Trend       float64
	Risk        float64
}

// DefaultWeights returns the standard weighting: profit and return ratio
// dominate, trust and condition carry equal middle weight, trend and risk
// round out the remainder.
func DefaultWeights() Weights {
	return Weights{
		Profit:      0.30,
		ReturnRatio: 0.25,
		Trust:       0.15,
		Condition:   0.15,
		Trend:       0.10,
		Risk:        0.05,
	}
}

// Sum returns the total of all weights; valid configurations sum to 1.0.
func (w Weights) Sum() float64 {
	return w.Profit + w.ReturnRatio + w.Trust + w.Condition + w.Trend + w.Risk
}

// Config holds the scorer's parameters.
type Config struct {
	Weights Weights
	Fees    FeeSchedule

	// ProfitScale is the net profit in USD that maps to a 100 profit score.
	ProfitScale float64

	// ReturnScale is the multiple-on-capital above break-even that maps to a
	// 100 return-ratio score (4.0 means a 5x gross return scores 100).
	ReturnScale float64

	// MinTrustRating is the seller feedback percentage below which the
	// low-trust risk flag is raised.
	MinTrustRating float64

	// MinReturnRatio is the multiple below which the low-return flag is
	// raised.
	MinReturnRatio float64

	// ThinMarginBuffer is the safety margin in USD under which the
	// thin-safety-margin flag is raised.
	ThinMarginBuffer float64

	// PerFlagPenalty is subtracted from the risk score per accumulated flag.
	PerFlagPenalty float64
}

// DefaultConfig returns the standard scoring parameters.
func DefaultConfig() Config {
	return Config{
		Weights:          DefaultWeights(),
		Fees:             DefaultFees(),
		ProfitScale:      2000,
		ReturnScale:      4,
		MinTrustRating:   98,
		MinReturnRatio:   3,
		ThinMarginBuffer: 50,
		PerFlagPenalty:   20,
	}
}

// Inputs bundles everything the scorer derives from.
type Inputs struct {
	Listing         domain.Listing
	Consensus       domain.PriceConsensus
	Outcomes        domain.GradeOutcomeDistribution
	Safety          domain.SafetyVerdict
	ConditionSignal float64
	Adverse         bool    // adverse condition language present
	TrendScore      float64 // external directional-momentum input, 0-100
}

// Scorer computes opportunity scores.
type Scorer struct {
	cfg Config
}

// NewScorer creates a Scorer. A zero-valued config falls back to defaults
// field by field.
func NewScorer(cfg Config) *Scorer {
	def := DefaultConfig()
	if cfg.Weights.Sum() == 0 {
		cfg.Weights = def.Weights
	}
	if cfg.Fees.ProcessingFee.IsZero() && cfg.Fees.PlatformFeeRate.IsZero() {
		cfg.Fees = def.Fees
	}
	if cfg.ProfitScale <= 0 {
		cfg.ProfitScale = def.ProfitScale
	}
	if cfg.ReturnScale <= 0 {
		cfg.ReturnScale = def.ReturnScale
	}
	if cfg.MinTrustRating <= 0 {
		cfg.MinTrustRating = def.MinTrustRating
	}
	if cfg.MinReturnRatio <= 0 {
		cfg.MinReturnRatio = def.MinReturnRatio
	}
	if cfg.ThinMarginBuffer <= 0 {
		cfg.ThinMarginBuffer = def.ThinMarginBuffer
	}
	if cfg.PerFlagPenalty <= 0 {
		cfg.PerFlagPenalty = def.PerFlagPenalty
	}
	return &Scorer{cfg: cfg}
}

// Score derives the opportunity score for one candidate. An Unsafe verdict
// returns a zero, ineligible score with no further computation; the safety
// gate is absolute.
func (s *Scorer) Score(in Inputs) domain.OpportunityScore {
	out := domain.OpportunityScore{
		Listing:   in.Listing,
		Consensus: in.Consensus,
		Outcomes:  in.Outcomes,
		Safety:    in.Safety,
	}

	if !in.Safety.Safe {
		out.RiskFlags = []domain.RiskFlag{domain.RiskThinSafetyMargin}
		return out
	}

	expectedValue := in.Outcomes.ExpectedValue(in.Consensus.Price)
	allInCost := s.cfg.Fees.AcquisitionCost(in.Listing.TotalCost(), PaymentCard, false) + s.cfg.Fees.Processing()
	netProfit := s.cfg.Fees.NetProceeds(expectedValue) - allInCost

	var returnRatio float64
	if allInCost > 0 {
		returnRatio = expectedValue / allInCost
	}

	out.ProfitPotential = netProfit
	out.ReturnRatio = returnRatio

	out.ProfitScore = clampScore(netProfit / s.cfg.ProfitScale * 100)
	out.ReturnRatioScore = clampScore((returnRatio - 1) / s.cfg.ReturnScale * 100)
	out.TrustScore = trustScore(in.Listing.SellerRating, s.cfg.MinTrustRating)
	out.ConditionScore = clampScore(in.ConditionSignal * 100)
	out.TrendScore = clampScore(in.TrendScore)

	if in.Listing.SellerRating < s.cfg.MinTrustRating {
		out.RiskFlags = append(out.RiskFlags, domain.RiskLowTrust)
	}
	if in.Adverse {
		out.RiskFlags = append(out.RiskFlags, domain.RiskAdverseCondition)
	}
	if returnRatio < s.cfg.MinReturnRatio {
		out.RiskFlags = append(out.RiskFlags, domain.RiskLowReturn)
	}
	if in.Safety.Margin < s.cfg.ThinMarginBuffer {
		out.RiskFlags = append(out.RiskFlags, domain.RiskThinSafetyMargin)
	}
	out.RiskScore = clampScore(100 - float64(len(out.RiskFlags))*s.cfg.PerFlagPenalty)

	w := s.cfg.Weights
	out.TotalScore = out.ProfitScore*w.Profit +
		out.ReturnRatioScore*w.ReturnRatio +
		out.TrustScore*w.Trust +
		out.ConditionScore*w.Condition +
		out.TrendScore*w.Trend +
		out.RiskScore*w.Risk
	out.Eligible = true

	return out
}

// trustScore maps seller feedback to 0-100. Ratings above the trust threshold
// score at face value; anything below collapses to 50, mirroring how little a
// sub-threshold feedback percentage actually tells you.
func trustScore(rating, minTrust float64) float64 {
	if rating >= minTrust {
		return clampScore(rating)
	}
	return 50
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
