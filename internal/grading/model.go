package grading

import (
	"github.com/flipscout/flipscout/internal/domain"
)

// band pairs a grade label with its value multiplier and the probability it
// receives under fully favorable and fully unfavorable condition signals.
type band struct {
	label       string
	multiplier  float64
	favorable   float64
	unfavorable float64
}

// Baseline five-band model, best grade first. Multipliers are monotonically
// decreasing and the two lowest sit below 1.0: a poorly graded item is worth
// less than its raw consensus price, and the model states that explicitly.
var baselineBands = []band{
	{label: "gem_mint_10", multiplier: 4.0, favorable: 0.15, unfavorable: 0.00},
	{label: "mint_9", multiplier: 2.2, favorable: 0.45, unfavorable: 0.05},
	{label: "near_mint_8", multiplier: 1.4, favorable: 0.28, unfavorable: 0.20},
	{label: "excellent_7", multiplier: 0.9, favorable: 0.08, unfavorable: 0.35},
	{label: "played_6", multiplier: 0.6, favorable: 0.04, unfavorable: 0.40},
}

// worstBandFloor is the minimum probability retained by the lowest band. Even
// a flawless-sounding listing can grade poorly; self-reported condition is
// never fully trusted.
const worstBandFloor = 0.02

// Model produces grade outcome distributions from a consensus price and a
// condition signal.
type Model struct {
	bands []band
}

// NewModel returns a Model using the baseline five-band table.
func NewModel() *Model {
	return &Model{bands: baselineBands}
}

// PredictOutcomes builds the grade distribution for the given condition
// signal. Band probabilities interpolate linearly between the unfavorable and
// favorable columns as the signal rises from 0 to 1, the worst band is floored
// at a non-zero probability, and the result is renormalised to sum to 1.
func (m *Model) PredictOutcomes(consensus domain.PriceConsensus, conditionSignal float64) domain.GradeOutcomeDistribution {
	s := conditionSignal
	if s < 0 {
		s = 0
	}
	if s > 1 {
		s = 1
	}

	bands := make([]domain.GradeBand, len(m.bands))
	for i, b := range m.bands {
		bands[i] = domain.GradeBand{
			Label:       b.label,
			Probability: s*b.favorable + (1-s)*b.unfavorable,
			Multiplier:  b.multiplier,
		}
	}

	// Floor the worst band, then renormalise.
	worst := len(bands) - 1
	if bands[worst].Probability < worstBandFloor {
		bands[worst].Probability = worstBandFloor
	}
	var sum float64
	for _, b := range bands {
		sum += b.Probability
	}
	if sum > 0 {
		for i := range bands {
			bands[i].Probability /= sum
		}
	}

	return domain.GradeOutcomeDistribution{
		Bands:           bands,
		ConditionSignal: s,
	}
}
