package domain

// GradeBand is one discrete grading outcome: a quality tier with the
// probability of landing in it and the value multiplier applied to the raw
// consensus price if it does. The lowest band's multiplier may legitimately be
// below 1.0, since a poorly graded item can be worth less than its raw price.
type GradeBand struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
	Multiplier  float64 `json:"multiplier"`
}

// GradeOutcomeDistribution maps grade bands to probabilities and multipliers.
// Bands are ordered from best to worst grade; probabilities sum to 1.0 and the
// worst band always retains non-zero probability, regardless of how favorable
// the condition text reads.
type GradeOutcomeDistribution struct {
	Bands           []GradeBand `json:"bands"`
	ConditionSignal float64     `json:"condition_signal"` // in [0, 1]
}

// ExpectedValue is the probability-weighted graded value at the given raw
// consensus price.
func (d GradeOutcomeDistribution) ExpectedValue(consensusPrice float64) float64 {
	var ev float64
	for _, b := range d.Bands {
		ev += b.Probability * b.Multiplier * consensusPrice
	}
	return ev
}

// WorstCaseValue is the graded value under the lowest plausible band.
func (d GradeOutcomeDistribution) WorstCaseValue(consensusPrice float64) float64 {
	if len(d.Bands) == 0 {
		return 0
	}
	return d.Bands[len(d.Bands)-1].Multiplier * consensusPrice
}

// WorstBand returns the lowest grade band. The zero band is returned for an
// empty distribution, which only occurs for invalid model configuration.
func (d GradeOutcomeDistribution) WorstBand() GradeBand {
	if len(d.Bands) == 0 {
		return GradeBand{}
	}
	return d.Bands[len(d.Bands)-1]
}
