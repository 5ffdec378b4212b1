package domain

// RiskFlag names a specific risk accumulated while scoring an opportunity.
type RiskFlag string

const (
	RiskLowTrust         RiskFlag = "low_trust"
	RiskAdverseCondition RiskFlag = "adverse_condition"
	RiskLowReturn        RiskFlag = "low_return"
	RiskThinSafetyMargin RiskFlag = "thin_safety_margin"
)

// SafetyVerdict is the outcome of the vault safety gate. The gate runs before
// scoring and short-circuits the pipeline: an Unsafe verdict forces a zero
// score regardless of how attractive the expected value looks.
type SafetyVerdict struct {
	Safe           bool    `json:"safe"`
	WorstCaseValue float64 `json:"worst_case_value"`
	Threshold      float64 `json:"threshold"` // custodial minimum + buffer
	Margin         float64 `json:"margin"`    // worst-case value minus threshold
}

// OpportunityScore is the derived recommendation artifact for one listing. It
// is a pure function of its inputs: identical listings, consensus, outcomes,
// and verdicts always yield an identical score.
type OpportunityScore struct {
	Listing   Listing                  `json:"listing"`
	Consensus PriceConsensus           `json:"consensus"`
	Outcomes  GradeOutcomeDistribution `json:"outcomes"`
	Safety    SafetyVerdict            `json:"safety"`

	TotalScore       float64 `json:"total_score"` // 0-100
	ProfitScore      float64 `json:"profit_score"`
	ReturnRatioScore float64 `json:"return_ratio_score"`
	TrustScore       float64 `json:"trust_score"`
	ConditionScore   float64 `json:"condition_score"`
	TrendScore       float64 `json:"trend_score"`
	RiskScore        float64 `json:"risk_score"`

	ProfitPotential float64    `json:"profit_potential"` // expected net profit, USD
	ReturnRatio     float64    `json:"return_ratio"`     // expected value / all-in cost
	Eligible        bool       `json:"eligible"`
	RiskFlags       []RiskFlag `json:"risk_flags,omitempty"`
}

// Better reports whether s outranks other. Ties on total score break on
// higher profit score, then higher trust score.
func (s OpportunityScore) Better(other OpportunityScore) bool {
	if s.TotalScore != other.TotalScore {
		return s.TotalScore > other.TotalScore
	}
	if s.ProfitScore != other.ProfitScore {
		return s.ProfitScore > other.ProfitScore
	}
	return s.TrustScore > other.TrustScore
}
