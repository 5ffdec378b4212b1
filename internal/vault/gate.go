// Package vault implements the custodial-storage safety gate. The gate
// encodes a deliberate asymmetric-risk policy: the system optimises for never
// holding an asset below the vault admission minimum, not for maximising
// expected profit. It runs before scoring and short-circuits the pipeline.
package vault

import "github.com/flipscout/flipscout/internal/domain"

// Config holds the custodial admission parameters.
type Config struct {
	// CustodialMinimum is the vault's minimum-value admission threshold.
	CustodialMinimum float64

	// SafetyBuffer is added on top of the minimum so a borderline grading
	// outcome still clears admission.
	SafetyBuffer float64
}

// DefaultConfig returns the standard vault parameters: a $250 admission
// minimum with a $50 buffer.
func DefaultConfig() Config {
	return Config{CustodialMinimum: 250, SafetyBuffer: 50}
}

// Gate checks worst-case graded values against the custodial threshold.
type Gate struct {
	cfg Config
}

// NewGate creates a Gate. Non-positive config values fall back to defaults.
func NewGate(cfg Config) *Gate {
	def := DefaultConfig()
	if cfg.CustodialMinimum <= 0 {
		cfg.CustodialMinimum = def.CustodialMinimum
	}
	if cfg.SafetyBuffer < 0 {
		cfg.SafetyBuffer = def.SafetyBuffer
	}
	return &Gate{cfg: cfg}
}

// Threshold is the value a worst-case outcome must clear: custodial minimum
// plus safety buffer.
func (g *Gate) Threshold() float64 {
	return g.cfg.CustodialMinimum + g.cfg.SafetyBuffer
}

// Check verdicts a candidate purchase. The worst-case graded value must meet
// or exceed the threshold or the opportunity is rejected outright, regardless
// of how attractive its expected value is. The purchase price is recorded for
// margin reporting but never relaxes the rule.
func (g *Gate) Check(worstCaseValue, purchasePrice float64) domain.SafetyVerdict {
	threshold := g.Threshold()
	return domain.SafetyVerdict{
		Safe:           worstCaseValue >= threshold,
		WorstCaseValue: worstCaseValue,
		Threshold:      threshold,
		Margin:         worstCaseValue - threshold,
	}
}
