package domain

import "time"

// SourceClass categorises where a price observation came from. Classes carry
// fixed reliability weights: a confirmed sale is stronger evidence than a live
// asking price, which in turn is stronger than a cached historical estimate.
type SourceClass string

const (
	SourceConfirmedSale  SourceClass = "confirmed_sale"
	SourceLiveAsk        SourceClass = "live_ask"
	SourceCachedEstimate SourceClass = "cached_estimate"
)

// Weight returns the reliability weight used by the weighted-median consensus.
// Unknown classes fall back to the cached-estimate weight.
func (c SourceClass) Weight() float64 {
	switch c {
	case SourceConfirmedSale:
		return 3.0
	case SourceLiveAsk:
		return 2.0
	default:
		return 1.0
	}
}

// PriceObservation is a single raw price point for an item identity, as
// returned by the price history store. Many observations exist per identity.
type PriceObservation struct {
	SourceID   string            `json:"source_id"`
	Class      SourceClass       `json:"class"`
	Price      float64           `json:"price"`
	ObservedAt time.Time         `json:"observed_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// PriceConsensus is the aggregated fair-value estimate derived from multiple
// observations. It is advisory, not durable ground truth: confidence rises
// with source count, falls with variance, and never reaches 1.0.
type PriceConsensus struct {
	Identity        Identity  `json:"identity"`
	Price           float64   `json:"price"`
	Confidence      float64   `json:"confidence"` // in [0, 0.95]
	Variance        float64   `json:"variance"`
	OutliersRemoved int       `json:"outliers_removed"`
	SourcesUsed     int       `json:"sources_used"`
	ComputedAt      time.Time `json:"computed_at"`
}
