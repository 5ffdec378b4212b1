// Package pricetruth aggregates raw price observations into a consensus price
// with an attached confidence. Aggregation is a pure function over its inputs:
// it performs no I/O and leaves staleness concerns to the price history store.
package pricetruth

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/flipscout/flipscout/internal/domain"
)

// Config holds the tunable parameters for consensus aggregation.
type Config struct {
	// MinSources is the minimum number of usable observations required to
	// form a consensus.
	MinSources int

	// IQRMultiplier scales the interquartile range when fencing outliers.
	IQRMultiplier float64

	// MaxConfidence caps the consensus confidence. No input combination may
	// claim certainty, so this must stay below 1.0.
	MaxConfidence float64
}

// DefaultConfig returns the standard aggregation parameters: two sources
// minimum, the Tukey 1.5×IQR fence, and a 0.95 confidence ceiling.
func DefaultConfig() Config {
	return Config{
		MinSources:    2,
		IQRMultiplier: 1.5,
		MaxConfidence: 0.95,
	}
}

// Aggregator combines price observations into a domain.PriceConsensus.
type Aggregator struct {
	cfg Config
}

// NewAggregator creates an Aggregator. Zero or negative config fields fall
// back to the defaults.
func NewAggregator(cfg Config) *Aggregator {
	def := DefaultConfig()
	if cfg.MinSources < 2 {
		cfg.MinSources = def.MinSources
	}
	if cfg.IQRMultiplier <= 0 {
		cfg.IQRMultiplier = def.IQRMultiplier
	}
	if cfg.MaxConfidence <= 0 || cfg.MaxConfidence >= 1 {
		cfg.MaxConfidence = def.MaxConfidence
	}
	return &Aggregator{cfg: cfg}
}

// Aggregate computes the consensus price for an identity from raw
// observations. Non-positive prices are excluded individually; if fewer than
// MinSources usable observations remain it returns domain.ErrInsufficientData.
// Statistical outliers are removed with an IQR fence, falling back to the
// unfiltered set if the fence would remove everything. The consensus price is
// the reliability-weighted median of the surviving observations.
func (a *Aggregator) Aggregate(id domain.Identity, obs []domain.PriceObservation) (domain.PriceConsensus, error) {
	usable := make([]domain.PriceObservation, 0, len(obs))
	for _, o := range obs {
		if o.Price > 0 {
			usable = append(usable, o)
		}
	}
	if len(usable) < a.cfg.MinSources {
		return domain.PriceConsensus{}, fmt.Errorf(
			"pricetruth: %d usable of %d observations for %s: %w",
			len(usable), len(obs), id.Key(), domain.ErrInsufficientData,
		)
	}

	sort.SliceStable(usable, func(i, j int) bool { return usable[i].Price < usable[j].Price })

	filtered := a.fenceOutliers(usable)
	outliersRemoved := len(usable) - len(filtered)
	if len(filtered) == 0 {
		// A degenerate fence must not produce an empty consensus.
		filtered = usable
		outliersRemoved = 0
	}

	price := weightedMedian(filtered)
	variance := populationVariance(filtered)
	confidence := a.confidence(filtered, variance)

	return domain.PriceConsensus{
		Identity:        id,
		Price:           price,
		Confidence:      confidence,
		Variance:        variance,
		OutliersRemoved: outliersRemoved,
		SourcesUsed:     len(filtered),
		ComputedAt:      time.Now().UTC(),
	}, nil
}

// fenceOutliers removes observations outside [Q1 − k·IQR, Q3 + k·IQR].
// The input must be sorted by price.
func (a *Aggregator) fenceOutliers(sorted []domain.PriceObservation) []domain.PriceObservation {
	q1, q3 := quartiles(sorted)
	iqr := q3 - q1
	lo := q1 - a.cfg.IQRMultiplier*iqr
	hi := q3 + a.cfg.IQRMultiplier*iqr

	kept := make([]domain.PriceObservation, 0, len(sorted))
	for _, o := range sorted {
		if o.Price >= lo && o.Price <= hi {
			kept = append(kept, o)
		}
	}
	return kept
}

// confidence scores how much to trust the consensus. It rises with source
// count and source reliability, falls as post-filter variance grows relative
// to the mean, and is clamped below MaxConfidence.
func (a *Aggregator) confidence(obs []domain.PriceObservation, variance float64) float64 {
	mean := meanPrice(obs)

	// Source count: 0.35 base plus 0.10 per source up to five.
	n := len(obs)
	if n > 5 {
		n = 5
	}
	conf := 0.35 + 0.10*float64(n)

	// Reliability: average class weight relative to the weight span.
	var weightSum float64
	for _, o := range obs {
		weightSum += o.Class.Weight()
	}
	avgWeight := weightSum / float64(len(obs))
	span := domain.SourceConfirmedSale.Weight() - domain.SourceCachedEstimate.Weight()
	conf += 0.10 * (avgWeight - domain.SourceCachedEstimate.Weight()) / span

	// Dispersion penalty: relative standard deviation, amplified.
	if mean > 0 {
		relStd := math.Sqrt(variance) / mean
		conf -= math.Min(0.5, relStd*1.5)
	}

	if conf < 0 {
		conf = 0
	}
	if conf > a.cfg.MaxConfidence {
		conf = a.cfg.MaxConfidence
	}
	return conf
}

// weightedMedian returns the price at which the cumulative reliability weight
// crosses half of the total. The input must be sorted by price.
func weightedMedian(obs []domain.PriceObservation) float64 {
	var total float64
	for _, o := range obs {
		total += o.Class.Weight()
	}

	half := total / 2
	var cum float64
	for _, o := range obs {
		cum += o.Class.Weight()
		if cum >= half {
			return o.Price
		}
	}
	return obs[len(obs)-1].Price
}

// quartiles computes Q1 and Q3 as medians of the lower and upper halves
// (Tukey hinges). The input must be sorted by price.
func quartiles(sorted []domain.PriceObservation) (q1, q3 float64) {
	n := len(sorted)
	if n == 0 {
		return 0, 0
	}
	mid := n / 2
	lower := sorted[:mid]
	var upper []domain.PriceObservation
	if n%2 == 0 {
		upper = sorted[mid:]
	} else {
		upper = sorted[mid+1:]
	}
	return medianPrice(lower), medianPrice(upper)
}

func medianPrice(sorted []domain.PriceObservation) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2].Price
	}
	return (sorted[n/2-1].Price + sorted[n/2].Price) / 2
}

func meanPrice(obs []domain.PriceObservation) float64 {
	if len(obs) == 0 {
		return 0
	}
	var sum float64
	for _, o := range obs {
		sum += o.Price
	}
	return sum / float64(len(obs))
}

func populationVariance(obs []domain.PriceObservation) float64 {
	if len(obs) == 0 {
		return 0
	}
	mean := meanPrice(obs)
	var sq float64
	for _, o := range obs {
		d := o.Price - mean
		sq += d * d
	}
	return sq / float64(len(obs))
}
