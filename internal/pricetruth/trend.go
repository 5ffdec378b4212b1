package pricetruth

import (
	"sort"
	"time"

	"github.com/flipscout/flipscout/internal/domain"
)

// TrendScore estimates directional price momentum for an identity on a 0-100
// scale, where 50 is neutral. It compares the median of observations from the
// most recent window against the median of the window before it; with too few
// points in either window it returns neutral. Like Aggregate, it is pure.
func TrendScore(obs []domain.PriceObservation, now time.Time, window time.Duration) float64 {
	const neutral = 50.0
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}

	var recent, prior []domain.PriceObservation
	cutRecent := now.Add(-window)
	cutPrior := now.Add(-2 * window)
	for _, o := range obs {
		if o.Price <= 0 {
			continue
		}
		switch {
		case !o.ObservedAt.Before(cutRecent):
			recent = append(recent, o)
		case !o.ObservedAt.Before(cutPrior):
			prior = append(prior, o)
		}
	}
	if len(recent) < 2 || len(prior) < 2 {
		return neutral
	}

	sort.SliceStable(recent, func(i, j int) bool { return recent[i].Price < recent[j].Price })
	sort.SliceStable(prior, func(i, j int) bool { return prior[i].Price < prior[j].Price })

	priorMed := medianPrice(prior)
	if priorMed <= 0 {
		return neutral
	}
	change := (medianPrice(recent) - priorMed) / priorMed

	// ±20% over one window maps to the full scale.
	score := neutral + change/0.20*50
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
