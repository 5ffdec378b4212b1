// Package grading models third-party grading outcomes for raw collectible
// items: a condition signal extracted from free-text listing language, and a
// probability distribution over grade bands with value multipliers.
package grading

import "strings"

// Keyword tables for condition analysis. Negative evidence always dominates:
// a single damage keyword caps the signal low no matter how much positive
// language surrounds it.
var (
	strongPositiveKeywords = []string{
		"pack fresh", "gem mint", "mint condition", "never played", "sealed", "nm/m",
	}
	positiveKeywords = []string{
		"near mint", "mint", "nm", "excellent",
	}
	heavyNegativeKeywords = []string{
		"damaged", "damage", "creased", "crease", "torn", "water damage",
		"heavily played", "writing", "bent",
	}
	mediumNegativeKeywords = []string{
		"whitening", "scratch", "scratched", "edge wear", "played", "scuff", "peeling",
	}
	lightNegativeKeywords = []string{
		"minor wear", "small nick", "light wear", "slight wear",
	}
)

// Signal caps applied when negative language is present.
const (
	heavyNegativeCap  = 0.25
	mediumNegativeCap = 0.45
	lightNegativeCap  = 0.60
)

// ConditionAssessment is the result of analysing free-text condition language.
type ConditionAssessment struct {
	// Signal is the condition confidence in [0, 0.95]. Self-reported
	// condition is never fully trusted, so the signal never reaches 1.0.
	Signal float64

	// Adverse is set when any negative keyword was found; it feeds the
	// scorer's risk flags.
	Adverse bool

	// Matched lists the keywords that drove the assessment, for audit.
	Matched []string
}

// AnalyzeCondition derives a condition signal from listing text. Positive
// keywords raise the signal; any negative keyword caps it at a level set by
// the severity of the worst match, regardless of positive language.
func AnalyzeCondition(text string) ConditionAssessment {
	t := strings.ToLower(text)

	a := ConditionAssessment{Signal: 0.50}

	// Matched strong-positive phrases are masked out of the text so their
	// fragments cannot re-match as negatives ("played" inside "never
	// played").
	for _, kw := range strongPositiveKeywords {
		if strings.Contains(t, kw) {
			a.Signal = 0.85
			a.Matched = append(a.Matched, kw)
			t = strings.ReplaceAll(t, kw, " ")
		}
	}
	if a.Signal < 0.85 {
		for _, kw := range positiveKeywords {
			if strings.Contains(t, kw) {
				a.Signal = 0.70
				a.Matched = append(a.Matched, kw)
				break
			}
		}
	}

	ceiling := 1.0
	for _, kw := range heavyNegativeKeywords {
		if strings.Contains(t, kw) {
			ceiling = heavyNegativeCap
			a.Adverse = true
			a.Matched = append(a.Matched, kw)
			break
		}
	}
	if !a.Adverse {
		for _, kw := range mediumNegativeKeywords {
			if strings.Contains(t, kw) {
				ceiling = mediumNegativeCap
				a.Adverse = true
				a.Matched = append(a.Matched, kw)
				break
			}
		}
	}
	if !a.Adverse {
		for _, kw := range lightNegativeKeywords {
			if strings.Contains(t, kw) {
				ceiling = lightNegativeCap
				a.Adverse = true
				a.Matched = append(a.Matched, kw)
				break
			}
		}
	}

	if a.Signal > ceiling {
		a.Signal = ceiling
	}
	if a.Signal > 0.95 {
		a.Signal = 0.95
	}
	return a
}
