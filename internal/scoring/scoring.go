// Package scoring implements the recall scoring primitives shared by the
// memory stream: exponential recency, importance normalization and keyword
// relevance.
package scoring

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DecayLambda is the per-cycle decay rate of the stream recency score.
	DecayLambda = 0.995

	// decayScale stretches the decay so 100 cycles land near 0.37.
	decayScale = 0.01

	MinImportance = 1
	MaxImportance = 10

	// NeutralRelevance is returned when a query has no usable terms.
	NeutralRelevance = 0.5

	// relevanceBoost rewards partial matches; the result is capped at 1.
	relevanceBoost = 1.2

	minTermLength = 3

	charsPerToken = 3.5
)

// Weights are the coefficients of the composite recall score.
type Weights struct {
	Recency    float64
	Importance float64
	Relevance  float64
}

// DefaultWeights returns the unweighted sum.
func DefaultWeights() Weights {
	return Weights{Recency: 1, Importance: 1, Relevance: 1}
}

// Recency returns exp(-λ · cyclesAgo · 0.01). Negative gaps count as zero.
func Recency(cyclesAgo int) float64 {
	if cyclesAgo < 0 {
		cyclesAgo = 0
	}
	return math.Exp(-DecayLambda * float64(cyclesAgo) * decayScale)
}

// ClampImportance forces v into [MinImportance, MaxImportance].
func ClampImportance(v int) int {
	if v < MinImportance {
		return MinImportance
	}
	if v > MaxImportance {
		return MaxImportance
	}
	return v
}

// Importance maps an importance value onto [0.1, 1].
func Importance(v int) float64 {
	return float64(ClampImportance(v)) / MaxImportance
}

// Terms splits text into lowercase alphanumeric terms of at least three
// characters.
func Terms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := words[:0]
	for _, w := range words {
		if utf8.RuneCountInString(w) >= minTermLength {
			terms = append(terms, w)
		}
	}
	return terms
}

// Relevance is the fraction of distinct query terms present in content,
// boosted by 1.2 and capped at 1.
func Relevance(query, content string) float64 {
	queryTerms := uniq(Terms(query))
	if len(queryTerms) == 0 {
		return NeutralRelevance
	}

	contentTerms := make(map[string]struct{})
	for _, t := range Terms(content) {
		contentTerms[t] = struct{}{}
	}

	matches := 0
	for _, t := range queryTerms {
		if _, ok := contentTerms[t]; ok {
			matches++
		}
	}

	return math.Min(1, float64(matches)/float64(len(queryTerms))*relevanceBoost)
}

// Composite combines the three factors using w.
func (w Weights) Composite(recency, importance, relevance float64) float64 {
	return w.Recency*recency + w.Importance*importance + w.Relevance*relevance
}

// EstimateTokens approximates the token count of content.
func EstimateTokens(content string) int {
	return int(math.Ceil(float64(utf8.RuneCountInString(content)) / charsPerToken))
}

// CharsForTokens is the inverse of EstimateTokens, rounded down.
func CharsForTokens(tokens int) int {
	return int(float64(tokens) * charsPerToken)
}

func uniq(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
