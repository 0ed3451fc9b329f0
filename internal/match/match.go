// Package match scores registry candidates against a target company name.
package match

import (
	"strings"

	"github.com/sells-group/dbd-scraper/internal/names"
)

// DefaultThreshold is the minimum similarity accepted in the fallback round.
const DefaultThreshold = 0.95

// IsExact reports whether target and candidate share the same core name.
// An empty core name never matches.
func IsExact(target, candidate string) bool {
	t := names.CoreName(target)
	return t != "" && t == names.CoreName(candidate)
}

// Similarity is the Jaccard overlap of the whitespace tokens of both core
// names. It is 0 when either side has no tokens.
func Similarity(a, b string) float64 {
	ta := tokenSet(names.CoreName(a))
	tb := tokenSet(names.CoreName(b))
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	inter := 0
	for tok := range ta {
		if tb[tok] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

// Candidate is a registry entry discovered in a results list.
type Candidate struct {
	RegNumber string
	Text      string // raw result line
}

// Scored pairs a candidate with its similarity to the target.
type Scored struct {
	Candidate
	Score float64
}

// Evaluator picks the best fallback candidate.
type Evaluator struct {
	Threshold float64
}

// NewEvaluator returns an Evaluator; a non-positive threshold selects
// DefaultThreshold.
func NewEvaluator(threshold float64) Evaluator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Evaluator{Threshold: threshold}
}

// Best returns the highest-scoring candidate. Ties go to the candidate
// discovered first. ok is false when there are no candidates or the best
// score is below the threshold.
func (e Evaluator) Best(target string, candidates []Candidate) (Scored, bool) {
	var best Scored
	found := false
	for _, c := range candidates {
		score := Similarity(target, c.Text)
		if !found || score > best.Score {
			best = Scored{Candidate: c, Score: score}
			found = true
		}
	}
	if !found || best.Score < e.Threshold {
		return best, false
	}
	return best, true
}
