package model

import (
	"fmt"
	"math"
	"strconv"
)

// MatchKind describes how a registry id was obtained for a company.
type MatchKind string

const (
	MatchExact      MatchKind = "exact"
	MatchSimilarity MatchKind = "similarity"
	MatchExisting   MatchKind = "existing"
)

// Strategy labels that are not cascade positions.
const (
	StrategyDirect   = "direct"
	StrategyFallback = "fallback"
	StrategyNone     = ""
)

// Match is the single accepted resolution for a company.
type Match struct {
	RegNumber   string    `json:"reg_number"`
	DisplayName string    `json:"display_name"`
	Kind        MatchKind `json:"kind"`
	Score       float64   `json:"score,omitempty"` // only set for MatchSimilarity
	Strategy    string    `json:"strategy"`
}

// TypeLabel renders the match type the way it appears in output rows:
// "exact", "existing" or "similarity_NN%".
func (m Match) TypeLabel() string {
	if m.Kind == MatchSimilarity {
		return fmt.Sprintf("similarity_%d%%", int(math.Round(m.Score*100)))
	}
	return string(m.Kind)
}

// StrategyForPosition returns the strategy label for a 1-based cascade position.
func StrategyForPosition(pos int) string {
	return strconv.Itoa(pos)
}

// ExistingMatch builds the match used when the input already carried a
// registration number and search is skipped.
func ExistingMatch(regNumber string) Match {
	return Match{
		RegNumber: regNumber,
		Kind:      MatchExisting,
		Strategy:  StrategyNone,
	}
}
