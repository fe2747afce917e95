package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/Aman-CERP/reelvibe/internal/query"
)

// Similarity scores two titles on a 0..100 scale.
type Similarity interface {
	Score(a, b string) float64
}

// LevenshteinRatio is 100 * (1 - distance/maxLen) over normalized titles.
type LevenshteinRatio struct{}

// Score implements Similarity.
func (LevenshteinRatio) Score(a, b string) float64 {
	return ratio(query.Normalize(a), query.Normalize(b))
}

func ratio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	maxLen := max(la, lb)
	if maxLen == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(d)/float64(maxLen))
}

// TokenSetRatio ignores word order and duplicated words: it compares the
// shared tokens against each side's full token set and keeps the best ratio.
type TokenSetRatio struct{}

// Score implements Similarity.
func (TokenSetRatio) Score(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		if len(ta) == len(tb) {
			return 100
		}
		return 0
	}

	var common, onlyA, onlyB []string
	for t := range ta {
		if tb[t] {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range tb {
		if !ta[t] {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(common, " ")
	withA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := ratio(withA, withB)
	if base != "" {
		best = max(best, ratio(base, withA), ratio(base, withB))
	}
	return best
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Fields(query.Normalize(s)) {
		set[t] = true
	}
	return set
}

// SimilarityByName returns the named strategy: "levenshtein" or "token_set".
func SimilarityByName(name string) (Similarity, error) {
	switch name {
	case "", "levenshtein":
		return LevenshteinRatio{}, nil
	case "token_set":
		return TokenSetRatio{}, nil
	default:
		return nil, fmt.Errorf("unknown similarity: %s", name)
	}
}
