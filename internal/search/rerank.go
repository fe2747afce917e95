package search

import "sort"

// RerankRule overrides the score ordering when one of its tokens, or one
// of its multi-word phrases, appears in the query. Less orders by the
// rule's primary key only; ties fall back to score descending, then
// canonical key ascending.
type RerankRule struct {
	Name    string
	Tokens  []string
	Phrases []string
	Less    func(a, b *ScoredResult) bool
}

// SuperlativeRule sorts by catalog rating. Unverified results have no
// rating and sort last.
func SuperlativeRule() RerankRule {
	return RerankRule{
		Name:   "superlative",
		Tokens: []string{"best", "top", "highest", "masterpiece", "rated"},
		Less: byEntry(func(a, b float64) bool { return a > b }, func(r *ScoredResult) float64 {
			return r.Entry.Rating
		}),
	}
}

// TrendingRule sorts by catalog popularity.
func TrendingRule() RerankRule {
	return RerankRule{
		Name:    "trending",
		Tokens:  trendingTokens,
		Phrases: trendingPhrases,
		Less: byEntry(func(a, b float64) bool { return a > b }, func(r *ScoredResult) float64 {
			return r.Entry.Popularity
		}),
	}
}

// DefaultRules returns the stock rule list. The first matching rule wins.
func DefaultRules() []RerankRule {
	return []RerankRule{SuperlativeRule(), TrendingRule()}
}

func byEntry(before func(a, b float64) bool, value func(*ScoredResult) float64) func(a, b *ScoredResult) bool {
	return func(a, b *ScoredResult) bool {
		if a.Entry == nil || b.Entry == nil {
			return a.Entry != nil
		}
		return before(value(a), value(b))
	}
}

// MatchRule returns the first rule with a token or phrase in the
// normalized query.
func MatchRule(rules []RerankRule, normalized string) (RerankRule, bool) {
	for _, rule := range rules {
		if hasAnyToken(normalized, rule.Tokens) {
			return rule, true
		}
		for _, p := range rule.Phrases {
			if containsPhrase(normalized, p) {
				return rule, true
			}
		}
	}
	return RerankRule{}, false
}

// Rank orders results in place and returns the name of the rule applied,
// or "" when results were ordered by score alone.
func Rank(results []ScoredResult, normalized string, rules []RerankRule) string {
	rule, ok := MatchRule(rules, normalized)
	if !ok || rule.Less == nil {
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Score > results[j].Score
		})
		return ""
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := &results[i], &results[j]
		if rule.Less(a, b) {
			return true
		}
		if rule.Less(b, a) {
			return false
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.key.Less(b.key)
	})
	return rule.Name
}
