package search

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/Aman-CERP/reelvibe/internal/candidate"
	"github.com/Aman-CERP/reelvibe/internal/catalog"
	"github.com/Aman-CERP/reelvibe/internal/config"
	"github.com/Aman-CERP/reelvibe/internal/query"
)

// MaxScore caps every fused score so nothing displays as 100%.
const MaxScore = 0.99

// Fusion weights for the hybrid regime.
const (
	semanticWeight   = 0.6
	keywordWeight    = 0.3
	popularityWeight = 0.1

	archetypeBoost = 0.15
	boosterBoost   = 0.05
)

// trendingTokens and trendingPhrases switch on the popularity signal when
// present in a query. "new" alone is too common in titles and vibes
// ("new york", "new wave") to count.
var (
	trendingTokens  = []string{"trending", "popular"}
	trendingPhrases = []string{"new releases", "new release", "new movies", "new films"}
)

// asksForTrending reports whether a normalized query asks for what is
// popular right now.
func asksForTrending(normalized string) bool {
	if hasAnyToken(normalized, trendingTokens) {
		return true
	}
	for _, p := range trendingPhrases {
		if containsPhrase(normalized, p) {
			return true
		}
	}
	return false
}

// FusionConfig holds the tunables of the hybrid regime.
type FusionConfig struct {
	// SemanticMin and SemanticMax bound the linear similarity ramp.
	SemanticMin float64
	SemanticMax float64
	// KeywordScale multiplies the keyword rank before capping at 1.
	KeywordScale float64
	// PopularityWeight scales log(1+popularity).
	PopularityWeight float64
	// MinScore drops hybrid rows below it.
	MinScore float64
	// Trending forces the popularity signal on for every query.
	Trending bool
}

// DefaultFusionConfig returns the stock tunables.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		SemanticMin:      0.25,
		SemanticMax:      0.60,
		KeywordScale:     2.0,
		PopularityWeight: 0.05,
		MinScore:         0.40,
	}
}

// FusionConfigFrom maps the search section of the configuration.
func FusionConfigFrom(cfg config.SearchConfig) FusionConfig {
	return FusionConfig{
		SemanticMin:      cfg.SemanticMin,
		SemanticMax:      cfg.SemanticMax,
		KeywordScale:     cfg.KeywordScale,
		PopularityWeight: cfg.PopularityWeight,
		MinScore:         cfg.MinScore,
		Trending:         cfg.Trending,
	}
}

// Scorer turns resolved candidates into scored results.
type Scorer struct {
	cfg FusionConfig
}

// NewScorer creates a scorer.
func NewScorer(cfg FusionConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score scores every result under the given regime. Hybrid rows below
// MinScore are dropped; generative rows are all kept. Order is preserved.
func (s *Scorer) Score(regime candidate.Regime, in []catalog.Resolved, q query.ProcessedQuery) []ScoredResult {
	trending := s.cfg.Trending || asksForTrending(q.Normalized)

	out := make([]ScoredResult, 0, len(in))
	for _, r := range in {
		var sig Signals
		var final float64
		if regime == candidate.RegimeHybrid {
			sig = s.hybridSignals(r, q.Normalized, trending)
			final = clamp(semanticWeight*sig.Semantic+
				keywordWeight*sig.Keyword+
				popularityWeight*sig.Popularity+
				sig.Boost, 0, MaxScore)
			if final < s.cfg.MinScore {
				continue
			}
		} else {
			sig.Confidence = r.Candidate.Confidence
			final = ConfidenceScore(r.Candidate.Confidence)
		}
		out = append(out, newResult(r, final, sig))
	}
	return out
}

func (s *Scorer) hybridSignals(r catalog.Resolved, normalized string, trending bool) Signals {
	var sig Signals
	if r.Candidate.Similarity != nil {
		sig.Semantic = SemanticRamp(*r.Candidate.Similarity, s.cfg.SemanticMin, s.cfg.SemanticMax)
	}
	if r.Candidate.KeywordRank != nil {
		sig.Keyword = math.Min(1, *r.Candidate.KeywordRank*s.cfg.KeywordScale)
	}
	if r.Entry != nil {
		if trending {
			sig.Popularity = math.Log1p(math.Max(0, r.Entry.Popularity)) * s.cfg.PopularityWeight
		}
		sig.Boost = MetadataBoost(*r.Entry, normalized)
	}
	return sig
}

// ConfidenceScore maps a 0..100 self-reported confidence to a score. A
// missing confidence scores 0.
func ConfidenceScore(conf *float64) float64 {
	if conf == nil {
		return 0
	}
	return clamp(*conf/100, 0, MaxScore)
}

// SemanticRamp maps similarity linearly from 0 at lo to 1 at hi.
func SemanticRamp(sim, lo, hi float64) float64 {
	switch {
	case sim < lo:
		return 0
	case sim > hi:
		return 1
	case hi <= lo:
		return 1
	default:
		return (sim - lo) / (hi - lo)
	}
}

// MetadataBoost rewards entries whose archetype or booster keywords appear
// in the normalized query.
func MetadataBoost(e catalog.Entry, normalized string) float64 {
	var boost float64
	if a := query.Normalize(e.Archetype); a != "" && containsPhrase(normalized, a) {
		boost += archetypeBoost
	}
	for _, b := range e.Boosters {
		if nb := query.Normalize(b); nb != "" && containsPhrase(normalized, nb) {
			boost += boosterBoost
		}
	}
	return boost
}

// DisplayScore renders a score as a whole percentage.
func DisplayScore(score float64) string {
	// The epsilon absorbs float error such as 0.57*100 = 56.999...
	return fmt.Sprintf("%d%%", int(score*100+1e-9))
}

// ConfidenceLabel buckets a score for display.
func ConfidenceLabel(score float64) string {
	switch {
	case score >= 0.8:
		return "high"
	case score >= 0.6:
		return "medium"
	case score >= 0.4:
		return "low"
	default:
		return "very low"
	}
}

func newResult(r catalog.Resolved, final float64, sig Signals) ScoredResult {
	res := ScoredResult{
		Title:    r.DisplayTitle(),
		Year:     r.DisplayYear(),
		Verified: r.Verified,
		Method:   r.Method,
		Source:   r.Candidate.Source,
		Score:    final,
		Display:  DisplayScore(final),
		Label:    ConfidenceLabel(final),
		Signals:  sig,
		key:      CanonicalKey(r),
	}
	if r.Verified && r.Entry != nil {
		e := *r.Entry
		e.Embedding = nil
		res.ID = e.ID
		res.Entry = &e
	}
	return res
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func hasAnyToken(normalized string, tokens []string) bool {
	for _, f := range strings.Fields(normalized) {
		if slices.Contains(tokens, f) {
			return true
		}
	}
	return false
}

// containsPhrase reports whether phrase occurs in text on word boundaries.
// Both are normalized.
func containsPhrase(text, phrase string) bool {
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}
