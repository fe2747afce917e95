package search

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/reelvibe/internal/candidate"
	"github.com/Aman-CERP/reelvibe/internal/catalog"
	"github.com/Aman-CERP/reelvibe/internal/config"
	"github.com/Aman-CERP/reelvibe/internal/query"
)

func processed(text string) query.ProcessedQuery {
	n := query.Normalize(text)
	return query.ProcessedQuery{Original: text, Normalized: n, Hash: query.Hash(n), Intent: query.IntentValid}
}

func hybridRow(id string, sim, kw float64, e catalog.Entry) catalog.Resolved {
	e.ID = id
	return catalog.Resolved{
		Candidate: catalog.Candidate{
			RawTitle:    e.Title,
			CatalogID:   id,
			Similarity:  floatp(sim),
			KeywordRank: floatp(kw),
			Source:      catalog.SourceHybrid,
		},
		Entry:    &e,
		Verified: true,
		Method:   catalog.MethodDirect,
	}
}

// --- TS01: regime A ---

func TestConfidenceScore(t *testing.T) {
	tests := []struct {
		name string
		conf *float64
		want float64
	}{
		{"missing", nil, 0},
		{"typical", floatp(88), 0.88},
		{"full confidence capped", floatp(100), MaxScore},
		{"over range capped", floatp(250), MaxScore},
		{"negative floored", floatp(-5), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ConfidenceScore(tt.conf), 1e-9)
		})
	}
}

// --- TS02: regime B signals ---

func TestSemanticRamp(t *testing.T) {
	tests := []struct {
		sim  float64
		want float64
	}{
		{0.10, 0},
		{0.25, 0},
		{0.425, 0.5},
		{0.60, 1},
		{0.95, 1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, SemanticRamp(tt.sim, 0.25, 0.60), 1e-9, "sim=%v", tt.sim)
	}
}

func TestScorer_HybridFormula(t *testing.T) {
	// Given: similarity at the top of the ramp and half keyword rank
	s := NewScorer(DefaultFusionConfig())
	row := hybridRow("m1", 0.9, 0.25, catalog.Entry{Title: "Heat", Year: 1995, Popularity: 40})

	// When: scoring a query with no trending token
	out := s.Score(candidate.RegimeHybrid, []catalog.Resolved{row}, processed("slow burn heist"))

	// Then: 0.6*1 + 0.3*0.5, no popularity term
	require.Len(t, out, 1)
	assert.InDelta(t, 0.75, out[0].Score, 1e-9)
	assert.Zero(t, out[0].Signals.Popularity)
	assert.Equal(t, "75%", out[0].Display)
	assert.Equal(t, "medium", out[0].Label)
	assert.Equal(t, "m1", out[0].ID)
}

func TestScorer_TrendingAddsPopularity(t *testing.T) {
	s := NewScorer(DefaultFusionConfig())
	row := hybridRow("m1", 0.9, 0, catalog.Entry{Title: "Heat", Year: 1995, Popularity: 40})

	plain := s.Score(candidate.RegimeHybrid, []catalog.Resolved{row}, processed("crime thriller"))
	trending := s.Score(candidate.RegimeHybrid, []catalog.Resolved{row}, processed("popular crime thriller"))

	require.Len(t, plain, 1)
	require.Len(t, trending, 1)
	wantPop := math.Log1p(40) * 0.05
	assert.InDelta(t, wantPop, trending[0].Signals.Popularity, 1e-9)
	assert.InDelta(t, plain[0].Score+0.1*wantPop, trending[0].Score, 1e-9)
}

func TestScorer_TrendingOption(t *testing.T) {
	cfg := DefaultFusionConfig()
	cfg.Trending = true
	row := hybridRow("m1", 0.9, 0, catalog.Entry{Title: "Heat", Popularity: 40})

	out := NewScorer(cfg).Score(candidate.RegimeHybrid, []catalog.Resolved{row}, processed("crime thriller"))

	require.Len(t, out, 1)
	assert.Positive(t, out[0].Signals.Popularity)
}

func TestScorer_NewAloneIsNotTrending(t *testing.T) {
	s := NewScorer(DefaultFusionConfig())
	row := hybridRow("m1", 0.9, 0, catalog.Entry{Title: "Taxi Driver", Popularity: 900})

	out := s.Score(candidate.RegimeHybrid, []catalog.Resolved{row}, processed("new york crime noir"))
	require.Len(t, out, 1)
	assert.Zero(t, out[0].Signals.Popularity)

	out = s.Score(candidate.RegimeHybrid, []catalog.Resolved{row}, processed("new releases with car chases"))
	require.Len(t, out, 1)
	assert.Positive(t, out[0].Signals.Popularity)
}

func TestFusionConfigFrom(t *testing.T) {
	cfg := config.NewConfig().Search
	cfg.Trending = true
	cfg.MinScore = 0.3

	got := FusionConfigFrom(cfg)

	assert.True(t, got.Trending)
	assert.InDelta(t, 0.3, got.MinScore, 1e-9)
	assert.InDelta(t, cfg.SemanticMax, got.SemanticMax, 1e-9)
	assert.False(t, FusionConfigFrom(config.NewConfig().Search).Trending)
}

func TestMetadataBoost(t *testing.T) {
	e := catalog.Entry{Archetype: "Heist", Boosters: []string{"crew", "vault", "betrayal"}}

	assert.InDelta(t, 0.15+0.05+0.05, MetadataBoost(e, "a heist crew cracking a vault"), 1e-9)
	assert.Zero(t, MetadataBoost(e, "heists and crews"))
	assert.Zero(t, MetadataBoost(catalog.Entry{}, "anything"))
}

// --- TS03: threshold and bounds ---

func TestScorer_DropsBelowThreshold(t *testing.T) {
	// Given: one strong row and one whose fused score is about 0.09
	s := NewScorer(DefaultFusionConfig())
	rows := []catalog.Resolved{
		hybridRow("strong", 0.9, 0.5, catalog.Entry{Title: "Heat"}),
		hybridRow("weak", 0.30, 0, catalog.Entry{Title: "Ronin"}),
	}

	out := s.Score(candidate.RegimeHybrid, rows, processed("crime thriller"))

	// Then: the weak row is absent
	require.Len(t, out, 1)
	assert.Equal(t, "strong", out[0].ID)
	for _, r := range out {
		assert.GreaterOrEqual(t, r.Score, 0.40)
	}
}

func TestScorer_GenerativeKeepsLowScores(t *testing.T) {
	s := NewScorer(DefaultFusionConfig())
	rows := []catalog.Resolved{
		{Candidate: catalog.Candidate{RawTitle: "Obscure Film", Confidence: floatp(12)}},
	}

	out := s.Score(candidate.RegimeGenerative, rows, processed("weird art film"))

	require.Len(t, out, 1)
	assert.InDelta(t, 0.12, out[0].Score, 1e-9)
	assert.Equal(t, "very low", out[0].Label)
	assert.False(t, out[0].Verified)
	assert.Empty(t, out[0].ID)
}

func TestScorer_ScoreBounds(t *testing.T) {
	s := NewScorer(FusionConfig{SemanticMin: 0.25, SemanticMax: 0.60, KeywordScale: 2, PopularityWeight: 0.05, Trending: true})
	values := []float64{-10, -1, 0, 0.25, 0.5, 0.6, 1, 2, 1e9}
	e := catalog.Entry{Title: "Heat", Archetype: "heist", Boosters: []string{"crew", "vault", "heist"}}

	for _, sim := range values {
		for _, kw := range values {
			for _, pop := range []float64{-3, 0, 10, 1e12} {
				e.Popularity = pop
				rows := []catalog.Resolved{hybridRow("h", sim, kw, e)}
				for _, r := range s.Score(candidate.RegimeHybrid, rows, processed("heist crew vault")) {
					assert.GreaterOrEqual(t, r.Score, 0.0)
					assert.LessOrEqual(t, r.Score, MaxScore)
				}
			}
		}
		gen := []catalog.Resolved{{Candidate: catalog.Candidate{RawTitle: "X", Confidence: floatp(sim * 100)}}}
		for _, r := range s.Score(candidate.RegimeGenerative, gen, processed("x y")) {
			assert.GreaterOrEqual(t, r.Score, 0.0)
			assert.LessOrEqual(t, r.Score, MaxScore)
			assert.NotEqual(t, "100%", r.Display)
		}
	}
}

// --- TS04: display ---

func TestDisplayScore(t *testing.T) {
	assert.Equal(t, "99%", DisplayScore(MaxScore))
	assert.Equal(t, "57%", DisplayScore(0.57))
	assert.Equal(t, "0%", DisplayScore(0))
	assert.Equal(t, "40%", DisplayScore(0.40))
}

func TestConfidenceLabel(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.95, "high"},
		{0.8, "high"},
		{0.7, "medium"},
		{0.6, "medium"},
		{0.45, "low"},
		{0.39, "very low"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ConfidenceLabel(tt.score), "score=%v", tt.score)
	}
}
