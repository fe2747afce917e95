// Package search runs the vibe search pipeline: classify, collect
// candidates, resolve against the catalog, deduplicate, score, re-rank and
// paginate.
package search

import (
	"github.com/Aman-CERP/reelvibe/internal/candidate"
	"github.com/Aman-CERP/reelvibe/internal/catalog"
	"github.com/Aman-CERP/reelvibe/internal/query"
)

// Signals are the inputs that produced a score. Fields not used by the
// batch's regime are zero.
type Signals struct {
	Confidence *float64 `json:"confidence,omitempty"`
	Semantic   float64  `json:"semantic,omitempty"`
	Keyword    float64  `json:"keyword,omitempty"`
	Popularity float64  `json:"popularity,omitempty"`
	Boost      float64  `json:"boost,omitempty"`
}

// ScoredResult is one ranked film.
type ScoredResult struct {
	Rank     int                 `json:"rank"`
	ID       string              `json:"id,omitempty"`
	Title    string              `json:"title"`
	Year     *int                `json:"year,omitempty"`
	Verified bool                `json:"verified"`
	Method   catalog.MatchMethod `json:"match_method"`
	Source   catalog.Source      `json:"source"`

	// Score is the fused score in [0, 0.99].
	Score   float64 `json:"score"`
	Display string  `json:"display_score"`
	Label   string  `json:"confidence_label"`
	Signals Signals `json:"signals"`

	// Entry is the catalog row for verified results.
	Entry *catalog.Entry `json:"entry,omitempty"`

	key Key
}

// Key returns the result's canonical key.
func (r ScoredResult) Key() Key { return r.key }

// Response is the answer to one search.
type Response struct {
	RequestID string               `json:"request_id"`
	Query     query.ProcessedQuery `json:"query"`
	Regime    candidate.Regime     `json:"regime,omitempty"`
	Results   []ScoredResult       `json:"results"`
	Total     int                  `json:"total"`
	Offset    int                  `json:"offset"`
	Limit     int                  `json:"limit"`

	// Fallback is set when the fixed fallback list was served.
	Fallback bool `json:"fallback,omitempty"`
	// FromCache is set when generated titles came from the cache.
	FromCache bool `json:"from_cache,omitempty"`
	// Rejected is set for blocked queries; Reason says why.
	Rejected bool   `json:"rejected,omitempty"`
	Reason   string `json:"reason,omitempty"`
}
