// Package candidate produces film candidates for a processed query.
//
// Two sources exist. LLMSource asks a language model for titles and scores
// them by the model's own confidence. VectorSource retrieves catalog rows by
// embedding similarity and keyword rank. Both return a Batch that the search
// engine resolves, deduplicates and scores.
package candidate

import (
	"context"

	"github.com/Aman-CERP/reelvibe/internal/catalog"
	"github.com/Aman-CERP/reelvibe/internal/query"
)

// Regime selects how a batch is scored.
type Regime string

const (
	// RegimeGenerative scores by the generator's confidence.
	RegimeGenerative Regime = "generative"
	// RegimeHybrid fuses semantic, keyword and popularity signals.
	RegimeHybrid Regime = "hybrid"
)

// Source produces candidates for a query.
type Source interface {
	Candidates(ctx context.Context, q query.ProcessedQuery) (*Batch, error)
}

// Batch is one source's answer to a query.
type Batch struct {
	Regime     Regime
	Candidates []catalog.Candidate

	// FromCache is true when the generation cache served the batch.
	FromCache bool
	// Fallback is true when the hard fallback list replaced generation.
	Fallback bool
	// Repair is the parse outcome of the generator output, if any.
	Repair Outcome
}
