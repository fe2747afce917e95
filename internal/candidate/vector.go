package candidate

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/reelvibe/internal/catalog"
	"github.com/Aman-CERP/reelvibe/internal/embed"
	rverrors "github.com/Aman-CERP/reelvibe/internal/errors"
	"github.com/Aman-CERP/reelvibe/internal/query"
)

// DefaultPoolSize is how many rows each retriever returns.
const DefaultPoolSize = 50

// Retriever is the catalog surface the vector regime needs.
type Retriever interface {
	SimilaritySearch(ctx context.Context, vec []float32, k int) ([]catalog.VectorHit, error)
	KeywordSearch(ctx context.Context, text string, k int) ([]catalog.KeywordHit, error)
	GetMany(ctx context.Context, ids []string) (map[string]catalog.Entry, error)
}

// VectorSource retrieves catalog rows by embedding similarity and keyword
// rank, run in parallel. Failures are returned, never masked.
type VectorSource struct {
	embedder embed.Embedder
	store    Retriever
	pool     int
	logger   *slog.Logger
}

// NewVectorSource creates a source. pool <= 0 uses DefaultPoolSize.
func NewVectorSource(e embed.Embedder, store Retriever, pool int, logger *slog.Logger) (*VectorSource, error) {
	if e == nil || store == nil {
		return nil, fmt.Errorf("embedder and catalog are required")
	}
	if pool <= 0 {
		pool = DefaultPoolSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorSource{embedder: e, store: store, pool: pool, logger: logger}, nil
}

// Candidates implements Source.
func (v *VectorSource) Candidates(ctx context.Context, q query.ProcessedQuery) (*Batch, error) {
	batch := &Batch{Regime: RegimeHybrid, Candidates: []catalog.Candidate{}}
	if q.Normalized == "" {
		return batch, nil
	}

	var vecHits []catalog.VectorHit
	var kwHits []catalog.KeywordHit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vec, err := v.embedder.Embed(gctx, q.Normalized)
		if err != nil {
			return embeddingError(err)
		}
		hits, err := v.store.SimilaritySearch(gctx, vec, v.pool)
		if err != nil {
			return searchError("vector search", err)
		}
		vecHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := v.store.KeywordSearch(gctx, q.Normalized, v.pool)
		if err != nil {
			return searchError("keyword search", err)
		}
		kwHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged, order := merge(vecHits, kwHits)
	if len(order) == 0 {
		return batch, nil
	}

	entries, err := v.store.GetMany(ctx, order)
	if err != nil {
		return nil, searchError("load candidates", err)
	}
	for _, id := range order {
		e, ok := entries[id]
		if !ok {
			// Index and table disagree; the row was removed after indexing.
			v.logger.Debug("dropping stale index hit", slog.String("id", id))
			continue
		}
		c := merged[id]
		c.RawTitle = e.Title
		if e.Year > 0 {
			y := e.Year
			c.YearHint = &y
		}
		batch.Candidates = append(batch.Candidates, *c)
	}
	return batch, nil
}

// merge unions hits by catalog ID. Vector hits come first in distance
// order, then keyword-only hits in rank order. A missing signal is 0.
func merge(vecHits []catalog.VectorHit, kwHits []catalog.KeywordHit) (map[string]*catalog.Candidate, []string) {
	merged := make(map[string]*catalog.Candidate, len(vecHits)+len(kwHits))
	var order []string

	get := func(id string) *catalog.Candidate {
		if c, ok := merged[id]; ok {
			return c
		}
		zeroS, zeroK := 0.0, 0.0
		c := &catalog.Candidate{CatalogID: id, Similarity: &zeroS, KeywordRank: &zeroK}
		merged[id] = c
		order = append(order, id)
		return c
	}

	for _, h := range vecHits {
		c := get(h.ID)
		s := SimilarityFromDistance(h.Distance)
		if s > *c.Similarity {
			*c.Similarity = s
		}
		c.Source = catalog.SourceVector
	}
	for _, h := range kwHits {
		c := get(h.ID)
		if h.Rank > *c.KeywordRank {
			*c.KeywordRank = h.Rank
		}
		if c.Source == catalog.SourceVector {
			c.Source = catalog.SourceHybrid
		} else if c.Source == "" {
			c.Source = catalog.SourceKeyword
		}
	}
	return merged, order
}

// SimilarityFromDistance maps cosine distance in [0, 2] to similarity
// 1 - d clamped to [0, 1].
func SimilarityFromDistance(d float32) float64 {
	s := 1 - float64(d)
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

func embeddingError(err error) error {
	if _, ok := rverrors.As(err); ok {
		return err
	}
	return rverrors.EmbeddingFailed(err)
}

func searchError(op string, err error) error {
	if _, ok := rverrors.As(err); ok {
		return err
	}
	return rverrors.New(rverrors.ErrCodeSearchFailed, op+" failed", err)
}
