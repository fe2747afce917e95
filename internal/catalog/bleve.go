package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
)

// bleveHalfScore is the bleve score treated as a middling match.
const bleveHalfScore = 1.0

type bleveDoc struct {
	Content string `json:"content"`
}

// BleveKeywordIndex is a KeywordIndex on bleve. It keeps its own
// directory next to the catalog database.
type BleveKeywordIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

// NewBleveKeywordIndex opens or creates the index at path. An empty path
// creates an in-memory index.
func NewBleveKeywordIndex(path string) (*BleveKeywordIndex, error) {
	m := bleve.NewIndexMapping()
	m.DefaultAnalyzer = en.AnalyzerName

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("create bleve dir: %w", mkErr)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, m)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}
	return &BleveKeywordIndex{index: idx}, nil
}

// Index implements KeywordIndex.
func (b *BleveKeywordIndex) Index(_ context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.index.NewBatch()
	for _, e := range entries {
		if err := batch.Index(e.ID, bleveDoc{Content: keywordDocument(e)}); err != nil {
			return fmt.Errorf("bleve index %s: %w", e.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("bleve batch: %w", err)
	}
	return nil
}

// Search implements KeywordIndex.
func (b *BleveKeywordIndex) Search(ctx context.Context, text string, limit int) ([]KeywordHit, error) {
	terms := keywordTerms(text)
	if len(terms) == 0 || limit <= 0 {
		return []KeywordHit{}, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	q := bleve.NewMatchQuery(strings.Join(terms, " "))
	q.SetField("content")
	req := bleve.NewSearchRequest(q)
	req.Size = limit

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	hits := make([]KeywordHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, KeywordHit{ID: h.ID, Score: h.Score, Rank: saturate(h.Score, bleveHalfScore)})
	}
	return hits, nil
}

// Close implements KeywordIndex.
func (b *BleveKeywordIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Close()
}
