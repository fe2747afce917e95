package candidate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/reelvibe/internal/catalog"
	"github.com/Aman-CERP/reelvibe/internal/embed"
	rverrors "github.com/Aman-CERP/reelvibe/internal/errors"
)

type stubRetriever struct {
	vec     []catalog.VectorHit
	kw      []catalog.KeywordHit
	entries map[string]catalog.Entry
	vecErr  error
	kwErr   error
}

func (s *stubRetriever) SimilaritySearch(context.Context, []float32, int) ([]catalog.VectorHit, error) {
	return s.vec, s.vecErr
}

func (s *stubRetriever) KeywordSearch(context.Context, string, int) ([]catalog.KeywordHit, error) {
	return s.kw, s.kwErr
}

func (s *stubRetriever) GetMany(_ context.Context, ids []string) (map[string]catalog.Entry, error) {
	out := make(map[string]catalog.Entry)
	for _, id := range ids {
		if e, ok := s.entries[id]; ok {
			out[id] = e
		}
	}
	return out, nil
}

type failingEmbedder struct{ embed.Embedder }

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, rverrors.Upstream("embedder", assert.AnError)
}

func TestSimilarityFromDistance(t *testing.T) {
	assert.Equal(t, 1.0, SimilarityFromDistance(0))
	assert.InDelta(t, 0.7, SimilarityFromDistance(0.3), 1e-6)
	assert.Equal(t, 0.0, SimilarityFromDistance(1.5))
	assert.Equal(t, 1.0, SimilarityFromDistance(-0.01))
}

func TestVectorSource_MergesSignals(t *testing.T) {
	r := &stubRetriever{
		vec: []catalog.VectorHit{{ID: "a", Distance: 0.2}, {ID: "b", Distance: 0.5}},
		kw:  []catalog.KeywordHit{{ID: "b", Rank: 0.4}, {ID: "c", Rank: 0.3}, {ID: "gone", Rank: 0.2}},
		entries: map[string]catalog.Entry{
			"a": {ID: "a", Title: "Alien", Year: 1979},
			"b": {ID: "b", Title: "Aliens", Year: 1986},
			"c": {ID: "c", Title: "The Thing"},
		},
	}
	s, err := NewVectorSource(embed.NewStaticEmbedder(), r, 10, nil)
	require.NoError(t, err)

	b, err := s.Candidates(context.Background(), validQuery("space horror"))
	require.NoError(t, err)
	assert.Equal(t, RegimeHybrid, b.Regime)
	require.Len(t, b.Candidates, 3)

	a, bb, c := b.Candidates[0], b.Candidates[1], b.Candidates[2]
	assert.Equal(t, "Alien", a.RawTitle)
	assert.Equal(t, 1979, *a.YearHint)
	assert.InDelta(t, 0.8, *a.Similarity, 1e-6)
	assert.Equal(t, 0.0, *a.KeywordRank)
	assert.Equal(t, catalog.SourceVector, a.Source)

	assert.Equal(t, catalog.SourceHybrid, bb.Source)
	assert.InDelta(t, 0.5, *bb.Similarity, 1e-6)
	assert.Equal(t, 0.4, *bb.KeywordRank)

	assert.Equal(t, "c", c.CatalogID)
	assert.Equal(t, 0.0, *c.Similarity)
	assert.Nil(t, c.YearHint)
	assert.Equal(t, catalog.SourceKeyword, c.Source)
}

func TestVectorSource_SurfacesFailures(t *testing.T) {
	t.Run("embedder", func(t *testing.T) {
		s, err := NewVectorSource(failingEmbedder{}, &stubRetriever{}, 10, nil)
		require.NoError(t, err)
		_, err = s.Candidates(context.Background(), validQuery("space horror"))
		assert.Equal(t, rverrors.ErrCodeNetworkUnavailable, rverrors.GetCode(err))
	})

	t.Run("keyword index", func(t *testing.T) {
		s, err := NewVectorSource(embed.NewStaticEmbedder(), &stubRetriever{kwErr: assert.AnError}, 10, nil)
		require.NoError(t, err)
		_, err = s.Candidates(context.Background(), validQuery("space horror"))
		assert.Equal(t, rverrors.ErrCodeSearchFailed, rverrors.GetCode(err))
	})
}

func TestVectorSource_AgainstCatalog(t *testing.T) {
	ctx := context.Background()
	emb := embed.NewStaticEmbedder()
	store, err := catalog.Open(ctx, catalog.Options{})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	entries := []catalog.Entry{
		{ID: "heat", Title: "Heat", Year: 1995, Overview: "bank robbers and a detective in los angeles", Tags: []string{"heist"}},
		{ID: "up", Title: "Up", Year: 2009, Overview: "an old man flies his house with balloons"},
	}
	_, err = catalog.Import(ctx, store, entries, emb)
	require.NoError(t, err)

	s, err := NewVectorSource(emb, store, 10, nil)
	require.NoError(t, err)

	b, err := s.Candidates(ctx, validQuery("heist with bank robbers"))
	require.NoError(t, err)
	require.NotEmpty(t, b.Candidates)
	assert.Equal(t, "heat", b.Candidates[0].CatalogID)
	assert.Greater(t, *b.Candidates[0].KeywordRank, 0.0)
}
