package search

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/reelvibe/internal/candidate"
	"github.com/Aman-CERP/reelvibe/internal/catalog"
	rverrors "github.com/Aman-CERP/reelvibe/internal/errors"
	"github.com/Aman-CERP/reelvibe/internal/query"
	"github.com/Aman-CERP/reelvibe/internal/telemetry"
)

// --- Test Helpers ---

type stubSource struct {
	batch *candidate.Batch
	err   error
	calls atomic.Int32
}

func (s *stubSource) Candidates(context.Context, query.ProcessedQuery) (*candidate.Batch, error) {
	s.calls.Add(1)
	return s.batch, s.err
}

type flaggingChecker struct{}

func (flaggingChecker) Check(context.Context, string) (query.Verdict, error) {
	return query.Verdict{Flagged: true, Categories: []string{"violence"}}, nil
}

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string) (string, error) {
	return "", rverrors.Upstream("generator", errors.New("connection refused"))
}

func (failingGenerator) Name() string { return "failing" }

type brokenResolver struct{}

func (brokenResolver) ResolveAll(context.Context, []catalog.Candidate) ([]catalog.Resolved, error) {
	return nil, rverrors.CatalogUnavailable("find", errors.New("disk I/O error"))
}

func newTestClassifier(t *testing.T, opts ...query.ClassifierOption) *query.Classifier {
	t.Helper()
	recent, err := query.NewMemoryRecentCache(64)
	require.NoError(t, err)
	c, err := query.NewClassifier(recent, opts...)
	require.NoError(t, err)
	return c
}

func newTestEngine(t *testing.T, source candidate.Source, entries []catalog.Entry, opts ...EngineOption) *Engine {
	t.Helper()
	store, resolver := newTestCatalog(t, entries...)
	e, err := NewEngine(newTestClassifier(t), source, resolver, store, opts...)
	require.NoError(t, err)
	return e
}

func generatedBatch(n int) *candidate.Batch {
	cands := make([]catalog.Candidate, n)
	for i := range cands {
		cands[i] = catalog.Candidate{
			RawTitle:   fmt.Sprintf("Imagined Film %02d", i+1),
			YearHint:   intp(1990 + i),
			Confidence: floatp(float64(95 - i)),
			Source:     catalog.SourceGenerator,
		}
	}
	return &candidate.Batch{Regime: candidate.RegimeGenerative, Candidates: cands}
}

func sciFiCatalog() []catalog.Entry {
	return []catalog.Entry{
		{ID: "alien", Title: "Alien", Year: 1979, Rating: 8.5, Popularity: 60},
		{ID: "moon", Title: "Moon", Year: 2009, Rating: 7.9, Popularity: 20},
		{ID: "arrival", Title: "Arrival", Year: 2016, Rating: 7.9, Popularity: 70},
		{ID: "br2049", Title: "Blade Runner 2049", Year: 2017, Rating: 8.0, Popularity: 90},
	}
}

func sciFiBatch() *candidate.Batch {
	hit := func(id string, sim float64) catalog.Candidate {
		return catalog.Candidate{CatalogID: id, Similarity: floatp(sim), Source: catalog.SourceVector}
	}
	return &candidate.Batch{
		Regime: candidate.RegimeHybrid,
		Candidates: []catalog.Candidate{
			hit("br2049", 0.59),
			hit("moon", 0.58),
			hit("alien", 0.55),
			hit("arrival", 0.52),
		},
	}
}

// --- TS01: constructor ---

func TestNewEngine_NilDependencies(t *testing.T) {
	store, resolver := newTestCatalog(t)
	c := newTestClassifier(t)
	src := &stubSource{}

	_, err := NewEngine(nil, src, resolver, store)
	assert.ErrorIs(t, err, ErrNilDependency)
	_, err = NewEngine(c, nil, resolver, store)
	assert.ErrorIs(t, err, ErrNilDependency)
	_, err = NewEngine(c, src, nil, store)
	assert.ErrorIs(t, err, ErrNilDependency)
	_, err = NewEngine(c, src, resolver, nil)
	assert.ErrorIs(t, err, ErrNilDependency)
}

// --- TS02: pagination ---

func TestEngine_PaginationMatchesFullRanking(t *testing.T) {
	// Given: a source producing 45 generated titles
	src := &stubSource{batch: generatedBatch(45)}
	e := newTestEngine(t, src, nil)
	ctx := context.Background()

	// When: fetching the first page, then the second page of the same query
	first, err := e.Search(ctx, "moody neo noir thrillers", 40, 0)
	require.NoError(t, err)
	second, err := e.Search(ctx, "moody neo noir thrillers", 20, 20)
	require.NoError(t, err)

	// Then: page two is ranks 21..40 of the full ranking
	assert.Equal(t, query.IntentValid, first.Query.Intent)
	assert.Equal(t, query.IntentRepeat, second.Query.Intent)
	require.Len(t, first.Results, 40)
	require.Len(t, second.Results, 20)
	assert.Equal(t, first.Results[20:40], second.Results)
	assert.Equal(t, 21, second.Results[0].Rank)
	assert.Equal(t, 45, second.Total)
	assert.Equal(t, 20, second.Offset)
}

func TestEngine_OffsetPastEndIsEmpty(t *testing.T) {
	e := newTestEngine(t, &stubSource{batch: generatedBatch(5)}, nil)

	resp, err := e.Search(context.Background(), "quiet character study", 20, 50)

	require.NoError(t, err)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 5, resp.Total)
}

func TestEngine_DefaultLimit(t *testing.T) {
	e := newTestEngine(t, &stubSource{batch: generatedBatch(25)}, nil)

	resp, err := e.Search(context.Background(), "slow cinema", 0, 0)

	require.NoError(t, err)
	assert.Len(t, resp.Results, DefaultLimit)
	assert.Equal(t, DefaultLimit, resp.Limit)
}

// --- TS03: intents ---

func TestEngine_BlockedIsRejected(t *testing.T) {
	store, resolver := newTestCatalog(t)
	src := &stubSource{batch: generatedBatch(3)}
	e, err := NewEngine(newTestClassifier(t, query.WithSafetyChecker(flaggingChecker{})), src, resolver, store)
	require.NoError(t, err)

	resp, err := e.Search(context.Background(), "something awful", 20, 0)

	require.NoError(t, err)
	assert.True(t, resp.Rejected)
	assert.Contains(t, resp.Reason, "violence")
	assert.Empty(t, resp.Results)
	assert.Zero(t, src.calls.Load())
	assert.NotEmpty(t, resp.RequestID)
}

func TestEngine_LowSignalServesFallback(t *testing.T) {
	src := &stubSource{batch: generatedBatch(3)}
	e := newTestEngine(t, src, []catalog.Entry{{ID: "inc", Title: "Inception", Year: 2010, Rating: 8.8}})

	resp, err := e.Search(context.Background(), "!!", 20, 0)

	require.NoError(t, err)
	assert.Equal(t, query.IntentLowSignal, resp.Query.Intent)
	assert.True(t, resp.Fallback)
	assert.Equal(t, candidate.RegimeGenerative, resp.Regime)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "Inception", resp.Results[0].Title)
	assert.True(t, resp.Results[0].Verified)
	assert.Equal(t, "90%", resp.Results[0].Display)
	assert.False(t, resp.Results[1].Verified)
	assert.Zero(t, src.calls.Load())
}

// --- TS04: fallback guarantee ---

func TestEngine_GenerationFailureStillAnswers(t *testing.T) {
	// Given: an LLM source whose generator always fails
	source, err := candidate.NewLLMSource(failingGenerator{}, candidate.WithRetry(rverrors.RetryConfig{MaxRetries: 0}))
	require.NoError(t, err)
	e := newTestEngine(t, source, nil)

	// When: searching a perfectly valid query
	resp, err := e.Search(context.Background(), "mind bending dream heist", 20, 0)

	// Then: the hard fallback set is served instead of an error
	require.NoError(t, err)
	assert.True(t, resp.Fallback)
	assert.NotEmpty(t, resp.Results)
	for _, r := range resp.Results {
		assert.LessOrEqual(t, r.Score, MaxScore)
	}
}

// --- TS05: re-rank ---

func TestEngine_BestSciFiSortsByRating(t *testing.T) {
	e := newTestEngine(t, &stubSource{batch: sciFiBatch()}, sciFiCatalog())

	resp, err := e.Search(context.Background(), "best sci-fi movies", 20, 0)

	require.NoError(t, err)
	require.Len(t, resp.Results, 4)
	ids := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		ids[i] = r.ID
	}
	// Moon and Arrival tie on rating; Moon scores higher.
	assert.Equal(t, []string{"alien", "br2049", "moon", "arrival"}, ids)
	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, resp.Results[i-1].Entry.Rating, resp.Results[i].Entry.Rating)
	}
}

func TestEngine_HybridWithoutRuleSortsByScore(t *testing.T) {
	e := newTestEngine(t, &stubSource{batch: sciFiBatch()}, sciFiCatalog())

	resp, err := e.Search(context.Background(), "lonely space stories", 20, 0)

	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, resp.Results[i-1].Score, resp.Results[i].Score)
	}
	for _, r := range resp.Results {
		assert.GreaterOrEqual(t, r.Score, 0.40)
		assert.Nil(t, r.Entry.Embedding)
	}
	assert.Equal(t, candidate.RegimeHybrid, resp.Regime)
}

// --- TS06: infrastructure errors ---

func TestEngine_SourceErrorIsReturned(t *testing.T) {
	m := telemetry.NewForTest()
	src := &stubSource{err: rverrors.EmbeddingFailed(errors.New("model not loaded"))}
	e := newTestEngine(t, src, nil, WithMetrics(m))

	_, err := e.Search(context.Background(), "space opera epics", 20, 0)

	require.Error(t, err)
	assert.Equal(t, rverrors.ErrCodeEmbeddingFailed, rverrors.GetCode(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Counter("search_errors", rverrors.ErrCodeEmbeddingFailed)))
}

func TestEngine_CatalogErrorIsReturned(t *testing.T) {
	store, _ := newTestCatalog(t)
	e, err := NewEngine(newTestClassifier(t), &stubSource{batch: generatedBatch(2)}, brokenResolver{}, store)
	require.NoError(t, err)

	_, err = e.Search(context.Background(), "space opera epics", 20, 0)

	require.Error(t, err)
	assert.Equal(t, rverrors.ErrCodeCatalogUnavailable, rverrors.GetCode(err))
}

func TestEngine_CancelledContext(t *testing.T) {
	e := newTestEngine(t, &stubSource{batch: generatedBatch(2)}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Search(ctx, "space opera epics", 20, 0)

	assert.ErrorIs(t, err, context.Canceled)
}

// --- TS07: details ---

func TestEngine_Details(t *testing.T) {
	e := newTestEngine(t, &stubSource{}, sciFiCatalog())
	ctx := context.Background()

	got, err := e.Details(ctx, "alien")
	require.NoError(t, err)
	assert.Equal(t, "Alien", got.Title)
	assert.Nil(t, got.Embedding)

	_, err = e.Details(ctx, "missing")
	assert.Equal(t, rverrors.ErrCodeMovieNotFound, rverrors.GetCode(err))

	_, err = e.Details(ctx, "")
	assert.Equal(t, rverrors.ErrCodeInvalidInput, rverrors.GetCode(err))
}
