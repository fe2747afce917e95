package search

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/reelvibe/internal/catalog"
	"github.com/Aman-CERP/reelvibe/internal/embed"
	rverrors "github.com/Aman-CERP/reelvibe/internal/errors"
	"github.com/Aman-CERP/reelvibe/internal/query"
	"github.com/Aman-CERP/reelvibe/internal/telemetry"
)

type stubCompleter struct {
	text   string
	err    error
	calls  atomic.Int32
	prompt atomic.Value
}

func (s *stubCompleter) Complete(_ context.Context, system, prompt string) (string, error) {
	s.calls.Add(1)
	s.prompt.Store(prompt)
	return s.text, s.err
}

func heatEntry() catalog.Entry {
	return catalog.Entry{
		ID:       "heat",
		Title:    "Heat",
		Year:     1995,
		Overview: "A group of professional bank robbers start to feel the heat from police when they unknowingly leave a clue at their latest heist.",
		Genres:   []string{"Crime", "Thriller"},
		Tags:     []string{"heist", "cat and mouse", "los angeles", "shootout"},
		Tagline:  "A Los Angeles crime saga",
	}
}

func failFast() rverrors.RetryConfig {
	return rverrors.RetryConfig{MaxRetries: 0}
}

// --- TS01: grounding ---

func TestExplainer_GroundingFields(t *testing.T) {
	// Given: a film whose stored vector equals the query's vector
	emb := embed.NewStaticEmbedderWithDimensions(64)
	e := heatEntry()
	vec, err := emb.Embed(context.Background(), "heist crew los angeles")
	require.NoError(t, err)
	e.Embedding = vec
	store, _ := newTestCatalog(t, e)

	x := NewExplainer(WithQueryVectors(emb, store))

	// When: explaining the match
	got := x.Explain(context.Background(), processed("Heist crew, Los Angeles!"), e)

	// Then: tropes, terms, similarity and confidence are all grounded
	assert.Equal(t, []string{"heist", "cat and mouse", "los angeles"}, got.Grounding.TopTropes)
	assert.Equal(t, []string{"heist", "crew", "los", "angeles"}, got.Grounding.QueryTerms)
	require.NotNil(t, got.Grounding.Similarity)
	assert.InDelta(t, 1.0, *got.Grounding.Similarity, 1e-4)
	assert.Equal(t, DisplayScore(*got.Grounding.Similarity), got.Grounding.SemanticMatch)
	assert.Equal(t, "high", got.Grounding.Confidence)
	assert.Equal(t, got.Grounding.Confidence, got.Confidence)
	assert.Equal(t, "heat", got.ID)
	assert.Equal(t, 1995, got.Year)
}

func TestExplainer_NoVectorIsUnknown(t *testing.T) {
	e := heatEntry()
	store, _ := newTestCatalog(t, e)
	x := NewExplainer(WithQueryVectors(embed.NewStaticEmbedderWithDimensions(64), store))

	got := x.Explain(context.Background(), processed("heist"), e)

	assert.Nil(t, got.Grounding.Similarity)
	assert.Equal(t, "n/a", got.Grounding.SemanticMatch)
	assert.Equal(t, "unknown", got.Confidence)
}

func TestExplainer_TropesFallBackToGenres(t *testing.T) {
	e := catalog.Entry{ID: "m", Title: "Moon", Genres: []string{"Science Fiction", "Drama"}}

	got := NewExplainer().Explain(context.Background(), processed("lonely space"), e)

	assert.Equal(t, []string{"Science Fiction", "Drama"}, got.Grounding.TopTropes)
}

func TestExplainer_QueryTermsCapped(t *testing.T) {
	got := NewExplainer().Explain(context.Background(), processed("slow burn heist crew night drive synth score"), heatEntry())

	assert.Equal(t, []string{"slow", "burn", "heist", "crew", "night"}, got.Grounding.QueryTerms)
}

// --- TS02: fallback sentence ---

func TestFallbackExplanation(t *testing.T) {
	tests := []struct {
		name string
		g    Grounding
		want string
	}{
		{
			name: "with confidence and tropes",
			g:    Grounding{Confidence: "medium", TopTropes: []string{"heist", "cat and mouse", "los angeles"}},
			want: "This film matches your query 'heist crew' through its medium semantic similarity. Key elements: heist, cat and mouse.",
		},
		{
			name: "unknown similarity",
			g:    Grounding{Confidence: "unknown", TopTropes: []string{"heist"}},
			want: "This film matches your query 'heist crew' on its catalog metadata. Key elements: heist.",
		},
		{
			name: "no tropes",
			g:    Grounding{Confidence: "low", TopTropes: []string{}},
			want: "This film matches your query 'heist crew' through its low semantic similarity.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FallbackExplanation("heist crew", tt.g))
		})
	}
}

func TestExplainer_NoCompleterUsesFallback(t *testing.T) {
	m := telemetry.NewForTest()
	x := NewExplainer(WithExplainMetrics(m))

	got := x.Explain(context.Background(), processed("  heist   crew "), heatEntry())

	assert.False(t, got.Generated)
	assert.Equal(t, "heist crew", got.Query)
	assert.Equal(t, FallbackExplanation("heist crew", got.Grounding), got.Text)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Counter("explanations", telemetry.ExplanationFallback)))
}

func TestExplainer_CompleterFailureFallsBack(t *testing.T) {
	c := &stubCompleter{err: rverrors.Upstream("generator", errors.New("connection refused"))}
	x := NewExplainer(WithCompleter(c), WithExplainRetry(failFast()))

	got := x.Explain(context.Background(), processed("heist crew"), heatEntry())

	assert.False(t, got.Generated)
	assert.Contains(t, got.Text, "This film matches your query 'heist crew'")
	assert.EqualValues(t, 1, c.calls.Load())
}

func TestExplainer_BlankCompletionFallsBack(t *testing.T) {
	x := NewExplainer(WithCompleter(&stubCompleter{text: ` "" `}), WithExplainRetry(failFast()))

	got := x.Explain(context.Background(), processed("heist crew"), heatEntry())

	assert.False(t, got.Generated)
	assert.NotEmpty(t, got.Text)
}

func TestExplainer_OpenCircuitSkipsCompleter(t *testing.T) {
	c := &stubCompleter{err: errors.New("boom")}
	cb := rverrors.NewCircuitBreaker("explainer", rverrors.WithMaxFailures(1))
	x := NewExplainer(WithCompleter(c), WithExplainBreaker(cb), WithExplainRetry(failFast()))

	x.Explain(context.Background(), processed("heist crew"), heatEntry())
	got := x.Explain(context.Background(), processed("heist crew"), heatEntry())

	assert.False(t, got.Generated)
	assert.EqualValues(t, 1, c.calls.Load())
}

// --- TS03: generated text ---

func TestExplainer_GeneratedText(t *testing.T) {
	m := telemetry.NewForTest()
	c := &stubCompleter{text: "\n\"A meticulous crew and a relentless cop make this the definitive LA heist.\"\n"}
	x := NewExplainer(WithCompleter(c), WithExplainMetrics(m))

	got := x.Explain(context.Background(), processed("heist crew"), heatEntry())

	assert.True(t, got.Generated)
	assert.Equal(t, "A meticulous crew and a relentless cop make this the definitive LA heist.", got.Text)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Counter("explanations", telemetry.ExplanationGenerated)))

	prompt, _ := c.prompt.Load().(string)
	assert.Contains(t, prompt, `Query: "heist crew"`)
	assert.Contains(t, prompt, `Film: "Heat" (1995)`)
	assert.Contains(t, prompt, "Key tropes: heist, cat and mouse, los angeles")
	assert.Contains(t, prompt, "Semantic match: n/a (unknown confidence)")
}

func TestCleanExplanation(t *testing.T) {
	assert.Equal(t, "Fits.", cleanExplanation(`  "Fits."  `))
	assert.Equal(t, "Fits.", cleanExplanation("“Fits.”"))
	assert.Equal(t, `He said "go".`, cleanExplanation(`He said "go".`))
	assert.Equal(t, "", cleanExplanation(`""`))
}

// --- TS04: engine ---

func TestEngine_Explain(t *testing.T) {
	e := newTestEngine(t, &stubSource{}, []catalog.Entry{heatEntry()})

	got, err := e.Explain(context.Background(), "heist crew", "heat")

	require.NoError(t, err)
	assert.Equal(t, "Heat", got.Title)
	assert.False(t, got.Generated)
	assert.NotEmpty(t, got.Text)
}

func TestEngine_ExplainDoesNotMarkRepeat(t *testing.T) {
	e := newTestEngine(t, &stubSource{batch: generatedBatch(1)}, []catalog.Entry{heatEntry()})
	ctx := context.Background()

	_, err := e.Explain(ctx, "heist crew", "heat")
	require.NoError(t, err)
	resp, err := e.Search(ctx, "heist crew", 10, 0)

	require.NoError(t, err)
	assert.Equal(t, query.IntentValid, resp.Query.Intent)
}

func TestEngine_ExplainRejects(t *testing.T) {
	store, resolver := newTestCatalog(t, heatEntry())
	blocking := newTestClassifier(t, query.WithSafetyChecker(flaggingChecker{}))
	e, err := NewEngine(blocking, &stubSource{}, resolver, store)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = e.Explain(ctx, "heist crew", "")
	assert.Equal(t, rverrors.ErrCodeInvalidInput, rverrors.GetCode(err))

	_, err = e.Explain(ctx, "!", "heat")
	assert.Equal(t, rverrors.ErrCodeInvalidQuery, rverrors.GetCode(err))

	_, err = e.Explain(ctx, "some flagged text", "heat")
	assert.Equal(t, rverrors.ErrCodeInvalidQuery, rverrors.GetCode(err))
}

func TestEngine_ExplainUnknownFilm(t *testing.T) {
	e := newTestEngine(t, &stubSource{}, nil)

	_, err := e.Explain(context.Background(), "heist crew", "nope")

	assert.Equal(t, rverrors.ErrCodeMovieNotFound, rverrors.GetCode(err))
}
