package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Aman-CERP/reelvibe/internal/candidate"
	"github.com/Aman-CERP/reelvibe/internal/catalog"
	"github.com/Aman-CERP/reelvibe/internal/embed"
	rverrors "github.com/Aman-CERP/reelvibe/internal/errors"
	"github.com/Aman-CERP/reelvibe/internal/logging"
	"github.com/Aman-CERP/reelvibe/internal/query"
	"github.com/Aman-CERP/reelvibe/internal/telemetry"
)

// DefaultExplainTimeout bounds one explanation attempt.
const DefaultExplainTimeout = 10 * time.Second

const (
	maxTropes       = 3
	fallbackTropes  = 2
	maxQueryTerms   = 5
	maxPlotSnapshot = 150

	// confidenceUnknown labels a match with no vector on either side.
	confidenceUnknown = "unknown"
)

const explainSystemPrompt = `You explain why a film fits a search for a mood, theme or vibe.

Use only the evidence in the message. Connect the film's tropes and atmosphere to what the searcher is after, name the specific elements that match, and say when someone searching for this would want to watch it.

Answer in two or three plain sentences. No lists, no headings, no surrounding quotation marks.`

// Grounding is the evidence an explanation is built from.
type Grounding struct {
	TopTropes []string `json:"top_tropes"`
	// SemanticMatch is the query-to-film similarity as a percentage, or
	// "n/a" when either side has no vector.
	SemanticMatch string   `json:"semantic_match"`
	Similarity    *float64 `json:"similarity,omitempty"`
	Confidence    string   `json:"confidence_level"`
	QueryTerms    []string `json:"query_terms"`
}

// Explanation says why one catalog film fits a query.
type Explanation struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Year       int       `json:"year,omitempty"`
	Query      string    `json:"query"`
	Text       string    `json:"explanation"`
	Grounding  Grounding `json:"grounding"`
	Confidence string    `json:"confidence"`
	// Generated is false when the fixed sentence was served instead of
	// model text.
	Generated bool `json:"generated"`
}

// VectorScorer compares a query vector with a stored film vector.
type VectorScorer interface {
	VectorDistance(ctx context.Context, id string, vec []float32) (float32, bool, error)
}

// Explainer writes grounded explanations. Without a completer, or when
// the completer fails, it answers with a fixed sentence built from the
// same grounding.
type Explainer struct {
	completer candidate.Completer
	embedder  embed.Embedder
	vectors   VectorScorer
	breaker   *rverrors.CircuitBreaker
	retry     rverrors.RetryConfig
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *telemetry.Metrics
}

// ExplainerOption configures an Explainer.
type ExplainerOption func(*Explainer)

// WithCompleter sets the model used to write explanations.
func WithCompleter(c candidate.Completer) ExplainerOption {
	return func(x *Explainer) { x.completer = c }
}

// WithQueryVectors enables the semantic match signal.
func WithQueryVectors(e embed.Embedder, v VectorScorer) ExplainerOption {
	return func(x *Explainer) {
		x.embedder = e
		x.vectors = v
	}
}

// WithExplainBreaker replaces the circuit breaker.
func WithExplainBreaker(cb *rverrors.CircuitBreaker) ExplainerOption {
	return func(x *Explainer) {
		if cb != nil {
			x.breaker = cb
		}
	}
}

// WithExplainRetry sets the retry policy for each explanation.
func WithExplainRetry(cfg rverrors.RetryConfig) ExplainerOption {
	return func(x *Explainer) { x.retry = cfg }
}

// WithExplainTimeout bounds each attempt.
func WithExplainTimeout(d time.Duration) ExplainerOption {
	return func(x *Explainer) {
		if d > 0 {
			x.timeout = d
		}
	}
}

// WithExplainLogger sets the logger.
func WithExplainLogger(l *slog.Logger) ExplainerOption {
	return func(x *Explainer) {
		if l != nil {
			x.logger = l
		}
	}
}

// WithExplainMetrics sets the metrics sink.
func WithExplainMetrics(m *telemetry.Metrics) ExplainerOption {
	return func(x *Explainer) { x.metrics = m }
}

// NewExplainer creates an Explainer. With no options it only writes the
// fixed sentence.
func NewExplainer(opts ...ExplainerOption) *Explainer {
	retry := rverrors.DefaultRetryConfig()
	retry.MaxRetries = 1
	x := &Explainer{
		breaker: rverrors.NewCircuitBreaker("explainer"),
		retry:   retry,
		timeout: DefaultExplainTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Explain explains why e fits q. It always answers.
func (x *Explainer) Explain(ctx context.Context, q query.ProcessedQuery, e catalog.Entry) *Explanation {
	g := x.ground(ctx, q, e)
	out := &Explanation{
		ID:         e.ID,
		Title:      e.Title,
		Year:       e.Year,
		Query:      displayQuery(q),
		Grounding:  g,
		Confidence: g.Confidence,
	}

	if x.completer == nil {
		out.Text = FallbackExplanation(out.Query, g)
		x.metrics.RecordExplanation(telemetry.ExplanationFallback)
		return out
	}

	text, err := x.complete(ctx, explainPrompt(out.Query, e, g))
	if err == nil {
		text = cleanExplanation(text)
		if text == "" {
			err = fmt.Errorf("empty explanation")
		}
	}
	if err != nil {
		x.logger.Warn(logging.EventExplainFallback,
			slog.String("query_hash", q.Hash),
			slog.String("id", e.ID),
			slog.String("error", err.Error()))
		x.metrics.RecordExplanation(telemetry.ExplanationFallback)
		out.Text = FallbackExplanation(out.Query, g)
		return out
	}

	x.metrics.RecordExplanation(telemetry.ExplanationGenerated)
	out.Text = text
	out.Generated = true
	return out
}

func (x *Explainer) complete(ctx context.Context, prompt string) (string, error) {
	return rverrors.CircuitExecuteWithResult(x.breaker, func() (string, error) {
		return rverrors.RetryWithResult(ctx, x.retry, func() (string, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, x.timeout)
			defer cancel()
			return x.completer.Complete(attemptCtx, explainSystemPrompt, prompt)
		})
	}, nil)
}

// ground collects the evidence for e. A missing or failing vector leaves
// the semantic signal unknown.
func (x *Explainer) ground(ctx context.Context, q query.ProcessedQuery, e catalog.Entry) Grounding {
	g := Grounding{
		TopTropes:     topTropes(e, maxTropes),
		SemanticMatch: "n/a",
		Confidence:    confidenceUnknown,
		QueryTerms:    queryTerms(q.Normalized, maxQueryTerms),
	}

	sim, ok := x.similarity(ctx, q, e.ID)
	if ok {
		g.Similarity = &sim
		g.SemanticMatch = DisplayScore(sim)
		g.Confidence = ConfidenceLabel(sim)
	}
	return g
}

func (x *Explainer) similarity(ctx context.Context, q query.ProcessedQuery, id string) (float64, bool) {
	if x.embedder == nil || x.vectors == nil || q.Normalized == "" {
		return 0, false
	}
	vec, err := x.embedder.Embed(ctx, q.Normalized)
	if err != nil {
		x.logger.Debug("explain: query embedding failed", slog.String("error", err.Error()))
		return 0, false
	}
	d, ok, err := x.vectors.VectorDistance(ctx, id, vec)
	if err != nil {
		x.logger.Debug("explain: vector lookup failed", slog.String("id", id), slog.String("error", err.Error()))
		return 0, false
	}
	if !ok {
		return 0, false
	}
	return candidate.SimilarityFromDistance(d), true
}

// FallbackExplanation is the fixed sentence served when no model text
// is available.
func FallbackExplanation(queryText string, g Grounding) string {
	var b strings.Builder
	if g.Confidence == confidenceUnknown {
		fmt.Fprintf(&b, "This film matches your query '%s' on its catalog metadata.", queryText)
	} else {
		fmt.Fprintf(&b, "This film matches your query '%s' through its %s semantic similarity.", queryText, g.Confidence)
	}
	if len(g.TopTropes) > 0 {
		n := min(len(g.TopTropes), fallbackTropes)
		fmt.Fprintf(&b, " Key elements: %s.", strings.Join(g.TopTropes[:n], ", "))
	}
	return b.String()
}

func explainPrompt(queryText string, e catalog.Entry, g Grounding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %q\n", queryText)
	if e.Year > 0 {
		fmt.Fprintf(&b, "Film: %q (%d)\n", e.Title, e.Year)
	} else {
		fmt.Fprintf(&b, "Film: %q\n", e.Title)
	}
	if e.Tagline != "" {
		fmt.Fprintf(&b, "Tagline: %q\n", e.Tagline)
	}
	if e.Archetype != "" {
		fmt.Fprintf(&b, "Archetype: %s\n", e.Archetype)
	}
	if len(g.TopTropes) > 0 {
		fmt.Fprintf(&b, "Key tropes: %s\n", strings.Join(g.TopTropes, ", "))
	}
	if len(e.Genres) > 0 {
		fmt.Fprintf(&b, "Genres: %s\n", strings.Join(e.Genres, ", "))
	}
	if plot := truncateRunes(strings.TrimSpace(e.Overview), maxPlotSnapshot); plot != "" {
		fmt.Fprintf(&b, "Plot snapshot: %q\n", plot)
	}
	fmt.Fprintf(&b, "Semantic match: %s (%s confidence)\n", g.SemanticMatch, g.Confidence)
	return b.String()
}

// topTropes prefers tags and falls back to genres.
func topTropes(e catalog.Entry, n int) []string {
	src := e.Tags
	if len(src) == 0 {
		src = e.Genres
	}
	out := make([]string, 0, min(len(src), n))
	for _, t := range src {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
		if len(out) == n {
			break
		}
	}
	return out
}

func queryTerms(normalized string, n int) []string {
	fields := strings.Fields(normalized)
	if len(fields) > n {
		fields = fields[:n]
	}
	return append([]string{}, fields...)
}

func displayQuery(q query.ProcessedQuery) string {
	if s := strings.Join(strings.Fields(q.Original), " "); s != "" {
		return s
	}
	return q.Normalized
}

// cleanExplanation trims whitespace and one pair of wrapping quotes.
func cleanExplanation(s string) string {
	s = strings.TrimSpace(s)
	for _, pair := range [][2]string{{`"`, `"`}, {"“", "”"}, {"'", "'"}} {
		if len(s) >= len(pair[0])+len(pair[1]) && strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) {
			s = strings.TrimSpace(s[len(pair[0]) : len(s)-len(pair[1])])
			break
		}
	}
	return s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
