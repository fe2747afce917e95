package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/reelvibe/internal/candidate"
	"github.com/Aman-CERP/reelvibe/internal/catalog"
	rverrors "github.com/Aman-CERP/reelvibe/internal/errors"
	"github.com/Aman-CERP/reelvibe/internal/logging"
	"github.com/Aman-CERP/reelvibe/internal/query"
	"github.com/Aman-CERP/reelvibe/internal/telemetry"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Classifier turns raw text into a processed query.
type Classifier interface {
	Classify(ctx context.Context, raw string) (query.ProcessedQuery, error)
}

// Resolver reconciles candidates with the catalog, preserving order.
type Resolver interface {
	ResolveAll(ctx context.Context, cs []catalog.Candidate) ([]catalog.Resolved, error)
}

// Screener checks a query without recording it. *query.Classifier
// implements it; classifiers that do not are bypassed by Explain.
type Screener interface {
	Screen(ctx context.Context, raw string) (query.ProcessedQuery, error)
}

// Details fetches a catalog entry by ID.
type Details interface {
	Get(ctx context.Context, id string) (*catalog.Entry, error)
}

// Engine runs the search pipeline.
type Engine struct {
	classifier Classifier
	source     candidate.Source
	resolver   Resolver
	details    Details

	scorer    *Scorer
	explainer *Explainer
	rules     []RerankRule
	paginator Paginator
	logger    *slog.Logger
	metrics   *telemetry.Metrics
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithFusion sets the hybrid scoring tunables.
func WithFusion(cfg FusionConfig) EngineOption {
	return func(e *Engine) {
		e.scorer = NewScorer(cfg)
	}
}

// WithRules replaces the re-rank rules. An empty list orders by score only.
func WithRules(rules []RerankRule) EngineOption {
	return func(e *Engine) {
		e.rules = rules
	}
}

// WithExplainer sets the explainer used by Explain. The default writes
// the fixed sentence only.
func WithExplainer(x *Explainer) EngineOption {
	return func(e *Engine) {
		e.explainer = x
	}
}

// WithLimits sets the default and maximum page size.
func WithLimits(defaultLimit, maxLimit int) EngineOption {
	return func(e *Engine) {
		e.paginator = Paginator{DefaultLimit: defaultLimit, MaxLimit: maxLimit}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *telemetry.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates a search engine.
func NewEngine(classifier Classifier, source candidate.Source, resolver Resolver, details Details, opts ...EngineOption) (*Engine, error) {
	if classifier == nil {
		return nil, fmt.Errorf("%w: classifier is required", ErrNilDependency)
	}
	if source == nil {
		return nil, fmt.Errorf("%w: candidate source is required", ErrNilDependency)
	}
	if resolver == nil {
		return nil, fmt.Errorf("%w: resolver is required", ErrNilDependency)
	}
	if details == nil {
		return nil, fmt.Errorf("%w: catalog is required", ErrNilDependency)
	}

	e := &Engine{
		classifier: classifier,
		source:     source,
		resolver:   resolver,
		details:    details,
		scorer:     NewScorer(DefaultFusionConfig()),
		rules:      DefaultRules(),
		paginator:  Paginator{DefaultLimit: DefaultLimit, MaxLimit: MaxLimit},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.explainer == nil {
		e.explainer = NewExplainer(WithExplainLogger(e.logger), WithExplainMetrics(e.metrics))
	}
	return e, nil
}

// Search answers one query. Blocked and low-signal queries are answered,
// not failed; errors mean the catalog, an index or the embedder failed.
func (e *Engine) Search(ctx context.Context, raw string, limit, offset int) (*Response, error) {
	start := time.Now()
	reqID := uuid.NewString()
	log := e.logger.With(slog.String("request_id", reqID))

	q, err := e.classifier.Classify(ctx, raw)
	if err != nil {
		return nil, err
	}
	log.Info(logging.EventSearchStarted,
		slog.String("query_hash", q.Hash),
		slog.String("intent", string(q.Intent)),
		slog.Int("limit", limit),
		slog.Int("offset", offset))

	resp := &Response{RequestID: reqID, Query: q, Results: []ScoredResult{}}

	if q.Intent == query.IntentBlocked {
		resp.Rejected = true
		resp.Reason = q.Reason
		resp.Limit = limit
		log.Info(logging.EventSearchRejected,
			slog.String("query_hash", q.Hash),
			slog.String("reason", q.Reason))
		return resp, nil
	}

	batch, err := e.candidates(ctx, q)
	if err != nil {
		return nil, e.fail(ctx, log, err)
	}

	resolved, err := e.resolver.ResolveAll(ctx, batch.Candidates)
	if err != nil {
		return nil, e.fail(ctx, log, err)
	}

	ranked := e.scorer.Score(batch.Regime, Dedup(resolved), q)
	rule := Rank(ranked, q.Normalized, e.rules)
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	page := e.paginator.Paginate(ranked, offset, limit)
	resp.Regime = batch.Regime
	resp.Results = page.Items
	resp.Total = page.Total
	resp.Offset = page.Offset
	resp.Limit = page.Limit
	resp.Fallback = batch.Fallback
	resp.FromCache = batch.FromCache

	elapsed := time.Since(start)
	e.metrics.ObserveSearch(string(batch.Regime), elapsed)
	log.Info(logging.EventSearchCompleted,
		slog.String("query_hash", q.Hash),
		slog.String("regime", string(batch.Regime)),
		slog.String("rerank", rule),
		slog.Bool("fallback", batch.Fallback),
		slog.Int("total", page.Total),
		slog.Int("returned", len(page.Items)),
		slog.Duration("duration", elapsed))
	return resp, nil
}

func (e *Engine) candidates(ctx context.Context, q query.ProcessedQuery) (*candidate.Batch, error) {
	if q.Intent == query.IntentLowSignal {
		return &candidate.Batch{
			Regime:     candidate.RegimeGenerative,
			Candidates: candidate.HardFallback(),
			Fallback:   true,
		}, nil
	}
	batch, err := e.source.Candidates(ctx, q)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, rverrors.New(rverrors.ErrCodeSearchFailed, "candidate source returned no batch", nil)
	}
	return batch, nil
}

func (e *Engine) fail(ctx context.Context, log *slog.Logger, err error) error {
	code := rverrors.GetCode(err)
	if code == "" {
		code = "unknown"
	}
	e.metrics.RecordSearchError(code)
	log.LogAttrs(ctx, slog.LevelError, logging.EventSearchFailed, rverrors.FormatForLog(err)...)
	return err
}

// Details returns the catalog entry for id without its embedding.
func (e *Engine) Details(ctx context.Context, id string) (*catalog.Entry, error) {
	if id == "" {
		return nil, rverrors.ValidationError("movie id is required", nil)
	}
	entry, err := e.details.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out := *entry
	out.Embedding = nil
	return &out, nil
}

// Explain says why the catalog film id fits raw. Blocked and empty
// queries are rejected; a failing model falls back to a fixed sentence,
// so errors otherwise come only from the catalog.
func (e *Engine) Explain(ctx context.Context, raw, id string) (*Explanation, error) {
	if id == "" {
		return nil, rverrors.ValidationError("movie id is required", nil)
	}

	q, err := e.screen(ctx, raw)
	if err != nil {
		return nil, err
	}
	switch q.Intent {
	case query.IntentBlocked:
		return nil, rverrors.New(rverrors.ErrCodeInvalidQuery, "query rejected: "+q.Reason, nil)
	case query.IntentLowSignal:
		return nil, rverrors.New(rverrors.ErrCodeInvalidQuery, "query is too short to explain a match", nil).
			WithSuggestion("describe the mood or theme you searched for")
	}

	entry, err := e.details.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.explainer.Explain(ctx, q, *entry), nil
}

func (e *Engine) screen(ctx context.Context, raw string) (query.ProcessedQuery, error) {
	if s, ok := e.classifier.(Screener); ok {
		return s.Screen(ctx, raw)
	}
	if err := ctx.Err(); err != nil {
		return query.ProcessedQuery{}, err
	}
	n := query.Normalize(raw)
	q := query.ProcessedQuery{Original: raw, Normalized: n, Hash: query.Hash(n), Intent: query.IntentValid}
	if len(n) < 2 {
		q.Intent = query.IntentLowSignal
	}
	return q, nil
}
