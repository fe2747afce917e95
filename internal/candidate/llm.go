package candidate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/reelvibe/internal/catalog"
	rverrors "github.com/Aman-CERP/reelvibe/internal/errors"
	"github.com/Aman-CERP/reelvibe/internal/logging"
	"github.com/Aman-CERP/reelvibe/internal/query"
	"github.com/Aman-CERP/reelvibe/internal/telemetry"
)

// DefaultAttemptTimeout bounds one generator call.
const DefaultAttemptTimeout = 20 * time.Second

// LLMSource asks a Generator for titles. Generation problems never reach
// the caller: they end in the hard fallback list.
type LLMSource struct {
	gen     Generator
	cache   GenerationCache
	breaker *rverrors.CircuitBreaker
	retry   rverrors.RetryConfig
	timeout time.Duration
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// LLMOption configures an LLMSource.
type LLMOption func(*LLMSource)

// WithGenerationCache sets the result cache. Without one every query
// calls the generator.
func WithGenerationCache(c GenerationCache) LLMOption {
	return func(s *LLMSource) { s.cache = c }
}

// WithCircuitBreaker replaces the default breaker.
func WithCircuitBreaker(cb *rverrors.CircuitBreaker) LLMOption {
	return func(s *LLMSource) {
		if cb != nil {
			s.breaker = cb
		}
	}
}

// WithRetry sets the retry policy for generator calls.
func WithRetry(cfg rverrors.RetryConfig) LLMOption {
	return func(s *LLMSource) { s.retry = cfg }
}

// WithAttemptTimeout bounds each generator attempt.
func WithAttemptTimeout(d time.Duration) LLMOption {
	return func(s *LLMSource) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLLMLogger sets the logger.
func WithLLMLogger(l *slog.Logger) LLMOption {
	return func(s *LLMSource) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLLMMetrics sets the metrics sink.
func WithLLMMetrics(m *telemetry.Metrics) LLMOption {
	return func(s *LLMSource) { s.metrics = m }
}

// NewLLMSource creates a source over gen.
func NewLLMSource(gen Generator, opts ...LLMOption) (*LLMSource, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	s := &LLMSource{
		gen:     gen,
		breaker: rverrors.NewCircuitBreaker("generator"),
		retry:   rverrors.DefaultRetryConfig(),
		timeout: DefaultAttemptTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Candidates implements Source. The error is always nil.
func (s *LLMSource) Candidates(ctx context.Context, q query.ProcessedQuery) (*Batch, error) {
	if q.Intent == query.IntentLowSignal {
		return s.fallback(q, "low signal query", OutcomeNone), nil
	}

	key := q.Hash
	if key == "" {
		key = query.Hash(q.Normalized)
	}

	if cands, ok := s.cached(ctx, key, q); ok {
		return &Batch{Regime: RegimeGenerative, Candidates: cands, FromCache: true}, nil
	}

	raw, err := s.generate(ctx, q.Normalized)
	if err != nil {
		s.metrics.RecordGeneration(telemetry.GenerationError)
		s.logger.Warn(logging.EventGenerationFallback,
			slog.String("query_hash", key),
			slog.String("generator", s.gen.Name()),
			slog.String("error", err.Error()))
		return s.fallback(q, "generator error", OutcomeNone), nil
	}

	res := ParseCandidates(raw)
	switch res.Outcome {
	case OutcomeFailed:
		s.metrics.RecordGeneration(telemetry.GenerationFailed)
		s.logger.Warn(logging.EventGenerationFallback,
			slog.String("query_hash", key),
			slog.String("reason", res.Reason),
			slog.Int("dropped", res.Dropped))
		return s.fallback(q, res.Reason, OutcomeFailed), nil
	case OutcomeRepaired:
		s.metrics.RecordGeneration(telemetry.GenerationRepaired)
		s.logger.Info(logging.EventGenerationRepaired,
			slog.String("query_hash", key),
			slog.Int("titles", len(res.Candidates)))
	default:
		s.metrics.RecordGeneration(telemetry.GenerationOK)
	}

	s.store(ctx, key, res.Candidates)
	return &Batch{Regime: RegimeGenerative, Candidates: res.Candidates, Repair: res.Outcome}, nil
}

func (s *LLMSource) generate(ctx context.Context, normalized string) (string, error) {
	return rverrors.CircuitExecuteWithResult(s.breaker, func() (string, error) {
		return rverrors.RetryWithResult(ctx, s.retry, func() (string, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			return s.gen.Generate(attemptCtx, normalized)
		})
	}, nil)
}

// cached returns a validated cache entry. Entries that no longer validate
// are deleted and reported as a miss.
func (s *LLMSource) cached(ctx context.Context, key string, q query.ProcessedQuery) ([]catalog.Candidate, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("generation cache read failed", slog.String("error", err.Error()))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	items, decoded := decodeTitles(data)
	var res ParseResult
	if decoded {
		res = build(items, OutcomeOk)
	}
	if !decoded || res.Outcome == OutcomeFailed || res.Dropped > 0 {
		s.metrics.RecordGeneration(telemetry.GenerationInvalid)
		s.logger.Warn(logging.EventGenerationCacheInvalid, slog.String("query_hash", key))
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Warn("generation cache delete failed", slog.String("error", err.Error()))
		}
		return nil, false
	}

	s.metrics.RecordGeneration(telemetry.GenerationCacheHit)
	s.logger.Debug(logging.EventGenerationCacheHit,
		slog.String("query_hash", key),
		slog.String("intent", string(q.Intent)))
	return res.Candidates, true
}

func (s *LLMSource) store(ctx context.Context, key string, cands []catalog.Candidate) {
	if s.cache == nil {
		return
	}
	films := make([]Film, len(cands))
	for i, c := range cands {
		films[i] = Film{Title: c.RawTitle, Year: c.YearHint, Confidence: c.Confidence}
	}
	data, err := json.Marshal(films)
	if err != nil {
		return
	}
	if err := s.cache.PutIfAbsent(ctx, key, data); err != nil {
		s.logger.Warn("generation cache write failed", slog.String("error", err.Error()))
	}
}

func (s *LLMSource) fallback(q query.ProcessedQuery, reason string, outcome Outcome) *Batch {
	s.logger.Debug("serving hard fallback",
		slog.String("reason", reason),
		slog.String("intent", string(q.Intent)))
	return &Batch{
		Regime:     RegimeGenerative,
		Candidates: HardFallback(),
		Fallback:   true,
		Repair:     outcome,
	}
}
