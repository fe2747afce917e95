package query

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/Aman-CERP/reelvibe/internal/logging"
	"github.com/Aman-CERP/reelvibe/internal/telemetry"
)

// DefaultSafetyTimeout is the soft deadline for the safety check.
const DefaultSafetyTimeout = 500 * time.Millisecond

var yearToken = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// Classifier applies the intent rules in order: BLOCKED, REPEAT,
// LOW_SIGNAL, VALID, VAGUE_BUT_SALVAGEABLE.
type Classifier struct {
	recent        RecentQueryCache
	safety        SafetyChecker
	safetyTimeout time.Duration
	logger        *slog.Logger
	metrics       *telemetry.Metrics
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithSafetyChecker sets the safety checker. The default passes everything.
func WithSafetyChecker(s SafetyChecker) ClassifierOption {
	return func(c *Classifier) {
		if s != nil {
			c.safety = s
		}
	}
}

// WithSafetyTimeout sets the soft deadline for the safety check.
func WithSafetyTimeout(d time.Duration) ClassifierOption {
	return func(c *Classifier) {
		if d > 0 {
			c.safetyTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClassifierOption {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *telemetry.Metrics) ClassifierOption {
	return func(c *Classifier) { c.metrics = m }
}

// NewClassifier creates a Classifier. recent is required.
func NewClassifier(recent RecentQueryCache, opts ...ClassifierOption) (*Classifier, error) {
	if recent == nil {
		return nil, fmt.Errorf("recent query cache is required")
	}
	c := &Classifier{
		recent:        recent,
		safety:        NoopChecker{},
		safetyTimeout: DefaultSafetyTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Classify normalizes raw and assigns an intent. It returns an error only
// when ctx is already done; safety and cache failures are logged and the
// query is let through.
func (c *Classifier) Classify(ctx context.Context, raw string) (ProcessedQuery, error) {
	if err := ctx.Err(); err != nil {
		return ProcessedQuery{}, err
	}

	normalized := Normalize(raw)
	q := ProcessedQuery{
		Original:   raw,
		Normalized: normalized,
		Hash:       Hash(normalized),
	}

	if normalized != "" {
		verdict, degraded := c.checkSafety(ctx, raw, q.Hash)
		q.SafetyDegraded = degraded
		if verdict.Flagged {
			q.Intent = IntentBlocked
			q.Reason = blockedReason(verdict)
			return c.done(q), nil
		}
	}

	// Low-signal hashes are never inserted, so they can never be REPEAT.
	if len(normalized) < 2 {
		q.Intent = IntentLowSignal
		q.Reason = "query too short"
		return c.done(q), nil
	}

	added, err := c.recent.AddIfAbsent(ctx, q.Hash)
	if err != nil {
		c.logger.Warn(logging.EventRecentCacheDegraded,
			slog.String("query_hash", q.Hash),
			slog.String("error", err.Error()))
		added = true
	}
	if !added {
		q.Intent = IntentRepeat
		q.Reason = "repeat query"
		return c.done(q), nil
	}

	shape(&q)
	return c.done(q), nil
}

// Screen normalizes raw and applies only the safety and length rules. The
// recent-query cache is left untouched, so screening a query never turns
// a later search for it into a REPEAT.
func (c *Classifier) Screen(ctx context.Context, raw string) (ProcessedQuery, error) {
	if err := ctx.Err(); err != nil {
		return ProcessedQuery{}, err
	}

	normalized := Normalize(raw)
	q := ProcessedQuery{Original: raw, Normalized: normalized, Hash: Hash(normalized)}
	if len(normalized) < 2 {
		q.Intent = IntentLowSignal
		q.Reason = "query too short"
		return q, nil
	}

	verdict, degraded := c.checkSafety(ctx, raw, q.Hash)
	q.SafetyDegraded = degraded
	if verdict.Flagged {
		q.Intent = IntentBlocked
		q.Reason = blockedReason(verdict)
		return q, nil
	}
	shape(&q)
	return q, nil
}

// shape assigns VALID or VAGUE_BUT_SALVAGEABLE to an admitted query.
func shape(q *ProcessedQuery) {
	if yearToken.MatchString(q.Normalized) || len(strings.Fields(q.Normalized)) > 1 {
		q.Intent = IntentValid
		return
	}
	q.Intent = IntentVague
	q.Reason = "single word query"
}

func blockedReason(v Verdict) string {
	if len(v.Categories) == 0 {
		return "flagged content"
	}
	return "flagged content: " + strings.Join(v.Categories, ", ")
}

func (c *Classifier) done(q ProcessedQuery) ProcessedQuery {
	c.metrics.RecordIntent(string(q.Intent))
	return q
}

// checkSafety runs the checker under the soft deadline. The deadline is
// enforced here even if the checker ignores its context.
func (c *Classifier) checkSafety(ctx context.Context, raw, hash string) (Verdict, bool) {
	cctx, cancel := context.WithTimeout(ctx, c.safetyTimeout)
	defer cancel()

	type result struct {
		v   Verdict
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := c.safety.Check(cctx, raw)
		ch <- result{v, err}
	}()

	var r result
	select {
	case r = <-ch:
	case <-cctx.Done():
		r.err = cctx.Err()
	}

	if r.err != nil {
		c.logger.Warn(logging.EventSafetyDegraded,
			slog.String("query_hash", hash),
			slog.String("reason", "check failed (skipped)"),
			slog.String("error", r.err.Error()))
		c.metrics.RecordSafety(telemetry.SafetyDegraded)
		return Verdict{}, true
	}

	if r.v.Flagged {
		c.metrics.RecordSafety(telemetry.SafetyFlagged)
	} else {
		c.metrics.RecordSafety(telemetry.SafetyClean)
	}
	return r.v, false
}
