package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	rverrors "github.com/Aman-CERP/reelvibe/internal/errors"
	"github.com/Aman-CERP/reelvibe/internal/logging"
	"github.com/Aman-CERP/reelvibe/internal/query"
	"github.com/Aman-CERP/reelvibe/internal/telemetry"
)

const (
	DefaultFuzzyThreshold = 90
	DefaultYearTolerance  = 1
)

// Lookup is the catalog surface the resolver needs.
type Lookup interface {
	Get(ctx context.Context, id string) (*Entry, error)
	FindByTitle(ctx context.Context, title string) ([]Entry, error)
	Titles(ctx context.Context) ([]TitleRef, error)
}

// Resolver matches candidates to catalog entries: exact title and year,
// then year within tolerance, then title alone when no year is known,
// then fuzzy title similarity.
//
// A title shared by several catalog rows (a remake) resolves only on an
// exact year when the candidate carries a year.
type Resolver struct {
	lookup         Lookup
	similarity     Similarity
	fuzzyThreshold float64
	yearTolerance  int
	logger         *slog.Logger
	metrics        *telemetry.Metrics
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithSimilarity replaces the fuzzy matching strategy.
func WithSimilarity(s Similarity) ResolverOption {
	return func(r *Resolver) {
		if s != nil {
			r.similarity = s
		}
	}
}

// WithFuzzyThreshold sets the minimum similarity for a fuzzy match.
func WithFuzzyThreshold(t float64) ResolverOption {
	return func(r *Resolver) { r.fuzzyThreshold = t }
}

// WithYearTolerance sets the accepted year skew.
func WithYearTolerance(n int) ResolverOption {
	return func(r *Resolver) {
		if n >= 0 {
			r.yearTolerance = n
		}
	}
}

// WithResolverLogger sets the logger.
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithResolverMetrics sets the metrics sink.
func WithResolverMetrics(m *telemetry.Metrics) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

// NewResolver creates a Resolver over lookup.
func NewResolver(lookup Lookup, opts ...ResolverOption) (*Resolver, error) {
	if lookup == nil {
		return nil, fmt.Errorf("catalog lookup is required")
	}
	r := &Resolver{
		lookup:         lookup,
		similarity:     LevenshteinRatio{},
		fuzzyThreshold: DefaultFuzzyThreshold,
		yearTolerance:  DefaultYearTolerance,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve matches one candidate. Store failures are returned; a candidate
// that matches nothing is not an error.
func (r *Resolver) Resolve(ctx context.Context, c Candidate) (Resolved, error) {
	res, err := r.resolve(ctx, c)
	if err != nil {
		return Resolved{}, err
	}
	r.metrics.RecordResolution(string(res.Method))
	if !res.Verified {
		r.logger.Debug(logging.EventResolveUnverified, slog.String("title", c.RawTitle))
	}
	return res, nil
}

// ResolveAll resolves candidates in order.
func (r *Resolver) ResolveAll(ctx context.Context, cs []Candidate) ([]Resolved, error) {
	out := make([]Resolved, 0, len(cs))
	for _, c := range cs {
		res, err := r.Resolve(ctx, c)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (r *Resolver) resolve(ctx context.Context, c Candidate) (Resolved, error) {
	if c.CatalogID != "" {
		e, err := r.lookup.Get(ctx, c.CatalogID)
		if err != nil && rverrors.GetCode(err) != rverrors.ErrCodeMovieNotFound {
			return Resolved{}, err
		}
		if e != nil {
			return Resolved{Candidate: c, Entry: e, Verified: true, Method: MethodDirect}, nil
		}
	}

	title, parsedYear := ParseTitleYear(c.RawTitle)
	year := c.YearHint
	if year == nil {
		year = parsedYear
	}
	if query.Normalize(title) == "" {
		return unverified(c), nil
	}

	rows, err := r.lookup.FindByTitle(ctx, title)
	if err != nil {
		return Resolved{}, err
	}

	if len(rows) > 0 {
		if year == nil {
			return verified(c, mostPopular(rows), MethodTitleOnly), nil
		}
		if e := pick(rows, func(e Entry) bool { return e.Year == *year }); e != nil {
			return verified(c, *e, MethodExact), nil
		}
		if len(rows) == 1 && r.withinTolerance(rows[0].Year, *year) {
			return verified(c, rows[0], MethodYearTolerant), nil
		}
	}

	return r.fuzzy(ctx, c, title, year)
}

func (r *Resolver) fuzzy(ctx context.Context, c Candidate, title string, year *int) (Resolved, error) {
	refs, err := r.lookup.Titles(ctx)
	if err != nil {
		return Resolved{}, err
	}

	rowsPerTitle := make(map[string]int, len(refs))
	for _, ref := range refs {
		rowsPerTitle[ref.Normalized]++
	}

	var best *TitleRef
	var bestScore float64
	for i := range refs {
		ref := &refs[i]
		if year != nil {
			if rowsPerTitle[ref.Normalized] > 1 {
				if ref.Year != *year {
					continue
				}
			} else if !r.withinTolerance(ref.Year, *year) {
				continue
			}
		}

		s := r.similarity.Score(title, ref.Title)
		if s < r.fuzzyThreshold {
			continue
		}
		if best == nil || s > bestScore || (s == bestScore && better(ref, best)) {
			best, bestScore = ref, s
		}
	}
	if best == nil {
		return unverified(c), nil
	}

	e, err := r.lookup.Get(ctx, best.ID)
	if err != nil {
		if rverrors.GetCode(err) == rverrors.ErrCodeMovieNotFound {
			return unverified(c), nil
		}
		return Resolved{}, err
	}
	return verified(c, *e, MethodFuzzy), nil
}

func (r *Resolver) withinTolerance(catalogYear, year int) bool {
	if catalogYear == 0 {
		return false
	}
	d := catalogYear - year
	if d < 0 {
		d = -d
	}
	return d <= r.yearTolerance
}

func better(a, b *TitleRef) bool {
	if a.Popularity != b.Popularity {
		return a.Popularity > b.Popularity
	}
	return a.ID < b.ID
}

// mostPopular picks the highest popularity row; ties go to the lower ID.
func mostPopular(rows []Entry) Entry {
	sorted := append([]Entry(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Popularity != sorted[j].Popularity {
			return sorted[i].Popularity > sorted[j].Popularity
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted[0]
}

func pick(rows []Entry, match func(Entry) bool) *Entry {
	var hits []Entry
	for _, e := range rows {
		if match(e) {
			hits = append(hits, e)
		}
	}
	if len(hits) == 0 {
		return nil
	}
	e := mostPopular(hits)
	return &e
}

func verified(c Candidate, e Entry, m MatchMethod) Resolved {
	return Resolved{Candidate: c, Entry: &e, Verified: true, Method: m}
}

func unverified(c Candidate) Resolved {
	return Resolved{Candidate: c, Method: MethodNone}
}
