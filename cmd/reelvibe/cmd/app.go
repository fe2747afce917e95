package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/Aman-CERP/reelvibe/internal/candidate"
	"github.com/Aman-CERP/reelvibe/internal/catalog"
	"github.com/Aman-CERP/reelvibe/internal/config"
	"github.com/Aman-CERP/reelvibe/internal/embed"
	rverrors "github.com/Aman-CERP/reelvibe/internal/errors"
	"github.com/Aman-CERP/reelvibe/internal/query"
	"github.com/Aman-CERP/reelvibe/internal/search"
	"github.com/Aman-CERP/reelvibe/internal/telemetry"
)

// appOptions are the per-command overrides of the loaded configuration.
type appOptions struct {
	configDir string
	regime    string
	offline   bool
	trending  bool
}

// app owns every long-lived dependency of a command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	embedder embed.Embedder
	store    *catalog.Store
	engine   *search.Engine

	closers []func() error
}

func loadConfig(opts appOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configDir)
	if err != nil {
		return nil, err
	}
	if opts.regime != "" {
		cfg.Search.Regime = opts.regime
	} else if opts.offline {
		// Without the network the generator can only ever fall back.
		cfg.Search.Regime = config.RegimeHybrid
	}
	if opts.offline {
		cfg.Safety.Enabled = false
	}
	if opts.trending {
		cfg.Search.Trending = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openCatalog opens the configured catalog with an embedder whose
// dimension it enforces.
func openCatalog(ctx context.Context, cfg *config.Config, offline bool, logger *slog.Logger) (embed.Embedder, *catalog.Store, error) {
	embedder, err := embed.New(cfg.Embeddings, offline)
	if err != nil {
		return nil, nil, err
	}
	store, err := catalog.Open(ctx, catalog.Options{
		Path:           cfg.Catalog.Path,
		KeywordBackend: cfg.Catalog.KeywordBackend,
		Dimensions:     embedder.Dimensions(),
		Logger:         logger,
	})
	if err != nil {
		_ = embedder.Close()
		return nil, nil, err
	}
	return embedder, store, nil
}

// openApp wires the full search pipeline.
func openApp(ctx context.Context, opts appOptions) (a *app, err error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	a = &app{cfg: cfg, logger: slog.Default(), metrics: telemetry.New()}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	a.embedder, a.store, err = openCatalog(ctx, cfg, opts.offline, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.store.Close, a.embedder.Close)

	recent, generations, err := a.caches()
	if err != nil {
		return nil, err
	}

	classifier, err := query.NewClassifier(recent,
		query.WithSafetyChecker(a.safetyChecker()),
		query.WithSafetyTimeout(cfg.Safety.Timeout),
		query.WithLogger(a.logger),
		query.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, err
	}

	similarity, err := catalog.SimilarityByName(cfg.Resolver.Similarity)
	if err != nil {
		return nil, err
	}
	resolver, err := catalog.NewResolver(a.store,
		catalog.WithSimilarity(similarity),
		catalog.WithFuzzyThreshold(cfg.Resolver.FuzzyThreshold),
		catalog.WithYearTolerance(cfg.Resolver.YearTolerance),
		catalog.WithResolverLogger(a.logger),
		catalog.WithResolverMetrics(a.metrics),
	)
	if err != nil {
		return nil, err
	}

	source, err := a.source(generations)
	if err != nil {
		return nil, err
	}

	a.engine, err = search.NewEngine(classifier, source, resolver, a.store,
		search.WithFusion(search.FusionConfigFrom(cfg.Search)),
		search.WithLimits(cfg.Search.DefaultLimit, cfg.Search.MaxLimit),
		search.WithLogger(a.logger),
		search.WithMetrics(a.metrics),
		search.WithExplainer(a.explainer(opts.offline)),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// caches builds the recent-query and generation caches for the configured
// backend. The file backend shares generations across processes; recent
// queries stay per-process.
func (a *app) caches() (query.RecentQueryCache, candidate.GenerationCache, error) {
	c := a.cfg.Cache
	switch c.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		a.closers = append(a.closers, client.Close)
		return query.NewRedisRecentCache(client, c.TTL), candidate.NewRedisGenerationCache(client, c.TTL), nil
	case "file":
		recent, err := query.NewMemoryRecentCache(c.Size)
		if err != nil {
			return nil, nil, err
		}
		gen, err := candidate.NewFileGenerationCache(c.Path)
		if err != nil {
			return nil, nil, err
		}
		return recent, gen, nil
	default:
		recent, err := query.NewMemoryRecentCache(c.Size)
		if err != nil {
			return nil, nil, err
		}
		gen, err := candidate.NewMemoryGenerationCache(c.Size)
		if err != nil {
			return nil, nil, err
		}
		return recent, gen, nil
	}
}

func (a *app) safetyChecker() query.SafetyChecker {
	s := a.cfg.Safety
	if !s.Enabled {
		return query.NoopChecker{}
	}
	checker, err := query.NewModerationChecker(query.ModerationConfig{
		BaseURL: s.BaseURL,
		APIKey:  config.APIKey(s.APIKeyEnv),
		Model:   s.Model,
	})
	if err != nil {
		a.logger.Warn("Safety check disabled", slog.String("error", err.Error()))
		return query.NoopChecker{}
	}
	return checker
}

func (a *app) source(cache candidate.GenerationCache) (candidate.Source, error) {
	if a.cfg.Search.Regime == config.RegimeHybrid {
		return candidate.NewVectorSource(a.embedder, a.store, a.cfg.Search.CandidatePool, a.logger)
	}

	gen, err := candidate.NewGenerator(a.cfg.Generator)
	if err != nil {
		return nil, err
	}
	retry := rverrors.DefaultRetryConfig()
	retry.MaxRetries = a.cfg.Generator.MaxRetries
	return candidate.NewLLMSource(gen,
		candidate.WithGenerationCache(cache),
		candidate.WithCircuitBreaker(rverrors.NewCircuitBreaker("generator")),
		candidate.WithRetry(retry),
		candidate.WithAttemptTimeout(a.cfg.Generator.Timeout),
		candidate.WithLLMLogger(a.logger),
		candidate.WithLLMMetrics(a.metrics),
	)
}

// explainer writes explanations with the configured generator. Offline, or
// when the generator cannot be built, only the fixed sentence is served.
func (a *app) explainer(offline bool) *search.Explainer {
	retry := rverrors.DefaultRetryConfig()
	retry.MaxRetries = a.cfg.Generator.MaxRetries
	opts := []search.ExplainerOption{
		search.WithQueryVectors(a.embedder, a.store),
		search.WithExplainRetry(retry),
		search.WithExplainTimeout(a.cfg.Generator.Timeout),
		search.WithExplainLogger(a.logger),
		search.WithExplainMetrics(a.metrics),
	}
	if offline {
		return search.NewExplainer(opts...)
	}

	gen, err := candidate.NewGenerator(a.cfg.Generator)
	if err != nil {
		a.logger.Warn("Explanations limited to catalog metadata", slog.String("error", err.Error()))
		return search.NewExplainer(opts...)
	}
	if c, ok := gen.(candidate.Completer); ok {
		opts = append(opts, search.WithCompleter(c))
	}
	return search.NewExplainer(opts...)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
