package preflight

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/Aman-CERP/reelvibe/internal/catalog"
	"github.com/Aman-CERP/reelvibe/internal/config"
)

// CheckCatalog opens the catalog read path and compares entry and vector
// counts. A missing catalog file is a warning; it is created on import.
func (c *Checker) CheckCatalog(ctx context.Context) CheckResult {
	const name = "catalog"
	path := c.cfg.Catalog.Path

	if _, err := os.Stat(path); err != nil {
		r := warn(name, "no catalog found (run `reelvibe catalog import`)")
		r.Details = path
		return r
	}

	store, err := catalog.Open(ctx, catalog.Options{
		Path:           path,
		KeywordBackend: c.cfg.Catalog.KeywordBackend,
		Dimensions:     c.cfg.Embeddings.Dimensions,
	})
	if err != nil {
		return fail(name, fmt.Sprintf("cannot open catalog: %v", err), true)
	}
	defer func() { _ = store.Close() }()

	st, err := store.Stats(ctx)
	if err != nil {
		return fail(name, fmt.Sprintf("cannot read catalog: %v", err), true)
	}

	var r CheckResult
	switch {
	case st.Entries == 0:
		r = warn(name, "catalog is empty")
	case st.Vectors < st.Entries:
		r = warn(name, fmt.Sprintf("%d of %d films have no vector (hybrid search will miss them)", st.Entries-st.Vectors, st.Entries))
	default:
		r = pass(name, fmt.Sprintf("%d films, %d dimensions", st.Entries, st.Dimensions), true)
	}
	r.Details = fmt.Sprintf("%s (keyword backend: %s)", st.Path, st.KeywordBackend)
	return r
}

// CheckEmbeddings pings the embeddings provider.
func (c *Checker) CheckEmbeddings(ctx context.Context) CheckResult {
	const name = "embeddings"
	e := c.cfg.Embeddings

	switch {
	case e.Provider == "static":
		return pass(name, fmt.Sprintf("static embeddings (%d dimensions)", e.Dimensions), false)
	case c.offline:
		return warn(name, "skipped (offline)")
	}

	if err := c.ping(ctx, ollamaHost(e.Host)+"/api/tags"); err != nil {
		r := warn(name, fmt.Sprintf("%s unreachable", e.Provider))
		r.Details = err.Error()
		return r
	}
	return pass(name, fmt.Sprintf("%s reachable (model %s)", e.Provider, e.Model), false)
}

// CheckGenerator pings the generator used by the generative regime.
func (c *Checker) CheckGenerator(ctx context.Context) CheckResult {
	const name = "generator"
	g := c.cfg.Generator

	switch {
	case c.cfg.Search.Regime == config.RegimeHybrid:
		return pass(name, "not used (hybrid regime)", false)
	case g.Provider == "chat":
		if config.APIKey(g.APIKeyEnv) == "" {
			return warn(name, fmt.Sprintf("%s is not set (searches will use fallback titles)", g.APIKeyEnv))
		}
		return pass(name, "chat API key present", false)
	case c.offline:
		return warn(name, "skipped (offline)")
	}

	if err := c.ping(ctx, ollamaHost(g.Host)+"/api/tags"); err != nil {
		r := warn(name, "ollama unreachable (searches will use fallback titles)")
		r.Details = err.Error()
		return r
	}
	return pass(name, fmt.Sprintf("ollama reachable (model %s)", g.Model), false)
}

// CheckSafety reports whether the moderation check can run. Without a key
// every query is admitted.
func (c *Checker) CheckSafety() CheckResult {
	const name = "safety"
	s := c.cfg.Safety

	if !s.Enabled {
		return pass(name, "disabled", false)
	}
	if config.APIKey(s.APIKeyEnv) == "" {
		return warn(name, fmt.Sprintf("%s is not set (queries are admitted unchecked)", s.APIKeyEnv))
	}
	return pass(name, "moderation key present", false)
}

// CheckCache pings Redis when it backs the caches.
func (c *Checker) CheckCache(ctx context.Context) CheckResult {
	const name = "cache"
	cc := c.cfg.Cache

	if cc.Backend != "redis" {
		return pass(name, cc.Backend, false)
	}
	if c.offline {
		return warn(name, "redis skipped (offline)")
	}

	client := redis.NewClient(&redis.Options{Addr: cc.RedisAddr, Password: cc.RedisPassword, DB: cc.RedisDB})
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		r := warn(name, fmt.Sprintf("redis at %s unreachable (caching degrades to misses)", cc.RedisAddr))
		r.Details = err.Error()
		return r
	}
	return pass(name, "redis at "+cc.RedisAddr, false)
}

func (c *Checker) ping(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return nil
}

func ollamaHost(host string) string {
	if host == "" {
		host = "http://localhost:11434"
	}
	return strings.TrimRight(host, "/")
}
