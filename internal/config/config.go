// Package config loads reelvibe configuration.
//
// Precedence, lowest to highest:
//  1. Built-in defaults (NewConfig)
//  2. User config: $XDG_CONFIG_HOME/reelvibe/config.yaml
//  3. Project config: .reelvibe.yaml (or .reelvibe.yml) in the working dir
//  4. REELVIBE_* environment variables
//
// A .env file in the working dir is loaded into the environment first so
// API keys can live next to the project without being exported.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Regime names.
const (
	RegimeGenerative = "generative"
	RegimeHybrid     = "hybrid"
)

const (
	projectConfigName = ".reelvibe.yaml"
	envPrefix         = "REELVIBE_"
)

// Config is the complete reelvibe configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Resolver   ResolverConfig   `yaml:"resolver" json:"resolver"`
	Generator  GeneratorConfig  `yaml:"generator" json:"generator"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Safety     SafetyConfig     `yaml:"safety" json:"safety"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Catalog    CatalogConfig    `yaml:"catalog" json:"catalog"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// SearchConfig tunes scoring and pagination.
type SearchConfig struct {
	// Regime selects the candidate source: "generative" (LLM titles scored
	// by model confidence) or "hybrid" (vector + keyword over the catalog).
	Regime string `yaml:"regime" json:"regime"`

	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
	MaxLimit     int `yaml:"max_limit" json:"max_limit"`

	// MinScore drops hybrid results whose fused score falls below it.
	MinScore float64 `yaml:"min_score" json:"min_score"`

	// SemanticMin and SemanticMax bound the similarity ramp.
	SemanticMin float64 `yaml:"semantic_min" json:"semantic_min"`
	SemanticMax float64 `yaml:"semantic_max" json:"semantic_max"`

	KeywordScale     float64 `yaml:"keyword_scale" json:"keyword_scale"`
	PopularityWeight float64 `yaml:"popularity_weight" json:"popularity_weight"`

	// CandidatePool is how many rows each retriever returns in hybrid mode.
	CandidatePool int `yaml:"candidate_pool" json:"candidate_pool"`

	// Trending adds the popularity signal to every hybrid query, not only
	// to queries that ask for what is popular.
	Trending bool `yaml:"trending" json:"trending"`
}

// ResolverConfig tunes catalog matching.
type ResolverConfig struct {
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" json:"fuzzy_threshold"`
	YearTolerance  int     `yaml:"year_tolerance" json:"year_tolerance"`
	// Similarity is "levenshtein" or "token_set".
	Similarity string `yaml:"similarity" json:"similarity"`
}

// GeneratorConfig configures the title generator.
type GeneratorConfig struct {
	// Provider is "ollama" or "chat" (any OpenAI-compatible endpoint).
	Provider   string        `yaml:"provider" json:"provider"`
	Model      string        `yaml:"model" json:"model"`
	Host       string        `yaml:"host" json:"host"`
	APIKeyEnv  string        `yaml:"api_key_env" json:"api_key_env"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
}

// EmbeddingsConfig configures the query embedder.
type EmbeddingsConfig struct {
	// Provider is "ollama" or "static".
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Host       string `yaml:"host" json:"host"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
}

// SafetyConfig configures the moderation check.
type SafetyConfig struct {
	Enabled   bool          `yaml:"enabled" json:"enabled"`
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	Model     string        `yaml:"model" json:"model"`
	APIKeyEnv string        `yaml:"api_key_env" json:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
}

// CacheConfig configures the recent-query and generation caches.
type CacheConfig struct {
	// Backend is "memory", "file" or "redis".
	Backend       string        `yaml:"backend" json:"backend"`
	Size          int           `yaml:"size" json:"size"`
	Path          string        `yaml:"path" json:"path"`
	RedisAddr     string        `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string        `yaml:"redis_password" json:"-"`
	RedisDB       int           `yaml:"redis_db" json:"redis_db"`
	TTL           time.Duration `yaml:"ttl" json:"ttl"`
}

// CatalogConfig locates the catalog database and indexes.
type CatalogConfig struct {
	Path string `yaml:"path" json:"path"`
	// KeywordBackend is "sqlite" (FTS5) or "bleve".
	KeywordBackend string `yaml:"keyword_backend" json:"keyword_backend"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	LogLevel    string `yaml:"log_level" json:"log_level"`
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Search: SearchConfig{
			Regime:           RegimeGenerative,
			DefaultLimit:     20,
			MaxLimit:         100,
			MinScore:         0.40,
			SemanticMin:      0.25,
			SemanticMax:      0.60,
			KeywordScale:     2.0,
			PopularityWeight: 0.05,
			CandidatePool:    50,
		},
		Resolver: ResolverConfig{
			FuzzyThreshold: 90,
			YearTolerance:  1,
			Similarity:     "levenshtein",
		},
		Generator: GeneratorConfig{
			Provider:   "ollama",
			Model:      "llama3.1:8b",
			Host:       "http://localhost:11434",
			APIKeyEnv:  "OPENROUTER_API_KEY",
			Timeout:    20 * time.Second,
			MaxRetries: 2,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			Host:       "http://localhost:11434",
			Dimensions: 768,
			CacheSize:  1000,
		},
		Safety: SafetyConfig{
			Enabled:   true,
			BaseURL:   "https://api.openai.com",
			Model:     "omni-moderation-latest",
			APIKeyEnv: "OPENAI_API_KEY",
			Timeout:   500 * time.Millisecond,
		},
		Cache: CacheConfig{
			Backend: "memory",
			Size:    10000,
			Path:    filepath.Join(DataDir(), "query_cache.json"),
			TTL:     24 * time.Hour,
		},
		Catalog: CatalogConfig{
			Path:           filepath.Join(DataDir(), "catalog.db"),
			KeywordBackend: "sqlite",
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

// DataDir returns ~/.reelvibe.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".reelvibe")
	}
	return filepath.Join(home, ".reelvibe")
}

// GetUserConfigPath returns the user config path, honouring XDG_CONFIG_HOME.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "reelvibe", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "reelvibe", "config.yaml")
	}
	return filepath.Join(home, ".config", "reelvibe", "config.yaml")
}

// Load builds the effective configuration for dir.
func Load(dir string) (*Config, error) {
	// Missing .env is normal.
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	cfg := NewConfig()

	if user, err := readFile(GetUserConfigPath()); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if user != nil {
		cfg.mergeWith(user)
	}

	for _, name := range []string{projectConfigName, ".reelvibe.yml"} {
		project, err := readFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to load project config: %w", err)
		}
		if project != nil {
			cfg.mergeWith(project)
			break
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// readFile returns nil, nil when path does not exist.
func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &c, nil
}

// mergeWith copies every non-zero field of other onto c. Booleans cannot be
// distinguished from unset in YAML, so safety.enabled is only merged when
// the safety section carries other settings; use REELVIBE_SAFETY_ENABLED
// to switch it off on its own.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	s, o := &c.Search, other.Search
	setString(&s.Regime, o.Regime)
	setInt(&s.DefaultLimit, o.DefaultLimit)
	setInt(&s.MaxLimit, o.MaxLimit)
	setFloat(&s.MinScore, o.MinScore)
	setFloat(&s.SemanticMin, o.SemanticMin)
	setFloat(&s.SemanticMax, o.SemanticMax)
	setFloat(&s.KeywordScale, o.KeywordScale)
	setFloat(&s.PopularityWeight, o.PopularityWeight)
	setInt(&s.CandidatePool, o.CandidatePool)
	if o.Trending {
		s.Trending = true
	}

	setFloat(&c.Resolver.FuzzyThreshold, other.Resolver.FuzzyThreshold)
	setInt(&c.Resolver.YearTolerance, other.Resolver.YearTolerance)
	setString(&c.Resolver.Similarity, other.Resolver.Similarity)

	g, og := &c.Generator, other.Generator
	setString(&g.Provider, og.Provider)
	setString(&g.Model, og.Model)
	setString(&g.Host, og.Host)
	setString(&g.APIKeyEnv, og.APIKeyEnv)
	setDuration(&g.Timeout, og.Timeout)
	setInt(&g.MaxRetries, og.MaxRetries)

	e, oe := &c.Embeddings, other.Embeddings
	setString(&e.Provider, oe.Provider)
	setString(&e.Model, oe.Model)
	setString(&e.Host, oe.Host)
	setInt(&e.Dimensions, oe.Dimensions)
	setInt(&e.CacheSize, oe.CacheSize)

	sf, osf := &c.Safety, other.Safety
	if osf.BaseURL != "" || osf.Model != "" || osf.APIKeyEnv != "" || osf.Timeout != 0 {
		sf.Enabled = osf.Enabled
	}
	setString(&sf.BaseURL, osf.BaseURL)
	setString(&sf.Model, osf.Model)
	setString(&sf.APIKeyEnv, osf.APIKeyEnv)
	setDuration(&sf.Timeout, osf.Timeout)

	ca, oc := &c.Cache, other.Cache
	setString(&ca.Backend, oc.Backend)
	setInt(&ca.Size, oc.Size)
	setString(&ca.Path, oc.Path)
	setString(&ca.RedisAddr, oc.RedisAddr)
	setString(&ca.RedisPassword, oc.RedisPassword)
	setInt(&ca.RedisDB, oc.RedisDB)
	setDuration(&ca.TTL, oc.TTL)

	setString(&c.Catalog.Path, other.Catalog.Path)
	setString(&c.Catalog.KeywordBackend, other.Catalog.KeywordBackend)

	setString(&c.Server.LogLevel, other.Server.LogLevel)
	setString(&c.Server.MetricsAddr, other.Server.MetricsAddr)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

// applyEnvOverrides applies REELVIBE_* variables. Unparseable values are
// ignored so a typo never prevents startup; Validate still runs afterwards.
func (c *Config) applyEnvOverrides() {
	envString("SEARCH_REGIME", &c.Search.Regime)
	envFloat("MIN_SCORE", &c.Search.MinScore)
	envFloat("KEYWORD_SCALE", &c.Search.KeywordScale)
	envFloat("POPULARITY_WEIGHT", &c.Search.PopularityWeight)
	envBool("TRENDING", &c.Search.Trending)
	envFloat("FUZZY_THRESHOLD", &c.Resolver.FuzzyThreshold)
	envString("SIMILARITY", &c.Resolver.Similarity)

	envString("GENERATOR_PROVIDER", &c.Generator.Provider)
	envString("GENERATOR_MODEL", &c.Generator.Model)
	envString("GENERATOR_HOST", &c.Generator.Host)
	envDuration("GENERATOR_TIMEOUT", &c.Generator.Timeout)

	envString("EMBEDDINGS_PROVIDER", &c.Embeddings.Provider)
	envString("EMBEDDINGS_MODEL", &c.Embeddings.Model)
	envString("OLLAMA_HOST", &c.Embeddings.Host)

	envBool("SAFETY_ENABLED", &c.Safety.Enabled)
	envString("SAFETY_BASE_URL", &c.Safety.BaseURL)
	envDuration("SAFETY_TIMEOUT", &c.Safety.Timeout)

	envString("CACHE_BACKEND", &c.Cache.Backend)
	envString("REDIS_ADDR", &c.Cache.RedisAddr)
	envString("REDIS_PASSWORD", &c.Cache.RedisPassword)

	envString("CATALOG_PATH", &c.Catalog.Path)
	envString("KEYWORD_BACKEND", &c.Catalog.KeywordBackend)

	envString("LOG_LEVEL", &c.Server.LogLevel)
	envString("METRICS_ADDR", &c.Server.MetricsAddr)
}

func envString(name string, dst *string) {
	if v := os.Getenv(envPrefix + name); v != "" {
		*dst = v
	}
}

func envBool(name string, dst *bool) {
	if v := os.Getenv(envPrefix + name); v != "" {
		*dst = strings.EqualFold(v, "true") || v == "1"
	}
}

func envFloat(name string, dst *float64) {
	if v := os.Getenv(envPrefix + name); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if v := os.Getenv(envPrefix + name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	s := c.Search
	if !oneOf(s.Regime, RegimeGenerative, RegimeHybrid) {
		return fmt.Errorf("search.regime must be 'generative' or 'hybrid', got %s", s.Regime)
	}
	if s.MaxLimit <= 0 || s.MaxLimit > 100 {
		return fmt.Errorf("search.max_limit must be between 1 and 100, got %d", s.MaxLimit)
	}
	if s.DefaultLimit <= 0 || s.DefaultLimit > s.MaxLimit {
		return fmt.Errorf("search.default_limit must be between 1 and max_limit, got %d", s.DefaultLimit)
	}
	for name, v := range map[string]float64{
		"min_score":    s.MinScore,
		"semantic_min": s.SemanticMin,
		"semantic_max": s.SemanticMax,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("search.%s must be between 0 and 1, got %f", name, v)
		}
	}
	if s.SemanticMin >= s.SemanticMax {
		return fmt.Errorf("search.semantic_min must be below semantic_max, got %.2f >= %.2f", s.SemanticMin, s.SemanticMax)
	}
	if s.KeywordScale <= 0 {
		return fmt.Errorf("search.keyword_scale must be positive, got %f", s.KeywordScale)
	}
	if s.PopularityWeight < 0 {
		return fmt.Errorf("search.popularity_weight must be non-negative, got %f", s.PopularityWeight)
	}
	if s.CandidatePool <= 0 {
		return fmt.Errorf("search.candidate_pool must be positive, got %d", s.CandidatePool)
	}

	r := c.Resolver
	if r.FuzzyThreshold < 0 || r.FuzzyThreshold > 100 {
		return fmt.Errorf("resolver.fuzzy_threshold must be between 0 and 100, got %f", r.FuzzyThreshold)
	}
	if r.YearTolerance < 0 {
		return fmt.Errorf("resolver.year_tolerance must be non-negative, got %d", r.YearTolerance)
	}
	if !oneOf(r.Similarity, "levenshtein", "token_set") {
		return fmt.Errorf("resolver.similarity must be 'levenshtein' or 'token_set', got %s", r.Similarity)
	}

	if !oneOf(c.Generator.Provider, "ollama", "chat") {
		return fmt.Errorf("generator.provider must be 'ollama' or 'chat', got %s", c.Generator.Provider)
	}
	if c.Generator.Timeout <= 0 {
		return fmt.Errorf("generator.timeout must be positive, got %s", c.Generator.Timeout)
	}
	if c.Generator.MaxRetries < 0 {
		return fmt.Errorf("generator.max_retries must be non-negative, got %d", c.Generator.MaxRetries)
	}
	if !oneOf(c.Embeddings.Provider, "ollama", "static") {
		return fmt.Errorf("embeddings.provider must be 'ollama' or 'static', got %s", c.Embeddings.Provider)
	}
	if c.Safety.Timeout <= 0 {
		return fmt.Errorf("safety.timeout must be positive, got %s", c.Safety.Timeout)
	}
	if !oneOf(c.Cache.Backend, "memory", "file", "redis") {
		return fmt.Errorf("cache.backend must be 'memory', 'file' or 'redis', got %s", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		return fmt.Errorf("cache.redis_addr is required when cache.backend is 'redis'")
	}
	if !oneOf(c.Catalog.KeywordBackend, "sqlite", "bleve") {
		return fmt.Errorf("catalog.keyword_backend must be 'sqlite' or 'bleve', got %s", c.Catalog.KeywordBackend)
	}
	if !oneOf(strings.ToLower(c.Server.LogLevel), "debug", "info", "warn", "error") {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// APIKey reads the environment variable named by envName.
func APIKey(envName string) string {
	if envName == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(envName))
}

// WriteYAML writes c to path, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
