package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFilms = `[
  {"title": "Inception", "year": 2010, "genres": ["Science Fiction", "Thriller"], "tags": ["heist", "dreams"],
   "overview": "A thief who steals corporate secrets through dream-sharing technology.", "popularity": 80, "rating": 8.4},
  {"title": "The Matrix", "year": 1999, "genres": ["Science Fiction", "Action"], "tags": ["simulation"],
   "overview": "A hacker learns the nature of his reality.", "popularity": 75, "rating": 8.2},
  {"title": "Heat", "year": 1995, "genres": ["Crime", "Thriller"], "tags": ["heist", "los angeles"],
   "overview": "A detective hunts a crew of professional thieves.", "popularity": 40, "rating": 8.3}
]`

// testEnv isolates a command run: home, config and catalog all live under
// a temp dir and no network service is configured.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("REELVIBE_CATALOG_PATH", filepath.Join(dir, "catalog.db"))
	t.Setenv("REELVIBE_SAFETY_ENABLED", "false")
	t.Setenv("REELVIBE_CACHE_BACKEND", "memory")
	return dir
}

func execute(t *testing.T, dir string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append([]string{"--config-dir", dir}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func importFilms(t *testing.T, dir string) {
	t.Helper()
	path := filepath.Join(dir, "films.json")
	require.NoError(t, os.WriteFile(path, []byte(testFilms), 0o644))
	out, _, err := execute(t, dir, "catalog", "import", path, "--offline")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 3 films")
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"search", "details", "explain", "serve", "catalog", "doctor", "config", "logs", "version"} {
		found, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, found.Name())
	}
}

func TestCatalogCmd_ImportThenInfo(t *testing.T) {
	dir := testEnv(t)
	importFilms(t, dir)

	out, _, err := execute(t, dir, "catalog", "info", "--json")
	require.NoError(t, err)

	var st map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.EqualValues(t, 3, st["entries"])
	assert.EqualValues(t, 3, st["vectors"])
	assert.Equal(t, "sqlite", st["keyword_backend"])
}

func TestCatalogCmd_ImportMissingFile(t *testing.T) {
	dir := testEnv(t)

	_, _, err := execute(t, dir, "catalog", "import", filepath.Join(dir, "nope.json"), "--offline")
	require.Error(t, err)
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	dir := testEnv(t)

	_, _, err := execute(t, dir, "search")
	require.Error(t, err)
}

func TestSearchCmd_RejectsUnknownFormat(t *testing.T) {
	dir := testEnv(t)

	_, _, err := execute(t, dir, "search", "heist", "-f", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestSearchCmd_LowSignalServesFallback(t *testing.T) {
	dir := testEnv(t)
	importFilms(t, dir)

	out, _, err := execute(t, dir, "search", "!!", "--offline")
	require.NoError(t, err)

	assert.Contains(t, out, "Showing fallback suggestions")
	assert.Contains(t, out, "Inception (2010)")
	assert.Contains(t, out, "90%")
	// Blade Runner 2049 is not in the test catalog.
	assert.Contains(t, out, "Blade Runner 2049 (2017)")
	assert.Contains(t, out, "UNVERIFIED AI SUGGESTION")
}

func TestSearchCmd_JSONFormat(t *testing.T) {
	dir := testEnv(t)
	importFilms(t, dir)

	out, _, err := execute(t, dir, "search", "!!", "--offline", "-f", "json")
	require.NoError(t, err)

	var resp struct {
		RequestID string `json:"request_id"`
		Total     int    `json:"total"`
		Fallback  bool   `json:"fallback"`
		Results   []struct {
			Title    string `json:"title"`
			Verified bool   `json:"verified"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.NotEmpty(t, resp.RequestID)
	assert.True(t, resp.Fallback)
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Results, 3)

	verified := map[string]bool{}
	for _, r := range resp.Results {
		verified[r.Title] = r.Verified
	}
	assert.True(t, verified["Inception"])
	assert.True(t, verified["The Matrix"])
	assert.False(t, verified["Blade Runner 2049"])
}

func TestSearchCmd_HybridOffline(t *testing.T) {
	dir := testEnv(t)
	importFilms(t, dir)

	out, _, err := execute(t, dir, "search", "a tense heist thriller", "--offline", "--regime", "hybrid", "-f", "json")
	require.NoError(t, err)

	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Contains(t, resp, "results")
}

func TestLoadConfig_Overrides(t *testing.T) {
	dir := testEnv(t)

	cfg, err := loadConfig(appOptions{configDir: dir})
	require.NoError(t, err)
	assert.False(t, cfg.Search.Trending)
	assert.Equal(t, "generative", cfg.Search.Regime)

	cfg, err = loadConfig(appOptions{configDir: dir, offline: true, trending: true})
	require.NoError(t, err)
	assert.True(t, cfg.Search.Trending)
	assert.Equal(t, "hybrid", cfg.Search.Regime)
	assert.False(t, cfg.Safety.Enabled)
}

func TestSearchCmd_TrendingFlag(t *testing.T) {
	dir := testEnv(t)
	importFilms(t, dir)

	out, _, err := execute(t, dir, "search", "heist crew", "--offline", "--trending", "-f", "json")
	require.NoError(t, err)

	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "hybrid", resp["regime"])
}

func TestDetailsCmd(t *testing.T) {
	dir := testEnv(t)
	importFilms(t, dir)

	out, _, err := execute(t, dir, "details", "inception-2010", "--json")
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &entry))
	assert.Equal(t, "Inception", entry["title"])
	assert.NotContains(t, entry, "embedding")
}

func TestExplainCmd_Offline(t *testing.T) {
	dir := testEnv(t)
	importFilms(t, dir)

	out, _, err := execute(t, dir, "explain", "heat-1995", "heist", "crew", "--offline")
	require.NoError(t, err)
	assert.Contains(t, out, "Heat (1995)")
	assert.Contains(t, out, "This film matches your query 'heist crew'")
	assert.Contains(t, out, "Key elements: heist, los angeles.")
}

func TestExplainCmd_JSON(t *testing.T) {
	dir := testEnv(t)
	importFilms(t, dir)

	out, _, err := execute(t, dir, "explain", "inception-2010", "dream heist", "--offline", "--json")
	require.NoError(t, err)

	var x map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &x))
	assert.Equal(t, "Inception", x["title"])
	assert.Equal(t, false, x["generated"])
	grounding := x["grounding"].(map[string]any)
	assert.Equal(t, []any{"heist", "dreams"}, grounding["top_tropes"])
	assert.Equal(t, []any{"dream", "heist"}, grounding["query_terms"])
	assert.NotEqual(t, "n/a", grounding["semantic_match"])
}

func TestExplainCmd_UnknownID(t *testing.T) {
	dir := testEnv(t)
	importFilms(t, dir)

	_, stderr, err := execute(t, dir, "explain", "no-such-film", "heist", "--offline")
	require.Error(t, err)
	assert.Contains(t, stderr, "ERR_404")
}

func TestDetailsCmd_UnknownID(t *testing.T) {
	dir := testEnv(t)
	importFilms(t, dir)

	_, stderr, err := execute(t, dir, "details", "no-such-film")
	require.Error(t, err)
	assert.Contains(t, stderr, "ERR_404")
}

func TestLogsCmd_FiltersByEvent(t *testing.T) {
	dir := testEnv(t)
	importFilms(t, dir)
	_, _, err := execute(t, dir, "search", "!!", "--offline")
	require.NoError(t, err)

	out, _, err := execute(t, dir, "logs", "--event", "search_completed")
	require.NoError(t, err)
	assert.Contains(t, out, "search_completed")
	assert.NotContains(t, out, "search_started")
}

func TestLogsCmd_MissingFile(t *testing.T) {
	dir := testEnv(t)

	_, _, err := execute(t, dir, "logs", "--file", filepath.Join(dir, "missing.log"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log file not found")
}

func TestDoctorCmd_JSONOffline(t *testing.T) {
	dir := testEnv(t)
	importFilms(t, dir)

	out, _, err := execute(t, dir, "doctor", "--json", "--offline")
	require.NoError(t, err)

	var report struct {
		Status string `json:"status"`
		Checks []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.NotEqual(t, "failed", report.Status)

	statuses := map[string]string{}
	for _, c := range report.Checks {
		statuses[c.Name] = c.Status
	}
	assert.Equal(t, "pass", statuses["catalog"])
	assert.Equal(t, "pass", statuses["safety"])
}

func TestRootCmd_ProfileFlags(t *testing.T) {
	dir := testEnv(t)
	heap := filepath.Join(dir, "heap.prof")

	_, _, err := execute(t, dir, "--memprofile", heap, "version", "--short")
	require.NoError(t, err)

	info, err := os.Stat(heap)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestConfigCmd_InitThenShow(t *testing.T) {
	dir := testEnv(t)

	out, _, err := execute(t, dir, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Created")
	assert.FileExists(t, filepath.Join(dir, ".reelvibe.yaml"))

	out, _, err = execute(t, dir, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	out, _, err = execute(t, dir, "config", "show", "--json")
	require.NoError(t, err)
	var cfg map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	search, ok := cfg["search"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "generative", search["regime"])
	assert.NotContains(t, out, "redis_password")
}

func TestConfigCmd_Path(t *testing.T) {
	dir := testEnv(t)

	out, _, err := execute(t, dir, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "config", "reelvibe", "config.yaml"))
}
