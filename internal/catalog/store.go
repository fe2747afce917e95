package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	rverrors "github.com/Aman-CERP/reelvibe/internal/errors"
	"github.com/Aman-CERP/reelvibe/internal/logging"
	"github.com/Aman-CERP/reelvibe/internal/query"
)

// Options configures Open.
type Options struct {
	// Path is the SQLite file. Empty keeps everything in memory.
	Path string
	// KeywordBackend is KeywordSQLite (default) or KeywordBleve.
	KeywordBackend string
	// Dimensions is the expected embedding dimension; 0 accepts any.
	Dimensions int
	Logger     *slog.Logger
}

// Store is the catalog: SQLite metadata, a keyword index and a vector
// index. It is safe for concurrent readers.
type Store struct {
	db      *sql.DB
	path    string
	backend string
	keyword KeywordIndex
	logger  *slog.Logger
	dims    int

	mu      sync.RWMutex
	vectors *VectorIndex

	titlesMu sync.Mutex
	titles   []TitleRef
}

// Open opens or creates the catalog.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.KeywordBackend == "" {
		opts.KeywordBackend = KeywordSQLite
	}

	dsn := ":memory:"
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, rverrors.CatalogUnavailable("open", err)
		}
		dsn = opts.Path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, rverrors.CatalogUnavailable("open", err)
	}
	// One connection: a single writer, and :memory: stays one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, rverrors.CatalogUnavailable("configure", err)
		}
	}

	var check string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&check); err != nil || check != "ok" {
		_ = db.Close()
		return nil, rverrors.New(rverrors.ErrCodeCorruptIndex, "catalog database failed integrity check", err).
			WithDetail("path", opts.Path).
			WithSuggestion("re-import the catalog")
	}

	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, rverrors.CatalogUnavailable("init schema", err)
	}

	s := &Store{
		db:      db,
		path:    opts.Path,
		backend: opts.KeywordBackend,
		logger:  opts.Logger,
		dims:    opts.Dimensions,
	}

	switch opts.KeywordBackend {
	case KeywordSQLite:
		s.keyword = &ftsIndex{db: db}
	case KeywordBleve:
		bpath := ""
		if opts.Path != "" {
			bpath = sibling(opts.Path, ".bleve")
		}
		idx, err := NewBleveKeywordIndex(bpath)
		if err != nil {
			_ = db.Close()
			return nil, rverrors.CatalogUnavailable("open keyword index", err)
		}
		s.keyword = idx
	default:
		_ = db.Close()
		return nil, rverrors.ConfigError("unknown keyword backend: "+opts.KeywordBackend, nil)
	}

	s.vectors = NewVectorIndex(opts.Dimensions)
	if opts.Path != "" {
		v, err := LoadVectorIndex(s.VectorPath(), opts.Dimensions)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.vectors = v
	}
	return s, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);
	CREATE TABLE IF NOT EXISTS movies (
		id          TEXT PRIMARY KEY,
		tmdb_id     INTEGER,
		title       TEXT NOT NULL,
		title_norm  TEXT NOT NULL,
		year        INTEGER,
		overview    TEXT,
		runtime     INTEGER,
		director    TEXT,
		cast_json   TEXT,
		popularity  REAL NOT NULL DEFAULT 0,
		rating      REAL NOT NULL DEFAULT 0,
		genres_json TEXT,
		tags_json   TEXT,
		archetype   TEXT,
		boosters_json TEXT,
		poster_url  TEXT,
		tagline     TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_movies_title_norm ON movies(title_norm);
	CREATE VIRTUAL TABLE IF NOT EXISTS movies_fts USING fts5(
		doc_id UNINDEXED,
		content,
		tokenize='unicode61'
	);
	INSERT OR IGNORE INTO schema_version (version) VALUES (1);`)
	return err
}

// sibling returns path with its extension replaced by ext.
func sibling(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// VectorPath is the HNSW file next to the database. Empty for in-memory stores.
func (s *Store) VectorPath() string {
	if s.path == "" {
		return ""
	}
	return sibling(s.path, ".hnsw")
}

const selectColumns = `id, tmdb_id, title, year, overview, runtime, director, cast_json,
	popularity, rating, genres_json, tags_json, archetype, boosters_json, poster_url, tagline`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e                                        Entry
		tmdb, year, runtime                      sql.NullInt64
		overview, director, archetype            sql.NullString
		poster, tagline                          sql.NullString
		castJSON, genresJSON, tagsJSON, boosters sql.NullString
	)
	err := row.Scan(&e.ID, &tmdb, &e.Title, &year, &overview, &runtime, &director, &castJSON,
		&e.Popularity, &e.Rating, &genresJSON, &tagsJSON, &archetype, &boosters, &poster, &tagline)
	if err != nil {
		return Entry{}, err
	}
	e.TMDBID = int(tmdb.Int64)
	e.Year = int(year.Int64)
	e.Runtime = int(runtime.Int64)
	e.Overview = overview.String
	e.Director = director.String
	e.Archetype = archetype.String
	e.PosterURL = poster.String
	e.Tagline = tagline.String
	e.Cast = decodeList(castJSON)
	e.Genres = decodeList(genresJSON)
	e.Tags = decodeList(tagsJSON)
	e.Boosters = decodeList(boosters)
	return e, nil
}

func decodeList(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		return nil
	}
	return out
}

func encodeList(list []string) any {
	if len(list) == 0 {
		return nil
	}
	data, _ := json.Marshal(list)
	return string(data)
}

func nullInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

// Get returns the entry with id, or an ErrCodeMovieNotFound error.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM movies WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rverrors.New(rverrors.ErrCodeMovieNotFound, "movie not found", nil).WithDetail("id", id)
	}
	if err != nil {
		return nil, rverrors.CatalogUnavailable("get", err)
	}
	return &e, nil
}

// GetMany returns entries for ids keyed by ID. Unknown IDs are absent.
func (s *Store) GetMany(ctx context.Context, ids []string) (map[string]Entry, error) {
	out := make(map[string]Entry, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM movies WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, rverrors.CatalogUnavailable("get many", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, rverrors.CatalogUnavailable("scan", err)
		}
		out[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, rverrors.CatalogUnavailable("get many", err)
	}
	return out, nil
}

// FindByTitle returns all rows whose normalized title equals title's.
func (s *Store) FindByTitle(ctx context.Context, title string) ([]Entry, error) {
	norm := query.Normalize(title)
	if norm == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM movies WHERE title_norm = ? ORDER BY popularity DESC, id`, norm)
	if err != nil {
		return nil, rverrors.CatalogUnavailable("find by title", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, rverrors.CatalogUnavailable("scan", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, rverrors.CatalogUnavailable("find by title", err)
	}
	return out, nil
}

// Titles returns the fuzzy-match snapshot. It is built on first use and
// rebuilt after Upsert.
func (s *Store) Titles(ctx context.Context) ([]TitleRef, error) {
	s.titlesMu.Lock()
	defer s.titlesMu.Unlock()
	if s.titles != nil {
		return s.titles, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, title, title_norm, year, popularity FROM movies ORDER BY id`)
	if err != nil {
		return nil, rverrors.CatalogUnavailable("list titles", err)
	}
	defer func() { _ = rows.Close() }()

	refs := []TitleRef{}
	for rows.Next() {
		var r TitleRef
		var year sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Title, &r.Normalized, &year, &r.Popularity); err != nil {
			return nil, rverrors.CatalogUnavailable("scan", err)
		}
		r.Year = int(year.Int64)
		refs = append(refs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, rverrors.CatalogUnavailable("list titles", err)
	}
	s.titles = refs
	return refs, nil
}

// KeywordSearch ranks entries against text with the configured backend.
func (s *Store) KeywordSearch(ctx context.Context, text string, limit int) ([]KeywordHit, error) {
	hits, err := s.keyword.Search(ctx, text, limit)
	if err != nil {
		return nil, rverrors.New(rverrors.ErrCodeSearchFailed, "keyword search failed", err)
	}
	return hits, nil
}

// SimilaritySearch returns the k nearest entries to vec.
func (s *Store) SimilaritySearch(_ context.Context, vec []float32, k int) ([]VectorHit, error) {
	s.mu.RLock()
	v := s.vectors
	s.mu.RUnlock()
	return v.Search(vec, k)
}

// VectorDistance returns the cosine distance between vec and the stored
// vector of id. ok is false when the entry has no vector.
func (s *Store) VectorDistance(_ context.Context, id string, vec []float32) (float32, bool, error) {
	s.mu.RLock()
	v := s.vectors
	s.mu.RUnlock()
	return v.Distance(id, vec)
}

// Upsert inserts or replaces entries. Entries carrying an Embedding are
// added to the vector index, which is saved when the store is on disk.
func (s *Store) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if e.ID == "" || strings.TrimSpace(e.Title) == "" {
			return rverrors.ValidationError("catalog entries need an id and a title", nil).
				WithDetail("id", e.ID)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rverrors.CatalogUnavailable("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO movies (
		id, tmdb_id, title, title_norm, year, overview, runtime, director, cast_json,
		popularity, rating, genres_json, tags_json, archetype, boosters_json, poster_url, tagline
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return rverrors.CatalogUnavailable("prepare upsert", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		_, err := stmt.ExecContext(ctx,
			e.ID, nullInt(e.TMDBID), strings.TrimSpace(e.Title), query.Normalize(e.Title), nullInt(e.Year),
			e.Overview, nullInt(e.Runtime), e.Director, encodeList(e.Cast),
			e.Popularity, e.Rating, encodeList(e.Genres), encodeList(e.Tags),
			e.Archetype, encodeList(e.Boosters), e.PosterURL, e.Tagline)
		if err != nil {
			return rverrors.CatalogUnavailable("upsert "+e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return rverrors.CatalogUnavailable("commit", err)
	}

	if err := s.keyword.Index(ctx, entries); err != nil {
		return rverrors.CatalogUnavailable("keyword index", err)
	}

	var ids []string
	var vecs [][]float32
	for _, e := range entries {
		if len(e.Embedding) > 0 {
			ids = append(ids, e.ID)
			vecs = append(vecs, e.Embedding)
		}
	}
	if len(ids) > 0 {
		s.mu.RLock()
		v := s.vectors
		s.mu.RUnlock()
		if err := v.Add(ids, vecs); err != nil {
			return err
		}
		if path := s.VectorPath(); path != "" {
			if err := v.Save(path); err != nil {
				return rverrors.CatalogUnavailable("save vectors", err)
			}
		}
	}

	s.titlesMu.Lock()
	s.titles = nil
	s.titlesMu.Unlock()
	return nil
}

// ReloadVectors replaces the in-memory vector index with the file on disk.
func (s *Store) ReloadVectors() error {
	path := s.VectorPath()
	if path == "" {
		return nil
	}
	v, err := LoadVectorIndex(path, s.dims)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.vectors = v
	s.mu.Unlock()

	s.logger.Info(logging.EventIndexReloaded,
		slog.String("path", path),
		slog.Int("vectors", v.Len()))
	return nil
}

// Stats summarizes the catalog.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies`).Scan(&n); err != nil {
		return Stats{}, rverrors.CatalogUnavailable("count", err)
	}
	s.mu.RLock()
	v := s.vectors
	s.mu.RUnlock()

	return Stats{
		Entries:        n,
		Vectors:        v.Len(),
		Dimensions:     v.Dimensions(),
		KeywordBackend: s.backend,
		Path:           s.path,
	}, nil
}

// Close releases the database and keyword index.
func (s *Store) Close() error {
	var errs []error
	if s.keyword != nil {
		errs = append(errs, s.keyword.Close())
	}
	if s.path != "" {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}
