package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Aman-CERP/reelvibe/internal/query"
)

// Keyword backend names.
const (
	KeywordSQLite = "sqlite"
	KeywordBleve  = "bleve"
)

// KeywordIndex ranks catalog entries against free text.
type KeywordIndex interface {
	Index(ctx context.Context, entries []Entry) error
	Search(ctx context.Context, text string, limit int) ([]KeywordHit, error)
	Close() error
}

var keywordStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true,
	"in": true, "on": true, "to": true, "with": true, "for": true, "but": true,
	"movie": true, "movies": true, "film": true, "films": true, "like": true,
	"some": true, "me": true, "i": true, "want": true, "show": true,
}

// keywordTerms normalizes text and drops stop words.
func keywordTerms(text string) []string {
	var terms []string
	for _, t := range strings.Fields(query.Normalize(text)) {
		if !keywordStopWords[t] {
			terms = append(terms, t)
		}
	}
	return terms
}

// keywordDocument is the searchable text of an entry.
func keywordDocument(e Entry) string {
	parts := []string{e.Title, e.Director, e.Archetype, e.Tagline, e.Overview}
	parts = append(parts, e.Cast...)
	parts = append(parts, e.Genres...)
	parts = append(parts, e.Tags...)
	parts = append(parts, e.Boosters...)
	return query.Normalize(strings.Join(parts, " "))
}

// saturate maps a non-negative relevance score into [0, 1). half is the
// score that maps to 0.5.
func saturate(score, half float64) float64 {
	if score <= 0 {
		return 0
	}
	return score / (score + half)
}

// ftsHalfScore is the FTS5 BM25 score treated as a middling match.
const ftsHalfScore = 10.0

// ftsIndex is the FTS5 keyword index inside the catalog database.
type ftsIndex struct {
	db *sql.DB
}

func (f *ftsIndex) Index(ctx context.Context, entries []Entry) error {
	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin fts tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	del, err := tx.PrepareContext(ctx, `DELETE FROM movies_fts WHERE doc_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare fts delete: %w", err)
	}
	defer func() { _ = del.Close() }()
	ins, err := tx.PrepareContext(ctx, `INSERT INTO movies_fts (doc_id, content) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare fts insert: %w", err)
	}
	defer func() { _ = ins.Close() }()

	for _, e := range entries {
		if _, err := del.ExecContext(ctx, e.ID); err != nil {
			return fmt.Errorf("fts delete %s: %w", e.ID, err)
		}
		if _, err := ins.ExecContext(ctx, e.ID, keywordDocument(e)); err != nil {
			return fmt.Errorf("fts insert %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

func (f *ftsIndex) Search(ctx context.Context, text string, limit int) ([]KeywordHit, error) {
	terms := keywordTerms(text)
	if len(terms) == 0 || limit <= 0 {
		return []KeywordHit{}, nil
	}

	// Any term may match; BM25 rewards documents matching more of them.
	// Terms are normalized to [a-z0-9]+, so the quoted query always parses.
	match := `"` + strings.Join(terms, `" OR "`) + `"`

	// bm25() is negative, lower is better.
	rows, err := f.db.QueryContext(ctx, `
		SELECT doc_id, bm25(movies_fts) AS score
		FROM movies_fts
		WHERE movies_fts MATCH ?
		ORDER BY score
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("fts search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := []KeywordHit{}
	for rows.Next() {
		var id string
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, fmt.Errorf("scan fts row: %w", err)
		}
		hits = append(hits, KeywordHit{ID: id, Score: -score, Rank: saturate(-score, ftsHalfScore)})
	}
	return hits, rows.Err()
}

// Close is a no-op; the database belongs to the Store.
func (f *ftsIndex) Close() error { return nil }
