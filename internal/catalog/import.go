package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Aman-CERP/reelvibe/internal/embed"
	"github.com/Aman-CERP/reelvibe/internal/query"
)

// importBatchSize bounds how many texts go to the embedder per call.
const importBatchSize = 32

// ReadEntries decodes a JSON array of entries and fills in missing IDs.
func ReadEntries(r io.Reader) ([]Entry, error) {
	var entries []Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode catalog entries: %w", err)
	}
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = EntryID(entries[i])
		}
	}
	return entries, nil
}

// EntryID derives a stable ID: "tmdb:<id>" when known, else a slug of
// title and year.
func EntryID(e Entry) string {
	if e.TMDBID > 0 {
		return fmt.Sprintf("tmdb:%d", e.TMDBID)
	}
	slug := strings.ReplaceAll(query.Normalize(e.Title), " ", "-")
	if e.Year > 0 {
		return fmt.Sprintf("%s-%d", slug, e.Year)
	}
	return slug
}

// EmbeddingText is the text embedded for an entry.
func EmbeddingText(e Entry) string {
	var b strings.Builder
	b.WriteString(e.Title)
	if e.Tagline != "" {
		b.WriteString(". ")
		b.WriteString(e.Tagline)
	}
	if e.Overview != "" {
		b.WriteString(". ")
		b.WriteString(e.Overview)
	}
	if len(e.Genres) > 0 {
		b.WriteString(". Genres: ")
		b.WriteString(strings.Join(e.Genres, ", "))
	}
	if len(e.Tags) > 0 {
		b.WriteString(". Tags: ")
		b.WriteString(strings.Join(e.Tags, ", "))
	}
	return b.String()
}

// Import embeds entries lacking a vector and upserts everything. It
// returns the number of entries that were embedded.
func Import(ctx context.Context, s *Store, entries []Entry, embedder embed.Embedder) (int, error) {
	var missing []int
	for i, e := range entries {
		if len(e.Embedding) == 0 {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 && embedder == nil {
		return 0, fmt.Errorf("%d entries have no embedding and no embedder is configured", len(missing))
	}

	for start := 0; start < len(missing); start += importBatchSize {
		end := min(start+importBatchSize, len(missing))
		batch := missing[start:end]

		texts := make([]string, len(batch))
		for j, idx := range batch {
			texts[j] = EmbeddingText(entries[idx])
		}
		vecs, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, err
		}
		for j, idx := range batch {
			entries[idx].Embedding = vecs[j]
		}
	}

	if err := s.Upsert(ctx, entries); err != nil {
		return 0, err
	}
	return len(missing), nil
}
