package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEntries_AssignsIDs(t *testing.T) {
	r := strings.NewReader(`[
		{"tmdb_id": 603, "title": "The Matrix", "year": 1999},
		{"title": "Amélie", "year": 2001},
		{"title": "Metropolis"},
		{"id": "custom", "title": "Heat"}
	]`)

	entries, err := ReadEntries(r)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, "tmdb:603", entries[0].ID)
	assert.Equal(t, "amelie-2001", entries[1].ID)
	assert.Equal(t, "metropolis", entries[2].ID)
	assert.Equal(t, "custom", entries[3].ID)
}

func TestReadEntries_RejectsNonArray(t *testing.T) {
	_, err := ReadEntries(strings.NewReader(`{"title": "Heat"}`))
	assert.Error(t, err)
}

func TestEmbeddingText(t *testing.T) {
	text := EmbeddingText(Entry{Title: "Heat", Tagline: "A Los Angeles crime saga", Genres: []string{"Crime", "Drama"}})
	assert.Equal(t, "Heat. A Los Angeles crime saga. Genres: Crime, Drama", text)
}
