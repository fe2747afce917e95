package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/reelvibe/internal/catalog"
)

func intp(v int) *int { return &v }

func floatp(v float64) *float64 { return &v }

func newTestCatalog(t *testing.T, entries ...catalog.Entry) (*catalog.Store, *catalog.Resolver) {
	t.Helper()
	s, err := catalog.Open(context.Background(), catalog.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	if len(entries) > 0 {
		require.NoError(t, s.Upsert(context.Background(), entries))
	}
	r, err := catalog.NewResolver(s)
	require.NoError(t, err)
	return s, r
}

// --- TS01: canonical key dedup ---

func TestDedup_PulpFiction(t *testing.T) {
	// Given: one Pulp Fiction row and three spellings of it
	_, r := newTestCatalog(t, catalog.Entry{ID: "pf", Title: "Pulp Fiction", Year: 1994, Popularity: 80})
	cands := []catalog.Candidate{
		{RawTitle: "Pulp Fiction", YearHint: intp(1994)},
		{RawTitle: "pulp fiction (1994)"},
		{RawTitle: "Pulp Fiction", YearHint: intp(1995)},
	}

	// When: resolving and deduplicating
	resolved, err := r.ResolveAll(context.Background(), cands)
	require.NoError(t, err)
	out := Dedup(resolved)

	// Then: exactly one result keyed ("pulp fiction", 1994)
	require.Len(t, out, 1)
	key := CanonicalKey(out[0])
	assert.Equal(t, "pulp fiction", key.Title)
	require.NotNil(t, key.Year)
	assert.Equal(t, 1994, *key.Year)
	assert.Equal(t, catalog.MethodExact, out[0].Method)
}

func TestDedup_KeepsDistinctYearsAndOrder(t *testing.T) {
	in := []catalog.Resolved{
		{Candidate: catalog.Candidate{RawTitle: "Dune (1984)"}},
		{Candidate: catalog.Candidate{RawTitle: "Dune (2021)"}},
		{Candidate: catalog.Candidate{RawTitle: "DUNE", YearHint: intp(1984)}},
		{Candidate: catalog.Candidate{RawTitle: "Dune"}},
	}

	out := Dedup(in)

	require.Len(t, out, 3)
	assert.Equal(t, "Dune (1984)", out[0].Candidate.RawTitle)
	assert.Equal(t, "Dune (2021)", out[1].Candidate.RawTitle)
	assert.Equal(t, "Dune", out[2].Candidate.RawTitle)
}

func TestDedup_Empty(t *testing.T) {
	out := Dedup(nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestKey_Less(t *testing.T) {
	a := Key{Title: "heat"}
	b := Key{Title: "heat", Year: intp(1995)}
	c := Key{Title: "heat", Year: intp(1986)}
	d := Key{Title: "ronin"}

	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.True(t, c.Less(b))
	assert.True(t, b.Less(d))
	assert.False(t, a.Less(a))
}
