package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnExternalWrite(t *testing.T) {
	// Given: an on-disk catalog with no vectors and a running watcher
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := Open(ctx, Options{Path: filepath.Join(t.TempDir(), "catalog.db")})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	w, err := NewWatcher(s, 50*time.Millisecond, nil)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()
	go w.Run(ctx)

	// When: another process writes the vector files
	external := NewVectorIndex(3)
	require.NoError(t, external.Add([]string{"a", "b"}, [][]float32{{1, 0, 0}, {0, 1, 0}}))
	require.NoError(t, external.Save(s.VectorPath()))

	// Then: the store picks them up
	assert.Eventually(t, func() bool {
		stats, err := s.Stats(ctx)
		return err == nil && stats.Vectors == 2
	}, 5*time.Second, 25*time.Millisecond)
}

func TestNewWatcher_InMemoryStore(t *testing.T) {
	s := newTestStore(t)
	_, err := NewWatcher(s, 0, nil)
	assert.Error(t, err)
}
