package catalog

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	rverrors "github.com/Aman-CERP/reelvibe/internal/errors"
)

// VectorIndex is an HNSW graph over catalog embeddings with cosine
// distance. Replacing a vector orphans the old node instead of deleting
// it from the graph; orphans are skipped at search time.
type VectorIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]
	dims  int

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

type vectorMeta struct {
	IDMap      map[string]uint64
	NextKey    uint64
	Dimensions int
}

// NewVectorIndex creates an empty index. dims 0 adopts the dimension of
// the first vector added.
func NewVectorIndex(dims int) *VectorIndex {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 64
	g.Ml = 0.25

	return &VectorIndex{
		graph:  g,
		dims:   dims,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// Add inserts or replaces vectors.
func (v *VectorIndex) Add(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	for i, id := range ids {
		vec := vectors[i]
		if v.dims == 0 {
			v.dims = len(vec)
		}
		if len(vec) != v.dims {
			return dimensionMismatch(v.dims, len(vec))
		}

		if old, ok := v.idMap[id]; ok {
			delete(v.keyMap, old)
		}

		key := v.nextKey
		v.nextKey++
		v.graph.Add(hnsw.MakeNode(key, normalized(vec)))
		v.idMap[id] = key
		v.keyMap[key] = id
	}
	return nil
}

// Search returns up to k nearest live vectors ordered by distance.
func (v *VectorIndex) Search(q []float32, k int) ([]VectorHit, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if len(v.idMap) == 0 || k <= 0 {
		return []VectorHit{}, nil
	}
	if len(q) != v.dims {
		return nil, dimensionMismatch(v.dims, len(q))
	}

	qn := normalized(q)
	// Ask for extra neighbours so orphans do not starve the result.
	want := k + (v.graph.Len() - len(v.idMap))
	nodes := v.graph.Search(qn, want)

	hits := make([]VectorHit, 0, k)
	for _, n := range nodes {
		id, ok := v.keyMap[n.Key]
		if !ok {
			continue
		}
		hits = append(hits, VectorHit{ID: id, Distance: v.graph.Distance(qn, n.Value)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Distance returns the cosine distance between q and the vector stored
// for id. ok is false when id has no vector.
func (v *VectorIndex) Distance(id string, q []float32) (d float32, ok bool, err error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	key, ok := v.idMap[id]
	if !ok {
		return 0, false, nil
	}
	stored, ok := v.graph.Lookup(key)
	if !ok {
		return 0, false, nil
	}
	if len(q) != v.dims {
		return 0, false, dimensionMismatch(v.dims, len(q))
	}
	return v.graph.Distance(normalized(q), stored), true, nil
}

// Len returns the number of live vectors.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.idMap)
}

// Dimensions returns the vector dimension, 0 if still unknown.
func (v *VectorIndex) Dimensions() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.dims
}

// Save writes the graph to path and the ID mapping to path+".meta",
// each through a temp file and rename.
func (v *VectorIndex) Save(path string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	if err := writeAtomic(path, func(f *os.File) error { return v.graph.Export(f) }); err != nil {
		return fmt.Errorf("export graph: %w", err)
	}
	meta := vectorMeta{IDMap: v.idMap, NextKey: v.nextKey, Dimensions: v.dims}
	if err := writeAtomic(path+".meta", func(f *os.File) error { return gob.NewEncoder(f).Encode(meta) }); err != nil {
		return fmt.Errorf("write index meta: %w", err)
	}
	return nil
}

// LoadVectorIndex reads an index written by Save. A missing file yields
// an empty index.
func LoadVectorIndex(path string, dims int) (*VectorIndex, error) {
	mf, err := os.Open(path + ".meta")
	if os.IsNotExist(err) {
		return NewVectorIndex(dims), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open index meta: %w", err)
	}
	defer func() { _ = mf.Close() }()

	var meta vectorMeta
	if err := gob.NewDecoder(mf).Decode(&meta); err != nil {
		return nil, rverrors.New(rverrors.ErrCodeCorruptIndex, "vector index metadata is unreadable", err).
			WithDetail("path", path)
	}
	if dims > 0 && meta.Dimensions > 0 && dims != meta.Dimensions {
		return nil, dimensionMismatch(dims, meta.Dimensions)
	}

	gf, err := os.Open(path)
	if err != nil {
		return nil, rverrors.New(rverrors.ErrCodeCorruptIndex, "vector index graph is missing", err).
			WithDetail("path", path)
	}
	defer func() { _ = gf.Close() }()

	v := NewVectorIndex(meta.Dimensions)
	// Import needs an io.ByteReader.
	if err := v.graph.Import(bufio.NewReader(gf)); err != nil {
		return nil, rverrors.New(rverrors.ErrCodeCorruptIndex, "vector index graph is unreadable", err).
			WithDetail("path", path)
	}
	v.idMap = meta.IDMap
	v.nextKey = meta.NextKey
	for id, key := range meta.IDMap {
		v.keyMap[key] = id
	}
	return v, nil
}

func writeAtomic(path string, write func(*os.File) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func normalized(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	var sum float32
	for _, x := range out {
		sum += x * x
	}
	if sum == 0 {
		return out
	}
	inv := 1 / float32(math.Sqrt(float64(sum)))
	for i := range out {
		out[i] *= inv
	}
	return out
}

func dimensionMismatch(want, got int) *rverrors.Error {
	return rverrors.New(rverrors.ErrCodeDimensionMismatch,
		fmt.Sprintf("vector has %d dimensions, index expects %d", got, want), nil).
		WithSuggestion("re-import the catalog with the configured embedding model")
}
