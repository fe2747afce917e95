// Package embed computes text embeddings for the hybrid search regime.
package embed

import (
	"context"
	"math"
)

const (
	// DefaultCacheSize is the number of query embeddings CachedEmbedder keeps.
	DefaultCacheSize = 1000

	// StaticDimensions is the default dimension of StaticEmbedder vectors.
	StaticDimensions = 256
)

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Close() error
}

// normalizeVector scales v to unit length in place. Zero vectors are left alone.
func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
