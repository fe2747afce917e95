package embed

import (
	"fmt"
	"time"

	"github.com/Aman-CERP/reelvibe/internal/config"
)

// New builds the configured embedder wrapped in a CachedEmbedder.
// offline forces the static embedder.
func New(cfg config.EmbeddingsConfig, offline bool) (Embedder, error) {
	var inner Embedder
	switch {
	case offline || cfg.Provider == "static":
		inner = NewStaticEmbedderWithDimensions(cfg.Dimensions)
	case cfg.Provider == "ollama":
		o, err := NewOllamaEmbedder(OllamaConfig{
			Host:       cfg.Host,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    30 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		inner = o
	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", cfg.Provider)
	}
	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
