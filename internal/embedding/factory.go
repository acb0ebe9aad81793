package embedding

import (
	"fmt"

	"github.com/hyperjump/kaiwa/internal/config"
	"github.com/hyperjump/kaiwa/internal/models"
)

// New builds the embedder named by cfg.Provider, wrapped with an LRU cache
// for the remote and model-backed providers.
func New(cfg *config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case config.EmbeddingHashing, "":
		return NewHashingEmbedder(cfg.Dimensions), nil
	case config.EmbeddingOllama:
		e := NewOllamaEmbedder(OllamaConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout(),
		})
		return NewCachedEmbedder(e, cfg.CacheSize), nil
	case config.EmbeddingONNX:
		e, err := NewONNXEmbedder(ONNXConfig{
			ModelPath:   cfg.ModelPath,
			LibraryPath: cfg.LibraryPath,
			Dimensions:  cfg.Dimensions,
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrEmbedding, err)
		}
		return NewCachedEmbedder(e, cfg.CacheSize), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", models.ErrConfiguration, cfg.Provider)
	}
}
