// Package retrieval selects the chunks that go into an answer's context.
package retrieval

import (
	"context"
	"fmt"

	"github.com/hyperjump/kaiwa/internal/config"
	"github.com/hyperjump/kaiwa/internal/embedding"
	"github.com/hyperjump/kaiwa/internal/index"
	"github.com/hyperjump/kaiwa/internal/models"
)

// Retriever returns the chunks of idx most relevant to query, best first.
type Retriever interface {
	Retrieve(ctx context.Context, idx *index.Index, query string) ([]*models.ScoredChunk, error)
}

// Semantic retrieves the k chunks closest to the query embedding.
type Semantic struct {
	embedder embedding.Embedder
	k        int
}

// NewSemantic returns a Semantic retriever. k <= 0 uses config.DefaultTopK.
func NewSemantic(embedder embedding.Embedder, k int) *Semantic {
	if k <= 0 {
		k = config.DefaultTopK
	}
	return &Semantic{embedder: embedder, k: k}
}

// Retrieve implements Retriever.
func (s *Semantic) Retrieve(ctx context.Context, idx *index.Index, query string) ([]*models.ScoredChunk, error) {
	if idx == nil {
		return nil, models.ErrNoIndex
	}
	return idx.Query(ctx, query, s.embedder, s.k)
}

// K returns the number of chunks returned per query.
func (s *Semantic) K() int {
	return s.k
}

// New builds the retriever for cfg.Strategy.
func New(cfg *config.RetrievalConfig, embedder embedding.Embedder) (Retriever, error) {
	switch cfg.Strategy {
	case "", config.StrategySemantic:
		return NewSemantic(embedder, cfg.TopK), nil
	case config.StrategyHybrid:
		var opts []HybridOption
		if cfg.Fuzzy {
			opts = append(opts, WithFuzziness(cfg.Fuzziness))
		}
		return NewHybrid(embedder, cfg.TopK, cfg.SemanticWeight, cfg.KeywordWeight, opts...), nil
	default:
		return nil, fmt.Errorf("%w: unknown retrieval strategy %q", models.ErrConfiguration, cfg.Strategy)
	}
}
