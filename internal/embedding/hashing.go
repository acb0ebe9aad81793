package embedding

import (
	"context"

	"github.com/hyperjump/kaiwa/pkg/utils"
)

// DefaultHashingDimensions is used when NewHashingEmbedder gets a non-positive size.
const DefaultHashingDimensions = 1024

// HashingEmbedder is a deterministic bag-of-words embedder. Each lowercase word is
// hashed into one of the vector's buckets and counted; the result is L2 normalised.
// Texts that share words get a positive cosine, which is enough for lexical
// retrieval without a model, and it makes tests reproducible.
type HashingEmbedder struct {
	dimensions int
}

// NewHashingEmbedder returns a feature-hashing embedder with the given dimensions.
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultHashingDimensions
	}
	return &HashingEmbedder{dimensions: dimensions}
}

// Embed returns the hashed term-frequency vector of text. Text with no words
// yields the zero vector.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	for _, w := range Words(text) {
		emb[HashToken(w)%uint32(e.dimensions)]++
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, texts, e.Embed)
}

// Dimensions returns the embedding dimension.
func (e *HashingEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HashingEmbedder.
func (e *HashingEmbedder) Close() error {
	return nil
}
