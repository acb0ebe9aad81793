// Package vector provides vector storage and similarity search.
package vector

import "context"

// VectorIndex stores vectors under ids and returns the nearest ones to a query.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Size() int
	Close() error
}

// VectorResult is a single vector search hit. Ordinal is the insertion order of
// the vector, which callers use to break ties and to look up their own records.
type VectorResult struct {
	ID      string
	Ordinal int
	Score   float64 // inner product; cosine similarity for normalized vectors
}
