// Package keyword provides BM25 keyword search over document chunks.
package keyword

import (
	"context"

	"github.com/hyperjump/kaiwa/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 1 when FuzzyEnabled is true.
	Fuzziness int
}

// KeywordIndex defines keyword indexing and search over chunks.
type KeywordIndex interface {
	IndexChunks(ctx context.Context, chunks []*models.Chunk) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	Close() error
}

// KeywordResult is a single keyword search hit; ID is the chunk ID.
type KeywordResult struct {
	ID    string
	Score float64
}
