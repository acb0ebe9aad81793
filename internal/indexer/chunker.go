// Package indexer turns uploaded documents into chunks and builds the retrieval index.
package indexer

import (
	"fmt"

	"github.com/hyperjump/kaiwa/internal/models"
)

// Chunker splits text into overlapping fixed-size windows measured in runes.
type Chunker struct {
	maxSize int
	overlap int
}

// NewChunker creates a chunker. It requires 0 <= overlap < maxSize.
func NewChunker(maxSize, overlap int) (*Chunker, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", models.ErrConfiguration, maxSize)
	}
	if overlap < 0 || overlap >= maxSize {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", models.ErrConfiguration, maxSize, overlap)
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}, nil
}

// Split cuts text into windows of at most maxSize runes. Each window starts
// maxSize-overlap runes after the previous one; the last one may be shorter.
// Splitting stops at the first window that reaches the end of the text.
func (c *Chunker) Split(docID, text string) []*models.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := c.maxSize - c.overlap
	chunks := make([]*models.Chunk, 0, len(runes)/step+1)
	for start := 0; ; start += step {
		end := start + c.maxSize
		if end > len(runes) {
			end = len(runes)
		}
		pos := len(chunks)
		chunks = append(chunks, &models.Chunk{
			ID:         ChunkID(docID, pos),
			DocumentID: docID,
			Content:    string(runes[start:end]),
			Position:   pos,
			Start:      start,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// Split is a convenience wrapper around NewChunker and (*Chunker).Split.
func Split(docID, text string, maxSize, overlap int) ([]*models.Chunk, error) {
	c, err := NewChunker(maxSize, overlap)
	if err != nil {
		return nil, err
	}
	return c.Split(docID, text), nil
}

// ChunkID returns the id of the chunk at position pos in document docID.
func ChunkID(docID string, pos int) string {
	return fmt.Sprintf("%s#%d", docID, pos)
}
