// Package models defines core data structures for documents, chunks, and conversations.
package models

import "time"

// Document describes the uploaded document the current index was built from.
// The extracted text is not retained once it has been chunked.
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Extension  string    `json:"extension"`
	SizeBytes  int64     `json:"size_bytes"`
	TextLength int       `json:"text_length"`
	ChunkCount int       `json:"chunk_count"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Chunk is a contiguous window of a document's text, the unit of retrieval.
// Start is the rune offset of Content in the source text.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Content    string `json:"content"`
	Position   int    `json:"position"`
	Start      int    `json:"start"`
}

// ScoredChunk is a chunk returned by retrieval with its similarity score.
type ScoredChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
}
