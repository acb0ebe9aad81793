// Package index holds the immutable similarity index built from one document's chunks.
package index

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/kaiwa/internal/embedding"
	"github.com/hyperjump/kaiwa/internal/keyword"
	"github.com/hyperjump/kaiwa/internal/models"
	"github.com/hyperjump/kaiwa/internal/vector"
	"github.com/hyperjump/kaiwa/pkg/utils"
	"go.uber.org/zap"
)

var newKeywordIndex = func() (keyword.KeywordIndex, error) {
	return keyword.NewBleveIndex()
}

// Index owns the chunks of one document and their embedding vectors. It is
// read-only once Build returns and safe for concurrent queries.
type Index struct {
	document   *models.Document
	chunks     []*models.Chunk
	byID       map[string]*models.Chunk
	vectors    *vector.MemoryIndex
	keywords   keyword.KeywordIndex
	dimensions int
	builtAt    time.Time
}

// BuildOption configures Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	document  *models.Document
	keywords  bool
	batchSize int
	progress  func(done, total int)
	logger    *zap.Logger
}

// WithDocument attaches document metadata to the index.
func WithDocument(doc *models.Document) BuildOption {
	return func(o *buildOptions) { o.document = doc }
}

// WithKeywordIndex also builds an in-memory BM25 index over the chunks.
func WithKeywordIndex() BuildOption {
	return func(o *buildOptions) { o.keywords = true }
}

// WithBatchSize sets how many chunks are sent to the embedder per call.
func WithBatchSize(n int) BuildOption {
	return func(o *buildOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithProgress registers a callback invoked after each embedded batch.
func WithProgress(fn func(done, total int)) BuildOption {
	return func(o *buildOptions) { o.progress = fn }
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) BuildOption {
	return func(o *buildOptions) { o.logger = l }
}

const defaultBatchSize = 32

// Build embeds every chunk and returns the resulting index. Any embedder failure
// or vector of the wrong dimension fails the whole build with models.ErrEmbedding.
// An empty chunk set builds an empty index.
func Build(ctx context.Context, chunks []*models.Chunk, embedder embedding.Embedder, opts ...BuildOption) (*Index, error) {
	o := buildOptions{batchSize: defaultBatchSize}
	for _, opt := range opts {
		opt(&o)
	}
	dims := embedder.Dimensions()
	if dims <= 0 {
		return nil, fmt.Errorf("%w: embedder reports %d dimensions", models.ErrEmbedding, dims)
	}
	vecIndex, err := vector.NewMemoryIndex(dims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConfiguration, err)
	}

	for start := 0; start < len(chunks); start += o.batchSize {
		end := start + o.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		ids := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Content
			ids[i] = ch.ID
		}
		vecs, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("%w: embed chunks %d-%d: %v", models.ErrEmbedding, start, end-1, err)
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("%w: embedder returned %d vectors for %d chunks", models.ErrEmbedding, len(vecs), len(batch))
		}
		for i, v := range vecs {
			if len(v) != dims {
				return nil, fmt.Errorf("%w: chunk %s has dimension %d, expected %d", models.ErrEmbedding, ids[i], len(v), dims)
			}
			normalized := make([]float32, dims)
			copy(normalized, v)
			utils.NormalizeL2(normalized)
			vecs[i] = normalized
		}
		if err := vecIndex.Add(ctx, ids, vecs); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrEmbedding, err)
		}
		if o.progress != nil {
			o.progress(end, len(chunks))
		}
	}

	byID := make(map[string]*models.Chunk, len(chunks))
	for _, ch := range chunks {
		byID[ch.ID] = ch
	}
	idx := &Index{
		document:   o.document,
		chunks:     append([]*models.Chunk(nil), chunks...),
		byID:       byID,
		vectors:    vecIndex,
		dimensions: dims,
		builtAt:    time.Now(),
	}
	if o.keywords {
		kw, err := newKeywordIndex()
		if err != nil {
			return nil, fmt.Errorf("%w: keyword index: %v", models.ErrConfiguration, err)
		}
		if err := kw.IndexChunks(ctx, chunks); err != nil {
			_ = kw.Close()
			return nil, fmt.Errorf("keyword index: %w", err)
		}
		idx.keywords = kw
	}
	if o.logger != nil {
		o.logger.Debug("index built",
			zap.Int("chunks", len(chunks)),
			zap.Int("dimensions", dims),
			zap.Bool("keywords", o.keywords))
	}
	return idx, nil
}

// Query embeds text with embedder and returns up to k chunks, most similar
// first by cosine similarity. Equal scores keep chunk order. k <= 0 or
// k >= Len returns every chunk.
func (idx *Index) Query(ctx context.Context, text string, embedder embedding.Embedder, k int) ([]*models.ScoredChunk, error) {
	if len(idx.chunks) == 0 {
		return []*models.ScoredChunk{}, nil
	}
	q, err := embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", models.ErrEmbedding, err)
	}
	if len(q) != idx.dimensions {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d", models.ErrEmbedding, len(q), idx.dimensions)
	}
	normalized := make([]float32, len(q))
	copy(normalized, q)
	utils.NormalizeL2(normalized)

	hits, err := idx.vectors.Search(ctx, normalized, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbedding, err)
	}
	out := make([]*models.ScoredChunk, len(hits))
	for i, h := range hits {
		out[i] = &models.ScoredChunk{Chunk: idx.chunks[h.Ordinal], Score: h.Score}
	}
	return out, nil
}

// KeywordSearch runs a BM25 query over the chunks. It returns nil when the
// index was built without WithKeywordIndex. A nil opts means exact matching.
func (idx *Index) KeywordSearch(ctx context.Context, text string, limit int, opts *keyword.SearchOptions) ([]*models.ScoredChunk, error) {
	if idx.keywords == nil {
		return nil, nil
	}
	hits, err := idx.keywords.Search(ctx, text, limit, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*models.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		if ch := idx.Chunk(h.ID); ch != nil {
			out = append(out, &models.ScoredChunk{Chunk: ch, Score: h.Score})
		}
	}
	return out, nil
}

// HasKeywords reports whether the index carries a keyword index.
func (idx *Index) HasKeywords() bool {
	return idx.keywords != nil
}

// Chunk returns the chunk with the given id, or nil.
func (idx *Index) Chunk(id string) *models.Chunk {
	return idx.byID[id]
}

// Chunks returns the indexed chunks in document order.
func (idx *Index) Chunks() []*models.Chunk {
	return append([]*models.Chunk(nil), idx.chunks...)
}

// Len returns the number of chunks.
func (idx *Index) Len() int {
	return len(idx.chunks)
}

// Dimensions returns the embedding dimension the index was built with.
func (idx *Index) Dimensions() int {
	return idx.dimensions
}

// Document returns the document metadata, or nil if none was attached.
func (idx *Index) Document() *models.Document {
	return idx.document
}

// BuiltAt returns when the index finished building.
func (idx *Index) BuiltAt() time.Time {
	return idx.builtAt
}

// Close releases the keyword index. Queries after Close are not supported.
func (idx *Index) Close() error {
	if idx.keywords != nil {
		return idx.keywords.Close()
	}
	return nil
}
