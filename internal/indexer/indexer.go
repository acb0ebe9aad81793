package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kaiwa/internal/embedding"
	"github.com/hyperjump/kaiwa/internal/extract"
	"github.com/hyperjump/kaiwa/internal/index"
	"github.com/hyperjump/kaiwa/internal/models"
)

// IndexSink receives each newly built index. The conversation implements it.
type IndexSink interface {
	SetIndex(idx *index.Index)
}

// UploadObserver is notified after an upload has replaced the index.
type UploadObserver interface {
	DocumentUploaded(ctx context.Context, doc *models.Document) error
}

// Indexer turns raw documents into an index and hands it to the sink. Uploads
// run one at a time; a failed upload leaves the previous index in place.
type Indexer struct {
	embedder  embedding.Embedder
	chunker   *Chunker
	extractor *extract.Extractor
	sink      IndexSink
	keywords  bool
	batchSize int
	progress  func(done, total int)
	observers []UploadObserver
	logger    *zap.Logger

	// mu serialises uploads; current is published atomically so readers never
	// wait on an upload in progress.
	mu      sync.Mutex
	current atomic.Pointer[models.Document]
	synced  map[string]fileStamp
}

// fileStamp identifies a version of a file on disk.
type fileStamp struct {
	modTime int64
	size    int64
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for upload events.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(ix *Indexer) { ix.logger = l }
}

// WithKeywords builds a keyword index next to the vectors, for hybrid retrieval.
func WithKeywords(enabled bool) IndexerOption {
	return func(ix *Indexer) { ix.keywords = enabled }
}

// WithBatchSize sets how many chunks are embedded per call.
func WithBatchSize(n int) IndexerOption {
	return func(ix *Indexer) { ix.batchSize = n }
}

// WithProgress reports embedding progress during Upload.
func WithProgress(fn func(done, total int)) IndexerOption {
	return func(ix *Indexer) { ix.progress = fn }
}

// WithObserver registers an observer for successful uploads.
func WithObserver(o UploadObserver) IndexerOption {
	return func(ix *Indexer) { ix.observers = append(ix.observers, o) }
}

// WithExtractor replaces the default extractor.
func WithExtractor(e *extract.Extractor) IndexerOption {
	return func(ix *Indexer) { ix.extractor = e }
}

// NewIndexer creates an indexer that publishes to sink.
func NewIndexer(embedder embedding.Embedder, chunker *Chunker, sink IndexSink, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		embedder:  embedder,
		chunker:   chunker,
		extractor: extract.NewExtractor(),
		sink:      sink,
		synced:    make(map[string]fileStamp),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Upload extracts, chunks and embeds raw, then replaces the current index.
// name is used for the document's display name and its extension picks the
// extractor.
func (ix *Indexer) Upload(ctx context.Context, name string, raw []byte) (*models.Document, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.upload(ctx, name, raw)
}

func (ix *Indexer) upload(ctx context.Context, name string, raw []byte) (*models.Document, error) {
	start := time.Now()
	name = strings.TrimSpace(filepath.Base(name))
	if name == "." || name == string(filepath.Separator) {
		name = ""
	}
	ext := strings.ToLower(filepath.Ext(name))

	text, err := ix.extractor.ExtractBytes(raw, ext)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", name, err)
	}
	text = Preprocess(text)

	doc := &models.Document{
		ID:         uuid.New().String(),
		Name:       name,
		Extension:  ext,
		SizeBytes:  int64(len(raw)),
		TextLength: len([]rune(text)),
		UploadedAt: time.Now(),
	}
	chunks := ix.chunker.Split(doc.ID, text)
	doc.ChunkCount = len(chunks)

	opts := []index.BuildOption{index.WithDocument(doc), index.WithLogger(ix.logger)}
	if ix.keywords {
		opts = append(opts, index.WithKeywordIndex())
	}
	if ix.batchSize > 0 {
		opts = append(opts, index.WithBatchSize(ix.batchSize))
	}
	if ix.progress != nil {
		opts = append(opts, index.WithProgress(ix.progress))
	}
	idx, err := index.Build(ctx, chunks, ix.embedder, opts...)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", name, err)
	}

	ix.sink.SetIndex(idx)
	ix.current.Store(doc)
	if ix.logger != nil {
		ix.logger.Info("document indexed",
			zap.String("id", doc.ID),
			zap.String("name", doc.Name),
			zap.Int("chunks", doc.ChunkCount),
			zap.Int("text_length", doc.TextLength),
			zap.Duration("took", time.Since(start)))
	}
	for _, o := range ix.observers {
		if err := o.DocumentUploaded(ctx, doc); err != nil && ix.logger != nil {
			ix.logger.Warn("upload observer failed", zap.String("id", doc.ID), zap.Error(err))
		}
	}
	return doc, nil
}

// UploadFile reads a regular file from disk and uploads it.
func (ix *Indexer) UploadFile(ctx context.Context, path string) (*models.Document, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	doc, _, err := ix.uploadFile(ctx, path, false)
	return doc, err
}

// SyncFile uploads path unless it has the same modification time and size as
// the last time it was uploaded through SyncFile or UploadFile. It reports
// whether an upload happened.
func (ix *Indexer) SyncFile(ctx context.Context, path string) (*models.Document, bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.uploadFile(ctx, path, true)
}

func (ix *Indexer) uploadFile(ctx context.Context, path string, skipUnchanged bool) (*models.Document, bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, false, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, false, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, false, fmt.Errorf("%w: not a regular file: %s", models.ErrValidation, absPath)
	}
	stamp := fileStamp{modTime: info.ModTime().UnixNano(), size: info.Size()}
	if skipUnchanged && ix.synced[absPath] == stamp && ix.current.Load() != nil {
		if ix.logger != nil {
			ix.logger.Debug("skipping unchanged document", zap.String("path", absPath))
		}
		return ix.current.Load(), false, nil
	}
	raw, err := os.ReadFile(absPath)
	if err != nil {
		return nil, false, fmt.Errorf("read file: %w", err)
	}
	doc, err := ix.upload(ctx, absPath, raw)
	if err != nil {
		return nil, false, err
	}
	ix.synced = map[string]fileStamp{absPath: stamp}
	return doc, true, nil
}

// Current returns the last successfully uploaded document, or nil.
func (ix *Indexer) Current() *models.Document {
	return ix.current.Load()
}
