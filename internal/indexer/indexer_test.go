package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/kaiwa/internal/embedding"
	"github.com/hyperjump/kaiwa/internal/index"
	"github.com/hyperjump/kaiwa/internal/models"
)

type captureSink struct {
	indexes []*index.Index
}

func (s *captureSink) SetIndex(idx *index.Index) {
	s.indexes = append(s.indexes, idx)
}

func (s *captureSink) last() *index.Index {
	if len(s.indexes) == 0 {
		return nil
	}
	return s.indexes[len(s.indexes)-1]
}

type failingEmbedder struct {
	*embedding.HashingEmbedder
}

func (f failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("model offline")
}

// blockingEmbedder holds every batch until release is closed.
type blockingEmbedder struct {
	*embedding.HashingEmbedder
	started chan struct{}
	release chan struct{}
}

func (b blockingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-b.release
	return b.HashingEmbedder.EmbedBatch(ctx, texts)
}

type uploadRecorder struct {
	docs []*models.Document
}

func (u *uploadRecorder) DocumentUploaded(ctx context.Context, doc *models.Document) error {
	u.docs = append(u.docs, doc)
	return nil
}

func newTestIndexer(t *testing.T, emb embedding.Embedder, opts ...IndexerOption) (*Indexer, *captureSink) {
	t.Helper()
	c, err := NewChunker(20, 5)
	if err != nil {
		t.Fatal(err)
	}
	sink := &captureSink{}
	return NewIndexer(emb, c, sink, opts...), sink
}

func TestUpload(t *testing.T) {
	rec := &uploadRecorder{}
	var progress [][2]int
	ix, sink := newTestIndexer(t, embedding.NewHashingEmbedder(1024),
		WithObserver(rec),
		WithProgress(func(done, total int) { progress = append(progress, [2]int{done, total}) }),
	)

	doc, err := ix.Upload(context.Background(), "notes.txt", []byte("The sky is blue.\n\nGrass is green."))
	if err != nil {
		t.Fatal(err)
	}
	if doc.ID == "" || doc.Name != "notes.txt" || doc.Extension != ".txt" {
		t.Errorf("unexpected document %+v", doc)
	}
	if doc.ChunkCount != 2 || doc.TextLength != len("The sky is blue. Grass is green.") {
		t.Errorf("ChunkCount=%d TextLength=%d", doc.ChunkCount, doc.TextLength)
	}
	idx := sink.last()
	if idx == nil || idx.Len() != 2 {
		t.Fatalf("sink should hold a 2-chunk index, got %v", idx)
	}
	if idx.Document() != doc {
		t.Error("index should carry the document")
	}
	if idx.HasKeywords() {
		t.Error("keyword index should be off by default")
	}
	if len(rec.docs) != 1 || rec.docs[0] != doc {
		t.Errorf("observer saw %d uploads", len(rec.docs))
	}
	if len(progress) == 0 || progress[len(progress)-1] != [2]int{2, 2} {
		t.Errorf("progress = %v", progress)
	}
	if ix.Current() != doc {
		t.Error("Current() should return the uploaded document")
	}
}

func TestUpload_ReplacesIndex(t *testing.T) {
	ix, sink := newTestIndexer(t, embedding.NewHashingEmbedder(64), WithKeywords(true))
	ctx := context.Background()
	first, err := ix.Upload(ctx, "a.txt", []byte("first document"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := ix.Upload(ctx, "b.txt", []byte("second document"))
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == second.ID {
		t.Error("each upload should get a new document id")
	}
	if len(sink.indexes) != 2 || sink.last().Document() != second {
		t.Error("second upload should replace the index")
	}
	if !sink.last().HasKeywords() {
		t.Error("WithKeywords should build a keyword index")
	}
}

func TestUpload_FailureKeepsPreviousIndex(t *testing.T) {
	ix, sink := newTestIndexer(t, embedding.NewHashingEmbedder(64))
	ctx := context.Background()
	if _, err := ix.Upload(ctx, "ok.txt", []byte("kept")); err != nil {
		t.Fatal(err)
	}
	before := sink.last()

	_, err := ix.Upload(ctx, "broken.docx", []byte("not a zip"))
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}

	ix.embedder = failingEmbedder{embedding.NewHashingEmbedder(64)}
	_, err = ix.Upload(ctx, "other.txt", []byte("never indexed"))
	if !errors.Is(err, models.ErrEmbedding) {
		t.Errorf("err = %v, want ErrEmbedding", err)
	}
	if len(sink.indexes) != 1 || sink.last() != before {
		t.Error("failed uploads must not replace the index")
	}
	if ix.Current().Name != "ok.txt" {
		t.Errorf("Current() = %+v", ix.Current())
	}
}

func TestCurrent_DoesNotWaitForUpload(t *testing.T) {
	ix, _ := newTestIndexer(t, embedding.NewHashingEmbedder(64))
	ctx := context.Background()
	if _, err := ix.Upload(ctx, "first.txt", []byte("The sky is blue.")); err != nil {
		t.Fatal(err)
	}

	blocking := blockingEmbedder{
		HashingEmbedder: embedding.NewHashingEmbedder(64),
		started:         make(chan struct{}, 1),
		release:         make(chan struct{}),
	}
	ix.embedder = blocking
	done := make(chan error, 1)
	go func() {
		_, err := ix.Upload(ctx, "second.txt", []byte("Grass is green."))
		done <- err
	}()
	<-blocking.started

	current := make(chan *models.Document, 1)
	go func() { current <- ix.Current() }()
	select {
	case doc := <-current:
		if doc == nil || doc.Name != "first.txt" {
			t.Errorf("Current() during upload = %+v, want first.txt", doc)
		}
	case <-time.After(time.Second):
		t.Error("Current() blocked behind an upload in progress")
	}

	close(blocking.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if ix.Current().Name != "second.txt" {
		t.Errorf("Current() after upload = %+v", ix.Current())
	}
}

func TestUpload_EmptyDocument(t *testing.T) {
	ix, sink := newTestIndexer(t, embedding.NewHashingEmbedder(64))
	doc, err := ix.Upload(context.Background(), "empty.txt", []byte("  \n "))
	if err != nil {
		t.Fatal(err)
	}
	if doc.ChunkCount != 0 || sink.last().Len() != 0 {
		t.Errorf("empty text should build an empty index, got %d chunks", doc.ChunkCount)
	}
}

func TestUploadFile_AndSync(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	if err := os.WriteFile(path, []byte("The sky is blue."), 0600); err != nil {
		t.Fatal(err)
	}
	ix, sink := newTestIndexer(t, embedding.NewHashingEmbedder(64))
	ctx := context.Background()

	doc, err := ix.UploadFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Name != "doc.md" {
		t.Errorf("Name = %q", doc.Name)
	}

	same, changed, err := ix.SyncFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if changed || same != doc || len(sink.indexes) != 1 {
		t.Error("unchanged file should not be re-uploaded")
	}

	if err := os.WriteFile(path, []byte("The sky is blue. Grass is green."), 0600); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	updated, changed, err := ix.SyncFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if !changed || updated.ID == doc.ID || len(sink.indexes) != 2 {
		t.Error("modified file should be re-uploaded")
	}
}

func TestUploadFile_Errors(t *testing.T) {
	ix, _ := newTestIndexer(t, embedding.NewHashingEmbedder(64))
	dir := t.TempDir()
	if _, err := ix.UploadFile(context.Background(), filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := ix.UploadFile(context.Background(), dir); !errors.Is(err, models.ErrValidation) {
		t.Errorf("directory upload err = %v, want ErrValidation", err)
	}
}
