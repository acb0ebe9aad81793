package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/kaiwa/internal/models"
	"github.com/hyperjump/kaiwa/internal/rag"
)

func openTestArchive(t *testing.T) *SQLiteArchive {
	t.Helper()
	a, err := NewSQLiteArchive(filepath.Join(t.TempDir(), "nested", "archive.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestSQLiteArchive_Turns(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	doc := &models.Document{ID: "doc1", Name: "sky.txt", Extension: ".txt", SizeBytes: 32, TextLength: 32, ChunkCount: 2, UploadedAt: time.Now()}
	if err := a.DocumentUploaded(ctx, doc); err != nil {
		t.Fatal(err)
	}

	events := []rag.TurnEvent{
		{
			SessionID:       "s1",
			Turn:            models.Turn{Question: "What color is the sky?", Answer: "Blue.", CreatedAt: time.Now()},
			StandaloneQuery: "What color is the sky?",
			Sources:         []models.Source{{ChunkID: "doc1#0", Position: 0, Score: 0.6, Preview: "The sky is blue."}},
			Document:        doc,
		},
		{
			SessionID:       "s1",
			Turn:            models.Turn{Question: "What about grass?", Answer: "Green.", CreatedAt: time.Now()},
			StandaloneQuery: "What color is the grass?",
			Sources: []models.Source{
				{ChunkID: "doc1#1", Position: 1, Score: 0.5},
				{ChunkID: "doc1#0", Position: 0, Score: 0.4},
			},
			Document: doc,
		},
		{
			SessionID: "s2",
			Turn:      models.Turn{Question: "Other?", Answer: "Other.", CreatedAt: time.Now()},
		},
	}
	for _, ev := range events {
		if err := a.TurnCommitted(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}

	got, err := a.Transcript(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Question != "What color is the sky?" || got[1].StandaloneQuery != "What color is the grass?" {
		t.Errorf("records out of order: %+v %+v", got[0], got[1])
	}
	if got[1].DocumentID != "doc1" {
		t.Errorf("DocumentID = %q", got[1].DocumentID)
	}
	if len(got[1].Sources) != 2 || got[1].Sources[0].ChunkID != "doc1#1" {
		t.Errorf("sources = %+v", got[1].Sources)
	}

	n, err := a.CountTurns(ctx)
	if err != nil || n != 3 {
		t.Errorf("CountTurns = %d, %v", n, err)
	}
	n, err = a.CountUploads(ctx)
	if err != nil || n != 1 {
		t.Errorf("CountUploads = %d, %v", n, err)
	}
	if size, err := a.SizeBytes(); err != nil || size <= 0 {
		t.Errorf("SizeBytes = %d, %v", size, err)
	}
}

func TestSQLiteArchive_EmptyTranscript(t *testing.T) {
	a := openTestArchive(t)
	got, err := a.Transcript(context.Background(), "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected no records, got %d", len(got))
	}
}

func TestSQLiteArchive_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	a, err := NewSQLiteArchive(path)
	if err != nil {
		t.Fatal(err)
	}
	ev := rag.TurnEvent{SessionID: "s1", Turn: models.Turn{Question: "q", Answer: "a", CreatedAt: time.Now()}}
	if err := a.TurnCommitted(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	_ = a.Close()

	b, err := NewSQLiteArchive(path)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	n, err := b.CountTurns(context.Background())
	if err != nil || n != 1 {
		t.Errorf("CountTurns after reopen = %d, %v", n, err)
	}
}
