package keyword

import (
	"context"
	"reflect"
	"testing"

	"github.com/hyperjump/kaiwa/internal/models"
)

func newTestIndex(t *testing.T, contents ...string) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex()
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	chunks := make([]*models.Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = &models.Chunk{ID: "doc#" + string(rune('0'+i)), DocumentID: "doc", Content: c, Position: i}
	}
	if err := idx.IndexChunks(context.Background(), chunks); err != nil {
		t.Fatalf("IndexChunks: %v", err)
	}
	return idx
}

func TestBleveIndex_SearchFindsContent(t *testing.T) {
	idx := newTestIndex(t,
		"This report mentions Omnisyan and other findings.",
		"The Bayes app is also referenced.",
	)
	ctx := context.Background()

	results, err := idx.Search(ctx, "Omnisyan", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "doc#0" {
		t.Fatalf("expected doc#0 only, got %v", results)
	}

	// Standard analyzer (no stemming) so "bayes" matches "Bayes".
	results, err = idx.Search(ctx, "bayes", 10, nil)
	if err != nil {
		t.Fatalf("Search bayes: %v", err)
	}
	if len(results) == 0 || results[0].ID != "doc#1" {
		t.Fatalf("expected doc#1 first, got %v", results)
	}
}

func TestBleveIndex_TermCoverage(t *testing.T) {
	idx := newTestIndex(t,
		"grass grass grass grass everywhere",
		"the grass is green today",
	)
	results, err := idx.Search(context.Background(), "green grass", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "doc#1" {
		t.Errorf("chunk matching both terms should rank first, got %s", results[0].ID)
	}
}

func TestBleveIndex_Fuzzy(t *testing.T) {
	idx := newTestIndex(t, "The sky is blue.")
	ctx := context.Background()
	exact, _ := idx.Search(ctx, "bleu", 10, nil)
	if len(exact) != 0 {
		t.Errorf("exact search should not match a typo, got %v", exact)
	}
	fuzzy, err := idx.Search(ctx, "bleu", 10, &SearchOptions{FuzzyEnabled: true, Fuzziness: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(fuzzy) != 1 {
		t.Errorf("fuzzy search should match, got %v", fuzzy)
	}
}

func TestBleveIndex_EmptyQueryAndLimit(t *testing.T) {
	idx := newTestIndex(t, "alpha beta", "beta gamma", "beta delta")
	ctx := context.Background()
	if r, _ := idx.Search(ctx, "  ?! ", 10, nil); len(r) != 0 {
		t.Errorf("empty query should return nothing, got %v", r)
	}
	r, err := idx.Search(ctx, "beta", 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(r) != 2 {
		t.Errorf("limit not applied, got %d results", len(r))
	}
}

func TestTokenizeQuery(t *testing.T) {
	got := tokenizeQuery("What about the GRASS? the grass!")
	want := []string{"what", "about", "the", "grass"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tokenizeQuery = %v, want %v", got, want)
	}
}
