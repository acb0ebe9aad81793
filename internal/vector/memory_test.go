package vector

import (
	"context"
	"testing"
)

func TestNewMemoryIndex_InvalidDimensions(t *testing.T) {
	if _, err := NewMemoryIndex(0); err == nil {
		t.Error("expected error for zero dimensions")
	}
}

func TestMemoryIndex_AddSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	ids := []string{"a", "b", "c"}
	if err := idx.Add(ctx, ids, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("order = %s,%s, want a,b", results[0].ID, results[1].ID)
	}
	if results[1].Ordinal != 1 {
		t.Errorf("Ordinal = %d, want 1", results[1].Ordinal)
	}
}

func TestMemoryIndex_SearchAllWhenKExceedsSize(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"x", "y", "z"}, [][]float32{{0, 1}, {1, 0}, {0.6, 0.8}})
	results, err := idx.Search(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"y", "z", "x"}
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d", len(results), len(want))
	}
	for i, id := range want {
		if results[i].ID != id {
			t.Errorf("results[%d] = %s, want %s", i, results[i].ID, id)
		}
	}
}

func TestMemoryIndex_TiesKeepInsertionOrder(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"first", "second", "third"}, [][]float32{{1, 0}, {1, 0}, {1, 0}})
	results, _ := idx.Search(ctx, []float32{1, 0}, 0)
	for i, id := range []string{"first", "second", "third"} {
		if results[i].ID != id {
			t.Errorf("results[%d] = %s, want %s", i, results[i].ID, id)
		}
	}
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	if err := idx.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0}, {1, 0, 0}}); err == nil {
		t.Error("expected dimension error on Add")
	}
	if idx.Size() != 0 {
		t.Errorf("failed Add should not insert anything, size=%d", idx.Size())
	}
	if _, err := idx.Search(ctx, []float32{1}, 1); err == nil {
		t.Error("expected dimension error on Search")
	}
	if err := idx.Add(ctx, []string{"a"}, nil); err == nil {
		t.Error("expected length mismatch error")
	}
}

func TestMemoryIndex_Empty(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	results, err := idx.Search(context.Background(), []float32{1, 0}, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}
