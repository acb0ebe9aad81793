package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/hyperjump/kaiwa/pkg/utils"
)

func TestHashingEmbedder_Deterministic(t *testing.T) {
	e := NewHashingEmbedder(128)
	ctx := context.Background()
	a, err := e.Embed(ctx, "The sky is blue.")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.Embed(ctx, "the SKY is blue")
	if len(a) != 128 {
		t.Fatalf("len = %d, want 128", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same words should give the same vector regardless of case and punctuation")
		}
	}
}

func TestHashingEmbedder_UnitNorm(t *testing.T) {
	e := NewHashingEmbedder(0)
	if e.Dimensions() != DefaultHashingDimensions {
		t.Errorf("Dimensions = %d", e.Dimensions())
	}
	v, _ := e.Embed(context.Background(), "grass is green")
	if n := math.Sqrt(utils.Dot(v, v)); math.Abs(n-1) > 1e-5 {
		t.Errorf("norm = %v, want 1", n)
	}
	empty, _ := e.Embed(context.Background(), "  ...  ")
	if utils.Dot(empty, empty) != 0 {
		t.Error("text without words should embed to the zero vector")
	}
}

func TestHashingEmbedder_Similarity(t *testing.T) {
	e := NewHashingEmbedder(1024)
	ctx := context.Background()
	vecs, err := e.EmbedBatch(ctx, []string{"What color is the sky?", "The sky is blue. Gra", ". Grass is green."})
	if err != nil {
		t.Fatal(err)
	}
	sky, grass := utils.Dot(vecs[0], vecs[1]), utils.Dot(vecs[0], vecs[2])
	if sky <= grass {
		t.Errorf("sky chunk score %v should beat grass chunk %v", sky, grass)
	}
}

func TestHashingEmbedder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHashingEmbedder(8).EmbedBatch(ctx, []string{"a"}); err == nil {
		t.Error("expected context error")
	}
}
