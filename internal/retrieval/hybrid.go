package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/hyperjump/kaiwa/internal/config"
	"github.com/hyperjump/kaiwa/internal/embedding"
	"github.com/hyperjump/kaiwa/internal/index"
	"github.com/hyperjump/kaiwa/internal/keyword"
	"github.com/hyperjump/kaiwa/internal/models"
)

// candidateFactor widens each side's candidate pool before fusion.
const candidateFactor = 3

// Hybrid fuses semantic and keyword scores. Indexes built without keywords
// fall back to semantic ranking.
type Hybrid struct {
	embedder       embedding.Embedder
	k              int
	semanticWeight float64
	keywordWeight  float64
	keywordOpts    *keyword.SearchOptions
}

// HybridOption configures a Hybrid retriever.
type HybridOption func(*Hybrid)

// WithFuzziness lets keyword matching accept terms up to n edits away.
// n <= 0 keeps exact matching.
func WithFuzziness(n int) HybridOption {
	return func(h *Hybrid) {
		if n <= 0 {
			h.keywordOpts = nil
			return
		}
		h.keywordOpts = &keyword.SearchOptions{FuzzyEnabled: true, Fuzziness: n}
	}
}

// NewHybrid returns a Hybrid retriever. Non-positive weights are replaced by
// the configured defaults.
func NewHybrid(embedder embedding.Embedder, k int, semanticWeight, keywordWeight float64, opts ...HybridOption) *Hybrid {
	if k <= 0 {
		k = config.DefaultTopK
	}
	if semanticWeight <= 0 && keywordWeight <= 0 {
		semanticWeight, keywordWeight = config.DefaultSemanticWeight, config.DefaultKeywordWeight
	}
	h := &Hybrid{embedder: embedder, k: k, semanticWeight: semanticWeight, keywordWeight: keywordWeight}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Retrieve implements Retriever.
func (h *Hybrid) Retrieve(ctx context.Context, idx *index.Index, query string) ([]*models.ScoredChunk, error) {
	if idx == nil {
		return nil, models.ErrNoIndex
	}
	pool := h.k * candidateFactor
	semantic, err := idx.Query(ctx, query, h.embedder, pool)
	if err != nil {
		return nil, err
	}
	if !idx.HasKeywords() {
		return truncate(semantic, h.k), nil
	}
	keyword, err := idx.KeywordSearch(ctx, query, pool, h.keywordOpts)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	fused := Fuse(NormalizeScores(keyword), NormalizeScores(semantic), h.keywordWeight, h.semanticWeight)
	return truncate(fused, h.k), nil
}

// FusedChunk is a chunk with its fused and per-side normalised scores.
type FusedChunk struct {
	Chunk         *models.Chunk
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// NormalizeScores divides every score by the maximum so the best hit is 1.
// Negative scores and an all-zero list map to 0.
func NormalizeScores(results []*models.ScoredChunk) map[*models.Chunk]float64 {
	normalized := make(map[*models.Chunk]float64, len(results))
	maxScore := 0.0
	for _, r := range results {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	for _, r := range results {
		if maxScore > 0 && r.Score > 0 {
			normalized[r.Chunk] = r.Score / maxScore
		} else {
			normalized[r.Chunk] = 0
		}
	}
	return normalized
}

// Fuse merges keyword and semantic score maps with weights. Results are sorted
// by fused score, then by chunk position.
func Fuse(keywordScores, semanticScores map[*models.Chunk]float64, keywordWeight, semanticWeight float64) []*models.ScoredChunk {
	scoreMap := make(map[*models.Chunk]*FusedChunk)
	for ch, score := range keywordScores {
		scoreMap[ch] = &FusedChunk{Chunk: ch, KeywordScore: score}
	}
	for ch, score := range semanticScores {
		if result, exists := scoreMap[ch]; exists {
			result.SemanticScore = score
		} else {
			scoreMap[ch] = &FusedChunk{Chunk: ch, SemanticScore: score}
		}
	}
	fused := make([]*FusedChunk, 0, len(scoreMap))
	for _, result := range scoreMap {
		result.Score = (keywordWeight * result.KeywordScore) + (semanticWeight * result.SemanticScore)
		fused = append(fused, result)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].Chunk.Position < fused[j].Chunk.Position
	})
	out := make([]*models.ScoredChunk, len(fused))
	for i, f := range fused {
		out[i] = &models.ScoredChunk{Chunk: f.Chunk, Score: f.Score}
	}
	return out
}

func truncate(results []*models.ScoredChunk, k int) []*models.ScoredChunk {
	if k > 0 && len(results) > k {
		return results[:k]
	}
	return results
}
