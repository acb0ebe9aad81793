package keyword

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/kaiwa/internal/models"
)

const contentField = "content"

// BleveIndex implements KeywordIndex with an in-memory Bleve index.
type BleveIndex struct {
	index bleve.Index
}

var _ KeywordIndex = (*BleveIndex)(nil)

// NewBleveIndex creates an empty in-memory Bleve index for chunk content.
func NewBleveIndex() (*BleveIndex, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer lowercases and drops English stop words without stemming,
	// so "grass" matches "Grass" but not "grasses".
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(contentField, textFieldMapping)
	positionMapping := bleve.NewNumericFieldMapping()
	positionMapping.Index = false
	docMapping.AddFieldMappingsAt("position", positionMapping)
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// IndexChunks adds chunks to the index in one batch.
func (b *BleveIndex) IndexChunks(ctx context.Context, chunks []*models.Chunk) error {
	batch := b.index.NewBatch()
	for _, ch := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := map[string]interface{}{
			contentField: ch.Content,
			"position":   ch.Position,
		}
		if err := batch.Index(ch.ID, doc); err != nil {
			return fmt.Errorf("index chunk %s: %w", ch.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve batch failed: %w", err)
	}
	return nil
}

// Search returns up to limit chunks matching any query term. For multi-term
// queries the BM25 score is scaled by (matched/total)^2 so chunks covering
// more of the query rank above chunks that repeat one term.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	terms := tokenizeQuery(query)
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}
	fuzziness := 0
	if opts != nil && opts.FuzzyEnabled {
		fuzziness = 1
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}

	reqSize := limit * 3
	if reqSize < 20 {
		reqSize = 20
	}
	req := bleve.NewSearchRequest(b.buildQuery(query, terms, fuzziness))
	req.Size = reqSize
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	var coverage map[string]int
	if len(terms) > 1 {
		coverage = b.termCoverage(ctx, terms, reqSize, fuzziness)
	}

	out := make([]*KeywordResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		score := hit.Score
		if len(terms) > 1 {
			matched := coverage[hit.ID]
			if matched == 0 {
				matched = 1
			}
			c := float64(matched) / float64(len(terms))
			score *= c * c
		}
		out = append(out, &KeywordResult{ID: hit.ID, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (b *BleveIndex) buildQuery(query string, terms []string, fuzziness int) blevequery.Query {
	if fuzziness == 0 {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(contentField)
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		queries = append(queries, termQuery(term, fuzziness))
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// termCoverage counts how many distinct query terms each chunk matches.
func (b *BleveIndex) termCoverage(ctx context.Context, terms []string, reqSize, fuzziness int) map[string]int {
	coverage := make(map[string]int)
	for _, term := range terms {
		req := bleve.NewSearchRequest(termQuery(term, fuzziness))
		req.Size = reqSize
		res, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			continue
		}
		for _, hit := range res.Hits {
			coverage[hit.ID]++
		}
	}
	return coverage
}

func termQuery(term string, fuzziness int) blevequery.Query {
	if fuzziness > 0 {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(contentField)
		return fq
	}
	mq := bleve.NewMatchQuery(term)
	mq.SetField(contentField)
	return mq
}

// tokenizeQuery splits query into distinct lowercase terms of letters and digits.
func tokenizeQuery(query string) []string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
	}
	return terms
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
