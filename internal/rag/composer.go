package rag

import (
	"context"
	"fmt"

	"github.com/hyperjump/kaiwa/internal/generator"
	"github.com/hyperjump/kaiwa/internal/models"
)

// Composer writes the final answer from retrieved chunks.
type Composer struct {
	gen generator.Generator
}

// NewComposer creates a Composer backed by gen.
func NewComposer(gen generator.Generator) *Composer {
	return &Composer{gen: gen}
}

// Compose asks the generator to answer question from chunks and history and
// returns its output verbatim.
func (c *Composer) Compose(ctx context.Context, chunks []*models.Chunk, history []models.Turn, question string) (string, error) {
	out, err := c.gen.Generate(ctx, AnswerPrompt(chunks, history, question))
	if err != nil {
		return "", fmt.Errorf("%w: compose answer: %v", models.ErrGeneration, err)
	}
	return out, nil
}
