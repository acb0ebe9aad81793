// Package generator provides text generation backends (OpenAI-compatible APIs,
// Groq, Ollama) behind a single interface.
package generator

import "context"

// Generator produces text for a prompt. Implementations may be slow and
// non-deterministic; they must honour ctx cancellation.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Func adapts an ordinary function to the Generator interface.
type Func func(ctx context.Context, prompt string) (string, error)

// Generate calls f(ctx, prompt).
func (f Func) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Named is implemented by generators that can report their model.
type Named interface {
	ModelName() string
}
