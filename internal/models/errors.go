package models

import "errors"

// Error kinds surfaced by upload and ask. Callers match them with errors.Is;
// the pipeline wraps them with fmt.Errorf("%w: ...") and never retries.
var (
	// ErrValidation indicates malformed input such as an empty session id or question.
	ErrValidation = errors.New("validation error")

	// ErrConfiguration indicates invalid chunking or component parameters.
	ErrConfiguration = errors.New("configuration error")

	// ErrEmbedding indicates the embedder failed or returned malformed vectors.
	ErrEmbedding = errors.New("embedding error")

	// ErrGeneration indicates the generator failed or returned malformed output.
	ErrGeneration = errors.New("generation error")

	// ErrNoIndex indicates a question was asked before any document was indexed.
	ErrNoIndex = errors.New("no document indexed")
)

// ErrorKind returns a short name for the kind of err, or "internal" when err
// carries none of the known kinds.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrEmbedding):
		return "embedding"
	case errors.Is(err, ErrGeneration):
		return "generation"
	case errors.Is(err, ErrNoIndex):
		return "no_index"
	default:
		return "internal"
	}
}
