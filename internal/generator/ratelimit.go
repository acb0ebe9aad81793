package generator

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited throttles calls to the wrapped generator. Calls block until the
// limiter grants a token or ctx is done.
type RateLimited struct {
	next    Generator
	limiter *rate.Limiter
}

// NewRateLimited allows rps requests per second with the given burst. A
// non-positive rps returns next unchanged.
func NewRateLimited(next Generator, rps float64, burst int) Generator {
	if rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Generate waits for the limiter, then calls the wrapped generator.
func (r *RateLimited) Generate(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.Generate(ctx, prompt)
}

// ModelName reports the wrapped generator's model when it has one.
func (r *RateLimited) ModelName() string {
	if n, ok := r.next.(Named); ok {
		return n.ModelName()
	}
	return ""
}
