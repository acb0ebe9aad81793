// Package rag runs one conversational turn: rewrite the question, retrieve
// context, compose an answer and commit the turn to the session.
package rag

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hyperjump/kaiwa/internal/generator"
	"github.com/hyperjump/kaiwa/internal/models"
)

// RewriteGuard inspects a generated standalone query. A non-nil error makes
// the rewriter fall back to the original question.
type RewriteGuard interface {
	Check(question, rewritten string) error
}

// minGuardBudget keeps very short questions from rejecting reasonable rewrites.
const minGuardBudget = 120

// LengthGuard rejects blank rewrites and rewrites longer than MaxRatio times
// the question (or minGuardBudget runes, whichever is larger).
type LengthGuard struct {
	MaxRatio float64
}

// Check implements RewriteGuard.
func (g LengthGuard) Check(question, rewritten string) error {
	if strings.TrimSpace(rewritten) == "" {
		return fmt.Errorf("rewrite is empty")
	}
	if g.MaxRatio <= 0 {
		return nil
	}
	limit := int(g.MaxRatio * float64(utf8.RuneCountInString(question)))
	if limit < minGuardBudget {
		limit = minGuardBudget
	}
	if n := utf8.RuneCountInString(rewritten); n > limit {
		return fmt.Errorf("rewrite has %d runes, limit %d", n, limit)
	}
	return nil
}

// Rewriter turns a follow-up question into one that stands on its own.
type Rewriter struct {
	gen    generator.Generator
	guard  RewriteGuard
	logger *zap.Logger
}

// RewriterOption configures a Rewriter.
type RewriterOption func(*Rewriter)

// WithGuard installs a guard on generated rewrites.
func WithGuard(g RewriteGuard) RewriterOption {
	return func(r *Rewriter) {
		r.guard = g
	}
}

// WithRewriterLogger sets the logger.
func WithRewriterLogger(l *zap.Logger) RewriterOption {
	return func(r *Rewriter) {
		r.logger = l
	}
}

// NewRewriter creates a Rewriter backed by gen.
func NewRewriter(gen generator.Generator, opts ...RewriterOption) *Rewriter {
	r := &Rewriter{gen: gen}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rewrite returns the standalone form of question. With an empty history the
// question is returned unchanged and the generator is not called.
func (r *Rewriter) Rewrite(ctx context.Context, history []models.Turn, question string) (string, error) {
	if len(history) == 0 {
		return question, nil
	}
	out, err := r.gen.Generate(ctx, RewritePrompt(history, question))
	if err != nil {
		return "", fmt.Errorf("%w: rewrite question: %v", models.ErrGeneration, err)
	}
	if r.guard != nil {
		if gerr := r.guard.Check(question, out); gerr != nil {
			if r.logger != nil {
				r.logger.Warn("discarding rewritten question",
					zap.String("question", question),
					zap.String("rewritten", out),
					zap.Error(gerr))
			}
			return question, nil
		}
	}
	return out, nil
}
