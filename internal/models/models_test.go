package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestAskRequest_Validate(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     string
		wantErr  bool
	}{
		{"empty", "", "", true},
		{"whitespace only", "  \n\t ", "", true},
		{"trimmed", "  what color is the sky?  ", "what color is the sky?", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &AskRequest{Question: tt.question}
			err := req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("error should wrap ErrValidation, got %v", err)
			}
			if !tt.wantErr && req.Question != tt.want {
				t.Errorf("Question = %q, want %q", req.Question, tt.want)
			}
		})
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("%w: empty session id", ErrValidation), "validation"},
		{fmt.Errorf("%w: overlap >= size", ErrConfiguration), "configuration"},
		{fmt.Errorf("build: %w", fmt.Errorf("%w: dimension 3", ErrEmbedding)), "embedding"},
		{fmt.Errorf("%w: timeout", ErrGeneration), "generation"},
		{ErrNoIndex, "no_index"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestCopyTurns(t *testing.T) {
	orig := []Turn{{Question: "q1", Answer: "a1"}}
	cp := CopyTurns(orig)
	cp[0].Answer = "changed"
	if orig[0].Answer != "a1" {
		t.Error("CopyTurns should not share the backing array")
	}
	if got := CopyTurns(nil); got == nil || len(got) != 0 {
		t.Errorf("CopyTurns(nil) = %v, want empty non-nil slice", got)
	}
}
