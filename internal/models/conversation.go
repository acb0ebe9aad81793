package models

import (
	"fmt"
	"strings"
	"time"
)

// Turn is one question/answer exchange. Turns are never modified after they are committed.
type Turn struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// Source points at a chunk that was placed in the answer context.
type Source struct {
	ChunkID  string  `json:"chunk_id"`
	Position int     `json:"position"`
	Score    float64 `json:"score"`
	Preview  string  `json:"preview"`
}

// Answer is the result of one conversation turn.
type Answer struct {
	SessionID       string   `json:"session_id"`
	Question        string   `json:"question"`
	StandaloneQuery string   `json:"standalone_query"`
	Answer          string   `json:"answer"`
	Sources         []Source `json:"sources"`
	History         []Turn   `json:"history"`
}

// AskRequest is the body of an ask request.
type AskRequest struct {
	Question string `json:"question"`
}

// Validate trims the question and rejects empty input.
func (r *AskRequest) Validate() error {
	r.Question = strings.TrimSpace(r.Question)
	if r.Question == "" {
		return fmt.Errorf("%w: question cannot be empty", ErrValidation)
	}
	return nil
}

// CopyTurns returns a copy of turns that shares no backing array with the input.
func CopyTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
