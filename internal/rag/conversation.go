package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kaiwa/internal/index"
	"github.com/hyperjump/kaiwa/internal/models"
	"github.com/hyperjump/kaiwa/internal/retrieval"
	"github.com/hyperjump/kaiwa/internal/session"
	"github.com/hyperjump/kaiwa/pkg/utils"
)

// State is a step of one conversational turn.
type State string

// Turn states, in order. Any state may move to StateFailed.
const (
	StateStart      State = "start"
	StateRewriting  State = "rewriting"
	StateRetrieving State = "retrieving"
	StateComposing  State = "composing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// previewLength is the number of runes of chunk text kept in a Source.
const previewLength = 160

// TurnError reports the state a turn failed in. It unwraps to the cause, so
// errors.Is(err, models.ErrGeneration) and friends keep working.
type TurnError struct {
	State State
	Err   error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("%s: %v", e.State, e.Err)
}

func (e *TurnError) Unwrap() error {
	return e.Err
}

// FailedState returns the state recorded in err, or "" if err is not a TurnError.
func FailedState(err error) State {
	var te *TurnError
	if errors.As(err, &te) {
		return te.State
	}
	return ""
}

// TurnEvent describes a committed turn.
type TurnEvent struct {
	SessionID       string
	Turn            models.Turn
	StandaloneQuery string
	Sources         []models.Source
	Document        *models.Document
}

// TurnObserver is notified after a turn has been committed.
type TurnObserver interface {
	TurnCommitted(ctx context.Context, ev TurnEvent) error
}

// Conversation answers questions against the current index and keeps
// per-session history.
type Conversation struct {
	store     *session.Store
	rewriter  *Rewriter
	retriever retrieval.Retriever
	composer  *Composer
	current   atomic.Pointer[index.Index]
	observers []TurnObserver
	logger    *zap.Logger
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Conversation) {
		c.logger = l
	}
}

// WithObserver registers an observer for committed turns.
func WithObserver(o TurnObserver) Option {
	return func(c *Conversation) {
		c.observers = append(c.observers, o)
	}
}

// WithIndex sets the initial index.
func WithIndex(idx *index.Index) Option {
	return func(c *Conversation) {
		c.current.Store(idx)
	}
}

// NewConversation wires the turn pipeline.
func NewConversation(store *session.Store, rewriter *Rewriter, retriever retrieval.Retriever, composer *Composer, opts ...Option) *Conversation {
	c := &Conversation{
		store:     store,
		rewriter:  rewriter,
		retriever: retriever,
		composer:  composer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetIndex replaces the current index. Turns already running keep the index
// they started with.
func (c *Conversation) SetIndex(idx *index.Index) {
	c.current.Store(idx)
	if c.logger != nil && idx != nil {
		fields := []zap.Field{zap.Int("chunks", idx.Len())}
		if doc := idx.Document(); doc != nil {
			fields = append(fields, zap.String("document", doc.Name), zap.String("document_id", doc.ID))
		}
		c.logger.Debug("index swapped", fields...)
	}
}

// Index returns the current index, or nil before the first upload.
func (c *Conversation) Index() *index.Index {
	return c.current.Load()
}

// History returns a copy of the session's turns. It never creates a session.
func (c *Conversation) History(sessionID string) []models.Turn {
	return c.store.History(sessionID)
}

// ClearSession forgets a session's history. It reports whether the session existed.
func (c *Conversation) ClearSession(sessionID string) bool {
	return c.store.Clear(sessionID)
}

// Sessions returns the session store.
func (c *Conversation) Sessions() *session.Store {
	return c.store
}

// Ask runs one turn for sessionID. The turn is appended to the session only
// if every step succeeds; on failure the history is unchanged and the error
// is a *TurnError naming the failed state.
func (c *Conversation) Ask(ctx context.Context, sessionID, question string) (*models.Answer, error) {
	sessionID = strings.TrimSpace(sessionID)
	req := &models.AskRequest{Question: question}
	if sessionID == "" {
		return nil, c.fail(sessionID, StateStart, fmt.Errorf("%w: session id cannot be empty", models.ErrValidation))
	}
	if err := req.Validate(); err != nil {
		return nil, c.fail(sessionID, StateStart, err)
	}
	question = req.Question

	idx := c.current.Load()
	if idx == nil {
		return nil, c.fail(sessionID, StateRetrieving, models.ErrNoIndex)
	}

	var (
		standalone string
		retrieved  []*models.ScoredChunk
		state      = StateStart
	)
	history, err := c.store.Commit(ctx, sessionID, func(ctx context.Context, prior []models.Turn) (models.Turn, error) {
		state = c.enter(sessionID, StateRewriting)
		q, err := c.rewriter.Rewrite(ctx, prior, question)
		if err != nil {
			return models.Turn{}, err
		}
		standalone = q

		state = c.enter(sessionID, StateRetrieving)
		retrieved, err = c.retriever.Retrieve(ctx, idx, standalone)
		if err != nil {
			return models.Turn{}, err
		}

		state = c.enter(sessionID, StateComposing)
		chunks := make([]*models.Chunk, len(retrieved))
		for i, sc := range retrieved {
			chunks[i] = sc.Chunk
		}
		answer, err := c.composer.Compose(ctx, chunks, prior, question)
		if err != nil {
			return models.Turn{}, err
		}
		return models.Turn{Question: question, Answer: answer, CreatedAt: time.Now()}, nil
	})
	if err != nil {
		return nil, c.fail(sessionID, state, err)
	}
	c.enter(sessionID, StateDone)

	turn := history[len(history)-1]
	ans := &models.Answer{
		SessionID:       sessionID,
		Question:        question,
		StandaloneQuery: standalone,
		Answer:          turn.Answer,
		Sources:         Sources(retrieved),
		History:         history,
	}
	c.notify(ctx, TurnEvent{
		SessionID:       sessionID,
		Turn:            turn,
		StandaloneQuery: standalone,
		Sources:         ans.Sources,
		Document:        idx.Document(),
	})
	return ans, nil
}

// Sources converts retrieved chunks into answer sources.
func Sources(retrieved []*models.ScoredChunk) []models.Source {
	out := make([]models.Source, len(retrieved))
	for i, sc := range retrieved {
		out[i] = models.Source{
			ChunkID:  sc.Chunk.ID,
			Position: sc.Chunk.Position,
			Score:    sc.Score,
			Preview:  utils.Truncate(sc.Chunk.Content, previewLength),
		}
	}
	return out
}

func (c *Conversation) enter(sessionID string, s State) State {
	if c.logger != nil {
		c.logger.Debug("turn state", zap.String("session", sessionID), zap.String("state", string(s)))
	}
	return s
}

func (c *Conversation) fail(sessionID string, s State, err error) error {
	if c.logger != nil {
		c.logger.Debug("turn failed",
			zap.String("session", sessionID),
			zap.String("state", string(s)),
			zap.String("kind", models.ErrorKind(err)),
			zap.Error(err))
	}
	return &TurnError{State: s, Err: err}
}

func (c *Conversation) notify(ctx context.Context, ev TurnEvent) {
	for _, o := range c.observers {
		if err := o.TurnCommitted(ctx, ev); err != nil && c.logger != nil {
			c.logger.Warn("turn observer failed", zap.String("session", ev.SessionID), zap.Error(err))
		}
	}
}
