// Package session keeps per-session conversation history in memory.
package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/kaiwa/internal/models"
)

// Session is an ordered conversation history. turn is a one-slot semaphore
// held for a whole commit so turns are appended in commit order and never
// interleave; mu guards the fields and is only held briefly.
type Session struct {
	id        string
	turn      chan struct{}
	mu        sync.Mutex
	turns     []models.Turn
	createdAt time.Time
	updatedAt time.Time
}

func newSession(id string) *Session {
	now := time.Now()
	return &Session{id: id, turn: make(chan struct{}, 1), createdAt: now, updatedAt: now}
}

// acquire takes the turn slot, giving up when ctx is done first.
func (sess *Session) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case sess.turn <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (sess *Session) release() {
	<-sess.turn
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Turns returns a copy of the session's turns in append order.
func (s *Session) Turns() []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CopyTurns(s.turns)
}

// Info summarises a session for listings.
type Info struct {
	ID        string    `json:"id"`
	Turns     int       `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store maps session ids to sessions. The map lock is held only to find or
// create a session; work on a session happens under that session's own lock,
// so different sessions never block each other.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

func validateID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: session id cannot be empty", models.ErrValidation)
	}
	return id, nil
}

// GetOrCreate returns the session for id, creating an empty one on first use.
func (s *Store) GetOrCreate(id string) (*Session, error) {
	id, err := validateID(id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	sess = newSession(id)
	s.sessions[id] = sess
	return sess, nil
}

// Append adds turn to the end of the session's history, creating the session
// if needed.
func (s *Store) Append(id string, turn models.Turn) error {
	_, err := s.Commit(context.Background(), id, func(context.Context, []models.Turn) (models.Turn, error) {
		return turn, nil
	})
	return err
}

// append adds turn and returns the updated history.
func (sess *Session) append(turn models.Turn) []models.Turn {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.turns = append(sess.turns, turn)
	sess.updatedAt = turn.CreatedAt
	return models.CopyTurns(sess.turns)
}

// History returns a copy of the turns for id. An unknown id yields an empty
// history and does not create a session.
func (s *Store) History(id string) []models.Turn {
	id = strings.TrimSpace(id)
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return []models.Turn{}
	}
	return sess.Turns()
}

// CommitFunc computes the next turn from the current history. Returning an
// error leaves the session unchanged.
type CommitFunc func(ctx context.Context, history []models.Turn) (models.Turn, error)

// Commit runs fn with the session's history while holding the session's turn
// slot and appends the turn fn returns. Concurrent commits to one session run
// one after another, each seeing the turns committed before it. If fn fails
// nothing is appended and its error is returned. Waiting for the slot stops
// when ctx is done.
//
// A session cleared while fn runs does not swallow the turn: it is appended to
// whatever session is registered under id afterwards, starting a fresh history
// when there is none.
func (s *Store) Commit(ctx context.Context, id string, fn CommitFunc) ([]models.Turn, error) {
	sess, err := s.acquireCurrent(ctx, id)
	if err != nil {
		return nil, err
	}
	turn, err := runTurn(ctx, sess, fn)
	if err != nil {
		sess.release()
		return nil, err
	}
	for {
		history, next := s.appendIfRegistered(sess, turn)
		sess.release()
		if next == nil {
			return history, nil
		}
		// The turn is already computed; wait for the new session regardless of ctx.
		next.turn <- struct{}{}
		sess = next
	}
}

// runTurn calls fn with sess's history. The turn slot is released if fn panics.
func runTurn(ctx context.Context, sess *Session, fn CommitFunc) (models.Turn, error) {
	defer func() {
		if r := recover(); r != nil {
			sess.release()
			panic(r)
		}
	}()
	return fn(ctx, sess.Turns())
}

// acquireCurrent returns the session registered under id with its turn slot
// held. A session cleared while waiting is skipped for its replacement.
func (s *Store) acquireCurrent(ctx context.Context, id string) (*Session, error) {
	for {
		sess, err := s.GetOrCreate(id)
		if err != nil {
			return nil, err
		}
		if err := sess.acquire(ctx); err != nil {
			return nil, err
		}
		if s.registered(sess) {
			return sess, nil
		}
		sess.release()
	}
}

func (s *Store) registered(sess *Session) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sess.id] == sess
}

// appendIfRegistered appends turn to sess while sess is the session
// registered under its id. If sess was cleared and nothing replaced it, sess
// is reset and registered again first. Otherwise the replacement is returned
// as next and nothing is appended. The caller holds sess's turn slot.
func (s *Store) appendIfRegistered(sess *Session, turn models.Turn) (history []models.Turn, next *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[sess.id]
	if ok && current != sess {
		return nil, current
	}
	if !ok {
		sess.mu.Lock()
		now := time.Now()
		sess.turns = nil
		sess.createdAt, sess.updatedAt = now, now
		sess.mu.Unlock()
		s.sessions[sess.id] = sess
	}
	return sess.append(turn), nil
}

// Clear removes the session. It reports whether the session existed.
func (s *Store) Clear(id string) bool {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// IDs returns the known session ids in sorted order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// List returns a summary of every session, sorted by id.
func (s *Store) List() []Info {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	out := make([]Info, 0, len(sessions))
	for _, sess := range sessions {
		sess.mu.Lock()
		out = append(out, Info{
			ID:        sess.id,
			Turns:     len(sess.turns),
			CreatedAt: sess.createdAt,
			UpdatedAt: sess.updatedAt,
		})
		sess.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
