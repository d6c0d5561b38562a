package contextstore

import (
	"sync"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in a conversation. Immutable once recorded.
type Turn struct {
	Role         Role          `json:"role"`
	Text         string        `json:"text"`
	CreatedAt    time.Time     `json:"created_at"`
	ResponseTime time.Duration `json:"response_time,omitempty"`
	Suggestions  []string      `json:"suggestions,omitempty"`
}

// Context is the evolving per-session state: bounded turn history plus the
// derived labels the agents keep overwriting.
type Context struct {
	SessionID  string    `json:"session_id"`
	Turns      []Turn    `json:"turns"`
	Sentiment  string    `json:"sentiment"`
	Intent     string    `json:"intent"`
	Confidence float64   `json:"confidence"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type entry struct {
	mu  sync.Mutex
	ctx Context
}

// Store is an arena of Contexts keyed by session ID with creation-on-miss.
// Each entry is mutated under its own lock so unrelated sessions never
// serialize on one another.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	maxTurns int
}

func New(maxTurns int) *Store {
	if maxTurns <= 0 {
		maxTurns = 100
	}
	return &Store{
		entries:  make(map[string]*entry),
		maxTurns: maxTurns,
	}
}

func (s *Store) entryFor(sessionID string) *entry {
	s.mu.RLock()
	e, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[sessionID]; ok {
		return e
	}
	e = &entry{ctx: Context{
		SessionID: sessionID,
		Sentiment: "neutral",
		Intent:    "general",
		UpdatedAt: time.Now().UTC(),
	}}
	s.entries[sessionID] = e
	return e
}

// Has reports whether a context already exists for sessionID without
// creating one.
func (s *Store) Has(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[sessionID]
	return ok
}

// MaxTurns reports the configured history bound.
func (s *Store) MaxTurns() int { return s.maxTurns }

// Load returns a copy of the Context for sessionID, creating an empty one on
// first access. It never fails.
func (s *Store) Load(sessionID string) Context {
	e := s.entryFor(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneContext(e.ctx)
}

// AppendTurn records one turn, evicting the oldest when the history exceeds
// the configured maximum.
func (s *Store) AppendTurn(sessionID string, turn Turn) {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	e := s.entryFor(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ctx.Turns = append(e.ctx.Turns, turn)
	if overflow := len(e.ctx.Turns) - s.maxTurns; overflow > 0 {
		e.ctx.Turns = append(e.ctx.Turns[:0], e.ctx.Turns[overflow:]...)
	}
	e.ctx.UpdatedAt = time.Now().UTC()
}

// SetDerived overwrites the derived labels. Last write wins; no merging.
func (s *Store) SetDerived(sessionID, sentiment, intent string, confidence float64) {
	e := s.entryFor(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ctx.Sentiment = sentiment
	e.ctx.Intent = intent
	e.ctx.Confidence = confidence
	e.ctx.UpdatedAt = time.Now().UTC()
}

// Drop removes a session's context, e.g. after session expiry.
func (s *Store) Drop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
}

// Len reports how many contexts are currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func cloneContext(c Context) Context {
	out := c
	out.Turns = make([]Turn, len(c.Turns))
	copy(out.Turns, c.Turns)
	return out
}
