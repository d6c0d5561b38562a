package memory

import (
	"context"
	"time"
)

// TurnRecord stores a single user or assistant conversational turn.
type TurnRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Sentiment string    `json:"sentiment,omitempty"`
	Intent    string    `json:"intent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists conversational turns outside the in-process context arena.
// The core only depends on these save/load primitives, never on a concrete
// storage technology.
type Store interface {
	SaveTurn(ctx context.Context, record TurnRecord) error
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error)
	Close() error
}
