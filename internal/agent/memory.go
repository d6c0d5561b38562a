package agent

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mcolombo/ensemble/internal/contextstore"
	"github.com/mcolombo/ensemble/internal/memory"
)

// MemoryAgent owns all mutation of per-session conversational context. It
// fronts the context arena and, when a persistence store is configured,
// mirrors each turn into it best-effort.
type MemoryAgent struct {
	contexts *contextstore.Store
	persist  memory.Store
	metrics  *Metrics

	// rehydrateMu keeps two cold loads of the same session from both
	// replaying persisted turns into the arena.
	rehydrateMu sync.Mutex
}

func NewMemoryAgent(contexts *contextstore.Store, persist memory.Store) *MemoryAgent {
	return &MemoryAgent{
		contexts: contexts,
		persist:  persist,
		metrics:  NewMetrics("memory"),
	}
}

// Load returns the session's context, creating an empty one on first access.
// When a persistence store is configured, a cold session is rehydrated from
// its recent persisted turns first, so history survives a process restart.
func (a *MemoryAgent) Load(ctx context.Context, sessionID string) contextstore.Context {
	start := time.Now()
	if a.persist != nil {
		a.rehydrateMu.Lock()
		if !a.contexts.Has(sessionID) {
			a.rehydrate(ctx, sessionID)
		}
		a.rehydrateMu.Unlock()
	}
	c := a.contexts.Load(sessionID)
	a.metrics.Record(time.Since(start), true)
	return c
}

func (a *MemoryAgent) rehydrate(ctx context.Context, sessionID string) {
	records, err := a.persist.RecentTurns(ctx, sessionID, a.contexts.MaxTurns())
	if err != nil {
		log.Printf("memory: rehydrate session %s: %v", sessionID, err)
		return
	}
	for _, r := range records {
		a.contexts.AppendTurn(sessionID, contextstore.Turn{
			Role:      contextstore.Role(r.Role),
			Text:      r.Content,
			CreatedAt: r.CreatedAt,
		})
	}
}

// RecordTurn appends a turn to the session's context and mirrors it to the
// persistence store. Persistence failures are logged, not surfaced; the
// in-process context remains the source of truth for the current session.
func (a *MemoryAgent) RecordTurn(ctx context.Context, sessionID, userID string, turn contextstore.Turn) {
	start := time.Now()
	a.contexts.AppendTurn(sessionID, turn)
	a.metrics.Record(time.Since(start), true)

	if a.persist == nil {
		return
	}
	current := a.contexts.Load(sessionID)
	record := memory.TurnRecord{
		UserID:    userID,
		SessionID: sessionID,
		Role:      string(turn.Role),
		Content:   turn.Text,
		Sentiment: current.Sentiment,
		Intent:    current.Intent,
		CreatedAt: turn.CreatedAt,
	}
	if err := a.persist.SaveTurn(ctx, record); err != nil {
		log.Printf("memory: persist turn for session %s: %v", sessionID, err)
	}
}

// UpdateDerived overwrites the session's sentiment, intent and confidence.
func (a *MemoryAgent) UpdateDerived(sessionID, sentiment, intent string, confidence float64) {
	start := time.Now()
	a.contexts.SetDerived(sessionID, sentiment, intent, confidence)
	a.metrics.Record(time.Since(start), true)
}

// Forget drops the session's context, e.g. when its session expires.
func (a *MemoryAgent) Forget(sessionID string) {
	a.contexts.Drop(sessionID)
}

// ContextCount reports how many session contexts are held in memory.
func (a *MemoryAgent) ContextCount() int {
	return a.contexts.Len()
}

func (a *MemoryAgent) Status() Status {
	return a.metrics.Snapshot()
}
