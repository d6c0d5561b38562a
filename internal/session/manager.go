package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusEnded   Status = "ended"
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	ID             string    `json:"session_id"`
	UserID         string    `json:"user_id"`
	Status         Status    `json:"status"`
	MessageCount   int       `json:"message_count"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Manager owns the session table. Expiry is advisory: a stale session found
// on access is replaced rather than resurrected. The janitor sweep is
// optional hardening on top of that.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	idleTimeout time.Duration
	onExpire    func(*Session)
}

func NewManager(idleTimeout time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = time.Hour
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		idleTimeout: idleTimeout,
	}
}

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Ensure returns the live session for sessionID, creating one on first
// contact. An idle-expired entry is swapped for a fresh session with the
// same ID so the caller never observes stale state; the expire hook fires
// for the replaced entry just as it does on a janitor sweep.
func (m *Manager) Ensure(sessionID, userID string) *Session {
	now := time.Now().UTC()
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	m.mu.Lock()

	s, ok := m.sessions[sessionID]
	if ok && s.Status == StatusActive && now.Sub(s.LastActivityAt) < m.idleTimeout {
		s.LastActivityAt = now
		fresh := clone(s)
		m.mu.Unlock()
		return fresh
	}

	var stale *Session
	if ok && s.Status == StatusActive {
		stale = clone(s)
		stale.Status = StatusExpired
	}

	s = &Session{
		ID:             sessionID,
		UserID:         userID,
		Status:         StatusActive,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	m.sessions[sessionID] = s
	fresh := clone(s)
	hook := m.onExpire
	m.mu.Unlock()

	if stale != nil && hook != nil {
		hook(stale)
	}
	return fresh
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if s.Status == StatusActive && time.Now().UTC().Sub(s.LastActivityAt) >= m.idleTimeout {
		c := clone(s)
		c.Status = StatusExpired
		return c, nil
	}
	return clone(s), nil
}

func (m *Manager) Touch(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// RecordMessage bumps the per-session message counter.
func (m *Manager) RecordMessage(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.MessageCount++
	s.LastActivityAt = time.Now().UTC()
	return nil
}

func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	s.Status = StatusEnded
	s.LastActivityAt = time.Now().UTC()
	return clone(s), nil
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireIdle()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	now := time.Now().UTC()
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if s.Status == StatusActive && now.Sub(s.LastActivityAt) < m.idleTimeout {
			count++
		}
	}
	return count
}

func (m *Manager) expireIdle() {
	now := time.Now().UTC()
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.Status != StatusActive {
			delete(m.sessions, id)
			continue
		}
		if now.Sub(s.LastActivityAt) < m.idleTimeout {
			continue
		}
		s.Status = StatusExpired
		expired = append(expired, clone(s))
		delete(m.sessions, id)
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
