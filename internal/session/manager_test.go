package session

import (
	"context"
	"testing"
	"time"
)

func TestManagerEnsureCreatesOnFirstContact(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Ensure("sess-1", "u1")
	if s.ID != "sess-1" || s.UserID != "u1" || s.Status != StatusActive {
		t.Fatalf("unexpected session state: %+v", s)
	}

	again := m.Ensure("sess-1", "u1")
	if again.CreatedAt != s.CreatedAt {
		t.Fatalf("Ensure() recreated a live session")
	}
}

func TestManagerEnsureGeneratesIDWhenEmpty(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Ensure("", "u1")
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}
}

func TestManagerLazyExpiryReplacesStaleSession(t *testing.T) {
	m := NewManager(5 * time.Second)
	s := m.Ensure("sess-1", "u1")

	m.mu.Lock()
	m.sessions[s.ID].LastActivityAt = time.Now().UTC().Add(-time.Minute)
	m.mu.Unlock()

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusExpired {
		t.Fatalf("Status = %q, want %q on idle session", got.Status, StatusExpired)
	}

	fresh := m.Ensure(s.ID, "u1")
	if fresh.Status != StatusActive {
		t.Fatalf("Ensure() should replace an expired session, got %+v", fresh)
	}
	if !fresh.CreatedAt.After(s.CreatedAt) {
		t.Fatalf("replacement session should be newer than the stale one")
	}
}

func TestManagerEnsureFiresExpireHookOnLazyReplacement(t *testing.T) {
	m := NewManager(5 * time.Second)
	s := m.Ensure("sess-1", "u1")

	var expired []*Session
	m.SetExpireHook(func(es *Session) {
		expired = append(expired, es)
	})

	m.mu.Lock()
	m.sessions[s.ID].LastActivityAt = time.Now().UTC().Add(-time.Minute)
	m.mu.Unlock()

	fresh := m.Ensure(s.ID, "u1")
	if fresh.Status != StatusActive {
		t.Fatalf("replacement status = %q, want %q", fresh.Status, StatusActive)
	}
	if len(expired) != 1 {
		t.Fatalf("expire hook fired %d times, want 1", len(expired))
	}
	if expired[0].ID != s.ID || expired[0].Status != StatusExpired {
		t.Fatalf("expire hook saw %+v, want expired %q", expired[0], s.ID)
	}

	// A live session must not trigger the hook.
	m.Ensure(s.ID, "u1")
	if len(expired) != 1 {
		t.Fatalf("expire hook fired on a live session")
	}
}

func TestManagerRecordMessage(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Ensure("sess-1", "u1")
	for i := 0; i < 3; i++ {
		if err := m.RecordMessage(s.ID); err != nil {
			t.Fatalf("RecordMessage() error = %v", err)
		}
	}
	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.MessageCount != 3 {
		t.Fatalf("MessageCount = %d, want 3", got.MessageCount)
	}
}

func TestManagerJanitorExpiresIdle(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	s := m.Ensure("sess-1", "u1")

	expiredCh := make(chan string, 1)
	m.SetExpireHook(func(es *Session) {
		select {
		case expiredCh <- es.ID:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	select {
	case id := <-expiredCh:
		if id != s.ID {
			t.Fatalf("expire hook saw %q, want %q", id, s.ID)
		}
	case <-time.After(time.Second):
		t.Fatalf("janitor did not expire idle session")
	}
	if _, err := m.Get(s.ID); err != ErrNotFound {
		t.Fatalf("Get() after sweep error = %v, want ErrNotFound", err)
	}
}
