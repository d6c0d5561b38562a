package contextstore

import (
	"fmt"
	"sync"
	"testing"
)

func TestLoadCreatesEmptyContextOnMiss(t *testing.T) {
	s := New(10)
	ctx := s.Load("sess-1")
	if ctx.SessionID != "sess-1" {
		t.Fatalf("SessionID = %q, want %q", ctx.SessionID, "sess-1")
	}
	if len(ctx.Turns) != 0 {
		t.Fatalf("new context should have no turns, got %d", len(ctx.Turns))
	}
	if ctx.Sentiment != "neutral" || ctx.Intent != "general" {
		t.Fatalf("unexpected defaults: %+v", ctx)
	}
}

func TestAppendTurnEvictsOldestBeyondMax(t *testing.T) {
	s := New(3)
	for i := 0; i < 5; i++ {
		s.AppendTurn("sess-1", Turn{Role: RoleUser, Text: fmt.Sprintf("m%d", i)})
	}

	ctx := s.Load("sess-1")
	if len(ctx.Turns) != 3 {
		t.Fatalf("turns = %d, want 3", len(ctx.Turns))
	}
	for i, want := range []string{"m2", "m3", "m4"} {
		if ctx.Turns[i].Text != want {
			t.Fatalf("turns[%d] = %q, want %q", i, ctx.Turns[i].Text, want)
		}
	}
}

func TestSetDerivedLastWriteWins(t *testing.T) {
	s := New(10)
	s.SetDerived("sess-1", "positive", "greeting", 0.9)
	s.SetDerived("sess-1", "negative", "complaint", 0.4)

	ctx := s.Load("sess-1")
	if ctx.Sentiment != "negative" || ctx.Intent != "complaint" || ctx.Confidence != 0.4 {
		t.Fatalf("unexpected derived state: %+v", ctx)
	}
}

func TestLoadReturnsCopy(t *testing.T) {
	s := New(10)
	s.AppendTurn("sess-1", Turn{Role: RoleUser, Text: "hello"})

	ctx := s.Load("sess-1")
	ctx.Turns[0].Text = "mutated"

	again := s.Load("sess-1")
	if again.Turns[0].Text != "hello" {
		t.Fatalf("store state leaked through Load copy")
	}
}

func TestConcurrentAppendsAcrossSessions(t *testing.T) {
	const sessions = 50
	const turnsPerSession = 20
	s := New(turnsPerSession)

	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("sess-%d", i)
			for j := 0; j < turnsPerSession; j++ {
				s.AppendTurn(id, Turn{Role: RoleUser, Text: fmt.Sprintf("m%d", j)})
			}
		}(i)
	}
	wg.Wait()

	if s.Len() != sessions {
		t.Fatalf("Len() = %d, want %d", s.Len(), sessions)
	}
	for i := 0; i < sessions; i++ {
		ctx := s.Load(fmt.Sprintf("sess-%d", i))
		if len(ctx.Turns) != turnsPerSession {
			t.Fatalf("session %d turns = %d, want %d", i, len(ctx.Turns), turnsPerSession)
		}
		for j, turn := range ctx.Turns {
			if turn.Text != fmt.Sprintf("m%d", j) {
				t.Fatalf("session %d turn %d out of order: %q", i, j, turn.Text)
			}
		}
	}
}
