package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestAddTurnTrimsToMostRecent(t *testing.T) {
	s := New(1)
	const max = 20
	for i := 0; i < 30; i++ {
		s.AddTurn(RoleUser, fmt.Sprintf("msg-%d", i), max)
		if len(s.History) > max {
			t.Fatalf("history length %d exceeds max %d after add %d", len(s.History), max, i)
		}
	}

	if len(s.History) != max {
		t.Fatalf("history length = %d, want %d", len(s.History), max)
	}
	for i, turn := range s.History {
		want := fmt.Sprintf("msg-%d", 30-max+i)
		if turn.Content != want {
			t.Fatalf("history[%d] = %q, want %q", i, turn.Content, want)
		}
	}
}

func TestGetOrCreateReturnsSnapshot(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	snap, err := m.GetOrCreate(ctx, 42)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if snap.Authenticated {
		t.Fatalf("fresh session should be unauthenticated")
	}

	// Mutating the snapshot must not leak into the store.
	snap.Authenticated = true
	snap.History = append(snap.History, Turn{Role: RoleUser, Content: "x"})

	again, err := m.GetOrCreate(ctx, 42)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if again.Authenticated || len(again.History) != 0 {
		t.Fatalf("snapshot mutation leaked into store: %+v", again)
	}
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}
}

func TestUpdateCreatesWhenAbsent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	err := m.Update(ctx, 7, func(s *Session) error {
		s.AddTurn(RoleUser, "hello", 20)
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	snap, _ := m.GetOrCreate(ctx, 7)
	if len(snap.History) != 1 || snap.History[0].Content != "hello" {
		t.Fatalf("unexpected history after Update: %+v", snap.History)
	}
}

func TestResetClearsHistoryKeepsAuthentication(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	if err := m.Reset(ctx, 5); err != ErrNotFound {
		t.Fatalf("Reset() on missing session error = %v, want ErrNotFound", err)
	}

	_ = m.Update(ctx, 5, func(s *Session) error {
		s.Authenticate("anthropic", "sk-ant-test")
		s.AddTurn(RoleUser, "hi", 20)
		return nil
	})

	if err := m.Reset(ctx, 5); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	snap, _ := m.GetOrCreate(ctx, 5)
	if len(snap.History) != 0 {
		t.Fatalf("history not cleared: %+v", snap.History)
	}
	if !snap.Authenticated || snap.Credential != "sk-ant-test" {
		t.Fatalf("reset must not touch authentication: %+v", snap)
	}
}

func TestSweepEvictsOnlyIdleSessions(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Now().UTC()

	_ = m.Update(ctx, 1, func(s *Session) error {
		s.LastActivityAt = now.Add(-25 * time.Hour)
		return nil
	})
	_ = m.Update(ctx, 2, func(s *Session) error {
		s.LastActivityAt = now.Add(-23 * time.Hour)
		return nil
	})

	evicted := m.Sweep(now, 24*time.Hour)
	if evicted != 1 {
		t.Fatalf("Sweep() = %d, want 1", evicted)
	}
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}
	if _, err := m.GetOrCreate(ctx, 2); err != nil {
		t.Fatalf("surviving session lookup error = %v", err)
	}
	if err := m.Reset(ctx, 1); err != ErrNotFound {
		t.Fatalf("evicted session still present")
	}
}

func TestLockSerializesOneIdentity(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			unlock := m.Lock(9)
			defer unlock()
			_ = m.Update(ctx, 9, func(s *Session) error {
				s.AddTurn(RoleUser, fmt.Sprintf("m-%d", n), 10)
				return nil
			})
		}(i)
	}
	wg.Wait()

	snap, _ := m.GetOrCreate(ctx, 9)
	if len(snap.History) != 10 {
		t.Fatalf("history length = %d, want 10", len(snap.History))
	}
}

func TestJanitorSweeps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMemoryStore()
	_ = m.Update(ctx, 1, func(s *Session) error {
		s.LastActivityAt = time.Now().UTC().Add(-time.Hour)
		return nil
	})

	swept := make(chan int, 1)
	StartJanitor(ctx, m, 10*time.Millisecond, 30*time.Minute, func(evicted, _ int) {
		if evicted > 0 {
			select {
			case swept <- evicted:
			default:
			}
		}
	})

	select {
	case n := <-swept:
		if n != 1 {
			t.Fatalf("janitor evicted %d, want 1", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("janitor never swept")
	}
}
