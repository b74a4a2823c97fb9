package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mohammad-safakhou/quizsolver/internal/quiz"
	"github.com/mohammad-safakhou/quizsolver/session/session_models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySessionStore(0)
	defer store.Close()

	sess, err := store.Start(ctx, "https://quiz/1", "a@b.c", time.Minute)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sess.State != quiz.StatePending || sess.ID == "" {
		t.Fatalf("unexpected new session %+v", sess)
	}
	if !sess.Deadline.Equal(sess.CreatedAt.Add(time.Minute)) {
		t.Fatalf("deadline %v not created+timeout", sess.Deadline)
	}

	for _, st := range []quiz.State{quiz.StateRendering, quiz.StateExtracting, quiz.StateDispatching, quiz.StateSolving, quiz.StateAnswered} {
		if sess, err = store.Transition(ctx, sess.ID, st); err != nil {
			t.Fatalf("Transition(%s): %v", st, err)
		}
	}
	if _, err := store.Transition(ctx, sess.ID, quiz.StateFailed); !errors.Is(err, session_models.ErrInvalidTransition) {
		t.Fatalf("terminal session moved again: %v", err)
	}

	if n, _ := store.Active(ctx); n != 1 {
		t.Fatalf("Active = %d, want 1", n)
	}
	if err := store.Complete(ctx, sess.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := store.Get(ctx, sess.ID); !errors.Is(err, session_models.ErrNotFound) {
		t.Fatalf("completed session still present: %v", err)
	}
	if n, _ := store.Active(ctx); n != 0 {
		t.Fatalf("Active = %d after Complete", n)
	}
}

func TestSkippingStatesIsRejected(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySessionStore(0)
	defer store.Close()
	sess, _ := store.Start(ctx, "u", "e", time.Minute)
	if _, err := store.Transition(ctx, sess.ID, quiz.StateSolving); !errors.Is(err, session_models.ErrInvalidTransition) {
		t.Fatalf("pending -> solving allowed: %v", err)
	}
	if _, err := store.Transition(ctx, sess.ID, quiz.StateFailed); err != nil {
		t.Fatalf("pending -> failed rejected: %v", err)
	}
	if _, err := store.Transition(ctx, "missing", quiz.StateRendering); !errors.Is(err, session_models.ErrNotFound) {
		t.Fatalf("unknown id: %v", err)
	}
}

func TestSweepEvictsExpired(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySessionStore(0)
	defer store.Close()

	now := time.Now()
	var mu sync.Mutex
	store.now = func() time.Time { mu.Lock(); defer mu.Unlock(); return now }

	old, _ := store.Start(ctx, "u1", "e", time.Second)
	fresh, _ := store.Start(ctx, "u2", "e", time.Hour)

	mu.Lock()
	now = now.Add(2 * time.Second)
	mu.Unlock()

	if n, _ := store.Active(ctx); n != 1 {
		t.Fatalf("Active = %d, want 1", n)
	}
	if removed := store.Sweep(); removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
	if _, err := store.Get(ctx, old.ID); !errors.Is(err, session_models.ErrNotFound) {
		t.Fatalf("expired session not evicted")
	}
	if _, err := store.Get(ctx, fresh.ID); err != nil {
		t.Fatalf("fresh session evicted: %v", err)
	}
}

func TestBackgroundSweeperStopsOnClose(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySessionStore(5 * time.Millisecond)
	sess, _ := store.Start(ctx, "u", "e", time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := store.Get(ctx, sess.ID); errors.Is(err, session_models.ErrNotFound) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("sweeper never evicted the session")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// second Close must not panic or block
	_ = store.Close()
}
