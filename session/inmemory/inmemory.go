package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mohammad-safakhou/quizsolver/internal/quiz"
	"github.com/mohammad-safakhou/quizsolver/session/session_models"
)

// Store keeps sessions in a map. A background sweeper evicts sessions whose
// deadline has passed.
type Store struct {
	sessions map[string]quiz.Session
	mu       sync.RWMutex
	now      func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewInMemorySessionStore starts the sweeper when sweepInterval > 0.
func NewInMemorySessionStore(sweepInterval time.Duration) *Store {
	store := &Store{
		sessions: make(map[string]quiz.Session),
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if sweepInterval > 0 {
		go store.sweepLoop(sweepInterval)
	} else {
		close(store.done)
	}
	return store
}

func (store *Store) Start(_ context.Context, url, email string, timeout time.Duration) (quiz.Session, error) {
	sess := session_models.NewSession(url, email, store.now(), timeout)
	store.mu.Lock()
	defer store.mu.Unlock()
	store.sessions[sess.ID] = sess
	return sess, nil
}

func (store *Store) Transition(_ context.Context, id string, to quiz.State) (quiz.Session, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	sess, ok := store.sessions[id]
	if !ok {
		return quiz.Session{}, fmt.Errorf("%w: %s", session_models.ErrNotFound, id)
	}
	sess, err := session_models.Apply(sess, to)
	if err != nil {
		return sess, err
	}
	store.sessions[id] = sess
	return sess, nil
}

func (store *Store) Get(_ context.Context, id string) (quiz.Session, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	sess, ok := store.sessions[id]
	if !ok {
		return quiz.Session{}, fmt.Errorf("%w: %s", session_models.ErrNotFound, id)
	}
	return sess, nil
}

// Complete removes the session. Removing an unknown session is not an error.
func (store *Store) Complete(_ context.Context, id string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.sessions, id)
	return nil
}

// Active counts sessions that have not expired yet.
func (store *Store) Active(_ context.Context) (int, error) {
	now := store.now()
	store.mu.RLock()
	defer store.mu.RUnlock()
	n := 0
	for _, s := range store.sessions {
		if !s.Expired(now) {
			n++
		}
	}
	return n, nil
}

// Sweep evicts expired sessions and returns how many were removed.
func (store *Store) Sweep() int {
	now := store.now()
	store.mu.Lock()
	defer store.mu.Unlock()
	n := 0
	for id, s := range store.sessions {
		if s.Expired(now) {
			delete(store.sessions, id)
			n++
		}
	}
	return n
}

// Close stops the sweeper and waits for it to exit.
func (store *Store) Close() error {
	store.closeOnce.Do(func() { close(store.stop) })
	<-store.done
	return nil
}

func (store *Store) sweepLoop(interval time.Duration) {
	defer close(store.done)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-store.stop:
			return
		case <-t.C:
			store.Sweep()
		}
	}
}
