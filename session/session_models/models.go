package session_models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/quizsolver/internal/quiz"
)

var (
	ErrNotFound          = errors.New("session not found")
	ErrInvalidTransition = errors.New("invalid session transition")
)

// next lists the forward transitions; any non-terminal state may also move
// to failed.
var next = map[quiz.State]quiz.State{
	quiz.StatePending:     quiz.StateRendering,
	quiz.StateRendering:   quiz.StateExtracting,
	quiz.StateExtracting:  quiz.StateDispatching,
	quiz.StateDispatching: quiz.StateSolving,
	quiz.StateSolving:     quiz.StateAnswered,
}

// CanTransition reports whether a session in from may move to to.
func CanTransition(from, to quiz.State) bool {
	if from.Terminal() {
		return false
	}
	if to == quiz.StateFailed {
		return true
	}
	return next[from] == to
}

// Apply moves s to state to or returns ErrInvalidTransition.
func Apply(s quiz.Session, to quiz.State) (quiz.Session, error) {
	if !CanTransition(s.State, to) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.State, to)
	}
	s.State = to
	return s, nil
}

// NewSession builds a pending session that expires timeout after now.
func NewSession(url, email string, now time.Time, timeout time.Duration) quiz.Session {
	return quiz.Session{
		ID:        uuid.NewString(),
		URL:       url,
		Email:     email,
		CreatedAt: now,
		Deadline:  now.Add(timeout),
		State:     quiz.StatePending,
	}
}
