package session

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/quizsolver/config"
	"github.com/mohammad-safakhou/quizsolver/internal/quiz"
	"github.com/mohammad-safakhou/quizsolver/session/inmemory"
	redis_session "github.com/mohammad-safakhou/quizsolver/session/redis"
	"github.com/mohammad-safakhou/quizsolver/session/session_models"
)

// Store is the registry of active quiz sessions. Sessions are inserted on
// start, moved through the state machine with Transition and removed by
// Complete or on expiry.
type Store interface {
	Start(ctx context.Context, url, email string, timeout time.Duration) (quiz.Session, error)
	Transition(ctx context.Context, id string, to quiz.State) (quiz.Session, error)
	Get(ctx context.Context, id string) (quiz.Session, error)
	Complete(ctx context.Context, id string) error
	Active(ctx context.Context) (int, error)
	Close() error
}

var (
	ErrNotFound          = session_models.ErrNotFound
	ErrInvalidTransition = session_models.ErrInvalidTransition
)

type StoreType string

const (
	InMemoryStore StoreType = "inmemory"
	RedisStore    StoreType = "redis"
)

func NewStore(ctx context.Context, cfg config.SessionConfig) (Store, error) {
	switch StoreType(cfg.Store) {
	case InMemoryStore, "":
		return inmemory.NewInMemorySessionStore(cfg.SweepInterval), nil
	case RedisStore:
		store := redis_session.NewRedisSessionStore(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("redis session store %s: %w", cfg.Redis.Addr(), err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Store)
	}
}
