package redis_session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/quizsolver/internal/quiz"
	"github.com/mohammad-safakhou/quizsolver/session/session_models"
)

const keyPrefix = "quizsolver:session:"

// Store keeps each session as a JSON value whose TTL is the remaining
// session lifetime, so Redis does the eviction.
type Store struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisSessionStore(addr, password string, db int) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Store{client: rdb, now: time.Now}
}

// Ping checks connectivity.
func (store *Store) Ping(ctx context.Context) error {
	return store.client.Ping(ctx).Err()
}

func key(id string) string { return keyPrefix + id }

func (store *Store) Start(ctx context.Context, url, email string, timeout time.Duration) (quiz.Session, error) {
	sess := session_models.NewSession(url, email, store.now(), timeout)
	data, err := json.Marshal(sess)
	if err != nil {
		return quiz.Session{}, err
	}
	if err := store.client.Set(ctx, key(sess.ID), data, timeout).Err(); err != nil {
		return quiz.Session{}, fmt.Errorf("redis set session: %w", err)
	}
	return sess, nil
}

func (store *Store) Transition(ctx context.Context, id string, to quiz.State) (quiz.Session, error) {
	sess, err := store.Get(ctx, id)
	if err != nil {
		return quiz.Session{}, err
	}
	sess, err = session_models.Apply(sess, to)
	if err != nil {
		return sess, err
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return quiz.Session{}, err
	}
	// XX only overwrites a key that still exists; KeepTTL preserves its expiry.
	ok, err := store.client.SetArgs(ctx, key(id), data, redis.SetArgs{Mode: "XX", KeepTTL: true}).Result()
	if errors.Is(err, redis.Nil) || (err == nil && ok != "OK") {
		return quiz.Session{}, fmt.Errorf("%w: %s", session_models.ErrNotFound, id)
	}
	if err != nil {
		return quiz.Session{}, fmt.Errorf("redis update session: %w", err)
	}
	return sess, nil
}

func (store *Store) Get(ctx context.Context, id string) (quiz.Session, error) {
	val, err := store.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return quiz.Session{}, fmt.Errorf("%w: %s", session_models.ErrNotFound, id)
	}
	if err != nil {
		return quiz.Session{}, fmt.Errorf("redis get session: %w", err)
	}
	var sess quiz.Session
	if err := json.Unmarshal(val, &sess); err != nil {
		return quiz.Session{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return sess, nil
}

func (store *Store) Complete(ctx context.Context, id string) error {
	return store.client.Del(ctx, key(id)).Err()
}

// Active counts live session keys.
func (store *Store) Active(ctx context.Context) (int, error) {
	n := 0
	iter := store.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan sessions: %w", err)
	}
	return n, nil
}

func (store *Store) Close() error {
	return store.client.Close()
}
