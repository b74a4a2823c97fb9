package session

import (
	"context"
	"testing"

	"github.com/mohammad-safakhou/quizsolver/config"
)

func TestNewStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(ctx, config.SessionConfig{Store: "inmemory"})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := NewStore(ctx, config.SessionConfig{Store: "etcd"}); err == nil {
		t.Fatalf("expected error for unknown store")
	}
}
