package versioning

import (
	"context"
	"testing"

	"github.com/rpattn/versioned/internal/domain"
)

func TestRegistryLoadsRegisteredKind(t *testing.T) {
	registry := NewRegistry()
	registry.Register("user", func(ctx context.Context, id string) (any, error) {
		return map[string]string{"id": id}, nil
	})

	loaded, err := registry.Load(context.Background(), domain.Ref{Kind: "user", ID: "u-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	user, ok := loaded.(map[string]string)
	if !ok || user["id"] != "u-1" {
		t.Fatalf("unexpected loaded value: %v", loaded)
	}
}

func TestRegistryRejectsUnknownKind(t *testing.T) {
	registry := NewRegistry()
	if _, err := registry.Load(context.Background(), domain.Ref{Kind: "ghost", ID: "g-1"}); err == nil {
		t.Fatal("expected error for unregistered kind")
	}
}
