package memory

import (
	"context"
	"testing"
)

func TestKVStoreMissingKey(t *testing.T) {
	store := NewKVStore()

	value, found, err := store.Get(context.Background(), "quiz_rankings")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found || value != "" {
		t.Fatalf("expected missing key, got found=%v value=%q", found, value)
	}
}

func TestKVStoreSetOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore()

	if err := store.Set(ctx, "k", "v1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "k", "v2"); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, found, _ := store.Get(ctx, "k")
	if !found || value != "v2" {
		t.Fatalf("expected v2, got found=%v value=%q", found, value)
	}
	if _, found, _ := store.Get(ctx, "other"); found {
		t.Fatalf("expected other keys untouched")
	}
}
