package memory

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCachedKVCachesReads(t *testing.T) {
	ctx := context.Background()
	backing := &countingKV{KVStore: NewKVStore()}
	_ = backing.KVStore.Set(ctx, "quiz_rankings", `{"dailyRankings":[]}`)
	cached := NewCachedKV(backing, time.Minute)

	if _, _, err := cached.Get(ctx, "quiz_rankings"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if backing.gets != 1 {
		t.Fatalf("expected backing read once, got %d", backing.gets)
	}

	value, found, err := cached.Get(ctx, "quiz_rankings")
	if err != nil {
		t.Fatalf("get 2: %v", err)
	}
	if !found || value != `{"dailyRankings":[]}` {
		t.Fatalf("unexpected cached value found=%v value=%q", found, value)
	}
	if backing.gets != 1 {
		t.Fatalf("expected cache hit, backing reads %d", backing.gets)
	}
}

func TestCachedKVCachesMisses(t *testing.T) {
	ctx := context.Background()
	backing := &countingKV{KVStore: NewKVStore()}
	cached := NewCachedKV(backing, time.Minute)

	for i := 0; i < 3; i++ {
		if _, found, _ := cached.Get(ctx, "missing"); found {
			t.Fatalf("expected miss")
		}
	}
	if backing.gets != 1 {
		t.Fatalf("expected one backing read for repeated misses, got %d", backing.gets)
	}
}

func TestCachedKVExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	backing := &countingKV{KVStore: NewKVStore()}
	cached := NewCachedKV(backing, time.Minute)
	cached.clock = func() time.Time { return now }

	_, _, _ = cached.Get(ctx, "k")
	now = now.Add(2 * time.Minute)
	_, _, _ = cached.Get(ctx, "k")
	if backing.gets != 2 {
		t.Fatalf("expected reload after ttl, got %d reads", backing.gets)
	}
}

func TestCachedKVWriteThrough(t *testing.T) {
	ctx := context.Background()
	backing := &countingKV{KVStore: NewKVStore()}
	cached := NewCachedKV(backing, time.Minute)

	if err := cached.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, _, _ := backing.KVStore.Get(ctx, "k"); v != "v" {
		t.Fatalf("expected write to reach backing store, got %q", v)
	}
	if v, _, _ := cached.Get(ctx, "k"); v != "v" {
		t.Fatalf("expected cached value v, got %q", v)
	}
	if backing.gets != 0 {
		t.Fatalf("expected read served from cache, got %d backing reads", backing.gets)
	}
}

func TestCachedKVFailedWriteIsNotCached(t *testing.T) {
	ctx := context.Background()
	backing := &countingKV{KVStore: NewKVStore(), failSet: errors.New("quota exceeded")}
	cached := NewCachedKV(backing, time.Minute)

	if err := cached.Set(ctx, "k", "v"); err == nil {
		t.Fatalf("expected write error")
	}
	if _, found, _ := cached.Get(ctx, "k"); found {
		t.Fatalf("failed write must not be visible through the cache")
	}
}

type countingKV struct {
	*KVStore
	gets    int
	failSet error
}

func (c *countingKV) Get(ctx context.Context, key string) (string, bool, error) {
	c.gets++
	return c.KVStore.Get(ctx, key)
}

func (c *countingKV) Set(ctx context.Context, key, value string) error {
	if c.failSet != nil {
		return c.failSet
	}
	return c.KVStore.Set(ctx, key, value)
}
