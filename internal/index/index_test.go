package index

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisIndex, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	idx, err := NewRedisIndex(context.Background(), "redis://"+s.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("NewRedisIndex failed: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx, s
}

func TestRedisIndex_SetGetDelete(t *testing.T) {
	idx, s := setupTestRedis(t)
	ctx := context.Background()

	if _, ok, err := idx.Get(ctx, "p1", "Users"); err != nil || ok {
		t.Fatalf("Expected a clean miss, got ok=%v err=%v", ok, err)
	}

	if err := idx.Set(ctx, "p1", "Users", "folder-1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !s.Exists("folder:p1/Users") {
		t.Error("Expected key folder:p1/Users in redis")
	}

	id, ok, err := idx.Get(ctx, "p1", "Users")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || id != "folder-1" {
		t.Errorf("Expected folder-1, got %q (hit=%v)", id, ok)
	}

	if err := idx.Delete(ctx, "p1", "Users"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := idx.Get(ctx, "p1", "Users"); ok {
		t.Error("Expected a miss after Delete")
	}
}

func TestRedisIndex_EntriesExpire(t *testing.T) {
	idx, s := setupTestRedis(t)
	ctx := context.Background()

	if err := idx.Set(ctx, "p1", "Shared", "folder-2"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	s.FastForward(2 * time.Minute)

	_, ok, err := idx.Get(ctx, "p1", "Shared")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("Expected the entry to have expired")
	}
}

func TestRedisIndex_UnreachableReportsError(t *testing.T) {
	idx, s := setupTestRedis(t)
	s.Close()

	if _, _, err := idx.Get(context.Background(), "p1", "Users"); err == nil {
		t.Error("Expected an error from a closed redis")
	}
}

func TestNewRedisIndex_BadURL(t *testing.T) {
	if _, err := NewRedisIndex(context.Background(), "not a url", time.Minute); err == nil {
		t.Error("Expected an error for a bad URL")
	}
}

func TestMemoryIndex_Expiry(t *testing.T) {
	idx := NewMemoryIndex(time.Minute)
	now := time.Unix(0, 0)
	idx.now = func() time.Time { return now }
	ctx := context.Background()

	if err := idx.Set(ctx, "p", "n", "id"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if id, ok, _ := idx.Get(ctx, "p", "n"); !ok || id != "id" {
		t.Errorf("Expected id, got %q (hit=%v)", id, ok)
	}

	now = now.Add(time.Minute)
	if _, ok, _ := idx.Get(ctx, "p", "n"); ok {
		t.Error("Expected the entry to have expired")
	}
}

func TestMemoryIndex_Delete(t *testing.T) {
	idx := NewMemoryIndex(0)
	ctx := context.Background()

	idx.Set(ctx, "p", "n", "id")
	idx.Delete(ctx, "p", "n")

	if _, ok, _ := idx.Get(ctx, "p", "n"); ok {
		t.Error("Expected a miss after Delete")
	}
}
