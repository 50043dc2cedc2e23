package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// newTestRedisStorage connects to REDIS_ADDR and skips the test when unset.
func newTestRedisStorage(t *testing.T) *RedisStorage {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable at %s: %v", addr, err)
	}

	store := NewRedisStorage(client, "atlas-packer-test:"+uuid.NewString()+":", time.Minute)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestRedisStorageRoundTrip(t *testing.T) {
	store := newTestRedisStorage(t)
	ctx := context.Background()

	if err := store.Save(ctx, testAtlas("b", time.Unix(2, 0).UTC())); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, testAtlas("a", time.Unix(1, 0).UTC())); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "atlas-a" || got.Regions["sprite"].Height != 4 {
		t.Fatalf("unexpected atlas: %+v", got)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Fatalf("unexpected list: %+v", list)
	}

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := store.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
