package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*miniredis.Miniredis, *CachedCredentialStore, *countingStore, *MemoryStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := newTestStore()
	backing := &countingStore{next: store.Users()}
	return mr, NewCachedCredentialStore(client, backing, time.Minute), backing, store
}

func TestCachedCredentialStoreHit(t *testing.T) {
	mr, cache, backing, store := newTestCache(t)
	alice := addTestUser(t, store.Users(), "alice", RoleUser)
	ctx := context.Background()

	if _, err := cache.FindByUsername(ctx, "alice"); err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	if backing.calls.Load() != 1 {
		t.Fatalf("backing calls = %d, want 1", backing.calls.Load())
	}

	u, err := cache.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if backing.calls.Load() != 1 {
		t.Fatalf("cached lookup reached the backing store")
	}
	if u.ID != alice.ID || u.Role != RoleUser || u.Email != alice.Email {
		t.Fatalf("cached user = %+v", u)
	}

	// populated under both keys
	if _, err := cache.FindByID(ctx, alice.ID); err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if backing.calls.Load() != 1 {
		t.Fatalf("lookup by id missed the cache")
	}
	if !mr.Exists(userIDKey(alice.ID)) || !mr.Exists(userNameKey("alice")) {
		t.Fatalf("expected both cache keys to be set")
	}
}

func TestCachedCredentialStoreNeverCachesHash(t *testing.T) {
	mr, cache, _, store := newTestCache(t)
	alice := addTestUser(t, store.Users(), "alice", RoleUser)
	ctx := context.Background()

	if _, err := cache.FindByUsername(ctx, "alice"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	raw, err := mr.Get(userNameKey("alice"))
	if err != nil {
		t.Fatalf("miniredis get: %v", err)
	}
	if strings.Contains(raw, alice.PasswordHash) || strings.Contains(raw, "$2a$") {
		t.Fatalf("password hash stored in cache: %s", raw)
	}
	u, _ := cache.FindByUsername(ctx, "alice")
	if u.PasswordHash != "" {
		t.Fatalf("cached record carries a password hash")
	}
}

func TestCachedCredentialStoreMissIsNotCached(t *testing.T) {
	mr, cache, backing, _ := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := cache.FindByUsername(ctx, "ghost"); !errors.Is(err, ErrResourceNotFound) {
			t.Fatalf("err = %v, want ErrResourceNotFound", err)
		}
	}
	if backing.calls.Load() != 2 {
		t.Fatalf("backing calls = %d, want 2", backing.calls.Load())
	}
	if mr.Exists(userNameKey("ghost")) {
		t.Fatalf("absent user was cached")
	}
}

func TestCachedCredentialStoreInvalidate(t *testing.T) {
	mr, cache, backing, store := newTestCache(t)
	alice := addTestUser(t, store.Users(), "alice", RoleUser)
	ctx := context.Background()

	if _, err := cache.FindByUsername(ctx, "alice"); err != nil {
		t.Fatalf("lookup: %v", err)
	}

	promoted := alice
	promoted.Role = RoleAdmin
	if _, err := store.Users().Update(ctx, promoted); err != nil {
		t.Fatalf("Update: %v", err)
	}
	cache.Invalidate(ctx, alice)
	if mr.Exists(userIDKey(alice.ID)) || mr.Exists(userNameKey("alice")) {
		t.Fatalf("keys survived invalidation")
	}

	u, err := cache.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("lookup after invalidate: %v", err)
	}
	if u.Role != RoleAdmin {
		t.Fatalf("role = %s, want ADMIN after invalidation", u.Role)
	}
	if backing.calls.Load() != 2 {
		t.Fatalf("backing calls = %d, want 2", backing.calls.Load())
	}
}

func TestCachedCredentialStoreExpires(t *testing.T) {
	mr, cache, backing, store := newTestCache(t)
	addTestUser(t, store.Users(), "alice", RoleUser)
	ctx := context.Background()

	if _, err := cache.FindByUsername(ctx, "alice"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := cache.FindByUsername(ctx, "alice"); err != nil {
		t.Fatalf("lookup after ttl: %v", err)
	}
	if backing.calls.Load() != 2 {
		t.Fatalf("backing calls = %d, want 2 after ttl", backing.calls.Load())
	}
}

func TestCachedCredentialStoreFallsThroughWhenRedisDown(t *testing.T) {
	mr, cache, backing, store := newTestCache(t)
	addTestUser(t, store.Users(), "alice", RoleUser)
	mr.Close()

	u, err := cache.FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("lookup with redis down: %v", err)
	}
	if u.Username != "alice" || backing.calls.Load() != 1 {
		t.Fatalf("user=%+v calls=%d", u, backing.calls.Load())
	}
}
