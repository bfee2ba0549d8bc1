package core

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClientRaw exposes the subset of go-redis used by the credential cache.
type RedisClientRaw interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NewRedisClient returns a configured go-redis client from URL (e.g., redis://localhost:6379/0).
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

const (
	userCacheByIDPrefix   = "user:id:"
	userCacheByNamePrefix = "user:name:"
)

// cachedUser is the cached projection of a user. The password hash is never cached.
type cachedUser struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// CachedCredentialStore fronts a CredentialStore with a Redis cache-aside
// layer. Misses and Redis failures fall through to the backing store;
// absent users are never cached. Records served from the cache carry an
// empty PasswordHash.
type CachedCredentialStore struct {
	redis RedisClientRaw
	next  CredentialStore
	ttl   time.Duration
}

func NewCachedCredentialStore(client RedisClientRaw, next CredentialStore, ttl time.Duration) *CachedCredentialStore {
	return &CachedCredentialStore{redis: client, next: next, ttl: ttl}
}

func userIDKey(id int64) string          { return userCacheByIDPrefix + strconv.FormatInt(id, 10) }
func userNameKey(username string) string { return userCacheByNamePrefix + username }

func (s *CachedCredentialStore) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	if u, ok := s.load(ctx, userNameKey(username)); ok {
		return u, nil
	}
	u, err := s.next.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	s.store(ctx, u)
	return u, nil
}

func (s *CachedCredentialStore) FindByID(ctx context.Context, id int64) (*UserRecord, error) {
	if u, ok := s.load(ctx, userIDKey(id)); ok {
		return u, nil
	}
	u, err := s.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.store(ctx, u)
	return u, nil
}

// Invalidate drops every cached entry for u. Call it after u is updated or
// deleted, with the record as it was before the change.
func (s *CachedCredentialStore) Invalidate(ctx context.Context, u UserRecord) {
	if err := s.redis.Del(ctx, userIDKey(u.ID), userNameKey(u.Username)).Err(); err != nil {
		log.Printf("[user-cache] invalidate id=%d: %v", u.ID, err)
	}
}

func (s *CachedCredentialStore) load(ctx context.Context, key string) (*UserRecord, bool) {
	val, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("[user-cache] get %s: %v", key, err)
		}
		return nil, false
	}
	var cu cachedUser
	if err := json.Unmarshal([]byte(val), &cu); err != nil {
		log.Printf("[user-cache] decode %s: %v", key, err)
		return nil, false
	}
	return &UserRecord{ID: cu.ID, Username: cu.Username, Email: cu.Email, Role: cu.Role, CreatedAt: cu.CreatedAt}, true
}

func (s *CachedCredentialStore) store(ctx context.Context, u *UserRecord) {
	data, err := json.Marshal(cachedUser{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt})
	if err != nil {
		return
	}
	for _, key := range []string{userIDKey(u.ID), userNameKey(u.Username)} {
		if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
			log.Printf("[user-cache] set %s: %v", key, err)
			return
		}
	}
}
