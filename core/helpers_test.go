package core

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "0123456789abcdef0123456789abcdef-test"

// fakeClock is a settable clock for token lifetimes.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// storeEpoch is when test accounts are created unless a test moves the
// store clock. It precedes every token issued by newFakeClock.
var storeEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestStore() *MemoryStore {
	s := NewMemoryStore()
	s.now = func() time.Time { return storeEpoch }
	return s
}

func newTestCodec(t *testing.T, secret string, clock *fakeClock) *TokenCodec {
	t.Helper()
	key, err := NewSigningKey([]byte(secret))
	if err != nil {
		t.Fatalf("NewSigningKey: %v", err)
	}
	return NewTokenCodec(key, time.Hour, clock.Now)
}

// countingStore records how often the credential store is consulted.
type countingStore struct {
	next  CredentialStore
	calls atomic.Int64
}

func (s *countingStore) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	s.calls.Add(1)
	return s.next.FindByUsername(ctx, username)
}

func (s *countingStore) FindByID(ctx context.Context, id int64) (*UserRecord, error) {
	s.calls.Add(1)
	return s.next.FindByID(ctx, id)
}

const testPassword = "Passw0rd!"

// addTestUser inserts a user with testPassword hashed at the minimum cost.
func addTestUser(t *testing.T, users UserRepository, username string, role Role) UserRecord {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	u, err := users.Create(context.Background(), UserRecord{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		Role:         role,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return *u
}

func addTestTask(t *testing.T, tasks TaskRepository, owner int64, title string) Task {
	t.Helper()
	task, err := tasks.Create(context.Background(), Task{
		Title:       title,
		Description: "description of " + title,
		Priority:    PriorityMedium,
		Status:      StatusNotStarted,
		UserID:      owner,
	})
	if err != nil {
		t.Fatalf("create task %s: %v", title, err)
	}
	return *task
}

type testEnv struct {
	store  *MemoryStore
	clock  *fakeClock
	codec  *TokenCodec
	creds  *countingStore
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newTestStore()
	clock := newFakeClock()
	codec := newTestCodec(t, testSecret, clock)
	creds := &countingStore{next: store.Users()}

	cfg := Defaults()
	cfg.Storage = StorageMemory
	cfg.JWTSecret = testSecret
	cfg.AllowedOrigins = []string{"http://localhost:3000"}

	return &testEnv{
		store:  store,
		clock:  clock,
		codec:  codec,
		creds:  creds,
		router: NewRouter(cfg, NewServices(codec, store.Users(), store.Tasks(), creds)),
	}
}

func (e *testEnv) token(t *testing.T, username string) string {
	t.Helper()
	tok, _, err := e.codec.Issue(username)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, w, &body)
	return body.Error.Code
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, want, w.Body.String())
	}
}
