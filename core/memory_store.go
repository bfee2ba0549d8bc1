package core

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps users and tasks in process memory. It backs the
// "memory" storage mode and the package tests.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[int64]UserRecord
	tasks    map[int64]Task
	nextUser int64
	nextTask int64
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[int64]UserRecord),
		tasks:    make(map[int64]Task),
		nextUser: 1,
		nextTask: 1,
		now:      time.Now,
	}
}

// Users returns the store's UserRepository view.
func (s *MemoryStore) Users() *MemoryUserRepository { return &MemoryUserRepository{s: s} }

// Tasks returns the store's TaskRepository view.
func (s *MemoryStore) Tasks() *MemoryTaskRepository { return &MemoryTaskRepository{s: s} }

type MemoryUserRepository struct{ s *MemoryStore }

func (r *MemoryUserRepository) FindByUsername(_ context.Context, username string) (*UserRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, ErrResourceNotFound)
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id int64) (*UserRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, ErrResourceNotFound)
	}
	return &u, nil
}

func (r *MemoryUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := r.FindByUsername(ctx, username)
	return err == nil, nil
}

func (r *MemoryUserRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.emailTakenLocked(email, 0), nil
}

func (r *MemoryUserRepository) emailTakenLocked(email string, except int64) bool {
	for id, u := range r.s.users {
		if id != except && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (r *MemoryUserRepository) usernameTakenLocked(username string, except int64) bool {
	for id, u := range r.s.users {
		if id != except && u.Username == username {
			return true
		}
	}
	return false
}

func (r *MemoryUserRepository) Create(_ context.Context, u UserRecord) (*UserRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.usernameTakenLocked(u.Username, 0) {
		return nil, fmt.Errorf("%w: username already exists", ErrConflict)
	}
	if r.emailTakenLocked(u.Email, 0) {
		return nil, fmt.Errorf("%w: email already exists", ErrConflict)
	}
	u.ID = r.s.nextUser
	r.s.nextUser++
	u.CreatedAt = r.s.now()
	r.s.users[u.ID] = u
	return &u, nil
}

func (r *MemoryUserRepository) Update(_ context.Context, u UserRecord) (*UserRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	prev, ok := r.s.users[u.ID]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", u.ID, ErrResourceNotFound)
	}
	if r.usernameTakenLocked(u.Username, u.ID) {
		return nil, fmt.Errorf("%w: username already exists", ErrConflict)
	}
	if r.emailTakenLocked(u.Email, u.ID) {
		return nil, fmt.Errorf("%w: email already exists", ErrConflict)
	}
	u.CreatedAt = prev.CreatedAt
	r.s.users[u.ID] = u
	return &u, nil
}

// Delete removes the user and cascades to the tasks it owns.
func (r *MemoryUserRepository) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return fmt.Errorf("user %d: %w", id, ErrResourceNotFound)
	}
	delete(r.s.users, id)
	for tid, t := range r.s.tasks {
		if t.UserID == id {
			delete(r.s.tasks, tid)
		}
	}
	return nil
}

func (r *MemoryUserRepository) HasAdmin(_ context.Context) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Role == RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryUserRepository) List(_ context.Context, page PageRequest) ([]UserRecord, int, error) {
	r.s.mu.RLock()
	all := make([]UserRecord, 0, len(r.s.users))
	for _, u := range r.s.users {
		all = append(all, u)
	}
	r.s.mu.RUnlock()

	slices.SortFunc(all, func(a, b UserRecord) int {
		var c int
		switch page.Sort {
		case "username":
			c = cmp.Compare(a.Username, b.Username)
		case "email":
			c = cmp.Compare(a.Email, b.Email)
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if page.Desc {
			return -c
		}
		return c
	})
	return paginate(all, page), len(all), nil
}

func (r *MemoryUserRepository) Count(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.users), nil
}

type MemoryTaskRepository struct{ s *MemoryStore }

func (r *MemoryTaskRepository) Get(_ context.Context, id int64) (*Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %d: %w", id, ErrResourceNotFound)
	}
	return &t, nil
}

func (f TaskFilter) matches(t Task) bool {
	if f.UserID != nil && t.UserID != *f.UserID {
		return false
	}
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if s := strings.TrimSpace(f.TitleContains); s != "" &&
		!strings.Contains(strings.ToLower(t.Title), strings.ToLower(s)) {
		return false
	}
	return true
}

func (r *MemoryTaskRepository) List(_ context.Context, filter TaskFilter, page PageRequest) ([]Task, int, error) {
	r.s.mu.RLock()
	var matched []Task
	for _, t := range r.s.tasks {
		if filter.matches(t) {
			matched = append(matched, t)
		}
	}
	r.s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b Task) int {
		var c int
		switch page.Sort {
		case "title":
			c = cmp.Compare(a.Title, b.Title)
		case "priority":
			c = cmp.Compare(a.Priority.rank(), b.Priority.rank())
		case "status":
			c = cmp.Compare(a.Status.rank(), b.Status.rank())
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if page.Desc {
			return -c
		}
		return c
	})
	return paginate(matched, page), len(matched), nil
}

func (r *MemoryTaskRepository) Create(_ context.Context, t Task) (*Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[t.UserID]; !ok {
		return nil, fmt.Errorf("user %d: %w", t.UserID, ErrResourceNotFound)
	}
	t.ID = r.s.nextTask
	r.s.nextTask++
	t.Title = strings.TrimSpace(t.Title)
	t.Description = strings.TrimSpace(t.Description)
	t.CreatedAt = r.s.now()
	t.UpdatedAt = t.CreatedAt
	r.s.tasks[t.ID] = t
	return &t, nil
}

func (r *MemoryTaskRepository) Update(_ context.Context, t Task) (*Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	prev, ok := r.s.tasks[t.ID]
	if !ok {
		return nil, fmt.Errorf("task %d: %w", t.ID, ErrResourceNotFound)
	}
	prev.Title = strings.TrimSpace(t.Title)
	prev.Description = strings.TrimSpace(t.Description)
	prev.Priority = t.Priority
	prev.Status = t.Status
	prev.UpdatedAt = r.s.now()
	r.s.tasks[t.ID] = prev
	return &prev, nil
}

func (r *MemoryTaskRepository) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tasks[id]; !ok {
		return fmt.Errorf("task %d: %w", id, ErrResourceNotFound)
	}
	delete(r.s.tasks, id)
	return nil
}

func (r *MemoryTaskRepository) Count(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.tasks), nil
}

func paginate[T any](items []T, page PageRequest) []T {
	if page.Page <= 0 || page.PerPage <= 0 {
		return []T{}
	}
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := min(start+page.PerPage, len(items))
	return items[start:end]
}
