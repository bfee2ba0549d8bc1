package core

import (
	"context"
	"errors"
	"testing"
)

func TestCanAccess(t *testing.T) {
	cases := []struct {
		name  string
		p     *Principal
		owner int64
		want  bool
	}{
		{"owner", &Principal{ID: 7, Role: RoleUser}, 7, true},
		{"other user", &Principal{ID: 8, Role: RoleUser}, 7, false},
		{"admin", &Principal{ID: 1, Role: RoleAdmin}, 7, true},
		{"anonymous", nil, 7, false},
	}
	for _, tc := range cases {
		if got := CanAccess(tc.p, tc.owner); got != tc.want {
			t.Fatalf("%s: CanAccess = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func newTestAccess(t *testing.T) (*AccessEvaluator, UserRecord, UserRecord, UserRecord, Task) {
	t.Helper()
	store := newTestStore()
	owner := addTestUser(t, store.Users(), "owner", RoleUser)
	other := addTestUser(t, store.Users(), "other", RoleUser)
	admin := addTestUser(t, store.Users(), "root", RoleAdmin)
	task := addTestTask(t, store.Tasks(), owner.ID, "groceries")
	return NewAccessEvaluator(store.Tasks(), store.Users()), owner, other, admin, task
}

func asUser(u UserRecord) context.Context {
	return WithPrincipal(context.Background(), u.Principal())
}

func TestTaskForAction(t *testing.T) {
	access, owner, other, admin, task := newTestAccess(t)

	if _, _, err := access.TaskForAction(context.Background(), task.ID); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("anonymous err = %v, want ErrUnauthenticated", err)
	}
	if got, _, err := access.TaskForAction(asUser(owner), task.ID); err != nil || got.ID != task.ID {
		t.Fatalf("owner: task=%v err=%v", got, err)
	}
	if _, p, err := access.TaskForAction(asUser(other), task.ID); !errors.Is(err, ErrAccessDenied) || p == nil {
		t.Fatalf("other err = %v principal = %v, want ErrAccessDenied", err, p)
	}
	if _, _, err := access.TaskForAction(asUser(admin), task.ID); err != nil {
		t.Fatalf("admin: %v", err)
	}
	if _, _, err := access.TaskForAction(asUser(other), task.ID+100); !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("missing task err = %v, want ErrResourceNotFound", err)
	}
}

func TestUserForAction(t *testing.T) {
	access, owner, other, admin, _ := newTestAccess(t)

	if _, _, err := access.UserForAction(asUser(owner), owner.ID); err != nil {
		t.Fatalf("self: %v", err)
	}
	if _, _, err := access.UserForAction(asUser(other), owner.ID); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("other err = %v, want ErrAccessDenied", err)
	}
	if u, _, err := access.UserForAction(asUser(admin), owner.ID); err != nil || u.Username != "owner" {
		t.Fatalf("admin: user=%v err=%v", u, err)
	}
	if _, _, err := access.UserForAction(asUser(admin), 4242); !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("missing user err = %v, want ErrResourceNotFound", err)
	}
}

func TestRequireAdmin(t *testing.T) {
	access, owner, _, admin, _ := newTestAccess(t)

	if _, err := access.RequireAdmin(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("anonymous err = %v, want ErrUnauthenticated", err)
	}
	if _, err := access.RequireAdmin(asUser(owner)); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("user err = %v, want ErrAccessDenied", err)
	}
	if p, err := access.RequireAdmin(asUser(admin)); err != nil || !p.IsAdmin() {
		t.Fatalf("admin: p=%v err=%v", p, err)
	}
}
