package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CredentialStore is the lookup surface the auth core needs.
// Both methods return an error wrapping ErrResourceNotFound when absent.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*UserRecord, error)
	FindByID(ctx context.Context, id int64) (*UserRecord, error)
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	CredentialStore
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u UserRecord) (*UserRecord, error)
	Update(ctx context.Context, u UserRecord) (*UserRecord, error)
	Delete(ctx context.Context, id int64) error
	HasAdmin(ctx context.Context) (bool, error)
	List(ctx context.Context, page PageRequest) ([]UserRecord, int, error)
	Count(ctx context.Context) (int, error)
}

var userSortColumns = map[string]string{
	"id":       "id",
	"username": "username",
	"email":    "email",
}

// UserSortFields lists the fields accepted by the sort query parameter.
var UserSortFields = []string{"id", "username", "email"}

// PgUserRepository implements UserRepository using pgxpool.
type PgUserRepository struct {
	db *pgxpool.Pool
}

func NewPgUserRepository(db *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{db: db}
}

const userColumns = `id, username, email, password_hash, role, created_at`

func scanUser(row pgx.Row) (*UserRecord, error) {
	var u UserRecord
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = Role(role)
	return &u, nil
}

func (r *PgUserRepository) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, ErrResourceNotFound)
		}
		return nil, err
	}
	return u, nil
}

func (r *PgUserRepository) FindByID(ctx context.Context, id int64) (*UserRecord, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, ErrResourceNotFound)
		}
		return nil, err
	}
	return u, nil
}

func (r *PgUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username=$1)`, username).Scan(&ok)
	return ok, err
}

func (r *PgUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE lower(email)=lower($1))`, email).Scan(&ok)
	return ok, err
}

func (r *PgUserRepository) Create(ctx context.Context, u UserRecord) (*UserRecord, error) {
	const q = `INSERT INTO users (username, email, password_hash, role) VALUES ($1,$2,$3,$4) RETURNING id, created_at`
	if err := r.db.QueryRow(ctx, q, u.Username, u.Email, u.PasswordHash, string(u.Role)).Scan(&u.ID, &u.CreatedAt); err != nil {
		return nil, mapUniqueViolation(err)
	}
	return &u, nil
}

func (r *PgUserRepository) Update(ctx context.Context, u UserRecord) (*UserRecord, error) {
	const q = `UPDATE users SET username=$1, email=$2, password_hash=$3, role=$4 WHERE id=$5 RETURNING created_at`
	if err := r.db.QueryRow(ctx, q, u.Username, u.Email, u.PasswordHash, string(u.Role), u.ID).Scan(&u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", u.ID, ErrResourceNotFound)
		}
		return nil, mapUniqueViolation(err)
	}
	return &u, nil
}

func (r *PgUserRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", id, ErrResourceNotFound)
	}
	return nil
}

func (r *PgUserRepository) HasAdmin(ctx context.Context) (bool, error) {
	const q = `SELECT 1 FROM users WHERE role='ADMIN' LIMIT 1`
	var one int
	if err := r.db.QueryRow(ctx, q).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List returns a page of users ordered by the requested column.
func (r *PgUserRepository) List(ctx context.Context, page PageRequest) ([]UserRecord, int, error) {
	if page.Page <= 0 || page.PerPage <= 0 {
		return nil, 0, errors.New("invalid pagination")
	}
	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	q := `SELECT ` + userColumns + ` FROM users ` + page.orderClause(userSortColumns) + ` LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, q, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := make([]UserRecord, 0, page.PerPage)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *u)
	}
	return items, total, rows.Err()
}

func (r *PgUserRepository) Count(ctx context.Context) (int, error) {
	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total)
	return total, err
}

// mapUniqueViolation turns a unique-constraint failure into ErrConflict.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		field := strings.TrimPrefix(strings.TrimSuffix(pgErr.ConstraintName, "_key"), "users_")
		return fmt.Errorf("%w: %s already exists", ErrConflict, field)
	}
	return err
}
