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

type PgTaskRepository struct {
	db *pgxpool.Pool
}

func NewPgTaskRepository(db *pgxpool.Pool) *PgTaskRepository {
	return &PgTaskRepository{db: db}
}

const taskColumns = `id, title, description, priority, status, user_id, created_at, updated_at`

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	var priority, status string
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &priority, &status, &t.UserID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Priority = TaskPriority(priority)
	t.Status = TaskStatus(status)
	return &t, nil
}

// whereClause renders filter as a WHERE clause with positional args.
func (f TaskFilter) whereClause() (string, []any) {
	var conds []string
	var args []any
	if f.UserID != nil {
		args = append(args, *f.UserID)
		conds = append(conds, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, string(*f.Status))
		conds = append(conds, fmt.Sprintf("status=$%d", len(args)))
	}
	if s := strings.TrimSpace(f.TitleContains); s != "" {
		args = append(args, "%"+escapeLike(s)+"%")
		conds = append(conds, fmt.Sprintf(`title ILIKE $%d ESCAPE '\'`, len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *PgTaskRepository) List(ctx context.Context, filter TaskFilter, page PageRequest) ([]Task, int, error) {
	if page.Page <= 0 || page.PerPage <= 0 {
		return nil, 0, errors.New("invalid pagination")
	}
	where, args := filter.whereClause()
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tasks `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	q := fmt.Sprintf(`SELECT %s FROM tasks %s %s LIMIT $%d OFFSET $%d`,
		taskColumns, where, page.orderClause(taskSortColumns), n+1, n+2)
	rows, err := r.db.Query(ctx, q, append(args, page.PerPage, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := make([]Task, 0, page.PerPage)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *t)
	}
	return items, total, rows.Err()
}

func (r *PgTaskRepository) Get(ctx context.Context, id int64) (*Task, error) {
	t, err := scanTask(r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("task %d: %w", id, ErrResourceNotFound)
		}
		return nil, err
	}
	return t, nil
}

func (r *PgTaskRepository) Create(ctx context.Context, t Task) (*Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	t.Description = strings.TrimSpace(t.Description)
	const q = `INSERT INTO tasks (title, description, priority, status, user_id) VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`
	if err := r.db.QueryRow(ctx, q, t.Title, t.Description, string(t.Priority), string(t.Status), t.UserID).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, fmt.Errorf("user %d: %w", t.UserID, ErrResourceNotFound)
		}
		return nil, err
	}
	return &t, nil
}

// Update rewrites the mutable fields of t. The owner is never changed.
func (r *PgTaskRepository) Update(ctx context.Context, t Task) (*Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	t.Description = strings.TrimSpace(t.Description)
	const q = `UPDATE tasks SET title=$1, description=$2, priority=$3, status=$4, updated_at=now() WHERE id=$5 RETURNING user_id, created_at, updated_at`
	if err := r.db.QueryRow(ctx, q, t.Title, t.Description, string(t.Priority), string(t.Status), t.ID).Scan(&t.UserID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("task %d: %w", t.ID, ErrResourceNotFound)
		}
		return nil, err
	}
	return &t, nil
}

func (r *PgTaskRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task %d: %w", id, ErrResourceNotFound)
	}
	return nil
}

func (r *PgTaskRepository) Count(ctx context.Context) (int, error) {
	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&total)
	return total, err
}
