package core

import (
	"context"
	"strings"
	"time"
)

type TaskPriority string

const (
	PriorityLow      TaskPriority = "LOW"
	PriorityMedium   TaskPriority = "MEDIUM"
	PriorityHigh     TaskPriority = "HIGH"
	PriorityVeryHigh TaskPriority = "VERY_HIGH"
)

type TaskStatus string

const (
	StatusNotStarted TaskStatus = "NOT_STARTED"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
)

// ParseTaskStatus accepts a status name in any case.
func ParseTaskStatus(s string) (TaskStatus, bool) {
	switch st := TaskStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return st, true
	default:
		return "", false
	}
}

// Task is a unit of work owned by exactly one user.
type Task struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Priority    TaskPriority `json:"priority"`
	Status      TaskStatus   `json:"status"`
	UserID      int64        `json:"user_id"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// TaskFilter narrows task listings. Zero values mean "any".
type TaskFilter struct {
	UserID        *int64
	Status        *TaskStatus
	TitleContains string
}

// TaskRepository defines persistence operations for tasks.
type TaskRepository interface {
	Get(ctx context.Context, id int64) (*Task, error)
	List(ctx context.Context, filter TaskFilter, page PageRequest) ([]Task, int, error)
	Create(ctx context.Context, t Task) (*Task, error)
	Update(ctx context.Context, t Task) (*Task, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

// rank orders priorities by severity, LOW first.
func (p TaskPriority) rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	case PriorityVeryHigh:
		return 3
	default:
		return 4
	}
}

// rank orders statuses by workflow progress, NOT_STARTED first.
func (s TaskStatus) rank() int {
	switch s {
	case StatusNotStarted:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	default:
		return 3
	}
}

// taskSortColumns maps sort fields to ORDER BY expressions. Priority and
// status sort by rank, matching TaskPriority.rank and TaskStatus.rank.
var taskSortColumns = map[string]string{
	"id":       "id",
	"title":    "title",
	"priority": "CASE priority WHEN 'LOW' THEN 0 WHEN 'MEDIUM' THEN 1 WHEN 'HIGH' THEN 2 WHEN 'VERY_HIGH' THEN 3 ELSE 4 END",
	"status":   "CASE status WHEN 'NOT_STARTED' THEN 0 WHEN 'IN_PROGRESS' THEN 1 WHEN 'COMPLETED' THEN 2 ELSE 3 END",
}

// TaskSortFields lists the fields accepted by the sort query parameter.
var TaskSortFields = []string{"id", "title", "priority", "status"}
