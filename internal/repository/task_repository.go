// Package repository defines the data-source boundary for tasks and users.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nadmax/fieldops/internal/repository/models"
	"github.com/nadmax/fieldops/internal/task"
)

var ErrUserNotFound = errors.New("user not found")

// TaskFilter selects tasks created in [From, To). A nil From has no lower
// bound, a nil AssigneeID matches every task.
type TaskFilter struct {
	From       *time.Time
	To         time.Time
	AssigneeID *int64
}

type TaskRepository interface {
	ListTasks(ctx context.Context, filter TaskFilter) ([]task.Record, error)
	// ListWorkers returns display names of active workers and dispatchers.
	ListWorkers(ctx context.Context) (map[int64]string, error)
}

type UserRepository interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	UpdateProfile(ctx context.Context, id int64, update models.ProfileUpdate) (*models.User, error)
	GetPasswordHash(ctx context.Context, id int64) (string, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

type Repository interface {
	TaskRepository
	UserRepository
	Close() error
}
