package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/taskmesh/internal/model"
)

// TaskMutator changes a locked task in place. Returning an error aborts the update.
type TaskMutator func(t *model.Task) error

// TaskRepository stores task-service records.
type TaskRepository interface {
	// Create inserts a task; an existing ID yields errs.ErrConflict.
	Create(ctx context.Context, t *model.Task) error
	// Get returns a task by ID.
	Get(ctx context.Context, id uuid.UUID) (*model.Task, error)
	// Update locks the row, applies fn and persists the result.
	Update(ctx context.Context, id uuid.UUID, fn TaskMutator) (*model.Task, error)
	// Delete removes a task.
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns one page of tasks matching f and the total match count.
	List(ctx context.Context, f model.TaskFilter) ([]model.Task, int, error)
}
