package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/taskmesh/internal/errs"
	"github.com/and161185/taskmesh/internal/model"
	"github.com/and161185/taskmesh/internal/repository"
)

// TaskRepo implements TaskRepository using PostgreSQL.
type TaskRepo struct{ db *DB }

// NewTaskRepo constructs a task repository.
func NewTaskRepo(db *DB) *TaskRepo { return &TaskRepo{db: db} }

const taskColumns = `id, title, description, due_date, status, owner_id, assigned_user_id, assigned_team_id, created_at, updated_at`

func scanTask(row pgx.Row, extra ...any) (model.Task, error) {
	var (
		t      model.Task
		status string
	)
	dest := append([]any{
		&t.ID, &t.Title, &t.Description, &t.DueDate, &status, &t.OwnerID,
		&t.AssignedUserID, &t.AssignedTeamID, &t.CreatedAt, &t.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return model.Task{}, err
	}
	t.Status = model.TaskStatus(status)
	return t, nil
}

// Create inserts a task row.
func (r *TaskRepo) Create(ctx context.Context, t *model.Task) error {
	const q = `
INSERT INTO tasks (id, title, description, due_date, status, owner_id, assigned_user_id, assigned_team_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at, updated_at`
	err := r.db.Pool.QueryRow(ctx, q,
		t.ID, t.Title, t.Description, t.DueDate, string(t.Status), t.OwnerID, t.AssignedUserID, t.AssignedTeamID,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if isUniqueViolation(err) {
		return errs.Newf(errs.KindConflict, "task %s already exists", t.ID)
	}
	return err
}

// Get returns a task by id.
func (r *TaskRepo) Get(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	t, err := scanTask(r.db.Pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// Update locks the task row, applies fn and writes every mutable column back.
func (r *TaskRepo) Update(ctx context.Context, id uuid.UUID, fn repository.TaskMutator) (*model.Task, error) {
	var out model.Task
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		t, err := scanTask(tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1 FOR UPDATE`, id))
		if err != nil {
			return notFound(err)
		}
		if err := fn(&t); err != nil {
			return err
		}
		const upd = `
UPDATE tasks
SET title=$2, description=$3, due_date=$4, status=$5, assigned_user_id=$6, assigned_team_id=$7, updated_at=now()
WHERE id=$1
RETURNING updated_at`
		if err := tx.QueryRow(ctx, upd,
			id, t.Title, t.Description, t.DueDate, string(t.Status), t.AssignedUserID, t.AssignedTeamID,
		).Scan(&t.UpdatedAt); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a task row.
func (r *TaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM tasks WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// List returns tasks matching f, newest first, with the total match count.
// The total is 0 when the page lies past the last match.
func (r *TaskRepo) List(ctx context.Context, f model.TaskFilter) ([]model.Task, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.OwnerID != nil {
		add("owner_id=$%d", *f.OwnerID)
	}
	if f.AssignedUserID != nil {
		add("assigned_user_id=$%d", *f.AssignedUserID)
	}
	if f.AssignedTeamID != nil {
		add("assigned_team_id=$%d", *f.AssignedTeamID)
	}
	if f.Status != "" {
		add("status=$%d", string(f.Status))
	}

	page, size := model.Normalize(f.Page, f.PageSize)
	q := `SELECT ` + taskColumns + `, count(*) OVER() FROM tasks`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, size, offset(page, size))

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []model.Task{}
	total := 0
	for rows.Next() {
		t, err := scanTask(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}
