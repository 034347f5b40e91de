package repo

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/task/entity"
)

const taskColumns = `id, title, description, priority, complete, owner_id`

// TaskRepo provides data access for the todos table.
type TaskRepo struct {
	q sqlx.ExtContext
}

func NewTaskRepo(q sqlx.ExtContext) *TaskRepo { return &TaskRepo{q: q} }

// EnsureTable creates the todos table if not exists (idempotent). Needs users first.
func (r *TaskRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS todos (
  id BIGSERIAL PRIMARY KEY,
  title VARCHAR(50) NOT NULL,
  description VARCHAR(100) NOT NULL DEFAULT '',
  priority INT NOT NULL DEFAULT 0,
  complete BOOLEAN NOT NULL DEFAULT false,
  owner_id BIGINT NOT NULL REFERENCES users(id)
);
CREATE INDEX IF NOT EXISTS idx_todos_owner_id ON todos(owner_id);
`
	_, err := r.q.ExecContext(ctx, ddl)
	return err
}

func (r *TaskRepo) ListByOwner(ctx context.Context, ownerID int64) ([]entity.Task, error) {
	const q = `SELECT ` + taskColumns + ` FROM todos WHERE owner_id = $1 ORDER BY id`
	out := []entity.Task{}
	if err := sqlx.SelectContext(ctx, r.q, &out, q, ownerID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *TaskRepo) ListAll(ctx context.Context) ([]entity.Task, error) {
	const q = `SELECT ` + taskColumns + ` FROM todos ORDER BY id`
	out := []entity.Task{}
	if err := sqlx.SelectContext(ctx, r.q, &out, q); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID returns the task or sql.ErrNoRows.
func (r *TaskRepo) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	const q = `SELECT ` + taskColumns + ` FROM todos WHERE id = $1`
	var t entity.Task
	if err := sqlx.GetContext(ctx, r.q, &t, q, id); err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts t and sets its ID. A missing owner is a validation error.
func (r *TaskRepo) Create(ctx context.Context, t *entity.Task) (int64, error) {
	const q = `INSERT INTO todos (title, description, priority, complete, owner_id)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := r.q.QueryRowxContext(ctx, q, t.Title, t.Description, t.Priority, t.Complete, t.OwnerID).Scan(&t.ID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return 0, apperr.Validationf("owner %d does not exist", t.OwnerID)
		}
		return 0, err
	}
	return t.ID, nil
}

// Update replaces title, description and priority; returns the new row or sql.ErrNoRows.
func (r *TaskRepo) Update(ctx context.Context, id int64, title, description string, priority int) (*entity.Task, error) {
	const q = `UPDATE todos SET title = $2, description = $3, priority = $4 WHERE id = $1 RETURNING ` + taskColumns
	var t entity.Task
	if err := sqlx.GetContext(ctx, r.q, &t, q, id, title, description, priority); err != nil {
		return nil, err
	}
	return &t, nil
}

// ToggleComplete flips complete in one statement; returns the new row or sql.ErrNoRows.
func (r *TaskRepo) ToggleComplete(ctx context.Context, id int64) (*entity.Task, error) {
	const q = `UPDATE todos SET complete = NOT complete WHERE id = $1 RETURNING ` + taskColumns
	var t entity.Task
	if err := sqlx.GetContext(ctx, r.q, &t, q, id); err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteOwned removes the task only when it belongs to ownerID; returns affected rows.
func (r *TaskRepo) DeleteOwned(ctx context.Context, id, ownerID int64) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM todos WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes the task regardless of owner; returns affected rows.
func (r *TaskRepo) Delete(ctx context.Context, id int64) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM todos WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
