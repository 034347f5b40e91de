package admin

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/session"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/task/entity"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/task/repo"
	"github.com/ovaphlow/pitchfork/service-todo-go/pkg/database"
)

var (
	ErrForbidden = apperr.New(apperr.ErrForbidden, "only admin can access this route")
	ErrNotFound  = apperr.NotFoundf("todo not found")
)

// Service holds cross-owner task operations. The role check runs before any
// store access.
type Service struct {
	db *sqlx.DB
}

func NewService(db *sqlx.DB) *Service { return &Service{db: db} }

func authorize(id session.Identity) error {
	if !id.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// ListAllTasks returns every task of every owner.
func (s *Service) ListAllTasks(ctx context.Context, id session.Identity) ([]entity.Task, error) {
	if err := authorize(id); err != nil {
		return nil, err
	}
	var out []entity.Task
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		out, err = repo.NewTaskRepo(tx).ListAll(ctx)
		return err
	})
	return out, err
}

// DeleteAny removes a task regardless of owner; ErrNotFound when absent.
func (s *Service) DeleteAny(ctx context.Context, id session.Identity, taskID int64) (bool, error) {
	if err := authorize(id); err != nil {
		return false, err
	}
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		n, err := repo.NewTaskRepo(tx).Delete(ctx, taskID)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
