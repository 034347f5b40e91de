package task

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/task/entity"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/task/repo"
	"github.com/ovaphlow/pitchfork/service-todo-go/pkg/database"
)

const (
	maxTitleLen       = 50
	maxDescriptionLen = 100
)

var ErrNotFound = apperr.NotFoundf("todo not found")

// Service implements task CRUD scoped to an owner. Each call is one transaction.
type Service struct {
	db *sqlx.DB
}

func NewService(db *sqlx.DB) *Service {
	return &Service{db: db}
}

// ParsePriority converts form input to a priority.
func ParsePriority(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, apperr.Validationf("priority %q is not an integer", s)
	}
	return p, nil
}

func validate(title, description string) (string, string, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" {
		return "", "", apperr.Validationf("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "", "", apperr.Validationf("title is longer than %d characters", maxTitleLen)
	}
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		return "", "", apperr.Validationf("description is longer than %d characters", maxDescriptionLen)
	}
	return title, description, nil
}

// ListForOwner returns every task owned by ownerID.
func (s *Service) ListForOwner(ctx context.Context, ownerID int64) ([]entity.Task, error) {
	var out []entity.Task
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		out, err = repo.NewTaskRepo(tx).ListByOwner(ctx, ownerID)
		return err
	})
	return out, err
}

// Create stores a new open task for ownerID.
func (s *Service) Create(ctx context.Context, ownerID int64, title, description string, priority int) (*entity.Task, error) {
	title, description, err := validate(title, description)
	if err != nil {
		return nil, err
	}
	t := &entity.Task{Title: title, Description: description, Priority: priority, Complete: false, OwnerID: ownerID}
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		_, err := repo.NewTaskRepo(tx).Create(ctx, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns the task or ErrNotFound.
func (s *Service) Get(ctx context.Context, taskID int64) (*entity.Task, error) {
	var out *entity.Task
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		t, err := repo.NewTaskRepo(tx).GetByID(ctx, taskID)
		out = t
		return notFound(err)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update replaces title, description and priority. Complete is left alone.
func (s *Service) Update(ctx context.Context, taskID int64, title, description string, priority int) (*entity.Task, error) {
	title, description, err := validate(title, description)
	if err != nil {
		return nil, err
	}
	var out *entity.Task
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		t, err := repo.NewTaskRepo(tx).Update(ctx, taskID, title, description, priority)
		out = t
		return notFound(err)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ToggleComplete flips the completion flag; applying it twice is a no-op.
func (s *Service) ToggleComplete(ctx context.Context, taskID int64) (*entity.Task, error) {
	var out *entity.Task
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		t, err := repo.NewTaskRepo(tx).ToggleComplete(ctx, taskID)
		out = t
		return notFound(err)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the task only if it belongs to ownerID. It reports false,
// without error, for a missing task or a foreign owner.
func (s *Service) Delete(ctx context.Context, taskID, ownerID int64) (bool, error) {
	var deleted bool
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		n, err := repo.NewTaskRepo(tx).DeleteOwned(ctx, taskID, ownerID)
		deleted = n > 0
		return err
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
