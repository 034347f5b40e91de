package admin

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/session"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/user/entity"
)

var (
	root  = session.Identity{Username: "root", UserID: 1, Role: entity.RoleAdmin}
	alice = session.Identity{Username: "alice", UserID: 2, Role: entity.RoleUser}
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("expectations: %v", err)
		}
		raw.Close()
	})
	return NewService(sqlx.NewDb(raw, "postgres")), mock
}

func TestNonAdminIsForbiddenWithoutTouchingStore(t *testing.T) {
	// no expectations: any Begin or query fails the mock
	s, _ := newTestService(t)
	if _, err := s.ListAllTasks(context.Background(), alice); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("ListAllTasks: expected ErrForbidden, got %v", err)
	}
	for _, id := range []int64{1, 999} {
		if _, err := s.DeleteAny(context.Background(), alice, id); !errors.Is(err, apperr.ErrForbidden) {
			t.Fatalf("DeleteAny(%d): expected ErrForbidden, got %v", id, err)
		}
	}
	if _, err := s.DeleteAny(context.Background(), session.Identity{}, 1); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("zero identity: expected ErrForbidden, got %v", err)
	}
}

func TestListAllTasks(t *testing.T) {
	s, mock := newTestService(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM todos ORDER BY id`)).WillReturnRows(
		sqlmock.NewRows([]string{"id", "title", "description", "priority", "complete", "owner_id"}).
			AddRow(1, "Buy milk", "", 2, false, 2).
			AddRow(2, "Ship release", "v1.2", 5, true, 3))
	mock.ExpectCommit()

	got, err := s.ListAllTasks(context.Background(), root)
	if err != nil {
		t.Fatalf("ListAllTasks: %v", err)
	}
	if len(got) != 2 || got[0].OwnerID == got[1].OwnerID {
		t.Fatalf("expected tasks across owners, got %+v", got)
	}
}

func TestDeleteAny_OtherOwnersTask(t *testing.T) {
	s, mock := newTestService(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM todos WHERE id = $1`)).WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := s.DeleteAny(context.Background(), root, 7)
	if err != nil || !ok {
		t.Fatalf("DeleteAny: %v %v", ok, err)
	}
}

func TestDeleteAny_Missing(t *testing.T) {
	s, mock := newTestService(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM todos WHERE id = $1`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	if _, err := s.DeleteAny(context.Background(), root, 404); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
