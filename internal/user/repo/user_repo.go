package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/user/entity"
)

const userColumns = `id, username, email, first_name, last_name, hashed_password, is_active, role, phone_number`

// UserRepo provides data access for the users table. It runs against either
// the pool or a transaction.
type UserRepo struct {
	q sqlx.ExtContext
}

func NewUserRepo(q sqlx.ExtContext) *UserRepo { return &UserRepo{q: q} }

// EnsureTable creates the users table if not exists (idempotent).
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  email VARCHAR(100) UNIQUE,
  username VARCHAR(50) UNIQUE,
  first_name VARCHAR(100) NOT NULL DEFAULT '',
  last_name VARCHAR(100) NOT NULL DEFAULT '',
  hashed_password TEXT NOT NULL,
  is_active BOOLEAN NOT NULL DEFAULT true,
  role VARCHAR(50) NOT NULL DEFAULT 'user',
  phone_number VARCHAR(20) NOT NULL DEFAULT ''
);
`
	_, err := r.q.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new user row and sets u.ID. Unique violations come back as apperr.ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) (int64, error) {
	const q = `INSERT INTO users (username, email, first_name, last_name, hashed_password, is_active, role, phone_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	row := r.q.QueryRowxContext(ctx, q, u.Username, u.Email, u.FirstName, u.LastName,
		u.HashedPassword, u.IsActive, string(u.Role), u.PhoneNumber)
	if err := row.Scan(&u.ID); err != nil {
		return 0, translate(err)
	}
	return u.ID, nil
}

// FindTaken reports which of username/email is already registered ("" when neither).
func (r *UserRepo) FindTaken(ctx context.Context, username, email string) (string, error) {
	const q = `SELECT username, email FROM users WHERE username = $1 OR email = $2 LIMIT 1`
	var row struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	if err := sqlx.GetContext(ctx, r.q, &row, q, username, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	if row.Username == username {
		return "username", nil
	}
	return "email", nil
}

// GetByUsername fetches by username or sql.ErrNoRows.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	var u entity.User
	if err := sqlx.GetContext(ctx, r.q, &u, q, username); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID fetches a full user row or sql.ErrNoRows.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	var u entity.User
	if err := sqlx.GetContext(ctx, r.q, &u, q, id); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdatePassword overwrites the hash; returns affected rows.
func (r *UserRepo) UpdatePassword(ctx context.Context, id int64, hash string) (int64, error) {
	res, err := r.q.ExecContext(ctx, `UPDATE users SET hashed_password = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdatePhone sets phone_number; returns affected rows.
func (r *UserRepo) UpdatePhone(ctx context.Context, id int64, phone string) (int64, error) {
	res, err := r.q.ExecContext(ctx, `UPDATE users SET phone_number = $2 WHERE id = $1`, id, phone)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return apperr.Conflictf("username or email already registered")
	}
	return err
}
