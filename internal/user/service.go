package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/session"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-todo-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-todo-go/pkg/database"
)

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
	NeedsRehash(hash string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) cost() int {
	if b.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return b.Cost
}

func (b BcryptHasher) Hash(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), b.cost())
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// NeedsRehash is true when the stored hash was made with a lower cost than configured.
func (b BcryptHasher) NeedsRehash(hash string) bool {
	c, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false
	}
	return c < b.cost()
}

const (
	// MinPasswordLen is the shortest password, in characters, accepted on register and change.
	MinPasswordLen = 3
	// MaxPasswordBytes is the bcrypt input limit.
	MaxPasswordBytes = 72
)

func checkPassword(field, pw string) error {
	if utf8.RuneCountInString(pw) < MinPasswordLen {
		return apperr.Validationf("%s must be at least %d characters", field, MinPasswordLen)
	}
	if len(pw) > MaxPasswordBytes {
		return apperr.Validationf("%s must be at most %d bytes", field, MaxPasswordBytes)
	}
	return nil
}

var (
	ErrBadCredentials     = apperr.New(apperr.ErrUnauthenticated, "incorrect username or password")
	ErrInvalidOldPassword = apperr.New(apperr.ErrUnauthenticated, "invalid old password")
	ErrUserNotFound       = apperr.NotFoundf("user not found")
)

// UserService orchestrates registration, authentication and profile changes.
type UserService struct {
	db     *sqlx.DB
	hasher PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(db *sqlx.DB, hasher PasswordHasher) *UserService {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	return &UserService{db: db, hasher: hasher}
}

// RegisterInput carries the registration fields.
type RegisterInput struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	PhoneNumber string `json:"phone_number"`
}

// Register creates an active user with a hashed password.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" {
		return nil, apperr.Validationf("username is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.Validationf("a valid email is required")
	}
	if err := checkPassword("password", in.Password); err != nil {
		return nil, err
	}
	role, err := entity.ParseRole(in.Role)
	if err != nil {
		return nil, apperr.Validationf("%v", err)
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &entity.User{
		Username:       username,
		Email:          email,
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		HashedPassword: hash,
		IsActive:       true,
		Role:           role,
		PhoneNumber:    strings.TrimSpace(in.PhoneNumber),
	}
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		r := userrepo.NewUserRepo(tx)
		taken, err := r.FindTaken(ctx, u.Username, u.Email)
		if err != nil {
			return err
		}
		if taken != "" {
			return apperr.Conflictf("%s already registered", taken)
		}
		_, err = r.Create(ctx, u)
		return err
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate checks username and password. Unknown users, inactive users and
// wrong passwords all yield ErrBadCredentials after one bcrypt comparison.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*entity.User, error) {
	username = strings.TrimSpace(username)
	var out *entity.User
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		r := userrepo.NewUserRepo(tx)
		u, err := r.GetByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				s.hasher.Verify(s.dummy(), password)
				return ErrBadCredentials
			} // avoid user enumeration
			return err
		}
		if !s.hasher.Verify(u.HashedPassword, password) || !u.IsActive {
			return ErrBadCredentials
		}
		if s.hasher.NeedsRehash(u.HashedPassword) {
			if h, hErr := s.hasher.Hash(password); hErr == nil {
				if _, err := r.UpdatePassword(ctx, u.ID, h); err != nil {
					return err
				}
				u.HashedPassword = h
			}
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// dummy returns a hash to compare against when the user does not exist.
func (s *UserService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("dummy-password-for-timing")
	})
	return s.dummyHash
}

// Profile returns the caller's user row.
func (s *UserService) Profile(ctx context.Context, id session.Identity) (*entity.User, error) {
	var out *entity.User
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		u, err := userrepo.NewUserRepo(tx).GetByID(ctx, id.UserID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		out = u
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ChangePassword verifies oldPassword before storing the hash of newPassword.
func (s *UserService) ChangePassword(ctx context.Context, id session.Identity, oldPassword, newPassword string) error {
	if err := checkPassword("new password", newPassword); err != nil {
		return err
	}
	return database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		r := userrepo.NewUserRepo(tx)
		u, err := r.GetByID(ctx, id.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}
		if !s.hasher.Verify(u.HashedPassword, oldPassword) {
			return ErrInvalidOldPassword
		}
		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		_, err = r.UpdatePassword(ctx, u.ID, hash)
		return err
	})
}

// UpdatePhone sets the caller's phone number.
func (s *UserService) UpdatePhone(ctx context.Context, id session.Identity, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return apperr.Validationf("phone number is required")
	}
	return database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		n, err := userrepo.NewUserRepo(tx).UpdatePhone(ctx, id.UserID, phone)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}
