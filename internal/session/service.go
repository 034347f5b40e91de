package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-todo-go/pkg/utilities"
)

// DefaultTTL applies when Issue is called without a ttl.
const DefaultTTL = 15 * time.Minute

var (
	ErrInvalidToken  = apperr.New(apperr.ErrUnauthenticated, "invalid authentication credentials")
	ErrMissingClaims = apperr.New(apperr.ErrUnauthenticated, "token is missing required claims")
)

// Service issues and verifies HS256 session tokens signed with a server-held secret.
type Service struct {
	secret []byte
	// Now is the clock used for issuing and expiry checks.
	Now func() time.Time
	// TTL replaces DefaultTTL when set.
	TTL time.Duration
}

func NewService(secret []byte) (*Service, error) {
	if len(secret) == 0 {
		return nil, errors.New("session: empty signing secret")
	}
	return &Service{secret: secret, Now: time.Now}, nil
}

// Issue signs a token for u that expires after ttl. A ttl <= 0 falls back to
// s.TTL, then DefaultTTL.
func (s *Service) Issue(u *entity.User, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = s.TTL
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := s.Now()
	exp := now.Add(ttl)
	claims := Claims{
		UserID: u.ID,
		Role:   string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        utilities.NewSnowflakeID(),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Resolve verifies signature and expiry and returns the identity in the token.
// Every failure is apperr.ErrUnauthenticated.
func (s *Service) Resolve(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.Now),
	)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	if claims.Subject == "" || claims.UserID == 0 {
		return Identity{}, ErrMissingClaims
	}
	role, err := entity.ParseRole(claims.Role)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	return Identity{Username: claims.Subject, UserID: claims.UserID, Role: role}, nil
}
