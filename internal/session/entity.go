package session

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/user/entity"
)

// Identity is the caller resolved from a valid session token.
type Identity struct {
	Username string
	UserID   int64
	Role     entity.Role
}

func (i Identity) IsAdmin() bool { return i.Role == entity.RoleAdmin }

// Claims carried by a session token; the username travels as "sub".
type Claims struct {
	UserID int64  `json:"id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
