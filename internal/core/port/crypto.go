package port

import (
	"time"

	"github.com/arklim/account-recovery/internal/core/domain"
)

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// SessionClaims is the verified content of a bearer session token.
type SessionClaims struct {
	UserID    string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SessionIssuer signs and validates stateless bearer session tokens.
type SessionIssuer interface {
	Issue(user domain.User) (string, error)
	Validate(token string) (*SessionClaims, error)
}
