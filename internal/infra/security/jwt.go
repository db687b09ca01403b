package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arklim/account-recovery/internal/core/domain"
	"github.com/arklim/account-recovery/internal/core/port"
)

// ErrSessionExpired indicates the bearer token was well formed but is past its exp claim.
var ErrSessionExpired = errors.New("jwt: session expired")

// ErrSessionMalformed indicates the bearer token could not be parsed or its signature did not verify.
var ErrSessionMalformed = errors.New("jwt: session malformed")

const defaultSessionTTL = 24 * time.Hour

// SessionTokenClaims is the payload of a session token.
type SessionTokenClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// JWTManager signs and verifies HS256 session tokens with a shared secret.
type JWTManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTManager constructs a JWTManager. A non-positive ttl falls back to 24 hours.
func NewJWTManager(secret string, ttl time.Duration) (*JWTManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("jwt: secret is required")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &JWTManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock overrides the time source used for iat/exp and validation.
func (m *JWTManager) WithClock(clock func() time.Time) {
	if clock != nil {
		m.now = clock
	}
}

// TTL returns the configured session lifetime.
func (m *JWTManager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a session token for the supplied user.
func (m *JWTManager) Issue(user domain.User) (string, error) {
	userID := strings.TrimSpace(user.ID)
	if userID == "" {
		return "", fmt.Errorf("jwt: user id is required")
	}

	now := m.now().UTC()
	claims := &SessionTokenClaims{
		UserID: userID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// Validate verifies the signature and expiry of a session token.
func (m *JWTManager) Validate(raw string) (*port.SessionClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrSessionMalformed
	}

	claims := &SessionTokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionMalformed, err)
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return nil, fmt.Errorf("%w: missing user_id", ErrSessionMalformed)
	}

	result := &port.SessionClaims{
		UserID: claims.UserID,
		Email:  claims.Email,
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result, nil
}

var _ port.SessionIssuer = (*JWTManager)(nil)
