package security

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arklim/account-recovery/internal/core/domain"
)

func newTestJWTManager(t *testing.T, now time.Time) *JWTManager {
	t.Helper()
	mgr, err := NewJWTManager("test-secret", 0)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	mgr.WithClock(func() time.Time { return now })
	return mgr
}

func TestJWTManagerIssueAndValidate(t *testing.T) {
	now := time.Date(2023, 7, 10, 12, 0, 0, 0, time.UTC)
	mgr := newTestJWTManager(t, now)

	token, err := mgr.Issue(domain.User{ID: "user-1", Email: "ana@x.com"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	claims, err := mgr.Validate(token)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "ana@x.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.IssuedAt.Equal(now) {
		t.Fatalf("expected iat %v, got %v", now, claims.IssuedAt)
	}
	if !claims.ExpiresAt.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("expected exp 24h after issue, got %v", claims.ExpiresAt)
	}
}

func TestJWTManagerRejectsExpiredToken(t *testing.T) {
	issuedAt := time.Date(2023, 7, 10, 12, 0, 0, 0, time.UTC)
	mgr := newTestJWTManager(t, issuedAt)

	token, err := mgr.Issue(domain.User{ID: "user-1", Email: "ana@x.com"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	mgr.WithClock(func() time.Time { return issuedAt.Add(25 * time.Hour) })
	if _, err := mgr.Validate(token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestJWTManagerRejectsForeignSignature(t *testing.T) {
	now := time.Date(2023, 7, 10, 12, 0, 0, 0, time.UTC)
	mgr := newTestJWTManager(t, now)

	other, err := NewJWTManager("other-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	other.WithClock(func() time.Time { return now })

	token, err := other.Issue(domain.User{ID: "user-1"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if _, err := mgr.Validate(token); !errors.Is(err, ErrSessionMalformed) {
		t.Fatalf("expected ErrSessionMalformed, got %v", err)
	}
}

func TestJWTManagerRejectsUnexpectedAlgorithm(t *testing.T) {
	now := time.Date(2023, 7, 10, 12, 0, 0, 0, time.UTC)
	mgr := newTestJWTManager(t, now)

	claims := &SessionTokenClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := mgr.Validate(token); !errors.Is(err, ErrSessionMalformed) {
		t.Fatalf("expected ErrSessionMalformed, got %v", err)
	}
}

func TestJWTManagerRejectsGarbage(t *testing.T) {
	mgr := newTestJWTManager(t, time.Now())
	for _, raw := range []string{"", "   ", "not-a-token"} {
		if _, err := mgr.Validate(raw); !errors.Is(err, ErrSessionMalformed) {
			t.Fatalf("expected ErrSessionMalformed for %q, got %v", raw, err)
		}
	}
}

func TestNewJWTManagerRequiresSecret(t *testing.T) {
	if _, err := NewJWTManager("  ", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
