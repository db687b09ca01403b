package port

import (
	"context"
	"time"

	"github.com/arklim/account-recovery/internal/core/domain"
)

// UserRepository exposes persistence behavior for users. Lookups only see active users
// and expect emails in canonical form.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}
