package port

import (
	"context"
	"time"

	"github.com/arklim/account-recovery/internal/core/domain"
)

// ResetTokenLedger persists password reset codes keyed to a user.
type ResetTokenLedger interface {
	// Issue inserts a fresh unused code expiring ttl from now.
	Issue(ctx context.Context, userID string, ttl time.Duration) (domain.ResetToken, error)
	// Rotate invalidates every unused code for the user and issues a new one in a single transaction.
	Rotate(ctx context.Context, userID string, ttl time.Duration) (domain.ResetToken, error)
	// Lookup resolves (email, code) to its user id when the code is the user's newest.
	// It returns repository.ErrNotFound when the pair is unknown, superseded, used or expired.
	Lookup(ctx context.Context, email, code string) (string, error)
	// MarkUsed flips the used flag and reports whether any row changed.
	MarkUsed(ctx context.Context, userID, code string) (bool, error)
	InvalidateAll(ctx context.Context, userID string) (int64, error)
	// ActiveToken returns the most recent unused, unexpired code or repository.ErrNotFound.
	ActiveToken(ctx context.Context, userID string) (*domain.ResetToken, error)
}
