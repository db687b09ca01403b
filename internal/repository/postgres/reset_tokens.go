package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	uuid "github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/account-recovery/internal/core/domain"
	"github.com/arklim/account-recovery/internal/core/port"
	"github.com/arklim/account-recovery/internal/infra/security"
	"github.com/arklim/account-recovery/internal/repository"
)

var resetTokenColumns = []string{
	"id",
	"user_id",
	"code",
	"created_at",
	"expires_at",
	"used",
}

// ResetTokenRepository implements port.ResetTokenLedger on the password_reset_tokens table.
type ResetTokenRepository struct {
	pool     *pgxpool.Pool
	exec     pgTxExecutor
	builder  squirrel.StatementBuilderType
	now      func() time.Time
	generate func() (string, error)
}

// NewResetTokenRepository constructs a reset token ledger.
func NewResetTokenRepository(exec pgTxExecutor) *ResetTokenRepository {
	repo := &ResetTokenRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     time.Now,
		generate: func() (string, error) {
			return security.GenerateNumericCode(domain.ResetCodeLength)
		},
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithClock overrides the time source used for issue and expiry checks.
func (r *ResetTokenRepository) WithClock(clock func() time.Time) *ResetTokenRepository {
	if clock != nil {
		r.now = clock
	}
	return r
}

// WithCodeGenerator overrides how new codes are produced.
func (r *ResetTokenRepository) WithCodeGenerator(gen func() (string, error)) *ResetTokenRepository {
	if gen != nil {
		r.generate = gen
	}
	return r
}

// WithTx returns a repository instance executing within the provided transaction.
func (r *ResetTokenRepository) WithTx(tx pgx.Tx) *ResetTokenRepository {
	if tx == nil {
		return r
	}
	return &ResetTokenRepository{
		pool:     r.pool,
		exec:     tx,
		builder:  r.builder,
		now:      r.now,
		generate: r.generate,
	}
}

// Issue inserts a fresh unused code for the user.
func (r *ResetTokenRepository) Issue(ctx context.Context, userID string, ttl time.Duration) (domain.ResetToken, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.ResetToken{}, fmt.Errorf("issue reset token: user id is required")
	}
	if ttl <= 0 {
		return domain.ResetToken{}, fmt.Errorf("issue reset token: ttl must be positive")
	}

	code, err := r.generate()
	if err != nil {
		return domain.ResetToken{}, fmt.Errorf("generate reset code: %w", err)
	}

	now := r.now().UTC()
	token := domain.ResetToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	stmt, args, err := r.builder.Insert(resetTokensTable).
		Columns(resetTokenColumns...).
		Values(token.ID, token.UserID, token.Code, token.CreatedAt, token.ExpiresAt, false).
		ToSql()
	if err != nil {
		return domain.ResetToken{}, fmt.Errorf("build insert reset token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return domain.ResetToken{}, fmt.Errorf("insert reset token: %w", err)
	}

	return token, nil
}

// Rotate invalidates outstanding codes and issues a new one atomically.
// The user row stays locked until commit so concurrent rotations for the
// same user run one after another.
func (r *ResetTokenRepository) Rotate(ctx context.Context, userID string, ttl time.Duration) (domain.ResetToken, error) {
	tx, err := r.exec.Begin(ctx)
	if err != nil {
		return domain.ResetToken{}, fmt.Errorf("begin rotate reset token: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txRepo := r.WithTx(tx)
	if err := txRepo.lockUser(ctx, userID); err != nil {
		return domain.ResetToken{}, err
	}
	if _, err := txRepo.InvalidateAll(ctx, userID); err != nil {
		return domain.ResetToken{}, err
	}

	token, err := txRepo.Issue(ctx, userID, ttl)
	if err != nil {
		return domain.ResetToken{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ResetToken{}, fmt.Errorf("commit rotate reset token: %w", err)
	}

	return token, nil
}

func (r *ResetTokenRepository) lockUser(ctx context.Context, userID string) error {
	stmt, args, err := r.builder.
		Select("id").
		From(usersTable).
		Where(squirrel.Eq{"id": userID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return fmt.Errorf("build lock user sql: %w", err)
	}

	var id string
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("lock user for reset: %w", err)
	}
	return nil
}

// Lookup resolves (email, code) against the user's newest code only, so a
// superseded code never validates even if it was left unused.
func (r *ResetTokenRepository) Lookup(ctx context.Context, email, code string) (string, error) {
	stmt, args, err := r.builder.
		Select("t.user_id", "t.used", "t.expires_at").
		From(resetTokensTable + " t").
		Join(usersTable + " u ON u.id = t.user_id").
		Where(squirrel.Eq{"u.email": email}).
		Where(squirrel.Eq{"t.code": code}).
		Where(squirrel.Eq{"u.is_active": true}).
		Where("t.created_at = (SELECT max(created_at) FROM " + resetTokensTable + " WHERE user_id = t.user_id)").
		OrderBy("t.created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build lookup reset token sql: %w", err)
	}

	var (
		userID    string
		used      bool
		expiresAt time.Time
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&userID, &used, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("scan reset token: %w", err)
	}

	if used || r.now().After(expiresAt) {
		return "", repository.ErrNotFound
	}
	return userID, nil
}

// MarkUsed consumes the code. Consuming an already used code reports false without error.
func (r *ResetTokenRepository) MarkUsed(ctx context.Context, userID, code string) (bool, error) {
	stmt, args, err := r.builder.Update(resetTokensTable).
		Set("used", true).
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.Eq{"code": code}).
		Where(squirrel.Eq{"used": false}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build mark reset token used sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("mark reset token used: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// InvalidateAll marks every unused code for the user as used.
func (r *ResetTokenRepository) InvalidateAll(ctx context.Context, userID string) (int64, error) {
	stmt, args, err := r.builder.Update(resetTokensTable).
		Set("used", true).
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.Eq{"used": false}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build invalidate reset tokens sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("invalidate reset tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ActiveToken returns the most recent unused, unexpired code for the user.
func (r *ResetTokenRepository) ActiveToken(ctx context.Context, userID string) (*domain.ResetToken, error) {
	stmt, args, err := r.builder.
		Select(resetTokenColumns...).
		From(resetTokensTable).
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.Eq{"used": false}).
		Where(squirrel.GtOrEq{"expires_at": r.now().UTC()}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select active reset token sql: %w", err)
	}

	var token domain.ResetToken
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&token.ID,
		&token.UserID,
		&token.Code,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.Used,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan active reset token: %w", err)
	}

	return &token, nil
}

var _ port.ResetTokenLedger = (*ResetTokenRepository)(nil)
