package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/account-recovery/internal/core/domain"
	"github.com/arklim/account-recovery/internal/core/port"
	"github.com/arklim/account-recovery/internal/infra/logger"
	"github.com/arklim/account-recovery/internal/infra/security"
	"github.com/arklim/account-recovery/internal/infra/telemetry"
	"github.com/arklim/account-recovery/internal/repository"
)

const (
	defaultResetTTL     = 15 * time.Minute
	defaultResendWindow = 2 * time.Minute

	passwordChangeMethodResetCode = "reset_code"

	resendModeReused  = "reused"
	resendModeRotated = "rotated"
)

// ResetPasswordInput carries the final step of the recovery flow.
type ResetPasswordInput struct {
	Email       string
	Code        string
	NewPassword string
}

// PasswordResetService drives the reset code lifecycle: request, verify, consume and resend.
type PasswordResetService struct {
	users             port.UserRepository
	tokens            port.ResetTokenLedger
	notifier          port.Notifier
	hasher            port.PasswordHasher
	events            port.EventPublisher
	passwordValidator *security.PasswordValidator
	metrics           *telemetry.RecoveryMetrics
	tracer            trace.Tracer
	logger            *zap.Logger
	now               func() time.Time
	resetTTL          time.Duration
	resendWindow      time.Duration
}

// NewPasswordResetService constructs a PasswordResetService. events and metrics are optional.
func NewPasswordResetService(
	users port.UserRepository,
	tokens port.ResetTokenLedger,
	notifier port.Notifier,
	hasher port.PasswordHasher,
	events port.EventPublisher,
	passwordValidator *security.PasswordValidator,
	metrics *telemetry.RecoveryMetrics,
	log *zap.Logger,
) *PasswordResetService {
	if passwordValidator == nil {
		passwordValidator = security.DefaultPasswordValidator(minPasswordLength, 0)
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &PasswordResetService{
		users:             users,
		tokens:            tokens,
		notifier:          notifier,
		hasher:            hasher,
		events:            events,
		passwordValidator: passwordValidator,
		metrics:           metrics,
		tracer:            otel.Tracer(telemetry.TracerName),
		logger:            log,
		now:               time.Now,
		resetTTL:          defaultResetTTL,
		resendWindow:      defaultResendWindow,
	}
}

// WithClock overrides the time source (tests).
func (s *PasswordResetService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithTTL sets how long an issued code stays valid.
func (s *PasswordResetService) WithTTL(ttl time.Duration) {
	if ttl > 0 {
		s.resetTTL = ttl
	}
}

// WithResendWindow sets the age below which a resend reuses the active code.
func (s *PasswordResetService) WithResendWindow(window time.Duration) {
	if window > 0 {
		s.resendWindow = window
	}
}

// RequestReset issues a fresh code and emails it. Unknown emails succeed silently so
// callers cannot probe for accounts. A failed delivery returns ErrDeliveryFailed.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	ctx, span := s.tracer.Start(ctx, "password_reset.request")
	defer span.End()

	outcome, err := s.requestReset(ctx, email)
	s.metrics.ObserveResetRequest(outcome)
	return s.finishSpan(span, err)
}

func (s *PasswordResetService) requestReset(ctx context.Context, email string) (string, error) {
	user, err := s.resolveUser(ctx, email)
	if err != nil {
		return outcomeFor(err), err
	}
	if user == nil {
		return telemetry.OutcomeUnknownUser, nil
	}

	err = s.rotateAndDeliver(ctx, user, false)
	return outcomeFor(err), err
}

// rotateAndDeliver invalidates every live code of the user, issues a new one and sends it.
func (s *PasswordResetService) rotateAndDeliver(ctx context.Context, user *domain.User, resent bool) error {
	token, err := s.tokens.Rotate(ctx, user.ID, s.resetTTL)
	if err != nil {
		return fmt.Errorf("issue reset code: %w", err)
	}
	return s.deliverCode(ctx, user, token, resent)
}

// VerifyCode reports whether the code is currently valid for the email without consuming it.
func (s *PasswordResetService) VerifyCode(ctx context.Context, email, code string) error {
	ctx, span := s.tracer.Start(ctx, "password_reset.verify")
	defer span.End()

	err := s.verifyCode(ctx, email, code)
	s.metrics.ObserveCodeCheck(outcomeFor(err))
	return s.finishSpan(span, err)
}

func (s *PasswordResetService) verifyCode(ctx context.Context, email, code string) error {
	email = domain.CanonicalEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return newValidationError("", "email and code are required")
	}
	if len(code) != domain.ResetCodeLength {
		return newValidationError("code", fmt.Sprintf("code must be %d digits", domain.ResetCodeLength))
	}

	if _, err := s.lookup(ctx, email, code); err != nil {
		return err
	}
	return nil
}

// ResetPassword replaces the password of the account owning a valid code and consumes
// the code. It does not sign the user in.
func (s *PasswordResetService) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	ctx, span := s.tracer.Start(ctx, "password_reset.reset")
	defer span.End()

	err := s.resetPassword(ctx, input)
	s.metrics.ObservePasswordReset(outcomeFor(err))
	return s.finishSpan(span, err)
}

func (s *PasswordResetService) resetPassword(ctx context.Context, input ResetPasswordInput) error {
	email := domain.CanonicalEmail(input.Email)
	code := strings.TrimSpace(input.Code)
	if email == "" || code == "" || input.NewPassword == "" {
		return newValidationError("", "email, code and new password are required")
	}
	if err := s.passwordValidator.Validate(input.NewPassword); err != nil {
		return newValidationError("new_password", err.Error())
	}

	userID, err := s.lookup(ctx, email, code)
	if err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpiredCode
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	changedAt := s.now().UTC()
	if err := s.users.UpdatePassword(ctx, user.ID, hash, changedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	log := logger.WithContext(ctx, s.logger).With(zap.String("user_id", user.ID))

	// The password change stands even when the code cannot be consumed.
	if _, err := s.tokens.MarkUsed(ctx, user.ID, code); err != nil {
		log.Error("mark reset code used failed", zap.Error(err))
	}

	notified := true
	if err := s.notifier.SendPasswordChanged(ctx, user.Email, user.DisplayName()); err != nil {
		notified = false
		log.Warn("password changed notice not delivered", zap.String("email", logger.MaskEmail(user.Email)), zap.Error(err))
	}

	s.publishPasswordChanged(ctx, user.ID, changedAt, notified)
	log.Info("password reset completed")
	return nil
}

// ResendCode re-sends the active code when it is younger than the resend window and
// otherwise behaves like RequestReset.
func (s *PasswordResetService) ResendCode(ctx context.Context, email string) error {
	ctx, span := s.tracer.Start(ctx, "password_reset.resend")
	defer span.End()

	return s.finishSpan(span, s.resendCode(ctx, email))
}

func (s *PasswordResetService) resendCode(ctx context.Context, email string) error {
	user, err := s.resolveUser(ctx, email)
	if err != nil || user == nil {
		return err
	}

	active, err := s.tokens.ActiveToken(ctx, user.ID)
	switch {
	case err == nil && active.Age(s.now()) < s.resendWindow:
		if err := s.deliverCode(ctx, user, *active, true); err != nil {
			return err
		}
		s.metrics.ObserveResend(resendModeReused)
		return nil
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("load active code: %w", err)
	}

	err = s.rotateAndDeliver(ctx, user, true)
	s.metrics.ObserveResetRequest(outcomeFor(err))
	if err != nil {
		return err
	}
	s.metrics.ObserveResend(resendModeRotated)
	return nil
}

// resolveUser returns nil without error when no active account owns the email.
func (s *PasswordResetService) resolveUser(ctx context.Context, email string) (*domain.User, error) {
	email = domain.CanonicalEmail(email)
	if email == "" {
		return nil, newValidationError("email", "email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.WithContext(ctx, s.logger).Info("password reset for unknown email",
				zap.String("email", logger.MaskEmail(email)),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *PasswordResetService) lookup(ctx context.Context, email, code string) (string, error) {
	userID, err := s.tokens.Lookup(ctx, email, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidOrExpiredCode
		}
		return "", fmt.Errorf("lookup reset code: %w", err)
	}
	return userID, nil
}

func (s *PasswordResetService) deliverCode(ctx context.Context, user *domain.User, token domain.ResetToken, resent bool) error {
	log := logger.WithContext(ctx, s.logger).With(
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
		zap.Bool("resent", resent),
	)

	if err := s.notifier.SendResetCode(ctx, user.Email, token.Code, user.DisplayName()); err != nil {
		log.Warn("reset code delivery failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	s.publishResetRequested(ctx, user, token, resent)
	log.Info("reset code sent", zap.Time("expires_at", token.ExpiresAt))
	return nil
}

func (s *PasswordResetService) publishResetRequested(ctx context.Context, user *domain.User, token domain.ResetToken, resent bool) {
	if s.events == nil {
		return
	}
	event := domain.PasswordResetRequestedEvent{
		EventID:           uuid.NewString(),
		UserID:            user.ID,
		RequestedAt:       s.now().UTC(),
		MaskedDestination: logger.MaskEmail(user.Email),
		ExpiresAt:         token.ExpiresAt,
		Resent:            resent,
	}
	if err := s.events.PublishPasswordResetRequested(ctx, event); err != nil {
		s.logger.Warn("publish password reset requested failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func (s *PasswordResetService) publishPasswordChanged(ctx context.Context, userID string, changedAt time.Time, notified bool) {
	if s.events == nil {
		return
	}
	event := domain.PasswordChangedEvent{
		EventID:          uuid.NewString(),
		UserID:           userID,
		ChangedAt:        changedAt,
		Method:           passwordChangeMethodResetCode,
		NotificationSent: notified,
	}
	if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
		s.logger.Warn("publish password changed failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *PasswordResetService) finishSpan(span trace.Span, err error) error {
	if err == nil {
		return nil
	}
	span.RecordError(err)
	if !errors.Is(err, ErrValidation) && !errors.Is(err, ErrInvalidOrExpiredCode) {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeSuccess
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidOrExpiredCode):
		return telemetry.OutcomeInvalid
	case errors.Is(err, ErrDeliveryFailed):
		return telemetry.OutcomeDeliveryFail
	default:
		return telemetry.OutcomeError
	}
}
