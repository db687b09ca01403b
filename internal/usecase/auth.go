package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
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
	minNameLength     = 2
	minPasswordLength = 6
)

// AuthResult is returned by successful registration and login.
type AuthResult struct {
	User  domain.User
	Token string
}

// RegisterInput carries the registration form.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AuthService registers users, verifies credentials and issues session tokens.
type AuthService struct {
	users             port.UserRepository
	hasher            port.PasswordHasher
	sessions          port.SessionIssuer
	events            port.EventPublisher
	passwordValidator *security.PasswordValidator
	metrics           *telemetry.RecoveryMetrics
	validate          *validator.Validate
	tracer            trace.Tracer
	logger            *zap.Logger
	now               func() time.Time
}

// NewAuthService constructs an AuthService. events and metrics are optional.
func NewAuthService(
	users port.UserRepository,
	hasher port.PasswordHasher,
	sessions port.SessionIssuer,
	events port.EventPublisher,
	passwordValidator *security.PasswordValidator,
	metrics *telemetry.RecoveryMetrics,
	log *zap.Logger,
) *AuthService {
	if passwordValidator == nil {
		passwordValidator = security.DefaultPasswordValidator(minPasswordLength, 0)
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &AuthService{
		users:             users,
		hasher:            hasher,
		sessions:          sessions,
		events:            events,
		passwordValidator: passwordValidator,
		metrics:           metrics,
		validate:          validator.New(),
		tracer:            otel.Tracer(telemetry.TracerName),
		logger:            log,
		now:               time.Now,
	}
}

// WithClock overrides the time source (tests).
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Register validates the form, persists a new active user and issues a session token.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.register")
	defer span.End()

	result, err := s.register(ctx, input)
	s.metrics.ObserveRegistration(registrationOutcome(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", result.User.ID))
	return result, nil
}

func (s *AuthService) register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(input.Name)
	if len([]rune(name)) < minNameLength {
		return nil, newValidationError("name", fmt.Sprintf("name must be at least %d characters", minNameLength))
	}

	email := domain.CanonicalEmail(input.Email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, newValidationError("email", "email format is invalid")
	}

	if err := s.passwordValidator.Validate(input.Password); err != nil {
		return nil, newValidationError("password", err.Error())
	}

	// The unique index is authoritative; this only short-circuits the common case.
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.sessions.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	s.publishRegistered(ctx, user)

	logger.WithContext(ctx, s.logger).Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
	)

	return &AuthResult{User: user.Sanitized(), Token: token}, nil
}

// Login verifies the email and password pair. Unknown accounts and wrong passwords
// both return ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.login")
	defer span.End()

	result, outcome, err := s.login(ctx, email, password)
	s.metrics.ObserveLogin(outcome)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return result, nil
}

func (s *AuthService) login(ctx context.Context, email, password string) (*AuthResult, string, error) {
	email = domain.CanonicalEmail(email)
	if email == "" || password == "" {
		return nil, telemetry.OutcomeInvalid, newValidationError("", "email and password are required")
	}

	log := logger.WithContext(ctx, s.logger).With(zap.String("email", logger.MaskEmail(email)))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Info("login rejected", zap.String("reason", "unknown_user"))
			return nil, telemetry.OutcomeUnknownUser, ErrInvalidCredentials
		}
		return nil, telemetry.OutcomeError, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, telemetry.OutcomeError, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		log.Info("login rejected", zap.String("reason", "wrong_password"), zap.String("user_id", user.ID))
		return nil, telemetry.OutcomeInvalid, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, telemetry.OutcomeError, fmt.Errorf("update last login: %w", err)
	}
	user.LastLogin = &now

	token, err := s.sessions.Issue(*user)
	if err != nil {
		return nil, telemetry.OutcomeError, fmt.Errorf("issue session: %w", err)
	}

	return &AuthResult{User: user.Sanitized(), Token: token}, telemetry.OutcomeSuccess, nil
}

// ValidateSession checks the bearer token signature and expiry. Expired and malformed
// tokens are logged separately but both surface as ErrUnauthorized.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*port.SessionClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthorized
	}

	claims, err := s.sessions.Validate(token)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, security.ErrSessionExpired) {
			reason = "expired"
		}
		logger.WithContext(ctx, s.logger).Debug("session rejected",
			zap.String("reason", reason),
			zap.String("token", logger.MaskString(token)),
			zap.Error(err),
		)
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// CurrentUser validates the token and loads its active owner.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.ValidateSession(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	sanitized := user.Sanitized()
	return &sanitized, nil
}

func (s *AuthService) publishRegistered(ctx context.Context, user domain.User) {
	if s.events == nil {
		return
	}
	event := domain.UserRegisteredEvent{
		EventID:      uuid.NewString(),
		UserID:       user.ID,
		Name:         user.Name,
		Email:        user.Email,
		RegisteredAt: user.CreatedAt,
	}
	if err := s.events.PublishUserRegistered(ctx, event); err != nil {
		s.logger.Warn("publish user registered failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func registrationOutcome(err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeSuccess
	case errors.Is(err, ErrValidation), errors.Is(err, ErrEmailTaken):
		return telemetry.OutcomeInvalid
	default:
		return telemetry.OutcomeError
	}
}
