package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/account-recovery/internal/core/domain"
	"github.com/arklim/account-recovery/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a logging event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("event published",
		append([]zap.Field{
			zap.String("event_type", eventType),
			zap.String("user_id", userID),
			zap.Time("timestamp", at.UTC()),
		}, fields...)...,
	)
}

// PublishUserRegistered logs user.registered events.
func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.logEvent(EventUserRegistered, event.UserID, event.RegisteredAt)
	return nil
}

// PublishPasswordResetRequested logs password.reset_requested events.
func (p *StubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	p.logEvent(EventPasswordResetRequested, event.UserID, event.RequestedAt,
		zap.String("destination", event.MaskedDestination),
		zap.Bool("resent", event.Resent),
		zap.Time("expires_at", event.ExpiresAt),
	)
	return nil
}

// PublishPasswordChanged logs password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	p.logEvent(EventPasswordChanged, event.UserID, event.ChangedAt,
		zap.String("method", event.Method),
		zap.Bool("notification_sent", event.NotificationSent),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
