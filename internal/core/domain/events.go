package domain

import "time"

// UserRegisteredEvent is emitted after a new account is persisted.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Name         string
	Email        string
	RegisteredAt time.Time
	Metadata     map[string]any
}

// PasswordResetRequestedEvent is emitted after a reset code is issued or resent.
type PasswordResetRequestedEvent struct {
	EventID           string
	UserID            string
	RequestedAt       time.Time
	MaskedDestination string
	ExpiresAt         time.Time
	Resent            bool
	Metadata          map[string]any
}

// PasswordChangedEvent is emitted after a password reset is applied.
type PasswordChangedEvent struct {
	EventID          string
	UserID           string
	ChangedAt        time.Time
	Method           string
	NotificationSent bool
	Metadata         map[string]any
}
