package domain

import "time"

// ResetCodeLength is the number of digits in a password reset code.
const ResetCodeLength = 6

// ResetToken represents a one-time password reset code issued to a user.
type ResetToken struct {
	ID        string
	UserID    string
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
}

// IsExpired reports whether the code has elapsed its validity window.
func (t ResetToken) IsExpired(at time.Time) bool {
	return at.After(t.ExpiresAt)
}

// IsActive returns true while the code is unused and not yet expired.
func (t ResetToken) IsActive(at time.Time) bool {
	return !t.Used && !t.IsExpired(at)
}

// Age returns how long ago the code was issued relative to at.
func (t ResetToken) Age(at time.Time) time.Duration {
	return at.Sub(t.CreatedAt)
}
