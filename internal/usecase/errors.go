package usecase

import "errors"

var (
	// ErrValidation marks malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials indicates the email or password is incorrect. Unknown accounts
	// and wrong passwords both resolve to this error.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidOrExpiredCode indicates the reset code is unknown, used or expired.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	// ErrUnauthorized indicates a missing, malformed or expired session token, or a token
	// whose account no longer exists.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrDeliveryFailed indicates the notifier could not deliver a reset code.
	ErrDeliveryFailed = errors.New("could not deliver email")
)

// ValidationError describes a single rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the caller-facing message; Field is carried separately.
func (e *ValidationError) Error() string {
	return e.Message
}

// Is lets callers match any ValidationError with errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func newValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
