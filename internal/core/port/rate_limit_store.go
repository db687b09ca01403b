package port

import (
	"context"
	"time"
)

// RateLimitStore keeps per-key attempt timestamps for the sliding-window limits
// on login, register and the password reset endpoints. Keys arrive already
// hashed, so stores never see a raw client IP or email.
type RateLimitStore interface {
	// TrimWindow forgets attempts older than now-window.
	TrimWindow(ctx context.Context, key string, window time.Duration, now time.Time) error
	CountAttempts(ctx context.Context, key string, window time.Duration, now time.Time) (int, error)
	RecordAttempt(ctx context.Context, key string, at time.Time) error
	// OldestAttempt reports the earliest attempt still inside the window; the
	// bool is false when the window is empty. Retry-After is derived from it.
	OldestAttempt(ctx context.Context, key string, window time.Duration, now time.Time) (time.Time, bool, error)
}
