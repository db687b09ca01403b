package port

import "context"

// Notifier delivers password recovery messages. Implementations do not retry and
// must honour the context deadline.
type Notifier interface {
	SendResetCode(ctx context.Context, email, code, displayName string) error
	SendPasswordChanged(ctx context.Context, email, displayName string) error
}
