package mailer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/account-recovery/internal/core/port"
	"github.com/arklim/account-recovery/internal/infra/config"
	"github.com/arklim/account-recovery/internal/infra/logger"
)

// LogNotifier records recovery messages in the application log instead of delivering them.
// The code is logged in clear so local environments can complete a reset.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a notifier backed by structured logging.
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{logger: log}
}

func (n *LogNotifier) SendResetCode(_ context.Context, email, code, displayName string) error {
	n.logger.Info("dispatch password reset code",
		zap.String("to", logger.MaskEmail(email)),
		zap.String("name", displayName),
		zap.String("dev_code", code),
	)
	return nil
}

func (n *LogNotifier) SendPasswordChanged(_ context.Context, email, displayName string) error {
	n.logger.Info("dispatch password changed notice",
		zap.String("to", logger.MaskEmail(email)),
		zap.String("name", displayName),
	)
	return nil
}

// New selects the notifier for the configured mail method.
func New(cfg config.MailSettings, codeTTL time.Duration, log *zap.Logger) (port.Notifier, error) {
	switch cfg.Method {
	case "log":
		return NewLogNotifier(log), nil
	case "smtp", "":
		return NewSMTPNotifier(cfg, codeTTL, log)
	default:
		return nil, fmt.Errorf("unsupported mail method %q", cfg.Method)
	}
}

var _ port.Notifier = (*LogNotifier)(nil)
