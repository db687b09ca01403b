package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/arklim/account-recovery/internal/core/port"
	"github.com/arklim/account-recovery/internal/infra/config"
	"github.com/arklim/account-recovery/internal/infra/logger"
)

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPNotifier delivers recovery messages through an authenticated SMTP server.
// Each send opens its own connection and nothing is retried.
type SMTPNotifier struct {
	client   sender
	from     string
	fromName string
	codeTTL  time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

// NewSMTPNotifier builds a notifier from mail settings. codeTTL is quoted in the reset email.
func NewSMTPNotifier(cfg config.MailSettings, codeTTL time.Duration, log *zap.Logger) (*SMTPNotifier, error) {
	if log == nil {
		log = zap.NewNop()
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = strings.TrimSpace(cfg.Username)
	}

	return &SMTPNotifier{
		client:   client,
		from:     from,
		fromName: cfg.FromName,
		codeTTL:  codeTTL,
		timeout:  cfg.Timeout,
		logger:   log,
	}, nil
}

// SendResetCode emails the verification code.
func (n *SMTPNotifier) SendResetCode(ctx context.Context, email, code, displayName string) error {
	msg, err := n.newMessage(email, resetCodeSubject)
	if err != nil {
		return err
	}

	data := resetCodeData{Name: displayName, Code: code, TTLMinutes: ttlMinutes(n.codeTTL), Product: n.product()}
	if err := msg.SetBodyTextTemplate(resetCodeText, data); err != nil {
		return fmt.Errorf("render reset code text: %w", err)
	}
	if err := msg.AddAlternativeHTMLTemplate(resetCodeHTML, data); err != nil {
		return fmt.Errorf("render reset code html: %w", err)
	}

	return n.send(ctx, msg, email, "reset_code")
}

// SendPasswordChanged emails a notice that the password was replaced.
func (n *SMTPNotifier) SendPasswordChanged(ctx context.Context, email, displayName string) error {
	msg, err := n.newMessage(email, passwordChangedSubject)
	if err != nil {
		return err
	}

	data := passwordChangedData{Name: displayName, Product: n.product()}
	if err := msg.SetBodyTextTemplate(passwordChangedText, data); err != nil {
		return fmt.Errorf("render password changed text: %w", err)
	}
	if err := msg.AddAlternativeHTMLTemplate(passwordChangedHTML, data); err != nil {
		return fmt.Errorf("render password changed html: %w", err)
	}

	return n.send(ctx, msg, email, "password_changed")
}

func (n *SMTPNotifier) newMessage(to, subject string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(n.fromName, n.from); err != nil {
		return nil, fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(subject)
	return msg, nil
}

func (n *SMTPNotifier) send(ctx context.Context, msg *mail.Msg, to, kind string) error {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		n.logger.Warn("email delivery failed",
			zap.String("kind", kind),
			zap.String("to", logger.MaskEmail(to)),
			zap.Error(err),
		)
		return fmt.Errorf("send %s email: %w", kind, err)
	}

	n.logger.Info("email delivered",
		zap.String("kind", kind),
		zap.String("to", logger.MaskEmail(to)),
	)
	return nil
}

func (n *SMTPNotifier) product() string {
	if n.fromName != "" {
		return n.fromName
	}
	return "Account Recovery"
}

var _ port.Notifier = (*SMTPNotifier)(nil)
