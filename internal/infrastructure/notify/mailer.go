// Package notify delivers outbound notifications for workflow events.
// Delivery is best-effort: a failed send is logged, never retried against
// the committing transaction.
package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/crestlinehotels/onboarding/internal/application/port"
)

// SMTPConfig holds mail delivery configuration
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier implements port.Notifier over SMTP.
type SMTPNotifier struct {
	config SMTPConfig
	client *mail.Client
	logger *zap.Logger
}

// NewSMTPNotifier creates a new SMTP notifier
func NewSMTPNotifier(config SMTPConfig, logger *zap.Logger) (*SMTPNotifier, error) {
	client, err := mail.NewClient(config.Host,
		mail.WithPort(config.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(config.Username),
		mail.WithPassword(config.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return &SMTPNotifier{
		config: config,
		client: client,
		logger: logger,
	}, nil
}

// Notify sends one notification message
func (n *SMTPNotifier) Notify(ctx context.Context, notification port.Notification) error {
	msg := mail.NewMsg()
	if err := msg.From(n.config.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(notification.Recipient); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}

	msg.Subject(notification.Subject)
	msg.SetBodyString(mail.TypeTextPlain, notification.Body)

	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("type", notification.Type),
			zap.String("recipient", notification.Recipient),
			zap.Error(err))
		return fmt.Errorf("failed to send notification: %w", err)
	}

	n.logger.Info("Notification sent",
		zap.String("type", notification.Type),
		zap.String("recipient", notification.Recipient),
		zap.String("session_id", notification.SessionID))

	return nil
}

var _ port.Notifier = (*SMTPNotifier)(nil)
