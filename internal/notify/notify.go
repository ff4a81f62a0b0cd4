package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"go.uber.org/zap"
)

// Mailer delivers account notifications.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to string, name string, link string, validFor time.Duration) error
}

const resetSubject = "Redefinição de senha"

func resetBody(name string, link string, validFor time.Duration) string {
	return fmt.Sprintf(`Olá %s,

Recebemos um pedido para redefinir a sua senha. Use o link abaixo:
%s

O link expira em %s. Se você não fez este pedido, ignore este e-mail.
`, name, link, validFor)
}

type MailgunMailer struct {
	mg     mailgun.Mailgun
	sender string
	logger *zap.Logger
}

func NewMailgunMailer(domain string, apiKey string, sender string, logger *zap.Logger) *MailgunMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailgunMailer{
		mg:     mailgun.NewMailgun(domain, apiKey),
		sender: sender,
		logger: logger,
	}
}

func (m *MailgunMailer) SendPasswordReset(ctx context.Context, to string, name string, link string, validFor time.Duration) error {
	message := m.mg.NewMessage(m.sender, resetSubject, resetBody(name, link, validFor), to)

	sendCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	resp, id, err := m.mg.Send(sendCtx, message)
	if err != nil {
		m.logger.Error("mailgun send failed", zap.String("to", to), zap.String("response", resp), zap.Error(err))
		return fmt.Errorf("send password reset email: %w", err)
	}
	m.logger.Info("password reset email sent", zap.String("to", to), zap.String("mailgun_id", id))
	return nil
}

// LogMailer writes messages to the log instead of delivering them. Used when
// no mail provider is configured.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendPasswordReset(_ context.Context, to string, name string, link string, validFor time.Duration) error {
	m.logger.Info("password reset email (not delivered)",
		zap.String("to", to),
		zap.String("name", name),
		zap.String("link", link),
		zap.Duration("valid_for", validFor),
	)
	return nil
}
