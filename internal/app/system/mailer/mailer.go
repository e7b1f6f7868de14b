// internal/app/system/mailer/mailer.go
package mailer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Email is one outbound message.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Config holds SMTP settings. An empty Host puts the mailer in log-only
// mode, which is what local development uses.
type Config struct {
	Host     string
	Port     int
	User     string
	Pass     string
	From     string
	FromName string
}

// Mailer delivers Email values over SMTP.
type Mailer struct {
	cfg    Config
	dialer *gomail.Dialer
	log    *zap.Logger
}

// New builds a Mailer. It does not open a connection.
func New(cfg Config, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Mailer{cfg: cfg, log: logger}
	if cfg.Host != "" {
		m.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	}
	return m
}

// Enabled reports whether messages leave the process.
func (m *Mailer) Enabled() bool { return m.dialer != nil }

// Send delivers e. Delivery is synchronous; callers that must not block a
// request should run it on their own goroutine.
func (m *Mailer) Send(ctx context.Context, e Email) error {
	if strings.TrimSpace(e.To) == "" {
		return fmt.Errorf("mailer: empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.dialer == nil {
		m.log.Info("mail delivery disabled; message dropped",
			zap.String("to", e.To),
			zap.String("subject", e.Subject))
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.cfg.From, m.cfg.FromName)
	msg.SetHeader("To", e.To)
	msg.SetHeader("Subject", e.Subject)
	msg.SetBody("text/plain", e.TextBody)
	if e.HTMLBody != "" {
		msg.AddAlternative("text/html", e.HTMLBody)
	}

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	m.log.Info("email sent", zap.String("to", e.To), zap.String("subject", e.Subject))
	return nil
}
