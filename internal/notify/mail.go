package notify

import (
	"context"
	"strings"

	"gopkg.in/mail.v2"

	"reminderdesk/internal/config"
)

// MailSink emails the viewer an alert over SMTP. Viewers without an email
// are skipped.
type MailSink struct {
	host     string
	port     int
	username string
	password string
	from     string

	// Send delivers a composed message; nil dials the configured server.
	Send func(m *mail.Message) error
}

func NewMailSink(cfg config.EmailConfig) *MailSink {
	return &MailSink{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
	}
}

func (*MailSink) Name() string { return "email" }

func (s *MailSink) Notify(ctx context.Context, a Alert) error {
	to := strings.TrimSpace(a.Viewer.Email)
	if to == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := s.Compose(to, a)
	if s.Send != nil {
		return s.Send(msg)
	}
	dialer := mail.NewDialer(s.host, s.port, s.username, s.password)
	return dialer.DialAndSend(msg)
}

func (s *MailSink) Compose(to string, a Alert) *mail.Message {
	message := mail.NewMessage()
	message.SetHeader("From", s.from)
	message.SetHeader("To", to)
	message.SetHeader("Subject", a.Subject())
	message.SetBody("text/plain", a.Body())
	return message
}
