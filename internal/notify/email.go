package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// EmailSender отправляет письма.
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody, plainBody string) error
}

// SMTPConfig - параметры SMTP-сервера.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPEmailSender отправляет письма через SMTP.
type SMTPEmailSender struct {
	from   string
	dialer *gomail.Dialer
}

func NewSMTPEmailSender(cfg SMTPConfig) *SMTPEmailSender {
	return &SMTPEmailSender{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// Send собирает письмо из текстовой и HTML-части. gomail не принимает контекст,
// поэтому отмена проверяется только перед соединением.
func (s *SMTPEmailSender) Send(ctx context.Context, to, subject, htmlBody, plainBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", plainBody)
	m.AddAlternative("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
