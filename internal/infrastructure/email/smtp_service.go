package email

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"blackcat/pkg/logger"
)

// EmailService sends a single email
type EmailService interface {
	SendEmail(ctx context.Context, req EmailRequest) error
}

// SMTPConfig describes the relay
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type smtpEmailService struct {
	smtpAddr string
	smtpFrom string
	auth     smtp.Auth
	sendMail sendMailFunc
	now      func() time.Time
}

// NewSMTPEmailService builds an EmailService over net/smtp.
// PLAIN auth is used only when a username is configured (MailHog/Mailpit in dev need none).
func NewSMTPEmailService(cfg SMTPConfig) EmailService {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &smtpEmailService{
		smtpAddr: cfg.Host + ":" + cfg.Port,
		smtpFrom: cfg.From,
		auth:     auth,
		sendMail: smtp.SendMail,
		now:      time.Now,
	}
}

func (s *smtpEmailService) SendEmail(ctx context.Context, req EmailRequest) error {
	if len(req.To) == 0 {
		return errors.New("email has no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	from := req.From
	if from == "" {
		from = s.smtpFrom
	}

	recipients := append(append([]string{}, req.To...), req.Cc...)
	msg := buildMessage(from, req, s.now())

	if err := s.sendMail(s.smtpAddr, s.auth, from, recipients, msg); err != nil {
		logger.Info("Failed to send email", map[string]interface{}{
			"error":     err.Error(),
			"to":        strings.Join(req.To, ","),
			"smtp_addr": s.smtpAddr,
		})
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

func buildMessage(from string, req EmailRequest, now time.Time) []byte {
	contentType := "text/plain; charset=UTF-8"
	if req.IsHTML {
		contentType = "text/html; charset=UTF-8"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(req.To, ", "))
	if len(req.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(req.Cc, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", req.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s\r\n", contentType)
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(req.Body, "\n", "\r\n"))

	return []byte(b.String())
}
