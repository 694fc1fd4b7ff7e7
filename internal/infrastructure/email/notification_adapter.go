package email

import (
	"context"
	"fmt"
)

// NotificationSender adapts EmailService to the plain
// Send(subject, body, from, to) shape used by story notifications.
type NotificationSender struct {
	emailService EmailService
}

func NewNotificationSender(emailService EmailService) *NotificationSender {
	return &NotificationSender{emailService: emailService}
}

func (p *NotificationSender) Send(ctx context.Context, subject, body, from, to string) error {
	req := EmailRequest{
		From:    from,
		To:      []string{to},
		Subject: subject,
		Body:    body,
	}

	if err := p.emailService.SendEmail(ctx, req); err != nil {
		return fmt.Errorf("send notification email: %w", err)
	}
	return nil
}
