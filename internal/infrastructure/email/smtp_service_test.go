package email

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newTestService(sendErr error) (*smtpEmailService, *capturedMail) {
	captured := &capturedMail{}
	svc := NewSMTPEmailService(SMTPConfig{Host: "mail.local", Port: "1025", From: "noreply@blackcat.local"}).(*smtpEmailService)
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	svc.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		captured.addr = addr
		captured.from = from
		captured.to = to
		captured.msg = string(msg)
		return sendErr
	}
	return svc, captured
}

func TestSMTPEmailService_SendEmail(t *testing.T) {
	svc, captured := newTestService(nil)

	err := svc.SendEmail(context.Background(), EmailRequest{
		To:      []string{"cat@example.com"},
		Subject: "Black Cat Story Sharing - Update",
		Body:    "line one\nline two",
	})
	require.NoError(t, err)

	assert.Equal(t, "mail.local:1025", captured.addr)
	assert.Equal(t, "noreply@blackcat.local", captured.from)
	assert.Equal(t, []string{"cat@example.com"}, captured.to)
	assert.Contains(t, captured.msg, "Subject: Black Cat Story Sharing - Update\r\n")
	assert.Contains(t, captured.msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	assert.True(t, strings.HasSuffix(captured.msg, "\r\n\r\nline one\r\nline two"))
}

func TestSMTPEmailService_FromOverride(t *testing.T) {
	svc, captured := newTestService(nil)

	err := svc.SendEmail(context.Background(), EmailRequest{
		From:    "stories@blackcat.local",
		To:      []string{"a@example.com"},
		Cc:      []string{"b@example.com"},
		Subject: "s",
		Body:    "b",
	})
	require.NoError(t, err)

	assert.Equal(t, "stories@blackcat.local", captured.from)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, captured.to)
	assert.Contains(t, captured.msg, "Cc: b@example.com\r\n")
}

func TestSMTPEmailService_Errors(t *testing.T) {
	svc, _ := newTestService(errors.New("connection refused"))

	err := svc.SendEmail(context.Background(), EmailRequest{To: []string{"a@example.com"}})
	assert.ErrorContains(t, err, "connection refused")

	err = svc.SendEmail(context.Background(), EmailRequest{})
	assert.ErrorContains(t, err, "no recipients")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = svc.SendEmail(ctx, EmailRequest{To: []string{"a@example.com"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNotificationSender_Send(t *testing.T) {
	svc, captured := newTestService(nil)
	sender := NewNotificationSender(svc)

	err := sender.Send(context.Background(), "subject", "body", "from@blackcat.local", "to@example.com")
	require.NoError(t, err)
	assert.Equal(t, "from@blackcat.local", captured.from)
	assert.Equal(t, []string{"to@example.com"}, captured.to)
}
