package email

import (
	"errors"
	"net/smtp"
	"testing"

	"portfolio-backend/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *EmailService {
	return NewEmailService(&config.Config{
		SMTPHost:       "smtp.example.com",
		SMTPPort:       "587",
		SMTPUsername:   "relay-user",
		SMTPPassword:   "relay-pass",
		SMTPFromEmail:  "site@example.com",
		ContactEmailTo: "owner@example.com",
	})
}

func TestRenderEscapesAndStripsHeaders(t *testing.T) {
	s := newTestService()
	msg, err := s.Render(MessageNotification{
		ID:          "m1",
		SenderName:  "Ana\r\nBcc: x@evil.com",
		SenderEmail: "ana@x.com",
		Message:     "<script>alert(1)</script>",
		Date:        "2026-10-19T12:00:00.000Z",
	})
	require.NoError(t, err)

	out := string(msg)
	assert.Contains(t, out, "Subject: New portfolio message from Ana  Bcc: x@evil.com\r\n")
	assert.NotContains(t, out, "\r\nBcc:")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "Reply-To: ana@x.com\r\n")
}

func TestNotifyNewMessage(t *testing.T) {
	s := newTestService()
	var gotAddr string
	var gotTo []string
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo = addr, to
		return nil
	}
	require.NoError(t, s.NotifyNewMessage(MessageNotification{ID: "m1", SenderName: "Ana"}))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"owner@example.com"}, gotTo)

	s.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }
	assert.Error(t, s.NotifyNewMessage(MessageNotification{ID: "m1"}))
}

func TestIsConfigured(t *testing.T) {
	assert.True(t, newTestService().IsConfigured())
	assert.False(t, NewEmailService(&config.Config{SMTPHost: "h"}).IsConfigured())
}
