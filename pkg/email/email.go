package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"portfolio-backend/config"
)

// EmailService notifies the site owner of new contact messages over SMTP.
type EmailService struct {
	host      string
	port      string
	username  string
	password  string
	fromEmail string
	toEmail   string
	send      func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// MessageNotification is the data rendered into the notification body.
type MessageNotification struct {
	ID          string
	SenderName  string
	SenderEmail string
	Message     string
	Date        string
}

func NewEmailService(cfg *config.Config) *EmailService {
	from := cfg.SMTPFromEmail
	if from == "" {
		from = cfg.SMTPUsername
	}
	return &EmailService{
		host:      cfg.SMTPHost,
		port:      cfg.SMTPPort,
		username:  cfg.SMTPUsername,
		password:  cfg.SMTPPassword,
		fromEmail: from,
		toEmail:   cfg.ContactEmailTo,
		send:      smtp.SendMail,
	}
}

var notificationTemplate = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>New message from your portfolio</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .label { font-weight: bold; color: #555; }
        .message-box { background: #f9f9f9; padding: 15px; border-left: 4px solid #6366f1; margin-top: 10px; white-space: pre-wrap; }
        .footer { color: #888; font-size: 12px; margin-top: 20px; }
    </style>
</head>
<body>
    <div class="container">
        <h2>New contact message</h2>
        <p><span class="label">From:</span> {{.SenderName}} ({{.SenderEmail}})</p>
        <p><span class="label">Received:</span> {{.Date}}</p>
        <div class="message-box">{{.Message}}</div>
        <p class="footer">Message id {{.ID}}. Triage it from the admin inbox; reply directly to this email to answer.</p>
    </div>
</body>
</html>`))

// Render builds the MIME message for n.
func (s *EmailService) Render(n MessageNotification) ([]byte, error) {
	var body bytes.Buffer
	if err := notificationTemplate.Execute(&body, n); err != nil {
		return nil, fmt.Errorf("failed to execute email template: %w", err)
	}

	// Header values must not carry line breaks.
	clean := strings.NewReplacer("\r", " ", "\n", " ")
	msg := fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Reply-To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		s.fromEmail,
		s.toEmail,
		clean.Replace(n.SenderEmail),
		clean.Replace("New portfolio message from "+n.SenderName),
		body.String(),
	)
	return []byte(msg), nil
}

// NotifyNewMessage emails the owner about n.
func (s *EmailService) NotifyNewMessage(n MessageNotification) error {
	msg, err := s.Render(n)
	if err != nil {
		return err
	}
	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	if err := s.send(addr, auth, s.fromEmail, []string{s.toEmail}, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// IsConfigured checks if the email service has valid SMTP configuration
func (s *EmailService) IsConfigured() bool {
	return s.host != "" && s.username != "" && s.password != "" && s.toEmail != ""
}
