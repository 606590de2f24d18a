package service

import (
	"context"
	"fmt"
	"strings"

	"custody-backend/internal/logger"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"gopkg.in/gomail.v2"
)

// Mailer delivers one plain-text message to a set of recipients.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

type smtpMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewSMTPMailer(host string, port int, username, password, from string) Mailer {
	return &smtpMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

func (s *smtpMailer) Send(ctx context.Context, to []string, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(s.host, s.port, s.username, s.password)
	logger.ExternalServiceCall("smtp", "DialAndSend", "host", s.host, "recipients", len(to))
	err := d.DialAndSend(m)
	logger.ExternalServiceResult("smtp", "DialAndSend", err)
	if err != nil {
		return fmt.Errorf("failed to send email via gomail: %w", err)
	}
	return nil
}

type sendGridMailer struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

func NewSendGridMailer(apiKey, fromEmail, fromName string) Mailer {
	return &sendGridMailer{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *sendGridMailer) Send(ctx context.Context, to []string, subject, body string) error {
	if len(to) == 0 {
		return nil
	}
	from := mail.NewEmail(s.fromName, s.fromEmail)

	message := mail.NewV3Mail()
	message.SetFrom(from)
	message.Subject = subject
	p := mail.NewPersonalization()
	for _, addr := range to {
		p.AddTos(mail.NewEmail("", addr))
	}
	message.AddPersonalizations(p)
	message.AddContent(mail.NewContent("text/plain", body))

	logger.ExternalServiceCall("sendgrid", "Send", "recipients", len(to))
	response, err := s.client.SendWithContext(ctx, message)
	logger.ExternalServiceResult("sendgrid", "Send", err)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	return nil
}

type noopMailer struct{}

// NewNoopMailer discards every message.
func NewNoopMailer() Mailer { return noopMailer{} }

func (noopMailer) Send(ctx context.Context, to []string, subject, body string) error { return nil }

// NewMailer picks the delivery backend by name: "smtp", "sendgrid" or "none".
func NewMailer(provider string, smtpHost string, smtpPort int, smtpUser, smtpPassword, from, fromName, sendGridKey string) (Mailer, error) {
	switch strings.ToLower(provider) {
	case "", "none":
		return NewNoopMailer(), nil
	case "smtp":
		return NewSMTPMailer(smtpHost, smtpPort, smtpUser, smtpPassword, from), nil
	case "sendgrid":
		if sendGridKey == "" {
			return nil, fmt.Errorf("sendgrid provider requires an api key")
		}
		return NewSendGridMailer(sendGridKey, from, fromName), nil
	}
	return nil, fmt.Errorf("unknown email provider %q", provider)
}
