package notification

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// sender abstracts gomail's dialer so tests can capture messages.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier delivers email notifications through an SMTP relay.
type SMTPNotifier struct {
	from   string
	dialer sender
}

// NewSMTPNotifier builds a notifier backed by gomail.
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// Send emails message.Destination. The context is not observed by gomail.
func (n *SMTPNotifier) Send(_ context.Context, message Message) error {
	if message.Destination == "" {
		return fmt.Errorf("no recipient specified")
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", n.from)
	msg.SetHeader("To", message.Destination)
	msg.SetHeader("Subject", message.Subject)
	msg.SetBody("text/plain", message.Body)
	if err := n.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send %s mail: %w", message.Kind, err)
	}
	return nil
}

// WelcomeMessage builds the greeting sent after signup.
func WelcomeMessage(email, name, appName string) Message {
	return Message{
		Kind:        KindWelcome,
		Destination: email,
		Subject:     fmt.Sprintf("Welcome to %s", appName),
		Body:        fmt.Sprintf("Hi %s,\n\nYour %s account is ready. Your phone number has been verified and you can sign in at any time.\n", name, appName),
	}
}
