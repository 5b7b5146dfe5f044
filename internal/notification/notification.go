package notification

import (
	"context"
	"log/slog"

	"github.com/agrolens/agrolens_auth/internal/logging"
)

const (
	// KindOTP carries a one-time verification code to a phone number.
	KindOTP = "otp"
	// KindWelcome greets a newly registered identity by email.
	KindWelcome = "welcome"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Subject     string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger. It stands in for an SMS
// or mail gateway in development; OTP bodies are only logged at debug level.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	if message.Kind == KindOTP {
		n.logger.InfoContext(ctx, "notification", "kind", message.Kind, logging.Phone(message.Destination))
		n.logger.DebugContext(ctx, "otp body", logging.Phone(message.Destination), "body", message.Body)
		return nil
	}
	n.logger.InfoContext(ctx, "notification", "kind", message.Kind, "destination", message.Destination, "subject", message.Subject)
	return nil
}
