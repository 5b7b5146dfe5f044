package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// redactedKeys never reach the log output, whatever logs them.
var redactedKeys = map[string]bool{
	"password":          true,
	"newpassword":       true,
	"code":              true,
	"token":             true,
	"verificationtoken": true,
	"temptoken":         true,
	"cookie":            true,
}

// New creates a JSON slog logger at the provided level tagged with service.
// An invalid level defaults to info.
func New(level, service string) *slog.Logger {
	return newLogger(os.Stdout, level, service)
}

func newLogger(w io.Writer, level, service string) *slog.Logger {
	lvl := new(slog.LevelVar)
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.Set(slog.LevelInfo)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl, ReplaceAttr: redact})
	logger := slog.New(handler)
	if service != "" {
		logger = logger.With(slog.String("service", service))
	}
	return logger
}

// Discard returns a logger that drops all output. Useful for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Phone returns a log attribute that keeps only the last four digits of a phone number.
func Phone(phone string) slog.Attr {
	return slog.String("phone", MaskPhone(phone))
}

// MaskPhone hides all but the trailing four characters.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	masked := make([]byte, len(phone))
	for i := range phone {
		if i >= len(phone)-4 || (i == 0 && phone[0] == '+') {
			masked[i] = phone[i]
			continue
		}
		masked[i] = '*'
	}
	return string(masked)
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if redactedKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, "[redacted]")
	}
	return a
}
