package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mssola/useragent"

	"github.com/agrolens/agrolens_auth/internal/httperr"
)

// Audit writes one structured log line per request. Request bodies are never
// logged since they carry passwords, codes and proofs.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status, _ = httperr.Classify(err)
		}
		attrs := []slog.Attr{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
		}
		if reqID := RequestIDFrom(c); reqID != "" {
			attrs = append(attrs, slog.String("request_id", reqID))
		}
		if ua := c.Get(fiber.HeaderUserAgent); ua != "" {
			attrs = append(attrs, clientAttrs(ua)...)
		}
		if current, ok := CurrentIdentity(c); ok {
			attrs = append(attrs, slog.String("identity_id", current.ID))
		}

		ctx := context.WithoutCancel(c.UserContext())
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
			logger.LogAttrs(ctx, slog.LevelWarn, "request completed", attrs...)
			return err
		}
		logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
		return nil
	}
}

func clientAttrs(raw string) []slog.Attr {
	ua := useragent.New(raw)
	name, version := ua.Browser()
	return []slog.Attr{
		slog.String("client", name+" "+version),
		slog.String("os", ua.OS()),
		slog.Bool("mobile", ua.Mobile()),
		slog.Bool("bot", ua.Bot()),
	}
}
