package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "idempotency:v1:"
	inProgressMarker     = "__in_progress__"
	maxIdempotencyKeyLen = 128
	idempotencyOpTimeout = 2 * time.Second
)

type storedResponse struct {
	Status  int               `json:"status"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
}

// Idempotency replays the stored response when a request is retried with the
// same Idempotency-Key. Requests without the header pass through, so a client
// that retries an OTP request with its key does not trigger a second SMS.
// Only successful responses are stored; failed attempts release the key.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch strings.ToUpper(c.Method()) {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := strings.TrimSpace(c.Get(idempotencyKeyHeader))
		if key == "" || cache == nil {
			return c.Next()
		}
		if len(key) > maxIdempotencyKeyLen {
			return fiber.NewError(http.StatusBadRequest, "Idempotency-Key is too long")
		}

		cacheKey := idempotencyPrefix + c.Path() + ":" + key
		ctx, cancel := context.WithTimeout(c.UserContext(), idempotencyOpTimeout)
		defer cancel()

		reserved, err := cache.SetNX(ctx, cacheKey, inProgressMarker, ttl).Result()
		if err != nil {
			logger.ErrorContext(ctx, "idempotency reservation failed", slog.String("key", key), slog.Any("error", err))
			return fiber.NewError(http.StatusInternalServerError, "idempotency store failure")
		}
		if !reserved {
			return replay(ctx, c, cache, cacheKey, key, logger)
		}

		if err := c.Next(); err != nil {
			release(c.UserContext(), cache, cacheKey)
			return err
		}
		if c.Response().StatusCode() >= http.StatusBadRequest {
			release(c.UserContext(), cache, cacheKey)
			return nil
		}

		stored := storedResponse{
			Status:  c.Response().StatusCode(),
			Body:    string(c.Response().Body()),
			Headers: map[string]string{},
		}
		c.Response().Header.VisitAll(func(k, v []byte) {
			if strings.EqualFold(string(k), fiber.HeaderSetCookie) {
				return
			}
			stored.Headers[string(k)] = string(v)
		})

		payload, err := json.Marshal(stored)
		if err != nil {
			logger.ErrorContext(ctx, "failed to encode idempotent response", slog.String("key", key), slog.Any("error", err))
			release(c.UserContext(), cache, cacheKey)
			return nil
		}
		persistCtx, persistCancel := context.WithTimeout(context.WithoutCancel(c.UserContext()), idempotencyOpTimeout)
		defer persistCancel()
		if err := cache.Set(persistCtx, cacheKey, payload, ttl).Err(); err != nil {
			logger.ErrorContext(persistCtx, "failed to persist idempotent response", slog.String("key", key), slog.Any("error", err))
			cache.Del(persistCtx, cacheKey)
		}
		return nil
	}
}

func replay(ctx context.Context, c *fiber.Ctx, cache *redis.Client, cacheKey, key string, logger *slog.Logger) error {
	cached, err := cache.Get(ctx, cacheKey).Result()
	if errors.Is(err, redis.Nil) || cached == inProgressMarker {
		return fiber.NewError(http.StatusConflict, "duplicate request currently processing")
	}
	if err != nil {
		logger.ErrorContext(ctx, "idempotency lookup failed", slog.String("key", key), slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "idempotency store failure")
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(cached), &stored); err != nil {
		logger.WarnContext(ctx, "failed to decode stored idempotent response", slog.String("key", key), slog.Any("error", err))
		return fiber.NewError(http.StatusConflict, "duplicate request")
	}
	for header, value := range stored.Headers {
		if strings.EqualFold(header, fiber.HeaderContentLength) {
			continue
		}
		c.Set(header, value)
	}
	c.Set("Idempotent-Replayed", "true")
	return c.Status(stored.Status).SendString(stored.Body)
}

func release(ctx context.Context, cache *redis.Client, cacheKey string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), idempotencyOpTimeout)
	defer cancel()
	cache.Del(cleanupCtx, cacheKey)
}
