package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/agrolens/agrolens_auth/internal/identity"
)

const loginRatePrefix = "rl:login:"

// LoginRateLimit limits login attempts per identifier (phone number or
// username), falling back to the client IP. Phone numbers are counted in
// canonical form so formatting variants share a bucket. It fails open when
// Redis errors.
func LoginRateLimit(cache *redis.Client, maxPerMin int, defaultCountry string, logger *slog.Logger) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		key := loginRatePrefix + loginIdentifier(c, defaultCountry)
		ctx := c.UserContext()

		cnt, err := cache.Incr(ctx, key).Result()
		if err != nil {
			if logger != nil {
				logger.WarnContext(ctx, "login rate limit unavailable", slog.Any("error", err))
			}
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(ctx, key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many login attempts, try again later")
		}
		return c.Next()
	}
}

func loginIdentifier(c *fiber.Ctx, defaultCountry string) string {
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
		Username    string `json:"username"`
	}
	_ = json.NewDecoder(bytes.NewReader(c.Body())).Decode(&req)
	if id := strings.TrimSpace(req.PhoneNumber); id != "" {
		if phone, err := identity.NormalizePhone(id, defaultCountry); err == nil {
			return phone
		}
		return strings.ToLower(id)
	}
	if id := strings.TrimSpace(req.Username); id != "" {
		return strings.ToLower(id)
	}
	return c.IP()
}
