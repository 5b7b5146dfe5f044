package session

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// CookieConfig describes how the session cookie is written.
type CookieConfig struct {
	Name   string
	Secure bool
}

// SetCookie writes the credential into an HTTP-only, same-site strict cookie
// whose max-age matches the credential lifetime.
func (c CookieConfig) SetCookie(ctx *fiber.Ctx, cred Credential, ttl time.Duration) {
	ctx.Cookie(&fiber.Cookie{
		Name:     c.Name,
		Value:    cred.Token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  cred.ExpiresAt,
		Secure:   c.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

// ClearCookie instructs the browser to drop the session cookie.
func (c CookieConfig) ClearCookie(ctx *fiber.Ctx) {
	ctx.Cookie(&fiber.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   c.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

// Token returns the credential carried by the request, if any.
func (c CookieConfig) Token(ctx *fiber.Ctx) string {
	return ctx.Cookies(c.Name)
}
