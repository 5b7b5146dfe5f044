package middleware

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/agrolens/agrolens_auth/internal/httperr"
	"github.com/agrolens/agrolens_auth/internal/identity"
	"github.com/agrolens/agrolens_auth/internal/metrics"
	"github.com/agrolens/agrolens_auth/internal/session"
)

const identityLocal = "identity"

// GuardConfig wires the route guard.
type GuardConfig struct {
	Cookie     session.CookieConfig
	Sessions   *session.Issuer
	Revoked    session.RevocationList
	Identities identity.Repository
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// RouteGuard admits requests carrying a valid, unrevoked session cookie whose
// identity still exists. Every rejection is the same 401; store failures are 503.
func RouteGuard(cfg GuardConfig) fiber.Handler {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop()
	}
	reject := func(reason string) error {
		cfg.Metrics.GuardRejected(reason)
		return httperr.ErrUnauthorized
	}

	return func(c *fiber.Ctx) error {
		token := cfg.Cookie.Token(c)
		if token == "" {
			return reject("missing")
		}
		claims, err := cfg.Sessions.Verify(token)
		if errors.Is(err, session.ErrExpired) {
			return reject("expired")
		}
		if err != nil {
			return reject("invalid")
		}

		ctx := c.UserContext()
		revoked, err := cfg.Revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return fmt.Errorf("%w: revocation lookup: %w", identity.ErrStoreUnavailable, err)
		}
		if revoked {
			return reject("revoked")
		}

		current, err := cfg.Identities.FindByID(ctx, claims.IdentityID())
		if errors.Is(err, identity.ErrNotFound) {
			if cfg.Logger != nil {
				cfg.Logger.WarnContext(ctx, "session for unknown identity", slog.String("identity_id", claims.IdentityID()))
			}
			return reject("unknown_identity")
		}
		if err != nil {
			return fmt.Errorf("%w: %w", identity.ErrStoreUnavailable, err)
		}

		c.Locals(identityLocal, current)
		return c.Next()
	}
}

// CurrentIdentity returns the identity admitted by RouteGuard.
func CurrentIdentity(c *fiber.Ctx) (identity.Identity, bool) {
	current, ok := c.Locals(identityLocal).(identity.Identity)
	return current, ok
}
