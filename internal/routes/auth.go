package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agrolens/agrolens_auth/internal/auth"
)

// AuthMiddleware holds the per-route middleware of the /auth group.
type AuthMiddleware struct {
	Guard       fiber.Handler
	RateLimit   fiber.Handler
	Idempotency fiber.Handler
}

// RegisterAuthRoutes wires authentication endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, mw AuthMiddleware) {
	group := r.Group("/auth")
	group.Post("/request-otp", mw.Idempotency, h.RequestOTP)
	group.Post("/verify-otp", h.VerifyOTP)
	group.Post("/signup", h.Signup)
	group.Post("/login", mw.RateLimit, h.Login)
	group.Post("/forgot-password", mw.Idempotency, h.ForgotPassword)
	group.Post("/reset-password", h.ResetPassword)
	group.Post("/logout", h.Logout)
	group.Get("/me", mw.Guard, h.Me)
}
