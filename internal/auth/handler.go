package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/agrolens/agrolens_auth/internal/identity"
	"github.com/agrolens/agrolens_auth/internal/middleware"
	"github.com/agrolens/agrolens_auth/internal/session"
	"github.com/agrolens/agrolens_auth/internal/verification"
)

// Handler exposes the /auth endpoints.
type Handler struct {
	svc    *Service
	cookie session.CookieConfig
}

func NewHandler(svc *Service, cookie session.CookieConfig) *Handler {
	return &Handler{svc: svc, cookie: cookie}
}

type phoneRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type challengeResponse struct {
	Message   string `json:"message"`
	ExpiresIn int64  `json:"expiresIn"`
}

type verifyRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Code        string `json:"code"`
	Purpose     string `json:"purpose"`
}

type verifyResponse struct {
	TempToken string `json:"tempToken"`
	ExpiresIn int64  `json:"expiresIn"`
}

type signupRequest struct {
	Name              string `json:"name"`
	PhoneNumber       string `json:"phoneNumber"`
	Password          string `json:"password"`
	VerificationToken string `json:"verificationToken"`
	Username          string `json:"username"`
	Email             string `json:"email"`
}

type loginRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Username    string `json:"username"`
	Password    string `json:"password"`
}

type resetRequest struct {
	PhoneNumber       string `json:"phoneNumber"`
	NewPassword       string `json:"newPassword"`
	Code              string `json:"code"`
	VerificationToken string `json:"verificationToken"`
}

type userResponse struct {
	Message string          `json:"message,omitempty"`
	User    identity.Public `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// RequestOTP sends a signup challenge.
func (h *Handler) RequestOTP(c *fiber.Ctx) error {
	var req phoneRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	delivery, err := h.svc.RequestChallenge(c.UserContext(), req.PhoneNumber)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(challengeResponse{
		Message:   "OTP sent successfully",
		ExpiresIn: int64(delivery.ExpiresIn.Seconds()),
	})
}

// VerifyOTP exchanges a code for a verification proof.
func (h *Handler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	proof, err := h.svc.VerifyChallenge(c.UserContext(), req.PhoneNumber, req.Code, verification.Purpose(req.Purpose))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(verifyResponse{
		TempToken: proof.Token,
		ExpiresIn: int64(h.svc.ProofTTL().Seconds()),
	})
}

// Signup creates the identity and sets the session cookie.
func (h *Handler) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	created, cred, err := h.svc.Signup(c.UserContext(), identity.RegisterInput{
		DisplayName:       req.Name,
		Phone:             req.PhoneNumber,
		Password:          req.Password,
		VerificationToken: req.VerificationToken,
		Username:          req.Username,
		Email:             req.Email,
	})
	if err != nil {
		return err
	}
	h.cookie.SetCookie(c, cred, h.svc.SessionTTL())
	return c.Status(http.StatusCreated).JSON(userResponse{Message: "account created", User: created.Public()})
}

// Login checks credentials and sets the session cookie.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	id := identity.LoginID{Phone: req.PhoneNumber, Username: req.Username}
	found, cred, err := h.svc.Login(c.UserContext(), id, req.Password)
	if err != nil {
		return err
	}
	h.cookie.SetCookie(c, cred, h.svc.SessionTTL())
	return c.Status(http.StatusOK).JSON(userResponse{Message: "logged in", User: found.Public()})
}

// ForgotPassword sends a reset challenge to a registered phone number.
func (h *Handler) ForgotPassword(c *fiber.Ctx) error {
	var req phoneRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	delivery, err := h.svc.ForgotPassword(c.UserContext(), req.PhoneNumber)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(challengeResponse{
		Message:   "OTP sent successfully",
		ExpiresIn: int64(delivery.ExpiresIn.Seconds()),
	})
}

// ResetPassword replaces the password. No session is issued.
func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var req resetRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	err := h.svc.ResetPassword(c.UserContext(), ResetInput{
		Phone:             req.PhoneNumber,
		NewPassword:       req.NewPassword,
		Code:              req.Code,
		VerificationToken: req.VerificationToken,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(messageResponse{Message: "password updated"})
}

// Logout revokes the current session and clears the cookie. The cookie is
// cleared even when revocation fails.
func (h *Handler) Logout(c *fiber.Ctx) error {
	err := h.svc.Logout(c.UserContext(), h.cookie.Token(c))
	h.cookie.ClearCookie(c)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(messageResponse{Message: "logged out"})
}

// Me returns the identity attached by the route guard.
func (h *Handler) Me(c *fiber.Ctx) error {
	current, ok := middleware.CurrentIdentity(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	return c.Status(http.StatusOK).JSON(userResponse{User: current.Public()})
}

// decode parses the JSON body into dst, rejecting unknown fields and trailing data.
func decode(c *fiber.Ctx, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(c.Body()))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &identity.ValidationError{Field: "body", Message: "request body is required"}
		}
		return &identity.ValidationError{Field: "body", Message: err.Error()}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return &identity.ValidationError{Field: "body", Message: "unexpected data after JSON object"}
	}
	return nil
}
