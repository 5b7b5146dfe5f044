// Package httperr renders domain errors as JSON HTTP responses.
package httperr

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/agrolens/agrolens_auth/internal/identity"
	"github.com/agrolens/agrolens_auth/internal/otp"
)

// Error codes returned in the "error" field.
const (
	CodeValidation          = "validation_error"
	CodeWeakPassword        = "weak_password"
	CodeDuplicateIdentity   = "duplicate_identity"
	CodeVerificationFailed  = "verification_failed"
	CodeInvalidCredentials  = "invalid_credentials"
	CodeUnauthorized        = "unauthorized"
	CodeNotFound            = "not_found"
	CodeTooManyRequests     = "too_many_requests"
	CodeConflict            = "conflict"
	CodeProviderUnavailable = "provider_unavailable"
	CodeStoreUnavailable    = "store_unavailable"
	CodeInternal            = "internal"
)

// ErrUnauthorized is the single error used for every rejected session.
var ErrUnauthorized = errors.New("unauthorized")

// Body is the JSON error envelope.
type Body struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Classify maps err to an HTTP status and envelope. Verification and
// credential failures use fixed messages so clients cannot tell which check failed.
func Classify(err error) (int, Body) {
	var (
		verr *identity.ValidationError
		dup  *identity.DuplicateError
		ferr *fiber.Error
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, Body{Error: CodeValidation, Message: verr.Error(), Field: verr.Field}
	case errors.Is(err, identity.ErrWeakPassword):
		return http.StatusBadRequest, Body{Error: CodeWeakPassword, Message: "password is too short", Field: "password"}
	case errors.As(err, &dup):
		return http.StatusBadRequest, Body{Error: CodeDuplicateIdentity, Message: dup.Error(), Field: dup.Field}
	case errors.Is(err, identity.ErrVerificationFailed):
		return http.StatusBadRequest, Body{Error: CodeVerificationFailed, Message: "invalid or expired verification"}
	case errors.Is(err, otp.ErrCodeRejected):
		return http.StatusBadRequest, Body{Error: CodeVerificationFailed, Message: "invalid or expired code"}
	case errors.Is(err, identity.ErrInvalidCredentials):
		return http.StatusBadRequest, Body{Error: CodeInvalidCredentials, Message: "invalid credentials"}
	case errors.Is(err, otp.ErrInvalidPhoneFormat):
		return http.StatusBadRequest, Body{Error: CodeValidation, Message: "phoneNumber: is not a valid phone number", Field: identity.FieldPhone}
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, Body{Error: CodeUnauthorized, Message: "unauthorized"}
	case errors.Is(err, identity.ErrNotFound):
		return http.StatusNotFound, Body{Error: CodeNotFound, Message: "no account is registered for this phone number"}
	case errors.Is(err, otp.ErrProviderUnavailable):
		return http.StatusInternalServerError, Body{Error: CodeProviderUnavailable, Message: "verification provider unavailable, try again later"}
	case errors.Is(err, identity.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, Body{Error: CodeStoreUnavailable, Message: "service temporarily unavailable"}
	case errors.As(err, &ferr):
		return ferr.Code, Body{Error: codeForStatus(ferr.Code), Message: ferr.Message}
	default:
		return http.StatusInternalServerError, Body{Error: CodeInternal, Message: "internal server error"}
	}
}

// Write renders err on c.
func Write(c *fiber.Ctx, err error) error {
	status, body := Classify(err)
	return c.Status(status).JSON(body)
}

// Handler is a fiber.ErrorHandler that logs server-side failures and renders the envelope.
func Handler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, body := Classify(err)
		if status >= http.StatusInternalServerError && logger != nil {
			logger.ErrorContext(c.UserContext(), "request failed",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.Any("error", err),
			)
		}
		return c.Status(status).JSON(body)
	}
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return CodeUnauthorized
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusTooManyRequests:
		return CodeTooManyRequests
	case status == http.StatusConflict:
		return CodeConflict
	case status < http.StatusInternalServerError:
		return CodeValidation
	default:
		return CodeInternal
	}
}
