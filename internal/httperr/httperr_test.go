package httperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/agrolens/agrolens_auth/internal/identity"
	"github.com/agrolens/agrolens_auth/internal/otp"
	"github.com/agrolens/agrolens_auth/internal/verification"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
		field  string
	}{
		{"validation", &identity.ValidationError{Field: "name", Message: "is required"}, http.StatusBadRequest, CodeValidation, "name"},
		{"weak password", identity.ErrWeakPassword, http.StatusBadRequest, CodeWeakPassword, "password"},
		{"duplicate", &identity.DuplicateError{Field: identity.FieldUsername}, http.StatusBadRequest, CodeDuplicateIdentity, identity.FieldUsername},
		{"verification", fmt.Errorf("%w: %w", identity.ErrVerificationFailed, verification.ErrExpired), http.StatusBadRequest, CodeVerificationFailed, ""},
		{"verification wrapping not found", fmt.Errorf("%w: %w", identity.ErrVerificationFailed, identity.ErrNotFound), http.StatusBadRequest, CodeVerificationFailed, ""},
		{"bad code", otp.ErrCodeRejected, http.StatusBadRequest, CodeVerificationFailed, ""},
		{"credentials", identity.ErrInvalidCredentials, http.StatusBadRequest, CodeInvalidCredentials, ""},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized, ""},
		{"not found", identity.ErrNotFound, http.StatusNotFound, CodeNotFound, ""},
		{"provider", fmt.Errorf("%w: timeout", otp.ErrProviderUnavailable), http.StatusInternalServerError, CodeProviderUnavailable, ""},
		{"store", fmt.Errorf("%w: %w", identity.ErrStoreUnavailable, errors.New("dial tcp")), http.StatusServiceUnavailable, CodeStoreUnavailable, ""},
		{"fiber", fiber.NewError(http.StatusTooManyRequests, "slow down"), http.StatusTooManyRequests, CodeTooManyRequests, ""},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternal, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := Classify(tc.err)
			if status != tc.status || body.Error != tc.code || body.Field != tc.field {
				t.Fatalf("got %d %+v, want %d %s %s", status, body, tc.status, tc.code, tc.field)
			}
		})
	}
}

func TestVerificationFailuresShareOneMessage(t *testing.T) {
	causes := []error{verification.ErrExpired, verification.ErrPhoneMismatch, verification.ErrPurposeMismatch, verification.ErrBadSignature, verification.ErrAlreadyRedeemed}
	var first Body
	for i, cause := range causes {
		_, body := Classify(fmt.Errorf("%w: %w", identity.ErrVerificationFailed, cause))
		if i == 0 {
			first = body
			continue
		}
		if body != first {
			t.Fatalf("verification failure leaked its cause: %+v vs %+v", body, first)
		}
	}
}
