// Package otp adapts one-time-password providers behind a two-call gateway:
// issue a challenge to a phone number, then check the code the user typed.
package otp

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrProviderUnavailable wraps every provider-side failure. Callers must not retry silently.
	ErrProviderUnavailable = errors.New("otp provider unavailable")
	// ErrInvalidPhoneFormat is returned when the provider refuses the destination number.
	ErrInvalidPhoneFormat = errors.New("invalid phone number format")
	// ErrCodeRejected is returned when a checked code is wrong, expired or already used.
	ErrCodeRejected = errors.New("invalid or expired code")
)

// Delivery describes an accepted challenge.
type Delivery struct {
	ExpiresIn time.Duration
}

// Gateway is the contract every OTP provider adapter satisfies.
type Gateway interface {
	RequestChallenge(ctx context.Context, phone string) (Delivery, error)
	CheckChallenge(ctx context.Context, phone, code string) (bool, error)
}

func validDestination(phone string) bool {
	if len(phone) < 9 || !strings.HasPrefix(phone, "+") {
		return false
	}
	for i := 1; i < len(phone); i++ {
		if phone[i] < '0' || phone[i] > '9' {
			return false
		}
	}
	return true
}
