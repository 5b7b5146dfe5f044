package identity

import (
	"errors"
	"fmt"
)

// Unique fields of an identity.
const (
	FieldPhone    = "phoneNumber"
	FieldUsername = "username"
	FieldEmail    = "email"
)

var (
	// ErrNotFound is returned by repositories when no identity matches.
	ErrNotFound = errors.New("identity not found")
	// ErrDuplicate matches every *DuplicateError via errors.Is.
	ErrDuplicate = errors.New("identity already exists")
	// ErrInvalidPhone is returned when a phone number cannot be normalized.
	ErrInvalidPhone = errors.New("invalid phone number")

	ErrWeakPassword       = errors.New("password is too short")
	ErrVerificationFailed = errors.New("invalid or expired verification")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrStoreUnavailable   = errors.New("identity store unavailable")
)

// DuplicateError reports which unique field collided with an existing identity.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("identity with this %s already exists", e.Field)
}

// Is lets callers match any duplicate with errors.Is(err, ErrDuplicate).
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Missing builds the validation error for an absent required field.
func Missing(field string) error {
	return &ValidationError{Field: field, Message: "is required"}
}

func missing(field string) error { return Missing(field) }
