package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/agrolens/agrolens_auth/internal/logging"
	"github.com/agrolens/agrolens_auth/internal/security"
	"github.com/agrolens/agrolens_auth/internal/verification"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)
	validate        = validator.New(validator.WithRequiredStructEnabled())
)

// ProofValidator checks verification proofs.
type ProofValidator interface {
	Validate(token, phone string, purpose verification.Purpose) (verification.Claims, error)
}

// Policy holds input rules for registration and password changes.
type Policy struct {
	MinPasswordLength int
	DefaultCountry    string
}

// Service manages the identity lifecycle: registration, credential checks
// and password replacement.
type Service struct {
	repo     Repository
	hasher   *security.Hasher
	proofs   ProofValidator
	redeemer verification.Redeemer
	policy   Policy
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new identity service.
func NewService(repo Repository, hasher *security.Hasher, proofs ProofValidator, redeemer verification.Redeemer, policy Policy, logger *slog.Logger) *Service {
	if policy.MinPasswordLength <= 0 {
		policy.MinPasswordLength = 6
	}
	return &Service{
		repo:     repo,
		hasher:   hasher,
		proofs:   proofs,
		redeemer: redeemer,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
	}
}

// NormalizePhone applies the service's default country code.
func (s *Service) NormalizePhone(raw string) (string, error) {
	phone, err := NormalizePhone(raw, s.policy.DefaultCountry)
	if err != nil {
		return "", &ValidationError{Field: FieldPhone, Message: "is not a valid phone number"}
	}
	return phone, nil
}

// Register creates a verified identity for a phone number that completed a
// signup challenge. The existence checks before the insert are advisory; the
// repository's unique constraints decide races between concurrent signups.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Identity, error) {
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	switch {
	case in.DisplayName == "":
		return Identity{}, missing("name")
	case strings.TrimSpace(in.Phone) == "":
		return Identity{}, missing(FieldPhone)
	case in.Password == "":
		return Identity{}, missing("password")
	case in.VerificationToken == "":
		return Identity{}, missing("verificationToken")
	}
	if len(in.Password) < s.policy.MinPasswordLength {
		return Identity{}, ErrWeakPassword
	}

	phone, err := s.NormalizePhone(in.Phone)
	if err != nil {
		return Identity{}, err
	}
	if in.Username != "" && !usernamePattern.MatchString(in.Username) {
		return Identity{}, &ValidationError{Field: FieldUsername, Message: "must be 3-32 letters, digits, '.', '_' or '-'"}
	}
	if in.Email != "" {
		if err := validate.Var(in.Email, "email,max=254"); err != nil {
			return Identity{}, &ValidationError{Field: FieldEmail, Message: "is not a valid email address"}
		}
	}

	claims, err := s.proofs.Validate(in.VerificationToken, phone, verification.PurposeSignup)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}

	if err := s.ensureUnique(ctx, phone, in.Username, in.Email); err != nil {
		return Identity{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Identity{}, fmt.Errorf("hash password: %w", err)
	}

	if err := s.redeem(ctx, claims); err != nil {
		return Identity{}, err
	}

	now := s.now().UTC()
	identity := Identity{
		ID:           uuid.New().String(),
		DisplayName:  in.DisplayName,
		Phone:        phone,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Verified:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, identity); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return Identity{}, err
		}
		s.release(ctx, claims)
		return Identity{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "identity registered", slog.String("identity_id", identity.ID), logging.Phone(phone))
	}
	return identity, nil
}

// LoginID names the account to authenticate. A phone number is matched only
// against phones and a username only against usernames; Phone wins when both
// are set.
type LoginID struct {
	Phone    string
	Username string
}

// Authenticate resolves id and checks password. Every mismatch yields
// ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, id LoginID, password string) (Identity, error) {
	id.Phone = strings.TrimSpace(id.Phone)
	id.Username = strings.TrimSpace(id.Username)
	if id.Phone == "" && id.Username == "" {
		return Identity{}, missing(FieldPhone)
	}
	if password == "" {
		return Identity{}, missing("password")
	}

	identity, err := s.lookup(ctx, id)
	if errors.Is(err, ErrNotFound) {
		s.hasher.CompareDummy(password)
		return Identity{}, ErrInvalidCredentials
	}
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if err := s.hasher.Compare(identity.PasswordHash, password); err != nil {
		return Identity{}, ErrInvalidCredentials
	}
	return identity, nil
}

// ResetPassword replaces the password of the identity bound to a
// password_reset proof. No session is issued.
func (s *Service) ResetPassword(ctx context.Context, rawPhone, token, newPassword string) error {
	switch {
	case strings.TrimSpace(rawPhone) == "":
		return missing(FieldPhone)
	case token == "":
		return missing("verificationToken")
	case newPassword == "":
		return missing("newPassword")
	}
	if err := s.CheckPassword(newPassword); err != nil {
		return err
	}
	phone, err := s.NormalizePhone(rawPhone)
	if err != nil {
		return err
	}

	claims, err := s.proofs.Validate(token, phone, verification.PurposePasswordReset)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}

	identity, err := s.repo.FindByPhone(ctx, phone)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.redeem(ctx, claims); err != nil {
		return err
	}
	if err := s.repo.UpdatePasswordHash(ctx, identity.ID, hash, s.now()); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrVerificationFailed, err)
		}
		s.release(ctx, claims)
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "password reset", slog.String("identity_id", identity.ID))
	}
	return nil
}

// CheckPassword applies the password policy without hashing.
func (s *Service) CheckPassword(password string) error {
	if len(password) < s.policy.MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// Exists reports whether an identity is registered for the canonical phone.
func (s *Service) Exists(ctx context.Context, phone string) (bool, error) {
	_, err := s.repo.FindByPhone(ctx, phone)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return true, nil
}

func (s *Service) ensureUnique(ctx context.Context, phone, username, email string) error {
	checks := []struct {
		field string
		value string
		find  func(context.Context, string) (Identity, error)
	}{
		{FieldPhone, phone, s.repo.FindByPhone},
		{FieldUsername, username, s.repo.FindByUsername},
		{FieldEmail, email, s.repo.FindByEmail},
	}
	for _, c := range checks {
		if c.value == "" {
			continue
		}
		_, err := c.find(ctx, c.value)
		if err == nil {
			return &DuplicateError{Field: c.field}
		}
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
	}
	return nil
}

func (s *Service) lookup(ctx context.Context, id LoginID) (Identity, error) {
	if id.Phone == "" {
		return s.repo.FindByUsername(ctx, id.Username)
	}
	phone, err := NormalizePhone(id.Phone, s.policy.DefaultCountry)
	if err != nil {
		return Identity{}, ErrNotFound
	}
	return s.repo.FindByPhone(ctx, phone)
}

func (s *Service) redeem(ctx context.Context, claims verification.Claims) error {
	var until time.Time
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	err := s.redeemer.Redeem(ctx, claims.ID, until)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, verification.ErrAlreadyRedeemed), errors.Is(err, verification.ErrExpired):
		return fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	default:
		return fmt.Errorf("%w: redeem proof: %w", ErrStoreUnavailable, err)
	}
}

func (s *Service) release(ctx context.Context, claims verification.Claims) {
	if err := s.redeemer.Release(ctx, claims.ID); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "release verification proof", slog.Any("error", err))
	}
}
