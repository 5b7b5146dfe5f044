// Package auth coordinates the OTP, verification, identity and session
// components into the signup, login and password reset flows.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agrolens/agrolens_auth/internal/identity"
	"github.com/agrolens/agrolens_auth/internal/logging"
	"github.com/agrolens/agrolens_auth/internal/metrics"
	"github.com/agrolens/agrolens_auth/internal/notification"
	"github.com/agrolens/agrolens_auth/internal/otp"
	"github.com/agrolens/agrolens_auth/internal/session"
	"github.com/agrolens/agrolens_auth/internal/verification"
)

const welcomeTimeout = 30 * time.Second

// Deps lists the collaborators of Service. Mailer may be nil.
type Deps struct {
	Identities *identity.Service
	OTP        otp.Gateway
	Proofs     *verification.Issuer
	Sessions   *session.Issuer
	Revoked    session.RevocationList
	Mailer     notification.Notifier
	Metrics    *metrics.Metrics
	AppName    string
	Logger     *slog.Logger
}

type Service struct {
	ids      *identity.Service
	otp      otp.Gateway
	proofs   *verification.Issuer
	sessions *session.Issuer
	revoked  session.RevocationList
	mailer   notification.Notifier
	metrics  *metrics.Metrics
	appName  string
	logger   *slog.Logger
}

func NewService(d Deps) *Service {
	m := d.Metrics
	if m == nil {
		m = metrics.Noop()
	}
	return &Service{
		ids:      d.Identities,
		otp:      d.OTP,
		proofs:   d.Proofs,
		sessions: d.Sessions,
		revoked:  d.Revoked,
		mailer:   d.Mailer,
		metrics:  m,
		appName:  d.AppName,
		logger:   d.Logger,
	}
}

// ResetInput carries a password reset. Either Code or VerificationToken proves
// control of the phone number.
type ResetInput struct {
	Phone             string
	NewPassword       string
	Code              string
	VerificationToken string
}

// RequestChallenge sends a signup OTP to the phone number.
func (s *Service) RequestChallenge(ctx context.Context, rawPhone string) (otp.Delivery, error) {
	phone, err := s.phone(rawPhone)
	if err != nil {
		return otp.Delivery{}, err
	}
	return s.challenge(ctx, phone, verification.PurposeSignup)
}

// ForgotPassword sends a reset OTP, failing with identity.ErrNotFound when
// nobody registered the phone number.
func (s *Service) ForgotPassword(ctx context.Context, rawPhone string) (otp.Delivery, error) {
	phone, err := s.phone(rawPhone)
	if err != nil {
		return otp.Delivery{}, err
	}
	exists, err := s.ids.Exists(ctx, phone)
	if err != nil {
		return otp.Delivery{}, err
	}
	if !exists {
		s.metrics.OTPRequested(string(verification.PurposePasswordReset), metrics.OutcomeFailure)
		return otp.Delivery{}, identity.ErrNotFound
	}
	return s.challenge(ctx, phone, verification.PurposePasswordReset)
}

// VerifyChallenge checks code and mints a proof for purpose. An empty purpose
// means signup.
func (s *Service) VerifyChallenge(ctx context.Context, rawPhone, code string, purpose verification.Purpose) (verification.Proof, error) {
	if purpose == "" {
		purpose = verification.PurposeSignup
	}
	if !purpose.Valid() {
		return verification.Proof{}, &identity.ValidationError{Field: "purpose", Message: "must be signup or password_reset"}
	}
	phone, err := s.phone(rawPhone)
	if err != nil {
		return verification.Proof{}, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return verification.Proof{}, identity.Missing("code")
	}
	return s.verify(ctx, phone, code, purpose)
}

// Signup registers the identity and signs it in.
func (s *Service) Signup(ctx context.Context, in identity.RegisterInput) (identity.Identity, session.Credential, error) {
	created, err := s.ids.Register(ctx, in)
	if err != nil {
		s.metrics.Registered(outcome(err))
		return identity.Identity{}, session.Credential{}, err
	}
	s.metrics.Registered(metrics.OutcomeSuccess)

	cred, err := s.sessions.Issue(created.ID)
	if err != nil {
		return identity.Identity{}, session.Credential{}, err
	}
	s.welcome(ctx, created)
	return created, cred, nil
}

// Login checks credentials and issues a session.
func (s *Service) Login(ctx context.Context, id identity.LoginID, password string) (identity.Identity, session.Credential, error) {
	found, err := s.ids.Authenticate(ctx, id, password)
	if err != nil {
		s.metrics.LoggedIn(outcome(err))
		return identity.Identity{}, session.Credential{}, err
	}
	cred, err := s.sessions.Issue(found.ID)
	if err != nil {
		s.metrics.LoggedIn(metrics.OutcomeError)
		return identity.Identity{}, session.Credential{}, err
	}
	s.metrics.LoggedIn(metrics.OutcomeSuccess)
	return found, cred, nil
}

// ResetPassword replaces the password. A raw code is checked against the
// gateway and exchanged for a password_reset proof first.
func (s *Service) ResetPassword(ctx context.Context, in ResetInput) error {
	err := s.resetPassword(ctx, in)
	s.metrics.PasswordReset(outcome(err))
	return err
}

func (s *Service) resetPassword(ctx context.Context, in ResetInput) error {
	token := strings.TrimSpace(in.VerificationToken)
	code := strings.TrimSpace(in.Code)
	if token == "" && code != "" {
		if in.NewPassword == "" {
			return identity.Missing("newPassword")
		}
		if err := s.ids.CheckPassword(in.NewPassword); err != nil {
			return err
		}
		phone, err := s.phone(in.Phone)
		if err != nil {
			return err
		}
		proof, err := s.verify(ctx, phone, code, verification.PurposePasswordReset)
		if errors.Is(err, otp.ErrCodeRejected) {
			return fmt.Errorf("%w: %w", identity.ErrVerificationFailed, err)
		}
		if err != nil {
			return err
		}
		token = proof.Token
	}
	return s.ids.ResetPassword(ctx, in.Phone, token, in.NewPassword)
}

// Logout revokes the presented session until it would have expired. Absent or
// invalid tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.sessions.Verify(token)
	if err != nil {
		return nil
	}
	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("%w: revoke session: %w", identity.ErrStoreUnavailable, err)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "session revoked", slog.String("identity_id", claims.IdentityID()))
	}
	return nil
}

// SessionTTL is the lifetime of issued sessions.
func (s *Service) SessionTTL() time.Duration {
	return s.sessions.TTL()
}

// ProofTTL is the lifetime of issued verification proofs.
func (s *Service) ProofTTL() time.Duration {
	return s.proofs.TTL()
}

func (s *Service) phone(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", identity.Missing(identity.FieldPhone)
	}
	return s.ids.NormalizePhone(raw)
}

func (s *Service) challenge(ctx context.Context, phone string, purpose verification.Purpose) (otp.Delivery, error) {
	delivery, err := s.otp.RequestChallenge(ctx, phone)
	if err != nil {
		s.metrics.OTPRequested(string(purpose), metrics.OutcomeError)
		if s.logger != nil && errors.Is(err, otp.ErrProviderUnavailable) {
			s.logger.ErrorContext(ctx, "otp request failed", logging.Phone(phone), slog.Any("error", err))
		}
		return otp.Delivery{}, err
	}
	s.metrics.OTPRequested(string(purpose), metrics.OutcomeSuccess)
	if s.logger != nil {
		s.logger.InfoContext(ctx, "otp challenge sent", logging.Phone(phone), slog.String("purpose", string(purpose)))
	}
	return delivery, nil
}

func (s *Service) verify(ctx context.Context, phone, code string, purpose verification.Purpose) (verification.Proof, error) {
	approved, err := s.otp.CheckChallenge(ctx, phone, code)
	if err != nil {
		s.metrics.OTPChecked(string(purpose), metrics.OutcomeError)
		return verification.Proof{}, err
	}
	if !approved {
		s.metrics.OTPChecked(string(purpose), metrics.OutcomeFailure)
		return verification.Proof{}, otp.ErrCodeRejected
	}
	s.metrics.OTPChecked(string(purpose), metrics.OutcomeSuccess)
	return s.proofs.Issue(phone, purpose)
}

func (s *Service) welcome(ctx context.Context, created identity.Identity) {
	if s.mailer == nil || created.Email == "" {
		return
	}
	msg := notification.WelcomeMessage(created.Email, created.DisplayName, s.appName)
	go func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, welcomeTimeout)
		defer cancel()
		if err := s.mailer.Send(ctx, msg); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "welcome email failed", slog.String("identity_id", created.ID), slog.Any("error", err))
		}
	}(context.WithoutCancel(ctx))
}

// outcome buckets an error for metrics: caller mistakes are failures,
// infrastructure faults are errors.
func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, identity.ErrStoreUnavailable), errors.Is(err, otp.ErrProviderUnavailable):
		return metrics.OutcomeError
	default:
		return metrics.OutcomeFailure
	}
}
