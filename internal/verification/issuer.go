// Package verification mints and checks the short-lived proofs that bind a
// phone number to a completed OTP challenge.
package verification

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose names the workflow a proof may be redeemed for.
type Purpose string

const (
	PurposeSignup        Purpose = "signup"
	PurposePasswordReset Purpose = "password_reset"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeSignup || p == PurposePasswordReset
}

const (
	tokenIssuer   = "agrolens-auth"
	tokenAudience = "verification"
)

var (
	ErrExpired         = errors.New("verification proof expired")
	ErrPhoneMismatch   = errors.New("verification proof bound to another phone number")
	ErrPurposeMismatch = errors.New("verification proof issued for another purpose")
	ErrBadSignature    = errors.New("verification proof is malformed or forged")
	ErrAlreadyRedeemed = errors.New("verification proof already redeemed")
)

// Claims are the signed contents of a proof.
type Claims struct {
	Phone      string           `json:"phone"`
	Purpose    Purpose          `json:"purpose"`
	VerifiedAt *jwt.NumericDate `json:"verified_at"`
	jwt.RegisteredClaims
}

// Proof is an issued verification token.
type Proof struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// Issuer signs and validates proofs with a shared HMAC secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// NewIssuer constructs an Issuer whose proofs live for ttl.
func NewIssuer(secret string, ttl time.Duration, opts ...Option) *Issuer {
	i := &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// TTL returns the lifetime of issued proofs.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue mints a proof for phone. Callers must only invoke it after the OTP
// provider approved a challenge for that phone.
func (i *Issuer) Issue(phone string, purpose Purpose) (Proof, error) {
	if !purpose.Valid() {
		return Proof{}, fmt.Errorf("unknown purpose %q", purpose)
	}
	now := i.now().UTC()
	exp := now.Add(i.ttl)
	id := uuid.NewString()
	claims := Claims{
		Phone:      phone,
		Purpose:    purpose,
		VerifiedAt: jwt.NewNumericDate(now),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    tokenIssuer,
			Subject:   phone,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Proof{}, fmt.Errorf("sign proof: %w", err)
	}
	return Proof{Token: signed, ID: id, ExpiresAt: exp}, nil
}

// Validate checks signature, expiry, phone binding and purpose.
func (i *Issuer) Validate(token, phone string, purpose Purpose) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrBadSignature
	}
	if claims.ID == "" {
		return Claims{}, ErrBadSignature
	}
	if claims.Phone != phone {
		return Claims{}, ErrPhoneMismatch
	}
	if claims.Purpose != purpose {
		return Claims{}, ErrPurposeMismatch
	}
	return claims, nil
}
