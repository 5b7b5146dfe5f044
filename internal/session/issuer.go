// Package session mints the signed credentials carried in the session cookie
// and tracks credentials revoked by logout.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer   = "agrolens-auth"
	tokenAudience = "session"
)

var (
	ErrInvalid = errors.New("invalid session credential")
	ErrExpired = errors.New("session credential expired")
	ErrRevoked = errors.New("session credential revoked")
)

// Claims are the signed contents of a session credential.
type Claims struct {
	jwt.RegisteredClaims
}

// IdentityID returns the identity the credential authenticates.
func (c Claims) IdentityID() string {
	return c.Subject
}

// Credential is a freshly minted session token.
type Credential struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// Issuer signs and verifies session credentials.
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

// NewIssuer constructs an Issuer whose credentials live for ttl.
func NewIssuer(secret string, ttl time.Duration, opts ...Option) *Issuer {
	i := &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// TTL returns the credential lifetime, which is also the cookie max-age.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue mints a credential for identityID.
func (i *Issuer) Issue(identityID string) (Credential, error) {
	now := i.now().UTC()
	exp := now.Add(i.ttl)
	id := uuid.NewString()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        id,
		Subject:   identityID,
		Issuer:    tokenIssuer,
		Audience:  jwt.ClaimStrings{tokenAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Credential{}, fmt.Errorf("sign session: %w", err)
	}
	return Credential{Token: signed, ID: id, ExpiresAt: exp}, nil
}

// Verify checks signature and expiry and returns the claims.
func (i *Issuer) Verify(token string) (Claims, error) {
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
		return Claims{}, ErrInvalid
	}
	if claims.Subject == "" || claims.ID == "" {
		return Claims{}, ErrInvalid
	}
	return claims, nil
}
