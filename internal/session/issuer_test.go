package session

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/agrolens/agrolens_auth/internal/verification"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestIssueAndVerify(t *testing.T) {
	issuer := NewIssuer(testSecret, 7*24*time.Hour)

	cred, err := issuer.Issue("identity-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := issuer.Verify(cred.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.IdentityID() != "identity-1" {
		t.Fatalf("expected identity-1, got %s", claims.IdentityID())
	}
	if claims.ID != cred.ID {
		t.Fatalf("expected jti %s, got %s", cred.ID, claims.ID)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	issuer := NewIssuer(testSecret, 72*time.Hour, WithClock(func() time.Time { return now }))

	cred, err := issuer.Issue("identity-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	now = now.Add(73 * time.Hour)
	if _, err := issuer.Verify(cred.Token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyRejectsTampered(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)
	cred, err := issuer.Issue("identity-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	tampered := cred.Token[:len(cred.Token)-2] + "xx"
	if _, err := issuer.Verify(tampered); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if _, err := issuer.Verify(""); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for empty token, got %v", err)
	}
}

func TestVerifyRejectsVerificationProof(t *testing.T) {
	proofs := verification.NewIssuer(testSecret, 15*time.Minute)
	proof, err := proofs.Issue("+911234567890", verification.PurposeSignup)
	if err != nil {
		t.Fatalf("issue proof: %v", err)
	}
	if _, err := NewIssuer(testSecret, time.Hour).Verify(proof.Token); !errors.Is(err, ErrInvalid) {
		t.Fatalf("proof must not be accepted as session, got %v", err)
	}
}

func TestRedisRevocationList(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	list := NewRedisRevocationList(client)
	ctx := context.Background()

	revoked, err := list.IsRevoked(ctx, "jti-1")
	if err != nil || revoked {
		t.Fatalf("expected not revoked, got %v %v", revoked, err)
	}
	if err := list.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err = list.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected revoked, got %v %v", revoked, err)
	}

	mr.FastForward(2 * time.Hour)
	revoked, err = list.IsRevoked(ctx, "jti-1")
	if err != nil || revoked {
		t.Fatalf("expected marker to expire with the credential, got %v %v", revoked, err)
	}
}

func TestMemoryRevocationList(t *testing.T) {
	list := NewMemoryRevocationList()
	ctx := context.Background()
	if err := list.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked, _ := list.IsRevoked(ctx, "jti-1"); !revoked {
		t.Fatalf("expected revoked")
	}
	if revoked, _ := list.IsRevoked(ctx, "jti-2"); revoked {
		t.Fatalf("unexpected revocation")
	}
}
