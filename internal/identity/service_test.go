package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/agrolens/agrolens_auth/internal/logging"
	"github.com/agrolens/agrolens_auth/internal/security"
	"github.com/agrolens/agrolens_auth/internal/verification"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	testPhone  = "+911234567890"
)

type fixture struct {
	repo     Repository
	svc      *Service
	proofs   *verification.Issuer
	redeemer *verification.MemoryRedeemer
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	return newFixtureWithRepo(t, NewMemoryRepository())
}

func newFixtureWithRepo(t *testing.T, repo Repository) fixture {
	t.Helper()
	proofs := verification.NewIssuer(testSecret, 15*time.Minute)
	redeemer := verification.NewMemoryRedeemer()
	svc := NewService(repo, security.NewHasher(bcrypt.MinCost), proofs, redeemer,
		Policy{MinPasswordLength: 6, DefaultCountry: "+91"}, logging.Discard())
	return fixture{repo: repo, svc: svc, proofs: proofs, redeemer: redeemer}
}

func (f fixture) proof(t *testing.T, phone string, purpose verification.Purpose) verification.Proof {
	t.Helper()
	p, err := f.proofs.Issue(phone, purpose)
	if err != nil {
		t.Fatalf("issue proof: %v", err)
	}
	return p
}

func (f fixture) register(t *testing.T, in RegisterInput) Identity {
	t.Helper()
	identity, err := f.svc.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return identity
}

func TestRegisterAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	identity := f.register(t, RegisterInput{
		DisplayName:       "Asha Patil",
		Phone:             "1234567890",
		Password:          "secret1",
		VerificationToken: f.proof(t, testPhone, verification.PurposeSignup).Token,
		Username:          "asha",
		Email:             "Asha@Example.com",
	})

	if identity.Phone != testPhone {
		t.Fatalf("expected canonical phone, got %s", identity.Phone)
	}
	if !identity.Verified {
		t.Fatalf("registered identity must be verified")
	}
	if identity.Email != "asha@example.com" {
		t.Fatalf("expected lower-cased email, got %s", identity.Email)
	}
	if string(identity.PasswordHash) == "secret1" {
		t.Fatalf("password stored in plaintext")
	}

	for _, id := range []LoginID{{Phone: testPhone}, {Phone: "1234567890"}, {Username: "asha"}} {
		authed, err := f.svc.Authenticate(ctx, id, "secret1")
		if err != nil {
			t.Fatalf("authenticate %+v: %v", id, err)
		}
		if authed.ID != identity.ID {
			t.Fatalf("authenticated wrong identity")
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	token := f.proof(t, testPhone, verification.PurposeSignup).Token
	base := RegisterInput{DisplayName: "Asha", Phone: testPhone, Password: "secret1", VerificationToken: token}

	cases := map[string]struct {
		mutate func(*RegisterInput)
		field  string
	}{
		"missing name":     {func(in *RegisterInput) { in.DisplayName = "  " }, "name"},
		"missing phone":    {func(in *RegisterInput) { in.Phone = "" }, FieldPhone},
		"missing password": {func(in *RegisterInput) { in.Password = "" }, "password"},
		"missing token":    {func(in *RegisterInput) { in.VerificationToken = "" }, "verificationToken"},
		"bad phone":        {func(in *RegisterInput) { in.Phone = "12" }, FieldPhone},
		"bad username":     {func(in *RegisterInput) { in.Username = "a b" }, FieldUsername},
		"bad email":        {func(in *RegisterInput) { in.Email = "not-an-email" }, FieldEmail},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := base
			tc.mutate(&in)
			_, err := f.svc.Register(context.Background(), in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, verr.Field)
			}
		})
	}

	weak := base
	weak.Password = "12345"
	if _, err := f.svc.Register(context.Background(), weak); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestRegisterRejectsPasswordResetProof(t *testing.T) {
	f := newFixture(t)
	for _, phone := range []string{testPhone, "+919999999999"} {
		_, err := f.svc.Register(context.Background(), RegisterInput{
			DisplayName:       "Asha",
			Phone:             testPhone,
			Password:          "secret1",
			VerificationToken: f.proof(t, phone, verification.PurposePasswordReset).Token,
		})
		if !errors.Is(err, ErrVerificationFailed) {
			t.Fatalf("expected ErrVerificationFailed, got %v", err)
		}
	}
	if _, err := f.repo.FindByPhone(context.Background(), testPhone); !errors.Is(err, ErrNotFound) {
		t.Fatalf("failed verification must not touch the store")
	}
}

func TestRegisterRejectsProofForOtherPhone(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(context.Background(), RegisterInput{
		DisplayName:       "Asha",
		Phone:             testPhone,
		Password:          "secret1",
		VerificationToken: f.proof(t, "+919999999999", verification.PurposeSignup).Token,
	})
	if !errors.Is(err, ErrVerificationFailed) || !errors.Is(err, verification.ErrPhoneMismatch) {
		t.Fatalf("expected phone mismatch verification failure, got %v", err)
	}
}

func TestRegisterDuplicateFields(t *testing.T) {
	f := newFixture(t)
	f.register(t, RegisterInput{
		DisplayName:       "Asha",
		Phone:             testPhone,
		Password:          "secret1",
		VerificationToken: f.proof(t, testPhone, verification.PurposeSignup).Token,
		Username:          "asha",
		Email:             "asha@example.com",
	})

	cases := []struct {
		phone, username, email, field string
	}{
		{testPhone, "", "", FieldPhone},
		{"+919999999999", "asha", "", FieldUsername},
		{"+919999999998", "", "ASHA@example.com", FieldEmail},
	}
	for _, tc := range cases {
		_, err := f.svc.Register(context.Background(), RegisterInput{
			DisplayName:       "Other",
			Phone:             tc.phone,
			Password:          "secret1",
			VerificationToken: f.proof(t, tc.phone, verification.PurposeSignup).Token,
			Username:          tc.username,
			Email:             tc.email,
		})
		var dup *DuplicateError
		if !errors.As(err, &dup) || dup.Field != tc.field {
			t.Fatalf("expected duplicate %s, got %v", tc.field, err)
		}
	}
}

func TestRegisterConcurrentSamePhone(t *testing.T) {
	f := newFixture(t)
	const attempts = 8

	tokens := make([]string, attempts)
	for i := range tokens {
		tokens[i] = f.proof(t, testPhone, verification.PurposeSignup).Token
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			_, err := f.svc.Register(context.Background(), RegisterInput{
				DisplayName: "Asha", Phone: testPhone, Password: "secret1", VerificationToken: token,
			})
			mu.Lock()
			defer mu.Unlock()
			var dup *DuplicateError
			switch {
			case err == nil:
				successes++
			case errors.As(err, &dup) && dup.Field == FieldPhone:
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(tokens[i])
	}
	wg.Wait()

	if successes != 1 || dupes != attempts-1 {
		t.Fatalf("expected exactly one success, got %d successes and %d duplicates", successes, dupes)
	}
}

// raceRepository hides existing identities from the advisory lookups so the
// insert's uniqueness check is the one that trips.
type raceRepository struct {
	Repository
}

func (r raceRepository) FindByPhone(context.Context, string) (Identity, error) {
	return Identity{}, ErrNotFound
}

func TestRegisterInsertConflictIsDuplicate(t *testing.T) {
	f := newFixtureWithRepo(t, raceRepository{NewMemoryRepository()})
	f.register(t, RegisterInput{
		DisplayName: "Asha", Phone: testPhone, Password: "secret1",
		VerificationToken: f.proof(t, testPhone, verification.PurposeSignup).Token,
	})

	proof := f.proof(t, testPhone, verification.PurposeSignup)
	_, err := f.svc.Register(context.Background(), RegisterInput{
		DisplayName: "Asha", Phone: testPhone, Password: "secret1", VerificationToken: proof.Token,
	})
	var dup *DuplicateError
	if !errors.As(err, &dup) || dup.Field != FieldPhone {
		t.Fatalf("expected duplicate phone from insert, got %v", err)
	}
	err = f.redeemer.Redeem(context.Background(), proof.ID, proof.ExpiresAt)
	if !errors.Is(err, verification.ErrAlreadyRedeemed) {
		t.Fatalf("proof must stay redeemed after a duplicate insert, got %v", err)
	}
}

type failingRepository struct {
	Repository
}

func (failingRepository) Create(context.Context, Identity) error {
	return errors.New("connection reset")
}

func TestRegisterStoreUnavailable(t *testing.T) {
	f := newFixtureWithRepo(t, failingRepository{NewMemoryRepository()})
	proof := f.proof(t, testPhone, verification.PurposeSignup)
	_, err := f.svc.Register(context.Background(), RegisterInput{
		DisplayName: "Asha", Phone: testPhone, Password: "secret1",
		VerificationToken: proof.Token,
	})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if err := f.redeemer.Redeem(context.Background(), proof.ID, proof.ExpiresAt); err != nil {
		t.Fatalf("proof should be released after a store failure: %v", err)
	}
}

func TestAuthenticateInvalidCredentialsIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.register(t, RegisterInput{
		DisplayName: "Asha", Phone: testPhone, Password: "secret1", Username: "asha",
		VerificationToken: f.proof(t, testPhone, verification.PurposeSignup).Token,
	})
	ctx := context.Background()

	_, wrongPassword := f.svc.Authenticate(ctx, LoginID{Phone: testPhone}, "wrong-password")
	_, unknownPhone := f.svc.Authenticate(ctx, LoginID{Phone: "+919999999999"}, "secret1")
	_, unknownUser := f.svc.Authenticate(ctx, LoginID{Username: "nobody"}, "secret1")
	_, badPhone := f.svc.Authenticate(ctx, LoginID{Phone: "asha"}, "secret1")

	for _, err := range []error{wrongPassword, unknownPhone, unknownUser, badPhone} {
		if err != ErrInvalidCredentials {
			t.Fatalf("expected bare ErrInvalidCredentials, got %v", err)
		}
	}
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, RegisterInput{
		DisplayName: "Asha", Phone: testPhone, Password: "secret1",
		VerificationToken: f.proof(t, testPhone, verification.PurposeSignup).Token,
	})

	signupProof := f.proof(t, testPhone, verification.PurposeSignup)
	if err := f.svc.ResetPassword(ctx, testPhone, signupProof.Token, "newsecret"); !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("signup proof must not reset passwords, got %v", err)
	}

	proof := f.proof(t, testPhone, verification.PurposePasswordReset)
	if err := f.svc.ResetPassword(ctx, testPhone, proof.Token, "newsecret"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, LoginID{Phone: testPhone}, "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, LoginID{Phone: testPhone}, "newsecret"); err != nil {
		t.Fatalf("new password: %v", err)
	}

	if err := f.svc.ResetPassword(ctx, testPhone, proof.Token, "anothersecret"); !errors.Is(err, verification.ErrAlreadyRedeemed) {
		t.Fatalf("replayed proof must fail, got %v", err)
	}
}

func TestResetPasswordUnknownPhone(t *testing.T) {
	f := newFixture(t)
	proof := f.proof(t, testPhone, verification.PurposePasswordReset)
	if err := f.svc.ResetPassword(context.Background(), testPhone, proof.Token, "newsecret"); !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
}

func TestAuthenticateUsernameDoesNotMatchPhone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.register(t, RegisterInput{
		DisplayName: "Asha", Phone: "+919876543210", Password: "secret1",
		VerificationToken: f.proof(t, "+919876543210", verification.PurposeSignup).Token,
	})
	named := f.register(t, RegisterInput{
		DisplayName: "Ravi", Phone: "+911111111111", Password: "secret2", Username: "9876543210",
		VerificationToken: f.proof(t, "+911111111111", verification.PurposeSignup).Token,
	})

	got, err := f.svc.Authenticate(ctx, LoginID{Username: "9876543210"}, "secret2")
	if err != nil {
		t.Fatalf("authenticate by username: %v", err)
	}
	if got.ID != named.ID {
		t.Fatalf("username login resolved to %s, want %s", got.Phone, named.Phone)
	}
	if _, err := f.svc.Authenticate(ctx, LoginID{Username: "9876543210"}, "secret1"); err != ErrInvalidCredentials {
		t.Fatalf("phone owner's password must not unlock the username account, got %v", err)
	}

	got, err = f.svc.Authenticate(ctx, LoginID{Phone: "9876543210"}, "secret1")
	if err != nil {
		t.Fatalf("authenticate by phone: %v", err)
	}
	if got.ID != owner.ID {
		t.Fatalf("phone login resolved to %s, want %s", got.Phone, owner.Phone)
	}
}
