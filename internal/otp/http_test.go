package otp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newVerifyServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/Services/VA123/Verifications", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "acct" || pass != "token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("To") == "+15005550001" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("To") == "+15005550009" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status":"pending"}`))
	})
	mux.HandleFunc("/Services/VA123/VerificationCheck", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		status := "pending"
		if r.PostForm.Get("Code") == "123456" {
			status = "approved"
		}
		_, _ = w.Write([]byte(`{"status":"` + status + `"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPProvider(t *testing.T) {
	srv := newVerifyServer(t)
	p := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL + "/", Account: "acct", Token: "token", ServiceID: "VA123"}, srv.Client())
	ctx := context.Background()

	if _, err := p.RequestChallenge(ctx, "+911234567890"); err != nil {
		t.Fatalf("request: %v", err)
	}
	ok, err := p.CheckChallenge(ctx, "+911234567890", "123456")
	if err != nil || !ok {
		t.Fatalf("expected approval: %v %v", ok, err)
	}
	ok, err = p.CheckChallenge(ctx, "+911234567890", "000000")
	if err != nil || ok {
		t.Fatalf("expected rejection: %v %v", ok, err)
	}
}

func TestHTTPProviderErrors(t *testing.T) {
	srv := newVerifyServer(t)
	p := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL, Account: "acct", Token: "token", ServiceID: "VA123"}, srv.Client())
	ctx := context.Background()

	if _, err := p.RequestChallenge(ctx, "+15005550001"); !errors.Is(err, ErrInvalidPhoneFormat) {
		t.Fatalf("expected ErrInvalidPhoneFormat, got %v", err)
	}
	if _, err := p.RequestChallenge(ctx, "+15005550009"); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}

	bad := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL, Account: "acct", Token: "wrong", ServiceID: "VA123"}, srv.Client())
	if _, err := bad.RequestChallenge(ctx, "+911234567890"); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable for rejected credentials, got %v", err)
	}

	srv.Close()
	if _, err := p.RequestChallenge(ctx, "+911234567890"); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable when unreachable, got %v", err)
	}
}
