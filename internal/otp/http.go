package otp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultHTTPTimeout = 15 * time.Second

// HTTPConfig holds credentials for a hosted verification API.
type HTTPConfig struct {
	BaseURL   string
	Account   string
	Token     string
	ServiceID string
	// TTL is the code lifetime enforced by the provider, reported to clients.
	TTL time.Duration
}

// HTTPProvider talks to a hosted verification service that owns code
// generation, delivery and checking. It exposes a start endpoint
// (POST {base}/Services/{service}/Verifications) and a check endpoint
// (POST {base}/Services/{service}/VerificationCheck), both form encoded with
// basic auth.
type HTTPProvider struct {
	cfg        HTTPConfig
	httpClient *http.Client
}

// NewHTTPProvider returns a provider using cfg. A nil client gets a 15s timeout default.
func NewHTTPProvider(cfg HTTPConfig, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPProvider{cfg: cfg, httpClient: client}
}

type verificationResponse struct {
	Status string `json:"status"`
}

// RequestChallenge asks the provider to send a code by SMS.
func (p *HTTPProvider) RequestChallenge(ctx context.Context, phone string) (Delivery, error) {
	if !validDestination(phone) {
		return Delivery{}, ErrInvalidPhoneFormat
	}
	form := url.Values{"To": {phone}, "Channel": {"sms"}}
	status, body, err := p.post(ctx, "Verifications", form)
	if err != nil {
		return Delivery{}, err
	}
	switch {
	case status >= 200 && status < 300:
		return Delivery{ExpiresIn: p.cfg.TTL}, nil
	case status == http.StatusBadRequest:
		return Delivery{}, ErrInvalidPhoneFormat
	default:
		return Delivery{}, fmt.Errorf("%w: start verification status=%d body=%s", ErrProviderUnavailable, status, body)
	}
}

// CheckChallenge asks the provider whether code is the pending one for phone.
func (p *HTTPProvider) CheckChallenge(ctx context.Context, phone, code string) (bool, error) {
	form := url.Values{"To": {phone}, "Code": {code}}
	status, body, err := p.post(ctx, "VerificationCheck", form)
	if err != nil {
		return false, err
	}
	switch {
	case status == http.StatusNotFound || status == http.StatusBadRequest:
		// no pending verification, expired or already approved
		return false, nil
	case status < 200 || status >= 300:
		return false, fmt.Errorf("%w: check verification status=%d body=%s", ErrProviderUnavailable, status, body)
	}
	var resp verificationResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return false, fmt.Errorf("%w: decode check response: %v", ErrProviderUnavailable, err)
	}
	return resp.Status == "approved", nil
}

func (p *HTTPProvider) post(ctx context.Context, endpoint string, form url.Values) (int, string, error) {
	target := fmt.Sprintf("%s/Services/%s/%s", p.cfg.BaseURL, url.PathEscape(p.cfg.ServiceID), endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, "", fmt.Errorf("%w: build request: %v", ErrProviderUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.cfg.Account, p.cfg.Token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return 0, "", fmt.Errorf("%w: read response: %v", ErrProviderUnavailable, err)
	}
	return resp.StatusCode, string(b), nil
}
