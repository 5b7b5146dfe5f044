package otp

import (
	"context"
	"sync"
	"time"
)

// StaticGateway approves a fixed code for every phone that requested a
// challenge. It backs end-to-end tests of the auth flows.
type StaticGateway struct {
	Code string
	TTL  time.Duration
	// Err, when set, fails every RequestChallenge.
	Err error

	mu      sync.Mutex
	pending map[string]bool
}

// NewStaticGateway returns a gateway that accepts code.
func NewStaticGateway(code string) *StaticGateway {
	return &StaticGateway{Code: code, TTL: 10 * time.Minute, pending: make(map[string]bool)}
}

func (g *StaticGateway) RequestChallenge(_ context.Context, phone string) (Delivery, error) {
	if g.Err != nil {
		return Delivery{}, g.Err
	}
	if !validDestination(phone) {
		return Delivery{}, ErrInvalidPhoneFormat
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending[phone] = true
	return Delivery{ExpiresIn: g.TTL}, nil
}

func (g *StaticGateway) CheckChallenge(_ context.Context, phone, code string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.pending[phone] || code != g.Code {
		return false, nil
	}
	delete(g.pending, phone)
	return true, nil
}
