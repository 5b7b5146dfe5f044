package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agrolens/agrolens_auth/internal/logging"
	"github.com/agrolens/agrolens_auth/internal/notification"
)

const (
	codeKeyPrefix     = "otp:v1:code:"
	attemptsKeyPrefix = "otp:v1:attempts:"
)

// LocalProvider generates codes itself, keeps their hashes in Redis and hands
// delivery to a notifier. One pending code exists per phone number; a new
// request replaces it.
type LocalProvider struct {
	client      *redis.Client
	notifier    notification.Notifier
	ttl         time.Duration
	maxAttempts int
	appName     string
	logger      *slog.Logger
	generate    func() (string, error)
}

// LocalConfig tunes a LocalProvider.
type LocalConfig struct {
	TTL         time.Duration
	MaxAttempts int
	AppName     string
}

// NewLocalProvider builds a Redis-backed provider.
func NewLocalProvider(client *redis.Client, notifier notification.Notifier, cfg LocalConfig, logger *slog.Logger) *LocalProvider {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	return &LocalProvider{
		client:      client,
		notifier:    notifier,
		ttl:         cfg.TTL,
		maxAttempts: cfg.MaxAttempts,
		appName:     cfg.AppName,
		logger:      logger,
		generate:    GenerateCode,
	}
}

// RequestChallenge stores a fresh code and sends it to phone.
func (p *LocalProvider) RequestChallenge(ctx context.Context, phone string) (Delivery, error) {
	if !validDestination(phone) {
		return Delivery{}, ErrInvalidPhoneFormat
	}
	code, err := p.generate()
	if err != nil {
		return Delivery{}, fmt.Errorf("%w: generate code: %v", ErrProviderUnavailable, err)
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, codeKeyPrefix+phone, HashCode(code), p.ttl)
	pipe.Del(ctx, attemptsKeyPrefix+phone)
	if _, err := pipe.Exec(ctx); err != nil {
		return Delivery{}, fmt.Errorf("%w: store code: %v", ErrProviderUnavailable, err)
	}

	msg := notification.Message{
		Kind:        notification.KindOTP,
		Destination: phone,
		Body:        fmt.Sprintf("%s is your %s verification code. It expires in %d minutes.", code, p.appName, int(p.ttl.Minutes())),
	}
	if err := p.notifier.Send(ctx, msg); err != nil {
		p.client.Del(ctx, codeKeyPrefix+phone) // best effort
		return Delivery{}, fmt.Errorf("%w: deliver code: %v", ErrProviderUnavailable, err)
	}
	return Delivery{ExpiresIn: p.ttl}, nil
}

// CheckChallenge approves code when it matches the pending one. A matched
// code is consumed; too many misses discard the pending code.
func (p *LocalProvider) CheckChallenge(ctx context.Context, phone, code string) (bool, error) {
	codeKey := codeKeyPrefix + phone
	attemptsKey := attemptsKeyPrefix + phone

	stored, err := p.client.Get(ctx, codeKey).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: load code: %v", ErrProviderUnavailable, err)
	}

	attempts, err := p.client.Incr(ctx, attemptsKey).Result()
	if err != nil {
		return false, fmt.Errorf("%w: count attempts: %v", ErrProviderUnavailable, err)
	}
	if attempts == 1 {
		p.client.Expire(ctx, attemptsKey, p.ttl)
	}
	if attempts > int64(p.maxAttempts) {
		p.client.Del(ctx, codeKey, attemptsKey)
		if p.logger != nil {
			p.logger.WarnContext(ctx, "otp attempts exhausted", logging.Phone(phone))
		}
		return false, nil
	}

	if !CodeEqual(code, stored) {
		return false, nil
	}
	// Only the caller that deletes the code gets the approval.
	deleted, err := p.client.Del(ctx, codeKey).Result()
	if err != nil {
		return false, fmt.Errorf("%w: consume code: %v", ErrProviderUnavailable, err)
	}
	p.client.Del(ctx, attemptsKey)
	return deleted == 1, nil
}
