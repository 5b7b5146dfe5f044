package verification

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const redeemedKeyPrefix = "proof:used:"

// Redeemer marks proofs as consumed so each one completes at most one flow.
type Redeemer interface {
	// Redeem atomically claims the proof id until its expiry. It fails with
	// ErrAlreadyRedeemed when the id was claimed before.
	Redeem(ctx context.Context, id string, until time.Time) error
	// Release drops a claim whose flow failed for infrastructure reasons.
	Release(ctx context.Context, id string) error
}

// RedisRedeemer keeps redemption markers in Redis so every instance sees them.
type RedisRedeemer struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisRedeemer builds a Redis-backed redeemer.
func NewRedisRedeemer(client *redis.Client) *RedisRedeemer {
	return &RedisRedeemer{client: client, now: time.Now}
}

// Redeem uses SET NX with the proof's remaining lifetime as TTL.
func (r *RedisRedeemer) Redeem(ctx context.Context, id string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return ErrExpired
	}
	ok, err := r.client.SetNX(ctx, redeemedKeyPrefix+id, "1", ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyRedeemed
	}
	return nil
}

// Release removes the marker for id.
func (r *RedisRedeemer) Release(ctx context.Context, id string) error {
	return r.client.Del(ctx, redeemedKeyPrefix+id).Err()
}

// MemoryRedeemer is a single-process Redeemer for tests and development.
type MemoryRedeemer struct {
	mu   sync.Mutex
	used map[string]time.Time
	now  func() time.Time
}

// NewMemoryRedeemer builds an in-memory redeemer.
func NewMemoryRedeemer() *MemoryRedeemer {
	return &MemoryRedeemer{used: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryRedeemer) Redeem(_ context.Context, id string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if !until.After(now) {
		return ErrExpired
	}
	for key, exp := range m.used {
		if !exp.After(now) {
			delete(m.used, key)
		}
	}
	if _, ok := m.used[id]; ok {
		return ErrAlreadyRedeemed
	}
	m.used[id] = until
	return nil
}

func (m *MemoryRedeemer) Release(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.used, id)
	return nil
}
