package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "session:revoked:"

// RevocationList records credentials that must be rejected before their natural expiry.
type RevocationList interface {
	Revoke(ctx context.Context, id string, until time.Time) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

// RedisRevocationList stores revoked credential ids with a TTL matching the credential expiry.
type RedisRevocationList struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisRevocationList constructs a Redis-backed revocation list.
func NewRedisRevocationList(client *redis.Client) *RedisRevocationList {
	return &RedisRevocationList{client: client, now: time.Now}
}

// Revoke marks id revoked until the given time. Already-expired credentials are ignored.
func (l *RedisRevocationList) Revoke(ctx context.Context, id string, until time.Time) error {
	ttl := until.Sub(l.now())
	if id == "" || ttl <= 0 {
		return nil
	}
	return l.client.Set(ctx, revokedKeyPrefix+id, "1", ttl).Err()
}

// IsRevoked reports whether id is in the list.
func (l *RedisRevocationList) IsRevoked(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	_, err := l.client.Get(ctx, revokedKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MemoryRevocationList is a single-process RevocationList.
type MemoryRevocationList struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocationList constructs an in-memory revocation list.
func NewMemoryRevocationList() *MemoryRevocationList {
	return &MemoryRevocationList{revoked: make(map[string]time.Time), now: time.Now}
}

func (l *MemoryRevocationList) Revoke(_ context.Context, id string, until time.Time) error {
	if id == "" || !until.After(l.now()) {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked[id] = until
	return nil
}

func (l *MemoryRevocationList) IsRevoked(_ context.Context, id string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	until, ok := l.revoked[id]
	return ok && until.After(l.now()), nil
}
