package identity

import (
	"context"
	"sync"
	"time"
)

// memoryRepository keeps identities in process. Uniqueness is checked and
// the insert applied under one lock, mirroring the database constraint.
type memoryRepository struct {
	mu         sync.RWMutex
	byID       map[string]Identity
	byPhone    map[string]string
	byUsername map[string]string
	byEmail    map[string]string
}

// NewMemoryRepository builds an in-memory identity store for tests and local development.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		byID:       make(map[string]Identity),
		byPhone:    make(map[string]string),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

func (r *memoryRepository) Create(_ context.Context, identity Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byPhone[identity.Phone]; exists {
		return &DuplicateError{Field: FieldPhone}
	}
	if identity.Username != "" {
		if _, exists := r.byUsername[identity.Username]; exists {
			return &DuplicateError{Field: FieldUsername}
		}
	}
	if identity.Email != "" {
		if _, exists := r.byEmail[identity.Email]; exists {
			return &DuplicateError{Field: FieldEmail}
		}
	}
	r.byID[identity.ID] = identity
	r.byPhone[identity.Phone] = identity.ID
	if identity.Username != "" {
		r.byUsername[identity.Username] = identity.ID
	}
	if identity.Email != "" {
		r.byEmail[identity.Email] = identity.ID
	}
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identity, ok := r.byID[id]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return identity, nil
}

func (r *memoryRepository) FindByPhone(_ context.Context, phone string) (Identity, error) {
	return r.lookup(r.byPhone, phone)
}

func (r *memoryRepository) FindByUsername(_ context.Context, username string) (Identity, error) {
	return r.lookup(r.byUsername, username)
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (Identity, error) {
	return r.lookup(r.byEmail, email)
}

func (r *memoryRepository) UpdatePasswordHash(_ context.Context, id string, hash []byte, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	identity.PasswordHash = hash
	identity.UpdatedAt = at.UTC()
	r.byID[id] = identity
	return nil
}

// Delete removes an identity. Deletion is an administrative action outside
// the auth flows; tests use it to exercise session invalidation.
func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byPhone, identity.Phone)
	delete(r.byUsername, identity.Username)
	delete(r.byEmail, identity.Email)
	return nil
}

func (r *memoryRepository) lookup(index map[string]string, key string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := index[key]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return r.byID[id], nil
}
