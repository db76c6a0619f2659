// Package memory provides an in-process UserStore for tests and local
// development. Single-use consume and read-after-write hold under one mutex.
package memory

import (
	"context"
	"sync"
	"time"

	coursegate "github.com/hakanda/coursegate"
)

// Store is a mutex-guarded UserStore. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	byID    map[string]*coursegate.Identity
	byEmail map[string]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byID:    make(map[string]*coursegate.Identity),
		byEmail: make(map[string]string),
	}
}

// FindByEmail implements coursegate.UserStore.
func (s *Store) FindByEmail(_ context.Context, email string) (*coursegate.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, coursegate.ErrIdentityNotFound
	}
	return clone(s.byID[id]), nil
}

// FindByMagicLinkToken implements coursegate.UserStore.
func (s *Store) FindByMagicLinkToken(_ context.Context, token string) (*coursegate.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity := s.findByToken(token)
	if identity == nil {
		return nil, coursegate.ErrTokenNotFound
	}
	return clone(identity), nil
}

// SetMagicLink implements coursegate.UserStore.
func (s *Store) SetMagicLink(_ context.Context, identityID, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.byID[identityID]
	if !ok {
		return coursegate.ErrIdentityNotFound
	}
	identity.MagicLinkToken = token
	identity.MagicLinkExpiresAt = expiresAt
	return nil
}

// ConsumeMagicLink implements coursegate.UserStore. The whole
// match-check-clear sequence runs under the store mutex, so concurrent
// attempts with the same token yield exactly one success.
func (s *Store) ConsumeMagicLink(_ context.Context, token string, now time.Time) (*coursegate.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity := s.findByToken(token)
	if identity == nil {
		return nil, coursegate.ErrTokenNotFound
	}
	if !now.Before(identity.MagicLinkExpiresAt) {
		return nil, coursegate.ErrTokenExpired
	}

	identity.MagicLinkToken = ""
	identity.MagicLinkExpiresAt = time.Time{}
	identity.LastLogin = now
	return clone(identity), nil
}

// SetPaymentStatus implements coursegate.UserStore.
func (s *Store) SetPaymentStatus(_ context.Context, email string, status coursegate.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return coursegate.ErrIdentityNotFound
	}
	s.byID[id].PaymentStatus = status
	return nil
}

// Upsert implements coursegate.UserStore.
func (s *Store) Upsert(_ context.Context, identity *coursegate.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := clone(identity)
	if prior, ok := s.byID[stored.ID]; ok {
		delete(s.byEmail, prior.Email)
	}
	s.byID[stored.ID] = stored
	s.byEmail[stored.Email] = stored.ID
	return nil
}

func (s *Store) findByToken(token string) *coursegate.Identity {
	if token == "" {
		return nil
	}
	for _, identity := range s.byID {
		if identity.MagicLinkToken == token {
			return identity
		}
	}
	return nil
}

func clone(identity *coursegate.Identity) *coursegate.Identity {
	if identity == nil {
		return nil
	}
	copied := *identity
	return &copied
}
