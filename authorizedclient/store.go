package authorizedclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/jrsteele09/go-obo-blueprints/oauth2"
)

// Store persists authorized clients between calls
type Store interface {
	// Load returns nil, nil when nothing is stored under key
	Load(ctx context.Context, key Key) (*AuthorizedClient, error)
	// Save stores or replaces the entry for client.Key()
	Save(ctx context.Context, client *AuthorizedClient) error
	// Remove is a no-op when nothing is stored under key
	Remove(ctx context.Context, key Key) error
}

// ValidateForSave rejects entries without token expiry information
func ValidateForSave(client *AuthorizedClient) error {
	if !client.hasExpiry() {
		return fmt.Errorf("%w: authorized client must carry a token with an expiry", oauth2.ErrInvalidArgument)
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps authorized clients for the lifetime of the process
type MemoryStore struct {
	clients map[Key]*AuthorizedClient
	lock    sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients: make(map[Key]*AuthorizedClient),
	}
}

func (s *MemoryStore) Load(_ context.Context, key Key) (*AuthorizedClient, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.clients[key], nil
}

func (s *MemoryStore) Save(_ context.Context, client *AuthorizedClient) error {
	if err := ValidateForSave(client); err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.clients[client.Key()] = client
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, key Key) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.clients, key)
	return nil
}

// Len returns the number of stored entries
func (s *MemoryStore) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.clients)
}
