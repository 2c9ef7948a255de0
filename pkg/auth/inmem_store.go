package auth

import (
	"context"
	"strings"
	"sync"
)

// InMemCredentialStore implements CredentialStore with a map for testing
type InMemCredentialStore struct {
	mu     sync.RWMutex
	logins map[string]Login
}

func NewInMemCredentialStore() *InMemCredentialStore {
	return &InMemCredentialStore{
		logins: make(map[string]Login),
	}
}

// AddLogin registers or replaces a credential record
func (s *InMemCredentialStore) AddLogin(login Login) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logins[strings.ToLower(login.Email)] = login
}

func (s *InMemCredentialStore) FindLoginByEmail(ctx context.Context, email string) (*Login, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	login, ok := s.logins[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, nil
	}
	return &login, nil
}
