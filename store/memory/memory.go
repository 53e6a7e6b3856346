// Package memory is an in-process user repository for tests and demos.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/internal/ids"
)

// Store keeps users in a map guarded by a RWMutex. Returned users are copies.
type Store struct {
	mu    sync.RWMutex
	users map[string]*portalauth.User
}

var _ portalauth.Repository = (*Store)(nil)

func New() *Store {
	return &Store{users: make(map[string]*portalauth.User)}
}

func (s *Store) find(match func(*portalauth.User) bool) *portalauth.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			return u.Clone()
		}
	}
	return nil
}

func (s *Store) FindByUsername(_ context.Context, username string) (*portalauth.User, error) {
	return s.find(func(u *portalauth.User) bool { return u.Username == username }), nil
}

func (s *Store) FindByEmail(_ context.Context, email string) (*portalauth.User, error) {
	return s.find(func(u *portalauth.User) bool { return u.Email == email }), nil
}

// FindAll returns users ordered by ID, which is creation order.
func (s *Store) FindAll(context.Context) ([]portalauth.User, error) {
	s.mu.RLock()
	out := make([]portalauth.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Save inserts or replaces u, assigning an ID on first save. A username or
// email held by another record is rejected with ErrUsernameExists or
// ErrEmailExists, and u is left untouched.
func (s *Store) Save(_ context.Context, u *portalauth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, other := range s.users {
		if id == u.ID {
			continue
		}
		if other.Username == u.Username {
			return portalauth.ErrUsernameExists
		}
		if other.Email == u.Email {
			return portalauth.ErrEmailExists
		}
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	s.users[u.ID] = u.Clone()
	return nil
}

func (s *Store) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return portalauth.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}
