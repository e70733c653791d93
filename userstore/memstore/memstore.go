// Package memstore is an in-memory credkit.UserProvider.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/credkit"
	"github.com/google/uuid"
)

// Store keeps user records in a map guarded by a RWMutex.
type Store struct {
	mu      sync.RWMutex
	users   map[string]credkit.UserRecord
	byEmail map[string]string
	now     func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:   make(map[string]credkit.UserRecord),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (credkit.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return credkit.UserRecord{}, credkit.ErrUserNotFound
	}
	return s.users[id], nil
}

func (s *Store) GetUserByID(_ context.Context, userID string) (credkit.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return credkit.UserRecord{}, credkit.ErrUserNotFound
	}
	return user, nil
}

// CreateUser assigns a random UUID. Emails are unique case-insensitively.
func (s *Store) CreateUser(_ context.Context, input credkit.CreateUserInput) (credkit.UserRecord, error) {
	email := strings.ToLower(input.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return credkit.UserRecord{}, credkit.ErrEmailTaken
	}

	user := credkit.UserRecord{
		UserID:       uuid.NewString(),
		Email:        email,
		PasswordHash: input.PasswordHash,
		Profile:      input.Profile,
		CreatedAt:    s.now().UTC(),
	}
	s.users[user.UserID] = user
	s.byEmail[email] = user.UserID
	return user, nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, userID string, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return credkit.ErrUserNotFound
	}
	user.PasswordHash = newHash
	s.users[userID] = user
	return nil
}

// Delete removes a user. Unknown ids are ignored.
func (s *Store) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.users[userID]; ok {
		delete(s.byEmail, user.Email)
		delete(s.users, userID)
	}
}

// Len returns the number of stored users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

var _ credkit.UserProvider = (*Store)(nil)
