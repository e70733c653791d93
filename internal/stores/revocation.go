package stores

import (
	"context"
	"time"
)

// RevocationStore is a denylist of token ids kept until each token would
// have expired on its own.
type RevocationStore struct {
	backend Backend
	now     func() time.Time
}

// NewRevocationStore wraps backend. A nil clock means time.Now.
func NewRevocationStore(backend Backend, now func() time.Time) *RevocationStore {
	if now == nil {
		now = time.Now
	}
	return &RevocationStore{backend: backend, now: now}
}

// Revoke denylists tokenID until expiresAt. Already expired tokens are ignored.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 || tokenID == "" {
		return nil
	}
	if _, err := s.backend.Insert(ctx, tokenID, []byte{1}, ttl); err != nil {
		return wrapBackendError(err)
	}
	return nil
}

// IsRevoked reports whether tokenID is denylisted.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	revoked, err := s.backend.Contains(ctx, tokenID)
	if err != nil {
		return false, wrapBackendError(err)
	}
	return revoked, nil
}
