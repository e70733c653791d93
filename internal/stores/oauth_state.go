package stores

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/credkit/internal"
)

// OAuthStateStore issues and consumes anti-replay state tokens for an OAuth
// redirect round trip.
type OAuthStateStore struct {
	backend Backend
	now     func() time.Time
}

// NewOAuthStateStore wraps backend. A nil clock means time.Now.
func NewOAuthStateStore(backend Backend, now func() time.Time) *OAuthStateStore {
	if now == nil {
		now = time.Now
	}
	return &OAuthStateStore{backend: backend, now: now}
}

// Generate returns a new high-entropy state token valid for ttl.
func (s *OAuthStateStore) Generate(ctx context.Context, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("oauth state requires positive ttl")
	}

	token, err := internal.NewOpaqueToken(internal.StateTokenSize)
	if err != nil {
		return "", err
	}

	now := s.now()
	encoded := encodeOAuthStateRecord(&oauthStateRecord{CreatedAt: now, ExpiresAt: now.Add(ttl)})

	inserted, err := s.backend.Insert(ctx, internal.HashSecret(token), encoded, ttl)
	if err != nil {
		return "", wrapBackendError(err)
	}
	if !inserted {
		// 256 bits of entropy; a collision means the random source is broken.
		return "", errors.New("oauth state collision")
	}
	return token, nil
}

// ValidateAndConsume reports whether token was a live state. The token is
// consumed on every call. The error is non-nil only for backend failures, in
// which case the result is false.
func (s *OAuthStateStore) ValidateAndConsume(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	data, found, err := s.backend.Take(ctx, internal.HashSecret(token))
	if err != nil {
		return false, wrapBackendError(err)
	}
	if !found {
		return false, nil
	}

	record, err := decodeOAuthStateRecord(data)
	if err != nil {
		return false, nil
	}
	return !s.now().After(record.ExpiresAt), nil
}
