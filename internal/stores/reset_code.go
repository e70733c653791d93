package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/credkit/internal"
)

const (
	// ResetCodeDigits is the length of generated reset codes.
	ResetCodeDigits = 6

	maxGenerateAttempts = 16
)

// ResetCodeStore issues and consumes single-use numeric reset codes.
type ResetCodeStore struct {
	backend Backend
	now     func() time.Time
}

// NewResetCodeStore wraps backend. A nil clock means time.Now.
func NewResetCodeStore(backend Backend, now func() time.Time) *ResetCodeStore {
	if now == nil {
		now = time.Now
	}
	return &ResetCodeStore{backend: backend, now: now}
}

// Generate returns a fresh code bound to subjectID and email for ttl.
//
// Codes already pending are never reissued; on collision a new code is drawn.
func (s *ResetCodeStore) Generate(ctx context.Context, subjectID, email string, ttl time.Duration) (string, error) {
	if subjectID == "" || ttl <= 0 {
		return "", errors.New("reset code requires subject and positive ttl")
	}

	now := s.now()
	encoded, err := encodeResetCodeRecord(&ResetCodeRecord{
		SubjectID: subjectID,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code, err := internal.NewOTP(ResetCodeDigits)
		if err != nil {
			return "", err
		}

		inserted, err := s.backend.Insert(ctx, internal.HashSecret(code), encoded, ttl)
		if err != nil {
			return "", wrapBackendError(err)
		}
		if inserted {
			return code, nil
		}
	}

	return "", ErrCodeSpaceExhausted
}

// ValidateAndConsume removes code and returns its record if it was pending.
//
// Unknown, expired and already used codes all fail with ErrInvalidOrExpired.
func (s *ResetCodeStore) ValidateAndConsume(ctx context.Context, code string) (*ResetCodeRecord, error) {
	if len(code) != ResetCodeDigits || !internal.IsNumeric(code) {
		return nil, ErrInvalidOrExpired
	}

	data, found, err := s.backend.Take(ctx, internal.HashSecret(code))
	if err != nil {
		return nil, wrapBackendError(err)
	}
	if !found {
		return nil, ErrInvalidOrExpired
	}

	record, err := decodeResetCodeRecord(data)
	if err != nil {
		return nil, ErrInvalidOrExpired
	}
	if s.now().After(record.ExpiresAt) {
		return nil, ErrInvalidOrExpired
	}

	return record, nil
}

func wrapBackendError(err error) error {
	if errors.Is(err, ErrBackendUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}
