package stores

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/credkit/internal"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

type backendCase struct {
	name string
	make func(t *testing.T, clock *fakeClock) Backend
}

func backendCases() []backendCase {
	return []backendCase{
		{
			name: "memory",
			make: func(t *testing.T, clock *fakeClock) Backend {
				return NewMemoryBackend(WithMemoryClock(clock.Now))
			},
		},
		{
			name: "redis",
			make: func(t *testing.T, clock *fakeClock) Backend {
				_, rdb := newTestRedis(t)
				return NewRedisBackend(rdb, "test")
			},
		},
	}
}

func TestResetCodeGenerateConsumeOnce(t *testing.T) {
	for _, tc := range backendCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			store := NewResetCodeStore(tc.make(t, clock), clock.Now)

			code, err := store.Generate(ctx, "user-1", "a@b.com", 15*time.Minute)
			if err != nil {
				t.Fatalf("Generate error: %v", err)
			}
			if len(code) != ResetCodeDigits || !internal.IsNumeric(code) {
				t.Fatalf("expected 6 digit code, got %q", code)
			}

			record, err := store.ValidateAndConsume(ctx, code)
			if err != nil {
				t.Fatalf("ValidateAndConsume error: %v", err)
			}
			if record.SubjectID != "user-1" || record.Email != "a@b.com" {
				t.Fatalf("unexpected record: %+v", record)
			}
			if !record.ExpiresAt.Equal(record.CreatedAt.Add(15 * time.Minute)) {
				t.Fatalf("unexpected expiry: %+v", record)
			}

			if _, err := store.ValidateAndConsume(ctx, code); !errors.Is(err, ErrInvalidOrExpired) {
				t.Fatalf("expected second consume to fail with ErrInvalidOrExpired, got %v", err)
			}
		})
	}
}

func TestResetCodeExpiredMatchesUnknown(t *testing.T) {
	for _, tc := range backendCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			store := NewResetCodeStore(tc.make(t, clock), clock.Now)

			code, err := store.Generate(ctx, "user-1", "a@b.com", time.Minute)
			if err != nil {
				t.Fatalf("Generate error: %v", err)
			}
			clock.Advance(time.Minute + time.Second)

			_, expiredErr := store.ValidateAndConsume(ctx, code)
			unknown := "000000"
			if unknown == code {
				unknown = "000001"
			}
			_, unknownErr := store.ValidateAndConsume(ctx, unknown)

			if !errors.Is(expiredErr, ErrInvalidOrExpired) || !errors.Is(unknownErr, ErrInvalidOrExpired) {
				t.Fatalf("expected ErrInvalidOrExpired for both, got expired=%v unknown=%v", expiredErr, unknownErr)
			}
			if expiredErr.Error() != unknownErr.Error() {
				t.Fatalf("expected identical errors, got %q vs %q", expiredErr, unknownErr)
			}
		})
	}
}

func TestResetCodeValidAtExactExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewResetCodeStore(NewMemoryBackend(WithMemoryClock(clock.Now)), clock.Now)

	code, err := store.Generate(ctx, "user-1", "a@b.com", time.Minute)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	clock.Advance(time.Minute)
	if _, err := store.ValidateAndConsume(ctx, code); err != nil {
		t.Fatalf("expected code valid at exact expiry, got %v", err)
	}
}

func TestResetCodeRejectsMalformedWithoutBackend(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewResetCodeStore(failingBackend{}, clock.Now)

	for _, code := range []string{"", "12345", "1234567", "12a456", " 12345"} {
		if _, err := store.ValidateAndConsume(ctx, code); !errors.Is(err, ErrInvalidOrExpired) {
			t.Fatalf("expected ErrInvalidOrExpired for %q, got %v", code, err)
		}
	}
}

func TestResetCodeConcurrentConsumeExactlyOnce(t *testing.T) {
	for _, tc := range backendCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			store := NewResetCodeStore(tc.make(t, clock), clock.Now)

			code, err := store.Generate(ctx, "user-1", "a@b.com", time.Minute)
			if err != nil {
				t.Fatalf("Generate error: %v", err)
			}

			const workers = 32
			var (
				wg        sync.WaitGroup
				successes atomic.Int32
				failures  atomic.Int32
				start     = make(chan struct{})
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					_, err := store.ValidateAndConsume(ctx, code)
					switch {
					case err == nil:
						successes.Add(1)
					case errors.Is(err, ErrInvalidOrExpired):
						failures.Add(1)
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			close(start)
			wg.Wait()

			if successes.Load() != 1 || failures.Load() != workers-1 {
				t.Fatalf("expected 1 success and %d failures, got %d and %d", workers-1, successes.Load(), failures.Load())
			}
		})
	}
}

// collidingBackend refuses the first n inserts to force regeneration.
type collidingBackend struct {
	*MemoryBackend
	refuse  int
	inserts int
}

func (c *collidingBackend) Insert(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.inserts++
	if c.inserts <= c.refuse {
		return false, nil
	}
	return c.MemoryBackend.Insert(ctx, key, value, ttl)
}

func TestResetCodeRegeneratesOnCollision(t *testing.T) {
	ctx := context.Background()
	backend := &collidingBackend{MemoryBackend: NewMemoryBackend(), refuse: 3}
	store := NewResetCodeStore(backend, nil)

	code, err := store.Generate(ctx, "user-1", "a@b.com", time.Minute)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if backend.inserts != 4 {
		t.Fatalf("expected 4 insert attempts, got %d", backend.inserts)
	}
	if _, err := store.ValidateAndConsume(ctx, code); err != nil {
		t.Fatalf("ValidateAndConsume error: %v", err)
	}

	exhausted := &collidingBackend{MemoryBackend: NewMemoryBackend(), refuse: maxGenerateAttempts}
	if _, err := NewResetCodeStore(exhausted, nil).Generate(ctx, "user-1", "a@b.com", time.Minute); !errors.Is(err, ErrCodeSpaceExhausted) {
		t.Fatalf("expected ErrCodeSpaceExhausted, got %v", err)
	}
}

type failingBackend struct{}

func (failingBackend) Insert(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, errors.New("boom")
}

func (failingBackend) Take(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("boom")
}

func (failingBackend) Contains(context.Context, string) (bool, error) {
	return false, errors.New("boom")
}

func TestBackendFailuresWrapUnavailable(t *testing.T) {
	ctx := context.Background()
	codes := NewResetCodeStore(failingBackend{}, nil)
	if _, err := codes.Generate(ctx, "user-1", "a@b.com", time.Minute); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable from Generate, got %v", err)
	}
	if _, err := codes.ValidateAndConsume(ctx, "123456"); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable from ValidateAndConsume, got %v", err)
	}

	states := NewOAuthStateStore(failingBackend{}, nil)
	ok, err := states.ValidateAndConsume(ctx, "state")
	if ok || !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected false and ErrBackendUnavailable, got %v %v", ok, err)
	}
}

func TestRedisBackendUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	store := NewResetCodeStore(NewRedisBackend(rdb, "test"), nil)
	if _, err := store.Generate(context.Background(), "user-1", "a@b.com", time.Minute); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestRedisKeysAreDigests(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewResetCodeStore(NewRedisBackend(rdb, "ckrc"), nil)

	code, err := store.Generate(context.Background(), "user-1", "a@b.com", time.Minute)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected one key, got %v", keys)
	}
	if keys[0] != "ckrc:"+internal.HashSecret(code) {
		t.Fatalf("unexpected key %q", keys[0])
	}
	if ttl := mr.TTL(keys[0]); ttl != time.Minute {
		t.Fatalf("expected one minute ttl, got %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := store.ValidateAndConsume(context.Background(), code); !errors.Is(err, ErrInvalidOrExpired) {
		t.Fatalf("expected redis-expired code to fail, got %v", err)
	}
}

func TestOAuthStateSingleUse(t *testing.T) {
	for _, tc := range backendCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			store := NewOAuthStateStore(tc.make(t, clock), clock.Now)

			state, err := store.Generate(ctx, 10*time.Minute)
			if err != nil {
				t.Fatalf("Generate error: %v", err)
			}

			ok, err := store.ValidateAndConsume(ctx, state)
			if err != nil || !ok {
				t.Fatalf("expected first validation to succeed, got %v %v", ok, err)
			}
			for i := 0; i < 3; i++ {
				ok, err = store.ValidateAndConsume(ctx, state)
				if err != nil || ok {
					t.Fatalf("expected repeat validation to fail, got %v %v", ok, err)
				}
			}

			ok, err = store.ValidateAndConsume(ctx, "unknown-state")
			if err != nil || ok {
				t.Fatalf("expected unknown state to fail, got %v %v", ok, err)
			}
		})
	}
}

func TestOAuthStateExpiredIsConsumed(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	backend := NewMemoryBackend(WithMemoryClock(clock.Now))
	store := NewOAuthStateStore(backend, clock.Now)

	state, err := store.Generate(ctx, time.Minute)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	clock.Advance(2 * time.Minute)

	ok, err := store.ValidateAndConsume(ctx, state)
	if err != nil || ok {
		t.Fatalf("expected expired state to fail, got %v %v", ok, err)
	}
	if backend.Len() != 0 {
		t.Fatalf("expected expired state to leave no trace, %d entries remain", backend.Len())
	}
}

func TestOAuthStateConcurrentValidateExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := NewOAuthStateStore(NewMemoryBackend(), nil)

	state, err := store.Generate(ctx, time.Minute)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.ValidateAndConsume(ctx, state); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
}

func TestRevocationStore(t *testing.T) {
	for _, tc := range backendCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			store := NewRevocationStore(tc.make(t, clock), clock.Now)

			if err := store.Revoke(ctx, "jti-1", clock.Now().Add(time.Minute)); err != nil {
				t.Fatalf("Revoke error: %v", err)
			}
			if err := store.Revoke(ctx, "jti-1", clock.Now().Add(time.Minute)); err != nil {
				t.Fatalf("repeat Revoke error: %v", err)
			}
			if err := store.Revoke(ctx, "jti-old", clock.Now().Add(-time.Minute)); err != nil {
				t.Fatalf("Revoke expired error: %v", err)
			}

			revoked, err := store.IsRevoked(ctx, "jti-1")
			if err != nil || !revoked {
				t.Fatalf("expected jti-1 revoked, got %v %v", revoked, err)
			}
			revoked, err = store.IsRevoked(ctx, "jti-old")
			if err != nil || revoked {
				t.Fatalf("expected expired token to be ignored, got %v %v", revoked, err)
			}
		})
	}
}

func TestMemoryBackendSweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	backend := NewMemoryBackend(WithMemoryClock(clock.Now))

	for _, key := range []string{"a", "b", "c"} {
		if _, err := backend.Insert(ctx, key, []byte(key), time.Minute); err != nil {
			t.Fatalf("Insert error: %v", err)
		}
	}
	if _, err := backend.Insert(ctx, "d", []byte("d"), time.Hour); err != nil {
		t.Fatalf("Insert error: %v", err)
	}

	clock.Advance(2 * time.Minute)
	if removed := backend.Sweep(); removed != 3 {
		t.Fatalf("expected 3 swept entries, got %d", removed)
	}
	if backend.Len() != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", backend.Len())
	}
}

func TestMemoryBackendInsertReplacesExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	backend := NewMemoryBackend(WithMemoryClock(clock.Now))

	ok, _ := backend.Insert(ctx, "k", []byte("v1"), time.Minute)
	if !ok {
		t.Fatal("expected first insert to succeed")
	}
	ok, _ = backend.Insert(ctx, "k", []byte("v2"), time.Minute)
	if ok {
		t.Fatal("expected insert over live entry to fail")
	}

	clock.Advance(2 * time.Minute)
	ok, _ = backend.Insert(ctx, "k", []byte("v3"), time.Minute)
	if !ok {
		t.Fatal("expected insert over expired entry to succeed")
	}
	value, found, _ := backend.Take(ctx, "k")
	if !found || string(value) != "v3" {
		t.Fatalf("expected v3, got %q %v", value, found)
	}
}

func TestMemoryBackendSweeperStops(t *testing.T) {
	backend := NewMemoryBackend()
	backend.StartSweeper(time.Millisecond)
	backend.StartSweeper(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	backend.Close()
	backend.Close()
}

func TestRecordDecodeRejectsCorruption(t *testing.T) {
	encoded, err := encodeResetCodeRecord(&ResetCodeRecord{SubjectID: "u", Email: "e", CreatedAt: time.Unix(1, 0), ExpiresAt: time.Unix(2, 0)})
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	if _, err := decodeResetCodeRecord(encoded); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	corrupt := [][]byte{
		nil,
		{9},
		encoded[:len(encoded)-1],
		append(append([]byte{}, encoded...), 0),
	}
	for i, data := range corrupt {
		if _, err := decodeResetCodeRecord(data); err == nil {
			t.Fatalf("case %d: expected decode failure", i)
		}
	}
}
