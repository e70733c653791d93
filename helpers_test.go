package credkit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testSecret = "0123456789abcdef0123456789abcdef"

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

type mockUserProvider struct {
	mu      sync.Mutex
	users   map[string]UserRecord
	byEmail map[string]string
	nextID  int

	failLookup error
	failUpdate error
	updates    int
}

func newMockUserProvider() *mockUserProvider {
	return &mockUserProvider{
		users:   map[string]UserRecord{},
		byEmail: map[string]string{},
	}
}

func (m *mockUserProvider) GetUserByEmail(_ context.Context, email string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLookup != nil {
		return UserRecord{}, m.failLookup
	}
	id, ok := m.byEmail[email]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return m.users[id], nil
}

func (m *mockUserProvider) GetUserByID(_ context.Context, userID string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLookup != nil {
		return UserRecord{}, m.failLookup
	}
	user, ok := m.users[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserProvider) CreateUser(_ context.Context, input CreateUserInput) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[input.Email]; ok {
		return UserRecord{}, fmt.Errorf("insert: %w", ErrEmailTaken)
	}
	m.nextID++
	user := UserRecord{
		UserID:       fmt.Sprintf("u%d", m.nextID),
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		Profile:      input.Profile,
		CreatedAt:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	m.users[user.UserID] = user
	m.byEmail[user.Email] = user.UserID
	return user, nil
}

func (m *mockUserProvider) UpdatePasswordHash(_ context.Context, userID string, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate != nil {
		return m.failUpdate
	}
	user, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.PasswordHash = newHash
	m.users[userID] = user
	m.updates++
	return nil
}

func (m *mockUserProvider) delete(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[userID]; ok {
		delete(m.byEmail, user.Email)
		delete(m.users, userID)
	}
}

func (m *mockUserProvider) hash(userID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID].PasswordHash
}

type sentCode struct {
	email string
	code  string
	ttl   time.Duration
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentCode
	err  error
}

func (s *recordingSender) SendResetCode(_ context.Context, email, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentCode{email: email, code: code, ttl: ttl})
	return nil
}

func (s *recordingSender) all() []sentCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentCode(nil), s.sent...)
}

func (s *recordingSender) last(t *testing.T) sentCode {
	t.Helper()
	sent := s.all()
	if len(sent) == 0 {
		t.Fatal("expected a reset code to be sent")
	}
	return sent[len(sent)-1]
}

// testConfig keeps hashing cheap and removes the enumeration delay.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Secret = []byte(testSecret)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.ResetCode.EnumerationDelayMin = 0
	cfg.ResetCode.EnumerationDelayMax = 0
	cfg.Storage.SweepInterval = 0
	return cfg
}

type testEngine struct {
	*Engine
	users  *mockUserProvider
	sender *recordingSender
	clock  *fakeClock
}

type engineOption func(*Builder)

func withRedis(rdb redis.UniversalClient) engineOption {
	return func(b *Builder) { b.WithRedis(rdb) }
}

func withAuditSink(sink AuditSink) engineOption {
	return func(b *Builder) { b.WithAuditSink(sink) }
}

func newTestEngine(t testing.TB, cfg Config, opts ...engineOption) *testEngine {
	t.Helper()

	te := &testEngine{
		users:  newMockUserProvider(),
		sender: &recordingSender{},
		clock:  newFakeClock(),
	}

	b := New().
		WithConfig(cfg).
		WithUserProvider(te.users).
		WithResetCodeSender(te.sender).
		WithClock(te.clock.Now)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	te.Engine = engine
	return te
}

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func (te *testEngine) register(t testing.TB, email, pw string) *AuthResult {
	t.Helper()
	res, err := te.Register(context.Background(), RegisterRequest{Email: email, Password: pw})
	if err != nil {
		t.Fatalf("Register(%q) failed: %v", email, err)
	}
	return res
}

// waitDeliveries blocks until background reset code sends finish.
func (te *testEngine) waitDeliveries() {
	te.deliveries.Wait()
}
