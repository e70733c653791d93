package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/credkit"
	"github.com/MrEthical07/credkit/userstore/memstore"
	"github.com/hashicorp/go-hclog"
)

type chanSender struct {
	codes chan string
}

func (s *chanSender) SendResetCode(_ context.Context, _, code string, _ time.Duration) error {
	s.codes <- code
	return nil
}

func serverTestConfig() credkit.Config {
	cfg := credkit.DefaultConfig()
	cfg.Token.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Token.RevocationEnabled = true
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.ResetCode.EnumerationDelayMin = 0
	cfg.ResetCode.EnumerationDelayMax = 0
	cfg.Storage.SweepInterval = 0
	return cfg
}

func newTestServer(t *testing.T, cfg credkit.Config) (*httptest.Server, *chanSender) {
	t.Helper()
	sender := &chanSender{codes: make(chan string, 8)}
	engine, err := credkit.New().
		WithConfig(cfg).
		WithUserProvider(memstore.New()).
		WithResetCodeSender(sender).
		Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}
	srv := httptest.NewServer(newRouter(engine, hclog.NewNullLogger()))
	t.Cleanup(func() {
		srv.Close()
		engine.Close()
	})
	return srv, sender
}

func do(t *testing.T, srv *httptest.Server, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body failed: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("%s %s: expected status %d, got %d", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode)
	}
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
}

func TestAccountLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t, serverTestConfig())

	resp := do(t, srv, http.MethodPost, "/auth/register", "", map[string]string{
		"email":     "alice@example.com",
		"password":  "password-123",
		"firstName": "Alice",
	})
	expectStatus(t, resp, http.StatusCreated)
	var registered credkit.AuthResult
	decodeBody(t, resp, &registered)
	if registered.AccessToken == "" || registered.Subject.Profile.FirstName != "Alice" {
		t.Fatalf("unexpected register response: %+v", registered)
	}

	expectStatus(t, do(t, srv, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "alice@example.com", "password": "password-123",
	}), http.StatusConflict)

	expectStatus(t, do(t, srv, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong-password",
	}), http.StatusUnauthorized)

	resp = do(t, srv, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "password-123",
	})
	expectStatus(t, resp, http.StatusOK)
	var login credkit.AuthResult
	decodeBody(t, resp, &login)

	resp = do(t, srv, http.MethodGet, "/auth/me", login.AccessToken, nil)
	expectStatus(t, resp, http.StatusOK)
	var subject credkit.Subject
	decodeBody(t, resp, &subject)
	if subject.Email != "alice@example.com" {
		t.Fatalf("unexpected subject: %+v", subject)
	}

	expectStatus(t, do(t, srv, http.MethodPost, "/auth/change-password", login.AccessToken, map[string]string{
		"current_password": "password-123", "new_password": "password-456",
	}), http.StatusNoContent)

	expectStatus(t, do(t, srv, http.MethodPost, "/auth/logout", login.AccessToken, nil), http.StatusNoContent)
	expectStatus(t, do(t, srv, http.MethodGet, "/auth/me", login.AccessToken, nil), http.StatusUnauthorized)
	expectStatus(t, do(t, srv, http.MethodGet, "/auth/me", "", nil), http.StatusUnauthorized)
}

func TestPasswordResetOverHTTP(t *testing.T) {
	srv, sender := newTestServer(t, serverTestConfig())

	expectStatus(t, do(t, srv, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "bob@example.com", "password": "password-123",
	}), http.StatusCreated)

	var bodies []string
	for _, email := range []string{"bob@example.com", "nobody@example.com"} {
		resp := do(t, srv, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": email})
		expectStatus(t, resp, http.StatusOK)
		var ack credkit.ForgotPasswordResponse
		decodeBody(t, resp, &ack)
		bodies = append(bodies, ack.Message)
	}
	if bodies[0] != bodies[1] {
		t.Fatalf("expected identical acknowledgments, got %q and %q", bodies[0], bodies[1])
	}

	var code string
	select {
	case code = <-sender.codes:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a reset code delivery")
	}

	reset := map[string]string{"code": code, "new_password": "password-789"}
	expectStatus(t, do(t, srv, http.MethodPost, "/auth/reset-password", "", reset), http.StatusNoContent)
	expectStatus(t, do(t, srv, http.MethodPost, "/auth/reset-password", "", reset), http.StatusBadRequest)

	expectStatus(t, do(t, srv, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "bob@example.com", "password": "password-789",
	}), http.StatusOK)
}

func TestOAuthRoutes(t *testing.T) {
	cfg := serverTestConfig()
	cfg.OAuth.ClientID = "client-123"
	cfg.OAuth.RedirectURL = "https://app.example.com/auth/oauth/callback"
	srv, _ := newTestServer(t, cfg)

	resp := do(t, srv, http.MethodGet, "/auth/oauth/start", "", nil)
	expectStatus(t, resp, http.StatusFound)
	location, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("parse location failed: %v", err)
	}
	state := location.Query().Get("state")
	if state == "" {
		t.Fatalf("expected state in %q", location)
	}

	callback := "/auth/oauth/callback?" + url.Values{"state": {state}, "code": {"auth-code"}}.Encode()
	resp = do(t, srv, http.MethodGet, callback, "", nil)
	expectStatus(t, resp, http.StatusOK)
	var out map[string]string
	decodeBody(t, resp, &out)
	if out["code"] != "auth-code" {
		t.Fatalf("expected code passthrough, got %v", out)
	}

	expectStatus(t, do(t, srv, http.MethodGet, callback, "", nil), http.StatusBadRequest)
}

func TestOAuthStartNotConfigured(t *testing.T) {
	srv, _ := newTestServer(t, serverTestConfig())
	expectStatus(t, do(t, srv, http.MethodGet, "/auth/oauth/start", "", nil), http.StatusNotFound)
}

func TestMalformedBody(t *testing.T) {
	srv, _ := newTestServer(t, serverTestConfig())

	resp, err := http.Post(srv.URL+"/auth/login", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestRateLimitedRoutes(t *testing.T) {
	cfg := serverTestConfig()
	cfg.RateLimit.Requests = 2
	srv, _ := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		expectStatus(t, do(t, srv, http.MethodGet, "/auth/me", "", nil), http.StatusUnauthorized)
	}
	resp := do(t, srv, http.MethodGet, "/auth/me", "", nil)
	expectStatus(t, resp, http.StatusTooManyRequests)
	if resp.Header.Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestMetricsRoute(t *testing.T) {
	srv, _ := newTestServer(t, serverTestConfig())

	expectStatus(t, do(t, srv, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "ghost@example.com", "password": "password-123",
	}), http.StatusUnauthorized)

	resp := do(t, srv, http.MethodGet, "/metrics", "", nil)
	expectStatus(t, resp, http.StatusOK)
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read metrics failed: %v", err)
	}
	if !strings.Contains(buf.String(), "credkit_login_failure_total 1") {
		t.Fatalf("expected login failure counter in output:\n%s", buf.String())
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: email is required", credkit.ErrInvalidInput), http.StatusBadRequest},
		{credkit.ErrInvalidOrExpired, http.StatusBadRequest},
		{credkit.ErrEmailTaken, http.StatusConflict},
		{credkit.ErrInvalidCredentials, http.StatusUnauthorized},
		{credkit.ErrUnauthorized, http.StatusUnauthorized},
		{credkit.ErrOAuthDenied, http.StatusForbidden},
		{credkit.ErrRateLimited, http.StatusTooManyRequests},
		{credkit.ErrOAuthNotConfigured, http.StatusNotFound},
		{credkit.ErrRevocationDisabled, http.StatusNotImplemented},
		{fmt.Errorf("%w: redis down", credkit.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("%w: db down", credkit.ErrProviderFailure), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		status, msg := statusFor(tc.err)
		if status != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, status)
		}
		if strings.Contains(msg, "redis") || strings.Contains(msg, "db down") || msg == "boom" {
			t.Fatalf("%v: internal detail leaked in %q", tc.err, msg)
		}
	}
}

func TestLoadSettings(t *testing.T) {
	t.Setenv("LISTEN_ADDR", "127.0.0.1:9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")

	s, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings failed: %v", err)
	}
	if s.ListenAddr != "127.0.0.1:9090" || s.ShutdownTimeout != 3*time.Second {
		t.Fatalf("unexpected settings: %+v", s)
	}
	if s.LogLevel != "info" {
		t.Fatalf("expected default log level, got %q", s.LogLevel)
	}

	t.Setenv("SHUTDOWN_TIMEOUT", "later")
	if _, err := loadSettings(); err == nil {
		t.Fatal("expected malformed duration to fail")
	}
}

func TestResetSenderLogsCodesOnlyWhenOptedIn(t *testing.T) {
	const code = "482915"
	ctx := context.Background()

	var buf bytes.Buffer
	logger := hclog.New(&hclog.LoggerOptions{Output: &buf, Level: hclog.Info})

	sender := newResetSender(false, logger)
	if err := sender.SendResetCode(ctx, "a@b.com", code, time.Minute); !errors.Is(err, errNoTransport) {
		t.Fatalf("expected errNoTransport, got %v", err)
	}
	if strings.Contains(buf.String(), code) {
		t.Fatalf("reset code written to log without opt-in: %s", buf.String())
	}

	buf.Reset()
	sender = newResetSender(true, logger)
	if err := sender.SendResetCode(ctx, "a@b.com", code, time.Minute); err != nil {
		t.Fatalf("SendResetCode failed: %v", err)
	}
	if !strings.Contains(buf.String(), code) {
		t.Fatalf("expected development sender to log the code, got: %s", buf.String())
	}
}

func TestLoadSettingsDevLogResetCodes(t *testing.T) {
	s, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings failed: %v", err)
	}
	if s.DevLogResetCodes {
		t.Fatal("expected reset code logging to be off by default")
	}

	t.Setenv("DEV_LOG_RESET_CODES", "true")
	if s, err = loadSettings(); err != nil || !s.DevLogResetCodes {
		t.Fatalf("expected opt-in to be read, got %+v err=%v", s, err)
	}
}
