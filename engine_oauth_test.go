package credkit

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/MrEthical07/credkit/oauth"
)

func oauthTestConfig() Config {
	cfg := testConfig()
	cfg.OAuth.ClientID = "client-123"
	cfg.OAuth.ClientSecret = "client-secret"
	cfg.OAuth.RedirectURL = "https://app.example.com/auth/oauth/callback"
	return cfg
}

func TestBeginOAuthBuildsAuthorizeURL(t *testing.T) {
	te := newTestEngine(t, oauthTestConfig())

	redirect, err := te.BeginOAuth(context.Background())
	if err != nil {
		t.Fatalf("BeginOAuth failed: %v", err)
	}

	u, err := url.Parse(redirect.URL)
	if err != nil {
		t.Fatalf("parse url failed: %v", err)
	}
	if u.Host != "www.linkedin.com" {
		t.Fatalf("expected linkedin host, got %q", u.Host)
	}
	q := u.Query()
	checks := map[string]string{
		"response_type": "code",
		"client_id":     "client-123",
		"redirect_uri":  "https://app.example.com/auth/oauth/callback",
		"state":         redirect.State,
		"scope":         "r_liteprofile r_emailaddress w_member_social",
		"prompt":        "consent",
	}
	for key, want := range checks {
		if got := q.Get(key); got != want {
			t.Fatalf("expected %s=%q, got %q", key, want, got)
		}
	}
}

func TestCompleteOAuthStateSingleUse(t *testing.T) {
	te := newTestEngine(t, oauthTestConfig())
	ctx := context.Background()

	redirect, err := te.BeginOAuth(ctx)
	if err != nil {
		t.Fatalf("BeginOAuth failed: %v", err)
	}

	code, err := te.CompleteOAuth(ctx, oauth.Callback{State: redirect.State, Code: "auth-code"})
	if err != nil {
		t.Fatalf("CompleteOAuth failed: %v", err)
	}
	if code != "auth-code" {
		t.Fatalf("expected auth code passthrough, got %q", code)
	}

	if _, err := te.CompleteOAuth(ctx, oauth.Callback{State: redirect.State, Code: "auth-code"}); !errors.Is(err, ErrInvalidOrExpired) {
		t.Fatalf("expected reused state rejected, got %v", err)
	}
	if _, err := te.CompleteOAuth(ctx, oauth.Callback{State: "forged", Code: "auth-code"}); !errors.Is(err, ErrInvalidOrExpired) {
		t.Fatalf("expected unknown state rejected, got %v", err)
	}
}

func TestCompleteOAuthExpiredState(t *testing.T) {
	te := newTestEngine(t, oauthTestConfig())
	ctx := context.Background()

	redirect, err := te.BeginOAuth(ctx)
	if err != nil {
		t.Fatalf("BeginOAuth failed: %v", err)
	}
	te.clock.Advance(10*time.Minute + time.Second)

	if _, err := te.CompleteOAuth(ctx, oauth.Callback{State: redirect.State, Code: "auth-code"}); !errors.Is(err, ErrInvalidOrExpired) {
		t.Fatalf("expected expired state rejected, got %v", err)
	}
}

func TestCompleteOAuthProviderErrorBurnsState(t *testing.T) {
	te := newTestEngine(t, oauthTestConfig())
	ctx := context.Background()

	redirect, err := te.BeginOAuth(ctx)
	if err != nil {
		t.Fatalf("BeginOAuth failed: %v", err)
	}

	cb := oauth.ParseCallback(url.Values{
		"state": {redirect.State},
		"error": {"user_cancelled_authorize"},
	})
	if _, err := te.CompleteOAuth(ctx, cb); !errors.Is(err, ErrOAuthDenied) {
		t.Fatalf("expected ErrOAuthDenied, got %v", err)
	}
	if _, err := te.CompleteOAuth(ctx, oauth.Callback{State: redirect.State, Code: "late"}); !errors.Is(err, ErrInvalidOrExpired) {
		t.Fatalf("expected state consumed by the failed callback, got %v", err)
	}
}

func TestCompleteOAuthRequiresCode(t *testing.T) {
	te := newTestEngine(t, oauthTestConfig())
	ctx := context.Background()

	redirect, err := te.BeginOAuth(ctx)
	if err != nil {
		t.Fatalf("BeginOAuth failed: %v", err)
	}
	if _, err := te.CompleteOAuth(ctx, oauth.Callback{State: redirect.State}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestOAuthNotConfigured(t *testing.T) {
	te := newTestEngine(t, testConfig())
	if te.OAuthConfigured() {
		t.Fatal("expected oauth disabled without client id")
	}
	if _, err := te.BeginOAuth(context.Background()); !errors.Is(err, ErrOAuthNotConfigured) {
		t.Fatalf("expected ErrOAuthNotConfigured, got %v", err)
	}
}

func TestOAuthStateSharedThroughRedis(t *testing.T) {
	_, rdb := newTestRedis(t)
	a := newTestEngine(t, oauthTestConfig(), withRedis(rdb))
	b := newTestEngine(t, oauthTestConfig(), withRedis(rdb))
	ctx := context.Background()

	redirect, err := a.BeginOAuth(ctx)
	if err != nil {
		t.Fatalf("BeginOAuth failed: %v", err)
	}
	if _, err := b.CompleteOAuth(ctx, oauth.Callback{State: redirect.State, Code: "c"}); err != nil {
		t.Fatalf("expected other instance to accept state, got %v", err)
	}
	if _, err := a.CompleteOAuth(ctx, oauth.Callback{State: redirect.State, Code: "c"}); !errors.Is(err, ErrInvalidOrExpired) {
		t.Fatalf("expected state consumed across instances, got %v", err)
	}
}
