package credkit

import "errors"

// Public error taxonomy. Callers should match with errors.Is.
var (
	// ErrInvalidInput covers malformed or missing request fields, including
	// passwords that fail the length policy.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmailTaken is returned by Register when the email already has an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned for an unknown email and for a wrong
	// password alike.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthorized is returned for missing, bad, expired or revoked tokens
	// and for tokens whose subject no longer exists.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidOrExpired is returned for unknown, expired or reused reset
	// codes and OAuth states.
	ErrInvalidOrExpired = errors.New("invalid or expired reset code")
	// ErrRateLimited is returned when a client exceeds the request ceiling.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// Infrastructure and wiring errors.
var (
	// ErrStoreUnavailable wraps failures of the code, state or revocation
	// backends and of the rate limiter backend.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrUserNotFound is what a UserProvider returns for an absent user. It is
	// never surfaced to Engine callers.
	ErrUserNotFound = errors.New("user not found")
	// ErrProviderFailure wraps unexpected UserProvider errors.
	ErrProviderFailure = errors.New("user provider failure")
	// ErrOAuthNotConfigured is returned by the OAuth helpers when no provider
	// was configured.
	ErrOAuthNotConfigured = errors.New("oauth provider not configured")
	// ErrOAuthDenied is returned when the authorization server reported an
	// error on the callback.
	ErrOAuthDenied = errors.New("oauth authorization denied")
	// ErrRevocationDisabled is returned by RevokeToken when revocation is off.
	ErrRevocationDisabled = errors.New("token revocation disabled")
	ErrEngineNotReady     = errors.New("engine not initialized")
	ErrBuilderUsed        = errors.New("builder already used")
	ErrMissingProvider    = errors.New("user provider is required")
	ErrMissingSender      = errors.New("reset code sender is required")
)
