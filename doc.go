// Package credkit manages the credential lifecycle of a user-facing service:
// password hashing, short-lived bearer tokens, single-use password reset
// codes, single-use OAuth state values, and per-client rate limiting.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// credkit is the public surface. It exposes [Engine], [Builder], [Config],
// request and response types, and sentinel errors. Hashing lives in
// [github.com/MrEthical07/credkit/password], token signing in
// [github.com/MrEthical07/credkit/token], and the code, state, revocation and
// rate limit stores under internal/. User records are owned by a
// [UserProvider]; the engine never persists them itself.
//
// # Storage
//
// Without [Builder.WithRedis] every store lives in process memory and limits
// apply per instance. With Redis the same stores are shared across
// instances, and reset codes and OAuth states stay single use across them.
//
// # Enumeration resistance
//
// Login answers ErrInvalidCredentials for unknown emails and wrong passwords
// alike, and ForgotPassword returns the same acknowledgment whether or not an
// account exists.
package credkit
