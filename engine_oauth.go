package credkit

import (
	"context"
	"fmt"

	"github.com/MrEthical07/credkit/oauth"
)

// BeginOAuth issues a single-use state and returns the authorization URL that
// carries it.
func (e *Engine) BeginOAuth(ctx context.Context) (OAuthRedirect, error) {
	if e == nil {
		return OAuthRedirect{}, ErrEngineNotReady
	}
	if e.oauth == nil {
		return OAuthRedirect{}, ErrOAuthNotConfigured
	}

	state, err := e.oauthStates.Generate(ctx, e.config.OAuth.StateTTL)
	if err != nil {
		e.logger.Error("oauth state generation failed", "error", err)
		return OAuthRedirect{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricOAuthStateIssued)
	e.emitAudit(ctx, auditEventOAuthStateIssued, true, "", nil, nil)
	return OAuthRedirect{
		URL:   e.oauth.AuthorizeURL(state),
		State: state,
	}, nil
}

// CompleteOAuth validates a callback and returns the authorization code for
// the caller to exchange.
//
// The state is consumed before anything else is checked, so a callback
// carrying a provider error still burns its state. Unknown, reused or
// expired states return ErrInvalidOrExpired; a provider error returns
// ErrOAuthDenied.
func (e *Engine) CompleteOAuth(ctx context.Context, cb oauth.Callback) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if e.oauth == nil {
		return "", ErrOAuthNotConfigured
	}

	ok, err := e.oauthStates.ValidateAndConsume(ctx, cb.State)
	if err != nil {
		e.logger.Warn("oauth state lookup failed", "error", err)
	}
	if !ok {
		e.metricInc(MetricOAuthStateRejected)
		e.emitAudit(ctx, auditEventOAuthCallback, false, "", ErrInvalidOrExpired, nil)
		return "", ErrInvalidOrExpired
	}

	if cb.Error != "" {
		e.emitAudit(ctx, auditEventOAuthCallback, false, "", ErrOAuthDenied, func() map[string]string {
			return map[string]string{"provider_error": cb.Error}
		})
		return "", fmt.Errorf("%w: %s", ErrOAuthDenied, cb.Error)
	}
	if cb.Code == "" {
		return "", fmt.Errorf("%w: authorization code is required", ErrInvalidInput)
	}

	e.emitAudit(ctx, auditEventOAuthCallback, true, "", nil, nil)
	return cb.Code, nil
}

// OAuthConfigured reports whether the OAuth helpers are enabled.
func (e *Engine) OAuthConfigured() bool {
	return e != nil && e.oauth != nil
}
