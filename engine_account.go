package credkit

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/credkit/token"
)

// Register creates an account and returns a token for it.
//
// The email must be a bare address; it is stored lower-cased. Duplicate
// emails fail with ErrEmailTaken whether the lookup or the provider's insert
// detects them.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := e.checkPasswordPolicy(req.Password); err != nil {
		return nil, err
	}

	email := normalizeEmail(req.Email)
	_, err := e.userProvider.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		e.registerDuplicate(ctx)
		return nil, ErrEmailTaken
	case !errors.Is(err, ErrUserNotFound):
		return nil, mapProviderError(err)
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		return nil, mapHashError(err)
	}

	user, err := e.userProvider.CreateUser(ctx, CreateUserInput{
		Email:        email,
		PasswordHash: hash,
		Profile:      req.Profile,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			e.registerDuplicate(ctx)
			return nil, ErrEmailTaken
		}
		return nil, mapProviderError(err)
	}

	result, err := e.issueFor(user)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, user.UserID, nil, nil)
	return result, nil
}

func (e *Engine) registerDuplicate(ctx context.Context) {
	e.metricInc(MetricRegisterDuplicate)
	e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", ErrEmailTaken, nil)
}

// Login verifies an email and password pair and returns a fresh token.
//
// Unknown emails and wrong passwords both return ErrInvalidCredentials, and
// both pay for one hash verification.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := e.userProvider.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, mapProviderError(err)
		}
		e.passwordHash.Verify(req.Password, e.dummyHash)
		e.loginFailed(ctx, "")
		return nil, ErrInvalidCredentials
	}

	if !e.passwordHash.Verify(req.Password, user.PasswordHash) {
		e.loginFailed(ctx, user.UserID)
		return nil, ErrInvalidCredentials
	}

	if e.config.Password.UpgradeOnLogin {
		e.upgradeHash(ctx, user, req.Password)
	}

	result, err := e.issueFor(user)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.UserID, nil, nil)
	return result, nil
}

func (e *Engine) loginFailed(ctx context.Context, subjectID string) {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, subjectID, ErrInvalidCredentials, nil)
}

// upgradeHash rehashes pw when the stored hash is legacy bcrypt or uses
// weaker Argon2 parameters. Failures are logged and never fail the login.
func (e *Engine) upgradeHash(ctx context.Context, user UserRecord, pw string) {
	stale, err := e.passwordHash.NeedsUpgrade(user.PasswordHash)
	if err != nil || !stale {
		return
	}

	hash, err := e.passwordHash.Hash(pw)
	if err != nil {
		e.logger.Warn("password hash upgrade failed", "subject_id", user.UserID, "error", err)
		return
	}
	if err := e.userProvider.UpdatePasswordHash(ctx, user.UserID, hash); err != nil {
		e.logger.Warn("password hash upgrade not persisted", "subject_id", user.UserID, "error", err)
		return
	}

	e.metricInc(MetricHashUpgraded)
	e.emitAudit(ctx, auditEventPasswordHashUpgraded, true, user.UserID, nil, nil)
}

// ResolveCurrentSubject verifies a bearer token and loads its subject.
//
// Any token failure, a revoked token, or a subject that no longer exists
// returns ErrUnauthorized.
func (e *Engine) ResolveCurrentSubject(ctx context.Context, tokenStr string) (*Subject, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	start := e.now()
	defer func() {
		e.metricObserve(MetricResolveLatency, e.now().Sub(start))
	}()

	claims, err := e.verifyToken(ctx, tokenStr)
	if err != nil {
		e.metricInc(MetricResolveFailure)
		return nil, err
	}

	user, err := e.userProvider.GetUserByID(ctx, claims.SubjectID)
	if err != nil {
		e.metricInc(MetricResolveFailure)
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, mapProviderError(err)
	}

	subject := subjectFromRecord(user)
	return &subject, nil
}

// RevokeToken denylists tokenStr until its own expiry. It requires
// Config.Token.RevocationEnabled.
func (e *Engine) RevokeToken(ctx context.Context, tokenStr string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if e.revocations == nil {
		return ErrRevocationDisabled
	}

	claims, err := e.verifyToken(ctx, tokenStr)
	if err != nil {
		return err
	}
	if err := e.revocations.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		e.logger.Error("token revocation failed", "error", err)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricTokenRevoked)
	e.emitAudit(ctx, auditEventTokenRevoked, true, claims.SubjectID, nil, nil)
	return nil
}

func (e *Engine) verifyToken(ctx context.Context, tokenStr string) (token.Claims, error) {
	claims, err := e.tokens.Verify(tokenStr)
	if err != nil {
		return token.Claims{}, ErrUnauthorized
	}

	if e.revocations != nil {
		revoked, err := e.revocations.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			e.logger.Error("revocation lookup failed", "error", err)
			return token.Claims{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if revoked {
			return token.Claims{}, ErrUnauthorized
		}
	}
	return claims, nil
}

func (e *Engine) issueFor(user UserRecord) (*AuthResult, error) {
	tok, claims, err := e.tokens.IssueClaims(user.UserID, e.config.Token.TTL)
	if err != nil {
		return nil, fmt.Errorf("token issuance failed: %w", err)
	}

	return &AuthResult{
		AccessToken: tok,
		TokenType:   TokenTypeBearer,
		ExpiresAt:   claims.ExpiresAt,
		Subject:     subjectFromRecord(user),
	}, nil
}
