package credkit

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"
)

// ChangePassword replaces the password of an authenticated subject after
// re-verifying the current one.
func (e *Engine) ChangePassword(ctx context.Context, subjectID string, req ChangePasswordRequest) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if subjectID == "" {
		return ErrUnauthorized
	}
	if err := req.Validate(); err != nil {
		return err
	}
	if err := e.checkPasswordPolicy(req.NewPassword); err != nil {
		return err
	}

	user, err := e.userProvider.GetUserByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUnauthorized
		}
		return mapProviderError(err)
	}

	if !e.passwordHash.Verify(req.CurrentPassword, user.PasswordHash) {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeInvalid, false, subjectID, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	hash, err := e.passwordHash.Hash(req.NewPassword)
	if err != nil {
		return mapHashError(err)
	}
	if err := e.userProvider.UpdatePasswordHash(ctx, subjectID, hash); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUnauthorized
		}
		return mapProviderError(err)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, subjectID, nil, nil)
	return nil
}

// ForgotPassword starts a reset for req.Email.
//
// The response is identical whether or not the account exists, and every
// call sleeps a random enumeration delay. When the account exists a
// 6-digit code is stored and handed to the ResetCodeSender in the
// background; delivery and storage failures are logged and counted, never
// returned. The only error is ErrInvalidInput.
func (e *Engine) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (ForgotPasswordResponse, error) {
	if e == nil {
		return ForgotPasswordResponse{}, ErrEngineNotReady
	}
	if err := req.Validate(); err != nil {
		return ForgotPasswordResponse{}, err
	}

	e.metricInc(MetricPasswordResetRequest)
	subjectID := e.startReset(ctx, normalizeEmail(req.Email))
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, subjectID, nil, nil)

	e.sleepEnumerationDelay(ctx)
	return ForgotPasswordResponse{Message: ForgotPasswordMessage}, nil
}

func (e *Engine) startReset(ctx context.Context, email string) string {
	user, err := e.userProvider.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			e.logger.Warn("forgot password lookup failed", "error", err)
		}
		return ""
	}

	ttl := e.config.ResetCode.TTL
	code, err := e.resetCodes.Generate(ctx, user.UserID, user.Email, ttl)
	if err != nil {
		e.metricInc(MetricPasswordResetDeliveryFailure)
		e.logger.Error("reset code generation failed", "subject_id", user.UserID, "error", err)
		return user.UserID
	}

	e.deliverResetCode(ctx, user.UserID, user.Email, code, ttl)
	return user.UserID
}

// deliverResetCode sends in a tracked goroutine so Close can wait for it.
// The send keeps the request's values but not its cancellation.
func (e *Engine) deliverResetCode(ctx context.Context, subjectID, email, code string, ttl time.Duration) {
	e.deliveries.Add(1)
	go func() {
		defer e.deliveries.Done()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.ResetCode.DeliveryTimeout)
		defer cancel()

		if err := e.sender.SendResetCode(sendCtx, email, code, ttl); err != nil {
			e.metricInc(MetricPasswordResetDeliveryFailure)
			e.logger.Error("reset code delivery failed", "subject_id", subjectID, "error", err)
			return
		}
		e.metricInc(MetricPasswordResetDelivered)
	}()
}

// ResetPassword consumes a reset code and sets a new password for its
// subject. Unknown, expired and already used codes all return
// ErrInvalidOrExpired. The password policy is checked before the code is
// consumed.
func (e *Engine) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := req.Validate(); err != nil {
		return err
	}
	if err := e.checkPasswordPolicy(req.NewPassword); err != nil {
		return err
	}

	record, err := e.resetCodes.ValidateAndConsume(ctx, strings.TrimSpace(req.Code))
	if err != nil {
		mapped := mapResetStoreError(err)
		if !errors.Is(mapped, ErrInvalidOrExpired) {
			e.logger.Error("reset code lookup failed", "error", err)
		}
		e.resetFailed(ctx, "", mapped)
		return mapped
	}

	hash, err := e.passwordHash.Hash(req.NewPassword)
	if err != nil {
		return mapHashError(err)
	}
	if err := e.userProvider.UpdatePasswordHash(ctx, record.SubjectID, hash); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.resetFailed(ctx, record.SubjectID, ErrInvalidOrExpired)
			return ErrInvalidOrExpired
		}
		return mapProviderError(err)
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, record.SubjectID, nil, nil)
	return nil
}

func (e *Engine) resetFailed(ctx context.Context, subjectID string, err error) {
	e.metricInc(MetricPasswordResetConfirmFailure)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, false, subjectID, err, nil)
}

// sleepEnumerationDelay waits a uniformly random duration in
// [EnumerationDelayMin, EnumerationDelayMax].
func (e *Engine) sleepEnumerationDelay(ctx context.Context) {
	minDelay := e.config.ResetCode.EnumerationDelayMin
	maxDelay := e.config.ResetCode.EnumerationDelayMax
	if maxDelay <= 0 {
		return
	}

	delay := minDelay
	if span := int64(maxDelay - minDelay); span > 0 {
		n, err := rand.Int(rand.Reader, big.NewInt(span+1))
		if err == nil {
			delay += time.Duration(n.Int64())
		} else {
			delay = maxDelay
		}
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
