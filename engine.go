package credkit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrEthical07/credkit/internal/audit"
	"github.com/MrEthical07/credkit/internal/rate"
	"github.com/MrEthical07/credkit/internal/stores"
	"github.com/MrEthical07/credkit/oauth"
	"github.com/MrEthical07/credkit/password"
	"github.com/MrEthical07/credkit/token"
	"github.com/hashicorp/go-hclog"
)

// Engine is the credential lifecycle facade. It is safe for concurrent use
// once built. Construct it with New().Build().
type Engine struct {
	config       Config
	userProvider UserProvider
	sender       ResetCodeSender
	passwordHash *password.Argon2
	dummyHash    string
	tokens       *token.Issuer
	resetCodes   *stores.ResetCodeStore
	oauthStates  *stores.OAuthStateStore
	revocations  *stores.RevocationStore
	rateLimiter  rate.Limiter
	oauth        *oauth.Provider
	audit        *audit.Dispatcher
	metrics      *Metrics
	logger       hclog.Logger
	now          func() time.Time

	sharedStorage bool

	closers    []func()
	deliveries sync.WaitGroup
	closeOnce  sync.Once
}

// Close waits for pending reset code deliveries, stops the memory sweepers
// and drains the audit dispatcher. Call it after in-flight requests return.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		e.deliveries.Wait()
		for _, closeFn := range e.closers {
			closeFn()
		}
		if e.audit != nil {
			e.audit.Close()
		}
	})
}

// AuditDropped returns the number of audit events dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// CheckRateLimit records one request for clientKey and returns
// ErrRateLimited once the client is over the ceiling for the current window.
// Rejected requests count toward the window. It always succeeds when rate
// limiting is disabled.
func (e *Engine) CheckRateLimit(ctx context.Context, clientKey string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if e.rateLimiter == nil {
		return nil
	}

	err := rate.Enforce(ctx, e.rateLimiter, clientKey)
	if err == nil {
		return nil
	}

	mapped := mapLimiterError(err)
	if errors.Is(mapped, ErrRateLimited) {
		e.metricInc(MetricRateLimitHit)
		e.emitAudit(ctx, auditEventRateLimited, false, "", mapped, func() map[string]string {
			return map[string]string{"client": clientKey}
		})
	} else {
		e.logger.Warn("rate limiter backend failed", "error", err)
	}
	return mapped
}

func (e *Engine) metricInc(id MetricID) {
	if e.metrics != nil {
		e.metrics.Inc(id)
	}
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e.metrics != nil {
		e.metrics.Observe(id, d)
	}
}

func (e *Engine) checkPasswordPolicy(pw string) error {
	if n := len(pw); n < e.config.Password.MinLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, e.config.Password.MinLength)
	} else if n > e.config.Password.MaxLength {
		return fmt.Errorf("%w: password must be at most %d characters", ErrInvalidInput, e.config.Password.MaxLength)
	}
	return nil
}

func mapLimiterError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func mapResetStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stores.ErrInvalidOrExpired):
		return ErrInvalidOrExpired
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func mapHashError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, password.ErrEmptyPassword):
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	default:
		return fmt.Errorf("password hashing failed: %w", err)
	}
}

func mapProviderError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrEmailTaken):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
}
