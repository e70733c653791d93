package credkit

import (
	"strings"

	"github.com/MrEthical07/credkit/internal/security"
)

// SecurityReport summarizes the running engine's credential posture. It
// carries no secrets. Warnings lists settings weaker than the recommended
// defaults.
type SecurityReport = security.Report

// PasswordConfigReport is the Argon2id part of SecurityReport.
type PasswordConfigReport = security.PasswordReport

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return security.BuildReport(security.ReportInput{
		SigningAlgorithm:  strings.ToLower(e.config.Token.SigningMethod),
		TokenTTL:          e.config.Token.TTL,
		RevocationEnabled: e.revocations != nil,
		Password: security.PasswordReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
			MinLength:   e.config.Password.MinLength,
		},
		UpgradeOnLogin:      e.config.Password.UpgradeOnLogin,
		ResetCodeTTL:        e.config.ResetCode.TTL,
		EnumerationDelayMax: e.config.ResetCode.EnumerationDelayMax,
		OAuthClientID:       e.config.OAuth.ClientID,
		RateLimitEnabled:    e.rateLimiter != nil,
		RateLimitRequests:   e.config.RateLimit.Requests,
		AuditEnabled:        e.config.Audit.Enabled,
		RedisConfigured:     e.sharedStorage,
	})
}
