package security

import "time"

type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

// Report is a read-only summary of the engine's credential posture.
type Report struct {
	SigningAlgorithm       string
	TokenTTL               time.Duration
	RevocationEnabled      bool
	Argon2                 PasswordReport
	LegacyUpgradeOnLogin   bool
	ResetCodeTTL           time.Duration
	EnumerationDelayActive bool
	OAuthConfigured        bool
	RateLimitingActive     bool
	AuditEnabled           bool
	SharedStorage          bool
	Warnings               []string
}

type ReportInput struct {
	SigningAlgorithm    string
	TokenTTL            time.Duration
	RevocationEnabled   bool
	Password            PasswordReport
	UpgradeOnLogin      bool
	ResetCodeTTL        time.Duration
	EnumerationDelayMax time.Duration
	OAuthClientID       string
	RateLimitEnabled    bool
	RateLimitRequests   int
	AuditEnabled        bool
	RedisConfigured     bool
}

// Thresholds below which BuildReport adds a warning.
const (
	minArgonMemoryKiB = 19 * 1024
	minPasswordLength = 8
	maxTokenTTL       = 24 * time.Hour
)

func BuildReport(input ReportInput) Report {
	r := Report{
		SigningAlgorithm:       input.SigningAlgorithm,
		TokenTTL:               input.TokenTTL,
		RevocationEnabled:      input.RevocationEnabled,
		Argon2:                 input.Password,
		LegacyUpgradeOnLogin:   input.UpgradeOnLogin,
		ResetCodeTTL:           input.ResetCodeTTL,
		EnumerationDelayActive: input.EnumerationDelayMax > 0,
		OAuthConfigured:        input.OAuthClientID != "",
		RateLimitingActive:     input.RateLimitEnabled && input.RateLimitRequests > 0,
		AuditEnabled:           input.AuditEnabled,
		SharedStorage:          input.RedisConfigured,
	}

	if input.Password.Memory < minArgonMemoryKiB {
		r.Warnings = append(r.Warnings, "argon2 memory below 19 MiB")
	}
	if input.Password.MinLength < minPasswordLength {
		r.Warnings = append(r.Warnings, "minimum password length below 8")
	}
	if input.TokenTTL > maxTokenTTL {
		r.Warnings = append(r.Warnings, "token ttl longer than 24h")
	}
	if !r.EnumerationDelayActive {
		r.Warnings = append(r.Warnings, "forgot-password enumeration delay disabled")
	}
	if !r.RateLimitingActive {
		r.Warnings = append(r.Warnings, "rate limiting disabled")
	}
	if !r.SharedStorage {
		r.Warnings = append(r.Warnings, "single-use guarantees are per process without redis")
	}
	return r
}
