package credkit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/credkit/token"
)

// Config is the complete engine configuration. Build it with DefaultConfig,
// adjust fields, and pass it to Builder.WithConfig. The builder keeps a deep
// copy, so later changes to the value have no effect.
type Config struct {
	Token     TokenConfig
	Password  PasswordConfig
	ResetCode ResetCodeConfig
	OAuth     OAuthConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Storage   StorageConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls bearer token issuance.
//
// SigningMethod is "hs256" (default, uses Secret) or "ed25519" (uses
// PrivateKey and PublicKey). With RevocationEnabled, RevokeToken denylists a
// token id until the token's own expiry.
type TokenConfig struct {
	TTL               time.Duration
	SigningMethod     string
	Secret            []byte
	PrivateKey        []byte
	PublicKey         []byte
	Issuer            string
	Audience          string
	KeyID             string
	RevocationEnabled bool
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id cost parameters and the length policy.
type PasswordConfig struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MaxConcurrent  int
	MinLength      int
	MaxLength      int
	UpgradeOnLogin bool
}

/*
====================================
RESET CODE CONFIG
====================================
*/

// ResetCodeConfig controls forgot/reset-password.
//
// Every ForgotPassword call sleeps a random duration in
// [EnumerationDelayMin, EnumerationDelayMax]. DeliveryTimeout bounds each
// background send.
type ResetCodeConfig struct {
	TTL                 time.Duration
	DeliveryTimeout     time.Duration
	EnumerationDelayMin time.Duration
	EnumerationDelayMax time.Duration
}

/*
====================================
OAUTH CONFIG
====================================
*/

// OAuthConfig describes the third-party authorization server. Empty AuthURL
// and TokenURL select the LinkedIn endpoints. OAuth helpers stay disabled
// while ClientID is empty.
type OAuthConfig struct {
	StateTTL     time.Duration
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	Scopes       []string
	Prompt       string
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig sets the sliding window used by CheckRateLimit and the
// rate limit middleware.
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig applies to the code, state, revocation and limiter backends.
// RedisPrefix is used only when the builder was given a Redis client.
// SweepInterval drives the memory backends' expiry sweeper; zero disables it.
type StorageConfig struct {
	RedisPrefix   string
	SweepInterval time.Duration
}

// DefaultConfig returns production defaults. Token.Secret is left empty and
// must be set.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			TTL:           30 * time.Minute,
			SigningMethod: string(token.MethodHS256),
			Issuer:        "credkit",
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MaxConcurrent:  8,
			MinLength:      8,
			MaxLength:      1024,
			UpgradeOnLogin: true,
		},
		ResetCode: ResetCodeConfig{
			TTL:                 15 * time.Minute,
			DeliveryTimeout:     10 * time.Second,
			EnumerationDelayMin: 20 * time.Millisecond,
			EnumerationDelayMax: 40 * time.Millisecond,
		},
		OAuth: OAuthConfig{
			StateTTL: 10 * time.Minute,
			Scopes:   []string{"r_liteprofile", "r_emailaddress", "w_member_social"},
			Prompt:   "consent",
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 60,
			Window:   time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Storage: StorageConfig{
			RedisPrefix:   "ck",
			SweepInterval: time.Minute,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	if cfg.OAuth.Scopes != nil {
		out.OAuth.Scopes = append([]string(nil), cfg.OAuth.Scopes...)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if err := token.ValidateTTL(c.Token.TTL); err != nil {
		return errors.New("Token TTL must be a positive whole number of seconds")
	}
	switch token.SigningMethod(strings.ToLower(c.Token.SigningMethod)) {
	case token.MethodHS256:
		if len(c.Token.Secret) < token.MinSecretLength {
			return fmt.Errorf("Token Secret must be at least %d bytes for hs256", token.MinSecretLength)
		}
	case token.MethodEd25519:
		if len(c.Token.PrivateKey) == 0 {
			return errors.New("Token PrivateKey is required for ed25519")
		}
	default:
		return errors.New("Token SigningMethod must be hs256 or ed25519")
	}

	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}
	if c.Password.MaxConcurrent < 0 {
		return errors.New("Password MaxConcurrent must be >= 0")
	}

	if c.ResetCode.TTL <= 0 {
		return errors.New("ResetCode TTL must be > 0")
	}
	if c.ResetCode.DeliveryTimeout <= 0 {
		return errors.New("ResetCode DeliveryTimeout must be > 0")
	}
	if c.ResetCode.EnumerationDelayMin < 0 || c.ResetCode.EnumerationDelayMax < c.ResetCode.EnumerationDelayMin {
		return errors.New("ResetCode enumeration delay must satisfy 0 <= min <= max")
	}

	if c.OAuth.StateTTL <= 0 {
		return errors.New("OAuth StateTTL must be > 0")
	}
	if c.OAuth.ClientID != "" && c.OAuth.RedirectURL == "" {
		return errors.New("OAuth RedirectURL is required when ClientID is set")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 {
			return errors.New("RateLimit Requests must be > 0")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	if strings.TrimSpace(c.Storage.RedisPrefix) == "" {
		return errors.New("Storage RedisPrefix must not be empty")
	}
	if c.Storage.SweepInterval < 0 {
		return errors.New("Storage SweepInterval must be >= 0")
	}

	return nil
}
