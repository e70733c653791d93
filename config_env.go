package credkit

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// envOverlay mirrors the Config fields that may come from the environment.
// Variables are read as <PREFIX>_<NAME>, for example CREDKIT_TOKEN_SECRET.
type envOverlay struct {
	TokenTTL           time.Duration `envconfig:"TOKEN_TTL"`
	TokenSigningMethod string        `envconfig:"TOKEN_SIGNING_METHOD"`
	TokenSecret        string        `envconfig:"TOKEN_SECRET"`
	TokenIssuer        string        `envconfig:"TOKEN_ISSUER"`
	TokenAudience      string        `envconfig:"TOKEN_AUDIENCE"`
	TokenRevocation    bool          `envconfig:"TOKEN_REVOCATION_ENABLED"`

	PasswordMinLength     int  `envconfig:"PASSWORD_MIN_LENGTH"`
	PasswordMaxConcurrent int  `envconfig:"PASSWORD_MAX_CONCURRENT"`
	PasswordUpgrade       bool `envconfig:"PASSWORD_UPGRADE_ON_LOGIN"`

	ResetCodeTTL time.Duration `envconfig:"RESET_CODE_TTL"`

	OAuthStateTTL     time.Duration `envconfig:"OAUTH_STATE_TTL"`
	OAuthClientID     string        `envconfig:"OAUTH_CLIENT_ID"`
	OAuthClientSecret string        `envconfig:"OAUTH_CLIENT_SECRET"`
	OAuthRedirectURL  string        `envconfig:"OAUTH_REDIRECT_URL"`
	OAuthScopes       []string      `envconfig:"OAUTH_SCOPES"`

	RateLimitEnabled  bool          `envconfig:"RATE_LIMIT_ENABLED"`
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW"`

	AuditEnabled   bool `envconfig:"AUDIT_ENABLED"`
	MetricsEnabled bool `envconfig:"METRICS_ENABLED"`

	RedisPrefix   string        `envconfig:"REDIS_PREFIX"`
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL"`
}

// ApplyEnv overlays environment variables onto cfg. Unset variables keep the
// current value. Validation is left to Config.Validate.
func ApplyEnv(cfg *Config, prefix string) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidInput)
	}

	overlay := envOverlay{
		TokenTTL:              cfg.Token.TTL,
		TokenSigningMethod:    cfg.Token.SigningMethod,
		TokenSecret:           string(cfg.Token.Secret),
		TokenIssuer:           cfg.Token.Issuer,
		TokenAudience:         cfg.Token.Audience,
		TokenRevocation:       cfg.Token.RevocationEnabled,
		PasswordMinLength:     cfg.Password.MinLength,
		PasswordMaxConcurrent: cfg.Password.MaxConcurrent,
		PasswordUpgrade:       cfg.Password.UpgradeOnLogin,
		ResetCodeTTL:          cfg.ResetCode.TTL,
		OAuthStateTTL:         cfg.OAuth.StateTTL,
		OAuthClientID:         cfg.OAuth.ClientID,
		OAuthClientSecret:     cfg.OAuth.ClientSecret,
		OAuthRedirectURL:      cfg.OAuth.RedirectURL,
		OAuthScopes:           cfg.OAuth.Scopes,
		RateLimitEnabled:      cfg.RateLimit.Enabled,
		RateLimitRequests:     cfg.RateLimit.Requests,
		RateLimitWindow:       cfg.RateLimit.Window,
		AuditEnabled:          cfg.Audit.Enabled,
		MetricsEnabled:        cfg.Metrics.Enabled,
		RedisPrefix:           cfg.Storage.RedisPrefix,
		SweepInterval:         cfg.Storage.SweepInterval,
	}

	if err := envconfig.Process(prefix, &overlay); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	cfg.Token.TTL = overlay.TokenTTL
	cfg.Token.SigningMethod = overlay.TokenSigningMethod
	if overlay.TokenSecret != "" {
		cfg.Token.Secret = []byte(overlay.TokenSecret)
	}
	cfg.Token.Issuer = overlay.TokenIssuer
	cfg.Token.Audience = overlay.TokenAudience
	cfg.Token.RevocationEnabled = overlay.TokenRevocation
	cfg.Password.MinLength = overlay.PasswordMinLength
	cfg.Password.MaxConcurrent = overlay.PasswordMaxConcurrent
	cfg.Password.UpgradeOnLogin = overlay.PasswordUpgrade
	cfg.ResetCode.TTL = overlay.ResetCodeTTL
	cfg.OAuth.StateTTL = overlay.OAuthStateTTL
	cfg.OAuth.ClientID = overlay.OAuthClientID
	cfg.OAuth.ClientSecret = overlay.OAuthClientSecret
	cfg.OAuth.RedirectURL = overlay.OAuthRedirectURL
	cfg.OAuth.Scopes = overlay.OAuthScopes
	cfg.RateLimit.Enabled = overlay.RateLimitEnabled
	cfg.RateLimit.Requests = overlay.RateLimitRequests
	cfg.RateLimit.Window = overlay.RateLimitWindow
	cfg.Audit.Enabled = overlay.AuditEnabled
	cfg.Metrics.Enabled = overlay.MetricsEnabled
	cfg.Storage.RedisPrefix = overlay.RedisPrefix
	cfg.Storage.SweepInterval = overlay.SweepInterval

	return nil
}
