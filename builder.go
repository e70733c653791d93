package credkit

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/credkit/internal"
	"github.com/MrEthical07/credkit/internal/audit"
	"github.com/MrEthical07/credkit/internal/rate"
	"github.com/MrEthical07/credkit/internal/stores"
	"github.com/MrEthical07/credkit/oauth"
	"github.com/MrEthical07/credkit/password"
	"github.com/MrEthical07/credkit/token"
	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. A Builder is single use: Build may succeed
// once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userProvider UserProvider
	sender       ResetCodeSender
	auditSink    AuditSink
	logger       hclog.Logger
	clock        func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration with a deep copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis moves the reset code, OAuth state, revocation and rate limit
// state into Redis so it is shared across instances. Without it every store
// lives in process memory.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserProvider sets the user-record collaborator. Required.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithResetCodeSender sets the reset code transport. Required.
func (b *Builder) WithResetCodeSender(sender ResetCodeSender) *Builder {
	b.sender = sender
	return b
}

// WithAuditSink sets the destination for audit events. Events are only
// produced when Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger hclog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source for tokens, stores and the limiter.
// Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}
	if b.userProvider == nil {
		return nil, ErrMissingProvider
	}
	if b.sender == nil {
		return nil, ErrMissingSender
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	now := b.clock
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:       cfg,
		userProvider: b.userProvider,
		sender:       b.sender,
		logger:       logger,
		now:          now,
		metrics:      NewMetrics(cfg.Metrics),
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	hasher, err := password.NewArgon2(password.Config{
		Memory:        cfg.Password.Memory,
		Time:          cfg.Password.Time,
		Parallelism:   cfg.Password.Parallelism,
		SaltLength:    cfg.Password.SaltLength,
		KeyLength:     cfg.Password.KeyLength,
		MaxConcurrent: cfg.Password.MaxConcurrent,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = hasher

	// Unknown-email logins verify against this so they cost one hash.
	dummySecret, err := internal.NewOpaqueToken(internal.StateTokenSize)
	if err != nil {
		return nil, err
	}
	if engine.dummyHash, err = hasher.Hash(dummySecret); err != nil {
		return nil, err
	}

	issuer, err := token.NewIssuer(token.Config{
		SigningMethod: token.SigningMethod(strings.ToLower(cfg.Token.SigningMethod)),
		Secret:        cfg.Token.Secret,
		PrivateKey:    cfg.Token.PrivateKey,
		PublicKey:     cfg.Token.PublicKey,
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		KeyID:         cfg.Token.KeyID,
	}, token.WithClock(now))
	if err != nil {
		return nil, err
	}
	engine.tokens = issuer

	if err := b.buildStores(engine); err != nil {
		engine.Close()
		return nil, err
	}

	if cfg.OAuth.ClientID != "" {
		provider, err := oauth.NewProvider(oauth.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			RedirectURL:  cfg.OAuth.RedirectURL,
			AuthURL:      cfg.OAuth.AuthURL,
			TokenURL:     cfg.OAuth.TokenURL,
			Scopes:       cfg.OAuth.Scopes,
			Prompt:       cfg.OAuth.Prompt,
		})
		if err != nil {
			engine.Close()
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		engine.oauth = provider
	}

	b.built = true
	logger.Debug("engine built",
		"redis", b.redis != nil,
		"rate_limit", cfg.RateLimit.Enabled,
		"revocation", cfg.Token.RevocationEnabled,
		"oauth", engine.oauth != nil,
	)
	return engine, nil
}

func (b *Builder) buildStores(engine *Engine) error {
	cfg := engine.config
	limiterCfg := rate.Config{Requests: cfg.RateLimit.Requests, Window: cfg.RateLimit.Window}

	if b.redis != nil {
		prefix := cfg.Storage.RedisPrefix
		engine.sharedStorage = true
		engine.resetCodes = stores.NewResetCodeStore(stores.NewRedisBackend(b.redis, prefix+":rc"), engine.now)
		engine.oauthStates = stores.NewOAuthStateStore(stores.NewRedisBackend(b.redis, prefix+":os"), engine.now)
		if cfg.Token.RevocationEnabled {
			engine.revocations = stores.NewRevocationStore(stores.NewRedisBackend(b.redis, prefix+":rv"), engine.now)
		}
		if cfg.RateLimit.Enabled {
			limiter, err := rate.NewRedisLimiter(b.redis, prefix+":rl", limiterCfg, engine.now)
			if err != nil {
				return err
			}
			engine.rateLimiter = limiter
		}
		return nil
	}

	newBackend := func() *stores.MemoryBackend {
		backend := stores.NewMemoryBackend(stores.WithMemoryClock(engine.now))
		backend.StartSweeper(cfg.Storage.SweepInterval)
		engine.closers = append(engine.closers, backend.Close)
		return backend
	}

	engine.resetCodes = stores.NewResetCodeStore(newBackend(), engine.now)
	engine.oauthStates = stores.NewOAuthStateStore(newBackend(), engine.now)
	if cfg.Token.RevocationEnabled {
		engine.revocations = stores.NewRevocationStore(newBackend(), engine.now)
	}
	if cfg.RateLimit.Enabled {
		limiter, err := rate.NewMemoryLimiter(limiterCfg, engine.now)
		if err != nil {
			return err
		}
		limiter.StartSweeper(cfg.Storage.SweepInterval)
		engine.closers = append(engine.closers, limiter.Close)
		engine.rateLimiter = limiter
	}
	return nil
}
