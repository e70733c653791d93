package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with a shared secret. It is the default.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 private key.
	MethodEd25519 SigningMethod = "ed25519"
)

// MinSecretLength is the minimum HS256 secret size in bytes.
const MinSecretLength = 32

var (
	// ErrInvalidToken is returned for any token that fails verification.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidTTL is returned by Issue for a lifetime that is not a
	// positive whole number of seconds. JWT timestamps carry seconds only.
	ErrInvalidTTL = errors.New("token ttl must be a positive whole number of seconds")
)

// Config configures an Issuer.
//
// For MethodHS256, Secret is the shared key. For MethodEd25519, PrivateKey and
// PublicKey accept raw key bytes or PEM. A verify-only issuer may omit
// PrivateKey.
type Config struct {
	SigningMethod SigningMethod
	Secret        []byte
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	KeyID         string
}

// Claims is the verified content of a token.
type Claims struct {
	SubjectID string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer signs and verifies bearer tokens. It is safe for concurrent use.
type Issuer struct {
	config    Config
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
	now       func() time.Time
}

// Option customizes an Issuer.
type Option func(*Issuer)

// WithClock overrides the time source used for iat, exp and verification.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// NewIssuer validates cfg and resolves the signing material.
func NewIssuer(cfg Config, opts ...Option) (*Issuer, error) {
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}

	i := &Issuer{config: cfg, now: time.Now}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.Secret) < MinSecretLength {
			return nil, fmt.Errorf("hs256 secret must be at least %d bytes", MinSecretLength)
		}
		i.method = jwt.SigningMethodHS256
		i.signKey = cfg.Secret
		i.verifyKey = cfg.Secret
	case MethodEd25519:
		i.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			i.signKey = priv
			i.verifyKey = priv.Public()
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			i.verifyKey = pub
		}
		if i.verifyKey == nil {
			return nil, errors.New("ed25519 requires a private or public key")
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// ValidateTTL reports ErrInvalidTTL unless ttl is a positive whole number of
// seconds.
func ValidateTTL(ttl time.Duration) error {
	if ttl <= 0 || ttl%time.Second != 0 {
		return ErrInvalidTTL
	}
	return nil
}

// Issue returns a signed token for subjectID that expires ttl after issuance.
// iat is truncated to whole seconds, so exp == iat + ttl exactly.
func (i *Issuer) Issue(subjectID string, ttl time.Duration) (string, error) {
	tok, _, err := i.IssueClaims(subjectID, ttl)
	return tok, err
}

// IssueClaims is Issue that also returns the claims it signed.
func (i *Issuer) IssueClaims(subjectID string, ttl time.Duration) (string, Claims, error) {
	if err := ValidateTTL(ttl); err != nil {
		return "", Claims{}, err
	}
	if subjectID == "" {
		return "", Claims{}, errors.New("token subject must not be empty")
	}
	if i.signKey == nil {
		return "", Claims{}, errors.New("issuer has no signing key")
	}

	issuedAt := i.now().Truncate(time.Second)
	out := Claims{
		SubjectID: subjectID,
		TokenID:   uuid.NewString(),
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(ttl),
	}
	claims := jwt.RegisteredClaims{
		Subject:   out.SubjectID,
		IssuedAt:  jwt.NewNumericDate(out.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(out.ExpiresAt),
		ID:        out.TokenID,
		Issuer:    i.config.Issuer,
	}
	if i.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{i.config.Audience}
	}

	tok := jwt.NewWithClaims(i.method, claims)
	if i.config.KeyID != "" {
		tok.Header["kid"] = i.config.KeyID
	}
	signed, err := tok.SignedString(i.signKey)
	if err != nil {
		return "", Claims{}, err
	}
	return signed, out, nil
}

// Verify checks the signature and claims of tokenStr.
//
// Every failure wraps ErrInvalidToken.
func (i *Issuer) Verify(tokenStr string) (Claims, error) {
	if tokenStr == "" {
		return Claims{}, ErrInvalidToken
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{i.method.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	}
	if i.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(i.config.Issuer))
	}
	if i.config.Audience != "" {
		options = append(options, jwt.WithAudience(i.config.Audience))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != i.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		if i.config.KeyID != "" {
			if kid, _ := t.Header["kid"].(string); kid != i.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return i.verifyKey, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	registered, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if registered.Subject == "" || registered.ID == "" || registered.IssuedAt == nil {
		return Claims{}, fmt.Errorf("%w: missing required claims", ErrInvalidToken)
	}

	// The parser already rejects now >= exp; keep the strict boundary explicit.
	if !i.now().Before(registered.ExpiresAt.Time) {
		return Claims{}, fmt.Errorf("%w: token expired", ErrInvalidToken)
	}

	return Claims{
		SubjectID: registered.Subject,
		TokenID:   registered.ID,
		IssuedAt:  registered.IssuedAt.Time,
		ExpiresAt: registered.ExpiresAt.Time,
	}, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
