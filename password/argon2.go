package password

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"

	// Upper bounds for parameters read from stored hashes. Verify must not
	// be able to exhaust memory or hold a permit for seconds.
	maxMemoryKB    uint32 = 4 * 1024 * 1024
	maxTimeCost    uint32 = 64
	maxSaltLength         = 1024
	maxKeyLength          = 1024
)

var (
	// ErrEmptyPassword is returned by Hash for zero-length input.
	ErrEmptyPassword = errors.New("password must not be empty")
	errInvalidPHC    = errors.New("invalid PHC format")
)

// Config holds Argon2id cost parameters.
//
// MaxConcurrent bounds how many hashes are computed at once. Zero means
// unbounded. Each running hash holds Memory KiB, so the bound caps peak memory.
type Config struct {
	Memory        uint32
	Time          uint32
	Parallelism   uint8
	SaltLength    uint32
	KeyLength     uint32
	MaxConcurrent int
}

// Argon2 is a concurrency-safe password hasher.
type Argon2 struct {
	config  Config
	permits *semaphore.Weighted
}

type parsedPHC struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

// NewArgon2 validates cfg against the package minimums and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	a := &Argon2{config: cfg}
	if cfg.MaxConcurrent > 0 {
		a.permits = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	return a, nil
}

// Hash derives a PHC-encoded Argon2id digest with a fresh random salt.
//
// Password bytes are used exactly as provided (no Unicode normalization).
// The only input error is [ErrEmptyPassword].
func (a *Argon2) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	hash := a.derive([]byte(password), salt, a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(hash),
	), nil
}

// Verify reports whether password matches encodedHash.
//
// Malformed or unsupported hashes verify as false. Digest comparison is
// constant-time.
func (a *Argon2) Verify(password string, encodedHash string) bool {
	if isBcrypt(encodedHash) {
		return verifyBcrypt(password, encodedHash)
	}

	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false
	}

	computed := a.derive(
		[]byte(password),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		uint32(len(parsed.hash)),
	)

	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1
}

// NeedsUpgrade reports whether encodedHash should be replaced by a fresh Hash.
//
// Legacy bcrypt digests and Argon2 digests weaker than the configured
// parameters need an upgrade. Unparsable input returns an error.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	if isBcrypt(encodedHash) {
		return true, nil
	}

	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	switch {
	case a.config.Memory > parsed.memory,
		a.config.Time > parsed.time,
		a.config.Parallelism > parsed.parallelism,
		a.config.KeyLength != uint32(len(parsed.hash)):
		return true, nil
	}
	return false, nil
}

func (a *Argon2) derive(password, salt []byte, time, memory uint32, threads uint8, keyLen uint32) []byte {
	if a.permits != nil {
		// Acquire with a background context never fails.
		_ = a.permits.Acquire(context.Background(), 1)
		defer a.permits.Release(1)
	}
	return argon2.IDKey(password, salt, time, memory, threads, keyLen)
}

func parsePHC(encodedHash string) (*parsedPHC, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errInvalidPHC
	}
	if parts[1] != algorithmID {
		return nil, errors.New("unsupported algorithm")
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return nil, errors.New("invalid argon2 version")
	}
	if version != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	parsed := &parsedPHC{}
	if err := parseParams(parts[3], parsed); err != nil {
		return nil, err
	}

	parsed.salt, err = base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(parsed.salt) < int(minSaltLength) || len(parsed.salt) > maxSaltLength {
		return nil, errors.New("invalid salt")
	}

	parsed.hash, err = base64.StdEncoding.DecodeString(parts[5])
	if err != nil || len(parsed.hash) < int(minKeyLength) || len(parsed.hash) > maxKeyLength {
		return nil, errors.New("invalid hash")
	}

	return parsed, nil
}

func parseParams(part string, out *parsedPHC) error {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return errors.New("invalid parameter format")
	}

	seen := make(map[string]bool, 3)
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || seen[key] {
			return errors.New("invalid parameter entry")
		}
		seen[key] = true

		switch key {
		case "m":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || v < uint64(minMemoryKB) || v > uint64(maxMemoryKB) {
				return errors.New("invalid memory parameter")
			}
			out.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || v < uint64(minTimeCost) || v > uint64(maxTimeCost) {
				return errors.New("invalid time parameter")
			}
			out.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(raw, 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return errors.New("invalid parallelism parameter")
			}
			out.parallelism = uint8(v)
		default:
			return errors.New("unsupported parameter")
		}
	}

	return nil
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB || cfg.Memory > maxMemoryKB {
		return errors.New("password memory must be between 8192 KB and 4 GiB")
	}
	if cfg.Time < minTimeCost || cfg.Time > maxTimeCost {
		return errors.New("password time must be between 1 and 64")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("password parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength || cfg.SaltLength > maxSaltLength {
		return errors.New("password salt length must be between 16 and 1024")
	}
	if cfg.KeyLength < minKeyLength || cfg.KeyLength > maxKeyLength {
		return errors.New("password key length must be between 16 and 1024")
	}
	if cfg.MaxConcurrent < 0 {
		return errors.New("password max concurrent must be >= 0")
	}

	return nil
}
