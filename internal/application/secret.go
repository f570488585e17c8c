package application

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidSecretHash         = errors.New("invalid secret hash format")
	ErrIncompatibleSecretVersion = errors.New("incompatible secret hash version")
)

// Argon2idParams tunes HashSecret.
type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// HashSecret derives an encoded argon2id hash of secret.
func HashSecret(secret string, params Argon2idParams) (string, error) {
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(secret), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	// Format is $argon2id$v=19$m=...,t=...,p=...$salt$hash
	format := "$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s"
	return fmt.Sprintf(format, argon2.Version, params.Memory, params.Iterations, params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt), base64.RawStdEncoding.EncodeToString(hash)), nil
}

// VerifySecret compares candidate with an encoded hash. A mismatch returns
// ErrUnauthorized; a malformed hash returns ErrInvalidSecretHash.
func VerifySecret(encoded, candidate string) error {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return ErrInvalidSecretHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return ErrInvalidSecretHash
	}
	if version != argon2.Version {
		return ErrIncompatibleSecretVersion
	}

	var params Argon2idParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return ErrInvalidSecretHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return ErrInvalidSecretHash
	}
	decoded, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(decoded) == 0 {
		return ErrInvalidSecretHash
	}

	comparison := argon2.IDKey([]byte(candidate), salt, params.Iterations, params.Memory, params.Parallelism, uint32(len(decoded)))
	if subtle.ConstantTimeCompare(decoded, comparison) == 1 {
		return nil
	}
	return ErrUnauthorized
}

// CronAuthenticator checks the shared secret presented by the external
// scheduler that triggers automation runs.
type CronAuthenticator struct {
	hash string
}

// NewCronAuthenticator builds an authenticator from an encoded argon2id hash.
func NewCronAuthenticator(hash string) (*CronAuthenticator, error) {
	if strings.TrimSpace(hash) == "" {
		return nil, ErrInvalidSecretHash
	}
	// A well formed hash never matches the empty candidate, so this only
	// rejects malformed input.
	if err := VerifySecret(hash, ""); err != nil && !errors.Is(err, ErrUnauthorized) {
		return nil, err
	}
	return &CronAuthenticator{hash: hash}, nil
}

// NewCronAuthenticatorFromSecret hashes a plaintext secret with params.
func NewCronAuthenticatorFromSecret(secret string, params Argon2idParams) (*CronAuthenticator, error) {
	if secret == "" {
		return nil, fmt.Errorf("cron secret must not be empty")
	}
	hash, err := HashSecret(secret, params)
	if err != nil {
		return nil, err
	}
	return &CronAuthenticator{hash: hash}, nil
}

// Authenticate returns ErrUnauthorized unless candidate matches the secret.
func (a *CronAuthenticator) Authenticate(candidate string) error {
	if a == nil || candidate == "" {
		return ErrUnauthorized
	}
	if err := VerifySecret(a.hash, candidate); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return ErrUnauthorized
		}
		return fmt.Errorf("verify cron secret: %w", err)
	}
	return nil
}
