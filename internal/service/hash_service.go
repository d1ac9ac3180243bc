package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2KeyLen  = 32
	argon2SaltLen = 16
)

// Argon2Params are the Argon2id cost parameters used for new hashes.
// Verification always uses the parameters encoded in the stored hash.
type Argon2Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

// DefaultArgon2Params matches the credential section defaults.
var DefaultArgon2Params = Argon2Params{Time: 1, MemoryKiB: 64 * 1024, Threads: 4}

var errMalformedHash = errors.New("malformed credential hash")

// Argon2Hasher implements ports.CredentialHasher using Argon2id.
type Argon2Hasher struct {
	params Argon2Params
}

// NewArgon2Hasher creates a hasher. Zero fields fall back to the defaults.
func NewArgon2Hasher(params Argon2Params) *Argon2Hasher {
	if params.Time == 0 {
		params.Time = DefaultArgon2Params.Time
	}
	if params.MemoryKiB == 0 {
		params.MemoryKiB = DefaultArgon2Params.MemoryKiB
	}
	if params.Threads == 0 {
		params.Threads = DefaultArgon2Params.Threads
	}
	return &Argon2Hasher{params: params}
}

// Hash returns $argon2id$v=19$m=<kib>,t=<time>,p=<threads>$<salt>$<key>.
func (h *Argon2Hasher) Hash(secret string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(secret), salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, argon2KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether secret produces the encoded hash.
func (h *Argon2Hasher) Verify(secret string, encoded string) (bool, error) {
	salt, key, params, err := decodeArgon2Hash(encoded)
	if err != nil {
		return false, err
	}

	other := argon2.IDKey([]byte(secret), salt, params.Time, params.MemoryKiB, params.Threads, uint32(len(key)))

	return subtle.ConstantTimeCompare(key, other) == 1, nil
}

func decodeArgon2Hash(encoded string) (salt, key []byte, params Argon2Params, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, nil, params, fmt.Errorf("%w: expected 6 parts, got %d", errMalformedHash, len(parts))
	}
	if parts[1] != "argon2id" {
		return nil, nil, params, fmt.Errorf("%w: unsupported algorithm %q", errMalformedHash, parts[1])
	}

	var version int
	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, params, fmt.Errorf("%w: parsing version: %w", errMalformedHash, err)
	}
	if version != argon2.Version {
		return nil, nil, params, fmt.Errorf("%w: unsupported version %d", errMalformedHash, version)
	}

	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.MemoryKiB, &params.Time, &params.Threads); err != nil {
		return nil, nil, params, fmt.Errorf("%w: parsing params: %w", errMalformedHash, err)
	}

	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, nil, params, fmt.Errorf("%w: decoding salt: %w", errMalformedHash, err)
	}
	if key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, nil, params, fmt.Errorf("%w: decoding key: %w", errMalformedHash, err)
	}
	if len(key) == 0 {
		return nil, nil, params, fmt.Errorf("%w: empty key", errMalformedHash)
	}

	return salt, key, params, nil
}
