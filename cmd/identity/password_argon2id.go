package identity

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2idParams defines Argon2id hashing parameters for password hashing.
// These values must be chosen carefully to balance security and performance.
type Argon2idParams struct {
	MemoryKiB uint32
	Time      uint32
	Threads   uint8
	SaltLen   uint32
	KeyLen    uint32
}

// DefaultArgon2idParams returns parameters suitable for an interactive login path.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		MemoryKiB: 64 * 1024,
		Time:      2,
		Threads:   2,
		SaltLen:   16,
		KeyLen:    32,
	}
}

// Anti-DoS ceilings applied when verifying hashes we did not produce.
const (
	maxVerifyMemoryKiB = 1 << 21 // 2 GiB
	maxVerifyTime      = 16
	maxVerifyThreads   = 16
)

var (
	// ErrPasswordTooShort is returned for passwords under the baseline minimum.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrPasswordTooLong guards against absurd inputs reaching the KDF.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrInvalidHash is returned for malformed or non-argon2id PHC strings.
	ErrInvalidHash = errors.New("invalid argon2id hash format")
)

const (
	passwordMinLen = 8
	passwordMaxLen = 256
)

// HashPassword returns a PHC-style Argon2id hash string.
func HashPassword(plain string, p Argon2idParams) (string, error) {
	if len(plain) < passwordMinLen {
		return "", ErrPasswordTooShort
	}
	if len(plain) > passwordMaxLen {
		return "", ErrPasswordTooLong
	}

	p = sanitizeParams(p)

	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(plain), salt, p.Time, p.MemoryKiB, p.Threads, p.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.MemoryKiB, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword checks a password against a PHC Argon2id hash.
// Parsing is strict, and hashes demanding parameters above the verify
// ceilings are rejected instead of being computed.
func VerifyPassword(plain string, encodedPHC string) (bool, error) {
	if len(plain) > passwordMaxLen {
		return false, ErrPasswordTooLong
	}

	parts := strings.Split(encodedPHC, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return false, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, ErrInvalidHash
	}

	var memoryKiB, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memoryKiB, &iterations, &threads); err != nil {
		return false, ErrInvalidHash
	}
	if memoryKiB == 0 || iterations == 0 || threads == 0 {
		return false, ErrInvalidHash
	}
	if memoryKiB > maxVerifyMemoryKiB || iterations > maxVerifyTime || threads > maxVerifyThreads {
		return false, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return false, ErrInvalidHash
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false, ErrInvalidHash
	}

	got := argon2.IDKey([]byte(plain), salt, iterations, memoryKiB, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func sanitizeParams(p Argon2idParams) Argon2idParams {
	if p.MemoryKiB < 8*1024 {
		p.MemoryKiB = 8 * 1024
	}
	if p.Time == 0 {
		p.Time = 1
	}
	if p.Threads == 0 {
		p.Threads = 1
	}
	if p.SaltLen < 8 {
		p.SaltLen = 16
	}
	if p.KeyLen < 16 {
		p.KeyLen = 32
	}
	return p
}
