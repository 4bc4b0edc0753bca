package argon2

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	goArgon2 "golang.org/x/crypto/argon2"
)

const (
	Argon2Memory      = 64 * 1024
	Argon2Iterations  = 3
	Argon2Parallelism = 2
	Argon2SaltLength  = 16
	Argon2KeyLength   = 32
)

// Hash derives an argon2id digest from a secret (password or OTP code)
// with a fresh random salt, so two hashes of the same input differ.
func Hash(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("secret cannot be empty")
	}

	salt := make([]byte, Argon2SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := goArgon2.IDKey([]byte(secret), salt, Argon2Iterations, Argon2Memory, Argon2Parallelism, Argon2KeyLength)

	saltB64 := base64.StdEncoding.EncodeToString(salt)
	keyB64 := base64.StdEncoding.EncodeToString(key)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		goArgon2.Version, Argon2Memory, Argon2Iterations, Argon2Parallelism, saltB64, keyB64), nil
}

// Verify recomputes the digest with the parameters embedded in encodedHash
// and compares in constant time.
func Verify(secret, encodedHash string) (bool, error) {
	if secret == "" {
		return false, fmt.Errorf("secret cannot be empty")
	}

	if encodedHash == "" {
		return false, fmt.Errorf("hash cannot be empty")
	}

	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false, fmt.Errorf("invalid hash format: expected 6 parts, got %d", len(parts))
	}

	if parts[1] != "argon2id" {
		return false, fmt.Errorf("unsupported hash type: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("failed to parse version: %w", err)
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false, fmt.Errorf("failed to parse parameters: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("failed to decode salt: %w", err)
	}

	key, err := base64.StdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("failed to decode hash: %w", err)
	}

	expectedKey := goArgon2.IDKey([]byte(secret), salt, iterations, memory, parallelism, uint32(len(key)))

	return subtle.ConstantTimeCompare(key, expectedKey) == 1, nil
}

// IsEncoded reports whether s already carries the argon2id envelope.
// Guards the set-secret paths against hashing an existing digest twice.
func IsEncoded(s string) bool {
	if s == "" {
		return false
	}

	parts := strings.Split(s, "$")
	return len(parts) == 6 && parts[1] == "argon2id"
}
