package service

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/allisson/go-pwdhash"

	apperrors "github.com/allisson/agentauth/internal/errors"
)

// SecretScheme tags every plaintext secret so keys are recognizable in
// configuration and grep-able in incident response. The tag is part of the
// hashed input.
const SecretScheme = "ak_live_"

// secretService implements SecretService using Argon2id for secret hashing.
type secretService struct {
	hasher       *pwdhash.PasswordHasher
	prefixLength int
}

// GenerateSecret creates a new cryptographically secure 32-byte random secret.
// The secret is base64-encoded, prefixed with the scheme tag, and hashed in
// full (tag included).
func (s *secretService) GenerateSecret() (plainSecret string, hashedSecret string, keyPrefix string, error error) {
	// Generate 32 random bytes (256 bits)
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", apperrors.Wrap(err, "failed to generate random secret")
	}

	// URL-safe alphabet so the secret survives headers and shell quoting
	plainSecret = SecretScheme + base64.RawURLEncoding.EncodeToString(randomBytes)

	hashedSecret, err := s.HashSecret(plainSecret)
	if err != nil {
		return "", "", "", err
	}

	return plainSecret, hashedSecret, s.Prefix(plainSecret), nil
}

// HashSecret hashes a plain text secret using Argon2id.
func (s *secretService) HashSecret(plainSecret string) (hashedSecret string, error error) {
	hashedSecret, err := s.hasher.Hash([]byte(plainSecret))
	if err != nil {
		return "", apperrors.Wrap(err, "failed to hash secret")
	}
	return hashedSecret, nil
}

// CompareSecret performs a constant-time comparison between a plain secret and its hash.
func (s *secretService) CompareSecret(plainSecret string, hashedSecret string) bool {
	ok, err := s.hasher.Verify([]byte(plainSecret), hashedSecret)
	if err != nil {
		return false
	}
	return ok
}

// Prefix returns the leading characters of the plaintext used for candidate
// lookup during validation. The prefix is stored in clear and is not a
// security boundary.
func (s *secretService) Prefix(plainSecret string) string {
	if len(plainSecret) < s.prefixLength {
		return plainSecret
	}
	return plainSecret[:s.prefixLength]
}

// NewSecretService creates a new SecretService instance using Argon2id hashing.
// Uses the Moderate policy for a balance between security and performance.
// prefixLength controls how many leading plaintext characters form the lookup
// prefix.
func NewSecretService(prefixLength int) SecretService {
	hasher, err := pwdhash.New(
		pwdhash.WithPolicy(pwdhash.PolicyModerate),
	)
	if err != nil {
		// This should never happen with valid policy
		panic(err)
	}

	return &secretService{
		hasher:       hasher,
		prefixLength: prefixLength,
	}
}
