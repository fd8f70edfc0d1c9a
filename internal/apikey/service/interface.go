// Package service provides technical services for API key credential handling.
//
// This package implements reusable services for secret generation, hashing,
// and validation using industry-standard cryptographic practices.
package service

// SecretService defines operations for API key secret generation and validation.
// Implementations must use cryptographically secure random generation and
// industry-standard hashing algorithms (e.g., bcrypt, argon2).
type SecretService interface {
	// GenerateSecret creates a new cryptographically secure random secret.
	// Returns the plain text secret (to be shared with the caller exactly
	// once), the hashed version (to be stored in the database), and the
	// non-secret lookup prefix derived from the plaintext.
	//
	// The plain secret must be treated as sensitive data and only displayed
	// once during key issuance; it is not recoverable afterwards.
	GenerateSecret() (plainSecret string, hashedSecret string, keyPrefix string, error error)

	// HashSecret hashes a plain text secret using a secure hashing algorithm.
	HashSecret(plainSecret string) (hashedSecret string, error error)

	// CompareSecret compares a plain text secret against a hashed secret.
	// Returns true if the plain secret matches the hash, false otherwise.
	// This is constant-time to prevent timing attacks.
	CompareSecret(plainSecret string, hashedSecret string) bool

	// Prefix derives the lookup prefix from a presented plaintext secret.
	Prefix(plainSecret string) string
}
