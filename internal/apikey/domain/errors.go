package domain

import (
	apperrors "github.com/allisson/agentauth/internal/errors"
)

var (
	// ErrKeyNotFound covers both a truly absent key and a key owned by a
	// different tenant; callers cannot tell the two apart.
	ErrKeyNotFound = apperrors.Wrap(apperrors.ErrNotFound, "api key not found")

	// ErrInvalidKey is the single failure returned for every secret
	// validation miss (bad secret, inactive key, expired key). The uniform
	// error avoids leaking which stage rejected the credential.
	ErrInvalidKey = apperrors.Wrap(apperrors.ErrUnauthorized, "invalid api key")

	// ErrKeyRevoked rejects lifecycle transitions on a revoked key.
	ErrKeyRevoked = apperrors.Wrap(apperrors.ErrConflict, "api key is revoked")
)
