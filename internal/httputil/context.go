package httputil

import (
	"context"

	"github.com/google/uuid"

	apikeyDomain "github.com/allisson/agentauth/internal/apikey/domain"
)

// Identity is the human caller identity minted by the upstream request layer
// and carried into this service as a signed token.
type Identity struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
}

// identityKey is a context key type for storing the authenticated identity.
type identityKey struct{}

// apiKeyKey is a context key type for storing the authenticated API key.
type apiKeyKey struct{}

// WithIdentity stores an authenticated human identity in the context.
// This is typically called by the identity middleware after token validation.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// GetIdentity retrieves the authenticated identity from the context.
// Returns (identity, true) if present, or (nil, false) if no identity was set.
func GetIdentity(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*Identity)
	return identity, ok
}

// WithAPIKey stores an authenticated API key in the context.
// This is typically called by the key authentication middleware after the
// presented secret has been verified.
func WithAPIKey(ctx context.Context, key *apikeyDomain.APIKey) context.Context {
	return context.WithValue(ctx, apiKeyKey{}, key)
}

// GetAPIKey retrieves the authenticated API key from the context.
// Returns (key, true) if present, or (nil, false) if no key was set.
func GetAPIKey(ctx context.Context) (*apikeyDomain.APIKey, bool) {
	key, ok := ctx.Value(apiKeyKey{}).(*apikeyDomain.APIKey)
	return key, ok
}
