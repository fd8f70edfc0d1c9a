// Package usecase implements API key issuance, validation, lifecycle, and
// usage accounting.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	apikeyDomain "github.com/allisson/agentauth/internal/apikey/domain"
)

// APIKeyRepository defines persistence operations for API keys.
type APIKeyRepository interface {
	Create(ctx context.Context, key *apikeyDomain.APIKey) error
	Update(ctx context.Context, key *apikeyDomain.APIKey) error
	GetForTenant(ctx context.Context, keyID, tenantID uuid.UUID) (*apikeyDomain.APIKey, error)
	ListActiveByPrefix(ctx context.Context, keyPrefix string) ([]*apikeyDomain.APIKey, error)
	List(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]*apikeyDomain.APIKey, error)
	UpdateLastUsed(ctx context.Context, keyID uuid.UUID, usedAt time.Time) error
}

// UsageLogRepository defines persistence operations for key usage logs.
type UsageLogRepository interface {
	Create(ctx context.Context, log *apikeyDomain.UsageLog) error
	CountAdmittedSince(ctx context.Context, keyID uuid.UUID, since time.Time) (int, error)
	ListByKey(ctx context.Context, keyID uuid.UUID, offset, limit int) ([]*apikeyDomain.UsageLog, error)
}

// APIKeyUseCase defines business operations for agent API keys.
type APIKeyUseCase interface {
	// IssueKey creates a key for an agent and returns its metadata together
	// with the plaintext secret. The plaintext is returned exactly once;
	// afterwards only the Argon2id hash exists.
	IssueKey(ctx context.Context, input *apikeyDomain.IssueKeyInput) (*apikeyDomain.IssueKeyOutput, error)

	// ValidateKey authenticates a presented plaintext secret. Every failure
	// mode returns the same invalid-key error.
	ValidateKey(ctx context.Context, plainSecret string) (*apikeyDomain.APIKey, error)

	// RevokeKey terminally disables a key. Returns false without error when
	// the key does not exist in the tenant, so revocation is idempotent from
	// the caller's point of view.
	RevokeKey(ctx context.Context, keyID, tenantID uuid.UUID) (bool, error)

	// UpdateKeyMetadata applies a partial update to key metadata. The secret
	// hash and prefix are never touched.
	UpdateKeyMetadata(ctx context.Context, keyID, tenantID uuid.UUID, input *apikeyDomain.UpdateKeyMetadataInput) (*apikeyDomain.APIKey, error)

	GetKey(ctx context.Context, keyID, tenantID uuid.UUID) (*apikeyDomain.APIKey, error)
	ListKeys(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]*apikeyDomain.APIKey, error)
	ListUsage(ctx context.Context, keyID, tenantID uuid.UUID, offset, limit int) ([]*apikeyDomain.UsageLog, error)

	// RecordUsage appends one audit row for an authentication attempt or a
	// key-authorized call. Rows written here feed the rate limiter.
	RecordUsage(ctx context.Context, keyID uuid.UUID, endpoint string, outcome apikeyDomain.UsageOutcome, latency time.Duration) error
}

// RateLimiter admits or rejects a call on behalf of a key based on its
// configured per-minute and per-hour ceilings.
type RateLimiter interface {
	// CheckAndAdmit returns ErrRateLimited when admitting the call would meet
	// or exceed either configured ceiling. Keys with no ceilings are always
	// admitted; a key that is not usable is never admitted, with
	// ErrInvalidKey.
	CheckAndAdmit(ctx context.Context, key *apikeyDomain.APIKey) error
}
