// Package domain defines agent API key models and lifecycle rules.
//
// An API key is an opaque bearer credential: the plaintext secret is returned
// exactly once at issuance and only an Argon2id hash of it is ever stored.
// A short non-secret prefix of the plaintext narrows candidates during
// validation; it is a lookup aid, not a security boundary.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/agentauth/internal/errors"
)

// Status is the key lifecycle state. Valid transitions:
//
//	active   -> inactive (deactivate) -> active (reactivate)
//	active   -> revoked  (terminal)
//	inactive -> revoked  (terminal)
//
// Revocation is terminal: a revoked key can never authenticate again.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusRevoked  Status = "revoked"
)

// ParseStatus validates an externally-supplied status value at the boundary.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive, nil
	case StatusInactive:
		return StatusInactive, nil
	case StatusRevoked:
		return StatusRevoked, nil
	default:
		return "", apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown api key status %q", s)
	}
}

// APIKey is an issued agent credential. SecretHash is the Argon2id hash of
// the full plaintext (scheme tag included); the plaintext itself is never
// persisted.
type APIKey struct {
	ID        uuid.UUID
	AgentID   uuid.UUID
	TenantID  uuid.UUID
	KeyName   string
	SecretHash string
	KeyPrefix string
	Status    Status
	ExpiresAt *time.Time

	// GrantedPermissions is the key's permission scope. An empty set makes
	// the key a master key: it satisfies every tool's required set. This
	// mirrors the historical data model; treat it as an escalation hazard
	// when granting, not as hardening.
	GrantedPermissions []string

	RateLimitPerMinute *int
	RateLimitPerHour   *int

	LastUsedAt *time.Time
	CreatedAt  time.Time
	RevokedAt  *time.Time
}

// IsMasterKey reports whether the key carries the unrestricted empty grant.
func (k *APIKey) IsMasterKey() bool {
	return len(k.GrantedPermissions) == 0
}

// Usable reports whether the key may authenticate at the given instant:
// it must be active and not past its expiry.
func (k *APIKey) Usable(now time.Time) bool {
	if k.Status != StatusActive {
		return false
	}
	if k.ExpiresAt != nil && !k.ExpiresAt.After(now) {
		return false
	}
	return true
}

// Activate transitions the key to active. Fails for revoked keys.
func (k *APIKey) Activate() error {
	if k.Status == StatusRevoked {
		return ErrKeyRevoked
	}
	k.Status = StatusActive
	return nil
}

// Deactivate transitions the key to inactive. Fails for revoked keys.
func (k *APIKey) Deactivate() error {
	if k.Status == StatusRevoked {
		return ErrKeyRevoked
	}
	k.Status = StatusInactive
	return nil
}

// Revoke terminally disables the key.
func (k *APIKey) Revoke(now time.Time) {
	k.Status = StatusRevoked
	k.RevokedAt = &now
}

// IssueKeyInput contains the parameters for issuing a new API key.
// An empty GrantedPermissions set issues a master key.
type IssueKeyInput struct {
	AgentID            uuid.UUID
	TenantID           uuid.UUID
	KeyName            string
	ExpiresAt          *time.Time
	GrantedPermissions []string
	RateLimitPerMinute *int
	RateLimitPerHour   *int
}

// IssueKeyOutput contains the issued key metadata and the plaintext secret.
// SECURITY: PlainSecret is returned only here, once; it is never retrievable
// again from any response, log, or error message.
type IssueKeyOutput struct {
	Key         *APIKey
	PlainSecret string
}

// UpdateKeyMetadataInput is a partial update of key metadata. Nil fields are
// left unchanged. The hash and prefix are never touched by updates.
type UpdateKeyMetadataInput struct {
	KeyName            *string
	ExpiresAt          *time.Time
	RateLimitPerMinute *int
	RateLimitPerHour   *int
	Active             *bool
}

// UsageOutcome classifies one authentication attempt or key-authorized call.
type UsageOutcome string

const (
	UsageOutcomeSuccess      UsageOutcome = "success"
	UsageOutcomeUnauthorized UsageOutcome = "unauthorized"
	UsageOutcomeRateLimited  UsageOutcome = "rate_limited"
	UsageOutcomeError        UsageOutcome = "error"
)

// UsageLog is one append-only audit row. These rows double as the rate
// limiter's data source: admission counts rows inside the trailing window.
type UsageLog struct {
	ID        uuid.UUID
	KeyID     uuid.UUID
	Endpoint  string
	Outcome   UsageOutcome
	LatencyMs int64
	CreatedAt time.Time
}
