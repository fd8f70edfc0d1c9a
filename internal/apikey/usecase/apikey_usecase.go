package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	agentUsecase "github.com/allisson/agentauth/internal/agent/usecase"
	apikeyDomain "github.com/allisson/agentauth/internal/apikey/domain"
	"github.com/allisson/agentauth/internal/apikey/service"
	"github.com/allisson/agentauth/internal/database"
	apperrors "github.com/allisson/agentauth/internal/errors"
	permissionDomain "github.com/allisson/agentauth/internal/permission/domain"
)

// apiKeyUseCase implements APIKeyUseCase.
type apiKeyUseCase struct {
	apiKeyRepo    APIKeyRepository
	usageLogRepo  UsageLogRepository
	agentRepo     agentUsecase.AgentRepository
	secretService service.SecretService
	txManager     database.TxManager
	nowFunc       func() time.Time
}

// IssueKey creates a key for an agent. Issuance is all-or-nothing: an unknown
// agent, a permission name outside the catalog, or a non-positive rate limit
// fails the whole operation and nothing is persisted.
func (a *apiKeyUseCase) IssueKey(
	ctx context.Context,
	input *apikeyDomain.IssueKeyInput,
) (*apikeyDomain.IssueKeyOutput, error) {
	agent, err := a.agentRepo.GetForTenant(ctx, input.AgentID, input.TenantID)
	if err != nil {
		return nil, err
	}
	if !agent.IsActive() {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "agent %q is not active", agent.Name)
	}

	// Permission names are checked against the catalog here, at the boundary.
	// An empty set is deliberate: it issues a master key.
	granted, err := permissionDomain.ParseAll(input.GrantedPermissions)
	if err != nil {
		return nil, err
	}

	if err := validateRateLimit(input.RateLimitPerMinute, "rate limit per minute"); err != nil {
		return nil, err
	}
	if err := validateRateLimit(input.RateLimitPerHour, "rate limit per hour"); err != nil {
		return nil, err
	}

	plainSecret, hashedSecret, keyPrefix, err := a.secretService.GenerateSecret()
	if err != nil {
		return nil, err
	}

	key := &apikeyDomain.APIKey{
		ID:                 uuid.Must(uuid.NewV7()),
		AgentID:            input.AgentID,
		TenantID:           input.TenantID,
		KeyName:            input.KeyName,
		SecretHash:         hashedSecret,
		KeyPrefix:          keyPrefix,
		Status:             apikeyDomain.StatusActive,
		ExpiresAt:          input.ExpiresAt,
		GrantedPermissions: permissionDomain.Strings(granted),
		RateLimitPerMinute: input.RateLimitPerMinute,
		RateLimitPerHour:   input.RateLimitPerHour,
		CreatedAt:          a.nowFunc(),
	}

	err = a.txManager.WithTx(ctx, func(ctx context.Context) error {
		return a.apiKeyRepo.Create(ctx, key)
	})
	if err != nil {
		return nil, err
	}

	// The plaintext leaves the vault exactly once, right here.
	return &apikeyDomain.IssueKeyOutput{Key: key, PlainSecret: plainSecret}, nil
}

// ValidateKey authenticates a presented plaintext secret. The stored prefix
// narrows the candidate set; each candidate is then verified against its
// Argon2id hash. All failure modes collapse into ErrInvalidKey so a caller
// cannot probe which stage rejected it.
func (a *apiKeyUseCase) ValidateKey(
	ctx context.Context,
	plainSecret string,
) (*apikeyDomain.APIKey, error) {
	if !strings.HasPrefix(plainSecret, service.SecretScheme) {
		return nil, apikeyDomain.ErrInvalidKey
	}

	candidates, err := a.apiKeyRepo.ListActiveByPrefix(ctx, a.secretService.Prefix(plainSecret))
	if err != nil {
		return nil, err
	}

	now := a.nowFunc()
	for _, key := range candidates {
		if !key.Usable(now) {
			continue
		}
		if !a.secretService.CompareSecret(plainSecret, key.SecretHash) {
			continue
		}
		if err := a.apiKeyRepo.UpdateLastUsed(ctx, key.ID, now); err != nil {
			return nil, err
		}
		key.LastUsedAt = &now
		return key, nil
	}
	return nil, apikeyDomain.ErrInvalidKey
}

// RevokeKey terminally disables a key. A key absent from the tenant reports
// (false, nil) rather than an error; an already revoked key reports true.
func (a *apiKeyUseCase) RevokeKey(ctx context.Context, keyID, tenantID uuid.UUID) (bool, error) {
	key, err := a.apiKeyRepo.GetForTenant(ctx, keyID, tenantID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if key.Status == apikeyDomain.StatusRevoked {
		return true, nil
	}

	key.Revoke(a.nowFunc())
	if err := a.apiKeyRepo.Update(ctx, key); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateKeyMetadata applies a partial update. Nil fields are left unchanged;
// the secret hash and prefix cannot be updated by design of the repository
// Update statement.
func (a *apiKeyUseCase) UpdateKeyMetadata(
	ctx context.Context,
	keyID, tenantID uuid.UUID,
	input *apikeyDomain.UpdateKeyMetadataInput,
) (*apikeyDomain.APIKey, error) {
	key, err := a.apiKeyRepo.GetForTenant(ctx, keyID, tenantID)
	if err != nil {
		return nil, err
	}

	if input.KeyName != nil {
		key.KeyName = *input.KeyName
	}
	if input.ExpiresAt != nil {
		key.ExpiresAt = input.ExpiresAt
	}
	if input.RateLimitPerMinute != nil {
		if err := validateRateLimit(input.RateLimitPerMinute, "rate limit per minute"); err != nil {
			return nil, err
		}
		key.RateLimitPerMinute = input.RateLimitPerMinute
	}
	if input.RateLimitPerHour != nil {
		if err := validateRateLimit(input.RateLimitPerHour, "rate limit per hour"); err != nil {
			return nil, err
		}
		key.RateLimitPerHour = input.RateLimitPerHour
	}
	if input.Active != nil {
		if *input.Active {
			err = key.Activate()
		} else {
			err = key.Deactivate()
		}
		if err != nil {
			return nil, err
		}
	}

	if err := a.apiKeyRepo.Update(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}

// GetKey retrieves a key's metadata within a tenant.
func (a *apiKeyUseCase) GetKey(ctx context.Context, keyID, tenantID uuid.UUID) (*apikeyDomain.APIKey, error) {
	return a.apiKeyRepo.GetForTenant(ctx, keyID, tenantID)
}

// ListKeys retrieves a tenant's keys with pagination.
func (a *apiKeyUseCase) ListKeys(
	ctx context.Context,
	tenantID uuid.UUID,
	offset, limit int,
) ([]*apikeyDomain.APIKey, error) {
	return a.apiKeyRepo.List(ctx, tenantID, offset, limit)
}

// ListUsage retrieves a key's usage log rows. The tenant check runs first so
// a foreign tenant cannot read another tenant's audit trail.
func (a *apiKeyUseCase) ListUsage(
	ctx context.Context,
	keyID, tenantID uuid.UUID,
	offset, limit int,
) ([]*apikeyDomain.UsageLog, error) {
	if _, err := a.apiKeyRepo.GetForTenant(ctx, keyID, tenantID); err != nil {
		return nil, err
	}
	return a.usageLogRepo.ListByKey(ctx, keyID, offset, limit)
}

// RecordUsage appends one audit row. Endpoint names the operation attempted;
// the row never contains the presented secret.
func (a *apiKeyUseCase) RecordUsage(
	ctx context.Context,
	keyID uuid.UUID,
	endpoint string,
	outcome apikeyDomain.UsageOutcome,
	latency time.Duration,
) error {
	log := &apikeyDomain.UsageLog{
		ID:        uuid.Must(uuid.NewV7()),
		KeyID:     keyID,
		Endpoint:  endpoint,
		Outcome:   outcome,
		LatencyMs: latency.Milliseconds(),
		CreatedAt: a.nowFunc(),
	}
	return a.usageLogRepo.Create(ctx, log)
}

func validateRateLimit(limit *int, field string) error {
	if limit != nil && *limit <= 0 {
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "%s must be positive", field)
	}
	return nil
}

// NewAPIKeyUseCase creates a new APIKeyUseCase.
func NewAPIKeyUseCase(
	apiKeyRepo APIKeyRepository,
	usageLogRepo UsageLogRepository,
	agentRepo agentUsecase.AgentRepository,
	secretService service.SecretService,
	txManager database.TxManager,
) APIKeyUseCase {
	return &apiKeyUseCase{
		apiKeyRepo:    apiKeyRepo,
		usageLogRepo:  usageLogRepo,
		agentRepo:     agentRepo,
		secretService: secretService,
		txManager:     txManager,
		nowFunc:       func() time.Time { return time.Now().UTC() },
	}
}
