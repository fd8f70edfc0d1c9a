package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	apikeyDomain "github.com/allisson/agentauth/internal/apikey/domain"
	"github.com/allisson/agentauth/internal/metrics"
)

// apiKeyUseCaseWithMetrics decorates APIKeyUseCase with metrics instrumentation.
type apiKeyUseCaseWithMetrics struct {
	next    APIKeyUseCase
	metrics metrics.BusinessMetrics
}

// NewAPIKeyUseCaseWithMetrics wraps an APIKeyUseCase with metrics recording.
func NewAPIKeyUseCaseWithMetrics(useCase APIKeyUseCase, m metrics.BusinessMetrics) APIKeyUseCase {
	return &apiKeyUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (a *apiKeyUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	a.metrics.RecordOperation(ctx, "apikey", operation, status)
	a.metrics.RecordDuration(ctx, "apikey", operation, time.Since(start), status)
}

// IssueKey records metrics for key issuance operations.
func (a *apiKeyUseCaseWithMetrics) IssueKey(
	ctx context.Context,
	input *apikeyDomain.IssueKeyInput,
) (*apikeyDomain.IssueKeyOutput, error) {
	start := time.Now()
	output, err := a.next.IssueKey(ctx, input)
	a.record(ctx, "key_issue", start, err)
	return output, err
}

// ValidateKey records metrics for secret validation operations.
func (a *apiKeyUseCaseWithMetrics) ValidateKey(
	ctx context.Context,
	plainSecret string,
) (*apikeyDomain.APIKey, error) {
	start := time.Now()
	key, err := a.next.ValidateKey(ctx, plainSecret)
	a.record(ctx, "key_validate", start, err)
	return key, err
}

// RevokeKey records metrics for key revocation operations.
func (a *apiKeyUseCaseWithMetrics) RevokeKey(ctx context.Context, keyID, tenantID uuid.UUID) (bool, error) {
	start := time.Now()
	revoked, err := a.next.RevokeKey(ctx, keyID, tenantID)
	a.record(ctx, "key_revoke", start, err)
	return revoked, err
}

// UpdateKeyMetadata records metrics for key metadata updates.
func (a *apiKeyUseCaseWithMetrics) UpdateKeyMetadata(
	ctx context.Context,
	keyID, tenantID uuid.UUID,
	input *apikeyDomain.UpdateKeyMetadataInput,
) (*apikeyDomain.APIKey, error) {
	start := time.Now()
	key, err := a.next.UpdateKeyMetadata(ctx, keyID, tenantID, input)
	a.record(ctx, "key_update", start, err)
	return key, err
}

// GetKey records metrics for key retrieval operations.
func (a *apiKeyUseCaseWithMetrics) GetKey(ctx context.Context, keyID, tenantID uuid.UUID) (*apikeyDomain.APIKey, error) {
	start := time.Now()
	key, err := a.next.GetKey(ctx, keyID, tenantID)
	a.record(ctx, "key_get", start, err)
	return key, err
}

// ListKeys records metrics for key listing operations.
func (a *apiKeyUseCaseWithMetrics) ListKeys(
	ctx context.Context,
	tenantID uuid.UUID,
	offset, limit int,
) ([]*apikeyDomain.APIKey, error) {
	start := time.Now()
	keys, err := a.next.ListKeys(ctx, tenantID, offset, limit)
	a.record(ctx, "key_list", start, err)
	return keys, err
}

// ListUsage records metrics for usage log listing operations.
func (a *apiKeyUseCaseWithMetrics) ListUsage(
	ctx context.Context,
	keyID, tenantID uuid.UUID,
	offset, limit int,
) ([]*apikeyDomain.UsageLog, error) {
	start := time.Now()
	logs, err := a.next.ListUsage(ctx, keyID, tenantID, offset, limit)
	a.record(ctx, "usage_list", start, err)
	return logs, err
}

// RecordUsage passes through without instrumentation; it already runs inside
// instrumented operations.
func (a *apiKeyUseCaseWithMetrics) RecordUsage(
	ctx context.Context,
	keyID uuid.UUID,
	endpoint string,
	outcome apikeyDomain.UsageOutcome,
	latency time.Duration,
) error {
	return a.next.RecordUsage(ctx, keyID, endpoint, outcome, latency)
}
