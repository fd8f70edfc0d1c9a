package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	apikeyDomain "github.com/allisson/agentauth/internal/apikey/domain"
	apikeyUsecase "github.com/allisson/agentauth/internal/apikey/usecase"
	apperrors "github.com/allisson/agentauth/internal/errors"
	permissionDomain "github.com/allisson/agentauth/internal/permission/domain"
	toolDomain "github.com/allisson/agentauth/internal/tool/domain"
	"github.com/allisson/agentauth/internal/tool/service"
)

// KeyResolver is the slice of the API key use case that tool execution needs:
// resolving the calling key and appending its audit rows.
type KeyResolver interface {
	GetKey(ctx context.Context, keyID, tenantID uuid.UUID) (*apikeyDomain.APIKey, error)
	RecordUsage(ctx context.Context, keyID uuid.UUID, endpoint string, outcome apikeyDomain.UsageOutcome, latency time.Duration) error
}

// toolUseCase implements ToolUseCase.
type toolUseCase struct {
	toolRepo     ToolRepository
	usageLogRepo ToolUsageLogRepository
	keyResolver  KeyResolver
	rateLimiter  apikeyUsecase.RateLimiter
	runner       service.Runner
	nowFunc      func() time.Time
}

// CreateTool registers a tool for an agent. Registration is all-or-nothing:
// a required permission outside the catalog or a duplicate name within the
// agent fails the operation and nothing is persisted.
func (t *toolUseCase) CreateTool(
	ctx context.Context,
	input *toolDomain.CreateToolInput,
) (*toolDomain.Tool, error) {
	required, err := permissionDomain.ParseAll(input.RequiredPermissions)
	if err != nil {
		return nil, err
	}

	_, err = t.toolRepo.GetByName(ctx, input.AgentID, input.ToolName, input.TenantID)
	if err == nil {
		return nil, toolDomain.ErrToolNameTaken
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	tool := &toolDomain.Tool{
		ID:                  uuid.Must(uuid.NewV7()),
		AgentID:             input.AgentID,
		TenantID:            input.TenantID,
		ToolName:            input.ToolName,
		Description:         input.Description,
		RequiredPermissions: permissionDomain.Strings(required),
		IsActive:            true,
		CreatedAt:           t.nowFunc(),
	}
	if err := t.toolRepo.Create(ctx, tool); err != nil {
		return nil, err
	}
	return tool, nil
}

// UpdateTool applies a partial update. Nil fields are left unchanged.
func (t *toolUseCase) UpdateTool(
	ctx context.Context,
	toolID, tenantID uuid.UUID,
	input *toolDomain.UpdateToolInput,
) (*toolDomain.Tool, error) {
	tool, err := t.toolRepo.GetForTenant(ctx, toolID, tenantID)
	if err != nil {
		return nil, err
	}

	if input.Description != nil {
		tool.Description = *input.Description
	}
	if input.RequiredPermissions != nil {
		required, err := permissionDomain.ParseAll(*input.RequiredPermissions)
		if err != nil {
			return nil, err
		}
		tool.RequiredPermissions = permissionDomain.Strings(required)
	}
	if input.IsActive != nil {
		tool.IsActive = *input.IsActive
	}

	if err := t.toolRepo.Update(ctx, tool); err != nil {
		return nil, err
	}
	return tool, nil
}

// GetTool retrieves a tool within a tenant.
func (t *toolUseCase) GetTool(ctx context.Context, toolID, tenantID uuid.UUID) (*toolDomain.Tool, error) {
	return t.toolRepo.GetForTenant(ctx, toolID, tenantID)
}

// ListTools retrieves a tenant's tools with pagination.
func (t *toolUseCase) ListTools(
	ctx context.Context,
	tenantID uuid.UUID,
	offset, limit int,
) ([]*toolDomain.Tool, error) {
	return t.toolRepo.List(ctx, tenantID, offset, limit)
}

// ListToolUsage retrieves a tool's execution audit rows. The tenant check
// runs first so a foreign tenant cannot read another tenant's trail.
func (t *toolUseCase) ListToolUsage(
	ctx context.Context,
	toolID, tenantID uuid.UUID,
	offset, limit int,
) ([]*toolDomain.UsageLog, error) {
	if _, err := t.toolRepo.GetForTenant(ctx, toolID, tenantID); err != nil {
		return nil, err
	}
	return t.usageLogRepo.ListByTool(ctx, toolID, tenantID, offset, limit)
}

// ExecuteTool runs the authorize-then-execute pipeline.
//
// Order matters: the key is re-resolved for freshness, the tool is looked up,
// rate ceilings admit the call, and only then does the permission check and
// the action run. Every attempt leaves an audit row; which permissions were
// missing appears only in the audit metadata, never in the caller-facing
// error.
func (t *toolUseCase) ExecuteTool(
	ctx context.Context,
	keyID, tenantID uuid.UUID,
	toolName string,
	params map[string]any,
) (*toolDomain.ExecutionResult, error) {
	endpoint := "tool:" + toolName

	key, err := t.keyResolver.GetKey(ctx, keyID, tenantID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apikeyDomain.ErrInvalidKey
		}
		return nil, err
	}
	if !key.Usable(t.nowFunc()) {
		if err := t.keyResolver.RecordUsage(ctx, key.ID, endpoint, apikeyDomain.UsageOutcomeUnauthorized, 0); err != nil {
			return nil, err
		}
		return nil, apikeyDomain.ErrInvalidKey
	}

	tool, err := t.toolRepo.GetByName(ctx, key.AgentID, toolName, tenantID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if recErr := t.keyResolver.RecordUsage(ctx, key.ID, endpoint, apikeyDomain.UsageOutcomeError, 0); recErr != nil {
				return nil, recErr
			}
		}
		return nil, err
	}
	if !tool.IsActive {
		if err := t.keyResolver.RecordUsage(ctx, key.ID, endpoint, apikeyDomain.UsageOutcomeUnauthorized, 0); err != nil {
			return nil, err
		}
		return nil, toolDomain.ErrToolInactive
	}

	if err := t.rateLimiter.CheckAndAdmit(ctx, key); err != nil {
		if errors.Is(err, apperrors.ErrRateLimited) {
			if auditErr := t.audit(ctx, tool, key, toolDomain.UsageStatusLimited, "rate limit exceeded", 0, nil); auditErr != nil {
				return nil, auditErr
			}
		}
		return nil, err
	}

	// Master keys (empty grant) satisfy any required set.
	if !key.IsMasterKey() {
		missing := permissionDomain.Missing(key.GrantedPermissions, tool.RequiredPermissions)
		if len(missing) > 0 {
			metadata := map[string]any{"missing_permissions": missing}
			if err := t.audit(ctx, tool, key, toolDomain.UsageStatusDenied, "permission check failed", 0, metadata); err != nil {
				return nil, err
			}
			return nil, toolDomain.ErrPermissionDenied
		}
	}

	// Timing covers the action only, not authorization or admission.
	start := t.nowFunc()
	output, runErr := t.runAction(ctx, tool, params)
	elapsed := t.nowFunc().Sub(start)

	result := &toolDomain.ExecutionResult{
		Success:         runErr == nil,
		ExecutionTimeMs: elapsed.Milliseconds(),
	}
	status := toolDomain.UsageStatusSuccess
	if runErr != nil {
		result.ErrorMessage = runErr.Error()
		status = toolDomain.UsageStatusError
	} else {
		result.Result = output
	}

	if err := t.audit(ctx, tool, key, status, result.ErrorMessage, result.ExecutionTimeMs, nil); err != nil {
		return nil, err
	}
	return result, nil
}

// runAction invokes the runner, converting a panic into an error so a
// misbehaving action cannot take down the pipeline.
func (t *toolUseCase) runAction(
	ctx context.Context,
	tool *toolDomain.Tool,
	params map[string]any,
) (output any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %q panicked: %v", tool.ToolName, r)
		}
	}()
	return t.runner.Run(ctx, tool, params)
}

// audit writes both halves of the trail: the tool execution row and the
// calling key's usage row that feeds the rate limiter.
func (t *toolUseCase) audit(
	ctx context.Context,
	tool *toolDomain.Tool,
	key *apikeyDomain.APIKey,
	status toolDomain.UsageStatus,
	errorMessage string,
	executionTimeMs int64,
	metadata map[string]any,
) error {
	log := &toolDomain.UsageLog{
		ID:              uuid.Must(uuid.NewV7()),
		ToolID:          tool.ID,
		KeyID:           key.ID,
		TenantID:        tool.TenantID,
		Status:          status,
		ErrorMessage:    errorMessage,
		ExecutionTimeMs: executionTimeMs,
		Metadata:        metadata,
		CreatedAt:       t.nowFunc(),
	}
	if err := t.usageLogRepo.Create(ctx, log); err != nil {
		return err
	}

	var outcome apikeyDomain.UsageOutcome
	switch status {
	case toolDomain.UsageStatusSuccess:
		outcome = apikeyDomain.UsageOutcomeSuccess
	case toolDomain.UsageStatusLimited:
		outcome = apikeyDomain.UsageOutcomeRateLimited
	case toolDomain.UsageStatusDenied:
		outcome = apikeyDomain.UsageOutcomeUnauthorized
	default:
		outcome = apikeyDomain.UsageOutcomeError
	}
	return t.keyResolver.RecordUsage(ctx, key.ID, "tool:"+tool.ToolName, outcome, time.Duration(executionTimeMs)*time.Millisecond)
}

// NewToolUseCase creates a new ToolUseCase.
func NewToolUseCase(
	toolRepo ToolRepository,
	usageLogRepo ToolUsageLogRepository,
	keyResolver KeyResolver,
	rateLimiter apikeyUsecase.RateLimiter,
	runner service.Runner,
) ToolUseCase {
	return &toolUseCase{
		toolRepo:     toolRepo,
		usageLogRepo: usageLogRepo,
		keyResolver:  keyResolver,
		rateLimiter:  rateLimiter,
		runner:       runner,
		nowFunc:      func() time.Time { return time.Now().UTC() },
	}
}
