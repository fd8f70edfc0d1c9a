package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apikeyDomain "github.com/allisson/agentauth/internal/apikey/domain"
	apperrors "github.com/allisson/agentauth/internal/errors"
	toolDomain "github.com/allisson/agentauth/internal/tool/domain"
	"github.com/allisson/agentauth/internal/tool/service"
)

type mockToolRepository struct {
	mock.Mock
}

func (m *mockToolRepository) Create(ctx context.Context, tool *toolDomain.Tool) error {
	args := m.Called(ctx, tool)
	return args.Error(0)
}

func (m *mockToolRepository) Update(ctx context.Context, tool *toolDomain.Tool) error {
	args := m.Called(ctx, tool)
	return args.Error(0)
}

func (m *mockToolRepository) GetForTenant(ctx context.Context, toolID, tenantID uuid.UUID) (*toolDomain.Tool, error) {
	args := m.Called(ctx, toolID, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*toolDomain.Tool), args.Error(1)
}

func (m *mockToolRepository) GetByName(ctx context.Context, agentID uuid.UUID, toolName string, tenantID uuid.UUID) (*toolDomain.Tool, error) {
	args := m.Called(ctx, agentID, toolName, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*toolDomain.Tool), args.Error(1)
}

func (m *mockToolRepository) List(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]*toolDomain.Tool, error) {
	args := m.Called(ctx, tenantID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*toolDomain.Tool), args.Error(1)
}

type mockToolUsageLogRepository struct {
	mock.Mock
}

func (m *mockToolUsageLogRepository) Create(ctx context.Context, log *toolDomain.UsageLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *mockToolUsageLogRepository) ListByTool(ctx context.Context, toolID, tenantID uuid.UUID, offset, limit int) ([]*toolDomain.UsageLog, error) {
	args := m.Called(ctx, toolID, tenantID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*toolDomain.UsageLog), args.Error(1)
}

type mockKeyResolver struct {
	mock.Mock
}

func (m *mockKeyResolver) GetKey(ctx context.Context, keyID, tenantID uuid.UUID) (*apikeyDomain.APIKey, error) {
	args := m.Called(ctx, keyID, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apikeyDomain.APIKey), args.Error(1)
}

func (m *mockKeyResolver) RecordUsage(ctx context.Context, keyID uuid.UUID, endpoint string, outcome apikeyDomain.UsageOutcome, latency time.Duration) error {
	args := m.Called(ctx, keyID, endpoint, outcome, latency)
	return args.Error(0)
}

type mockRateLimiter struct {
	mock.Mock
}

func (m *mockRateLimiter) CheckAndAdmit(ctx context.Context, key *apikeyDomain.APIKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type execFixture struct {
	toolRepo     *mockToolRepository
	usageLogRepo *mockToolUsageLogRepository
	keyResolver  *mockKeyResolver
	rateLimiter  *mockRateLimiter
	registry     *service.Registry
	uc           ToolUseCase

	keyID    uuid.UUID
	agentID  uuid.UUID
	tenantID uuid.UUID
	key      *apikeyDomain.APIKey
	tool     *toolDomain.Tool
}

func newExecFixture(now time.Time, grantedPermissions, requiredPermissions []string) *execFixture {
	f := &execFixture{
		toolRepo:     &mockToolRepository{},
		usageLogRepo: &mockToolUsageLogRepository{},
		keyResolver:  &mockKeyResolver{},
		rateLimiter:  &mockRateLimiter{},
		registry:     service.NewRegistry(),
		keyID:        uuid.Must(uuid.NewV7()),
		agentID:      uuid.Must(uuid.NewV7()),
		tenantID:     uuid.Must(uuid.NewV7()),
	}
	f.key = &apikeyDomain.APIKey{
		ID:                 f.keyID,
		AgentID:            f.agentID,
		TenantID:           f.tenantID,
		Status:             apikeyDomain.StatusActive,
		GrantedPermissions: grantedPermissions,
	}
	f.tool = &toolDomain.Tool{
		ID:                  uuid.Must(uuid.NewV7()),
		AgentID:             f.agentID,
		TenantID:            f.tenantID,
		ToolName:            "fetch_invoice",
		RequiredPermissions: requiredPermissions,
		IsActive:            true,
	}
	f.uc = NewToolUseCase(f.toolRepo, f.usageLogRepo, f.keyResolver, f.rateLimiter, f.registry)
	f.uc.(*toolUseCase).nowFunc = func() time.Time { return now }
	return f
}

func TestToolUseCase_ExecuteTool(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Success_AuthorizedKeyRunsAction", func(t *testing.T) {
		f := newExecFixture(now, []string{"read_customer", "execute_tools"}, []string{"read_customer"})
		f.registry.Register("fetch_invoice", func(ctx context.Context, tool *toolDomain.Tool, params map[string]any) (any, error) {
			return map[string]any{"invoice": params["id"]}, nil
		})

		f.keyResolver.On("GetKey", ctx, f.keyID, f.tenantID).Return(f.key, nil)
		f.toolRepo.On("GetByName", ctx, f.agentID, "fetch_invoice", f.tenantID).Return(f.tool, nil)
		f.rateLimiter.On("CheckAndAdmit", ctx, f.key).Return(nil)
		f.usageLogRepo.On("Create", ctx, mock.MatchedBy(func(log *toolDomain.UsageLog) bool {
			return log.Status == toolDomain.UsageStatusSuccess && log.ToolID == f.tool.ID && log.KeyID == f.keyID
		})).Return(nil)
		f.keyResolver.On("RecordUsage", ctx, f.keyID, "tool:fetch_invoice", apikeyDomain.UsageOutcomeSuccess, mock.Anything).Return(nil)

		result, err := f.uc.ExecuteTool(ctx, f.keyID, f.tenantID, "fetch_invoice", map[string]any{"id": "inv-1"})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, map[string]any{"invoice": "inv-1"}, result.Result)
		assert.Empty(t, result.ErrorMessage)

		f.usageLogRepo.AssertExpectations(t)
		f.keyResolver.AssertExpectations(t)
	})

	t.Run("Success_MasterKeySatisfiesAnyRequiredSet", func(t *testing.T) {
		f := newExecFixture(now, nil, []string{"read_customer", "update_opportunity"})
		f.registry.Register("fetch_invoice", func(ctx context.Context, tool *toolDomain.Tool, params map[string]any) (any, error) {
			return "ok", nil
		})

		f.keyResolver.On("GetKey", ctx, f.keyID, f.tenantID).Return(f.key, nil)
		f.toolRepo.On("GetByName", ctx, f.agentID, "fetch_invoice", f.tenantID).Return(f.tool, nil)
		f.rateLimiter.On("CheckAndAdmit", ctx, f.key).Return(nil)
		f.usageLogRepo.On("Create", ctx, mock.Anything).Return(nil)
		f.keyResolver.On("RecordUsage", ctx, f.keyID, "tool:fetch_invoice", apikeyDomain.UsageOutcomeSuccess, mock.Anything).Return(nil)

		result, err := f.uc.ExecuteTool(ctx, f.keyID, f.tenantID, "fetch_invoice", nil)
		require.NoError(t, err)
		assert.True(t, result.Success)
	})

	t.Run("Failure_MissingPermissionsOnlyInAuditMetadata", func(t *testing.T) {
		f := newExecFixture(now, []string{"read_customer"}, []string{"read_customer", "update_customer"})

		f.keyResolver.On("GetKey", ctx, f.keyID, f.tenantID).Return(f.key, nil)
		f.toolRepo.On("GetByName", ctx, f.agentID, "fetch_invoice", f.tenantID).Return(f.tool, nil)
		f.rateLimiter.On("CheckAndAdmit", ctx, f.key).Return(nil)
		f.usageLogRepo.On("Create", ctx, mock.MatchedBy(func(log *toolDomain.UsageLog) bool {
			missing, ok := log.Metadata["missing_permissions"].([]string)
			return log.Status == toolDomain.UsageStatusDenied && ok && len(missing) == 1 && missing[0] == "update_customer"
		})).Return(nil)
		f.keyResolver.On("RecordUsage", ctx, f.keyID, "tool:fetch_invoice", apikeyDomain.UsageOutcomeUnauthorized, mock.Anything).Return(nil)

		_, err := f.uc.ExecuteTool(ctx, f.keyID, f.tenantID, "fetch_invoice", nil)
		require.ErrorIs(t, err, toolDomain.ErrPermissionDenied)
		// The caller-facing error never names the missing permissions
		assert.NotContains(t, err.Error(), "update_customer")

		f.usageLogRepo.AssertExpectations(t)
	})

	t.Run("Failure_CaseInsensitiveGrantStillSatisfies", func(t *testing.T) {
		f := newExecFixture(now, []string{"READ_Customer"}, []string{"read_customer"})
		f.registry.Register("fetch_invoice", func(ctx context.Context, tool *toolDomain.Tool, params map[string]any) (any, error) {
			return "ok", nil
		})

		f.keyResolver.On("GetKey", ctx, f.keyID, f.tenantID).Return(f.key, nil)
		f.toolRepo.On("GetByName", ctx, f.agentID, "fetch_invoice", f.tenantID).Return(f.tool, nil)
		f.rateLimiter.On("CheckAndAdmit", ctx, f.key).Return(nil)
		f.usageLogRepo.On("Create", ctx, mock.Anything).Return(nil)
		f.keyResolver.On("RecordUsage", ctx, f.keyID, "tool:fetch_invoice", apikeyDomain.UsageOutcomeSuccess, mock.Anything).Return(nil)

		result, err := f.uc.ExecuteTool(ctx, f.keyID, f.tenantID, "fetch_invoice", nil)
		require.NoError(t, err)
		assert.True(t, result.Success)
	})

	t.Run("Failure_RateLimitedCallIsAudited", func(t *testing.T) {
		f := newExecFixture(now, nil, nil)

		f.keyResolver.On("GetKey", ctx, f.keyID, f.tenantID).Return(f.key, nil)
		f.toolRepo.On("GetByName", ctx, f.agentID, "fetch_invoice", f.tenantID).Return(f.tool, nil)
		f.rateLimiter.On("CheckAndAdmit", ctx, f.key).Return(apperrors.ErrRateLimited)
		f.usageLogRepo.On("Create", ctx, mock.MatchedBy(func(log *toolDomain.UsageLog) bool {
			return log.Status == toolDomain.UsageStatusLimited
		})).Return(nil)
		f.keyResolver.On("RecordUsage", ctx, f.keyID, "tool:fetch_invoice", apikeyDomain.UsageOutcomeRateLimited, mock.Anything).Return(nil)

		_, err := f.uc.ExecuteTool(ctx, f.keyID, f.tenantID, "fetch_invoice", nil)
		assert.ErrorIs(t, err, apperrors.ErrRateLimited)
		f.usageLogRepo.AssertExpectations(t)
	})

	t.Run("Success_ActionErrorBecomesTypedOutcome", func(t *testing.T) {
		f := newExecFixture(now, nil, nil)
		f.registry.Register("fetch_invoice", func(ctx context.Context, tool *toolDomain.Tool, params map[string]any) (any, error) {
			return nil, errors.New("upstream ledger unavailable")
		})

		f.keyResolver.On("GetKey", ctx, f.keyID, f.tenantID).Return(f.key, nil)
		f.toolRepo.On("GetByName", ctx, f.agentID, "fetch_invoice", f.tenantID).Return(f.tool, nil)
		f.rateLimiter.On("CheckAndAdmit", ctx, f.key).Return(nil)
		f.usageLogRepo.On("Create", ctx, mock.MatchedBy(func(log *toolDomain.UsageLog) bool {
			return log.Status == toolDomain.UsageStatusError && log.ErrorMessage == "upstream ledger unavailable"
		})).Return(nil)
		f.keyResolver.On("RecordUsage", ctx, f.keyID, "tool:fetch_invoice", apikeyDomain.UsageOutcomeError, mock.Anything).Return(nil)

		result, err := f.uc.ExecuteTool(ctx, f.keyID, f.tenantID, "fetch_invoice", nil)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, "upstream ledger unavailable", result.ErrorMessage)
		assert.Nil(t, result.Result)
	})

	t.Run("Success_PanickingActionIsCaptured", func(t *testing.T) {
		f := newExecFixture(now, nil, nil)
		f.registry.Register("fetch_invoice", func(ctx context.Context, tool *toolDomain.Tool, params map[string]any) (any, error) {
			panic("boom")
		})

		f.keyResolver.On("GetKey", ctx, f.keyID, f.tenantID).Return(f.key, nil)
		f.toolRepo.On("GetByName", ctx, f.agentID, "fetch_invoice", f.tenantID).Return(f.tool, nil)
		f.rateLimiter.On("CheckAndAdmit", ctx, f.key).Return(nil)
		f.usageLogRepo.On("Create", ctx, mock.Anything).Return(nil)
		f.keyResolver.On("RecordUsage", ctx, f.keyID, "tool:fetch_invoice", apikeyDomain.UsageOutcomeError, mock.Anything).Return(nil)

		result, err := f.uc.ExecuteTool(ctx, f.keyID, f.tenantID, "fetch_invoice", nil)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Contains(t, result.ErrorMessage, "panicked")
	})

	t.Run("Failure_InactiveTool", func(t *testing.T) {
		f := newExecFixture(now, nil, nil)
		f.tool.IsActive = false

		f.keyResolver.On("GetKey", ctx, f.keyID, f.tenantID).Return(f.key, nil)
		f.toolRepo.On("GetByName", ctx, f.agentID, "fetch_invoice", f.tenantID).Return(f.tool, nil)
		f.keyResolver.On("RecordUsage", ctx, f.keyID, "tool:fetch_invoice", apikeyDomain.UsageOutcomeUnauthorized, mock.Anything).Return(nil)

		_, err := f.uc.ExecuteTool(ctx, f.keyID, f.tenantID, "fetch_invoice", nil)
		assert.ErrorIs(t, err, toolDomain.ErrToolInactive)
	})

	t.Run("Failure_UnknownTool", func(t *testing.T) {
		f := newExecFixture(now, nil, nil)

		f.keyResolver.On("GetKey", ctx, f.keyID, f.tenantID).Return(f.key, nil)
		f.toolRepo.On("GetByName", ctx, f.agentID, "fetch_invoice", f.tenantID).Return(nil, toolDomain.ErrToolNotFound)
		f.keyResolver.On("RecordUsage", ctx, f.keyID, "tool:fetch_invoice", apikeyDomain.UsageOutcomeError, mock.Anything).Return(nil)

		_, err := f.uc.ExecuteTool(ctx, f.keyID, f.tenantID, "fetch_invoice", nil)
		assert.ErrorIs(t, err, toolDomain.ErrToolNotFound)
	})

	t.Run("Failure_KeyMissingFromTenant", func(t *testing.T) {
		f := newExecFixture(now, nil, nil)

		f.keyResolver.On("GetKey", ctx, f.keyID, f.tenantID).Return(nil, apikeyDomain.ErrKeyNotFound)

		_, err := f.uc.ExecuteTool(ctx, f.keyID, f.tenantID, "fetch_invoice", nil)
		assert.ErrorIs(t, err, apikeyDomain.ErrInvalidKey)
	})
}

func TestToolUseCase_CreateTool(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	agentID := uuid.Must(uuid.NewV7())
	tenantID := uuid.Must(uuid.NewV7())

	t.Run("Success_CanonicalizesRequiredPermissions", func(t *testing.T) {
		toolRepo := &mockToolRepository{}
		toolRepo.On("GetByName", ctx, agentID, "fetch_invoice", tenantID).Return(nil, toolDomain.ErrToolNotFound)
		toolRepo.On("Create", ctx, mock.MatchedBy(func(tool *toolDomain.Tool) bool {
			return tool.IsActive && len(tool.RequiredPermissions) == 1 && tool.RequiredPermissions[0] == "read_customer"
		})).Return(nil)

		uc := NewToolUseCase(toolRepo, &mockToolUsageLogRepository{}, &mockKeyResolver{}, &mockRateLimiter{}, service.NewRegistry())
		uc.(*toolUseCase).nowFunc = func() time.Time { return now }

		tool, err := uc.CreateTool(ctx, &toolDomain.CreateToolInput{
			AgentID:             agentID,
			TenantID:            tenantID,
			ToolName:            "fetch_invoice",
			RequiredPermissions: []string{" Read:Customer "},
		})
		require.NoError(t, err)
		assert.True(t, tool.IsActive)
		toolRepo.AssertExpectations(t)
	})

	t.Run("Failure_DuplicateNameWithinAgent", func(t *testing.T) {
		toolRepo := &mockToolRepository{}
		existing := &toolDomain.Tool{ID: uuid.Must(uuid.NewV7()), ToolName: "fetch_invoice"}
		toolRepo.On("GetByName", ctx, agentID, "fetch_invoice", tenantID).Return(existing, nil)

		uc := NewToolUseCase(toolRepo, &mockToolUsageLogRepository{}, &mockKeyResolver{}, &mockRateLimiter{}, service.NewRegistry())

		_, err := uc.CreateTool(ctx, &toolDomain.CreateToolInput{
			AgentID:  agentID,
			TenantID: tenantID,
			ToolName: "fetch_invoice",
		})
		assert.ErrorIs(t, err, toolDomain.ErrToolNameTaken)
		toolRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Failure_UnknownRequiredPermission", func(t *testing.T) {
		toolRepo := &mockToolRepository{}

		uc := NewToolUseCase(toolRepo, &mockToolUsageLogRepository{}, &mockKeyResolver{}, &mockRateLimiter{}, service.NewRegistry())

		_, err := uc.CreateTool(ctx, &toolDomain.CreateToolInput{
			AgentID:             agentID,
			TenantID:            tenantID,
			ToolName:            "fetch_invoice",
			RequiredPermissions: []string{"launch_rockets"},
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		toolRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}
