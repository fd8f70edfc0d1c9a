package commands

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	apikeyDomain "github.com/allisson/agentauth/internal/apikey/domain"
	apperrors "github.com/allisson/agentauth/internal/errors"
	permissionDomain "github.com/allisson/agentauth/internal/permission/domain"
	roleDomain "github.com/allisson/agentauth/internal/role/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockPermissionUseCase struct {
	mock.Mock
}

func (m *mockPermissionUseCase) Catalog() []permissionDomain.Permission {
	args := m.Called()
	return args.Get(0).([]permissionDomain.Permission)
}

func (m *mockPermissionUseCase) Seed(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type mockRoleUseCase struct {
	mock.Mock
}

func (m *mockRoleUseCase) CreateRole(
	ctx context.Context,
	input *roleDomain.CreateRoleInput,
) (*roleDomain.Role, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*roleDomain.Role), args.Error(1)
}

func (m *mockRoleUseCase) CreateSystemRole(
	ctx context.Context,
	name, description string,
	permissionNames []string,
) (*roleDomain.Role, error) {
	args := m.Called(ctx, name, description, permissionNames)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*roleDomain.Role), args.Error(1)
}

func (m *mockRoleUseCase) GetRole(
	ctx context.Context,
	roleID, tenantID uuid.UUID,
) (*roleDomain.Role, []string, error) {
	args := m.Called(ctx, roleID, tenantID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*roleDomain.Role), args.Get(1).([]string), args.Error(2)
}

func (m *mockRoleUseCase) ListRoles(
	ctx context.Context,
	tenantID uuid.UUID,
	offset, limit int,
) ([]*roleDomain.Role, error) {
	args := m.Called(ctx, tenantID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*roleDomain.Role), args.Error(1)
}

func (m *mockRoleUseCase) UpdateRole(
	ctx context.Context,
	roleID, tenantID uuid.UUID,
	input *roleDomain.UpdateRoleInput,
) error {
	args := m.Called(ctx, roleID, tenantID, input)
	return args.Error(0)
}

func (m *mockRoleUseCase) DeleteRole(ctx context.Context, roleID, tenantID uuid.UUID) error {
	args := m.Called(ctx, roleID, tenantID)
	return args.Error(0)
}

func (m *mockRoleUseCase) AssignPermission(
	ctx context.Context,
	roleID, tenantID uuid.UUID,
	permissionName string,
) error {
	args := m.Called(ctx, roleID, tenantID, permissionName)
	return args.Error(0)
}

func (m *mockRoleUseCase) RemovePermission(
	ctx context.Context,
	roleID, tenantID uuid.UUID,
	permissionName string,
) error {
	args := m.Called(ctx, roleID, tenantID, permissionName)
	return args.Error(0)
}

func (m *mockRoleUseCase) AssignRoleToUser(
	ctx context.Context,
	userID, roleID, tenantID, assignedByUserID uuid.UUID,
) (*roleDomain.UserRoleAssignment, error) {
	args := m.Called(ctx, userID, roleID, tenantID, assignedByUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*roleDomain.UserRoleAssignment), args.Error(1)
}

func (m *mockRoleUseCase) RevokeRoleFromUser(
	ctx context.Context,
	userID, roleID, tenantID uuid.UUID,
) error {
	args := m.Called(ctx, userID, roleID, tenantID)
	return args.Error(0)
}

func (m *mockRoleUseCase) ListAssignments(
	ctx context.Context,
	userID, tenantID uuid.UUID,
) ([]*roleDomain.UserRoleAssignment, error) {
	args := m.Called(ctx, userID, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*roleDomain.UserRoleAssignment), args.Error(1)
}

func (m *mockRoleUseCase) ResolveEffectivePermissions(
	ctx context.Context,
	userID, tenantID uuid.UUID,
) ([]string, error) {
	args := m.Called(ctx, userID, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockRoleUseCase) UserHasPermission(
	ctx context.Context,
	userID uuid.UUID,
	permissionName permissionDomain.Name,
	tenantID uuid.UUID,
) (bool, error) {
	args := m.Called(ctx, userID, permissionName, tenantID)
	return args.Bool(0), args.Error(1)
}

type mockAPIKeyUseCase struct {
	mock.Mock
}

func (m *mockAPIKeyUseCase) IssueKey(
	ctx context.Context,
	input *apikeyDomain.IssueKeyInput,
) (*apikeyDomain.IssueKeyOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apikeyDomain.IssueKeyOutput), args.Error(1)
}

func (m *mockAPIKeyUseCase) ValidateKey(
	ctx context.Context,
	plainSecret string,
) (*apikeyDomain.APIKey, error) {
	args := m.Called(ctx, plainSecret)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apikeyDomain.APIKey), args.Error(1)
}

func (m *mockAPIKeyUseCase) RevokeKey(ctx context.Context, keyID, tenantID uuid.UUID) (bool, error) {
	args := m.Called(ctx, keyID, tenantID)
	return args.Bool(0), args.Error(1)
}

func (m *mockAPIKeyUseCase) UpdateKeyMetadata(
	ctx context.Context,
	keyID, tenantID uuid.UUID,
	input *apikeyDomain.UpdateKeyMetadataInput,
) (*apikeyDomain.APIKey, error) {
	args := m.Called(ctx, keyID, tenantID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apikeyDomain.APIKey), args.Error(1)
}

func (m *mockAPIKeyUseCase) GetKey(
	ctx context.Context,
	keyID, tenantID uuid.UUID,
) (*apikeyDomain.APIKey, error) {
	args := m.Called(ctx, keyID, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apikeyDomain.APIKey), args.Error(1)
}

func (m *mockAPIKeyUseCase) ListKeys(
	ctx context.Context,
	tenantID uuid.UUID,
	offset, limit int,
) ([]*apikeyDomain.APIKey, error) {
	args := m.Called(ctx, tenantID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*apikeyDomain.APIKey), args.Error(1)
}

func (m *mockAPIKeyUseCase) ListUsage(
	ctx context.Context,
	keyID, tenantID uuid.UUID,
	offset, limit int,
) ([]*apikeyDomain.UsageLog, error) {
	args := m.Called(ctx, keyID, tenantID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*apikeyDomain.UsageLog), args.Error(1)
}

func (m *mockAPIKeyUseCase) RecordUsage(
	ctx context.Context,
	keyID uuid.UUID,
	endpoint string,
	outcome apikeyDomain.UsageOutcome,
	latency time.Duration,
) error {
	args := m.Called(ctx, keyID, endpoint, outcome, latency)
	return args.Error(0)
}

func TestMigrationsPath(t *testing.T) {
	assert.Equal(t, "file://migrations/postgres", migrationsPath("postgres"))
	assert.Equal(t, "file://migrations/mysql", migrationsPath("mysql"))
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"read_customer", "execute_tools"}, splitCSV("read_customer, execute_tools"))
	assert.Empty(t, splitCSV(""))
	assert.Empty(t, splitCSV(" , "))
}

func TestRunSeedPermissions(t *testing.T) {
	ctx := context.Background()

	t.Run("seeds catalog and lists entries", func(t *testing.T) {
		useCase := &mockPermissionUseCase{}
		useCase.On("Catalog").Return([]permissionDomain.Permission{
			{Name: permissionDomain.ReadCustomer, Module: permissionDomain.ModuleCustomer},
		})
		useCase.On("Seed", ctx).Return(nil)

		var out bytes.Buffer
		err := RunSeedPermissions(ctx, useCase, testLogger(), &out)

		require.NoError(t, err)
		assert.Contains(t, out.String(), "read_customer")
		useCase.AssertExpectations(t)
	})

	t.Run("propagates seed failure", func(t *testing.T) {
		useCase := &mockPermissionUseCase{}
		useCase.On("Catalog").Return([]permissionDomain.Permission{})
		useCase.On("Seed", ctx).Return(apperrors.ErrUnavailable)

		var out bytes.Buffer
		err := RunSeedPermissions(ctx, useCase, testLogger(), &out)

		require.ErrorIs(t, err, apperrors.ErrUnavailable)
	})
}

func TestRunCreateRole(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.Must(uuid.NewV7())

	t.Run("creates tenant role with permissions", func(t *testing.T) {
		useCase := &mockRoleUseCase{}
		role := &roleDomain.Role{
			ID:       uuid.Must(uuid.NewV7()),
			Name:     "support",
			TenantID: &tenantID,
		}

		useCase.On("CreateRole", ctx, mock.MatchedBy(func(input *roleDomain.CreateRoleInput) bool {
			return input.Name == "support" && input.TenantID != nil && *input.TenantID == tenantID
		})).Return(role, nil)
		useCase.On("AssignPermission", ctx, role.ID, tenantID, "read_customer").Return(nil)
		useCase.On("AssignPermission", ctx, role.ID, tenantID, "view_usage_logs").Return(nil)

		var out bytes.Buffer
		err := RunCreateRole(
			ctx,
			useCase,
			testLogger(),
			"support",
			"customer support staff",
			tenantID.String(),
			"read_customer,view_usage_logs",
			"text",
			&out,
		)

		require.NoError(t, err)
		assert.Contains(t, out.String(), role.ID.String())
		assert.Contains(t, out.String(), "read_customer")
		useCase.AssertExpectations(t)
	})

	t.Run("system role when tenant omitted", func(t *testing.T) {
		useCase := &mockRoleUseCase{}
		role := &roleDomain.Role{
			ID:           uuid.Must(uuid.NewV7()),
			Name:         "auditor",
			IsSystemRole: true,
		}

		useCase.On("CreateSystemRole", ctx, "auditor", "", []string{"view_usage_logs"}).
			Return(role, nil)

		var out bytes.Buffer
		err := RunCreateRole(ctx, useCase, testLogger(), "auditor", "", "", "view_usage_logs", "text", &out)

		require.NoError(t, err)
		assert.Contains(t, out.String(), "system scope")
		useCase.AssertNotCalled(t, "CreateRole", mock.Anything, mock.Anything)
		useCase.AssertNotCalled(t, "AssignPermission",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		useCase.AssertExpectations(t)
	})

	t.Run("rejects malformed tenant id", func(t *testing.T) {
		useCase := &mockRoleUseCase{}

		var out bytes.Buffer
		err := RunCreateRole(ctx, useCase, testLogger(), "support", "", "not-a-uuid", "", "text", &out)

		require.Error(t, err)
		useCase.AssertNotCalled(t, "CreateRole", mock.Anything, mock.Anything)
	})
}

func TestRunIssueKey(t *testing.T) {
	ctx := context.Background()
	agentID := uuid.Must(uuid.NewV7())
	tenantID := uuid.Must(uuid.NewV7())

	t.Run("prints the plaintext secret once", func(t *testing.T) {
		useCase := &mockAPIKeyUseCase{}
		output := &apikeyDomain.IssueKeyOutput{
			Key: &apikeyDomain.APIKey{
				ID:        uuid.Must(uuid.NewV7()),
				KeyPrefix: "ak_live_abcd",
			},
			PlainSecret: "ak_live_abcdefghijklmnop",
		}

		useCase.On("IssueKey", ctx, mock.MatchedBy(func(input *apikeyDomain.IssueKeyInput) bool {
			return input.AgentID == agentID &&
				input.TenantID == tenantID &&
				input.KeyName == "ci key" &&
				input.ExpiresAt != nil &&
				input.RateLimitPerMinute != nil && *input.RateLimitPerMinute == 60
		})).Return(output, nil)

		var out bytes.Buffer
		err := RunIssueKey(
			ctx,
			useCase,
			testLogger(),
			agentID.String(),
			tenantID.String(),
			"ci key",
			"execute_tools",
			24*time.Hour,
			60,
			0,
			"text",
			&out,
		)

		require.NoError(t, err)
		assert.Contains(t, out.String(), "ak_live_abcdefghijklmnop")
		assert.Contains(t, out.String(), "shown only once")
		useCase.AssertExpectations(t)
	})

	t.Run("json output", func(t *testing.T) {
		useCase := &mockAPIKeyUseCase{}
		output := &apikeyDomain.IssueKeyOutput{
			Key:         &apikeyDomain.APIKey{ID: uuid.Must(uuid.NewV7()), KeyPrefix: "ak_live_wxyz"},
			PlainSecret: "ak_live_wxyz0123456789",
		}
		useCase.On("IssueKey", ctx, mock.Anything).Return(output, nil)

		var out bytes.Buffer
		err := RunIssueKey(
			ctx, useCase, testLogger(),
			agentID.String(), tenantID.String(), "ci key", "", 0, 0, 0, "json", &out,
		)

		require.NoError(t, err)
		assert.Contains(t, out.String(), `"secret"`)
		assert.Contains(t, out.String(), "ak_live_wxyz0123456789")
	})

	t.Run("rejects malformed agent id", func(t *testing.T) {
		useCase := &mockAPIKeyUseCase{}

		var out bytes.Buffer
		err := RunIssueKey(
			ctx, useCase, testLogger(),
			"not-a-uuid", tenantID.String(), "ci key", "", 0, 0, 0, "text", &out,
		)

		require.Error(t, err)
		useCase.AssertNotCalled(t, "IssueKey", mock.Anything, mock.Anything)
	})
}
