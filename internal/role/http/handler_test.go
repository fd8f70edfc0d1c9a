package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/agentauth/internal/httputil"
	permissionDomain "github.com/allisson/agentauth/internal/permission/domain"
	roleDomain "github.com/allisson/agentauth/internal/role/domain"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
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

func (m *mockRoleUseCase) RevokeRoleFromUser(ctx context.Context, userID, roleID, tenantID uuid.UUID) error {
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

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func withTestIdentity(identity *httputil.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := httputil.WithIdentity(c.Request.Context(), identity)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func TestCreateRoleHandler(t *testing.T) {
	tenantID := uuid.Must(uuid.NewV7())
	identity := &httputil.Identity{UserID: uuid.Must(uuid.NewV7()), TenantID: tenantID}

	newRouter := func(useCase *mockRoleUseCase) *gin.Engine {
		router := gin.New()
		handler := NewRoleHandler(useCase, testLogger())
		router.POST("/v1/roles", withTestIdentity(identity), handler.CreateHandler)
		return router
	}

	t.Run("creates tenant role", func(t *testing.T) {
		role := &roleDomain.Role{
			ID:        uuid.Must(uuid.NewV7()),
			Name:      "support",
			TenantID:  &tenantID,
			CreatedAt: time.Now().UTC(),
		}

		useCase := &mockRoleUseCase{}
		useCase.On("CreateRole", mock.Anything, mock.MatchedBy(func(input *roleDomain.CreateRoleInput) bool {
			return input.Name == "support" && input.TenantID != nil && *input.TenantID == tenantID
		})).Return(role, nil)

		body := []byte(`{"name":"support","description":"support staff"}`)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/roles", bytes.NewReader(body))
		newRouter(useCase).ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var response RoleResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, role.ID.String(), response.ID)
		useCase.AssertExpectations(t)
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		useCase := &mockRoleUseCase{}
		useCase.On("CreateRole", mock.Anything, mock.Anything).
			Return(nil, roleDomain.ErrRoleNameTaken)

		body := []byte(`{"name":"support"}`)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/roles", bytes.NewReader(body))
		newRouter(useCase).ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("rejects blank name", func(t *testing.T) {
		useCase := &mockRoleUseCase{}

		body := []byte(`{"name":"  "}`)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/roles", bytes.NewReader(body))
		newRouter(useCase).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		useCase.AssertNotCalled(t, "CreateRole")
	})
}

func TestUpdateRoleHandler(t *testing.T) {
	tenantID := uuid.Must(uuid.NewV7())
	identity := &httputil.Identity{UserID: uuid.Must(uuid.NewV7()), TenantID: tenantID}
	roleID := uuid.Must(uuid.NewV7())

	t.Run("system role immutable", func(t *testing.T) {
		useCase := &mockRoleUseCase{}
		useCase.On("UpdateRole", mock.Anything, roleID, tenantID, mock.Anything).
			Return(roleDomain.ErrSystemRoleImmutable)

		router := gin.New()
		handler := NewRoleHandler(useCase, testLogger())
		router.PATCH("/v1/roles/:id", withTestIdentity(identity), handler.UpdateHandler)

		body := []byte(`{"name":"renamed"}`)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPatch, "/v1/roles/"+roleID.String(), bytes.NewReader(body))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestAssignPermissionHandler(t *testing.T) {
	tenantID := uuid.Must(uuid.NewV7())
	identity := &httputil.Identity{UserID: uuid.Must(uuid.NewV7()), TenantID: tenantID}
	roleID := uuid.Must(uuid.NewV7())

	newRouter := func(useCase *mockRoleUseCase) *gin.Engine {
		router := gin.New()
		handler := NewRoleHandler(useCase, testLogger())
		router.POST("/v1/roles/:id/permissions", withTestIdentity(identity), handler.AssignPermissionHandler)
		return router
	}

	t.Run("grants permission", func(t *testing.T) {
		useCase := &mockRoleUseCase{}
		useCase.On("AssignPermission", mock.Anything, roleID, tenantID, "read_customer").
			Return(nil)

		body := []byte(`{"permission":"read_customer"}`)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/roles/"+roleID.String()+"/permissions", bytes.NewReader(body))
		newRouter(useCase).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		useCase.AssertExpectations(t)
	})

	t.Run("rejects malformed permission name", func(t *testing.T) {
		useCase := &mockRoleUseCase{}

		body := []byte(`{"permission":"read customer"}`)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/roles/"+roleID.String()+"/permissions", bytes.NewReader(body))
		newRouter(useCase).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		useCase.AssertNotCalled(t, "AssignPermission")
	})
}

func TestAssignRoleHandler(t *testing.T) {
	tenantID := uuid.Must(uuid.NewV7())
	adminID := uuid.Must(uuid.NewV7())
	identity := &httputil.Identity{UserID: adminID, TenantID: tenantID}
	roleID := uuid.Must(uuid.NewV7())
	userID := uuid.Must(uuid.NewV7())

	newRouter := func(useCase *mockRoleUseCase) *gin.Engine {
		router := gin.New()
		handler := NewRoleHandler(useCase, testLogger())
		router.POST("/v1/roles/:id/assignments", withTestIdentity(identity), handler.AssignRoleHandler)
		return router
	}

	t.Run("assignment records the acting admin", func(t *testing.T) {
		assignment := &roleDomain.UserRoleAssignment{
			ID:               uuid.Must(uuid.NewV7()),
			UserID:           userID,
			RoleID:           roleID,
			TenantID:         tenantID,
			AssignedByUserID: adminID,
			AssignedAt:       time.Now().UTC(),
			IsActive:         true,
		}

		useCase := &mockRoleUseCase{}
		useCase.On("AssignRoleToUser", mock.Anything, userID, roleID, tenantID, adminID).
			Return(assignment, nil)

		body, _ := json.Marshal(map[string]string{"user_id": userID.String()})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/roles/"+roleID.String()+"/assignments", bytes.NewReader(body))
		newRouter(useCase).ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var response AssignmentResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, adminID.String(), response.AssignedByUserID)
		useCase.AssertExpectations(t)
	})

	t.Run("duplicate assignment conflicts", func(t *testing.T) {
		useCase := &mockRoleUseCase{}
		useCase.On("AssignRoleToUser", mock.Anything, userID, roleID, tenantID, adminID).
			Return(nil, roleDomain.ErrRoleAlreadyAssigned)

		body, _ := json.Marshal(map[string]string{"user_id": userID.String()})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/roles/"+roleID.String()+"/assignments", bytes.NewReader(body))
		newRouter(useCase).ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestEffectivePermissionsHandler(t *testing.T) {
	tenantID := uuid.Must(uuid.NewV7())
	identity := &httputil.Identity{UserID: uuid.Must(uuid.NewV7()), TenantID: tenantID}
	userID := uuid.Must(uuid.NewV7())

	useCase := &mockRoleUseCase{}
	useCase.On("ResolveEffectivePermissions", mock.Anything, userID, tenantID).
		Return([]string{"read_customer", "manage_roles"}, nil)

	router := gin.New()
	handler := NewRoleHandler(useCase, testLogger())
	router.GET("/v1/users/:id/permissions", withTestIdentity(identity), handler.EffectivePermissionsHandler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/users/"+userID.String()+"/permissions", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		UserID      string   `json:"user_id"`
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, userID.String(), response.UserID)
	assert.ElementsMatch(t, []string{"read_customer", "manage_roles"}, response.Permissions)
	useCase.AssertExpectations(t)
}
