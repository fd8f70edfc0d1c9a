package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apikeyDomain "github.com/allisson/agentauth/internal/apikey/domain"
	"github.com/allisson/agentauth/internal/httputil"
	"github.com/allisson/agentauth/internal/metrics"
	permissionDomain "github.com/allisson/agentauth/internal/permission/domain"
	roleDomain "github.com/allisson/agentauth/internal/role/domain"
)

// TestMain sets Gin to test mode for all tests in this package.
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockAPIKeyUseCase is a testify mock of the API key use case.
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

// mockRoleUseCase is a testify mock of the role use case.
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

const testIdentitySecret = "test-identity-secret"

// signIdentityToken mints an identity token the way the upstream request
// layer does.
func signIdentityToken(t *testing.T, userID, tenantID uuid.UUID, secret string) string {
	t.Helper()

	now := time.Now()
	claims := identityClaims{
		UserID:   userID.String(),
		TenantID: tenantID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestCustomLoggerMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(testLogger()))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "test"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "test", response["message"])
}

func TestIdentityMiddleware(t *testing.T) {
	userID := uuid.Must(uuid.NewV7())
	tenantID := uuid.Must(uuid.NewV7())

	newRouter := func() *gin.Engine {
		router := gin.New()
		router.Use(IdentityMiddleware([]byte(testIdentitySecret), testLogger()))
		router.GET("/test", func(c *gin.Context) {
			identity, ok := httputil.GetIdentity(c.Request.Context())
			require.True(t, ok)
			c.JSON(http.StatusOK, gin.H{
				"user_id":   identity.UserID.String(),
				"tenant_id": identity.TenantID.String(),
			})
		})
		return router
	}

	t.Run("valid token", func(t *testing.T) {
		token := signIdentityToken(t, userID, tenantID, testIdentitySecret)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		newRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, userID.String(), response["user_id"])
		assert.Equal(t, tenantID.String(), response["tenant_id"])
	})

	t.Run("case insensitive bearer scheme", func(t *testing.T) {
		token := signIdentityToken(t, userID, tenantID, testIdentitySecret)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "bearer "+token)
		newRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		newRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong signing secret", func(t *testing.T) {
		token := signIdentityToken(t, userID, tenantID, "other-secret")

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		newRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		past := time.Now().Add(-2 * time.Hour)
		claims := identityClaims{
			UserID:   userID.String(),
			TenantID: tenantID.String(),
			RegisteredClaims: jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(past),
				ExpiresAt: jwt.NewNumericDate(past.Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
			SignedString([]byte(testIdentitySecret))
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		newRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed claims", func(t *testing.T) {
		claims := identityClaims{
			UserID:   "not-a-uuid",
			TenantID: tenantID.String(),
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
			SignedString([]byte(testIdentitySecret))
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		newRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequirePermission(t *testing.T) {
	userID := uuid.Must(uuid.NewV7())
	tenantID := uuid.Must(uuid.NewV7())

	newRouter := func(roles *mockRoleUseCase) *gin.Engine {
		router := gin.New()
		router.Use(IdentityMiddleware([]byte(testIdentitySecret), testLogger()))
		router.Use(RequirePermission(roles, permissionDomain.ManageRoles, testLogger()))
		router.GET("/test", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "ok"})
		})
		return router
	}

	t.Run("permission granted", func(t *testing.T) {
		roles := &mockRoleUseCase{}
		roles.On("UserHasPermission", mock.Anything, userID, permissionDomain.ManageRoles, tenantID).
			Return(true, nil)

		token := signIdentityToken(t, userID, tenantID, testIdentitySecret)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		newRouter(roles).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		roles.AssertExpectations(t)
	})

	t.Run("permission missing yields generic unauthorized", func(t *testing.T) {
		roles := &mockRoleUseCase{}
		roles.On("UserHasPermission", mock.Anything, userID, permissionDomain.ManageRoles, tenantID).
			Return(false, nil)

		token := signIdentityToken(t, userID, tenantID, testIdentitySecret)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		newRouter(roles).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NotContains(t, w.Body.String(), "manage_roles")
	})

	t.Run("no identity in context", func(t *testing.T) {
		roles := &mockRoleUseCase{}
		router := gin.New()
		router.Use(RequirePermission(roles, permissionDomain.ManageRoles, testLogger()))
		router.GET("/test", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "ok"})
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		roles.AssertNotCalled(t, "UserHasPermission")
	})
}

func TestAPIKeyAuthMiddleware(t *testing.T) {
	newRouter := func(apiKeys *mockAPIKeyUseCase) *gin.Engine {
		router := gin.New()
		router.Use(APIKeyAuthMiddleware(apiKeys, testLogger()))
		router.POST("/test", func(c *gin.Context) {
			key, ok := httputil.GetAPIKey(c.Request.Context())
			require.True(t, ok)
			c.JSON(http.StatusOK, gin.H{"key_id": key.ID.String()})
		})
		return router
	}

	t.Run("valid secret", func(t *testing.T) {
		key := &apikeyDomain.APIKey{ID: uuid.Must(uuid.NewV7())}
		apiKeys := &mockAPIKeyUseCase{}
		apiKeys.On("ValidateKey", mock.Anything, "ak_live_secret").Return(key, nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		req.Header.Set("Authorization", "Bearer ak_live_secret")
		newRouter(apiKeys).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, key.ID.String(), response["key_id"])
	})

	t.Run("invalid secret", func(t *testing.T) {
		apiKeys := &mockAPIKeyUseCase{}
		apiKeys.On("ValidateKey", mock.Anything, "ak_live_wrong").
			Return(nil, apikeyDomain.ErrInvalidKey)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		req.Header.Set("Authorization", "Bearer ak_live_wrong")
		newRouter(apiKeys).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing header skips validation", func(t *testing.T) {
		apiKeys := &mockAPIKeyUseCase{}

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		newRouter(apiKeys).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		apiKeys.AssertNotCalled(t, "ValidateKey")
	})
}

func TestEdgeRateLimitMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(EdgeRateLimitMiddleware(1.0, 2, testLogger()))
	router.POST("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	// Burst of 2 admitted, third rejected.
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// A different IP has its own limiter.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/test", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthAndReadyHandlers(t *testing.T) {
	router := gin.New()
	router.GET("/health", healthHandler)
	router.GET("/ready", readyHandler)

	t.Run("health", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "healthy", response["status"])
	})

	t.Run("ready", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestMetricsServer(t *testing.T) {
	t.Run("Success_ServesScrapeEndpoint", func(t *testing.T) {
		provider, err := metrics.NewProvider()
		require.NoError(t, err)
		defer func() { _ = provider.Shutdown(context.Background()) }()

		server := NewMetricsServer("127.0.0.1", 0, testLogger(), provider)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		server.GetHandler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "go_goroutines")
	})

	t.Run("Success_NilProviderHasNoScrapeRoute", func(t *testing.T) {
		server := NewMetricsServer("127.0.0.1", 0, testLogger(), nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		server.GetHandler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
