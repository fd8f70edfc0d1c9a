package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	agentHTTP "github.com/allisson/agentauth/internal/agent/http"
	apikeyHTTP "github.com/allisson/agentauth/internal/apikey/http"
	apikeyUseCase "github.com/allisson/agentauth/internal/apikey/usecase"
	"github.com/allisson/agentauth/internal/config"
	"github.com/allisson/agentauth/internal/metrics"
	permissionDomain "github.com/allisson/agentauth/internal/permission/domain"
	permissionHTTP "github.com/allisson/agentauth/internal/permission/http"
	roleHTTP "github.com/allisson/agentauth/internal/role/http"
	roleUseCase "github.com/allisson/agentauth/internal/role/usecase"
	toolHTTP "github.com/allisson/agentauth/internal/tool/http"
)

// Handlers groups the per-module HTTP handlers mounted by the server.
type Handlers struct {
	Permission *permissionHTTP.PermissionHandler
	Role       *roleHTTP.RoleHandler
	Agent      *agentHTTP.AgentHandler
	APIKey     *apikeyHTTP.APIKeyHandler
	Tool       *toolHTTP.ToolHandler
}

// Server represents the main HTTP server.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// NewServer creates the main HTTP server with all routes and middleware
// wired.
//
// Two authentication surfaces share the router: the admin surface under
// /v1/ authenticates human identities and authorizes each route against a
// catalog permission, and the agent surface under /v1/agent/ authenticates
// API key secrets.
func NewServer(
	cfg *config.Config,
	logger *slog.Logger,
	handlers Handlers,
	roles roleUseCase.RoleUseCase,
	apiKeys apikeyUseCase.APIKeyUseCase,
	metricsProvider *metrics.Provider,
) *Server {
	gin.SetMode(cfg.GetGinMode())

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	// Health and readiness endpoints
	router.GET("/health", healthHandler)
	router.GET("/ready", readyHandler)

	identityAuth := IdentityMiddleware([]byte(cfg.IdentityTokenSecret), logger)
	keyAuth := APIKeyAuthMiddleware(apiKeys, logger)

	// Admin surface: human identities resolved through the role engine.
	admin := router.Group("/v1")
	admin.Use(identityAuth)
	{
		admin.GET("/permissions", handlers.Permission.ListHandler)

		roleRoutes := admin.Group("/roles")
		{
			roleRoutes.POST("", RequirePermission(roles, permissionDomain.ManageRoles, logger), handlers.Role.CreateHandler)
			roleRoutes.GET("", handlers.Role.ListHandler)
			roleRoutes.GET("/:id", handlers.Role.GetHandler)
			roleRoutes.PATCH("/:id", RequirePermission(roles, permissionDomain.ManageRoles, logger), handlers.Role.UpdateHandler)
			roleRoutes.DELETE("/:id", RequirePermission(roles, permissionDomain.ManageRoles, logger), handlers.Role.DeleteHandler)
			roleRoutes.POST("/:id/permissions", RequirePermission(roles, permissionDomain.ManageRoles, logger), handlers.Role.AssignPermissionHandler)
			roleRoutes.DELETE("/:id/permissions/:permission", RequirePermission(roles, permissionDomain.ManageRoles, logger), handlers.Role.RemovePermissionHandler)
			roleRoutes.POST("/:id/assignments", RequirePermission(roles, permissionDomain.ManageUsers, logger), handlers.Role.AssignRoleHandler)
			roleRoutes.DELETE("/:id/assignments/:userId", RequirePermission(roles, permissionDomain.ManageUsers, logger), handlers.Role.RevokeAssignmentHandler)
		}

		userRoutes := admin.Group("/users")
		{
			userRoutes.GET("/:id/assignments", handlers.Role.ListUserAssignmentsHandler)
			userRoutes.GET("/:id/permissions", handlers.Role.EffectivePermissionsHandler)
		}

		agentRoutes := admin.Group("/agents")
		agentRoutes.Use(RequirePermission(roles, permissionDomain.ManageAgents, logger))
		{
			agentRoutes.POST("", handlers.Agent.CreateHandler)
			agentRoutes.GET("", handlers.Agent.ListHandler)
			agentRoutes.GET("/:id", handlers.Agent.GetHandler)
			agentRoutes.PATCH("/:id/status", handlers.Agent.SetStatusHandler)
		}

		keyRoutes := admin.Group("/api-keys")
		keyRoutes.Use(RequirePermission(roles, permissionDomain.ManageAPIKeys, logger))
		{
			keyRoutes.POST("", handlers.APIKey.IssueHandler)
			keyRoutes.GET("", handlers.APIKey.ListHandler)
			keyRoutes.GET("/:id", handlers.APIKey.GetHandler)
			keyRoutes.PATCH("/:id", handlers.APIKey.UpdateHandler)
			keyRoutes.DELETE("/:id", handlers.APIKey.RevokeHandler)
			keyRoutes.GET("/:id/usage", RequirePermission(roles, permissionDomain.ViewUsageLogs, logger), handlers.APIKey.ListUsageHandler)
		}

		toolRoutes := admin.Group("/tools")
		toolRoutes.Use(RequirePermission(roles, permissionDomain.ManageTools, logger))
		{
			toolRoutes.POST("", handlers.Tool.CreateHandler)
			toolRoutes.GET("", handlers.Tool.ListHandler)
			toolRoutes.GET("/:id", handlers.Tool.GetHandler)
			toolRoutes.PATCH("/:id", handlers.Tool.UpdateHandler)
			toolRoutes.GET("/:id/usage", RequirePermission(roles, permissionDomain.ViewUsageLogs, logger), handlers.Tool.ListUsageHandler)
		}
	}

	// Agent surface: API key secrets verified on every request.
	agent := router.Group("/v1/agent")
	if cfg.EdgeRateLimitEnabled {
		agent.Use(EdgeRateLimitMiddleware(cfg.EdgeRateLimitRequestsPerSec, cfg.EdgeRateLimitBurst, logger))
	}
	agent.Use(keyAuth)
	{
		agent.POST("/auth", handlers.APIKey.AuthHandler)
		agent.POST("/tools/:toolName/execute", handlers.Tool.ExecuteHandler)
	}

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// healthHandler reports process liveness.
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readyHandler reports readiness to serve traffic.
func readyHandler(c *gin.Context) {
	select {
	case <-c.Request.Context().Done():
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
