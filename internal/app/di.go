// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	agentHTTP "github.com/allisson/agentauth/internal/agent/http"
	agentRepository "github.com/allisson/agentauth/internal/agent/repository"
	agentUsecase "github.com/allisson/agentauth/internal/agent/usecase"
	apikeyHTTP "github.com/allisson/agentauth/internal/apikey/http"
	apikeyRepository "github.com/allisson/agentauth/internal/apikey/repository"
	apikeyService "github.com/allisson/agentauth/internal/apikey/service"
	apikeyUsecase "github.com/allisson/agentauth/internal/apikey/usecase"
	"github.com/allisson/agentauth/internal/config"
	"github.com/allisson/agentauth/internal/database"
	"github.com/allisson/agentauth/internal/http"
	"github.com/allisson/agentauth/internal/metrics"
	permissionHTTP "github.com/allisson/agentauth/internal/permission/http"
	permissionRepository "github.com/allisson/agentauth/internal/permission/repository"
	permissionUsecase "github.com/allisson/agentauth/internal/permission/usecase"
	roleHTTP "github.com/allisson/agentauth/internal/role/http"
	roleRepository "github.com/allisson/agentauth/internal/role/repository"
	roleUsecase "github.com/allisson/agentauth/internal/role/usecase"
	toolHTTP "github.com/allisson/agentauth/internal/tool/http"
	toolRepository "github.com/allisson/agentauth/internal/tool/repository"
	toolService "github.com/allisson/agentauth/internal/tool/service"
	toolUsecase "github.com/allisson/agentauth/internal/tool/usecase"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Managers and services
	txManager      database.TxManager
	secretService  apikeyService.SecretService
	runnerRegistry *toolService.Registry

	// Repositories
	permissionRepo   permissionUsecase.PermissionRepository
	roleRepo         roleUsecase.RoleRepository
	assignmentRepo   roleUsecase.AssignmentRepository
	agentRepo        agentUsecase.AgentRepository
	apiKeyRepo       apikeyUsecase.APIKeyRepository
	usageLogRepo     apikeyUsecase.UsageLogRepository
	toolRepo         toolUsecase.ToolRepository
	toolUsageLogRepo toolUsecase.ToolUsageLogRepository

	// Use Cases
	permissionUseCase permissionUsecase.PermissionUseCase
	roleUseCase       roleUsecase.RoleUseCase
	agentUseCase      agentUsecase.AgentUseCase
	apiKeyUseCase     apikeyUsecase.APIKeyUseCase
	rateLimiter       apikeyUsecase.RateLimiter
	toolUseCase       toolUsecase.ToolUseCase

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                    sync.Mutex
	loggerInit            sync.Once
	dbInit                sync.Once
	metricsProviderInit   sync.Once
	businessMetricsInit   sync.Once
	txManagerInit         sync.Once
	secretServiceInit     sync.Once
	runnerRegistryInit    sync.Once
	repositoriesInit      sync.Once
	permissionUseCaseInit sync.Once
	roleUseCaseInit       sync.Once
	agentUseCaseInit      sync.Once
	apiKeyUseCaseInit     sync.Once
	rateLimiterInit       sync.Once
	toolUseCaseInit       sync.Once
	httpServerInit        sync.Once
	metricsServerInit     sync.Once
	initErrors            map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	c.dbInit.Do(func() {
		db, err := database.Connect(database.Config{
			Driver:             c.config.DBDriver,
			ConnectionString:   c.config.DBConnectionString,
			MaxOpenConnections: c.config.DBMaxOpenConnections,
			MaxIdleConnections: c.config.DBMaxIdleConnections,
			ConnMaxLifetime:    c.config.DBConnMaxLifetime,
		})
		if err != nil {
			c.initErrors["db"] = fmt.Errorf("failed to connect to database: %w", err)
			return
		}
		c.db = db
	})
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// MetricsProvider returns the metrics provider, or nil when metrics are
// disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		provider, err := metrics.NewProvider()
		if err != nil {
			c.initErrors["metricsProvider"] = fmt.Errorf("failed to create metrics provider: %w", err)
			return
		}
		c.metricsProvider = provider
	})
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder. A no-op recorder is
// used when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	c.businessMetricsInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["businessMetrics"] = err
			return
		}
		if provider == nil {
			c.businessMetrics = metrics.NewNoOpBusinessMetrics()
			return
		}
		bm, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["businessMetrics"] = fmt.Errorf("failed to create business metrics: %w", err)
			return
		}
		c.businessMetrics = bm
	})
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() (database.TxManager, error) {
	c.txManagerInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["txManager"] = fmt.Errorf("failed to get database for tx manager: %w", err)
			return
		}
		c.txManager = database.NewTxManager(db)
	})
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// SecretService returns the API key secret service.
func (c *Container) SecretService() apikeyService.SecretService {
	c.secretServiceInit.Do(func() {
		c.secretService = apikeyService.NewSecretService(c.config.APIKeyPrefixLength)
	})
	return c.secretService
}

// RunnerRegistry returns the tool runner registry. Embedders register their
// tool actions here before starting the server.
func (c *Container) RunnerRegistry() *toolService.Registry {
	c.runnerRegistryInit.Do(func() {
		c.runnerRegistry = toolService.NewRegistry()
	})
	return c.runnerRegistry
}

// initRepositories creates all repositories for the configured driver.
func (c *Container) initRepositories() error {
	db, err := c.DB()
	if err != nil {
		return fmt.Errorf("failed to get database for repositories: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		c.permissionRepo = permissionRepository.NewMySQLPermissionRepository(db)
		c.roleRepo = roleRepository.NewMySQLRoleRepository(db)
		c.assignmentRepo = roleRepository.NewMySQLAssignmentRepository(db)
		c.agentRepo = agentRepository.NewMySQLAgentRepository(db)
		c.apiKeyRepo = apikeyRepository.NewMySQLAPIKeyRepository(db)
		c.usageLogRepo = apikeyRepository.NewMySQLUsageLogRepository(db)
		c.toolRepo = toolRepository.NewMySQLToolRepository(db)
		c.toolUsageLogRepo = toolRepository.NewMySQLToolUsageLogRepository(db)
	case "postgres":
		c.permissionRepo = permissionRepository.NewPostgreSQLPermissionRepository(db)
		c.roleRepo = roleRepository.NewPostgreSQLRoleRepository(db)
		c.assignmentRepo = roleRepository.NewPostgreSQLAssignmentRepository(db)
		c.agentRepo = agentRepository.NewPostgreSQLAgentRepository(db)
		c.apiKeyRepo = apikeyRepository.NewPostgreSQLAPIKeyRepository(db)
		c.usageLogRepo = apikeyRepository.NewPostgreSQLUsageLogRepository(db)
		c.toolRepo = toolRepository.NewPostgreSQLToolRepository(db)
		c.toolUsageLogRepo = toolRepository.NewPostgreSQLToolUsageLogRepository(db)
	default:
		return fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}

	return nil
}

// repositories runs repository initialization once and returns its error.
func (c *Container) repositories() error {
	c.repositoriesInit.Do(func() {
		if err := c.initRepositories(); err != nil {
			c.initErrors["repositories"] = err
		}
	})
	return c.initErrors["repositories"]
}

// PermissionUseCase returns the permission use case instance.
func (c *Container) PermissionUseCase() (permissionUsecase.PermissionUseCase, error) {
	c.permissionUseCaseInit.Do(func() {
		if err := c.repositories(); err != nil {
			c.initErrors["permissionUseCase"] = err
			return
		}
		c.permissionUseCase = permissionUsecase.NewPermissionUseCase(c.permissionRepo)
	})
	if storedErr, exists := c.initErrors["permissionUseCase"]; exists {
		return nil, storedErr
	}
	return c.permissionUseCase, nil
}

// RoleUseCase returns the role use case instance.
func (c *Container) RoleUseCase() (roleUsecase.RoleUseCase, error) {
	c.roleUseCaseInit.Do(func() {
		if err := c.repositories(); err != nil {
			c.initErrors["roleUseCase"] = err
			return
		}
		c.roleUseCase = roleUsecase.NewRoleUseCase(c.roleRepo, c.assignmentRepo, c.permissionRepo)
	})
	if storedErr, exists := c.initErrors["roleUseCase"]; exists {
		return nil, storedErr
	}
	return c.roleUseCase, nil
}

// AgentUseCase returns the agent use case instance.
func (c *Container) AgentUseCase() (agentUsecase.AgentUseCase, error) {
	c.agentUseCaseInit.Do(func() {
		if err := c.repositories(); err != nil {
			c.initErrors["agentUseCase"] = err
			return
		}
		c.agentUseCase = agentUsecase.NewAgentUseCase(c.agentRepo)
	})
	if storedErr, exists := c.initErrors["agentUseCase"]; exists {
		return nil, storedErr
	}
	return c.agentUseCase, nil
}

// RateLimiter returns the usage-log-backed rate limiter.
func (c *Container) RateLimiter() (apikeyUsecase.RateLimiter, error) {
	c.rateLimiterInit.Do(func() {
		if err := c.repositories(); err != nil {
			c.initErrors["rateLimiter"] = err
			return
		}
		c.rateLimiter = apikeyUsecase.NewSlidingWindowRateLimiter(c.usageLogRepo)
	})
	if storedErr, exists := c.initErrors["rateLimiter"]; exists {
		return nil, storedErr
	}
	return c.rateLimiter, nil
}

// APIKeyUseCase returns the API key use case instance.
func (c *Container) APIKeyUseCase() (apikeyUsecase.APIKeyUseCase, error) {
	c.apiKeyUseCaseInit.Do(func() {
		if err := c.repositories(); err != nil {
			c.initErrors["apiKeyUseCase"] = err
			return
		}

		txManager, err := c.TxManager()
		if err != nil {
			c.initErrors["apiKeyUseCase"] = err
			return
		}

		useCase := apikeyUsecase.NewAPIKeyUseCase(
			c.apiKeyRepo,
			c.usageLogRepo,
			c.agentRepo,
			c.SecretService(),
			txManager,
		)

		bm, err := c.BusinessMetrics()
		if err != nil {
			c.initErrors["apiKeyUseCase"] = err
			return
		}
		c.apiKeyUseCase = apikeyUsecase.NewAPIKeyUseCaseWithMetrics(useCase, bm)
	})
	if storedErr, exists := c.initErrors["apiKeyUseCase"]; exists {
		return nil, storedErr
	}
	return c.apiKeyUseCase, nil
}

// ToolUseCase returns the tool use case instance.
func (c *Container) ToolUseCase() (toolUsecase.ToolUseCase, error) {
	c.toolUseCaseInit.Do(func() {
		if err := c.repositories(); err != nil {
			c.initErrors["toolUseCase"] = err
			return
		}

		apiKeyUseCase, err := c.APIKeyUseCase()
		if err != nil {
			c.initErrors["toolUseCase"] = err
			return
		}

		rateLimiter, err := c.RateLimiter()
		if err != nil {
			c.initErrors["toolUseCase"] = err
			return
		}

		useCase := toolUsecase.NewToolUseCase(
			c.toolRepo,
			c.toolUsageLogRepo,
			apiKeyUseCase,
			rateLimiter,
			c.RunnerRegistry(),
		)

		bm, err := c.BusinessMetrics()
		if err != nil {
			c.initErrors["toolUseCase"] = err
			return
		}
		c.toolUseCase = toolUsecase.NewToolUseCaseWithMetrics(useCase, bm)
	})
	if storedErr, exists := c.initErrors["toolUseCase"]; exists {
		return nil, storedErr
	}
	return c.toolUseCase, nil
}

// HTTPServer returns the main HTTP server instance.
func (c *Container) HTTPServer() (*http.Server, error) {
	c.httpServerInit.Do(func() {
		logger := c.Logger()

		permissionUseCase, err := c.PermissionUseCase()
		if err != nil {
			c.initErrors["httpServer"] = err
			return
		}
		roleUseCase, err := c.RoleUseCase()
		if err != nil {
			c.initErrors["httpServer"] = err
			return
		}
		agentUseCase, err := c.AgentUseCase()
		if err != nil {
			c.initErrors["httpServer"] = err
			return
		}
		apiKeyUseCase, err := c.APIKeyUseCase()
		if err != nil {
			c.initErrors["httpServer"] = err
			return
		}
		toolUseCase, err := c.ToolUseCase()
		if err != nil {
			c.initErrors["httpServer"] = err
			return
		}
		metricsProvider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["httpServer"] = err
			return
		}

		handlers := http.Handlers{
			Permission: permissionHTTP.NewPermissionHandler(permissionUseCase, logger),
			Role:       roleHTTP.NewRoleHandler(roleUseCase, logger),
			Agent:      agentHTTP.NewAgentHandler(agentUseCase, logger),
			APIKey:     apikeyHTTP.NewAPIKeyHandler(apiKeyUseCase, logger),
			Tool:       toolHTTP.NewToolHandler(toolUseCase, logger),
		}

		c.httpServer = http.NewServer(c.config, logger, handlers, roleUseCase, apiKeyUseCase, metricsProvider)
	})
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics HTTP server, or nil when metrics are
// disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	c.metricsServerInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["metricsServer"] = err
			return
		}
		if provider == nil {
			return
		}
		c.metricsServer = http.NewMetricsServer(
			c.config.ServerHost,
			c.config.MetricsPort,
			c.Logger(),
			provider,
		)
	})
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}
