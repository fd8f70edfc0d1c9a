// Package http provides the HTTP server, routing and middleware.
package http

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apikeyUseCase "github.com/allisson/agentauth/internal/apikey/usecase"
	apperrors "github.com/allisson/agentauth/internal/errors"
	"github.com/allisson/agentauth/internal/httputil"
	permissionDomain "github.com/allisson/agentauth/internal/permission/domain"
	roleUseCase "github.com/allisson/agentauth/internal/role/usecase"
)

// CustomLoggerMiddleware logs each HTTP request with structured attributes.
func CustomLoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("http request",
			slog.String("request_id", requestid.Get(c)),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("remote_addr", c.ClientIP()),
		)
	}
}

// extractBearerToken parses a Bearer Authorization header (case-insensitive
// scheme). Returns the empty string when the header is missing or malformed.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	const bearerPrefix = "bearer "
	if len(authHeader) < len(bearerPrefix) ||
		!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}

	return authHeader[len(bearerPrefix):]
}

// identityClaims are the claims minted by the upstream request layer for
// human callers.
type identityClaims struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// IdentityMiddleware authenticates human callers via the signed identity
// token forwarded by the upstream request layer.
//
// The middleware:
// 1. Extracts the Bearer token from the Authorization header (case-insensitive)
// 2. Verifies the HMAC signature and expiry with the shared secret
// 3. Parses the user_id and tenant_id claims as UUIDs
// 4. Stores the resulting Identity in the request context
//
// Any failure results in 401 Unauthorized; the specific reason is logged but
// never returned to the caller.
func IdentityMiddleware(secret []byte, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := extractBearerToken(c)
		if tokenStr == "" {
			logger.Debug("identity authentication failed: missing or malformed authorization header")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		claims := &identityClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, apperrors.New("unexpected signing method")
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			logger.Debug("identity authentication failed: invalid token")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			logger.Debug("identity authentication failed: invalid user_id claim")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		tenantID, err := uuid.Parse(claims.TenantID)
		if err != nil {
			logger.Debug("identity authentication failed: invalid tenant_id claim")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		ctx := httputil.WithIdentity(c.Request.Context(), &httputil.Identity{UserID: userID, TenantID: tenantID})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequirePermission authorizes the authenticated identity against a single
// permission name, resolved through the caller's active role assignments.
//
// MUST be used after IdentityMiddleware. A caller lacking the permission
// receives a generic 401; which permission was missing appears only in the
// debug log.
func RequirePermission(
	roles roleUseCase.RoleUseCase,
	permission permissionDomain.Name,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := httputil.GetIdentity(c.Request.Context())
		if !ok || identity == nil {
			logger.Error("permission middleware: no authenticated identity in context")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		allowed, err := roles.UserHasPermission(
			c.Request.Context(),
			identity.UserID,
			permission,
			identity.TenantID,
		)
		if err != nil {
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		if !allowed {
			logger.Debug("authorization failed: missing permission",
				slog.String("user_id", identity.UserID.String()),
				slog.String("tenant_id", identity.TenantID.String()),
				slog.String("permission", string(permission)))
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		c.Next()
	}
}

// APIKeyAuthMiddleware authenticates agent callers via a Bearer API key
// secret.
//
// The middleware:
// 1. Extracts the Bearer secret from the Authorization header (case-insensitive)
// 2. Validates it through APIKeyUseCase.ValidateKey (hash comparison)
// 3. Stores the authenticated key in the request context
//
// All validation failures collapse into the same 401 response.
func APIKeyAuthMiddleware(apiKeys apikeyUseCase.APIKeyUseCase, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		plainSecret := extractBearerToken(c)
		if plainSecret == "" {
			logger.Debug("key authentication failed: missing or malformed authorization header")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		key, err := apiKeys.ValidateKey(c.Request.Context(), plainSecret)
		if err != nil {
			logger.Debug("key authentication failed",
				slog.String("error", err.Error()))
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		ctx := httputil.WithAPIKey(c.Request.Context(), key)
		c.Request = c.Request.WithContext(ctx)

		logger.Debug("key authentication successful",
			slog.String("key_id", key.ID.String()),
			slog.String("agent_id", key.AgentID.String()))

		c.Next()
	}
}
