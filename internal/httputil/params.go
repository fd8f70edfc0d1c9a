package httputil

import (
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/allisson/agentauth/internal/errors"
)

// IdentityFromContext resolves the authenticated identity or writes a 401.
// Handlers behind the identity middleware use this to read the caller's
// user and tenant.
func IdentityFromContext(c *gin.Context, logger *slog.Logger) (*Identity, bool) {
	identity, ok := GetIdentity(c.Request.Context())
	if !ok || identity == nil {
		HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
		return nil, false
	}
	return identity, true
}

// ParseUUIDParam parses a UUID path parameter or writes a 422.
func ParseUUIDParam(c *gin.Context, name string, logger *slog.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		HandleValidationErrorGin(c,
			fmt.Errorf("invalid %s format: must be a valid UUID", name),
			logger)
		return uuid.Nil, false
	}
	return id, true
}
