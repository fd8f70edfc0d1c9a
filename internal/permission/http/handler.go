// Package http provides HTTP handlers for the permission catalog.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	permissionDomain "github.com/allisson/agentauth/internal/permission/domain"
	permissionUseCase "github.com/allisson/agentauth/internal/permission/usecase"
)

// PermissionHandler serves the read-only permission catalog.
type PermissionHandler struct {
	permissionUseCase permissionUseCase.PermissionUseCase
	logger            *slog.Logger
}

// NewPermissionHandler creates a new permission handler.
func NewPermissionHandler(
	permissionUseCase permissionUseCase.PermissionUseCase,
	logger *slog.Logger,
) *PermissionHandler {
	return &PermissionHandler{
		permissionUseCase: permissionUseCase,
		logger:            logger,
	}
}

// PermissionResponse represents one catalog entry in API responses.
type PermissionResponse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Module      string `json:"module"`
}

// ListHandler returns the full permission catalog grouped by module order.
// GET /v1/permissions
func (h *PermissionHandler) ListHandler(c *gin.Context) {
	catalog := h.permissionUseCase.Catalog()

	response := make([]PermissionResponse, 0, len(catalog))
	for _, p := range catalog {
		response = append(response, mapPermissionToResponse(p))
	}

	c.JSON(http.StatusOK, gin.H{"permissions": response})
}

// mapPermissionToResponse converts a catalog entry to an API response.
func mapPermissionToResponse(p permissionDomain.Permission) PermissionResponse {
	return PermissionResponse{
		Name:        string(p.Name),
		Description: p.Description,
		Module:      string(p.Module),
	}
}
