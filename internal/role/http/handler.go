// Package http provides HTTP handlers for role and assignment management.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	"github.com/allisson/agentauth/internal/httputil"
	roleDomain "github.com/allisson/agentauth/internal/role/domain"
	roleUseCase "github.com/allisson/agentauth/internal/role/usecase"
	customValidation "github.com/allisson/agentauth/internal/validation"
)

// RoleHandler handles HTTP requests for role and assignment management.
type RoleHandler struct {
	roleUseCase roleUseCase.RoleUseCase
	logger      *slog.Logger
}

// NewRoleHandler creates a new role handler with required dependencies.
func NewRoleHandler(roleUseCase roleUseCase.RoleUseCase, logger *slog.Logger) *RoleHandler {
	return &RoleHandler{
		roleUseCase: roleUseCase,
		logger:      logger,
	}
}

// CreateRoleRequest contains the parameters for creating a tenant role.
type CreateRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Validate checks if the create role request is valid.
func (r *CreateRoleRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 255),
		),
		validation.Field(&r.Description,
			validation.Length(0, 1000),
		),
	)
}

// UpdateRoleRequest contains the parameters for updating a tenant role.
type UpdateRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Validate checks if the update role request is valid.
func (r *UpdateRoleRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 255),
		),
		validation.Field(&r.Description,
			validation.Length(0, 1000),
		),
	)
}

// AssignPermissionRequest names the catalog permission to grant to a role.
type AssignPermissionRequest struct {
	Permission string `json:"permission"`
}

// Validate checks if the assign permission request is valid.
func (r *AssignPermissionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Permission,
			validation.Required,
			customValidation.NotBlank,
			customValidation.PermissionName,
		),
	)
}

// AssignRoleRequest names the user receiving the role.
type AssignRoleRequest struct {
	UserID string `json:"user_id"`
}

// Validate checks if the assign role request is valid.
func (r *AssignRoleRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.UserID,
			validation.Required,
			validation.By(validUUID),
		),
	)
}

// validUUID validates that a string field parses as a UUID.
func validUUID(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_uuid_type", "must be a string")
	}
	if _, err := uuid.Parse(s); err != nil {
		return validation.NewError("validation_uuid", "must be a valid UUID")
	}
	return nil
}

// RoleResponse represents a role in API responses.
type RoleResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	IsSystemRole bool      `json:"is_system_role"`
	TenantID     *string   `json:"tenant_id,omitempty"`
	Permissions  []string  `json:"permissions,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AssignmentResponse represents a user role assignment in API responses.
type AssignmentResponse struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	RoleID           string     `json:"role_id"`
	TenantID         string     `json:"tenant_id"`
	AssignedByUserID string     `json:"assigned_by_user_id"`
	AssignedAt       time.Time  `json:"assigned_at"`
	IsActive         bool       `json:"is_active"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
}

// mapRoleToResponse converts a domain role to an API response.
func mapRoleToResponse(role *roleDomain.Role, permissions []string) RoleResponse {
	response := RoleResponse{
		ID:           role.ID.String(),
		Name:         role.Name,
		Description:  role.Description,
		IsSystemRole: role.IsSystemRole,
		Permissions:  permissions,
		CreatedAt:    role.CreatedAt,
	}
	if role.TenantID != nil {
		tenantID := role.TenantID.String()
		response.TenantID = &tenantID
	}
	return response
}

// mapAssignmentToResponse converts a domain assignment to an API response.
func mapAssignmentToResponse(assignment *roleDomain.UserRoleAssignment) AssignmentResponse {
	return AssignmentResponse{
		ID:               assignment.ID.String(),
		UserID:           assignment.UserID.String(),
		RoleID:           assignment.RoleID.String(),
		TenantID:         assignment.TenantID.String(),
		AssignedByUserID: assignment.AssignedByUserID.String(),
		AssignedAt:       assignment.AssignedAt,
		IsActive:         assignment.IsActive,
		RevokedAt:        assignment.RevokedAt,
	}
}

// CreateHandler creates a tenant-owned role.
// POST /v1/roles
func (h *RoleHandler) CreateHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	var req CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	tenantID := identity.TenantID
	input := &roleDomain.CreateRoleInput{
		Name:        req.Name,
		Description: req.Description,
		TenantID:    &tenantID,
	}

	role, err := h.roleUseCase.CreateRole(c.Request.Context(), input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, mapRoleToResponse(role, nil))
}

// GetHandler retrieves a role with its granted permissions.
// GET /v1/roles/:id
func (h *RoleHandler) GetHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	roleID, ok := httputil.ParseUUIDParam(c, "id", h.logger)
	if !ok {
		return
	}

	role, permissions, err := h.roleUseCase.GetRole(c.Request.Context(), roleID, identity.TenantID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, mapRoleToResponse(role, permissions))
}

// ListHandler lists the roles visible to the tenant.
// GET /v1/roles
func (h *RoleHandler) ListHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	roles, err := h.roleUseCase.ListRoles(c.Request.Context(), identity.TenantID, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	response := make([]RoleResponse, 0, len(roles))
	for _, role := range roles {
		response = append(response, mapRoleToResponse(role, nil))
	}

	c.JSON(http.StatusOK, gin.H{"roles": response, "offset": offset, "limit": limit})
}

// UpdateHandler updates a tenant-owned role's name and description.
// PATCH /v1/roles/:id
func (h *RoleHandler) UpdateHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	roleID, ok := httputil.ParseUUIDParam(c, "id", h.logger)
	if !ok {
		return
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	input := &roleDomain.UpdateRoleInput{
		Name:        req.Name,
		Description: req.Description,
	}

	if err := h.roleUseCase.UpdateRole(c.Request.Context(), roleID, identity.TenantID, input); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// DeleteHandler deletes a tenant-owned role with no active assignments.
// DELETE /v1/roles/:id
func (h *RoleHandler) DeleteHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	roleID, ok := httputil.ParseUUIDParam(c, "id", h.logger)
	if !ok {
		return
	}

	if err := h.roleUseCase.DeleteRole(c.Request.Context(), roleID, identity.TenantID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// AssignPermissionHandler grants a catalog permission to a role.
// POST /v1/roles/:id/permissions
func (h *RoleHandler) AssignPermissionHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	roleID, ok := httputil.ParseUUIDParam(c, "id", h.logger)
	if !ok {
		return
	}

	var req AssignPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	err := h.roleUseCase.AssignPermission(c.Request.Context(), roleID, identity.TenantID, req.Permission)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// RemovePermissionHandler revokes a catalog permission from a role.
// DELETE /v1/roles/:id/permissions/:permission
func (h *RoleHandler) RemovePermissionHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	roleID, ok := httputil.ParseUUIDParam(c, "id", h.logger)
	if !ok {
		return
	}

	permissionName := c.Param("permission")
	if permissionName == "" {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("permission name is required"),
			h.logger)
		return
	}

	err := h.roleUseCase.RemovePermission(c.Request.Context(), roleID, identity.TenantID, permissionName)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// AssignRoleHandler assigns a role to a user within the tenant.
// POST /v1/roles/:id/assignments
func (h *RoleHandler) AssignRoleHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	roleID, ok := httputil.ParseUUIDParam(c, "id", h.logger)
	if !ok {
		return
	}

	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid user_id format: must be a valid UUID"),
			h.logger)
		return
	}

	assignment, err := h.roleUseCase.AssignRoleToUser(
		c.Request.Context(),
		userID, roleID, identity.TenantID, identity.UserID,
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, mapAssignmentToResponse(assignment))
}

// RevokeAssignmentHandler revokes a user's role assignment.
// DELETE /v1/roles/:id/assignments/:userId
func (h *RoleHandler) RevokeAssignmentHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	roleID, ok := httputil.ParseUUIDParam(c, "id", h.logger)
	if !ok {
		return
	}

	userID, ok := httputil.ParseUUIDParam(c, "userId", h.logger)
	if !ok {
		return
	}

	err := h.roleUseCase.RevokeRoleFromUser(c.Request.Context(), userID, roleID, identity.TenantID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListUserAssignmentsHandler lists a user's active assignments in the tenant.
// GET /v1/users/:id/assignments
func (h *RoleHandler) ListUserAssignmentsHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	userID, ok := httputil.ParseUUIDParam(c, "id", h.logger)
	if !ok {
		return
	}

	assignments, err := h.roleUseCase.ListAssignments(c.Request.Context(), userID, identity.TenantID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	response := make([]AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		response = append(response, mapAssignmentToResponse(assignment))
	}

	c.JSON(http.StatusOK, gin.H{"assignments": response})
}

// EffectivePermissionsHandler resolves a user's effective permission set.
// GET /v1/users/:id/permissions
func (h *RoleHandler) EffectivePermissionsHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	userID, ok := httputil.ParseUUIDParam(c, "id", h.logger)
	if !ok {
		return
	}

	permissions, err := h.roleUseCase.ResolveEffectivePermissions(
		c.Request.Context(),
		userID, identity.TenantID,
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":     userID.String(),
		"permissions": permissions,
	})
}
