// Package http provides HTTP handlers for tool management and execution.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/agentauth/internal/errors"
	"github.com/allisson/agentauth/internal/httputil"
	toolDomain "github.com/allisson/agentauth/internal/tool/domain"
	toolUseCase "github.com/allisson/agentauth/internal/tool/usecase"
	customValidation "github.com/allisson/agentauth/internal/validation"
)

// ToolHandler handles HTTP requests for tool management and execution.
type ToolHandler struct {
	toolUseCase toolUseCase.ToolUseCase
	logger      *slog.Logger
}

// NewToolHandler creates a new tool handler with required dependencies.
func NewToolHandler(toolUseCase toolUseCase.ToolUseCase, logger *slog.Logger) *ToolHandler {
	return &ToolHandler{
		toolUseCase: toolUseCase,
		logger:      logger,
	}
}

// CreateToolRequest contains the parameters for registering a tool.
type CreateToolRequest struct {
	AgentID             string   `json:"agent_id"`
	ToolName            string   `json:"tool_name"`
	Description         string   `json:"description"`
	RequiredPermissions []string `json:"required_permissions"`
}

// Validate checks if the create tool request is valid.
func (r *CreateToolRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.AgentID,
			validation.Required,
			customValidation.NotBlank,
		),
		validation.Field(&r.ToolName,
			validation.Required,
			customValidation.NotBlank,
			customValidation.NoWhitespace,
			validation.Length(1, 255),
		),
		validation.Field(&r.Description,
			validation.Length(0, 1000),
		),
		validation.Field(&r.RequiredPermissions,
			validation.Each(customValidation.NotBlank, customValidation.PermissionName),
		),
	)
}

// UpdateToolRequest is a partial update of a tool. Absent fields are left
// unchanged.
type UpdateToolRequest struct {
	Description         *string   `json:"description"`
	RequiredPermissions *[]string `json:"required_permissions"`
	IsActive            *bool     `json:"is_active"`
}

// ExecuteToolRequest carries the action parameters for a tool run.
type ExecuteToolRequest struct {
	Params map[string]any `json:"params"`
}

// ToolResponse represents a tool in API responses.
type ToolResponse struct {
	ID                  string    `json:"id"`
	AgentID             string    `json:"agent_id"`
	TenantID            string    `json:"tenant_id"`
	ToolName            string    `json:"tool_name"`
	Description         string    `json:"description,omitempty"`
	RequiredPermissions []string  `json:"required_permissions"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
}

// ExecutionResponse represents a tool run outcome in API responses.
type ExecutionResponse struct {
	Success         bool   `json:"success"`
	Result          any    `json:"result,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
}

// ToolUsageLogResponse represents one tool usage audit row in API responses.
type ToolUsageLogResponse struct {
	ID              string         `json:"id"`
	ToolID          string         `json:"tool_id"`
	KeyID           string         `json:"key_id"`
	Status          string         `json:"status"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	ExecutionTimeMs int64          `json:"execution_time_ms"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// mapToolToResponse converts a domain tool to an API response.
func mapToolToResponse(tool *toolDomain.Tool) ToolResponse {
	permissions := tool.RequiredPermissions
	if permissions == nil {
		permissions = []string{}
	}
	return ToolResponse{
		ID:                  tool.ID.String(),
		AgentID:             tool.AgentID.String(),
		TenantID:            tool.TenantID.String(),
		ToolName:            tool.ToolName,
		Description:         tool.Description,
		RequiredPermissions: permissions,
		IsActive:            tool.IsActive,
		CreatedAt:           tool.CreatedAt,
	}
}

// mapToolUsageLogToResponse converts a domain usage log row to an API response.
func mapToolUsageLogToResponse(log *toolDomain.UsageLog) ToolUsageLogResponse {
	return ToolUsageLogResponse{
		ID:              log.ID.String(),
		ToolID:          log.ToolID.String(),
		KeyID:           log.KeyID.String(),
		Status:          string(log.Status),
		ErrorMessage:    log.ErrorMessage,
		ExecutionTimeMs: log.ExecutionTimeMs,
		Metadata:        log.Metadata,
		CreatedAt:       log.CreatedAt,
	}
}

// CreateHandler registers a new tool for an agent.
// POST /v1/tools
func (h *ToolHandler) CreateHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	var req CreateToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	agentID, err := uuid.Parse(req.AgentID)
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid agent_id format: must be a valid UUID"),
			h.logger)
		return
	}

	input := &toolDomain.CreateToolInput{
		AgentID:             agentID,
		TenantID:            identity.TenantID,
		ToolName:            req.ToolName,
		Description:         req.Description,
		RequiredPermissions: req.RequiredPermissions,
	}

	tool, err := h.toolUseCase.CreateTool(c.Request.Context(), input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, mapToolToResponse(tool))
}

// GetHandler retrieves a tool within the tenant.
// GET /v1/tools/:id
func (h *ToolHandler) GetHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	toolID, ok := httputil.ParseUUIDParam(c, "id", h.logger)
	if !ok {
		return
	}

	tool, err := h.toolUseCase.GetTool(c.Request.Context(), toolID, identity.TenantID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, mapToolToResponse(tool))
}

// ListHandler lists the tenant's tools.
// GET /v1/tools
func (h *ToolHandler) ListHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	tools, err := h.toolUseCase.ListTools(c.Request.Context(), identity.TenantID, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	response := make([]ToolResponse, 0, len(tools))
	for _, tool := range tools {
		response = append(response, mapToolToResponse(tool))
	}

	c.JSON(http.StatusOK, gin.H{"tools": response, "offset": offset, "limit": limit})
}

// UpdateHandler applies a partial update to a tool.
// PATCH /v1/tools/:id
func (h *ToolHandler) UpdateHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	toolID, ok := httputil.ParseUUIDParam(c, "id", h.logger)
	if !ok {
		return
	}

	var req UpdateToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	input := &toolDomain.UpdateToolInput{
		Description:         req.Description,
		RequiredPermissions: req.RequiredPermissions,
		IsActive:            req.IsActive,
	}

	tool, err := h.toolUseCase.UpdateTool(c.Request.Context(), toolID, identity.TenantID, input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, mapToolToResponse(tool))
}

// ListUsageHandler lists a tool's usage audit rows.
// GET /v1/tools/:id/usage
func (h *ToolHandler) ListUsageHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	toolID, ok := httputil.ParseUUIDParam(c, "id", h.logger)
	if !ok {
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	logs, err := h.toolUseCase.ListToolUsage(c.Request.Context(), toolID, identity.TenantID, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	response := make([]ToolUsageLogResponse, 0, len(logs))
	for _, log := range logs {
		response = append(response, mapToolUsageLogToResponse(log))
	}

	c.JSON(http.StatusOK, gin.H{"usage": response, "offset": offset, "limit": limit})
}

// ExecuteHandler runs a tool on behalf of the authenticated key.
// POST /v1/agent/tools/:toolName/execute
// Runs behind the key authentication middleware. Authorization and admission
// failures surface as typed errors; action faults come back as a failed
// execution result with 200.
func (h *ToolHandler) ExecuteHandler(c *gin.Context) {
	key, ok := httputil.GetAPIKey(c.Request.Context())
	if !ok || key == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	toolName := c.Param("toolName")
	if toolName == "" {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("tool name is required"),
			h.logger)
		return
	}

	var req ExecuteToolRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httputil.HandleValidationErrorGin(c, err, h.logger)
			return
		}
	}

	result, err := h.toolUseCase.ExecuteTool(
		c.Request.Context(),
		key.ID, key.TenantID, toolName, req.Params,
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, ExecutionResponse{
		Success:         result.Success,
		Result:          result.Result,
		ErrorMessage:    result.ErrorMessage,
		ExecutionTimeMs: result.ExecutionTimeMs,
	})
}
