// Package http provides HTTP handlers for agent management.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validation "github.com/jellydator/validation"

	agentDomain "github.com/allisson/agentauth/internal/agent/domain"
	agentUseCase "github.com/allisson/agentauth/internal/agent/usecase"
	"github.com/allisson/agentauth/internal/httputil"
	customValidation "github.com/allisson/agentauth/internal/validation"
)

// AgentHandler handles HTTP requests for agent management.
type AgentHandler struct {
	agentUseCase agentUseCase.AgentUseCase
	logger       *slog.Logger
}

// NewAgentHandler creates a new agent handler with required dependencies.
func NewAgentHandler(agentUseCase agentUseCase.AgentUseCase, logger *slog.Logger) *AgentHandler {
	return &AgentHandler{
		agentUseCase: agentUseCase,
		logger:       logger,
	}
}

// CreateAgentRequest contains the parameters for registering an agent.
type CreateAgentRequest struct {
	Name            string `json:"name"`
	ExternalAgentID string `json:"external_agent_id"`
}

// Validate checks if the create agent request is valid.
func (r *CreateAgentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 255),
		),
		validation.Field(&r.ExternalAgentID,
			validation.Length(0, 255),
		),
	)
}

// SetAgentStatusRequest contains the parameters for an agent status change.
type SetAgentStatusRequest struct {
	Status string `json:"status"`
}

// Validate checks if the status change request is valid.
func (r *SetAgentStatusRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Status,
			validation.Required,
			customValidation.NotBlank,
		),
	)
}

// AgentResponse represents an agent in API responses.
type AgentResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Status          string    `json:"status"`
	TenantID        string    `json:"tenant_id"`
	ExternalAgentID string    `json:"external_agent_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// mapAgentToResponse converts a domain agent to an API response.
func mapAgentToResponse(agent *agentDomain.Agent) AgentResponse {
	return AgentResponse{
		ID:              agent.ID.String(),
		Name:            agent.Name,
		Status:          string(agent.Status),
		TenantID:        agent.TenantID.String(),
		ExternalAgentID: agent.ExternalAgentID,
		CreatedAt:       agent.CreatedAt,
	}
}

// CreateHandler registers a new agent in the tenant.
// POST /v1/agents
func (h *AgentHandler) CreateHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	var req CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	input := &agentDomain.CreateAgentInput{
		Name:            req.Name,
		TenantID:        identity.TenantID,
		ExternalAgentID: req.ExternalAgentID,
	}

	agent, err := h.agentUseCase.Create(c.Request.Context(), input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, mapAgentToResponse(agent))
}

// GetHandler retrieves an agent within the tenant.
// GET /v1/agents/:id
func (h *AgentHandler) GetHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	agentID, ok := httputil.ParseUUIDParam(c, "id", h.logger)
	if !ok {
		return
	}

	agent, err := h.agentUseCase.Get(c.Request.Context(), agentID, identity.TenantID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, mapAgentToResponse(agent))
}

// ListHandler lists the tenant's agents.
// GET /v1/agents
func (h *AgentHandler) ListHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	agents, err := h.agentUseCase.List(c.Request.Context(), identity.TenantID, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	response := make([]AgentResponse, 0, len(agents))
	for _, agent := range agents {
		response = append(response, mapAgentToResponse(agent))
	}

	c.JSON(http.StatusOK, gin.H{"agents": response, "offset": offset, "limit": limit})
}

// SetStatusHandler transitions an agent between active and inactive.
// PATCH /v1/agents/:id/status
func (h *AgentHandler) SetStatusHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	agentID, ok := httputil.ParseUUIDParam(c, "id", h.logger)
	if !ok {
		return
	}

	var req SetAgentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	status, err := agentDomain.ParseStatus(req.Status)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := h.agentUseCase.SetStatus(c.Request.Context(), agentID, identity.TenantID, status); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}
