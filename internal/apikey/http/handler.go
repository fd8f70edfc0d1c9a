// Package http provides HTTP handlers for API key management and agent
// authentication.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	apikeyDomain "github.com/allisson/agentauth/internal/apikey/domain"
	apikeyUseCase "github.com/allisson/agentauth/internal/apikey/usecase"
	apperrors "github.com/allisson/agentauth/internal/errors"
	"github.com/allisson/agentauth/internal/httputil"
	customValidation "github.com/allisson/agentauth/internal/validation"
)

// APIKeyHandler handles HTTP requests for API key management.
type APIKeyHandler struct {
	apiKeyUseCase apikeyUseCase.APIKeyUseCase
	logger        *slog.Logger
}

// NewAPIKeyHandler creates a new API key handler with required dependencies.
func NewAPIKeyHandler(apiKeyUseCase apikeyUseCase.APIKeyUseCase, logger *slog.Logger) *APIKeyHandler {
	return &APIKeyHandler{
		apiKeyUseCase: apiKeyUseCase,
		logger:        logger,
	}
}

// IssueKeyRequest contains the parameters for issuing an API key.
//
// An empty granted_permissions list issues a master key that satisfies any
// tool requirement; callers must grant explicit permissions unless they
// intend that.
type IssueKeyRequest struct {
	AgentID            string     `json:"agent_id"`
	KeyName            string     `json:"key_name"`
	ExpiresAt          *time.Time `json:"expires_at"`
	GrantedPermissions []string   `json:"granted_permissions"`
	RateLimitPerMinute *int       `json:"rate_limit_per_minute"`
	RateLimitPerHour   *int       `json:"rate_limit_per_hour"`
}

// Validate checks if the issue key request is valid.
func (r *IssueKeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.AgentID,
			validation.Required,
			customValidation.NotBlank,
		),
		validation.Field(&r.KeyName,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 255),
		),
		validation.Field(&r.GrantedPermissions,
			validation.Each(customValidation.NotBlank, customValidation.PermissionName),
		),
	)
}

// UpdateKeyRequest is a partial update of key metadata. Absent fields are
// left unchanged. The secret and prefix are never updatable.
type UpdateKeyRequest struct {
	KeyName            *string    `json:"key_name"`
	ExpiresAt          *time.Time `json:"expires_at"`
	RateLimitPerMinute *int       `json:"rate_limit_per_minute"`
	RateLimitPerHour   *int       `json:"rate_limit_per_hour"`
	Active             *bool      `json:"active"`
}

// Validate checks if the update key request is valid.
func (r *UpdateKeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.KeyName,
			validation.NilOrNotEmpty,
		),
	)
}

// IssueKeyResponse contains the issued key metadata and the plaintext secret.
// SECURITY: The secret is only returned once and must be saved securely.
type IssueKeyResponse struct {
	Key    APIKeyResponse `json:"key"`
	Secret string         `json:"secret"`
}

// APIKeyResponse represents an API key in API responses (excludes the hash).
type APIKeyResponse struct {
	ID                 string     `json:"id"`
	AgentID            string     `json:"agent_id"`
	TenantID           string     `json:"tenant_id"`
	KeyName            string     `json:"key_name"`
	KeyPrefix          string     `json:"key_prefix"`
	Status             string     `json:"status"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	GrantedPermissions []string   `json:"granted_permissions"`
	RateLimitPerMinute *int       `json:"rate_limit_per_minute,omitempty"`
	RateLimitPerHour   *int       `json:"rate_limit_per_hour,omitempty"`
	LastUsedAt         *time.Time `json:"last_used_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	RevokedAt          *time.Time `json:"revoked_at,omitempty"`
}

// UsageLogResponse represents one key usage audit row in API responses.
type UsageLogResponse struct {
	ID        string    `json:"id"`
	KeyID     string    `json:"key_id"`
	Endpoint  string    `json:"endpoint"`
	Outcome   string    `json:"outcome"`
	LatencyMs int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// mapAPIKeyToResponse converts a domain key to an API response.
func mapAPIKeyToResponse(key *apikeyDomain.APIKey) APIKeyResponse {
	permissions := key.GrantedPermissions
	if permissions == nil {
		permissions = []string{}
	}
	return APIKeyResponse{
		ID:                 key.ID.String(),
		AgentID:            key.AgentID.String(),
		TenantID:           key.TenantID.String(),
		KeyName:            key.KeyName,
		KeyPrefix:          key.KeyPrefix,
		Status:             string(key.Status),
		ExpiresAt:          key.ExpiresAt,
		GrantedPermissions: permissions,
		RateLimitPerMinute: key.RateLimitPerMinute,
		RateLimitPerHour:   key.RateLimitPerHour,
		LastUsedAt:         key.LastUsedAt,
		CreatedAt:          key.CreatedAt,
		RevokedAt:          key.RevokedAt,
	}
}

// mapUsageLogToResponse converts a domain usage log row to an API response.
func mapUsageLogToResponse(log *apikeyDomain.UsageLog) UsageLogResponse {
	return UsageLogResponse{
		ID:        log.ID.String(),
		KeyID:     log.KeyID.String(),
		Endpoint:  log.Endpoint,
		Outcome:   string(log.Outcome),
		LatencyMs: log.LatencyMs,
		CreatedAt: log.CreatedAt,
	}
}

// IssueHandler issues a new API key for an agent.
// POST /v1/api-keys
// Returns 201 Created with key metadata and the plaintext secret, which is
// never retrievable again.
func (h *APIKeyHandler) IssueHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	var req IssueKeyRequest
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

	input := &apikeyDomain.IssueKeyInput{
		AgentID:            agentID,
		TenantID:           identity.TenantID,
		KeyName:            req.KeyName,
		ExpiresAt:          req.ExpiresAt,
		GrantedPermissions: req.GrantedPermissions,
		RateLimitPerMinute: req.RateLimitPerMinute,
		RateLimitPerHour:   req.RateLimitPerHour,
	}

	output, err := h.apiKeyUseCase.IssueKey(c.Request.Context(), input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	response := IssueKeyResponse{
		Key:    mapAPIKeyToResponse(output.Key),
		Secret: output.PlainSecret,
	}

	c.JSON(http.StatusCreated, response)
}

// GetHandler retrieves a key's metadata within the tenant.
// GET /v1/api-keys/:id
func (h *APIKeyHandler) GetHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	keyID, ok := httputil.ParseUUIDParam(c, "id", h.logger)
	if !ok {
		return
	}

	key, err := h.apiKeyUseCase.GetKey(c.Request.Context(), keyID, identity.TenantID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, mapAPIKeyToResponse(key))
}

// ListHandler lists the tenant's keys.
// GET /v1/api-keys
func (h *APIKeyHandler) ListHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	keys, err := h.apiKeyUseCase.ListKeys(c.Request.Context(), identity.TenantID, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	response := make([]APIKeyResponse, 0, len(keys))
	for _, key := range keys {
		response = append(response, mapAPIKeyToResponse(key))
	}

	c.JSON(http.StatusOK, gin.H{"api_keys": response, "offset": offset, "limit": limit})
}

// UpdateHandler applies a partial update to key metadata.
// PATCH /v1/api-keys/:id
func (h *APIKeyHandler) UpdateHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	keyID, ok := httputil.ParseUUIDParam(c, "id", h.logger)
	if !ok {
		return
	}

	var req UpdateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	input := &apikeyDomain.UpdateKeyMetadataInput{
		KeyName:            req.KeyName,
		ExpiresAt:          req.ExpiresAt,
		RateLimitPerMinute: req.RateLimitPerMinute,
		RateLimitPerHour:   req.RateLimitPerHour,
		Active:             req.Active,
	}

	key, err := h.apiKeyUseCase.UpdateKeyMetadata(c.Request.Context(), keyID, identity.TenantID, input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, mapAPIKeyToResponse(key))
}

// RevokeHandler terminally disables a key.
// DELETE /v1/api-keys/:id
// Revoking an already-revoked key succeeds without effect.
func (h *APIKeyHandler) RevokeHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	keyID, ok := httputil.ParseUUIDParam(c, "id", h.logger)
	if !ok {
		return
	}

	revoked, err := h.apiKeyUseCase.RevokeKey(c.Request.Context(), keyID, identity.TenantID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	if !revoked {
		httputil.HandleErrorGin(c, apikeyDomain.ErrKeyNotFound, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListUsageHandler lists a key's usage audit rows.
// GET /v1/api-keys/:id/usage
func (h *APIKeyHandler) ListUsageHandler(c *gin.Context) {
	identity, ok := httputil.IdentityFromContext(c, h.logger)
	if !ok {
		return
	}

	keyID, ok := httputil.ParseUUIDParam(c, "id", h.logger)
	if !ok {
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	logs, err := h.apiKeyUseCase.ListUsage(c.Request.Context(), keyID, identity.TenantID, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	response := make([]UsageLogResponse, 0, len(logs))
	for _, log := range logs {
		response = append(response, mapUsageLogToResponse(log))
	}

	c.JSON(http.StatusOK, gin.H{"usage": response, "offset": offset, "limit": limit})
}

// AuthHandler returns the authenticated key's metadata.
// POST /v1/agent/auth
// Runs behind the key authentication middleware; reaching the handler means
// the presented secret verified. The attempt is recorded in the usage log.
func (h *APIKeyHandler) AuthHandler(c *gin.Context) {
	start := time.Now()

	key, ok := httputil.GetAPIKey(c.Request.Context())
	if !ok || key == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	if err := h.apiKeyUseCase.RecordUsage(
		c.Request.Context(),
		key.ID,
		"auth",
		apikeyDomain.UsageOutcomeSuccess,
		time.Since(start),
	); err != nil {
		h.logger.Error("failed to record auth usage",
			slog.String("key_id", key.ID.String()),
			slog.String("error", err.Error()))
	}

	c.JSON(http.StatusOK, mapAPIKeyToResponse(key))
}
