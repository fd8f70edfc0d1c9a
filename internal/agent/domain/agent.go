// Package domain defines the agent model: the tenant-scoped principal on
// whose behalf API keys are issued and tools are registered.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/agentauth/internal/errors"
)

// Status is the agent lifecycle state.
type Status string

const (
	// StatusActive means the agent's keys may authenticate.
	StatusActive Status = "active"

	// StatusInactive means the agent is disabled; its keys keep their own
	// state but no new credentials should be issued.
	StatusInactive Status = "inactive"
)

// ParseStatus validates an externally-supplied status value at the boundary.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive, nil
	case StatusInactive:
		return StatusInactive, nil
	default:
		return "", apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown agent status %q", s)
	}
}

// Agent is the principal that owns API keys and tools within a tenant.
type Agent struct {
	ID              uuid.UUID
	Name            string
	Status          Status
	TenantID        uuid.UUID
	ExternalAgentID string
	CreatedAt       time.Time
}

// IsActive reports whether the agent may receive new credentials.
func (a *Agent) IsActive() bool {
	return a.Status == StatusActive
}

// CreateAgentInput contains the parameters for registering a new agent.
type CreateAgentInput struct {
	Name            string
	TenantID        uuid.UUID
	ExternalAgentID string
}
