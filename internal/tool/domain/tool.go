// Package domain defines registered tools and their execution outcomes.
//
// A tool is a named action an agent may invoke, guarded by a set of required
// permissions. Execution never surfaces an unhandled fault: every run
// produces a typed result, and every attempt leaves an audit row.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tool is a registered action scoped to one agent within a tenant.
type Tool struct {
	ID          uuid.UUID
	AgentID     uuid.UUID
	TenantID    uuid.UUID
	ToolName    string
	Description string

	// RequiredPermissions must all be covered by the calling key's grant
	// (master keys cover everything). Empty means the tool is open to any
	// valid key of its agent.
	RequiredPermissions []string

	IsActive  bool
	CreatedAt time.Time
}

// CreateToolInput contains the parameters for registering a new tool.
type CreateToolInput struct {
	AgentID             uuid.UUID
	TenantID            uuid.UUID
	ToolName            string
	Description         string
	RequiredPermissions []string
}

// UpdateToolInput is a partial update of a tool. Nil fields are unchanged.
type UpdateToolInput struct {
	Description         *string
	RequiredPermissions *[]string
	IsActive            *bool
}

// ExecutionResult is the typed outcome of one tool run. Exactly one of
// Result and ErrorMessage is populated; ExecutionTimeMs covers the action
// itself, not authorization or admission.
type ExecutionResult struct {
	Success         bool
	Result          any
	ErrorMessage    string
	ExecutionTimeMs int64
}

// UsageStatus classifies one execution attempt in the audit trail.
type UsageStatus string

const (
	UsageStatusSuccess UsageStatus = "success"
	UsageStatusError   UsageStatus = "error"
	UsageStatusDenied  UsageStatus = "denied"
	UsageStatusLimited UsageStatus = "rate_limited"
)

// UsageLog is one append-only tool execution audit row. Metadata carries
// diagnostic detail (such as missing permission names) that is deliberately
// kept out of caller-facing errors.
type UsageLog struct {
	ID              uuid.UUID
	ToolID          uuid.UUID
	KeyID           uuid.UUID
	TenantID        uuid.UUID
	Status          UsageStatus
	ErrorMessage    string
	ExecutionTimeMs int64
	Metadata        map[string]any
	CreatedAt       time.Time
}
