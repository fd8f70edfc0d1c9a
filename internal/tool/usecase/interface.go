// Package usecase implements tool registration and the authorize-then-execute
// pipeline.
package usecase

import (
	"context"

	"github.com/google/uuid"

	toolDomain "github.com/allisson/agentauth/internal/tool/domain"
)

// ToolRepository defines persistence operations for tools.
type ToolRepository interface {
	Create(ctx context.Context, tool *toolDomain.Tool) error
	Update(ctx context.Context, tool *toolDomain.Tool) error
	GetForTenant(ctx context.Context, toolID, tenantID uuid.UUID) (*toolDomain.Tool, error)
	GetByName(ctx context.Context, agentID uuid.UUID, toolName string, tenantID uuid.UUID) (*toolDomain.Tool, error)
	List(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]*toolDomain.Tool, error)
}

// ToolUsageLogRepository defines persistence operations for execution audit rows.
type ToolUsageLogRepository interface {
	Create(ctx context.Context, log *toolDomain.UsageLog) error
	ListByTool(ctx context.Context, toolID, tenantID uuid.UUID, offset, limit int) ([]*toolDomain.UsageLog, error)
}

// ToolUseCase defines business operations for tools.
type ToolUseCase interface {
	// CreateTool registers a tool for an agent. Required permission names
	// are checked against the catalog.
	CreateTool(ctx context.Context, input *toolDomain.CreateToolInput) (*toolDomain.Tool, error)

	// UpdateTool applies a partial update to a tool.
	UpdateTool(ctx context.Context, toolID, tenantID uuid.UUID, input *toolDomain.UpdateToolInput) (*toolDomain.Tool, error)

	GetTool(ctx context.Context, toolID, tenantID uuid.UUID) (*toolDomain.Tool, error)
	ListTools(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]*toolDomain.Tool, error)
	ListToolUsage(ctx context.Context, toolID, tenantID uuid.UUID, offset, limit int) ([]*toolDomain.UsageLog, error)

	// ExecuteTool runs the full pipeline for an authenticated key: resolve
	// the tool, check permission coverage, admit against rate ceilings, run
	// the action, and audit the attempt. Authorization and admission
	// failures return typed errors; action faults are captured into the
	// returned ExecutionResult, never propagated.
	ExecuteTool(ctx context.Context, keyID, tenantID uuid.UUID, toolName string, params map[string]any) (*toolDomain.ExecutionResult, error)
}
