package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/agentauth/internal/metrics"
	toolDomain "github.com/allisson/agentauth/internal/tool/domain"
)

// toolUseCaseWithMetrics decorates ToolUseCase with metrics instrumentation.
type toolUseCaseWithMetrics struct {
	next    ToolUseCase
	metrics metrics.BusinessMetrics
}

// NewToolUseCaseWithMetrics wraps a ToolUseCase with metrics recording.
func NewToolUseCaseWithMetrics(useCase ToolUseCase, m metrics.BusinessMetrics) ToolUseCase {
	return &toolUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (t *toolUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	t.metrics.RecordOperation(ctx, "tool", operation, status)
	t.metrics.RecordDuration(ctx, "tool", operation, time.Since(start), status)
}

// CreateTool records metrics for tool registration operations.
func (t *toolUseCaseWithMetrics) CreateTool(
	ctx context.Context,
	input *toolDomain.CreateToolInput,
) (*toolDomain.Tool, error) {
	start := time.Now()
	tool, err := t.next.CreateTool(ctx, input)
	t.record(ctx, "tool_create", start, err)
	return tool, err
}

// UpdateTool records metrics for tool update operations.
func (t *toolUseCaseWithMetrics) UpdateTool(
	ctx context.Context,
	toolID, tenantID uuid.UUID,
	input *toolDomain.UpdateToolInput,
) (*toolDomain.Tool, error) {
	start := time.Now()
	tool, err := t.next.UpdateTool(ctx, toolID, tenantID, input)
	t.record(ctx, "tool_update", start, err)
	return tool, err
}

// GetTool records metrics for tool retrieval operations.
func (t *toolUseCaseWithMetrics) GetTool(ctx context.Context, toolID, tenantID uuid.UUID) (*toolDomain.Tool, error) {
	start := time.Now()
	tool, err := t.next.GetTool(ctx, toolID, tenantID)
	t.record(ctx, "tool_get", start, err)
	return tool, err
}

// ListTools records metrics for tool listing operations.
func (t *toolUseCaseWithMetrics) ListTools(
	ctx context.Context,
	tenantID uuid.UUID,
	offset, limit int,
) ([]*toolDomain.Tool, error) {
	start := time.Now()
	tools, err := t.next.ListTools(ctx, tenantID, offset, limit)
	t.record(ctx, "tool_list", start, err)
	return tools, err
}

// ListToolUsage records metrics for execution audit listing operations.
func (t *toolUseCaseWithMetrics) ListToolUsage(
	ctx context.Context,
	toolID, tenantID uuid.UUID,
	offset, limit int,
) ([]*toolDomain.UsageLog, error) {
	start := time.Now()
	logs, err := t.next.ListToolUsage(ctx, toolID, tenantID, offset, limit)
	t.record(ctx, "tool_usage_list", start, err)
	return logs, err
}

// ExecuteTool records metrics for the authorize-then-execute pipeline.
func (t *toolUseCaseWithMetrics) ExecuteTool(
	ctx context.Context,
	keyID, tenantID uuid.UUID,
	toolName string,
	params map[string]any,
) (*toolDomain.ExecutionResult, error) {
	start := time.Now()
	result, err := t.next.ExecuteTool(ctx, keyID, tenantID, toolName, params)
	t.record(ctx, "tool_execute", start, err)
	return result, err
}
