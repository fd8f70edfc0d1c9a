// Package service provides the execution side of registered tools.
//
// The authorization pipeline decides whether a call may run; a Runner is the
// action that actually runs. The surrounding system registers its actions by
// tool name, so this package stays agnostic about what tools do.
package service

import (
	"context"
	"sync"

	toolDomain "github.com/allisson/agentauth/internal/tool/domain"
)

// RunnerFunc is one executable action. Returned errors are captured into the
// execution outcome by the caller, never propagated as faults.
type RunnerFunc func(ctx context.Context, tool *toolDomain.Tool, params map[string]any) (any, error)

// Runner dispatches an authorized tool call to its registered action.
type Runner interface {
	Run(ctx context.Context, tool *toolDomain.Tool, params map[string]any) (any, error)
}

// Registry is a concurrency-safe Runner keyed by tool name.
type Registry struct {
	mu      sync.RWMutex
	runners map[string]RunnerFunc
}

// Register binds an action to a tool name, replacing any previous binding.
func (r *Registry) Register(toolName string, fn RunnerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runners[toolName] = fn
}

// Run dispatches to the action registered under the tool's name.
func (r *Registry) Run(ctx context.Context, tool *toolDomain.Tool, params map[string]any) (any, error) {
	r.mu.RLock()
	fn, ok := r.runners[tool.ToolName]
	r.mu.RUnlock()
	if !ok {
		return nil, toolDomain.ErrRunnerNotFound
	}
	return fn(ctx, tool, params)
}

// NewRegistry creates an empty runner registry.
func NewRegistry() *Registry {
	return &Registry{runners: make(map[string]RunnerFunc)}
}
