// Package usecase implements business logic for agent management.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	agentDomain "github.com/allisson/agentauth/internal/agent/domain"
)

// AgentRepository defines persistence operations for agents.
// Implementations must support transaction-aware operations via context propagation.
type AgentRepository interface {
	// Create stores a new agent.
	Create(ctx context.Context, agent *agentDomain.Agent) error

	// Update modifies an existing agent.
	Update(ctx context.Context, agent *agentDomain.Agent) error

	// GetForTenant retrieves an agent by ID within a tenant.
	// Returns ErrAgentNotFound if absent or owned by a different tenant.
	GetForTenant(ctx context.Context, agentID, tenantID uuid.UUID) (*agentDomain.Agent, error)

	// List retrieves a tenant's agents with pagination.
	List(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]*agentDomain.Agent, error)
}

// AgentUseCase defines business logic operations for agents. Agents exist
// here only as the owner of API keys and tools; everything else about them
// lives in the surrounding system.
type AgentUseCase interface {
	// Create registers a new agent in the tenant, starting active.
	Create(ctx context.Context, input *agentDomain.CreateAgentInput) (*agentDomain.Agent, error)

	// Get retrieves an agent within the tenant.
	Get(ctx context.Context, agentID, tenantID uuid.UUID) (*agentDomain.Agent, error)

	// List retrieves the tenant's agents.
	List(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]*agentDomain.Agent, error)

	// SetStatus transitions the agent between active and inactive.
	SetStatus(ctx context.Context, agentID, tenantID uuid.UUID, status agentDomain.Status) error
}

type agentUseCase struct {
	agentRepo AgentRepository
}

// Create registers a new agent in the tenant.
func (a *agentUseCase) Create(
	ctx context.Context,
	input *agentDomain.CreateAgentInput,
) (*agentDomain.Agent, error) {
	agent := &agentDomain.Agent{
		ID:              uuid.Must(uuid.NewV7()),
		Name:            input.Name,
		Status:          agentDomain.StatusActive,
		TenantID:        input.TenantID,
		ExternalAgentID: input.ExternalAgentID,
		CreatedAt:       time.Now().UTC(),
	}

	if err := a.agentRepo.Create(ctx, agent); err != nil {
		return nil, err
	}

	return agent, nil
}

// Get retrieves an agent within the tenant.
func (a *agentUseCase) Get(
	ctx context.Context,
	agentID, tenantID uuid.UUID,
) (*agentDomain.Agent, error) {
	return a.agentRepo.GetForTenant(ctx, agentID, tenantID)
}

// List retrieves the tenant's agents.
func (a *agentUseCase) List(
	ctx context.Context,
	tenantID uuid.UUID,
	offset, limit int,
) ([]*agentDomain.Agent, error) {
	return a.agentRepo.List(ctx, tenantID, offset, limit)
}

// SetStatus transitions the agent between active and inactive.
func (a *agentUseCase) SetStatus(
	ctx context.Context,
	agentID, tenantID uuid.UUID,
	status agentDomain.Status,
) error {
	agent, err := a.agentRepo.GetForTenant(ctx, agentID, tenantID)
	if err != nil {
		return err
	}

	agent.Status = status
	return a.agentRepo.Update(ctx, agent)
}

// NewAgentUseCase creates a new AgentUseCase with the provided repository.
func NewAgentUseCase(agentRepo AgentRepository) AgentUseCase {
	return &agentUseCase{agentRepo: agentRepo}
}
