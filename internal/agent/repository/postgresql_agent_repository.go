// Package repository implements agent persistence.
//
// Provides PostgreSQL and MySQL implementations with transaction support via
// database.GetTx(). PostgreSQL uses native UUID types, MySQL uses BINARY(16).
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	agentDomain "github.com/allisson/agentauth/internal/agent/domain"
	"github.com/allisson/agentauth/internal/database"
	apperrors "github.com/allisson/agentauth/internal/errors"
)

// PostgreSQLAgentRepository implements agent persistence for PostgreSQL.
type PostgreSQLAgentRepository struct {
	db *sql.DB
}

// Create inserts a new agent.
func (p *PostgreSQLAgentRepository) Create(ctx context.Context, agent *agentDomain.Agent) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO agents (id, name, status, tenant_id, external_agent_id, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := querier.ExecContext(
		ctx,
		query,
		agent.ID,
		agent.Name,
		agent.Status,
		agent.TenantID,
		agent.ExternalAgentID,
		agent.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create agent")
	}
	return nil
}

// Update modifies an existing agent's name and status.
func (p *PostgreSQLAgentRepository) Update(ctx context.Context, agent *agentDomain.Agent) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE agents SET name = $1, status = $2 WHERE id = $3`

	if _, err := querier.ExecContext(ctx, query, agent.Name, agent.Status, agent.ID); err != nil {
		return apperrors.Wrap(err, "failed to update agent")
	}
	return nil
}

// GetForTenant retrieves an agent by ID within a tenant. A row owned by a
// different tenant is reported as not found.
func (p *PostgreSQLAgentRepository) GetForTenant(
	ctx context.Context,
	agentID, tenantID uuid.UUID,
) (*agentDomain.Agent, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, name, status, tenant_id, external_agent_id, created_at
			  FROM agents WHERE id = $1 AND tenant_id = $2`

	var agent agentDomain.Agent
	err := querier.QueryRowContext(ctx, query, agentID, tenantID).Scan(
		&agent.ID,
		&agent.Name,
		&agent.Status,
		&agent.TenantID,
		&agent.ExternalAgentID,
		&agent.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, agentDomain.ErrAgentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get agent")
	}

	return &agent, nil
}

// List retrieves a tenant's agents ordered by creation time descending.
func (p *PostgreSQLAgentRepository) List(
	ctx context.Context,
	tenantID uuid.UUID,
	offset, limit int,
) ([]*agentDomain.Agent, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, name, status, tenant_id, external_agent_id, created_at
			  FROM agents
			  WHERE tenant_id = $1
			  ORDER BY created_at DESC
			  OFFSET $2 LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, tenantID, offset, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list agents")
	}
	defer rows.Close()

	var agents []*agentDomain.Agent
	for rows.Next() {
		var agent agentDomain.Agent
		err := rows.Scan(
			&agent.ID,
			&agent.Name,
			&agent.Status,
			&agent.TenantID,
			&agent.ExternalAgentID,
			&agent.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan agent")
		}
		agents = append(agents, &agent)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate agents")
	}

	return agents, nil
}

// NewPostgreSQLAgentRepository creates a new PostgreSQL agent repository.
func NewPostgreSQLAgentRepository(db *sql.DB) *PostgreSQLAgentRepository {
	return &PostgreSQLAgentRepository{db: db}
}
