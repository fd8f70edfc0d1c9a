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

// MySQLAgentRepository implements agent persistence for MySQL.
// Uses BINARY(16) for UUID storage with transaction support via database.GetTx().
type MySQLAgentRepository struct {
	db *sql.DB
}

// Create inserts a new agent.
func (m *MySQLAgentRepository) Create(ctx context.Context, agent *agentDomain.Agent) error {
	querier := database.GetTx(ctx, m.db)

	id, err := agent.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal agent id")
	}
	tenantID, err := agent.TenantID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal tenant id")
	}

	query := `INSERT INTO agents (id, name, status, tenant_id, external_agent_id, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		agent.Name,
		agent.Status,
		tenantID,
		agent.ExternalAgentID,
		agent.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create agent")
	}
	return nil
}

// Update modifies an existing agent's name and status.
func (m *MySQLAgentRepository) Update(ctx context.Context, agent *agentDomain.Agent) error {
	querier := database.GetTx(ctx, m.db)

	id, err := agent.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal agent id")
	}

	query := `UPDATE agents SET name = ?, status = ? WHERE id = ?`

	if _, err := querier.ExecContext(ctx, query, agent.Name, agent.Status, id); err != nil {
		return apperrors.Wrap(err, "failed to update agent")
	}
	return nil
}

// scanAgent reads one agent row with BINARY(16) UUID columns.
func scanAgent(scan func(dest ...any) error) (*agentDomain.Agent, error) {
	var (
		agent    agentDomain.Agent
		id       []byte
		tenantID []byte
	)
	err := scan(&id, &agent.Name, &agent.Status, &tenantID, &agent.ExternalAgentID, &agent.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := agent.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal agent id")
	}
	if err := agent.TenantID.UnmarshalBinary(tenantID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal tenant id")
	}

	return &agent, nil
}

// GetForTenant retrieves an agent by ID within a tenant.
func (m *MySQLAgentRepository) GetForTenant(
	ctx context.Context,
	agentID, tenantID uuid.UUID,
) (*agentDomain.Agent, error) {
	querier := database.GetTx(ctx, m.db)

	binaryAgentID, err := agentID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal agent id")
	}
	binaryTenantID, err := tenantID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal tenant id")
	}

	query := `SELECT id, name, status, tenant_id, external_agent_id, created_at
			  FROM agents WHERE id = ? AND tenant_id = ?`

	row := querier.QueryRowContext(ctx, query, binaryAgentID, binaryTenantID)
	agent, err := scanAgent(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, agentDomain.ErrAgentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get agent")
	}

	return agent, nil
}

// List retrieves a tenant's agents ordered by creation time descending.
func (m *MySQLAgentRepository) List(
	ctx context.Context,
	tenantID uuid.UUID,
	offset, limit int,
) ([]*agentDomain.Agent, error) {
	querier := database.GetTx(ctx, m.db)

	binaryTenantID, err := tenantID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal tenant id")
	}

	query := `SELECT id, name, status, tenant_id, external_agent_id, created_at
			  FROM agents
			  WHERE tenant_id = ?
			  ORDER BY created_at DESC
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, binaryTenantID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list agents")
	}
	defer rows.Close()

	var agents []*agentDomain.Agent
	for rows.Next() {
		agent, err := scanAgent(rows.Scan)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan agent")
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate agents")
	}

	return agents, nil
}

// NewMySQLAgentRepository creates a new MySQL agent repository.
func NewMySQLAgentRepository(db *sql.DB) *MySQLAgentRepository {
	return &MySQLAgentRepository{db: db}
}
