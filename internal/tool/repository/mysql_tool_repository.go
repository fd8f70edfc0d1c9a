package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/agentauth/internal/database"
	apperrors "github.com/allisson/agentauth/internal/errors"
	toolDomain "github.com/allisson/agentauth/internal/tool/domain"
)

// MySQLToolRepository implements tool persistence for MySQL.
// Uses BINARY(16) for UUID storage with transaction support via database.GetTx().
type MySQLToolRepository struct {
	db *sql.DB
}

func scanMySQLTool(scan func(dest ...any) error) (*toolDomain.Tool, error) {
	var tool toolDomain.Tool
	var id, agentID, tenantID []byte
	var permissionsJSON []byte

	err := scan(
		&id,
		&agentID,
		&tenantID,
		&tool.ToolName,
		&tool.Description,
		&permissionsJSON,
		&tool.IsActive,
		&tool.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := tool.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal tool id")
	}
	if err := tool.AgentID.UnmarshalBinary(agentID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal agent id")
	}
	if err := tool.TenantID.UnmarshalBinary(tenantID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal tenant id")
	}
	if len(permissionsJSON) > 0 {
		if err := json.Unmarshal(permissionsJSON, &tool.RequiredPermissions); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal required permissions")
		}
	}
	return &tool, nil
}

// Create inserts a new tool.
func (m *MySQLToolRepository) Create(ctx context.Context, tool *toolDomain.Tool) error {
	querier := database.GetTx(ctx, m.db)

	id, err := tool.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal tool id")
	}
	agentID, err := tool.AgentID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal agent id")
	}
	tenantID, err := tool.TenantID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal tenant id")
	}
	permissionsJSON, err := json.Marshal(tool.RequiredPermissions)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal required permissions")
	}

	query := `INSERT INTO tools (id, agent_id, tenant_id, tool_name, description, required_permissions,
			  is_active, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		agentID,
		tenantID,
		tool.ToolName,
		tool.Description,
		permissionsJSON,
		tool.IsActive,
		tool.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create tool")
	}
	return nil
}

// Update modifies a tool's description, required permissions, and active flag.
func (m *MySQLToolRepository) Update(ctx context.Context, tool *toolDomain.Tool) error {
	querier := database.GetTx(ctx, m.db)

	id, err := tool.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal tool id")
	}
	permissionsJSON, err := json.Marshal(tool.RequiredPermissions)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal required permissions")
	}

	query := `UPDATE tools
			  SET description = ?,
			  	  required_permissions = ?,
				  is_active = ?
			  WHERE id = ?`

	_, err = querier.ExecContext(ctx, query, tool.Description, permissionsJSON, tool.IsActive, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to update tool")
	}
	return nil
}

// GetForTenant retrieves a tool by ID within a tenant.
func (m *MySQLToolRepository) GetForTenant(
	ctx context.Context,
	toolID, tenantID uuid.UUID,
) (*toolDomain.Tool, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := toolID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal tool id")
	}
	tenant, err := tenantID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal tenant id")
	}

	query := selectToolColumns + ` FROM tools WHERE id = ? AND tenant_id = ?`

	row := querier.QueryRowContext(ctx, query, id, tenant)
	tool, err := scanMySQLTool(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, toolDomain.ErrToolNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get tool")
	}
	return tool, nil
}

// GetByName retrieves an agent's tool by name within a tenant.
func (m *MySQLToolRepository) GetByName(
	ctx context.Context,
	agentID uuid.UUID,
	toolName string,
	tenantID uuid.UUID,
) (*toolDomain.Tool, error) {
	querier := database.GetTx(ctx, m.db)

	agent, err := agentID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal agent id")
	}
	tenant, err := tenantID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal tenant id")
	}

	query := selectToolColumns + ` FROM tools WHERE agent_id = ? AND tool_name = ? AND tenant_id = ?`

	row := querier.QueryRowContext(ctx, query, agent, toolName, tenant)
	tool, err := scanMySQLTool(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, toolDomain.ErrToolNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get tool by name")
	}
	return tool, nil
}

// List retrieves a tenant's tools with pagination, newest first.
func (m *MySQLToolRepository) List(
	ctx context.Context,
	tenantID uuid.UUID,
	offset, limit int,
) ([]*toolDomain.Tool, error) {
	querier := database.GetTx(ctx, m.db)

	tenant, err := tenantID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal tenant id")
	}

	query := selectToolColumns + ` FROM tools WHERE tenant_id = ?
			  ORDER BY created_at DESC LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, tenant, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list tools")
	}
	defer rows.Close()

	var tools []*toolDomain.Tool
	for rows.Next() {
		tool, err := scanMySQLTool(rows.Scan)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan tool")
		}
		tools = append(tools, tool)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate tools")
	}
	return tools, nil
}

// NewMySQLToolRepository creates a new MySQL tool repository.
func NewMySQLToolRepository(db *sql.DB) *MySQLToolRepository {
	return &MySQLToolRepository{db: db}
}
