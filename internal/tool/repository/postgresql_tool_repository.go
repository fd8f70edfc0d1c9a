// Package repository implements tool and tool usage log persistence.
//
// Provides PostgreSQL and MySQL implementations with transaction support via
// database.GetTx(). PostgreSQL uses native UUID types, MySQL uses BINARY(16).
// Required permission sets and log metadata are stored as JSON documents.
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

// PostgreSQLToolRepository implements tool persistence for PostgreSQL.
type PostgreSQLToolRepository struct {
	db *sql.DB
}

const selectToolColumns = `SELECT id, agent_id, tenant_id, tool_name, description, required_permissions,
			  is_active, created_at`

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTool(row rowScanner) (*toolDomain.Tool, error) {
	var tool toolDomain.Tool
	var permissionsJSON []byte

	err := row.Scan(
		&tool.ID,
		&tool.AgentID,
		&tool.TenantID,
		&tool.ToolName,
		&tool.Description,
		&permissionsJSON,
		&tool.IsActive,
		&tool.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(permissionsJSON) > 0 {
		if err := json.Unmarshal(permissionsJSON, &tool.RequiredPermissions); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal required permissions")
		}
	}
	return &tool, nil
}

// Create inserts a new tool.
func (p *PostgreSQLToolRepository) Create(ctx context.Context, tool *toolDomain.Tool) error {
	querier := database.GetTx(ctx, p.db)

	permissionsJSON, err := json.Marshal(tool.RequiredPermissions)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal required permissions")
	}

	query := `INSERT INTO tools (id, agent_id, tenant_id, tool_name, description, required_permissions,
			  is_active, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = querier.ExecContext(
		ctx,
		query,
		tool.ID,
		tool.AgentID,
		tool.TenantID,
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
func (p *PostgreSQLToolRepository) Update(ctx context.Context, tool *toolDomain.Tool) error {
	querier := database.GetTx(ctx, p.db)

	permissionsJSON, err := json.Marshal(tool.RequiredPermissions)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal required permissions")
	}

	query := `UPDATE tools
			  SET description = $1,
			  	  required_permissions = $2,
				  is_active = $3
			  WHERE id = $4`

	_, err = querier.ExecContext(ctx, query, tool.Description, permissionsJSON, tool.IsActive, tool.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update tool")
	}
	return nil
}

// GetForTenant retrieves a tool by ID within a tenant.
func (p *PostgreSQLToolRepository) GetForTenant(
	ctx context.Context,
	toolID, tenantID uuid.UUID,
) (*toolDomain.Tool, error) {
	querier := database.GetTx(ctx, p.db)

	query := selectToolColumns + ` FROM tools WHERE id = $1 AND tenant_id = $2`

	tool, err := scanTool(querier.QueryRowContext(ctx, query, toolID, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, toolDomain.ErrToolNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get tool")
	}
	return tool, nil
}

// GetByName retrieves an agent's tool by name within a tenant.
func (p *PostgreSQLToolRepository) GetByName(
	ctx context.Context,
	agentID uuid.UUID,
	toolName string,
	tenantID uuid.UUID,
) (*toolDomain.Tool, error) {
	querier := database.GetTx(ctx, p.db)

	query := selectToolColumns + ` FROM tools WHERE agent_id = $1 AND tool_name = $2 AND tenant_id = $3`

	tool, err := scanTool(querier.QueryRowContext(ctx, query, agentID, toolName, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, toolDomain.ErrToolNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get tool by name")
	}
	return tool, nil
}

// List retrieves a tenant's tools with pagination, newest first.
func (p *PostgreSQLToolRepository) List(
	ctx context.Context,
	tenantID uuid.UUID,
	offset, limit int,
) ([]*toolDomain.Tool, error) {
	querier := database.GetTx(ctx, p.db)

	query := selectToolColumns + ` FROM tools WHERE tenant_id = $1
			  ORDER BY created_at DESC OFFSET $2 LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, tenantID, offset, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list tools")
	}
	defer rows.Close()

	var tools []*toolDomain.Tool
	for rows.Next() {
		tool, err := scanTool(rows)
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

// NewPostgreSQLToolRepository creates a new PostgreSQL tool repository.
func NewPostgreSQLToolRepository(db *sql.DB) *PostgreSQLToolRepository {
	return &PostgreSQLToolRepository{db: db}
}
