// Package repository implements persistence for roles and user role assignments.
//
// Provides PostgreSQL and MySQL implementations with transaction support via
// database.GetTx(). PostgreSQL uses native UUID types, MySQL uses BINARY(16).
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/agentauth/internal/database"
	apperrors "github.com/allisson/agentauth/internal/errors"
	roleDomain "github.com/allisson/agentauth/internal/role/domain"
)

// PostgreSQLRoleRepository implements role persistence for PostgreSQL.
type PostgreSQLRoleRepository struct {
	db *sql.DB
}

// Create inserts a new role.
func (p *PostgreSQLRoleRepository) Create(ctx context.Context, role *roleDomain.Role) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO roles (id, name, description, is_system_role, tenant_id, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := querier.ExecContext(
		ctx,
		query,
		role.ID,
		role.Name,
		role.Description,
		role.IsSystemRole,
		role.TenantID,
		role.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create role")
	}
	return nil
}

// Update modifies an existing role's name and description.
func (p *PostgreSQLRoleRepository) Update(ctx context.Context, role *roleDomain.Role) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE roles SET name = $1, description = $2 WHERE id = $3`

	_, err := querier.ExecContext(ctx, query, role.Name, role.Description, role.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update role")
	}
	return nil
}

// Get retrieves a role by ID.
func (p *PostgreSQLRoleRepository) Get(
	ctx context.Context,
	roleID uuid.UUID,
) (*roleDomain.Role, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, name, description, is_system_role, tenant_id, created_at
			  FROM roles WHERE id = $1`

	var role roleDomain.Role
	err := querier.QueryRowContext(ctx, query, roleID).Scan(
		&role.ID,
		&role.Name,
		&role.Description,
		&role.IsSystemRole,
		&role.TenantID,
		&role.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, roleDomain.ErrRoleNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get role")
	}

	return &role, nil
}

// GetByName retrieves a role by name within a scope. A nil tenantID targets
// the system scope.
func (p *PostgreSQLRoleRepository) GetByName(
	ctx context.Context,
	name string,
	tenantID *uuid.UUID,
) (*roleDomain.Role, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, name, description, is_system_role, tenant_id, created_at
			  FROM roles WHERE name = $1 AND tenant_id IS NOT DISTINCT FROM $2`

	var role roleDomain.Role
	err := querier.QueryRowContext(ctx, query, name, tenantID).Scan(
		&role.ID,
		&role.Name,
		&role.Description,
		&role.IsSystemRole,
		&role.TenantID,
		&role.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, roleDomain.ErrRoleNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get role by name")
	}

	return &role, nil
}

// Delete removes a role and its permission grants.
func (p *PostgreSQLRoleRepository) Delete(ctx context.Context, roleID uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	if _, err := querier.ExecContext(
		ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID,
	); err != nil {
		return apperrors.Wrap(err, "failed to delete role permissions")
	}

	if _, err := querier.ExecContext(
		ctx, `DELETE FROM roles WHERE id = $1`, roleID,
	); err != nil {
		return apperrors.Wrap(err, "failed to delete role")
	}
	return nil
}

// List retrieves the roles visible to a tenant: system roles plus the
// tenant's own, ordered by name.
func (p *PostgreSQLRoleRepository) List(
	ctx context.Context,
	tenantID uuid.UUID,
	offset, limit int,
) ([]*roleDomain.Role, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, name, description, is_system_role, tenant_id, created_at
			  FROM roles
			  WHERE is_system_role = TRUE OR tenant_id = $1
			  ORDER BY name
			  OFFSET $2 LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, tenantID, offset, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list roles")
	}
	defer rows.Close()

	var roles []*roleDomain.Role
	for rows.Next() {
		var role roleDomain.Role
		err := rows.Scan(
			&role.ID,
			&role.Name,
			&role.Description,
			&role.IsSystemRole,
			&role.TenantID,
			&role.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan role")
		}
		roles = append(roles, &role)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate roles")
	}

	return roles, nil
}

// AddPermission grants a permission to a role. ON CONFLICT DO NOTHING keeps
// the operation idempotent without a prior existence check.
func (p *PostgreSQLRoleRepository) AddPermission(
	ctx context.Context,
	roleID, permissionID uuid.UUID,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO role_permissions (role_id, permission_id)
			  VALUES ($1, $2)
			  ON CONFLICT (role_id, permission_id) DO NOTHING`

	if _, err := querier.ExecContext(ctx, query, roleID, permissionID); err != nil {
		return apperrors.Wrap(err, "failed to add role permission")
	}
	return nil
}

// RemovePermission revokes a permission from a role. Removing an absent grant
// is a no-op.
func (p *PostgreSQLRoleRepository) RemovePermission(
	ctx context.Context,
	roleID, permissionID uuid.UUID,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`

	if _, err := querier.ExecContext(ctx, query, roleID, permissionID); err != nil {
		return apperrors.Wrap(err, "failed to remove role permission")
	}
	return nil
}

// ListPermissionNames retrieves the permission names granted to a role.
func (p *PostgreSQLRoleRepository) ListPermissionNames(
	ctx context.Context,
	roleID uuid.UUID,
) ([]string, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT p.name
			  FROM role_permissions rp
			  JOIN permissions p ON p.id = rp.permission_id
			  WHERE rp.role_id = $1
			  ORDER BY p.name`

	rows, err := querier.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list role permissions")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan permission name")
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate permission names")
	}

	return names, nil
}

// NewPostgreSQLRoleRepository creates a new PostgreSQL role repository.
func NewPostgreSQLRoleRepository(db *sql.DB) *PostgreSQLRoleRepository {
	return &PostgreSQLRoleRepository{db: db}
}
