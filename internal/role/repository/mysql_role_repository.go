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

// MySQLRoleRepository implements role persistence for MySQL.
// Uses BINARY(16) for UUID storage with transaction support via database.GetTx().
type MySQLRoleRepository struct {
	db *sql.DB
}

// marshalOptionalUUID converts an optional UUID into a nullable BINARY(16) value.
func marshalOptionalUUID(id *uuid.UUID) (any, error) {
	if id == nil {
		return nil, nil
	}
	return id.MarshalBinary()
}

// unmarshalOptionalUUID converts a nullable BINARY(16) value back into an optional UUID.
func unmarshalOptionalUUID(raw []byte) (*uuid.UUID, error) {
	if raw == nil {
		return nil, nil
	}
	var id uuid.UUID
	if err := id.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return &id, nil
}

// Create inserts a new role.
func (m *MySQLRoleRepository) Create(ctx context.Context, role *roleDomain.Role) error {
	querier := database.GetTx(ctx, m.db)

	id, err := role.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal role id")
	}
	tenantID, err := marshalOptionalUUID(role.TenantID)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal tenant id")
	}

	query := `INSERT INTO roles (id, name, description, is_system_role, tenant_id, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		role.Name,
		role.Description,
		role.IsSystemRole,
		tenantID,
		role.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create role")
	}
	return nil
}

// Update modifies an existing role's name and description.
func (m *MySQLRoleRepository) Update(ctx context.Context, role *roleDomain.Role) error {
	querier := database.GetTx(ctx, m.db)

	id, err := role.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal role id")
	}

	query := `UPDATE roles SET name = ?, description = ? WHERE id = ?`

	if _, err := querier.ExecContext(ctx, query, role.Name, role.Description, id); err != nil {
		return apperrors.Wrap(err, "failed to update role")
	}
	return nil
}

// scanRole reads one role row with BINARY(16) UUID columns.
func scanRole(scan func(dest ...any) error) (*roleDomain.Role, error) {
	var (
		role     roleDomain.Role
		id       []byte
		tenantID []byte
	)
	err := scan(&id, &role.Name, &role.Description, &role.IsSystemRole, &tenantID, &role.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := role.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal role id")
	}
	role.TenantID, err = unmarshalOptionalUUID(tenantID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal tenant id")
	}

	return &role, nil
}

// Get retrieves a role by ID.
func (m *MySQLRoleRepository) Get(ctx context.Context, roleID uuid.UUID) (*roleDomain.Role, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := roleID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal role id")
	}

	query := `SELECT id, name, description, is_system_role, tenant_id, created_at
			  FROM roles WHERE id = ?`

	row := querier.QueryRowContext(ctx, query, id)
	role, err := scanRole(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, roleDomain.ErrRoleNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get role")
	}

	return role, nil
}

// GetByName retrieves a role by name within a scope. A nil tenantID targets
// the system scope.
func (m *MySQLRoleRepository) GetByName(
	ctx context.Context,
	name string,
	tenantID *uuid.UUID,
) (*roleDomain.Role, error) {
	querier := database.GetTx(ctx, m.db)

	binaryTenantID, err := marshalOptionalUUID(tenantID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal tenant id")
	}

	query := `SELECT id, name, description, is_system_role, tenant_id, created_at
			  FROM roles WHERE name = ? AND tenant_id <=> ?`

	row := querier.QueryRowContext(ctx, query, name, binaryTenantID)
	role, err := scanRole(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, roleDomain.ErrRoleNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get role by name")
	}

	return role, nil
}

// Delete removes a role and its permission grants.
func (m *MySQLRoleRepository) Delete(ctx context.Context, roleID uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	id, err := roleID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal role id")
	}

	if _, err := querier.ExecContext(
		ctx, `DELETE FROM role_permissions WHERE role_id = ?`, id,
	); err != nil {
		return apperrors.Wrap(err, "failed to delete role permissions")
	}

	if _, err := querier.ExecContext(ctx, `DELETE FROM roles WHERE id = ?`, id); err != nil {
		return apperrors.Wrap(err, "failed to delete role")
	}
	return nil
}

// List retrieves the roles visible to a tenant, ordered by name.
func (m *MySQLRoleRepository) List(
	ctx context.Context,
	tenantID uuid.UUID,
	offset, limit int,
) ([]*roleDomain.Role, error) {
	querier := database.GetTx(ctx, m.db)

	binaryTenantID, err := tenantID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal tenant id")
	}

	query := `SELECT id, name, description, is_system_role, tenant_id, created_at
			  FROM roles
			  WHERE is_system_role = TRUE OR tenant_id = ?
			  ORDER BY name
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, binaryTenantID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list roles")
	}
	defer rows.Close()

	var roles []*roleDomain.Role
	for rows.Next() {
		role, err := scanRole(rows.Scan)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan role")
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate roles")
	}

	return roles, nil
}

// AddPermission grants a permission to a role. INSERT IGNORE keeps the
// operation idempotent without a prior existence check.
func (m *MySQLRoleRepository) AddPermission(
	ctx context.Context,
	roleID, permissionID uuid.UUID,
) error {
	querier := database.GetTx(ctx, m.db)

	binaryRoleID, err := roleID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal role id")
	}
	binaryPermissionID, err := permissionID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal permission id")
	}

	query := `INSERT IGNORE INTO role_permissions (role_id, permission_id) VALUES (?, ?)`

	if _, err := querier.ExecContext(ctx, query, binaryRoleID, binaryPermissionID); err != nil {
		return apperrors.Wrap(err, "failed to add role permission")
	}
	return nil
}

// RemovePermission revokes a permission from a role. Removing an absent grant
// is a no-op.
func (m *MySQLRoleRepository) RemovePermission(
	ctx context.Context,
	roleID, permissionID uuid.UUID,
) error {
	querier := database.GetTx(ctx, m.db)

	binaryRoleID, err := roleID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal role id")
	}
	binaryPermissionID, err := permissionID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal permission id")
	}

	query := `DELETE FROM role_permissions WHERE role_id = ? AND permission_id = ?`

	if _, err := querier.ExecContext(ctx, query, binaryRoleID, binaryPermissionID); err != nil {
		return apperrors.Wrap(err, "failed to remove role permission")
	}
	return nil
}

// ListPermissionNames retrieves the permission names granted to a role.
func (m *MySQLRoleRepository) ListPermissionNames(
	ctx context.Context,
	roleID uuid.UUID,
) ([]string, error) {
	querier := database.GetTx(ctx, m.db)

	binaryRoleID, err := roleID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal role id")
	}

	query := `SELECT p.name
			  FROM role_permissions rp
			  JOIN permissions p ON p.id = rp.permission_id
			  WHERE rp.role_id = ?
			  ORDER BY p.name`

	rows, err := querier.QueryContext(ctx, query, binaryRoleID)
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

// NewMySQLRoleRepository creates a new MySQL role repository.
func NewMySQLRoleRepository(db *sql.DB) *MySQLRoleRepository {
	return &MySQLRoleRepository{db: db}
}
