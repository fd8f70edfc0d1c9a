package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/agentauth/internal/database"
	apperrors "github.com/allisson/agentauth/internal/errors"
	roleDomain "github.com/allisson/agentauth/internal/role/domain"
)

// MySQLAssignmentRepository implements user role assignment persistence for
// MySQL. Uses BINARY(16) for UUID storage; assignments are append-only.
type MySQLAssignmentRepository struct {
	db *sql.DB
}

// Create inserts a new assignment.
func (m *MySQLAssignmentRepository) Create(
	ctx context.Context,
	assignment *roleDomain.UserRoleAssignment,
) error {
	querier := database.GetTx(ctx, m.db)

	ids := make([][]byte, 0, 5)
	for _, id := range []uuid.UUID{
		assignment.ID,
		assignment.UserID,
		assignment.RoleID,
		assignment.TenantID,
		assignment.AssignedByUserID,
	} {
		binary, err := id.MarshalBinary()
		if err != nil {
			return apperrors.Wrap(err, "failed to marshal assignment id")
		}
		ids = append(ids, binary)
	}

	query := `INSERT INTO user_role_assignments
			  (id, user_id, role_id, tenant_id, assigned_by_user_id, assigned_at, is_active, revoked_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		ids[0],
		ids[1],
		ids[2],
		ids[3],
		ids[4],
		assignment.AssignedAt,
		assignment.IsActive,
		assignment.RevokedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create role assignment")
	}
	return nil
}

// scanAssignment reads one assignment row with BINARY(16) UUID columns.
func scanAssignment(scan func(dest ...any) error) (*roleDomain.UserRoleAssignment, error) {
	var (
		assignment   roleDomain.UserRoleAssignment
		id           []byte
		userID       []byte
		roleID       []byte
		tenantID     []byte
		assignedByID []byte
	)
	err := scan(
		&id,
		&userID,
		&roleID,
		&tenantID,
		&assignedByID,
		&assignment.AssignedAt,
		&assignment.IsActive,
		&assignment.RevokedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, pair := range []struct {
		raw  []byte
		dest *uuid.UUID
	}{
		{id, &assignment.ID},
		{userID, &assignment.UserID},
		{roleID, &assignment.RoleID},
		{tenantID, &assignment.TenantID},
		{assignedByID, &assignment.AssignedByUserID},
	} {
		if err := pair.dest.UnmarshalBinary(pair.raw); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal assignment id")
		}
	}

	return &assignment, nil
}

// GetActive retrieves the active assignment for a (user, role, tenant) triple.
func (m *MySQLAssignmentRepository) GetActive(
	ctx context.Context,
	userID, roleID, tenantID uuid.UUID,
) (*roleDomain.UserRoleAssignment, error) {
	querier := database.GetTx(ctx, m.db)

	binaryUserID, err := userID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal user id")
	}
	binaryRoleID, err := roleID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal role id")
	}
	binaryTenantID, err := tenantID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal tenant id")
	}

	query := `SELECT id, user_id, role_id, tenant_id, assigned_by_user_id, assigned_at, is_active, revoked_at
			  FROM user_role_assignments
			  WHERE user_id = ? AND role_id = ? AND tenant_id = ? AND is_active = TRUE`

	row := querier.QueryRowContext(ctx, query, binaryUserID, binaryRoleID, binaryTenantID)
	assignment, err := scanAssignment(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, roleDomain.ErrAssignmentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get role assignment")
	}

	return assignment, nil
}

// Revoke deactivates an assignment and stamps the revocation time.
func (m *MySQLAssignmentRepository) Revoke(
	ctx context.Context,
	assignmentID uuid.UUID,
	revokedAt time.Time,
) error {
	querier := database.GetTx(ctx, m.db)

	binaryID, err := assignmentID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal assignment id")
	}

	query := `UPDATE user_role_assignments
			  SET is_active = FALSE, revoked_at = ?
			  WHERE id = ?`

	if _, err := querier.ExecContext(ctx, query, revokedAt, binaryID); err != nil {
		return apperrors.Wrap(err, "failed to revoke role assignment")
	}
	return nil
}

// CountActiveByRole counts active assignments referencing a role.
func (m *MySQLAssignmentRepository) CountActiveByRole(
	ctx context.Context,
	roleID uuid.UUID,
) (int, error) {
	querier := database.GetTx(ctx, m.db)

	binaryRoleID, err := roleID.MarshalBinary()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to marshal role id")
	}

	query := `SELECT COUNT(*) FROM user_role_assignments
			  WHERE role_id = ? AND is_active = TRUE`

	var count int
	if err := querier.QueryRowContext(ctx, query, binaryRoleID).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count role assignments")
	}
	return count, nil
}

// ListActiveByUser retrieves the user's active assignments in a tenant.
func (m *MySQLAssignmentRepository) ListActiveByUser(
	ctx context.Context,
	userID, tenantID uuid.UUID,
) ([]*roleDomain.UserRoleAssignment, error) {
	querier := database.GetTx(ctx, m.db)

	binaryUserID, err := userID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal user id")
	}
	binaryTenantID, err := tenantID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal tenant id")
	}

	query := `SELECT id, user_id, role_id, tenant_id, assigned_by_user_id, assigned_at, is_active, revoked_at
			  FROM user_role_assignments
			  WHERE user_id = ? AND tenant_id = ? AND is_active = TRUE
			  ORDER BY assigned_at`

	rows, err := querier.QueryContext(ctx, query, binaryUserID, binaryTenantID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list role assignments")
	}
	defer rows.Close()

	var assignments []*roleDomain.UserRoleAssignment
	for rows.Next() {
		assignment, err := scanAssignment(rows.Scan)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan role assignment")
		}
		assignments = append(assignments, assignment)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate role assignments")
	}

	return assignments, nil
}

// EffectivePermissionNames retrieves the deduplicated permission names
// reachable from the user's active assignments in a tenant.
func (m *MySQLAssignmentRepository) EffectivePermissionNames(
	ctx context.Context,
	userID, tenantID uuid.UUID,
) ([]string, error) {
	querier := database.GetTx(ctx, m.db)

	binaryUserID, err := userID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal user id")
	}
	binaryTenantID, err := tenantID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal tenant id")
	}

	query := `SELECT DISTINCT perm.name
			  FROM user_role_assignments ura
			  JOIN role_permissions rp ON rp.role_id = ura.role_id
			  JOIN permissions perm ON perm.id = rp.permission_id
			  WHERE ura.user_id = ? AND ura.tenant_id = ? AND ura.is_active = TRUE
			  ORDER BY perm.name`

	rows, err := querier.QueryContext(ctx, query, binaryUserID, binaryTenantID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to resolve effective permissions")
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

// NewMySQLAssignmentRepository creates a new MySQL assignment repository.
func NewMySQLAssignmentRepository(db *sql.DB) *MySQLAssignmentRepository {
	return &MySQLAssignmentRepository{db: db}
}
