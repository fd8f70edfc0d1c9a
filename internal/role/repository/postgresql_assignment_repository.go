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

// PostgreSQLAssignmentRepository implements user role assignment persistence
// for PostgreSQL. Assignments are append-only: revocation flips is_active and
// stamps revoked_at, rows are never deleted.
type PostgreSQLAssignmentRepository struct {
	db *sql.DB
}

// Create inserts a new assignment.
func (p *PostgreSQLAssignmentRepository) Create(
	ctx context.Context,
	assignment *roleDomain.UserRoleAssignment,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO user_role_assignments
			  (id, user_id, role_id, tenant_id, assigned_by_user_id, assigned_at, is_active, revoked_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := querier.ExecContext(
		ctx,
		query,
		assignment.ID,
		assignment.UserID,
		assignment.RoleID,
		assignment.TenantID,
		assignment.AssignedByUserID,
		assignment.AssignedAt,
		assignment.IsActive,
		assignment.RevokedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create role assignment")
	}
	return nil
}

// GetActive retrieves the active assignment for a (user, role, tenant) triple.
func (p *PostgreSQLAssignmentRepository) GetActive(
	ctx context.Context,
	userID, roleID, tenantID uuid.UUID,
) (*roleDomain.UserRoleAssignment, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, user_id, role_id, tenant_id, assigned_by_user_id, assigned_at, is_active, revoked_at
			  FROM user_role_assignments
			  WHERE user_id = $1 AND role_id = $2 AND tenant_id = $3 AND is_active = TRUE`

	var assignment roleDomain.UserRoleAssignment
	err := querier.QueryRowContext(ctx, query, userID, roleID, tenantID).Scan(
		&assignment.ID,
		&assignment.UserID,
		&assignment.RoleID,
		&assignment.TenantID,
		&assignment.AssignedByUserID,
		&assignment.AssignedAt,
		&assignment.IsActive,
		&assignment.RevokedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, roleDomain.ErrAssignmentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get role assignment")
	}

	return &assignment, nil
}

// Revoke deactivates an assignment and stamps the revocation time.
func (p *PostgreSQLAssignmentRepository) Revoke(
	ctx context.Context,
	assignmentID uuid.UUID,
	revokedAt time.Time,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE user_role_assignments
			  SET is_active = FALSE, revoked_at = $1
			  WHERE id = $2`

	if _, err := querier.ExecContext(ctx, query, revokedAt, assignmentID); err != nil {
		return apperrors.Wrap(err, "failed to revoke role assignment")
	}
	return nil
}

// CountActiveByRole counts active assignments referencing a role.
func (p *PostgreSQLAssignmentRepository) CountActiveByRole(
	ctx context.Context,
	roleID uuid.UUID,
) (int, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT COUNT(*) FROM user_role_assignments
			  WHERE role_id = $1 AND is_active = TRUE`

	var count int
	if err := querier.QueryRowContext(ctx, query, roleID).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count role assignments")
	}
	return count, nil
}

// ListActiveByUser retrieves the user's active assignments in a tenant.
func (p *PostgreSQLAssignmentRepository) ListActiveByUser(
	ctx context.Context,
	userID, tenantID uuid.UUID,
) ([]*roleDomain.UserRoleAssignment, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, user_id, role_id, tenant_id, assigned_by_user_id, assigned_at, is_active, revoked_at
			  FROM user_role_assignments
			  WHERE user_id = $1 AND tenant_id = $2 AND is_active = TRUE
			  ORDER BY assigned_at`

	rows, err := querier.QueryContext(ctx, query, userID, tenantID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list role assignments")
	}
	defer rows.Close()

	var assignments []*roleDomain.UserRoleAssignment
	for rows.Next() {
		var assignment roleDomain.UserRoleAssignment
		err := rows.Scan(
			&assignment.ID,
			&assignment.UserID,
			&assignment.RoleID,
			&assignment.TenantID,
			&assignment.AssignedByUserID,
			&assignment.AssignedAt,
			&assignment.IsActive,
			&assignment.RevokedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan role assignment")
		}
		assignments = append(assignments, &assignment)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate role assignments")
	}

	return assignments, nil
}

// EffectivePermissionNames retrieves the deduplicated permission names
// reachable from the user's active assignments in a tenant. A system role's
// permissions count even though the role itself carries no tenant id.
func (p *PostgreSQLAssignmentRepository) EffectivePermissionNames(
	ctx context.Context,
	userID, tenantID uuid.UUID,
) ([]string, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT DISTINCT perm.name
			  FROM user_role_assignments ura
			  JOIN role_permissions rp ON rp.role_id = ura.role_id
			  JOIN permissions perm ON perm.id = rp.permission_id
			  WHERE ura.user_id = $1 AND ura.tenant_id = $2 AND ura.is_active = TRUE
			  ORDER BY perm.name`

	rows, err := querier.QueryContext(ctx, query, userID, tenantID)
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

// NewPostgreSQLAssignmentRepository creates a new PostgreSQL assignment repository.
func NewPostgreSQLAssignmentRepository(db *sql.DB) *PostgreSQLAssignmentRepository {
	return &PostgreSQLAssignmentRepository{db: db}
}
