// Package usecase defines business logic interfaces for the role engine.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	permissionDomain "github.com/allisson/agentauth/internal/permission/domain"
	roleDomain "github.com/allisson/agentauth/internal/role/domain"
)

// RoleRepository defines persistence operations for roles and their
// permission grants. Implementations must support transaction-aware
// operations via context propagation.
type RoleRepository interface {
	// Create stores a new role.
	Create(ctx context.Context, role *roleDomain.Role) error

	// Update modifies an existing role.
	Update(ctx context.Context, role *roleDomain.Role) error

	// Get retrieves a role by ID. Returns ErrRoleNotFound if not found.
	Get(ctx context.Context, roleID uuid.UUID) (*roleDomain.Role, error)

	// GetByName retrieves a role by name within a scope: tenantID nil means
	// the system scope. Returns ErrRoleNotFound if not found.
	GetByName(ctx context.Context, name string, tenantID *uuid.UUID) (*roleDomain.Role, error)

	// Delete removes a role and its permission grants.
	Delete(ctx context.Context, roleID uuid.UUID) error

	// List retrieves the roles visible to a tenant (system roles plus the
	// tenant's own), ordered by name, with pagination.
	List(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]*roleDomain.Role, error)

	// AddPermission grants a permission to a role. Idempotent: granting an
	// already-granted permission succeeds without creating a duplicate row.
	AddPermission(ctx context.Context, roleID, permissionID uuid.UUID) error

	// RemovePermission revokes a permission from a role. Idempotent: removing
	// an absent grant succeeds as a no-op.
	RemovePermission(ctx context.Context, roleID, permissionID uuid.UUID) error

	// ListPermissionNames retrieves the permission names granted to a role.
	ListPermissionNames(ctx context.Context, roleID uuid.UUID) ([]string, error)
}

// AssignmentRepository defines persistence operations for user role assignments.
type AssignmentRepository interface {
	// Create stores a new assignment.
	Create(ctx context.Context, assignment *roleDomain.UserRoleAssignment) error

	// GetActive retrieves the active assignment for a (user, role, tenant)
	// triple. Returns ErrAssignmentNotFound if none is active.
	GetActive(
		ctx context.Context,
		userID, roleID, tenantID uuid.UUID,
	) (*roleDomain.UserRoleAssignment, error)

	// Revoke deactivates an assignment, stamping the revocation time.
	// The row is kept for audit history.
	Revoke(ctx context.Context, assignmentID uuid.UUID, revokedAt time.Time) error

	// CountActiveByRole counts active assignments referencing a role.
	CountActiveByRole(ctx context.Context, roleID uuid.UUID) (int, error)

	// ListActiveByUser retrieves the user's active assignments in a tenant.
	ListActiveByUser(
		ctx context.Context,
		userID, tenantID uuid.UUID,
	) ([]*roleDomain.UserRoleAssignment, error)

	// EffectivePermissionNames retrieves the deduplicated permission names
	// reachable from every active assignment the user holds in the tenant.
	EffectivePermissionNames(ctx context.Context, userID, tenantID uuid.UUID) ([]string, error)
}

// RoleUseCase defines the role engine operations consulted for every
// human-initiated authorization decision.
type RoleUseCase interface {
	// CreateRole creates a tenant-owned role. Fails with ErrRoleNameTaken if
	// the name is already used in the tenant and ErrInvalidInput when no
	// tenant is given; system roles are created only through CreateSystemRole.
	CreateRole(ctx context.Context, input *roleDomain.CreateRoleInput) (*roleDomain.Role, error)

	// CreateSystemRole creates an immutable system role with the given
	// catalog permissions, visible to every tenant. Reserved for operational
	// tooling; the HTTP surface never exposes it. Fails with ErrRoleNameTaken
	// if the name is already used in the system scope.
	CreateSystemRole(
		ctx context.Context,
		name, description string,
		permissionNames []string,
	) (*roleDomain.Role, error)

	// GetRole retrieves a role visible to the tenant, including its granted
	// permission names.
	GetRole(ctx context.Context, roleID, tenantID uuid.UUID) (*roleDomain.Role, []string, error)

	// ListRoles retrieves the roles visible to the tenant.
	ListRoles(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]*roleDomain.Role, error)

	// UpdateRole modifies a tenant-owned role's name and description.
	// Fails with ErrSystemRoleImmutable for system roles.
	UpdateRole(
		ctx context.Context,
		roleID, tenantID uuid.UUID,
		input *roleDomain.UpdateRoleInput,
	) error

	// DeleteRole removes a tenant-owned role. Fails with ErrSystemRoleImmutable
	// for system roles and ErrRoleInUse while active assignments reference it.
	DeleteRole(ctx context.Context, roleID, tenantID uuid.UUID) error

	// AssignPermission grants a catalog permission to a role, idempotently.
	AssignPermission(ctx context.Context, roleID, tenantID uuid.UUID, permissionName string) error

	// RemovePermission revokes a catalog permission from a role, idempotently.
	RemovePermission(ctx context.Context, roleID, tenantID uuid.UUID, permissionName string) error

	// AssignRoleToUser creates an active assignment. Fails with
	// ErrRoleNotFound when the role is owned by a different tenant and
	// ErrRoleAlreadyAssigned when an active assignment for the triple exists.
	AssignRoleToUser(
		ctx context.Context,
		userID, roleID, tenantID, assignedByUserID uuid.UUID,
	) (*roleDomain.UserRoleAssignment, error)

	// RevokeRoleFromUser deactivates the active assignment for the triple.
	// The row is kept for audit history.
	RevokeRoleFromUser(ctx context.Context, userID, roleID, tenantID uuid.UUID) error

	// ListAssignments retrieves the user's active assignments in the tenant.
	ListAssignments(
		ctx context.Context,
		userID, tenantID uuid.UUID,
	) ([]*roleDomain.UserRoleAssignment, error)

	// ResolveEffectivePermissions returns the deduplicated union of
	// permissions reachable from the user's active assignments in the
	// tenant. Computed fresh on every call: role membership can change
	// between requests, so no result is ever cached.
	ResolveEffectivePermissions(ctx context.Context, userID, tenantID uuid.UUID) ([]string, error)

	// UserHasPermission reports whether the permission is in the user's
	// effective set for the tenant.
	UserHasPermission(
		ctx context.Context,
		userID uuid.UUID,
		permissionName permissionDomain.Name,
		tenantID uuid.UUID,
	) (bool, error)
}
