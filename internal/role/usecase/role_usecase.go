// Package usecase implements business logic orchestration for the role engine.
package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/agentauth/internal/errors"
	permissionDomain "github.com/allisson/agentauth/internal/permission/domain"
	permissionUseCase "github.com/allisson/agentauth/internal/permission/usecase"
	roleDomain "github.com/allisson/agentauth/internal/role/domain"
)

// roleUseCase implements RoleUseCase.
type roleUseCase struct {
	roleRepo       RoleRepository
	assignmentRepo AssignmentRepository
	permissionRepo permissionUseCase.PermissionRepository
	nowFunc        func() time.Time
}

// CreateRole creates a tenant-owned role after checking name uniqueness.
func (r *roleUseCase) CreateRole(
	ctx context.Context,
	input *roleDomain.CreateRoleInput,
) (*roleDomain.Role, error) {
	// A role without a tenant would be invisible to everyone; the system
	// scope is reachable only through CreateSystemRole.
	if input.TenantID == nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "tenant id is required")
	}

	// Reject duplicate names within the tenant.
	_, err := r.roleRepo.GetByName(ctx, input.Name, input.TenantID)
	if err == nil {
		return nil, roleDomain.ErrRoleNameTaken
	}
	if !errors.Is(err, roleDomain.ErrRoleNotFound) {
		return nil, err
	}

	role := &roleDomain.Role{
		ID:           uuid.Must(uuid.NewV7()),
		Name:         input.Name,
		Description:  input.Description,
		IsSystemRole: false,
		TenantID:     input.TenantID,
		CreatedAt:    r.nowFunc(),
	}

	if err := r.roleRepo.Create(ctx, role); err != nil {
		return nil, err
	}

	return role, nil
}

// CreateSystemRole creates an immutable system role and grants it the given
// catalog permissions. System roles bypass AssignPermission on purpose: once
// this call returns, the role is frozen against every mutating API operation.
func (r *roleUseCase) CreateSystemRole(
	ctx context.Context,
	name, description string,
	permissionNames []string,
) (*roleDomain.Role, error) {
	_, err := r.roleRepo.GetByName(ctx, name, nil)
	if err == nil {
		return nil, roleDomain.ErrRoleNameTaken
	}
	if !errors.Is(err, roleDomain.ErrRoleNotFound) {
		return nil, err
	}

	// Validate every permission against the catalog before creating anything.
	parsed, err := permissionDomain.ParseAll(permissionNames)
	if err != nil {
		return nil, err
	}

	role := &roleDomain.Role{
		ID:           uuid.Must(uuid.NewV7()),
		Name:         name,
		Description:  description,
		IsSystemRole: true,
		CreatedAt:    r.nowFunc(),
	}

	if err := r.roleRepo.Create(ctx, role); err != nil {
		return nil, err
	}

	for _, permissionName := range parsed {
		permission, err := r.permissionRepo.GetByName(ctx, permissionName)
		if err != nil {
			return nil, err
		}
		if err := r.roleRepo.AddPermission(ctx, role.ID, permission.ID); err != nil {
			return nil, err
		}
	}

	return role, nil
}

// GetRole retrieves a role visible to the tenant with its permission names.
func (r *roleUseCase) GetRole(
	ctx context.Context,
	roleID, tenantID uuid.UUID,
) (*roleDomain.Role, []string, error) {
	role, err := r.visibleRole(ctx, roleID, tenantID)
	if err != nil {
		return nil, nil, err
	}

	names, err := r.roleRepo.ListPermissionNames(ctx, roleID)
	if err != nil {
		return nil, nil, err
	}

	return role, names, nil
}

// ListRoles retrieves the roles visible to the tenant.
func (r *roleUseCase) ListRoles(
	ctx context.Context,
	tenantID uuid.UUID,
	offset, limit int,
) ([]*roleDomain.Role, error) {
	return r.roleRepo.List(ctx, tenantID, offset, limit)
}

// UpdateRole modifies a tenant-owned role.
func (r *roleUseCase) UpdateRole(
	ctx context.Context,
	roleID, tenantID uuid.UUID,
	input *roleDomain.UpdateRoleInput,
) error {
	role, err := r.visibleRole(ctx, roleID, tenantID)
	if err != nil {
		return err
	}
	if role.IsSystemRole {
		return roleDomain.ErrSystemRoleImmutable
	}

	// A rename must not collide with another role in the same scope.
	if !strings.EqualFold(role.Name, input.Name) {
		existing, err := r.roleRepo.GetByName(ctx, input.Name, role.TenantID)
		if err == nil && existing.ID != role.ID {
			return roleDomain.ErrRoleNameTaken
		}
		if err != nil && !errors.Is(err, roleDomain.ErrRoleNotFound) {
			return err
		}
	}

	role.Name = input.Name
	role.Description = input.Description

	return r.roleRepo.Update(ctx, role)
}

// DeleteRole removes a tenant-owned role with no active assignments.
func (r *roleUseCase) DeleteRole(ctx context.Context, roleID, tenantID uuid.UUID) error {
	role, err := r.visibleRole(ctx, roleID, tenantID)
	if err != nil {
		return err
	}
	if role.IsSystemRole {
		return roleDomain.ErrSystemRoleImmutable
	}

	count, err := r.assignmentRepo.CountActiveByRole(ctx, roleID)
	if err != nil {
		return err
	}
	if count > 0 {
		return roleDomain.ErrRoleInUse
	}

	return r.roleRepo.Delete(ctx, roleID)
}

// AssignPermission grants a catalog permission to a role, idempotently.
func (r *roleUseCase) AssignPermission(
	ctx context.Context,
	roleID, tenantID uuid.UUID,
	permissionName string,
) error {
	role, permission, err := r.roleAndPermission(ctx, roleID, tenantID, permissionName)
	if err != nil {
		return err
	}
	if role.IsSystemRole {
		return roleDomain.ErrSystemRoleImmutable
	}

	return r.roleRepo.AddPermission(ctx, role.ID, permission.ID)
}

// RemovePermission revokes a catalog permission from a role, idempotently.
func (r *roleUseCase) RemovePermission(
	ctx context.Context,
	roleID, tenantID uuid.UUID,
	permissionName string,
) error {
	role, permission, err := r.roleAndPermission(ctx, roleID, tenantID, permissionName)
	if err != nil {
		return err
	}
	if role.IsSystemRole {
		return roleDomain.ErrSystemRoleImmutable
	}

	return r.roleRepo.RemovePermission(ctx, role.ID, permission.ID)
}

// AssignRoleToUser creates an active assignment for the (user, role, tenant) triple.
func (r *roleUseCase) AssignRoleToUser(
	ctx context.Context,
	userID, roleID, tenantID, assignedByUserID uuid.UUID,
) (*roleDomain.UserRoleAssignment, error) {
	// The role must be a system role or owned by this tenant; a role owned
	// by another tenant is indistinguishable from a missing one.
	if _, err := r.visibleRole(ctx, roleID, tenantID); err != nil {
		return nil, err
	}

	_, err := r.assignmentRepo.GetActive(ctx, userID, roleID, tenantID)
	if err == nil {
		return nil, roleDomain.ErrRoleAlreadyAssigned
	}
	if !errors.Is(err, roleDomain.ErrAssignmentNotFound) {
		return nil, err
	}

	assignment := &roleDomain.UserRoleAssignment{
		ID:               uuid.Must(uuid.NewV7()),
		UserID:           userID,
		RoleID:           roleID,
		TenantID:         tenantID,
		AssignedByUserID: assignedByUserID,
		AssignedAt:       r.nowFunc(),
		IsActive:         true,
	}

	if err := r.assignmentRepo.Create(ctx, assignment); err != nil {
		return nil, err
	}

	return assignment, nil
}

// RevokeRoleFromUser deactivates the active assignment for the triple.
func (r *roleUseCase) RevokeRoleFromUser(
	ctx context.Context,
	userID, roleID, tenantID uuid.UUID,
) error {
	assignment, err := r.assignmentRepo.GetActive(ctx, userID, roleID, tenantID)
	if err != nil {
		return err
	}

	return r.assignmentRepo.Revoke(ctx, assignment.ID, r.nowFunc())
}

// ListAssignments retrieves the user's active assignments in the tenant.
func (r *roleUseCase) ListAssignments(
	ctx context.Context,
	userID, tenantID uuid.UUID,
) ([]*roleDomain.UserRoleAssignment, error) {
	return r.assignmentRepo.ListActiveByUser(ctx, userID, tenantID)
}

// ResolveEffectivePermissions returns the fresh, deduplicated permission union
// for the user in the tenant.
func (r *roleUseCase) ResolveEffectivePermissions(
	ctx context.Context,
	userID, tenantID uuid.UUID,
) ([]string, error) {
	names, err := r.assignmentRepo.EffectivePermissionNames(ctx, userID, tenantID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to resolve effective permissions")
	}
	return names, nil
}

// UserHasPermission reports whether the permission is in the user's effective set.
func (r *roleUseCase) UserHasPermission(
	ctx context.Context,
	userID uuid.UUID,
	permissionName permissionDomain.Name,
	tenantID uuid.UUID,
) (bool, error) {
	names, err := r.ResolveEffectivePermissions(ctx, userID, tenantID)
	if err != nil {
		return false, err
	}

	for _, name := range names {
		if strings.EqualFold(name, string(permissionName)) {
			return true, nil
		}
	}
	return false, nil
}

// visibleRole loads a role and hides roles owned by other tenants behind
// ErrRoleNotFound.
func (r *roleUseCase) visibleRole(
	ctx context.Context,
	roleID, tenantID uuid.UUID,
) (*roleDomain.Role, error) {
	role, err := r.roleRepo.Get(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if !role.VisibleTo(tenantID) {
		return nil, roleDomain.ErrRoleNotFound
	}
	return role, nil
}

// roleAndPermission resolves a visible role together with a validated catalog
// permission row.
func (r *roleUseCase) roleAndPermission(
	ctx context.Context,
	roleID, tenantID uuid.UUID,
	permissionName string,
) (*roleDomain.Role, *permissionDomain.Permission, error) {
	role, err := r.visibleRole(ctx, roleID, tenantID)
	if err != nil {
		return nil, nil, err
	}

	name, err := permissionDomain.Parse(permissionName)
	if err != nil {
		return nil, nil, err
	}

	permission, err := r.permissionRepo.GetByName(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	return role, permission, nil
}

// NewRoleUseCase creates a new RoleUseCase with the provided dependencies.
func NewRoleUseCase(
	roleRepo RoleRepository,
	assignmentRepo AssignmentRepository,
	permissionRepo permissionUseCase.PermissionRepository,
) RoleUseCase {
	return &roleUseCase{
		roleRepo:       roleRepo,
		assignmentRepo: assignmentRepo,
		permissionRepo: permissionRepo,
		nowFunc:        func() time.Time { return time.Now().UTC() },
	}
}
