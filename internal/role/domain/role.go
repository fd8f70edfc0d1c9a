// Package domain defines role and assignment models for human-user authorization.
//
// Roles compose catalog permissions and are either system-wide (owned by no
// tenant, immutable) or tenant-owned. Users receive permissions exclusively
// through active role assignments; there is no per-user permission grant.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role composes a named set of catalog permissions.
//
// A role is system-wide when TenantID is nil and IsSystemRole is true: it is
// visible to every tenant and rejected for any mutating operation. Otherwise
// the role is owned by exactly one tenant. Role names are unique within their
// scope (system scope, or a given tenant).
type Role struct {
	ID           uuid.UUID
	Name         string
	Description  string
	IsSystemRole bool
	TenantID     *uuid.UUID
	CreatedAt    time.Time
}

// VisibleTo reports whether the role can be used within the given tenant:
// system roles are visible everywhere, tenant roles only to their owner.
func (r *Role) VisibleTo(tenantID uuid.UUID) bool {
	if r.IsSystemRole {
		return true
	}
	return r.TenantID != nil && *r.TenantID == tenantID
}

// UserRoleAssignment links a user to a role within a tenant.
//
// At most one active assignment exists per (user, role, tenant) triple.
// Revocation flips IsActive and stamps RevokedAt; rows are never deleted so
// the assignment history stays auditable.
type UserRoleAssignment struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	RoleID           uuid.UUID
	TenantID         uuid.UUID
	AssignedByUserID uuid.UUID
	AssignedAt       time.Time
	IsActive         bool
	RevokedAt        *time.Time
}

// CreateRoleInput contains the parameters for creating a tenant-owned role.
// TenantID is required; system roles are created through a dedicated path.
type CreateRoleInput struct {
	Name        string
	Description string
	TenantID    *uuid.UUID
}

// UpdateRoleInput contains the mutable fields of a tenant-owned role.
type UpdateRoleInput struct {
	Name        string
	Description string
}
