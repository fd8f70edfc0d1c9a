package domain

import (
	"github.com/allisson/agentauth/internal/errors"
)

// Role engine errors.
var (
	// ErrRoleNotFound indicates the role does not exist or is owned by a
	// different tenant.
	ErrRoleNotFound = errors.Wrap(errors.ErrNotFound, "role not found")

	// ErrRoleNameTaken indicates a role with the same name already exists in
	// the target scope.
	ErrRoleNameTaken = errors.Wrap(errors.ErrConflict, "role name already in use")

	// ErrSystemRoleImmutable indicates an attempted mutation of a system role.
	ErrSystemRoleImmutable = errors.Wrap(errors.ErrForbidden, "system roles cannot be modified")

	// ErrRoleInUse indicates the role still has active user assignments.
	ErrRoleInUse = errors.Wrap(errors.ErrConflict, "role has active assignments")

	// ErrRoleAlreadyAssigned indicates an active assignment already exists
	// for the same (user, role, tenant) triple.
	ErrRoleAlreadyAssigned = errors.Wrap(errors.ErrConflict, "role already assigned to user")

	// ErrAssignmentNotFound indicates no active assignment exists for the triple.
	ErrAssignmentNotFound = errors.Wrap(errors.ErrNotFound, "role assignment not found")
)
