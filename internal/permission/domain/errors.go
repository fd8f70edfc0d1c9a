package domain

import (
	"github.com/allisson/agentauth/internal/errors"
)

// ErrPermissionNotFound indicates a permission with the given name is not in
// the stored catalog.
var ErrPermissionNotFound = errors.Wrap(errors.ErrNotFound, "permission not found")
