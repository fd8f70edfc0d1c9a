package domain

import (
	"github.com/allisson/agentauth/internal/errors"
)

// ErrAgentNotFound indicates the agent does not exist or is owned by a
// different tenant.
var ErrAgentNotFound = errors.Wrap(errors.ErrNotFound, "agent not found")
