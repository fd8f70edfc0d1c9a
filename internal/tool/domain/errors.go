package domain

import (
	apperrors "github.com/allisson/agentauth/internal/errors"
)

var (
	// ErrToolNotFound covers an absent tool and a tool owned by a different
	// tenant or agent.
	ErrToolNotFound = apperrors.Wrap(apperrors.ErrNotFound, "tool not found")

	// ErrToolInactive rejects execution of a disabled tool.
	ErrToolInactive = apperrors.Wrap(apperrors.ErrUnauthorized, "tool is inactive")

	// ErrToolNameTaken rejects a duplicate tool name within an agent.
	ErrToolNameTaken = apperrors.Wrap(apperrors.ErrConflict, "tool name already registered for agent")

	// ErrPermissionDenied is the generic caller-facing authorization failure.
	// Which permissions were missing is recorded only in the audit trail.
	ErrPermissionDenied = apperrors.Wrap(apperrors.ErrUnauthorized, "api key does not satisfy tool permissions")

	// ErrRunnerNotFound means no executable action is registered under the
	// tool's name.
	ErrRunnerNotFound = apperrors.Wrap(apperrors.ErrUnavailable, "no runner registered for tool")
)
