// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/agentauth/internal/errors"
)

var (
	// permissionNameRegex matches the snake_case naming scheme used by the
	// permission catalog, e.g. "read_customer" or "execute_tools".
	permissionNameRegex = regexp.MustCompile(`^[a-z]+(_[a-z]+)*$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// PermissionName validates the snake_case shape of a permission name.
// Membership in the catalog is checked by the use case layer, not here.
var PermissionName = validation.NewStringRuleWithError(
	func(s string) bool {
		return permissionNameRegex.MatchString(strings.ToLower(strings.TrimSpace(s)))
	},
	validation.NewError("validation_permission_name", "must be a snake_case permission name"),
)
