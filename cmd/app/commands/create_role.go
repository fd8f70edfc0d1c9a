package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	roleDomain "github.com/allisson/agentauth/internal/role/domain"
	roleUseCase "github.com/allisson/agentauth/internal/role/usecase"
)

// RunCreateRole creates a role and grants it the given catalog permissions.
// With an empty tenantID the role is created as an immutable system role
// visible to every tenant. Outputs the role in either text or JSON format.
//
// Requirements: Database must be migrated and the permission catalog seeded.
func RunCreateRole(
	ctx context.Context,
	roles roleUseCase.RoleUseCase,
	logger *slog.Logger,
	name string,
	description string,
	tenantID string,
	permissionsCSV string,
	format string,
	writer io.Writer,
) error {
	logger.Info("creating role", slog.String("name", name))

	permissionNames := splitCSV(permissionsCSV)

	var role *roleDomain.Role
	if tenantID == "" {
		// No tenant targets the system scope: an immutable role visible to
		// every tenant, with its permission set fixed at creation.
		created, err := roles.CreateSystemRole(ctx, name, description, permissionNames)
		if err != nil {
			return fmt.Errorf("failed to create system role: %w", err)
		}
		role = created
	} else {
		parsed, err := uuid.Parse(tenantID)
		if err != nil {
			return fmt.Errorf("invalid tenant id: %w", err)
		}

		created, err := roles.CreateRole(ctx, &roleDomain.CreateRoleInput{
			Name:        name,
			Description: description,
			TenantID:    &parsed,
		})
		if err != nil {
			return fmt.Errorf("failed to create role: %w", err)
		}
		role = created

		for _, permissionName := range permissionNames {
			if err := roles.AssignPermission(ctx, role.ID, parsed, permissionName); err != nil {
				return fmt.Errorf("failed to grant permission %q: %w", permissionName, err)
			}
		}
	}

	if format == "json" {
		outputRoleJSON(role, permissionNames, writer)
	} else {
		outputRoleText(role, permissionNames, writer)
	}

	logger.Info("role created successfully",
		slog.String("role_id", role.ID.String()),
		slog.String("name", name),
		slog.Int("permissions", len(permissionNames)),
	)

	return nil
}

// splitCSV converts a comma-separated string into a slice, trimming spaces
// and dropping empty entries.
func splitCSV(input string) []string {
	parts := strings.Split(input, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if value := strings.TrimSpace(part); value != "" {
			values = append(values, value)
		}
	}
	return values
}

// outputRoleText outputs the created role in human-readable text format.
func outputRoleText(role *roleDomain.Role, permissions []string, writer io.Writer) {
	_, _ = fmt.Fprintln(writer, "\nRole created successfully!")
	_, _ = fmt.Fprintf(writer, "Role ID: %s\n", role.ID.String())
	_, _ = fmt.Fprintf(writer, "Name: %s\n", role.Name)
	if role.TenantID != nil {
		_, _ = fmt.Fprintf(writer, "Tenant: %s\n", role.TenantID.String())
	} else {
		_, _ = fmt.Fprintln(writer, "Tenant: system scope")
	}
	if len(permissions) > 0 {
		_, _ = fmt.Fprintf(writer, "Permissions: %s\n", strings.Join(permissions, ", "))
	}
}

// outputRoleJSON outputs the created role in JSON format for machine consumption.
func outputRoleJSON(role *roleDomain.Role, permissions []string, writer io.Writer) {
	result := map[string]any{
		"role_id":     role.ID.String(),
		"name":        role.Name,
		"permissions": permissions,
	}
	if role.TenantID != nil {
		result["tenant_id"] = role.TenantID.String()
	}

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to marshal JSON: %v\n", err)
		return
	}

	_, _ = fmt.Fprintln(writer, string(jsonBytes))
}
